package repository

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/noah-isme/debate-go-api/internal/models"
)

// viewerKeyTTL keeps abandoned sorted sets from outliving their debate.
const viewerKeyTTL = 30 * time.Minute

type redisViewerRepository struct {
	client *redis.Client
	prefix string
}

// NewRedisViewerRepository stores presence as one sorted set per debate, scored by last-seen unix millis.
func NewRedisViewerRepository(client *redis.Client, prefix string) ViewerRepository {
	if prefix == "" {
		prefix = "debate"
	}
	return &redisViewerRepository{client: client, prefix: prefix}
}

func (r *redisViewerRepository) key(debateID uint) string {
	return fmt.Sprintf("%s:viewers:%d", r.prefix, debateID)
}

func (r *redisViewerRepository) Touch(ctx context.Context, debateID uint, identity models.ViewerIdentity, seenAt time.Time) error {
	key := r.key(debateID)
	pipe := r.client.TxPipeline()
	pipe.ZAdd(ctx, key, redis.Z{Score: float64(seenAt.UnixMilli()), Member: identity.Key()})
	pipe.Expire(ctx, key, viewerKeyTTL)
	_, err := pipe.Exec(ctx)
	return err
}

func (r *redisViewerRepository) Remove(ctx context.Context, debateID uint, identity models.ViewerIdentity) error {
	return r.client.ZRem(ctx, r.key(debateID), identity.Key()).Err()
}

func (r *redisViewerRepository) EvictBefore(ctx context.Context, debateID uint, cutoff time.Time) (int64, error) {
	// exclusive bound: a record seen exactly at the cutoff survives
	max := "(" + strconv.FormatInt(cutoff.UnixMilli(), 10)
	return r.client.ZRemRangeByScore(ctx, r.key(debateID), "-inf", max).Result()
}

func (r *redisViewerRepository) Count(ctx context.Context, debateID uint) (int64, error) {
	return r.client.ZCard(ctx, r.key(debateID)).Result()
}
