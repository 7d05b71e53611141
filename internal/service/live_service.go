package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/middleware"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/observability"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

const (
	liveRedisTTL       = 30 * time.Minute
	liveSendBufferSize = 32
	livePingInterval   = 30 * time.Second
)

// ErrChatRequiresUser indicates an anonymous viewer tried to post into a live room.
var ErrChatRequiresUser = errors.New("sign in to chat")

// LiveConnectionOptions wraps metadata extracted during the HTTP upgrade.
type LiveConnectionOptions struct {
	DebateID      uint
	UserID        uint
	CorrelationID string
	Context       context.Context
}

// LiveService fans debate events and spectator chat out to websocket clients on every node.
type LiveService interface {
	DebateEventPublisher
	ServeConnection(conn *websocket.Conn, opts LiveConnectionOptions)
	Send(ctx context.Context, debateID, authorID uint, req dto.SpectatorMessageRequest) (dto.SpectatorMessageResponse, error)
	History(ctx context.Context, debateID uint, before *time.Time, limit int) ([]dto.SpectatorMessageResponse, error)
	Start(ctx context.Context)
}

type liveService struct {
	debates     repository.DebateRepository
	repo        repository.SpectatorMessageRepository
	redis       *redis.Client
	redisStream string
	redisCache  string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	hub         *liveHub
	nodeID      string
}

type liveHub struct {
	mu    sync.RWMutex
	rooms map[uint]map[*liveClient]struct{}
	log   zerolog.Logger
}

type liveClient struct {
	conn    *websocket.Conn
	send    chan dto.LiveEvent
	options LiveConnectionOptions
	service *liveService
	closed  chan struct{}
	once    sync.Once
}

type liveEnvelope struct {
	Source string        `json:"source"`
	Event  dto.LiveEvent `json:"event"`
}

// NewLiveService creates the live room service. redisClient and natsConn may be nil.
func NewLiveService(debates repository.DebateRepository, repo repository.SpectatorMessageRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) LiveService {
	hub := &liveHub{
		rooms: make(map[uint]map[*liveClient]struct{}),
		log:   logger.With().Str("component", "live_hub").Logger(),
	}

	streamChannel := ""
	cachePrefix := ""
	natsSubject := ""
	if channelBase != "" {
		streamChannel = channelBase + ":live"
		cachePrefix = channelBase + ":live:last"
		natsSubject = strings.ReplaceAll(channelBase, ":", ".") + ".live"
	}

	return &liveService{
		debates:     debates,
		repo:        repo,
		redis:       redisClient,
		redisStream: streamChannel,
		redisCache:  cachePrefix,
		nats:        natsConn,
		natsSubject: natsSubject,
		validator:   validate,
		logger:      logger.With().Str("component", "live_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/debate-go-api/internal/service/live"),
		sanitizer:   bluemonday.StrictPolicy(),
		hub:         hub,
		nodeID:      uuid.NewString(),
	}
}

func (s *liveService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

func (s *liveService) ServeConnection(conn *websocket.Conn, opts LiveConnectionOptions) {
	if opts.Context == nil {
		opts.Context = context.Background()
	}

	client := &liveClient{
		conn:    conn,
		send:    make(chan dto.LiveEvent, liveSendBufferSize),
		options: opts,
		service: s,
		closed:  make(chan struct{}),
	}

	s.hub.register(client)
	observability.LiveConnectionsTotal().Inc()
	s.logger.Debug().
		Uint("debate_id", opts.DebateID).
		Str("correlation_id", opts.CorrelationID).
		Int("room_size", s.hub.size(opts.DebateID)).
		Msg("live connection registered")

	if last := s.fetchLastEvent(opts.Context, opts.DebateID); last != nil {
		select {
		case client.send <- *last:
		default:
		}
	}

	go client.writer()
	client.reader()
}

// Send records a spectator chat line and pushes it to the room.
func (s *liveService) Send(ctx context.Context, debateID, authorID uint, req dto.SpectatorMessageRequest) (dto.SpectatorMessageResponse, error) {
	if authorID == 0 {
		return dto.SpectatorMessageResponse{}, ErrChatRequiresUser
	}
	if err := s.validator.Struct(req); err != nil {
		return dto.SpectatorMessageResponse{}, err
	}

	clean := strings.TrimSpace(s.sanitizer.Sanitize(req.Content))
	if clean == "" {
		return dto.SpectatorMessageResponse{}, ErrEmptyContent
	}

	attrs := []attribute.KeyValue{
		attribute.Int64("debate.id", int64(debateID)),
		attribute.Int64("live.author_id", int64(authorID)),
	}
	if correlation := middleware.CorrelationIDFromContext(ctx); correlation != "" {
		attrs = append(attrs, attribute.String("correlation_id", correlation))
	}
	spanCtx, span := s.tracer.Start(ctx, "live.spectator_message", trace.WithAttributes(attrs...))
	defer span.End()

	debate, err := s.debates.GetByID(spanCtx, debateID)
	if err != nil {
		return dto.SpectatorMessageResponse{}, translateDebateError(err, debateID)
	}
	if !debate.IsLive() {
		return dto.SpectatorMessageResponse{}, ErrDebateNotLive
	}

	model := models.SpectatorMessage{
		DebateID:  debateID,
		AuthorID:  authorID,
		Content:   clean,
		CreatedAt: time.Now().UTC(),
	}
	if err := s.repo.Save(spanCtx, &model); err != nil {
		span.RecordError(err)
		return dto.SpectatorMessageResponse{}, fmt.Errorf("store spectator message: %w", err)
	}

	response := dto.NewSpectatorMessageResponse(model)
	s.PublishDebateEvent(spanCtx, dto.LiveEvent{
		Type:             dto.LiveEventSpectatorMessage,
		DebateID:         debateID,
		SpectatorMessage: &response,
		SentAt:           time.Now().UTC(),
	})

	return response, nil
}

func (s *liveService) History(ctx context.Context, debateID uint, before *time.Time, limit int) ([]dto.SpectatorMessageResponse, error) {
	if _, err := s.debates.GetByID(ctx, debateID); err != nil {
		return nil, translateDebateError(err, debateID)
	}

	cursor := time.Time{}
	if before != nil {
		cursor = before.UTC()
	}

	messages, err := s.repo.ListByDebate(ctx, debateID, cursor, limit)
	if err != nil {
		return nil, fmt.Errorf("list spectator messages of debate %d: %w", debateID, err)
	}
	return dto.NewSpectatorMessageResponseSlice(messages), nil
}

// PublishDebateEvent delivers the event to local clients and forwards it to the other nodes.
func (s *liveService) PublishDebateEvent(ctx context.Context, event dto.LiveEvent) {
	if event.SentAt.IsZero() {
		event.SentAt = time.Now().UTC()
	}

	s.cacheLastEvent(ctx, event)
	s.hub.broadcast(event)
	if err := s.publish(ctx, event); err != nil {
		s.logger.Warn().Err(err).Str("type", event.Type).Msg("failed to publish live event")
	}

	observability.LiveEvents().WithLabelValues(event.Type).Inc()
}

// only state snapshots are replayed to late joiners
func (s *liveService) cacheLastEvent(ctx context.Context, event dto.LiveEvent) {
	if s.redis == nil || s.redisCache == "" || event.Debate == nil {
		return
	}

	payload, err := json.Marshal(event)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to marshal live event for cache")
		return
	}

	key := fmt.Sprintf("%s:%d", s.redisCache, event.DebateID)
	if err := s.redis.Set(ctx, key, payload, liveRedisTTL).Err(); err != nil {
		s.logger.Warn().Err(err).Msg("failed to cache live event")
	}
}

func (s *liveService) fetchLastEvent(ctx context.Context, debateID uint) *dto.LiveEvent {
	if s.redis == nil || s.redisCache == "" {
		return nil
	}

	key := fmt.Sprintf("%s:%d", s.redisCache, debateID)
	result, err := s.redis.Get(ctx, key).Result()
	if err != nil {
		return nil
	}

	var event dto.LiveEvent
	if err := json.Unmarshal([]byte(result), &event); err != nil {
		s.logger.Warn().Err(err).Msg("failed to unmarshal cached live event")
		return nil
	}
	return &event
}

func (s *liveService) publish(ctx context.Context, event dto.LiveEvent) error {
	if (s.redis == nil || s.redisStream == "") && (s.nats == nil || s.natsSubject == "") {
		return nil
	}

	payload, err := json.Marshal(liveEnvelope{Source: s.nodeID, Event: event})
	if err != nil {
		return err
	}

	if s.redis != nil && s.redisStream != "" {
		if err := s.redis.Publish(ctx, s.redisStream, payload).Err(); err != nil {
			return err
		}
	}

	if s.nats != nil && s.natsSubject != "" {
		if err := s.nats.Publish(s.natsSubject, payload); err != nil {
			return err
		}
	}

	return nil
}

func (s *liveService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() {
		_ = pubsub.Close()
	}()
	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("live redis subscription closed")
			return
		}
		s.handleEnvelope([]byte(msg.Payload))
	}
}

func (s *liveService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEnvelope(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats live subject")
		return
	}
	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain live nats subscription")
		}
	}()
}

func (s *liveService) handleEnvelope(data []byte) {
	var envelope liveEnvelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		s.logger.Warn().Err(err).Msg("invalid live event")
		return
	}

	if envelope.Source == s.nodeID {
		return
	}

	s.hub.broadcast(envelope.Event)
}

func (h *liveHub) register(client *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.DebateID
	if _, exists := h.rooms[room]; !exists {
		h.rooms[room] = make(map[*liveClient]struct{})
	}
	h.rooms[room][client] = struct{}{}
	h.log.Debug().Uint("debate_id", room).Uint("user_id", client.options.UserID).Msg("live client connected")
}

func (h *liveHub) unregister(client *liveClient) {
	h.mu.Lock()
	defer h.mu.Unlock()

	room := client.options.DebateID
	if clients, ok := h.rooms[room]; ok {
		delete(clients, client)
		if len(clients) == 0 {
			delete(h.rooms, room)
		}
	}
	h.log.Debug().Uint("debate_id", room).Uint("user_id", client.options.UserID).Msg("live client disconnected")
}

func (h *liveHub) broadcast(event dto.LiveEvent) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	for client := range h.rooms[event.DebateID] {
		select {
		case client.send <- event:
		default:
			h.log.Warn().Uint("debate_id", event.DebateID).Msg("dropping live event for slow client")
		}
	}
}

func (h *liveHub) size(debateID uint) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.rooms[debateID])
}

// reader consumes spectator chat frames. Anonymous viewers are read-only, their frames are discarded.
func (c *liveClient) reader() {
	defer c.close()

	for {
		var payload dto.SpectatorMessageRequest
		if err := c.conn.ReadJSON(&payload); err != nil {
			c.service.logger.Debug().Err(err).Msg("live read loop ended")
			return
		}

		if c.options.UserID == 0 {
			continue
		}

		if _, err := c.service.Send(c.options.Context, c.options.DebateID, c.options.UserID, payload); err != nil {
			c.service.logger.Warn().Err(err).Uint("debate_id", c.options.DebateID).Msg("failed to process spectator message")
		}
	}
}

func (c *liveClient) writer() {
	defer c.close()

	ticker := time.NewTicker(livePingInterval)
	defer ticker.Stop()

	for {
		select {
		case event := <-c.send:
			if err := c.conn.WriteJSON(event); err != nil {
				c.service.logger.Debug().Err(err).Msg("live write loop terminated")
				return
			}
		case <-ticker.C:
			if err := c.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				c.service.logger.Debug().Err(err).Msg("live ping failed")
				return
			}
		case <-c.closed:
			return
		}
	}
}

func (c *liveClient) close() {
	c.once.Do(func() {
		close(c.closed)
		c.service.hub.unregister(c)
		_ = c.conn.Close()
	})
}
