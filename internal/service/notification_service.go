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
	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"
	"github.com/nats-io/nats.go"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/datatypes"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/observability"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

const notificationBufferSize = 16

// ErrNotificationNotFound indicates the notification does not exist or belongs to another user.
var ErrNotificationNotFound = errors.New("notification not found")

// NotificationService stores notifications and streams them to connected users via SSE.
// It is the sink the dispatcher delivers into.
type NotificationService interface {
	NotificationSink
	List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error)
	MarkRead(ctx context.Context, id uint, userID uint) (dto.NotificationResponse, error)
	Subscribe(userID uint) (<-chan dto.NotificationResponse, func())
	Start(ctx context.Context)
}

type notificationService struct {
	repo        repository.NotificationRepository
	redis       *redis.Client
	redisStream string
	nats        *nats.Conn
	natsSubject string
	validator   *validator.Validate
	logger      zerolog.Logger
	tracer      trace.Tracer
	sanitizer   *bluemonday.Policy
	broker      *notificationBroker
	nodeID      string
}

type notificationEvent struct {
	Source       string                   `json:"source"`
	Notification dto.NotificationResponse `json:"notification"`
	SentAt       time.Time                `json:"sent_at"`
}

type notificationBroker struct {
	mu          sync.RWMutex
	subscribers map[uint]map[chan dto.NotificationResponse]struct{}
}

// NewNotificationService constructs a notification service. redisClient and natsConn may be nil.
func NewNotificationService(repo repository.NotificationRepository, redisClient *redis.Client, channelBase string, natsConn *nats.Conn, validate *validator.Validate, logger zerolog.Logger) NotificationService {
	stream := ""
	subject := ""
	if channelBase != "" {
		stream = channelBase + ":notifications"
		subject = strings.ReplaceAll(channelBase, ":", ".") + ".notifications"
	}

	return &notificationService{
		repo:        repo,
		redis:       redisClient,
		redisStream: stream,
		nats:        natsConn,
		natsSubject: subject,
		validator:   validate,
		logger:      logger.With().Str("component", "notification_service").Logger(),
		tracer:      otel.Tracer("github.com/noah-isme/debate-go-api/internal/service/notification"),
		sanitizer:   bluemonday.StrictPolicy(),
		broker: &notificationBroker{
			subscribers: make(map[uint]map[chan dto.NotificationResponse]struct{}),
		},
		nodeID: uuid.NewString(),
	}
}

func (s *notificationService) Start(ctx context.Context) {
	if s.redis != nil && s.redisStream != "" {
		go s.consumeRedis(ctx)
	}
	if s.nats != nil && s.natsSubject != "" {
		go s.consumeNATS(ctx)
	}
}

// Deliver persists the payload and pushes it to the recipient's open streams on every node.
func (s *notificationService) Deliver(ctx context.Context, payload dto.PushPayload) error {
	if err := s.validator.Struct(payload); err != nil {
		return err
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(payload.Body))
	if body == "" {
		return errors.New("notification body empty after sanitization")
	}

	spanCtx, span := s.tracer.Start(ctx, "notifications.deliver", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(payload.RecipientID)),
		attribute.String("notification.type", payload.Type),
	))
	defer span.End()

	model := models.Notification{
		UserID:  payload.RecipientID,
		Type:    payload.Type,
		Title:   strings.TrimSpace(s.sanitizer.Sanitize(payload.Title)),
		Message: body,
		URL:     payload.URL,
		Tag:     payload.Tag,
	}
	if len(payload.Metadata) > 0 {
		model.Metadata = datatypes.JSONMap{}
		for key, value := range payload.Metadata {
			model.Metadata[key] = value
		}
	}

	if err := s.repo.Create(spanCtx, &model); err != nil {
		span.RecordError(err)
		return fmt.Errorf("store notification: %w", err)
	}

	response := dto.NewNotificationResponse(model)
	s.broadcast(response)
	if err := s.publish(spanCtx, response); err != nil {
		s.logger.Warn().Err(err).Msg("failed to publish notification to broker")
	}

	observability.NotificationsPublishedTotal().WithLabelValues(response.Type).Inc()
	return nil
}

func (s *notificationService) List(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]dto.NotificationResponse, error) {
	if userID == 0 {
		return nil, errors.New("user id is required")
	}

	notifications, err := s.repo.ListByUser(ctx, userID, unreadOnly, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list notifications of user %d: %w", userID, err)
	}

	return dto.NewNotificationResponseSlice(notifications), nil
}

func (s *notificationService) MarkRead(ctx context.Context, id uint, userID uint) (dto.NotificationResponse, error) {
	spanCtx, span := s.tracer.Start(ctx, "notifications.mark_read", trace.WithAttributes(
		attribute.Int64("notification.user_id", int64(userID)),
	))
	defer span.End()

	notification, err := s.repo.MarkRead(spanCtx, id, userID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return dto.NotificationResponse{}, ErrNotificationNotFound
		}
		span.RecordError(err)
		return dto.NotificationResponse{}, err
	}

	return dto.NewNotificationResponse(notification), nil
}

func (s *notificationService) Subscribe(userID uint) (<-chan dto.NotificationResponse, func()) {
	channel := make(chan dto.NotificationResponse, notificationBufferSize)

	s.broker.subscribe(userID, channel)
	observability.SSEClientsActive().Inc()

	var once sync.Once
	cleanup := func() {
		once.Do(func() {
			s.broker.unsubscribe(userID, channel)
			observability.SSEClientsActive().Dec()
		})
	}

	return channel, cleanup
}

func (s *notificationService) broadcast(notification dto.NotificationResponse) {
	s.broker.broadcast(notification.UserID, notification)
}

func (s *notificationService) publish(ctx context.Context, notification dto.NotificationResponse) error {
	event := notificationEvent{
		Source:       s.nodeID,
		Notification: notification,
		SentAt:       time.Now().UTC(),
	}

	payload, err := json.Marshal(event)
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

func (s *notificationService) consumeRedis(ctx context.Context) {
	pubsub := s.redis.Subscribe(ctx, s.redisStream)
	defer func() { _ = pubsub.Close() }()

	for {
		msg, err := pubsub.ReceiveMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || ctx.Err() != nil {
				return
			}
			s.logger.Error().Err(err).Msg("notification redis subscription closed")
			return
		}
		s.handleEvent([]byte(msg.Payload))
	}
}

// every node needs every notification, so this is a plain subscription rather than a queue group
func (s *notificationService) consumeNATS(ctx context.Context) {
	sub, err := s.nats.Subscribe(s.natsSubject, func(msg *nats.Msg) {
		s.handleEvent(msg.Data)
	})
	if err != nil {
		s.logger.Error().Err(err).Msg("failed to subscribe to nats notifications subject")
		return
	}

	go func() {
		<-ctx.Done()
		if err := sub.Drain(); err != nil {
			s.logger.Warn().Err(err).Msg("failed to drain notification nats subscription")
		}
	}()
}

func (s *notificationService) handleEvent(payload []byte) {
	var event notificationEvent
	if err := json.Unmarshal(payload, &event); err != nil {
		s.logger.Warn().Err(err).Msg("invalid notification event payload")
		return
	}

	if event.Source == s.nodeID {
		return
	}

	observability.NotificationsPublishedTotal().WithLabelValues(event.Notification.Type).Inc()
	s.broadcast(event.Notification)
}

func (b *notificationBroker) subscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.subscribers[userID]; !exists {
		b.subscribers[userID] = make(map[chan dto.NotificationResponse]struct{})
	}
	b.subscribers[userID][ch] = struct{}{}
}

func (b *notificationBroker) unsubscribe(userID uint, ch chan dto.NotificationResponse) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if subscribers, ok := b.subscribers[userID]; ok {
		if _, ok := subscribers[ch]; !ok {
			return
		}
		delete(subscribers, ch)
		close(ch)
		if len(subscribers) == 0 {
			delete(b.subscribers, userID)
		}
	}
}

func (b *notificationBroker) broadcast(userID uint, notification dto.NotificationResponse) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	for ch := range b.subscribers[userID] {
		select {
		case ch <- notification:
		default:
		}
	}
}
