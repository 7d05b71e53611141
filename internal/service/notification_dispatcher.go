package service

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gorm.io/gorm"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/models"
	"github.com/noah-isme/debate-go-api/internal/observability"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

//go:generate mockgen -destination=mocks/mock_notification_sink.go -package=mocks . NotificationSink

// NotificationSink delivers a rendered push payload to its recipient.
type NotificationSink interface {
	Deliver(ctx context.Context, payload dto.PushPayload) error
}

// NotificationDispatcher turns domain events into push notifications without blocking the caller.
type NotificationDispatcher interface {
	ChallengeCreated(ctx context.Context, challenge models.Challenge)
	ChallengeAccepted(ctx context.Context, challenge models.Challenge, debateID uint)
	DebateStarted(ctx context.Context, debate models.Debate)
	Start(ctx context.Context)
	Wait()
}

// DispatcherConfig sizes the dispatch queue and worker pool.
type DispatcherConfig struct {
	Workers         int
	QueueSize       int
	DeliveryTimeout time.Duration
}

type notificationJob struct {
	kind        string
	recipientID uint
	actorID     uint
	challengeID uint
	debateID    uint
	title       string
}

type notificationDispatcher struct {
	users   repository.UserRepository
	sink    NotificationSink
	queue   chan notificationJob
	workers int
	timeout time.Duration
	logger  zerolog.Logger
	wg      sync.WaitGroup
	once    sync.Once
}

// NewNotificationDispatcher constructs a dispatcher. Nothing is delivered until Start is called.
func NewNotificationDispatcher(users repository.UserRepository, sink NotificationSink, cfg DispatcherConfig, logger zerolog.Logger) NotificationDispatcher {
	if cfg.Workers <= 0 {
		cfg.Workers = 2
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.DeliveryTimeout <= 0 {
		cfg.DeliveryTimeout = 5 * time.Second
	}

	return &notificationDispatcher{
		users:   users,
		sink:    sink,
		queue:   make(chan notificationJob, cfg.QueueSize),
		workers: cfg.Workers,
		timeout: cfg.DeliveryTimeout,
		logger:  logger.With().Str("component", "notification_dispatcher").Logger(),
	}
}

func (d *notificationDispatcher) ChallengeCreated(_ context.Context, challenge models.Challenge) {
	d.enqueue(notificationJob{
		kind:        models.NotificationChallengeCreated,
		recipientID: challenge.RecipientID,
		actorID:     challenge.ChallengerID,
		challengeID: challenge.ID,
		title:       challenge.Title,
	})
}

func (d *notificationDispatcher) ChallengeAccepted(_ context.Context, challenge models.Challenge, debateID uint) {
	d.enqueue(notificationJob{
		kind:        models.NotificationChallengeAccepted,
		recipientID: challenge.ChallengerID,
		actorID:     challenge.RecipientID,
		challengeID: challenge.ID,
		debateID:    debateID,
		title:       challenge.Title,
	})
}

func (d *notificationDispatcher) DebateStarted(_ context.Context, debate models.Debate) {
	for _, participant := range []uint{debate.Participant1ID, debate.Participant2ID} {
		d.enqueue(notificationJob{
			kind:        models.NotificationDebateStarted,
			recipientID: participant,
			actorID:     debate.Opponent(participant),
			debateID:    debate.ID,
			title:       debate.Title,
		})
	}
}

// Start launches the workers. They stop once ctx is cancelled; Wait blocks until they have.
func (d *notificationDispatcher) Start(ctx context.Context) {
	d.once.Do(func() {
		for i := 0; i < d.workers; i++ {
			d.wg.Add(1)
			go d.run(ctx)
		}
	})
}

func (d *notificationDispatcher) Wait() {
	d.wg.Wait()
}

func (d *notificationDispatcher) enqueue(job notificationJob) {
	select {
	case d.queue <- job:
	default:
		observability.NotificationsDropped().WithLabelValues("queue_full").Inc()
		d.logger.Warn().
			Str("type", job.kind).
			Uint("recipient_id", job.recipientID).
			Msg("notification queue full, dropping notification")
	}
}

func (d *notificationDispatcher) run(ctx context.Context) {
	defer d.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case job := <-d.queue:
			d.process(ctx, job)
		}
	}
}

func (d *notificationDispatcher) process(ctx context.Context, job notificationJob) {
	ctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	logger := d.logger.With().Str("type", job.kind).Uint("recipient_id", job.recipientID).Logger()

	recipient, err := d.users.GetByID(ctx, job.recipientID)
	if err != nil {
		reason := "lookup_failed"
		if errors.Is(err, gorm.ErrRecordNotFound) {
			reason = "unknown_recipient"
		}
		observability.NotificationsDropped().WithLabelValues(reason).Inc()
		logger.Warn().Err(err).Msg("notification recipient lookup failed")
		return
	}

	if !wantsNotification(recipient, job.kind) {
		observability.NotificationsDropped().WithLabelValues("opted_out").Inc()
		logger.Debug().Msg("recipient opted out of notification")
		return
	}

	actorName := "Someone"
	if job.actorID != 0 {
		if actor, err := d.users.GetByID(ctx, job.actorID); err == nil {
			actorName = actor.Handle()
		}
	}

	payload := renderNotification(job, actorName)
	if err := d.sink.Deliver(ctx, payload); err != nil {
		observability.NotificationsFailed().WithLabelValues(job.kind).Inc()
		logger.Error().Err(err).Msg("failed to deliver notification")
		return
	}

	observability.NotificationsDispatched().WithLabelValues(job.kind).Inc()
}

func wantsNotification(user models.User, kind string) bool {
	switch kind {
	case models.NotificationChallengeCreated:
		return user.NotifyChallengeCreated
	case models.NotificationChallengeAccepted:
		return user.NotifyChallengeAccepted
	case models.NotificationDebateStarted:
		return user.NotifyDebateStarting
	default:
		return true
	}
}

func renderNotification(job notificationJob, actorName string) dto.PushPayload {
	payload := dto.PushPayload{
		RecipientID: job.recipientID,
		Type:        job.kind,
		Metadata:    map[string]string{},
	}
	if job.challengeID != 0 {
		payload.Metadata["challenge_id"] = strconv.FormatUint(uint64(job.challengeID), 10)
	}
	if job.debateID != 0 {
		payload.Metadata["debate_id"] = strconv.FormatUint(uint64(job.debateID), 10)
	}

	switch job.kind {
	case models.NotificationChallengeCreated:
		payload.Title = "New Challenge Received"
		payload.Body = fmt.Sprintf("%s challenged you: \"%s\"", actorName, job.title)
		payload.URL = "/challenges"
		payload.Tag = fmt.Sprintf("challenge-%d", job.challengeID)
	case models.NotificationChallengeAccepted:
		payload.Title = "Challenge Accepted"
		payload.Body = fmt.Sprintf("%s accepted your challenge: \"%s\"", actorName, job.title)
		payload.URL = fmt.Sprintf("/debate/%d", job.debateID)
		payload.Tag = fmt.Sprintf("challenge-%d", job.challengeID)
	case models.NotificationDebateStarted:
		payload.Title = "Debate Started"
		payload.Body = fmt.Sprintf("Your debate \"%s\" with %s has started!", job.title, actorName)
		payload.URL = fmt.Sprintf("/debate/%d", job.debateID)
		payload.Tag = fmt.Sprintf("debate-%d", job.debateID)
	}
	return payload
}
