package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/noah-isme/debate-go-api/internal/dto"
	"github.com/noah-isme/debate-go-api/internal/observability"
	"github.com/noah-isme/debate-go-api/internal/repository"
)

const sweepBatchSize = 100

// SweepService drives the time based transitions nobody else triggers.
type SweepService interface {
	RunOnce(ctx context.Context) (dto.SweepReport, error)
	Run(ctx context.Context, interval time.Duration)
}

type sweepService struct {
	debates  repository.DebateRepository
	machine  DebateService
	presence PresenceService
	logger   zerolog.Logger
	tracer   trace.Tracer
	now      func() time.Time
	mu       sync.Mutex
}

// NewSweepService constructs the sweep driver. presence may be nil to skip viewer cleanup.
func NewSweepService(debates repository.DebateRepository, machine DebateService, presence PresenceService, logger zerolog.Logger) SweepService {
	return &sweepService{
		debates:  debates,
		machine:  machine,
		presence: presence,
		logger:   logger.With().Str("component", "sweep_service").Logger(),
		tracer:   otel.Tracer("github.com/noah-isme/debate-go-api/internal/service/sweep"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Run sweeps on every tick until ctx is cancelled.
func (s *sweepService) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = 5 * time.Second
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	s.logger.Info().Dur("interval", interval).Msg("sweep driver started")
	for {
		select {
		case <-ctx.Done():
			s.logger.Info().Msg("sweep driver stopped")
			return
		case <-ticker.C:
			if _, err := s.RunOnce(ctx); err != nil && ctx.Err() == nil {
				s.logger.Error().Err(err).Msg("sweep run failed")
			}
		}
	}
}

// RunOnce promotes due debates, times out expired rounds and refreshes presence of live debates.
// Overlapping calls are serialised.
func (s *sweepService) RunOnce(ctx context.Context) (dto.SweepReport, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	ctx, span := s.tracer.Start(ctx, "sweep.run")
	defer span.End()

	started := s.now()
	report := dto.SweepReport{StartedAt: started}
	defer func() {
		elapsed := s.now().Sub(started)
		report.DurationMillis = elapsed.Milliseconds()
		observability.SweepRuns().Inc()
		observability.SweepDuration().Observe(elapsed.Seconds())
	}()

	if err := s.promote(ctx, started, &report); err != nil {
		span.RecordError(err)
		return report, err
	}
	if err := s.timeout(ctx, started, &report); err != nil {
		span.RecordError(err)
		return report, err
	}
	if err := s.refreshPresence(ctx, &report); err != nil {
		span.RecordError(err)
		return report, err
	}

	span.SetAttributes(
		attribute.Int("sweep.promoted", report.Promoted),
		attribute.Int("sweep.timed_out", report.TimedOut),
		attribute.Int("sweep.failures", report.Failures),
	)

	if report.Promoted+report.TimedOut+report.Failures > 0 {
		s.logger.Info().
			Int("promoted", report.Promoted).
			Int("timed_out", report.TimedOut).
			Int("presence_refreshed", report.PresenceRefreshed).
			Int("skipped", report.Skipped).
			Int("failures", report.Failures).
			Msg("sweep completed")
	}

	return report, nil
}

func (s *sweepService) promote(ctx context.Context, now time.Time, report *dto.SweepReport) error {
	due, err := s.debates.ListDueForStart(ctx, now, sweepBatchSize)
	if err != nil {
		observability.SweepFailures().WithLabelValues("promote").Inc()
		return fmt.Errorf("list debates due for start: %w", err)
	}

	for _, debate := range due {
		_, err := s.machine.Start(ctx, debate.ID, 0)
		switch {
		case err == nil:
			report.Promoted++
		case errors.Is(err, ErrInvalidTransition):
			report.Skipped++
		default:
			s.fail(report, "promote", debate.ID, err)
		}
	}
	return nil
}

func (s *sweepService) timeout(ctx context.Context, now time.Time, report *dto.SweepReport) error {
	expired, err := s.debates.ListExpiredRounds(ctx, now.Add(-RoundDuration), sweepBatchSize)
	if err != nil {
		observability.SweepFailures().WithLabelValues("timeout").Inc()
		return fmt.Errorf("list debates with expired rounds: %w", err)
	}

	for _, debate := range expired {
		_, err := s.machine.ForceAdvanceOnTimeout(ctx, debate.ID)
		switch {
		case err == nil:
			report.TimedOut++
		case errors.Is(err, ErrRoundNotExpired), errors.Is(err, ErrRoundMismatch), errors.Is(err, ErrDebateNotLive):
			// a participant posted between the scan and the advance
			report.Skipped++
		default:
			s.fail(report, "timeout", debate.ID, err)
		}
	}
	return nil
}

func (s *sweepService) refreshPresence(ctx context.Context, report *dto.SweepReport) error {
	if s.presence == nil {
		return nil
	}

	live, err := s.debates.ListLive(ctx, repository.DebateSortRecent, time.Time{}, 0)
	if err != nil {
		observability.SweepFailures().WithLabelValues("presence").Inc()
		return fmt.Errorf("list live debates: %w", err)
	}

	for _, debate := range live {
		if _, err := s.presence.Refresh(ctx, debate.ID); err != nil {
			s.fail(report, "presence", debate.ID, err)
			continue
		}
		report.PresenceRefreshed++
	}
	return nil
}

func (s *sweepService) fail(report *dto.SweepReport, phase string, debateID uint, err error) {
	report.Failures++
	observability.SweepFailures().WithLabelValues(phase).Inc()
	s.logger.Error().Err(err).Str("phase", phase).Uint("debate_id", debateID).Msg("sweep step failed")
}
