package main

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/kiranahub/kiranahub-backend/pkg/config"
	"github.com/kiranahub/kiranahub-backend/pkg/db/models"
	"github.com/kiranahub/kiranahub-backend/pkg/logger"
	"github.com/kiranahub/kiranahub-backend/pkg/metrics"
	"github.com/kiranahub/kiranahub-backend/pkg/outbox"
	pkgredis "github.com/kiranahub/kiranahub-backend/pkg/redis"
)

const (
	defaultBatchSize      = 50
	defaultPollInterval   = 500 * time.Millisecond
	defaultPublishTimeout = 5 * time.Second
	defaultMaxAttempts    = 10
	maxBackoff            = 10 * time.Second
	jitterWindow          = 250 * time.Millisecond
	deadLetterSample      = 20
)

var jitterSource = rand.New(rand.NewSource(time.Now().UnixNano()))

type dbClient interface {
	Ping(context.Context) error
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type broker interface {
	Ping(context.Context) error
	AppendEvent(ctx context.Context, stream string, maxLen int64, event pkgredis.StreamEvent) (string, error)
	EventStream(eventType string) string
}

type outboxRepository interface {
	FetchUnpublished(tx *gorm.DB, limit, maxAttempts int) ([]models.OutboxEvent, error)
	MarkPublished(tx *gorm.DB, id uuid.UUID) error
	MarkFailed(tx *gorm.DB, id uuid.UUID, cause error) error
	MarkTerminal(tx *gorm.DB, id uuid.UUID, cause error, attempts int) error
	DeadLettered(tx *gorm.DB, limit int) ([]models.OutboxEvent, error)
}

type ServiceParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         dbClient
	Broker     broker
	Repository outboxRepository
	Registry   *outbox.DecoderRegistry
	Metrics    *metrics.RelayMetrics
}

// Service drains outbox_events into per-event-type Redis streams.
type Service struct {
	logg         *logger.Logger
	db           dbClient
	broker       broker
	repo         outboxRepository
	registry     *outbox.DecoderRegistry
	metrics      *metrics.RelayMetrics
	batchSize    int
	maxAttempts  int
	pollInterval time.Duration
	streamMaxLen int64
}

func NewService(params ServiceParams) (*Service, error) {
	if params.Config == nil {
		return nil, errors.New("config is required")
	}
	if params.Logger == nil {
		return nil, errors.New("logger is required")
	}
	if params.DB == nil {
		return nil, errors.New("database client is required")
	}
	if params.Broker == nil {
		return nil, errors.New("broker is required")
	}
	if params.Repository == nil {
		return nil, errors.New("outbox repository is required")
	}

	registry := params.Registry
	if registry == nil {
		registry = outbox.DefaultRegistry()
	}
	batch := params.Config.Outbox.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	poll := params.Config.Outbox.PollInterval
	if poll <= 0 {
		poll = defaultPollInterval
	}
	maxAttempts := params.Config.Outbox.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = defaultMaxAttempts
	}

	return &Service{
		logg:         params.Logger,
		db:           params.DB,
		broker:       params.Broker,
		repo:         params.Repository,
		registry:     registry,
		metrics:      params.Metrics,
		batchSize:    batch,
		maxAttempts:  maxAttempts,
		pollInterval: poll,
		streamMaxLen: params.Config.Outbox.StreamMaxLen,
	}, nil
}

func (s *Service) ensureReadiness(ctx context.Context) error {
	if err := pingDependency(ctx, s.logg, "database", s.db.Ping); err != nil {
		return err
	}
	return pingDependency(ctx, s.logg, "redis", s.broker.Ping)
}

func pingDependency(ctx context.Context, logg *logger.Logger, name string, fn func(context.Context) error) error {
	if err := fn(ctx); err != nil {
		logg.Error(ctx, fmt.Sprintf("%s ping failed", name), err)
		return fmt.Errorf("%s ping failed: %w", name, err)
	}
	return nil
}

// reportDeadLetters logs a sample of dead-lettered events so operators see
// the backlog on every restart. Failures here never block the relay.
func (s *Service) reportDeadLetters(ctx context.Context) int {
	dead, err := s.repo.DeadLettered(nil, deadLetterSample)
	if err != nil {
		s.logg.Warn(s.logg.WithField(ctx, "error", err.Error()), "outbox dead-letter scan failed")
		return 0
	}
	for _, event := range dead {
		fields := s.eventFields(event)
		if event.LastError != nil {
			fields["last_error"] = *event.LastError
		}
		s.logg.Warn(s.logg.WithFields(ctx, fields), "outbox event dead-lettered")
	}
	return len(dead)
}

// Run polls until ctx is cancelled. A batch that delivered everything it
// fetched is followed immediately by the next one. An empty poll sleeps for
// the poll interval; a batch with publish failures or a bookkeeping error
// backs off exponentially so an outage does not burn the attempt budget.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}

	if err := s.ensureReadiness(ctx); err != nil {
		return err
	}
	s.reportDeadLetters(ctx)

	backoff := s.pollInterval
	for {
		select {
		case <-ctx.Done():
			s.logg.Info(ctx, "outbox relay context canceled")
			return ctx.Err()
		default:
		}

		outcome, err := s.processBatch(ctx)
		switch {
		case err != nil:
			s.logg.Error(ctx, "outbox relay batch error", err)
		case outcome.failed > 0:
			s.logg.Warn(s.logg.WithFields(ctx, map[string]any{
				"fetched": outcome.fetched,
				"failed":  outcome.failed,
			}), "outbox relay backing off after publish failures")
		case outcome.fetched > 0:
			backoff = s.pollInterval
			continue
		default:
			backoff = s.pollInterval
			if err := s.sleep(ctx, withJitter(s.pollInterval)); err != nil {
				return err
			}
			continue
		}

		backoff = nextBackoff(backoff, s.pollInterval, maxBackoff)
		if err := s.sleep(ctx, withJitter(backoff)); err != nil {
			return err
		}
	}
}

// batchOutcome counts what one poll fetched and how many of those events
// failed to publish.
type batchOutcome struct {
	fetched int
	failed  int
}

func (s *Service) processBatch(ctx context.Context) (batchOutcome, error) {
	started := time.Now()
	var outcome batchOutcome
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		outcome = batchOutcome{}
		events, err := s.repo.FetchUnpublished(tx, s.batchSize, s.maxAttempts)
		if err != nil {
			return err
		}
		outcome.fetched = len(events)
		for _, event := range events {
			failed, err := s.relay(ctx, tx, event)
			if err != nil {
				return err
			}
			if failed {
				outcome.failed++
			}
		}
		return nil
	})
	if outcome.fetched > 0 {
		s.metrics.ObserveBatch(time.Since(started))
	}
	return outcome, err
}

// relay appends one event to its stream and records the outcome. failed
// reports a publish error, whether or not the event was dead-lettered for
// it. Only bookkeeping failures are returned as errors.
func (s *Service) relay(ctx context.Context, tx *gorm.DB, event models.OutboxEvent) (failed bool, err error) {
	fields := s.eventFields(event)

	envelope, err := outbox.DecodeEnvelope(event.Payload)
	if err == nil {
		_, err = s.registry.Decode(event.EventType, envelope.Version, envelope.Data)
	}
	if err != nil {
		return false, s.handleTerminal(ctx, tx, event, fmt.Errorf("undecodable payload: %w", err), fields)
	}
	fields["event_id"] = envelope.EventID

	stream := s.broker.EventStream(string(event.EventType))
	fields["stream"] = stream

	publishCtx, cancel := context.WithTimeout(ctx, defaultPublishTimeout)
	entryID, err := s.broker.AppendEvent(publishCtx, stream, s.streamMaxLen, pkgredis.StreamEvent{
		EventID:   envelope.EventID,
		EventType: string(event.EventType),
		Payload:   event.Payload,
	})
	cancel()
	if err != nil {
		s.metrics.IncFailed(string(event.EventType))
		nextAttempt := event.AttemptCount + 1
		fields["attempt_count"] = nextAttempt
		if nextAttempt >= s.maxAttempts {
			fields["terminal_reason"] = "max_attempts"
			return true, s.handleTerminal(ctx, tx, event, fmt.Errorf("max publish attempts reached: %w", err), fields)
		}

		ctxWithFields := s.logg.WithFields(ctx, fields)
		ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
		s.logg.Warn(ctxWithFields, "outbox publish failed")
		if markErr := s.repo.MarkFailed(tx, event.ID, err); markErr != nil {
			return true, fmt.Errorf("mark failure %s: %w", event.ID, markErr)
		}
		return true, nil
	}

	if markErr := s.repo.MarkPublished(tx, event.ID); markErr != nil {
		return false, fmt.Errorf("mark published %s: %w", event.ID, markErr)
	}
	s.metrics.IncPublished(string(event.EventType))
	fields["entry_id"] = entryID
	s.logg.Info(s.logg.WithFields(ctx, fields), "outbox event published")
	return false, nil
}

func (s *Service) handleTerminal(ctx context.Context, tx *gorm.DB, event models.OutboxEvent, err error, fields map[string]any) error {
	ctxWithFields := s.logg.WithFields(ctx, fields)
	ctxWithFields = s.logg.WithField(ctxWithFields, "error", err.Error())
	s.logg.Warn(ctxWithFields, "outbox event will not be retried")

	if markErr := s.repo.MarkTerminal(tx, event.ID, err, s.maxAttempts); markErr != nil {
		return fmt.Errorf("mark terminal %s: %w", event.ID, markErr)
	}
	return nil
}

func (s *Service) eventFields(event models.OutboxEvent) map[string]any {
	fields := map[string]any{
		"outbox_id":      event.ID.String(),
		"event_type":     event.EventType,
		"aggregate_type": event.AggregateType,
		"aggregate_id":   event.AggregateID.String(),
		"batch_size":     s.batchSize,
		"attempt_count":  event.AttemptCount,
	}
	if event.LastError != nil {
		fields["last_error"] = *event.LastError
	}
	return fields
}

func (s *Service) sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func nextBackoff(current, base, max time.Duration) time.Duration {
	if current <= 0 {
		current = base
	}
	next := current * 2
	if next > max {
		return max
	}
	return next
}

func withJitter(d time.Duration) time.Duration {
	if d <= 0 {
		return 0
	}
	jitter := time.Duration(jitterSource.Int63n(int64(jitterWindow)))
	return d + jitter
}
