package worker

import (
	"context"
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/pkg/messaging"
	"github.com/medbook/booking-api/pkg/metrics"
)

type OutboxProcessorConfig struct {
	BatchSize     int
	PollInterval  time.Duration
	RetryAttempts int
	// ClaimLease is how long a PROCESSING row stays claimed before another
	// relay may pick it up.
	ClaimLease time.Duration
}

// OutboxProcessor relays pending outbox rows to the broker, one channel per
// event type. A row that fails to publish goes back to PENDING until it has
// used up RetryAttempts, then it is parked as FAILED.
type OutboxProcessor struct {
	repo    repository.OutboxRepository
	broker  messaging.Broker
	config  OutboxProcessorConfig
	logger  zerolog.Logger
	metrics *metrics.Metrics
}

func NewOutboxProcessor(
	repo repository.OutboxRepository,
	broker messaging.Broker,
	config OutboxProcessorConfig,
	logger zerolog.Logger,
	metrics *metrics.Metrics,
) (*OutboxProcessor, error) {
	if config.BatchSize <= 0 {
		return nil, fmt.Errorf("batch size must be greater than 0")
	}
	if config.PollInterval <= 0 {
		return nil, fmt.Errorf("poll interval must be greater than 0")
	}
	if config.RetryAttempts <= 0 {
		return nil, fmt.Errorf("retry attempts must be greater than 0")
	}
	if config.ClaimLease <= 0 {
		return nil, fmt.Errorf("claim lease must be greater than 0")
	}

	return &OutboxProcessor{
		repo:    repo,
		broker:  broker,
		config:  config,
		logger:  logger.With().Str("component", "outbox-processor").Logger(),
		metrics: metrics,
	}, nil
}

// Start polls until ctx is cancelled.
func (p *OutboxProcessor) Start(ctx context.Context) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	p.logger.Info().Dur("poll_interval", p.config.PollInterval).Msg("Starting outbox processor")

	for {
		select {
		case <-ctx.Done():
			p.logger.Info().Msg("Shutting down outbox processor")
			return
		case <-ticker.C:
			if _, err := p.ProcessBatch(ctx); err != nil {
				p.logger.Error().Err(err).Msg("Failed to process events")
			}
		}
	}
}

// ProcessBatch relays one batch and returns how many events were published.
func (p *OutboxProcessor) ProcessBatch(ctx context.Context) (int, error) {
	timer := prometheus.NewTimer(p.metrics.OutboxProcessingLatency)
	defer timer.ObserveDuration()

	events, err := p.repo.ClaimPending(ctx, p.config.BatchSize, p.config.ClaimLease)
	if err != nil {
		return 0, fmt.Errorf("failed to claim pending events: %w", err)
	}

	published := 0
	for _, event := range events {
		// Rows left unprocessed here are reclaimed once their lease expires.
		if ctx.Err() != nil {
			break
		}
		if err := p.processEvent(ctx, event); err != nil {
			p.logger.Warn().Err(err).
				Str("event_id", event.ID.String()).
				Str("event_type", event.EventType).
				Int("retry_count", event.RetryCount).
				Msg("Failed to publish event")
			continue
		}
		published++
	}
	return published, nil
}

func (p *OutboxProcessor) processEvent(ctx context.Context, event *model.OutboxEvent) error {
	publishErr := p.broker.Publish(ctx, event.EventType, event.Payload)
	// The outcome must be recorded even when shutdown cancels ctx mid-publish.
	recordCtx := context.WithoutCancel(ctx)
	if publishErr == nil {
		p.metrics.OutboxEventsProcessed.Inc()
		if err := p.repo.UpdateStatus(recordCtx, event.ID, model.OutboxStatusProcessed, nil); err != nil {
			p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to mark event processed")
		}
		return nil
	}

	errStr := publishErr.Error()
	next := model.OutboxStatusPending
	if event.RetryCount+1 >= p.config.RetryAttempts {
		next = model.OutboxStatusFailed
		p.metrics.OutboxEventsFailed.Inc()
	} else {
		p.metrics.OutboxRetries.WithLabelValues(event.EventType).Inc()
	}
	if err := p.repo.UpdateStatus(recordCtx, event.ID, next, &errStr); err != nil {
		p.logger.Error().Err(err).Str("event_id", event.ID.String()).Msg("Failed to update event status")
	}
	return publishErr
}
