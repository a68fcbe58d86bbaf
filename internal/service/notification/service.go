// Package notification consumes appointment events from the broker and hands
// them to delivery sinks (live websocket push, email).
package notification

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/messaging"
	"github.com/medbook/booking-api/pkg/metrics"
)

const (
	maxRetries = 3
	retryDelay = 500 * time.Millisecond
)

// Sink delivers a cancellation notice to one channel.
type Sink interface {
	Name() string
	Deliver(ctx context.Context, event model.AppointmentCancelledEvent) error
}

type Service struct {
	broker     messaging.Broker
	sinks      []Sink
	metrics    *metrics.Metrics
	logger     zerolog.Logger
	retryDelay time.Duration
}

func NewService(broker messaging.Broker, m *metrics.Metrics, logger zerolog.Logger, sinks ...Sink) *Service {
	return &Service{
		broker:     broker,
		sinks:      sinks,
		metrics:    m,
		logger:     logger.With().Str("component", "notifications").Logger(),
		retryDelay: retryDelay,
	}
}

// Run subscribes to cancellation events and dispatches them until ctx is
// done or the subscription closes.
func (s *Service) Run(ctx context.Context) error {
	msgs, err := s.broker.Subscribe(ctx, model.EventAppointmentCancelled)
	if err != nil {
		return fmt.Errorf("failed to subscribe: %w", err)
	}
	s.logger.Info().Int("sinks", len(s.sinks)).Msg("Listening for appointment cancellations")

	for {
		select {
		case <-ctx.Done():
			return nil
		case raw, ok := <-msgs:
			if !ok {
				return nil
			}
			s.Handle(ctx, raw)
		}
	}
}

// Handle decodes one message and delivers it to every sink. A sink that
// keeps failing is logged and skipped; it never blocks the others.
func (s *Service) Handle(ctx context.Context, raw []byte) {
	var event model.AppointmentCancelledEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		s.logger.Error().Err(err).Msg("Dropping malformed cancellation event")
		return
	}

	for _, sink := range s.sinks {
		err := s.deliver(ctx, sink, event)
		status := "sent"
		if err != nil {
			status = "failed"
			s.logger.Error().Err(err).
				Str("sink", sink.Name()).
				Str("appointment_id", event.AppointmentID.String()).
				Msg("Notification delivery failed")
		}
		s.metrics.NotificationsDelivered.WithLabelValues(sink.Name(), status).Inc()
	}
}

func (s *Service) deliver(ctx context.Context, sink Sink, event model.AppointmentCancelledEvent) error {
	var err error
	for attempt := 0; attempt < maxRetries; attempt++ {
		if err = sink.Deliver(ctx, event); err == nil {
			return nil
		}
		if attempt < maxRetries-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(s.retryDelay):
			}
		}
	}
	return err
}
