package memory

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/pkg/errors"
)

type outboxRepository struct {
	s *Store
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	cp := *event
	r.s.outbox = append(r.s.outbox, &cp)
	return nil
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	now := r.s.now()
	expired := now.Add(-lease)
	var claimed []*model.OutboxEvent
	for _, e := range r.s.outbox {
		if len(claimed) >= limit {
			break
		}
		stale := e.Status == model.OutboxStatusProcessing && e.UpdatedAt.Before(expired)
		if e.Status != model.OutboxStatusPending && !stale {
			continue
		}
		e.Status = model.OutboxStatusProcessing
		e.UpdatedAt = now
		cp := *e
		claimed = append(claimed, &cp)
	}
	return claimed, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, e := range r.s.outbox {
		if e.ID != id {
			continue
		}
		now := r.s.now()
		e.Status = status
		e.ErrorMessage = errMsg
		e.UpdatedAt = now
		switch status {
		case model.OutboxStatusProcessed:
			e.ProcessedAt = &now
		case model.OutboxStatusPending:
			e.RetryCount++
		}
		return nil
	}
	return errors.NotFound("outbox event", nil)
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	kept := r.s.outbox[:0]
	var deleted int64
	for _, e := range r.s.outbox {
		if e.Status == model.OutboxStatusProcessed && e.ProcessedAt != nil && e.ProcessedAt.Before(before) {
			deleted++
			continue
		}
		kept = append(kept, e)
	}
	r.s.outbox = kept
	return deleted, nil
}
