package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/medbook/booking-api/internal/model"
	"github.com/medbook/booking-api/internal/repository"
	"github.com/medbook/booking-api/pkg/errors"
)

type outboxRepository struct {
	BaseRepository
}

func NewOutboxRepository(db *sqlx.DB) repository.OutboxRepository {
	return &outboxRepository{NewBaseRepository(db)}
}

func (r *outboxRepository) Create(ctx context.Context, event *model.OutboxEvent) error {
	if event == nil || event.Payload == nil {
		return fmt.Errorf("event payload cannot be nil")
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO outbox_events (id, event_type, payload, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		event.ID, event.EventType, []byte(event.Payload), event.Status, event.CreatedAt, event.UpdatedAt,
	)
	return mapError(err, "failed to create outbox event")
}

func (r *outboxRepository) ClaimPending(ctx context.Context, limit int, lease time.Duration) ([]*model.OutboxEvent, error) {
	events := []*model.OutboxEvent{}
	err := r.db.SelectContext(ctx, &events, `
		UPDATE outbox_events
		SET status = $1, updated_at = NOW()
		WHERE id IN (
			SELECT id FROM outbox_events
			WHERE status = $2
				OR (status = $1 AND updated_at < NOW() - $4::bigint * INTERVAL '1 millisecond')
			ORDER BY created_at ASC
			LIMIT $3
			FOR UPDATE SKIP LOCKED
		)
		RETURNING id, event_type, payload, status, error_message, retry_count,
			created_at, updated_at, processed_at`,
		model.OutboxStatusProcessing, model.OutboxStatusPending, limit, lease.Milliseconds(),
	)
	if err != nil {
		return nil, mapError(err, "failed to claim outbox events")
	}
	return events, nil
}

func (r *outboxRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status model.OutboxStatus, errMsg *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE outbox_events
		SET status = $1,
			error_message = $2,
			retry_count = retry_count + CASE WHEN $1 = 'PENDING' THEN 1 ELSE 0 END,
			processed_at = CASE WHEN $1 = 'PROCESSED' THEN NOW() ELSE processed_at END,
			updated_at = NOW()
		WHERE id = $3`, status, errMsg, id)
	if err != nil {
		return mapError(err, "failed to update outbox event")
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return errors.NotFound("outbox event", nil)
	}
	return nil
}

func (r *outboxRepository) DeleteProcessedBefore(ctx context.Context, before time.Time) (int64, error) {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM outbox_events
		WHERE status = 'PROCESSED'
		AND processed_at < $1`, before)
	if err != nil {
		return 0, mapError(err, "failed to delete processed events")
	}
	return res.RowsAffected()
}
