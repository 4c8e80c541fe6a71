package sqlc

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const claimUsageEvents = `-- name: ClaimUsageEvents :many
UPDATE usage_outbox SET locked_until = $1
WHERE id IN (
    SELECT o.id FROM usage_outbox o
    WHERE o.processed_at IS NULL AND NOT o.dead
      AND o.next_attempt_at <= now()
      AND (o.locked_until IS NULL OR o.locked_until < now())
    ORDER BY o.id
    LIMIT $2
    FOR UPDATE SKIP LOCKED
)
RETURNING id, user_id, message_id, attempts, created_at
`

type ClaimUsageEventsParams struct {
	LockedUntil pgtype.Timestamptz `json:"locked_until"`
	BatchSize   int32              `json:"batch_size"`
}

type ClaimUsageEventsRow struct {
	ID        int64              `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	MessageID uuid.UUID          `json:"message_id"`
	Attempts  int32              `json:"attempts"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

func (q *Queries) ClaimUsageEvents(ctx context.Context, arg ClaimUsageEventsParams) ([]ClaimUsageEventsRow, error) {
	rows, err := q.db.Query(ctx, claimUsageEvents, arg.LockedUntil, arg.BatchSize)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ClaimUsageEventsRow
	for rows.Next() {
		var i ClaimUsageEventsRow
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.MessageID,
			&i.Attempts,
			&i.CreatedAt,
		); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const completeUsageEvent = `-- name: CompleteUsageEvent :exec
UPDATE usage_outbox SET processed_at = now(), locked_until = NULL
WHERE id = $1
`

func (q *Queries) CompleteUsageEvent(ctx context.Context, id int64) error {
	_, err := q.db.Exec(ctx, completeUsageEvent, id)
	return err
}

const enqueueUsageEvent = `-- name: EnqueueUsageEvent :exec
INSERT INTO usage_outbox (user_id, message_id)
VALUES ($1, $2)
`

type EnqueueUsageEventParams struct {
	UserID    uuid.UUID `json:"user_id"`
	MessageID uuid.UUID `json:"message_id"`
}

func (q *Queries) EnqueueUsageEvent(ctx context.Context, arg EnqueueUsageEventParams) error {
	_, err := q.db.Exec(ctx, enqueueUsageEvent, arg.UserID, arg.MessageID)
	return err
}

const rescheduleUsageEvent = `-- name: RescheduleUsageEvent :exec
UPDATE usage_outbox
SET attempts = attempts + 1, next_attempt_at = $2, last_error = $3, dead = $4, locked_until = NULL
WHERE id = $1
`

type RescheduleUsageEventParams struct {
	ID            int64              `json:"id"`
	NextAttemptAt pgtype.Timestamptz `json:"next_attempt_at"`
	LastError     string             `json:"last_error"`
	Dead          bool               `json:"dead"`
}

func (q *Queries) RescheduleUsageEvent(ctx context.Context, arg RescheduleUsageEventParams) error {
	_, err := q.db.Exec(ctx, rescheduleUsageEvent,
		arg.ID,
		arg.NextAttemptAt,
		arg.LastError,
		arg.Dead,
	)
	return err
}
