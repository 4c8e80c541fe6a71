package sqlc

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const cleanupStaleRequests = `-- name: CleanupStaleRequests :exec
DELETE FROM active_requests
WHERE started_at < $1
`

func (q *Queries) CleanupStaleRequests(ctx context.Context, startedAt pgtype.Timestamptz) error {
	_, err := q.db.Exec(ctx, cleanupStaleRequests, startedAt)
	return err
}

const removeActiveRequest = `-- name: RemoveActiveRequest :exec
DELETE FROM active_requests
WHERE session_id = $1
`

func (q *Queries) RemoveActiveRequest(ctx context.Context, sessionID uuid.UUID) error {
	_, err := q.db.Exec(ctx, removeActiveRequest, sessionID)
	return err
}

const trySetActiveRequest = `-- name: TrySetActiveRequest :one
INSERT INTO active_requests (session_id)
VALUES ($1)
ON CONFLICT (session_id) DO NOTHING
RETURNING session_id
`

func (q *Queries) TrySetActiveRequest(ctx context.Context, sessionID uuid.UUID) (uuid.UUID, error) {
	row := q.db.QueryRow(ctx, trySetActiveRequest, sessionID)
	var session_id uuid.UUID
	err := row.Scan(&session_id)
	return session_id, err
}
