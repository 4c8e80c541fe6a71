package sqlc

import (
	"context"

	"github.com/google/uuid"
)

const upsertProfile = `-- name: UpsertProfile :one
INSERT INTO profiles (id, email)
VALUES ($1, $2)
ON CONFLICT (id) DO UPDATE SET email = EXCLUDED.email
RETURNING (xmax = 0)::boolean AS inserted
`

type UpsertProfileParams struct {
	ID    uuid.UUID `json:"id"`
	Email string    `json:"email"`
}

func (q *Queries) UpsertProfile(ctx context.Context, arg UpsertProfileParams) (bool, error) {
	row := q.db.QueryRow(ctx, upsertProfile, arg.ID, arg.Email)
	var inserted bool
	err := row.Scan(&inserted)
	return inserted, err
}
