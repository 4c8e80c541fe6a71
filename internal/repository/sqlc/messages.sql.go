package sqlc

import (
	"context"

	"github.com/google/uuid"
)

const countSessionMessages = `-- name: CountSessionMessages :one
SELECT count(*) FROM messages
WHERE session_id = $1
`

func (q *Queries) CountSessionMessages(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	row := q.db.QueryRow(ctx, countSessionMessages, sessionID)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const createFeedback = `-- name: CreateFeedback :one
INSERT INTO message_feedback (message_id, user_id, is_positive, comment)
VALUES ($1, $2, $3, $4)
ON CONFLICT (message_id, user_id) DO NOTHING
RETURNING id, message_id, user_id, is_positive, comment, created_at
`

type CreateFeedbackParams struct {
	MessageID  uuid.UUID `json:"message_id"`
	UserID     uuid.UUID `json:"user_id"`
	IsPositive bool      `json:"is_positive"`
	Comment    string    `json:"comment"`
}

func (q *Queries) CreateFeedback(ctx context.Context, arg CreateFeedbackParams) (MessageFeedback, error) {
	row := q.db.QueryRow(ctx, createFeedback,
		arg.MessageID,
		arg.UserID,
		arg.IsPositive,
		arg.Comment,
	)
	var i MessageFeedback
	err := row.Scan(
		&i.ID,
		&i.MessageID,
		&i.UserID,
		&i.IsPositive,
		&i.Comment,
		&i.CreatedAt,
	)
	return i, err
}

const getMessageForUser = `-- name: GetMessageForUser :one
SELECT m.id, m.seq, m.session_id, m.content, m.is_user, m.has_sources, m.sources, m.created_at FROM messages m
JOIN chat_sessions s ON s.id = m.session_id
WHERE m.id = $1 AND s.user_id = $2
`

type GetMessageForUserParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) GetMessageForUser(ctx context.Context, arg GetMessageForUserParams) (Message, error) {
	row := q.db.QueryRow(ctx, getMessageForUser, arg.ID, arg.UserID)
	var i Message
	err := row.Scan(
		&i.ID,
		&i.Seq,
		&i.SessionID,
		&i.Content,
		&i.IsUser,
		&i.HasSources,
		&i.Sources,
		&i.CreatedAt,
	)
	return i, err
}

const insertMessage = `-- name: InsertMessage :one
INSERT INTO messages (session_id, content, is_user, has_sources, sources)
VALUES ($1, $2, $3, $4, $5)
RETURNING id, seq, session_id, content, is_user, has_sources, sources, created_at
`

type InsertMessageParams struct {
	SessionID  uuid.UUID `json:"session_id"`
	Content    string    `json:"content"`
	IsUser     bool      `json:"is_user"`
	HasSources bool      `json:"has_sources"`
	Sources    []byte    `json:"sources"`
}

func (q *Queries) InsertMessage(ctx context.Context, arg InsertMessageParams) (Message, error) {
	row := q.db.QueryRow(ctx, insertMessage,
		arg.SessionID,
		arg.Content,
		arg.IsUser,
		arg.HasSources,
		arg.Sources,
	)
	var i Message
	err := row.Scan(
		&i.ID,
		&i.Seq,
		&i.SessionID,
		&i.Content,
		&i.IsUser,
		&i.HasSources,
		&i.Sources,
		&i.CreatedAt,
	)
	return i, err
}

const listSessionMessages = `-- name: ListSessionMessages :many
SELECT id, seq, session_id, content, is_user, has_sources, sources, created_at FROM messages
WHERE session_id = $1
ORDER BY created_at ASC, seq ASC
`

func (q *Queries) ListSessionMessages(ctx context.Context, sessionID uuid.UUID) ([]Message, error) {
	rows, err := q.db.Query(ctx, listSessionMessages, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Message
	for rows.Next() {
		var i Message
		if err := rows.Scan(
			&i.ID,
			&i.Seq,
			&i.SessionID,
			&i.Content,
			&i.IsUser,
			&i.HasSources,
			&i.Sources,
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
