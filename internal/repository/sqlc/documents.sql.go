package sqlc

import (
	"context"

	"github.com/google/uuid"
)

const createDocument = `-- name: CreateDocument :one
INSERT INTO documents (user_id, name, type, size_bytes, tags, collection, external_id, source_url)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
RETURNING id, user_id, name, type, size_bytes, tags, collection, external_id, source_url, created_at
`

type CreateDocumentParams struct {
	UserID     uuid.UUID `json:"user_id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	SizeBytes  int64     `json:"size_bytes"`
	Tags       []string  `json:"tags"`
	Collection string    `json:"collection"`
	ExternalID string    `json:"external_id"`
	SourceUrl  string    `json:"source_url"`
}

func (q *Queries) CreateDocument(ctx context.Context, arg CreateDocumentParams) (Document, error) {
	row := q.db.QueryRow(ctx, createDocument,
		arg.UserID,
		arg.Name,
		arg.Type,
		arg.SizeBytes,
		arg.Tags,
		arg.Collection,
		arg.ExternalID,
		arg.SourceUrl,
	)
	var i Document
	err := row.Scan(
		&i.ID,
		&i.UserID,
		&i.Name,
		&i.Type,
		&i.SizeBytes,
		&i.Tags,
		&i.Collection,
		&i.ExternalID,
		&i.SourceUrl,
		&i.CreatedAt,
	)
	return i, err
}

const deleteDocument = `-- name: DeleteDocument :execrows
DELETE FROM documents
WHERE id = $1 AND user_id = $2
`

type DeleteDocumentParams struct {
	ID     uuid.UUID `json:"id"`
	UserID uuid.UUID `json:"user_id"`
}

func (q *Queries) DeleteDocument(ctx context.Context, arg DeleteDocumentParams) (int64, error) {
	result, err := q.db.Exec(ctx, deleteDocument, arg.ID, arg.UserID)
	if err != nil {
		return 0, err
	}
	return result.RowsAffected(), nil
}

const listDocumentsByUser = `-- name: ListDocumentsByUser :many
SELECT id, user_id, name, type, size_bytes, tags, collection, external_id, source_url, created_at FROM documents
WHERE user_id = $1
ORDER BY created_at DESC
`

func (q *Queries) ListDocumentsByUser(ctx context.Context, userID uuid.UUID) ([]Document, error) {
	rows, err := q.db.Query(ctx, listDocumentsByUser, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Document
	for rows.Next() {
		var i Document
		if err := rows.Scan(
			&i.ID,
			&i.UserID,
			&i.Name,
			&i.Type,
			&i.SizeBytes,
			&i.Tags,
			&i.Collection,
			&i.ExternalID,
			&i.SourceUrl,
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
