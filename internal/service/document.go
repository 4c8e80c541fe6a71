package service

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/repository/sqlc"
)

// DocumentIngester is the part of the gateway that accepts documents.
type DocumentIngester interface {
	UploadDocument(ctx context.Context, filename string, file io.Reader, metadata map[string]any) (string, error)
	UploadDocumentURL(ctx context.Context, url string, metadata map[string]any) (string, error)
}

type DocumentService struct {
	db       *pgxpool.Pool
	queries  *sqlc.Queries
	ingester DocumentIngester
}

func NewDocumentService(db *pgxpool.Pool, queries *sqlc.Queries, ingester DocumentIngester) *DocumentService {
	return &DocumentService{db: db, queries: queries, ingester: ingester}
}

type UploadInput struct {
	UserID     uuid.UUID
	Name       string
	Size       int64
	Tags       []string
	Collection string
	Body       io.Reader
}

func (s *DocumentService) Upload(ctx context.Context, in UploadInput) (*domain.Document, error) {
	collection := normalizeCollection(in.Collection)
	tags := normalizeTags(in.Tags)

	externalID, err := s.ingester.UploadDocument(ctx, in.Name, in.Body, documentMetadata(in.UserID, collection, tags))
	if err != nil {
		return nil, fmt.Errorf("ingest document: %w", err)
	}

	row, err := s.queries.CreateDocument(ctx, sqlc.CreateDocumentParams{
		UserID:     in.UserID,
		Name:       in.Name,
		Type:       documentType(in.Name),
		SizeBytes:  in.Size,
		Tags:       tags,
		Collection: collection,
		ExternalID: externalID,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return rowToDocument(row), nil
}

func (s *DocumentService) UploadURL(ctx context.Context, userID uuid.UUID, url string, tags []string, collection string) (*domain.Document, error) {
	collection = normalizeCollection(collection)
	tags = normalizeTags(tags)

	externalID, err := s.ingester.UploadDocumentURL(ctx, url, documentMetadata(userID, collection, tags))
	if err != nil {
		return nil, fmt.Errorf("ingest url: %w", err)
	}

	row, err := s.queries.CreateDocument(ctx, sqlc.CreateDocumentParams{
		UserID:     userID,
		Name:       url,
		Type:       "url",
		Tags:       tags,
		Collection: collection,
		ExternalID: externalID,
		SourceUrl:  url,
	})
	if err != nil {
		return nil, fmt.Errorf("create document: %w", err)
	}
	return rowToDocument(row), nil
}

func (s *DocumentService) List(ctx context.Context, userID uuid.UUID) ([]domain.Document, error) {
	rows, err := s.queries.ListDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("list documents: %w", err)
	}
	docs := make([]domain.Document, 0, len(rows))
	for _, row := range rows {
		docs = append(docs, *rowToDocument(row))
	}
	return docs, nil
}

func (s *DocumentService) Delete(ctx context.Context, userID, documentID uuid.UUID) error {
	n, err := s.queries.DeleteDocument(ctx, sqlc.DeleteDocumentParams{ID: documentID, UserID: userID})
	if err != nil {
		return fmt.Errorf("delete document: %w", err)
	}
	if n == 0 {
		return domain.ErrDocumentNotFound
	}
	return nil
}

func documentMetadata(userID uuid.UUID, collection string, tags []string) map[string]any {
	return map[string]any{
		"user_id":    userID.String(),
		"collection": collection,
		"tags":       tags,
	}
}

func normalizeCollection(c string) string {
	c = strings.TrimSpace(c)
	if c == "" {
		return config.DefaultCollection
	}
	return c
}

func normalizeTags(tags []string) []string {
	out := make([]string, 0, len(tags))
	seen := make(map[string]bool, len(tags))
	for _, t := range tags {
		t = strings.TrimSpace(t)
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func documentType(name string) string {
	ext := strings.TrimPrefix(strings.ToLower(filepath.Ext(name)), ".")
	if ext == "" {
		return "file"
	}
	return ext
}
