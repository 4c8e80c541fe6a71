package service

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/elli/internal/repository/sqlc"
)

type ProfileService struct {
	db      *pgxpool.Pool
	queries *sqlc.Queries
}

func NewProfileService(db *pgxpool.Pool, queries *sqlc.Queries) *ProfileService {
	return &ProfileService{db: db, queries: queries}
}

// Ensure records the authenticated user's profile and reports whether it was
// created by this call.
func (s *ProfileService) Ensure(ctx context.Context, userID uuid.UUID, email string) (bool, error) {
	created, err := s.queries.UpsertProfile(ctx, sqlc.UpsertProfileParams{ID: userID, Email: email})
	if err != nil {
		return false, fmt.Errorf("upsert profile: %w", err)
	}
	return created, nil
}
