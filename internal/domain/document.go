package domain

import (
	"time"

	"github.com/google/uuid"
)

type Document struct {
	ID         uuid.UUID
	UserID     uuid.UUID
	Name       string
	Type       string
	SizeBytes  int64
	Tags       []string
	Collection string
	ExternalID string
	SourceURL  string
	CreatedAt  time.Time
}
