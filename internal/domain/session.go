package domain

import (
	"math"
	"time"

	"github.com/google/uuid"
)

type ChatSession struct {
	ID        uuid.UUID
	UserID    uuid.UUID
	Title     string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Message is one turn of a session. Persisted messages are immutable.
type Message struct {
	ID         uuid.UUID
	SessionID  uuid.UUID
	Content    string
	IsUser     bool
	HasSources bool
	Sources    []Source
	CreatedAt  time.Time
}

// Source is a citation produced by the AI gateway.
type Source struct {
	ID         string  `json:"id"`
	Title      string  `json:"title"`
	URL        string  `json:"url"`
	Snippet    string  `json:"snippet"`
	Confidence float64 `json:"confidence"`
}

// ClampConfidence forces a confidence score into [0,1].
func ClampConfidence(v float64) float64 {
	switch {
	case math.IsNaN(v), v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

type Feedback struct {
	ID         int64
	MessageID  uuid.UUID
	UserID     uuid.UUID
	IsPositive bool
	Comment    string
	CreatedAt  time.Time
}
