package sqlc

import (
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

type ActiveRequest struct {
	SessionID uuid.UUID          `json:"session_id"`
	StartedAt pgtype.Timestamptz `json:"started_at"`
}

type ChatSession struct {
	ID        uuid.UUID          `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	Title     string             `json:"title"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
	UpdatedAt pgtype.Timestamptz `json:"updated_at"`
}

type ChatUsage struct {
	ID                 int64              `json:"id"`
	UserID             uuid.UUID          `json:"user_id"`
	PlanID             string             `json:"plan_id"`
	ChatCount          int32              `json:"chat_count"`
	BillingPeriodStart pgtype.Timestamptz `json:"billing_period_start"`
	BillingPeriodEnd   pgtype.Timestamptz `json:"billing_period_end"`
	CreatedAt          pgtype.Timestamptz `json:"created_at"`
	UpdatedAt          pgtype.Timestamptz `json:"updated_at"`
}

type Document struct {
	ID         uuid.UUID          `json:"id"`
	UserID     uuid.UUID          `json:"user_id"`
	Name       string             `json:"name"`
	Type       string             `json:"type"`
	SizeBytes  int64              `json:"size_bytes"`
	Tags       []string           `json:"tags"`
	Collection string             `json:"collection"`
	ExternalID string             `json:"external_id"`
	SourceUrl  string             `json:"source_url"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

type Message struct {
	ID         uuid.UUID          `json:"id"`
	Seq        int64              `json:"seq"`
	SessionID  uuid.UUID          `json:"session_id"`
	Content    string             `json:"content"`
	IsUser     bool               `json:"is_user"`
	HasSources bool               `json:"has_sources"`
	Sources    []byte             `json:"sources"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

type MessageFeedback struct {
	ID         int64              `json:"id"`
	MessageID  uuid.UUID          `json:"message_id"`
	UserID     uuid.UUID          `json:"user_id"`
	IsPositive bool               `json:"is_positive"`
	Comment    string             `json:"comment"`
	CreatedAt  pgtype.Timestamptz `json:"created_at"`
}

type Plan struct {
	ID              string             `json:"id"`
	Name            string             `json:"name"`
	Product         string             `json:"product"`
	AmountCents     int64              `json:"amount_cents"`
	Currency        string             `json:"currency"`
	BillingInterval string             `json:"billing_interval"`
	ChatLimit       int32              `json:"chat_limit"`
	DocumentPages   int32              `json:"document_pages"`
	HistoryDays     int32              `json:"history_days"`
	Active          bool               `json:"active"`
	CreatedAt       pgtype.Timestamptz `json:"created_at"`
}

type Profile struct {
	ID        uuid.UUID          `json:"id"`
	Email     string             `json:"email"`
	FullName  string             `json:"full_name"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type Subscription struct {
	ID        int64              `json:"id"`
	UserID    uuid.UUID          `json:"user_id"`
	PlanID    string             `json:"plan_id"`
	Status    string             `json:"status"`
	CreatedAt pgtype.Timestamptz `json:"created_at"`
}

type UsageOutbox struct {
	ID            int64              `json:"id"`
	UserID        uuid.UUID          `json:"user_id"`
	MessageID     uuid.UUID          `json:"message_id"`
	Attempts      int32              `json:"attempts"`
	NextAttemptAt pgtype.Timestamptz `json:"next_attempt_at"`
	LockedUntil   pgtype.Timestamptz `json:"locked_until"`
	LastError     string             `json:"last_error"`
	Dead          bool               `json:"dead"`
	ProcessedAt   pgtype.Timestamptz `json:"processed_at"`
	CreatedAt     pgtype.Timestamptz `json:"created_at"`
}
