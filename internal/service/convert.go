package service

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgtype"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/repository/sqlc"
	"github.com/shopspring/decimal"
)

// pgTimestamptzToTime converts pgtype.Timestamptz to time.Time.
func pgTimestamptzToTime(ts pgtype.Timestamptz) time.Time {
	if ts.Valid {
		return ts.Time
	}
	return time.Time{}
}

// timeToPgTimestamptz converts time.Time to pgtype.Timestamptz.
func timeToPgTimestamptz(t time.Time) pgtype.Timestamptz {
	return pgtype.Timestamptz{Time: t, Valid: !t.IsZero()}
}

// centsToDecimal converts minor currency units to a decimal amount.
func centsToDecimal(cents int64) decimal.Decimal {
	return decimal.New(cents, -2)
}

func rowToSession(row sqlc.ChatSession) *domain.ChatSession {
	return &domain.ChatSession{
		ID:        row.ID,
		UserID:    row.UserID,
		Title:     row.Title,
		CreatedAt: pgTimestamptzToTime(row.CreatedAt),
		UpdatedAt: pgTimestamptzToTime(row.UpdatedAt),
	}
}

func rowToMessage(row sqlc.Message) (*domain.Message, error) {
	sources, err := unmarshalSources(row.Sources)
	if err != nil {
		return nil, fmt.Errorf("decode sources of message %s: %w", row.ID, err)
	}
	return &domain.Message{
		ID:         row.ID,
		SessionID:  row.SessionID,
		Content:    row.Content,
		IsUser:     row.IsUser,
		HasSources: row.HasSources,
		Sources:    sources,
		CreatedAt:  pgTimestamptzToTime(row.CreatedAt),
	}, nil
}

func rowToPlan(row sqlc.Plan) *domain.Plan {
	return &domain.Plan{
		ID:            row.ID,
		Name:          row.Name,
		Product:       row.Product,
		Amount:        centsToDecimal(row.AmountCents),
		Currency:      row.Currency,
		Interval:      row.BillingInterval,
		ChatLimit:     int(row.ChatLimit),
		DocumentPages: int(row.DocumentPages),
		HistoryDays:   int(row.HistoryDays),
		Active:        row.Active,
		CreatedAt:     pgTimestamptzToTime(row.CreatedAt),
	}
}

func rowToDocument(row sqlc.Document) *domain.Document {
	tags := row.Tags
	if tags == nil {
		tags = []string{}
	}
	return &domain.Document{
		ID:         row.ID,
		UserID:     row.UserID,
		Name:       row.Name,
		Type:       row.Type,
		SizeBytes:  row.SizeBytes,
		Tags:       tags,
		Collection: row.Collection,
		ExternalID: row.ExternalID,
		SourceURL:  row.SourceUrl,
		CreatedAt:  pgTimestamptzToTime(row.CreatedAt),
	}
}

func marshalSources(sources []domain.Source) ([]byte, error) {
	if sources == nil {
		sources = []domain.Source{}
	}
	return json.Marshal(sources)
}

func unmarshalSources(raw []byte) ([]domain.Source, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var sources []domain.Source
	if err := json.Unmarshal(raw, &sources); err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, nil
	}
	return sources, nil
}
