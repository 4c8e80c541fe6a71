package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

type Plan struct {
	ID            string
	Name          string
	Product       string
	Amount        decimal.Decimal // major currency units
	Currency      string
	Interval      string
	ChatLimit     int // -1 means unlimited
	DocumentPages int
	HistoryDays   int
	Active        bool
	CreatedAt     time.Time
}

func (p *Plan) Unlimited() bool {
	return p.ChatLimit < 0
}

// BillingPeriod is the calendar month a usage counter belongs to.
type BillingPeriod struct {
	Start time.Time
	End   time.Time
}

// PeriodFor returns the UTC calendar month containing t.
func PeriodFor(t time.Time) BillingPeriod {
	t = t.UTC()
	start := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
	return BillingPeriod{Start: start, End: start.AddDate(0, 1, 0).Add(-time.Nanosecond)}
}

// UsageEvent is one pending usage increment in the outbox.
type UsageEvent struct {
	ID        int64
	UserID    uuid.UUID
	MessageID uuid.UUID
	Attempts  int
	CreatedAt time.Time
}

type NoticeLevel string

const (
	NoticeWarning NoticeLevel = "warning"
	NoticeError   NoticeLevel = "error"
)

type Notice struct {
	Level   NoticeLevel `json:"level"`
	Title   string      `json:"title"`
	Message string      `json:"message"`
}

// UsageStatus is the metered allowance of a user for the current period.
type UsageStatus struct {
	PlanID    string
	Used      int
	Limit     int
	Remaining int
	Unlimited bool
	Notices   []Notice
}

func (s *UsageStatus) Exhausted() bool {
	return !s.Unlimited && s.Remaining <= 0
}
