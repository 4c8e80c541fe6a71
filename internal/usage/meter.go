// Package usage meters chat sends against the user's plan allowance.
package usage

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
)

// Store is the persistence the meter needs. service.UsageService satisfies it.
type Store interface {
	ActivePlan(ctx context.Context, userID uuid.UUID) (*domain.Plan, error)
	IncrementUsage(ctx context.Context, userID uuid.UUID, planID string, period domain.BillingPeriod) (int, error)
	CurrentUsage(ctx context.Context, userID uuid.UUID, period domain.BillingPeriod) (int, error)
	// PendingEvents counts unprocessed sends made during period.
	PendingEvents(ctx context.Context, userID uuid.UUID, period domain.BillingPeriod) (int, error)
}

type Meter struct {
	store Store
	now   func() time.Time
}

func NewMeter(store Store) *Meter {
	return &Meter{store: store, now: time.Now}
}

// RecordSend counts one send in the current billing period and returns the
// resulting allowance.
func (m *Meter) RecordSend(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error) {
	return m.RecordSendAt(ctx, userID, m.now())
}

// RecordSendAt counts a send made at the given time in the billing period it
// belongs to.
func (m *Meter) RecordSendAt(ctx context.Context, userID uuid.UUID, at time.Time) (*domain.UsageStatus, error) {
	plan, err := m.store.ActivePlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve plan: %w", err)
	}

	used, err := m.store.IncrementUsage(ctx, userID, plan.ID, domain.PeriodFor(at))
	if err != nil {
		return nil, fmt.Errorf("increment usage: %w", err)
	}
	return StatusFor(plan, used), nil
}

// Status reports the allowance without counting a send. Sends still waiting
// in the outbox are included so a burst cannot outrun the worker.
func (m *Meter) Status(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error) {
	plan, err := m.store.ActivePlan(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("resolve plan: %w", err)
	}

	period := domain.PeriodFor(m.now())
	used, err := m.store.CurrentUsage(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("current usage: %w", err)
	}
	pending, err := m.store.PendingEvents(ctx, userID, period)
	if err != nil {
		return nil, fmt.Errorf("pending usage: %w", err)
	}
	return StatusFor(plan, used+pending), nil
}

// StatusFor derives the allowance of plan after used sends.
func StatusFor(plan *domain.Plan, used int) *domain.UsageStatus {
	if plan.Unlimited() {
		return &domain.UsageStatus{
			PlanID:    plan.ID,
			Used:      used,
			Limit:     config.UnlimitedChats,
			Remaining: config.UnlimitedChats,
			Unlimited: true,
		}
	}

	remaining := max(0, plan.ChatLimit-used)
	return &domain.UsageStatus{
		PlanID:    plan.ID,
		Used:      used,
		Limit:     plan.ChatLimit,
		Remaining: remaining,
		Notices:   Notices(remaining),
	}
}

// Notices returns the user-facing quota notices for a remaining allowance.
// At zero both the warning and the limit-reached error are raised.
func Notices(remaining int) []domain.Notice {
	var notices []domain.Notice
	if remaining <= config.LowQuotaThreshold {
		notices = append(notices, domain.Notice{
			Level:   domain.NoticeWarning,
			Title:   "Chat Limit Warning",
			Message: fmt.Sprintf("You have %d questions remaining in your current plan. Consider upgrading for more.", remaining),
		})
	}
	if remaining <= 0 {
		notices = append(notices, domain.Notice{
			Level:   domain.NoticeError,
			Title:   "Chat Limit Reached",
			Message: "You've reached your monthly question limit. Please upgrade your plan to continue chatting.",
		})
	}
	return notices
}
