package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/repository/sqlc"
)

// UsageService owns plans, per-period chat counters and the usage outbox.
type UsageService struct {
	db      *pgxpool.Pool
	queries *sqlc.Queries
	plans   *PlansCache
}

func NewUsageService(db *pgxpool.Pool, queries *sqlc.Queries) *UsageService {
	return &UsageService{
		db:      db,
		queries: queries,
		plans:   NewPlansCache(config.PlanCacheDuration),
	}
}

func (s *UsageService) ListPlans(ctx context.Context) ([]domain.Plan, error) {
	if cached := s.plans.Get(); cached != nil {
		return cached, nil
	}

	rows, err := s.queries.ListPlans(ctx)
	if err != nil {
		return nil, fmt.Errorf("list plans: %w", err)
	}
	plans := make([]domain.Plan, len(rows))
	for i, r := range rows {
		plans[i] = *rowToPlan(r)
	}

	s.plans.Set(plans)
	return plans, nil
}

func (s *UsageService) GetPlan(ctx context.Context, id string) (*domain.Plan, error) {
	if p, ok := s.plans.Lookup(id); ok {
		return p, nil
	}
	row, err := s.queries.GetPlan(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrPlanNotFound
		}
		return nil, fmt.Errorf("get plan: %w", err)
	}
	return rowToPlan(row), nil
}

// ActivePlan resolves the plan of the newest active subscription, falling
// back to the free plan.
func (s *UsageService) ActivePlan(ctx context.Context, userID uuid.UUID) (*domain.Plan, error) {
	planID, err := s.queries.GetActiveSubscriptionPlanID(ctx, userID)
	if err != nil {
		if !errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("get subscription: %w", err)
		}
		planID = config.DefaultPlanID
	}

	plan, err := s.GetPlan(ctx, planID)
	if errors.Is(err, domain.ErrPlanNotFound) && planID != config.DefaultPlanID {
		slog.Warn("subscription references unknown plan, using default", "plan", planID, "user_id", userID)
		return s.GetPlan(ctx, config.DefaultPlanID)
	}
	return plan, err
}

func (s *UsageService) IncrementUsage(ctx context.Context, userID uuid.UUID, planID string, period domain.BillingPeriod) (int, error) {
	count, err := s.queries.IncrementChatUsage(ctx, sqlc.IncrementChatUsageParams{
		UserID:             userID,
		PlanID:             planID,
		BillingPeriodStart: timeToPgTimestamptz(period.Start),
		BillingPeriodEnd:   timeToPgTimestamptz(period.End),
	})
	if err != nil {
		return 0, fmt.Errorf("increment chat usage: %w", err)
	}
	return int(count), nil
}

func (s *UsageService) CurrentUsage(ctx context.Context, userID uuid.UUID, period domain.BillingPeriod) (int, error) {
	count, err := s.queries.GetChatUsage(ctx, sqlc.GetChatUsageParams{
		UserID:             userID,
		BillingPeriodStart: timeToPgTimestamptz(period.Start),
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return 0, nil
		}
		return 0, fmt.Errorf("get chat usage: %w", err)
	}
	return int(count), nil
}

// PendingEvents counts sends made during period that are not yet applied to
// the counter.
func (s *UsageService) PendingEvents(ctx context.Context, userID uuid.UUID, period domain.BillingPeriod) (int, error) {
	n, err := s.queries.CountPendingUsageEvents(ctx, sqlc.CountPendingUsageEventsParams{
		UserID:      userID,
		PeriodStart: timeToPgTimestamptz(period.Start),
		PeriodEnd:   timeToPgTimestamptz(period.End),
	})
	if err != nil {
		return 0, fmt.Errorf("count pending usage events: %w", err)
	}
	return int(n), nil
}

func (s *UsageService) Claim(ctx context.Context, batchSize int, lease time.Duration) ([]domain.UsageEvent, error) {
	rows, err := s.queries.ClaimUsageEvents(ctx, sqlc.ClaimUsageEventsParams{
		LockedUntil: timeToPgTimestamptz(time.Now().Add(lease)),
		BatchSize:   int32(batchSize),
	})
	if err != nil {
		return nil, fmt.Errorf("claim usage events: %w", err)
	}
	events := make([]domain.UsageEvent, len(rows))
	for i, r := range rows {
		events[i] = domain.UsageEvent{
			ID:        r.ID,
			UserID:    r.UserID,
			MessageID: r.MessageID,
			Attempts:  int(r.Attempts),
			CreatedAt: pgTimestamptzToTime(r.CreatedAt),
		}
	}
	return events, nil
}

func (s *UsageService) Complete(ctx context.Context, id int64) error {
	if err := s.queries.CompleteUsageEvent(ctx, id); err != nil {
		return fmt.Errorf("complete usage event %d: %w", id, err)
	}
	return nil
}

func (s *UsageService) Reschedule(ctx context.Context, id int64, next time.Time, lastErr string, dead bool) error {
	if err := s.queries.RescheduleUsageEvent(ctx, sqlc.RescheduleUsageEventParams{
		ID:            id,
		NextAttemptAt: timeToPgTimestamptz(next),
		LastError:     lastErr,
		Dead:          dead,
	}); err != nil {
		return fmt.Errorf("reschedule usage event %d: %w", id, err)
	}
	return nil
}
