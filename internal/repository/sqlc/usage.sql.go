package sqlc

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const countPendingUsageEvents = `-- name: CountPendingUsageEvents :one
SELECT count(*) FROM usage_outbox
WHERE user_id = $1
  AND processed_at IS NULL AND NOT dead
  AND created_at BETWEEN $2 AND $3
`

type CountPendingUsageEventsParams struct {
	UserID      uuid.UUID          `json:"user_id"`
	PeriodStart pgtype.Timestamptz `json:"period_start"`
	PeriodEnd   pgtype.Timestamptz `json:"period_end"`
}

func (q *Queries) CountPendingUsageEvents(ctx context.Context, arg CountPendingUsageEventsParams) (int64, error) {
	row := q.db.QueryRow(ctx, countPendingUsageEvents, arg.UserID, arg.PeriodStart, arg.PeriodEnd)
	var count int64
	err := row.Scan(&count)
	return count, err
}

const getActiveSubscriptionPlanID = `-- name: GetActiveSubscriptionPlanID :one
SELECT plan_id FROM subscriptions
WHERE user_id = $1 AND status = 'active'
ORDER BY created_at DESC
LIMIT 1
`

func (q *Queries) GetActiveSubscriptionPlanID(ctx context.Context, userID uuid.UUID) (string, error) {
	row := q.db.QueryRow(ctx, getActiveSubscriptionPlanID, userID)
	var plan_id string
	err := row.Scan(&plan_id)
	return plan_id, err
}

const getChatUsage = `-- name: GetChatUsage :one
SELECT chat_count FROM chat_usage
WHERE user_id = $1 AND billing_period_start = $2
`

type GetChatUsageParams struct {
	UserID             uuid.UUID          `json:"user_id"`
	BillingPeriodStart pgtype.Timestamptz `json:"billing_period_start"`
}

func (q *Queries) GetChatUsage(ctx context.Context, arg GetChatUsageParams) (int32, error) {
	row := q.db.QueryRow(ctx, getChatUsage, arg.UserID, arg.BillingPeriodStart)
	var chat_count int32
	err := row.Scan(&chat_count)
	return chat_count, err
}

const getPlan = `-- name: GetPlan :one
SELECT id, name, product, amount_cents, currency, billing_interval, chat_limit, document_pages, history_days, active, created_at FROM plans
WHERE id = $1
`

func (q *Queries) GetPlan(ctx context.Context, id string) (Plan, error) {
	row := q.db.QueryRow(ctx, getPlan, id)
	var i Plan
	err := row.Scan(
		&i.ID,
		&i.Name,
		&i.Product,
		&i.AmountCents,
		&i.Currency,
		&i.BillingInterval,
		&i.ChatLimit,
		&i.DocumentPages,
		&i.HistoryDays,
		&i.Active,
		&i.CreatedAt,
	)
	return i, err
}

const incrementChatUsage = `-- name: IncrementChatUsage :one
INSERT INTO chat_usage (user_id, plan_id, chat_count, billing_period_start, billing_period_end)
VALUES ($1, $2, 1, $3, $4)
ON CONFLICT (user_id, billing_period_start)
DO UPDATE SET chat_count = chat_usage.chat_count + 1, plan_id = EXCLUDED.plan_id, updated_at = now()
RETURNING chat_count
`

type IncrementChatUsageParams struct {
	UserID             uuid.UUID          `json:"user_id"`
	PlanID             string             `json:"plan_id"`
	BillingPeriodStart pgtype.Timestamptz `json:"billing_period_start"`
	BillingPeriodEnd   pgtype.Timestamptz `json:"billing_period_end"`
}

func (q *Queries) IncrementChatUsage(ctx context.Context, arg IncrementChatUsageParams) (int32, error) {
	row := q.db.QueryRow(ctx, incrementChatUsage,
		arg.UserID,
		arg.PlanID,
		arg.BillingPeriodStart,
		arg.BillingPeriodEnd,
	)
	var chat_count int32
	err := row.Scan(&chat_count)
	return chat_count, err
}

const listPlans = `-- name: ListPlans :many
SELECT id, name, product, amount_cents, currency, billing_interval, chat_limit, document_pages, history_days, active, created_at FROM plans
WHERE active
ORDER BY amount_cents ASC, id ASC
`

func (q *Queries) ListPlans(ctx context.Context) ([]Plan, error) {
	rows, err := q.db.Query(ctx, listPlans)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Plan
	for rows.Next() {
		var i Plan
		if err := rows.Scan(
			&i.ID,
			&i.Name,
			&i.Product,
			&i.AmountCents,
			&i.Currency,
			&i.BillingInterval,
			&i.ChatLimit,
			&i.DocumentPages,
			&i.HistoryDays,
			&i.Active,
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
