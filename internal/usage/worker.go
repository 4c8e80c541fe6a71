package usage

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
)

// Outbox is the queue of usage events written alongside assistant messages.
type Outbox interface {
	Claim(ctx context.Context, batchSize int, lease time.Duration) ([]domain.UsageEvent, error)
	Complete(ctx context.Context, id int64) error
	Reschedule(ctx context.Context, id int64, next time.Time, lastErr string, dead bool) error
}

// Recorder counts a send in the billing period of its timestamp.
type Recorder interface {
	RecordSendAt(ctx context.Context, userID uuid.UUID, at time.Time) (*domain.UsageStatus, error)
}

// Alerter receives operational events from the worker.
type Alerter interface {
	QuotaReached(userID uuid.UUID, status *domain.UsageStatus)
	EventParked(event domain.UsageEvent, err error)
}

// Worker drains the usage outbox. Delivery is at-least-once: an event whose
// completion fails is recorded again after its lease expires.
type Worker struct {
	outbox   Outbox
	recorder Recorder
	alerter  Alerter
	interval time.Duration
	batch    int
	now      func() time.Time
}

func NewWorker(outbox Outbox, recorder Recorder, alerter Alerter) *Worker {
	return &Worker{
		outbox:   outbox,
		recorder: recorder,
		alerter:  alerter,
		interval: config.OutboxPollInterval,
		batch:    config.OutboxBatchSize,
		now:      time.Now,
	}
}

// Run polls until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			if _, err := w.ProcessBatch(ctx); err != nil && ctx.Err() == nil {
				slog.Error("process usage outbox", "error", err)
			}
		}
	}
}

// ProcessBatch applies one batch of due events and returns how many were
// recorded successfully.
func (w *Worker) ProcessBatch(ctx context.Context) (int, error) {
	events, err := w.outbox.Claim(ctx, w.batch, config.OutboxLease)
	if err != nil {
		return 0, err
	}

	done := 0
	for _, ev := range events {
		if ctx.Err() != nil {
			break
		}

		at := ev.CreatedAt
		if at.IsZero() {
			at = w.now()
		}
		status, err := w.recorder.RecordSendAt(ctx, ev.UserID, at)
		if err != nil {
			w.fail(ctx, ev, err)
			continue
		}

		if err := w.outbox.Complete(ctx, ev.ID); err != nil {
			slog.Error("complete usage event", "event_id", ev.ID, "error", err)
			continue
		}
		done++

		if w.alerter != nil && !status.Unlimited && status.Used == status.Limit {
			w.alerter.QuotaReached(ev.UserID, status)
		}
	}
	return done, nil
}

func (w *Worker) fail(ctx context.Context, ev domain.UsageEvent, cause error) {
	attempts := ev.Attempts + 1
	dead := attempts >= config.OutboxMaxAttempts
	next := w.now().Add(Backoff(attempts))

	if dead {
		slog.Error("usage event parked", "event_id", ev.ID, "user_id", ev.UserID, "attempts", attempts, "error", cause)
		if w.alerter != nil {
			w.alerter.EventParked(ev, cause)
		}
	} else {
		slog.Warn("usage event failed", "event_id", ev.ID, "attempts", attempts, "retry_at", next, "error", cause)
	}

	if err := w.outbox.Reschedule(ctx, ev.ID, next, cause.Error(), dead); err != nil {
		slog.Error("reschedule usage event", "event_id", ev.ID, "error", err)
	}
}

// Backoff is the delay before retry number attempts (1-based).
func Backoff(attempts int) time.Duration {
	if attempts < 1 {
		attempts = 1
	}
	d := config.OutboxBackoffBase
	for i := 1; i < attempts; i++ {
		d *= 2
		if d >= config.OutboxBackoffMax {
			return config.OutboxBackoffMax
		}
	}
	return d
}
