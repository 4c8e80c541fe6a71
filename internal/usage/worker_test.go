package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

type rescheduled struct {
	id      int64
	next    time.Time
	lastErr string
	dead    bool
}

type fakeOutbox struct {
	mu          sync.Mutex
	events      []domain.UsageEvent
	completed   []int64
	rescheduled []rescheduled
	claimErr    error
}

func (f *fakeOutbox) Claim(ctx context.Context, batchSize int, lease time.Duration) ([]domain.UsageEvent, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.claimErr != nil {
		return nil, f.claimErr
	}
	n := min(batchSize, len(f.events))
	out := f.events[:n]
	f.events = f.events[n:]
	return out, nil
}

func (f *fakeOutbox) Complete(ctx context.Context, id int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.completed = append(f.completed, id)
	return nil
}

func (f *fakeOutbox) Reschedule(ctx context.Context, id int64, next time.Time, lastErr string, dead bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rescheduled = append(f.rescheduled, rescheduled{id: id, next: next, lastErr: lastErr, dead: dead})
	return nil
}

type fakeAlerter struct {
	quota  []uuid.UUID
	parked []int64
}

func (a *fakeAlerter) QuotaReached(userID uuid.UUID, status *domain.UsageStatus) {
	a.quota = append(a.quota, userID)
}

func (a *fakeAlerter) EventParked(event domain.UsageEvent, err error) {
	a.parked = append(a.parked, event.ID)
}

func TestProcessBatch_RecordsAndCompletes(t *testing.T) {
	store := newFakeStore(2)
	user := uuid.New()
	outbox := &fakeOutbox{events: []domain.UsageEvent{
		{ID: 1, UserID: user},
		{ID: 2, UserID: user},
		{ID: 3, UserID: user},
	}}
	alerter := &fakeAlerter{}

	w := NewWorker(outbox, NewMeter(store), alerter)
	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, n)
	assert.Equal(t, []int64{1, 2, 3}, outbox.completed)
	assert.Equal(t, 3, store.counts[user])
	assert.Equal(t, []uuid.UUID{user}, alerter.quota, "alert fires once when the limit is hit")
}

func TestProcessBatch_LateEventCountsInItsOwnMonth(t *testing.T) {
	store := newFakeStore(50)
	sentAt := time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC)
	outbox := &fakeOutbox{events: []domain.UsageEvent{{ID: 4, UserID: uuid.New(), CreatedAt: sentAt}}}

	meter := NewMeter(store)
	meter.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 5, 0, time.UTC) }

	n, err := NewWorker(outbox, meter, nil).ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
	assert.Equal(t, []time.Time{time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}, store.periods)
}

func TestProcessBatch_FailureReschedulesWithBackoff(t *testing.T) {
	store := newFakeStore(50)
	store.writeErr = errors.New("db down")
	outbox := &fakeOutbox{events: []domain.UsageEvent{{ID: 7, UserID: uuid.New(), Attempts: 2}}}
	now := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)

	w := NewWorker(outbox, NewMeter(store), nil)
	w.now = func() time.Time { return now }

	n, err := w.ProcessBatch(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0, n)
	assert.Empty(t, outbox.completed)

	require.Len(t, outbox.rescheduled, 1)
	r := outbox.rescheduled[0]
	assert.Equal(t, int64(7), r.id)
	assert.False(t, r.dead)
	assert.Equal(t, now.Add(Backoff(3)), r.next)
	assert.Contains(t, r.lastErr, "db down")
}

func TestProcessBatch_ParksAfterMaxAttempts(t *testing.T) {
	store := newFakeStore(50)
	store.writeErr = errors.New("db down")
	outbox := &fakeOutbox{events: []domain.UsageEvent{{ID: 9, UserID: uuid.New(), Attempts: config.OutboxMaxAttempts - 1}}}
	alerter := &fakeAlerter{}

	_, err := NewWorker(outbox, NewMeter(store), alerter).ProcessBatch(context.Background())
	require.NoError(t, err)

	require.Len(t, outbox.rescheduled, 1)
	assert.True(t, outbox.rescheduled[0].dead)
	assert.Equal(t, []int64{9}, alerter.parked)
}

func TestProcessBatch_ClaimError(t *testing.T) {
	outbox := &fakeOutbox{claimErr: errors.New("boom")}
	_, err := NewWorker(outbox, NewMeter(newFakeStore(1)), nil).ProcessBatch(context.Background())
	assert.Error(t, err)
}

func TestBackoff(t *testing.T) {
	assert.Equal(t, config.OutboxBackoffBase, Backoff(0))
	assert.Equal(t, config.OutboxBackoffBase, Backoff(1))
	assert.Equal(t, 2*config.OutboxBackoffBase, Backoff(2))
	assert.Equal(t, 8*config.OutboxBackoffBase, Backoff(4))
	assert.Equal(t, config.OutboxBackoffMax, Backoff(40))
}

func TestRun_DrainsAndStops(t *testing.T) {
	store := newFakeStore(50)
	user := uuid.New()
	outbox := &fakeOutbox{events: []domain.UsageEvent{{ID: 1, UserID: user}}}

	w := NewWorker(outbox, NewMeter(store), nil)
	w.interval = 5 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	require.Eventually(t, func() bool {
		outbox.mu.Lock()
		defer outbox.mu.Unlock()
		return len(outbox.completed) == 1
	}, time.Second, 5*time.Millisecond)

	cancel()
	assert.NoError(t, <-done)
}
