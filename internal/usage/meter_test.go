package usage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeStore struct {
	mu       sync.Mutex
	plan     *domain.Plan
	counts   map[uuid.UUID]int
	periods  []time.Time // start of the period of every increment
	pending  []time.Time // creation times of unprocessed sends
	planErr  error
	writeErr error
}

func newFakeStore(limit int) *fakeStore {
	return &fakeStore{
		plan:   &domain.Plan{ID: "free", ChatLimit: limit},
		counts: map[uuid.UUID]int{},
	}
}

func (f *fakeStore) ActivePlan(ctx context.Context, userID uuid.UUID) (*domain.Plan, error) {
	if f.planErr != nil {
		return nil, f.planErr
	}
	return f.plan, nil
}

func (f *fakeStore) IncrementUsage(ctx context.Context, userID uuid.UUID, planID string, period domain.BillingPeriod) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.writeErr != nil {
		return 0, f.writeErr
	}
	f.counts[userID]++
	f.periods = append(f.periods, period.Start)
	return f.counts[userID], nil
}

func (f *fakeStore) CurrentUsage(ctx context.Context, userID uuid.UUID, period domain.BillingPeriod) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.counts[userID], nil
}

func (f *fakeStore) PendingEvents(ctx context.Context, userID uuid.UUID, period domain.BillingPeriod) (int, error) {
	n := 0
	for _, at := range f.pending {
		if !at.Before(period.Start) && !at.After(period.End) {
			n++
		}
	}
	return n, nil
}

func TestRecordSend_RemainingIsLimitMinusSends(t *testing.T) {
	for _, n := range []int{1, 10, 50, 80} {
		store := newFakeStore(50)
		meter := NewMeter(store)
		user := uuid.New()

		var status *domain.UsageStatus
		var err error
		for i := 0; i < n; i++ {
			status, err = meter.RecordSend(context.Background(), user)
			require.NoError(t, err)
		}
		assert.Equal(t, max(0, 50-n), status.Remaining, "n=%d", n)
		assert.Equal(t, 50, status.Limit)
	}
}

func TestRecordSend_LowQuotaScenario(t *testing.T) {
	store := newFakeStore(50)
	user := uuid.New()
	store.counts[user] = 45
	meter := NewMeter(store)

	status, err := meter.RecordSend(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 4, status.Remaining)
	require.Len(t, status.Notices, 1)
	assert.Equal(t, domain.NoticeWarning, status.Notices[0].Level)
	assert.Contains(t, status.Notices[0].Message, "You have 4 questions remaining")

	status, err = meter.RecordSend(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 3, status.Remaining)
}

func TestRecordSend_Unlimited(t *testing.T) {
	store := newFakeStore(-1)
	meter := NewMeter(store)

	status, err := meter.RecordSend(context.Background(), uuid.New())
	require.NoError(t, err)
	assert.True(t, status.Unlimited)
	assert.Equal(t, -1, status.Remaining)
	assert.Equal(t, -1, status.Limit)
	assert.Empty(t, status.Notices)
	assert.False(t, status.Exhausted())
}

func TestRecordSend_Errors(t *testing.T) {
	store := newFakeStore(50)
	store.planErr = errors.New("db down")
	_, err := NewMeter(store).RecordSend(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "resolve plan")

	store = newFakeStore(50)
	store.writeErr = errors.New("db down")
	_, err = NewMeter(store).RecordSend(context.Background(), uuid.New())
	assert.ErrorContains(t, err, "increment usage")
}

func TestStatus_IncludesPendingEvents(t *testing.T) {
	store := newFakeStore(50)
	user := uuid.New()
	store.counts[user] = 48
	store.pending = []time.Time{
		time.Date(2026, 3, 3, 10, 0, 0, 0, time.UTC),
		time.Date(2026, 3, 3, 11, 0, 0, 0, time.UTC),
	}

	meter := NewMeter(store)
	meter.now = func() time.Time { return time.Date(2026, 3, 4, 0, 0, 0, 0, time.UTC) }

	status, err := meter.Status(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 50, status.Used)
	assert.Equal(t, 0, status.Remaining)
	assert.True(t, status.Exhausted())
	assert.Equal(t, 48, store.counts[user], "status must not increment")
}

func TestStatus_IgnoresPendingEventsOfEarlierPeriods(t *testing.T) {
	store := newFakeStore(50)
	user := uuid.New()
	store.counts[user] = 10
	store.pending = []time.Time{
		time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 1, 0, time.UTC),
	}

	meter := NewMeter(store)
	meter.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 5, 0, time.UTC) }

	status, err := meter.Status(context.Background(), user)
	require.NoError(t, err)
	assert.Equal(t, 11, status.Used)
	assert.Equal(t, 39, status.Remaining)
}

func TestRecordSendAt_UsesPeriodOfSend(t *testing.T) {
	store := newFakeStore(50)
	meter := NewMeter(store)
	meter.now = func() time.Time { return time.Date(2026, 2, 1, 0, 0, 5, 0, time.UTC) }

	_, err := meter.RecordSendAt(context.Background(), uuid.New(), time.Date(2026, 1, 31, 23, 59, 59, 0, time.UTC))
	require.NoError(t, err)
	_, err = meter.RecordSend(context.Background(), uuid.New())
	require.NoError(t, err)

	assert.Equal(t, []time.Time{
		time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC),
	}, store.periods)
}

func TestNotices(t *testing.T) {
	assert.Empty(t, Notices(11))

	n := Notices(10)
	require.Len(t, n, 1)
	assert.Equal(t, domain.NoticeWarning, n[0].Level)

	n = Notices(0)
	require.Len(t, n, 2)
	assert.Equal(t, domain.NoticeWarning, n[0].Level)
	assert.Equal(t, domain.NoticeError, n[1].Level)
	assert.Equal(t, "Chat Limit Reached", n[1].Title)
}
