package service_test

import (
	"context"
	"io/fs"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	elli "github.com/set-night/elli"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/repository"
	"github.com/set-night/elli/internal/repository/sqlc"
	"github.com/set-night/elli/internal/service"
	"github.com/set-night/elli/internal/usage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// These tests need a disposable Postgres database in ELLI_TEST_DATABASE_URL.
func testDB(t *testing.T) (*service.SessionService, *service.UsageService) {
	t.Helper()
	url := os.Getenv("ELLI_TEST_DATABASE_URL")
	if url == "" {
		t.Skip("ELLI_TEST_DATABASE_URL not set")
	}

	migrations, err := fs.Sub(elli.MigrationsFS, "migrations")
	require.NoError(t, err)
	require.NoError(t, repository.RunMigrations(url, migrations))

	pool, err := repository.NewPool(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	queries := sqlc.New(pool)
	return service.NewSessionService(pool, queries), service.NewUsageService(pool, queries)
}

func TestMessagesRoundTrip(t *testing.T) {
	sessions, usageSvc := testDB(t)
	ctx := context.Background()
	user := uuid.New()

	sess, err := sessions.CreateSession(ctx, user, "")
	require.NoError(t, err)
	assert.Equal(t, "New Conversation", sess.Title)

	userMsg, err := sessions.AddUserMessage(ctx, sess.ID, "question")
	require.NoError(t, err)
	reply, err := sessions.AddAssistantMessage(ctx, user, sess.ID, "answer", []domain.Source{
		{ID: "s1", Title: "T", URL: "u", Snippet: "s", Confidence: 0.92},
	})
	require.NoError(t, err)

	msgs, err := sessions.Messages(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)

	assert.Equal(t, userMsg.ID, msgs[0].ID)
	assert.Equal(t, "question", msgs[0].Content)
	assert.True(t, msgs[0].IsUser)
	assert.False(t, msgs[0].HasSources)
	assert.True(t, userMsg.CreatedAt.Equal(msgs[0].CreatedAt))

	assert.Equal(t, reply.ID, msgs[1].ID)
	assert.False(t, msgs[1].IsUser)
	assert.True(t, msgs[1].HasSources)
	require.Len(t, msgs[1].Sources, 1)
	assert.Equal(t, 0.92, msgs[1].Sources[0].Confidence)
	assert.False(t, msgs[1].CreatedAt.Before(msgs[0].CreatedAt))

	pending, err := usageSvc.PendingEvents(ctx, user, domain.PeriodFor(time.Now()))
	require.NoError(t, err)
	assert.Equal(t, 1, pending)
}

func TestOutboxDrainUpdatesUsage(t *testing.T) {
	sessions, usageSvc := testDB(t)
	ctx := context.Background()
	user := uuid.New()

	sess, err := sessions.CreateSession(ctx, user, "")
	require.NoError(t, err)
	_, err = sessions.AddAssistantMessage(ctx, user, sess.ID, "a", nil)
	require.NoError(t, err)

	meter := usage.NewMeter(usageSvc)
	before, err := meter.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, before.Used)

	_, err = usage.NewWorker(usageSvc, meter, nil).ProcessBatch(ctx)
	require.NoError(t, err)

	after, err := meter.Status(ctx, user)
	require.NoError(t, err)
	assert.Equal(t, 1, after.Used)
	assert.Equal(t, 49, after.Remaining)
}

func TestActiveRequestSlot(t *testing.T) {
	sessions, _ := testDB(t)
	ctx := context.Background()

	sess, err := sessions.CreateSession(ctx, uuid.New(), "")
	require.NoError(t, err)

	ok, err := sessions.TryAcquire(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = sessions.TryAcquire(ctx, sess.ID)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, sessions.Release(ctx, sess.ID))
	ok, err = sessions.TryAcquire(ctx, sess.ID)
	require.NoError(t, err)
	assert.True(t, ok)
	require.NoError(t, sessions.Release(ctx, sess.ID))
}
