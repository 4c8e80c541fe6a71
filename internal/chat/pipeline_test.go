package chat

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/service"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memStore struct {
	mu       sync.Mutex
	sessions map[uuid.UUID]*domain.ChatSession
	messages []*domain.Message
	active   map[uuid.UUID]bool
	outbox   int
	clock    time.Time

	userErr      error
	assistantErr error
}

func newMemStore() *memStore {
	return &memStore{
		sessions: map[uuid.UUID]*domain.ChatSession{},
		active:   map[uuid.UUID]bool{},
		clock:    time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Millisecond)
	return s.clock
}

func (s *memStore) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := &domain.ChatSession{ID: uuid.New(), UserID: userID, Title: title, CreatedAt: s.tick()}
	s.sessions[sess.ID] = sess
	return sess, nil
}

func (s *memStore) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok || sess.UserID != userID {
		return nil, domain.ErrSessionNotFound
	}
	return sess, nil
}

func (s *memStore) RenameSession(ctx context.Context, userID, sessionID uuid.UUID, title string) (*domain.ChatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess := s.sessions[sessionID]
	sess.Title = title
	return sess, nil
}

func (s *memStore) CountMessages(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return int64(len(s.bySession(sessionID))), nil
}

func (s *memStore) AddUserMessage(ctx context.Context, sessionID uuid.UUID, content string) (*domain.Message, error) {
	if s.userErr != nil {
		return nil, s.userErr
	}
	return s.add(sessionID, content, true, nil), nil
}

func (s *memStore) AddAssistantMessage(ctx context.Context, userID, sessionID uuid.UUID, content string, sources []domain.Source) (*domain.Message, error) {
	if s.assistantErr != nil {
		return nil, s.assistantErr
	}
	msg := s.add(sessionID, content, false, sources)
	s.mu.Lock()
	s.outbox++
	s.mu.Unlock()
	return msg, nil
}

func (s *memStore) add(sessionID uuid.UUID, content string, isUser bool, sources []domain.Source) *domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg := &domain.Message{
		ID:         uuid.New(),
		SessionID:  sessionID,
		Content:    content,
		IsUser:     isUser,
		HasSources: len(sources) > 0,
		Sources:    sources,
		CreatedAt:  s.tick(),
	}
	s.messages = append(s.messages, msg)
	return msg
}

func (s *memStore) bySession(sessionID uuid.UUID) []*domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*domain.Message
	for _, m := range s.messages {
		if m.SessionID == sessionID {
			out = append(out, m)
		}
	}
	return out
}

func (s *memStore) TryAcquire(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.active[sessionID] {
		return false, nil
	}
	s.active[sessionID] = true
	return true, nil
}

func (s *memStore) Release(ctx context.Context, sessionID uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.active, sessionID)
	return nil
}

type fakeGateway struct {
	calls []service.ChatRequest
	reply *service.ChatReply
	err   error
}

func (g *fakeGateway) Chat(ctx context.Context, req service.ChatRequest) (*service.ChatReply, error) {
	g.calls = append(g.calls, req)
	if g.err != nil {
		return nil, g.err
	}
	return g.reply, nil
}

type fakeQuota struct {
	status *domain.UsageStatus
	err    error
	calls  int
}

func (q *fakeQuota) Status(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error) {
	q.calls++
	return q.status, q.err
}

func roomy() *fakeQuota {
	return &fakeQuota{status: &domain.UsageStatus{PlanID: "free", Limit: 50, Remaining: 40}}
}

func newSession(t *testing.T, store *memStore, user uuid.UUID) *domain.ChatSession {
	t.Helper()
	sess, err := store.CreateSession(context.Background(), user, config.DefaultSessionTitle)
	require.NoError(t, err)
	return sess
}

func TestSend_HappyPathPersistsPairInOrder(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "answer"}}
	user := uuid.New()
	sess := newSession(t, store, user)

	p := NewPipeline(store, gw, roomy(), true)
	res, err := p.Send(context.Background(), SendRequest{UserID: user, SessionID: sess.ID, Text: "  hello  ", Tools: domain.DefaultToolSet()})
	require.NoError(t, err)

	msgs := store.bySession(sess.ID)
	require.Len(t, msgs, 2)
	assert.True(t, msgs[0].IsUser)
	assert.Equal(t, "hello", msgs[0].Content)
	assert.False(t, msgs[1].IsUser)
	assert.Equal(t, "answer", msgs[1].Content)
	assert.True(t, msgs[0].CreatedAt.Before(msgs[1].CreatedAt))

	assert.Equal(t, msgs[0].ID, res.UserMessage.ID)
	assert.Equal(t, msgs[1].ID, res.AssistantMessage.ID)
	assert.False(t, res.Degraded)
	assert.Equal(t, 1, store.outbox)
	assert.Empty(t, store.active, "slot released")

	require.Len(t, gw.calls, 1)
	assert.Equal(t, "hello", gw.calls[0].Message)
	assert.Equal(t, sess.ID, gw.calls[0].SessionID)
}

func TestSend_EmptyInputDoesNothing(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t "} {
		store := newMemStore()
		gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
		quota := roomy()

		_, err := NewPipeline(store, gw, quota, true).Send(context.Background(), SendRequest{UserID: uuid.New(), Text: text})
		assert.ErrorIs(t, err, domain.ErrEmptyMessage)
		assert.Empty(t, gw.calls)
		assert.Empty(t, store.messages)
		assert.Empty(t, store.sessions)
		assert.Zero(t, quota.calls)
	}
}

func TestSend_GatewayFailureUsesFallback(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{err: errors.New("connection refused")}
	user := uuid.New()
	sess := newSession(t, store, user)

	res, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: user, SessionID: sess.ID, Text: "hi"})
	require.NoError(t, err)

	assert.True(t, res.Degraded)
	assert.Equal(t, config.FallbackReply, res.AssistantMessage.Content)
	assert.False(t, res.AssistantMessage.HasSources)
	assert.Empty(t, res.AssistantMessage.Sources)
	assert.Len(t, store.bySession(sess.ID), 2)
}

func TestSend_UserPersistenceFailureSkipsGateway(t *testing.T) {
	store := newMemStore()
	store.userErr = errors.New("insert failed")
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	user := uuid.New()
	sess := newSession(t, store, user)

	_, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: user, SessionID: sess.ID, Text: "hi"})
	require.Error(t, err)
	assert.ErrorContains(t, err, "save user message")
	assert.Empty(t, gw.calls)
	assert.Empty(t, store.messages)
	assert.Empty(t, store.active)
}

func TestSend_AssistantPersistenceFailureSurfaces(t *testing.T) {
	store := newMemStore()
	store.assistantErr = errors.New("insert failed")
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	user := uuid.New()
	sess := newSession(t, store, user)

	_, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: user, SessionID: sess.ID, Text: "hi"})
	assert.ErrorContains(t, err, "save assistant message")
	assert.Len(t, store.bySession(sess.ID), 1)
	assert.Zero(t, store.outbox)
}

func TestSend_SourcesArePersisted(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{
		Message: "X",
		Sources: []domain.Source{{ID: "1", Title: "T", URL: "u", Snippet: "s", Confidence: 0.92}},
	}}
	user := uuid.New()
	sess := newSession(t, store, user)

	res, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: user, SessionID: sess.ID, Text: "q"})
	require.NoError(t, err)

	msg := res.AssistantMessage
	assert.Equal(t, "X", msg.Content)
	assert.True(t, msg.HasSources)
	require.Len(t, msg.Sources, 1)
	assert.Equal(t, 0.92, msg.Sources[0].Confidence)
}

func TestSend_QuotaExhaustedBlocksBeforePersistence(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	quota := &fakeQuota{status: &domain.UsageStatus{Limit: 50, Used: 50, Remaining: 0}}

	_, err := NewPipeline(store, gw, quota, true).Send(context.Background(), SendRequest{UserID: uuid.New(), Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrQuotaExceeded)
	assert.Empty(t, store.sessions)
	assert.Empty(t, gw.calls)
}

func TestSend_SoftQuotaStillSends(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	quota := &fakeQuota{status: &domain.UsageStatus{Limit: 50, Used: 50, Remaining: 0}}

	res, err := NewPipeline(store, gw, quota, false).Send(context.Background(), SendRequest{UserID: uuid.New(), Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Usage.Remaining)
}

func TestSend_MeterFailureDoesNotAffectMessages(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	quota := &fakeQuota{err: errors.New("meter down")}
	user := uuid.New()

	res, err := NewPipeline(store, gw, quota, true).Send(context.Background(), SendRequest{UserID: user, Text: "hi"})
	require.NoError(t, err)
	assert.Nil(t, res.Usage)
	assert.Len(t, store.messages, 2)
}

func TestSend_UnknownSession(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	owner := uuid.New()
	sess := newSession(t, store, owner)

	_, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: uuid.New(), SessionID: sess.ID, Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
	assert.Empty(t, gw.calls)
}

func TestSend_InFlightGuard(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	user := uuid.New()
	sess := newSession(t, store, user)
	store.active[sess.ID] = true

	_, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: user, SessionID: sess.ID, Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrActiveRequest)
	assert.Empty(t, store.messages)
}

func TestSend_InvalidTools(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	tools := domain.ToolSet{Web: &domain.WebSearchConfig{MaxResults: 99}}

	_, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: uuid.New(), Text: "hi", Tools: tools})
	assert.ErrorIs(t, err, domain.ErrInvalidToolConfig)
	assert.Empty(t, gw.calls)
}

func TestSend_NewSessionIsCreatedAndTitled(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	text := strings.Repeat("é", 70)

	res, err := NewPipeline(store, gw, roomy(), true).Send(context.Background(), SendRequest{UserID: uuid.New(), Text: text})
	require.NoError(t, err)

	require.Len(t, store.sessions, 1)
	assert.Equal(t, strings.Repeat("é", 60), res.Session.Title)
	assert.Equal(t, res.Session.ID, res.UserMessage.SessionID)
	assert.Equal(t, res.Session.ID, res.AssistantMessage.SessionID)
}

func TestSend_LaterMessagesKeepTitle(t *testing.T) {
	store := newMemStore()
	gw := &fakeGateway{reply: &service.ChatReply{Message: "x"}}
	user := uuid.New()
	p := NewPipeline(store, gw, roomy(), true)

	first, err := p.Send(context.Background(), SendRequest{UserID: user, Text: "first question"})
	require.NoError(t, err)
	second, err := p.Send(context.Background(), SendRequest{UserID: user, SessionID: first.Session.ID, Text: "second"})
	require.NoError(t, err)

	assert.Equal(t, "first question", second.Session.Title)
	assert.Len(t, store.bySession(first.Session.ID), 4)
}

func TestSessionTitle(t *testing.T) {
	assert.Equal(t, "a b", SessionTitle(" a \n b "))
	assert.Equal(t, strings.Repeat("x", 60), SessionTitle(strings.Repeat("x", 61)))
}
