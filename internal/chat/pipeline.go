// Package chat runs one user turn end to end: persist the question, ask the
// gateway, persist the answer and report the resulting allowance.
package chat

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/service"
)

type Store interface {
	CreateSession(ctx context.Context, userID uuid.UUID, title string) (*domain.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.ChatSession, error)
	RenameSession(ctx context.Context, userID, sessionID uuid.UUID, title string) (*domain.ChatSession, error)
	CountMessages(ctx context.Context, sessionID uuid.UUID) (int64, error)
	AddUserMessage(ctx context.Context, sessionID uuid.UUID, content string) (*domain.Message, error)
	// AddAssistantMessage stores the reply and enqueues its usage event atomically.
	AddAssistantMessage(ctx context.Context, userID, sessionID uuid.UUID, content string, sources []domain.Source) (*domain.Message, error)
	TryAcquire(ctx context.Context, sessionID uuid.UUID) (bool, error)
	Release(ctx context.Context, sessionID uuid.UUID) error
}

type Gateway interface {
	Chat(ctx context.Context, req service.ChatRequest) (*service.ChatReply, error)
}

type Quota interface {
	Status(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error)
}

type Pipeline struct {
	store     Store
	gateway   Gateway
	quota     Quota
	hardQuota bool
}

func NewPipeline(store Store, gateway Gateway, quota Quota, hardQuota bool) *Pipeline {
	return &Pipeline{store: store, gateway: gateway, quota: quota, hardQuota: hardQuota}
}

type SendRequest struct {
	UserID    uuid.UUID
	SessionID uuid.UUID // uuid.Nil starts a new session
	Text      string
	Tools     domain.ToolSet
}

type SendResult struct {
	Session          *domain.ChatSession
	UserMessage      *domain.Message
	AssistantMessage *domain.Message
	Usage            *domain.UsageStatus // nil when the meter could not be read
	Degraded         bool                // the gateway failed and the fallback reply was used
}

func (p *Pipeline) Send(ctx context.Context, req SendRequest) (*SendResult, error) {
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return nil, domain.ErrEmptyMessage
	}
	if err := req.Tools.Validate(); err != nil {
		return nil, err
	}

	var session *domain.ChatSession
	if req.SessionID != uuid.Nil {
		s, err := p.store.GetSession(ctx, req.UserID, req.SessionID)
		if err != nil {
			return nil, err
		}
		session = s
	}

	if p.hardQuota {
		if err := p.checkQuota(ctx, req.UserID); err != nil {
			return nil, err
		}
	}

	if session == nil {
		s, err := p.store.CreateSession(ctx, req.UserID, config.DefaultSessionTitle)
		if err != nil {
			return nil, fmt.Errorf("create session: %w", err)
		}
		session = s
	}

	acquired, err := p.store.TryAcquire(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("acquire session: %w", err)
	}
	if !acquired {
		return nil, domain.ErrActiveRequest
	}
	defer func() {
		if err := p.store.Release(context.WithoutCancel(ctx), session.ID); err != nil {
			slog.Error("release session", "session_id", session.ID, "error", err)
		}
	}()

	prior, err := p.store.CountMessages(ctx, session.ID)
	if err != nil {
		return nil, fmt.Errorf("count messages: %w", err)
	}

	userMsg, err := p.store.AddUserMessage(ctx, session.ID, text)
	if err != nil {
		return nil, fmt.Errorf("save user message: %w", err)
	}

	// The turn is committed from here on; a client disconnect must not leave
	// a question without an answer.
	ctx = context.WithoutCancel(ctx)

	result := &SendResult{Session: session, UserMessage: userMsg}

	reply, err := p.gateway.Chat(ctx, service.ChatRequest{
		SessionID: session.ID,
		Message:   text,
		Tools:     req.Tools,
	})
	if err != nil {
		slog.Warn("gateway failed, using fallback reply", "session_id", session.ID, "error", err)
		reply = service.FallbackReply()
		result.Degraded = true
	}

	assistantMsg, err := p.store.AddAssistantMessage(ctx, req.UserID, session.ID, reply.Message, clampSources(reply.Sources))
	if err != nil {
		return nil, fmt.Errorf("save assistant message: %w", err)
	}
	result.AssistantMessage = assistantMsg

	if prior == 0 && session.Title == config.DefaultSessionTitle {
		renamed, err := p.store.RenameSession(ctx, req.UserID, session.ID, SessionTitle(text))
		if err != nil {
			slog.Error("rename session", "session_id", session.ID, "error", err)
		} else {
			result.Session = renamed
		}
	}

	status, err := p.quota.Status(ctx, req.UserID)
	if err != nil {
		slog.Error("read usage after send", "user_id", req.UserID, "error", err)
	} else {
		result.Usage = status
	}

	return result, nil
}

// checkQuota blocks a send once a limited plan is used up. An unreadable
// meter lets the send through.
func (p *Pipeline) checkQuota(ctx context.Context, userID uuid.UUID) error {
	status, err := p.quota.Status(ctx, userID)
	if err != nil {
		slog.Error("read usage before send", "user_id", userID, "error", err)
		return nil
	}
	if status.Exhausted() {
		return domain.ErrQuotaExceeded
	}
	return nil
}

// SessionTitle derives a session title from its first message.
func SessionTitle(text string) string {
	text = strings.Join(strings.Fields(text), " ")
	runes := []rune(text)
	if len(runes) > config.SessionTitleMaxLen {
		return strings.TrimSpace(string(runes[:config.SessionTitleMaxLen]))
	}
	return text
}

func clampSources(sources []domain.Source) []domain.Source {
	if len(sources) == 0 {
		return nil
	}
	out := make([]domain.Source, len(sources))
	for i, s := range sources {
		s.Confidence = domain.ClampConfidence(s.Confidence)
		out[i] = s
	}
	return out
}
