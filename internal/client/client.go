// Package client is a small HTTP client for the elli API.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
)

// APIError is a non-2xx response.
type APIError struct {
	Status  int
	Message string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.Status, e.Message)
}

// Unwrap maps well-known statuses back to domain errors.
func (e *APIError) Unwrap() error {
	switch e.Status {
	case http.StatusPaymentRequired:
		return domain.ErrQuotaExceeded
	case http.StatusConflict:
		return domain.ErrActiveRequest
	case http.StatusNotFound:
		return domain.ErrSessionNotFound
	case http.StatusUnauthorized:
		return domain.ErrUnauthorized
	default:
		return nil
	}
}

type Client struct {
	baseURL    string
	token      string
	httpClient *http.Client
}

func New(baseURL, token string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		token:      token,
		httpClient: &http.Client{Timeout: config.RequestTimeout + 10*time.Second},
	}
}

type session struct {
	ID        uuid.UUID `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (s *session) toDomain() *domain.ChatSession {
	if s == nil {
		return nil
	}
	return &domain.ChatSession{ID: s.ID, Title: s.Title, CreatedAt: s.CreatedAt, UpdatedAt: s.UpdatedAt}
}

type message struct {
	ID         uuid.UUID       `json:"id"`
	SessionID  uuid.UUID       `json:"session_id"`
	Content    string          `json:"content"`
	IsUser     bool            `json:"is_user"`
	HasSources bool            `json:"has_sources"`
	Sources    []domain.Source `json:"sources"`
	CreatedAt  time.Time       `json:"created_at"`
}

func (m *message) toDomain() *domain.Message {
	if m == nil {
		return nil
	}
	return &domain.Message{
		ID:         m.ID,
		SessionID:  m.SessionID,
		Content:    m.Content,
		IsUser:     m.IsUser,
		HasSources: m.HasSources,
		Sources:    m.Sources,
		CreatedAt:  m.CreatedAt,
	}
}

type usage struct {
	Plan      string          `json:"plan"`
	Used      int             `json:"used"`
	Total     int             `json:"total_chats"`
	Remaining int             `json:"remaining_chats"`
	Unlimited bool            `json:"unlimited"`
	Notices   []domain.Notice `json:"notices"`
}

func (u *usage) toDomain() *domain.UsageStatus {
	if u == nil {
		return nil
	}
	return &domain.UsageStatus{
		PlanID:    u.Plan,
		Used:      u.Used,
		Limit:     u.Total,
		Remaining: u.Remaining,
		Unlimited: u.Unlimited,
		Notices:   u.Notices,
	}
}

// SendResult mirrors the server's reply to a send.
type SendResult struct {
	Session   *domain.ChatSession
	User      *domain.Message
	Assistant *domain.Message
	Usage     *domain.UsageStatus
	Degraded  bool
}

func (c *Client) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	var out []session
	if err := c.do(ctx, http.MethodGet, "/api/sessions", nil, &out); err != nil {
		return nil, err
	}
	sessions := make([]domain.ChatSession, 0, len(out))
	for i := range out {
		sessions = append(sessions, *out[i].toDomain())
	}
	return sessions, nil
}

func (c *Client) Messages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	var out []message
	if err := c.do(ctx, http.MethodGet, "/api/sessions/"+sessionID.String()+"/messages", nil, &out); err != nil {
		return nil, err
	}
	msgs := make([]domain.Message, 0, len(out))
	for i := range out {
		msgs = append(msgs, *out[i].toDomain())
	}
	return msgs, nil
}

// Send posts a message. A nil sessionID starts a new session.
func (c *Client) Send(ctx context.Context, sessionID uuid.UUID, text string, tools domain.ToolSet) (*SendResult, error) {
	target := "new"
	if sessionID != uuid.Nil {
		target = sessionID.String()
	}

	body := map[string]any{
		"text":        text,
		"ragSettings": tools.Flags(),
		"tools":       tools.Envelopes(),
	}
	var out struct {
		Session          *session `json:"session"`
		UserMessage      *message `json:"user_message"`
		AssistantMessage *message `json:"assistant_message"`
		Usage            *usage   `json:"usage"`
		Degraded         bool     `json:"degraded"`
	}
	if err := c.do(ctx, http.MethodPost, "/api/sessions/"+target+"/messages", body, &out); err != nil {
		return nil, err
	}
	return &SendResult{
		Session:   out.Session.toDomain(),
		User:      out.UserMessage.toDomain(),
		Assistant: out.AssistantMessage.toDomain(),
		Usage:     out.Usage.toDomain(),
		Degraded:  out.Degraded,
	}, nil
}

func (c *Client) Usage(ctx context.Context) (*domain.UsageStatus, error) {
	var out usage
	if err := c.do(ctx, http.MethodGet, "/api/usage", nil, &out); err != nil {
		return nil, err
	}
	return out.toDomain(), nil
}

func (c *Client) Feedback(ctx context.Context, messageID uuid.UUID, positive bool, comment string) error {
	body := map[string]any{"is_positive": positive, "comment": comment}
	return c.do(ctx, http.MethodPost, "/api/messages/"+messageID.String()+"/feedback", body, nil)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var r io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		r = bytes.NewReader(b)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, r)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.Unmarshal(data, &e)
		if e.Error == "" {
			e.Error = http.StatusText(resp.StatusCode)
		}
		return &APIError{Status: resp.StatusCode, Message: e.Error}
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}
