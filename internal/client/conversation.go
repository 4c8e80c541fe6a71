package client

import (
	"context"
	"errors"
	"net/http"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/chatview"
	"github.com/set-night/elli/internal/domain"
)

// Conversation drives a chatview.View against the API: every server round
// trip is folded into the view as an event.
type Conversation struct {
	api  *Client
	View *chatview.View
}

func NewConversation(api *Client) *Conversation {
	return &Conversation{api: api, View: chatview.New()}
}

func (c *Conversation) API() *Client {
	return c.api
}

// Open loads an existing session.
func (c *Conversation) Open(ctx context.Context, sessionID uuid.UUID) error {
	msgs, err := c.api.Messages(ctx, sessionID)
	if err != nil {
		return err
	}
	return c.View.Apply(chatview.Loaded{
		Session:  &domain.ChatSession{ID: sessionID},
		Messages: msgs,
	})
}

// Reset starts a fresh, not yet persisted session.
func (c *Conversation) Reset() {
	tools := c.View.Tools
	c.View = chatview.New()
	c.View.Tools = tools
}

// Send runs one turn. On failure the view is rolled back and the error is
// returned; the text is back in View.Draft. When the server may already have
// stored the question, the transcript of a known session is reloaded and a
// stored question is not offered for sending again.
func (c *Conversation) Send(ctx context.Context, text string) (*SendResult, error) {
	temp := chatview.NewTempID()
	if err := c.View.Apply(chatview.SendStarted{TempID: temp, Text: text}); err != nil {
		return nil, err
	}

	sessionID := uuid.Nil
	if c.View.Session != nil {
		sessionID = c.View.Session.ID
	}

	res, err := c.api.Send(ctx, sessionID, text, c.View.Tools)
	if err != nil {
		if applyErr := c.View.Apply(chatview.SendFailed{TempID: temp, Err: err}); applyErr != nil {
			return nil, applyErr
		}
		if sessionID != uuid.Nil && mayHavePersisted(err) {
			c.resync(ctx, sessionID)
		}
		return nil, err
	}

	if err := c.View.Apply(chatview.SendSucceeded{
		TempID:    temp,
		Session:   res.Session,
		User:      res.User,
		Assistant: res.Assistant,
		Usage:     res.Usage,
	}); err != nil {
		return nil, err
	}
	return res, nil
}

// resync reloads the transcript after a failed send. Reload errors keep the
// rolled back view.
func (c *Conversation) resync(ctx context.Context, sessionID uuid.UUID) {
	msgs, err := c.api.Messages(ctx, sessionID)
	if err != nil {
		return
	}

	session, feedback := c.View.Session, c.View.Feedback
	if err := c.View.Apply(chatview.Loaded{Session: session, Messages: msgs}); err != nil {
		return
	}
	c.View.Feedback = feedback

	if n := len(msgs); n > 0 && msgs[n-1].IsUser && msgs[n-1].Content == c.View.Draft {
		c.View.Draft = ""
	}
}

// mayHavePersisted reports whether a failed send could have stored the
// question: server errors and lost responses.
func mayHavePersisted(err error) bool {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.Status >= http.StatusInternalServerError
	}
	return !errors.Is(err, context.Canceled)
}

// Rate records feedback for an assistant message once.
func (c *Conversation) Rate(ctx context.Context, messageID uuid.UUID, positive bool, comment string) error {
	if _, done := c.View.Feedback[messageID]; done {
		return chatview.ErrFeedbackDone
	}
	if err := c.api.Feedback(ctx, messageID, positive, comment); err != nil {
		return err
	}
	return c.View.Apply(chatview.FeedbackGiven{MessageID: messageID, IsPositive: positive})
}

// SetTools replaces the tool configuration used for the next sends.
func (c *Conversation) SetTools(tools domain.ToolSet) error {
	return c.View.Apply(chatview.ToolsChanged{Tools: tools})
}

// LastAssistant returns the newest stored assistant message, if any.
func (c *Conversation) LastAssistant() (*domain.Message, bool) {
	for i := len(c.View.Items) - 1; i >= 0; i-- {
		it := c.View.Items[i]
		if !it.Pending && !it.Message.IsUser {
			return &it.Message, true
		}
	}
	return nil, false
}
