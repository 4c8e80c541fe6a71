package handler

import (
	"time"

	"github.com/set-night/elli/internal/chat"
	"github.com/set-night/elli/internal/domain"
)

type sessionJSON struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toSessionJSON(s *domain.ChatSession) *sessionJSON {
	if s == nil {
		return nil
	}
	return &sessionJSON{
		ID:        s.ID.String(),
		Title:     s.Title,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.UpdatedAt,
	}
}

type messageJSON struct {
	ID         string          `json:"id"`
	SessionID  string          `json:"session_id"`
	Content    string          `json:"content"`
	IsUser     bool            `json:"is_user"`
	HasSources bool            `json:"has_sources"`
	Sources    []domain.Source `json:"sources,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

func toMessageJSON(m *domain.Message) *messageJSON {
	if m == nil {
		return nil
	}
	return &messageJSON{
		ID:         m.ID.String(),
		SessionID:  m.SessionID.String(),
		Content:    m.Content,
		IsUser:     m.IsUser,
		HasSources: m.HasSources,
		Sources:    m.Sources,
		CreatedAt:  m.CreatedAt,
	}
}

type usageJSON struct {
	Plan      string          `json:"plan"`
	Used      int             `json:"used"`
	Total     int             `json:"total_chats"`
	Remaining int             `json:"remaining_chats"`
	Unlimited bool            `json:"unlimited"`
	Notices   []domain.Notice `json:"notices"`
}

func toUsageJSON(s *domain.UsageStatus) *usageJSON {
	if s == nil {
		return nil
	}
	notices := s.Notices
	if notices == nil {
		notices = []domain.Notice{}
	}
	return &usageJSON{
		Plan:      s.PlanID,
		Used:      s.Used,
		Total:     s.Limit,
		Remaining: s.Remaining,
		Unlimited: s.Unlimited,
		Notices:   notices,
	}
}

type sendResponse struct {
	Session          *sessionJSON `json:"session"`
	UserMessage      *messageJSON `json:"user_message"`
	AssistantMessage *messageJSON `json:"assistant_message"`
	Usage            *usageJSON   `json:"usage,omitempty"`
	Degraded         bool         `json:"degraded"`
}

func toSendResponse(r *chat.SendResult) sendResponse {
	return sendResponse{
		Session:          toSessionJSON(r.Session),
		UserMessage:      toMessageJSON(r.UserMessage),
		AssistantMessage: toMessageJSON(r.AssistantMessage),
		Usage:            toUsageJSON(r.Usage),
		Degraded:         r.Degraded,
	}
}

type featuresJSON struct {
	ChatLimit     int `json:"chat_limit"`
	DocumentPages int `json:"document_pages"`
	HistoryDays   int `json:"history_days"`
}

// planJSON is the billing-provider style plan object served to the pricing page.
type planJSON struct {
	ID            string       `json:"id"`
	Object        string       `json:"object"`
	Active        bool         `json:"active"`
	Amount        int64        `json:"amount"`
	Currency      string       `json:"currency"`
	Interval      string       `json:"interval"`
	IntervalCount int          `json:"interval_count"`
	Product       string       `json:"product"`
	Created       int64        `json:"created"`
	Livemode      bool         `json:"livemode"`
	Name          string       `json:"name"`
	Features      featuresJSON `json:"features"`
}

func toPlanJSON(p domain.Plan) planJSON {
	return planJSON{
		ID:            p.ID,
		Object:        "plan",
		Active:        p.Active,
		Amount:        p.Amount.Shift(2).IntPart(),
		Currency:      p.Currency,
		Interval:      p.Interval,
		IntervalCount: 1,
		Product:       p.Product,
		Created:       p.CreatedAt.UnixMilli(),
		Livemode:      true,
		Name:          p.Name,
		Features: featuresJSON{
			ChatLimit:     p.ChatLimit,
			DocumentPages: p.DocumentPages,
			HistoryDays:   p.HistoryDays,
		},
	}
}

type documentJSON struct {
	ID         string    `json:"id"`
	Name       string    `json:"name"`
	Type       string    `json:"type"`
	Size       int64     `json:"size"`
	Tags       []string  `json:"tags"`
	Collection string    `json:"collection"`
	SourceURL  string    `json:"source_url,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

func toDocumentJSON(d *domain.Document) documentJSON {
	return documentJSON{
		ID:         d.ID.String(),
		Name:       d.Name,
		Type:       d.Type,
		Size:       d.SizeBytes,
		Tags:       d.Tags,
		Collection: d.Collection,
		SourceURL:  d.SourceURL,
		CreatedAt:  d.CreatedAt,
	}
}
