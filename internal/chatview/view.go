// Package chatview is the client-side model of one open chat session. All
// state changes go through Apply.
package chatview

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/domain"
)

var (
	ErrBusy         = errors.New("a message is already being sent")
	ErrUnknownTemp  = errors.New("no pending message with this id")
	ErrEmptyDraft   = errors.New("message is empty")
	ErrFeedbackDone = errors.New("feedback already given")
)

const tempPrefix = "temp-"

// NewTempID returns an identifier for an optimistic message.
func NewTempID() string {
	return tempPrefix + uuid.NewString()
}

func IsTempID(id string) bool {
	return strings.HasPrefix(id, tempPrefix)
}

// Item is one row of the transcript. Pending rows carry a temp id and have
// not been stored yet.
type Item struct {
	ID      string
	Message domain.Message
	Pending bool
}

type View struct {
	Session  *domain.ChatSession
	Items    []Item
	Draft    string
	Loading  bool
	Tools    domain.ToolSet
	Usage    *domain.UsageStatus
	Notices  []domain.Notice
	Feedback map[uuid.UUID]bool
}

func New() *View {
	return &View{
		Tools:    domain.DefaultToolSet(),
		Feedback: map[uuid.UUID]bool{},
	}
}

type Event interface {
	apply(v *View) error
}

func (v *View) Apply(e Event) error {
	return e.apply(v)
}

// TakeNotices returns the queued notices and clears them.
func (v *View) TakeNotices() []domain.Notice {
	n := v.Notices
	v.Notices = nil
	return n
}

// Loaded replaces the transcript with a stored session.
type Loaded struct {
	Session  *domain.ChatSession
	Messages []domain.Message
}

func (e Loaded) apply(v *View) error {
	v.Session = e.Session
	v.Items = make([]Item, 0, len(e.Messages))
	for _, m := range e.Messages {
		v.Items = append(v.Items, Item{ID: m.ID.String(), Message: m})
	}
	v.Loading = false
	v.Feedback = map[uuid.UUID]bool{}
	return nil
}

// SendStarted appends the optimistic user message.
type SendStarted struct {
	TempID string
	Text   string
}

func (e SendStarted) apply(v *View) error {
	if v.Loading {
		return ErrBusy
	}
	text := strings.TrimSpace(e.Text)
	if text == "" {
		return ErrEmptyDraft
	}

	msg := domain.Message{Content: text, IsUser: true}
	if v.Session != nil {
		msg.SessionID = v.Session.ID
	}
	v.Items = append(v.Items, Item{ID: e.TempID, Message: msg, Pending: true})
	v.Draft = ""
	v.Loading = true
	return nil
}

// SendSucceeded swaps the optimistic message for the stored one and appends
// the reply.
type SendSucceeded struct {
	TempID    string
	Session   *domain.ChatSession
	User      *domain.Message
	Assistant *domain.Message
	Usage     *domain.UsageStatus
}

func (e SendSucceeded) apply(v *View) error {
	i := v.indexOf(e.TempID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTemp, e.TempID)
	}

	v.Items[i] = Item{ID: e.User.ID.String(), Message: *e.User}
	v.Items = append(v.Items, Item{ID: e.Assistant.ID.String(), Message: *e.Assistant})
	if e.Session != nil {
		v.Session = e.Session
	}
	v.Loading = false

	if e.Usage != nil {
		v.Usage = e.Usage
		v.Notices = append(v.Notices, e.Usage.Notices...)
	}
	return nil
}

// SendFailed removes the optimistic message and puts its text back in the
// draft.
type SendFailed struct {
	TempID string
	Err    error
}

func (e SendFailed) apply(v *View) error {
	i := v.indexOf(e.TempID)
	if i < 0 {
		return fmt.Errorf("%w: %s", ErrUnknownTemp, e.TempID)
	}

	v.Draft = v.Items[i].Message.Content
	v.Items = append(v.Items[:i], v.Items[i+1:]...)
	v.Loading = false
	v.Notices = append(v.Notices, failureNotice(e.Err))
	return nil
}

func failureNotice(err error) domain.Notice {
	n := domain.Notice{
		Level:   domain.NoticeError,
		Title:   "Error",
		Message: "Failed to send message. Please try again.",
	}
	switch {
	case errors.Is(err, domain.ErrQuotaExceeded):
		n.Title = "Chat Limit Reached"
		n.Message = "You've reached your monthly question limit. Please upgrade your plan to continue chatting."
	case errors.Is(err, domain.ErrActiveRequest):
		n.Message = "A message is already being processed for this chat."
	}
	return n
}

type ToolsChanged struct {
	Tools domain.ToolSet
}

func (e ToolsChanged) apply(v *View) error {
	if err := e.Tools.Validate(); err != nil {
		return err
	}
	v.Tools = e.Tools
	return nil
}

// FeedbackGiven marks an assistant message as rated. A message is rated once.
type FeedbackGiven struct {
	MessageID  uuid.UUID
	IsPositive bool
}

func (e FeedbackGiven) apply(v *View) error {
	if _, ok := v.Feedback[e.MessageID]; ok {
		return ErrFeedbackDone
	}
	v.Feedback[e.MessageID] = e.IsPositive
	return nil
}

func (v *View) indexOf(id string) int {
	for i, it := range v.Items {
		if it.ID == id {
			return i
		}
	}
	return -1
}
