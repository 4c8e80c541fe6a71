package chatview

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/set-night/elli/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func stored(session uuid.UUID, content string, isUser bool) *domain.Message {
	return &domain.Message{ID: uuid.New(), SessionID: session, Content: content, IsUser: isUser, CreatedAt: time.Now()}
}

func TestSendLifecycle_Success(t *testing.T) {
	sess := &domain.ChatSession{ID: uuid.New(), Title: "New Conversation"}
	v := New()
	require.NoError(t, v.Apply(Loaded{Session: sess}))

	temp := NewTempID()
	assert.True(t, IsTempID(temp))
	require.NoError(t, v.Apply(SendStarted{TempID: temp, Text: " hello "}))
	require.Len(t, v.Items, 1)
	assert.True(t, v.Items[0].Pending)
	assert.True(t, v.Loading)

	assert.ErrorIs(t, v.Apply(SendStarted{TempID: NewTempID(), Text: "again"}), ErrBusy)

	user := stored(sess.ID, "hello", true)
	reply := stored(sess.ID, "hi there", false)
	usage := &domain.UsageStatus{Remaining: 4, Notices: []domain.Notice{{Level: domain.NoticeWarning}}}
	require.NoError(t, v.Apply(SendSucceeded{TempID: temp, User: user, Assistant: reply, Usage: usage}))

	require.Len(t, v.Items, 2)
	assert.Equal(t, user.ID.String(), v.Items[0].ID)
	assert.False(t, v.Items[0].Pending)
	assert.Equal(t, reply.ID.String(), v.Items[1].ID)
	assert.False(t, v.Loading)
	assert.Equal(t, 4, v.Usage.Remaining)
	assert.Len(t, v.TakeNotices(), 1)
	assert.Empty(t, v.Notices)
}

func TestSendLifecycle_FailureRollsBack(t *testing.T) {
	sess := &domain.ChatSession{ID: uuid.New()}
	v := New()
	require.NoError(t, v.Apply(Loaded{Session: sess, Messages: []domain.Message{*stored(sess.ID, "old", true)}}))

	temp := NewTempID()
	require.NoError(t, v.Apply(SendStarted{TempID: temp, Text: "lost?"}))
	require.Len(t, v.Items, 2)

	require.NoError(t, v.Apply(SendFailed{TempID: temp, Err: errors.New("network")}))
	require.Len(t, v.Items, 1)
	assert.Equal(t, "old", v.Items[0].Message.Content)
	assert.Equal(t, "lost?", v.Draft)
	assert.False(t, v.Loading)

	notices := v.TakeNotices()
	require.Len(t, notices, 1)
	assert.Equal(t, domain.NoticeError, notices[0].Level)
	assert.Equal(t, "Failed to send message. Please try again.", notices[0].Message)
}

func TestSendFailed_QuotaNotice(t *testing.T) {
	v := New()
	temp := NewTempID()
	require.NoError(t, v.Apply(SendStarted{TempID: temp, Text: "q"}))
	require.NoError(t, v.Apply(SendFailed{TempID: temp, Err: domain.ErrQuotaExceeded}))
	assert.Equal(t, "Chat Limit Reached", v.Notices[0].Title)
}

func TestSendStarted_EmptyDraft(t *testing.T) {
	v := New()
	assert.ErrorIs(t, v.Apply(SendStarted{TempID: NewTempID(), Text: "  "}), ErrEmptyDraft)
	assert.Empty(t, v.Items)
	assert.False(t, v.Loading)
}

func TestUnknownTemp(t *testing.T) {
	v := New()
	assert.ErrorIs(t, v.Apply(SendFailed{TempID: "temp-x"}), ErrUnknownTemp)
}

func TestToolsChanged(t *testing.T) {
	v := New()
	assert.NotNil(t, v.Tools.Document)

	bad := domain.ToolSet{Scrape: &domain.WebScrapingConfig{Depth: 9, MaxPages: 1}}
	assert.ErrorIs(t, v.Apply(ToolsChanged{Tools: bad}), domain.ErrInvalidToolConfig)
	assert.NotNil(t, v.Tools.Document)

	good := domain.ToolSet{Web: domain.DefaultWebSearch()}
	require.NoError(t, v.Apply(ToolsChanged{Tools: good}))
	assert.Nil(t, v.Tools.Document)
	assert.NotNil(t, v.Tools.Web)
}

func TestFeedbackGivenOnce(t *testing.T) {
	v := New()
	id := uuid.New()
	require.NoError(t, v.Apply(FeedbackGiven{MessageID: id, IsPositive: true}))
	assert.ErrorIs(t, v.Apply(FeedbackGiven{MessageID: id}), ErrFeedbackDone)
	assert.True(t, v.Feedback[id])
}
