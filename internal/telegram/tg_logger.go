package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/go-telegram/bot"
	"github.com/go-telegram/bot/models"
	"github.com/google/uuid"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
)

const (
	MaxMessageLen = 4096
	queueSize     = 256
	sendTimeout   = 10 * time.Second
)

type LogType string

const (
	LogTypeError        LogType = "error"
	LogTypeQuota        LogType = "quota"
	LogTypeRegistration LogType = "registration"
)

type messageSender interface {
	SendMessage(ctx context.Context, params *bot.SendMessageParams) (*models.Message, error)
}

type entry struct {
	topic int
	text  string
}

// OpsLogger posts operational events to topics of a Telegram forum chat.
// Messages are queued and delivered by Run; a full queue drops messages.
type OpsLogger struct {
	sender messageSender
	cfg    *config.Config
	queue  chan entry
}

func NewOpsLogger(cfg *config.Config) (*OpsLogger, error) {
	b, err := bot.New(cfg.OpsBotToken, bot.WithSkipGetMe())
	if err != nil {
		return nil, fmt.Errorf("create ops bot: %w", err)
	}
	return newOpsLogger(b, cfg), nil
}

func newOpsLogger(sender messageSender, cfg *config.Config) *OpsLogger {
	return &OpsLogger{sender: sender, cfg: cfg, queue: make(chan entry, queueSize)}
}

func (l *OpsLogger) Log(logType LogType, message string) {
	if l == nil || l.cfg.LogTelegramChatID == 0 {
		return
	}

	topicID := l.getTopicID(logType)
	if topicID == 0 {
		return
	}

	if len([]rune(message)) > MaxMessageLen {
		message = string([]rune(message)[:MaxMessageLen-20]) + "\n\n... (truncated)"
	}

	select {
	case l.queue <- entry{topic: topicID, text: message}:
	default:
		slog.Warn("ops log queue full, dropping message", "type", logType)
	}
}

// Run delivers queued messages until ctx is cancelled.
func (l *OpsLogger) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case e := <-l.queue:
			l.send(ctx, e)
		}
	}
}

func (l *OpsLogger) send(ctx context.Context, e entry) {
	ctx, cancel := context.WithTimeout(ctx, sendTimeout)
	defer cancel()

	_, err := l.sender.SendMessage(ctx, &bot.SendMessageParams{
		ChatID:          l.cfg.LogTelegramChatID,
		Text:            e.text,
		MessageThreadID: e.topic,
	})
	if err != nil {
		slog.Error("failed to send telegram log", "topic", e.topic, "error", err)
	}
}

func (l *OpsLogger) LogError(err error, context string) {
	msg := fmt.Sprintf("❌ Error\n\nContext: %s\nError: %s\nTime: %s",
		context, err.Error(), time.Now().UTC().Format(time.DateTime))
	l.Log(LogTypeError, msg)
}

func (l *OpsLogger) LogRegistration(userID uuid.UUID, email string) {
	msg := fmt.Sprintf("👤 New Registration\n\nID: %s\nEmail: %s", userID, email)
	l.Log(LogTypeRegistration, msg)
}

// QuotaReached reports a user hitting the chat limit of their plan.
func (l *OpsLogger) QuotaReached(userID uuid.UUID, status *domain.UsageStatus) {
	msg := fmt.Sprintf("📉 Chat Limit Reached\n\nUser: %s\nPlan: %s\nUsed: %d/%d",
		userID, status.PlanID, status.Used, status.Limit)
	l.Log(LogTypeQuota, msg)
}

// EventParked reports a usage event that exhausted its retries.
func (l *OpsLogger) EventParked(event domain.UsageEvent, err error) {
	l.LogError(err, fmt.Sprintf("usage event %d for user %s parked after %d attempts",
		event.ID, event.UserID, event.Attempts+1))
}

func (l *OpsLogger) getTopicID(logType LogType) int {
	switch logType {
	case LogTypeError:
		return l.cfg.LogTopicError
	case LogTypeQuota:
		return l.cfg.LogTopicQuota
	case LogTypeRegistration:
		return l.cfg.LogTopicRegistration
	default:
		return 0
	}
}
