package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/set-night/elli/internal/config"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/repository/sqlc"
)

type SessionService struct {
	db      *pgxpool.Pool
	queries *sqlc.Queries
}

func NewSessionService(db *pgxpool.Pool, queries *sqlc.Queries) *SessionService {
	return &SessionService{db: db, queries: queries}
}

func (s *SessionService) CreateSession(ctx context.Context, userID uuid.UUID, title string) (*domain.ChatSession, error) {
	if title == "" {
		title = config.DefaultSessionTitle
	}
	row, err := s.queries.CreateSession(ctx, sqlc.CreateSessionParams{
		UserID: userID,
		Title:  title,
	})
	if err != nil {
		return nil, fmt.Errorf("create session: %w", err)
	}
	return rowToSession(row), nil
}

func (s *SessionService) GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.ChatSession, error) {
	row, err := s.queries.GetSessionForUser(ctx, sqlc.GetSessionForUserParams{
		ID:     sessionID,
		UserID: userID,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	return rowToSession(row), nil
}

func (s *SessionService) ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ChatSession, error) {
	rows, err := s.queries.ListSessionsByUser(ctx, sqlc.ListSessionsByUserParams{
		UserID: userID,
		Limit:  int32(limit),
		Offset: int32(offset),
	})
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	sessions := make([]domain.ChatSession, len(rows))
	for i, r := range rows {
		sessions[i] = *rowToSession(r)
	}
	return sessions, nil
}

func (s *SessionService) RenameSession(ctx context.Context, userID, sessionID uuid.UUID, title string) (*domain.ChatSession, error) {
	row, err := s.queries.UpdateSessionTitle(ctx, sqlc.UpdateSessionTitleParams{
		ID:     sessionID,
		UserID: userID,
		Title:  title,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrSessionNotFound
		}
		return nil, fmt.Errorf("rename session: %w", err)
	}
	return rowToSession(row), nil
}

func (s *SessionService) DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error {
	n, err := s.queries.DeleteSession(ctx, sqlc.DeleteSessionParams{
		ID:     sessionID,
		UserID: userID,
	})
	if err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	if n == 0 {
		return domain.ErrSessionNotFound
	}
	return nil
}

// Messages returns the session history in creation order.
func (s *SessionService) Messages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error) {
	rows, err := s.queries.ListSessionMessages(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}
	msgs := make([]domain.Message, 0, len(rows))
	for _, r := range rows {
		m, err := rowToMessage(r)
		if err != nil {
			return nil, err
		}
		msgs = append(msgs, *m)
	}
	return msgs, nil
}

func (s *SessionService) CountMessages(ctx context.Context, sessionID uuid.UUID) (int64, error) {
	return s.queries.CountSessionMessages(ctx, sessionID)
}

func (s *SessionService) AddUserMessage(ctx context.Context, sessionID uuid.UUID, content string) (*domain.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)

	msg, err := insertMessage(ctx, qtx, sessionID, content, true, nil)
	if err != nil {
		return nil, err
	}
	if err := qtx.TouchSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

// AddAssistantMessage persists the reply and enqueues the usage event for the
// send in the same transaction.
func (s *SessionService) AddAssistantMessage(ctx context.Context, userID, sessionID uuid.UUID, content string, sources []domain.Source) (*domain.Message, error) {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	qtx := s.queries.WithTx(tx)

	msg, err := insertMessage(ctx, qtx, sessionID, content, false, sources)
	if err != nil {
		return nil, err
	}
	if err := qtx.TouchSession(ctx, sessionID); err != nil {
		return nil, fmt.Errorf("touch session: %w", err)
	}
	if err := qtx.EnqueueUsageEvent(ctx, sqlc.EnqueueUsageEventParams{
		UserID:    userID,
		MessageID: msg.ID,
	}); err != nil {
		return nil, fmt.Errorf("enqueue usage event: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return msg, nil
}

func insertMessage(ctx context.Context, q *sqlc.Queries, sessionID uuid.UUID, content string, isUser bool, sources []domain.Source) (*domain.Message, error) {
	raw, err := marshalSources(sources)
	if err != nil {
		return nil, fmt.Errorf("encode sources: %w", err)
	}
	row, err := q.InsertMessage(ctx, sqlc.InsertMessageParams{
		SessionID:  sessionID,
		Content:    content,
		IsUser:     isUser,
		HasSources: len(sources) > 0,
		Sources:    raw,
	})
	if err != nil {
		return nil, fmt.Errorf("add message: %w", err)
	}
	return rowToMessage(row)
}

// TryAcquire claims the in-flight slot of a session. It reports false when
// another send is already running.
func (s *SessionService) TryAcquire(ctx context.Context, sessionID uuid.UUID) (bool, error) {
	_, err := s.queries.TrySetActiveRequest(ctx, sessionID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, fmt.Errorf("set active request: %w", err)
	}
	return true, nil
}

func (s *SessionService) Release(ctx context.Context, sessionID uuid.UUID) error {
	return s.queries.RemoveActiveRequest(ctx, sessionID)
}

// CleanupStaleRequests frees in-flight slots left behind by crashed sends.
func (s *SessionService) CleanupStaleRequests(ctx context.Context) error {
	return s.queries.CleanupStaleRequests(ctx, timeToPgTimestamptz(time.Now().Add(-config.StaleRequestAge)))
}

func (s *SessionService) SubmitFeedback(ctx context.Context, userID, messageID uuid.UUID, isPositive bool, comment string) (*domain.Feedback, error) {
	if _, err := s.queries.GetMessageForUser(ctx, sqlc.GetMessageForUserParams{
		ID:     messageID,
		UserID: userID,
	}); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrMessageNotFound
		}
		return nil, fmt.Errorf("get message: %w", err)
	}

	row, err := s.queries.CreateFeedback(ctx, sqlc.CreateFeedbackParams{
		MessageID:  messageID,
		UserID:     userID,
		IsPositive: isPositive,
		Comment:    comment,
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, domain.ErrFeedbackExists
		}
		return nil, fmt.Errorf("create feedback: %w", err)
	}
	return &domain.Feedback{
		ID:         row.ID,
		MessageID:  row.MessageID,
		UserID:     row.UserID,
		IsPositive: row.IsPositive,
		Comment:    row.Comment,
		CreatedAt:  pgTimestamptzToTime(row.CreatedAt),
	}, nil
}
