package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/set-night/elli/internal/chat"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/service"
)

type SessionStore interface {
	CreateSession(ctx context.Context, userID uuid.UUID, title string) (*domain.ChatSession, error)
	GetSession(ctx context.Context, userID, sessionID uuid.UUID) (*domain.ChatSession, error)
	ListSessions(ctx context.Context, userID uuid.UUID, limit, offset int) ([]domain.ChatSession, error)
	RenameSession(ctx context.Context, userID, sessionID uuid.UUID, title string) (*domain.ChatSession, error)
	DeleteSession(ctx context.Context, userID, sessionID uuid.UUID) error
	Messages(ctx context.Context, sessionID uuid.UUID) ([]domain.Message, error)
	SubmitFeedback(ctx context.Context, userID, messageID uuid.UUID, isPositive bool, comment string) (*domain.Feedback, error)
}

type Sender interface {
	Send(ctx context.Context, req chat.SendRequest) (*chat.SendResult, error)
}

type Meter interface {
	Status(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error)
	RecordSend(ctx context.Context, userID uuid.UUID) (*domain.UsageStatus, error)
}

type PlanCatalog interface {
	ListPlans(ctx context.Context) ([]domain.Plan, error)
}

type DocumentStore interface {
	Upload(ctx context.Context, in service.UploadInput) (*domain.Document, error)
	UploadURL(ctx context.Context, userID uuid.UUID, url string, tags []string, collection string) (*domain.Document, error)
	List(ctx context.Context, userID uuid.UUID) ([]domain.Document, error)
	Delete(ctx context.Context, userID, documentID uuid.UUID) error
}

type Gateway interface {
	Chat(ctx context.Context, req service.ChatRequest) (*service.ChatReply, error)
}

// Handler holds all dependencies needed by the HTTP handlers.
type Handler struct {
	sessions  SessionStore
	pipeline  Sender
	meter     Meter
	plans     PlanCatalog
	documents DocumentStore
	gateway   Gateway
}

// Deps contains all dependencies required to construct a Handler.
type Deps struct {
	Sessions  SessionStore
	Pipeline  Sender
	Meter     Meter
	Plans     PlanCatalog
	Documents DocumentStore
	Gateway   Gateway
}

// New creates a new Handler from the provided dependencies.
func New(deps Deps) *Handler {
	return &Handler{
		sessions:  deps.Sessions,
		pipeline:  deps.Pipeline,
		meter:     deps.Meter,
		plans:     deps.Plans,
		documents: deps.Documents,
		gateway:   deps.Gateway,
	}
}

// Register mounts all routes. auth guards everything except /health and the
// plan catalogue; limit runs after auth so it can key on the caller.
func (h *Handler) Register(r gin.IRouter, auth gin.HandlerFunc, limit ...gin.HandlerFunc) {
	r.GET("/health", h.health)
	r.GET("/functions/get-plans", h.getPlansFunction)

	guarded := append([]gin.HandlerFunc{auth}, limit...)

	api := r.Group("/api", guarded...)
	api.GET("/sessions", h.listSessions)
	api.POST("/sessions", h.createSession)
	api.PATCH("/sessions/:id", h.renameSession)
	api.DELETE("/sessions/:id", h.deleteSession)
	api.GET("/sessions/:id/messages", h.listMessages)
	api.POST("/sessions/:id/messages", h.sendMessage)
	api.POST("/messages/:id/feedback", h.submitFeedback)
	api.GET("/usage", h.usage)
	api.GET("/plans", h.listPlans)
	api.GET("/documents", h.listDocuments)
	api.POST("/documents", h.uploadDocument)
	api.POST("/documents/url", h.uploadDocumentURL)
	api.DELETE("/documents/:id", h.deleteDocument)

	fn := r.Group("/functions", guarded...)
	fn.POST("/chat", h.chatFunction)
	fn.POST("/increment-chat-count", h.incrementChatCount)
}

func (h *Handler) health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
