package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/set-night/elli/internal/chat"
	"github.com/set-night/elli/internal/domain"
)

func (h *Handler) listMessages(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	ctx := c.Request.Context()
	if _, err := h.sessions.GetSession(ctx, p.UserID, id); err != nil {
		writeError(c, err)
		return
	}
	msgs, err := h.sessions.Messages(ctx, id)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]*messageJSON, 0, len(msgs))
	for i := range msgs {
		out = append(out, toMessageJSON(&msgs[i]))
	}
	c.JSON(http.StatusOK, out)
}

type sendRequest struct {
	Text        string                `json:"text"`
	RagSettings *domain.RagSettings   `json:"ragSettings"`
	Tools       []domain.ToolEnvelope `json:"tools"`
}

// toolSet builds the tool configuration of a send. Without flags document
// search is on, as in a fresh chat.
func (r sendRequest) toolSet() (domain.ToolSet, error) {
	flags := domain.DefaultToolSet().Flags()
	if r.RagSettings != nil {
		flags = *r.RagSettings
	}
	return domain.NewToolSet(flags, domain.UnwrapTools(r.Tools))
}

func (h *Handler) sendMessage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	sessionID := uuid.Nil
	if raw := c.Param("id"); raw != "new" {
		id, ok := pathUUID(c, "id")
		if !ok {
			return
		}
		sessionID = id
	}

	var req sendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, domain.ErrInvalidToolConfig) {
			writeError(c, err)
			return
		}
		badRequest(c, "invalid request body")
		return
	}

	tools, err := req.toolSet()
	if err != nil {
		writeError(c, err)
		return
	}

	result, err := h.pipeline.Send(c.Request.Context(), chat.SendRequest{
		UserID:    p.UserID,
		SessionID: sessionID,
		Text:      req.Text,
		Tools:     tools,
	})
	if err != nil {
		writeError(c, err)
		return
	}

	status := http.StatusOK
	if sessionID == uuid.Nil {
		status = http.StatusCreated
	}
	c.JSON(status, toSendResponse(result))
}

type feedbackRequest struct {
	IsPositive *bool  `json:"is_positive"`
	Comment    string `json:"comment"`
}

func (h *Handler) submitFeedback(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req feedbackRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.IsPositive == nil {
		badRequest(c, "is_positive is required")
		return
	}

	fb, err := h.sessions.SubmitFeedback(c.Request.Context(), p.UserID, id, *req.IsPositive, strings.TrimSpace(req.Comment))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{
		"id":          fb.ID,
		"message_id":  fb.MessageID.String(),
		"is_positive": fb.IsPositive,
		"comment":     fb.Comment,
		"created_at":  fb.CreatedAt,
	})
}
