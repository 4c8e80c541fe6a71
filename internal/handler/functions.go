package handler

import (
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/set-night/elli/internal/domain"
	"github.com/set-night/elli/internal/service"
)

// Endpoints kept wire-compatible with the hosted functions the web client
// used before the API existed.

type chatFunctionRequest struct {
	Message     string             `json:"message"`
	SessionID   string             `json:"sessionId"`
	RagSettings domain.RagSettings `json:"ragSettings"`
}

type chatFunctionResponse struct {
	Message string          `json:"message"`
	Sources []domain.Source `json:"sources,omitempty"`
}

func (h *Handler) chatFunction(c *gin.Context) {
	var req chatFunctionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.Message == "" || req.SessionID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing required parameters"})
		return
	}

	tools, err := domain.NewToolSet(req.RagSettings, nil)
	if err != nil {
		writeError(c, err)
		return
	}
	sessionID, _ := uuid.Parse(req.SessionID)

	reply, err := h.gateway.Chat(c.Request.Context(), service.ChatRequest{
		SessionID: sessionID,
		Message:   req.Message,
		Tools:     tools,
	})
	if err != nil {
		slog.Error("error calling gateway", "error", err)
		reply = service.FallbackReplyFor(req.RagSettings)
	}

	c.JSON(http.StatusOK, chatFunctionResponse{Message: reply.Message, Sources: reply.Sources})
}

type incrementRequest struct {
	UserID string `json:"user_id"`
}

func (h *Handler) incrementChatCount(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req incrementRequest
	if err := c.ShouldBindJSON(&req); err != nil || req.UserID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Missing user_id parameter"})
		return
	}
	userID, err := uuid.Parse(req.UserID)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
		return
	}
	if userID != p.UserID {
		c.JSON(http.StatusForbidden, gin.H{"error": "user_id does not match the authenticated user"})
		return
	}

	status, err := h.meter.RecordSend(c.Request.Context(), userID)
	if err != nil {
		slog.Error("error incrementing chat count", "user_id", userID, "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"success":         true,
		"remaining_chats": status.Remaining,
		"total_chats":     status.Limit,
		"plan":            status.PlanID,
	})
}

func (h *Handler) getPlansFunction(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		slog.Error("error in get-plans", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	now := time.Now().UnixMilli()
	out := make([]planJSON, 0, len(plans))
	for _, p := range plans {
		pj := toPlanJSON(p)
		pj.Created = now
		out = append(out, pj)
	}
	c.JSON(http.StatusOK, out)
}
