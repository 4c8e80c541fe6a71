package handler

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/set-night/elli/internal/config"
)

func (h *Handler) listSessions(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	limit := queryInt(c, "limit", config.SessionsPerPage)
	if limit < 1 || limit > config.MaxSessionsPerPage {
		limit = config.SessionsPerPage
	}
	offset := max(0, queryInt(c, "offset", 0))

	sessions, err := h.sessions.ListSessions(c.Request.Context(), p.UserID, limit, offset)
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]*sessionJSON, 0, len(sessions))
	for i := range sessions {
		out = append(out, toSessionJSON(&sessions[i]))
	}
	c.JSON(http.StatusOK, out)
}

type titleRequest struct {
	Title string `json:"title"`
}

func (h *Handler) createSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	var req titleRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, "invalid request body")
			return
		}
	}

	session, err := h.sessions.CreateSession(c.Request.Context(), p.UserID, strings.TrimSpace(req.Title))
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, toSessionJSON(session))
}

func (h *Handler) renameSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	var req titleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		badRequest(c, "invalid request body")
		return
	}
	title := strings.TrimSpace(req.Title)
	if title == "" {
		badRequest(c, "title is required")
		return
	}

	session, err := h.sessions.RenameSession(c.Request.Context(), p.UserID, id, title)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toSessionJSON(session))
}

func (h *Handler) deleteSession(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}
	id, ok := pathUUID(c, "id")
	if !ok {
		return
	}

	if err := h.sessions.DeleteSession(c.Request.Context(), p.UserID, id); err != nil {
		writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func queryInt(c *gin.Context, key string, def int) int {
	v, err := strconv.Atoi(c.Query(key))
	if err != nil {
		return def
	}
	return v
}
