package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

func (h *Handler) usage(c *gin.Context) {
	p, ok := principal(c)
	if !ok {
		return
	}

	status, err := h.meter.Status(c.Request.Context(), p.UserID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, toUsageJSON(status))
}

func (h *Handler) listPlans(c *gin.Context) {
	plans, err := h.plans.ListPlans(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}

	out := make([]planJSON, 0, len(plans))
	for _, p := range plans {
		out = append(out, toPlanJSON(p))
	}
	c.JSON(http.StatusOK, out)
}
