package routes

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
)

// ListRuns returns recent processing runs, newest first. Query: limit.
func (h *Handler) ListRuns(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	runs := h.ledger.RecentRuns(limit)
	c.JSON(http.StatusOK, gin.H{"runs": runs, "count": len(runs)})
}

// RunStats aggregates run history over a trailing window. Query: days.
func (h *Handler) RunStats(c *gin.Context) {
	days, _ := strconv.Atoi(c.DefaultQuery("days", "30"))
	c.JSON(http.StatusOK, h.ledger.Stats(days))
}
