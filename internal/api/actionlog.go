// actionlog.go implements the moderator-facing action log endpoint.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/actionlog"
)

// ActionLogHandler returns one page of the enriched action log. Query
// parameters: report_id, appeal_id, before (sequence cursor), limit.
// Requires moderator or admin role.
// GET /api/v1/moderation/actions
func (h *Handlers) ActionLogHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		filter := actionlog.Filter{
			ReportID: c.Query("report_id"),
			AppealID: c.Query("appeal_id"),
		}

		if before := c.Query("before"); before != "" {
			seq, err := strconv.ParseInt(before, 10, 64)
			if err != nil || seq <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "before must be a positive integer"})
				return
			}
			filter.BeforeSequence = seq
		}
		if limit := c.Query("limit"); limit != "" {
			n, err := strconv.Atoi(limit)
			if err != nil || n <= 0 {
				c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
				return
			}
			filter.Limit = n
		}

		result, err := h.actions.Build(c.Request.Context(), filter)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, result)
	}
}
