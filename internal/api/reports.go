// reports.go implements the report endpoints: submission, retrieval, and
// admin status overrides.
package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/middleware"
)

type createReportRequest struct {
	PostID string `json:"post_id" binding:"required"`
	Reason string `json:"reason" binding:"required"`
}

// CreateReportHandler files a new report against a post.
// POST /api/v1/reports
func (h *Handlers) CreateReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createReportRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "post_id and reason are required"})
			return
		}

		actor := middleware.CurrentActor(c)
		report, err := h.engine.CreateReport(c.Request.Context(), req.PostID, actor.ID, req.Reason)
		if err != nil {
			respondError(c, err)
			return
		}

		record, ok := h.appendRecord(c, actor.ID, ledger.ActionReportCreated, "report", report.ID, map[string]string{
			"post_id": report.PostID,
		})
		if !ok {
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"report":          report,
			"audit_record_id": record.RecordID,
		})
	}
}

// GetReportHandler returns one report by id.
// GET /api/v1/reports/:id
func (h *Handlers) GetReportHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		report, err := h.reports.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if report == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"report": report})
	}
}

// ListReportAppealsHandler returns the appeals filed against one report.
// GET /api/v1/reports/:id/appeals
func (h *Handlers) ListReportAppealsHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		reportID := c.Param("id")
		_, found, err := h.reports.ReportStatus(c.Request.Context(), reportID)
		if err != nil {
			respondError(c, err)
			return
		}
		if !found {
			c.JSON(http.StatusNotFound, gin.H{"error": "Report not found"})
			return
		}

		appeals, err := h.appeals.ListByReport(c.Request.Context(), reportID)
		if err != nil {
			respondError(c, err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"appeals": appeals})
	}
}

type applyOverrideRequest struct {
	NewStatus      string `json:"new_status" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
	HumanConfirmed bool   `json:"human_confirmed"`
}

// ApplyOverrideHandler moves a report to triaged or resolved by direct
// moderator action. Requires moderator or admin role and an explicit human
// confirmation flag in the body.
// POST /api/v1/reports/:id/override
func (h *Handlers) ApplyOverrideHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req applyOverrideRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "new_status and reason are required"})
			return
		}

		actor := middleware.CurrentActor(c)
		outcome, err := h.engine.ApplyOverride(c.Request.Context(), c.Param("id"), req.NewStatus, req.Reason, req.HumanConfirmed)
		if err != nil {
			respondError(c, err)
			return
		}

		record, ok := h.appendRecord(c, actor.ID, ledger.ActionOverrideApplied, "report", outcome.Report.ID, map[string]string{
			"previous_status": outcome.PreviousStatus,
			"new_status":      outcome.Report.Status,
			"reason":          req.Reason,
		})
		if !ok {
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"report":          outcome.Report,
			"previous_status": outcome.PreviousStatus,
			"audit_record_id": record.RecordID,
		})
	}
}
