// appeals.go implements the appeal endpoints: creation against a report,
// retrieval, and one-shot admin decisions.
package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/middleware"
)

// appealableActions are the ledger record kinds an appeal may reference
// through appealed_audit_record_id. An appeal.reviewed record is appealable
// too: a prior decision can itself be the thing contested.
var appealableActions = map[string]bool{
	ledger.ActionReportCreated:   true,
	ledger.ActionOverrideApplied: true,
	ledger.ActionAppealReviewed:  true,
}

type createAppealRequest struct {
	Reason                string  `json:"reason" binding:"required"`
	AppealedAuditRecordID *string `json:"appealed_audit_record_id"`
}

// CreateAppealHandler opens an appeal against a report. The appellant is the
// authenticated actor; when the request names an audit record it must be a
// record about this report with an appealable action kind.
// POST /api/v1/reports/:id/appeals
func (h *Handlers) CreateAppealHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req createAppealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "reason is required"})
			return
		}

		reportID := c.Param("id")
		if req.AppealedAuditRecordID != nil {
			ok, err := h.validateAppealedRecord(reportID, *req.AppealedAuditRecordID)
			if err != nil {
				respondError(c, err)
				return
			}
			if !ok {
				c.JSON(http.StatusBadRequest, gin.H{
					"error": "appealed_audit_record_id must reference an appealable ledger record about this report",
					"code":  "appealed_record_invalid",
				})
				return
			}
		}

		actor := middleware.CurrentActor(c)
		appeal, err := h.engine.CreateAppeal(c.Request.Context(), reportID, actor.ID, req.Reason, req.AppealedAuditRecordID)
		if err != nil {
			respondError(c, err)
			return
		}

		metadata := map[string]string{"report_id": appeal.ReportID}
		if appeal.AppealedAuditRecordID != nil {
			metadata["appealed_record_id"] = *appeal.AppealedAuditRecordID
		}
		record, ok := h.appendRecord(c, actor.ID, ledger.ActionAppealCreated, "appeal", appeal.ID, metadata)
		if !ok {
			return
		}

		c.JSON(http.StatusCreated, gin.H{
			"appeal":          appeal,
			"audit_record_id": record.RecordID,
		})
	}
}

// validateAppealedRecord checks that recordID resolves to a ledger record
// with target_type "report", target_id reportID, and an appealable action.
func (h *Handlers) validateAppealedRecord(reportID, recordID string) (bool, error) {
	records, err := h.ledger.ReadAll()
	if err != nil {
		return false, err
	}
	for i := range records {
		r := &records[i]
		if r.RecordID != recordID {
			continue
		}
		return r.TargetType == "report" && r.TargetID == reportID && appealableActions[r.Action], nil
	}
	return false, nil
}

// GetAppealHandler returns one appeal by id.
// GET /api/v1/appeals/:id
func (h *Handlers) GetAppealHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		appeal, err := h.appeals.GetByID(c.Request.Context(), c.Param("id"))
		if err != nil {
			respondError(c, err)
			return
		}
		if appeal == nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Appeal not found"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"appeal": appeal})
	}
}

type decideAppealRequest struct {
	Decision       string `json:"decision" binding:"required"`
	Reason         string `json:"reason" binding:"required"`
	HumanConfirmed bool   `json:"human_confirmed"`
}

// DecideAppealHandler decides an appeal exactly once. Requires admin role.
// A granted appeal against a resolved report reopens the report to triaged;
// the single ledger record carries both transitions.
// POST /api/v1/appeals/:id/decision
func (h *Handlers) DecideAppealHandler() gin.HandlerFunc {
	return func(c *gin.Context) {
		var req decideAppealRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "decision and reason are required"})
			return
		}

		actor := middleware.CurrentActor(c)
		outcome, err := h.engine.DecideAppeal(c.Request.Context(), c.Param("id"), req.Decision, req.Reason, actor.ID, req.HumanConfirmed)
		if err != nil {
			respondError(c, err)
			return
		}

		record, ok := h.appendRecord(c, actor.ID, ledger.ActionAppealReviewed, "appeal", outcome.Appeal.ID, map[string]string{
			"report_id":              outcome.Report.ID,
			"decision":               req.Decision,
			"previous_appeal_status": outcome.PreviousAppealStatus,
			"previous_report_status": outcome.PreviousReportStatus,
			"report_status":          outcome.Report.Status,
			"report_reopened":        strconv.FormatBool(outcome.ReportReopened),
		})
		if !ok {
			return
		}

		c.JSON(http.StatusOK, gin.H{
			"appeal":          outcome.Appeal,
			"report":          outcome.Report,
			"report_reopened": outcome.ReportReopened,
			"audit_record_id": record.RecordID,
		})
	}
}
