package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/modplane/modplane/internal/actionlog"
	"github.com/modplane/modplane/internal/audit"
	"github.com/modplane/modplane/internal/db/repositories"
	"github.com/modplane/modplane/internal/ledger"
	"github.com/modplane/modplane/internal/middleware"
	"github.com/modplane/modplane/internal/moderation"
	"github.com/modplane/modplane/internal/safego"
	"github.com/modplane/modplane/internal/telemetry"
)

// shipTimeout bounds the asynchronous delivery of one ledger record to the
// configured shippers.
const shipTimeout = 10 * time.Second

// Handlers carries the shared dependencies of all HTTP handlers.
type Handlers struct {
	db      *sqlx.DB
	engine  *moderation.Engine
	ledger  *ledger.Handle
	actions *actionlog.Builder
	shipper audit.Shipper

	reports *repositories.ReportRepository
	appeals *repositories.AppealRepository
	posts   *repositories.PostRepository
	users   *repositories.UserRepository
}

// NewHandlers builds the handler set over one database, one ledger, and an
// optional shipper (nil disables external audit delivery).
func NewHandlers(database *sqlx.DB, ledgerHandle *ledger.Handle, shipper audit.Shipper) *Handlers {
	reports := repositories.NewReportRepository(database)
	appeals := repositories.NewAppealRepository(database)
	posts := repositories.NewPostRepository(database)
	users := repositories.NewUserRepository(database)

	statuses := statusSource{reports: reports, appeals: appeals}

	return &Handlers{
		db:      database,
		engine:  moderation.NewEngine(reports, appeals, posts),
		ledger:  ledgerHandle,
		actions: actionlog.NewBuilder(ledgerHandle, statuses, users),
		shipper: shipper,
		reports: reports,
		appeals: appeals,
		posts:   posts,
		users:   users,
	}
}

// statusSource adapts the report and appeal repositories to the single
// interface the action log builder enriches from.
type statusSource struct {
	reports *repositories.ReportRepository
	appeals *repositories.AppealRepository
}

func (s statusSource) ReportStatus(ctx context.Context, reportID string) (string, bool, error) {
	return s.reports.ReportStatus(ctx, reportID)
}

func (s statusSource) AppealStatus(ctx context.Context, appealID string) (string, bool, error) {
	return s.appeals.AppealStatus(ctx, appealID)
}

// appendRecord appends one ledger record after a successful mutation. The
// mutation is never rolled back: when the append fails the handler answers
// 503 so the client knows the action happened but was not recorded, and the
// operator can replay it once the ledger is writable again.
//
// On success it updates the ledger metrics and hands the committed record to
// the shipper on a background goroutine.
func (h *Handlers) appendRecord(c *gin.Context, actorID, action, targetType, targetID string, metadata map[string]string) (*ledger.Record, bool) {
	input := ledger.Input{
		RecordID:   uuid.New().String(),
		ActorID:    actorID,
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
		CreatedAt:  time.Now().UTC().Format(time.RFC3339Nano),
	}

	start := time.Now()
	record, err := h.ledger.Append(c.Request.Context(), input)
	telemetry.LedgerAppendDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		telemetry.LedgerAppendsTotal.WithLabelValues(action, "error").Inc()
		slog.Error("ledger append failed",
			slog.String("action", action),
			slog.String("target_type", targetType),
			slog.String("target_id", targetID),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"error": "The action was applied but could not be recorded in the audit ledger",
			"code":  "audit_unavailable",
		})
		return nil, false
	}

	telemetry.LedgerAppendsTotal.WithLabelValues(action, "ok").Inc()
	telemetry.LedgerRecordsTotal.Set(float64(record.Sequence))
	telemetry.ModerationActionsTotal.WithLabelValues(action).Inc()

	if h.shipper != nil {
		shipped := record
		safego.Go(func() {
			ctx, cancel := context.WithTimeout(context.Background(), shipTimeout)
			defer cancel()
			if err := h.shipper.Ship(ctx, &shipped); err != nil {
				slog.Warn("audit shipping failed",
					slog.Int64("sequence", shipped.Sequence),
					slog.String("error", err.Error()),
				)
			}
		})
	}

	return &record, true
}

// respondError maps lifecycle engine errors onto HTTP statuses by their
// stable code family. Anything that is not a moderation.Error is an internal
// failure.
func respondError(c *gin.Context, err error) {
	var merr *moderation.Error
	if !errors.As(err, &merr) {
		slog.Error("moderation operation failed",
			slog.String("path", c.FullPath()),
			slog.String("request_id", c.GetString(middleware.RequestIDKey)),
			slog.String("error", err.Error()),
		)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Internal server error"})
		return
	}

	status := http.StatusBadRequest
	switch merr {
	case moderation.ErrPostNotFound, moderation.ErrReportNotFound, moderation.ErrAppealNotFound:
		status = http.StatusNotFound
	case moderation.ErrAppealAlreadyOpen, moderation.ErrAppealAlreadyDecided:
		status = http.StatusConflict
	case moderation.ErrAppellantNotEligible:
		status = http.StatusForbidden
	}
	c.JSON(status, gin.H{"error": merr.Message, "code": merr.Code})
}
