// Package moderation implements the lifecycle engine that exclusively owns
// Report and Appeal mutation: report creation, admin overrides, appeal
// creation, and one-shot appeal decisions with the resolved→triaged reopening
// rule.
//
// The engine never writes to the audit ledger. Every caller that invokes a
// mutating operation is responsible for appending the corresponding ledger
// record afterwards (the write-after-mutation contract); the engine does not
// assume how or whether a given mutation is audit-worthy.
package moderation

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/modplane/modplane/internal/db/models"
)

// MaxReasonLength bounds report, appeal, and decision reason fields.
const MaxReasonLength = 500

// ReportStore is the persistence the engine needs for reports. A missing
// report is (nil, nil), not an error; the engine turns it into
// ErrReportNotFound.
type ReportStore interface {
	Create(ctx context.Context, report *models.Report) error
	GetByID(ctx context.Context, id string) (*models.Report, error)
	UpdateStatus(ctx context.Context, id, status string) error
}

// AppealStore is the persistence the engine needs for appeals.
type AppealStore interface {
	Create(ctx context.Context, appeal *models.Appeal) error
	GetByID(ctx context.Context, id string) (*models.Appeal, error)
	// ActiveExists reports whether an open or under_review appeal exists
	// for the (reportID, appellantID) pair.
	ActiveExists(ctx context.Context, reportID, appellantID string) (bool, error)
	Update(ctx context.Context, appeal *models.Appeal) error
}

// PostDirectory is the external collaborator used to resolve posts. The
// moderation core does not own posts; it only checks existence and
// authorship.
type PostDirectory interface {
	Exists(ctx context.Context, postID string) (bool, error)
	// AuthorOf returns the author of the post, or found=false when the
	// post does not exist.
	AuthorOf(ctx context.Context, postID string) (authorID string, found bool, err error)
}

// Engine owns all Report and Appeal mutations. Operations that check an
// invariant and then mutate (appeal exclusivity, decision terminality) hold
// mu across the check-and-set so two concurrent calls cannot both pass the
// check. This is a single-process guarantee, matching the ledger's
// single-writer deployment constraint.
type Engine struct {
	mu      sync.Mutex
	reports ReportStore
	appeals AppealStore
	posts   PostDirectory
}

// NewEngine creates a lifecycle engine over the given stores.
func NewEngine(reports ReportStore, appeals AppealStore, posts PostDirectory) *Engine {
	return &Engine{reports: reports, appeals: appeals, posts: posts}
}

// CreateReport files a new report against a post. The post must exist, the
// reason must be non-empty and at most MaxReasonLength characters. New
// reports start open.
func (e *Engine) CreateReport(ctx context.Context, postID, reporterID, reason string) (*models.Report, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if len(reason) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	exists, err := e.posts.Exists(ctx, postID)
	if err != nil {
		return nil, fmt.Errorf("look up post %s: %w", postID, err)
	}
	if !exists {
		return nil, ErrPostNotFound
	}

	now := time.Now().UTC()
	report := &models.Report{
		ID:         uuid.New().String(),
		PostID:     postID,
		ReporterID: reporterID,
		Reason:     reason,
		Status:     models.ReportStatusOpen,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := e.reports.Create(ctx, report); err != nil {
		return nil, fmt.Errorf("create report: %w", err)
	}
	return report, nil
}

// ApplyOverride moves a report to triaged or resolved by direct admin action.
// A report never moves back to open. humanConfirmed is a policy gate: the
// admin UI must pass an explicit confirmation, it is not a cryptographic
// check. Role authorization happens in the auth layer before this call.
// The ledger write describing the override is the caller's responsibility.
func (e *Engine) ApplyOverride(ctx context.Context, reportID, newStatus, reason string, humanConfirmed bool) (*OverrideOutcome, error) {
	if newStatus != models.ReportStatusTriaged && newStatus != models.ReportStatusResolved {
		return nil, ErrInvalidStatus
	}
	if !humanConfirmed {
		return nil, ErrHumanConfirmationRequired
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if len(reason) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("look up report %s: %w", reportID, err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	previousStatus := report.Status
	if err := e.reports.UpdateStatus(ctx, reportID, newStatus); err != nil {
		return nil, fmt.Errorf("update report %s status: %w", reportID, err)
	}
	report.Status = newStatus
	report.UpdatedAt = time.Now().UTC()

	return &OverrideOutcome{Report: report, PreviousStatus: previousStatus}, nil
}

// OverrideOutcome is the result of ApplyOverride; PreviousStatus lets the
// caller record the transition in the ledger.
type OverrideOutcome struct {
	Report         *models.Report
	PreviousStatus string
}

// CreateAppeal opens an appeal against a report. The appellant must be the
// original reporter or the author of the reported post, and at most one
// active appeal may exist per (report, appellant) pair.
//
// appealedAuditRecordID is stored opaquely; callers validate it against the
// ledger (target_type "report", target_id reportID, appealable action) before
// invoking this operation.
func (e *Engine) CreateAppeal(ctx context.Context, reportID, appellantID, reason string, appealedAuditRecordID *string) (*models.Appeal, error) {
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if len(reason) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	report, err := e.reports.GetByID(ctx, reportID)
	if err != nil {
		return nil, fmt.Errorf("look up report %s: %w", reportID, err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	if appellantID != report.ReporterID {
		authorID, found, err := e.posts.AuthorOf(ctx, report.PostID)
		if err != nil {
			return nil, fmt.Errorf("look up author of post %s: %w", report.PostID, err)
		}
		if !found || appellantID != authorID {
			return nil, ErrAppellantNotEligible
		}
	}

	active, err := e.appeals.ActiveExists(ctx, reportID, appellantID)
	if err != nil {
		return nil, fmt.Errorf("check active appeals for report %s: %w", reportID, err)
	}
	if active {
		return nil, ErrAppealAlreadyOpen
	}

	now := time.Now().UTC()
	appeal := &models.Appeal{
		ID:                    uuid.New().String(),
		ReportID:              reportID,
		AppellantID:           appellantID,
		Reason:                reason,
		Status:                models.AppealStatusOpen,
		AppealedAuditRecordID: appealedAuditRecordID,
		CreatedAt:             now,
		UpdatedAt:             now,
	}
	if err := e.appeals.Create(ctx, appeal); err != nil {
		return nil, fmt.Errorf("create appeal: %w", err)
	}
	return appeal, nil
}

// DecisionOutcome is the result of DecideAppeal. Previous statuses let the
// caller record both transitions in the ledger; ReportReopened is true only
// when a grant moved the report from resolved back to triaged.
type DecisionOutcome struct {
	Appeal               *models.Appeal
	Report               *models.Report
	PreviousAppealStatus string
	PreviousReportStatus string
	ReportReopened       bool
}

// DecideAppeal decides an appeal exactly once: uphold or grant, both
// terminal. A grant against a report that is currently resolved reopens the
// report to triaged; a grant against an open or triaged report leaves it
// untouched, so granting can never downgrade a report that was never closed.
func (e *Engine) DecideAppeal(ctx context.Context, appealID, decision, reason, reviewerID string, humanConfirmed bool) (*DecisionOutcome, error) {
	if decision != models.AppealDecisionUphold && decision != models.AppealDecisionGrant {
		return nil, ErrInvalidDecision
	}
	if !humanConfirmed {
		return nil, ErrHumanConfirmationRequired
	}
	if reason == "" {
		return nil, ErrReasonRequired
	}
	if len(reason) > MaxReasonLength {
		return nil, ErrReasonTooLong
	}

	// The terminality check and the status write must be atomic: without
	// the lock two concurrent decisions could both observe an undecided
	// appeal and both succeed.
	e.mu.Lock()
	defer e.mu.Unlock()

	appeal, err := e.appeals.GetByID(ctx, appealID)
	if err != nil {
		return nil, fmt.Errorf("look up appeal %s: %w", appealID, err)
	}
	if appeal == nil {
		return nil, ErrAppealNotFound
	}
	if appeal.Decided() {
		return nil, ErrAppealAlreadyDecided
	}

	report, err := e.reports.GetByID(ctx, appeal.ReportID)
	if err != nil {
		return nil, fmt.Errorf("look up report %s: %w", appeal.ReportID, err)
	}
	if report == nil {
		return nil, ErrReportNotFound
	}

	previousAppealStatus := appeal.Status
	previousReportStatus := report.Status

	now := time.Now().UTC()
	if decision == models.AppealDecisionGrant {
		appeal.Status = models.AppealStatusGranted
	} else {
		appeal.Status = models.AppealStatusUpheld
	}
	appeal.DecidedAt = &now
	appeal.DecidedByID = &reviewerID
	appeal.DecisionRationale = &reason
	appeal.UpdatedAt = now

	if err := e.appeals.Update(ctx, appeal); err != nil {
		return nil, fmt.Errorf("update appeal %s: %w", appealID, err)
	}

	reopened := false
	if decision == models.AppealDecisionGrant && report.Status == models.ReportStatusResolved {
		if err := e.reports.UpdateStatus(ctx, report.ID, models.ReportStatusTriaged); err != nil {
			return nil, fmt.Errorf("reopen report %s: %w", report.ID, err)
		}
		report.Status = models.ReportStatusTriaged
		report.UpdatedAt = now
		reopened = true
	}

	return &DecisionOutcome{
		Appeal:               appeal,
		Report:               report,
		PreviousAppealStatus: previousAppealStatus,
		PreviousReportStatus: previousReportStatus,
		ReportReopened:       reopened,
	}, nil
}
