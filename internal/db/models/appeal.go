// Package models - appeal.go defines the Appeal model: a request to re-review
// a moderation decision made against a report, with one-shot decision fields.
package models

import "time"

// Appeal statuses. open and under_review are active; upheld and granted are
// terminal. under_review is part of the data model for external moderation
// tooling that sets it manually, but the lifecycle engine exposes no
// transition into it.
const (
	AppealStatusOpen        = "open"
	AppealStatusUnderReview = "under_review"
	AppealStatusUpheld      = "upheld"
	AppealStatusGranted     = "granted"
)

// Appeal decisions accepted by the lifecycle engine.
const (
	AppealDecisionUphold = "uphold"
	AppealDecisionGrant  = "grant"
)

// ValidAppealStatus reports whether s is a known appeal status.
func ValidAppealStatus(s string) bool {
	switch s {
	case AppealStatusOpen, AppealStatusUnderReview, AppealStatusUpheld, AppealStatusGranted:
		return true
	}
	return false
}

// Appeal represents an appeal against a moderation report. At most one active
// (open/under_review) appeal may exist per (report, appellant) pair; decisions
// are terminal and stamped exactly once.
type Appeal struct {
	ID          string `json:"id" db:"id"`
	ReportID    string `json:"report_id" db:"report_id"`
	AppellantID string `json:"appellant_id" db:"appellant_id"`
	Reason      string `json:"reason" db:"reason"`
	Status      string `json:"status" db:"status"`

	// AppealedAuditRecordID optionally references the ledger record whose
	// outcome is being appealed. Validated against the ledger at the API
	// boundary; stored opaquely here.
	AppealedAuditRecordID *string `json:"appealed_audit_record_id,omitempty" db:"appealed_audit_record_id"`

	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`

	// Decision fields, stamped exactly once when the appeal is decided.
	DecidedAt         *time.Time `json:"decided_at,omitempty" db:"decided_at"`
	DecidedByID       *string    `json:"decided_by_id,omitempty" db:"decided_by_id"`
	DecisionRationale *string    `json:"decision_rationale,omitempty" db:"decision_rationale"`
}

// Active reports whether the appeal is still awaiting a decision.
func (a *Appeal) Active() bool {
	return a.Status == AppealStatusOpen || a.Status == AppealStatusUnderReview
}

// Decided reports whether the appeal has reached a terminal status.
func (a *Appeal) Decided() bool {
	return a.Status == AppealStatusUpheld || a.Status == AppealStatusGranted
}
