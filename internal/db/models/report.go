// Package models - report.go defines the Report model: a flagged post awaiting
// or having received moderation action, together with its status state machine
// constants.
package models

import "time"

// Report statuses. A report is created open; an admin override moves it to
// triaged or resolved (never back to open); a granted appeal against a
// resolved report reopens it to triaged only.
const (
	ReportStatusOpen     = "open"
	ReportStatusTriaged  = "triaged"
	ReportStatusResolved = "resolved"
)

// ValidReportStatus reports whether s is a known report status.
func ValidReportStatus(s string) bool {
	switch s {
	case ReportStatusOpen, ReportStatusTriaged, ReportStatusResolved:
		return true
	}
	return false
}

// Report represents a moderation report against a post. Its status is mutable
// only through the lifecycle engine (override or appeal-grant reopening);
// everything else is immutable after creation.
type Report struct {
	ID         string    `json:"id" db:"id"`
	PostID     string    `json:"post_id" db:"post_id"`
	ReporterID string    `json:"reporter_id" db:"reporter_id"`
	Reason     string    `json:"reason" db:"reason"`
	Status     string    `json:"status" db:"status"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time `json:"updated_at" db:"updated_at"`
}
