// Package actionlog builds the moderator-facing action log: ledger records
// filtered to moderation-relevant kinds, sorted newest first, paginated by
// sequence cursor, and enriched with the current status of the associated
// report/appeal and the actor's display handle.
//
// Enrichment is a live join, not a snapshot: the ledger fact never changes,
// but the same entry can render different report/appeal status at different
// query times.
package actionlog

import (
	"context"
	"fmt"
	"sort"

	"github.com/modplane/modplane/internal/ledger"
)

// DefaultLimit and MaxLimit bound the page size.
const (
	DefaultLimit = 20
	MaxLimit     = 100
)

// Well-known metadata keys consulted when an action targets one entity but
// carries the other's id in metadata (an appeal.reviewed record targets the
// appeal and names the report in metadata, and vice versa).
const (
	metaReportID = "report_id"
	metaAppealID = "appeal_id"
)

// allowedActions is the fixed allow-list of moderation-relevant event kinds.
// Sign-in/out records stay in the ledger but are noise in this view.
var allowedActions = map[string]bool{
	ledger.ActionReportCreated:   true,
	ledger.ActionOverrideApplied: true,
	ledger.ActionAppealCreated:   true,
	ledger.ActionAppealReviewed:  true,
}

// LedgerSource supplies the committed ledger records.
type LedgerSource interface {
	ReadAll() ([]ledger.Record, error)
}

// StatusSource supplies the current (not historical) status of live entities.
// Missing entities return found=false, which renders as empty enrichment
// rather than an error: the ledger may legitimately reference entities the
// read side no longer has.
type StatusSource interface {
	ReportStatus(ctx context.Context, reportID string) (status string, found bool, err error)
	AppealStatus(ctx context.Context, appealID string) (status string, found bool, err error)
}

// HandleSource resolves actor display handles for enrichment.
type HandleSource interface {
	HandleOf(ctx context.Context, userID string) (handle string, found bool, err error)
}

// Filter selects and pages action log entries. Zero values mean "no filter";
// a zero Limit becomes DefaultLimit.
type Filter struct {
	ReportID       string
	AppealID       string
	BeforeSequence int64
	Limit          int
}

// Entry is one enriched action log row.
type Entry struct {
	Record ledger.Record `json:"record"`

	// ReportID and AppealID are the resolved associations (target fields
	// first, then metadata keys).
	ReportID string `json:"report_id,omitempty"`
	AppealID string `json:"appeal_id,omitempty"`

	// Live enrichment at query time. Empty when the entity or actor no
	// longer resolves.
	ReportStatus string `json:"report_status,omitempty"`
	AppealStatus string `json:"appeal_status,omitempty"`
	ActorHandle  string `json:"actor_handle,omitempty"`
}

// Result is one page of the action log plus the chain verification outcome.
// A broken chain does not block the read; it is surfaced in Verification so
// callers can render a degraded-but-available view with a prominent warning.
type Result struct {
	Entries      []Entry                   `json:"entries"`
	NextCursor   *int64                    `json:"next_cursor"`
	Verification ledger.VerificationResult `json:"chain_verification"`
}

// Builder joins the ledger with live entity state.
type Builder struct {
	records  LedgerSource
	statuses StatusSource
	handles  HandleSource
}

// NewBuilder creates an action log builder over the given sources.
func NewBuilder(records LedgerSource, statuses StatusSource, handles HandleSource) *Builder {
	return &Builder{records: records, statuses: statuses, handles: handles}
}

// Build assembles one page of the action log. It always verifies the full
// ledger first and includes the result; only a storage-level read failure is
// an error.
//
// NextCursor is set only when records remain beyond the returned page. A page
// that comes back exactly full with nothing after it yields a nil cursor, so
// clients never fetch a follow-up page that is guaranteed to be empty.
func (b *Builder) Build(ctx context.Context, filter Filter) (*Result, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	if limit > MaxLimit {
		limit = MaxLimit
	}

	records, err := b.records.ReadAll()
	if err != nil {
		return nil, fmt.Errorf("read ledger: %w", err)
	}

	verification := ledger.Verify(records)

	// Filter to moderation-relevant kinds, then to the requested entity,
	// then to the cursor window.
	matched := make([]ledger.Record, 0, len(records))
	for _, r := range records {
		if !allowedActions[r.Action] {
			continue
		}
		reportID, appealID := attribute(&r)
		if filter.ReportID != "" && reportID != filter.ReportID {
			continue
		}
		if filter.AppealID != "" && appealID != filter.AppealID {
			continue
		}
		if filter.BeforeSequence > 0 && r.Sequence >= filter.BeforeSequence {
			continue
		}
		matched = append(matched, r)
	}

	// Newest first. The ledger is already ascending, but this layer must
	// stay correct when records arrive out of order (external record sets).
	sort.Slice(matched, func(i, j int) bool {
		return matched[i].Sequence > matched[j].Sequence
	})

	page := matched
	if len(page) > limit {
		page = page[:limit]
	}

	entries := make([]Entry, 0, len(page))
	for _, r := range page {
		entry, err := b.enrich(ctx, r)
		if err != nil {
			return nil, err
		}
		entries = append(entries, entry)
	}

	// Cursor: the smallest sequence actually returned, or nil when this
	// page was not full (no further records remain).
	var nextCursor *int64
	if len(entries) == limit && len(matched) > limit {
		smallest := entries[len(entries)-1].Record.Sequence
		nextCursor = &smallest
	}

	return &Result{Entries: entries, NextCursor: nextCursor, Verification: verification}, nil
}

// enrich resolves associations and joins current entity state and the actor
// handle onto one record.
func (b *Builder) enrich(ctx context.Context, r ledger.Record) (Entry, error) {
	entry := Entry{Record: r}
	entry.ReportID, entry.AppealID = attribute(&r)

	if entry.ReportID != "" {
		status, found, err := b.statuses.ReportStatus(ctx, entry.ReportID)
		if err != nil {
			return Entry{}, fmt.Errorf("report status for %s: %w", entry.ReportID, err)
		}
		if found {
			entry.ReportStatus = status
		}
	}
	if entry.AppealID != "" {
		status, found, err := b.statuses.AppealStatus(ctx, entry.AppealID)
		if err != nil {
			return Entry{}, fmt.Errorf("appeal status for %s: %w", entry.AppealID, err)
		}
		if found {
			entry.AppealStatus = status
		}
	}

	handle, found, err := b.handles.HandleOf(ctx, r.ActorID)
	if err != nil {
		return Entry{}, fmt.Errorf("handle for %s: %w", r.ActorID, err)
	}
	if found {
		entry.ActorHandle = handle
	}

	return entry, nil
}

// attribute resolves the report and appeal ids a record concerns. Resolution
// order is fixed: target fields first, then the well-known metadata keys.
// Some actions target the appeal but carry the report id in metadata (and
// vice versa), so both associations can be populated from one record.
func attribute(r *ledger.Record) (reportID, appealID string) {
	switch r.TargetType {
	case "report":
		reportID = r.TargetID
	case "appeal":
		appealID = r.TargetID
	}
	if reportID == "" {
		reportID = r.Metadata[metaReportID]
	}
	if appealID == "" {
		appealID = r.Metadata[metaAppealID]
	}
	return reportID, appealID
}
