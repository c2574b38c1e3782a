// Package ledger implements the tamper-evident audit ledger: an append-only,
// hash-chained sequence of immutable records persisted as newline-delimited
// JSON. Each record's hash covers every other field of the record including
// the previous record's hash, so retroactively editing any committed record
// (including its metadata) breaks the chain from that point forward and is
// detected by Verify.
//
// The ledger is the sole ordering authority for moderation history: the
// Sequence field is monotonic and gap-free, while CreatedAt is caller-supplied
// wall-clock context and is never trusted for ordering.
//
// Deployment constraint: a ledger file must have exactly one writer process.
// The in-process append queue serializes writers within one process; nothing
// here protects against two processes appending to the same file.
package ledger

import "time"

// SchemaVersion is the record schema understood by this package. ReadAll
// rejects lines carrying any other version rather than guessing at their
// field layout.
const SchemaVersion = 1

// NullHash is the previous-hash sentinel carried by the first record of a
// chain (64 zero hex characters, the width of a SHA-256 digest).
const NullHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Action kinds recorded in the ledger. The set is closed: ReadAll accepts
// only these values.
const (
	ActionReportCreated   = "report.created"
	ActionOverrideApplied = "moderation.override.applied"
	ActionAppealCreated   = "appeal.created"
	ActionAppealReviewed  = "appeal.reviewed"
	ActionSignedIn        = "auth.signed_in"
	ActionSignedOut       = "auth.signed_out"
)

// KnownAction reports whether action is one of the closed set of event kinds.
func KnownAction(action string) bool {
	switch action {
	case ActionReportCreated, ActionOverrideApplied, ActionAppealCreated,
		ActionAppealReviewed, ActionSignedIn, ActionSignedOut:
		return true
	}
	return false
}

// Record is one immutable fact in the ledger. Once appended it is never
// updated or deleted; there is deliberately no code path in this package
// that rewrites a committed record.
//
// Field order here matches the canonical hash serialization in hash.go;
// keep the two in sync when adding fields.
type Record struct {
	// SchemaVer identifies the record layout for forward compatibility.
	SchemaVer int `json:"schema_version"`

	// Sequence is the 1-based, strictly increasing, gap-free position of
	// this record. Assigned by the ledger handle, never by callers.
	Sequence int64 `json:"sequence"`

	// PreviousHash is the Hash of the record at Sequence-1, or NullHash
	// for the first record.
	PreviousHash string `json:"previous_hash"`

	// Hash is the SHA-256 digest (hex) over the canonical serialization of
	// every other field of this record. Assigned by the ledger handle.
	Hash string `json:"hash"`

	// RecordID is a globally unique identifier for dedup and external
	// reference. It plays no part in chain ordering.
	RecordID string `json:"record_id"`

	// ActorID identifies the human or system actor responsible.
	ActorID string `json:"actor_id"`

	// Action is one of the closed set of event kinds above.
	Action string `json:"action"`

	// TargetType and TargetID name the entity the action concerns,
	// e.g. ("report", "rpt_1").
	TargetType string `json:"target_type"`
	TargetID   string `json:"target_id"`

	// Metadata carries domain-specific context such as previous/new status.
	// String-to-string keeps the canonical serialization deterministic
	// (encoding/json emits map keys in sorted order).
	Metadata map[string]string `json:"metadata,omitempty"`

	// CreatedAt is the caller-supplied RFC 3339 timestamp. Informational
	// only; Sequence is authoritative for ordering.
	CreatedAt string `json:"created_at"`
}

// Input is the caller-supplied portion of a record. Sequence, PreviousHash,
// Hash, and SchemaVer are assigned by the handle during Append; RecordID and
// CreatedAt are filled in when left empty.
type Input struct {
	RecordID   string
	ActorID    string
	Action     string
	TargetType string
	TargetID   string
	Metadata   map[string]string
	CreatedAt  string
}

// Time parses the record's CreatedAt timestamp.
func (r *Record) Time() (time.Time, error) {
	return time.Parse(time.RFC3339Nano, r.CreatedAt)
}
