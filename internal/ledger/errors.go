// errors.go defines the typed integrity errors surfaced by the ledger:
// MalformedRecordError for unreadable persisted lines and ChainError for
// sequence/link/hash mismatches found during verification.
package ledger

import "fmt"

// MalformedRecordError reports a persisted ledger line that failed structural
// validation. The line is never skipped: a ledger that cannot be read in full
// cannot be trusted at all, so the read fails loudly with the position.
type MalformedRecordError struct {
	// Line is the 1-based line number of the offending record.
	Line int
	// Reason describes what made the line unreadable.
	Reason string
	// Err is the underlying parse error, if any.
	Err error
}

func (e *MalformedRecordError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed ledger record at line %d: %s: %v", e.Line, e.Reason, e.Err)
	}
	return fmt.Sprintf("malformed ledger record at line %d: %s", e.Line, e.Reason)
}

func (e *MalformedRecordError) Unwrap() error { return e.Err }

// ChainError reports a broken hash chain. It carries the sequence number at
// which verification failed and a human-readable reason. Integrity failures
// are reported, never corrected: no code path repairs, truncates, or re-signs
// a committed record.
type ChainError struct {
	Sequence int64
	Reason   string
}

func (e *ChainError) Error() string {
	return fmt.Sprintf("ledger chain broken at sequence %d: %s", e.Sequence, e.Reason)
}
