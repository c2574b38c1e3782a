// verify.go implements chain verification: a pure walk over an ordered record
// slice that recomputes every hash and checks sequence contiguity and
// previous-hash linkage. It has no side effects and touches no storage, so it
// can run against the live ledger or against externally supplied (possibly
// tampered) record sets for forensics.
package ledger

import "fmt"

// Verification failure reasons, stable for machine consumption.
const (
	ReasonSequenceMismatch = "sequence mismatch"
	ReasonBrokenLink       = "broken link"
	ReasonHashMismatch     = "hash mismatch"
)

// VerificationResult is the outcome of a chain walk. When Valid is false,
// FailedSequence carries the sequence number of the offending record and
// Reason one of the Reason* constants above.
type VerificationResult struct {
	Valid          bool   `json:"valid"`
	FailedSequence int64  `json:"failed_sequence,omitempty"`
	Reason         string `json:"reason,omitempty"`
	// Detail is a human-readable elaboration (expected vs got).
	Detail string `json:"detail,omitempty"`
	// Records is the number of records walked before success or failure.
	Records int `json:"records"`
}

// Err returns nil for a valid result, or a *ChainError describing the break.
func (v VerificationResult) Err() error {
	if v.Valid {
		return nil
	}
	reason := v.Reason
	if v.Detail != "" {
		reason = reason + ": " + v.Detail
	}
	return &ChainError{Sequence: v.FailedSequence, Reason: reason}
}

// Verify walks records in order and checks, for each one, that its sequence
// is the expected next value, that its PreviousHash equals the prior record's
// Hash (NullHash for the first), and that its stored Hash matches the digest
// recomputed over its own fields. The hash recomputation is what detects
// tampering with any field, metadata included.
//
// An empty input is vacuously valid. Verify is idempotent: repeated calls on
// the same slice yield the same result.
func Verify(records []Record) VerificationResult {
	expectedSequence := int64(1)
	expectedPreviousHash := NullHash

	for i := range records {
		r := &records[i]

		if r.Sequence != expectedSequence {
			return VerificationResult{
				FailedSequence: r.Sequence,
				Reason:         ReasonSequenceMismatch,
				Detail:         fmt.Sprintf("expected sequence %d, got %d", expectedSequence, r.Sequence),
				Records:        i,
			}
		}

		if r.PreviousHash != expectedPreviousHash {
			return VerificationResult{
				FailedSequence: r.Sequence,
				Reason:         ReasonBrokenLink,
				Detail:         fmt.Sprintf("previous_hash %q does not match prior record hash %q", r.PreviousHash, expectedPreviousHash),
				Records:        i,
			}
		}

		if computed := ComputeHash(r); computed != r.Hash {
			return VerificationResult{
				FailedSequence: r.Sequence,
				Reason:         ReasonHashMismatch,
				Detail:         fmt.Sprintf("stored hash %q, recomputed %q", r.Hash, computed),
				Records:        i,
			}
		}

		expectedSequence++
		expectedPreviousHash = r.Hash
	}

	return VerificationResult{Valid: true, Records: len(records)}
}
