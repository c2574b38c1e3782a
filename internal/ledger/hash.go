// hash.go computes the canonical SHA-256 digest of a ledger record. The
// digest covers every field except Hash itself, including PreviousHash, which
// is what links each record to its predecessor.
package ledger

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
)

// hashPayload mirrors Record minus the Hash field. Marshalling a struct (not
// a map) fixes the field order, and encoding/json emits Metadata keys sorted,
// so the serialization is deterministic across processes and metadata
// insertion order.
type hashPayload struct {
	SchemaVer    int               `json:"schema_version"`
	Sequence     int64             `json:"sequence"`
	PreviousHash string            `json:"previous_hash"`
	RecordID     string            `json:"record_id"`
	ActorID      string            `json:"actor_id"`
	Action       string            `json:"action"`
	TargetType   string            `json:"target_type"`
	TargetID     string            `json:"target_id"`
	Metadata     map[string]string `json:"metadata,omitempty"`
	CreatedAt    string            `json:"created_at"`
}

// ComputeHash returns the hex-encoded SHA-256 digest over the canonical
// serialization of r, excluding r.Hash. Exported so the verifier and external
// forensic tooling can recompute digests without access to the store.
func ComputeHash(r *Record) string {
	payload := hashPayload{
		SchemaVer:    r.SchemaVer,
		Sequence:     r.Sequence,
		PreviousHash: r.PreviousHash,
		RecordID:     r.RecordID,
		ActorID:      r.ActorID,
		Action:       r.Action,
		TargetType:   r.TargetType,
		TargetID:     r.TargetID,
		Metadata:     r.Metadata,
		CreatedAt:    r.CreatedAt,
	}

	// Marshalling cannot fail: the payload contains only strings, ints,
	// and a string map.
	data, _ := json.Marshal(payload)

	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}
