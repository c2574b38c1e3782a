// store.go implements the durable ledger store. A Handle is constructed once
// per process against a file path, caches the last committed (sequence, hash)
// pair, and serializes every append through a single-consumer queue so that
// sequence assignment reads last-committed state and writes the next record
// as one logical unit. Reads never go through the queue: they observe
// whatever is durably committed at call time.
package ledger

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// ErrClosed is returned by Append after the handle has been closed.
var ErrClosed = errors.New("ledger: handle closed")

// maxQueueDepth bounds the append queue so a stalled disk surfaces as
// backpressure on callers instead of unbounded memory growth.
const maxQueueDepth = 256

type appendRequest struct {
	input Input
	reply chan appendReply
}

type appendReply struct {
	record Record
	err    error
}

// Handle is the single writer for one ledger file.
//
// Lifecycle: construct with Open, pass explicitly to every caller that
// appends (no package-level state), Close on shutdown. The cached
// (lastSequence, lastHash) pair is built once from the file during Open and
// maintained by the append queue thereafter; it is never rebuilt mid-life.
type Handle struct {
	path string
	file *os.File

	requests chan appendRequest

	// closeMu guards closed and the requests channel lifecycle. Appenders
	// hold the read lock across the closed-check and the enqueue; Close
	// closes the channel under the write lock, so no send can race it.
	closeMu sync.RWMutex
	closed  bool

	mu        sync.Mutex // guards last* for LastState readers
	lastSeq   int64
	lastHash  string
	queueDone chan struct{}
}

// Open opens (creating if necessary) the ledger file at path, replays it to
// establish the last committed state, and starts the append queue. A missing
// or empty file is a valid empty ledger. A file that exists but fails
// structural validation or chain verification causes Open to fail: appending
// to a ledger that is already broken would only bury the evidence.
func Open(path string) (*Handle, error) {
	if dir := filepath.Dir(path); dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("ledger: create directory %s: %w", dir, err)
		}
	}

	records, err := readAllFile(path)
	if err != nil {
		return nil, err
	}
	if result := Verify(records); !result.Valid {
		return nil, result.Err()
	}

	// O_APPEND makes each line write a single atomic append on POSIX
	// filesystems, so a concurrent reader never observes a torn record.
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
	if err != nil {
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}

	h := &Handle{
		path:      path,
		file:      file,
		requests:  make(chan appendRequest, maxQueueDepth),
		lastSeq:   0,
		lastHash:  NullHash,
		queueDone: make(chan struct{}),
	}
	if n := len(records); n > 0 {
		h.lastSeq = records[n-1].Sequence
		h.lastHash = records[n-1].Hash
	}

	go h.run()

	slog.Info("ledger opened", "path", path, "records", len(records), "last_sequence", h.lastSeq)
	return h, nil
}

// run is the single consumer of the append queue. At most one append is in
// flight against durable storage at a time; a failed append reports its error
// to that caller only and the queue continues with the next request.
func (h *Handle) run() {
	defer close(h.queueDone)
	for req := range h.requests {
		record, err := h.commit(req.input)
		if err != nil {
			slog.Error("ledger append failed", "action", req.input.Action, "err", err)
		}
		req.reply <- appendReply{record: record, err: err}
	}
}

// commit assigns sequence and hashes, persists the record, and fsyncs before
// returning. Only run calls commit, so last* mutations here are serialized.
func (h *Handle) commit(input Input) (Record, error) {
	record := Record{
		SchemaVer:    SchemaVersion,
		Sequence:     h.lastSeq + 1,
		PreviousHash: h.lastHash,
		RecordID:     input.RecordID,
		ActorID:      input.ActorID,
		Action:       input.Action,
		TargetType:   input.TargetType,
		TargetID:     input.TargetID,
		Metadata:     input.Metadata,
		CreatedAt:    input.CreatedAt,
	}
	if record.RecordID == "" {
		record.RecordID = uuid.New().String()
	}
	if record.CreatedAt == "" {
		record.CreatedAt = time.Now().UTC().Format(time.RFC3339Nano)
	}
	record.Hash = ComputeHash(&record)

	line, err := json.Marshal(record)
	if err != nil {
		return Record{}, fmt.Errorf("ledger: marshal record: %w", err)
	}
	line = append(line, '\n')

	if _, err := h.file.Write(line); err != nil {
		return Record{}, fmt.Errorf("ledger: write record: %w", err)
	}
	// Flush to stable storage before acknowledging: a crash after Append
	// returns must never lose the record.
	if err := h.file.Sync(); err != nil {
		return Record{}, fmt.Errorf("ledger: sync record: %w", err)
	}

	h.mu.Lock()
	h.lastSeq = record.Sequence
	h.lastHash = record.Hash
	h.mu.Unlock()

	return record, nil
}

// Append validates the input, queues it, and blocks until the record is
// durably committed (or the context is cancelled while still queued). The
// returned record carries the assigned sequence, previous hash, and hash.
func (h *Handle) Append(ctx context.Context, input Input) (Record, error) {
	if input.ActorID == "" {
		return Record{}, errors.New("ledger: actor id is required")
	}
	if !KnownAction(input.Action) {
		return Record{}, fmt.Errorf("ledger: unknown action %q", input.Action)
	}
	if input.TargetType == "" || input.TargetID == "" {
		return Record{}, errors.New("ledger: target type and id are required")
	}

	h.closeMu.RLock()
	if h.closed {
		h.closeMu.RUnlock()
		return Record{}, ErrClosed
	}

	// The read lock is held across the enqueue itself: Close cannot close
	// the channel until every in-flight send has released it. The queue
	// consumer keeps draining throughout, so the send always completes.
	req := appendRequest{input: input, reply: make(chan appendReply, 1)}
	select {
	case h.requests <- req:
		h.closeMu.RUnlock()
	case <-ctx.Done():
		h.closeMu.RUnlock()
		return Record{}, ctx.Err()
	}

	// Once queued the append is not cancellable: the queue owns it and will
	// commit or fail it, and the caller must learn which.
	reply := <-req.reply
	return reply.record, reply.err
}

// LastState returns the cached (lastSequence, lastHash) pair. For an empty
// ledger it returns (0, NullHash).
func (h *Handle) LastState() (int64, string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.lastSeq, h.lastHash
}

// ReadAll reads every committed record from durable storage in ascending
// sequence order, validating structural well-formedness of each line. It does
// not go through the append queue and never blocks writers.
func (h *Handle) ReadAll() ([]Record, error) {
	return readAllFile(h.path)
}

// Close drains the append queue and closes the file. Appends submitted after
// Close fail with ErrClosed.
func (h *Handle) Close() error {
	h.closeMu.Lock()
	if h.closed {
		h.closeMu.Unlock()
		return nil
	}
	h.closed = true
	close(h.requests)
	h.closeMu.Unlock()

	<-h.queueDone
	return h.file.Close()
}

// readAllFile parses the ledger file at path. A missing file is an empty
// ledger. Any line that fails to parse or fails structural validation is a
// fatal *MalformedRecordError citing its 1-based line number; lines are never
// silently skipped.
func readAllFile(path string) ([]Record, error) {
	file, err := os.Open(path) // #nosec G304 -- path comes from operator config
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("ledger: open %s: %w", path, err)
	}
	defer file.Close()

	var records []Record
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)

	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := scanner.Bytes()
		if len(line) == 0 {
			return nil, &MalformedRecordError{Line: lineNo, Reason: "empty line"}
		}

		var record Record
		if err := json.Unmarshal(line, &record); err != nil {
			return nil, &MalformedRecordError{Line: lineNo, Reason: "invalid JSON", Err: err}
		}
		if err := validateRecord(&record); err != nil {
			return nil, &MalformedRecordError{Line: lineNo, Reason: err.Error()}
		}
		records = append(records, record)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("ledger: read %s: %w", path, err)
	}

	return records, nil
}

// validateRecord checks structural well-formedness of a deserialized record.
// Chain-level properties (sequence contiguity, linkage, hash equality) are
// Verify's job, not this function's.
func validateRecord(r *Record) error {
	if r.SchemaVer != SchemaVersion {
		return fmt.Errorf("unknown schema version %d", r.SchemaVer)
	}
	if r.Sequence < 1 {
		return fmt.Errorf("non-positive sequence %d", r.Sequence)
	}
	if r.PreviousHash == "" {
		return errors.New("missing previous_hash")
	}
	if r.Hash == "" {
		return errors.New("missing hash")
	}
	if r.RecordID == "" {
		return errors.New("missing record_id")
	}
	if r.ActorID == "" {
		return errors.New("missing actor_id")
	}
	if !KnownAction(r.Action) {
		return fmt.Errorf("unknown action %q", r.Action)
	}
	if r.TargetType == "" || r.TargetID == "" {
		return errors.New("missing target_type or target_id")
	}
	if _, err := r.Time(); err != nil {
		return fmt.Errorf("unparseable created_at %q", r.CreatedAt)
	}
	return nil
}
