package adapters

import (
	"bufio"
	"context"
	"encoding/json"
	"math"
	"os"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"reprosign/internal/core"
	"reprosign/internal/ports"
	"reprosign/internal/types"
)

// FileAuditLog is an append-only JSONL hash chain on local disk. The
// append lock is the single-writer serialization point: components may
// append concurrently, but entries are chained one at a time.
type FileAuditLog struct {
	mu    sync.Mutex
	path  string
	head  types.AuditEntry
	clock func() time.Time
}

func NewFileAuditLog(path string) (*FileAuditLog, error) {
	l := &FileAuditLog{path: path, clock: time.Now}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDONLY, 0o600) //nolint:gosec // operator-configured path
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open audit log").
			WithCause(err)
	}
	defer func() { _ = f.Close() }()

	// Recover the chain head so appends continue the existing chain.
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry types.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("audit log contains a malformed entry").
				WithCause(err)
		}
		l.head = entry
	}
	if err := scanner.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan audit log").
			WithCause(err)
	}
	return l, nil
}

func (l *FileAuditLog) Append(ctx context.Context, event types.AuditEvent) (types.AuditEntry, error) {
	payload, err := normalizePayload(event.Payload)
	if err != nil {
		return types.AuditEntry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	entry := types.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  l.clock().UTC(),
		Actor:      event.Actor,
		Action:     event.Action,
		EntityKind: event.EntityKind,
		EntityID:   event.EntityID,
		Payload:    payload,
	}
	sealed, err := core.SealEntry(entry, l.head)
	if err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to seal audit entry").
			WithCause(err)
	}

	line, err := json.Marshal(sealed)
	if err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to encode audit entry").
			WithCause(err)
	}
	f, err := os.OpenFile(l.path, os.O_APPEND|os.O_WRONLY, 0o600) //nolint:gosec // operator-configured path
	if err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open audit log for append").
			WithCause(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(line, '\n')); err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to write audit entry").
			WithCause(err)
	}

	l.head = sealed
	return sealed, nil
}

// Range returns entries with fromSeq <= Seq <= toSeq. Zero bounds are
// open: fromSeq 0 starts at genesis, toSeq 0 runs to the head.
func (l *FileAuditLog) Range(ctx context.Context, fromSeq, toSeq uint64) ([]types.AuditEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if toSeq == 0 {
		toSeq = math.MaxUint64
	}

	f, err := os.Open(l.path)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to open audit log").
			WithCause(err)
	}
	defer func() { _ = f.Close() }()

	var out []types.AuditEntry
	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
	for scanner.Scan() {
		var entry types.AuditEntry
		if err := json.Unmarshal(scanner.Bytes(), &entry); err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("audit log contains a malformed entry").
				WithCause(err)
		}
		if entry.Seq < fromSeq || entry.Seq > toSeq {
			continue
		}
		out = append(out, entry)
	}
	if err := scanner.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan audit log").
			WithCause(err)
	}
	return out, nil
}

func (l *FileAuditLog) Head(ctx context.Context) (types.AuditEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.head.Hash == "" {
		return types.AuditEntry{}, false, nil
	}
	return l.head, true, nil
}

// normalizePayload round-trips the payload through JSON so the sealed
// hash is computed over the same generic representation a reader gets
// back from disk. Without this, a struct payload would hash differently
// before and after reload.
func normalizePayload(payload any) (any, error) {
	if payload == nil {
		return nil, nil
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("audit payload is not JSON-encodable").
			WithCause(err)
	}
	var generic any
	if err := json.Unmarshal(raw, &generic); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("audit payload normalization failed").
			WithCause(err)
	}
	return generic, nil
}

var _ ports.AuditLog = (*FileAuditLog)(nil)
