package adapters

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"reprosign/internal/core"
	"reprosign/internal/ports"
	"reprosign/internal/types"
)

// SQLAuditLog stores the hash chain in an append-only table. It works
// against both Postgres (lib/pq) and SQLite (modernc.org/sqlite): the
// schema and $n placeholders are valid on both.
type SQLAuditLog struct {
	mu    sync.Mutex
	db    *sql.DB
	clock func() time.Time
}

// ts is stored as RFC 3339 text, not a native timestamp: linkage
// hashes cover the entry's JSON form, and driver-level precision or
// zone rewriting on a native column would break recomputation.
const auditSchema = `
CREATE TABLE IF NOT EXISTS audit_entries (
	seq BIGINT PRIMARY KEY,
	id TEXT NOT NULL,
	ts TEXT NOT NULL,
	actor TEXT NOT NULL,
	action TEXT NOT NULL,
	entity_kind TEXT NOT NULL,
	entity_id TEXT NOT NULL,
	payload TEXT,
	prev_hash TEXT NOT NULL,
	hash TEXT NOT NULL
);
`

func NewSQLAuditLog(db *sql.DB) *SQLAuditLog {
	return &SQLAuditLog{db: db, clock: time.Now}
}

func (l *SQLAuditLog) Init(ctx context.Context) error {
	if _, err := l.db.ExecContext(ctx, auditSchema); err != nil {
		return errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to create audit schema").
			WithCause(err)
	}
	return nil
}

func (l *SQLAuditLog) Append(ctx context.Context, event types.AuditEvent) (types.AuditEntry, error) {
	payload, err := normalizePayload(event.Payload)
	if err != nil {
		return types.AuditEntry{}, err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	head, _, err := l.headLocked(ctx)
	if err != nil {
		return types.AuditEntry{}, err
	}

	entry := types.AuditEntry{
		ID:         uuid.NewString(),
		Timestamp:  l.clock().UTC(),
		Actor:      event.Actor,
		Action:     event.Action,
		EntityKind: event.EntityKind,
		EntityID:   event.EntityID,
		Payload:    payload,
	}
	sealed, err := core.SealEntry(entry, head)
	if err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to seal audit entry").
			WithCause(err)
	}

	var payloadJSON sql.NullString
	if sealed.Payload != nil {
		raw, err := json.Marshal(sealed.Payload)
		if err != nil {
			return types.AuditEntry{}, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to encode audit payload").
				WithCause(err)
		}
		payloadJSON = sql.NullString{String: string(raw), Valid: true}
	}

	const insert = `
		INSERT INTO audit_entries (seq, id, ts, actor, action, entity_kind, entity_id, payload, prev_hash, hash)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	if _, err := l.db.ExecContext(ctx, insert,
		sealed.Seq, sealed.ID, sealed.Timestamp.Format(time.RFC3339Nano), sealed.Actor, sealed.Action,
		sealed.EntityKind, sealed.EntityID, payloadJSON, sealed.PrevHash, sealed.Hash,
	); err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to insert audit entry").
			WithCause(err)
	}
	return sealed, nil
}

// Range returns entries with fromSeq <= Seq <= toSeq. Zero bounds are
// open: fromSeq 0 starts at genesis, toSeq 0 runs to the head.
func (l *SQLAuditLog) Range(ctx context.Context, fromSeq, toSeq uint64) ([]types.AuditEntry, error) {
	if toSeq == 0 {
		toSeq = math.MaxInt64
	}
	const query = `
		SELECT seq, id, ts, actor, action, entity_kind, entity_id, payload, prev_hash, hash
		FROM audit_entries WHERE seq >= $1 AND seq <= $2 ORDER BY seq
	`
	rows, err := l.db.QueryContext(ctx, query, fromSeq, toSeq)
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to query audit entries").
			WithCause(err)
	}
	defer func() { _ = rows.Close() }()

	var out []types.AuditEntry
	for rows.Next() {
		entry, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to read audit entries").
			WithCause(err)
	}
	return out, nil
}

func (l *SQLAuditLog) Head(ctx context.Context) (types.AuditEntry, bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.headLocked(ctx)
}

func (l *SQLAuditLog) headLocked(ctx context.Context) (types.AuditEntry, bool, error) {
	const query = `
		SELECT seq, id, ts, actor, action, entity_kind, entity_id, payload, prev_hash, hash
		FROM audit_entries ORDER BY seq DESC LIMIT 1
	`
	row := l.db.QueryRowContext(ctx, query)
	entry, err := scanEntry(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AuditEntry{}, false, nil
		}
		return types.AuditEntry{}, false, err
	}
	return entry, true, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEntry(row rowScanner) (types.AuditEntry, error) {
	var entry types.AuditEntry
	var payload sql.NullString
	var ts string
	err := row.Scan(&entry.Seq, &entry.ID, &ts, &entry.Actor, &entry.Action,
		&entry.EntityKind, &entry.EntityID, &payload, &entry.PrevHash, &entry.Hash)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.AuditEntry{}, err
		}
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to scan audit entry").
			WithCause(err)
	}
	entry.Timestamp, err = time.Parse(time.RFC3339Nano, ts)
	if err != nil {
		return types.AuditEntry{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("stored audit timestamp is malformed").
			WithCause(err)
	}
	if payload.Valid {
		var generic any
		if err := json.Unmarshal([]byte(payload.String), &generic); err != nil {
			return types.AuditEntry{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg("stored audit payload is malformed").
				WithCause(err)
		}
		entry.Payload = generic
	}
	return entry, nil
}

var _ ports.AuditLog = (*SQLAuditLog)(nil)
