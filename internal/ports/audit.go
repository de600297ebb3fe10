package ports

import (
	"context"

	"reprosign/internal/types"
)

// AuditLog is the append-only, hash-chained record of every state
// transition. Append calls are serialized by the implementation: one
// append in flight at a time, even with concurrent callers.
type AuditLog interface {
	Append(ctx context.Context, event types.AuditEvent) (types.AuditEntry, error)
	// Range returns entries with fromSeq <= Seq <= toSeq in order.
	Range(ctx context.Context, fromSeq, toSeq uint64) ([]types.AuditEntry, error)
	Head(ctx context.Context) (types.AuditEntry, bool, error)
}
