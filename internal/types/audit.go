package types

import "time"

// GenesisHash is the PrevHash of the first entry in an audit chain.
const GenesisHash = "0000000000000000000000000000000000000000000000000000000000000000"

// Audit action names. One per tracked state transition.
const (
	ActionBuildSubmitted    = "build.submitted"
	ActionBuildRejected     = "build.rejected"
	ActionBuilderCompleted  = "build.builder_completed"
	ActionBuildDecided      = "build.decided"
	ActionBuildCancelled    = "build.cancelled"
	ActionRequestCreated    = "signing.request_created"
	ActionVoteRecorded      = "signing.vote_recorded"
	ActionRequestDenied     = "signing.request_denied"
	ActionRequestExpired    = "signing.request_expired"
	ActionRequestSigned     = "signing.request_signed"
	ActionAuthMismatch      = "signing.authorization_mismatch"
	ActionKeyCreated        = "key.created"
	ActionKeyRevoked        = "key.revoked"
	ActionSuspensionApplied = "suspension.applied"
	ActionSuspensionLifted  = "suspension.lifted"
)

// AuditEvent is what components hand to the log: everything except the
// chain linkage, which the log itself assigns under its append lock.
type AuditEvent struct {
	Actor      string `json:"actor"`
	Action     string `json:"action"`
	EntityKind string `json:"entity_kind"`
	EntityID   string `json:"entity_id"`
	Payload    any    `json:"payload,omitempty"`
}

// AuditEntry is one link of the hash chain. Hash covers the canonical
// JSON form of the entry with Hash itself blanked; PrevHash embeds the
// predecessor's Hash, so no entry can be altered or removed without
// breaking every later link.
type AuditEntry struct {
	Seq        uint64    `json:"seq"`
	ID         string    `json:"id"`
	Timestamp  time.Time `json:"timestamp"`
	Actor      string    `json:"actor"`
	Action     string    `json:"action"`
	EntityKind string    `json:"entity_kind"`
	EntityID   string    `json:"entity_id"`
	Payload    any       `json:"payload,omitempty"`
	PrevHash   string    `json:"prev_hash"`
	Hash       string    `json:"hash"`
}

// SuspensionRecord marks an artifact as pulled from distribution.
// Monotonic: lifting is a separate, separately authorized action that
// sets Active false, never a deletion.
type SuspensionRecord struct {
	ID         string     `json:"id"`
	ArtifactID string     `json:"artifact_id"`
	Reason     string     `json:"reason"`
	Authority  string     `json:"authority"`
	Active     bool       `json:"active"`
	CreatedAt  time.Time  `json:"created_at"`
	LiftedAt   *time.Time `json:"lifted_at,omitempty"`
	LiftedBy   string     `json:"lifted_by,omitempty"`
}
