package ports

import (
	"context"

	"reprosign/internal/types"
)

// QuorumProof asserts that a signing quorum was reached for one exact
// digest. The vault re-checks the binding before touching the key, so
// a compromised caller cannot sign arbitrary data.
type QuorumProof struct {
	RequestID string
	Digest    string
	Votes     []types.AuthorizationRecord
	Threshold int
}

// KeyVault is the hardware boundary. It deals only in opaque handles
// and digests; no method can return private key material. Key creation
// is reserved for the ceremony workflow, outside normal request flow.
type KeyVault interface {
	CreateKey(ctx context.Context, role types.KeyRole, parentID string) (types.KeyRecord, error)
	Sign(ctx context.Context, keyID string, digest string, proof QuorumProof) (string, error)
	Revoke(ctx context.Context, keyID string) error
	Get(ctx context.Context, keyID string) (types.KeyRecord, error)
	List(ctx context.Context) ([]types.KeyRecord, error)
	// Verify checks a signature against the key's public material.
	// Succeeds for revoked keys too: past signatures stay verifiable
	// against the key's validity window.
	Verify(ctx context.Context, keyID string, digest string, signature string) (bool, error)
}
