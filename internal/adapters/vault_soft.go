package adapters

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reprosign/internal/ports"
	"reprosign/internal/types"
)

// SoftwareVault implements ports.KeyVault in process. It stands in for
// a PKCS#11 hardware module in development and tests: private keys
// live only inside this adapter and nothing in its API can export
// them. Production deployments replace it behind the same port.
type SoftwareVault struct {
	mu        sync.RWMutex
	records   map[string]types.KeyRecord
	privates  map[string]ed25519.PrivateKey
	signLocks map[string]*sync.Mutex
	available bool
	clock     func() time.Time
}

func NewSoftwareVault() *SoftwareVault {
	return &SoftwareVault{
		records:   make(map[string]types.KeyRecord),
		privates:  make(map[string]ed25519.PrivateKey),
		signLocks: make(map[string]*sync.Mutex),
		available: true,
		clock:     time.Now,
	}
}

// SetAvailable simulates hardware loss. With availability off, every
// operation fails closed with HsmUnavailable.
func (v *SoftwareVault) SetAvailable(ok bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.available = ok
}

func (v *SoftwareVault) unavailableErr() error {
	return errbuilder.New().
		WithCode(errbuilder.CodeInternal).
		WithMsg(types.ReasonHsmUnavailable)
}

func (v *SoftwareVault) CreateKey(ctx context.Context, role types.KeyRole, parentID string) (types.KeyRecord, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.available {
		return types.KeyRecord{}, v.unavailableErr()
	}

	switch role {
	case types.KeyRoleRoot:
		if parentID != "" {
			return types.KeyRecord{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("root key cannot have a parent")
		}
	case types.KeyRoleRepositorySigning, types.KeyRoleAppSigning:
		parent, ok := v.records[parentID]
		if !ok {
			return types.KeyRecord{}, errbuilder.New().
				WithCode(errbuilder.CodeNotFound).
				WithMsg(fmt.Sprintf("parent key not found: %s", parentID))
		}
		if parent.State == types.KeyStateRevoked {
			return types.KeyRecord{}, errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(types.ReasonKeyRevoked)
		}
	default:
		return types.KeyRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("unknown key role: %s", role))
	}

	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	if err != nil {
		return types.KeyRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("key generation failed").
			WithCause(err)
	}

	id := uuid.NewString()
	record := types.KeyRecord{
		ID:        id,
		Role:      role,
		Handle:    "soft:" + id,
		ParentID:  parentID,
		PublicKey: hex.EncodeToString(pub),
		State:     types.KeyStateActive,
		CreatedAt: v.clock().UTC(),
	}
	v.records[id] = record
	v.privates[id] = priv
	v.signLocks[id] = &sync.Mutex{}

	log.Info().Str("key_id", id).Str("role", string(role)).Msg("key created in software vault")
	return record, nil
}

// Sign refuses to execute unless the quorum proof binds the exact
// digest requested and carries enough distinct approvals. Even a
// compromised caller cannot sign arbitrary data through this port.
func (v *SoftwareVault) Sign(ctx context.Context, keyID string, digest string, proof ports.QuorumProof) (string, error) {
	v.mu.RLock()
	if !v.available {
		v.mu.RUnlock()
		return "", v.unavailableErr()
	}
	record, ok := v.records[keyID]
	if !ok {
		v.mu.RUnlock()
		return "", errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("key not found: %s", keyID))
	}
	if err := v.lineageRevoked(record); err != nil {
		v.mu.RUnlock()
		return "", err
	}
	priv := v.privates[keyID]
	lock := v.signLocks[keyID]
	v.mu.RUnlock()

	if err := checkProof(digest, proof); err != nil {
		return "", err
	}

	// One signing operation in flight per key.
	lock.Lock()
	defer lock.Unlock()

	raw, err := hex.DecodeString(digest)
	if err != nil {
		return "", errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("digest is not valid hex").
			WithCause(err)
	}
	sig := ed25519.Sign(priv, raw)
	return hex.EncodeToString(sig), nil
}

// checkProof validates the quorum proof against the requested digest:
// binding first, then distinct approve votes.
func checkProof(digest string, proof ports.QuorumProof) error {
	mismatch := errbuilder.New().
		WithCode(errbuilder.CodePermissionDenied).
		WithMsg(types.ReasonAuthorizationMismatch)

	if proof.Digest != digest || proof.Threshold < 1 {
		return mismatch
	}
	approvals := map[string]struct{}{}
	for _, vote := range proof.Votes {
		if vote.Decision != types.VoteApprove || vote.BoundDigest != digest {
			continue
		}
		approvals[vote.AuthorizerID] = struct{}{}
	}
	if len(approvals) < proof.Threshold {
		return mismatch
	}
	return nil
}

// lineageRevoked walks up the hierarchy: a revoked ancestor blocks all
// descendants for new operations.
func (v *SoftwareVault) lineageRevoked(record types.KeyRecord) error {
	for {
		if record.State == types.KeyStateRevoked {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(types.ReasonKeyRevoked)
		}
		if record.ParentID == "" {
			return nil
		}
		parent, ok := v.records[record.ParentID]
		if !ok {
			return nil
		}
		record = parent
	}
}

func (v *SoftwareVault) Revoke(ctx context.Context, keyID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()

	if !v.available {
		return v.unavailableErr()
	}
	record, ok := v.records[keyID]
	if !ok {
		return errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("key not found: %s", keyID))
	}
	if record.State == types.KeyStateRevoked {
		return nil
	}
	now := v.clock().UTC()
	record.State = types.KeyStateRevoked
	record.RevokedAt = &now
	v.records[keyID] = record
	log.Warn().Str("key_id", keyID).Msg("key revoked")
	return nil
}

func (v *SoftwareVault) Get(ctx context.Context, keyID string) (types.KeyRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.available {
		return types.KeyRecord{}, v.unavailableErr()
	}
	record, ok := v.records[keyID]
	if !ok {
		return types.KeyRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("key not found: %s", keyID))
	}
	return record, nil
}

func (v *SoftwareVault) List(ctx context.Context) ([]types.KeyRecord, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	if !v.available {
		return nil, v.unavailableErr()
	}
	out := make([]types.KeyRecord, 0, len(v.records))
	for _, r := range v.records {
		out = append(out, r)
	}
	return out, nil
}

// Verify checks a signature against the key's public material. It
// deliberately ignores revocation: past signatures stay structurally
// valid, availability of the key for new work is a separate question.
func (v *SoftwareVault) Verify(ctx context.Context, keyID string, digest string, signature string) (bool, error) {
	v.mu.RLock()
	defer v.mu.RUnlock()

	record, ok := v.records[keyID]
	if !ok {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("key not found: %s", keyID))
	}
	pub, err := hex.DecodeString(record.PublicKey)
	if err != nil || len(pub) != ed25519.PublicKeySize {
		return false, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("stored public key is corrupt")
	}
	raw, err := hex.DecodeString(digest)
	if err != nil {
		return false, nil
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return false, nil
	}
	return ed25519.Verify(ed25519.PublicKey(pub), raw, sig), nil
}

var _ ports.KeyVault = (*SoftwareVault)(nil)
