package adapters

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"strings"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/ports"
	"reprosign/internal/types"
)

// Ed25519SourceVerifier checks the detached signature the source
// ecosystem publishes over a pinned reference. A job whose reference
// does not verify against any trusted publisher key never reaches a
// builder.
type Ed25519SourceVerifier struct {
	trusted []ed25519.PublicKey
}

func NewEd25519SourceVerifier(publisherKeysHex []string) (*Ed25519SourceVerifier, error) {
	v := &Ed25519SourceVerifier{}
	for _, raw := range publisherKeysHex {
		raw = strings.TrimSpace(raw)
		if raw == "" {
			continue
		}
		key, err := hex.DecodeString(raw)
		if err != nil || len(key) != ed25519.PublicKeySize {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("publisher key is not a valid ed25519 public key")
		}
		v.trusted = append(v.trusted, ed25519.PublicKey(key))
	}
	if len(v.trusted) == 0 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source verifier requires at least one publisher key")
	}
	return v, nil
}

func (v *Ed25519SourceVerifier) VerifySource(ctx context.Context, sourceRef, signature string) error {
	failed := errbuilder.New().
		WithCode(errbuilder.CodeInvalidArgument).
		WithMsg(types.ReasonSourceVerificationFailed)

	if strings.TrimSpace(sourceRef) == "" || strings.TrimSpace(signature) == "" {
		return failed
	}
	sig, err := hex.DecodeString(signature)
	if err != nil {
		return failed
	}
	for _, key := range v.trusted {
		if ed25519.Verify(key, []byte(sourceRef), sig) {
			return nil
		}
	}
	return failed
}

var _ ports.SourceVerifier = (*Ed25519SourceVerifier)(nil)
