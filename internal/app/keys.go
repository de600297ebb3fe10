package app

import (
	"context"
	"fmt"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/types"
)

// requireCeremony checks that every participant the ceremony policy
// names is present. Key creation and revocation both run under it.
func (s *Service) requireCeremony(participants []string) error {
	present := make(map[string]bool, len(participants))
	for _, p := range participants {
		present[p] = true
	}
	for _, required := range s.CeremonyPolicy.Participants {
		if !present[required] {
			return errbuilder.New().
				WithCode(errbuilder.CodeFailedPrecondition).
				WithMsg(fmt.Sprintf("ceremony participant %q is absent", required))
		}
	}
	return nil
}

// KeyCeremony creates a key in the hierarchy. A ceremony with an
// absent participant does not run.
func (s *Service) KeyCeremony(ctx context.Context, in CeremonyRequest) (types.KeyRecord, error) {
	if err := s.requireCeremony(in.Participants); err != nil {
		return types.KeyRecord{}, err
	}

	rec, err := s.Vault.CreateKey(ctx, in.Role, in.ParentID)
	if err != nil {
		return types.KeyRecord{}, err
	}
	s.audit(ctx, actorKeyManager, types.ActionKeyCreated, "key", rec.ID, map[string]any{
		"role":         string(rec.Role),
		"parent_id":    rec.ParentID,
		"participants": in.Participants,
	})
	return rec, nil
}

// RevokeKey revokes a key under the same ceremony participant rules
// as key creation. Revocation cascades: descendants are unusable for
// new signatures from this point on, while signatures already
// produced stay verifiable.
func (s *Service) RevokeKey(ctx context.Context, keyID, reason string, participants []string) error {
	if err := s.requireCeremony(participants); err != nil {
		return err
	}
	if err := s.Vault.Revoke(ctx, keyID); err != nil {
		return err
	}
	s.audit(ctx, actorKeyManager, types.ActionKeyRevoked, "key", keyID, map[string]any{
		"reason":       reason,
		"participants": participants,
	})
	return nil
}

// Keys lists the key hierarchy.
func (s *Service) Keys(ctx context.Context) ([]types.KeyRecord, error) {
	return s.Vault.List(ctx)
}
