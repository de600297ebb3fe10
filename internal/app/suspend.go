package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"reprosign/internal/types"
)

// Suspend marks an artifact as suspended for distribution. The
// artifact's signature is untouched; suspension is a distribution
// gate, not a revocation. The caller's token must map to a registered
// authority.
func (s *Service) Suspend(ctx context.Context, in SuspendRequest) (types.SuspensionRecord, error) {
	authority, err := s.Authority.Authorize(in.AuthorityToken)
	if err != nil {
		return types.SuspensionRecord{}, err
	}
	if in.ArtifactID == "" {
		return types.SuspensionRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("artifact id is required")
	}
	if _, ok, err := s.Suspensions.ActiveSuspension(ctx, in.ArtifactID); err != nil {
		return types.SuspensionRecord{}, err
	} else if ok {
		return types.SuspensionRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg("artifact is already suspended")
	}

	rec := types.SuspensionRecord{
		ID:         uuid.NewString(),
		ArtifactID: in.ArtifactID,
		Reason:     in.Reason,
		Authority:  authority,
		Active:     true,
		CreatedAt:  s.Clock().UTC(),
	}
	if err := s.Suspensions.PutSuspension(ctx, rec); err != nil {
		return types.SuspensionRecord{}, err
	}
	s.audit(ctx, actorSuspension, types.ActionSuspensionApplied, "artifact", in.ArtifactID, map[string]any{
		"suspension_id": rec.ID,
		"reason":        rec.Reason,
		"authority":     authority,
	})
	return rec, nil
}

// Lift clears an active suspension. Lifting keeps the historical
// record; only the active flag changes.
func (s *Service) Lift(ctx context.Context, in LiftRequest) (types.SuspensionRecord, error) {
	authority, err := s.Authority.Authorize(in.AuthorityToken)
	if err != nil {
		return types.SuspensionRecord{}, err
	}
	rec, ok, err := s.Suspensions.ActiveSuspension(ctx, in.ArtifactID)
	if err != nil {
		return types.SuspensionRecord{}, err
	}
	if !ok {
		return types.SuspensionRecord{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg("no active suspension for artifact")
	}

	now := s.Clock().UTC()
	rec.Active = false
	rec.LiftedAt = &now
	rec.LiftedBy = authority
	if err := s.Suspensions.PutSuspension(ctx, rec); err != nil {
		return types.SuspensionRecord{}, err
	}
	s.audit(ctx, actorSuspension, types.ActionSuspensionLifted, "artifact", in.ArtifactID, map[string]any{
		"suspension_id": rec.ID,
		"authority":     authority,
	})
	return rec, nil
}

// IsSuspended is the gate downstream distribution checks before
// serving an artifact.
func (s *Service) IsSuspended(ctx context.Context, artifactID string) (bool, error) {
	_, ok, err := s.Suspensions.ActiveSuspension(ctx, artifactID)
	return ok, err
}

// SuspensionHistory lists every suspension ever applied to an
// artifact, lifted ones included.
func (s *Service) SuspensionHistory(ctx context.Context, artifactID string) ([]types.SuspensionRecord, error) {
	return s.Suspensions.ListSuspensions(ctx, artifactID)
}
