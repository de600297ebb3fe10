package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"

	"reprosign/internal/core"
	"reprosign/internal/ports"
	"reprosign/internal/shared"
	"reprosign/internal/types"
)

// openSigningRequest creates the signing request that follows a
// consensus decision. One active request per artifact digest is
// enforced by the store.
func (s *Service) openSigningRequest(ctx context.Context, decision types.VerificationDecision) (string, error) {
	now := s.Clock().UTC()
	req, err := core.OpenSigningRequest(
		uuid.NewString(),
		decision,
		s.SigningKeyID,
		s.SigningPolicy.Threshold,
		s.SigningPolicy.Authorizers,
		now.Add(s.SigningPolicy.Deadline),
		now,
	)
	if err != nil {
		return "", err
	}
	if err := s.Signing.CreateRequest(ctx, req); err != nil {
		return "", err
	}
	s.audit(ctx, actorSigning, types.ActionRequestCreated, "signing_request", req.ID, map[string]any{
		"job_id":    req.JobID,
		"digest":    req.ArtifactDigest,
		"key_id":    req.KeyID,
		"threshold": req.Threshold,
		"deadline":  req.Deadline,
	})
	return req.ID, nil
}

// Authorize records one authorizer's vote on a pending signing
// request. The vote is bound to the digest the authorizer claims to
// have reviewed; a digest mismatch is rejected and audited without
// consuming the authorizer's vote. When the approval threshold is
// reached the artifact is signed in the same call.
func (s *Service) Authorize(ctx context.Context, in AuthorizeRequest) (AuthorizeResult, error) {
	req, err := s.Signing.GetRequest(ctx, in.RequestID)
	if err != nil {
		return AuthorizeResult{}, err
	}

	now := s.Clock().UTC()
	if expired, _ := core.CheckDeadline(&req, now); expired {
		if err := s.Signing.UpdateRequest(ctx, req); err != nil {
			return AuthorizeResult{}, err
		}
		s.audit(ctx, actorSigning, types.ActionRequestExpired, "signing_request", req.ID, nil)
		return AuthorizeResult{State: req.State}, errbuilder.New().
			WithCode(errbuilder.CodeDeadlineExceeded).
			WithMsg("signing request deadline has passed")
	}

	vote := types.AuthorizationRecord{
		ID:           uuid.NewString(),
		RequestID:    req.ID,
		AuthorizerID: in.AuthorizerID,
		Decision:     in.Decision,
		BoundDigest:  in.Digest,
		Proof:        in.Proof,
		CreatedAt:    now,
	}
	if vote.Proof == "" {
		vote.Proof = shared.DigestBytes(shared.VotePayload(req.ID, in.Digest, string(in.Decision)))
	}

	req, transition, err := core.ApplyVote(req, vote, now)
	if err != nil {
		if errbuilder.CodeOf(err) == errbuilder.CodePermissionDenied {
			s.audit(ctx, actorSigning, types.ActionAuthMismatch, "signing_request", req.ID, map[string]any{
				"authorizer": in.AuthorizerID,
				"bound":      in.Digest,
				"expected":   req.ArtifactDigest,
			})
		}
		return AuthorizeResult{}, err
	}

	if err := s.Signing.UpdateRequest(ctx, req); err != nil {
		return AuthorizeResult{}, err
	}
	s.audit(ctx, actorSigning, types.ActionVoteRecorded, "signing_request", req.ID, map[string]any{
		"authorizer": in.AuthorizerID,
		"decision":   string(in.Decision),
		"approvals":  req.Approvals(),
	})

	result := AuthorizeResult{State: req.State, Approvals: req.Approvals()}
	switch transition {
	case core.TransitionDenied:
		s.audit(ctx, actorSigning, types.ActionRequestDenied, "signing_request", req.ID, map[string]any{
			"authorizer": in.AuthorizerID,
		})
	case core.TransitionAuthorized:
		signature, err := s.signAuthorized(ctx, &req)
		if err != nil {
			// The authorization stands; FinalizeRequest retries the
			// signature once the signing backend recovers.
			return result, err
		}
		result.State = req.State
		result.Signature = signature
	}
	return result, nil
}

// FinalizeRequest retries the signature for a request that reached the
// authorized state but whose signing backend was unavailable at the
// time.
func (s *Service) FinalizeRequest(ctx context.Context, requestID string) (AuthorizeResult, error) {
	req, err := s.Signing.GetRequest(ctx, requestID)
	if err != nil {
		return AuthorizeResult{}, err
	}
	if req.State != types.RequestStateAuthorized {
		return AuthorizeResult{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("signing request is not awaiting a signature")
	}
	signature, err := s.signAuthorized(ctx, &req)
	if err != nil {
		return AuthorizeResult{State: req.State, Approvals: req.Approvals()}, err
	}
	return AuthorizeResult{State: req.State, Approvals: req.Approvals(), Signature: signature}, nil
}

func (s *Service) signAuthorized(ctx context.Context, req *types.SigningRequest) (string, error) {
	proof := ports.QuorumProof{
		RequestID: req.ID,
		Digest:    req.ArtifactDigest,
		Votes:     req.Votes,
		Threshold: req.Threshold,
	}
	signature, err := s.Vault.Sign(ctx, req.KeyID, req.ArtifactDigest, proof)
	if err != nil {
		return "", err
	}
	req.State = types.RequestStateSigned
	req.Signature = signature
	if err := s.Signing.UpdateRequest(ctx, *req); err != nil {
		return "", err
	}
	s.audit(ctx, actorSigning, types.ActionRequestSigned, "signing_request", req.ID, map[string]any{
		"key_id": req.KeyID,
		"digest": req.ArtifactDigest,
	})
	return signature, nil
}
