package core

import (
	"fmt"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/shared"
	"reprosign/internal/types"
)

// Transition names the state change produced by applying an event to a
// signing request. The app layer audits one entry per transition.
type Transition string

const (
	TransitionNone       Transition = ""
	TransitionVote       Transition = "vote"
	TransitionAuthorized Transition = "authorized"
	TransitionDenied     Transition = "denied"
	TransitionExpired    Transition = "expired"
)

// OpenSigningRequest builds the initial AwaitingQuorum request for a
// consensus decision. Anything but a Consensus outcome is rejected.
func OpenSigningRequest(id string, decision types.VerificationDecision, keyID string, threshold int, required []string, deadline time.Time, now time.Time) (types.SigningRequest, error) {
	if decision.Outcome != types.OutcomeConsensus {
		return types.SigningRequest{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(types.ReasonConsensusRequired)
	}
	if !shared.ValidDigest(decision.WinningDigest) {
		return types.SigningRequest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("consensus decision carries no valid winning digest")
	}
	if threshold < 1 || threshold > len(required) {
		return types.SigningRequest{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("signing threshold %d out of range for %d authorizers", threshold, len(required)))
	}
	return types.SigningRequest{
		ID:             id,
		JobID:          decision.JobID,
		ArtifactDigest: decision.WinningDigest,
		KeyID:          keyID,
		Threshold:      threshold,
		Required:       append([]string(nil), required...),
		State:          types.RequestStateAwaitingQuorum,
		Deadline:       deadline,
		CreatedAt:      now.UTC(),
	}, nil
}

// ApplyVote validates one authorization event and advances the request
// state machine. Transitions are only ever triggered by validated
// events: a vote bound to the wrong digest, from an unknown authorizer,
// or cast twice never mutates the request.
func ApplyVote(req types.SigningRequest, vote types.AuthorizationRecord, now time.Time) (types.SigningRequest, Transition, error) {
	if req.State.Terminal() {
		return req, TransitionNone, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("signing request is already %s", req.State))
	}
	if expired, tr := CheckDeadline(&req, now); expired {
		return req, tr, nil
	}
	if vote.BoundDigest != req.ArtifactDigest {
		return req, TransitionNone, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(types.ReasonAuthorizationMismatch)
	}
	if !requiredAuthorizer(req, vote.AuthorizerID) {
		return req, TransitionNone, errbuilder.New().
			WithCode(errbuilder.CodePermissionDenied).
			WithMsg(fmt.Sprintf("authorizer %s is not in the required set", vote.AuthorizerID))
	}
	if req.HasVoted(vote.AuthorizerID) {
		return req, TransitionNone, errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("authorizer %s already voted", vote.AuthorizerID))
	}

	req.Votes = append(req.Votes, vote)

	// Any deny from a required authorizer is fatal and not overridable
	// by approvals elsewhere.
	if vote.Decision == types.VoteDeny {
		req.State = types.RequestStateDenied
		req.Reason = types.ReasonDenied
		return req, TransitionDenied, nil
	}

	if req.Approvals() >= req.Threshold {
		req.State = types.RequestStateAuthorized
		return req, TransitionAuthorized, nil
	}
	return req, TransitionVote, nil
}

// CheckDeadline expires an awaiting request whose deadline has passed.
// Expired requests must be resubmitted from scratch, never extended.
func CheckDeadline(req *types.SigningRequest, now time.Time) (bool, Transition) {
	if req.State != types.RequestStateAwaitingQuorum {
		return false, TransitionNone
	}
	if now.Before(req.Deadline) {
		return false, TransitionNone
	}
	req.State = types.RequestStateExpired
	req.Reason = types.ReasonExpired
	return true, TransitionExpired
}

func requiredAuthorizer(req types.SigningRequest, authorizerID string) bool {
	for _, id := range req.Required {
		if id == authorizerID {
			return true
		}
	}
	return false
}
