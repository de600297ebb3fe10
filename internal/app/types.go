package app

import "reprosign/internal/types"

type SubmitRequest struct {
	SourceRef       string
	SourceSignature string
	RecipeID        string
	RecipeParams    map[string]string
	QuorumSize      int
	MatchThreshold  int
}

type SubmitResult struct {
	JobID    string
	State    types.JobState
	Reason   string
	Decision *types.VerificationDecision
	// SigningRequestID is set when consensus opened a signing request.
	SigningRequestID string
}

type StatusResult struct {
	Job      types.BuildJob
	Decision *types.VerificationDecision
	Request  *types.SigningRequest
}

type AuthorizeRequest struct {
	RequestID    string
	AuthorizerID string
	Decision     types.VoteDecision
	Digest       string
	Proof        string
}

type AuthorizeResult struct {
	State     types.RequestState
	Approvals int
	Signature string
}

type SuspendRequest struct {
	ArtifactID     string
	Reason         string
	AuthorityToken string
}

type LiftRequest struct {
	ArtifactID     string
	Reason         string
	AuthorityToken string
}

type CeremonyRequest struct {
	Role         types.KeyRole
	ParentID     string
	Participants []string
}

type AuditRangeRequest struct {
	FromSeq uint64
	ToSeq   uint64
}
