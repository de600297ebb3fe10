package types

type JobState string

const (
	JobStatePending  JobState = "pending"
	JobStateBuilding JobState = "building"
	JobStateVerified JobState = "verified"
	JobStateRejected JobState = "rejected"
	JobStateTimedOut JobState = "timed-out"
)

// Terminal reports whether a job state accepts no further transitions.
func (s JobState) Terminal() bool {
	switch s {
	case JobStateVerified, JobStateRejected, JobStateTimedOut:
		return true
	}
	return false
}

type ResultStatus string

const (
	ResultStatusSuccess  ResultStatus = "success"
	ResultStatusFailed   ResultStatus = "failed"
	ResultStatusTimedOut ResultStatus = "timed-out"
)

type DecisionOutcome string

const (
	OutcomeConsensus            DecisionOutcome = "consensus"
	OutcomeNoConsensus          DecisionOutcome = "no-consensus"
	OutcomeInsufficientBuilders DecisionOutcome = "insufficient-builders"
)

type KeyRole string

const (
	KeyRoleRoot              KeyRole = "root"
	KeyRoleRepositorySigning KeyRole = "repository-signing"
	KeyRoleAppSigning        KeyRole = "app-signing"
)

type KeyState string

const (
	KeyStateActive  KeyState = "active"
	KeyStateRevoked KeyState = "revoked"
)

type VoteDecision string

const (
	VoteApprove VoteDecision = "approve"
	VoteDeny    VoteDecision = "deny"
)

type RequestState string

const (
	RequestStateAwaitingQuorum RequestState = "awaiting-quorum"
	RequestStateAuthorized     RequestState = "authorized"
	RequestStateSigned         RequestState = "signed"
	RequestStateDenied         RequestState = "denied"
	RequestStateExpired        RequestState = "expired"
)

// Terminal reports whether a signing request can still change state.
func (s RequestState) Terminal() bool {
	switch s {
	case RequestStateSigned, RequestStateDenied, RequestStateExpired:
		return true
	}
	return false
}
