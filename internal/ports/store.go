package ports

import (
	"context"

	"reprosign/internal/types"
)

// JobStore persists build jobs, their results and decisions. Results
// are append-only; decisions are write-once.
type JobStore interface {
	CreateJob(ctx context.Context, job types.BuildJob) error
	GetJob(ctx context.Context, id string) (types.BuildJob, error)
	SetJobState(ctx context.Context, id string, state types.JobState, reason string) error
	AppendResult(ctx context.Context, result types.BuilderResult) error
	ResultsForJob(ctx context.Context, jobID string) ([]types.BuilderResult, error)
	PutDecision(ctx context.Context, decision types.VerificationDecision) error
	GetDecision(ctx context.Context, jobID string) (types.VerificationDecision, error)
}

// SigningStore persists signing requests and their votes.
type SigningStore interface {
	CreateRequest(ctx context.Context, req types.SigningRequest) error
	GetRequest(ctx context.Context, id string) (types.SigningRequest, error)
	// ActiveRequestForDigest enforces the one-outstanding-request-per-
	// artifact rule.
	ActiveRequestForDigest(ctx context.Context, digest string) (types.SigningRequest, bool, error)
	UpdateRequest(ctx context.Context, req types.SigningRequest) error
	ListAwaiting(ctx context.Context) ([]types.SigningRequest, error)
}

// SuspensionStore persists suspension records. Lookup is on the read
// path of every downstream serve, so implementations keep it cheap.
type SuspensionStore interface {
	PutSuspension(ctx context.Context, rec types.SuspensionRecord) error
	ActiveSuspension(ctx context.Context, artifactID string) (types.SuspensionRecord, bool, error)
	ListSuspensions(ctx context.Context, artifactID string) ([]types.SuspensionRecord, error)
}
