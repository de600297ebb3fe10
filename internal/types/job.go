package types

import "time"

// BuildJob is one unit of verification work: a pinned source reference
// plus the recipe that turns it into an artifact. Immutable once
// dispatched; only State, Reason and FinishedAt change afterwards.
type BuildJob struct {
	ID              string            `json:"id"`
	SourceRef       string            `json:"source_ref"`
	SourceSignature string            `json:"source_signature"`
	RecipeID        string            `json:"recipe_id"`
	RecipeParams    map[string]string `json:"recipe_params,omitempty"`
	QuorumSize      int               `json:"quorum_size"`
	MatchThreshold  int               `json:"match_threshold"`
	State           JobState          `json:"state"`
	Reason          string            `json:"reason,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	FinishedAt      *time.Time        `json:"finished_at,omitempty"`
}

// BuilderResult is one builder's outcome for one attempt. Results are
// append-only: a retry produces a new result with a higher Attempt,
// never an overwrite.
type BuilderResult struct {
	ID          string        `json:"id"`
	JobID       string        `json:"job_id"`
	BuilderID   string        `json:"builder_id"`
	Attempt     int           `json:"attempt"`
	Status      ResultStatus  `json:"status"`
	Digest      string        `json:"digest,omitempty"`
	Duration    time.Duration `json:"duration"`
	LogRef      string        `json:"log_ref,omitempty"`
	CompletedAt time.Time     `json:"completed_at"`
}

// ByteRange marks a contiguous span where two artifacts differ.
type ByteRange struct {
	Offset int64 `json:"offset"`
	Length int64 `json:"length"`
}

// DiffReport summarizes the binary-level differences between two
// disagreeing builder results. Diagnostic only: disagreement is always
// fatal to the job, the report exists to aid investigation.
type DiffReport struct {
	ResultA     string      `json:"result_a"`
	ResultB     string      `json:"result_b"`
	Ranges      []ByteRange `json:"ranges,omitempty"`
	SizeDelta   int64       `json:"size_delta"`
	TruncatedAt int         `json:"truncated_at,omitempty"`
}

// VerificationDecision is the engine's verdict for a job. Immutable
// once produced and referenced by at most one signing request.
type VerificationDecision struct {
	JobID         string          `json:"job_id"`
	Outcome       DecisionOutcome `json:"outcome"`
	WinningDigest string          `json:"winning_digest,omitempty"`
	Agreeing      []string        `json:"agreeing,omitempty"`
	Disagreeing   []string        `json:"disagreeing,omitempty"`
	DiffReports   []DiffReport    `json:"diff_reports,omitempty"`
	DecidedAt     time.Time       `json:"decided_at"`
}
