package ports

import (
	"context"
	"time"
)

// BuildSpec is what a sandbox needs to execute one build attempt.
type BuildSpec struct {
	JobID        string
	SourceRef    string
	RecipeID     string
	RecipeParams map[string]string
	// AllowedHosts is the explicit network allowlist for the recipe's
	// dependency mirrors. Everything else is unreachable from inside
	// the sandbox.
	AllowedHosts []string
}

// BuildOutput is the raw product of one sandbox execution. Artifact
// carries the produced bytes so the verification engine can attach
// binary diff reports when builders disagree.
type BuildOutput struct {
	Digest   string
	Artifact []byte
	LogRef   string
	Duration time.Duration
}

// Sandbox is a single-use isolated execution environment. Run may be
// called at most once; Destroy must be called on every exit path and
// must be safe to call after a failed or cancelled Run.
type Sandbox interface {
	ID() string
	Run(ctx context.Context, spec BuildSpec) (BuildOutput, error)
	Destroy() error
}

// BuilderPool provisions fresh sandboxes. A pool never hands out the
// same sandbox twice.
type BuilderPool interface {
	Size() int
	Provision(ctx context.Context, builderID string) (Sandbox, error)
}

// SourceVerifier checks the pinned source reference's own signature
// before any builder is dispatched.
type SourceVerifier interface {
	VerifySource(ctx context.Context, sourceRef, signature string) error
}
