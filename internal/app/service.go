package app

import (
	"sync"
	"time"

	"reprosign/internal/core"
	"reprosign/internal/policies"
	"reprosign/internal/ports"
)

// Actor names recorded on audit entries.
const (
	actorOrchestrator = "build-orchestrator"
	actorSigning      = "quorum-signing-service"
	actorKeyManager   = "key-hierarchy-manager"
	actorSuspension   = "suspension-controller"
)

// Service wires the verification core to its ports. One Service
// instance serves the CLI and the HTTP API alike.
type Service struct {
	Jobs        ports.JobStore
	Signing     ports.SigningStore
	Suspensions ports.SuspensionStore
	Audit       ports.AuditLog
	Vault       ports.KeyVault
	Pool        ports.BuilderPool
	Source      ports.SourceVerifier

	Engine         core.VerificationEngine
	SigningPolicy  policies.SigningPolicy
	CeremonyPolicy policies.CeremonyPolicy
	Authority      policies.AuthorityPolicy

	// SigningKeyID is the app-signing key new requests target.
	SigningKeyID string

	AttemptTimeout time.Duration
	RetryBudget    int
	RetryDelay     time.Duration
	Clock          func() time.Time

	// artifacts holds builder outputs per result ID for the lifetime
	// of one job, to back binary diff reports. Cleared after the
	// decision is rendered.
	artifactsMu sync.Mutex
	artifacts   map[string][]byte
}

type Deps struct {
	Jobs        ports.JobStore
	Signing     ports.SigningStore
	Suspensions ports.SuspensionStore
	Audit       ports.AuditLog
	Vault       ports.KeyVault
	Pool        ports.BuilderPool
	Source      ports.SourceVerifier

	SigningPolicy  policies.SigningPolicy
	CeremonyPolicy policies.CeremonyPolicy
	Authority      policies.AuthorityPolicy
	SigningKeyID   string

	AttemptTimeout time.Duration
	RetryBudget    int
	RetryDelay     time.Duration
}

func NewService(deps Deps) *Service {
	s := &Service{
		Jobs:           deps.Jobs,
		Signing:        deps.Signing,
		Suspensions:    deps.Suspensions,
		Audit:          deps.Audit,
		Vault:          deps.Vault,
		Pool:           deps.Pool,
		Source:         deps.Source,
		Engine:         core.NewVerificationEngine(),
		SigningPolicy:  deps.SigningPolicy,
		CeremonyPolicy: deps.CeremonyPolicy,
		Authority:      deps.Authority,
		SigningKeyID:   deps.SigningKeyID,
		AttemptTimeout: deps.AttemptTimeout,
		RetryBudget:    deps.RetryBudget,
		RetryDelay:     deps.RetryDelay,
		Clock:          time.Now,
		artifacts:      make(map[string][]byte),
	}
	if s.AttemptTimeout <= 0 {
		s.AttemptTimeout = 30 * time.Minute
	}
	if s.RetryBudget < 0 {
		s.RetryBudget = 0
	}
	if s.RetryDelay <= 0 {
		s.RetryDelay = time.Second
	}
	return s
}

func (s *Service) storeArtifact(resultID string, data []byte) {
	s.artifactsMu.Lock()
	defer s.artifactsMu.Unlock()
	s.artifacts[resultID] = data
}

func (s *Service) artifactReader() core.ArtifactReader {
	return func(resultID string) ([]byte, bool) {
		s.artifactsMu.Lock()
		defer s.artifactsMu.Unlock()
		data, ok := s.artifacts[resultID]
		return data, ok
	}
}

func (s *Service) dropArtifacts(resultIDs []string) {
	s.artifactsMu.Lock()
	defer s.artifactsMu.Unlock()
	for _, id := range resultIDs {
		delete(s.artifacts, id)
	}
}
