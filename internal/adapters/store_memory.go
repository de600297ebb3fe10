package adapters

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/ports"
	"reprosign/internal/types"
)

// MemoryStore keeps all pipeline entities in process. Suitable for a
// single-node deployment and for tests; the ports allow a database
// implementation to slot in without touching the app layer.
type MemoryStore struct {
	mu          sync.RWMutex
	jobs        map[string]types.BuildJob
	results     map[string][]types.BuilderResult
	decisions   map[string]types.VerificationDecision
	requests    map[string]types.SigningRequest
	suspensions map[string][]types.SuspensionRecord
	clock       func() time.Time
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		jobs:        make(map[string]types.BuildJob),
		results:     make(map[string][]types.BuilderResult),
		decisions:   make(map[string]types.VerificationDecision),
		requests:    make(map[string]types.SigningRequest),
		suspensions: make(map[string][]types.SuspensionRecord),
		clock:       time.Now,
	}
}

func notFound(kind, id string) error {
	return errbuilder.New().
		WithCode(errbuilder.CodeNotFound).
		WithMsg(fmt.Sprintf("%s not found: %s", kind, id))
}

func (s *MemoryStore) CreateJob(ctx context.Context, job types.BuildJob) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.jobs[job.ID]; exists {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("job exists: %s", job.ID))
	}
	s.jobs[job.ID] = job
	return nil
}

func (s *MemoryStore) GetJob(ctx context.Context, id string) (types.BuildJob, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	job, ok := s.jobs[id]
	if !ok {
		return types.BuildJob{}, notFound("build job", id)
	}
	return job, nil
}

func (s *MemoryStore) SetJobState(ctx context.Context, id string, state types.JobState, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	job, ok := s.jobs[id]
	if !ok {
		return notFound("build job", id)
	}
	if job.State.Terminal() {
		return errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg(fmt.Sprintf("job %s is already terminal (%s)", id, job.State))
	}
	job.State = state
	job.Reason = reason
	if state.Terminal() {
		now := s.clock().UTC()
		job.FinishedAt = &now
	}
	s.jobs[id] = job
	return nil
}

func (s *MemoryStore) AppendResult(ctx context.Context, result types.BuilderResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.jobs[result.JobID]; !ok {
		return notFound("build job", result.JobID)
	}
	s.results[result.JobID] = append(s.results[result.JobID], result)
	return nil
}

func (s *MemoryStore) ResultsForJob(ctx context.Context, jobID string) ([]types.BuilderResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.BuilderResult, len(s.results[jobID]))
	copy(out, s.results[jobID])
	sort.Slice(out, func(i, j int) bool {
		if out[i].BuilderID != out[j].BuilderID {
			return out[i].BuilderID < out[j].BuilderID
		}
		return out[i].Attempt < out[j].Attempt
	})
	return out, nil
}

func (s *MemoryStore) PutDecision(ctx context.Context, decision types.VerificationDecision) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.decisions[decision.JobID]; exists {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("decision exists for job: %s", decision.JobID))
	}
	s.decisions[decision.JobID] = decision
	return nil
}

func (s *MemoryStore) GetDecision(ctx context.Context, jobID string) (types.VerificationDecision, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	decision, ok := s.decisions[jobID]
	if !ok {
		return types.VerificationDecision{}, notFound("verification decision", jobID)
	}
	return decision, nil
}

func (s *MemoryStore) CreateRequest(ctx context.Context, req types.SigningRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.requests[req.ID]; exists {
		return errbuilder.New().
			WithCode(errbuilder.CodeAlreadyExists).
			WithMsg(fmt.Sprintf("signing request exists: %s", req.ID))
	}
	for _, other := range s.requests {
		if other.ArtifactDigest == req.ArtifactDigest && !other.State.Terminal() {
			return errbuilder.New().
				WithCode(errbuilder.CodeAlreadyExists).
				WithMsg(types.ReasonDuplicateSigningRequest)
		}
	}
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryStore) GetRequest(ctx context.Context, id string) (types.SigningRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	req, ok := s.requests[id]
	if !ok {
		return types.SigningRequest{}, notFound("signing request", id)
	}
	return req, nil
}

func (s *MemoryStore) ActiveRequestForDigest(ctx context.Context, digest string) (types.SigningRequest, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, req := range s.requests {
		if req.ArtifactDigest == digest && !req.State.Terminal() {
			return req, true, nil
		}
	}
	return types.SigningRequest{}, false, nil
}

func (s *MemoryStore) UpdateRequest(ctx context.Context, req types.SigningRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.requests[req.ID]; !ok {
		return notFound("signing request", req.ID)
	}
	s.requests[req.ID] = req
	return nil
}

func (s *MemoryStore) ListAwaiting(ctx context.Context) ([]types.SigningRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []types.SigningRequest
	for _, req := range s.requests {
		if req.State == types.RequestStateAwaitingQuorum {
			out = append(out, req)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (s *MemoryStore) PutSuspension(ctx context.Context, rec types.SuspensionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	records := s.suspensions[rec.ArtifactID]
	replaced := false
	for i, existing := range records {
		if existing.ID == rec.ID {
			records[i] = rec
			replaced = true
			break
		}
	}
	if !replaced {
		records = append(records, rec)
	}
	s.suspensions[rec.ArtifactID] = records
	return nil
}

func (s *MemoryStore) ActiveSuspension(ctx context.Context, artifactID string) (types.SuspensionRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, rec := range s.suspensions[artifactID] {
		if rec.Active {
			return rec, true, nil
		}
	}
	return types.SuspensionRecord{}, false, nil
}

func (s *MemoryStore) ListSuspensions(ctx context.Context, artifactID string) ([]types.SuspensionRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]types.SuspensionRecord, len(s.suspensions[artifactID]))
	copy(out, s.suspensions[artifactID])
	return out, nil
}

var (
	_ ports.JobStore        = (*MemoryStore)(nil)
	_ ports.SigningStore    = (*MemoryStore)(nil)
	_ ports.SuspensionStore = (*MemoryStore)(nil)
)
