package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reprosign/internal/ports"
	"reprosign/internal/types"
)

// Submit runs one build job to its terminal state: source check,
// fan-out to n isolated builders, consensus verification and, on
// consensus, opening of a signing request. Domain failures (source
// rejection, no consensus) are terminal outcomes in the result, not
// errors; errors are reserved for invalid requests and infrastructure
// faults.
func (s *Service) Submit(ctx context.Context, req SubmitRequest) (SubmitResult, error) {
	n := req.QuorumSize
	if n == 0 {
		n = s.Pool.Size()
	}
	k := req.MatchThreshold
	if k == 0 {
		k = n
	}
	if strings.TrimSpace(req.SourceRef) == "" || strings.TrimSpace(req.RecipeID) == "" {
		return SubmitResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("source reference and recipe id are required")
	}
	if n < 1 || k < 1 || k > n {
		return SubmitResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("invalid quorum parameters: n=%d k=%d", n, k))
	}
	if n > s.Pool.Size() {
		return SubmitResult{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg(fmt.Sprintf("quorum size %d exceeds builder pool size %d", n, s.Pool.Size()))
	}

	job := types.BuildJob{
		ID:              uuid.NewString(),
		SourceRef:       req.SourceRef,
		SourceSignature: req.SourceSignature,
		RecipeID:        req.RecipeID,
		RecipeParams:    req.RecipeParams,
		QuorumSize:      n,
		MatchThreshold:  k,
		State:           types.JobStatePending,
		CreatedAt:       s.Clock().UTC(),
	}
	if err := s.Jobs.CreateJob(ctx, job); err != nil {
		return SubmitResult{}, err
	}
	s.audit(ctx, actorOrchestrator, types.ActionBuildSubmitted, "build_job", job.ID, map[string]any{
		"source_ref":      job.SourceRef,
		"recipe_id":       job.RecipeID,
		"quorum_size":     n,
		"match_threshold": k,
	})

	// Pre-dispatch source check: an unverifiable pin never reaches a
	// builder.
	if err := s.Source.VerifySource(ctx, job.SourceRef, job.SourceSignature); err != nil {
		return s.rejectJob(ctx, job.ID, types.JobStateRejected, types.ReasonSourceVerificationFailed)
	}

	if err := s.Jobs.SetJobState(ctx, job.ID, types.JobStateBuilding, ""); err != nil {
		return SubmitResult{}, err
	}

	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(builderID string) {
			defer wg.Done()
			s.runBuilder(ctx, job, builderID)
		}(fmt.Sprintf("builder-%d", i))
	}
	wg.Wait()

	if err := ctx.Err(); err != nil {
		s.audit(context.WithoutCancel(ctx), actorOrchestrator, types.ActionBuildCancelled, "build_job", job.ID, nil)
		return s.rejectJob(context.WithoutCancel(ctx), job.ID, types.JobStateRejected, types.ReasonCancelled)
	}

	results, err := s.Jobs.ResultsForJob(ctx, job.ID)
	if err != nil {
		return SubmitResult{}, err
	}
	decision, err := s.Engine.Verify(ctx, job.ID, k, results, s.artifactReader())
	if err != nil {
		return SubmitResult{}, err
	}
	defer s.dropArtifacts(allResultIDs(results))

	if err := s.Jobs.PutDecision(ctx, decision); err != nil {
		return SubmitResult{}, err
	}
	s.audit(ctx, actorOrchestrator, types.ActionBuildDecided, "build_job", job.ID, map[string]any{
		"outcome":        string(decision.Outcome),
		"winning_digest": decision.WinningDigest,
		"agreeing":       len(decision.Agreeing),
		"disagreeing":    len(decision.Disagreeing),
		"diff_reports":   len(decision.DiffReports),
	})

	result := SubmitResult{JobID: job.ID, Decision: &decision}
	switch decision.Outcome {
	case types.OutcomeConsensus:
		if err := s.Jobs.SetJobState(ctx, job.ID, types.JobStateVerified, ""); err != nil {
			return SubmitResult{}, err
		}
		result.State = types.JobStateVerified
		requestID, err := s.openSigningRequest(ctx, decision)
		if err != nil {
			// Consensus stands; the signing request can be opened
			// again once the conflict clears.
			log.Warn().Err(err).Str("job_id", job.ID).Msg("signing request not opened")
		} else {
			result.SigningRequestID = requestID
		}
	case types.OutcomeInsufficientBuilders:
		state := types.JobStateRejected
		if allTimedOut(results) {
			state = types.JobStateTimedOut
		}
		return s.rejectJob(ctx, job.ID, state, types.ReasonInsufficientBuilders)
	default:
		return s.rejectJob(ctx, job.ID, types.JobStateRejected, types.ReasonNoConsensus)
	}
	return result, nil
}

// runBuilder executes one builder's attempts. Every attempt gets a
// fresh sandbox which is destroyed on every exit path; a timed-out
// sandbox is never reused for the retry.
func (s *Service) runBuilder(ctx context.Context, job types.BuildJob, builderID string) {
	attempt := 0
	operation := func() error {
		attempt++
		status := s.runAttempt(ctx, job, builderID, attempt)
		switch status {
		case types.ResultStatusSuccess:
			return nil
		case types.ResultStatusTimedOut, types.ResultStatusFailed:
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return fmt.Errorf("builder %s attempt %d: %s", builderID, attempt, status)
		}
		return nil
	}

	policy := backoff.WithMaxRetries(backoff.NewConstantBackOff(s.RetryDelay), uint64(s.RetryBudget))
	if err := backoff.Retry(operation, backoff.WithContext(policy, ctx)); err != nil {
		log.Debug().Err(err).Str("job_id", job.ID).Str("builder", builderID).
			Msg("builder exhausted its retry budget")
	}
}

// runAttempt provisions, runs and destroys a single sandbox, records
// the BuilderResult and audits the completion.
func (s *Service) runAttempt(ctx context.Context, job types.BuildJob, builderID string, attempt int) types.ResultStatus {
	resultID := uuid.NewString()
	result := types.BuilderResult{
		ID:        resultID,
		JobID:     job.ID,
		BuilderID: builderID,
		Attempt:   attempt,
	}

	sandbox, err := s.Pool.Provision(ctx, builderID)
	if err != nil {
		result.Status = types.ResultStatusFailed
		s.recordResult(ctx, result)
		return result.Status
	}
	defer func() {
		if derr := sandbox.Destroy(); derr != nil {
			log.Warn().Err(derr).Str("sandbox", sandbox.ID()).Msg("sandbox teardown failed")
		}
	}()

	attemptCtx, cancel := context.WithTimeout(ctx, s.AttemptTimeout)
	defer cancel()

	start := s.Clock()
	output, err := sandbox.Run(attemptCtx, ports.BuildSpec{
		JobID:        job.ID,
		SourceRef:    job.SourceRef,
		RecipeID:     job.RecipeID,
		RecipeParams: job.RecipeParams,
	})
	result.Duration = s.Clock().Sub(start)
	result.LogRef = output.LogRef
	result.CompletedAt = s.Clock().UTC()

	switch {
	case err == nil:
		result.Status = types.ResultStatusSuccess
		result.Digest = output.Digest
		result.Duration = output.Duration
		s.storeArtifact(resultID, output.Artifact)
	case errors.Is(attemptCtx.Err(), context.DeadlineExceeded):
		result.Status = types.ResultStatusTimedOut
	default:
		result.Status = types.ResultStatusFailed
	}

	s.recordResult(ctx, result)
	return result.Status
}

func (s *Service) recordResult(ctx context.Context, result types.BuilderResult) {
	// Results are appended even when the job context is being torn
	// down: an attempt that ran must leave a record.
	ctx = context.WithoutCancel(ctx)
	if err := s.Jobs.AppendResult(ctx, result); err != nil {
		log.Error().Err(err).Str("job_id", result.JobID).Msg("failed to append builder result")
		return
	}
	s.audit(ctx, actorOrchestrator, types.ActionBuilderCompleted, "builder_result", result.ID, map[string]any{
		"job_id":   result.JobID,
		"builder":  result.BuilderID,
		"attempt":  result.Attempt,
		"status":   string(result.Status),
		"digest":   result.Digest,
		"duration": result.Duration.String(),
	})
}

func (s *Service) rejectJob(ctx context.Context, jobID string, state types.JobState, reason string) (SubmitResult, error) {
	if err := s.Jobs.SetJobState(ctx, jobID, state, reason); err != nil {
		return SubmitResult{}, err
	}
	s.audit(ctx, actorOrchestrator, types.ActionBuildRejected, "build_job", jobID, map[string]any{
		"state":  string(state),
		"reason": reason,
	})
	return SubmitResult{JobID: jobID, State: state, Reason: reason}, nil
}

// audit appends one entry and treats failure as fatal to the calling
// flow's logging only: the append is retried nowhere, surfaced loudly,
// and never silently dropped.
func (s *Service) audit(ctx context.Context, actor, action, entityKind, entityID string, payload map[string]any) {
	if _, err := s.Audit.Append(ctx, types.AuditEvent{
		Actor:      actor,
		Action:     action,
		EntityKind: entityKind,
		EntityID:   entityID,
		Payload:    payload,
	}); err != nil {
		log.Error().Err(err).Str("action", action).Str("entity_id", entityID).
			Msg("audit append failed")
	}
}

func allResultIDs(results []types.BuilderResult) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		ids = append(ids, r.ID)
	}
	return ids
}

func allTimedOut(results []types.BuilderResult) bool {
	if len(results) == 0 {
		return false
	}
	for _, r := range results {
		if r.Status != types.ResultStatusTimedOut {
			return false
		}
	}
	return true
}
