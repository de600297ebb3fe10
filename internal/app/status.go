package app

import (
	"context"

	"github.com/ZanzyTHEbar/errbuilder-go"

	"reprosign/internal/types"
)

// Status reports a job together with its verification decision and, if
// one was opened, the signing request tied to the winning digest.
func (s *Service) Status(ctx context.Context, jobID string) (StatusResult, error) {
	job, err := s.Jobs.GetJob(ctx, jobID)
	if err != nil {
		return StatusResult{}, err
	}
	out := StatusResult{Job: job}

	decision, err := s.Jobs.GetDecision(ctx, jobID)
	switch {
	case err == nil:
		out.Decision = &decision
	case errbuilder.CodeOf(err) == errbuilder.CodeNotFound:
		return out, nil
	default:
		return StatusResult{}, err
	}

	if decision.Outcome == types.OutcomeConsensus {
		req, ok, err := s.Signing.ActiveRequestForDigest(ctx, decision.WinningDigest)
		if err != nil {
			return StatusResult{}, err
		}
		if ok {
			out.Request = &req
		}
	}
	return out, nil
}

// Results returns every builder attempt recorded for a job.
func (s *Service) Results(ctx context.Context, jobID string) ([]types.BuilderResult, error) {
	if _, err := s.Jobs.GetJob(ctx, jobID); err != nil {
		return nil, err
	}
	return s.Jobs.ResultsForJob(ctx, jobID)
}
