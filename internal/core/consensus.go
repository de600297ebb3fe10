package core

import (
	"context"
	"sort"
	"time"

	assert "github.com/ZanzyTHEbar/assert-lib"
	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"

	"reprosign/internal/types"
)

// VerificationEngine renders consensus decisions over builder results.
// It is a pure function of its inputs: no clock reads feed the
// comparison logic, so auditors can re-run it from raw results. The
// clock is injected only to stamp DecidedAt.
type VerificationEngine struct {
	Clock func() time.Time
}

func NewVerificationEngine() VerificationEngine {
	return VerificationEngine{Clock: time.Now}
}

// ArtifactReader resolves a builder result's artifact bytes for diff
// reporting. May be nil when artifact bytes are unavailable; decisions
// are then rendered without diff reports.
type ArtifactReader func(resultID string) ([]byte, bool)

// Verify groups successful results by digest and picks the largest
// group of size >= threshold as the winner. A tie between two largest
// groups at or above the threshold is itself evidence of tampering or
// non-determinism and yields NoConsensus.
func (e VerificationEngine) Verify(ctx context.Context, jobID string, threshold int, results []types.BuilderResult, artifacts ArtifactReader) (types.VerificationDecision, error) {
	assert.NotEmpty(ctx, jobID, "job id must be set")
	if threshold < 1 {
		return types.VerificationDecision{}, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("match threshold must be at least 1")
	}
	for _, r := range results {
		if r.JobID != jobID {
			return types.VerificationDecision{}, errbuilder.New().
				WithCode(errbuilder.CodeInvalidArgument).
				WithMsg("builder result belongs to a different job")
		}
	}

	decision := types.VerificationDecision{
		JobID:     jobID,
		DecidedAt: e.Clock().UTC(),
	}

	groups := map[string][]types.BuilderResult{}
	successes := 0
	for _, r := range results {
		if r.Status != types.ResultStatusSuccess {
			continue
		}
		successes++
		groups[r.Digest] = append(groups[r.Digest], r)
	}

	if successes < threshold {
		decision.Outcome = types.OutcomeInsufficientBuilders
		decision.Disagreeing = resultIDs(results, "")
		log.Debug().Str("job_id", jobID).Int("successes", successes).
			Int("threshold", threshold).Msg("insufficient successful builders")
		return decision, nil
	}

	digests := make([]string, 0, len(groups))
	for d := range groups {
		digests = append(digests, d)
	}
	sort.Slice(digests, func(i, j int) bool {
		if len(groups[digests[i]]) != len(groups[digests[j]]) {
			return len(groups[digests[i]]) > len(groups[digests[j]])
		}
		return digests[i] < digests[j]
	})

	top := digests[0]
	topSize := len(groups[top])
	tied := len(digests) > 1 && len(groups[digests[1]]) == topSize

	if topSize < threshold || (tied && topSize >= threshold) {
		decision.Outcome = types.OutcomeNoConsensus
		decision.Disagreeing = resultIDs(results, "")
		decision.DiffReports = diffDisagreements(groups, digests, artifacts)
		return decision, nil
	}

	decision.Outcome = types.OutcomeConsensus
	decision.WinningDigest = top
	for _, r := range groups[top] {
		decision.Agreeing = append(decision.Agreeing, r.ID)
	}
	sort.Strings(decision.Agreeing)
	for _, r := range results {
		if r.Status != types.ResultStatusSuccess || r.Digest != top {
			decision.Disagreeing = append(decision.Disagreeing, r.ID)
		}
	}
	sort.Strings(decision.Disagreeing)
	if len(decision.Disagreeing) > 0 {
		decision.DiffReports = diffDisagreements(groups, digests, artifacts)
	}
	return decision, nil
}

// diffDisagreements builds one diff report per pair of distinct
// digests, using the first result of each group as the representative.
func diffDisagreements(groups map[string][]types.BuilderResult, digests []string, artifacts ArtifactReader) []types.DiffReport {
	if artifacts == nil {
		return nil
	}
	var reports []types.DiffReport
	for i := 0; i < len(digests); i++ {
		for j := i + 1; j < len(digests); j++ {
			a := groups[digests[i]][0]
			b := groups[digests[j]][0]
			bytesA, okA := artifacts(a.ID)
			bytesB, okB := artifacts(b.ID)
			if !okA || !okB {
				continue
			}
			reports = append(reports, DiffArtifacts(a.ID, b.ID, bytesA, bytesB))
		}
	}
	return reports
}

func resultIDs(results []types.BuilderResult, skipDigest string) []string {
	ids := make([]string, 0, len(results))
	for _, r := range results {
		if skipDigest != "" && r.Digest == skipDigest {
			continue
		}
		ids = append(ids, r.ID)
	}
	sort.Strings(ids)
	return ids
}
