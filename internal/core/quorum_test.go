package core

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"reprosign/internal/types"
)

func errMsg(t *testing.T, err error) string {
	t.Helper()
	var builder *errbuilder.ErrBuilder
	if errors.As(err, &builder) {
		return builder.Msg
	}
	return err.Error()
}

const testDigest = "4ec9599fc203d176a301536c2e091a19bc852759b255bd6818810a42c5fed14a"

func consensusDecision() types.VerificationDecision {
	return types.VerificationDecision{
		JobID:         "job-1",
		Outcome:       types.OutcomeConsensus,
		WinningDigest: testDigest,
	}
}

func openRequest(t *testing.T) types.SigningRequest {
	t.Helper()
	now := fixedClock()
	req, err := OpenSigningRequest("req-1", consensusDecision(), "key-1", 2,
		[]string{"alice", "bob", "carol"}, now.Add(time.Hour), now)
	require.NoError(t, err)
	return req
}

func vote(authorizer string, decision types.VoteDecision, digest string) types.AuthorizationRecord {
	return types.AuthorizationRecord{
		ID:           "vote-" + authorizer,
		RequestID:    "req-1",
		AuthorizerID: authorizer,
		Decision:     decision,
		BoundDigest:  digest,
	}
}

func TestOpenSigningRequestRequiresConsensus(t *testing.T) {
	decision := consensusDecision()
	decision.Outcome = types.OutcomeNoConsensus
	_, err := OpenSigningRequest("req-1", decision, "key-1", 2, []string{"alice", "bob"}, fixedClock().Add(time.Hour), fixedClock())
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))
	require.Equal(t, types.ReasonConsensusRequired, errMsg(t, err))
}

func TestOpenSigningRequestThresholdBounds(t *testing.T) {
	_, err := OpenSigningRequest("req-1", consensusDecision(), "key-1", 4, []string{"alice", "bob"}, fixedClock().Add(time.Hour), fixedClock())
	require.Error(t, err)
	_, err = OpenSigningRequest("req-1", consensusDecision(), "key-1", 0, []string{"alice"}, fixedClock().Add(time.Hour), fixedClock())
	require.Error(t, err)
}

func TestQuorumReached(t *testing.T) {
	req := openRequest(t)
	now := fixedClock()

	req, tr, err := ApplyVote(req, vote("alice", types.VoteApprove, testDigest), now)
	require.NoError(t, err)
	require.Equal(t, TransitionVote, tr)
	require.Equal(t, types.RequestStateAwaitingQuorum, req.State)

	req, tr, err = ApplyVote(req, vote("bob", types.VoteApprove, testDigest), now)
	require.NoError(t, err)
	require.Equal(t, TransitionAuthorized, tr)
	require.Equal(t, types.RequestStateAuthorized, req.State)
	require.Equal(t, 2, req.Approvals())
}

func TestDenyIsImmediatelyFatal(t *testing.T) {
	req := openRequest(t)
	now := fixedClock()

	req, _, err := ApplyVote(req, vote("alice", types.VoteApprove, testDigest), now)
	require.NoError(t, err)

	req, tr, err := ApplyVote(req, vote("bob", types.VoteDeny, testDigest), now)
	require.NoError(t, err)
	require.Equal(t, TransitionDenied, tr)
	require.Equal(t, types.RequestStateDenied, req.State)

	// No further approvals can revive a denied request.
	_, _, err = ApplyVote(req, vote("carol", types.VoteApprove, testDigest), now)
	require.Error(t, err)
	require.Equal(t, types.RequestStateDenied, req.State)
}

func TestDigestBindingRejected(t *testing.T) {
	req := openRequest(t)
	other := strings.Repeat("ab", 32)

	_, tr, err := ApplyVote(req, vote("alice", types.VoteApprove, other), fixedClock())
	require.Error(t, err)
	require.Equal(t, TransitionNone, tr)
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))
	require.Equal(t, types.ReasonAuthorizationMismatch, errMsg(t, err))
}

func TestUnknownAuthorizerRejected(t *testing.T) {
	req := openRequest(t)
	_, _, err := ApplyVote(req, vote("mallory", types.VoteApprove, testDigest), fixedClock())
	require.Error(t, err)
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))
}

func TestDuplicateVoteRejected(t *testing.T) {
	req := openRequest(t)
	req, _, err := ApplyVote(req, vote("alice", types.VoteApprove, testDigest), fixedClock())
	require.NoError(t, err)

	_, _, err = ApplyVote(req, vote("alice", types.VoteApprove, testDigest), fixedClock())
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeAlreadyExists, errbuilder.CodeOf(err))
	require.Equal(t, 1, req.Approvals())
}

func TestDeadlineExpiry(t *testing.T) {
	req := openRequest(t)
	late := req.Deadline.Add(time.Minute)

	req, tr, err := ApplyVote(req, vote("alice", types.VoteApprove, testDigest), late)
	require.NoError(t, err)
	require.Equal(t, TransitionExpired, tr)
	require.Equal(t, types.RequestStateExpired, req.State)
	require.Empty(t, req.Votes)
}
