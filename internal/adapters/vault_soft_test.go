package adapters

import (
	"context"
	"strings"
	"testing"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/stretchr/testify/require"

	"reprosign/internal/ports"
	"reprosign/internal/types"
)

var voteDigest = strings.Repeat("ab", 32)

func quorumProof(digest string, approvers ...string) ports.QuorumProof {
	proof := ports.QuorumProof{
		RequestID: "req-1",
		Digest:    digest,
		Threshold: len(approvers),
	}
	for _, a := range approvers {
		proof.Votes = append(proof.Votes, types.AuthorizationRecord{
			AuthorizerID: a,
			Decision:     types.VoteApprove,
			BoundDigest:  digest,
		})
	}
	return proof
}

func hierarchy(t *testing.T, vault *SoftwareVault) (root, repo, app types.KeyRecord) {
	t.Helper()
	ctx := context.Background()
	root, err := vault.CreateKey(ctx, types.KeyRoleRoot, "")
	require.NoError(t, err)
	repo, err = vault.CreateKey(ctx, types.KeyRoleRepositorySigning, root.ID)
	require.NoError(t, err)
	app, err = vault.CreateKey(ctx, types.KeyRoleAppSigning, repo.ID)
	require.NoError(t, err)
	return root, repo, app
}

func TestSignAndVerifyRoundTrip(t *testing.T) {
	vault := NewSoftwareVault()
	_, _, app := hierarchy(t, vault)
	ctx := context.Background()

	sig, err := vault.Sign(ctx, app.ID, voteDigest, quorumProof(voteDigest, "alice", "bob"))
	require.NoError(t, err)

	ok, err := vault.Verify(ctx, app.ID, voteDigest, sig)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = vault.Verify(ctx, app.ID, strings.Repeat("cd", 32), sig)
	require.NoError(t, err)
	require.False(t, ok)
}

func TestSignRejectsMismatchedProof(t *testing.T) {
	vault := NewSoftwareVault()
	_, _, app := hierarchy(t, vault)
	ctx := context.Background()

	// Proof bound to a different digest.
	other := strings.Repeat("cd", 32)
	_, err := vault.Sign(ctx, app.ID, voteDigest, quorumProof(other, "alice", "bob"))
	require.Error(t, err)
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))

	// Not enough distinct approvals.
	thin := quorumProof(voteDigest, "alice")
	thin.Threshold = 2
	_, err = vault.Sign(ctx, app.ID, voteDigest, thin)
	require.Error(t, err)

	// Duplicate authorizer does not count twice.
	dup := quorumProof(voteDigest, "alice", "alice")
	_, err = vault.Sign(ctx, app.ID, voteDigest, dup)
	require.Error(t, err)
}

func TestRevocationCascades(t *testing.T) {
	vault := NewSoftwareVault()
	_, repo, app := hierarchy(t, vault)
	ctx := context.Background()

	sig, err := vault.Sign(ctx, app.ID, voteDigest, quorumProof(voteDigest, "alice", "bob"))
	require.NoError(t, err)

	require.NoError(t, vault.Revoke(ctx, repo.ID))

	// Descendant is blocked for new operations.
	_, err = vault.Sign(ctx, app.ID, voteDigest, quorumProof(voteDigest, "alice", "bob"))
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeFailedPrecondition, errbuilder.CodeOf(err))

	// New derivations under the revoked key are blocked too.
	_, err = vault.CreateKey(ctx, types.KeyRoleAppSigning, repo.ID)
	require.Error(t, err)

	// Prior signatures remain structurally valid.
	ok, err := vault.Verify(ctx, app.ID, voteDigest, sig)
	require.NoError(t, err)
	require.True(t, ok)
}

func TestVaultFailsClosed(t *testing.T) {
	vault := NewSoftwareVault()
	_, _, app := hierarchy(t, vault)
	vault.SetAvailable(false)
	ctx := context.Background()

	_, err := vault.Sign(ctx, app.ID, voteDigest, quorumProof(voteDigest, "alice", "bob"))
	require.Error(t, err)

	var builder *errbuilder.ErrBuilder
	require.ErrorAs(t, err, &builder)
	require.Equal(t, types.ReasonHsmUnavailable, builder.Msg)

	_, err = vault.CreateKey(ctx, types.KeyRoleRoot, "")
	require.Error(t, err)
}

func TestCreateKeyValidation(t *testing.T) {
	vault := NewSoftwareVault()
	ctx := context.Background()

	_, err := vault.CreateKey(ctx, types.KeyRoleRoot, "some-parent")
	require.Error(t, err)

	_, err = vault.CreateKey(ctx, types.KeyRoleAppSigning, "missing")
	require.Error(t, err)
	require.Equal(t, errbuilder.CodeNotFound, errbuilder.CodeOf(err))
}
