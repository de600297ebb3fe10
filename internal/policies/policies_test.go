package policies

import (
	"testing"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestNewSigningPolicy(t *testing.T) {
	tests := []struct {
		name        string
		threshold   int
		authorizers []string
		deadline    time.Duration
		wantErr     bool
	}{
		{"valid", 2, []string{"alice", "bob", "carol"}, time.Hour, false},
		{"trims blanks", 1, []string{" alice ", ""}, time.Hour, false},
		{"threshold too high", 3, []string{"alice", "bob"}, time.Hour, true},
		{"threshold zero", 0, []string{"alice"}, time.Hour, true},
		{"no authorizers", 1, nil, time.Hour, true},
		{"duplicate authorizer", 1, []string{"alice", "alice"}, time.Hour, true},
		{"zero deadline", 1, []string{"alice"}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			policy, err := NewSigningPolicy(tt.threshold, tt.authorizers, tt.deadline)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tt.threshold, policy.Threshold)
		})
	}
}

func TestSigningPolicyTrimsAuthorizers(t *testing.T) {
	policy, err := NewSigningPolicy(1, []string{" alice ", "bob", ""}, time.Hour)
	require.NoError(t, err)
	if diff := cmp.Diff([]string{"alice", "bob"}, policy.Authorizers); diff != "" {
		t.Fatalf("unexpected authorizers (-want +got):\n%s", diff)
	}
}

func TestAuthorityPolicy(t *testing.T) {
	policy := NewAuthorityPolicy(map[string]string{
		"tok-incident-team": "incident-response",
	})

	name, err := policy.Authorize("tok-incident-team")
	require.NoError(t, err)
	require.Equal(t, "incident-response", name)

	_, err = policy.Authorize("tok-unknown")
	require.Error(t, err)
	require.Equal(t, errbuilder.CodePermissionDenied, errbuilder.CodeOf(err))

	_, err = policy.Authorize("")
	require.Error(t, err)
}
