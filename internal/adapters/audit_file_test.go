package adapters

import (
	"context"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"reprosign/internal/core"
	"reprosign/internal/types"
)

func submitEvent(entityID string) types.AuditEvent {
	return types.AuditEvent{
		Actor:      "orchestrator",
		Action:     types.ActionBuildSubmitted,
		EntityKind: "build_job",
		EntityID:   entityID,
		Payload:    map[string]any{"quorum_size": 3, "match_threshold": 3},
	}
}

func TestFileAuditLogChain(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logAdapter, err := NewFileAuditLog(path)
	require.NoError(t, err)
	ctx := context.Background()

	first, err := logAdapter.Append(ctx, submitEvent("job-1"))
	require.NoError(t, err)
	require.Equal(t, uint64(1), first.Seq)
	require.Equal(t, types.GenesisHash, first.PrevHash)

	second, err := logAdapter.Append(ctx, submitEvent("job-2"))
	require.NoError(t, err)
	require.Equal(t, first.Hash, second.PrevHash)

	entries, err := logAdapter.Range(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	require.NoError(t, core.VerifyChain(entries))
}

func TestFileAuditLogSurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	ctx := context.Background()

	logAdapter, err := NewFileAuditLog(path)
	require.NoError(t, err)
	_, err = logAdapter.Append(ctx, submitEvent("job-1"))
	require.NoError(t, err)
	_, err = logAdapter.Append(ctx, submitEvent("job-2"))
	require.NoError(t, err)

	// Reopen and continue the chain: linkage must hold across restarts.
	reopened, err := NewFileAuditLog(path)
	require.NoError(t, err)
	third, err := reopened.Append(ctx, submitEvent("job-3"))
	require.NoError(t, err)
	require.Equal(t, uint64(3), third.Seq)

	entries, err := reopened.Range(ctx, 1, 10)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.NoError(t, core.VerifyChain(entries))
}

func TestFileAuditLogRangeBounds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logAdapter, err := NewFileAuditLog(path)
	require.NoError(t, err)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := logAdapter.Append(ctx, submitEvent("job"))
		require.NoError(t, err)
	}

	entries, err := logAdapter.Range(ctx, 2, 4)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	require.Equal(t, uint64(2), entries[0].Seq)
	require.NoError(t, core.VerifyChain(entries))
}

func TestFileAuditLogConcurrentAppends(t *testing.T) {
	path := filepath.Join(t.TempDir(), "audit.jsonl")
	logAdapter, err := NewFileAuditLog(path)
	require.NoError(t, err)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := logAdapter.Append(ctx, submitEvent("job"))
			require.NoError(t, err)
		}()
	}
	wg.Wait()

	entries, err := logAdapter.Range(ctx, 1, 100)
	require.NoError(t, err)
	require.Len(t, entries, 20)
	// The append lock totally orders concurrent writers.
	require.NoError(t, core.VerifyChain(entries))
}
