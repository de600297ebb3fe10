package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reprosign/internal/types"
)

func buildChain(t *testing.T, n int) []types.AuditEntry {
	t.Helper()
	entries := make([]types.AuditEntry, 0, n)
	var prev types.AuditEntry
	for i := 0; i < n; i++ {
		entry := types.AuditEntry{
			ID:         "entry",
			Timestamp:  time.Date(2026, 3, 14, 9, 0, i, 0, time.UTC),
			Actor:      "orchestrator",
			Action:     types.ActionBuildSubmitted,
			EntityKind: "build_job",
			EntityID:   "job-1",
		}
		sealed, err := SealEntry(entry, prev)
		require.NoError(t, err)
		entries = append(entries, sealed)
		prev = sealed
	}
	return entries
}

func TestVerifyChainUntampered(t *testing.T) {
	entries := buildChain(t, 5)
	require.NoError(t, VerifyChain(entries))
	require.Equal(t, types.GenesisHash, entries[0].PrevHash)
}

func TestVerifyChainDetectsPayloadTampering(t *testing.T) {
	entries := buildChain(t, 5)
	entries[2].EntityID = "job-2"
	require.Error(t, VerifyChain(entries))
}

func TestVerifyChainDetectsRemovedEntry(t *testing.T) {
	entries := buildChain(t, 5)
	spliced := append(entries[:2:2], entries[3:]...)
	require.Error(t, VerifyChain(spliced))
}

func TestVerifyChainDetectsRelink(t *testing.T) {
	entries := buildChain(t, 3)
	// Re-seal the middle entry after mutating it; its own hash is
	// consistent, but the successor's PrevHash no longer matches.
	entries[1].EntityID = "job-2"
	resealed, err := EntryHash(entries[1])
	require.NoError(t, err)
	entries[1].Hash = resealed
	require.Error(t, VerifyChain(entries))
}

func TestVerifyChainMidRange(t *testing.T) {
	entries := buildChain(t, 6)
	// Auditors may verify any contiguous window, not only from genesis.
	require.NoError(t, VerifyChain(entries[2:5]))
}
