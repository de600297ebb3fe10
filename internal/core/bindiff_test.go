package core

import (
	"bytes"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"reprosign/internal/types"
)

func TestDiffArtifactsEqual(t *testing.T) {
	data := []byte("same bytes")
	report := DiffArtifacts("a", "b", data, data)
	require.Empty(t, report.Ranges)
	require.Zero(t, report.SizeDelta)
}

func TestDiffArtifactsMidRange(t *testing.T) {
	a := []byte("aaaaXXaaaa")
	b := []byte("aaaaYYaaaa")
	report := DiffArtifacts("a", "b", a, b)
	want := []types.ByteRange{{Offset: 4, Length: 2}}
	if diff := cmp.Diff(want, report.Ranges); diff != "" {
		t.Fatalf("unexpected ranges (-want +got):\n%s", diff)
	}
}

func TestDiffArtifactsLengthMismatch(t *testing.T) {
	a := []byte("prefix")
	b := []byte("prefix-and-tail")
	report := DiffArtifacts("a", "b", a, b)
	require.Equal(t, int64(9), report.SizeDelta)
	require.Len(t, report.Ranges, 1)
	require.Equal(t, int64(6), report.Ranges[0].Offset)
	require.Equal(t, int64(9), report.Ranges[0].Length)
}

func TestDiffArtifactsTruncation(t *testing.T) {
	a := make([]byte, 4096)
	b := bytes.Repeat([]byte{0x00, 0xff}, 2048)
	report := DiffArtifacts("a", "b", a, b)
	require.Len(t, report.Ranges, maxDiffRanges)
	require.NotZero(t, report.TruncatedAt)
}
