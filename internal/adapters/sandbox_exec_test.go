package adapters

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reprosign/internal/ports"
	"reprosign/internal/shared"
)

func testBook(t *testing.T) RecipeBook {
	t.Helper()
	book, err := NewRecipeBook([]Recipe{
		{
			ID:      "echo-artifact",
			Command: []string{"sh", "-c", "printf 'artifact-bytes' > out.bin"},
			Output:  "out.bin",
		},
		{
			ID:      "sleep-forever",
			Command: []string{"sh", "-c", "sleep 60"},
			Output:  "out.bin",
		},
		{
			ID:      "exit-nonzero",
			Command: []string{"sh", "-c", "echo broken >&2; exit 1"},
			Output:  "out.bin",
		},
	})
	require.NoError(t, err)
	return book
}

func TestExecSandboxProducesDigest(t *testing.T) {
	pool, err := NewExecBuilderPool(testBook(t), t.TempDir(), 3)
	require.NoError(t, err)

	sandbox, err := pool.Provision(context.Background(), "builder-0")
	require.NoError(t, err)
	defer func() { _ = sandbox.Destroy() }()

	out, err := sandbox.Run(context.Background(), ports.BuildSpec{
		JobID:     "job-1",
		SourceRef: "refs/tags/v1.0.0",
		RecipeID:  "echo-artifact",
	})
	require.NoError(t, err)
	require.Equal(t, shared.DigestBytes([]byte("artifact-bytes")), out.Digest)
	require.NotEmpty(t, out.LogRef)
}

func TestExecSandboxSingleUse(t *testing.T) {
	pool, err := NewExecBuilderPool(testBook(t), t.TempDir(), 1)
	require.NoError(t, err)

	sandbox, err := pool.Provision(context.Background(), "builder-0")
	require.NoError(t, err)
	defer func() { _ = sandbox.Destroy() }()

	_, err = sandbox.Run(context.Background(), ports.BuildSpec{JobID: "job-1", RecipeID: "echo-artifact"})
	require.NoError(t, err)

	_, err = sandbox.Run(context.Background(), ports.BuildSpec{JobID: "job-1", RecipeID: "echo-artifact"})
	require.Error(t, err)
}

func TestExecSandboxTimeout(t *testing.T) {
	pool, err := NewExecBuilderPool(testBook(t), t.TempDir(), 1)
	require.NoError(t, err)

	sandbox, err := pool.Provision(context.Background(), "builder-0")
	require.NoError(t, err)
	defer func() { _ = sandbox.Destroy() }()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	_, err = sandbox.Run(ctx, ports.BuildSpec{JobID: "job-1", RecipeID: "sleep-forever"})
	require.Error(t, err)
}

func TestExecSandboxDestroyRemovesDirectory(t *testing.T) {
	pool, err := NewExecBuilderPool(testBook(t), t.TempDir(), 1)
	require.NoError(t, err)

	sandbox, err := pool.Provision(context.Background(), "builder-0")
	require.NoError(t, err)

	dir := sandbox.(*execSandbox).dir
	_, err = os.Stat(dir)
	require.NoError(t, err)

	require.NoError(t, sandbox.Destroy())
	_, err = os.Stat(dir)
	require.True(t, os.IsNotExist(err))

	// Idempotent.
	require.NoError(t, sandbox.Destroy())
}

func TestExecSandboxBuildFailure(t *testing.T) {
	pool, err := NewExecBuilderPool(testBook(t), t.TempDir(), 1)
	require.NoError(t, err)

	sandbox, err := pool.Provision(context.Background(), "builder-0")
	require.NoError(t, err)
	defer func() { _ = sandbox.Destroy() }()

	_, err = sandbox.Run(context.Background(), ports.BuildSpec{JobID: "job-1", RecipeID: "exit-nonzero"})
	require.Error(t, err)
}

func TestRecipeBookValidation(t *testing.T) {
	_, err := NewRecipeBook([]Recipe{{ID: "", Command: []string{"true"}, Output: "x"}})
	require.Error(t, err)

	_, err = NewRecipeBook([]Recipe{
		{ID: "a", Command: []string{"true"}, Output: "x"},
		{ID: "a", Command: []string{"true"}, Output: "x"},
	})
	require.Error(t, err)
}
