// Package testutil provides shared test helpers used across the
// integration and unit test packages.
package testutil

import (
	"context"
	"crypto/ed25519"
	"crypto/rand"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"reprosign/internal/adapters"
	"reprosign/internal/app"
	"reprosign/internal/policies"
	"reprosign/internal/types"
)

// RepoRoot returns the absolute path to the repository root by walking
// up from the current working directory. It fails the test if the
// working directory cannot be determined.
func RepoRoot(t *testing.T) string {
	t.Helper()
	dir, err := os.Getwd()
	require.NoError(t, err)
	return filepath.Clean(filepath.Join(dir, "..", ".."))
}

// WriteRecipes writes a recipe book to a temp file and returns its
// path.
func WriteRecipes(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "recipes.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0644))
	return path
}

// Publisher is a source-signing identity for tests.
type Publisher struct {
	Public  ed25519.PublicKey
	private ed25519.PrivateKey
}

func NewPublisher(t *testing.T) Publisher {
	t.Helper()
	pub, priv, err := ed25519.GenerateKey(rand.Reader)
	require.NoError(t, err)
	return Publisher{Public: pub, private: priv}
}

func (p Publisher) PublicHex() string {
	return hex.EncodeToString(p.Public)
}

// Sign produces the hex signature over a source reference.
func (p Publisher) Sign(sourceRef string) string {
	return hex.EncodeToString(ed25519.Sign(p.private, []byte(sourceRef)))
}

// ServiceConfig controls NewService construction for tests.
type ServiceConfig struct {
	RecipesYAML    string
	PoolSize       int
	Publisher      Publisher
	Threshold      int
	Authorizers    []string
	AttemptTimeout time.Duration
}

// ServiceFixture bundles a fully wired service with the collaborators
// tests need to assert against.
type ServiceFixture struct {
	Service *app.Service
	Store   *adapters.MemoryStore
	Vault   *adapters.SoftwareVault
	AppKey  types.KeyRecord
}

// NewService builds a service backed by real exec sandboxes, a
// software vault with a bootstrapped key hierarchy and a file audit
// log.
func NewService(t *testing.T, cfg ServiceConfig) ServiceFixture {
	t.Helper()
	ctx := context.Background()

	if cfg.PoolSize == 0 {
		cfg.PoolSize = 3
	}
	if cfg.Threshold == 0 {
		cfg.Threshold = 2
	}
	if len(cfg.Authorizers) == 0 {
		cfg.Authorizers = []string{"alice", "bob", "carol"}
	}
	if cfg.AttemptTimeout == 0 {
		cfg.AttemptTimeout = 30 * time.Second
	}

	book, err := adapters.LoadRecipeBook(WriteRecipes(t, cfg.RecipesYAML))
	require.NoError(t, err)
	pool, err := adapters.NewExecBuilderPool(book, t.TempDir(), cfg.PoolSize)
	require.NoError(t, err)

	source, err := adapters.NewEd25519SourceVerifier([]string{cfg.Publisher.PublicHex()})
	require.NoError(t, err)

	vault := adapters.NewSoftwareVault()
	root, err := vault.CreateKey(ctx, types.KeyRoleRoot, "")
	require.NoError(t, err)
	repo, err := vault.CreateKey(ctx, types.KeyRoleRepositorySigning, root.ID)
	require.NoError(t, err)
	appKey, err := vault.CreateKey(ctx, types.KeyRoleAppSigning, repo.ID)
	require.NoError(t, err)

	audit, err := adapters.NewFileAuditLog(filepath.Join(t.TempDir(), "audit.log"))
	require.NoError(t, err)

	signingPolicy, err := policies.NewSigningPolicy(cfg.Threshold, cfg.Authorizers, time.Hour)
	require.NoError(t, err)

	store := adapters.NewMemoryStore()
	svc := app.NewService(app.Deps{
		Jobs:          store,
		Signing:       store,
		Suspensions:   store,
		Audit:         audit,
		Vault:         vault,
		Pool:          pool,
		Source:        source,
		SigningPolicy: signingPolicy,
		CeremonyPolicy: policies.CeremonyPolicy{
			Participants: cfg.Authorizers,
		},
		Authority: policies.NewAuthorityPolicy(map[string]string{
			"tok-sec": "security-response",
		}),
		SigningKeyID:   appKey.ID,
		AttemptTimeout: cfg.AttemptTimeout,
		RetryBudget:    1,
		RetryDelay:     10 * time.Millisecond,
	})
	return ServiceFixture{Service: svc, Store: store, Vault: vault, AppKey: appKey}
}
