package cli

import (
	"context"
	"database/sql"
	"path/filepath"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"

	"reprosign/internal/adapters"
	"reprosign/internal/app"
	"reprosign/internal/policies"
	"reprosign/internal/ports"
	"reprosign/internal/types"

	_ "github.com/lib/pq"
)

func init() {
	viper.SetDefault("listen_addr", ":8420")
	viper.SetDefault("server_url", "http://localhost:8420")
	viper.SetDefault("recipes", "recipes.yaml")
	viper.SetDefault("builders_root", filepath.Join(".", "builders"))
	viper.SetDefault("pool_size", 3)
	viper.SetDefault("attempt_timeout", "30m")
	viper.SetDefault("retry_budget", 1)
	viper.SetDefault("retry_delay", "5s")
	viper.SetDefault("audit_path", "audit.log")
	viper.SetDefault("signing_threshold", 2)
	viper.SetDefault("signing_deadline", "72h")
}

// newAppService wires the full service from configuration. The key
// hierarchy is bootstrapped at startup: root, repository signing and
// app signing keys are created in the vault and the app signing key
// becomes the target of new signing requests.
func newAppService(ctx context.Context) (*app.Service, error) {
	book, err := adapters.LoadRecipeBook(viper.GetString("recipes"))
	if err != nil {
		return nil, err
	}
	pool, err := adapters.NewExecBuilderPool(book, viper.GetString("builders_root"), viper.GetInt("pool_size"))
	if err != nil {
		return nil, err
	}
	source, err := adapters.NewEd25519SourceVerifier(viper.GetStringSlice("publisher_keys"))
	if err != nil {
		return nil, err
	}
	audit, err := openAuditLog(ctx)
	if err != nil {
		return nil, err
	}
	signingPolicy, err := policies.NewSigningPolicy(
		viper.GetInt("signing_threshold"),
		viper.GetStringSlice("authorizers"),
		viper.GetDuration("signing_deadline"),
	)
	if err != nil {
		return nil, err
	}

	vault := adapters.NewSoftwareVault()
	appKey, err := bootstrapKeys(ctx, vault)
	if err != nil {
		return nil, err
	}

	store := adapters.NewMemoryStore()
	return app.NewService(app.Deps{
		Jobs:          store,
		Signing:       store,
		Suspensions:   store,
		Audit:         audit,
		Vault:         vault,
		Pool:          pool,
		Source:        source,
		SigningPolicy: signingPolicy,
		CeremonyPolicy: policies.CeremonyPolicy{
			Participants: viper.GetStringSlice("ceremony_participants"),
		},
		Authority:      policies.NewAuthorityPolicy(viper.GetStringMapString("authority_tokens")),
		SigningKeyID:   appKey.ID,
		AttemptTimeout: viper.GetDuration("attempt_timeout"),
		RetryBudget:    viper.GetInt("retry_budget"),
		RetryDelay:     viper.GetDuration("retry_delay"),
	}), nil
}

func openAuditLog(ctx context.Context) (ports.AuditLog, error) {
	if dsn := viper.GetString("database_url"); dsn != "" {
		db, err := sql.Open("postgres", dsn)
		if err != nil {
			return nil, errbuilder.New().
				WithCode(errbuilder.CodeInternal).
				WithMsg("failed to open audit database").
				WithCause(err)
		}
		db.SetConnMaxLifetime(5 * time.Minute)
		auditLog := adapters.NewSQLAuditLog(db)
		if err := auditLog.Init(ctx); err != nil {
			return nil, err
		}
		return auditLog, nil
	}
	return adapters.NewFileAuditLog(viper.GetString("audit_path"))
}

func bootstrapKeys(ctx context.Context, vault ports.KeyVault) (types.KeyRecord, error) {
	root, err := vault.CreateKey(ctx, types.KeyRoleRoot, "")
	if err != nil {
		return types.KeyRecord{}, err
	}
	repo, err := vault.CreateKey(ctx, types.KeyRoleRepositorySigning, root.ID)
	if err != nil {
		return types.KeyRecord{}, err
	}
	appKey, err := vault.CreateKey(ctx, types.KeyRoleAppSigning, repo.ID)
	if err != nil {
		return types.KeyRecord{}, err
	}
	log.Info().
		Str("root", root.ID).
		Str("repository", repo.ID).
		Str("app", appKey.ID).
		Msg("key hierarchy initialized")
	return appKey, nil
}
