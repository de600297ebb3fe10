package adapters

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/ZanzyTHEbar/errbuilder-go"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"reprosign/internal/ports"
	"reprosign/internal/shared"
)

// ExecBuilderPool provisions process-level sandboxes: each attempt
// runs its recipe in a freshly created scratch directory that is
// removed on teardown. Isolation here is filesystem and environment
// scoping; hardened deployments put a container or VM runtime behind
// the same port.
type ExecBuilderPool struct {
	Book     RecipeBook
	Root     string
	PoolSize int
}

func NewExecBuilderPool(book RecipeBook, root string, size int) (*ExecBuilderPool, error) {
	if size < 1 {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInvalidArgument).
			WithMsg("builder pool size must be at least 1")
	}
	if strings.TrimSpace(root) == "" {
		root = os.TempDir()
	}
	return &ExecBuilderPool{Book: book, Root: root, PoolSize: size}, nil
}

func (p *ExecBuilderPool) Size() int {
	return p.PoolSize
}

func (p *ExecBuilderPool) Provision(ctx context.Context, builderID string) (ports.Sandbox, error) {
	if err := ctx.Err(); err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("provisioning cancelled").
			WithCause(err)
	}
	id := builderID + "-" + uuid.NewString()[:8]
	dir, err := os.MkdirTemp(p.Root, "reprosign-sandbox-"+id+"-")
	if err != nil {
		return nil, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("failed to provision sandbox directory").
			WithCause(err)
	}
	log.Debug().Str("sandbox", id).Str("dir", dir).Msg("sandbox provisioned")
	return &execSandbox{id: id, dir: dir, book: p.Book}, nil
}

type execSandbox struct {
	id   string
	dir  string
	book RecipeBook

	mu        sync.Mutex
	ran       bool
	destroyed bool
}

func (s *execSandbox) ID() string {
	return s.id
}

func (s *execSandbox) Run(ctx context.Context, spec ports.BuildSpec) (ports.BuildOutput, error) {
	s.mu.Lock()
	if s.destroyed {
		s.mu.Unlock()
		return ports.BuildOutput{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("sandbox already destroyed")
	}
	if s.ran {
		s.mu.Unlock()
		return ports.BuildOutput{}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("sandbox is single-use")
	}
	s.ran = true
	s.mu.Unlock()

	recipe, ok := s.book.Lookup(spec.RecipeID)
	if !ok {
		return ports.BuildOutput{}, errbuilder.New().
			WithCode(errbuilder.CodeNotFound).
			WithMsg(fmt.Sprintf("unknown recipe: %s", spec.RecipeID))
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, recipe.Command[0], recipe.Command[1:]...) //nolint:gosec // commands come from the operator-managed recipe book
	cmd.Dir = s.dir
	cmd.Env = buildEnv(spec, recipe)

	output, err := cmd.CombinedOutput()
	duration := time.Since(start)

	logPath := filepath.Join(s.dir, "build.log")
	if werr := os.WriteFile(logPath, output, 0o600); werr != nil {
		log.Warn().Err(werr).Str("sandbox", s.id).Msg("failed to persist build log")
	}

	if ctx.Err() != nil {
		return ports.BuildOutput{LogRef: logPath, Duration: duration}, errbuilder.New().
			WithCode(errbuilder.CodeFailedPrecondition).
			WithMsg("build attempt timed out").
			WithCause(ctx.Err())
	}
	if err != nil {
		return ports.BuildOutput{LogRef: logPath, Duration: duration}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("build command failed").
			WithCause(shared.CommandError(output, err))
	}

	artifact, err := os.ReadFile(filepath.Join(s.dir, recipe.Output)) //nolint:gosec // path is fixed by the recipe book
	if err != nil {
		return ports.BuildOutput{LogRef: logPath, Duration: duration}, errbuilder.New().
			WithCode(errbuilder.CodeInternal).
			WithMsg("recipe produced no artifact at declared output path").
			WithCause(err)
	}

	return ports.BuildOutput{
		Digest:   shared.DigestBytes(artifact),
		Artifact: artifact,
		LogRef:   logPath,
		Duration: duration,
	}, nil
}

func (s *execSandbox) Destroy() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.destroyed {
		return nil
	}
	s.destroyed = true
	log.Debug().Str("sandbox", s.id).Msg("sandbox destroyed")
	return os.RemoveAll(s.dir)
}

// buildEnv hands the sandbox a scrubbed environment: only the source
// pin, the recipe parameters and the network allowlist. The host
// environment never leaks into a build.
func buildEnv(spec ports.BuildSpec, recipe Recipe) []string {
	env := []string{
		"PATH=/usr/local/bin:/usr/bin:/bin",
		"REPROSIGN_SOURCE_REF=" + spec.SourceRef,
		"REPROSIGN_JOB_ID=" + spec.JobID,
	}
	hosts := spec.AllowedHosts
	if len(hosts) == 0 {
		hosts = recipe.AllowedHosts
	}
	if len(hosts) > 0 {
		env = append(env, "REPROSIGN_ALLOWED_HOSTS="+strings.Join(hosts, ","))
	}
	for k, v := range spec.RecipeParams {
		env = append(env, "REPROSIGN_PARAM_"+strings.ToUpper(k)+"="+v)
	}
	return env
}

var _ ports.BuilderPool = (*ExecBuilderPool)(nil)
