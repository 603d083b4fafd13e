package compose

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/process"
)

// =============================================================================
// Error Definitions
// =============================================================================

var (
	// ErrDockerNotFound is returned when the docker binary is not available.
	ErrDockerNotFound = errors.New("docker not found")

	// ErrComposeFileMissing is returned when the base compose file doesn't exist.
	ErrComposeFileMissing = errors.New("compose file not found")

	// ErrInvalidConfig is returned when Config is invalid.
	ErrInvalidConfig = errors.New("invalid compose configuration")
)

// =============================================================================
// Interface Definition
// =============================================================================

// Executor manages docker compose operations for the platform stack.
//
// # Description
//
// This interface abstracts all interactions with `docker compose`, enabling
// testable orchestration of the platform services. It handles compose file
// layering (base plus the generated architecture override), environment
// injection, and scoping via the compose project name.
//
// # Thread Safety
//
// Implementations must be safe for concurrent use. Operations that modify
// container state (Up, Down, Stop, Rm) should be serialized.
type Executor interface {
	// Up starts services defined in the compose configuration.
	//
	// # Description
	//
	// Executes `docker compose up -d` with optional build flag.
	// Composes files in order: base, then override when it exists.
	// Injects environment variables from the provided slice.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration for the up operation
	//
	// # Outputs
	//
	//   - *Result: Execution result with stdout/stderr
	//   - error: If the compose command fails
	//
	// # Example
	//
	//	result, err := executor.Up(ctx, UpOptions{
	//	    Services: []string{"frontend"},
	//	    Build:    true,
	//	    Env:      envRecord.ToSlice(),
	//	})
	//
	// # Assumptions
	//
	//   - Docker daemon is running and accessible
	//   - The base compose file exists at the configured path
	Up(ctx context.Context, opts UpOptions) (*Result, error)

	// Down stops and removes containers defined in compose configuration.
	//
	// # Description
	//
	// Executes `docker compose down` with optional flags for orphan
	// removal and volume deletion. Running it against an already-down
	// project is not an error.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation and timeout
	//   - opts: Configuration for the down operation
	//
	// # Outputs
	//
	//   - *Result: Execution result with stdout/stderr
	//   - error: If the compose command fails
	//
	// # Limitations
	//
	//   - Volume removal is irreversible
	Down(ctx context.Context, opts DownOptions) (*Result, error)

	// Stop stops a subset of services without removing them.
	Stop(ctx context.Context, opts StopOptions) (*Result, error)

	// Rm removes stopped service containers.
	//
	// Maps to `docker compose rm -f` for the given subset. Removing a
	// container that does not exist is not an error.
	Rm(ctx context.Context, opts RmOptions) (*Result, error)

	// Build rebuilds images for a subset of services.
	Build(ctx context.Context, opts BuildOptions) (*Result, error)

	// Pull pulls images for services defined in the compose file.
	Pull(ctx context.Context, opts PullOptions) (*Result, error)

	// GetComposeFiles returns the ordered compose file list in effect.
	//
	// The override file is included only when it exists on disk, so the
	// result reflects what the next operation will actually layer.
	GetComposeFiles() []string
}

// =============================================================================
// Supporting Types
// =============================================================================

// Config provides configuration for compose operations.
type Config struct {
	// ComposeDir is the directory containing compose files.
	// All compose file paths are relative to this directory. Required.
	ComposeDir string

	// ProjectName is the compose project name.
	// Default: "unstract"
	ProjectName string

	// BaseFile is the primary compose file name.
	// Default: "docker-compose.yaml"
	BaseFile string

	// OverrideFile is the generated architecture override file name.
	// Only layered when it exists.
	// Default: "docker-compose.override.yaml"
	OverrideFile string

	// DefaultTimeout is the default timeout for compose operations.
	// Default: 10 minutes
	DefaultTimeout time.Duration
}

// UpOptions configures the Up operation.
type UpOptions struct {
	// Build rebuilds images before starting.
	// Maps to: --build flag
	Build bool

	// Services limits which services to start.
	// Empty means all services.
	Services []string

	// Env contains KEY=VALUE pairs appended to the child environment.
	// Compose interpolates these into the service definitions.
	Env []string

	// RemoveOrphans removes containers for services not defined.
	RemoveOrphans bool

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// DownOptions configures the Down operation.
type DownOptions struct {
	// RemoveOrphans removes containers for services not in the compose file.
	RemoveOrphans bool

	// RemoveVolumes removes named volumes declared in the compose file.
	// WARNING: This is destructive and cannot be undone.
	RemoveVolumes bool

	// Env contains KEY=VALUE pairs appended to the child environment.
	Env []string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// StopOptions configures the Stop operation.
type StopOptions struct {
	// Services limits which services to stop. Empty means all.
	Services []string

	// Env contains KEY=VALUE pairs appended to the child environment.
	Env []string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// RmOptions configures the Rm operation.
type RmOptions struct {
	// Services limits which service containers to remove. Empty means all.
	Services []string

	// StopFirst also stops running containers before removal.
	// Maps to: -s flag
	StopFirst bool

	// Env contains KEY=VALUE pairs appended to the child environment.
	Env []string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// BuildOptions configures the Build operation.
type BuildOptions struct {
	// Services limits which images to build. Empty means all.
	Services []string

	// NoCache disables the build cache.
	NoCache bool

	// Env contains KEY=VALUE pairs appended to the child environment.
	Env []string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// PullOptions configures the Pull operation.
type PullOptions struct {
	// Services limits which images to pull. Empty means all.
	Services []string

	// Env contains KEY=VALUE pairs appended to the child environment.
	Env []string

	// Timeout overrides the default operation timeout.
	Timeout time.Duration
}

// Result contains the result of a compose operation.
type Result struct {
	// RunID uniquely identifies this invocation for log correlation.
	RunID string

	// Success indicates if the operation completed without error.
	Success bool

	// ExitCode is the exit code of the compose command.
	ExitCode int

	// Stdout contains standard output.
	Stdout string

	// Stderr contains standard error.
	Stderr string

	// Duration is how long the operation took.
	Duration time.Duration

	// Command is the full command that was executed (for debugging).
	Command string
}

// =============================================================================
// Default Implementation
// =============================================================================

// DefaultExecutor implements Executor using the docker CLI.
type DefaultExecutor struct {
	config   Config
	proc     process.Manager
	statFunc func(string) (os.FileInfo, error)
	mu       sync.Mutex
}

// NewDefaultExecutor creates a new Executor with the given configuration.
//
// # Description
//
// Creates an executor configured for `docker compose` operations.
// Validates the configuration and sets sensible defaults.
//
// # Inputs
//
//   - cfg: Compose configuration (ComposeDir required)
//   - proc: Manager for command execution
//
// # Outputs
//
//   - *DefaultExecutor: Configured executor
//   - error: If configuration is invalid
//
// # Defaults Applied
//
//   - ProjectName: "unstract"
//   - BaseFile: "docker-compose.yaml"
//   - OverrideFile: "docker-compose.override.yaml"
//   - DefaultTimeout: 10 minutes
//
// # Limitations
//
//   - Does not verify docker is installed (checked by preflight)
//   - Does not verify ComposeDir exists (checked at runtime)
func NewDefaultExecutor(cfg Config, proc process.Manager) (*DefaultExecutor, error) {
	if err := validateConfig(&cfg); err != nil {
		return nil, err
	}

	applyConfigDefaults(&cfg)

	return &DefaultExecutor{
		config:   cfg,
		proc:     proc,
		statFunc: os.Stat,
	}, nil
}

func validateConfig(cfg *Config) error {
	if cfg.ComposeDir == "" {
		return fmt.Errorf("%w: ComposeDir is required", ErrInvalidConfig)
	}
	return nil
}

func applyConfigDefaults(cfg *Config) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = "unstract"
	}
	if cfg.BaseFile == "" {
		cfg.BaseFile = "docker-compose.yaml"
	}
	if cfg.OverrideFile == "" {
		cfg.OverrideFile = "docker-compose.override.yaml"
	}
	if cfg.DefaultTimeout == 0 {
		cfg.DefaultTimeout = 10 * time.Minute
	}
}

// =============================================================================
// Interface Implementation
// =============================================================================

// Up starts services defined in the compose configuration.
func (e *DefaultExecutor) Up(ctx context.Context, opts UpOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "up", "-d")

	if opts.Build {
		args = append(args, "--build")
	}
	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	args = append(args, opts.Services...)

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Down stops and removes containers defined in compose configuration.
func (e *DefaultExecutor) Down(ctx context.Context, opts DownOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "down")

	if opts.RemoveOrphans {
		args = append(args, "--remove-orphans")
	}
	if opts.RemoveVolumes {
		args = append(args, "-v")
	}

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Stop stops a subset of services without removing them.
func (e *DefaultExecutor) Stop(ctx context.Context, opts StopOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "stop")
	args = append(args, opts.Services...)

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Rm removes stopped service containers.
func (e *DefaultExecutor) Rm(ctx context.Context, opts RmOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "rm", "-f")
	if opts.StopFirst {
		args = append(args, "-s")
	}
	args = append(args, opts.Services...)

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Build rebuilds images for a subset of services.
func (e *DefaultExecutor) Build(ctx context.Context, opts BuildOptions) (*Result, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	args, err := e.buildFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "build")
	if opts.NoCache {
		args = append(args, "--no-cache")
	}
	args = append(args, opts.Services...)

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// Pull pulls images for services defined in the compose file.
func (e *DefaultExecutor) Pull(ctx context.Context, opts PullOptions) (*Result, error) {
	args, err := e.buildFileArgs()
	if err != nil {
		return nil, err
	}
	args = append(args, "pull")
	args = append(args, opts.Services...)

	return e.runCompose(ctx, args, opts.Env, e.resolveTimeout(opts.Timeout))
}

// GetComposeFiles returns the ordered compose file list in effect.
func (e *DefaultExecutor) GetComposeFiles() []string {
	files := []string{filepath.Join(e.config.ComposeDir, e.config.BaseFile)}

	override := filepath.Join(e.config.ComposeDir, e.config.OverrideFile)
	if _, err := e.statFunc(override); err == nil {
		files = append(files, override)
	}
	return files
}

// ProjectName returns the configured compose project name.
func (e *DefaultExecutor) ProjectName() string {
	return e.config.ProjectName
}

// =============================================================================
// Internal Helpers
// =============================================================================

// buildFileArgs builds the leading compose args: subcommand, project
// name, and -f flags for each compose file in layering order.
func (e *DefaultExecutor) buildFileArgs() ([]string, error) {
	base := filepath.Join(e.config.ComposeDir, e.config.BaseFile)
	if _, err := e.statFunc(base); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrComposeFileMissing, base)
	}

	args := []string{"compose", "--project-name", e.config.ProjectName}
	for _, f := range e.GetComposeFiles() {
		args = append(args, "-f", f)
	}
	return args, nil
}

func (e *DefaultExecutor) resolveTimeout(override time.Duration) time.Duration {
	if override > 0 {
		return override
	}
	return e.config.DefaultTimeout
}

// runCompose executes docker with the given args and captures the result.
func (e *DefaultExecutor) runCompose(ctx context.Context, args []string, env []string, timeout time.Duration) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()
	stdout, stderr, exitCode, err := e.proc.RunInDir(ctx, e.config.ComposeDir, env, "docker", args...)

	result := &Result{
		RunID:    uuid.New().String(),
		Success:  err == nil && exitCode == 0,
		ExitCode: exitCode,
		Stdout:   stdout,
		Stderr:   stderr,
		Duration: time.Since(start),
		Command:  "docker " + strings.Join(args, " "),
	}

	if err != nil {
		return result, fmt.Errorf("docker compose failed: %w", err)
	}
	if exitCode != 0 {
		return result, fmt.Errorf("docker compose exited %d: %s", exitCode, strings.TrimSpace(stderr))
	}
	return result, nil
}

// Compile-time assertion that DefaultExecutor satisfies Executor.
var _ Executor = (*DefaultExecutor)(nil)
