// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"

	"golang.org/x/sys/unix"

	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/compose"
	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/process"
	"github.com/unstract/platformctl/cmd/platformctl/internal/util"
)

type stackFixture struct {
	manager  *StackManager
	executor *compose.MockExecutor
	proc     *process.MockManager
	prompter *util.MockPrompter
	sleeper  *RecordingSleeper
	layout   Layout
}

// newStackFixture builds a StackManager whose every external touchpoint
// is mocked: compose through MockExecutor, subprocesses through
// MockManager, confirmation through MockPrompter. The checkout lives in
// a temp dir seeded with a sample.env.
func newStackFixture(t *testing.T) *stackFixture {
	t.Helper()
	layout := Layout{Root: t.TempDir()}
	if err := os.MkdirAll(layout.DockerDir(), 0755); err != nil {
		t.Fatalf("creating docker dir: %v", err)
	}
	writeSample(t, layout, "DB_USER=unstract_dev\n")

	proc := &process.MockManager{
		RunInDirFunc: func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
			return "", "", 0, nil
		},
		RunStreamingFunc: func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
			return nil
		},
	}
	executor := &compose.MockExecutor{}
	prompter := &util.MockPrompter{}
	sleeper := &RecordingSleeper{}
	logger := testLogger()

	override := NewOverrideWriter(layout, logger)
	override.archFunc = func() string { return "amd64" }

	envBoot := NewEnvBootstrapper(layout, proc, logger)
	envBoot.lookupEnv = func(string) (string, bool) { return "", false }

	proxy := NewProxyConfigurator(logger)
	proxy.configPath = filepath.Join(layout.Root, "docker-config.json")
	proxy.lookupEnv = func(string) (string, bool) { return "", false }

	preflight := NewPreflightChecker(proc, layout, logger)
	preflight.statfs = func(path string, buf *unix.Statfs_t) error {
		return errors.New("statfs not supported in tests")
	}

	return &stackFixture{
		manager: &StackManager{
			layout:    layout,
			executor:  executor,
			proc:      proc,
			retrier:   NewRetrier(DefaultRetryPolicy(), sleeper, logger),
			prompter:  prompter,
			override:  override,
			envBoot:   envBoot,
			proxy:     proxy,
			preflight: preflight,
			logger:    logger,
		},
		executor: executor,
		proc:     proc,
		prompter: prompter,
		sleeper:  sleeper,
		layout:   layout,
	}
}

// dockerCalls returns recorded docker invocations whose first argument
// matches sub.
func dockerCalls(proc *process.MockManager, sub string) [][]string {
	var out [][]string
	for _, c := range proc.CallsTo("docker") {
		if len(c.Args) > 0 && c.Args[0] == sub {
			out = append(out, c.Args)
		}
	}
	return out
}

func seedDir(t *testing.T, dir string) {
	t.Helper()
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("creating %s: %v", dir, err)
	}
	if err := os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0644); err != nil {
		t.Fatalf("seeding %s: %v", dir, err)
	}
}

// -----------------------------------------------------------------------------
// Start
// -----------------------------------------------------------------------------

func TestStackManager_StartSequence(t *testing.T) {
	f := newStackFixture(t)

	if err := f.manager.Start(context.Background(), StartOptions{}); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	if len(f.executor.UpCalls) != 1 {
		t.Fatalf("UpCalls = %d, want 1", len(f.executor.UpCalls))
	}
	up := f.executor.UpCalls[0]
	if !up.RemoveOrphans {
		t.Error("compose up should remove orphans")
	}
	if up.Build {
		t.Error("compose up built without --build")
	}
	for _, want := range []string{"DB_USER=unstract_dev", "VERSION=latest", "WORKER_AUTOSCALE=100,2"} {
		if !slices.Contains(up.Env, want) {
			t.Errorf("compose up env missing %q: %v", want, up.Env)
		}
	}

	pulls := dockerCalls(f.proc, "pull")
	if len(pulls) != len(infraImages) {
		t.Errorf("docker pull calls = %d, want %d", len(pulls), len(infraImages))
	}
	for _, args := range pulls {
		if slices.Contains(args, "--platform") {
			t.Errorf("amd64 host pulled with --platform: %v", args)
		}
	}

	for _, dir := range f.layout.DataDirs() {
		if st, err := os.Stat(dir); err != nil || !st.IsDir() {
			t.Errorf("data dir %s not created: %v", dir, err)
		}
	}
	if _, err := os.Stat(f.layout.EnvFile()); err != nil {
		t.Errorf("env file not bootstrapped: %v", err)
	}
	if _, err := os.Stat(f.layout.OverrideFile()); !os.IsNotExist(err) {
		t.Error("override file written on amd64")
	}
}

func TestStackManager_StartEmulatedPulls(t *testing.T) {
	f := newStackFixture(t)
	f.manager.override.archFunc = func() string { return "arm64" }

	if err := f.manager.Start(context.Background(), StartOptions{}); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}

	for _, args := range dockerCalls(f.proc, "pull") {
		if !slices.Contains(args, "--platform") || !slices.Contains(args, overridePlatform) {
			t.Errorf("arm64 pull missing platform pin: %v", args)
		}
	}
	if _, err := os.Stat(f.layout.OverrideFile()); err != nil {
		t.Errorf("override file not written on arm64: %v", err)
	}
}

func TestStackManager_StartBuildFlag(t *testing.T) {
	f := newStackFixture(t)

	if err := f.manager.Start(context.Background(), StartOptions{Build: true}); err != nil {
		t.Fatalf("Start() unexpected error: %v", err)
	}
	if !f.executor.UpCalls[0].Build {
		t.Error("Build flag not forwarded to compose up")
	}
}

func TestStackManager_StartPreflightFailure(t *testing.T) {
	f := newStackFixture(t)
	f.proc.RunInDirFunc = func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
		if name == "docker" && args[0] == "info" {
			return "", "Cannot connect to the Docker daemon", 1, errors.New("exit status 1")
		}
		return "", "", 0, nil
	}

	err := f.manager.Start(context.Background(), StartOptions{})
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("Start() error = %v, want SetupError", err)
	}
	if setupErr.Step != "preflight" {
		t.Errorf("failed step = %q, want preflight", setupErr.Step)
	}
	if len(f.executor.UpCalls) != 0 {
		t.Error("compose up ran despite preflight failure")
	}
}

func TestStackManager_StartPullRetriesExhausted(t *testing.T) {
	f := newStackFixture(t)
	f.proc.RunInDirFunc = func(ctx context.Context, dir string, env []string, name string, args ...string) (string, string, int, error) {
		if name == "docker" && args[0] == "pull" {
			return "", "manifest unknown", 1, nil
		}
		return "", "", 0, nil
	}

	err := f.manager.Start(context.Background(), StartOptions{})
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("Start() error = %v, want SetupError", err)
	}
	if setupErr.Step != "image_pull" {
		t.Errorf("failed step = %q, want image_pull", setupErr.Step)
	}
	if !errors.Is(err, ErrRetriesExhausted) {
		t.Errorf("error chain missing ErrRetriesExhausted: %v", err)
	}

	// Three attempts on the first image, then abort; later images never
	// tried.
	if pulls := dockerCalls(f.proc, "pull"); len(pulls) != 3 {
		t.Errorf("docker pull calls = %d, want 3", len(pulls))
	}
	want := []string{"5s", "10s"}
	if len(f.sleeper.Delays) != len(want) {
		t.Fatalf("retry delays = %v, want %v", f.sleeper.Delays, want)
	}
	for i, d := range f.sleeper.Delays {
		if d.String() != want[i] {
			t.Errorf("delay[%d] = %v, want %v", i, d, want[i])
		}
	}
}

func TestStackManager_StartComposeUpRetried(t *testing.T) {
	f := newStackFixture(t)
	upErr := errors.New("network unstract_default not found")
	f.executor.UpFunc = func(ctx context.Context, opts compose.UpOptions) (*compose.Result, error) {
		return nil, upErr
	}

	err := f.manager.Start(context.Background(), StartOptions{})
	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("Start() error = %v, want SetupError", err)
	}
	if setupErr.Step != "compose_up" {
		t.Errorf("failed step = %q, want compose_up", setupErr.Step)
	}
	if !errors.Is(err, ErrRetriesExhausted) || !errors.Is(err, upErr) {
		t.Errorf("error chain incomplete: %v", err)
	}
	if len(f.executor.UpCalls) != 3 {
		t.Errorf("UpCalls = %d, want 3 attempts", len(f.executor.UpCalls))
	}
}

// -----------------------------------------------------------------------------
// Stop
// -----------------------------------------------------------------------------

func TestStackManager_StopScoped(t *testing.T) {
	f := newStackFixture(t)

	if err := f.manager.Stop(context.Background(), StackStopOptions{}); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}

	if len(f.executor.DownCalls) != 1 {
		t.Fatalf("DownCalls = %d, want 1", len(f.executor.DownCalls))
	}
	down := f.executor.DownCalls[0]
	if !down.RemoveOrphans || !down.RemoveVolumes {
		t.Errorf("compose down opts = %+v, want orphans and volumes removed", down)
	}

	prunes := dockerCalls(f.proc, "image")
	if len(prunes) != 1 {
		t.Fatalf("docker image prune calls = %d, want 1", len(prunes))
	}
	wantFilter := "label=com.docker.compose.project=" + composeProjectName
	if !slices.Contains(prunes[0], wantFilter) {
		t.Errorf("image prune not scoped to project: %v", prunes[0])
	}
	if len(dockerCalls(f.proc, "system")) != 0 {
		t.Error("host-wide prune ran without --all")
	}
	if len(f.prompter.Prompts) != 0 {
		t.Errorf("scoped stop prompted: %v", f.prompter.Prompts)
	}
}

func TestStackManager_StopIdempotent(t *testing.T) {
	f := newStackFixture(t)

	for i := 0; i < 2; i++ {
		if err := f.manager.Stop(context.Background(), StackStopOptions{}); err != nil {
			t.Fatalf("Stop() run %d unexpected error: %v", i+1, err)
		}
	}
	if len(f.executor.DownCalls) != 2 {
		t.Errorf("DownCalls = %d, want 2", len(f.executor.DownCalls))
	}
}

func TestStackManager_StopPurgesArtifacts(t *testing.T) {
	f := newStackFixture(t)
	nodeModules := filepath.Join(f.layout.FrontendDir(), "node_modules")
	venv := filepath.Join(f.layout.BackendDir(), ".venv")
	seedDir(t, nodeModules)
	seedDir(t, venv)

	if err := f.manager.Stop(context.Background(), StackStopOptions{}); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}

	for _, path := range []string{nodeModules, venv} {
		if _, err := os.Stat(path); !os.IsNotExist(err) {
			t.Errorf("artifact %s survived stop", path)
		}
	}
}

func TestStackManager_StopAllConfirmed(t *testing.T) {
	f := newStackFixture(t)

	if err := f.manager.Stop(context.Background(), StackStopOptions{All: true}); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}

	if len(f.prompter.Prompts) != 1 {
		t.Fatalf("prompts = %d, want 1", len(f.prompter.Prompts))
	}
	prunes := dockerCalls(f.proc, "system")
	if len(prunes) != 1 {
		t.Fatalf("docker system prune calls = %d, want 1", len(prunes))
	}
	for _, flag := range []string{"--all", "--force", "--volumes"} {
		if !slices.Contains(prunes[0], flag) {
			t.Errorf("system prune missing %s: %v", flag, prunes[0])
		}
	}
	if len(dockerCalls(f.proc, "image")) != 0 {
		t.Error("project-scoped prune ran alongside host wipe")
	}
}

func TestStackManager_StopAllDeclined(t *testing.T) {
	f := newStackFixture(t)
	f.prompter.ConfirmFunc = func(ctx context.Context, prompt string) (bool, error) {
		return false, nil
	}

	if err := f.manager.Stop(context.Background(), StackStopOptions{All: true}); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}
	if len(dockerCalls(f.proc, "system")) != 0 {
		t.Error("host wipe ran despite declined confirmation")
	}
}

func TestStackManager_StopAllAutoApprove(t *testing.T) {
	f := newStackFixture(t)

	if err := f.manager.Stop(context.Background(), StackStopOptions{All: true, Yes: true}); err != nil {
		t.Fatalf("Stop() unexpected error: %v", err)
	}
	if len(f.prompter.Prompts) != 0 {
		t.Errorf("--yes still prompted: %v", f.prompter.Prompts)
	}
	if len(dockerCalls(f.proc, "system")) != 1 {
		t.Error("host wipe missing under --all --yes")
	}
}

// -----------------------------------------------------------------------------
// Restart
// -----------------------------------------------------------------------------

func TestStackManager_RestartFrontendSequence(t *testing.T) {
	f := newStackFixture(t)
	nodeModules := filepath.Join(f.layout.FrontendDir(), "node_modules")
	seedDir(t, nodeModules)

	var events []string
	f.executor.StopFunc = func(ctx context.Context, opts compose.StopOptions) (*compose.Result, error) {
		events = append(events, "stop")
		return &compose.Result{Success: true}, nil
	}
	f.executor.RmFunc = func(ctx context.Context, opts compose.RmOptions) (*compose.Result, error) {
		events = append(events, "rm")
		return &compose.Result{Success: true}, nil
	}
	f.executor.BuildFunc = func(ctx context.Context, opts compose.BuildOptions) (*compose.Result, error) {
		events = append(events, "build")
		return &compose.Result{Success: true}, nil
	}
	f.executor.UpFunc = func(ctx context.Context, opts compose.UpOptions) (*compose.Result, error) {
		events = append(events, "up")
		return &compose.Result{Success: true}, nil
	}
	f.proc.RunStreamingFunc = func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
		events = append(events, name+" "+strings.Join(args, " "))
		if dir != f.layout.FrontendDir() {
			t.Errorf("install ran in %s, want %s", dir, f.layout.FrontendDir())
		}
		return nil
	}

	if err := f.manager.RestartFrontend(context.Background()); err != nil {
		t.Fatalf("RestartFrontend() unexpected error: %v", err)
	}

	want := []string{"stop", "rm", "npm ci", "build", "up"}
	if !slices.Equal(events, want) {
		t.Errorf("restart sequence = %v, want %v", events, want)
	}
	if !slices.Equal(f.executor.StopCalls[0].Services, frontendServices) {
		t.Errorf("stopped services = %v, want %v", f.executor.StopCalls[0].Services, frontendServices)
	}
	if !slices.Equal(f.executor.UpCalls[0].Services, frontendServices) {
		t.Errorf("started services = %v, want %v", f.executor.UpCalls[0].Services, frontendServices)
	}
	if _, err := os.Stat(nodeModules); !os.IsNotExist(err) {
		t.Error("node_modules survived the restart purge")
	}
}

func TestStackManager_RestartBackendServices(t *testing.T) {
	f := newStackFixture(t)

	var installTool string
	var installDir string
	f.proc.RunStreamingFunc = func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
		installTool = name + " " + strings.Join(args, " ")
		installDir = dir
		return nil
	}

	if err := f.manager.RestartBackend(context.Background()); err != nil {
		t.Fatalf("RestartBackend() unexpected error: %v", err)
	}

	if !slices.Equal(f.executor.StopCalls[0].Services, backendServices) {
		t.Errorf("stopped services = %v, want %v", f.executor.StopCalls[0].Services, backendServices)
	}
	if installTool != "pdm install" {
		t.Errorf("install tool = %q, want pdm install", installTool)
	}
	if installDir != f.layout.BackendDir() {
		t.Errorf("install dir = %q, want %q", installDir, f.layout.BackendDir())
	}
}

func TestStackManager_RestartInstallFailureFailsFast(t *testing.T) {
	f := newStackFixture(t)
	f.proc.RunStreamingFunc = func(ctx context.Context, dir string, w io.Writer, name string, args ...string) error {
		return errors.New("exit status 1")
	}

	err := f.manager.RestartFrontend(context.Background())
	var cmdErr *CommandError
	if !errors.As(err, &cmdErr) {
		t.Fatalf("RestartFrontend() error = %v, want CommandError", err)
	}
	if len(f.executor.BuildCalls) != 0 {
		t.Error("build ran after failed dependency install")
	}
	if len(f.executor.UpCalls) != 0 {
		t.Error("up ran after failed dependency install")
	}
}
