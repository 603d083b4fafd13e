// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/compose"
	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/process"
	"github.com/unstract/platformctl/cmd/platformctl/internal/util"
	"github.com/unstract/platformctl/pkg/logging"
	"github.com/unstract/platformctl/pkg/ux"
)

// =============================================================================
// Options
// =============================================================================

// StartOptions configures the start lifecycle.
type StartOptions struct {
	// Build forces image rebuilds during compose up.
	Build bool
}

// StackStopOptions configures the stop lifecycle.
type StackStopOptions struct {
	// All escalates from project-scoped cleanup to a host-wide wipe
	// (docker system prune --all --volumes). Destructive.
	All bool

	// Yes skips the interactive confirmation for --all.
	Yes bool
}

// =============================================================================
// StackManager
// =============================================================================

// StackManager orchestrates the platform stack lifecycle.
//
// # Description
//
// Owns the command implementations behind start, stop, and the two
// restart verbs. Bootstrap steps (proxy passthrough, env record,
// override generation) run through their dedicated components; all
// container work goes through the compose Executor, and direct tool
// invocations (docker pull, npm, pdm, git) through the process
// Manager. Pull and compose-up invocations run under the retry
// decorator; everything else fails fast.
//
// # Thread Safety
//
// StackManager is not safe for concurrent lifecycle calls; the CLI
// invokes one verb per process.
type StackManager struct {
	layout    Layout
	executor  compose.Executor
	proc      process.Manager
	retrier   *Retrier
	prompter  util.UserPrompter
	override  *OverrideWriter
	envBoot   *EnvBootstrapper
	proxy     *ProxyConfigurator
	preflight *PreflightChecker
	logger    *logging.Logger
}

// NewStackManager wires a StackManager with default component
// implementations rooted at the given checkout.
func NewStackManager(root string, logger *logging.Logger) (*StackManager, error) {
	layout := Layout{Root: root}
	proc := process.NewDefaultManager()

	executor, err := compose.NewDefaultExecutor(compose.Config{
		ComposeDir:  layout.DockerDir(),
		ProjectName: composeProjectName,
	}, proc)
	if err != nil {
		return nil, err
	}

	return &StackManager{
		layout:    layout,
		executor:  executor,
		proc:      proc,
		retrier:   NewRetrier(DefaultRetryPolicy(), DefaultSleeper{}, logger),
		prompter:  util.NewInteractivePrompter(),
		override:  NewOverrideWriter(layout, logger),
		envBoot:   NewEnvBootstrapper(layout, proc, logger),
		proxy:     NewProxyConfigurator(logger),
		preflight: NewPreflightChecker(proc, layout, logger),
		logger:    logger,
	}, nil
}

// -----------------------------------------------------------------------------
// Start
// -----------------------------------------------------------------------------

// Start runs the full bootstrap and brings the stack up detached.
//
// Step order: preflight, proxy passthrough, env bootstrap, data
// directories, architecture override, image pulls, compose up. Any
// failing step aborts with a SetupError naming it.
func (m *StackManager) Start(ctx context.Context, opts StartOptions) error {
	ux.Title("Starting platform stack")

	ux.Step(1, 7, "Preflight checks")
	if err := m.preflight.Check(ctx); err != nil {
		return NewSetupError("preflight", err)
	}

	ux.Step(2, 7, "Engine proxy passthrough")
	if err := m.proxy.Apply(); err != nil {
		return NewSetupError("proxy_passthrough", err)
	}

	ux.Step(3, 7, "Environment bootstrap")
	record, err := m.envBoot.Bootstrap(ctx)
	if err != nil {
		return NewSetupError("env_bootstrap", err)
	}

	ux.Step(4, 7, "Data directories")
	for _, dir := range m.layout.DataDirs() {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return NewSetupError("data_dirs", fmt.Errorf("creating %s: %w", dir, err))
		}
	}

	ux.Step(5, 7, "Architecture override")
	if err := m.override.Sync(); err != nil {
		return NewSetupError("platform_override", err)
	}

	ux.Step(6, 7, "Image pulls")
	puller := NewImagePuller(m.proc, m.retrier, m.override.NeedsEmulation(), m.logger)
	if err := puller.PullAll(ctx); err != nil {
		return NewSetupError("image_pull", err)
	}

	ux.Step(7, 7, "Compose up")
	err = m.retrier.Do(ctx, "docker compose up", func(ctx context.Context) error {
		_, upErr := m.executor.Up(ctx, compose.UpOptions{
			Build:         opts.Build,
			RemoveOrphans: true,
			Env:           record.ToSlice(),
		})
		return upErr
	})
	if err != nil {
		return NewSetupError("compose_up", err)
	}

	ux.Success("Stack is up")
	return nil
}

// -----------------------------------------------------------------------------
// Stop
// -----------------------------------------------------------------------------

// Stop takes the stack down and cleans up.
//
// Default cleanup is scoped to the compose project: its containers and
// volumes via compose down -v, its images via a label-filtered prune.
// With All set (confirmed interactively unless Yes), the original
// host-wide wipe runs instead. Generated frontend/backend artifacts
// are always purged. Idempotent: a second run with nothing left still
// succeeds.
func (m *StackManager) Stop(ctx context.Context, opts StackStopOptions) error {
	ux.Title("Stopping platform stack")

	if _, err := m.executor.Down(ctx, compose.DownOptions{
		RemoveOrphans: true,
		RemoveVolumes: true,
	}); err != nil {
		return err
	}

	if opts.All {
		if err := m.wipeHost(ctx, opts.Yes); err != nil {
			return err
		}
	} else {
		if err := m.pruneProjectImages(ctx); err != nil {
			return err
		}
	}

	if err := m.purgeArtifacts(append(m.layout.FrontendArtifacts(), m.layout.BackendArtifacts()...)); err != nil {
		return err
	}

	ux.Success("Stack stopped and cleaned up")
	return nil
}

// pruneProjectImages removes images carrying this project's compose
// label. Unrelated images on the host are untouched.
func (m *StackManager) pruneProjectImages(ctx context.Context) error {
	filter := "label=com.docker.compose.project=" + composeProjectName
	_, stderr, exitCode, err := m.proc.RunInDir(ctx, "", nil,
		"docker", "image", "prune", "--all", "--force", "--filter", filter)
	if err != nil {
		return NewCommandError("docker image prune", exitCode, stderr, err)
	}
	if exitCode != 0 {
		return NewCommandError("docker image prune", exitCode, stderr, nil)
	}
	return nil
}

// wipeHost performs the host-wide cleanup: every stopped container,
// unused image, and dangling volume on the machine, not just this
// project's.
func (m *StackManager) wipeHost(ctx context.Context, autoApprove bool) error {
	if !autoApprove {
		ok, err := m.prompter.Confirm(ctx,
			"Remove ALL unused containers, images, and volumes on this host, including ones platformctl did not create?")
		if err != nil {
			return err
		}
		if !ok {
			ux.Muted("Host-wide cleanup skipped")
			return nil
		}
	}

	_, stderr, exitCode, err := m.proc.RunInDir(ctx, "", nil,
		"docker", "system", "prune", "--all", "--force", "--volumes")
	if err != nil {
		return NewCommandError("docker system prune", exitCode, stderr, err)
	}
	if exitCode != 0 {
		return NewCommandError("docker system prune", exitCode, stderr, nil)
	}
	return nil
}

// purgeArtifacts deletes generated build and dependency-cache paths.
// Missing paths are fine.
func (m *StackManager) purgeArtifacts(paths []string) error {
	for _, path := range paths {
		if err := os.RemoveAll(path); err != nil {
			return fmt.Errorf("purging %s: %w", path, err)
		}
		m.logger.Debug("purged artifact path", "path", path)
	}
	return nil
}

// -----------------------------------------------------------------------------
// Restart
// -----------------------------------------------------------------------------

// RestartFrontend cycles the frontend subset: stop, purge artifacts,
// npm ci, rebuild, up.
func (m *StackManager) RestartFrontend(ctx context.Context) error {
	return m.restartSubset(ctx, "frontend", frontendServices,
		m.layout.FrontendArtifacts(),
		m.layout.FrontendDir(), "npm", "ci")
}

// RestartBackend cycles the backend subset: stop, purge artifacts,
// pdm install, rebuild, up.
func (m *StackManager) RestartBackend(ctx context.Context) error {
	return m.restartSubset(ctx, "backend", backendServices,
		m.layout.BackendArtifacts(),
		m.layout.BackendDir(), "pdm", "install")
}

// restartSubset is the shared restart sequence. It is deliberately
// non-atomic: a midway failure is surfaced and leaves the partial
// state in place for the operator to inspect.
func (m *StackManager) restartSubset(ctx context.Context, name string, services []string,
	artifacts []string, installDir string, installTool string, installArgs ...string) error {

	ux.Title("Restarting " + name + " services")

	record, err := m.envBoot.Bootstrap(ctx)
	if err != nil {
		return NewSetupError("env_bootstrap", err)
	}
	env := record.ToSlice()

	ux.Info("Stopping " + strings.Join(services, ", "))
	if _, err := m.executor.Stop(ctx, compose.StopOptions{Services: services, Env: env}); err != nil {
		return err
	}
	if _, err := m.executor.Rm(ctx, compose.RmOptions{Services: services, Env: env}); err != nil {
		return err
	}

	ux.Info("Purging generated artifacts")
	if err := m.purgeArtifacts(artifacts); err != nil {
		return err
	}

	ux.Info(fmt.Sprintf("Reinstalling dependencies (%s %s)", installTool, strings.Join(installArgs, " ")))
	if err := m.proc.RunStreaming(ctx, installDir, os.Stdout, installTool, installArgs...); err != nil {
		return NewCommandError(installTool+" "+strings.Join(installArgs, " "), -1, "", err)
	}

	ux.Info("Rebuilding images")
	if _, err := m.executor.Build(ctx, compose.BuildOptions{Services: services, Env: env}); err != nil {
		return err
	}

	err = m.retrier.Do(ctx, "docker compose up "+name, func(ctx context.Context) error {
		_, upErr := m.executor.Up(ctx, compose.UpOptions{Services: services, Env: env})
		return upErr
	})
	if err != nil {
		return err
	}

	ux.Success("Restarted " + name + " services")
	return nil
}
