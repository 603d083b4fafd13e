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
	"strings"

	"golang.org/x/sys/unix"

	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/process"
	"github.com/unstract/platformctl/pkg/logging"
	"github.com/unstract/platformctl/pkg/ux"
)

// minFreeDiskBytes is the free-space floor below which start warns.
// Image pulls alone can take tens of gigabytes on a fresh host.
const minFreeDiskBytes = 10 << 30 // 10 GiB

// PreflightChecker validates the host before the lifecycle touches it.
//
// # Description
//
// Three checks run before start:
//
//  1. docker is on PATH.
//  2. The daemon answers `docker info`.
//  3. The data directory's filesystem has headroom (warning only).
//
// The first two are fatal; disk space only warns because the operator
// may know better.
type PreflightChecker struct {
	proc   process.Manager
	layout Layout
	statfs func(path string, buf *unix.Statfs_t) error
	logger *logging.Logger
}

// NewPreflightChecker creates a PreflightChecker using the real
// filesystem.
func NewPreflightChecker(proc process.Manager, layout Layout, logger *logging.Logger) *PreflightChecker {
	return &PreflightChecker{
		proc:   proc,
		layout: layout,
		statfs: unix.Statfs,
		logger: logger,
	}
}

// Check runs all preflight checks.
func (c *PreflightChecker) Check(ctx context.Context) error {
	if _, err := c.proc.LookPath("docker"); err != nil {
		return fmt.Errorf("docker not found on PATH: %w", err)
	}

	_, stderr, exitCode, err := c.proc.RunInDir(ctx, "", nil, "docker", "info", "--format", "{{.ServerVersion}}")
	if err != nil {
		return NewCommandError("docker info", exitCode, stderr, err)
	}
	if exitCode != 0 {
		return fmt.Errorf("docker daemon not responding: %s", strings.TrimSpace(stderr))
	}

	c.checkDiskSpace()
	return nil
}

// checkDiskSpace warns when the checkout's filesystem is low. Never
// fatal.
func (c *PreflightChecker) checkDiskSpace() {
	var st unix.Statfs_t
	if err := c.statfs(c.layout.Root, &st); err != nil {
		c.logger.Debug("statfs failed, skipping disk space check", "error", err.Error())
		return
	}

	free := uint64(st.Bavail) * uint64(st.Bsize)
	if free < minFreeDiskBytes {
		ux.Warning(fmt.Sprintf("Low disk space: %.1f GiB free (recommend at least %d GiB)",
			float64(free)/float64(1<<30), minFreeDiskBytes>>30))
	}
	c.logger.Debug("disk space check", "free_bytes", free)
}
