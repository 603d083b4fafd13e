// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/mod/semver"

	"github.com/unstract/platformctl/cmd/platformctl/internal/infra/process"
	"github.com/unstract/platformctl/cmd/platformctl/internal/util"
	"github.com/unstract/platformctl/pkg/logging"
)

// versionKey carries the image tag every service definition
// interpolates.
const versionKey = "VERSION"

// versionFallback is used when the checkout has no release tags.
const versionFallback = "latest"

// autoscaleDefault is the "max,min" concurrency pair injected for each
// worker when the operator hasn't set one.
const autoscaleDefault = "100,2"

// autoscaleKeys lists the per-worker autoscale variables.
var autoscaleKeys = []string{
	"WORKER_AUTOSCALE",
	"WORKER_LOGGING_AUTOSCALE",
	"WORKER_FILE_PROCESSING_AUTOSCALE",
	"WORKER_CALLBACK_AUTOSCALE",
	"WORKER_API_DEPLOYMENT_AUTOSCALE",
}

// EnvBootstrapper assembles the configuration record handed to compose.
//
// # Description
//
// Produces an explicit util.EnvVars record instead of mutating the
// process environment:
//
//  1. Materialize docker/.env from docker/sample.env when missing
//     (byte-for-byte copy, so the template's comments survive).
//  2. Parse the env file strictly; a malformed line fails the run.
//  3. Overlay host environment values for keys the record knows about.
//  4. Resolve VERSION from the newest v-prefixed release tag, falling
//     back to "latest" when git or the tag list is unavailable.
//  5. Inject worker autoscale defaults for keys still absent.
//
// Precedence: host environment > env file > injected default.
//
// # Thread Safety
//
// EnvBootstrapper is stateless between calls and safe for concurrent
// use.
type EnvBootstrapper struct {
	layout    Layout
	proc      process.Manager
	lookupEnv func(string) (string, bool)
	logger    *logging.Logger
}

// NewEnvBootstrapper creates an EnvBootstrapper reading the host
// environment through os.LookupEnv.
func NewEnvBootstrapper(layout Layout, proc process.Manager, logger *logging.Logger) *EnvBootstrapper {
	return &EnvBootstrapper{
		layout:    layout,
		proc:      proc,
		lookupEnv: os.LookupEnv,
		logger:    logger,
	}
}

// Bootstrap runs the full sequence and returns the assembled record.
func (b *EnvBootstrapper) Bootstrap(ctx context.Context) (*util.EnvVars, error) {
	if err := b.ensureEnvFile(); err != nil {
		return nil, err
	}

	record, err := b.loadEnvFile()
	if err != nil {
		return nil, err
	}

	b.applyHostOverrides(record)

	if err := b.resolveVersion(ctx, record); err != nil {
		return nil, err
	}

	for _, key := range autoscaleKeys {
		applied, err := record.SetDefault(key, autoscaleDefault)
		if err != nil {
			return nil, err
		}
		if applied {
			b.logger.Debug("injected autoscale default", "key", key, "value", autoscaleDefault)
		}
	}

	b.logger.Debug("environment record assembled",
		"vars", record.Len(),
		"values", record.RedactedSlice(),
	)
	return record, nil
}

// ensureEnvFile copies the sample template to the env file when the
// env file does not exist yet. The copy is byte-for-byte.
func (b *EnvBootstrapper) ensureEnvFile() error {
	envPath := b.layout.EnvFile()
	if _, err := os.Stat(envPath); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("checking env file %s: %w", envPath, err)
	}

	samplePath := b.layout.SampleEnvFile()
	src, err := os.Open(samplePath)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("env file %s missing and no template at %s", envPath, samplePath)
		}
		return fmt.Errorf("opening env template %s: %w", samplePath, err)
	}
	defer src.Close()

	dst, err := os.OpenFile(envPath, os.O_CREATE|os.O_WRONLY|os.O_EXCL, 0644)
	if err != nil {
		return fmt.Errorf("creating env file %s: %w", envPath, err)
	}

	if _, err := io.Copy(dst, src); err != nil {
		dst.Close()
		os.Remove(envPath)
		return fmt.Errorf("copying env template: %w", err)
	}
	if err := dst.Close(); err != nil {
		return fmt.Errorf("closing env file %s: %w", envPath, err)
	}

	b.logger.Info("created env file from template", "path", envPath, "template", samplePath)
	return nil
}

// loadEnvFile parses the env file strictly. Comment and blank lines are
// skipped; everything else must be a valid KEY=VALUE definition.
func (b *EnvBootstrapper) loadEnvFile() (*util.EnvVars, error) {
	path := b.layout.EnvFile()
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening env file %s: %w", path, err)
	}
	defer f.Close()

	record := util.EmptyEnvVars()
	scanner := bufio.NewScanner(f)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		ev, err := util.ParseLine(line)
		if err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
		if err := record.Add(ev.Key, ev.Value, ev.Sensitive); err != nil {
			return nil, fmt.Errorf("%s:%d: %w", path, lineNo, err)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("reading env file %s: %w", path, err)
	}
	return record, nil
}

// applyHostOverrides overlays host environment values onto the record.
// Only keys already present in the record plus VERSION are consulted;
// the host environment never leaks unrelated variables into compose.
func (b *EnvBootstrapper) applyHostOverrides(record *util.EnvVars) {
	keys := append([]string{versionKey}, autoscaleKeys...)
	for k := range record.ToMap() {
		keys = append(keys, k)
	}
	for _, key := range keys {
		value, ok := b.lookupEnv(key)
		if !ok {
			continue
		}
		// Add appends, and the record resolves duplicates last-wins.
		if err := record.Add(key, value, util.IsSensitiveKey(key)); err == nil {
			b.logger.Debug("host environment override", "key", key)
		}
	}
}

// resolveVersion fills VERSION from the newest release tag when neither
// the host environment nor the env file provided one.
func (b *EnvBootstrapper) resolveVersion(ctx context.Context, record *util.EnvVars) error {
	if record.Get(versionKey) != "" {
		return nil
	}

	version := b.newestReleaseTag(ctx)
	if err := record.Add(versionKey, version, false); err != nil {
		return err
	}
	b.logger.Info("resolved stack version", "version", version)
	return nil
}

// newestReleaseTag returns the semver-newest v-prefixed git tag, or the
// fallback when git fails or no tag parses as semver.
func (b *EnvBootstrapper) newestReleaseTag(ctx context.Context) string {
	stdout, stderr, exitCode, err := b.proc.RunInDir(ctx, b.layout.Root, nil,
		"git", "tag", "--list", "v*")
	if err != nil || exitCode != 0 {
		b.logger.Warn("git tag listing failed, using fallback version",
			"fallback", versionFallback,
			"exit_code", exitCode,
			"stderr", strings.TrimSpace(stderr),
		)
		return versionFallback
	}

	newest := ""
	for _, line := range strings.Split(stdout, "\n") {
		tag := strings.TrimSpace(line)
		if !semver.IsValid(tag) {
			continue
		}
		if newest == "" || semver.Compare(tag, newest) > 0 {
			newest = tag
		}
	}
	if newest == "" {
		return versionFallback
	}
	return newest
}
