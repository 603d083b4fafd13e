// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"fmt"
	"os"
	"runtime"

	"gopkg.in/yaml.v3"

	"github.com/unstract/platformctl/pkg/logging"
)

// overridePlatform is the platform every service is pinned to on hosts
// whose native architecture has no published images.
const overridePlatform = "linux/amd64"

// overrideHeader marks the file as generated so operators don't hand-edit
// a file the next start will rewrite.
const overrideHeader = "# Generated by platformctl. Regenerated on every start; do not edit.\n"

// overrideDoc is the document shape of the architecture override file.
type overrideDoc struct {
	Services map[string]overrideService `yaml:"services"`
}

type overrideService struct {
	Platform string `yaml:"platform"`
}

// OverrideWriter keeps the compose architecture override in sync with
// the host.
//
// # Description
//
// On arm64 hosts (Apple Silicon), the override file pins every stack
// service to linux/amd64 so images without arm64 builds run under
// emulation. On any other architecture a stale override is deleted.
// The file is always fully rewritten, never patched, so drift between
// the service list and an old override cannot accumulate.
//
// Architecture detection defaults to runtime.GOARCH and is injectable
// for tests.
type OverrideWriter struct {
	layout   Layout
	services []string
	archFunc func() string
	logger   *logging.Logger
}

// NewOverrideWriter creates an OverrideWriter for the stack's fixed
// service list.
func NewOverrideWriter(layout Layout, logger *logging.Logger) *OverrideWriter {
	return &OverrideWriter{
		layout:   layout,
		services: platformServices,
		archFunc: func() string { return runtime.GOARCH },
		logger:   logger,
	}
}

// Sync writes or removes the override file to match the host
// architecture. Idempotent.
func (w *OverrideWriter) Sync() error {
	arch := w.archFunc()
	path := w.layout.OverrideFile()

	if arch != "arm64" {
		if err := os.Remove(path); err != nil {
			if os.IsNotExist(err) {
				return nil
			}
			return fmt.Errorf("removing stale override %s: %w", path, err)
		}
		w.logger.Info("removed stale platform override", "path", path, "arch", arch)
		return nil
	}

	doc := overrideDoc{Services: make(map[string]overrideService, len(w.services))}
	for _, svc := range w.services {
		doc.Services[svc] = overrideService{Platform: overridePlatform}
	}

	body, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("rendering platform override: %w", err)
	}

	if err := os.WriteFile(path, append([]byte(overrideHeader), body...), 0644); err != nil {
		return fmt.Errorf("writing platform override %s: %w", path, err)
	}

	w.logger.Info("generated platform override",
		"path", path,
		"arch", arch,
		"platform", overridePlatform,
		"services", len(w.services),
	)
	return nil
}

// NeedsEmulation reports whether the host architecture requires the
// amd64 platform pin. Also consulted by the image puller.
func (w *OverrideWriter) NeedsEmulation() bool {
	return w.archFunc() == "arm64"
}
