// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "path/filepath"

// Layout resolves well-known paths inside a platform checkout.
//
// All lifecycle commands operate on a single source tree: compose
// manifests under docker/, the frontend and backend source trees as
// siblings. Root is the checkout root; every other path derives
// from it.
type Layout struct {
	// Root is the checkout root directory.
	Root string
}

// DockerDir returns the directory holding compose manifests.
func (l Layout) DockerDir() string {
	return filepath.Join(l.Root, "docker")
}

// ComposeFile returns the base compose manifest path.
func (l Layout) ComposeFile() string {
	return filepath.Join(l.DockerDir(), "docker-compose.yaml")
}

// OverrideFile returns the generated architecture override path.
func (l Layout) OverrideFile() string {
	return filepath.Join(l.DockerDir(), "docker-compose.override.yaml")
}

// EnvFile returns the compose env file path.
func (l Layout) EnvFile() string {
	return filepath.Join(l.DockerDir(), ".env")
}

// SampleEnvFile returns the checked-in env template path.
func (l Layout) SampleEnvFile() string {
	return filepath.Join(l.DockerDir(), "sample.env")
}

// FrontendDir returns the frontend source tree.
func (l Layout) FrontendDir() string {
	return filepath.Join(l.Root, "frontend")
}

// BackendDir returns the backend source tree.
func (l Layout) BackendDir() string {
	return filepath.Join(l.Root, "backend")
}

// DataDirs returns the host directories bind-mounted into the stack.
// Created idempotently before the first compose up.
func (l Layout) DataDirs() []string {
	return []string{
		filepath.Join(l.DockerDir(), "workflow_data"),
		filepath.Join(l.DockerDir(), "prompt_studio_data"),
		filepath.Join(l.DockerDir(), "tool_registry_config"),
	}
}

// FrontendArtifacts returns generated frontend paths purged on stop and
// restart-frontend.
func (l Layout) FrontendArtifacts() []string {
	return []string{
		filepath.Join(l.FrontendDir(), "node_modules"),
		filepath.Join(l.FrontendDir(), "build"),
		filepath.Join(l.FrontendDir(), ".cache"),
	}
}

// BackendArtifacts returns generated backend paths purged on stop and
// restart-backend.
func (l Layout) BackendArtifacts() []string {
	return []string{
		filepath.Join(l.BackendDir(), ".venv"),
		filepath.Join(l.BackendDir(), "__pycache__"),
		filepath.Join(l.BackendDir(), ".pdm-build"),
		filepath.Join(l.BackendDir(), ".pdm-python"),
	}
}
