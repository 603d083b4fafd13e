// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"path/filepath"

	"github.com/spf13/cobra"
)

// newStackManager resolves the checkout root and wires a StackManager
// for a command invocation.
func newStackManager() (*StackManager, error) {
	logger = newLogger()

	root, err := filepath.Abs(rootDir)
	if err != nil {
		return nil, err
	}
	return NewStackManager(root, logger)
}

func runStart(cmd *cobra.Command, args []string) error {
	manager, err := newStackManager()
	if err != nil {
		return err
	}
	return manager.Start(cmd.Context(), StartOptions{Build: forceBuild})
}
