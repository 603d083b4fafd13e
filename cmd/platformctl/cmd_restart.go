// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"
)

func runRestartFrontend(cmd *cobra.Command, args []string) error {
	manager, err := newStackManager()
	if err != nil {
		return err
	}
	return manager.RestartFrontend(cmd.Context())
}

func runRestartBackend(cmd *cobra.Command, args []string) error {
	manager, err := newStackManager()
	if err != nil {
		return err
	}
	return manager.RestartBackend(cmd.Context())
}
