// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/spf13/cobra"

	"github.com/unstract/platformctl/pkg/ux"
)

// --- Global Command Variables ---
var (
	rootDir     string
	logLevel    string
	noColor     bool
	forceBuild  bool
	cleanupAll  bool
	autoApprove bool

	rootCmd = &cobra.Command{
		Use:   "platformctl",
		Short: "Manage the local platform application stack",
		Long: `platformctl deploys and manages the complete document-processing
stack (database, queues, object storage, workers, and frontend) on a
single machine using Docker Compose.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if noColor {
				ux.SetPlain(true)
			}
		},
	}

	startCmd = &cobra.Command{
		Use:   "start",
		Short: "Bootstrap the host and start all platform services",
		Args:  cobra.NoArgs,
		RunE:  runStart, // Defined in cmd_start.go
	}

	stopCmd = &cobra.Command{
		Use:   "stop",
		Short: "Stop all platform services and clean up containers, volumes, and build artifacts",
		Args:  cobra.NoArgs,
		RunE:  runStop, // Defined in cmd_stop.go
	}

	restartFrontendCmd = &cobra.Command{
		Use:   "restart-frontend",
		Short: "Rebuild and restart the frontend services from a clean dependency install",
		Args:  cobra.NoArgs,
		RunE:  runRestartFrontend, // Defined in cmd_restart.go
	}

	restartBackendCmd = &cobra.Command{
		Use:   "restart-backend",
		Short: "Rebuild and restart the backend and worker services from a clean dependency install",
		Args:  cobra.NoArgs,
		RunE:  runRestartBackend, // Defined in cmd_restart.go
	}
)

// init runs when the Go program starts
func init() {
	rootCmd.PersistentFlags().StringVar(&rootDir, "root", ".",
		"Path to the platform checkout root")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info",
		"Log verbosity: debug, info, warn, or error")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false,
		"Disable colored terminal output")

	rootCmd.AddCommand(startCmd)
	startCmd.Flags().BoolVar(&forceBuild, "build", false,
		"Force rebuild of service images during compose up")

	rootCmd.AddCommand(stopCmd)
	stopCmd.Flags().BoolVar(&cleanupAll, "all", false,
		"DANGER: wipe all unused containers, images, and volumes on the host, not just this project's")
	stopCmd.Flags().BoolVar(&autoApprove, "yes", false,
		"Skip the confirmation prompt for --all")

	rootCmd.AddCommand(restartFrontendCmd)
	rootCmd.AddCommand(restartBackendCmd)
}
