// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/unstract/platformctl/pkg/logging"
	"github.com/unstract/platformctl/pkg/ux"
)

// logger is shared by the command implementations. Reconfigured from
// the --log-level flag before any command body runs.
var logger = logging.Default()

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Unknown verbs get the usage text, not a lifecycle error report.
		if strings.HasPrefix(err.Error(), "unknown command") {
			fmt.Fprintln(os.Stderr, err)
			fmt.Fprint(os.Stderr, rootCmd.UsageString())
			os.Exit(1)
		}
		reportError(err)
		os.Exit(1)
	}
}

// newLogger builds the logger from the parsed global flags.
func newLogger() *logging.Logger {
	return logging.New(logging.Config{
		Level:   logging.ParseLevel(logLevel),
		Service: "platformctl",
	})
}

// reportError prints a failure in operator terms, pulling step and
// stderr context out of the error chain where available.
func reportError(err error) {
	var setupErr *SetupError
	if errors.As(err, &setupErr) {
		ux.Error(fmt.Sprintf("Setup step %q failed: %v", setupErr.Step, setupErr.Err))
	} else {
		ux.Error(err.Error())
	}

	if errors.Is(err, ErrRetriesExhausted) {
		ux.Muted("All retry attempts were used. Check connectivity and re-run.")
	}
	if stderr := ExtractStderr(err); stderr != "" {
		fmt.Fprintf(os.Stderr, "\nCommand output:\n%s\n", stderr)
	}
}
