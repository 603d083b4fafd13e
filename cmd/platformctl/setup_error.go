// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import "fmt"

// SetupError indicates that a bootstrap or configuration step failed.
//
// # Description
//
// Lifecycle commands run a sequence of named steps (proxy passthrough,
// env bootstrap, override generation, image pulls, compose up). When a
// step fails the whole command aborts; SetupError carries which step
// broke so the operator message can point at it directly.
//
// # Example
//
//	var se *SetupError
//	if errors.As(err, &se) {
//	    ux.Error(fmt.Sprintf("setup step %q failed", se.Step))
//	}
type SetupError struct {
	// Step is the short machine-readable step name, e.g. "env_bootstrap".
	Step string

	// Err is the underlying failure.
	Err error
}

// NewSetupError wraps err as a failure of the named step.
func NewSetupError(step string, err error) *SetupError {
	return &SetupError{Step: step, Err: err}
}

// Error implements the error interface.
func (e *SetupError) Error() string {
	return fmt.Sprintf("setup step %q failed: %v", e.Step, e.Err)
}

// Unwrap returns the underlying error for errors.Is/As chains.
func (e *SetupError) Unwrap() error {
	return e.Err
}
