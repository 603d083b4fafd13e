// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
)

// =============================================================================
// UserPrompter Interface
// =============================================================================

// UserPrompter abstracts interactive confirmation prompts.
//
// # Description
//
// Destructive operations (volume wipes, host-wide cleanup) ask for
// confirmation before proceeding. The interface allows prompts to be
// auto-answered in non-interactive runs and scripted in tests.
//
// # Example
//
//	prompter := NewInteractivePrompter()
//	ok, err := prompter.Confirm(ctx, "Remove all volumes?")
//	if err != nil || !ok {
//	    return nil
//	}
type UserPrompter interface {
	// Confirm asks a yes/no question and returns the answer.
	//
	// # Inputs
	//
	//   - ctx: Context for cancellation
	//   - prompt: Question text, displayed with a [y/N] hint
	//
	// # Outputs
	//
	//   - bool: True only for an explicit yes (y/yes, case-insensitive)
	//   - error: Non-nil on read failure or context cancellation
	Confirm(ctx context.Context, prompt string) (bool, error)
}

// =============================================================================
// InteractivePrompter
// =============================================================================

// InteractivePrompter reads confirmations from a terminal.
//
// EOF and any answer other than an explicit yes are treated as "no".
// The default answer is always the safe one.
type InteractivePrompter struct {
	reader io.Reader
	writer io.Writer
}

// NewInteractivePrompter creates a prompter bound to stdin/stderr.
func NewInteractivePrompter() *InteractivePrompter {
	return NewInteractivePrompterWithIO(os.Stdin, os.Stderr)
}

// NewInteractivePrompterWithIO creates a prompter with custom streams.
// Used by tests to script input and capture output.
func NewInteractivePrompterWithIO(reader io.Reader, writer io.Writer) *InteractivePrompter {
	return &InteractivePrompter{reader: reader, writer: writer}
}

// Confirm implements UserPrompter.
func (p *InteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}

	fmt.Fprintf(p.writer, "%s [y/N]: ", prompt)

	scanner := bufio.NewScanner(p.reader)
	if !scanner.Scan() {
		if err := scanner.Err(); err != nil {
			return false, fmt.Errorf("reading confirmation: %w", err)
		}
		// EOF means no answer, which means no.
		return false, nil
	}

	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes", nil
}

// =============================================================================
// NonInteractivePrompter
// =============================================================================

// NonInteractivePrompter answers every prompt without reading input.
//
// Used for --yes (auto-approve) and for runs where no TTY is attached,
// where the answer is always no.
type NonInteractivePrompter struct {
	// Answer is returned from every Confirm call.
	Answer bool
}

// NewNonInteractivePrompter creates a prompter with a fixed answer.
func NewNonInteractivePrompter(answer bool) *NonInteractivePrompter {
	return &NonInteractivePrompter{Answer: answer}
}

// Confirm implements UserPrompter.
func (p *NonInteractivePrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	return p.Answer, nil
}

// =============================================================================
// MockPrompter
// =============================================================================

// MockPrompter is a test double recording every prompt it receives.
type MockPrompter struct {
	// ConfirmFunc overrides Confirm behavior. Defaults to answering yes.
	ConfirmFunc func(ctx context.Context, prompt string) (bool, error)

	// Prompts records every prompt text passed to Confirm.
	Prompts []string
}

// Confirm implements UserPrompter.
func (m *MockPrompter) Confirm(ctx context.Context, prompt string) (bool, error) {
	m.Prompts = append(m.Prompts, prompt)
	if m.ConfirmFunc != nil {
		return m.ConfirmFunc(ctx, prompt)
	}
	return true, nil
}

// Reset clears recorded prompts.
func (m *MockPrompter) Reset() {
	m.Prompts = nil
}

// =============================================================================
// Compile-Time Interface Checks
// =============================================================================

var (
	_ UserPrompter = (*InteractivePrompter)(nil)
	_ UserPrompter = (*NonInteractivePrompter)(nil)
	_ UserPrompter = (*MockPrompter)(nil)
)
