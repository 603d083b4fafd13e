// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package util

import (
	"fmt"
	"regexp"
	"strings"
)

// =============================================================================
// Package-level Variables
// =============================================================================

// envVarKeyPattern validates environment variable key names.
// Keys must:
//   - Start with a letter or underscore
//   - Contain only alphanumeric characters and underscores
//   - Not be empty
//
// This follows POSIX naming conventions and prevents shell metacharacter
// injection attacks.
var envVarKeyPattern = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// ErrInvalidEnvVarKey is returned when an environment variable key is invalid.
var ErrInvalidEnvVarKey = fmt.Errorf("invalid environment variable key")

// =============================================================================
// EnvVar Type
// =============================================================================

// EnvVar represents a single environment variable.
//
// # Description
//
// A typed representation of an environment variable with validation
// and sensitivity marking for secure logging.
//
// # Example
//
//	ev := EnvVar{Key: "ENCRYPTION_KEY", Value: "secret123", Sensitive: true}
//	fmt.Println(ev.Redacted()) // ENCRYPTION_KEY=[REDACTED]
//
// # Limitations
//
//   - Value is not validated (can be empty or contain any characters)
type EnvVar struct {
	// Key is the environment variable name.
	// Must match pattern: ^[a-zA-Z_][a-zA-Z0-9_]*$
	Key string

	// Value is the environment variable value.
	// May be empty string (valid in POSIX).
	Value string

	// Sensitive indicates this value should be redacted in logs.
	Sensitive bool
}

// String returns the KEY=VALUE format.
func (e EnvVar) String() string {
	return fmt.Sprintf("%s=%s", e.Key, e.Value)
}

// Redacted returns KEY=[REDACTED] for sensitive vars, otherwise String().
func (e EnvVar) Redacted() string {
	if e.Sensitive {
		return fmt.Sprintf("%s=[REDACTED]", e.Key)
	}
	return e.String()
}

// Validate checks if the key is valid.
func (e EnvVar) Validate() error {
	if !envVarKeyPattern.MatchString(e.Key) {
		return fmt.Errorf("%w: %q must match pattern [a-zA-Z_][a-zA-Z0-9_]*", ErrInvalidEnvVarKey, e.Key)
	}
	return nil
}

// =============================================================================
// EnvVars Collection
// =============================================================================

// EnvVars is a validated, ordered collection of environment variables.
//
// # Description
//
// Provides a type-safe container for environment variables with validation,
// merging, and redaction. Used as the explicit configuration record threaded
// through the lifecycle instead of mutating the ambient process environment.
// Insertion order is preserved so generated env files stay diffable.
//
// # Thread Safety
//
// EnvVars is NOT thread-safe. Do not modify concurrently.
type EnvVars struct {
	vars []EnvVar
}

// NewEnvVars creates a validated EnvVars collection.
//
// Returns an error if any key is invalid. Duplicate keys are allowed
// (the last value wins in Get and ToMap).
func NewEnvVars(vars ...EnvVar) (*EnvVars, error) {
	for _, v := range vars {
		if err := v.Validate(); err != nil {
			return nil, err
		}
	}
	return &EnvVars{vars: vars}, nil
}

// EmptyEnvVars returns an empty EnvVars.
func EmptyEnvVars() *EnvVars {
	return &EnvVars{vars: []EnvVar{}}
}

// Add appends a validated environment variable.
func (e *EnvVars) Add(key, value string, sensitive bool) error {
	ev := EnvVar{Key: key, Value: value, Sensitive: sensitive}
	if err := ev.Validate(); err != nil {
		return err
	}
	e.vars = append(e.vars, ev)
	return nil
}

// SetDefault adds key=value only when the key is not already present.
//
// # Description
//
// Implements the "inject defaults only if absent" bootstrap rule: an
// operator-provided value (host env or env file) always wins over a
// hardcoded default.
//
// # Outputs
//
//   - bool: True if the default was applied
//   - error: Non-nil if the key is invalid
func (e *EnvVars) SetDefault(key, value string) (bool, error) {
	if e.Has(key) {
		return false, nil
	}
	if err := e.Add(key, value, false); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the value for a key, or empty string if not found.
// Returns the last value for duplicated keys.
func (e *EnvVars) Get(key string) string {
	if e == nil {
		return ""
	}
	for i := len(e.vars) - 1; i >= 0; i-- {
		if e.vars[i].Key == key {
			return e.vars[i].Value
		}
	}
	return ""
}

// Has returns true if the key exists.
func (e *EnvVars) Has(key string) bool {
	if e == nil {
		return false
	}
	for _, v := range e.vars {
		if v.Key == key {
			return true
		}
	}
	return false
}

// Len returns the number of environment variables.
func (e *EnvVars) Len() int {
	if e == nil {
		return 0
	}
	return len(e.vars)
}

// ToSlice converts to []string format for exec.Cmd.Env.
func (e *EnvVars) ToSlice() []string {
	if e == nil {
		return nil
	}
	result := make([]string, len(e.vars))
	for i, v := range e.vars {
		result[i] = v.String()
	}
	return result
}

// ToMap converts to map[string]string. Last value wins for duplicates.
func (e *EnvVars) ToMap() map[string]string {
	if e == nil {
		return nil
	}
	result := make(map[string]string, len(e.vars))
	for _, v := range e.vars {
		result[v.Key] = v.Value
	}
	return result
}

// RedactedSlice returns []string with sensitive values masked. Safe for logs.
func (e *EnvVars) RedactedSlice() []string {
	if e == nil {
		return nil
	}
	result := make([]string, len(e.vars))
	for i, v := range e.vars {
		result[i] = v.Redacted()
	}
	return result
}

// Merge combines two EnvVars, with other taking precedence.
//
// Relative order of first occurrence is preserved; keys present in both
// collections take the value from other.
func (e *EnvVars) Merge(other *EnvVars) *EnvVars {
	if other == nil {
		return e.Clone()
	}
	if e == nil {
		return other.Clone()
	}

	merged := &EnvVars{vars: make([]EnvVar, 0, len(e.vars)+len(other.vars))}
	seen := make(map[string]int)
	for _, v := range e.vars {
		if idx, ok := seen[v.Key]; ok {
			merged.vars[idx] = v
			continue
		}
		seen[v.Key] = len(merged.vars)
		merged.vars = append(merged.vars, v)
	}
	for _, v := range other.vars {
		if idx, ok := seen[v.Key]; ok {
			merged.vars[idx] = v
			continue
		}
		seen[v.Key] = len(merged.vars)
		merged.vars = append(merged.vars, v)
	}
	return merged
}

// Clone returns a deep copy.
func (e *EnvVars) Clone() *EnvVars {
	if e == nil {
		return EmptyEnvVars()
	}
	result := &EnvVars{vars: make([]EnvVar, len(e.vars))}
	copy(result.vars, e.vars)
	return result
}

// ParseLine parses a single KEY=VALUE env file line.
//
// # Description
//
// Splits on the first '=', validates the key, and strips matched single or
// double quotes around the value. Comment ('#'-prefixed) and blank lines are
// the caller's responsibility; ParseLine treats every input as a definition.
//
// # Outputs
//
//   - EnvVar: Parsed variable (sensitivity inferred from the key name)
//   - error: Non-nil when the line has no '=' or the key is invalid
func ParseLine(line string) (EnvVar, error) {
	key, value, ok := strings.Cut(line, "=")
	if !ok {
		return EnvVar{}, fmt.Errorf("%w: line %q has no '='", ErrInvalidEnvVarKey, line)
	}
	key = strings.TrimSpace(key)
	key = strings.TrimPrefix(key, "export ")
	key = strings.TrimSpace(key)

	value = strings.TrimSpace(value)
	if len(value) >= 2 {
		if (value[0] == '"' && value[len(value)-1] == '"') ||
			(value[0] == '\'' && value[len(value)-1] == '\'') {
			value = value[1 : len(value)-1]
		}
	}

	ev := EnvVar{Key: key, Value: value, Sensitive: IsSensitiveKey(key)}
	if err := ev.Validate(); err != nil {
		return EnvVar{}, err
	}
	return ev, nil
}

// IsSensitiveKey detects common sensitive key patterns.
func IsSensitiveKey(key string) bool {
	upper := strings.ToUpper(key)
	return strings.Contains(upper, "TOKEN") ||
		strings.Contains(upper, "SECRET") ||
		strings.Contains(upper, "KEY") ||
		strings.Contains(upper, "PASSWORD") ||
		strings.Contains(upper, "CREDENTIAL") ||
		strings.Contains(upper, "AUTH")
}
