// Copyright (C) 2026 Unstract
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/unstract/platformctl/pkg/logging"
)

// ErrRetriesExhausted is returned when an operation fails on every attempt.
// Use errors.Is to detect it; the last attempt error is wrapped.
var ErrRetriesExhausted = errors.New("retries exhausted")

// =============================================================================
// Sleeper
// =============================================================================

// Sleeper abstracts delay between retry attempts.
//
// The default implementation really sleeps; tests substitute a recorder
// so retry timing is observable without wall-clock waits.
type Sleeper interface {
	// Sleep blocks for d or until ctx is cancelled.
	Sleep(ctx context.Context, d time.Duration) error
}

// DefaultSleeper sleeps with time.Timer, honoring context cancellation.
type DefaultSleeper struct{}

// Sleep implements Sleeper.
func (DefaultSleeper) Sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// RecordingSleeper records requested delays and returns immediately.
// Test double.
type RecordingSleeper struct {
	// Delays holds every duration passed to Sleep, in order.
	Delays []time.Duration
}

// Sleep implements Sleeper.
func (s *RecordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.Delays = append(s.Delays, d)
	return nil
}

// =============================================================================
// Retry Policy
// =============================================================================

// RetryPolicy bounds repeated execution of a failing operation.
type RetryPolicy struct {
	// MaxAttempts is the total number of tries, including the first.
	MaxAttempts int

	// InitialDelay is the sleep after the first failure.
	InitialDelay time.Duration

	// Multiplier scales the delay after each failed attempt.
	Multiplier float64
}

// DefaultRetryPolicy returns the policy used for external tool
// invocations: 3 attempts with 5s then 10s between them.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts:  3,
		InitialDelay: 5 * time.Second,
		Multiplier:   2.0,
	}
}

// =============================================================================
// Retrier
// =============================================================================

// Retrier runs operations under a bounded exponential-backoff policy.
//
// # Description
//
// Every external-tool invocation that is declared retryable (image
// pulls, compose up) runs through Do. Failures are logged at Warn with
// the attempt count; exhaustion surfaces ErrRetriesExhausted wrapping
// the last attempt error. There is no partial-success signaling.
//
// # Example
//
//	retrier := NewRetrier(DefaultRetryPolicy(), DefaultSleeper{}, logger)
//	err := retrier.Do(ctx, "docker pull redis", func(ctx context.Context) error {
//	    return puller.pullOne(ctx, "redis:7.2.3")
//	})
//
// # Thread Safety
//
// Retrier is stateless apart from its injected dependencies and safe
// for concurrent use when the Sleeper is.
type Retrier struct {
	policy  RetryPolicy
	sleeper Sleeper
	logger  *logging.Logger
}

// NewRetrier creates a Retrier. A nil sleeper defaults to
// DefaultSleeper; a nil logger defaults to logging.Default().
func NewRetrier(policy RetryPolicy, sleeper Sleeper, logger *logging.Logger) *Retrier {
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.Multiplier <= 0 {
		policy.Multiplier = 2.0
	}
	if sleeper == nil {
		sleeper = DefaultSleeper{}
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Retrier{policy: policy, sleeper: sleeper, logger: logger}
}

// Do runs op until it succeeds or the policy is exhausted.
//
// # Inputs
//
//   - ctx: Context for cancellation; checked before each attempt and
//     honored while sleeping
//   - desc: Human-readable operation name for logs and the final error
//   - op: The operation; called once per attempt
//
// # Outputs
//
//   - error: nil on success; ctx.Err() on cancellation; otherwise an
//     error matching errors.Is(err, ErrRetriesExhausted) that wraps the
//     last attempt failure
func (r *Retrier) Do(ctx context.Context, desc string, op func(ctx context.Context) error) error {
	var lastErr error
	delay := r.policy.InitialDelay

	for attempt := 1; attempt <= r.policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = op(ctx)
		if lastErr == nil {
			if attempt > 1 {
				r.logger.Info("operation succeeded after retry",
					"operation", desc,
					"attempt", attempt,
				)
			}
			return nil
		}

		if attempt == r.policy.MaxAttempts {
			break
		}

		r.logger.Warn("operation failed, retrying",
			"operation", desc,
			"attempt", attempt,
			"max_attempts", r.policy.MaxAttempts,
			"delay", delay.String(),
			"error", lastErr.Error(),
		)

		if err := r.sleeper.Sleep(ctx, delay); err != nil {
			return err
		}
		delay = time.Duration(float64(delay) * r.policy.Multiplier)
	}

	r.logger.Error("operation failed on all attempts",
		"operation", desc,
		"attempts", r.policy.MaxAttempts,
		"error", lastErr.Error(),
	)
	return fmt.Errorf("%w: %s after %d attempts: %w",
		ErrRetriesExhausted, desc, r.policy.MaxAttempts, lastErr)
}
