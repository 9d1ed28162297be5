/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package ghretry retries GitHub API calls that failed with transient
// classes (rate limits, secondary limits, timeouts) using bounded
// exponential backoff with jitter. Which errors count as transient is the
// caller's decision; everything else is returned on the first failure.
package ghretry

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/chainguard-dev/clog"
)

// Config bounds the backoff loop.
type Config struct {
	// MaxRetries is the number of retry attempts after the initial call.
	// Zero disables retrying.
	MaxRetries int
	// BaseBackoff is the delay before the first retry.
	BaseBackoff time.Duration
	// MaxBackoff caps the exponential growth.
	MaxBackoff time.Duration
	// MaxJitter is the upper bound of the random delay added per retry.
	MaxJitter time.Duration
}

// Validate checks the configuration values.
func (c Config) Validate() error {
	if c.MaxRetries < 0 {
		return errors.New("max retries cannot be negative")
	}
	if c.BaseBackoff < 0 || c.MaxBackoff < 0 || c.MaxJitter < 0 {
		return errors.New("backoff durations cannot be negative")
	}
	return nil
}

// Default returns a configuration tuned for GitHub's secondary rate limits,
// which typically clear within a minute.
func Default() Config {
	return Config{
		MaxRetries:  4,
		BaseBackoff: 2 * time.Second,
		MaxBackoff:  60 * time.Second,
		MaxJitter:   750 * time.Millisecond,
	}
}

// Do runs fn, retrying while isRetryable classifies the failure as
// transient. The context cancels waits between attempts.
func Do[T any](ctx context.Context, cfg Config, operation string, isRetryable func(error) bool, fn func() (T, error)) (T, error) {
	var result T
	var lastErr error

	for attempt := 0; attempt <= cfg.MaxRetries; attempt++ {
		result, lastErr = fn()
		if lastErr == nil {
			return result, nil
		}
		if !isRetryable(lastErr) {
			return result, lastErr
		}
		if attempt >= cfg.MaxRetries {
			break
		}

		backoff := min(cfg.BaseBackoff<<attempt, cfg.MaxBackoff)
		if cfg.MaxJitter > 0 {
			backoff += rand.N(cfg.MaxJitter)
		}

		clog.FromContext(ctx).With("operation", operation).
			With("attempt", attempt+1).
			With("max_retries", cfg.MaxRetries).
			With("backoff", backoff).
			With("error", lastErr.Error()).
			Warn("Transient GitHub error, retrying")

		select {
		case <-ctx.Done():
			return result, ctx.Err()
		case <-time.After(backoff):
		}
	}

	return result, fmt.Errorf("%s failed after %d retries: %w", operation, cfg.MaxRetries, lastErr)
}
