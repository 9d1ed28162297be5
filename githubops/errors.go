/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/go-github/v84/github"
)

// AuthError means the credential is invalid, expired, revoked, or lacks the
// scope for the attempted operation. It is fatal for a run: the orchestrator
// aborts instead of feeding it back to the planner.
type AuthError struct {
	Reason string
}

func (e *AuthError) Error() string {
	return "authentication failed: " + e.Reason
}

// NotFoundError means the repository, path, or issue does not exist or is
// not visible to the credential.
type NotFoundError struct {
	Resource string
}

func (e *NotFoundError) Error() string {
	return e.Resource + " not found"
}

// ConflictError means a mutation carried a content SHA that no longer
// matches the remote file. The recovery path is re-reading the file and
// retrying with the fresh SHA.
type ConflictError struct {
	Path        string
	ExpectedSHA string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("conflict on %s: expected SHA %s no longer matches remote", e.Path, e.ExpectedSHA)
}

// RateLimitError marks primary or secondary rate limiting. The operation
// layer retries these with backoff before surfacing them.
type RateLimitError struct {
	Cause error
}

func (e *RateLimitError) Error() string {
	return "rate limited: " + e.Cause.Error()
}

func (e *RateLimitError) Unwrap() error {
	return e.Cause
}

// IsAuth reports whether err carries an AuthError anywhere in its chain.
func IsAuth(err error) bool {
	var ae *AuthError
	return errors.As(err, &ae)
}

// IsNotFound reports whether err carries a NotFoundError.
func IsNotFound(err error) bool {
	var nfe *NotFoundError
	return errors.As(err, &nfe)
}

// IsRateLimit reports whether err carries a RateLimitError. The operation
// layer retries these internally, so one escaping Operations means the
// backoff budget is already spent.
func IsRateLimit(err error) bool {
	var rle *RateLimitError
	return errors.As(err, &rle)
}

// IsConflict reports whether err carries a ConflictError.
func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}

// isRetryable classifies transient failures: rate limits and timeouts.
// Everything else surfaces on the first failure.
func isRetryable(err error) bool {
	if IsRateLimit(err) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// Classify maps go-github errors onto the operation taxonomy. The resource
// string names what was being accessed, for NotFoundError messages.
func Classify(err error, resource string) error {
	if err == nil {
		return nil
	}

	var rateErr *github.RateLimitError
	if errors.As(err, &rateErr) {
		return &RateLimitError{Cause: err}
	}
	var abuseErr *github.AbuseRateLimitError
	if errors.As(err, &abuseErr) {
		return &RateLimitError{Cause: err}
	}

	var ghErr *github.ErrorResponse
	if errors.As(err, &ghErr) && ghErr.Response != nil {
		switch ghErr.Response.StatusCode {
		case http.StatusUnauthorized:
			return &AuthError{Reason: "token rejected by GitHub"}
		case http.StatusForbidden:
			// Secondary limits without the dedicated error type still say so.
			if strings.Contains(strings.ToLower(ghErr.Message), "rate limit") {
				return &RateLimitError{Cause: err}
			}
			return &AuthError{Reason: "token lacks permission for " + resource}
		case http.StatusNotFound:
			return &NotFoundError{Resource: resource}
		case http.StatusConflict:
			return &ConflictError{Path: resource}
		case http.StatusUnprocessableEntity:
			if strings.Contains(strings.ToLower(ghErr.Message), "sha") {
				return &ConflictError{Path: resource}
			}
		}
	}

	return err
}
