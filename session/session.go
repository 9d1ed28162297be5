/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package session owns the per-session credential context: a GitHub client
// scoped to one caller-supplied token, the selected target repository, and
// the single-active-run gate. The token lives only in process memory for
// the lifetime of the session; Disconnect discards it and every later
// client acquisition fails with AuthError.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"
	"golang.org/x/oauth2"

	"github.com/danish296/KickStart-Agent-for-GitHub/githubops"
)

// ErrRunInProgress is returned by BeginRun while another run holds the
// session's run gate. Runs never share a credential concurrently.
var ErrRunInProgress = errors.New("a run is already in progress for this session")

// ErrNoRepository is returned when an operation needs a target repository
// before SelectRepository has succeeded.
var ErrNoRepository = errors.New("no repository selected")

// Credential is one session's authenticated GitHub identity. It implements
// githubops.Source. All methods are safe for concurrent use.
type Credential struct {
	mu      sync.Mutex
	client  *github.Client
	login   string
	owner   string
	repo    string
	revoked bool
	running bool
}

// Option configures Connect.
type Option func(*settings) error

type settings struct {
	baseURL string
	timeout time.Duration
}

// WithBaseURL points the client at a different API endpoint. Used by tests
// and GitHub Enterprise deployments.
func WithBaseURL(base string) Option {
	return func(s *settings) error {
		if _, err := url.Parse(base); err != nil {
			return fmt.Errorf("invalid base URL: %w", err)
		}
		s.baseURL = base
		return nil
	}
}

// WithValidateTimeout bounds the identity check issued by Connect.
func WithValidateTimeout(d time.Duration) Option {
	return func(s *settings) error {
		if d <= 0 {
			return fmt.Errorf("validate timeout must be positive, got %v", d)
		}
		s.timeout = d
		return nil
	}
}

// Connect validates the token with a lightweight identity check and returns
// a credential scoped to it. The token is never logged or persisted.
func Connect(ctx context.Context, token string, opts ...Option) (*Credential, error) {
	if strings.TrimSpace(token) == "" {
		return nil, &githubops.AuthError{Reason: "empty token"}
	}

	s := settings{timeout: 10 * time.Second}
	for _, opt := range opts {
		if err := opt(&s); err != nil {
			return nil, err
		}
	}

	src := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
	client := github.NewClient(oauth2.NewClient(ctx, src))
	if s.baseURL != "" {
		base := s.baseURL
		if !strings.HasSuffix(base, "/") {
			base += "/"
		}
		u, err := url.Parse(base)
		if err != nil {
			return nil, fmt.Errorf("parsing base URL: %w", err)
		}
		client.BaseURL = u
	}

	checkCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()
	user, _, err := client.Users.Get(checkCtx, "")
	if err != nil {
		// 401 and 403 both mean the token cannot act as this user.
		if cerr := githubops.Classify(err, "authenticated user"); githubops.IsAuth(cerr) {
			return nil, cerr
		}
		return nil, fmt.Errorf("validating token: %w", err)
	}

	clog.FromContext(ctx).With("login", user.GetLogin()).Info("Session connected")
	return &Credential{client: client, login: user.GetLogin()}, nil
}

// Login returns the authenticated user's login.
func (c *Credential) Login() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.login
}

// Client returns the token-scoped GitHub client, or AuthError once the
// session has disconnected. Operations call this per API call so an
// in-flight run fails fast after Disconnect.
func (c *Credential) Client(ctx context.Context) (*github.Client, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return nil, &githubops.AuthError{Reason: "session disconnected"}
	}
	return c.client, nil
}

// Repository returns the selected target repository.
func (c *Credential) Repository() (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return "", "", &githubops.AuthError{Reason: "session disconnected"}
	}
	if c.owner == "" {
		return "", "", ErrNoRepository
	}
	return c.owner, c.repo, nil
}

// SelectRepository confirms the token can read owner/name and records it as
// the target for subsequent operations. Write access is not pre-checked;
// mutations surface AuthError lazily if the token cannot write.
func (c *Credential) SelectRepository(ctx context.Context, owner, name string) error {
	client, err := c.Client(ctx)
	if err != nil {
		return err
	}

	if _, _, err := client.Repositories.Get(ctx, owner, name); err != nil {
		cerr := githubops.Classify(err, owner+"/"+name)
		if githubops.IsNotFound(cerr) || githubops.IsAuth(cerr) {
			return cerr
		}
		return fmt.Errorf("checking repository access: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return &githubops.AuthError{Reason: "session disconnected"}
	}
	c.owner, c.repo = owner, name

	clog.FromContext(ctx).With("repository", owner+"/"+name).Info("Repository selected")
	return nil
}

// ListRepositories lists the full names of repositories the token holder
// can access, for the session boundary's repository picker.
func (c *Credential) ListRepositories(ctx context.Context) ([]string, error) {
	client, err := c.Client(ctx)
	if err != nil {
		return nil, err
	}

	var names []string
	opts := &github.RepositoryListByAuthenticatedUserOptions{
		ListOptions: github.ListOptions{PerPage: 100},
	}
	for {
		repos, resp, err := client.Repositories.ListByAuthenticatedUser(ctx, opts)
		if err != nil {
			return nil, fmt.Errorf("listing repositories: %w", err)
		}
		for _, r := range repos {
			names = append(names, r.GetFullName())
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return names, nil
}

// BeginRun acquires the session's single-run gate. The returned release
// function must be called when the run reaches a terminal state.
func (c *Credential) BeginRun() (release func(), err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.revoked {
		return nil, &githubops.AuthError{Reason: "session disconnected"}
	}
	if c.running {
		return nil, ErrRunInProgress
	}
	c.running = true
	return func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.running = false
	}, nil
}

// Disconnect discards the credential. Idempotent. In-flight operations fail
// with AuthError at their next client acquisition.
func (c *Credential) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.revoked = true
	c.client = nil
	c.owner, c.repo, c.login = "", "", ""
}
