/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package httpapi exposes the session boundary over HTTP: connect with a
// personal access token (or via the OAuth prototype flow), pick a
// repository, and run agent tasks. Sessions live in process memory only
// and hold exactly one credential each; per-turn recoverable errors never
// surface here, only terminal run outcomes.
package httpapi

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/danish296/KickStart-Agent-for-GitHub/agent"
	"github.com/danish296/KickStart-Agent-for-GitHub/session"
)

// Options configures the server.
type Options struct {
	// Addr is the listen address, e.g. ":8080".
	Addr string
	// MaxTurns bounds each run's Planning/ToolExecution round trips.
	MaxTurns int
	// LLMTimeout bounds each planner call within a run.
	LLMTimeout time.Duration
	// GitHubBaseURL overrides the GitHub API endpoint (tests, GHE).
	GitHubBaseURL string
	// OAuth configures the optional authorization-code flow. Nil disables
	// the /login and /callback endpoints; PAT connect always works.
	OAuth *OAuthOptions
}

// Server owns the session table and the HTTP surface.
type Server struct {
	opts    Options
	planner agent.Planner
	httpSrv *http.Server

	mu       sync.Mutex
	sessions map[string]*session.Credential

	// states tracks outstanding OAuth anti-forgery states.
	states stateStore
}

// NewServer creates the session-boundary server around a shared planner.
func NewServer(opts Options, planner agent.Planner) (*Server, error) {
	if planner == nil {
		return nil, fmt.Errorf("planner is required")
	}
	if opts.Addr == "" {
		opts.Addr = ":8080"
	}
	if opts.MaxTurns == 0 {
		opts.MaxTurns = 8
	}
	if opts.LLMTimeout == 0 {
		opts.LLMTimeout = 2 * time.Minute
	}
	return &Server{
		opts:     opts,
		planner:  planner,
		sessions: make(map[string]*session.Credential),
	}, nil
}

// Handler returns the route table. Exposed separately so tests can drive
// the server through httptest.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /connect", s.handleConnect)
	mux.HandleFunc("POST /disconnect", s.handleDisconnect)
	mux.HandleFunc("POST /repository", s.handleSelectRepository)
	mux.HandleFunc("GET /user/repos", s.handleListRepos)
	mux.HandleFunc("POST /user/repos", s.handleListRepos)
	mux.HandleFunc("POST /run-agent", s.handleRunAgent)
	// Logout is disconnect under the name the browser flow uses.
	mux.HandleFunc("POST /logout", s.handleDisconnect)
	mux.HandleFunc("GET /healthz", s.handleHealth)
	if s.opts.OAuth != nil {
		mux.HandleFunc("GET /login", s.handleLogin)
		mux.HandleFunc("GET /callback", s.handleCallback)
	}
	return mux
}

// ListenAndServe runs the server until ctx is canceled, then drains.
func (s *Server) ListenAndServe(ctx context.Context) error {
	s.httpSrv = &http.Server{
		Addr:              s.opts.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	errCh := make(chan error, 1)
	go func() {
		clog.InfoContextf(ctx, "Session API listening on %s", s.opts.Addr)
		errCh <- s.httpSrv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		s.discardAllSessions()
		return s.httpSrv.Shutdown(shutdownCtx)
	case err := <-errCh:
		return err
	}
}

// newSessionID generates an opaque session identifier.
func newSessionID() (string, error) {
	buf := make([]byte, 24)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generating session id: %w", err)
	}
	return hex.EncodeToString(buf), nil
}

func (s *Server) putSession(id string, cred *session.Credential) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[id] = cred
}

func (s *Server) getSession(id string) (*session.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.sessions[id]
	return cred, ok
}

func (s *Server) dropSession(id string) (*session.Credential, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cred, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	return cred, ok
}

// discardAllSessions revokes every credential on shutdown.
func (s *Server) discardAllSessions() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, cred := range s.sessions {
		cred.Disconnect()
		delete(s.sessions, id)
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, status int, format string, args ...any) {
	writeJSON(w, status, map[string]any{
		"status":  "error",
		"message": fmt.Sprintf(format, args...),
	})
}
