/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package httpapi

import (
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/chainguard-dev/clog"
	"golang.org/x/oauth2"
	oauthgithub "golang.org/x/oauth2/github"

	"github.com/danish296/KickStart-Agent-for-GitHub/session"
)

// OAuthOptions configures the GitHub authorization-code flow. This is a
// prototype surface: tokens obtained here feed the same in-memory session
// store as PAT connect and are never persisted.
type OAuthOptions struct {
	ClientID     string
	ClientSecret string
	// RedirectURL is this server's /callback URL as registered with the
	// GitHub OAuth app.
	RedirectURL string
	// UIRedirectURL is where the browser lands after a successful exchange,
	// with the new session id appended as a query parameter.
	UIRedirectURL string
}

func (o *OAuthOptions) config() *oauth2.Config {
	return &oauth2.Config{
		ClientID:     o.ClientID,
		ClientSecret: o.ClientSecret,
		RedirectURL:  o.RedirectURL,
		Scopes:       []string{"repo", "read:user"},
		Endpoint:     oauthgithub.Endpoint,
	}
}

const stateTTL = 10 * time.Minute

// stateStore tracks outstanding anti-forgery states for the login flow.
type stateStore struct {
	mu     sync.Mutex
	states map[string]time.Time
}

func (st *stateStore) issue() (string, error) {
	id, err := newSessionID()
	if err != nil {
		return "", err
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if st.states == nil {
		st.states = make(map[string]time.Time)
	}
	now := time.Now()
	for s, deadline := range st.states {
		if now.After(deadline) {
			delete(st.states, s)
		}
	}
	st.states[id] = now.Add(stateTTL)
	return id, nil
}

func (st *stateStore) redeem(state string) bool {
	st.mu.Lock()
	defer st.mu.Unlock()
	deadline, ok := st.states[state]
	if !ok {
		return false
	}
	delete(st.states, state)
	return time.Now().Before(deadline)
}

// handleLogin starts the authorization-code flow by redirecting the browser
// to GitHub's consent page.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	state, err := s.states.issue()
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	http.Redirect(w, r, s.opts.OAuth.config().AuthCodeURL(state), http.StatusFound)
}

// handleCallback exchanges the authorization code for a token and opens a
// session around it, then sends the browser on to the UI.
func (s *Server) handleCallback(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	if !s.states.redeem(r.URL.Query().Get("state")) {
		writeError(w, http.StatusBadRequest, "invalid or expired state")
		return
	}
	code := r.URL.Query().Get("code")
	if code == "" {
		writeError(w, http.StatusBadRequest, "missing authorization code")
		return
	}

	tok, err := s.opts.OAuth.config().Exchange(ctx, code)
	if err != nil {
		writeError(w, http.StatusBadGateway, "exchanging authorization code: %v", err)
		return
	}

	var opts []session.Option
	if s.opts.GitHubBaseURL != "" {
		opts = append(opts, session.WithBaseURL(s.opts.GitHubBaseURL))
	}
	cred, err := session.Connect(ctx, tok.AccessToken, opts...)
	if err != nil {
		writeError(w, http.StatusUnauthorized, "%v", err)
		return
	}

	id, err := newSessionID()
	if err != nil {
		cred.Disconnect()
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	s.putSession(id, cred)
	clog.FromContext(ctx).With("login", cred.Login()).Info("OAuth session connected")

	dest, err := url.Parse(s.opts.OAuth.UIRedirectURL)
	if err != nil || dest.String() == "" {
		writeJSON(w, http.StatusOK, connectResponse{Status: "connected", SessionID: id, Login: cred.Login()})
		return
	}
	q := dest.Query()
	q.Set("session_id", id)
	dest.RawQuery = q.Encode()
	http.Redirect(w, r, dest.String(), http.StatusFound)
}
