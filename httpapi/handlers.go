/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package httpapi

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/chainguard-dev/clog"

	"github.com/danish296/KickStart-Agent-for-GitHub/agent"
	"github.com/danish296/KickStart-Agent-for-GitHub/githubops"
	"github.com/danish296/KickStart-Agent-for-GitHub/session"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
)

type connectRequest struct {
	Token string `json:"token"`
	Owner string `json:"owner,omitempty"`
	Repo  string `json:"repo,omitempty"`
}

type connectResponse struct {
	Status    string `json:"status"`
	SessionID string `json:"session_id"`
	Login     string `json:"login"`
}

type sessionRequest struct {
	SessionID string `json:"session_id"`
}

type selectRepositoryRequest struct {
	SessionID string `json:"session_id"`
	Owner     string `json:"owner"`
	Repo      string `json:"repo"`
}

type runAgentRequest struct {
	SessionID   string `json:"session_id"`
	TaskType    string `json:"task_type"`
	Instruction string `json:"instruction"`
	IssueNumber int    `json:"issue_number,omitempty"`
}

type appliedChange struct {
	Tool string         `json:"tool"`
	Args map[string]any `json:"args,omitempty"`
	SHA  string         `json:"sha,omitempty"`
}

type runAgentResponse struct {
	Status  string          `json:"status"`
	Summary string          `json:"summary,omitempty"`
	Reason  string          `json:"reason,omitempty"`
	Applied []appliedChange `json:"applied,omitempty"`
	Turns   int             `json:"turns"`
}

func decode[T any](w http.ResponseWriter, r *http.Request, into *T) bool {
	if err := json.NewDecoder(r.Body).Decode(into); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body: %v", err)
		return false
	}
	return true
}

// handleConnect validates a personal access token, opens a session, and
// optionally selects a repository in the same call.
func (s *Server) handleConnect(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req connectRequest
	if !decode(w, r, &req) {
		return
	}

	var opts []session.Option
	if s.opts.GitHubBaseURL != "" {
		opts = append(opts, session.WithBaseURL(s.opts.GitHubBaseURL))
	}
	cred, err := session.Connect(ctx, req.Token, opts...)
	if err != nil {
		if githubops.IsAuth(err) {
			writeError(w, http.StatusUnauthorized, "%v", err)
			return
		}
		writeError(w, http.StatusBadGateway, "connecting to GitHub: %v", err)
		return
	}

	if req.Owner != "" && req.Repo != "" {
		if err := cred.SelectRepository(ctx, req.Owner, req.Repo); err != nil {
			cred.Disconnect()
			if githubops.IsNotFound(err) {
				writeError(w, http.StatusNotFound, "%v", err)
				return
			}
			writeError(w, http.StatusBadGateway, "selecting repository: %v", err)
			return
		}
	}

	id, err := newSessionID()
	if err != nil {
		cred.Disconnect()
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	s.putSession(id, cred)

	writeJSON(w, http.StatusOK, connectResponse{
		Status:    "connected",
		SessionID: id,
		Login:     cred.Login(),
	})
}

// handleDisconnect revokes the credential and forgets the session. It is
// idempotent: an unknown session id still reports disconnected.
func (s *Server) handleDisconnect(w http.ResponseWriter, r *http.Request) {
	var req sessionRequest
	if !decode(w, r, &req) {
		return
	}
	if cred, ok := s.dropSession(req.SessionID); ok {
		cred.Disconnect()
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "disconnected"})
}

func (s *Server) handleSelectRepository(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	var req selectRepositoryRequest
	if !decode(w, r, &req) {
		return
	}
	if req.Owner == "" || req.Repo == "" {
		writeError(w, http.StatusBadRequest, "owner and repo are required")
		return
	}
	cred, ok := s.getSession(req.SessionID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown session")
		return
	}
	if err := cred.SelectRepository(ctx, req.Owner, req.Repo); err != nil {
		switch {
		case githubops.IsNotFound(err):
			writeError(w, http.StatusNotFound, "%v", err)
		case githubops.IsAuth(err):
			writeError(w, http.StatusUnauthorized, "%v", err)
		default:
			writeError(w, http.StatusBadGateway, "selecting repository: %v", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":     "selected",
		"repository": req.Owner + "/" + req.Repo,
	})
}

// handleListRepos accepts the session id either as a query parameter (GET)
// or a JSON body (POST).
func (s *Server) handleListRepos(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := r.URL.Query().Get("session_id")
	if id == "" {
		var req sessionRequest
		if !decode(w, r, &req) {
			return
		}
		id = req.SessionID
	}
	cred, ok := s.getSession(id)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown session")
		return
	}
	repos, err := cred.ListRepositories(ctx)
	if err != nil {
		if githubops.IsAuth(err) {
			writeError(w, http.StatusUnauthorized, "%v", err)
			return
		}
		writeError(w, http.StatusBadGateway, "listing repositories: %v", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"repos":  repos,
	})
}

// handleRunAgent executes one agent task synchronously. A session admits a
// single run at a time; overlapping requests get 409. Recoverable per-turn
// failures are handled inside the run, only the terminal outcome is
// reported.
func (s *Server) handleRunAgent(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	log := clog.FromContext(ctx)

	var req runAgentRequest
	if !decode(w, r, &req) {
		return
	}
	cred, ok := s.getSession(req.SessionID)
	if !ok {
		writeError(w, http.StatusUnauthorized, "unknown session")
		return
	}

	release, err := cred.BeginRun()
	if err != nil {
		switch {
		case errors.Is(err, session.ErrRunInProgress):
			writeError(w, http.StatusConflict, "a run is already in progress for this session")
		case githubops.IsAuth(err):
			writeError(w, http.StatusUnauthorized, "%v", err)
		default:
			writeError(w, http.StatusInternalServerError, "%v", err)
		}
		return
	}
	defer release()

	owner, repo, err := cred.Repository()
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	task := agent.Task{
		Type:        agent.TaskType(req.TaskType),
		Instruction: req.Instruction,
		IssueNumber: req.IssueNumber,
	}
	switch task.Type {
	case agent.TaskFeature, agent.TaskDebug, agent.TaskWriteFile, agent.TaskReadFile, agent.TaskDeleteFile:
	default:
		writeError(w, http.StatusBadRequest, "unknown task type %q", req.TaskType)
		return
	}

	ops, err := githubops.New(cred)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	registry := toolcall.NewRegistry()
	if err := githubops.RegisterTools(registry, ops); err != nil {
		writeError(w, http.StatusInternalServerError, "%v", err)
		return
	}
	orch, err := agent.New(s.planner, registry, owner+"/"+repo,
		agent.WithMaxTurns(s.opts.MaxTurns),
		agent.WithLLMTimeout(s.opts.LLMTimeout))
	if err != nil {
		writeError(w, http.StatusBadRequest, "%v", err)
		return
	}

	result, err := orch.Run(ctx, task)
	if err != nil && result.Outcome != agent.OutcomeAborted {
		writeError(w, http.StatusInternalServerError, "agent run: %v", err)
		return
	}

	resp := runAgentResponse{Turns: result.Turns}
	for _, ch := range result.Applied {
		resp.Applied = append(resp.Applied, appliedChange{Tool: ch.Tool, Args: ch.Args, SHA: ch.SHA})
	}
	switch result.Outcome {
	case agent.OutcomeCompleted:
		resp.Status = "success"
		resp.Summary = result.Summary
		writeJSON(w, http.StatusOK, resp)
	default:
		resp.Status = "aborted"
		resp.Reason = result.AbortReason
		log.With("reason", result.AbortReason).Info("Agent run aborted")
		if githubops.IsAuth(result.Cause) {
			writeJSON(w, http.StatusUnauthorized, resp)
			return
		}
		writeJSON(w, http.StatusOK, resp)
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
}
