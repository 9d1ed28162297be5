/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"

	"github.com/danish296/KickStart-Agent-for-GitHub/githubops"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
)

const (
	defaultMaxTurns   = 8
	defaultLLMTimeout = 2 * time.Minute
)

// Orchestrator drives runs: Planning and ToolExecution alternate until a
// terminal state. One Orchestrator serves one session's registry; the
// session boundary serializes runs per session.
type Orchestrator struct {
	planner    Planner
	registry   *toolcall.Registry
	repository string
	maxTurns   int
	llmTimeout time.Duration
}

// Option configures an Orchestrator.
type Option func(*Orchestrator) error

// WithMaxTurns sets the Planning/ToolExecution round-trip budget.
func WithMaxTurns(n int) Option {
	return func(o *Orchestrator) error {
		if n <= 0 {
			return fmt.Errorf("max turns must be positive, got %d", n)
		}
		o.maxTurns = n
		return nil
	}
}

// WithLLMTimeout bounds each planner call.
func WithLLMTimeout(d time.Duration) Option {
	return func(o *Orchestrator) error {
		if d <= 0 {
			return fmt.Errorf("LLM timeout must be positive, got %v", d)
		}
		o.llmTimeout = d
		return nil
	}
}

// New creates an orchestrator for the given planner, tool registry, and
// target repository (owner/name, used only in prompts).
func New(planner Planner, registry *toolcall.Registry, repository string, opts ...Option) (*Orchestrator, error) {
	if planner == nil {
		return nil, errors.New("planner cannot be nil")
	}
	if registry == nil {
		return nil, errors.New("registry cannot be nil")
	}
	o := &Orchestrator{
		planner:    planner,
		registry:   registry,
		repository: repository,
		maxTurns:   defaultMaxTurns,
		llmTimeout: defaultLLMTimeout,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return o, nil
}

// Run executes one task to a terminal state. The returned RunResult is
// always non-nil; the error is non-nil only when the run could not even be
// seeded (bad task) or was aborted, in which case RunResult still carries
// the audit trail of mutations applied before the abort.
func (o *Orchestrator) Run(ctx context.Context, task Task) (*RunResult, error) {
	log := clog.FromContext(ctx)

	system, err := buildSystemPrompt(o.repository)
	if err != nil {
		return &RunResult{Outcome: OutcomeAborted, AbortReason: "building system prompt", Cause: err}, err
	}
	seed, err := buildTaskPrompt(task)
	if err != nil {
		return &RunResult{Outcome: OutcomeAborted, AbortReason: "building task prompt", Cause: err}, err
	}

	result := &RunResult{}
	messages := []Message{{Role: "user", Content: seed}}
	tools := o.registry.Describe()

	log.With("task", string(task.Type)).
		With("repository", o.repository).
		With("max_turns", o.maxTurns).
		Info("Starting run")

	for turn := 1; turn <= o.maxTurns; turn++ {
		if err := ctx.Err(); err != nil {
			return o.abort(result, "canceled", err)
		}
		result.Turns = turn

		resp, err := o.plan(ctx, PlanRequest{System: system, Messages: messages, Tools: tools})
		if err != nil {
			return o.abort(result, "planner failed", err)
		}

		// No tool calls means the planner is done.
		if len(resp.ToolCalls) == 0 {
			result.Outcome = OutcomeCompleted
			result.Summary = resp.Text
			log.With("turns", turn).With("applied", len(result.Applied)).Info("Run completed")
			return result, nil
		}

		messages = append(messages, Message{Role: "assistant", Content: resp.Text, ToolCalls: resp.ToolCalls})

		// Tool calls run strictly in request order; sequential execution
		// keeps the content-SHA contract sound for same-path mutations.
		for _, tc := range resp.ToolCalls {
			if err := ctx.Err(); err != nil {
				return o.abort(result, "canceled", err)
			}

			log.With("tool", tc.Name).With("id", tc.ID).Info("Executing tool call")
			res := o.registry.Invoke(ctx, tc)

			if res.Failed() && githubops.IsAuth(res.Err) {
				// Fatal: no further planning on a dead credential.
				return o.abort(result, "authentication failed", res.Err)
			}
			if res.Failed() && githubops.IsRateLimit(res.Err) {
				// The operation layer already spent its backoff budget;
				// re-planning would just burn turns against the same limit.
				return o.abort(result, "rate limit retries exhausted", res.Err)
			}

			messages = append(messages, Message{
				Role:       "tool",
				ToolCallID: tc.ID,
				Content:    renderPayload(res.Payload),
			})

			if res.Failed() {
				log.With("tool", tc.Name).With("error", res.Err.Error()).
					Warn("Tool call failed, reporting to planner")
				continue
			}

			if def, ok := o.registry.Lookup(tc.Name); ok && def.Mutating {
				result.Applied = append(result.Applied, Change{Tool: tc.Name, Args: tc.Args, SHA: res.SHA})
			}
		}
	}

	return o.abort(result, fmt.Sprintf("turn budget exceeded after %d turns", o.maxTurns), nil)
}

// plan calls the planner with the per-call timeout, re-prompting once when
// the call times out.
func (o *Orchestrator) plan(ctx context.Context, req PlanRequest) (*PlanResponse, error) {
	for attempt := range 2 {
		planCtx, cancel := context.WithTimeout(ctx, o.llmTimeout)
		resp, err := o.planner.Plan(planCtx, req)
		cancel()
		if err == nil {
			return resp, nil
		}
		if attempt == 0 && errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			clog.FromContext(ctx).Warn("Planner call timed out, re-prompting once")
			continue
		}
		return nil, err
	}
	return nil, errors.New("unreachable")
}

func (o *Orchestrator) abort(result *RunResult, reason string, cause error) (*RunResult, error) {
	result.Outcome = OutcomeAborted
	result.AbortReason = reason
	result.Cause = cause
	if cause == nil {
		return result, fmt.Errorf("run aborted: %s", reason)
	}
	return result, fmt.Errorf("run aborted: %s: %w", reason, cause)
}

// renderPayload serializes a tool result payload for the conversation.
func renderPayload(payload map[string]any) string {
	if payload == nil {
		payload = map[string]any{}
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return fmt.Sprintf(`{"error":"marshaling tool result: %v"}`, err)
	}
	return string(b)
}
