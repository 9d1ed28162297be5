/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danish296/KickStart-Agent-for-GitHub/githubops"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall/params"
)

// scriptedPlanner replays a fixed sequence of planner turns. The last step
// repeats if the orchestrator asks for more turns than scripted.
type scriptedPlanner struct {
	steps    []func(req PlanRequest) (*PlanResponse, error)
	requests []PlanRequest
}

func (p *scriptedPlanner) Plan(_ context.Context, req PlanRequest) (*PlanResponse, error) {
	p.requests = append(p.requests, req)
	i := len(p.requests) - 1
	if i >= len(p.steps) {
		i = len(p.steps) - 1
	}
	return p.steps[i](req)
}

func answer(text string) func(PlanRequest) (*PlanResponse, error) {
	return func(PlanRequest) (*PlanResponse, error) {
		return &PlanResponse{Text: text}, nil
	}
}

func callTools(calls ...toolcall.ToolCall) func(PlanRequest) (*PlanResponse, error) {
	return func(PlanRequest) (*PlanResponse, error) {
		return &PlanResponse{ToolCalls: calls}, nil
	}
}

// noteStore is a single-file repository standing in for GitHub: reads
// return the current content SHA and mutations demand it back.
type noteStore struct {
	content string
	sha     string
	rev     int
}

func (s *noteStore) write(content string) string {
	s.rev++
	s.content = content
	s.sha = fmt.Sprintf("sha-%d", s.rev)
	return s.sha
}

func noteRegistry(t *testing.T, store *noteStore) *toolcall.Registry {
	t.Helper()
	r := toolcall.NewRegistry()

	readTool := toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "read_note",
			Description: "Reads the note and its current sha.",
		},
		Handler: func(context.Context, toolcall.ToolCall) (map[string]any, error) {
			return map[string]any{"content": store.content, "sha": store.sha}, nil
		},
	}
	writeTool := toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "write_note",
			Description: "Replaces the note content.",
			Parameters: []toolcall.Parameter{
				{Name: "content", Type: "string", Required: true},
				{Name: "expected_sha", Type: "string", Required: true},
			},
			Mutating: true,
		},
		Handler: func(_ context.Context, call toolcall.ToolCall) (map[string]any, error) {
			expected, err := params.Extract[string](call.Args, "expected_sha")
			if err != nil {
				return params.Error("%s", err), err
			}
			if expected != store.sha {
				cerr := &githubops.ConflictError{Path: "note", ExpectedSHA: expected}
				return params.ErrorWithContext(cerr, map[string]any{
					"hint": "read_note again to obtain the current sha, then retry",
				}), cerr
			}
			content, err := params.Extract[string](call.Args, "content")
			if err != nil {
				return params.Error("%s", err), err
			}
			return map[string]any{"sha": store.write(content)}, nil
		},
	}

	for _, tool := range []toolcall.Tool{readTool, writeTool} {
		if err := r.Register(tool); err != nil {
			t.Fatalf("Register(%s) = %v", tool.Def.Name, err)
		}
	}
	return r
}

func newTestOrchestrator(t *testing.T, planner Planner, registry *toolcall.Registry, opts ...Option) *Orchestrator {
	t.Helper()
	o, err := New(planner, registry, "octo/demo", opts...)
	if err != nil {
		t.Fatalf("New() = %v", err)
	}
	return o
}

func TestRunCompletesWithoutTools(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		answer("Nothing to do."),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, &noteStore{}))

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "read the note"})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Outcome != OutcomeCompleted || result.Summary != "Nothing to do." || result.Turns != 1 {
		t.Errorf("result = %+v, want completed on turn 1", result)
	}
	if len(result.Applied) != 0 {
		t.Errorf("Applied = %v, want empty", result.Applied)
	}
}

func TestRunRecordsMutationsInOrder(t *testing.T) {
	store := &noteStore{}
	store.write("v1") // sha-1

	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		callTools(
			toolcall.ToolCall{ID: "c1", Name: "read_note", Args: map[string]any{}},
			toolcall.ToolCall{ID: "c2", Name: "write_note", Args: map[string]any{"content": "v2", "expected_sha": "sha-1"}},
		),
		answer("Updated the note."),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, store))

	result, err := o.Run(context.Background(), Task{Type: TaskWriteFile, Instruction: "update the note"})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Outcome != OutcomeCompleted || result.Turns != 2 {
		t.Fatalf("result = %+v, want completed on turn 2", result)
	}

	// Only the mutating call lands in the audit trail, with the fresh SHA.
	want := []Change{{
		Tool: "write_note",
		Args: map[string]any{"content": "v2", "expected_sha": "sha-1"},
		SHA:  "sha-2",
	}}
	if diff := cmp.Diff(want, result.Applied); diff != "" {
		t.Errorf("Applied mismatch (-want +got):\n%s", diff)
	}

	// The second planner request must carry both tool results, keyed by id.
	last := planner.requests[1]
	var toolIDs []string
	for _, m := range last.Messages {
		if m.Role == "tool" {
			toolIDs = append(toolIDs, m.ToolCallID)
		}
	}
	if diff := cmp.Diff([]string{"c1", "c2"}, toolIDs); diff != "" {
		t.Errorf("tool result ids mismatch (-want +got):\n%s", diff)
	}
}

func TestConflictIsFedBackAndRecovered(t *testing.T) {
	store := &noteStore{}
	store.write("v1") // sha-1
	// Another writer moves the note before the run's stale write lands.
	store.write("v1-external") // sha-2

	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		callTools(toolcall.ToolCall{ID: "c1", Name: "write_note", Args: map[string]any{"content": "v2", "expected_sha": "sha-1"}}),
		callTools(
			toolcall.ToolCall{ID: "c2", Name: "read_note", Args: map[string]any{}},
			toolcall.ToolCall{ID: "c3", Name: "write_note", Args: map[string]any{"content": "v2", "expected_sha": "sha-2"}},
		),
		answer("Recovered from the conflict and updated the note."),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, store))

	result, err := o.Run(context.Background(), Task{Type: TaskWriteFile, Instruction: "update the note"})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Outcome != OutcomeCompleted || result.Turns != 3 {
		t.Fatalf("result = %+v, want completed on turn 3", result)
	}

	// The failed stale write stays out of the audit trail.
	want := []Change{{
		Tool: "write_note",
		Args: map[string]any{"content": "v2", "expected_sha": "sha-2"},
		SHA:  "sha-3",
	}}
	if diff := cmp.Diff(want, result.Applied); diff != "" {
		t.Errorf("Applied mismatch (-want +got):\n%s", diff)
	}

	// The conflict surfaced to the planner as a tool result with the
	// recovery hint, not as a terminated run.
	second := planner.requests[1]
	var conflictMsg string
	for _, m := range second.Messages {
		if m.Role == "tool" && m.ToolCallID == "c1" {
			conflictMsg = m.Content
		}
	}
	if !strings.Contains(conflictMsg, "hint") || !strings.Contains(conflictMsg, "conflict") {
		t.Errorf("conflict tool result %q missing hint", conflictMsg)
	}
}

func TestTurnBudgetAborts(t *testing.T) {
	store := &noteStore{}
	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		callTools(toolcall.ToolCall{ID: "c", Name: "read_note", Args: map[string]any{}}),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, store), WithMaxTurns(3))

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "loop"})
	if err == nil {
		t.Fatal("Run() succeeded, want turn budget abort")
	}
	if result.Outcome != OutcomeAborted {
		t.Errorf("Outcome = %s, want aborted", result.Outcome)
	}
	if want := "turn budget exceeded after 3 turns"; result.AbortReason != want {
		t.Errorf("AbortReason = %q, want %q", result.AbortReason, want)
	}
	if got := len(planner.requests); got != 3 {
		t.Errorf("planner called %d times, want exactly 3", got)
	}
}

func TestAuthFailureAbortsRun(t *testing.T) {
	r := toolcall.NewRegistry()
	authErr := &githubops.AuthError{Reason: "session disconnected"}
	if err := r.Register(toolcall.Tool{
		Def: toolcall.Definition{Name: "read_note", Description: "always unauthorized"},
		Handler: func(context.Context, toolcall.ToolCall) (map[string]any, error) {
			return nil, authErr
		},
	}); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		callTools(toolcall.ToolCall{ID: "c", Name: "read_note", Args: map[string]any{}}),
		answer("should never be reached"),
	}}
	o := newTestOrchestrator(t, planner, r)

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "read"})
	if err == nil {
		t.Fatal("Run() succeeded, want auth abort")
	}
	if result.Outcome != OutcomeAborted || result.AbortReason != "authentication failed" {
		t.Errorf("result = %+v, want authentication abort", result)
	}
	if !githubops.IsAuth(result.Cause) {
		t.Errorf("Cause = %v, want AuthError", result.Cause)
	}
	if got := len(planner.requests); got != 1 {
		t.Errorf("planner called %d times after fatal auth failure, want 1", got)
	}
}

func TestExhaustedRateLimitAbortsRun(t *testing.T) {
	r := toolcall.NewRegistry()
	limitErr := fmt.Errorf("read_file failed after 4 retries: %w",
		&githubops.RateLimitError{Cause: errors.New("API rate limit exceeded")})
	if err := r.Register(toolcall.Tool{
		Def: toolcall.Definition{Name: "read_note", Description: "always rate limited"},
		Handler: func(context.Context, toolcall.ToolCall) (map[string]any, error) {
			return nil, limitErr
		},
	}); err != nil {
		t.Fatalf("Register() = %v", err)
	}

	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		callTools(toolcall.ToolCall{ID: "c", Name: "read_note", Args: map[string]any{}}),
		answer("should never be reached"),
	}}
	o := newTestOrchestrator(t, planner, r, WithMaxTurns(5))

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "read"})
	if err == nil {
		t.Fatal("Run() succeeded, want rate limit abort")
	}
	if result.Outcome != OutcomeAborted || result.AbortReason != "rate limit retries exhausted" {
		t.Errorf("result = %+v, want rate limit abort", result)
	}
	if !githubops.IsRateLimit(result.Cause) {
		t.Errorf("Cause = %v, want RateLimitError", result.Cause)
	}
	// Exhausted backoff terminates the run instead of burning the remaining
	// turns against the same limit.
	if got := len(planner.requests); got != 1 {
		t.Errorf("planner called %d times after exhausted retries, want 1", got)
	}
}

func TestPlannerTimeoutRepromptsOnce(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		func(PlanRequest) (*PlanResponse, error) { return nil, context.DeadlineExceeded },
		answer("Done after one re-prompt."),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, &noteStore{}))

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "read"})
	if err != nil {
		t.Fatalf("Run() = %v", err)
	}
	if result.Outcome != OutcomeCompleted || result.Summary != "Done after one re-prompt." {
		t.Errorf("result = %+v, want completion after re-prompt", result)
	}
	if got := len(planner.requests); got != 2 {
		t.Errorf("planner called %d times, want 2", got)
	}
}

func TestPlannerRepeatedTimeoutAborts(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		func(PlanRequest) (*PlanResponse, error) { return nil, context.DeadlineExceeded },
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, &noteStore{}))

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "read"})
	if err == nil {
		t.Fatal("Run() succeeded, want abort after repeated timeouts")
	}
	if result.Outcome != OutcomeAborted || result.AbortReason != "planner failed" {
		t.Errorf("result = %+v, want planner failure abort", result)
	}
	if got := len(planner.requests); got != 2 {
		t.Errorf("planner called %d times, want 2 (original plus one re-prompt)", got)
	}
}

func TestPlannerErrorAbortsImmediately(t *testing.T) {
	boom := errors.New("model unavailable")
	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		func(PlanRequest) (*PlanResponse, error) { return nil, boom },
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, &noteStore{}))

	result, err := o.Run(context.Background(), Task{Type: TaskReadFile, Instruction: "read"})
	if !errors.Is(err, boom) {
		t.Fatalf("Run() = %v, want wrapped planner error", err)
	}
	if result.Outcome != OutcomeAborted {
		t.Errorf("Outcome = %s, want aborted", result.Outcome)
	}
	if got := len(planner.requests); got != 1 {
		t.Errorf("planner called %d times, want 1: non-timeout errors are not re-prompted", got)
	}
}

func TestCanceledContextAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		answer("never"),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, &noteStore{}))

	result, err := o.Run(ctx, Task{Type: TaskReadFile, Instruction: "read"})
	if err == nil {
		t.Fatal("Run() succeeded on canceled context")
	}
	if result.Outcome != OutcomeAborted || result.AbortReason != "canceled" {
		t.Errorf("result = %+v, want cancellation abort", result)
	}
}

func TestRunRejectsBadTask(t *testing.T) {
	planner := &scriptedPlanner{steps: []func(PlanRequest) (*PlanResponse, error){
		answer("never"),
	}}
	o := newTestOrchestrator(t, planner, noteRegistry(t, &noteStore{}))

	if _, err := o.Run(context.Background(), Task{Type: TaskDebug, Instruction: "fix it"}); err == nil {
		t.Error("debug task without an issue number was accepted")
	}
	if _, err := o.Run(context.Background(), Task{Type: TaskType("mystery")}); err == nil {
		t.Error("unknown task type was accepted")
	}
	if got := len(planner.requests); got != 0 {
		t.Errorf("planner called %d times for unseedable tasks, want 0", got)
	}
}
