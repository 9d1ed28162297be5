/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package agent implements the run orchestrator: a bounded loop that sends
// the conversation to a language-model planner, executes the tool calls it
// requests through the registry, and feeds the results back until the
// planner answers without tool calls or the turn budget runs out.
//
// Recoverable tool failures (conflicts, missing paths, bad arguments) are
// returned to the planner as tool results so it can correct itself on the
// next turn. Only authentication failures, exhausted transient retries,
// and the turn budget terminate a run.
package agent

import (
	"context"

	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
)

// TaskType selects the prompt template seeded into a run.
type TaskType string

// The task catalog mirrors the session boundary's task picker.
const (
	TaskFeature    TaskType = "feature"
	TaskDebug      TaskType = "debug"
	TaskWriteFile  TaskType = "file_write"
	TaskReadFile   TaskType = "file_read"
	TaskDeleteFile TaskType = "file_delete"
)

// Task is one user request against the selected repository.
type Task struct {
	Type        TaskType
	Instruction string
	// IssueNumber is the issue to fix for debug tasks; ignored otherwise.
	IssueNumber int
}

// Message is one provider-neutral conversation entry.
type Message struct {
	Role       string // "user", "assistant", or "tool"
	Content    string
	ToolCalls  []toolcall.ToolCall // assistant messages only
	ToolCallID string              // tool messages only
}

// PlanRequest is everything a planner needs for one completion.
type PlanRequest struct {
	System   string
	Messages []Message
	Tools    []toolcall.Definition
}

// PlanResponse is the planner's decision: tool calls to execute, or a final
// text answer when ToolCalls is empty.
type PlanResponse struct {
	Text      string
	ToolCalls []toolcall.ToolCall
}

// Planner abstracts the LLM completion endpoint. Implementations live in
// the planner subpackages, one per provider SDK.
type Planner interface {
	Plan(ctx context.Context, req PlanRequest) (*PlanResponse, error)
}

// Outcome is a run's terminal state.
type Outcome string

const (
	OutcomeCompleted Outcome = "completed"
	OutcomeAborted   Outcome = "aborted"
)

// Change records one successfully applied repository mutation, for the
// run's audit trail.
type Change struct {
	Tool string
	Args map[string]any
	SHA  string
}

// RunResult is a run's terminal report. Applied lists exactly the mutating
// tool calls that succeeded, in execution order, whether the run completed
// or aborted partway.
type RunResult struct {
	Outcome     Outcome
	Summary     string // planner's final answer when completed
	AbortReason string // populated when aborted
	Cause       error  // underlying error for aborted runs, when any
	Applied     []Change
	Turns       int
}
