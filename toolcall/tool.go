/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import "context"

// ToolCall is a single tool invocation requested by the planner.
type ToolCall struct {
	ID   string
	Name string
	Args map[string]any
}

// Parameter describes one tool parameter.
type Parameter struct {
	Name        string
	Type        string // "string", "integer", "number", "boolean"
	Description string
	Required    bool
}

// Definition describes a tool: its name, purpose, and parameter schema.
// Mutating marks tools whose successful calls commit changes to the
// repository; the orchestrator records those in the run's audit trail.
type Definition struct {
	Name        string
	Description string
	Parameters  []Parameter
	Mutating    bool
}

// Handler executes a validated tool call. The returned payload is serialized
// back to the planner. A non-nil error marks the result failed; the registry
// renders it into the payload so the planner sees it too.
type Handler func(ctx context.Context, call ToolCall) (map[string]any, error)

// Tool pairs a definition with its handler.
type Tool struct {
	Def     Definition
	Handler Handler
}

// Result is the outcome of one tool call.
type Result struct {
	Call    ToolCall
	Payload map[string]any
	Err     error  // non-nil on failure; carries the operation's error class
	SHA     string // content hash when the call touched a file
}

// Failed reports whether the call did not complete successfully.
func (r Result) Failed() bool {
	return r.Err != nil
}
