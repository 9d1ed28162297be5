/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import (
	"context"
	"fmt"

	"github.com/chainguard-dev/clog"

	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall/params"
)

// ValidationError reports a tool call that failed schema validation: an
// unknown tool name, a missing required argument, or a wrong argument type.
type ValidationError struct {
	Tool   string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid call to %q: %s", e.Tool, e.Reason)
}

// Registry holds the process-wide tool catalog. Tools are registered at
// startup and the registry is read-only afterwards, so concurrent runs can
// share it without locking.
type Registry struct {
	tools map[string]Tool
	order []string
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{tools: make(map[string]Tool)}
}

// Register adds a tool to the catalog. Registration order is preserved and
// is the order Describe presents tools to the planner.
func (r *Registry) Register(t Tool) error {
	if t.Def.Name == "" {
		return fmt.Errorf("tool definition has no name")
	}
	if t.Handler == nil {
		return fmt.Errorf("tool %q has no handler", t.Def.Name)
	}
	if _, exists := r.tools[t.Def.Name]; exists {
		return fmt.Errorf("tool %q already registered", t.Def.Name)
	}
	for _, p := range t.Def.Parameters {
		switch p.Type {
		case "string", "integer", "number", "boolean":
		default:
			return fmt.Errorf("tool %q parameter %q has unsupported type %q", t.Def.Name, p.Name, p.Type)
		}
	}
	r.tools[t.Def.Name] = t
	r.order = append(r.order, t.Def.Name)
	return nil
}

// Describe returns all tool definitions in registration order.
func (r *Registry) Describe() []Definition {
	defs := make([]Definition, 0, len(r.order))
	for _, name := range r.order {
		defs = append(defs, r.tools[name].Def)
	}
	return defs
}

// Lookup returns the definition for a tool name.
func (r *Registry) Lookup(name string) (Definition, bool) {
	t, ok := r.tools[name]
	return t.Def, ok
}

// Invoke validates the call against the tool's schema and executes it.
// Schema violations never reach the handler: they produce a failed Result
// whose payload explains the problem to the planner.
func (r *Registry) Invoke(ctx context.Context, call ToolCall) Result {
	log := clog.FromContext(ctx)

	tool, ok := r.tools[call.Name]
	if !ok {
		log.With("tool", call.Name).Warn("Planner requested unknown tool")
		verr := &ValidationError{Tool: call.Name, Reason: "unknown tool"}
		return Result{Call: call, Err: verr, Payload: params.Error("unknown tool: %q", call.Name)}
	}

	if verr := validateArgs(tool.Def, call.Args); verr != nil {
		log.With("tool", call.Name).With("reason", verr.Reason).Warn("Tool call failed validation")
		return Result{Call: call, Err: verr, Payload: params.Error("%s", verr.Reason)}
	}

	payload, err := tool.Handler(ctx, call)
	if err != nil {
		if payload == nil {
			payload = params.Error("%s", err)
		}
		return Result{Call: call, Err: err, Payload: payload}
	}

	res := Result{Call: call, Payload: payload}
	if sha, ok := payload["sha"].(string); ok {
		res.SHA = sha
	}
	return res
}

// validateArgs checks required fields, argument names, and JSON types.
func validateArgs(def Definition, args map[string]any) *ValidationError {
	known := make(map[string]Parameter, len(def.Parameters))
	for _, p := range def.Parameters {
		known[p.Name] = p
		if !p.Required {
			continue
		}
		if _, ok := args[p.Name]; !ok {
			return &ValidationError{Tool: def.Name, Reason: fmt.Sprintf("%s parameter is required", p.Name)}
		}
	}

	for name, value := range args {
		p, ok := known[name]
		if !ok {
			return &ValidationError{Tool: def.Name, Reason: fmt.Sprintf("unexpected parameter %q", name)}
		}
		if !typeMatches(p.Type, value) {
			return &ValidationError{Tool: def.Name, Reason: fmt.Sprintf("%s parameter must be a %s, got %T", name, p.Type, value)}
		}
	}
	return nil
}

func typeMatches(declared string, value any) bool {
	switch declared {
	case "string":
		_, ok := value.(string)
		return ok
	case "boolean":
		_, ok := value.(bool)
		return ok
	case "number":
		_, ok := value.(float64)
		return ok
	case "integer":
		// JSON decoding yields float64; accept integral values only.
		f, ok := value.(float64)
		return ok && f == float64(int64(f))
	}
	return false
}
