/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package toolcall

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func echoTool(name string, mutating bool, parameters ...Parameter) Tool {
	return Tool{
		Def: Definition{
			Name:        name,
			Description: "test tool " + name,
			Parameters:  parameters,
			Mutating:    mutating,
		},
		Handler: func(_ context.Context, call ToolCall) (map[string]any, error) {
			return map[string]any{"echo": call.Name}, nil
		},
	}
}

func TestRegisterRejectsDuplicatesAndBadDefs(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("read_file", false)); err != nil {
		t.Fatalf("Register: %v", err)
	}
	if err := r.Register(echoTool("read_file", false)); err == nil {
		t.Error("duplicate registration should fail")
	}
	if err := r.Register(Tool{Def: Definition{Name: "no_handler"}}); err == nil {
		t.Error("registration without handler should fail")
	}
	if err := r.Register(echoTool("bad_param", false, Parameter{Name: "x", Type: "object"})); err == nil {
		t.Error("unsupported parameter type should fail")
	}
}

func TestDescribeIsStableRegistrationOrder(t *testing.T) {
	r := NewRegistry()
	names := []string{"list_repository_files", "read_file", "create_or_update_file", "delete_file"}
	for _, name := range names {
		if err := r.Register(echoTool(name, false)); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}

	for range 3 {
		var got []string
		for _, def := range r.Describe() {
			got = append(got, def.Name)
		}
		if diff := cmp.Diff(names, got); diff != "" {
			t.Fatalf("Describe() order mismatch (-want +got):\n%s", diff)
		}
	}
}

func TestInvokeUnknownTool(t *testing.T) {
	r := NewRegistry()
	res := r.Invoke(context.Background(), ToolCall{ID: "t1", Name: "nope"})

	if !res.Failed() {
		t.Fatal("unknown tool should fail")
	}
	var verr *ValidationError
	if !errors.As(res.Err, &verr) {
		t.Fatalf("Err = %v, want ValidationError", res.Err)
	}
	if msg, _ := res.Payload["error"].(string); !strings.Contains(msg, "unknown tool") {
		t.Errorf("Payload = %v, want unknown tool error", res.Payload)
	}
}

func TestInvokeValidation(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool("read_file", false,
		Parameter{Name: "path", Type: "string", Required: true},
		Parameter{Name: "max_bytes", Type: "integer"},
	)); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name    string
		args    map[string]any
		wantErr string
	}{{
		name:    "missing required",
		args:    map[string]any{},
		wantErr: "path parameter is required",
	}, {
		name:    "wrong type",
		args:    map[string]any{"path": 12.0},
		wantErr: "path parameter must be a string",
	}, {
		name:    "unexpected argument",
		args:    map[string]any{"path": "a.go", "branch": "main"},
		wantErr: `unexpected parameter "branch"`,
	}, {
		name:    "fractional integer",
		args:    map[string]any{"path": "a.go", "max_bytes": 1.5},
		wantErr: "max_bytes parameter must be a integer",
	}, {
		name: "valid with optional integer",
		args: map[string]any{"path": "a.go", "max_bytes": float64(1024)},
	}}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Invoke(context.Background(), ToolCall{ID: "t1", Name: "read_file", Args: tt.args})
			if tt.wantErr == "" {
				if res.Failed() {
					t.Fatalf("Invoke failed: %v", res.Err)
				}
				return
			}
			var verr *ValidationError
			if !errors.As(res.Err, &verr) {
				t.Fatalf("Err = %v, want ValidationError", res.Err)
			}
			if !strings.Contains(verr.Reason, tt.wantErr) {
				t.Errorf("Reason = %q, want containing %q", verr.Reason, tt.wantErr)
			}
		})
	}
}

func TestInvokeHandlerErrorBecomesPayload(t *testing.T) {
	r := NewRegistry()
	boom := errors.New("remote exploded")
	if err := r.Register(Tool{
		Def: Definition{Name: "delete_file", Mutating: true},
		Handler: func(context.Context, ToolCall) (map[string]any, error) {
			return nil, boom
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := r.Invoke(context.Background(), ToolCall{ID: "t2", Name: "delete_file"})
	if !errors.Is(res.Err, boom) {
		t.Fatalf("Err = %v, want wrapped handler error", res.Err)
	}
	if msg, _ := res.Payload["error"].(string); !strings.Contains(msg, "remote exploded") {
		t.Errorf("Payload = %v, want handler error rendered", res.Payload)
	}
}

func TestInvokeExtractsSHA(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(Tool{
		Def: Definition{Name: "create_or_update_file", Mutating: true},
		Handler: func(context.Context, ToolCall) (map[string]any, error) {
			return map[string]any{"sha": "deadbeef", "path": "LICENSE"}, nil
		},
	}); err != nil {
		t.Fatalf("Register: %v", err)
	}

	res := r.Invoke(context.Background(), ToolCall{ID: "t3", Name: "create_or_update_file"})
	if res.Failed() {
		t.Fatalf("Invoke failed: %v", res.Err)
	}
	if res.SHA != "deadbeef" {
		t.Errorf("SHA = %q, want deadbeef", res.SHA)
	}
}
