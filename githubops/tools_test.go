/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
)

func newTestRegistry(t *testing.T, ops *Operations) *toolcall.Registry {
	t.Helper()
	r := toolcall.NewRegistry()
	if err := RegisterTools(r, ops); err != nil {
		t.Fatalf("RegisterTools() = %v", err)
	}
	return r
}

func TestRegisterToolsCatalog(t *testing.T) {
	r := newTestRegistry(t, newTestOps(t, newFakeContents()))

	var names []string
	mutating := map[string]bool{}
	for _, def := range r.Describe() {
		names = append(names, def.Name)
		mutating[def.Name] = def.Mutating
	}

	wantNames := []string{
		"list_repository_files",
		"read_file",
		"search_code",
		"create_or_update_file",
		"delete_file",
		"create_branch",
		"create_pull_request",
		"get_issue_details",
	}
	if diff := cmp.Diff(wantNames, names); diff != "" {
		t.Errorf("catalog order mismatch (-want +got):\n%s", diff)
	}

	for _, name := range []string{"create_or_update_file", "delete_file", "create_branch", "create_pull_request"} {
		if !mutating[name] {
			t.Errorf("%s should be marked mutating", name)
		}
	}
	for _, name := range []string{"list_repository_files", "read_file", "search_code", "get_issue_details"} {
		if mutating[name] {
			t.Errorf("%s should not be marked mutating", name)
		}
	}
}

func TestReadFileToolSurfacesSHA(t *testing.T) {
	fake := newFakeContents()
	sha := fake.put("main.go", "package main")
	r := newTestRegistry(t, newTestOps(t, fake))

	res := r.Invoke(context.Background(), toolcall.ToolCall{
		ID:   "call-1",
		Name: "read_file",
		Args: map[string]any{"path": "main.go"},
	})
	if res.Failed() {
		t.Fatalf("read_file failed: %v", res.Err)
	}
	if res.SHA != sha {
		t.Errorf("Result.SHA = %q, want %q", res.SHA, sha)
	}
	if res.Payload["content"] != "package main" {
		t.Errorf("payload content = %v", res.Payload["content"])
	}
}

func TestUpdateToolConflictCarriesHint(t *testing.T) {
	fake := newFakeContents()
	fake.put("app.txt", "v1")
	r := newTestRegistry(t, newTestOps(t, fake))

	res := r.Invoke(context.Background(), toolcall.ToolCall{
		ID:   "call-2",
		Name: "create_or_update_file",
		Args: map[string]any{
			"path":           "app.txt",
			"content":        "v2",
			"commit_message": "update app",
			"expected_sha":   "sha-stale",
		},
	})
	if !res.Failed() {
		t.Fatal("stale update succeeded, want conflict")
	}
	if !IsConflict(res.Err) {
		t.Fatalf("Err = %v, want ConflictError", res.Err)
	}
	hint, _ := res.Payload["hint"].(string)
	if hint == "" {
		t.Error("conflict payload has no recovery hint for the planner")
	}
}

func TestDeleteToolRequiresSHAInSchema(t *testing.T) {
	r := newTestRegistry(t, newTestOps(t, newFakeContents()))

	// expected_sha is a required parameter, so the call must fail validation
	// before the handler ever runs.
	res := r.Invoke(context.Background(), toolcall.ToolCall{
		ID:   "call-3",
		Name: "delete_file",
		Args: map[string]any{"path": "a.txt", "commit_message": "remove"},
	})
	if !res.Failed() {
		t.Fatal("delete without expected_sha succeeded, want validation failure")
	}
	var verr *toolcall.ValidationError
	if !errors.As(res.Err, &verr) {
		t.Fatalf("Err = %T, want ValidationError", res.Err)
	}
}

func TestGetIssueToolCoercesInteger(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /repos/octo/demo/issues/42", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"number":42,"title":"Crash on empty input","body":"..."}`)
	})
	r := newTestRegistry(t, newTestOps(t, mux))

	// JSON numbers arrive as float64; the integer parameter accepts the
	// integral value and rejects the fractional one.
	res := r.Invoke(context.Background(), toolcall.ToolCall{
		ID:   "call-4",
		Name: "get_issue_details",
		Args: map[string]any{"issue_number": float64(42)},
	})
	if res.Failed() {
		t.Fatalf("get_issue_details(42) failed: %v", res.Err)
	}
	if res.Payload["title"] != "Crash on empty input" {
		t.Errorf("payload title = %v", res.Payload["title"])
	}

	res = r.Invoke(context.Background(), toolcall.ToolCall{
		ID:   "call-5",
		Name: "get_issue_details",
		Args: map[string]any{"issue_number": 42.5},
	})
	if !res.Failed() {
		t.Error("fractional issue_number passed validation")
	}
}
