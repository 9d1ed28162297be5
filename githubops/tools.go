/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package githubops

import (
	"context"
	"strings"

	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall/params"
)

// RegisterTools adds the full operation catalog to the registry, in the
// order the planner is told about it.
func RegisterTools(r *toolcall.Registry, ops *Operations) error {
	tools := []toolcall.Tool{
		listFilesTool(ops),
		readFileTool(ops),
		searchCodeTool(ops),
		createOrUpdateFileTool(ops),
		deleteFileTool(ops),
		createBranchTool(ops),
		createPullRequestTool(ops),
		getIssueTool(ops),
	}
	for _, t := range tools {
		if err := r.Register(t); err != nil {
			return err
		}
	}
	return nil
}

func listFilesTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "list_repository_files",
			Description: "Lists every file in the repository recursively. Use this first to understand the project layout.",
		},
		Handler: func(ctx context.Context, _ toolcall.ToolCall) (map[string]any, error) {
			entries, err := ops.ListTree(ctx)
			if err != nil {
				return nil, err
			}
			paths := make([]string, 0, len(entries))
			for _, e := range entries {
				paths = append(paths, e.Path)
			}
			return map[string]any{"files": strings.Join(paths, "\n"), "count": len(paths)}, nil
		},
	}
}

func readFileTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "read_file",
			Description: "Reads the content of a file. The returned sha identifies the version you read; pass it as expected_sha when you later modify or delete this file.",
			Parameters: []toolcall.Parameter{
				{Name: "path", Type: "string", Description: "Path of the file within the repository", Required: true},
			},
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			path, err := params.Extract[string](call.Args, "path")
			if err != nil {
				return params.Error("%s", err), err
			}
			file, err := ops.ReadFile(ctx, path)
			if err != nil {
				return nil, err
			}
			return map[string]any{"path": file.Path, "content": file.Content, "sha": file.SHA}, nil
		},
	}
}

func searchCodeTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "search_code",
			Description: "Searches file contents in the repository and returns matching file paths.",
			Parameters: []toolcall.Parameter{
				{Name: "query", Type: "string", Description: "Search terms", Required: true},
			},
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			query, err := params.Extract[string](call.Args, "query")
			if err != nil {
				return params.Error("%s", err), err
			}
			matches, err := ops.SearchCode(ctx, query)
			if err != nil {
				return nil, err
			}
			paths := make([]string, 0, len(matches))
			for _, m := range matches {
				paths = append(paths, m.Path)
			}
			return map[string]any{"matches": paths, "count": len(paths)}, nil
		},
	}
}

func createOrUpdateFileTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "create_or_update_file",
			Description: "Creates a new file or updates an existing one in a single commit. When updating a file you previously read, pass its sha as expected_sha; if the file changed remotely in the meantime the call fails with a conflict and you must read the file again for a fresh sha.",
			Parameters: []toolcall.Parameter{
				{Name: "path", Type: "string", Description: "Path of the file within the repository", Required: true},
				{Name: "content", Type: "string", Description: "Full new content of the file", Required: true},
				{Name: "commit_message", Type: "string", Description: "Commit message for the change", Required: true},
				{Name: "branch", Type: "string", Description: "Branch to commit to; defaults to the default branch"},
				{Name: "expected_sha", Type: "string", Description: "Content sha from a prior read of this file"},
			},
			Mutating: true,
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			path, err := params.Extract[string](call.Args, "path")
			if err != nil {
				return params.Error("%s", err), err
			}
			content, err := params.Extract[string](call.Args, "content")
			if err != nil {
				return params.Error("%s", err), err
			}
			message, err := params.Extract[string](call.Args, "commit_message")
			if err != nil {
				return params.Error("%s", err), err
			}
			branch, err := params.ExtractOptional(call.Args, "branch", "")
			if err != nil {
				return params.Error("%s", err), err
			}
			expectedSHA, err := params.ExtractOptional(call.Args, "expected_sha", "")
			if err != nil {
				return params.Error("%s", err), err
			}

			result, err := ops.CreateOrUpdateFile(ctx, path, content, message, branch, expectedSHA)
			if err != nil {
				if IsConflict(err) {
					return params.ErrorWithContext(err, map[string]any{
						"hint": "read_file " + path + " again to obtain the current sha, then retry",
					}), err
				}
				return nil, err
			}
			return map[string]any{"path": result.Path, "sha": result.SHA, "commit": result.CommitSHA}, nil
		},
	}
}

func deleteFileTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "delete_file",
			Description: "Deletes a file in a single commit. Requires the file's current sha from read_file; a stale sha fails with a conflict.",
			Parameters: []toolcall.Parameter{
				{Name: "path", Type: "string", Description: "Path of the file within the repository", Required: true},
				{Name: "commit_message", Type: "string", Description: "Commit message for the deletion", Required: true},
				{Name: "expected_sha", Type: "string", Description: "Content sha from a prior read of this file", Required: true},
			},
			Mutating: true,
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			path, err := params.Extract[string](call.Args, "path")
			if err != nil {
				return params.Error("%s", err), err
			}
			message, err := params.Extract[string](call.Args, "commit_message")
			if err != nil {
				return params.Error("%s", err), err
			}
			expectedSHA, err := params.Extract[string](call.Args, "expected_sha")
			if err != nil {
				return params.Error("%s", err), err
			}

			result, err := ops.DeleteFile(ctx, path, message, expectedSHA)
			if err != nil {
				if IsConflict(err) {
					return params.ErrorWithContext(err, map[string]any{
						"hint": "read_file " + path + " again to obtain the current sha, then retry",
					}), err
				}
				return nil, err
			}
			return map[string]any{"path": path, "deleted": true, "commit": result.CommitSHA}, nil
		},
	}
}

func createBranchTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "create_branch",
			Description: "Creates a new branch from the head of the default branch.",
			Parameters: []toolcall.Parameter{
				{Name: "branch_name", Type: "string", Description: "Name of the branch to create", Required: true},
			},
			Mutating: true,
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			branch, err := params.Extract[string](call.Args, "branch_name")
			if err != nil {
				return params.Error("%s", err), err
			}
			if err := ops.CreateBranch(ctx, branch); err != nil {
				return nil, err
			}
			return map[string]any{"branch": branch, "created": true}, nil
		},
	}
}

func createPullRequestTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "create_pull_request",
			Description: "Opens a pull request from a head branch into the default branch.",
			Parameters: []toolcall.Parameter{
				{Name: "title", Type: "string", Description: "Pull request title", Required: true},
				{Name: "body", Type: "string", Description: "Pull request description", Required: true},
				{Name: "head_branch", Type: "string", Description: "Branch containing the changes", Required: true},
			},
			Mutating: true,
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			title, err := params.Extract[string](call.Args, "title")
			if err != nil {
				return params.Error("%s", err), err
			}
			body, err := params.Extract[string](call.Args, "body")
			if err != nil {
				return params.Error("%s", err), err
			}
			head, err := params.Extract[string](call.Args, "head_branch")
			if err != nil {
				return params.Error("%s", err), err
			}
			pr, err := ops.CreatePullRequest(ctx, title, body, head)
			if err != nil {
				return nil, err
			}
			return map[string]any{"number": pr.Number, "url": pr.URL}, nil
		},
	}
}

func getIssueTool(ops *Operations) toolcall.Tool {
	return toolcall.Tool{
		Def: toolcall.Definition{
			Name:        "get_issue_details",
			Description: "Fetches the title and body of a GitHub issue.",
			Parameters: []toolcall.Parameter{
				{Name: "issue_number", Type: "integer", Description: "Number of the issue", Required: true},
			},
		},
		Handler: func(ctx context.Context, call toolcall.ToolCall) (map[string]any, error) {
			number, err := params.Extract[int](call.Args, "issue_number")
			if err != nil {
				return params.Error("%s", err), err
			}
			issue, err := ops.GetIssue(ctx, number)
			if err != nil {
				return nil, err
			}
			return map[string]any{"number": issue.Number, "title": issue.Title, "body": issue.Body}, nil
		},
	}
}
