/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package githubops implements the repository operation catalog: narrow,
// credential-scoped wrappers around the GitHub REST API that the tool
// registry exposes to the planner. File mutations use content SHAs for
// optimistic concurrency; a stale SHA surfaces as ConflictError rather than
// silently clobbering the remote file.
package githubops

import (
	"context"
	"fmt"
	"time"

	"github.com/chainguard-dev/clog"
	"github.com/google/go-github/v84/github"

	"github.com/danish296/KickStart-Agent-for-GitHub/githubops/ghretry"
)

// Source supplies the per-session GitHub client and target repository.
// Client is re-acquired on every call so that a disconnect mid-run fails
// the next operation with AuthError instead of continuing on a discarded
// token.
type Source interface {
	Client(ctx context.Context) (*github.Client, error)
	Repository() (owner, repo string, err error)
}

// FileContent is a decoded repository file plus its content SHA.
type FileContent struct {
	Path    string
	Content string
	SHA     string
}

// CommitResult reports a file mutation: the new content SHA (empty for
// deletions) and the commit that carried it.
type CommitResult struct {
	Path      string
	SHA       string
	CommitSHA string
}

// TreeEntry is one blob path in the repository tree.
type TreeEntry struct {
	Path string
	Size int
}

// CodeMatch is one search hit.
type CodeMatch struct {
	Path    string
	HTMLURL string
}

// PullRequest identifies a created pull request.
type PullRequest struct {
	Number int
	URL    string
}

// Issue is the subset of issue data the debug task needs.
type Issue struct {
	Number int
	Title  string
	Body   string
}

// Operations is the fixed catalog of repository operations, bound to one
// session's credential. The catalog itself is immutable; all mutability
// lives behind the Source.
type Operations struct {
	source      Source
	retryConfig ghretry.Config
	callTimeout time.Duration
}

// Option configures Operations.
type Option func(*Operations) error

// WithRetryConfig overrides the transient-error retry policy.
func WithRetryConfig(cfg ghretry.Config) Option {
	return func(o *Operations) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		o.retryConfig = cfg
		return nil
	}
}

// WithCallTimeout bounds each individual GitHub API call.
func WithCallTimeout(d time.Duration) Option {
	return func(o *Operations) error {
		if d <= 0 {
			return fmt.Errorf("call timeout must be positive, got %v", d)
		}
		o.callTimeout = d
		return nil
	}
}

// New creates the operation catalog for a credential source.
func New(source Source, opts ...Option) (*Operations, error) {
	if source == nil {
		return nil, fmt.Errorf("source cannot be nil")
	}
	o := &Operations{
		source:      source,
		retryConfig: ghretry.Default(),
		callTimeout: 30 * time.Second,
	}
	for _, opt := range opts {
		if err := opt(o); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return o, nil
}

// call runs one GitHub API call with the per-call timeout and the bounded
// transient retry policy, then classifies the failure.
func call[T any](ctx context.Context, o *Operations, operation, resource string, fn func(ctx context.Context, gh *github.Client, owner, repo string) (T, error)) (T, error) {
	var zero T

	owner, repo, err := o.source.Repository()
	if err != nil {
		return zero, err
	}

	return ghretry.Do(ctx, o.retryConfig, operation, isRetryable, func() (T, error) {
		gh, err := o.source.Client(ctx)
		if err != nil {
			return zero, err
		}
		callCtx, cancel := context.WithTimeout(ctx, o.callTimeout)
		defer cancel()

		result, err := fn(callCtx, gh, owner, repo)
		if err != nil {
			return zero, Classify(err, resource)
		}
		return result, nil
	})
}

// ReadFile returns the decoded content of path and its content SHA.
func (o *Operations) ReadFile(ctx context.Context, path string) (*FileContent, error) {
	return call(ctx, o, "read_file", path, func(ctx context.Context, gh *github.Client, owner, repo string) (*FileContent, error) {
		file, _, _, err := gh.Repositories.GetContents(ctx, owner, repo, path, nil)
		if err != nil {
			return nil, err
		}
		if file == nil {
			return nil, &NotFoundError{Resource: path + " (path is a directory)"}
		}
		content, err := file.GetContent()
		if err != nil {
			return nil, fmt.Errorf("decoding %s: %w", path, err)
		}
		return &FileContent{Path: path, Content: content, SHA: file.GetSHA()}, nil
	})
}

// CreateOrUpdateFile commits content to path on the given branch (default
// branch when empty). When expectedSHA is set it must match the remote
// file's current SHA or the call fails with ConflictError. When empty, the
// file's current SHA is looked up first; an absent file is created.
func (o *Operations) CreateOrUpdateFile(ctx context.Context, path, content, message, branch, expectedSHA string) (*CommitResult, error) {
	return call(ctx, o, "create_or_update_file", path, func(ctx context.Context, gh *github.Client, owner, repo string) (*CommitResult, error) {
		sha := expectedSHA
		if sha == "" {
			existing, _, resp, err := gh.Repositories.GetContents(ctx, owner, repo, path, &github.RepositoryContentGetOptions{Ref: branch})
			switch {
			case err == nil && existing != nil:
				sha = existing.GetSHA()
			case resp != nil && resp.StatusCode == 404:
				// New file.
			case err != nil:
				return nil, err
			}
		}

		opts := &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			Content: []byte(content),
		}
		if branch != "" {
			opts.Branch = github.Ptr(branch)
		}

		var written *github.RepositoryContentResponse
		var err error
		if sha == "" {
			written, _, err = gh.Repositories.CreateFile(ctx, owner, repo, path, opts)
		} else {
			opts.SHA = github.Ptr(sha)
			written, _, err = gh.Repositories.UpdateFile(ctx, owner, repo, path, opts)
		}
		if err != nil {
			if IsConflict(Classify(err, path)) {
				return nil, &ConflictError{Path: path, ExpectedSHA: sha}
			}
			return nil, err
		}

		clog.FromContext(ctx).With("path", path).With("sha", written.Content.GetSHA()).Info("Committed file")
		return &CommitResult{
			Path:      path,
			SHA:       written.Content.GetSHA(),
			CommitSHA: written.Commit.GetSHA(),
		}, nil
	})
}

// DeleteFile removes path in a single commit. expectedSHA is mandatory:
// deletion without a current content SHA is always rejected, either here or
// by GitHub as a ConflictError.
func (o *Operations) DeleteFile(ctx context.Context, path, message, expectedSHA string) (*CommitResult, error) {
	if expectedSHA == "" {
		return nil, fmt.Errorf("expected SHA is required to delete %s", path)
	}
	return call(ctx, o, "delete_file", path, func(ctx context.Context, gh *github.Client, owner, repo string) (*CommitResult, error) {
		deleted, _, err := gh.Repositories.DeleteFile(ctx, owner, repo, path, &github.RepositoryContentFileOptions{
			Message: github.Ptr(message),
			SHA:     github.Ptr(expectedSHA),
		})
		if err != nil {
			if IsConflict(Classify(err, path)) {
				return nil, &ConflictError{Path: path, ExpectedSHA: expectedSHA}
			}
			return nil, err
		}
		return &CommitResult{Path: path, CommitSHA: deleted.Commit.GetSHA()}, nil
	})
}

// ListTree returns every blob path in the default branch, in API order.
func (o *Operations) ListTree(ctx context.Context) ([]TreeEntry, error) {
	return call(ctx, o, "list_repository_files", "repository tree", func(ctx context.Context, gh *github.Client, owner, repo string) ([]TreeEntry, error) {
		repository, _, err := gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		tree, _, err := gh.Git.GetTree(ctx, owner, repo, repository.GetDefaultBranch(), true)
		if err != nil {
			return nil, err
		}
		var entries []TreeEntry
		for _, e := range tree.Entries {
			if e.GetType() != "blob" {
				continue
			}
			entries = append(entries, TreeEntry{Path: e.GetPath(), Size: e.GetSize()})
		}
		return entries, nil
	})
}

// SearchCode searches file contents within the target repository.
func (o *Operations) SearchCode(ctx context.Context, query string) ([]CodeMatch, error) {
	return call(ctx, o, "search_code", "code search", func(ctx context.Context, gh *github.Client, owner, repo string) ([]CodeMatch, error) {
		scoped := fmt.Sprintf("%s repo:%s/%s", query, owner, repo)
		result, _, err := gh.Search.Code(ctx, scoped, &github.SearchOptions{ListOptions: github.ListOptions{PerPage: 50}})
		if err != nil {
			return nil, err
		}
		var matches []CodeMatch
		for _, hit := range result.CodeResults {
			matches = append(matches, CodeMatch{Path: hit.GetPath(), HTMLURL: hit.GetHTMLURL()})
		}
		return matches, nil
	})
}

// CreateBranch creates branch off the default branch head.
func (o *Operations) CreateBranch(ctx context.Context, branch string) error {
	_, err := call(ctx, o, "create_branch", "branch "+branch, func(ctx context.Context, gh *github.Client, owner, repo string) (struct{}, error) {
		repository, _, err := gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return struct{}{}, err
		}
		base, _, err := gh.Git.GetRef(ctx, owner, repo, "heads/"+repository.GetDefaultBranch())
		if err != nil {
			return struct{}{}, err
		}
		_, _, err = gh.Git.CreateRef(ctx, owner, repo, github.CreateRef{
			Ref: "refs/heads/" + branch,
			SHA: base.Object.GetSHA(),
		})
		return struct{}{}, err
	})
	return err
}

// CreatePullRequest opens a PR from head into the default branch.
func (o *Operations) CreatePullRequest(ctx context.Context, title, body, head string) (*PullRequest, error) {
	return call(ctx, o, "create_pull_request", "pull request", func(ctx context.Context, gh *github.Client, owner, repo string) (*PullRequest, error) {
		repository, _, err := gh.Repositories.Get(ctx, owner, repo)
		if err != nil {
			return nil, err
		}
		pr, _, err := gh.PullRequests.Create(ctx, owner, repo, &github.NewPullRequest{
			Title: github.Ptr(title),
			Body:  github.Ptr(body),
			Head:  github.Ptr(head),
			Base:  github.Ptr(repository.GetDefaultBranch()),
		})
		if err != nil {
			return nil, err
		}
		return &PullRequest{Number: pr.GetNumber(), URL: pr.GetHTMLURL()}, nil
	})
}

// GetIssue fetches an issue's title and body.
func (o *Operations) GetIssue(ctx context.Context, number int) (*Issue, error) {
	return call(ctx, o, "get_issue_details", fmt.Sprintf("issue #%d", number), func(ctx context.Context, gh *github.Client, owner, repo string) (*Issue, error) {
		issue, _, err := gh.Issues.Get(ctx, owner, repo, number)
		if err != nil {
			return nil, err
		}
		return &Issue{Number: issue.GetNumber(), Title: issue.GetTitle(), Body: issue.GetBody()}, nil
	})
}
