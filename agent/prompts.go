/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

package agent

import (
	"fmt"

	"github.com/danish296/KickStart-Agent-for-GitHub/prompt"
)

var systemPrompt = prompt.Must(prompt.New(`You are an expert AI software developer operating on the GitHub repository {{repository}} through the provided tools.

Rules:
- Every file read returns a sha. When you modify or delete a file you have read, pass that sha as expected_sha. If a call fails with a conflict, read the file again and retry with the fresh sha.
- Make one change per commit with a clear conventional commit message.
- When the task is done, reply without calling any tool: a short summary of what you did and why.
- If you cannot complete the task, say so plainly and explain what blocked you.`))

var featurePrompt = prompt.Must(prompt.New(`Implement a new feature in this repository.

Feature description: {{instruction}}

Follow these steps precisely:
1. Create a branch named 'feature/' followed by a short descriptive name, using create_branch.
2. Explore the code with list_repository_files (and read_file where needed) to decide where the change belongs.
3. Implement the feature with create_or_update_file on that branch. Commit messages MUST be conventional commits starting with 'feat:'.
4. Open a pull request for the branch with create_pull_request. The title and body must clearly describe the feature.
5. Your final answer must confirm the pull request, including its number and URL.`))

var debugPrompt = prompt.Must(prompt.New(`Debug and fix an issue in this repository.

{{issue}}

Follow these steps precisely:
1. Fetch the issue with get_issue_details to understand the problem.
2. Create a branch named exactly 'fix/issue-{{number}}' using create_branch.
3. Explore the repository and read the most relevant files.
4. Apply the fix with create_or_update_file on that branch. The commit message MUST be 'fix: Resolve issue #{{number}}'.
5. Open a pull request titled 'Fix: Resolve issue #{{number}}' with create_pull_request.
6. Your final answer must confirm the pull request, including its number and URL.`))

var writePrompt = prompt.Must(prompt.New(`Create or update a file in this repository as described below. Use create_or_update_file, and read the file first if it may already exist so the update carries the current sha.

{{instruction}}`))

var readPrompt = prompt.Must(prompt.New(`Read the file described below and present its content as your final answer.

{{instruction}}`))

var deletePrompt = prompt.Must(prompt.New(`Delete the file described below. Read it first to obtain its current sha, then call delete_file with that sha.

{{instruction}}`))

// issueContext is rendered as YAML into the debug prompt.
type issueContext struct {
	IssueNumber int    `yaml:"issue_number"`
	Guidance    string `yaml:"user_guidance"`
}

// buildSystemPrompt renders the system instructions for a repository.
func buildSystemPrompt(repository string) (string, error) {
	p, err := systemPrompt.BindText("repository", repository)
	if err != nil {
		return "", err
	}
	return p.Build()
}

// buildTaskPrompt renders the seed user message for a task.
func buildTaskPrompt(task Task) (string, error) {
	switch task.Type {
	case TaskFeature:
		p, err := featurePrompt.BindText("instruction", task.Instruction)
		if err != nil {
			return "", err
		}
		return p.Build()
	case TaskDebug:
		if task.IssueNumber <= 0 {
			return "", fmt.Errorf("debug task requires a positive issue number, got %d", task.IssueNumber)
		}
		guidance := task.Instruction
		if guidance == "" {
			guidance = "None provided."
		}
		p, err := debugPrompt.BindYAML("issue", issueContext{IssueNumber: task.IssueNumber, Guidance: guidance})
		if err != nil {
			return "", err
		}
		p, err = p.BindText("number", fmt.Sprintf("%d", task.IssueNumber))
		if err != nil {
			return "", err
		}
		return p.Build()
	case TaskWriteFile:
		p, err := writePrompt.BindText("instruction", task.Instruction)
		if err != nil {
			return "", err
		}
		return p.Build()
	case TaskReadFile:
		p, err := readPrompt.BindText("instruction", task.Instruction)
		if err != nil {
			return "", err
		}
		return p.Build()
	case TaskDeleteFile:
		p, err := deletePrompt.BindText("instruction", task.Instruction)
		if err != nil {
			return "", err
		}
		return p.Build()
	default:
		return "", fmt.Errorf("unknown task type %q", task.Type)
	}
}
