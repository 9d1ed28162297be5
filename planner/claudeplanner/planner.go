/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package claudeplanner adapts the Anthropic Messages API to the agent's
// Planner interface. Transient API errors (rate limits, overload) are
// retried with bounded backoff before surfacing.
package claudeplanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/chainguard-dev/clog"

	"github.com/danish296/KickStart-Agent-for-GitHub/agent"
	"github.com/danish296/KickStart-Agent-for-GitHub/githubops/ghretry"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
)

const defaultModel = "claude-sonnet-4-5"

// Planner implements agent.Planner over the Anthropic SDK.
type Planner struct {
	client      anthropic.Client
	model       string
	maxTokens   int64
	temperature float64
	retryConfig ghretry.Config
}

// Option configures a Planner.
type Option func(*Planner) error

// WithModel overrides the model name.
func WithModel(model string) Option {
	return func(p *Planner) error {
		if !strings.HasPrefix(model, "claude-") {
			return fmt.Errorf("model %q does not appear to be a Claude model", model)
		}
		p.model = model
		return nil
	}
}

// WithMaxTokens sets the response token limit.
func WithMaxTokens(tokens int64) Option {
	return func(p *Planner) error {
		if tokens <= 0 {
			return fmt.Errorf("max tokens must be positive, got %d", tokens)
		}
		p.maxTokens = tokens
		return nil
	}
}

// WithTemperature sets the sampling temperature (0.0 to 1.0).
func WithTemperature(temp float64) Option {
	return func(p *Planner) error {
		if temp < 0.0 || temp > 1.0 {
			return fmt.Errorf("temperature must be between 0.0 and 1.0, got %f", temp)
		}
		p.temperature = temp
		return nil
	}
}

// WithRetryConfig overrides the transient-error retry policy.
func WithRetryConfig(cfg ghretry.Config) Option {
	return func(p *Planner) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		p.retryConfig = cfg
		return nil
	}
}

// New creates a Claude-backed planner.
func New(client anthropic.Client, opts ...Option) (*Planner, error) {
	p := &Planner{
		client:      client,
		model:       defaultModel,
		maxTokens:   8192,
		temperature: 0.1,
		retryConfig: ghretry.Default(),
	}
	for _, opt := range opts {
		if err := opt(p); err != nil {
			return nil, fmt.Errorf("applying option: %w", err)
		}
	}
	return p, nil
}

// Plan sends the conversation and returns the model's decision.
func (p *Planner) Plan(ctx context.Context, req agent.PlanRequest) (*agent.PlanResponse, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(p.model),
		MaxTokens:   p.maxTokens,
		Temperature: anthropic.Float(p.temperature),
		Messages:    toMessages(req.Messages),
		Tools:       toTools(req.Tools),
	}
	if req.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.System}}
	}

	message, err := ghretry.Do(ctx, p.retryConfig, "claude_plan", isRetryable, func() (*anthropic.Message, error) {
		return p.client.Messages.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("calling Claude: %w", err)
	}

	resp := &agent.PlanResponse{}
	for _, block := range message.Content {
		switch b := block.AsAny().(type) {
		case anthropic.TextBlock:
			resp.Text += b.Text
		case anthropic.ToolUseBlock:
			var args map[string]any
			if err := json.Unmarshal([]byte(b.JSON.Input.Raw()), &args); err != nil {
				return nil, fmt.Errorf("parsing tool input for %s: %w", b.Name, err)
			}
			resp.ToolCalls = append(resp.ToolCalls, toolcall.ToolCall{ID: b.ID, Name: b.Name, Args: args})
		}
	}

	clog.FromContext(ctx).
		With("tool_calls", len(resp.ToolCalls)).
		With("input_tokens", message.Usage.InputTokens).
		With("output_tokens", message.Usage.OutputTokens).
		Info("Claude plan received")
	return resp, nil
}

// toMessages converts the provider-neutral conversation to Anthropic form.
func toMessages(messages []agent.Message) []anthropic.MessageParam {
	out := make([]anthropic.MessageParam, 0, len(messages))
	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			out = append(out, anthropic.NewUserMessage(
				anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, false),
			))
		case "assistant":
			blocks := []anthropic.ContentBlockParamUnion{}
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, tc := range msg.ToolCalls {
				blocks = append(blocks, anthropic.ContentBlockParamUnion{
					OfToolUse: &anthropic.ToolUseBlockParam{
						ID:    tc.ID,
						Name:  tc.Name,
						Input: tc.Args,
					},
				})
			}
			out = append(out, anthropic.MessageParam{
				Role:    anthropic.MessageParamRoleAssistant,
				Content: blocks,
			})
		default:
			out = append(out, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))
		}
	}
	return out
}

// toTools converts registry definitions to Anthropic tool params.
func toTools(defs []toolcall.Definition) []anthropic.ToolUnionParam {
	out := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		properties := map[string]any{}
		var required []string
		for _, param := range def.Parameters {
			properties[param.Name] = map[string]any{
				"type":        param.Type,
				"description": param.Description,
			}
			if param.Required {
				required = append(required, param.Name)
			}
		}
		out = append(out, anthropic.ToolUnionParam{
			OfTool: &anthropic.ToolParam{
				Name:        def.Name,
				Description: anthropic.String(def.Description),
				InputSchema: anthropic.ToolInputSchemaParam{
					Type:       "object",
					Properties: properties,
					Required:   required,
				},
			},
		})
	}
	return out
}

// isRetryable reports whether the Anthropic API error is transient.
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 503, 504, 529:
			return true
		}
	}
	return false
}
