/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// Package openaiplanner adapts the OpenAI chat completions API to the
// agent's Planner interface. It mirrors claudeplanner so deployments can
// switch providers through configuration alone.
package openaiplanner

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"

	"github.com/danish296/KickStart-Agent-for-GitHub/agent"
	"github.com/danish296/KickStart-Agent-for-GitHub/githubops/ghretry"
	"github.com/danish296/KickStart-Agent-for-GitHub/toolcall"
)

const defaultModel = "gpt-4o"

// Planner implements agent.Planner over the OpenAI SDK.
type Planner struct {
	client      openai.Client
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
		if model == "" {
			return errors.New("model cannot be empty")
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

// WithTemperature sets the sampling temperature.
func WithTemperature(temp float64) Option {
	return func(p *Planner) error {
		if temp < 0.0 || temp > 2.0 {
			return fmt.Errorf("temperature must be between 0.0 and 2.0, got %f", temp)
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

// New creates an OpenAI-backed planner.
func New(client openai.Client, opts ...Option) (*Planner, error) {
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
	messages, err := toMessages(req.System, req.Messages)
	if err != nil {
		return nil, err
	}

	params := openai.ChatCompletionNewParams{
		Model:       openai.ChatModel(p.model),
		Messages:    messages,
		MaxTokens:   openai.Int(p.maxTokens),
		Temperature: openai.Float(p.temperature),
		Tools:       toTools(req.Tools),
	}

	completion, err := ghretry.Do(ctx, p.retryConfig, "openai_plan", isRetryable, func() (*openai.ChatCompletion, error) {
		return p.client.Chat.Completions.New(ctx, params)
	})
	if err != nil {
		return nil, fmt.Errorf("calling OpenAI: %w", err)
	}
	if len(completion.Choices) == 0 {
		return nil, errors.New("no response choices returned")
	}

	choice := completion.Choices[0]
	resp := &agent.PlanResponse{Text: choice.Message.Content}
	for _, tc := range choice.Message.ToolCalls {
		var args map[string]any
		if err := json.Unmarshal([]byte(tc.Function.Arguments), &args); err != nil {
			return nil, fmt.Errorf("parsing tool arguments for %s: %w", tc.Function.Name, err)
		}
		resp.ToolCalls = append(resp.ToolCalls, toolcall.ToolCall{ID: tc.ID, Name: tc.Function.Name, Args: args})
	}

	clog.FromContext(ctx).
		With("tool_calls", len(resp.ToolCalls)).
		With("input_tokens", completion.Usage.PromptTokens).
		With("output_tokens", completion.Usage.CompletionTokens).
		Info("OpenAI plan received")
	return resp, nil
}

// toMessages converts the provider-neutral conversation to OpenAI form.
func toMessages(system string, messages []agent.Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	out := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages)+1)
	if system != "" {
		out = append(out, openai.SystemMessage(system))
	}
	for _, msg := range messages {
		switch msg.Role {
		case "tool":
			out = append(out, openai.ToolMessage(msg.ToolCallID, msg.Content))
		case "assistant":
			if len(msg.ToolCalls) == 0 {
				out = append(out, openai.AssistantMessage(msg.Content))
				continue
			}
			calls := make([]openai.ChatCompletionMessageToolCall, 0, len(msg.ToolCalls))
			for _, tc := range msg.ToolCalls {
				args, err := json.Marshal(tc.Args)
				if err != nil {
					return nil, fmt.Errorf("marshaling tool arguments for %s: %w", tc.Name, err)
				}
				calls = append(calls, openai.ChatCompletionMessageToolCall{
					ID:   tc.ID,
					Type: "function",
					Function: openai.ChatCompletionMessageToolCallFunction{
						Name:      tc.Name,
						Arguments: string(args),
					},
				})
			}
			assistant := openai.ChatCompletionMessage{
				Role:      "assistant",
				Content:   msg.Content,
				ToolCalls: calls,
			}
			out = append(out, assistant.ToParam())
		default:
			out = append(out, openai.UserMessage(msg.Content))
		}
	}
	return out, nil
}

// toTools converts registry definitions to OpenAI function tools.
func toTools(defs []toolcall.Definition) []openai.ChatCompletionToolParam {
	out := make([]openai.ChatCompletionToolParam, 0, len(defs))
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
		schema := map[string]any{
			"type":       "object",
			"properties": properties,
		}
		if len(required) > 0 {
			schema["required"] = required
		}
		out = append(out, openai.ChatCompletionToolParam{
			Type: "function",
			Function: openai.FunctionDefinitionParam{
				Name:        def.Name,
				Description: openai.String(def.Description),
				Parameters:  openai.FunctionParameters(schema),
			},
		})
	}
	return out
}

// isRetryable reports whether the OpenAI API error is transient.
func isRetryable(err error) bool {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		switch apiErr.StatusCode {
		case 429, 500, 503, 504:
			return true
		}
	}
	return false
}
