/*
Copyright 2026 The KickStart Authors
SPDX-License-Identifier: Apache-2.0
*/

// kickstart serves the session-boundary HTTP API: connect a GitHub token,
// pick a repository, and run bounded agent tasks against it.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	anthropicoption "github.com/anthropics/anthropic-sdk-go/option"
	"github.com/chainguard-dev/clog"
	"github.com/openai/openai-go"
	openaioption "github.com/openai/openai-go/option"
	"github.com/sethvargo/go-envconfig"

	"github.com/danish296/KickStart-Agent-for-GitHub/agent"
	"github.com/danish296/KickStart-Agent-for-GitHub/httpapi"
	"github.com/danish296/KickStart-Agent-for-GitHub/planner/claudeplanner"
	"github.com/danish296/KickStart-Agent-for-GitHub/planner/openaiplanner"
)

type config struct {
	Addr string `env:"ADDR,default=:8080"`

	// Provider selects the planning model family: "anthropic" or "openai".
	Provider string `env:"LLM_PROVIDER,default=anthropic"`
	Model    string `env:"LLM_MODEL"`

	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`

	MaxTurns   int           `env:"AGENT_MAX_TURNS,default=8"`
	LLMTimeout time.Duration `env:"AGENT_LLM_TIMEOUT,default=2m"`

	GitHubBaseURL string `env:"GITHUB_BASE_URL"`

	// OAuth app settings for the browser login prototype. All three must be
	// set to enable /login and /callback; PAT connect works regardless.
	OAuthClientID     string `env:"GITHUB_OAUTH_CLIENT_ID"`
	OAuthClientSecret string `env:"GITHUB_OAUTH_CLIENT_SECRET"`
	OAuthRedirectURL  string `env:"GITHUB_OAUTH_REDIRECT_URL"`
	UIRedirectURL     string `env:"UI_REDIRECT_URL,default=http://localhost:8501"`
}

func buildPlanner(cfg config) (agent.Planner, error) {
	switch cfg.Provider {
	case "anthropic":
		if cfg.AnthropicAPIKey == "" {
			return nil, errors.New("ANTHROPIC_API_KEY is required when LLM_PROVIDER=anthropic")
		}
		client := anthropic.NewClient(anthropicoption.WithAPIKey(cfg.AnthropicAPIKey))
		var opts []claudeplanner.Option
		if cfg.Model != "" {
			opts = append(opts, claudeplanner.WithModel(cfg.Model))
		}
		return claudeplanner.New(client, opts...)
	case "openai":
		if cfg.OpenAIAPIKey == "" {
			return nil, errors.New("OPENAI_API_KEY is required when LLM_PROVIDER=openai")
		}
		client := openai.NewClient(openaioption.WithAPIKey(cfg.OpenAIAPIKey))
		var opts []openaiplanner.Option
		if cfg.Model != "" {
			opts = append(opts, openaiplanner.WithModel(cfg.Model))
		}
		return openaiplanner.New(client, opts...)
	default:
		return nil, errors.New("LLM_PROVIDER must be \"anthropic\" or \"openai\"")
	}
}

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	var cfg config
	if err := envconfig.Process(ctx, &cfg); err != nil {
		clog.FatalContextf(ctx, "processing config: %v", err)
	}

	planner, err := buildPlanner(cfg)
	if err != nil {
		clog.FatalContextf(ctx, "configuring planner: %v", err)
	}

	opts := httpapi.Options{
		Addr:          cfg.Addr,
		MaxTurns:      cfg.MaxTurns,
		LLMTimeout:    cfg.LLMTimeout,
		GitHubBaseURL: cfg.GitHubBaseURL,
	}
	if cfg.OAuthClientID != "" && cfg.OAuthClientSecret != "" && cfg.OAuthRedirectURL != "" {
		opts.OAuth = &httpapi.OAuthOptions{
			ClientID:      cfg.OAuthClientID,
			ClientSecret:  cfg.OAuthClientSecret,
			RedirectURL:   cfg.OAuthRedirectURL,
			UIRedirectURL: cfg.UIRedirectURL,
		}
	}

	srv, err := httpapi.NewServer(opts, planner)
	if err != nil {
		clog.FatalContextf(ctx, "creating server: %v", err)
	}
	if err := srv.ListenAndServe(ctx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		clog.FatalContextf(ctx, "server exited: %v", err)
	}
}
