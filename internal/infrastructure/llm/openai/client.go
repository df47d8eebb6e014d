// Package openai implements the vision-model extractor against an
// OpenAI-compatible chat completions endpoint.
package openai

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/kirillkom/menu-extractor/internal/core/domain"
	"github.com/kirillkom/menu-extractor/internal/core/ports"
	"github.com/kirillkom/menu-extractor/internal/infrastructure/resilience"
)

type Config struct {
	BaseURL           string
	APIKey            string
	Model             string
	RequestsPerMinute int
	Profiles          []AttemptProfile
	Executor          *resilience.Executor
}

type Client struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
	executor   *resilience.Executor
	limiter    *rate.Limiter
	profiles   []AttemptProfile
}

func New(cfg Config) *Client {
	profiles := cfg.Profiles
	if len(profiles) == 0 {
		profiles = DefaultProfiles()
	}
	executor := cfg.Executor
	if executor == nil {
		executor = resilience.NewExecutor(resilience.DefaultConfig())
	}
	rpm := cfg.RequestsPerMinute
	if rpm <= 0 {
		rpm = 60
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		model:   cfg.Model,
		// Per-request deadlines come from the attempt profile; the client
		// timeout is only a safety net above the longest profile.
		httpClient: &http.Client{Timeout: 150 * time.Second},
		executor:   executor,
		limiter:    rate.NewLimiter(rate.Limit(float64(rpm)/60.0), rpm),
		profiles:   profiles,
	}
}

// Extract runs the attempt ladder: each profile is wrapped in bounded
// retries for transient failures, and a profile that fails fatally (or
// exhausts its retries) hands over to the next, lower-fidelity one. A
// response that cannot be parsed into a single JSON object is terminal; the
// degraded rung would spend tokens on the same unparsable shape.
func (c *Client) Extract(ctx context.Context, req ports.ExtractionRequest) (*ports.ExtractionOutcome, error) {
	imageURL, err := resolveImageRef(ctx, c.httpClient, req.ImageRef)
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "resolve image ref", err)
	}

	var lastErr error
	for i, profile := range c.profiles {
		outcome, err := c.attempt(ctx, req, profile, imageURL)
		if err == nil {
			return outcome, nil
		}
		lastErr = err
		if ctx.Err() != nil || domain.IsKind(err, domain.ErrUnparsableResult) {
			return nil, err
		}
		if i < len(c.profiles)-1 {
			slog.Warn("llm.extract.profile_fallback",
				"from", profile.Name,
				"to", c.profiles[i+1].Name,
				"error", err,
			)
		}
	}
	return nil, lastErr
}

func (c *Client) attempt(ctx context.Context, req ports.ExtractionRequest, profile AttemptProfile, imageURL string) (*ports.ExtractionOutcome, error) {
	payload := c.buildPayload(req, profile, imageURL)

	var response chatCompletionResponse
	operation := "vision.extract." + profile.Name
	err := c.executor.Execute(ctx, operation, func(callCtx context.Context) error {
		if err := c.limiter.Wait(callCtx); err != nil {
			return err
		}
		attemptCtx, cancel := context.WithTimeout(callCtx, profile.Timeout)
		defer cancel()
		return c.postJSON(attemptCtx, "/chat/completions", payload, &response)
	}, classifyUpstreamError)
	if err != nil {
		return nil, wrapTemporaryIfNeeded(operation, err)
	}

	if len(response.Choices) == 0 {
		return nil, domain.WrapError(domain.ErrUnparsableResult, operation, fmt.Errorf("no choices in response"))
	}
	rawJSON, err := extractSingleJSONObject(response.Choices[0].Message.Content)
	if err != nil {
		return nil, domain.WrapError(domain.ErrUnparsableResult, operation, err)
	}

	usage := domain.NewTokenUsage(c.model, response.Usage.PromptTokens, response.Usage.CompletionTokens)
	slog.Info("llm.extract.success",
		"profile", profile.Name,
		"prompt_version", req.PromptVersion,
		"schema_version", string(req.SchemaVersion),
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"estimated_cost", usage.EstimatedCost,
	)
	return &ports.ExtractionOutcome{
		RawJSON: rawJSON,
		Usage:   usage,
		Model:   c.model,
		Profile: profile.Name,
	}, nil
}

func (c *Client) buildPayload(req ports.ExtractionRequest, profile AttemptProfile, imageURL string) map[string]any {
	userParts := []map[string]any{
		{"type": "text", "text": buildExtractionInstructions(req.SchemaVersion, req.PromptVersion, profile.IncludeExamples)},
		{"type": "image_url", "image_url": map[string]any{
			"url":    imageURL,
			"detail": profile.ImageDetail,
		}},
	}
	return map[string]any{
		"model":           c.model,
		"temperature":     0,
		"max_tokens":      profile.MaxOutputTokens,
		"response_format": map[string]any{"type": "json_object"},
		"messages": []map[string]any{
			{"role": "system", "content": systemPrompt},
			{"role": "user", "content": userParts},
		},
	}
}

type chatCompletionResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Usage struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
	} `json:"usage"`
}

var _ ports.MenuExtractor = (*Client)(nil)
