package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
)

const defaultAnthropicBaseURL = "https://api.anthropic.com/v1"

// AnthropicInvoker calls the Anthropic messages endpoint.
type AnthropicInvoker struct {
	client   *resty.Client
	model    string
	endpoint string
	logger   *slog.Logger
}

// NewAnthropicInvoker creates an AnthropicInvoker.
func NewAnthropicInvoker(cfg *Config, logger *slog.Logger) *AnthropicInvoker {
	client := resty.New()
	client.SetHeader("x-api-key", cfg.APIKey)
	client.SetHeader("anthropic-version", "2023-06-01")
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultAnthropicBaseURL
	}

	return &AnthropicInvoker{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/messages",
		logger:   logger,
	}
}

func (p *AnthropicInvoker) Name() string { return "anthropic" }

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	Messages  []anthropicMessage `json:"messages"`
}

type anthropicMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type anthropicResponse struct {
	Content []struct {
		Type string `json:"type"`
		Text string `json:"text"`
	} `json:"content"`
	Error *struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	} `json:"error"`
}

func (p *AnthropicInvoker) Invoke(ctx context.Context, stage string, input json.RawMessage) (json.RawMessage, error) {
	prompt, err := buildPrompt(stage, input)
	if err != nil {
		return nil, Fatal(stage, err)
	}

	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: prompt.MaxTokens,
		Messages: []anthropicMessage{
			{Role: "user", Content: prompt.Text},
		},
	}

	var result anthropicResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&result).
		SetError(&result).
		Post(p.endpoint)
	if err != nil {
		return nil, Transient(stage, fmt.Errorf("messages request failed: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		detail := resp.Status()
		if result.Error != nil {
			detail = result.Error.Message
		}
		return nil, classifyHTTP(stage, resp.StatusCode(), detail)
	}

	text := ""
	for _, block := range result.Content {
		if block.Type == "text" {
			text += block.Text
		}
	}
	if text == "" {
		return nil, Fatal(stage, fmt.Errorf("empty completion from model"))
	}

	payload, err := ExtractJSON(text)
	if err != nil {
		p.logger.Warn("Model output was not valid JSON",
			slog.String("stage", stage),
			slog.String("model", p.model),
		)
		return nil, Transient(stage, err)
	}

	return payload, nil
}
