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

const defaultOpenAIBaseURL = "https://api.openai.com/v1"

// OpenAIInvoker calls an OpenAI-compatible chat completions endpoint.
type OpenAIInvoker struct {
	client   *resty.Client
	model    string
	endpoint string
	logger   *slog.Logger
}

// NewOpenAIInvoker creates an OpenAIInvoker. BaseURL may point at any
// OpenAI-compatible server.
func NewOpenAIInvoker(cfg *Config, logger *slog.Logger) *OpenAIInvoker {
	client := resty.New()
	client.SetHeader("Authorization", "Bearer "+cfg.APIKey)
	client.SetHeader("Content-Type", "application/json")

	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}
	client.SetTimeout(timeout)

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultOpenAIBaseURL
	}

	return &OpenAIInvoker{
		client:   client,
		model:    cfg.Model,
		endpoint: baseURL + "/chat/completions",
		logger:   logger,
	}
}

func (p *OpenAIInvoker) Name() string { return "openai" }

type openAIRequest struct {
	Model     string          `json:"model"`
	Messages  []openAIMessage `json:"messages"`
	MaxTokens int             `json:"max_tokens"`
}

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// Invoke runs one stage call and classifies every failure as transient or
// fatal.
func (p *OpenAIInvoker) Invoke(ctx context.Context, stage string, input json.RawMessage) (json.RawMessage, error) {
	prompt, err := buildPrompt(stage, input)
	if err != nil {
		return nil, Fatal(stage, err)
	}

	reqBody := openAIRequest{
		Model: p.model,
		Messages: []openAIMessage{
			{Role: "user", Content: prompt.Text},
		},
		MaxTokens: prompt.MaxTokens,
	}

	var result openAIResponse
	resp, err := p.client.R().
		SetContext(ctx).
		SetBody(reqBody).
		SetResult(&result).
		SetError(&result).
		Post(p.endpoint)
	if err != nil {
		// Network-level failure, including client timeouts.
		return nil, Transient(stage, fmt.Errorf("chat completion request failed: %w", err))
	}

	if resp.StatusCode() != http.StatusOK {
		detail := resp.Status()
		if result.Error != nil {
			detail = result.Error.Message
		}
		return nil, classifyHTTP(stage, resp.StatusCode(), detail)
	}

	if len(result.Choices) == 0 || result.Choices[0].Message.Content == "" {
		return nil, Fatal(stage, fmt.Errorf("empty completion from model"))
	}

	payload, err := ExtractJSON(result.Choices[0].Message.Content)
	if err != nil {
		p.logger.Warn("Model output was not valid JSON",
			slog.String("stage", stage),
			slog.String("model", p.model),
		)
		return nil, Transient(stage, err)
	}

	return payload, nil
}

// classifyHTTP maps an upstream status code to a failure kind: rate limits
// and server errors retry, the remaining 4xx mean the request itself is
// unprocessable.
func classifyHTTP(stage string, status int, detail string) error {
	err := fmt.Errorf("upstream returned %d: %s", status, detail)
	if status == http.StatusTooManyRequests || status >= http.StatusInternalServerError {
		return Transient(stage, err)
	}
	return Fatal(stage, err)
}
