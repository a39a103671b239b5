package generator

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

// Invoker is the adapter around the external generative capability. Each
// call runs one pipeline stage: the input payload is stage-specific, the
// output is the stage's structured result. Failures are classified through
// StageError.
type Invoker interface {
	Name() string
	Invoke(ctx context.Context, stage string, input json.RawMessage) (json.RawMessage, error)
}

// Config selects and configures a provider.
type Config struct {
	Provider       string // openai, anthropic, mock
	Model          string
	APIKey         string
	BaseURL        string
	RequestTimeout time.Duration
}

// NewInvoker builds an Invoker for the configured provider.
func NewInvoker(cfg *Config, logger *slog.Logger) (Invoker, error) {
	switch cfg.Provider {
	case "openai":
		return NewOpenAIInvoker(cfg, logger), nil
	case "anthropic":
		return NewAnthropicInvoker(cfg, logger), nil
	case "mock":
		return NewMockInvoker(), nil
	default:
		return nil, fmt.Errorf("unknown generator provider: %q", cfg.Provider)
	}
}
