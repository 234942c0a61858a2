// Package llm provides the generation capability behind the orchestrator.
package llm

import (
	"context"
	"errors"
	"fmt"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"
	"go.uber.org/zap"
)

// ErrGenerationFailed is returned when the model errors or times out even
// after the single retry. Callers surface it as a "try again" condition and
// never substitute ungrounded output.
var ErrGenerationFailed = errors.New("generation failed")

type GeneratorConfig struct {
	Provider    string // "ollama" or "openai"
	BaseURL     string
	Model       string
	APIKey      string
	MaxTokens   int
	Temperature float64
}

// Engine generates text from prompts using a langchaingo model.
type Engine struct {
	config GeneratorConfig
	model  llms.Model
	logger *zap.Logger
}

func NewWithConfig(config GeneratorConfig, logger *zap.Logger) (*Engine, error) {
	if config.Model == "" {
		config.Model = "mistral"
	}
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}

	var model llms.Model
	var err error

	switch config.Provider {
	case "", "ollama":
		model, err = ollama.New(
			ollama.WithModel(config.Model),
			ollama.WithServerURL(config.BaseURL),
		)
	case "openai":
		model, err = openai.New(
			openai.WithModel(config.Model),
			openai.WithToken(config.APIKey),
		)
	default:
		return nil, fmt.Errorf("unknown generation provider: %s", config.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to initialize LLM: %w", err)
	}

	return NewWithModel(config, model, logger), nil
}

// NewWithModel builds an engine around an existing model. Used by tests.
func NewWithModel(config GeneratorConfig, model llms.Model, logger *zap.Logger) *Engine {
	if config.MaxTokens == 0 {
		config.MaxTokens = 2000
	}
	if config.Temperature == 0 {
		config.Temperature = 0.2
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		config: config,
		model:  model,
		logger: logger,
	}
}

// Generate runs one prompt through the model. A transport or model failure is
// retried once with the same prompt before surfacing ErrGenerationFailed.
func (e *Engine) Generate(ctx context.Context, prompt string) (string, error) {
	var lastErr error

	for attempt := 0; attempt < 2; attempt++ {
		if attempt > 0 {
			e.logger.Warn("generation failed, retrying once", zap.Error(lastErr))
		}

		response, err := llms.GenerateFromSinglePrompt(ctx, e.model, prompt,
			llms.WithTemperature(e.config.Temperature),
			llms.WithMaxTokens(e.config.MaxTokens),
		)
		if err != nil {
			lastErr = err
			if ctx.Err() != nil {
				break
			}
			continue
		}
		if response == "" {
			lastErr = errors.New("empty response from model")
			continue
		}
		return response, nil
	}

	return "", fmt.Errorf("%w: %v", ErrGenerationFailed, lastErr)
}
