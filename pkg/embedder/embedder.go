// Package embedder wraps an embedding model behind batching, pacing and a
// retry budget. Vectors come back in input order; a batch either embeds
// completely or fails as a whole.
package embedder

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ErrUnavailable is returned when the embedding model cannot be reached or
// keeps failing after the retry budget is spent.
var ErrUnavailable = errors.New("embedding model unavailable")

type EmbedderConfig struct {
	BaseURL    string
	Model      string
	BatchSize  int
	RateLimit  float64 // model calls per second
	MaxRetries int
	RetryBase  time.Duration
}

// embeddingClient is the slice of the model client the embedder needs.
type embeddingClient interface {
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

type Embedder struct {
	config  EmbedderConfig
	client  embeddingClient
	limiter *rate.Limiter
	logger  *zap.Logger
}

func NewWithConfig(config EmbedderConfig, logger *zap.Logger) (*Embedder, error) {
	if config.BaseURL == "" {
		config.BaseURL = "http://localhost:11434"
	}
	if config.Model == "" {
		config.Model = "nomic-embed-text"
	}

	client, err := ollama.New(
		ollama.WithModel(config.Model),
		ollama.WithServerURL(config.BaseURL),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}

	return newWithClient(config, client, logger), nil
}

// NewWithClient builds an embedder around an existing client. Used by tests
// and by callers that manage the model client lifecycle themselves.
func NewWithClient(config EmbedderConfig, client embeddingClient, logger *zap.Logger) *Embedder {
	return newWithClient(config, client, logger)
}

func newWithClient(config EmbedderConfig, client embeddingClient, logger *zap.Logger) *Embedder {
	if config.BatchSize == 0 {
		config.BatchSize = 32
	}
	if config.RateLimit == 0 {
		config.RateLimit = 4.0
	}
	if config.MaxRetries == 0 {
		config.MaxRetries = 3
	}
	if config.RetryBase == 0 {
		config.RetryBase = 500 * time.Millisecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Embedder{
		config:  config,
		client:  client,
		limiter: rate.NewLimiter(rate.Limit(config.RateLimit), 1),
		logger:  logger,
	}
}

// Embed returns one vector per input text, in input order. Texts are sent in
// batches; each batch is retried with exponential backoff before the whole
// call fails.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	vectors := make([][]float32, 0, len(texts))

	for start := 0; start < len(texts); start += e.config.BatchSize {
		end := start + e.config.BatchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		batchVectors, err := e.embedBatch(ctx, batch)
		if err != nil {
			return nil, err
		}
		vectors = append(vectors, batchVectors...)
	}

	return vectors, nil
}

// EmbedQuery embeds a single query string.
func (e *Embedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := e.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func (e *Embedder) embedBatch(ctx context.Context, batch []string) ([][]float32, error) {
	var lastErr error

	for attempt := 0; attempt < e.config.MaxRetries; attempt++ {
		if attempt > 0 {
			backoff := e.config.RetryBase << (attempt - 1)
			e.logger.Warn("embedding batch failed, retrying",
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(lastErr),
			)
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, ctx.Err()
			}
		}

		if err := e.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		vectors, err := e.client.CreateEmbedding(ctx, batch)
		if err != nil {
			lastErr = err
			continue
		}
		if len(vectors) != len(batch) {
			lastErr = fmt.Errorf("expected %d vectors, got %d", len(batch), len(vectors))
			continue
		}
		return vectors, nil
	}

	return nil, fmt.Errorf("%w: %v", ErrUnavailable, lastErr)
}
