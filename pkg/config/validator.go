package config

import (
	"fmt"
	"net/url"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

func (c *Config) Validate() []ValidationError {
	var errors []ValidationError

	// Validate Embedding config
	if c.Embedding.BaseURL == "" {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "embedding base URL is required",
		})
	} else if _, err := url.Parse(c.Embedding.BaseURL); err != nil {
		errors = append(errors, ValidationError{
			Field:   "embedding.base_url",
			Message: "invalid embedding base URL",
		})
	}

	if c.Embedding.BatchSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.batch_size",
			Message: "batch_size must be positive",
		})
	}

	if c.Embedding.RateLimit <= 0 {
		errors = append(errors, ValidationError{
			Field:   "embedding.rate_limit",
			Message: "rate_limit must be positive",
		})
	}

	if c.Embedding.MaxRetries < 1 {
		errors = append(errors, ValidationError{
			Field:   "embedding.max_retries",
			Message: "max_retries must be positive",
		})
	}

	// Validate Generation config
	if c.Generation.Provider != "ollama" && c.Generation.Provider != "openai" {
		errors = append(errors, ValidationError{
			Field:   "generation.provider",
			Message: fmt.Sprintf("unknown provider: %s", c.Generation.Provider),
		})
	}

	if c.Generation.Provider == "openai" && c.Generation.APIKey == "" {
		errors = append(errors, ValidationError{
			Field:   "generation.api_key",
			Message: "api_key is required for the openai provider",
		})
	}

	if c.Generation.MaxTokens < 1 || c.Generation.MaxTokens > 8192 {
		errors = append(errors, ValidationError{
			Field:   "generation.max_tokens",
			Message: "max_tokens must be between 1 and 8192",
		})
	}

	if c.Generation.Temperature < 0 || c.Generation.Temperature > 2 {
		errors = append(errors, ValidationError{
			Field:   "generation.temperature",
			Message: "temperature must be between 0 and 2",
		})
	}

	// Validate Store config
	switch c.Store.Backend {
	case "chromem":
		if c.Store.Path == "" {
			errors = append(errors, ValidationError{
				Field:   "store.path",
				Message: "path is required for the chromem backend",
			})
		}
	case "pgvector":
		if c.Store.URL == "" {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "url is required for the pgvector backend",
			})
		} else if _, err := url.Parse(c.Store.URL); err != nil {
			errors = append(errors, ValidationError{
				Field:   "store.url",
				Message: "invalid database URL",
			})
		}
		if c.Store.VectorDim < 1 {
			errors = append(errors, ValidationError{
				Field:   "store.vector_dim",
				Message: "vector_dim must be positive",
			})
		}
	default:
		errors = append(errors, ValidationError{
			Field:   "store.backend",
			Message: fmt.Sprintf("unknown backend: %s", c.Store.Backend),
		})
	}

	// Validate Chunker config
	if c.Chunker.MaxSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "chunker.max_size",
			Message: "max_size must be positive",
		})
	}

	if c.Chunker.Overlap == nil || *c.Chunker.Overlap < 0 || *c.Chunker.Overlap >= c.Chunker.MaxSize {
		errors = append(errors, ValidationError{
			Field:   "chunker.overlap",
			Message: "overlap must be set, non-negative and less than max_size",
		})
	}

	// Validate Retrieval config
	if c.Retrieval.TopK < 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.top_k",
			Message: "top_k must be positive",
		})
	}

	if c.Retrieval.MinScore < 0 || c.Retrieval.MinScore > 1 {
		errors = append(errors, ValidationError{
			Field:   "retrieval.min_score",
			Message: "min_score must be between 0 and 1",
		})
	}

	// Validate Summary and Challenge config
	if c.Summary.GroupSize < 1 {
		errors = append(errors, ValidationError{
			Field:   "summary.group_size",
			Message: "group_size must be positive",
		})
	}

	if c.Challenge.Questions < 1 {
		errors = append(errors, ValidationError{
			Field:   "challenge.questions",
			Message: "questions must be positive",
		})
	}

	return errors
}
