package types

import (
	"context"

	"github.com/anvik/docsage/internal/models"
)

// Core interfaces

// Chunker splits raw document text into overlapping, size-bounded chunks.
type Chunker interface {
	Chunk(text string) ([]models.Chunk, error)
}

// Embedder maps texts to fixed-length dense vectors. Output order matches
// input order. Implementations batch internally.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Generator is the generation capability: prompt in, text out.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// VectorStore persists chunk records in one durable collection per session.
// DeleteSession on an unknown session is a no-op, not an error.
type VectorStore interface {
	CreateOrOpen(ctx context.Context, sessionID string) error
	Upsert(ctx context.Context, sessionID string, chunks []models.Chunk) error
	Query(ctx context.Context, sessionID string, embedding []float32, k int) ([]models.Match, error)
	Chunks(ctx context.Context, sessionID string) ([]models.Chunk, error)
	ListSessions(ctx context.Context) ([]string, error)
	DeleteSession(ctx context.Context, sessionID string) error
	Close() error
}

// Retriever embeds a query and returns the most similar stored chunks.
type Retriever interface {
	Retrieve(ctx context.Context, sessionID, query string, k int) (models.RetrievalResult, error)
}
