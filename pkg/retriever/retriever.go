// Package retriever turns a text query into grounding context: it embeds the
// query and asks the vector store for the most similar chunks of a session.
package retriever

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/internal/types"
)

type RetrieverConfig struct {
	// MinScore filters out matches too dissimilar to be useful context.
	// When every match falls below it the result is empty and the caller
	// must handle "no grounding found" explicitly.
	MinScore float32
}

// Retriever is stateless and safe for concurrent use across sessions.
type Retriever struct {
	config   RetrieverConfig
	embedder types.Embedder
	store    types.VectorStore
	logger   *zap.Logger
}

func NewWithConfig(config RetrieverConfig, embedder types.Embedder, store types.VectorStore, logger *zap.Logger) *Retriever {
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Retriever{
		config:   config,
		embedder: embedder,
		store:    store,
		logger:   logger,
	}
}

// Retrieve returns up to k matches for the query, descending by similarity,
// with sub-threshold matches dropped. An empty match list is a normal result.
func (r *Retriever) Retrieve(ctx context.Context, sessionID, query string, k int) (models.RetrievalResult, error) {
	result := models.RetrievalResult{Query: query}

	normalized := strings.TrimSpace(query)
	if normalized == "" {
		return result, nil
	}

	embedding, err := r.embedder.EmbedQuery(ctx, normalized)
	if err != nil {
		return result, fmt.Errorf("embedding query: %w", err)
	}

	matches, err := r.store.Query(ctx, sessionID, embedding, k)
	if err != nil {
		return result, err
	}

	for _, match := range matches {
		if match.Score < r.config.MinScore {
			continue
		}
		result.Matches = append(result.Matches, match)
	}

	r.logger.Debug("retrieved context",
		zap.String("session_id", sessionID),
		zap.Int("requested", k),
		zap.Int("returned", len(matches)),
		zap.Int("above_floor", len(result.Matches)),
	)

	return result, nil
}
