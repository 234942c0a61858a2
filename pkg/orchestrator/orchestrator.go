// Package orchestrator composes chunking, embedding, storage and retrieval
// into the document operations exposed to the UI layer: ingest, grounded
// question answering, summarization and the self-quizzing challenge mode.
// Every generation is constrained to retrieved document text.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/types"
)

// ErrResponseParse is returned when the generator's output does not match the
// expected structure even after one stricter regeneration. The malformed
// output is never guessed at.
var ErrResponseParse = errors.New("could not parse model response")

// ErrNoContent is returned by operations that need stored chunks when the
// session exists but holds none.
var ErrNoContent = errors.New("session has no indexed content")

type OrchestratorConfig struct {
	TopK             int
	SummaryGroupSize int
	SummaryMaxWords  int
}

type Orchestrator struct {
	config    OrchestratorConfig
	chunker   types.Chunker
	embedder  types.Embedder
	retriever types.Retriever
	store     types.VectorStore
	generator types.Generator
	logger    *zap.Logger

	// open tracks collections opened by this process. The store is the
	// source of truth; this only skips repeated open-or-create calls.
	mu   sync.Mutex
	open map[string]struct{}
}

func NewWithConfig(
	config OrchestratorConfig,
	chunker types.Chunker,
	embedder types.Embedder,
	retriever types.Retriever,
	store types.VectorStore,
	generator types.Generator,
	logger *zap.Logger,
) *Orchestrator {
	if config.TopK == 0 {
		config.TopK = 5
	}
	if config.SummaryGroupSize == 0 {
		config.SummaryGroupSize = 8
	}
	if config.SummaryMaxWords == 0 {
		config.SummaryMaxWords = 150
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Orchestrator{
		config:    config,
		chunker:   chunker,
		embedder:  embedder,
		retriever: retriever,
		store:     store,
		generator: generator,
		logger:    logger,
		open:      make(map[string]struct{}),
	}
}

// Ingest indexes a document under the given session id. All chunk embeddings
// are computed in memory first, so a chunking or embedding failure leaves
// any previously stored document intact. Once embeddings are ready the
// session's old records are dropped and the new set written in a single
// upsert; a shorter re-ingest cannot leave stale higher-index chunks behind.
func (o *Orchestrator) Ingest(ctx context.Context, sessionID, rawText string) (int, error) {
	chunks, err := o.chunker.Chunk(rawText)
	if err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}

	embeddings, err := o.embedder.Embed(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding document: %w", err)
	}
	for i := range chunks {
		chunks[i].SessionID = sessionID
		chunks[i].Embedding = embeddings[i]
	}

	o.mu.Lock()
	delete(o.open, sessionID)
	o.mu.Unlock()

	if err := o.store.DeleteSession(ctx, sessionID); err != nil {
		return 0, fmt.Errorf("clearing session: %w", err)
	}

	if err := o.ensureOpen(ctx, sessionID); err != nil {
		return 0, err
	}

	if err := o.store.Upsert(ctx, sessionID, chunks); err != nil {
		return 0, fmt.Errorf("storing chunks: %w", err)
	}

	o.logger.Info("document ingested",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(chunks)),
	)

	return len(chunks), nil
}

// OpenSession opens or creates the collection for a session id, enabling
// resumption of a previously persisted session.
func (o *Orchestrator) OpenSession(ctx context.Context, sessionID string) error {
	return o.ensureOpen(ctx, sessionID)
}

// ListSessions enumerates previously persisted sessions.
func (o *Orchestrator) ListSessions(ctx context.Context) ([]string, error) {
	return o.store.ListSessions(ctx)
}

// DeleteSession removes a session's collection and forgets the open handle.
func (o *Orchestrator) DeleteSession(ctx context.Context, sessionID string) error {
	if err := o.store.DeleteSession(ctx, sessionID); err != nil {
		return err
	}

	o.mu.Lock()
	delete(o.open, sessionID)
	o.mu.Unlock()

	return nil
}

func (o *Orchestrator) ensureOpen(ctx context.Context, sessionID string) error {
	o.mu.Lock()
	_, ok := o.open[sessionID]
	o.mu.Unlock()
	if ok {
		return nil
	}

	if err := o.store.CreateOrOpen(ctx, sessionID); err != nil {
		return err
	}

	o.mu.Lock()
	o.open[sessionID] = struct{}{}
	o.mu.Unlock()

	return nil
}
