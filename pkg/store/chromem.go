package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"

	chromem "github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/internal/types"
)

var _ types.VectorStore = (*ChromemStore)(nil)

type ChromemConfig struct {
	// Path is the directory for persistent storage.
	Path string

	// Compress enables gzip compression for stored records.
	Compress bool
}

// ChromemStore keeps one chromem-go collection per session, persisted to
// disk. chromem-go is an embeddable vector database in pure Go, so sessions
// survive process restarts without any external service.
//
// All embeddings are computed by the caller and written alongside the chunk
// text; the store never invokes an embedding model itself.
type ChromemStore struct {
	db     *chromem.DB
	config ChromemConfig
	logger *zap.Logger
}

func NewChromemStore(config ChromemConfig, logger *zap.Logger) (*ChromemStore, error) {
	if config.Path == "" {
		return nil, errors.New("chromem store path is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	if err := os.MkdirAll(config.Path, 0o755); err != nil {
		return nil, fmt.Errorf("creating store directory %s: %w", config.Path, err)
	}

	db, err := chromem.NewPersistentDB(config.Path, config.Compress)
	if err != nil {
		return nil, fmt.Errorf("opening chromem DB: %w", err)
	}

	logger.Info("chromem store opened",
		zap.String("path", config.Path),
		zap.Bool("compress", config.Compress),
	)

	return &ChromemStore{
		db:     db,
		config: config,
		logger: logger,
	}, nil
}

// noEmbed satisfies chromem's embedding-function requirement. Every write
// carries a precomputed vector and every read queries by vector, so chromem
// should never call this.
func noEmbed(context.Context, string) ([]float32, error) {
	return nil, errors.New("store requires precomputed embeddings")
}

// CreateOrOpen is idempotent: it returns the existing collection for a known
// session id and creates an empty one otherwise.
func (s *ChromemStore) CreateOrOpen(_ context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}

	_, err := s.db.GetOrCreateCollection(collectionName(sessionID), nil, noEmbed)
	if err != nil {
		return fmt.Errorf("opening collection for session %s: %w", sessionID, err)
	}
	return nil
}

// Upsert writes chunk records with ids derived from the session id and chunk
// index. chromem keys records by id, so re-ingesting the same document
// overwrites in place. Writes are flushed to disk before Upsert returns.
func (s *ChromemStore) Upsert(ctx context.Context, sessionID string, chunks []models.Chunk) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if len(chunks) == 0 {
		return nil
	}

	for _, chunk := range chunks {
		if len(chunk.Embedding) == 0 {
			return fmt.Errorf("%w: chunk %d", ErrMissingEmbedding, chunk.Index)
		}
	}

	collection, err := s.db.GetOrCreateCollection(collectionName(sessionID), nil, noEmbed)
	if err != nil {
		return fmt.Errorf("opening collection for session %s: %w", sessionID, err)
	}

	docs := make([]chromem.Document, len(chunks))
	for i, chunk := range chunks {
		docs[i] = chromem.Document{
			ID:      ChunkID(sessionID, chunk.Index),
			Content: chunk.Text,
			Metadata: map[string]string{
				"index":      strconv.Itoa(chunk.Index),
				"session_id": sessionID,
			},
			Embedding: chunk.Embedding,
		}
	}

	// Concurrency of 1: embeddings are already present, nothing to parallelize.
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("writing chunks for session %s: %w", sessionID, err)
	}

	s.logger.Debug("upserted chunks",
		zap.String("session_id", sessionID),
		zap.Int("count", len(chunks)),
	)

	return nil
}

// Query returns up to k nearest neighbors by cosine similarity, descending.
// An empty collection yields an empty result, not an error.
func (s *ChromemStore) Query(ctx context.Context, sessionID string, embedding []float32, k int) ([]models.Match, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}
	if k <= 0 {
		return nil, fmt.Errorf("k must be positive, got %d", k)
	}

	collection := s.db.GetCollection(collectionName(sessionID), noEmbed)
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, sessionID)
	}

	// chromem requires nResults <= document count
	count := collection.Count()
	if count == 0 {
		return []models.Match{}, nil
	}
	if k > count {
		k = count
	}

	results, err := collection.QueryEmbedding(ctx, embedding, k, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("querying session %s: %w", sessionID, err)
	}

	matches := make([]models.Match, len(results))
	for i, r := range results {
		matches[i] = models.Match{
			Chunk: models.Chunk{
				ID:        r.ID,
				SessionID: sessionID,
				Index:     indexFromMetadata(r.Metadata),
				Text:      r.Content,
				Embedding: r.Embedding,
			},
			Score: r.Similarity,
		}
	}

	return matches, nil
}

// Chunks reloads the full ordered chunk sequence of a session. Record ids
// are deterministic, so the sequence is rebuilt by walking indexes 0..n-1.
func (s *ChromemStore) Chunks(ctx context.Context, sessionID string) ([]models.Chunk, error) {
	if err := validateSessionID(sessionID); err != nil {
		return nil, err
	}

	collection := s.db.GetCollection(collectionName(sessionID), noEmbed)
	if collection == nil {
		return nil, fmt.Errorf("%w: %s", ErrCollectionNotFound, sessionID)
	}

	count := collection.Count()
	chunks := make([]models.Chunk, 0, count)

	for i := 0; i < count; i++ {
		doc, err := collection.GetByID(ctx, ChunkID(sessionID, i))
		if err != nil {
			return nil, fmt.Errorf("reloading chunk %d of session %s: %w", i, sessionID, err)
		}
		chunks = append(chunks, models.Chunk{
			ID:        doc.ID,
			SessionID: sessionID,
			Index:     i,
			Text:      doc.Content,
			Embedding: doc.Embedding,
		})
	}

	return chunks, nil
}

func (s *ChromemStore) ListSessions(_ context.Context) ([]string, error) {
	var sessions []string
	for name := range s.db.ListCollections() {
		if strings.HasPrefix(name, collectionPrefix) {
			sessions = append(sessions, strings.TrimPrefix(name, collectionPrefix))
		}
	}
	sort.Strings(sessions)
	return sessions, nil
}

// DeleteSession removes a session's collection. Unknown sessions are a no-op
// so callers can clear before writing without checking existence first.
func (s *ChromemStore) DeleteSession(_ context.Context, sessionID string) error {
	if err := validateSessionID(sessionID); err != nil {
		return err
	}
	if s.db.GetCollection(collectionName(sessionID), noEmbed) == nil {
		return nil
	}
	if err := s.db.DeleteCollection(collectionName(sessionID)); err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	return nil
}

// Close is a no-op: chromem flushes on every write.
func (s *ChromemStore) Close() error {
	return nil
}

func indexFromMetadata(metadata map[string]string) int {
	index, err := strconv.Atoi(metadata["index"])
	if err != nil {
		return -1
	}
	return index
}
