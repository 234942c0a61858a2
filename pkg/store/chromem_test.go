package store_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/pkg/store"
)

func newTestStore(t *testing.T, dir string) *store.ChromemStore {
	t.Helper()
	s, err := store.NewChromemStore(store.ChromemConfig{Path: dir}, nil)
	require.NoError(t, err)
	return s
}

func testChunks(sessionID string) []models.Chunk {
	// Unit vectors so cosine similarity against [1,0,0] is the first component
	return []models.Chunk{
		{Index: 0, Text: "The capital of France is Paris.", Embedding: []float32{1, 0, 0}},
		{Index: 1, Text: "Berlin is the capital of Germany.", Embedding: []float32{0.8, 0.6, 0}},
		{Index: 2, Text: "Madrid is the capital of Spain.", Embedding: []float32{0, 1, 0}},
		{Index: 3, Text: "Rome is the capital of Italy.", Embedding: []float32{0, 0, 1}},
	}
}

func TestChromem_QueryEmptySession(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.CreateOrOpen(ctx, "empty"))

	matches, err := s.Query(ctx, "empty", []float32{1, 0, 0}, 5)
	require.NoError(t, err)
	assert.Empty(t, matches)
}

func TestChromem_QueryUnknownSession(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	_, err := s.Query(context.Background(), "never-created", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, store.ErrCollectionNotFound)

	_, err = s.Chunks(context.Background(), "never-created")
	assert.ErrorIs(t, err, store.ErrCollectionNotFound)
}

func TestChromem_QueryOrderingAndCap(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.CreateOrOpen(ctx, "doc1"))
	require.NoError(t, s.Upsert(ctx, "doc1", testChunks("doc1")))

	matches, err := s.Query(ctx, "doc1", []float32{1, 0, 0}, 2)
	require.NoError(t, err)
	require.Len(t, matches, 2)

	assert.Equal(t, "The capital of France is Paris.", matches[0].Chunk.Text)
	assert.GreaterOrEqual(t, matches[0].Score, matches[1].Score)

	// k larger than the collection returns everything, still descending
	matches, err = s.Query(ctx, "doc1", []float32{1, 0, 0}, 50)
	require.NoError(t, err)
	assert.Len(t, matches, 4)
	for i := 1; i < len(matches); i++ {
		assert.GreaterOrEqual(t, matches[i-1].Score, matches[i].Score)
	}
}

func TestChromem_UpsertIsIdempotent(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "doc1", testChunks("doc1")))
	require.NoError(t, s.Upsert(ctx, "doc1", testChunks("doc1")))

	chunks, err := s.Chunks(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 4)

	for i, chunk := range chunks {
		assert.Equal(t, store.ChunkID("doc1", i), chunk.ID)
		assert.Equal(t, i, chunk.Index)
	}
}

func TestChromem_UpsertRejectsMissingEmbedding(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	err := s.Upsert(context.Background(), "doc1", []models.Chunk{
		{Index: 0, Text: "no vector"},
	})
	assert.ErrorIs(t, err, store.ErrMissingEmbedding)
}

func TestChromem_PersistenceRoundTrip(t *testing.T) {
	dir := t.TempDir()
	ctx := context.Background()

	s := newTestStore(t, dir)
	require.NoError(t, s.Upsert(ctx, "doc1", testChunks("doc1")))
	require.NoError(t, s.Close())

	// Reopen against the same directory: prior sessions reload
	reopened := newTestStore(t, dir)

	sessions, err := reopened.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1"}, sessions)

	require.NoError(t, reopened.CreateOrOpen(ctx, "doc1"))

	chunks, err := reopened.Chunks(ctx, "doc1")
	require.NoError(t, err)
	require.Len(t, chunks, 4)
	assert.Equal(t, "The capital of France is Paris.", chunks[0].Text)

	matches, err := reopened.Query(ctx, "doc1", []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, matches, 1)
	assert.Equal(t, "Rome is the capital of Italy.", matches[0].Chunk.Text)
}

func TestChromem_SessionsAreIndependent(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "doc1", testChunks("doc1")))
	require.NoError(t, s.Upsert(ctx, "doc2", []models.Chunk{
		{Index: 0, Text: "Entirely different document.", Embedding: []float32{0, 1, 0}},
	}))

	matches, err := s.Query(ctx, "doc2", []float32{1, 0, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, matches, 1)

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"doc1", "doc2"}, sessions)
}

func TestChromem_DeleteSession(t *testing.T) {
	s := newTestStore(t, t.TempDir())
	ctx := context.Background()

	require.NoError(t, s.Upsert(ctx, "doc1", testChunks("doc1")))
	require.NoError(t, s.DeleteSession(ctx, "doc1"))

	sessions, err := s.ListSessions(ctx)
	require.NoError(t, err)
	assert.Empty(t, sessions)

	_, err = s.Query(ctx, "doc1", []float32{1, 0, 0}, 5)
	assert.ErrorIs(t, err, store.ErrCollectionNotFound)
}

func TestChromem_DeleteUnknownSessionIsNoOp(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	assert.NoError(t, s.DeleteSession(context.Background(), "never-created"))
}

func TestChromem_InvalidSessionID(t *testing.T) {
	s := newTestStore(t, t.TempDir())

	assert.ErrorIs(t, s.CreateOrOpen(context.Background(), ""), store.ErrInvalidSessionID)
	assert.ErrorIs(t, s.CreateOrOpen(context.Background(), "has spaces"), store.ErrInvalidSessionID)
}
