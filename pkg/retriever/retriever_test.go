package retriever_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvik/docsage/internal/models"
	"github.com/anvik/docsage/pkg/retriever"
	"github.com/anvik/docsage/pkg/store"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1, 0, 0}
	}
	return vectors, nil
}

func (f fakeEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := f.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}

func seededStore(t *testing.T) *store.ChromemStore {
	t.Helper()
	s, err := store.NewChromemStore(store.ChromemConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)

	err = s.Upsert(context.Background(), "doc1", []models.Chunk{
		{Index: 0, Text: "close match", Embedding: []float32{1, 0, 0}},
		{Index: 1, Text: "weak match", Embedding: []float32{0.5, 0.866, 0}},
		{Index: 2, Text: "unrelated", Embedding: []float32{0, 0, 1}},
	})
	require.NoError(t, err)
	return s
}

func TestRetrieve_AppliesSimilarityFloor(t *testing.T) {
	s := seededStore(t)
	r := retriever.NewWithConfig(retriever.RetrieverConfig{MinScore: 0.9}, fakeEmbedder{}, s, nil)

	result, err := r.Retrieve(context.Background(), "doc1", "anything", 5)
	require.NoError(t, err)
	require.Len(t, result.Matches, 1)
	assert.Equal(t, "close match", result.Matches[0].Chunk.Text)
}

func TestRetrieve_AllBelowFloorIsEmptyNotError(t *testing.T) {
	s := seededStore(t)
	r := retriever.NewWithConfig(retriever.RetrieverConfig{MinScore: 1.1}, fakeEmbedder{}, s, nil)

	result, err := r.Retrieve(context.Background(), "doc1", "anything", 5)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestRetrieve_EmptySession(t *testing.T) {
	s, err := store.NewChromemStore(store.ChromemConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)
	require.NoError(t, s.CreateOrOpen(context.Background(), "fresh"))

	r := retriever.NewWithConfig(retriever.RetrieverConfig{MinScore: 0.3}, fakeEmbedder{}, s, nil)

	result, err := r.Retrieve(context.Background(), "fresh", "anything", 5)
	require.NoError(t, err)
	assert.True(t, result.Empty())
}

func TestRetrieve_UnknownSessionSurfacesError(t *testing.T) {
	s, err := store.NewChromemStore(store.ChromemConfig{Path: t.TempDir()}, nil)
	require.NoError(t, err)

	r := retriever.NewWithConfig(retriever.RetrieverConfig{MinScore: 0.3}, fakeEmbedder{}, s, nil)

	_, err = r.Retrieve(context.Background(), "missing", "anything", 5)
	assert.ErrorIs(t, err, store.ErrCollectionNotFound)
}

func TestRetrieve_NeverExceedsK(t *testing.T) {
	s := seededStore(t)
	r := retriever.NewWithConfig(retriever.RetrieverConfig{MinScore: -1}, fakeEmbedder{}, s, nil)

	result, err := r.Retrieve(context.Background(), "doc1", "anything", 2)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(result.Matches), 2)

	for i := 1; i < len(result.Matches); i++ {
		assert.GreaterOrEqual(t, result.Matches[i-1].Score, result.Matches[i].Score)
	}
}
