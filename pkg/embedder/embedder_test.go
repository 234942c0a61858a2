package embedder

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeClient struct {
	calls      [][]string
	failFirst  int // number of leading calls that error
	callsSoFar int
}

func (f *fakeClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	f.callsSoFar++
	f.calls = append(f.calls, texts)
	if f.callsSoFar <= f.failFirst {
		return nil, errors.New("connection refused")
	}

	vectors := make([][]float32, len(texts))
	for i, text := range texts {
		vectors[i] = []float32{float32(len(text)), 1}
	}
	return vectors, nil
}

func testConfig() EmbedderConfig {
	return EmbedderConfig{
		BatchSize:  2,
		RateLimit:  1000,
		MaxRetries: 3,
		RetryBase:  time.Millisecond,
	}
}

func TestEmbed_BatchingPreservesOrder(t *testing.T) {
	client := &fakeClient{}
	e := NewWithClient(testConfig(), client, nil)

	texts := []string{"a", "bb", "ccc", "dddd", "eeeee"}
	vectors, err := e.Embed(context.Background(), texts)
	require.NoError(t, err)
	require.Len(t, vectors, len(texts))

	// 5 texts with batch size 2 -> 3 model calls
	assert.Len(t, client.calls, 3)

	for i, text := range texts {
		assert.Equal(t, float32(len(text)), vectors[i][0])
	}
}

func TestEmbed_RetriesThenSucceeds(t *testing.T) {
	client := &fakeClient{failFirst: 2}
	e := NewWithClient(testConfig(), client, nil)

	vectors, err := e.Embed(context.Background(), []string{"hello"})
	require.NoError(t, err)
	require.Len(t, vectors, 1)
	assert.Equal(t, 3, client.callsSoFar)
}

func TestEmbed_UnavailableAfterRetryBudget(t *testing.T) {
	client := &fakeClient{failFirst: 100}
	e := NewWithClient(testConfig(), client, nil)

	_, err := e.Embed(context.Background(), []string{"hello"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Equal(t, 3, client.callsSoFar)
}

func TestEmbed_AllOrNothingAcrossBatches(t *testing.T) {
	// Second batch fails permanently: no partial result comes back.
	client := &scriptedClient{failFrom: 2}
	e := NewWithClient(testConfig(), client, nil)

	vectors, err := e.Embed(context.Background(), []string{"a", "b", "c"})
	assert.ErrorIs(t, err, ErrUnavailable)
	assert.Nil(t, vectors)
}

func TestEmbed_EmptyInput(t *testing.T) {
	client := &fakeClient{}
	e := NewWithClient(testConfig(), client, nil)

	vectors, err := e.Embed(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, vectors)
	assert.Zero(t, client.callsSoFar)
}

func TestEmbedQuery(t *testing.T) {
	client := &fakeClient{}
	e := NewWithClient(testConfig(), client, nil)

	vector, err := e.EmbedQuery(context.Background(), "question")
	require.NoError(t, err)
	assert.Equal(t, float32(len("question")), vector[0])
}

// scriptedClient fails every call from batch number failFrom on (1-based).
type scriptedClient struct {
	batches  int
	failFrom int
}

func (s *scriptedClient) CreateEmbedding(_ context.Context, texts []string) ([][]float32, error) {
	// Distinct batches are distinguishable by their first text; retries of
	// the same batch keep the same batch number.
	s.batches++
	if s.currentBatch(texts) >= s.failFrom {
		return nil, fmt.Errorf("batch %d refused", s.failFrom)
	}

	vectors := make([][]float32, len(texts))
	for i := range texts {
		vectors[i] = []float32{1}
	}
	return vectors, nil
}

func (s *scriptedClient) currentBatch(texts []string) int {
	if texts[0] == "a" {
		return 1
	}
	return 2
}
