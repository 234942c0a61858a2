package chunker_test

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anvik/docsage/pkg/chunker"
)

func TestChunk_EmptyInput(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{MaxSize: 100, Overlap: 20})

	_, err := c.Chunk("")
	assert.ErrorIs(t, err, chunker.ErrEmptyInput)

	_, err = c.Chunk("   \n\t  ")
	assert.ErrorIs(t, err, chunker.ErrEmptyInput)
}

func TestChunk_SingleShortDocument(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{MaxSize: 1000, Overlap: 200})

	chunks, err := c.Chunk("The capital of France is Paris. It is a beautiful city.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, 0, chunks[0].Index)
	assert.Equal(t, "The capital of France is Paris. It is a beautiful city.", chunks[0].Text)
}

func TestChunk_Deterministic(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{MaxSize: 120, Overlap: 30})
	text := strings.Repeat("One sentence here. Another follows it! A third one? ", 40)

	first, err := c.Chunk(text)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		again, err := c.Chunk(text)
		require.NoError(t, err)
		assert.Equal(t, first, again)
	}
}

func TestChunk_SizeBoundAndIndexes(t *testing.T) {
	cfg := chunker.ChunkerConfig{MaxSize: 150, Overlap: 40}
	c := chunker.NewWithConfig(cfg)
	text := strings.Repeat("Some sentences are short. Others go on for quite a while before stopping. ", 30)

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.Equal(t, i, ch.Index)
		assert.LessOrEqual(t, len(ch.Text), cfg.MaxSize, "chunk %d exceeds max size", i)
		assert.NotEmpty(t, ch.Text)
	}
}

func TestChunk_OverlapContinuity(t *testing.T) {
	cfg := chunker.ChunkerConfig{MaxSize: 200, Overlap: 50}
	c := chunker.NewWithConfig(cfg)
	text := strings.Repeat("Facts accumulate across sentence boundaries in this document. ", 50)

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 2)

	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		tail := prev
		if len(tail) > cfg.Overlap {
			tail = tail[len(tail)-cfg.Overlap:]
		}
		assert.True(t, strings.HasPrefix(chunks[i].Text, tail),
			"chunk %d does not begin with the tail of chunk %d", i, i-1)
	}
}

func TestChunk_HardCutOversizedSentence(t *testing.T) {
	cfg := chunker.ChunkerConfig{MaxSize: 100, Overlap: 20}
	c := chunker.NewWithConfig(cfg)

	// A single "sentence" with no boundary markers at all
	text := strings.Repeat("x", 1000)

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.LessOrEqual(t, len(ch.Text), cfg.MaxSize, "chunk %d exceeds max size", i)
	}
}

func TestChunk_MultiByteRunesSurviveBoundaries(t *testing.T) {
	cfg := chunker.ChunkerConfig{MaxSize: 120, Overlap: 35}
	c := chunker.NewWithConfig(cfg)
	text := strings.Repeat("Überraschungsmenü für die Gäste. ", 30)

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text),
			"chunk %d contains invalid UTF-8: %q", i, ch.Text)
		assert.LessOrEqual(t, len(ch.Text), cfg.MaxSize, "chunk %d exceeds max size", i)
	}

	// The carried tail backs off to a rune boundary, never past the overlap.
	for i := 1; i < len(chunks); i++ {
		prev := chunks[i-1].Text
		cut := len(prev) - cfg.Overlap
		if cut < 0 {
			cut = 0
		}
		for cut < len(prev) && !utf8.RuneStart(prev[cut]) {
			cut++
		}
		assert.True(t, strings.HasPrefix(chunks[i].Text, prev[cut:]),
			"chunk %d does not begin with the tail of chunk %d", i, i-1)
	}
}

func TestChunk_HardCutRespectsRuneBoundaries(t *testing.T) {
	cfg := chunker.ChunkerConfig{MaxSize: 100, Overlap: 20}
	c := chunker.NewWithConfig(cfg)

	// One unbroken run of two-byte runes, forcing repeated hard cuts
	chunks, err := c.Chunk(strings.Repeat("é", 300))
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	for i, ch := range chunks {
		assert.True(t, utf8.ValidString(ch.Text),
			"chunk %d contains invalid UTF-8: %q", i, ch.Text)
		assert.LessOrEqual(t, len(ch.Text), cfg.MaxSize, "chunk %d exceeds max size", i)
	}
}

func TestChunk_ZeroOverlap(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{MaxSize: 80, Overlap: 0})
	text := strings.Repeat("Short sentences stack up. ", 20)

	chunks, err := c.Chunk(text)
	require.NoError(t, err)
	require.Greater(t, len(chunks), 1)

	// No carry: the chunks partition the document exactly.
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	assert.Equal(t, strings.TrimSpace(text), strings.Join(texts, " "))
}

func TestChunk_WhitespaceNormalization(t *testing.T) {
	c := chunker.NewWithConfig(chunker.ChunkerConfig{MaxSize: 1000, Overlap: 100})

	chunks, err := c.Chunk("Spread \n\n across\t\tlines.   And  spaces.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Spread across lines. And spaces.", chunks[0].Text)
}
