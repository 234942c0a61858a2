package chunker

import (
	"errors"
	"strings"
	"unicode/utf8"

	"github.com/anvik/docsage/internal/models"
)

// ErrEmptyInput is returned when the document text is empty or whitespace-only
// after normalization.
var ErrEmptyInput = errors.New("document text is empty")

type ChunkerConfig struct {
	MaxSize int // upper bound on chunk length in characters
	Overlap int // characters carried from the tail of one chunk into the next
}

// Chunker splits document text into overlapping, size-bounded chunks.
// Splitting prefers sentence boundaries and falls back to a hard character
// cut only when a single sentence exceeds the budget. Identical input and
// parameters always produce an identical chunk sequence.
type Chunker struct {
	config ChunkerConfig
}

func NewWithConfig(config ChunkerConfig) Chunker {
	if config.MaxSize == 0 {
		config.MaxSize = 1000
	}
	// Zero overlap is a valid setting; only repair values that make no sense.
	if config.Overlap < 0 {
		config.Overlap = 0
	}
	if config.Overlap >= config.MaxSize {
		config.Overlap = config.MaxSize / 5
	}

	return Chunker{
		config: config,
	}
}

func (c Chunker) Chunk(text string) ([]models.Chunk, error) {
	// Collapse all whitespace runs into single spaces
	normalized := strings.Join(strings.Fields(text), " ")
	if normalized == "" {
		return nil, ErrEmptyInput
	}

	units := c.splitUnits(normalized)

	var chunks []models.Chunk
	var current strings.Builder

	emit := func() {
		chunks = append(chunks, models.Chunk{
			Index: len(chunks),
			Text:  current.String(),
		})
	}

	for _, unit := range units {
		if current.Len() > 0 && current.Len()+1+len(unit) > c.config.MaxSize {
			emit()

			// Carry the tail of the finished chunk so context that
			// spans the boundary stays retrievable from both sides.
			tail := current.String()
			if len(tail) > c.config.Overlap {
				cut := len(tail) - c.config.Overlap
				// Shrink the carry to the next rune boundary so a
				// multi-byte character is never split.
				for cut < len(tail) && !utf8.RuneStart(tail[cut]) {
					cut++
				}
				tail = tail[cut:]
			}
			current.Reset()
			current.WriteString(tail)
		}
		if current.Len() > 0 {
			current.WriteString(" ")
		}
		current.WriteString(unit)
	}

	if current.Len() > 0 {
		emit()
	}

	return chunks, nil
}

// splitUnits splits text into sentences and hard-cuts any sentence too long
// to fit a chunk alongside the carried overlap.
func (c Chunker) splitUnits(text string) []string {
	maxUnit := c.config.MaxSize - c.config.Overlap - 1
	if maxUnit < 1 {
		maxUnit = 1
	}

	var units []string
	for _, sentence := range splitSentences(text) {
		for len(sentence) > maxUnit {
			// Back the cut off to a rune boundary.
			cut := maxUnit
			for cut > 0 && !utf8.RuneStart(sentence[cut]) {
				cut--
			}
			if cut == 0 {
				_, size := utf8.DecodeRuneInString(sentence)
				cut = size
			}
			units = append(units, sentence[:cut])
			sentence = sentence[cut:]
		}
		if sentence != "" {
			units = append(units, sentence)
		}
	}
	return units
}

func splitSentences(text string) []string {
	var sentences []string
	current := strings.Builder{}

	for i := 0; i < len(text); i++ {
		current.WriteByte(text[i])

		if text[i] != ' ' {
			continue
		}
		trimmed := strings.TrimRight(current.String(), " ")
		if strings.HasSuffix(trimmed, ".") ||
			strings.HasSuffix(trimmed, "!") ||
			strings.HasSuffix(trimmed, "?") {
			sentences = append(sentences, trimmed)
			current.Reset()
		}
	}

	if rest := strings.TrimSpace(current.String()); rest != "" {
		sentences = append(sentences, rest)
	}

	return sentences
}
