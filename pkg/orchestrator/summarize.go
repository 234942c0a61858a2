package orchestrator

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
)

const summarizeTemplate = `Summarize the following document excerpt in at most %d words. Use only information present in the excerpt.

%s

Summary:`

const combineTemplate = `The following are summaries of consecutive sections of one document. Combine them into a single coherent summary of at most %d words. Use only information present in the section summaries.

%s

Summary:`

// Summarize produces a summary built exclusively from stored chunk text.
// Short documents are summarized in one pass; longer ones are reduced group
// by group and the partial summaries combined, keeping each prompt bounded
// regardless of document size.
func (o *Orchestrator) Summarize(ctx context.Context, sessionID string) (string, error) {
	chunks, err := o.store.Chunks(ctx, sessionID)
	if err != nil {
		return "", err
	}
	if len(chunks) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoContent, sessionID)
	}

	if len(chunks) <= o.config.SummaryGroupSize {
		return o.summarizeText(ctx, joinChunks(chunks))
	}

	groups := groupChunks(chunks, o.config.SummaryGroupSize)
	o.logger.Info("summarizing in two passes",
		zap.String("session_id", sessionID),
		zap.Int("chunks", len(chunks)),
		zap.Int("groups", len(groups)),
	)

	partials := make([]string, 0, len(groups))
	for _, group := range groups {
		partial, err := o.summarizeText(ctx, joinChunks(group))
		if err != nil {
			return "", err
		}
		partials = append(partials, partial)
	}

	prompt := fmt.Sprintf(combineTemplate, o.config.SummaryMaxWords, strings.Join(partials, "\n\n"))
	summary, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(summary), nil
}

func (o *Orchestrator) summarizeText(ctx context.Context, text string) (string, error) {
	prompt := fmt.Sprintf(summarizeTemplate, o.config.SummaryMaxWords, text)

	summary, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	return strings.TrimSpace(summary), nil
}

func joinChunks(chunks []models.Chunk) string {
	texts := make([]string, len(chunks))
	for i, chunk := range chunks {
		texts[i] = chunk.Text
	}
	return strings.Join(texts, "\n\n")
}

func groupChunks(chunks []models.Chunk, size int) [][]models.Chunk {
	var groups [][]models.Chunk
	for start := 0; start < len(chunks); start += size {
		end := start + size
		if end > len(chunks) {
			end = len(chunks)
		}
		groups = append(groups, chunks[start:end])
	}
	return groups
}
