package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/anvik/docsage/internal/models"
)

const insufficientMarker = "INSUFFICIENT CONTEXT"

const askTemplate = `You are an assistant that answers questions using only the numbered context excerpts below. Do not use outside knowledge.

If the excerpts do not contain the information needed, reply with exactly: %s

%s
Question: %s

Answer the question, then on a new line cite your sources in the form: This is supported by Context [1] and Context [2].`

const askStrictSuffix = `

Your previous reply did not follow the required format. Answer again and you MUST end with a citation line of the exact form: This is supported by Context [N].`

var (
	justificationPattern = regexp.MustCompile(`(?i)this is supported by[^.\n]*`)
	citationPattern      = regexp.MustCompile(`(?i)context \[(\d+)\]`)
)

// Ask answers a question using only retrieved chunks of the session's
// document. When retrieval finds nothing above the similarity floor, or the
// model judges the retrieved excerpts insufficient, the returned answer is
// ungrounded and no claim is invented.
func (o *Orchestrator) Ask(ctx context.Context, sessionID, question string) (models.Answer, error) {
	result, err := o.retriever.Retrieve(ctx, sessionID, question, o.config.TopK)
	if err != nil {
		return models.Answer{}, err
	}

	if result.Empty() {
		o.logger.Info("no grounding found",
			zap.String("session_id", sessionID),
			zap.String("question", question),
		)
		return models.Answer{
			Grounded: false,
			Text:     "The document does not contain enough relevant content to answer this question.",
		}, nil
	}

	prompt := fmt.Sprintf(askTemplate, insufficientMarker, contextBlock(result.Matches), question)

	raw, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return models.Answer{}, err
	}

	answer, parseErr := parseAnswer(raw, result.Matches)
	if parseErr == nil {
		return answer, nil
	}

	// One retry with an explicit format reminder before giving up.
	raw, err = o.generator.Generate(ctx, prompt+askStrictSuffix)
	if err != nil {
		return models.Answer{}, err
	}

	answer, parseErr = parseAnswer(raw, result.Matches)
	if parseErr != nil {
		return models.Answer{}, fmt.Errorf("%w: %v", ErrResponseParse, parseErr)
	}
	return answer, nil
}

// contextBlock renders matches as numbered excerpts. Numbering starts at 1 to
// line up with the citation format the prompt asks for.
func contextBlock(matches []models.Match) string {
	var b strings.Builder
	for i, match := range matches {
		fmt.Fprintf(&b, "Context [%d]: %s\n", i+1, match.Chunk.Text)
	}
	return b.String()
}

func parseAnswer(raw string, matches []models.Match) (models.Answer, error) {
	text := strings.TrimSpace(raw)
	if text == "" {
		return models.Answer{}, fmt.Errorf("empty response")
	}

	if strings.Contains(strings.ToUpper(text), insufficientMarker) {
		return models.Answer{
			Grounded: false,
			Text:     "The document does not contain enough relevant content to answer this question.",
		}, nil
	}

	justification := strings.TrimSpace(justificationPattern.FindString(text))
	if justification == "" {
		return models.Answer{}, fmt.Errorf("missing citation line")
	}

	supporting := citedChunks(justification, matches)
	if len(supporting) == 0 {
		return models.Answer{}, fmt.Errorf("citation references no known excerpt")
	}

	body := strings.TrimSpace(justificationPattern.ReplaceAllString(text, ""))
	if body == "" {
		return models.Answer{}, fmt.Errorf("response contains only a citation")
	}

	return models.Answer{
		Grounded:      true,
		Text:          body,
		Justification: justification,
		Supporting:    supporting,
	}, nil
}

// citedChunks resolves "Context [N]" references back to the retrieved chunks.
// Out-of-range references are dropped rather than failing the whole answer.
func citedChunks(justification string, matches []models.Match) []models.Chunk {
	seen := make(map[int]bool)
	var chunks []models.Chunk

	for _, group := range citationPattern.FindAllStringSubmatch(justification, -1) {
		n, err := strconv.Atoi(group[1])
		if err != nil || n < 1 || n > len(matches) || seen[n] {
			continue
		}
		seen[n] = true
		chunks = append(chunks, matches[n-1].Chunk)
	}

	return chunks
}
