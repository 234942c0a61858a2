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

const questionTemplate = `Based only on the following document excerpt, write one concise comprehension question that can be answered from the excerpt alone.

%s

Respond with the question text only, without numbering or commentary.`

const questionStrictSuffix = `

Your previous reply was empty or malformed. Respond with a single question on one line and nothing else.`

const evaluateTemplate = `You are grading a reader's answer to a comprehension question about a document. Judge strictly against the excerpt below; outside knowledge does not count.

Excerpt:
%s

Question: %s

Reader's answer: %s

Respond in exactly this format:
Status: Correct or Incorrect
Score: a number from 0 to 10
Justification: one or two sentences quoting the excerpt where relevant`

const evaluateStrictSuffix = `

Your previous reply did not follow the required format. Respond again using exactly the three labeled lines: Status, Score, Justification.`

var (
	numberingPrefix      = regexp.MustCompile(`^\s*\d+[.)]?\s*`)
	statusPattern        = regexp.MustCompile(`(?im)^\s*\**\s*(?:evaluation\s+)?status\s*:?\**\s*(correct|incorrect)`)
	scorePattern         = regexp.MustCompile(`(?im)^\s*\**\s*score\s*:?\**\s*(\d+)`)
	justificationSection = regexp.MustCompile(`(?is)\**\s*justification\s*:?\**\s*(.+)`)
)

// GenerateQuestions creates n comprehension questions, each grounded on a
// distinct region of the document. Regions are sampled at an even stride so
// the questions cover the whole document rather than clustering at the start.
func (o *Orchestrator) GenerateQuestions(ctx context.Context, sessionID string, n int) ([]models.ChallengeItem, error) {
	if n < 1 {
		n = 1
	}

	chunks, err := o.store.Chunks(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoContent, sessionID)
	}
	if n > len(chunks) {
		n = len(chunks)
	}

	items := make([]models.ChallengeItem, 0, n)
	for i := 0; i < n; i++ {
		grounding := sampleRegion(chunks, i, n)

		question, err := o.generateQuestion(ctx, grounding)
		if err != nil {
			return nil, err
		}

		items = append(items, models.ChallengeItem{
			Question:  question,
			Grounding: grounding,
		})
	}

	o.logger.Info("generated challenge questions",
		zap.String("session_id", sessionID),
		zap.Int("count", len(items)),
	)

	return items, nil
}

// Evaluate grades a user's answer against the question's original grounding
// chunks, never against fresh retrieval, so the grader sees exactly the text
// the question was drawn from. An empty answer scores zero without a model
// call.
func (o *Orchestrator) Evaluate(ctx context.Context, item models.ChallengeItem, userAnswer string) (models.ChallengeItem, error) {
	item.UserAnswer = strings.TrimSpace(userAnswer)

	if item.UserAnswer == "" {
		item.Correct = false
		item.Score = 0
		item.Justification = "No answer was provided."
		item.Evaluated = true
		return item, nil
	}

	prompt := fmt.Sprintf(evaluateTemplate, joinChunks(item.Grounding), item.Question, item.UserAnswer)

	raw, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return item, err
	}

	verdict, parseErr := parseEvaluation(raw)
	if parseErr != nil {
		raw, err = o.generator.Generate(ctx, prompt+evaluateStrictSuffix)
		if err != nil {
			return item, err
		}
		verdict, parseErr = parseEvaluation(raw)
		if parseErr != nil {
			return item, fmt.Errorf("%w: %v", ErrResponseParse, parseErr)
		}
	}

	item.Correct = verdict.correct
	item.Score = verdict.score
	item.Justification = verdict.justification
	item.Evaluated = true
	return item, nil
}

func (o *Orchestrator) generateQuestion(ctx context.Context, grounding []models.Chunk) (string, error) {
	prompt := fmt.Sprintf(questionTemplate, joinChunks(grounding))

	raw, err := o.generator.Generate(ctx, prompt)
	if err != nil {
		return "", err
	}

	question := cleanQuestion(raw)
	if question != "" {
		return question, nil
	}

	raw, err = o.generator.Generate(ctx, prompt+questionStrictSuffix)
	if err != nil {
		return "", err
	}

	question = cleanQuestion(raw)
	if question == "" {
		return "", fmt.Errorf("%w: empty question", ErrResponseParse)
	}
	return question, nil
}

// cleanQuestion extracts the question from a response that may carry list
// numbering or surrounding quotes despite the prompt asking for bare text.
func cleanQuestion(raw string) string {
	for _, line := range strings.Split(raw, "\n") {
		line = strings.TrimSpace(numberingPrefix.ReplaceAllString(line, ""))
		line = strings.Trim(line, `"'`)
		if line != "" {
			return line
		}
	}
	return ""
}

// sampleRegion picks the i-th of n evenly spaced regions, each spanning up to
// two adjacent chunks so a question can bridge a chunk boundary.
func sampleRegion(chunks []models.Chunk, i, n int) []models.Chunk {
	start := i * len(chunks) / n
	end := start + 2
	if end > len(chunks) {
		end = len(chunks)
	}

	region := make([]models.Chunk, end-start)
	copy(region, chunks[start:end])
	return region
}

type evaluation struct {
	correct       bool
	score         int
	justification string
}

func parseEvaluation(raw string) (evaluation, error) {
	status := statusPattern.FindStringSubmatch(raw)
	if status == nil {
		return evaluation{}, fmt.Errorf("missing status line")
	}

	scoreMatch := scorePattern.FindStringSubmatch(raw)
	if scoreMatch == nil {
		return evaluation{}, fmt.Errorf("missing score line")
	}
	score, err := strconv.Atoi(scoreMatch[1])
	if err != nil || score < 0 || score > 10 {
		return evaluation{}, fmt.Errorf("score out of range: %s", scoreMatch[1])
	}

	justMatch := justificationSection.FindStringSubmatch(raw)
	if justMatch == nil {
		return evaluation{}, fmt.Errorf("missing justification")
	}

	return evaluation{
		correct:       strings.EqualFold(status[1], "correct"),
		score:         score,
		justification: strings.TrimSpace(justMatch[1]),
	}, nil
}
