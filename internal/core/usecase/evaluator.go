package usecase

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

var (
	labeledScorePattern = regexp.MustCompile(`(?i)score\s*\**\s*[:=]?\s*\**\s*([1-5])(?:\s*/\s*5)?\b`)
	bareScorePattern    = regexp.MustCompile(`(?m)^\s*([1-5])\s*(?:/\s*5)?\s*$`)
)

type Evaluator struct {
	completer ports.Completer
	store     ports.EvaluationStore
	now       func() time.Time
}

// NewEvaluator creates an answer evaluator; store may be nil when results are not persisted.
func NewEvaluator(completer ports.Completer, store ports.EvaluationStore) *Evaluator {
	return &Evaluator{
		completer: completer,
		store:     store,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (e *Evaluator) Evaluate(ctx context.Context, record domain.AnswerRecord) (*domain.Evaluation, error) {
	if strings.TrimSpace(record.Question) == "" || strings.TrimSpace(record.Answer) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "evaluate", fmt.Errorf("question and answer are required"))
	}

	raw, err := e.completer.Complete(ctx, buildEvaluationPrompt(record))
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "evaluate", err)
	}

	evaluation := &domain.Evaluation{
		ID:          uuid.NewString(),
		AnswerID:    record.ID,
		Question:    record.Question,
		Answer:      record.Answer,
		Summary:     strings.TrimSpace(raw),
		Score:       parseEvaluationScore(raw),
		EvaluatedAt: e.now(),
	}

	if e.store != nil {
		if err := e.store.Save(ctx, evaluation); err != nil {
			return nil, fmt.Errorf("save evaluation: %w", err)
		}
	}
	return evaluation, nil
}

// parseEvaluationScore prefers the last "Score: N" line, then a last line holding only N.
func parseEvaluationScore(raw string) int {
	if matches := labeledScorePattern.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		return atoiScore(matches[len(matches)-1][1])
	}
	if matches := bareScorePattern.FindAllStringSubmatch(raw, -1); len(matches) > 0 {
		return atoiScore(matches[len(matches)-1][1])
	}
	return 0
}

func atoiScore(s string) int {
	n, err := strconv.Atoi(s)
	if err != nil || n < domain.MinEvaluationScore || n > domain.MaxEvaluationScore {
		return 0
	}
	return n
}
