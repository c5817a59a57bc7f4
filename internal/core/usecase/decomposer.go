package usecase

import (
	"context"
	"fmt"
	"strings"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
	"github.com/kirillkom/legal-doc-agent/internal/core/ports"
)

type Decomposer struct {
	completer       ports.Completer
	maxSubQuestions int
}

// NewDecomposer creates a decomposer; maxSubQuestions <= 0 keeps every generated line.
func NewDecomposer(completer ports.Completer, maxSubQuestions int) *Decomposer {
	return &Decomposer{
		completer:       completer,
		maxSubQuestions: maxSubQuestions,
	}
}

// Decompose asks the model once for reasoning steps. The result is never empty:
// a blank response yields the original question.
func (d *Decomposer) Decompose(ctx context.Context, question string) ([]string, error) {
	question = strings.TrimSpace(question)
	if question == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decompose", fmt.Errorf("question is empty"))
	}

	raw, err := d.completer.Complete(ctx, buildDecompositionPrompt(question))
	if err != nil {
		return nil, domain.WrapError(domain.ErrGeneration, "decompose", err)
	}

	subQuestions := parseSubQuestions(raw)
	if len(subQuestions) == 0 {
		return []string{question}, nil
	}
	if d.maxSubQuestions > 0 && len(subQuestions) > d.maxSubQuestions {
		subQuestions = subQuestions[:d.maxSubQuestions]
	}
	return subQuestions, nil
}

func parseSubQuestions(raw string) []string {
	lines := strings.Split(raw, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		out = append(out, line)
	}
	return out
}
