package usecase

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"testing"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

func TestDecomposeSplitsNonBlankLines(t *testing.T) {
	tests := []struct {
		name     string
		response string
		max      int
		want     []string
	}{
		{
			name:     "numbered steps",
			response: "1. Identify the parties\n\n   2. Find the termination clause  \n",
			want:     []string{"1. Identify the parties", "2. Find the termination clause"},
		},
		{
			name:     "crlf line endings",
			response: "What law governs?\r\nWho may terminate?\r\n",
			want:     []string{"What law governs?", "Who may terminate?"},
		},
		{
			name:     "blank response falls back to question",
			response: "  \n\t\n",
			want:     []string{"Can the tenant terminate early?"},
		},
		{
			name:     "capped",
			response: "a\nb\nc",
			max:      2,
			want:     []string{"a", "b"},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			completer := &completerFake{respond: func(string) (string, error) { return tc.response, nil }}
			got, err := NewDecomposer(completer, tc.max).Decompose(context.Background(), "Can the tenant terminate early?")
			if err != nil {
				t.Fatalf("Decompose() error = %v", err)
			}
			if !reflect.DeepEqual(got, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, got)
			}
			if len(completer.calls()) != 1 {
				t.Fatalf("expected exactly one model call, got %d", len(completer.calls()))
			}
		})
	}
}

func TestDecomposeBuildsPromptWithQuestion(t *testing.T) {
	completer := &completerFake{respond: func(string) (string, error) { return "step", nil }}
	if _, err := NewDecomposer(completer, 0).Decompose(context.Background(), "Who owns the IP?"); err != nil {
		t.Fatalf("Decompose() error = %v", err)
	}
	prompt := completer.calls()[0]
	if !isDecompositionPrompt(prompt) || !strings.Contains(prompt, "Question: Who owns the IP?") {
		t.Fatalf("unexpected prompt: %s", prompt)
	}
}

func TestDecomposeWrapsModelFailure(t *testing.T) {
	completer := &completerFake{respond: func(string) (string, error) { return "", errors.New("rate limited") }}
	_, err := NewDecomposer(completer, 0).Decompose(context.Background(), "question")
	if !domain.IsKind(err, domain.ErrGeneration) {
		t.Fatalf("expected ErrGeneration, got %v", err)
	}
}

func TestDecomposeRejectsEmptyQuestion(t *testing.T) {
	completer := &completerFake{respond: func(string) (string, error) { return "step", nil }}
	_, err := NewDecomposer(completer, 0).Decompose(context.Background(), "   ")
	if !domain.IsKind(err, domain.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if len(completer.calls()) != 0 {
		t.Fatalf("expected no model call")
	}
}
