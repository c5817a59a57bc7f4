package domain

import "time"

const (
	MinEvaluationScore = 1
	MaxEvaluationScore = 5
)

// Evaluation is an LLM-judged assessment of one answer.
// Score is 0 when the judge response carried no parsable score.
type Evaluation struct {
	ID          string    `json:"id"`
	AnswerID    string    `json:"answer_id,omitempty"`
	Question    string    `json:"question"`
	Answer      string    `json:"answer"`
	Summary     string    `json:"summary"`
	Score       int       `json:"score"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}
