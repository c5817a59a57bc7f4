package domain

import "time"

type RetrievalResult struct {
	Text         string  `json:"text"`
	DocumentName string  `json:"doc_name"`
	ChunkID      int     `json:"chunk_id"`
	Distance     float32 `json:"distance"`
}

// DocumentContext groups the retrieval results of one document across all sub-questions,
// in sub-question order. Duplicates are kept.
type DocumentContext struct {
	DocumentName string            `json:"doc_name"`
	Results      []RetrievalResult `json:"results"`
}

func (d DocumentContext) ChunkIDs() []int {
	out := make([]int, 0, len(d.Results))
	for _, r := range d.Results {
		out = append(out, r.ChunkID)
	}
	return out
}

type AggregatedContext struct {
	SubQuestions []string
	Documents    []DocumentContext
	Rendered     string
	Truncated    bool
}

type Source struct {
	DocumentName string `json:"doc_name"`
	ChunkIDs     []int  `json:"chunk_ids"`
}

type Answer struct {
	Question         string   `json:"question"`
	SubQuestions     []string `json:"sub_questions"`
	Text             string   `json:"answer"`
	Sources          []Source `json:"sources"`
	ContextTruncated bool     `json:"context_truncated"`
	// Context is the rendered context the answer was synthesized from.
	Context string `json:"context"`
}

// Record builds the evaluation record for a, carrying the context the answer was grounded on.
func (a *Answer) Record(id string, answeredAt time.Time) AnswerRecord {
	return AnswerRecord{
		ID:           id,
		Question:     a.Question,
		SubQuestions: a.SubQuestions,
		Context:      a.Context,
		Answer:       a.Text,
		AnsweredAt:   answeredAt,
	}
}

// AnswerRecord is emitted after every answered question so it can be evaluated offline.
type AnswerRecord struct {
	ID           string    `json:"id"`
	Question     string    `json:"question"`
	SubQuestions []string  `json:"sub_questions"`
	Context      string    `json:"context"`
	Answer       string    `json:"answer"`
	AnsweredAt   time.Time `json:"answered_at"`
}
