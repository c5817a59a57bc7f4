package chunking

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/kirillkom/legal-doc-agent/internal/core/domain"
)

type Splitter struct {
	ChunkSize int
	Overlap   int
}

func NewSplitter(chunkSize, overlap int) *Splitter {
	if chunkSize <= 0 {
		chunkSize = 1000
	}
	if overlap < 0 {
		overlap = 0
	}
	if overlap >= chunkSize {
		overlap = chunkSize / 4
	}
	return &Splitter{
		ChunkSize: chunkSize,
		Overlap:   overlap,
	}
}

// Split joins the pages with "[Page N]" markers, so citations can name a page,
// and cuts the result into overlapping chunks numbered from 0.
func (s *Splitter) Split(documentName string, pages []domain.Page) []domain.Chunk {
	texts := s.SplitText(PageText(pages))
	out := make([]domain.Chunk, 0, len(texts))
	for i, text := range texts {
		out = append(out, domain.Chunk{
			DocumentName: documentName,
			ChunkID:      i,
			Text:         text,
		})
	}
	return out
}

// PageText renders pages as "\n[Page N]\n<text>", skipping pages without text.
func PageText(pages []domain.Page) string {
	var b strings.Builder
	for _, page := range pages {
		text := strings.TrimSpace(page.Text)
		if text == "" {
			continue
		}
		fmt.Fprintf(&b, "\n[Page %d]\n%s", page.Number, text)
	}
	return b.String()
}

// SplitText cuts text into windows of at most ChunkSize runes. A window ends at the last
// whitespace in its final fifth when there is one, so words are rarely split.
func (s *Splitter) SplitText(text string) []string {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	out := make([]string, 0, len(runes)/(s.ChunkSize-s.Overlap)+1)
	for start := 0; start < len(runes); {
		end := start + s.ChunkSize
		if end >= len(runes) {
			end = len(runes)
		} else {
			end = s.breakPoint(runes, start, end)
		}

		chunk := strings.TrimSpace(string(runes[start:end]))
		if chunk != "" {
			out = append(out, chunk)
		}
		if end == len(runes) {
			break
		}

		next := end - s.Overlap
		if next <= start {
			next = end
		}
		start = next
	}
	return out
}

func (s *Splitter) breakPoint(runes []rune, start, end int) int {
	floor := end - s.ChunkSize/5
	if floor <= start {
		return end
	}
	for i := end; i > floor; i-- {
		if unicode.IsSpace(runes[i-1]) {
			return i
		}
	}
	return end
}
