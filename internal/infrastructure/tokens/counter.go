package tokens

import (
	"log/slog"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// Counter counts tokens with a tiktoken encoding, or estimates them when no encoding is loaded.
type Counter struct {
	encoding *tiktoken.Tiktoken
}

// NewCounter loads the named encoding. An empty name or a load failure (the BPE file is
// fetched on first use) falls back to the estimate.
func NewCounter(encodingName string) *Counter {
	encodingName = strings.TrimSpace(encodingName)
	if encodingName == "" {
		return &Counter{}
	}
	encoding, err := tiktoken.GetEncoding(encodingName)
	if err != nil {
		slog.Warn("token_encoding_unavailable", "encoding", encodingName, "error", err)
		return &Counter{}
	}
	return &Counter{encoding: encoding}
}

func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c.encoding == nil {
		return estimate(text)
	}
	return len(c.encoding.Encode(text, nil, nil))
}

func (c *Counter) Exact() bool {
	return c.encoding != nil
}

// estimate assumes roughly three runes per token, rounded up.
func estimate(text string) int {
	runes := utf8.RuneCountInString(text)
	return (runes + 2) / 3
}
