// Package tokens counts model tokens so oversized chunks can be flagged
// before they reach the embedding API.
package tokens

import (
	"log"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

const (
	// DefaultEncoding is the tokenizer shared by ada-002 and text-embedding-3 models.
	DefaultEncoding = "cl100k_base"
	// EmbeddingInputLimit is the maximum input the embedding models accept.
	EmbeddingInputLimit = 8191
)

// Counter counts tokens with a tiktoken encoding, or estimates them when the
// encoding is unavailable.
type Counter struct {
	enc *tiktoken.Tiktoken
}

// NewCounter loads encoding. Loading can fail offline since tiktoken fetches
// BPE ranks on first use; the counter then falls back to an estimate.
func NewCounter(encoding string) *Counter {
	if encoding == "" {
		encoding = DefaultEncoding
	}
	enc, err := tiktoken.GetEncoding(encoding)
	if err != nil {
		log.Printf("tokens: encoding %s unavailable, estimating counts: %v", encoding, err)
		return &Counter{}
	}
	return &Counter{enc: enc}
}

// Count returns the number of tokens in text.
func (c *Counter) Count(text string) int {
	if text == "" {
		return 0
	}
	if c == nil || c.enc == nil {
		return Estimate(text)
	}
	return len(c.enc.Encode(text, nil, nil))
}

// Exact reports whether counts come from a real tokenizer.
func (c *Counter) Exact() bool {
	return c != nil && c.enc != nil
}

// Estimate approximates the token count as one token per four characters.
func Estimate(text string) int {
	n := utf8.RuneCountInString(text)
	if n == 0 {
		return 0
	}
	return (n + 3) / 4
}
