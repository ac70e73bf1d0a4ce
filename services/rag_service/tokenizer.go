package rag_service

import (
	"fmt"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"
)

// CharsPerToken is the fixed approximation used to turn token budgets into
// character budgets.
const CharsPerToken = 4

// Tokenizer measures the exact token count of a text.
type Tokenizer interface {
	CountTokens(text string) int
}

type TiktokenTokenizer struct {
	encoding *tiktoken.Tiktoken
}

// NewTiktokenTokenizer loads the BPE ranks for the given model. The first
// call downloads them unless TIKTOKEN_CACHE_DIR already holds a copy.
func NewTiktokenTokenizer(model string) (*TiktokenTokenizer, error) {
	enc, err := tiktoken.EncodingForModel(model)
	if err != nil {
		return nil, fmt.Errorf("failed to load tokenizer for model %s: %w", model, err)
	}
	return &TiktokenTokenizer{encoding: enc}, nil
}

func (t *TiktokenTokenizer) CountTokens(text string) int {
	return len(t.encoding.Encode(text, nil, nil))
}

// ApproxTokenizer estimates tokens from the character count. It is only used
// when the BPE ranks cannot be loaded.
type ApproxTokenizer struct{}

func (ApproxTokenizer) CountTokens(text string) int {
	n := utf8.RuneCountInString(text)
	return (n + CharsPerToken - 1) / CharsPerToken
}
