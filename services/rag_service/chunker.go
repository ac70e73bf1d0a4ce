package rag_service

import (
	"errors"
	"fmt"

	"github.com/serisow/smartdoc/rag_type"
)

// MinChunkChars is the shortest trailing fragment kept as a chunk of its own.
const MinChunkChars = 100

var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Chunker splits cleaned page text into overlapping fixed-size windows.
type Chunker struct {
	windowChars  int
	overlapChars int
	tokenizer    Tokenizer
}

// NewChunker takes the chunk size and overlap in tokens.
func NewChunker(chunkSize, overlap int, tokenizer Tokenizer) (*Chunker, error) {
	if chunkSize <= 0 || overlap < 0 || overlap >= chunkSize {
		return nil, fmt.Errorf("%w: chunk size %d, overlap %d", ErrInvalidChunkConfig, chunkSize, overlap)
	}
	if tokenizer == nil {
		tokenizer = ApproxTokenizer{}
	}
	return &Chunker{
		windowChars:  chunkSize * CharsPerToken,
		overlapChars: overlap * CharsPerToken,
		tokenizer:    tokenizer,
	}, nil
}

// Chunk returns the chunks of one page, indexed from zero. Callers that
// combine several pages must renumber the indices.
func (c *Chunker) Chunk(text string, pageNumber int) []rag_type.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}

	stride := c.windowChars - c.overlapChars
	var chunks []rag_type.Chunk
	lastStart := 0

	for start := 0; start < len(runes); start += stride {
		end := min(start+c.windowChars, len(runes))

		// A short tail is folded into the previous chunk, which then runs to
		// the end of the text.
		if end-start < MinChunkChars && len(chunks) > 0 {
			c.measure(&chunks[len(chunks)-1], string(runes[lastStart:end]))
			break
		}

		chunk := rag_type.Chunk{Index: len(chunks), PageNumber: pageNumber}
		c.measure(&chunk, string(runes[start:end]))
		chunks = append(chunks, chunk)
		lastStart = start

		if end == len(runes) {
			break
		}
	}

	return chunks
}

func (c *Chunker) measure(chunk *rag_type.Chunk, content string) {
	chunk.Content = content
	chunk.CharCount = len([]rune(content))
	chunk.TokenCount = c.tokenizer.CountTokens(content)
}
