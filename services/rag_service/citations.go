package rag_service

import "github.com/serisow/smartdoc/rag_type"

const previewChars = 200

// MapCitations converts 1-based source numbers into citations. Numbers
// outside [1, len(chunks)] are dropped; the rest keep their given order.
func MapCitations(indices []int, chunks []rag_type.RetrievedChunk) []rag_type.Citation {
	citations := make([]rag_type.Citation, 0, len(indices))
	for _, idx := range indices {
		if idx < 1 || idx > len(chunks) {
			continue
		}
		c := chunks[idx-1]
		citations = append(citations, rag_type.Citation{
			ChunkID:         c.ChunkID,
			DocumentTitle:   c.DocumentTitle,
			PageNumber:      c.PageNumber,
			TextPreview:     preview(c.Content),
			SimilarityScore: c.Similarity,
		})
	}
	return citations
}

func preview(content string) string {
	runes := []rune(content)
	if len(runes) <= previewChars {
		return content
	}
	return string(runes[:previewChars]) + "..."
}
