package rag_service

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/smartdoc/rag_type"
)

func TestMapCitationsDropsOutOfRangeAndKeepsOrder(t *testing.T) {
	chunks := sampleChunks()

	got := MapCitations([]int{0, 2, -1, 3, 1, 2}, chunks)

	require.Len(t, got, 3)
	assert.Equal(t, "c2", got[0].ChunkID)
	assert.Equal(t, "c1", got[1].ChunkID)
	assert.Equal(t, "c2", got[2].ChunkID)
	assert.Equal(t, "Policy", got[0].DocumentTitle)
	assert.Equal(t, "Carry-over is capped at 5 days.", got[0].TextPreview)
}

func TestMapCitationsEmpty(t *testing.T) {
	got := MapCitations(nil, sampleChunks())
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func TestMapCitationsTruncatesPreview(t *testing.T) {
	long := strings.Repeat("ü", 250)
	exact := strings.Repeat("a", 200)
	chunks := []rag_type.RetrievedChunk{{ChunkID: "long", Content: long}, {ChunkID: "exact", Content: exact}}

	got := MapCitations([]int{1, 2}, chunks)

	require.Len(t, got, 2)
	assert.Equal(t, strings.Repeat("ü", 200)+"...", got[0].TextPreview)
	assert.Equal(t, exact, got[1].TextPreview)
}
