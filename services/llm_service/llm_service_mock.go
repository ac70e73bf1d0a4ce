package llm_service

import (
	"context"
)

type MockLLMService struct {
	CompleteFunc func(ctx context.Context, req CompletionRequest) (string, error)
}

func (m *MockLLMService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if m.CompleteFunc != nil {
		return m.CompleteFunc(ctx, req)
	}
	return `{"answer": "mock response", "has_answer": true, "citations": []}`, nil
}

// MockEmbedder returns a constant unit vector of Dimension for every text
// unless EmbedBatchFunc is set.
type MockEmbedder struct {
	Dimension      int
	EmbedBatchFunc func(ctx context.Context, texts []string) ([][]float32, error)
}

func (m *MockEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if m.EmbedBatchFunc != nil {
		return m.EmbedBatchFunc(ctx, texts)
	}
	dim := m.Dimension
	if dim <= 0 {
		dim = 3
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		vec := make([]float32, dim)
		vec[0] = 1
		out[i] = vec
	}
	return out, nil
}
