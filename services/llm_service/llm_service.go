package llm_service

import "context"

// CompletionRequest carries the prompts and sampling options for one
// text-generation call.
type CompletionRequest struct {
	SystemPrompt string
	UserPrompt   string
	Temperature  float64
	MaxTokens    int
	// JSONMode asks the provider to return a single JSON object.
	JSONMode bool
}

type LLMService interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}
