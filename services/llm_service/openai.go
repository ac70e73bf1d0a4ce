package llm_service

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openai/openai-go/v2"
	"github.com/openai/openai-go/v2/option"
	"github.com/openai/openai-go/v2/shared"
)

type OpenAIConfig struct {
	APIKey         string
	BaseURL        string
	ChatModel      string
	EmbeddingModel string
	Timeout        time.Duration
}

// OpenAIService provides both embeddings and chat completions. It never
// retries; failures go straight back to the caller.
type OpenAIService struct {
	client         openai.Client
	chatModel      string
	embeddingModel string
	logger         *slog.Logger
}

func NewOpenAIService(cfg OpenAIConfig, logger *slog.Logger) *OpenAIService {
	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.Timeout > 0 {
		opts = append(opts, option.WithRequestTimeout(cfg.Timeout))
	}
	if base := strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"); base != "" {
		opts = append(opts, option.WithBaseURL(base))
	}

	return &OpenAIService{
		client:         openai.NewClient(opts...),
		chatModel:      cfg.ChatModel,
		embeddingModel: cfg.EmbeddingModel,
		logger:         logger,
	}
}

// EmbedBatch returns one vector per input text, in input order.
func (s *OpenAIService) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := s.client.Embeddings.New(ctx, openai.EmbeddingNewParams{
		Input: openai.EmbeddingNewParamsInputUnion{OfArrayOfStrings: texts},
		Model: openai.EmbeddingModel(s.embeddingModel),
	})
	if err != nil {
		perr := describeProviderError("openai", err)
		s.logger.Error("OpenAI embedding request failed",
			slog.String("model", s.embeddingModel),
			slog.Int("batch_size", len(texts)),
			slog.Bool("quota_exceeded", perr.QuotaExceeded()),
			slog.String("error", perr.Error()))
		return nil, perr
	}
	if len(resp.Data) != len(texts) {
		return nil, fmt.Errorf("openai returned %d embeddings for %d inputs", len(resp.Data), len(texts))
	}

	data := resp.Data
	sort.SliceStable(data, func(i, j int) bool { return data[i].Index < data[j].Index })

	vectors := make([][]float32, len(data))
	for i, d := range data {
		vec := make([]float32, len(d.Embedding))
		for j, v := range d.Embedding {
			vec[j] = float32(v)
		}
		vectors[i] = vec
	}
	return vectors, nil
}

func (s *OpenAIService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(s.chatModel),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(req.SystemPrompt),
			openai.UserMessage(req.UserPrompt),
		},
		Temperature: openai.Float(req.Temperature),
	}
	if req.MaxTokens > 0 {
		params.MaxTokens = openai.Int(int64(req.MaxTokens))
	}
	if req.JSONMode {
		params.ResponseFormat = openai.ChatCompletionNewParamsResponseFormatUnion{
			OfJSONObject: &shared.ResponseFormatJSONObjectParam{},
		}
	}

	resp, err := s.client.Chat.Completions.New(ctx, params)
	if err != nil {
		perr := describeProviderError("openai", err)
		s.logger.Error("OpenAI chat completion failed",
			slog.String("model", s.chatModel),
			slog.Bool("quota_exceeded", perr.QuotaExceeded()),
			slog.String("error", perr.Error()))
		return "", perr
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("openai returned no choices")
	}

	s.logger.Debug("OpenAI chat completion",
		slog.String("model", s.chatModel),
		slog.Int64("prompt_tokens", resp.Usage.PromptTokens),
		slog.Int64("completion_tokens", resp.Usage.CompletionTokens))

	return resp.Choices[0].Message.Content, nil
}
