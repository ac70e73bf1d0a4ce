package llm_service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const defaultAnthropicMaxTokens = 1024

type AnthropicConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout time.Duration
}

// AnthropicService is a completion-only provider. Anthropic has no
// embeddings endpoint, so it is always paired with another Embedder.
type AnthropicService struct {
	client anthropic.Client
	model  string
	logger *slog.Logger
}

func NewAnthropicService(cfg AnthropicConfig, logger *slog.Logger) *AnthropicService {
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

	return &AnthropicService{
		client: anthropic.NewClient(opts...),
		model:  cfg.Model,
		logger: logger,
	}
}

// Complete sends a single-turn message. JSON mode has no native switch in
// the Messages API; the system prompt carries the output contract.
func (s *AnthropicService) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(s.model),
		MaxTokens:   maxTokens,
		Temperature: anthropic.Float(req.Temperature),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(req.UserPrompt)),
		},
	}
	if req.SystemPrompt != "" {
		params.System = []anthropic.TextBlockParam{{Text: req.SystemPrompt}}
	}

	msg, err := s.client.Messages.New(ctx, params)
	if err != nil {
		perr := describeProviderError("anthropic", err)
		s.logger.Error("Anthropic message request failed",
			slog.String("model", s.model),
			slog.Bool("quota_exceeded", perr.QuotaExceeded()),
			slog.String("error", perr.Error()))
		return "", perr
	}

	var b strings.Builder
	for _, block := range msg.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("anthropic returned no text content")
	}

	s.logger.Debug("Anthropic message completed",
		slog.String("model", s.model),
		slog.Int64("input_tokens", msg.Usage.InputTokens),
		slog.Int64("output_tokens", msg.Usage.OutputTokens))

	return b.String(), nil
}
