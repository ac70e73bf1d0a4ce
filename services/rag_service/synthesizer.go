package rag_service

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"math"
	"strconv"
	"strings"

	"github.com/serisow/smartdoc/rag_type"
	"github.com/serisow/smartdoc/services/llm_service"
)

const (
	NotEnoughInformation = "I don't have enough information in the provided documents to answer this question."

	maxHistoryTurns   = 3
	answerTemperature = 0.1
	answerMaxTokens   = 800
)

const systemPrompt = `You are an expert document analysis assistant. Answer questions based ONLY on the provided context.
Rules:
1. Only use information explicitly stated in the context
2. Cite sources using [SOURCE X] notation
3. If context lacks info, say: "` + NotEnoughInformation + `"
4. Respond in JSON: {"answer": "...", "has_answer": true/false, "citations": [1, 2]}
5. Be comprehensive when information is available`

// CompletionResult is either Parsed or Unparsed.
type CompletionResult interface {
	completionResult()
}

// Parsed is a structured answer decoded from the model output. Citations
// are the 1-based source numbers exactly as the model returned them.
type Parsed struct {
	Answer    string
	HasAnswer bool
	Citations []int
}

// Unparsed holds model output that could not be decoded.
type Unparsed struct {
	Raw string
}

func (Parsed) completionResult()   {}
func (Unparsed) completionResult() {}

// Synthesizer turns retrieved chunks into a grounded, cited answer.
type Synthesizer struct {
	llm    llm_service.LLMService
	logger *slog.Logger
}

func NewSynthesizer(llm llm_service.LLMService, logger *slog.Logger) *Synthesizer {
	return &Synthesizer{
		llm:    llm,
		logger: logger,
	}
}

func (s *Synthesizer) Synthesize(ctx context.Context, query string, chunks []rag_type.RetrievedChunk, history []rag_type.Message) (rag_type.Answer, error) {
	raw, err := s.llm.Complete(ctx, llm_service.CompletionRequest{
		SystemPrompt: SystemPrompt(),
		UserPrompt:   BuildUserPrompt(query, BuildContext(chunks), history),
		Temperature:  answerTemperature,
		MaxTokens:    answerMaxTokens,
		JSONMode:     true,
	})
	if err != nil {
		return rag_type.Answer{}, fmt.Errorf("failed to generate answer: %w", err)
	}

	switch result := ParseCompletion(raw).(type) {
	case Parsed:
		return rag_type.Answer{
			Answer:    result.Answer,
			Citations: MapCitations(result.Citations, chunks),
			HasAnswer: result.HasAnswer,
		}, nil
	case Unparsed:
		s.logger.Warn("Model output was not valid structured JSON, returning raw text",
			slog.Int("length", len(result.Raw)))
		return rag_type.Answer{
			Answer:    result.Raw,
			Citations: []rag_type.Citation{},
			HasAnswer: true,
		}, nil
	default:
		return rag_type.Answer{}, fmt.Errorf("unexpected completion result %T", result)
	}
}

func SystemPrompt() string {
	return systemPrompt
}

// BuildContext renders the chunks as numbered sources, in retrieval order.
func BuildContext(chunks []rag_type.RetrievedChunk) string {
	parts := make([]string, len(chunks))
	for i, c := range chunks {
		parts[i] = fmt.Sprintf("[SOURCE %d]\nDocument: %s\nPage: %d\nContent: %s\n---",
			i+1, c.DocumentTitle, c.PageNumber, c.Content)
	}
	return strings.Join(parts, "\n\n")
}

func BuildUserPrompt(query, contextBlock string, history []rag_type.Message) string {
	var b strings.Builder

	if len(history) > 0 {
		b.WriteString("Previous conversation:\n")
		for _, msg := range history[max(0, len(history)-maxHistoryTurns):] {
			fmt.Fprintf(&b, "%s: %s\n", msg.Role, msg.Content)
		}
		b.WriteString("\n---\n\n")
	}

	b.WriteString("Context:\n")
	b.WriteString(contextBlock)
	b.WriteString("\n\nQuestion: ")
	b.WriteString(query)
	b.WriteString("\nProvide a JSON response with answer, has_answer (boolean), and citations (array of source numbers).")
	return b.String()
}

type structuredAnswer struct {
	Answer    *string      `json:"answer"`
	HasAnswer *bool        `json:"has_answer"`
	Citations citationList `json:"citations"`
}

// citationList accepts numbers and numeric strings and skips anything else.
type citationList []int

func (l *citationList) UnmarshalJSON(data []byte) error {
	var items []any
	if err := json.Unmarshal(data, &items); err != nil {
		return err
	}
	out := make([]int, 0, len(items))
	for _, item := range items {
		switch v := item.(type) {
		case float64:
			if v == math.Trunc(v) {
				out = append(out, int(v))
			}
		case string:
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				out = append(out, n)
			}
		}
	}
	*l = out
	return nil
}

// ParseCompletion decodes the model output into a Parsed answer, tolerating
// code fences and surrounding prose. Anything else is Unparsed.
func ParseCompletion(raw string) CompletionResult {
	cleaned := strings.TrimSpace(raw)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```JSON")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	candidates := []string{cleaned}
	if start, end := strings.Index(cleaned, "{"), strings.LastIndex(cleaned, "}"); start >= 0 && end > start {
		candidates = append(candidates, cleaned[start:end+1])
	}

	for _, candidate := range candidates {
		var out structuredAnswer
		if err := json.Unmarshal([]byte(candidate), &out); err != nil || out.Answer == nil {
			continue
		}
		hasAnswer := true
		if out.HasAnswer != nil {
			hasAnswer = *out.HasAnswer
		}
		return Parsed{
			Answer:    *out.Answer,
			HasAnswer: hasAnswer,
			Citations: []int(out.Citations),
		}
	}

	return Unparsed{Raw: raw}
}
