package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/uuid"

	"github.com/serisow/smartdoc/db"
	"github.com/serisow/smartdoc/rag_type"
	"github.com/serisow/smartdoc/services/rag_service"
)

const (
	maxQueryLength = 1000
	minTopK        = 1
	maxTopK        = 20
	historyLimit   = 10
	titleLength    = 100
)

// Answerer is the question-answering entry point.
type Answerer interface {
	AnswerWithChunks(ctx context.Context, req rag_service.QueryRequest, onRetrieved func([]rag_type.RetrievedChunk)) (*rag_type.QueryResult, error)
}

type ConversationStore interface {
	CreateConversation(ctx context.Context, userID, title string) (*rag_type.Conversation, error)
	TouchConversation(ctx context.Context, id string) error
	AppendMessage(ctx context.Context, conversationID string, role rag_type.Role, content string, citations []rag_type.Citation) (*rag_type.Message, error)
	GetConversation(ctx context.Context, id string) (*rag_type.Conversation, error)
	RecentMessages(ctx context.Context, conversationID string, limit int) ([]rag_type.Message, error)
}

type QueryRequest struct {
	Query          string   `json:"query"`
	ConversationID string   `json:"conversation_id,omitempty"`
	DocumentIDs    []string `json:"document_ids,omitempty"`
	TopK           *int     `json:"top_k,omitempty"`
	UserID         string   `json:"user_id,omitempty"`
}

type QueryResponse struct {
	ConversationID   string              `json:"conversation_id"`
	MessageID        string              `json:"message_id"`
	Answer           string              `json:"answer"`
	Citations        []rag_type.Citation `json:"citations"`
	HasAnswer        bool                `json:"has_answer"`
	RetrievedChunks  int                 `json:"retrieved_chunks"`
	CacheHit         bool                `json:"cache_hit"`
	ProcessingTimeMS int64               `json:"processing_time_ms"`
}

type QueryHandler struct {
	answerer      Answerer
	conversations ConversationStore
	defaultTopK   int
	logger        *slog.Logger
}

func NewQueryHandler(answerer Answerer, conversations ConversationStore, defaultTopK int, logger *slog.Logger) *QueryHandler {
	if defaultTopK < minTopK || defaultTopK > maxTopK {
		defaultTopK = rag_service.DefaultTopK
	}
	return &QueryHandler{
		answerer:      answerer,
		conversations: conversations,
		defaultTopK:   defaultTopK,
		logger:        logger,
	}
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	ctx := r.Context()

	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("Failed to decode request body",
			slog.String("error", err.Error()))
		writeJSONError(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	topK, err := h.validateRequest(&req)
	if err != nil {
		writeJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var history []rag_type.Message
	if req.ConversationID != "" {
		if err := h.conversations.TouchConversation(ctx, req.ConversationID); err != nil {
			if errors.Is(err, db.ErrConversationNotFound) {
				writeJSONError(w, "Conversation not found", http.StatusNotFound)
				return
			}
			h.internalError(w, "Failed to load conversation", err)
			return
		}
		history, err = h.conversations.RecentMessages(ctx, req.ConversationID, historyLimit)
		if err != nil {
			h.internalError(w, "Failed to load conversation", err)
			return
		}
	}

	var retrieved []rag_type.RetrievedChunk
	result, err := h.answerer.AnswerWithChunks(ctx, rag_service.QueryRequest{
		Query:       req.Query,
		DocumentIDs: req.DocumentIDs,
		TopK:        topK,
		History:     history,
	}, func(chunks []rag_type.RetrievedChunk) {
		retrieved = chunks
	})
	if err != nil {
		h.internalError(w, "Failed to process query", err)
		return
	}

	if h.logger.Enabled(ctx, slog.LevelDebug) && len(retrieved) > 0 {
		h.logger.Debug("Retrieved chunks", slog.String("chunks", spew.Sdump(retrieved)))
	}

	conversationID := req.ConversationID
	if conversationID == "" {
		conv, err := h.conversations.CreateConversation(ctx, req.UserID, truncateRunes(req.Query, titleLength))
		if err != nil {
			h.internalError(w, "Failed to create conversation", err)
			return
		}
		conversationID = conv.ID
	}

	if _, err := h.conversations.AppendMessage(ctx, conversationID, rag_type.RoleUser, req.Query, nil); err != nil {
		h.internalError(w, "Failed to save message", err)
		return
	}
	assistant, err := h.conversations.AppendMessage(ctx, conversationID, rag_type.RoleAssistant, result.Answer.Answer, result.Citations)
	if err != nil {
		h.internalError(w, "Failed to save message", err)
		return
	}

	citations := result.Citations
	if citations == nil {
		citations = []rag_type.Citation{}
	}

	elapsed := time.Since(start)
	h.logger.Info("Query answered",
		slog.String("conversation_id", conversationID),
		slog.Int("retrieved_chunks", len(retrieved)),
		slog.Int("citations", len(citations)),
		slog.Bool("cache_hit", result.CacheHit),
		slog.Duration("elapsed", elapsed))

	writeJSON(w, http.StatusOK, QueryResponse{
		ConversationID:   conversationID,
		MessageID:        assistant.ID,
		Answer:           result.Answer.Answer,
		Citations:        citations,
		HasAnswer:        result.HasAnswer,
		RetrievedChunks:  len(retrieved),
		CacheHit:         result.CacheHit,
		ProcessingTimeMS: elapsed.Milliseconds(),
	})
}

func (h *QueryHandler) validateRequest(req *QueryRequest) (int, error) {
	if strings.TrimSpace(req.Query) == "" {
		return 0, errors.New("query is required")
	}
	if utf8.RuneCountInString(req.Query) > maxQueryLength {
		return 0, fmt.Errorf("query must be at most %d characters", maxQueryLength)
	}

	topK := h.defaultTopK
	if req.TopK != nil {
		if *req.TopK < minTopK || *req.TopK > maxTopK {
			return 0, fmt.Errorf("top_k must be between %d and %d", minTopK, maxTopK)
		}
		topK = *req.TopK
	}

	for _, id := range req.DocumentIDs {
		if _, err := uuid.Parse(id); err != nil {
			return 0, fmt.Errorf("invalid document id %q", id)
		}
	}
	return topK, nil
}

func (h *QueryHandler) internalError(w http.ResponseWriter, message string, err error) {
	h.logger.Error(message, slog.String("error", err.Error()))
	writeJSONError(w, message, http.StatusInternalServerError)
}

func truncateRunes(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}
