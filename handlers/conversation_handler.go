package handlers

import (
	"errors"
	"log/slog"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/serisow/smartdoc/db"
)

type ConversationHandler struct {
	conversations ConversationStore
	logger        *slog.Logger
}

func NewConversationHandler(conversations ConversationStore, logger *slog.Logger) *ConversationHandler {
	return &ConversationHandler{
		conversations: conversations,
		logger:        logger,
	}
}

// Get returns the conversation with its messages, oldest first.
func (h *ConversationHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["id"]

	conv, err := h.conversations.GetConversation(r.Context(), id)
	if errors.Is(err, db.ErrConversationNotFound) {
		writeJSONError(w, "Conversation not found", http.StatusNotFound)
		return
	}
	if err != nil {
		h.logger.Error("Failed to load conversation",
			slog.String("conversation_id", id),
			slog.String("error", err.Error()))
		writeJSONError(w, "Failed to load conversation", http.StatusInternalServerError)
		return
	}

	writeJSON(w, http.StatusOK, conv)
}
