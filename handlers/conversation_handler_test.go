package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/serisow/smartdoc/rag_type"
)

func TestGetConversation(t *testing.T) {
	conversations := newFakeConversations()
	conv, err := conversations.CreateConversation(context.Background(), "", "Refund policy")
	require.NoError(t, err)
	_, err = conversations.AppendMessage(context.Background(), conv.ID, rag_type.RoleUser, "How long?", nil)
	require.NoError(t, err)

	h := NewConversationHandler(conversations, testLogger())

	rr := httptest.NewRecorder()
	h.Get(rr, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": conv.ID}))
	require.Equal(t, http.StatusOK, rr.Code)
	var got rag_type.Conversation
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Refund policy", got.Title)
	require.Len(t, got.Messages, 1)
	assert.Equal(t, "How long?", got.Messages[0].Content)

	rr = httptest.NewRecorder()
	h.Get(rr, mux.SetURLVars(httptest.NewRequest(http.MethodGet, "/", nil), map[string]string{"id": uuid.NewString()}))
	assert.Equal(t, http.StatusNotFound, rr.Code)
}
