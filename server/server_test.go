package server

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/serisow/smartdoc/handlers"
)

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func testRouter() http.Handler {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	r := SetupRoutes(Handlers{
		Documents:     handlers.NewDocumentHandler(nil, nil, nil, nil, 1<<20, logger),
		Query:         handlers.NewQueryHandler(nil, nil, 5, logger),
		Conversations: handlers.NewConversationHandler(nil, logger),
		Health:        handlers.NewHealthHandler(okPinger{}, nil, logger),
	})
	return SetupNegroni(r)
}

func TestRoutes(t *testing.T) {
	tests := []struct {
		method string
		path   string
		want   int
	}{
		{http.MethodGet, "/", http.StatusOK},
		{http.MethodGet, "/api/v1/health", http.StatusOK},
		{http.MethodPost, "/api/v1/health", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v1/query", http.StatusMethodNotAllowed},
		{http.MethodPut, "/api/v1/document/abc", http.StatusMethodNotAllowed},
		{http.MethodGet, "/api/v2/health", http.StatusNotFound},
		// rejected by validation before any dependency is used
		{http.MethodPost, "/api/v1/query", http.StatusBadRequest},
	}

	h := testRouter()
	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(tt.method, tt.path, nil))
			assert.Equal(t, tt.want, rr.Code)
		})
	}
}

func TestNegroniRecoversPanics(t *testing.T) {
	n := SetupNegroni(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	rr := httptest.NewRecorder()
	n.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, rr.Code)
}
