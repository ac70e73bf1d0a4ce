package handlers

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/serisow/smartdoc/db"
	"github.com/serisow/smartdoc/rag_type"
	"github.com/serisow/smartdoc/services/rag_service"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

type fakeAnswerer struct {
	result    *rag_type.QueryResult
	retrieved []rag_type.RetrievedChunk
	err       error
	requests  []rag_service.QueryRequest
}

func (f *fakeAnswerer) AnswerWithChunks(_ context.Context, req rag_service.QueryRequest, onRetrieved func([]rag_type.RetrievedChunk)) (*rag_type.QueryResult, error) {
	f.requests = append(f.requests, req)
	if f.err != nil {
		return nil, f.err
	}
	if onRetrieved != nil && !f.result.CacheHit {
		onRetrieved(f.retrieved)
	}
	return f.result, nil
}

type fakeConversations struct {
	mu            sync.Mutex
	conversations map[string]*rag_type.Conversation
	touched       []string
}

func newFakeConversations() *fakeConversations {
	return &fakeConversations{conversations: make(map[string]*rag_type.Conversation)}
}

func (f *fakeConversations) CreateConversation(_ context.Context, userID, title string) (*rag_type.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv := &rag_type.Conversation{ID: uuid.NewString(), UserID: userID, Title: title, CreatedAt: time.Now()}
	f.conversations[conv.ID] = conv
	return conv, nil
}

func (f *fakeConversations) TouchConversation(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.conversations[id]; !ok {
		return db.ErrConversationNotFound
	}
	f.touched = append(f.touched, id)
	return nil
}

func (f *fakeConversations) AppendMessage(_ context.Context, conversationID string, role rag_type.Role, content string, citations []rag_type.Citation) (*rag_type.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[conversationID]
	if !ok {
		return nil, db.ErrConversationNotFound
	}
	msg := rag_type.Message{ID: uuid.NewString(), ConversationID: conversationID, Role: role, Content: content, Citations: citations}
	conv.Messages = append(conv.Messages, msg)
	return &msg, nil
}

func (f *fakeConversations) GetConversation(_ context.Context, id string) (*rag_type.Conversation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, db.ErrConversationNotFound
	}
	return conv, nil
}

func (f *fakeConversations) RecentMessages(_ context.Context, id string, limit int) ([]rag_type.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	conv, ok := f.conversations[id]
	if !ok {
		return nil, nil
	}
	msgs := conv.Messages
	if len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	return append([]rag_type.Message(nil), msgs...), nil
}

type fakeDocuments struct {
	mu        sync.Mutex
	documents map[string]*rag_type.Document
	createErr error
}

func newFakeDocuments() *fakeDocuments {
	return &fakeDocuments{documents: make(map[string]*rag_type.Document)}
}

func (f *fakeDocuments) CreateDocument(_ context.Context, doc *rag_type.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return f.createErr
	}
	doc.ID = uuid.NewString()
	doc.Status = rag_type.StatusProcessing
	doc.UploadedAt = time.Now()
	stored := *doc
	f.documents[doc.ID] = &stored
	return nil
}

func (f *fakeDocuments) GetDocument(_ context.Context, id string) (*rag_type.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return nil, db.ErrDocumentNotFound
	}
	out := *doc
	return &out, nil
}

func (f *fakeDocuments) ListDocuments(_ context.Context, userID string, limit int) ([]rag_type.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []rag_type.Document
	for _, doc := range f.documents {
		if userID != "" && doc.UserID != userID {
			continue
		}
		out = append(out, *doc)
	}
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (f *fakeDocuments) DeleteDocument(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.documents[id]; !ok {
		return db.ErrDocumentNotFound
	}
	delete(f.documents, id)
	return nil
}

func (f *fakeDocuments) SetDocumentStatus(_ context.Context, id string, status rag_type.DocumentStatus) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[id]
	if !ok {
		return db.ErrDocumentNotFound
	}
	doc.Status = status
	return nil
}

type fakePageCounter struct{ err error }

func (f fakePageCounter) CountPages(filename string, data []byte) (int, error) {
	if f.err != nil {
		return 0, f.err
	}
	return 1, nil
}

type fakeQueue struct {
	jobs []rag_service.IngestJob
	err  error
}

func (f *fakeQueue) Enqueue(job rag_service.IngestJob) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

type fakeArchiver struct {
	keys []string
	err  error
}

func (f *fakeArchiver) Save(_ context.Context, key string, _ []byte, _ string) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	f.keys = append(f.keys, key)
	return fmt.Sprintf("mem://%s", key), nil
}

type fakePinger struct{ err error }

func (f fakePinger) Ping(context.Context) error { return f.err }

var errStore = errors.New("store unavailable")
