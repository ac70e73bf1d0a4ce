package rag_type

import "time"

type DocumentStatus string

const (
	StatusProcessing DocumentStatus = "processing"
	StatusCompleted  DocumentStatus = "completed"
	StatusFailed     DocumentStatus = "failed"
)

type Document struct {
	ID         string         `json:"document_id"`
	Title      string         `json:"title"`
	Filename   string         `json:"filename"`
	FileSize   int64          `json:"file_size"`
	PageCount  int            `json:"page_count"`
	ChunkCount int            `json:"chunk_count"`
	Status     DocumentStatus `json:"status"`
	UserID     string         `json:"user_id,omitempty"`
	UploadedAt time.Time      `json:"upload_timestamp"`
}

// Page is one page of extracted text, numbered from 1.
type Page struct {
	Number int
	Text   string
}

type Chunk struct {
	Index      int
	Content    string
	PageNumber int
	CharCount  int
	TokenCount int
	Embedding  []float32
}

// RetrievedChunk is a chunk returned by vector search together with its
// similarity (1 - cosine distance) to the query.
type RetrievedChunk struct {
	ChunkID       string  `json:"chunk_id"`
	DocumentID    string  `json:"document_id"`
	DocumentTitle string  `json:"document_title"`
	Content       string  `json:"content"`
	PageNumber    int     `json:"page_number"`
	Similarity    float64 `json:"similarity"`
}

type Citation struct {
	ChunkID         string  `json:"chunk_id"`
	DocumentTitle   string  `json:"document_title"`
	PageNumber      int     `json:"page_number"`
	TextPreview     string  `json:"text_preview"`
	SimilarityScore float64 `json:"similarity_score"`
}

// Answer is the cacheable part of a query result.
type Answer struct {
	Answer    string     `json:"answer"`
	Citations []Citation `json:"citations"`
	HasAnswer bool       `json:"has_answer"`
}

type QueryResult struct {
	Answer
	CacheHit bool `json:"cache_hit"`
}

type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

type Message struct {
	ID             string     `json:"id"`
	ConversationID string     `json:"-"`
	Role           Role       `json:"role"`
	Content        string     `json:"content"`
	Citations      []Citation `json:"citations,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

type Conversation struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id,omitempty"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	Messages  []Message `json:"messages"`
}
