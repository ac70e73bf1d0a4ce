package db

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/serisow/smartdoc/rag_type"
)

var (
	ErrDocumentNotFound     = errors.New("document not found")
	ErrConversationNotFound = errors.New("conversation not found")
)

// Store is the durable store for documents, chunks and conversations.
type Store struct {
	pool   *pgxpool.Pool
	logger *slog.Logger
}

func NewStore(pool *pgxpool.Pool, logger *slog.Logger) *Store {
	return &Store{
		pool:   pool,
		logger: logger,
	}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

const documentColumns = `
	d.id::text, d.title, d.filename, d.file_size, d.page_count,
	(SELECT COUNT(*) FROM chunks c WHERE c.document_id = d.id),
	d.status, COALESCE(d.user_id, ''), d.uploaded_at`

func scanDocument(row pgx.Row) (*rag_type.Document, error) {
	var (
		doc    rag_type.Document
		status string
	)
	err := row.Scan(&doc.ID, &doc.Title, &doc.Filename, &doc.FileSize, &doc.PageCount,
		&doc.ChunkCount, &status, &doc.UserID, &doc.UploadedAt)
	if err != nil {
		return nil, err
	}
	doc.Status = rag_type.DocumentStatus(status)
	return &doc, nil
}

// CreateDocument inserts doc in the processing state, assigning its ID and
// upload time.
func (s *Store) CreateDocument(ctx context.Context, doc *rag_type.Document) error {
	doc.ID = uuid.NewString()
	doc.Status = rag_type.StatusProcessing
	doc.ChunkCount = 0

	err := s.pool.QueryRow(ctx, `
		INSERT INTO documents (id, title, filename, file_size, page_count, status, user_id)
		VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''))
		RETURNING uploaded_at`,
		doc.ID, doc.Title, doc.Filename, doc.FileSize, doc.PageCount, string(doc.Status), doc.UserID,
	).Scan(&doc.UploadedAt)
	if err != nil {
		return fmt.Errorf("failed to create document: %w", err)
	}
	return nil
}

func (s *Store) GetDocument(ctx context.Context, id string) (*rag_type.Document, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrDocumentNotFound
	}

	doc, err := scanDocument(s.pool.QueryRow(ctx,
		`SELECT `+documentColumns+` FROM documents d WHERE d.id = $1`, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrDocumentNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	return doc, nil
}

// ListDocuments returns the newest documents first, optionally restricted
// to one user.
func (s *Store) ListDocuments(ctx context.Context, userID string, limit int) ([]rag_type.Document, error) {
	query := `SELECT ` + documentColumns + ` FROM documents d`
	args := []interface{}{}
	if userID != "" {
		query += ` WHERE d.user_id = $1`
		args = append(args, userID)
	}
	query += fmt.Sprintf(` ORDER BY d.uploaded_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list documents: %w", err)
	}
	defer rows.Close()

	docs := []rag_type.Document{}
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// ProcessingSince lists documents still processing that were uploaded
// before cutoff, oldest first.
func (s *Store) ProcessingSince(ctx context.Context, cutoff time.Time) ([]rag_type.Document, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+documentColumns+` FROM documents d
		 WHERE d.status = $1 AND d.uploaded_at < $2
		 ORDER BY d.uploaded_at`,
		string(rag_type.StatusProcessing), cutoff)
	if err != nil {
		return nil, fmt.Errorf("failed to list processing documents: %w", err)
	}
	defer rows.Close()

	var docs []rag_type.Document
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan document: %w", err)
		}
		docs = append(docs, *doc)
	}
	return docs, rows.Err()
}

// DeleteDocument removes the document; its chunks go with it by cascade.
func (s *Store) DeleteDocument(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrDocumentNotFound
	}

	tag, err := s.pool.Exec(ctx, `DELETE FROM documents WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

func (s *Store) SetDocumentStatus(ctx context.Context, id string, status rag_type.DocumentStatus) error {
	tag, err := s.pool.Exec(ctx, `UPDATE documents SET status = $2 WHERE id = $1`, id, string(status))
	if err != nil {
		return fmt.Errorf("failed to update document status: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrDocumentNotFound
	}
	return nil
}

// InsertChunks replaces the document's chunks atomically: either every
// chunk is stored or none is.
func (s *Store) InsertChunks(ctx context.Context, documentID string, chunks []rag_type.Chunk) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM chunks WHERE document_id = $1`, documentID); err != nil {
		return fmt.Errorf("failed to clear chunks: %w", err)
	}

	batch := &pgx.Batch{}
	for _, c := range chunks {
		batch.Queue(`
			INSERT INTO chunks (id, document_id, chunk_index, content, page_number, char_count, token_count, embedding)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
			uuid.NewString(), documentID, c.Index, c.Content, c.PageNumber,
			c.CharCount, c.TokenCount, pgvector.NewVector(c.Embedding))
	}

	results := tx.SendBatch(ctx, batch)
	for i := range chunks {
		if _, err := results.Exec(); err != nil {
			results.Close()
			return fmt.Errorf("failed to insert chunk %d: %w", i, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("failed to insert chunks: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit chunks: %w", err)
	}

	s.logger.Debug("Stored chunks",
		slog.String("document_id", documentID),
		slog.Int("count", len(chunks)))
	return nil
}

// SearchChunks returns the nearest chunks of completed documents by cosine
// distance. Similarity is reported as 1 - distance.
func (s *Store) SearchChunks(ctx context.Context, vector []float32, documentIDs []string, limit int) ([]rag_type.RetrievedChunk, error) {
	query := `
		SELECT c.id::text, d.id::text, d.title, c.content, COALESCE(c.page_number, 0),
		       1 - (c.embedding <=> $1) AS similarity
		FROM chunks c
		JOIN documents d ON d.id = c.document_id
		WHERE d.status = 'completed'`
	args := []interface{}{pgvector.NewVector(vector)}

	if len(documentIDs) > 0 {
		query += ` AND d.id = ANY($2::text[]::uuid[])`
		args = append(args, documentIDs)
	}
	query += fmt.Sprintf(` ORDER BY c.embedding <=> $1 LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to search chunks: %w", err)
	}
	defer rows.Close()

	var results []rag_type.RetrievedChunk
	for rows.Next() {
		var rc rag_type.RetrievedChunk
		if err := rows.Scan(&rc.ChunkID, &rc.DocumentID, &rc.DocumentTitle, &rc.Content,
			&rc.PageNumber, &rc.Similarity); err != nil {
			return nil, fmt.Errorf("failed to scan chunk: %w", err)
		}
		results = append(results, rc)
	}
	return results, rows.Err()
}

func (s *Store) CreateConversation(ctx context.Context, userID, title string) (*rag_type.Conversation, error) {
	conv := &rag_type.Conversation{
		ID:     uuid.NewString(),
		UserID: userID,
		Title:  title,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO conversations (id, user_id, title)
		VALUES ($1, NULLIF($2, ''), $3)
		RETURNING created_at, updated_at`,
		conv.ID, userID, title,
	).Scan(&conv.CreatedAt, &conv.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to create conversation: %w", err)
	}
	return conv, nil
}

// TouchConversation bumps updated_at; ErrConversationNotFound when the id
// is unknown.
func (s *Store) TouchConversation(ctx context.Context, id string) error {
	if _, err := uuid.Parse(id); err != nil {
		return ErrConversationNotFound
	}
	tag, err := s.pool.Exec(ctx, `UPDATE conversations SET updated_at = now() WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to update conversation: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrConversationNotFound
	}
	return nil
}

func (s *Store) AppendMessage(ctx context.Context, conversationID string, role rag_type.Role, content string, citations []rag_type.Citation) (*rag_type.Message, error) {
	var citationsJSON []byte
	if citations != nil {
		raw, err := json.Marshal(citations)
		if err != nil {
			return nil, fmt.Errorf("failed to encode citations: %w", err)
		}
		citationsJSON = raw
	}

	msg := &rag_type.Message{
		ID:             uuid.NewString(),
		ConversationID: conversationID,
		Role:           role,
		Content:        content,
		Citations:      citations,
	}
	err := s.pool.QueryRow(ctx, `
		INSERT INTO messages (id, conversation_id, role, content, citations)
		VALUES ($1, $2, $3, $4, $5::jsonb)
		RETURNING created_at`,
		msg.ID, conversationID, string(role), content, citationsJSON,
	).Scan(&msg.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	return msg, nil
}

func (s *Store) GetConversation(ctx context.Context, id string) (*rag_type.Conversation, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, ErrConversationNotFound
	}

	conv := &rag_type.Conversation{}
	err := s.pool.QueryRow(ctx, `
		SELECT id::text, COALESCE(user_id, ''), title, created_at, updated_at
		FROM conversations WHERE id = $1`, id,
	).Scan(&conv.ID, &conv.UserID, &conv.Title, &conv.CreatedAt, &conv.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrConversationNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get conversation: %w", err)
	}

	conv.Messages, err = s.queryMessages(ctx, `
		SELECT id::text, conversation_id::text, role, content, citations, created_at
		FROM messages WHERE conversation_id = $1
		ORDER BY created_at ASC`, id)
	if err != nil {
		return nil, err
	}
	return conv, nil
}

// RecentMessages returns the last limit messages of a conversation, oldest
// first. An unknown conversation has no messages.
func (s *Store) RecentMessages(ctx context.Context, conversationID string, limit int) ([]rag_type.Message, error) {
	if _, err := uuid.Parse(conversationID); err != nil {
		return nil, nil
	}
	return s.queryMessages(ctx, `
		SELECT id, conversation_id, role, content, citations, created_at FROM (
			SELECT id::text, conversation_id::text, role, content, citations, created_at
			FROM messages WHERE conversation_id = $1
			ORDER BY created_at DESC LIMIT $2
		) recent ORDER BY created_at ASC`, conversationID, limit)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...interface{}) ([]rag_type.Message, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to load messages: %w", err)
	}
	defer rows.Close()

	messages := []rag_type.Message{}
	for rows.Next() {
		var (
			msg       rag_type.Message
			role      string
			citations []byte
			createdAt time.Time
		)
		if err := rows.Scan(&msg.ID, &msg.ConversationID, &role, &msg.Content, &citations, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		msg.Role = rag_type.Role(role)
		msg.CreatedAt = createdAt
		if len(citations) > 0 {
			if err := json.Unmarshal(citations, &msg.Citations); err != nil {
				s.logger.Warn("Ignoring unreadable message citations",
					slog.String("message_id", msg.ID),
					slog.String("error", err.Error()))
			}
		}
		messages = append(messages, msg)
	}
	return messages, rows.Err()
}
