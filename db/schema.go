package db

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5/pgxpool"
)

const chunkIndexName = "idx_chunks_embedding"

var schemaStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS vector`,
	`CREATE TABLE IF NOT EXISTS documents (
		id          UUID PRIMARY KEY,
		title       TEXT NOT NULL,
		filename    TEXT NOT NULL,
		file_size   BIGINT NOT NULL DEFAULT 0,
		page_count  INT NOT NULL DEFAULT 0,
		status      TEXT NOT NULL DEFAULT 'processing'
		            CHECK (status IN ('processing', 'completed', 'failed')),
		user_id     TEXT,
		uploaded_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_documents_user_uploaded ON documents (user_id, uploaded_at DESC)`,
	// chunks is created separately: its vector column needs the dimension.
	`CREATE TABLE IF NOT EXISTS conversations (
		id         UUID PRIMARY KEY,
		user_id    TEXT,
		title      TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	`CREATE TABLE IF NOT EXISTS messages (
		id              UUID PRIMARY KEY,
		conversation_id UUID NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
		role            TEXT NOT NULL CHECK (role IN ('user', 'assistant')),
		content         TEXT NOT NULL,
		citations       JSONB,
		created_at      TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp()
	)`,
	`CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages (conversation_id, created_at)`,
}

// EnsureSchema creates the extension, tables and indexes when missing.
func EnsureSchema(ctx context.Context, pool *pgxpool.Pool, dimension int, logger *slog.Logger) error {
	for _, stmt := range schemaStatements {
		if _, err := pool.Exec(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	chunksSQL := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS chunks (
		id          UUID PRIMARY KEY,
		document_id UUID NOT NULL REFERENCES documents(id) ON DELETE CASCADE,
		chunk_index INT NOT NULL,
		content     TEXT NOT NULL,
		page_number INT,
		char_count  INT NOT NULL,
		token_count INT NOT NULL,
		embedding   vector(%d) NOT NULL,
		UNIQUE (document_id, chunk_index)
	)`, dimension)
	if _, err := pool.Exec(ctx, chunksSQL); err != nil {
		return fmt.Errorf("failed to create chunks table: %w", err)
	}

	if err := ensureVectorIndex(ctx, pool, logger); err != nil {
		return err
	}

	logger.Info("Database schema ready", slog.Int("embedding_dimension", dimension))
	return nil
}

// ensureVectorIndex builds the HNSW cosine index used by similarity search.
// HNSW needs no retuning as the table grows, so it is only created once.
func ensureVectorIndex(ctx context.Context, pool *pgxpool.Pool, logger *slog.Logger) error {
	var exists bool
	err := pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM pg_class WHERE relname = $1 AND relkind = 'i')`,
		chunkIndexName).Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to look up vector index: %w", err)
	}
	if exists {
		return nil
	}

	createIndexSQL := fmt.Sprintf(`
		CREATE INDEX %s
		ON chunks
		USING hnsw (embedding vector_cosine_ops)
		WITH (m = 16, ef_construction = 64)
	`, chunkIndexName)

	if _, err := pool.Exec(ctx, createIndexSQL); err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}

	logger.Info("Vector index created", slog.String("index", chunkIndexName))
	return nil
}
