package postgres

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	// test ping
	ctx2, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(ctx2); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS documents (
  document_id TEXT PRIMARY KEY,
  user_id     TEXT NOT NULL,
  file_name   TEXT NOT NULL,
  s3_url      TEXT,
  status      TEXT NOT NULL,
  metadata    JSONB NOT NULL DEFAULT '{}'::jsonb,
  visibility  TEXT NOT NULL DEFAULT 'private',
  created_at  TIMESTAMPTZ NOT NULL,
  updated_at  TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS documents_user_updated_idx ON documents (user_id, updated_at DESC);
`

const chunkSchema = `
CREATE EXTENSION IF NOT EXISTS vector;
CREATE TABLE IF NOT EXISTS document_chunks (
  chunk_id      BIGSERIAL PRIMARY KEY,
  document_id   TEXT NOT NULL REFERENCES documents (document_id) ON DELETE CASCADE,
  chunk_index   INT NOT NULL,
  chunk_content TEXT NOT NULL,
  vector        vector(1536) NOT NULL,
  metadata      JSONB NOT NULL DEFAULT '{}'::jsonb,
  created_at    TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS document_chunks_document_idx ON document_chunks (document_id, chunk_index);
CREATE INDEX IF NOT EXISTS document_chunks_vector_idx ON document_chunks USING hnsw (vector vector_cosine_ops);
`

// MigrateChunks enables pgvector and creates document_chunks. It fails on
// servers without the vector extension installed.
func MigrateChunks(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, chunkSchema)
	return err
}

// Migrate creates the documents table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
