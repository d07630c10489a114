package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	pgvector "github.com/pgvector/pgvector-go"

	domain "github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
)

type ChunkRepository struct {
	db *sql.DB
}

func NewChunkRepository(db *sql.DB) *ChunkRepository {
	return &ChunkRepository{db: db}
}

const chunkColumns = `c.chunk_id, c.document_id, c.chunk_index, c.chunk_content, c.metadata, c.created_at`

// ReplaceChunks drops the document's previous chunks and inserts the new set
// in one transaction.
func (r *ChunkRepository) ReplaceChunks(ctx context.Context, userID string, id domain.DocumentID, chunks []domain.Chunk) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var one int
	err = tx.QueryRowContext(ctx, `SELECT 1 FROM documents WHERE document_id=$1 AND user_id=$2 FOR UPDATE;`, id, userID).Scan(&one)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrNotFound
	}
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM document_chunks WHERE document_id=$1;`, id); err != nil {
		return err
	}

	stmt, err := tx.PrepareContext(ctx, `
INSERT INTO document_chunks (document_id, chunk_index, chunk_content, vector, metadata, created_at)
VALUES ($1,$2,$3,$4,$5,$6);`)
	if err != nil {
		return err
	}
	defer stmt.Close()
	for _, c := range chunks {
		meta, err := encodeMetadata(c.Metadata)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx, id, c.Index, c.Content, pgvector.NewVector(c.Embedding), string(meta), c.CreatedAt); err != nil {
			return fmt.Errorf("insert chunk %d: %w", c.Index, err)
		}
	}
	return tx.Commit()
}

// Chunks lists a document's chunks in order, without their vectors.
func (r *ChunkRepository) Chunks(ctx context.Context, userID string, id domain.DocumentID) ([]domain.Chunk, error) {
	q := `SELECT ` + chunkColumns + `
FROM document_chunks c
JOIN documents d ON d.document_id = c.document_id
WHERE c.document_id=$1 AND d.user_id=$2
ORDER BY c.chunk_index;`
	rows, err := r.db.QueryContext(ctx, q, id, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var meta []byte
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &meta, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.Metadata = decodeMetadata(meta)
		out = append(out, c)
	}
	return out, rows.Err()
}

// Search returns the user's chunks nearest to embedding by cosine distance.
func (r *ChunkRepository) Search(ctx context.Context, userID string, embedding []float32, limit int) ([]domain.Chunk, error) {
	q := `SELECT ` + chunkColumns + `, c.vector, c.vector <=> $2 AS distance
FROM document_chunks c
JOIN documents d ON d.document_id = c.document_id
WHERE d.user_id=$1
ORDER BY distance
LIMIT $3;`
	rows, err := r.db.QueryContext(ctx, q, userID, pgvector.NewVector(embedding), limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Chunk
	for rows.Next() {
		var c domain.Chunk
		var meta []byte
		var vec pgvector.Vector
		if err := rows.Scan(&c.ID, &c.DocumentID, &c.Index, &c.Content, &meta, &c.CreatedAt, &vec, &c.Distance); err != nil {
			return nil, err
		}
		c.Metadata = decodeMetadata(meta)
		c.Embedding = vec.Slice()
		out = append(out, c)
	}
	return out, rows.Err()
}
