package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	domain "github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
)

type DocumentRepository struct {
	db *sql.DB
}

func NewDocumentRepository(db *sql.DB) *DocumentRepository {
	return &DocumentRepository{db: db}
}

const documentColumns = `document_id, user_id, file_name, s3_url, status, metadata, visibility, created_at, updated_at`

// Save inserts or updates a document record
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
  (document_id, user_id, file_name, s3_url, status, metadata, visibility, created_at, updated_at)
VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9)
ON CONFLICT (document_id) DO UPDATE SET
  file_name=EXCLUDED.file_name,
  s3_url=EXCLUDED.s3_url,
  status=EXCLUDED.status,
  metadata=EXCLUDED.metadata,
  visibility=EXCLUDED.visibility,
  updated_at=EXCLUDED.updated_at;
`
	meta, err := encodeMetadata(d.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, d.ID, d.UserID, d.FileName, nullString(d.S3URL),
		d.Status, string(meta), d.Visibility, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, userID string, id domain.DocumentID) (*domain.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE document_id=$1 AND user_id=$2;`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// Update only touches the fields present in the patch.
func (r *DocumentRepository) Update(ctx context.Context, userID string, id domain.DocumentID, p domain.Patch, at time.Time) (*domain.Document, error) {
	q := `
UPDATE documents SET
  status=COALESCE($3, status),
  s3_url=COALESCE($4, s3_url),
  updated_at=$5
WHERE document_id=$1 AND user_id=$2
RETURNING ` + documentColumns + `;`
	var status sql.NullString
	if p.Status != nil {
		status = sql.NullString{String: string(*p.Status), Valid: true}
	}
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id, userID, status, nullStringPtr(p.S3URL), at))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// History returns documents ordered by updated_at desc
func (r *DocumentRepository) History(ctx context.Context, userID string, limit int) ([]*domain.Document, error) {
	q := `SELECT ` + documentColumns + `
FROM documents
WHERE user_id=$1
ORDER BY updated_at DESC, document_id DESC
LIMIT $2;`
	rows, err := r.db.QueryContext(ctx, q, userID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []*domain.Document
	for rows.Next() {
		d, err := scanDocument(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *DocumentRepository) Delete(ctx context.Context, userID string, id domain.DocumentID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id=$1 AND user_id=$2;`, id, userID)
	if err != nil {
		return err
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func scanDocument(row rowScanner) (*domain.Document, error) {
	var d domain.Document
	var s3URL sql.NullString
	var meta []byte
	if err := row.Scan(&d.ID, &d.UserID, &d.FileName, &s3URL, &d.Status, &meta, &d.Visibility, &d.CreatedAt, &d.UpdatedAt); err != nil {
		return nil, err
	}
	d.S3URL = s3URL.String
	d.Metadata = decodeMetadata(meta)
	return &d, nil
}
