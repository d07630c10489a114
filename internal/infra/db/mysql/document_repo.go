package mysql

import (
	"context"
	"database/sql"
	"errors"
	"strings"
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

// Save inserts a document record, updating it on duplicate id
func (r *DocumentRepository) Save(ctx context.Context, d *domain.Document) error {
	const q = `
INSERT INTO documents
  (document_id, user_id, file_name, s3_url, status, metadata, visibility, created_at, updated_at)
VALUES (?,?,?,?,?,?,?,?,?)
ON DUPLICATE KEY UPDATE
  file_name=VALUES(file_name), s3_url=VALUES(s3_url), status=VALUES(status),
  metadata=VALUES(metadata), visibility=VALUES(visibility), updated_at=VALUES(updated_at);
`
	meta, err := metadataJSON(d.Metadata)
	if err != nil {
		return err
	}
	_, err = r.db.ExecContext(ctx, q, d.ID, d.UserID, d.FileName, nullIfBlank(d.S3URL),
		d.Status, meta, d.Visibility, d.CreatedAt, d.UpdatedAt)
	return err
}

func (r *DocumentRepository) Get(ctx context.Context, userID string, id domain.DocumentID) (*domain.Document, error) {
	q := `SELECT ` + documentColumns + ` FROM documents WHERE document_id=? AND user_id=?`
	d, err := scanDocument(r.db.QueryRowContext(ctx, q, id, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	return d, err
}

// Update builds the SET list from the patch, then re-reads the row.
func (r *DocumentRepository) Update(ctx context.Context, userID string, id domain.DocumentID, p domain.Patch, at time.Time) (*domain.Document, error) {
	sets := []string{"updated_at=?"}
	args := []any{at}
	if p.Status != nil {
		sets = append(sets, "status=?")
		args = append(args, string(*p.Status))
	}
	if p.S3URL != nil {
		sets = append(sets, "s3_url=?")
		args = append(args, *p.S3URL)
	}
	args = append(args, id, userID)

	q := `UPDATE documents SET ` + strings.Join(sets, ", ") + ` WHERE document_id=? AND user_id=?`
	if _, err := r.db.ExecContext(ctx, q, args...); err != nil {
		return nil, err
	}
	return r.Get(ctx, userID, id)
}

// History returns documents ordered by updated_at desc
func (r *DocumentRepository) History(ctx context.Context, userID string, limit int) ([]*domain.Document, error) {
	q := `SELECT ` + documentColumns + `
FROM documents
WHERE user_id=?
ORDER BY updated_at DESC, document_id DESC
LIMIT ?`
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
	res, err := r.db.ExecContext(ctx, `DELETE FROM documents WHERE document_id=? AND user_id=?`, id, userID)
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
	d.Metadata = parseMetadata(meta)
	return &d, nil
}
