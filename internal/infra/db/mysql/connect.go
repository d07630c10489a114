package mysql

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/go-sql-driver/mysql"
)

func Connect(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("mysql", dsn)
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
  document_id VARCHAR(64) PRIMARY KEY,
  user_id     VARCHAR(64) NOT NULL,
  file_name   VARCHAR(512) NOT NULL,
  s3_url      TEXT NULL,
  status      VARCHAR(32) NOT NULL,
  metadata    JSON NOT NULL,
  visibility  VARCHAR(16) NOT NULL DEFAULT 'private',
  created_at  DATETIME(3) NOT NULL,
  updated_at  DATETIME(3) NOT NULL,
  INDEX documents_user_updated_idx (user_id, updated_at)
) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4;
`

// Migrate creates the documents table when missing.
func Migrate(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, schema)
	return err
}
