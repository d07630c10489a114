package guidestore

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"regexp"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9_.-]`)

// FileStore keeps one JSON snapshot per client under Dir/namespace.
type FileStore struct {
	Dir string
}

func New(dir string) (*FileStore, error) {
	if dir == "" {
		return nil, errors.New("guidestore: dir is required")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	return &FileStore{Dir: dir}, nil
}

// Load returns (nil, nil) when the client has no snapshot yet.
func (s *FileStore) Load(ctx context.Context, namespace, client string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	b, err := os.ReadFile(s.path(namespace, client))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	return b, err
}

// Save writes via a temp file and rename so readers never see a torn snapshot.
func (s *FileStore) Save(ctx context.Context, namespace, client string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p := s.path(namespace, client)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(p), ".snapshot-*")
	if err != nil {
		return err
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("write snapshot: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return err
	}
	return os.Rename(tmp.Name(), p)
}

func (s *FileStore) path(namespace, client string) string {
	if client == "" {
		client = "default"
	}
	return filepath.Join(s.Dir, sanitize(namespace), sanitize(client)+".json")
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(s, "_")
	if s == "" || s == "." || s == ".." {
		return "_"
	}
	return s
}
