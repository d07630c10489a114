package uploads

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	"github.com/bryanwahyu/mlr-studio/internal/domain/images"
	domain "github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
)

const (
	uploadContentType = "application/octet-stream"
	defaultTTL        = time.Hour
	defaultHistory    = 50
)

// Storage is the part of the object store the tracker needs.
type Storage interface {
	Bucket() string
	PresignPut(ctx context.Context, key, contentType string, ttl time.Duration) (string, error)
	Delete(ctx context.Context, locator string) error
}

// Service implements use-cases untuk document upload
type Service struct {
	Repo  domain.Repository
	Store Storage
	Clock application.Clock
	TTL   time.Duration

	// Chunks and Embedder are optional; without them chunk operations
	// return ErrChunksUnavailable.
	Chunks    domain.ChunkRepository
	Embedder  ai.Embedder
	ChunkSize int
}

type PresignedUpload struct {
	URL      string `json:"url"`
	Key      string `json:"key"`
	FileName string `json:"fileName"`
	S3URL    string `json:"s3Url"`
}

// PresignUpload returns a write URL for uploads/{user}/{base}_{ms}{ext}.
func (s *Service) PresignUpload(ctx context.Context, userID, fileName string) (PresignedUpload, error) {
	if strings.TrimSpace(fileName) == "" {
		return PresignedUpload{}, fmt.Errorf("%w: fileName is required", application.ErrInvalidInput)
	}
	name := uniqueFileName(fileName, s.Clock.Now())
	key := domain.UploadPrefix(userID) + name
	url, err := s.Store.PresignPut(ctx, key, uploadContentType, s.ttl())
	if err != nil {
		return PresignedUpload{}, fmt.Errorf("presign upload: %w", err)
	}
	return PresignedUpload{
		URL:      url,
		Key:      key,
		FileName: name,
		S3URL:    fmt.Sprintf("s3://%s/%s", s.Store.Bucket(), key),
	}, nil
}

// CreateCommand untuk mencatat dokumen baru
type CreateCommand struct {
	UserID     string
	FileName   string
	S3URL      string
	Status     domain.Status
	Metadata   map[string]any
	Visibility domain.Visibility
}

func (s *Service) Create(ctx context.Context, cmd CreateCommand) (*domain.Document, error) {
	if strings.TrimSpace(cmd.FileName) == "" {
		return nil, fmt.Errorf("%w: fileName is required", application.ErrInvalidInput)
	}
	if cmd.Status == "" {
		cmd.Status = domain.StatusPendingUpload
	}
	if !cmd.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, cmd.Status)
	}
	if cmd.Visibility == "" {
		cmd.Visibility = domain.VisibilityPrivate
	}
	if !cmd.Visibility.Valid() {
		return nil, fmt.Errorf("%w: visibility %q", application.ErrInvalidInput, cmd.Visibility)
	}
	if err := s.checkOwned(cmd.UserID, cmd.S3URL); err != nil {
		return nil, err
	}

	now := s.Clock.Now().UTC()
	d := &domain.Document{
		ID:         domain.DocumentID(uuid.New().String()),
		UserID:     cmd.UserID,
		FileName:   cmd.FileName,
		Status:     cmd.Status,
		S3URL:      cmd.S3URL,
		Metadata:   cmd.Metadata,
		Visibility: cmd.Visibility,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.Repo.Save(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

// Update changes status and/or s3 url of the user's document.
func (s *Service) Update(ctx context.Context, userID string, id domain.DocumentID, p domain.Patch) (*domain.Document, error) {
	if p.Empty() {
		return nil, fmt.Errorf("%w: nothing to update", application.ErrInvalidInput)
	}
	if p.Status != nil && !p.Status.Valid() {
		return nil, fmt.Errorf("%w: %s", domain.ErrInvalidStatus, *p.Status)
	}
	if p.S3URL != nil {
		if err := s.checkOwned(userID, *p.S3URL); err != nil {
			return nil, err
		}
	}
	return s.Repo.Update(ctx, userID, id, p, s.Clock.Now().UTC())
}

func (s *Service) Get(ctx context.Context, userID string, id domain.DocumentID) (*domain.Document, error) {
	return s.Repo.Get(ctx, userID, id)
}

// History returns the user's documents, most recently updated first.
func (s *Service) History(ctx context.Context, userID string, limit int) ([]*domain.Document, error) {
	if limit <= 0 {
		limit = defaultHistory
	}
	return s.Repo.History(ctx, userID, limit)
}

// Delete removes the stored object first, then the row.
func (s *Service) Delete(ctx context.Context, userID string, id domain.DocumentID) error {
	d, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	if d.S3URL != "" {
		// rows written before ownership was enforced may still point elsewhere
		if err := s.checkOwned(userID, d.S3URL); err != nil {
			return err
		}
		if err := s.Store.Delete(ctx, d.S3URL); err != nil {
			return fmt.Errorf("delete object: %w", err)
		}
	}
	return s.Repo.Delete(ctx, userID, id)
}

// checkOwned accepts an empty url or one naming an object in the store's
// bucket under uploads/{user}/.
func (s *Service) checkOwned(userID, s3URL string) error {
	if strings.TrimSpace(s3URL) == "" {
		return nil
	}
	loc, err := images.ParseLocator(s3URL)
	if err != nil {
		return fmt.Errorf("%w: %s", domain.ErrForeignObject, s3URL)
	}
	if loc.Bucket != s.Store.Bucket() || !strings.HasPrefix(loc.Key, domain.UploadPrefix(userID)) ||
		strings.Contains(loc.Key, "..") {
		return fmt.Errorf("%w: %s", domain.ErrForeignObject, s3URL)
	}
	return nil
}

func (s *Service) ttl() time.Duration {
	if s.TTL <= 0 {
		return defaultTTL
	}
	return s.TTL
}

func uniqueFileName(name string, at time.Time) string {
	name = filepath.Base(strings.ReplaceAll(name, "\\", "/"))
	ext := filepath.Ext(name)
	base := strings.TrimSuffix(name, ext)
	base = strings.Join(strings.Fields(base), "_")
	if base == "" || base == "." {
		base = "file"
	}
	return fmt.Sprintf("%s_%d%s", base, at.UnixMilli(), ext)
}
