package uploads

import (
	"context"
	"time"
)

// Repository port (interface untuk persistence dokumen)
type Repository interface {
	Save(ctx context.Context, d *Document) error
	Get(ctx context.Context, userID string, id DocumentID) (*Document, error)
	Update(ctx context.Context, userID string, id DocumentID, p Patch, at time.Time) (*Document, error)
	History(ctx context.Context, userID string, limit int) ([]*Document, error)
	Delete(ctx context.Context, userID string, id DocumentID) error
}
