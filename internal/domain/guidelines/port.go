package guidelines

import "context"

// SnapshotStore persists the whole rubric per client under a namespace.
// Load returns (nil, nil) when nothing has been saved yet.
type SnapshotStore interface {
	Load(ctx context.Context, namespace, client string) ([]byte, error)
	Save(ctx context.Context, namespace, client string, data []byte) error
}
