package uploads

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	domain "github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
)

// fakeEmbedder puts len(text) in the first dimension.
type fakeEmbedder struct {
	calls [][]string
	err   error
	short bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls = append(f.calls, texts)
	if f.err != nil {
		return nil, f.err
	}
	dims := ai.EmbeddingDimensions
	if f.short {
		dims = 3
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, dims)
		v[0] = float32(len(t))
		out[i] = v
	}
	return out, nil
}

type memChunks struct {
	byDoc map[domain.DocumentID][]domain.Chunk
	owner map[domain.DocumentID]string
}

func newMemChunks() *memChunks {
	return &memChunks{byDoc: map[domain.DocumentID][]domain.Chunk{}, owner: map[domain.DocumentID]string{}}
}

func (m *memChunks) ReplaceChunks(_ context.Context, userID string, id domain.DocumentID, chunks []domain.Chunk) error {
	for i := range chunks {
		chunks[i].ID = int64(i + 1)
	}
	m.byDoc[id] = chunks
	m.owner[id] = userID
	return nil
}

func (m *memChunks) Chunks(_ context.Context, userID string, id domain.DocumentID) ([]domain.Chunk, error) {
	if m.owner[id] != userID {
		return nil, nil
	}
	return m.byDoc[id], nil
}

// Search ranks by distance on the first dimension only.
func (m *memChunks) Search(_ context.Context, userID string, emb []float32, limit int) ([]domain.Chunk, error) {
	var out []domain.Chunk
	for id, cs := range m.byDoc {
		if m.owner[id] != userID {
			continue
		}
		for _, c := range cs {
			d := c.Embedding[0] - emb[0]
			if d < 0 {
				d = -d
			}
			c.Distance = float64(d)
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Distance < out[j].Distance })
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func newChunkService() (*Service, *memRepo, *memChunks, *fakeEmbedder) {
	svc, repo, _, _ := newService()
	chunks, emb := newMemChunks(), &fakeEmbedder{}
	svc.Chunks, svc.Embedder, svc.ChunkSize = chunks, emb, 30
	return svc, repo, chunks, emb
}

func TestProcessStoresChunksAndMarksProcessed(t *testing.T) {
	svc, repo, chunks, emb := newChunkService()
	ctx := context.Background()
	d, _ := svc.Create(ctx, CreateCommand{UserID: "u1", FileName: "brand.md"})

	text := "# Logo\nKeep clear space.\n\nNever stretch the mark.\n\n# Colour\nPrimary is teal."
	got, err := svc.Process(ctx, "u1", d.ID, text)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Status != domain.StatusProcessed || repo.docs[d.ID].Status != domain.StatusProcessed {
		t.Fatalf("expected processed, got %s", got.Status)
	}
	if len(emb.calls) != 1 {
		t.Fatalf("expected one embedding call for all sections, got %d", len(emb.calls))
	}

	stored := chunks.byDoc[d.ID]
	if len(stored) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(stored))
	}
	for i, c := range stored {
		if c.Index != i || c.DocumentID != d.ID || len(c.Embedding) != ai.EmbeddingDimensions {
			t.Fatalf("unexpected chunk %d: %+v", i, c)
		}
	}
	if stored[0].Metadata["heading"] != "Logo" || stored[2].Metadata["heading"] != "Colour" {
		t.Fatalf("unexpected headings %v / %v", stored[0].Metadata, stored[2].Metadata)
	}

	listed, err := svc.ListChunks(ctx, "u1", d.ID)
	if err != nil || len(listed) != 3 {
		t.Fatalf("ListChunks = %d, %v", len(listed), err)
	}
	if _, err := svc.ListChunks(ctx, "u2", d.ID); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected other users to be scoped out, got %v", err)
	}
}

func TestProcessFailureKeepsCause(t *testing.T) {
	svc, repo, chunks, emb := newChunkService()
	ctx := context.Background()
	d, _ := svc.Create(ctx, CreateCommand{UserID: "u1", FileName: "a.md", Metadata: map[string]any{"pages": 2}})

	emb.err = errors.New("embeddings down")
	if _, err := svc.Process(ctx, "u1", d.ID, "some text"); err == nil {
		t.Fatalf("expected error")
	}
	row := repo.docs[d.ID]
	if row.Status != domain.StatusProcessingFailed {
		t.Fatalf("expected failed status, got %s", row.Status)
	}
	if row.Metadata["error"] != "embeddings down" || row.Metadata["pages"] != 2 {
		t.Fatalf("unexpected metadata %v", row.Metadata)
	}
	if len(chunks.byDoc[d.ID]) != 0 {
		t.Fatalf("no chunks should be stored")
	}

	emb.err, emb.short = nil, true
	if _, err := svc.Process(ctx, "u1", d.ID, "some text"); !errors.Is(err, ai.ErrUpstreamModel) {
		t.Fatalf("expected ErrUpstreamModel for wrong dimensions, got %v", err)
	}
}

func TestProcessValidation(t *testing.T) {
	svc, _, _, _ := newChunkService()
	ctx := context.Background()
	d, _ := svc.Create(ctx, CreateCommand{UserID: "u1", FileName: "a.md"})

	if _, err := svc.Process(ctx, "u1", d.ID, "  "); !errors.Is(err, application.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
	if _, err := svc.Process(ctx, "u2", d.ID, "text"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound for someone else's document, got %v", err)
	}

	bare, _, _, _ := newService()
	if _, err := bare.Process(ctx, "u1", d.ID, "text"); !errors.Is(err, domain.ErrChunksUnavailable) {
		t.Fatalf("expected ErrChunksUnavailable, got %v", err)
	}
	if _, err := bare.Search(ctx, "u1", "q", 0); !errors.Is(err, domain.ErrChunksUnavailable) {
		t.Fatalf("expected ErrChunksUnavailable, got %v", err)
	}
}

func TestSearchNearestChunks(t *testing.T) {
	svc, _, _, _ := newChunkService()
	svc.ChunkSize = 18
	ctx := context.Background()
	d, _ := svc.Create(ctx, CreateCommand{UserID: "u1", FileName: "a.md"})
	other, _ := svc.Create(ctx, CreateCommand{UserID: "u2", FileName: "b.md"})

	text := strings.Join([]string{"short", "a medium sentence", "a much longer sentence here"}, "\n\n")
	if _, err := svc.Process(ctx, "u1", d.ID, text); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, err := svc.Process(ctx, "u2", other.ID, "short"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// "hello" has length 5, nearest to "short"
	got, err := svc.Search(ctx, "u1", "hello", 2)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(got) != 2 || got[0].Content != "short" || got[0].DocumentID != d.ID {
		t.Fatalf("unexpected results %+v", got)
	}
	if got[0].Embedding != nil {
		t.Fatalf("vectors must not leave the service")
	}
	if _, err := svc.Search(ctx, "u1", " ", 0); !errors.Is(err, application.ErrInvalidInput) {
		t.Fatalf("expected ErrInvalidInput, got %v", err)
	}
}
