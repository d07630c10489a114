package uploads

import (
	"context"
	"fmt"
	"log"
	"strings"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	domain "github.com/bryanwahyu/mlr-studio/internal/domain/uploads"
)

const (
	defaultSearchLimit = 5
	maxSearchLimit     = 50
)

// Process splits the document text, embeds every section and stores the
// result as the document's chunks. The document ends up processed, or
// failed with the error kept in its metadata.
func (s *Service) Process(ctx context.Context, userID string, id domain.DocumentID, text string) (*domain.Document, error) {
	if !s.chunksEnabled() {
		return nil, domain.ErrChunksUnavailable
	}
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("%w: text is required", application.ErrInvalidInput)
	}
	if _, err := s.Repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}

	processing := domain.StatusProcessing
	if _, err := s.Repo.Update(ctx, userID, id, domain.Patch{Status: &processing}, s.Clock.Now().UTC()); err != nil {
		return nil, err
	}

	chunks, err := s.embed(ctx, id, text)
	if err == nil {
		err = s.Chunks.ReplaceChunks(ctx, userID, id, chunks)
	}
	if err != nil {
		log.Printf("event=document_processing_failed document=%s user=%s error=%q", id, userID, err)
		if markErr := s.markFailed(ctx, userID, id, err); markErr != nil {
			log.Printf("event=document_status_failed document=%s error=%q", id, markErr)
		}
		return nil, err
	}

	processed := domain.StatusProcessed
	d, err := s.Repo.Update(ctx, userID, id, domain.Patch{Status: &processed}, s.Clock.Now().UTC())
	if err != nil {
		return nil, err
	}
	log.Printf("event=document_processed document=%s user=%s chunks=%d", id, userID, len(chunks))
	return d, nil
}

// ListChunks returns the chunks of one of the user's documents.
func (s *Service) ListChunks(ctx context.Context, userID string, id domain.DocumentID) ([]domain.Chunk, error) {
	if !s.chunksEnabled() {
		return nil, domain.ErrChunksUnavailable
	}
	if _, err := s.Repo.Get(ctx, userID, id); err != nil {
		return nil, err
	}
	chunks, err := s.Chunks.Chunks(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if chunks == nil {
		chunks = []domain.Chunk{}
	}
	return chunks, nil
}

// Search embeds the query and returns the user's nearest chunks.
func (s *Service) Search(ctx context.Context, userID, query string, limit int) ([]domain.Chunk, error) {
	if !s.chunksEnabled() {
		return nil, domain.ErrChunksUnavailable
	}
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is required", application.ErrInvalidInput)
	}
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	limit = min(limit, maxSearchLimit)

	vecs, err := s.Embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, err
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("%w: %d embeddings for one query", ai.ErrUpstreamModel, len(vecs))
	}
	chunks, err := s.Chunks.Search(ctx, userID, vecs[0], limit)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Chunk, 0, len(chunks))
	for _, c := range chunks {
		c.Embedding = nil
		out = append(out, c)
	}
	return out, nil
}

func (s *Service) embed(ctx context.Context, id domain.DocumentID, text string) ([]domain.Chunk, error) {
	size := s.ChunkSize
	if size <= 0 {
		size = domain.DefaultChunkRunes
	}
	sections := domain.Split(text, size)
	texts := make([]string, len(sections))
	for i, sec := range sections {
		texts[i] = sec.Text
	}
	vecs, err := s.Embedder.Embed(ctx, texts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(sections) {
		return nil, fmt.Errorf("%w: %d embeddings for %d sections", ai.ErrUpstreamModel, len(vecs), len(sections))
	}

	now := s.Clock.Now().UTC()
	chunks := make([]domain.Chunk, len(sections))
	for i, sec := range sections {
		if len(vecs[i]) != ai.EmbeddingDimensions {
			return nil, fmt.Errorf("%w: embedding of %d dimensions, want %d", ai.ErrUpstreamModel, len(vecs[i]), ai.EmbeddingDimensions)
		}
		meta := map[string]any{"characters": len([]rune(sec.Text))}
		if sec.Heading != "" {
			meta["heading"] = sec.Heading
		}
		chunks[i] = domain.Chunk{
			DocumentID: id,
			Index:      i,
			Content:    sec.Text,
			Metadata:   meta,
			Embedding:  vecs[i],
			CreatedAt:  now,
		}
	}
	return chunks, nil
}

// markFailed saves the failed status with the cause under metadata.error.
func (s *Service) markFailed(ctx context.Context, userID string, id domain.DocumentID, cause error) error {
	d, err := s.Repo.Get(ctx, userID, id)
	if err != nil {
		return err
	}
	meta := make(map[string]any, len(d.Metadata)+1)
	for k, v := range d.Metadata {
		meta[k] = v
	}
	meta["error"] = cause.Error()
	d.Metadata = meta
	d.Status = domain.StatusProcessingFailed
	d.UpdatedAt = s.Clock.Now().UTC()
	return s.Repo.Save(ctx, d)
}

func (s *Service) chunksEnabled() bool {
	return s.Chunks != nil && s.Embedder != nil
}
