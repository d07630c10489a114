package openai

import (
	"context"
	"fmt"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
)

// embedBatch bounds the inputs of one embeddings request.
const embedBatch = 64

// Embed vectorises texts in batches and returns the vectors in input order.
func (c *Client) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	model := openai.EmbeddingModel(c.EmbeddingModel)
	if model == "" {
		model = openai.SmallEmbedding3
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += embedBatch {
		end := min(start+embedBatch, len(texts))
		batch := texts[start:end]
		resp, err := c.CreateEmbeddings(ctx, openai.EmbeddingRequest{Input: batch, Model: model})
		if err != nil {
			return nil, wrapErr("failed to create embeddings", err)
		}
		if len(resp.Data) != len(batch) {
			return nil, fmt.Errorf("%w: %d embeddings for %d inputs", ai.ErrUpstreamModel, len(resp.Data), len(batch))
		}
		vecs := make([][]float32, len(batch))
		for _, d := range resp.Data {
			if d.Index < 0 || d.Index >= len(batch) || vecs[d.Index] != nil {
				return nil, fmt.Errorf("%w: bad embedding index %d", ai.ErrUpstreamModel, d.Index)
			}
			vecs[d.Index] = d.Embedding
		}
		out = append(out, vecs...)
	}
	return out, nil
}
