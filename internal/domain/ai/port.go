package ai

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Message is one chat turn. ImageURL, when set, must be publicly resolvable.
type Message struct {
	Role     string `json:"role"`
	Content  string `json:"content"`
	ImageURL string `json:"imageUrl,omitempty"`
}

// Stream yields text deltas; Recv returns io.EOF once the upstream is done.
type Stream interface {
	Recv() (string, error)
	Close() error
}

// Client port untuk language model (text, stream & vision)
type Client interface {
	CompleteStream(ctx context.Context, messages []Message, model string) (Stream, error)
	Complete(ctx context.Context, messages []Message, model string) (string, error)
}

type ImageRequest struct {
	Prompt string
	Width  int
	Height int
	Steps  int
}

// ImageModel returns the generated image as base64.
type ImageModel interface {
	Generate(ctx context.Context, req ImageRequest) (string, error)
}

// EmbeddingDimensions matches text-embedding-3-small and the vector(1536) column.
const EmbeddingDimensions = 1536

// Embedder returns one vector per input text, in input order.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
