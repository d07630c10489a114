package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/sashabaranov/go-openai"

	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
)

const (
	maxTokens          = 2048
	defaultTemperature = 0.7
)

// Client talks to any OpenAI-compatible chat endpoint (openai, deepseek, together).
type Client struct {
	*openai.Client
	Model       string
	Temperature float32
	// EmbeddingModel defaults to text-embedding-3-small.
	EmbeddingModel string
}

// NewClient builds a client; an empty baseURL means api.openai.com.
func NewClient(apiKey, baseURL, model string) *Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = strings.TrimRight(baseURL, "/")
	}
	return &Client{Client: openai.NewClientWithConfig(cfg), Model: model, Temperature: defaultTemperature}
}

// Complete returns the full reply. Messages with ImageURL are sent as vision parts.
func (c *Client) Complete(ctx context.Context, messages []ai.Message, model string) (string, error) {
	resp, err := c.CreateChatCompletion(ctx, c.request(messages, model, false))
	if err != nil {
		return "", wrapErr("failed to create chat completion", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: empty completion", ai.ErrUpstreamModel)
	}
	return resp.Choices[0].Message.Content, nil
}

// CompleteStream opens a streamed completion.
func (c *Client) CompleteStream(ctx context.Context, messages []ai.Message, model string) (ai.Stream, error) {
	s, err := c.CreateChatCompletionStream(ctx, c.request(messages, model, true))
	if err != nil {
		return nil, wrapErr("failed to create chat completion stream", err)
	}
	return &stream{s: s}, nil
}

func (c *Client) request(messages []ai.Message, model string, streaming bool) openai.ChatCompletionRequest {
	if model == "" {
		model = c.Model
	}
	req := openai.ChatCompletionRequest{
		Model:    model,
		Messages: toMessages(messages),
		Stream:   streaming,
	}
	// For reasoning models (o1/o3/o4/gpt-5*) use MaxCompletionTokens instead of MaxTokens
	if reasoning(model) {
		req.MaxCompletionTokens = maxTokens
	} else {
		req.MaxTokens = maxTokens
		req.Temperature = c.Temperature
	}
	return req
}

func reasoning(model string) bool {
	for _, p := range []string{"o1", "o3", "o4", "gpt-5"} {
		if strings.HasPrefix(model, p) {
			return true
		}
	}
	return false
}

func toMessages(in []ai.Message) []openai.ChatCompletionMessage {
	out := make([]openai.ChatCompletionMessage, 0, len(in))
	for _, m := range in {
		if m.ImageURL == "" {
			out = append(out, openai.ChatCompletionMessage{Role: m.Role, Content: m.Content})
			continue
		}
		parts := []openai.ChatMessagePart{}
		if m.Content != "" {
			parts = append(parts, openai.ChatMessagePart{Type: openai.ChatMessagePartTypeText, Text: m.Content})
		}
		parts = append(parts, openai.ChatMessagePart{
			Type:     openai.ChatMessagePartTypeImageURL,
			ImageURL: &openai.ChatMessageImageURL{URL: m.ImageURL, Detail: openai.ImageURLDetailAuto},
		})
		out = append(out, openai.ChatCompletionMessage{Role: m.Role, MultiContent: parts})
	}
	return out
}

type stream struct {
	s *openai.ChatCompletionStream
}

// Recv returns io.EOF untouched so callers can detect end of stream.
func (st *stream) Recv() (string, error) {
	resp, err := st.s.Recv()
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return "", err
	}
	if err != nil {
		return "", wrapErr("stream receive", err)
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	return resp.Choices[0].Delta.Content, nil
}

func (st *stream) Close() error {
	return st.s.Close()
}

func wrapErr(op string, err error) error {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %w", ai.ErrQuotaExceeded, op, err)
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode == http.StatusTooManyRequests {
		return fmt.Errorf("%w: %s: %w", ai.ErrQuotaExceeded, op, err)
	}
	return fmt.Errorf("%w: %s: %w", ai.ErrUpstreamModel, op, err)
}
