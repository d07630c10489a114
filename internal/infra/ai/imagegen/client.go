package imagegen

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
)

const (
	DefaultBaseURL = "https://api.together.xyz/v1"
	DefaultModel   = "black-forest-labs/FLUX.1-schnell"
)

// Client calls an images/generations endpoint that accepts width, height and steps
// (Together style) and returns base64 data.
type Client struct {
	BaseURL string
	APIKey  string
	Model   string
	HTTP    *http.Client
}

func NewClient(baseURL, apiKey, model string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = DefaultModel
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		APIKey:  apiKey,
		Model:   model,
		HTTP:    &http.Client{Timeout: 60 * time.Second},
	}
}

type generateRequest struct {
	Model          string `json:"model"`
	Prompt         string `json:"prompt"`
	Width          int    `json:"width"`
	Height         int    `json:"height"`
	Steps          int    `json:"steps"`
	N              int    `json:"n"`
	ResponseFormat string `json:"response_format"`
}

type generateResponse struct {
	Data []struct {
		B64JSON string `json:"b64_json"`
	} `json:"data"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// Generate implements ai.ImageModel.
func (c *Client) Generate(ctx context.Context, r ai.ImageRequest) (string, error) {
	body, err := json.Marshal(generateRequest{
		Model:          c.Model,
		Prompt:         r.Prompt,
		Width:          r.Width,
		Height:         r.Height,
		Steps:          r.Steps,
		N:              1,
		ResponseFormat: "base64",
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.BaseURL+"/images/generations", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.APIKey)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: failed to call image model: %v", ai.ErrUpstreamModel, err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 32<<20))
	if err != nil {
		return "", fmt.Errorf("%w: read image response: %v", ai.ErrUpstreamModel, err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		return "", fmt.Errorf("%w: image model returned 429", ai.ErrQuotaExceeded)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("%w: image model returned %d: %s", ai.ErrUpstreamModel, resp.StatusCode, excerpt(raw))
	}

	var out generateResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", fmt.Errorf("%w: decode image response: %v", ai.ErrUpstreamModel, err)
	}
	if out.Error != nil {
		return "", fmt.Errorf("%w: %s", ai.ErrUpstreamModel, out.Error.Message)
	}
	if len(out.Data) == 0 || out.Data[0].B64JSON == "" {
		return "", fmt.Errorf("%w: no image data received", ai.ErrUpstreamModel)
	}
	return out.Data[0].B64JSON, nil
}

func excerpt(b []byte) string {
	s := strings.TrimSpace(string(b))
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
