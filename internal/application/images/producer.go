package images

import (
	"bytes"
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	domain "github.com/bryanwahyu/mlr-studio/internal/domain/images"
)

const (
	DefaultWidth  = 1024
	DefaultHeight = 768
	DefaultSteps  = 3
	DefaultTTL    = time.Hour

	imageContentType = "image/jpeg"
)

// Producer generates an image and archives it in object storage.
type Producer struct {
	Model ai.ImageModel
	Store domain.ObjectStore
	HTTP  *http.Client
	Clock application.Clock

	Width, Height, Steps int
	TTL                  time.Duration
}

// GenerateResult always carries the image when generation succeeded.
// S3URL is empty and Error set when archiving failed.
type GenerateResult struct {
	Base64 string `json:"base64"`
	S3URL  string `json:"s3Url,omitempty"`
	Error  string `json:"error,omitempty"`
}

// Generate runs the image model with the draft settings and archives the result.
func (p *Producer) Generate(ctx context.Context, userID, prompt string) (GenerateResult, error) {
	if strings.TrimSpace(prompt) == "" {
		return GenerateResult{}, fmt.Errorf("%w: prompt is required", application.ErrInvalidInput)
	}
	if userID == "" {
		return GenerateResult{}, fmt.Errorf("%w: user is required", application.ErrInvalidInput)
	}

	b64, err := p.Model.Generate(ctx, ai.ImageRequest{
		Prompt: prompt,
		Width:  orDefault(p.Width, DefaultWidth),
		Height: orDefault(p.Height, DefaultHeight),
		Steps:  orDefault(p.Steps, DefaultSteps),
	})
	if err != nil {
		return GenerateResult{}, err
	}
	data, err := base64.StdEncoding.DecodeString(b64)
	if err != nil || len(data) == 0 {
		return GenerateResult{}, fmt.Errorf("%w: image payload is not base64", ai.ErrUpstreamModel)
	}

	key := domain.GenerationKey(userID, p.Clock.Now())
	if err := p.archive(ctx, key, data); err != nil {
		// image tetap dikembalikan walau upload gagal
		log.Printf("event=image_archive_failed user=%s key=%s err=%v", userID, key, err)
		return GenerateResult{
			Base64: b64,
			Error:  "Image generated but S3 upload failed: " + err.Error(),
		}, nil
	}

	return GenerateResult{Base64: b64, S3URL: domain.CanonicalURL(p.Store.Bucket(), key)}, nil
}

func (p *Producer) archive(ctx context.Context, key string, data []byte) error {
	if p.Store == nil {
		return fmt.Errorf("%w: no object store configured", domain.ErrStorage)
	}
	ttl := p.TTL
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	url, err := p.Store.PresignPut(ctx, key, imageContentType, ttl)
	if err != nil {
		return fmt.Errorf("%w: presign: %v", domain.ErrStorage, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPut, url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("%w: %v", domain.ErrStorage, err)
	}
	req.Header.Set("Content-Type", imageContentType)

	client := p.HTTP
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: upload: %v", domain.ErrStorage, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("%w: upload status %d", domain.ErrStorage, resp.StatusCode)
	}
	return nil
}

func orDefault(v, def int) int {
	if v <= 0 {
		return def
	}
	return v
}
