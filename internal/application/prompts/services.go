package prompts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	"github.com/bryanwahyu/mlr-studio/internal/domain/guidelines"
	"github.com/bryanwahyu/mlr-studio/internal/infra/ai/prompt"
)

// ImageType hints the style of the synthesized prompt.
type ImageType string

const (
	ImageRealistic ImageType = "realistic"
	ImageIcon      ImageType = "icon"
	ImageCartoon   ImageType = "cartoon"
)

func (t ImageType) Valid() bool {
	return t == ImageRealistic || t == ImageIcon || t == ImageCartoon
}

// ChunkFunc receives every non-empty streamed delta as it arrives.
type ChunkFunc func(chunk string)

// Provider is one chat backend selectable by name.
type Provider struct {
	Client       ai.Client
	DefaultModel string
	Models       []string
}

// Service synthesizes prompts and slide markup from streamed completions.
type Service struct {
	LLM   ai.Client
	Model string

	Providers       map[string]Provider
	DefaultProvider string
}

// SynthesizeImagePrompt asks the model for an image prompt conditioned on the rubric.
func (s *Service) SynthesizeImagePrompt(ctx context.Context, rubric guidelines.Rubric, hint ImageType, purpose string, onChunk ChunkFunc) (string, error) {
	if hint == "" {
		hint = ImageRealistic
	}
	if !hint.Valid() {
		return "", fmt.Errorf("%w: image type %q", application.ErrInvalidInput, hint)
	}
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.GetImagePromptSystem()},
		{Role: ai.RoleUser, Content: prompt.GetImagePromptUser(string(hint), purpose,
			rubric[guidelines.Purpose], rubric[guidelines.AudienceGuidelines])},
	}
	return s.stream(ctx, s.LLM, msgs, s.Model, onChunk)
}

// SynthesizeSlideMarkup asks for a 16:9 html/css slide built from two inputs.
func (s *Service) SynthesizeSlideMarkup(ctx context.Context, first, second string, onChunk ChunkFunc) (string, error) {
	if strings.TrimSpace(first) == "" && strings.TrimSpace(second) == "" {
		return "", fmt.Errorf("%w: slide inputs are empty", application.ErrInvalidInput)
	}
	msgs := []ai.Message{
		{Role: ai.RoleSystem, Content: prompt.GetSlideSystemPrompt()},
		{Role: ai.RoleUser, Content: prompt.GetSlideUserPrompt(first, second)},
	}
	return s.stream(ctx, s.LLM, msgs, s.Model, onChunk)
}

// SlideMarkup is the html and css pulled out of a slide reply.
type SlideMarkup struct {
	HTML string `json:"html"`
	CSS  string `json:"css"`
}

// ExtractSlideMarkup takes the first html and css fenced blocks. Missing parts are empty.
func ExtractSlideMarkup(text string) SlideMarkup {
	return SlideMarkup{
		HTML: ai.FencedBlock(text, "html"),
		CSS:  ai.FencedBlock(text, "css"),
	}
}

// ChatCommand is a free-form streamed chat against a named provider.
type ChatCommand struct {
	Provider string       `json:"provider"`
	Model    string       `json:"model"`
	Messages []ai.Message `json:"messages"`
}

func (s *Service) Chat(ctx context.Context, cmd ChatCommand, onChunk ChunkFunc) (string, error) {
	if len(cmd.Messages) == 0 {
		return "", fmt.Errorf("%w: messages are required", application.ErrInvalidInput)
	}
	name := cmd.Provider
	if name == "" {
		name = s.DefaultProvider
	}
	p, ok := s.Providers[name]
	if !ok || p.Client == nil {
		return "", fmt.Errorf("%w: unknown provider %q", application.ErrInvalidInput, name)
	}
	model := cmd.Model
	if model == "" {
		model = p.DefaultModel
	}
	if len(p.Models) > 0 && !slices.Contains(p.Models, model) {
		return "", fmt.Errorf("%w: model %q not offered by %s", application.ErrInvalidInput, model, name)
	}
	return s.stream(ctx, p.Client, cmd.Messages, model, onChunk)
}

func (s *Service) stream(ctx context.Context, client ai.Client, msgs []ai.Message, model string, onChunk ChunkFunc) (string, error) {
	if client == nil {
		return "", fmt.Errorf("%w: no language model configured", ai.ErrUpstreamModel)
	}
	st, err := client.CompleteStream(ctx, msgs, model)
	if err != nil {
		return "", err
	}
	return Collect(st, onChunk)
}

// Collect drains a stream. End of stream, clean or abrupt, is completion.
func Collect(st ai.Stream, onChunk ChunkFunc) (string, error) {
	defer st.Close()
	var b strings.Builder
	for {
		chunk, err := st.Recv()
		if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
			return b.String(), nil
		}
		if err != nil {
			return b.String(), err
		}
		if chunk == "" {
			continue
		}
		b.WriteString(chunk)
		if onChunk != nil {
			onChunk(chunk)
		}
	}
}
