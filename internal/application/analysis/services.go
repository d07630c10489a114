package analysis

import (
	"context"
	"fmt"
	"log"

	"golang.org/x/sync/errgroup"

	"github.com/bryanwahyu/mlr-studio/internal/application"
	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
	domain "github.com/bryanwahyu/mlr-studio/internal/domain/analysis"
	"github.com/bryanwahyu/mlr-studio/internal/domain/guidelines"
	"github.com/bryanwahyu/mlr-studio/internal/infra/ai/prompt"
)

// LocatorResolver turns an artifact locator into a URL the vision model can fetch.
type LocatorResolver interface {
	Resolve(locator string) (string, error)
}

// Service scores artifacts against rubric categories.
type Service struct {
	LLM         ai.Client
	Model       string
	VisionModel string
	Resolver    LocatorResolver

	// Parallelism > 1 runs per-category calls concurrently, still failing fast.
	Parallelism int
}

// Run dispatches to the requested mode. Per-category scorecards are always parsed.
func (s *Service) Run(ctx context.Context, mode domain.Mode, artifact domain.Artifact, rubric guidelines.Rubric, categories []string) (domain.Result, error) {
	switch mode {
	case "", domain.ModeBatched:
		return s.Analyze(ctx, artifact, rubric, categories)
	case domain.ModePerCategory:
		sc, err := s.AnalyzePerCategory(ctx, artifact, rubric, categories)
		if err != nil {
			return domain.Result{}, err
		}
		return domain.Result{ScoreCard: &sc}, nil
	}
	return domain.Result{}, fmt.Errorf("%w: mode %q", application.ErrInvalidInput, mode)
}

// Analyze sends every category in one request (batched mode). A reply that
// cannot be parsed or validated comes back as Result.Raw, not as an error.
func (s *Service) Analyze(ctx context.Context, artifact domain.Artifact, rubric guidelines.Rubric, categories []string) (domain.Result, error) {
	keys, err := Categories(categories)
	if err != nil {
		return domain.Result{}, err
	}
	if artifact.Empty() {
		return domain.Result{}, fmt.Errorf("%w: artifact is empty", application.ErrInvalidInput)
	}
	cats := toPromptCategories(rubric, keys)

	user := prompt.GetBatchedUserPrompt(artifact.Text, artifact.IsImage(), cats)
	raw, err := s.complete(ctx, artifact, prompt.GetBatchedSystemPrompt(), user)
	if err != nil {
		return domain.Result{}, err
	}

	sc, err := domain.ParseScoreCard(raw, keyStrings(keys))
	if err != nil {
		log.Printf("event=analysis_raw_fallback mode=batched categories=%d err=%v", len(keys), err)
		return domain.Result{Raw: raw}, nil
	}
	return domain.Result{ScoreCard: &sc}, nil
}

// AnalyzePerCategory issues one request per category. Any failure aborts the whole scorecard.
func (s *Service) AnalyzePerCategory(ctx context.Context, artifact domain.Artifact, rubric guidelines.Rubric, categories []string) (domain.ScoreCard, error) {
	keys, err := Categories(categories)
	if err != nil {
		return domain.ScoreCard{}, err
	}
	if artifact.Empty() {
		return domain.ScoreCard{}, fmt.Errorf("%w: artifact is empty", application.ErrInvalidInput)
	}
	cats := toPromptCategories(rubric, keys)
	results := make([]domain.CategoryResult, len(cats))

	one := func(ctx context.Context, i int) error {
		user := prompt.GetCategoryUserPrompt(artifact.Text, artifact.IsImage(), cats[i])
		raw, err := s.complete(ctx, artifact, prompt.GetCategorySystemPrompt(), user)
		if err != nil {
			return fmt.Errorf("category %s: %w", cats[i].Key, err)
		}
		res, err := domain.ParseCategoryResult(raw)
		if err != nil {
			return fmt.Errorf("category %s: %w", cats[i].Key, err)
		}
		results[i] = res
		return nil
	}

	if s.Parallelism <= 1 {
		for i := range cats {
			if err := one(ctx, i); err != nil {
				return domain.ScoreCard{}, err
			}
		}
	} else {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(s.Parallelism)
		for i := range cats {
			g.Go(func() error { return one(gctx, i) })
		}
		if err := g.Wait(); err != nil {
			return domain.ScoreCard{}, err
		}
	}

	analyses := make([]domain.CategoryAnalysis, len(cats))
	var improvements []string
	for i, r := range results {
		analyses[i] = domain.CategoryAnalysis{Category: cats[i].Key, Score: r.Score, Feedback: r.Feedback}
		improvements = append(improvements, r.Improvements...)
	}
	return domain.NewScoreCard(analyses, improvements), nil
}

func (s *Service) complete(ctx context.Context, artifact domain.Artifact, system, user string) (string, error) {
	if s.LLM == nil {
		return "", fmt.Errorf("%w: no language model configured", ai.ErrUpstreamModel)
	}
	msg := ai.Message{Role: ai.RoleUser, Content: user}
	model := s.Model
	if artifact.IsImage() {
		url := artifact.ImageURL
		if s.Resolver != nil {
			var err error
			if url, err = s.Resolver.Resolve(url); err != nil {
				return "", fmt.Errorf("%w: %v", application.ErrInvalidInput, err)
			}
		}
		msg.ImageURL = url
		if s.VisionModel != "" {
			model = s.VisionModel
		}
	}
	return s.LLM.Complete(ctx, []ai.Message{{Role: ai.RoleSystem, Content: system}, msg}, model)
}

// Categories validates requested category keys; none means the default set.
func Categories(raw []string) ([]guidelines.Key, error) {
	if len(raw) == 0 {
		return guidelines.DefaultCategories(), nil
	}
	out := make([]guidelines.Key, 0, len(raw))
	seen := make(map[guidelines.Key]bool, len(raw))
	for _, c := range raw {
		k := guidelines.Key(c)
		if !k.Assessable() {
			return nil, fmt.Errorf("%w: category %q", application.ErrInvalidInput, c)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		out = append(out, k)
	}
	return out, nil
}

func toPromptCategories(rubric guidelines.Rubric, keys []guidelines.Key) []prompt.Category {
	out := make([]prompt.Category, len(keys))
	for i, k := range keys {
		out[i] = prompt.Category{Key: string(k), Label: k.Label(), Guidelines: rubric[k]}
	}
	return out
}

func keyStrings(keys []guidelines.Key) []string {
	out := make([]string, len(keys))
	for i, k := range keys {
		out[i] = string(k)
	}
	return out
}
