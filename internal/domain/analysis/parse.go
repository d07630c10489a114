package analysis

import (
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/bryanwahyu/mlr-studio/internal/domain/ai"
)

type batchedReply struct {
	// overallScore is decoded but never used
	OverallScore any `json:"overallScore"`
	Analyses     []struct {
		Category string `json:"category"`
		Score    any    `json:"score"`
		Feedback string `json:"feedback"`
	} `json:"analyses"`
	GeneralImprovements []string `json:"generalImprovements"`
}

type categoryReply struct {
	Score        any      `json:"score"`
	Feedback     string   `json:"feedback"`
	Improvements []string `json:"improvements"`
}

// ParseScoreCard parses a batched reply. The result holds one analysis per
// requested category, in request order, with the overall score recomputed.
func ParseScoreCard(text string, categories []string) (ScoreCard, error) {
	var reply batchedReply
	if err := json.Unmarshal([]byte(ai.StripCodeFence(text)), &reply); err != nil {
		return ScoreCard{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	if len(reply.Analyses) == 0 {
		return ScoreCard{}, fmt.Errorf("%w: no analyses", ErrParse)
	}

	byName := make(map[string]int, len(reply.Analyses))
	for i, a := range reply.Analyses {
		name := strings.ToLower(strings.TrimSpace(a.Category))
		if name == "" {
			continue
		}
		if _, dup := byName[name]; dup {
			return ScoreCard{}, fmt.Errorf("%w: category %q listed twice", ErrParse, a.Category)
		}
		byName[name] = i
	}
	positional := len(reply.Analyses) == len(categories)

	// each entry of the reply scores at most one category
	used := make(map[int]bool, len(reply.Analyses))
	out := make([]CategoryAnalysis, 0, len(categories))
	for i, c := range categories {
		idx, ok := byName[strings.ToLower(c)]
		if !ok {
			if !positional {
				return ScoreCard{}, fmt.Errorf("%w: category %q missing", ErrParse, c)
			}
			idx = i
		}
		if used[idx] {
			return ScoreCard{}, fmt.Errorf("%w: category %q has no entry of its own", ErrParse, c)
		}
		used[idx] = true
		a := reply.Analyses[idx]
		score, err := scoreValue(a.Score)
		if err != nil {
			return ScoreCard{}, fmt.Errorf("category %q: %w", c, err)
		}
		out = append(out, CategoryAnalysis{Category: c, Score: score, Feedback: a.Feedback})
	}
	return NewScoreCard(out, reply.GeneralImprovements), nil
}

// ParseCategoryResult parses a single-category reply.
func ParseCategoryResult(text string) (CategoryResult, error) {
	var reply categoryReply
	if err := json.Unmarshal([]byte(ai.StripCodeFence(text)), &reply); err != nil {
		return CategoryResult{}, fmt.Errorf("%w: %v", ErrParse, err)
	}
	score, err := scoreValue(reply.Score)
	if err != nil {
		return CategoryResult{}, err
	}
	return CategoryResult{Score: score, Feedback: reply.Feedback, Improvements: reply.Improvements}, nil
}

func scoreValue(v any) (int, error) {
	switch n := v.(type) {
	case nil:
		return 0, fmt.Errorf("%w: score missing", ErrParse)
	case float64:
		if n != math.Trunc(n) || n < MinScore || n > MaxScore {
			return 0, fmt.Errorf("%w: %v", ErrValidation, n)
		}
		return int(n), nil
	default:
		return 0, fmt.Errorf("%w: non-numeric score %v", ErrValidation, v)
	}
}
