package analysis

import "math"

// OverallScore is the mean of the category scores rounded to one decimal.
func OverallScore(analyses []CategoryAnalysis) float64 {
	if len(analyses) == 0 {
		return 0
	}
	sum := 0
	for _, a := range analyses {
		sum += a.Score
	}
	mean := float64(sum) / float64(len(analyses))
	return math.Round(mean*10) / 10
}

// Dedupe keeps the first occurrence of every exact string, in order.
// Empty strings are dropped.
func Dedupe(items []string) []string {
	out := make([]string, 0, len(items))
	seen := make(map[string]struct{}, len(items))
	for _, s := range items {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// NewScoreCard builds a ScoreCard with the overall score recomputed locally.
func NewScoreCard(analyses []CategoryAnalysis, improvements []string) ScoreCard {
	if analyses == nil {
		analyses = []CategoryAnalysis{}
	}
	return ScoreCard{
		OverallScore:        OverallScore(analyses),
		Analyses:            analyses,
		GeneralImprovements: Dedupe(improvements),
	}
}
