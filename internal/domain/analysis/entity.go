package analysis

import "errors"

var (
	// ErrParse means the model reply is not valid JSON of the expected shape.
	ErrParse = errors.New("unparseable model response")
	// ErrValidation means the reply parsed but a score is outside 1..5 or not an integer.
	ErrValidation = errors.New("invalid model score")
)

const (
	MinScore = 1
	MaxScore = 5
)

// Mode chooses how categories are sent to the model.
type Mode string

const (
	ModeBatched     Mode = "batched"
	ModePerCategory Mode = "per_category"
)

// CategoryAnalysis is the score of one rubric category.
type CategoryAnalysis struct {
	Category string `json:"category"`
	Score    int    `json:"score"`
	Feedback string `json:"feedback"`
}

// ScoreCard is the aggregate over one artifact and one rubric snapshot.
// It is never persisted.
type ScoreCard struct {
	OverallScore        float64            `json:"overallScore"`
	Analyses            []CategoryAnalysis `json:"analyses"`
	GeneralImprovements []string           `json:"generalImprovements"`
}

// CategoryResult is the per-category reply shape.
type CategoryResult struct {
	Score        int      `json:"score"`
	Feedback     string   `json:"feedback"`
	Improvements []string `json:"improvements"`
}

// Result holds either a parsed ScoreCard or the raw model text.
type Result struct {
	ScoreCard *ScoreCard `json:"scoreCard,omitempty"`
	Raw       string     `json:"raw,omitempty"`
}

func (r Result) Parsed() bool { return r.ScoreCard != nil }

// Artifact is what gets reviewed: prompt text, an image, or both.
type Artifact struct {
	Text     string `json:"text,omitempty"`
	ImageURL string `json:"imageUrl,omitempty"`
}

func (a Artifact) IsImage() bool { return a.ImageURL != "" }

func (a Artifact) Empty() bool { return a.Text == "" && a.ImageURL == "" }
