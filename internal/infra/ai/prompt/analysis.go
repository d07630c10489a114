package prompt

import (
	"fmt"
	"strings"
)

// Category is one rubric category handed to the reviewer model.
type Category struct {
	Key        string
	Label      string
	Guidelines string
}

// GetBatchedSystemPrompt asks for one ScoreCard covering every category.
func GetBatchedSystemPrompt() string {
	return `You are a medical, legal and regulatory (MLR) reviewer for pharmaceutical marketing assets. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Score the asset against each category listed by the user, using only that category's guidelines.
- score is an integer from 1 (non-compliant) to 5 (fully compliant).
- category must be copied exactly from the key given for it.
- analyses must contain exactly one entry per listed category, in the listed order.
- generalImprovements is a list of short, actionable suggestions without duplicates.

Schema (example with empty values):
{
  "overallScore": 0,
  "analyses": [
    {"category": "<key>", "score": 1, "feedback": "<string>"}
  ],
  "generalImprovements": ["<string>"]
}`
}

// GetBatchedUserPrompt embeds the artifact and all categories.
func GetBatchedUserPrompt(artifactText string, isImage bool, categories []Category) string {
	var b strings.Builder
	b.WriteString(subject(artifactText, isImage))
	b.WriteString("\n\nCategories:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "\n### %s (key: %s)\n%s\n", c.Label, c.Key, guidelinesOrNone(c.Guidelines))
	}
	b.WriteString("\nRespond with the JSON per schema.")
	return b.String()
}

// GetCategorySystemPrompt asks for the per-category reply shape.
func GetCategorySystemPrompt() string {
	return `You are a medical, legal and regulatory (MLR) reviewer for pharmaceutical marketing assets. You must produce one valid JSON object only (no markdown, no commentary) that follows the schema below. Do not include code fences.

Requirements:
- Judge the asset against the single category given by the user and nothing else.
- score is an integer from 1 (non-compliant) to 5 (fully compliant).
- improvements is a list of short, actionable suggestions for this category.

Schema (example with empty values):
{"score": 1, "feedback": "<string>", "improvements": ["<string>"]}`
}

// GetCategoryUserPrompt embeds the artifact and one category.
func GetCategoryUserPrompt(artifactText string, isImage bool, c Category) string {
	return fmt.Sprintf("%s\n\nCategory: %s\nGuidelines:\n%s\n\nRespond with the JSON per schema.",
		subject(artifactText, isImage), c.Label, guidelinesOrNone(c.Guidelines))
}

func subject(text string, isImage bool) string {
	switch {
	case isImage && text != "":
		return "Review the attached image. It was generated from this prompt:\n" + text
	case isImage:
		return "Review the attached image."
	default:
		return "Review this image generation prompt:\n" + text
	}
}

func guidelinesOrNone(g string) string {
	if strings.TrimSpace(g) == "" {
		return "(no guidelines provided)"
	}
	return g
}
