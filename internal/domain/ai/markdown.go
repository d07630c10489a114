package ai

import (
	"regexp"
	"strings"
)

var fenceRe = regexp.MustCompile("(?is)^```(?:json)?[ \\t]*(.*?)\\s*```$")

// StripCodeFence removes a single leading/trailing triple-backtick fence,
// optionally tagged json. Unfenced text is returned trimmed.
func StripCodeFence(text string) string {
	t := strings.TrimSpace(text)
	if m := fenceRe.FindStringSubmatch(t); m != nil {
		return strings.TrimSpace(m[1])
	}
	return t
}

// FencedBlock returns the body of the first fenced block labeled lang,
// or "" when there is none.
func FencedBlock(text, lang string) string {
	re := regexp.MustCompile("```" + regexp.QuoteMeta(lang) + "\\r?\\n([\\s\\S]*?)```")
	m := re.FindStringSubmatch(text)
	if m == nil {
		return ""
	}
	return strings.TrimSpace(m[1])
}
