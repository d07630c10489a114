package uploads

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"
)

// ErrChunksUnavailable is returned when no vector store is configured.
var ErrChunksUnavailable = errors.New("document chunks are not available")

// DefaultChunkRunes is roughly 500 tokens of english text.
const DefaultChunkRunes = 2000

// Chunk is one embedded piece of a document.
type Chunk struct {
	ID         int64          `json:"chunk_id"`
	DocumentID DocumentID     `json:"document_id"`
	Index      int            `json:"chunk_index"`
	Content    string         `json:"chunk_content"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Embedding  []float32      `json:"-"`
	// Distance is the cosine distance to a search query, zero elsewhere.
	Distance  float64   `json:"distance,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// ChunkRepository stores chunks scoped by the owning document's user.
type ChunkRepository interface {
	ReplaceChunks(ctx context.Context, userID string, id DocumentID, chunks []Chunk) error
	Chunks(ctx context.Context, userID string, id DocumentID) ([]Chunk, error)
	Search(ctx context.Context, userID string, embedding []float32, limit int) ([]Chunk, error)
}

// Section is a piece of text ready to embed, with the heading it sits under.
type Section struct {
	Heading string
	Text    string
}

var blankLine = regexp.MustCompile(`\n[ \t]*\n`)

// Split packs paragraphs into sections of at most maxRunes runes. A markdown
// heading always starts a new section. Paragraphs longer than maxRunes are
// cut on word boundaries.
func Split(text string, maxRunes int) []Section {
	if maxRunes <= 0 {
		maxRunes = DefaultChunkRunes
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")

	var (
		out     []Section
		buf     strings.Builder
		n       int
		heading string
	)
	flush := func() {
		if t := strings.TrimSpace(buf.String()); t != "" {
			out = append(out, Section{Heading: heading, Text: t})
		}
		buf.Reset()
		n = 0
	}
	for _, para := range blankLine.Split(text, -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		if h, ok := headingOf(para); ok {
			flush()
			heading = h
		}
		for _, piece := range pieces(para, maxRunes) {
			size := utf8.RuneCountInString(piece)
			if n > 0 && n+2+size > maxRunes {
				flush()
			}
			if n > 0 {
				buf.WriteString("\n\n")
				n += 2
			}
			buf.WriteString(piece)
			n += size
		}
	}
	flush()
	return out
}

func headingOf(para string) (string, bool) {
	line, _, _ := strings.Cut(para, "\n")
	if !strings.HasPrefix(line, "#") {
		return "", false
	}
	h := strings.TrimSpace(strings.TrimLeft(line, "#"))
	return h, h != ""
}

// pieces cuts a paragraph on whitespace; a single word longer than limit is
// cut by runes.
func pieces(para string, limit int) []string {
	if utf8.RuneCountInString(para) <= limit {
		return []string{para}
	}
	var (
		out []string
		cur []string
		n   int
	)
	for _, w := range strings.Fields(para) {
		for utf8.RuneCountInString(w) > limit {
			if len(cur) > 0 {
				out = append(out, strings.Join(cur, " "))
				cur, n = nil, 0
			}
			r := []rune(w)
			out = append(out, string(r[:limit]))
			w = string(r[limit:])
		}
		size := utf8.RuneCountInString(w)
		if size == 0 {
			continue
		}
		if n > 0 && n+1+size > limit {
			out = append(out, strings.Join(cur, " "))
			cur, n = nil, 0
		}
		if n > 0 {
			n++
		}
		cur = append(cur, w)
		n += size
	}
	if len(cur) > 0 {
		out = append(out, strings.Join(cur, " "))
	}
	return out
}
