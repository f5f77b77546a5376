package quiz

import (
	"strconv"
	"strings"

	"github.com/mltutor/backend/internal/models"
)

const conceptSnippetRunes = 160

// ConceptKey identifies the passage a question was generated from. It is
// stamped once at generation time and never recomputed, so the same chunk
// always yields the same key: source, chapter, page, and a normalized prefix
// of the content.
func ConceptKey(c models.Chunk) string {
	return strings.Join([]string{
		c.Source,
		c.ChapterID,
		strconv.Itoa(c.Page),
		normalizeSnippet(c.Content),
	}, "|")
}

// normalizeSnippet collapses whitespace, lowercases latin text, and keeps
// only the first 160 runes so trailing edits to a chunk do not change its key.
func normalizeSnippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	s = strings.ToLower(s)

	runes := []rune(s)
	if len(runes) > conceptSnippetRunes {
		runes = runes[:conceptSnippetRunes]
	}
	return string(runes)
}
