package ingest

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/tmc/langchaingo/textsplitter"

	"github.com/mltutor/backend/internal/models"
)

const minChunkChars = 100

// Separators ordered by priority: block markers first so theorems, proofs
// and formulas stay intact, then paragraph and sentence boundaries.
var chunkSeparators = []string{
	"\n\n【定理",
	"\n\n【引理",
	"\n\n【证明",
	"\n\n【公式",
	"\n\n\n",
	"\n\n",
	"。\n",
	"；\n",
	"\n",
	"。",
	"，",
	" ",
	"",
}

type Splitter struct {
	inner textsplitter.RecursiveCharacter
}

func NewSplitter(chunkSize, chunkOverlap int) *Splitter {
	return &Splitter{
		inner: textsplitter.NewRecursiveCharacter(
			textsplitter.WithChunkSize(chunkSize),
			textsplitter.WithChunkOverlap(chunkOverlap),
			textsplitter.WithSeparators(chunkSeparators),
			textsplitter.WithKeepSeparator(true),
		),
	}
}

// SplitPages chunks cleaned pages and runs the merge pass over the result.
func (s *Splitter) SplitPages(pages []cleanedPage) ([]models.Chunk, error) {
	var chunks []models.Chunk
	for _, cp := range pages {
		parts, err := s.inner.SplitText(cp.Page.Text)
		if err != nil {
			return nil, fmt.Errorf("split page %d: %w", cp.Page.Number, err)
		}
		for _, part := range parts {
			chunks = append(chunks, models.Chunk{
				Content:       part,
				Source:        cp.Page.Source,
				Page:          cp.Page.Number,
				PageType:      cp.PageType,
				IsSpecialPage: cp.PageType != models.PageContent,
				ChapterID:     cp.Chapter,
			})
		}
	}
	return postProcessChunks(chunks), nil
}

// postProcessChunks drops undersized fragments and merges a content chunk
// into its successor when the boundary looks mid-expression. Merges use a
// single lookahead; a merged chunk is never merged again.
func postProcessChunks(chunks []models.Chunk) []models.Chunk {
	var out []models.Chunk
	skipNext := false

	for i := range chunks {
		if skipNext {
			skipNext = false
			continue
		}

		current := chunks[i]
		current.Content = strings.TrimSpace(current.Content)
		if utf8.RuneCountInString(current.Content) < minChunkChars {
			continue
		}

		if i < len(chunks)-1 && current.PageType == models.PageContent {
			next := chunks[i+1]
			if next.PageType == models.PageContent && shouldMergeWithNext(current.Content, next.Content) {
				current.Content = current.Content + "\n" + next.Content
				skipNext = true
			}
		}

		out = append(out, current)
	}
	return out
}

var (
	danglingOpPattern      = regexp.MustCompile(`[=+\-*/]$`)
	danglingCommaPattern   = regexp.MustCompile(`[，；,;]$`)
	danglingBracketPattern = regexp.MustCompile(`[（([]$`)
)

func shouldMergeWithNext(current, next string) bool {
	trimmed := strings.TrimSpace(current)

	if danglingOpPattern.MatchString(trimmed) {
		return true
	}
	if danglingCommaPattern.MatchString(trimmed) {
		return true
	}
	if strings.Contains(current, "【证明") && !strings.Contains(current, "证毕") {
		if !strings.HasPrefix(strings.TrimSpace(next), "【") {
			return true
		}
	}
	return danglingBracketPattern.MatchString(trimmed)
}
