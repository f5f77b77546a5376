package retrieval

import (
	"sort"
	"strings"

	"github.com/mltutor/backend/internal/models"
)

// Rank orders a candidate pool by a lightweight relevance score and keeps
// the top maxDocs. A pool already within the cap is returned untouched, in
// retrieval order.
func Rank(query string, docs []models.Chunk, maxDocs int) []models.Chunk {
	if len(docs) <= maxDocs {
		return docs
	}

	queryTerms := uniqueTerms(strings.Fields(strings.ToLower(query)))

	type scored struct {
		doc   models.Chunk
		score float64
	}
	scoredDocs := make([]scored, 0, len(docs))
	for _, doc := range docs {
		scoredDocs = append(scoredDocs, scored{doc: doc, score: scoreDoc(queryTerms, doc)})
	}

	sort.SliceStable(scoredDocs, func(a, b int) bool {
		return scoredDocs[a].score > scoredDocs[b].score
	})

	out := make([]models.Chunk, 0, maxDocs)
	for _, s := range scoredDocs[:maxDocs] {
		out = append(out, s.doc)
	}
	return out
}

// uniqueTerms drops repeated terms so a word occurring twice in the query
// is not counted twice against every document.
func uniqueTerms(terms []string) []string {
	seen := make(map[string]struct{}, len(terms))
	out := terms[:0]
	for _, t := range terms {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		out = append(out, t)
	}
	return out
}

// scoreDoc combines keyword hits, a capped length bonus, and a constant
// diversity placeholder.
func scoreDoc(queryTerms []string, doc models.Chunk) float64 {
	contentLower := strings.ToLower(doc.Content)

	keywordScore := 0
	for _, term := range queryTerms {
		if strings.Contains(contentLower, term) {
			keywordScore++
		}
	}

	lengthScore := float64(len(doc.Content)) / 1000
	if lengthScore > 2.0 {
		lengthScore = 2.0
	}

	return float64(keywordScore)*2 + lengthScore + 1.0
}
