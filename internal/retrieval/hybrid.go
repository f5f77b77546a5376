package retrieval

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/models"
)

// DenseSearcher is the vector-index side of hybrid retrieval.
type DenseSearcher interface {
	Search(ctx context.Context, collection, query string, k int) ([]models.Chunk, error)
}

// KeywordSearcher is the sparse side.
type KeywordSearcher interface {
	Search(query string, n int) []models.Chunk
}

// Hybrid fans a query (plus its expansions) out to both indexes and merges
// the results, deduplicating by content hash in first-seen order.
type Hybrid struct {
	dense      DenseSearcher
	keyword    KeywordSearcher
	collection string
	topK       int
	numQueries int
	expand     bool
}

func NewHybrid(dense DenseSearcher, keyword KeywordSearcher, collection string, topK, numQueries int, expand bool) *Hybrid {
	return &Hybrid{
		dense:      dense,
		keyword:    keyword,
		collection: collection,
		topK:       topK,
		numQueries: numQueries,
		expand:     expand,
	}
}

func (h *Hybrid) Retrieve(ctx context.Context, query string) ([]models.Chunk, error) {
	queries := []string{query}
	if h.expand {
		queries = ExpandQuery(query, h.numQueries)
	}

	var merged []models.Chunk
	seen := make(map[string]bool)

	add := func(chunks []models.Chunk) {
		for _, c := range chunks {
			key := contentHash(c.Content)
			if seen[key] {
				continue
			}
			seen[key] = true
			merged = append(merged, c)
		}
	}

	for _, q := range queries {
		if h.dense != nil {
			docs, err := h.dense.Search(ctx, h.collection, q, h.topK)
			if err != nil {
				return nil, err
			}
			add(docs)
		}
		if h.keyword != nil {
			add(h.keyword.Search(q, h.topK))
		}
	}

	log.Debug().Str("query", query).Int("variants", len(queries)).Int("unique", len(merged)).Msg("hybrid retrieval")
	return merged, nil
}

func contentHash(content string) string {
	sum := md5.Sum([]byte(strings.TrimSpace(content)))
	return hex.EncodeToString(sum[:])
}
