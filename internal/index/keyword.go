package index

import (
	"math"
	"sort"
	"strings"
	"sync"
	"unicode"

	"github.com/mltutor/backend/internal/models"
)

// BM25 ranking parameters, standard values.
const (
	bm25K1 = 1.5
	bm25B  = 0.75
)

// Keyword is an in-memory BM25 index over document chunks. It is rebuilt
// from scratch on every knowledge-base build.
type Keyword struct {
	mu      sync.RWMutex
	docs    []models.Chunk
	tokens  [][]string
	df      map[string]int
	lengths []int
	avgLen  float64
}

func NewKeyword() *Keyword {
	return &Keyword{df: make(map[string]int)}
}

// Build replaces the index contents with the given corpus.
func (k *Keyword) Build(chunks []models.Chunk) {
	k.mu.Lock()
	defer k.mu.Unlock()

	k.docs = make([]models.Chunk, len(chunks))
	copy(k.docs, chunks)
	k.tokens = make([][]string, len(chunks))
	k.lengths = make([]int, len(chunks))
	k.df = make(map[string]int)

	total := 0
	for i, c := range chunks {
		toks := Tokenize(c.Content)
		k.tokens[i] = toks
		k.lengths[i] = len(toks)
		total += len(toks)

		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			if !seen[t] {
				seen[t] = true
				k.df[t]++
			}
		}
	}
	if len(chunks) > 0 {
		k.avgLen = float64(total) / float64(len(chunks))
	}
}

// Docs returns the indexed chunks, optionally filtered by source.
func (k *Keyword) Docs(source string) []models.Chunk {
	k.mu.RLock()
	defer k.mu.RUnlock()

	if source == "" {
		out := make([]models.Chunk, len(k.docs))
		copy(out, k.docs)
		return out
	}
	var out []models.Chunk
	for _, c := range k.docs {
		if c.Source == source {
			out = append(out, c)
		}
	}
	return out
}

// Len reports the number of indexed chunks.
func (k *Keyword) Len() int {
	k.mu.RLock()
	defer k.mu.RUnlock()
	return len(k.docs)
}

// Search scores every document against the query and returns the top n.
func (k *Keyword) Search(query string, n int) []models.Chunk {
	k.mu.RLock()
	defer k.mu.RUnlock()

	queryTokens := Tokenize(query)
	if len(queryTokens) == 0 || len(k.docs) == 0 {
		return nil
	}

	type scored struct {
		idx   int
		score float64
	}
	results := make([]scored, 0, len(k.docs))

	for i := range k.docs {
		tf := make(map[string]int, k.lengths[i])
		for _, t := range k.tokens[i] {
			tf[t]++
		}

		score := 0.0
		for _, qt := range queryTokens {
			f := tf[qt]
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (float64(len(k.docs))-float64(k.df[qt])+0.5)/(float64(k.df[qt])+0.5))
			norm := float64(f) * (bm25K1 + 1) /
				(float64(f) + bm25K1*(1-bm25B+bm25B*float64(k.lengths[i])/k.avgLen))
			score += idf * norm
		}
		if score > 0 {
			results = append(results, scored{idx: i, score: score})
		}
	}

	sort.SliceStable(results, func(a, b int) bool { return results[a].score > results[b].score })
	if n > len(results) {
		n = len(results)
	}

	out := make([]models.Chunk, 0, n)
	for _, r := range results[:n] {
		out = append(out, k.docs[r.idx])
	}
	return out
}

// Tokenize lowercases latin words and expands CJK runs into character
// bigrams, which is the usual sparse-retrieval tokenization for unsegmented
// Chinese text. Single CJK characters are kept as unigrams.
func Tokenize(text string) []string {
	var tokens []string
	var latin strings.Builder
	var cjk []rune

	flushLatin := func() {
		if latin.Len() > 0 {
			tokens = append(tokens, strings.ToLower(latin.String()))
			latin.Reset()
		}
	}
	flushCJK := func() {
		if len(cjk) == 1 {
			tokens = append(tokens, string(cjk[0]))
		}
		for i := 0; i+1 < len(cjk); i++ {
			tokens = append(tokens, string(cjk[i:i+2]))
		}
		cjk = cjk[:0]
	}

	for _, r := range text {
		switch {
		case unicode.Is(unicode.Han, r):
			flushLatin()
			cjk = append(cjk, r)
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			flushCJK()
			latin.WriteRune(r)
		default:
			flushLatin()
			flushCJK()
		}
	}
	flushLatin()
	flushCJK()

	return tokens
}
