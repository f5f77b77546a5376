package quiz

import (
	"math"
	"math/rand"
	"sort"
	"strconv"

	"github.com/rs/zerolog/log"

	"github.com/mltutor/backend/internal/index"
	"github.com/mltutor/backend/internal/models"
)

// Term-frequency vectorizer bounds, matching the usual text-clustering
// defaults: cap the vocabulary, drop terms seen in fewer than two chunks or
// in more than 80% of them.
const (
	samplerMaxVocab = 500
	samplerMinDF    = 2
	samplerMaxDF    = 0.8

	kmeansMaxIter = 20
)

// Sampler picks a topically diverse subset of chunks for quiz generation.
// Chunks are clustered by term-frequency k-means and the sample is stratified
// across clusters, so a quiz covers the document's themes instead of whatever
// pages a uniform draw happens to hit.
type Sampler struct {
	maxClusters int
	rng         *rand.Rand
}

func NewSampler(maxClusters int, seed int64) *Sampler {
	if maxClusters <= 0 {
		maxClusters = 5
	}
	return &Sampler{
		maxClusters: maxClusters,
		rng:         rand.New(rand.NewSource(seed)),
	}
}

// Sample returns up to n chunks. Corpora no larger than n come back whole.
// Clustering failures fall back to round-robin grouping, never to an error.
func (s *Sampler) Sample(chunks []models.Chunk, n int) []models.Chunk {
	if n <= 0 {
		return nil
	}
	if len(chunks) <= n {
		return chunks
	}

	k := n
	if half := len(chunks) / 2; half < k {
		k = half
	}
	if k > s.maxClusters {
		k = s.maxClusters
	}
	if k < 1 {
		k = 1
	}

	clusters := s.cluster(chunks, k)
	if clusters == nil {
		log.Warn().Int("chunks", len(chunks)).Msg("clustering failed, falling back to round-robin grouping")
		clusters = roundRobinGroups(chunks, k)
	}

	sampled := s.stratify(clusters, n)

	// Clusters smaller than their quota leave the sample short; top up from
	// the rest of the corpus.
	if len(sampled) < n {
		taken := make(map[string]bool, len(sampled))
		for _, c := range sampled {
			taken[sampleKey(c)] = true
		}
		for _, c := range chunks {
			if len(sampled) >= n {
				break
			}
			if key := sampleKey(c); !taken[key] {
				taken[key] = true
				sampled = append(sampled, c)
			}
		}
	}

	s.rng.Shuffle(len(sampled), func(i, j int) {
		sampled[i], sampled[j] = sampled[j], sampled[i]
	})
	if len(sampled) > n {
		sampled = sampled[:n]
	}

	log.Debug().Int("clusters", len(clusters)).Int("sampled", len(sampled)).Msg("stratified chunk sample")
	return sampled
}

// cluster runs k-means over term-frequency vectors. Returns nil when the
// corpus cannot be vectorized (vocabulary empty after frequency pruning).
func (s *Sampler) cluster(chunks []models.Chunk, k int) [][]models.Chunk {
	if len(chunks) < k {
		groups := make([][]models.Chunk, len(chunks))
		for i, c := range chunks {
			groups[i] = []models.Chunk{c}
		}
		return groups
	}

	vectors, dims := s.vectorize(chunks)
	if dims == 0 {
		return nil
	}

	labels := s.kmeans(vectors, dims, k)

	groups := make([][]models.Chunk, k)
	for i, label := range labels {
		groups[label] = append(groups[label], chunks[i])
	}

	var nonEmpty [][]models.Chunk
	for _, g := range groups {
		if len(g) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	return nonEmpty
}

// vectorize builds sparse term-frequency vectors over a pruned vocabulary.
func (s *Sampler) vectorize(chunks []models.Chunk) ([]map[int]float64, int) {
	docTokens := make([][]string, len(chunks))
	df := make(map[string]int)
	totalTF := make(map[string]int)

	for i, c := range chunks {
		toks := index.Tokenize(c.Content)
		docTokens[i] = toks

		seen := make(map[string]bool, len(toks))
		for _, t := range toks {
			totalTF[t]++
			if !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}

	maxDF := int(samplerMaxDF * float64(len(chunks)))
	var kept []string
	for term, d := range df {
		if d >= samplerMinDF && d <= maxDF {
			kept = append(kept, term)
		}
	}
	if len(kept) == 0 {
		return nil, 0
	}

	// Keep the most frequent terms when over the vocabulary cap.
	if len(kept) > samplerMaxVocab {
		sortByFreq(kept, totalTF)
		kept = kept[:samplerMaxVocab]
	}

	vocab := make(map[string]int, len(kept))
	for i, term := range kept {
		vocab[term] = i
	}

	vectors := make([]map[int]float64, len(chunks))
	for i, toks := range docTokens {
		vec := make(map[int]float64)
		for _, t := range toks {
			if idx, ok := vocab[t]; ok {
				vec[idx]++
			}
		}
		// L2 normalize so long chunks do not dominate the distance metric.
		var norm float64
		for _, v := range vec {
			norm += v * v
		}
		if norm > 0 {
			norm = math.Sqrt(norm)
			for idx := range vec {
				vec[idx] /= norm
			}
		}
		vectors[i] = vec
	}
	return vectors, len(vocab)
}

// kmeans is plain Lloyd's algorithm with random centroid seeding.
func (s *Sampler) kmeans(vectors []map[int]float64, dims, k int) []int {
	centroids := make([][]float64, k)
	for i, pick := range s.rng.Perm(len(vectors))[:k] {
		centroids[i] = densify(vectors[pick], dims)
	}

	labels := make([]int, len(vectors))
	for iter := 0; iter < kmeansMaxIter; iter++ {
		changed := false
		for i, vec := range vectors {
			best, bestDist := 0, math.Inf(1)
			for c, centroid := range centroids {
				if d := sqDist(vec, centroid); d < bestDist {
					best, bestDist = c, d
				}
			}
			if labels[i] != best {
				labels[i] = best
				changed = true
			}
		}
		if !changed && iter > 0 {
			break
		}

		sums := make([][]float64, k)
		counts := make([]int, k)
		for i := range sums {
			sums[i] = make([]float64, dims)
		}
		for i, vec := range vectors {
			counts[labels[i]]++
			for idx, v := range vec {
				sums[labels[i]][idx] += v
			}
		}
		for c := range centroids {
			if counts[c] == 0 {
				continue
			}
			for idx := range sums[c] {
				sums[c][idx] /= float64(counts[c])
			}
			centroids[c] = sums[c]
		}
	}
	return labels
}

// stratify allocates base = n/k samples per cluster, handing the remainder
// to the first clusters in order. Clusters smaller than their quota
// contribute everything they have.
func (s *Sampler) stratify(clusters [][]models.Chunk, n int) []models.Chunk {
	if len(clusters) == 0 {
		return nil
	}

	base := n / len(clusters)
	remainder := n % len(clusters)

	var sampled []models.Chunk
	for i, docs := range clusters {
		quota := base
		if i < remainder {
			quota++
		}
		if len(docs) <= quota {
			sampled = append(sampled, docs...)
			continue
		}
		for _, pick := range s.rng.Perm(len(docs))[:quota] {
			sampled = append(sampled, docs[pick])
		}
	}
	return sampled
}

func sampleKey(c models.Chunk) string {
	return c.Source + "|" + strconv.Itoa(c.Page) + "|" + c.Content
}

func roundRobinGroups(chunks []models.Chunk, k int) [][]models.Chunk {
	groups := make([][]models.Chunk, k)
	for i, c := range chunks {
		groups[i%k] = append(groups[i%k], c)
	}
	var nonEmpty [][]models.Chunk
	for _, g := range groups {
		if len(g) > 0 {
			nonEmpty = append(nonEmpty, g)
		}
	}
	return nonEmpty
}

func densify(vec map[int]float64, dims int) []float64 {
	out := make([]float64, dims)
	for idx, v := range vec {
		out[idx] = v
	}
	return out
}

func sqDist(vec map[int]float64, centroid []float64) float64 {
	var d float64
	for idx, c := range centroid {
		v := vec[idx]
		d += (v - c) * (v - c)
	}
	return d
}

func sortByFreq(terms []string, freq map[string]int) {
	// Frequency desc, then lexicographic for determinism.
	sort.Slice(terms, func(a, b int) bool {
		if freq[terms[a]] != freq[terms[b]] {
			return freq[terms[a]] > freq[terms[b]]
		}
		return terms[a] < terms[b]
	})
}
