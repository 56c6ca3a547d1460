package faq

import (
	"math"
	"sort"
	"strings"
	"time"
)

// IndexConfig tunes the term-weighting model.
type IndexConfig struct {
	// MaxFeatures caps the vocabulary by corpus term frequency.
	MaxFeatures int
	// MaxDocFreq drops terms present in more than this share of documents.
	MaxDocFreq float64
	// MaxNGram is the longest word n-gram indexed (1 = unigrams only).
	MaxNGram int
}

// DefaultIndexConfig mirrors the tuned vectorizer settings of the service.
func DefaultIndexConfig() IndexConfig {
	return IndexConfig{MaxFeatures: 2000, MaxDocFreq: 0.7, MaxNGram: 2}
}

func (c IndexConfig) withDefaults() IndexConfig {
	def := DefaultIndexConfig()
	if c.MaxFeatures <= 0 {
		c.MaxFeatures = def.MaxFeatures
	}
	if c.MaxDocFreq <= 0 || c.MaxDocFreq > 1 {
		c.MaxDocFreq = def.MaxDocFreq
	}
	if c.MaxNGram <= 0 {
		c.MaxNGram = def.MaxNGram
	}
	return c
}

// sparseVector is an L2-normalized row keyed by vocabulary column.
type sparseVector map[int]float64

// scored pairs a snapshot row with its cosine similarity.
type scored struct {
	row        int
	similarity float64
}

// snapshot is an immutable index generation. Row i of vectors belongs to
// entries[i]; nothing in a snapshot is mutated after build.
type snapshot struct {
	entries    []KnowledgeEntry
	normalized []string
	byID       map[int64]int
	vocabulary map[string]int
	idf        []float64
	vectors    []sparseVector
	cfg        IndexConfig
	builtAt    time.Time
	generation uint64
}

// buildSnapshot fits a fresh model over entries. The entries are ordered by
// id so a full rebuild and an incremental refit of the same set agree.
func buildSnapshot(entries []KnowledgeEntry, normalizer *Normalizer, cfg IndexConfig, generation uint64) *snapshot {
	cfg = cfg.withDefaults()

	ordered := make([]KnowledgeEntry, len(entries))
	copy(ordered, entries)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].ID < ordered[j].ID })

	snap := &snapshot{
		entries:    ordered,
		normalized: make([]string, len(ordered)),
		byID:       make(map[int64]int, len(ordered)),
		vocabulary: map[string]int{},
		cfg:        cfg,
		builtAt:    time.Now().UTC(),
		generation: generation,
	}

	docs := make([]map[string]int, len(ordered))
	docFreq := map[string]int{}
	corpusFreq := map[string]int{}
	for i, entry := range ordered {
		snap.byID[entry.ID] = i
		tokens := normalizer.Tokens(entry.Question)
		snap.normalized[i] = strings.Join(tokens, " ")

		counts := termCounts(tokens, cfg.MaxNGram)
		docs[i] = counts
		for term, c := range counts {
			docFreq[term]++
			corpusFreq[term] += c
		}
	}
	if len(ordered) == 0 {
		return snap
	}

	maxDocs := cfg.MaxDocFreq * float64(len(ordered))
	if maxDocs < 1 {
		maxDocs = 1
	}
	terms := make([]string, 0, len(docFreq))
	for term, df := range docFreq {
		if float64(df) <= maxDocs {
			terms = append(terms, term)
		}
	}
	sort.Strings(terms)
	if len(terms) > cfg.MaxFeatures {
		sort.SliceStable(terms, func(i, j int) bool {
			return corpusFreq[terms[i]] > corpusFreq[terms[j]]
		})
		terms = terms[:cfg.MaxFeatures]
		sort.Strings(terms)
	}

	n := float64(len(ordered))
	snap.idf = make([]float64, len(terms))
	for col, term := range terms {
		snap.vocabulary[term] = col
		snap.idf[col] = math.Log((1+n)/(1+float64(docFreq[term]))) + 1
	}

	snap.vectors = make([]sparseVector, len(ordered))
	for i, counts := range docs {
		snap.vectors[i] = snap.weigh(counts)
	}
	return snap
}

// empty reports whether the snapshot can score anything.
func (s *snapshot) empty() bool {
	return s == nil || len(s.entries) == 0
}

func (s *snapshot) has(id int64) bool {
	if s == nil {
		return false
	}
	_, ok := s.byID[id]
	return ok
}

func (s *snapshot) entry(id int64) (KnowledgeEntry, bool) {
	if s == nil {
		return KnowledgeEntry{}, false
	}
	row, ok := s.byID[id]
	if !ok {
		return KnowledgeEntry{}, false
	}
	return s.entries[row], true
}

// weigh projects term counts onto the vocabulary using sublinear tf and idf,
// then L2-normalizes. Out-of-vocabulary terms contribute nothing.
func (s *snapshot) weigh(counts map[string]int) sparseVector {
	vec := sparseVector{}
	var norm float64
	for term, c := range counts {
		col, ok := s.vocabulary[term]
		if !ok || c <= 0 {
			continue
		}
		w := (1 + math.Log(float64(c))) * s.idf[col]
		vec[col] = w
		norm += w * w
	}
	if norm == 0 {
		return nil
	}
	norm = math.Sqrt(norm)
	for col := range vec {
		vec[col] /= norm
	}
	return vec
}

// score returns the cosine similarity of normalized query tokens against every
// row, in row order. A nil result means there is nothing to compare against.
func (s *snapshot) score(tokens []string) []scored {
	if s.empty() || len(s.vocabulary) == 0 || len(tokens) == 0 {
		return nil
	}
	query := s.weigh(termCounts(tokens, s.cfg.MaxNGram))
	if len(query) == 0 {
		return nil
	}
	out := make([]scored, len(s.vectors))
	for row, vec := range s.vectors {
		out[row] = scored{row: row, similarity: clampUnit(dotSparse(query, vec))}
	}
	return out
}

// topK orders scores by descending similarity, keeping row order on ties.
func topK(scores []scored, k int) []scored {
	ranked := make([]scored, len(scores))
	copy(ranked, scores)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].similarity > ranked[j].similarity
	})
	if k >= 0 && len(ranked) > k {
		ranked = ranked[:k]
	}
	return ranked
}

func termCounts(tokens []string, maxN int) map[string]int {
	counts := make(map[string]int, len(tokens)*maxN)
	for n := 1; n <= maxN; n++ {
		for i := 0; i+n <= len(tokens); i++ {
			counts[strings.Join(tokens[i:i+n], " ")]++
		}
	}
	return counts
}

func dotSparse(a, b sparseVector) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for col, w := range a {
		sum += w * b[col]
	}
	return sum
}

func clampUnit(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}

func round3(v float64) float64 {
	return math.Round(v*1000) / 1000
}
