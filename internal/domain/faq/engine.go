package faq

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	apperrors "github.com/yanqian/campus-faq/pkg/errors"
)

const (
	vectorTopK          = 5
	vectorFloor         = 0.2
	runnerUpLimit       = 3
	fallbackKeywords    = 5
	keywordWeight       = 0.7
	substringConfidence = 0.5
	boostKeywords       = 3
	boostWeight         = 0.2
	suggestionFloor     = 0.3

	rebuildTimeout = 30 * time.Second
)

// EntrySource is the read side of the record store consumed by rebuilds.
type EntrySource interface {
	ListEntries(ctx context.Context) ([]KnowledgeEntry, error)
}

// EngineConfig groups the static tables and tuning of an Engine.
type EngineConfig struct {
	Normalizer NormalizerConfig
	Index      IndexConfig
	Rules      Rules
	Thresholds Thresholds
}

// DefaultThresholds returns the tuned classification cut-points.
func DefaultThresholds() Thresholds {
	return Thresholds{Exact: 0.6, Similar: 0.4, Low: 0.25}
}

// Validate ensures 0 <= low <= similar <= exact <= 1.
func (t Thresholds) Validate() error {
	for _, v := range []float64{t.Exact, t.Similar, t.Low} {
		if math.IsNaN(v) || v < 0 || v > 1 {
			return fmt.Errorf("threshold %v outside [0,1]", v)
		}
	}
	if t.Low > t.Similar || t.Similar > t.Exact {
		return fmt.Errorf("thresholds must satisfy low <= similar <= exact, got %.3f/%.3f/%.3f", t.Low, t.Similar, t.Exact)
	}
	return nil
}

// classify maps a confidence onto a vector tier.
func (t Thresholds) classify(confidence float64) MatchType {
	switch {
	case confidence >= t.Exact:
		return MatchTypeExact
	case confidence >= t.Similar:
		return MatchTypeSimilar
	case confidence >= t.Low:
		return MatchTypeLow
	default:
		return MatchTypeUnknown
	}
}

// Engine matches free-text questions against the knowledge base.
//
// Readers never lock: the live snapshot and the thresholds are held behind
// atomic pointers and replaced wholesale. Writers (rebuilds and incremental
// refits) are serialized among themselves.
type Engine struct {
	normalizer *Normalizer
	rules      *ruleTable
	source     EntrySource
	indexCfg   IndexConfig
	logger     *slog.Logger

	current    atomic.Pointer[snapshot]
	thresholds atomic.Pointer[Thresholds]
	generation atomic.Uint64

	rebuilds  singleflight.Group
	requested atomic.Uint64
	writeMu   sync.Mutex
}

// NewEngine constructs an engine with an empty index. Call Rebuild to load
// the knowledge base, or let the first query do it.
func NewEngine(cfg EngineConfig, source EntrySource, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	th := cfg.Thresholds
	if th == (Thresholds{}) || th.Validate() != nil {
		th = DefaultThresholds()
	}
	e := &Engine{
		normalizer: NewNormalizer(cfg.Normalizer),
		rules:      compileRules(cfg.Rules),
		source:     source,
		indexCfg:   cfg.Index.withDefaults(),
		logger:     logger.With("component", "faq.engine"),
	}
	e.thresholds.Store(&th)
	return e
}

// Normalizer exposes the text pipeline shared with the index.
func (e *Engine) Normalizer() *Normalizer {
	return e.normalizer
}

// Thresholds returns the classification cut-points in effect.
func (e *Engine) Thresholds() Thresholds {
	return *e.thresholds.Load()
}

// SetThresholds swaps the cut-points. The next classification uses them; the
// index is untouched.
func (e *Engine) SetThresholds(t Thresholds) error {
	if err := t.Validate(); err != nil {
		return apperrors.Wrap(apperrors.CodeInvalidInput, "invalid thresholds", err)
	}
	e.thresholds.Store(&t)
	e.logger.Info("thresholds updated", "exact", t.Exact, "similar", t.Similar, "low", t.Low)
	return nil
}

// Stats describes the live snapshot.
func (e *Engine) Stats() IndexStats {
	return e.current.Load().stats()
}

// Rebuild refetches every entry from the record store and swaps in a new
// snapshot. On failure the previous snapshot keeps serving. Concurrent calls
// share a fetch only when it began after they were requested, so the returned
// snapshot always reflects writes made before the call.
func (e *Engine) Rebuild(ctx context.Context) (IndexStats, error) {
	want := e.requested.Add(1)
	for {
		v, err, _ := e.rebuilds.Do("rebuild", func() (any, error) {
			return e.fetchAndInstall(ctx)
		})
		if err != nil {
			e.logger.Error("index rebuild failed, keeping previous snapshot", "error", err)
			return e.Stats(), err
		}
		res := v.(rebuildResult)
		if res.covers >= want {
			e.logger.Info("index rebuilt", "entries", res.stats.Entries, "terms", res.stats.Terms, "generation", res.stats.Generated)
			return res.stats, nil
		}
		if err := ctx.Err(); err != nil {
			return e.Stats(), err
		}
	}
}

type rebuildResult struct {
	stats  IndexStats
	covers uint64
}

// fetchAndInstall ignores the caller's cancellation and is bounded by
// rebuildTimeout instead.
func (e *Engine) fetchAndInstall(ctx context.Context) (rebuildResult, error) {
	covers := e.requested.Load()
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), rebuildTimeout)
	defer cancel()

	var entries []KnowledgeEntry
	if e.source != nil {
		var err error
		entries, err = e.source.ListEntries(ctx)
		if err != nil {
			return rebuildResult{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to fetch knowledge entries", err)
		}
	}
	return rebuildResult{stats: e.install(entries), covers: covers}, nil
}

// AddIncremental inserts or replaces one entry and refits the model over the
// current entries without a store round trip. The outcome equals a full
// rebuild over the same entry set.
func (e *Engine) AddIncremental(entry KnowledgeEntry) (IndexStats, error) {
	if entry.ID <= 0 {
		return e.Stats(), apperrors.Wrap(apperrors.CodeInvalidInput, "entry id must be positive", nil)
	}
	if strings.TrimSpace(entry.Question) == "" {
		return e.Stats(), apperrors.Wrap(apperrors.CodeInvalidInput, "entry question cannot be empty", nil)
	}

	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	var entries []KnowledgeEntry
	if cur := e.current.Load(); cur != nil {
		entries = make([]KnowledgeEntry, 0, len(cur.entries)+1)
		for _, existing := range cur.entries {
			if existing.ID != entry.ID {
				entries = append(entries, existing)
			}
		}
	}
	entries = append(entries, entry)
	snap := buildSnapshot(entries, e.normalizer, e.indexCfg, e.generation.Add(1))
	e.current.Store(snap)
	return snap.stats(), nil
}

func (e *Engine) install(entries []KnowledgeEntry) IndexStats {
	e.writeMu.Lock()
	defer e.writeMu.Unlock()
	snap := buildSnapshot(entries, e.normalizer, e.indexCfg, e.generation.Add(1))
	e.current.Store(snap)
	return snap.stats()
}

// FindBestMatch runs the override, short-query, vector, keyword and substring
// stages in priority order. The boolean is false when nothing matched; the
// matching path never returns an error.
func (e *Engine) FindBestMatch(ctx context.Context, query string) (MatchResult, bool) {
	query = strings.TrimSpace(query)
	if query == "" {
		return MatchResult{}, false
	}
	snap := e.ensureSnapshot(ctx)
	if snap.empty() {
		return MatchResult{}, false
	}

	if hit, ok := e.rules.lookupOverride(query, snap.has); ok {
		e.logger.Debug("override matched", "pattern", hit.pattern, "entry_id", hit.entryID)
		return snap.resultFor(hit), true
	}

	tokens := e.normalizer.Tokens(query)
	if len(tokens) < 2 {
		hit, ok := e.rules.lookupShort(query, snap.has)
		if !ok {
			return MatchResult{}, false
		}
		return snap.resultFor(hit), true
	}

	return e.guard("vector", func() (MatchResult, bool) {
		return e.vectorMatch(snap, query, tokens)
	}, func() (MatchResult, bool) {
		return e.substringMatch(snap, query)
	})
}

// Suggest returns up to n alternative entries scoring above 0.3, best first.
func (e *Engine) Suggest(_ context.Context, query string, n int) []Suggestion {
	if n <= 0 || strings.TrimSpace(query) == "" {
		return nil
	}
	snap := e.current.Load()
	if snap.empty() {
		return nil
	}
	var out []Suggestion
	for _, s := range topK(snap.score(e.normalizer.Tokens(query)), n) {
		confidence := round3(s.similarity)
		if confidence <= suggestionFloor {
			continue
		}
		out = append(out, Suggestion{
			EntryID:    snap.entries[s.row].ID,
			Question:   snap.entries[s.row].Question,
			Confidence: confidence,
		})
	}
	return out
}

func (e *Engine) ensureSnapshot(ctx context.Context) *snapshot {
	snap := e.current.Load()
	if !snap.empty() {
		return snap
	}
	e.logger.Warn("index empty, attempting rebuild")
	if _, err := e.Rebuild(ctx); err != nil {
		return snap
	}
	return e.current.Load()
}

func (e *Engine) vectorMatch(snap *snapshot, query string, tokens []string) (MatchResult, bool) {
	top := topK(snap.score(tokens), vectorTopK)
	if len(top) == 0 || top[0].similarity < vectorFloor {
		if res, ok := e.keywordMatch(snap, query); ok {
			return res, true
		}
		return e.substringMatch(snap, query)
	}

	th := e.Thresholds()
	best := top[0]
	entry := snap.entries[best.row]
	confidence := best.similarity
	matchType := th.classify(confidence)

	var suggestions []Suggestion
	for _, s := range top[1:min(len(top), runnerUpLimit+1)] {
		if s.similarity <= vectorFloor {
			continue
		}
		suggestions = append(suggestions, Suggestion{
			EntryID:    snap.entries[s.row].ID,
			Question:   snap.entries[s.row].Question,
			Confidence: round3(s.similarity),
		})
	}

	if keywords := e.normalizer.ExtractKeywords(query, boostKeywords); len(keywords) > 0 {
		question := strings.ToLower(entry.Question)
		hits := 0
		for _, kw := range keywords {
			if strings.Contains(question, kw) {
				hits++
			}
		}
		if hits > 0 {
			confidence = math.Min(confidence+float64(hits)/float64(len(keywords))*boostWeight, 1)
			matchType = th.classify(confidence)
		}
	}

	return MatchResult{
		EntryID:     entry.ID,
		Entry:       entry,
		Confidence:  round3(confidence),
		MatchType:   matchType,
		MatchedBy:   MatchedByVector,
		Suggestions: suggestions,
	}, true
}

// keywordMatch picks the entry whose normalized question text contains the
// largest share of the query keywords. Containment is by substring, so
// "cheap" counts against "cheapest".
func (e *Engine) keywordMatch(snap *snapshot, query string) (MatchResult, bool) {
	keywords := e.normalizer.ExtractKeywords(query, fallbackKeywords)
	if len(keywords) == 0 {
		return MatchResult{}, false
	}
	bestRow, bestRatio := -1, 0.0
	for row, text := range snap.normalized {
		matches := 0
		for _, kw := range keywords {
			if strings.Contains(text, kw) {
				matches++
			}
		}
		if ratio := float64(matches) / float64(len(keywords)); ratio > bestRatio {
			bestRow, bestRatio = row, ratio
		}
	}
	if bestRow < 0 {
		return MatchResult{}, false
	}
	entry := snap.entries[bestRow]
	return MatchResult{
		EntryID:    entry.ID,
		Entry:      entry,
		Confidence: round3(bestRatio * keywordWeight),
		MatchType:  MatchTypeKeyword,
		MatchedBy:  MatchedByKeyword,
	}, true
}

// substringMatch is the last resort: case-insensitive containment either way.
func (e *Engine) substringMatch(snap *snapshot, query string) (MatchResult, bool) {
	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return MatchResult{}, false
	}
	for _, entry := range snap.entries {
		question := strings.ToLower(strings.TrimSpace(entry.Question))
		if question == "" {
			continue
		}
		if strings.Contains(question, needle) || strings.Contains(needle, question) {
			return MatchResult{
				EntryID:    entry.ID,
				Entry:      entry,
				Confidence: substringConfidence,
				MatchType:  MatchTypeSubstring,
				MatchedBy:  MatchedBySubstring,
			}, true
		}
	}
	return MatchResult{}, false
}

// guard runs stage and degrades to fallback if it panics.
func (e *Engine) guard(name string, stage, fallback func() (MatchResult, bool)) (res MatchResult, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("match stage failed, degrading", "stage", name, "panic", r)
			res, ok = fallback()
		}
	}()
	return stage()
}

func (s *snapshot) resultFor(hit ruleHit) MatchResult {
	entry, _ := s.entry(hit.entryID)
	return MatchResult{
		EntryID:    hit.entryID,
		Entry:      entry,
		Confidence: round3(hit.confidence),
		MatchType:  hit.matchType,
		MatchedBy:  hit.matchedBy,
	}
}

func (s *snapshot) stats() IndexStats {
	if s == nil {
		return IndexStats{}
	}
	return IndexStats{
		Entries:   len(s.entries),
		Terms:     len(s.vocabulary),
		BuiltAt:   s.builtAt,
		Generated: s.generation,
	}
}
