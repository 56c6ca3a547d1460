package faq

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/campus-faq/pkg/errors"
)

type stubSource struct {
	mu      sync.Mutex
	entries []KnowledgeEntry
	err     error
	calls   atomic.Int32
}

func (s *stubSource) ListEntries(context.Context) ([]KnowledgeEntry, error) {
	s.calls.Add(1)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	out := make([]KnowledgeEntry, len(s.entries))
	copy(out, s.entries)
	return out, nil
}

func (s *stubSource) set(entries []KnowledgeEntry, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = entries
	s.err = err
}

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newTestEngine(t *testing.T, rules Rules, entries []KnowledgeEntry) (*Engine, *stubSource) {
	t.Helper()
	source := &stubSource{entries: entries}
	engine := NewEngine(EngineConfig{Rules: rules, Thresholds: DefaultThresholds()}, source, newTestLogger())
	_, err := engine.Rebuild(context.Background())
	require.NoError(t, err)
	return engine, source
}

var campusShortRules = Rules{ShortQuery: []ShortQueryRule{
	{Keyword: "campus", EntryID: 1},
	{Keyword: "fees", EntryID: 2},
	{Keyword: "fee", EntryID: 2},
}}

func TestFindBestMatchCampusCorpus(t *testing.T) {
	engine, _ := newTestEngine(t, campusShortRules, campusEntries())
	ctx := context.Background()
	th := engine.Thresholds()

	res, ok := engine.FindBestMatch(ctx, "where is the campus")
	require.True(t, ok)
	require.Equal(t, int64(1), res.EntryID)
	require.GreaterOrEqual(t, res.Confidence, th.Similar)

	res, ok = engine.FindBestMatch(ctx, "where is the campus located")
	require.True(t, ok)
	require.Equal(t, int64(1), res.EntryID)
	require.Equal(t, MatchTypeExact, res.MatchType)
	require.Equal(t, MatchedByVector, res.MatchedBy)

	res, ok = engine.FindBestMatch(ctx, "fees")
	require.True(t, ok)
	require.Equal(t, int64(2), res.EntryID)
	require.Equal(t, MatchTypeKeywordShort, res.MatchType)
	require.Equal(t, MatchedByShort, res.MatchedBy)
	require.Equal(t, 0.85, res.Confidence)

	res, ok = engine.FindBestMatch(ctx, "completely unrelated gibberish xyz")
	if ok {
		require.Equal(t, MatchTypeUnknown, res.MatchType)
	}
}

func TestFindBestMatchShortQueryMiss(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, campusEntries())
	_, ok := engine.FindBestMatch(context.Background(), "campus")
	require.False(t, ok)
}

func TestOverrideBeatsVector(t *testing.T) {
	rules := Rules{Overrides: []OverrideRule{{Pattern: "campus", EntryID: 2}}}
	engine, _ := newTestEngine(t, rules, campusEntries())

	for _, q := range []string{"where is the campus located", "Campus located?", "is the campus far"} {
		res, ok := engine.FindBestMatch(context.Background(), q)
		require.True(t, ok, q)
		require.Equal(t, int64(2), res.EntryID, q)
		require.Equal(t, MatchTypeOverrideExact, res.MatchType, q)
		require.Equal(t, 0.95, res.Confidence, q)
	}
}

func TestFindBestMatchEmptyKnowledgeBase(t *testing.T) {
	engine, source := newTestEngine(t, campusShortRules, nil)
	for _, q := range []string{"", "   ", "fees", "where is the campus located", "!!!"} {
		_, ok := engine.FindBestMatch(context.Background(), q)
		require.False(t, ok, q)
	}
	require.Greater(t, source.calls.Load(), int32(1), "empty index should trigger a rebuild attempt")
}

func TestFindBestMatchBuildsOnFirstQuery(t *testing.T) {
	source := &stubSource{entries: campusEntries()}
	engine := NewEngine(EngineConfig{}, source, newTestLogger())
	require.Zero(t, engine.Stats().Entries)

	res, ok := engine.FindBestMatch(context.Background(), "where is the campus located")
	require.True(t, ok)
	require.Equal(t, int64(1), res.EntryID)
	require.Equal(t, 2, engine.Stats().Entries)
}

func TestThresholdChangeReclassifies(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, []KnowledgeEntry{
		{ID: 7, Question: "Which lodge is safest?", Answer: "Hall B.", Category: "Accommodation"},
	})
	ctx := context.Background()

	res, ok := engine.FindBestMatch(ctx, "security hostel")
	require.True(t, ok)
	require.Equal(t, MatchTypeExact, res.MatchType)
	require.InDelta(t, 0.816, res.Confidence, 0.001)
	before := engine.Stats()

	next := engine.Thresholds()
	next.Exact = 0.9
	require.NoError(t, engine.SetThresholds(next))

	res, ok = engine.FindBestMatch(ctx, "security hostel")
	require.True(t, ok)
	require.Equal(t, MatchTypeSimilar, res.MatchType)
	require.Equal(t, before, engine.Stats(), "threshold change must not rebuild")
}

func TestSetThresholdsRejectsInvalid(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, nil)
	cases := []Thresholds{
		{Exact: 0.5, Similar: 0.6, Low: 0.1},
		{Exact: 1.2, Similar: 0.6, Low: 0.1},
		{Exact: 0.6, Similar: 0.4, Low: -0.1},
	}
	for _, th := range cases {
		err := engine.SetThresholds(th)
		require.Error(t, err)
		require.True(t, apperrors.IsCode(err, "invalid_input"))
	}
	require.Equal(t, DefaultThresholds(), engine.Thresholds())
}

func TestConfidenceIsMonotonicInSimilarity(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, []KnowledgeEntry{
		{ID: 7, Question: "Which lodge is safest?"},
	})
	ctx := context.Background()
	high, ok := engine.FindBestMatch(ctx, "hostel security")
	require.True(t, ok)
	low, ok := engine.FindBestMatch(ctx, "security hostel")
	require.True(t, ok)
	require.Greater(t, high.Confidence, low.Confidence)
	require.GreaterOrEqual(t, high.MatchType.rank(), low.MatchType.rank())

	th := DefaultThresholds()
	prev := MatchTypeUnknown
	for c := 0.0; c <= 1.0; c += 0.01 {
		tier := th.classify(c)
		require.GreaterOrEqual(t, tier.rank(), prev.rank(), "confidence %.2f", c)
		prev = tier
	}
}

func TestKeywordFallback(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, []KnowledgeEntry{
		{ID: 1, Question: "campus library hours"},
		{ID: 2, Question: "campus hostel rules"},
		{ID: 3, Question: "campus transport routes"},
	})
	res, ok := engine.FindBestMatch(context.Background(), "campus tour guide")
	require.True(t, ok)
	require.Equal(t, MatchTypeKeyword, res.MatchType)
	require.Equal(t, MatchedByKeyword, res.MatchedBy)
	require.Equal(t, int64(1), res.EntryID)
	require.Equal(t, 0.233, res.Confidence)
}

func TestKeywordFallbackMatchesInsideWords(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, []KnowledgeEntry{
		{ID: 1, Question: "Which area has the cheapest lodges?"},
		{ID: 2, Question: "How much are the school fees?"},
	})
	res, ok := engine.FindBestMatch(context.Background(), "cheap housing nearby")
	require.True(t, ok)
	require.Equal(t, int64(1), res.EntryID)
	require.Equal(t, MatchTypeKeyword, res.MatchType)
	require.Equal(t, 0.233, res.Confidence)
}

func TestSubstringFallback(t *testing.T) {
	n := NewNormalizer(NormalizerConfig{})
	snap := buildSnapshot([]KnowledgeEntry{{ID: 4, Question: "Is there WiFi?"}}, n, DefaultIndexConfig(), 1)
	engine := NewEngine(EngineConfig{}, nil, newTestLogger())

	res, ok := engine.substringMatch(snap, "is there wifi? asking for a friend")
	require.True(t, ok)
	require.Equal(t, int64(4), res.EntryID)
	require.Equal(t, MatchTypeSubstring, res.MatchType)
	require.Equal(t, 0.5, res.Confidence)

	_, ok = engine.substringMatch(snap, "bus routes")
	require.False(t, ok)
}

func TestGuardDegradesOnPanic(t *testing.T) {
	engine := NewEngine(EngineConfig{}, nil, newTestLogger())
	res, ok := engine.guard("vector", func() (MatchResult, bool) {
		panic("boom")
	}, func() (MatchResult, bool) {
		return MatchResult{EntryID: 3, MatchType: MatchTypeSubstring}, true
	})
	require.True(t, ok)
	require.Equal(t, int64(3), res.EntryID)
}

func TestVectorRunnerUps(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, []KnowledgeEntry{
		{ID: 1, Question: "hostel fees payment"},
		{ID: 2, Question: "hostel allocation"},
		{ID: 3, Question: "library hours"},
		{ID: 4, Question: "transport routes"},
	})
	res, ok := engine.FindBestMatch(context.Background(), "hostel fees")
	require.True(t, ok)
	require.Equal(t, int64(1), res.EntryID)
	require.NotEmpty(t, res.Suggestions)
	for _, s := range res.Suggestions {
		require.NotEqual(t, int64(1), s.EntryID)
		require.Greater(t, s.Confidence, 0.2)
	}
	require.LessOrEqual(t, len(res.Suggestions), 3)
}

func TestSuggestBounds(t *testing.T) {
	engine, _ := newTestEngine(t, Rules{}, []KnowledgeEntry{
		{ID: 1, Question: "hostel fees payment"},
		{ID: 2, Question: "hostel allocation"},
		{ID: 3, Question: "hostel rules"},
		{ID: 4, Question: "library hours"},
		{ID: 5, Question: "library rules"},
		{ID: 6, Question: "transport routes"},
	})
	ctx := context.Background()
	got := engine.Suggest(ctx, "hostel", 3)
	require.Len(t, got, 3)
	require.LessOrEqual(t, len(engine.Suggest(ctx, "hostel", 2)), 2)
	for i, s := range got {
		require.Greater(t, s.Confidence, 0.3)
		if i > 0 {
			require.GreaterOrEqual(t, got[i-1].Confidence, s.Confidence)
		}
	}
	require.Empty(t, engine.Suggest(ctx, "completely unrelated gibberish", 3))
	require.Empty(t, engine.Suggest(ctx, "hostel", 0))
	require.Empty(t, engine.Suggest(ctx, "  ", 3))
}

func TestRebuildFailureKeepsSnapshot(t *testing.T) {
	engine, source := newTestEngine(t, Rules{}, campusEntries())
	before := engine.Stats()

	source.set(nil, errors.New("connection refused"))
	stats, err := engine.Rebuild(context.Background())
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "store_unavailable"))
	require.Equal(t, before, stats)

	res, ok := engine.FindBestMatch(context.Background(), "where is the campus located")
	require.True(t, ok)
	require.Equal(t, int64(1), res.EntryID)
}

func TestAddIncrementalMatchesRebuild(t *testing.T) {
	all := []KnowledgeEntry{
		{ID: 1, Question: "Where is the campus located?"},
		{ID: 2, Question: "How much are the school fees?"},
		{ID: 3, Question: "When does the library open?"},
	}
	full, _ := newTestEngine(t, Rules{}, all)
	incremental, _ := newTestEngine(t, Rules{}, all[:2])
	_, err := incremental.AddIncremental(all[2])
	require.NoError(t, err)

	a, b := full.current.Load(), incremental.current.Load()
	require.Equal(t, a.vocabulary, b.vocabulary)
	require.Equal(t, a.idf, b.idf)
	require.Equal(t, a.vectors, b.vectors)

	for _, q := range []string{"library opening hours", "campus location", "school fees amount"} {
		ra, oka := full.FindBestMatch(context.Background(), q)
		rb, okb := incremental.FindBestMatch(context.Background(), q)
		require.Equal(t, oka, okb, q)
		require.Equal(t, ra, rb, q)
	}

	_, err = incremental.AddIncremental(KnowledgeEntry{ID: 3, Question: "Is the library open on weekends?"})
	require.NoError(t, err)
	require.Equal(t, 3, incremental.Stats().Entries)

	_, err = incremental.AddIncremental(KnowledgeEntry{ID: 0, Question: "x"})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestRebuildIsAtomicUnderConcurrency(t *testing.T) {
	setA := []KnowledgeEntry{
		{ID: 1, Question: "Where is the campus located?", Answer: "a1"},
		{ID: 2, Question: "How much are the school fees?", Answer: "a2"},
	}
	setB := []KnowledgeEntry{
		{ID: 3, Question: "Where is the campus located exactly?", Answer: "b3"},
		{ID: 4, Question: "How much are school fees this session?", Answer: "b4"},
		{ID: 5, Question: "Is the library open?", Answer: "b5"},
	}
	valid := map[int64]string{1: "a1", 2: "a2", 3: "b3", 4: "b4", 5: "b5"}

	engine, source := newTestEngine(t, Rules{}, setA)
	ctx := context.Background()

	var (
		wg   sync.WaitGroup
		stop atomic.Bool
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 50; i++ {
			if i%2 == 0 {
				source.set(setB, nil)
			} else {
				source.set(setA, nil)
			}
			_, _ = engine.Rebuild(ctx)
		}
		stop.Store(true)
	}()

	errs := make(chan string, 64)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for !stop.Load() {
				for _, q := range []string{"where is the campus located", "how much are the school fees", "library open"} {
					res, ok := engine.FindBestMatch(ctx, q)
					if !ok {
						continue
					}
					answer, known := valid[res.EntryID]
					if !known || res.Entry.ID != res.EntryID || res.Entry.Answer != answer {
						select {
						case errs <- q:
						default:
						}
					}
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for q := range errs {
		t.Fatalf("inconsistent result for %q", q)
	}
}

// gatedSource parks the first ListEntries call after it has read the store
// until release is closed.
type gatedSource struct {
	mu      sync.Mutex
	entries []KnowledgeEntry
	calls   atomic.Int32
	entered chan struct{}
	release chan struct{}
}

func (s *gatedSource) ListEntries(ctx context.Context) ([]KnowledgeEntry, error) {
	s.mu.Lock()
	out := append([]KnowledgeEntry(nil), s.entries...)
	s.mu.Unlock()
	if s.calls.Add(1) == 1 {
		close(s.entered)
		select {
		case <-s.release:
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	return out, nil
}

func (s *gatedSource) add(entry KnowledgeEntry) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries = append(s.entries, entry)
}

func TestRebuildAfterWriteSeesWrite(t *testing.T) {
	source := &gatedSource{
		entries: []KnowledgeEntry{{ID: 1, Question: "Where is the campus located?", Answer: "Ogbomoso."}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(EngineConfig{Thresholds: DefaultThresholds()}, source, newTestLogger())

	first := make(chan IndexStats, 1)
	go func() {
		stats, _ := engine.Rebuild(context.Background())
		first <- stats
	}()
	<-source.entered

	source.add(KnowledgeEntry{ID: 2, Question: "hostel fees payment", Answer: "Pay at the bursary."})
	second := make(chan IndexStats, 1)
	go func() {
		stats, _ := engine.Rebuild(context.Background())
		second <- stats
	}()
	time.Sleep(20 * time.Millisecond)
	close(source.release)

	require.Equal(t, 1, (<-first).Entries)
	require.Equal(t, 2, (<-second).Entries)
	res, ok := engine.FindBestMatch(context.Background(), "hostel fees payment")
	require.True(t, ok)
	require.Equal(t, int64(2), res.EntryID)
}

func TestRebuildSurvivesJoinedCallerCancellation(t *testing.T) {
	source := &gatedSource{
		entries: []KnowledgeEntry{{ID: 1, Question: "Where is the campus located?"}},
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
	engine := NewEngine(EngineConfig{}, source, newTestLogger())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := engine.Rebuild(ctx)
		done <- err
	}()
	<-source.entered
	cancel()

	other := make(chan error, 1)
	go func() {
		_, err := engine.Rebuild(context.Background())
		other <- err
	}()
	time.Sleep(20 * time.Millisecond)
	close(source.release)

	require.NoError(t, <-other)
	require.NoError(t, <-done)
	require.Equal(t, 1, engine.Stats().Entries)
}
