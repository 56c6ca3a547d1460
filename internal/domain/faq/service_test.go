package faq

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/campus-faq/pkg/errors"
)

type fakeRepo struct {
	mu      sync.Mutex
	entries map[int64]KnowledgeEntry
	nextID  int64
}

func newFakeRepo(entries ...KnowledgeEntry) *fakeRepo {
	r := &fakeRepo{entries: map[int64]KnowledgeEntry{}}
	for _, e := range entries {
		r.entries[e.ID] = e
		if e.ID > r.nextID {
			r.nextID = e.ID
		}
	}
	return r
}

func (r *fakeRepo) ListEntries(context.Context) ([]KnowledgeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]KnowledgeEntry, 0, len(r.entries))
	for _, e := range r.entries {
		out = append(out, e)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (r *fakeRepo) GetEntry(_ context.Context, id int64) (KnowledgeEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.entries[id]
	return e, ok, nil
}

func (r *fakeRepo) CreateEntry(_ context.Context, in EntryInput) (KnowledgeEntry, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.nextID++
	e := KnowledgeEntry{ID: r.nextID, Question: in.Question, Answer: in.Answer, Category: in.Category}
	r.entries[e.ID] = e
	return e, nil
}

func (r *fakeRepo) UpdateEntry(_ context.Context, id int64, in EntryInput) (KnowledgeEntry, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return KnowledgeEntry{}, false, nil
	}
	e := KnowledgeEntry{ID: id, Question: in.Question, Answer: in.Answer, Category: in.Category}
	r.entries[id] = e
	return e, true, nil
}

func (r *fakeRepo) DeleteEntry(_ context.Context, id int64) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.entries[id]; !ok {
		return false, nil
	}
	delete(r.entries, id)
	return true, nil
}

type fakeStore struct {
	mu       sync.Mutex
	unknown  []UnknownQuestion
	counts   map[string]int64
	answered map[int64]bool
}

func newFakeStore() *fakeStore {
	return &fakeStore{counts: map[string]int64{}, answered: map[int64]bool{}}
}

func (s *fakeStore) RecordUnknown(_ context.Context, q UnknownQuestion) (UnknownQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	q.ID = int64(len(s.unknown) + 1)
	s.unknown = append(s.unknown, q)
	return q, nil
}

func (s *fakeStore) GetUnknown(_ context.Context, id int64) (UnknownQuestion, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, q := range s.unknown {
		if q.ID == id {
			q.Answered = s.answered[id]
			return q, true, nil
		}
	}
	return UnknownQuestion{}, false, nil
}

func (s *fakeStore) ListUnknown(_ context.Context, limit int) ([]UnknownQuestion, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []UnknownQuestion
	for _, q := range s.unknown {
		if !s.answered[q.ID] && len(out) < limit {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *fakeStore) PendingUnknown(ctx context.Context) (int, error) {
	items, _ := s.ListUnknown(ctx, 1<<30)
	return len(items), nil
}

func (s *fakeStore) MarkAnswered(_ context.Context, id int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answered[id] = true
	return nil
}

func (s *fakeStore) IncrementQuery(_ context.Context, canonical, _ string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[canonical]++
	return nil
}

func (s *fakeStore) TopQueries(_ context.Context, limit int) ([]TrendingQuery, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrendingQuery, 0, len(s.counts))
	for q, c := range s.counts {
		out = append(out, TrendingQuery{Query: q, Count: c})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Count == out[j].Count {
			return out[i].Query < out[j].Query
		}
		return out[i].Count > out[j].Count
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type rebuildNotifier struct {
	engine  *Engine
	reasons []string
	err     error
}

func (n *rebuildNotifier) Notify(ctx context.Context, reason string) error {
	n.reasons = append(n.reasons, reason)
	if n.err != nil {
		return n.err
	}
	_, err := n.engine.Rebuild(ctx)
	return err
}

type serviceFixture struct {
	svc      Service
	repo     *fakeRepo
	store    *fakeStore
	notifier *rebuildNotifier
}

func newServiceFixture(t *testing.T, entries ...KnowledgeEntry) serviceFixture {
	t.Helper()
	repo := newFakeRepo(entries...)
	store := newFakeStore()
	engine := NewEngine(EngineConfig{}, repo, newTestLogger())
	notifier := &rebuildNotifier{engine: engine}
	svc := NewService(Config{}, engine, repo, store, notifier, nil, newTestLogger())
	require.NoError(t, svc.Warmup(context.Background(), nil))
	return serviceFixture{svc: svc, repo: repo, store: store, notifier: notifier}
}

func TestAskRejectsEmptyQuestion(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	_, err := f.svc.Ask(context.Background(), AskRequest{Question: "   "})
	require.Error(t, err)
	require.True(t, apperrors.IsCode(err, "invalid_input"))
}

func TestAskSmallTalk(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	ctx := context.Background()

	resp, err := f.svc.Ask(ctx, AskRequest{Question: "Hello!"})
	require.NoError(t, err)
	require.Equal(t, MatchTypeGreeting, resp.MatchType)
	require.Equal(t, MatchedByGreeting, resp.MatchedBy)
	require.True(t, resp.Matched)
	require.NotEmpty(t, resp.SessionID)
	require.Contains(t, resp.Answer, "LAUTECH")

	resp, err = f.svc.Ask(ctx, AskRequest{Question: "thank you", SessionID: "s-1"})
	require.NoError(t, err)
	require.Equal(t, MatchTypeCommon, resp.MatchType)
	require.Equal(t, "s-1", resp.SessionID)

	// the greeting prefix must not swallow a real question
	resp, err = f.svc.Ask(ctx, AskRequest{Question: "hi, where is the campus located?"})
	require.NoError(t, err)
	require.Equal(t, MatchTypeExact, resp.MatchType)
	require.Equal(t, int64(1), resp.EntryID)

	// "hi" inside "which" is not a greeting
	resp, err = f.svc.Ask(ctx, AskRequest{Question: "which"})
	require.NoError(t, err)
	require.Equal(t, MatchTypeNone, resp.MatchType)
}

func TestAskDirectAnswer(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	resp, err := f.svc.Ask(context.Background(), AskRequest{Question: "Where is the campus located?"})
	require.NoError(t, err)
	require.True(t, resp.Matched)
	require.Equal(t, MatchTypeExact, resp.MatchType)
	require.Equal(t, int64(1), resp.EntryID)
	require.Equal(t, "Ogbomoso, Oyo State.", resp.Answer)
	require.False(t, resp.Timestamp.IsZero())

	trending, err := f.svc.Trending(context.Background())
	require.NoError(t, err)
	require.Equal(t, []TrendingQuery{{Query: "where is the campus located", Count: 1}}, trending)
}

func TestAskShapesByConfidence(t *testing.T) {
	entries := append(campusEntries(), KnowledgeEntry{ID: 3, Question: "Which lodge is safest?", Answer: "Hall B.", Category: "Accommodation"})
	f := newServiceFixture(t, entries...)
	ctx := context.Background()

	resp, err := f.svc.Ask(ctx, AskRequest{Question: "hostel tour"})
	require.NoError(t, err)
	require.Equal(t, MatchTypeSimilar, resp.MatchType)
	require.True(t, resp.Matched)
	require.Equal(t, int64(3), resp.EntryID)
	require.True(t, strings.HasPrefix(resp.Answer, "I found a possible answer:"))
	require.InDelta(t, 0.577, resp.Confidence, 0.001)
	require.Empty(t, resp.Suggestions)

	exact, similar := 0.9, 0.7
	_, err = f.svc.UpdateThresholds(ctx, ThresholdsPatch{Exact: &exact, Similar: &similar})
	require.NoError(t, err)
	resp, err = f.svc.Ask(ctx, AskRequest{Question: "hostel tour"})
	require.NoError(t, err)
	require.Equal(t, MatchTypeLow, resp.MatchType)
	require.False(t, resp.Matched)
	require.Zero(t, resp.EntryID)
	require.Contains(t, resp.Answer, "• Which lodge is safest?")
	require.Contains(t, resp.Answer, "Could you rephrase your question?")
}

func TestAskRecordsUnknown(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	resp, err := f.svc.Ask(context.Background(), AskRequest{Question: "completely unrelated gibberish xyz", SessionID: "abc"})
	require.NoError(t, err)
	require.False(t, resp.Matched)
	require.Equal(t, MatchTypeNone, resp.MatchType)
	require.Equal(t, int64(1), resp.UnknownID)
	require.Len(t, f.store.unknown, 1)
	require.Equal(t, "abc", f.store.unknown[0].SessionID)

	stats, err := f.svc.Stats(context.Background())
	require.NoError(t, err)
	require.Equal(t, 1, stats.PendingUnknown)
	require.Equal(t, int64(1), stats.Matches[string(MatchTypeNone)])
}

func TestAnswerUnknownCreatesEntry(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	ctx := context.Background()
	_, err := f.svc.Ask(ctx, AskRequest{Question: "Is there a shuttle to the teaching hospital?"})
	require.NoError(t, err)

	_, err = f.svc.AnswerUnknown(ctx, 1, AnswerUnknownRequest{Answer: " "})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
	_, err = f.svc.AnswerUnknown(ctx, 42, AnswerUnknownRequest{Answer: "x"})
	require.True(t, apperrors.IsCode(err, "not_found"))

	entry, err := f.svc.AnswerUnknown(ctx, 1, AnswerUnknownRequest{Answer: "Yes, every hour from the main gate."})
	require.NoError(t, err)
	require.Equal(t, "Is there a shuttle to the teaching hospital?", entry.Question)
	require.Equal(t, defaultCategory, entry.Category)
	require.Equal(t, []string{"unknown_answered"}, f.notifier.reasons)

	pending, err := f.svc.UnknownQuestions(ctx, 0)
	require.NoError(t, err)
	require.Empty(t, pending)

	resp, err := f.svc.Ask(ctx, AskRequest{Question: "Is there a shuttle to the teaching hospital?"})
	require.NoError(t, err)
	require.Equal(t, entry.ID, resp.EntryID)
}

func TestEntryCRUD(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	ctx := context.Background()

	_, err := f.svc.CreateEntry(ctx, EntryInput{Question: "Library hours?"})
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	created, err := f.svc.CreateEntry(ctx, EntryInput{Question: " When does the library open? ", Answer: "8am."})
	require.NoError(t, err)
	require.Equal(t, "When does the library open?", created.Question)
	require.Equal(t, defaultCategory, created.Category)
	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Entries)

	got, err := f.svc.GetEntry(ctx, created.ID)
	require.NoError(t, err)
	require.Equal(t, created, got)

	updated, err := f.svc.UpdateEntry(ctx, created.ID, EntryInput{Question: "When does the library close?", Answer: "10pm.", Category: "Facilities"})
	require.NoError(t, err)
	require.Equal(t, "Facilities", updated.Category)

	_, err = f.svc.UpdateEntry(ctx, 99, EntryInput{Question: "q", Answer: "a"})
	require.True(t, apperrors.IsCode(err, "not_found"))

	require.NoError(t, f.svc.DeleteEntry(ctx, created.ID))
	require.True(t, apperrors.IsCode(f.svc.DeleteEntry(ctx, created.ID), "not_found"))
	_, err = f.svc.GetEntry(ctx, created.ID)
	require.True(t, apperrors.IsCode(err, "not_found"))

	require.Equal(t, []string{"faq_created", "faq_updated", "faq_deleted"}, f.notifier.reasons)
}

func TestListEntriesFilters(t *testing.T) {
	f := newServiceFixture(t,
		KnowledgeEntry{ID: 1, Question: "Where is the campus located?", Answer: "Ogbomoso.", Category: "General"},
		KnowledgeEntry{ID: 2, Question: "How much are the school fees?", Answer: "See bursary.", Category: "Fees"},
		KnowledgeEntry{ID: 3, Question: "How do I pay my acceptance fee?", Answer: "Via Remita.", Category: "Fees"},
	)
	ctx := context.Background()

	page, err := f.svc.ListEntries(ctx, EntryFilter{Category: "Fees"})
	require.NoError(t, err)
	require.Equal(t, 2, page.Total)
	require.Equal(t, int64(3), page.Entries[0].ID)
	require.Equal(t, []string{"Fees", "General"}, page.Categories)

	page, err = f.svc.ListEntries(ctx, EntryFilter{Search: "remita"})
	require.NoError(t, err)
	require.Equal(t, 1, page.Total)

	page, err = f.svc.ListEntries(ctx, EntryFilter{Page: 2, Limit: 2})
	require.NoError(t, err)
	require.Equal(t, 2, page.Pages)
	require.Len(t, page.Entries, 1)
	require.Equal(t, int64(1), page.Entries[0].ID)

	page, err = f.svc.ListEntries(ctx, EntryFilter{Page: 5, Limit: 2})
	require.NoError(t, err)
	require.Empty(t, page.Entries)
}

func TestImportEntries(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportEntries(ctx, nil)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	result, err := f.svc.ImportEntries(ctx, []EntryInput{
		{Question: "Where is the campus located?", Answer: "Ogbomoso."},
		{Question: "", Answer: "orphan"},
		{Question: "How much are the school fees?", Answer: "See bursary.", Category: "Fees"},
	})
	require.NoError(t, err)
	require.Equal(t, 2, result.Imported)
	require.Equal(t, 1, result.Failed)
	require.False(t, result.Results[1].Success)
	require.Equal(t, []string{"faq_imported"}, f.notifier.reasons)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Entries)
}

func TestUpdateThresholdsValidates(t *testing.T) {
	f := newServiceFixture(t)
	low := 0.7
	_, err := f.svc.UpdateThresholds(context.Background(), ThresholdsPatch{Low: &low})
	require.True(t, apperrors.IsCode(err, "invalid_input"))
	require.Equal(t, DefaultThresholds(), f.svc.Thresholds())

	exact := 0.75
	got, err := f.svc.UpdateThresholds(context.Background(), ThresholdsPatch{Exact: &exact})
	require.NoError(t, err)
	require.Equal(t, Thresholds{Exact: 0.75, Similar: 0.4, Low: 0.25}, got)
}

func TestWarmupSeedsEmptyStore(t *testing.T) {
	f := newServiceFixture(t)
	ctx := context.Background()
	seeds := []EntryInput{
		{Question: "Where is the campus located?", Answer: "Ogbomoso."},
		{Question: "  ", Answer: "skipped"},
	}
	require.NoError(t, f.svc.Warmup(ctx, seeds))
	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, stats.Entries)

	// a populated store is never reseeded
	require.NoError(t, f.svc.Warmup(ctx, seeds))
	entries, _ := f.repo.ListEntries(ctx)
	require.Len(t, entries, 1)
}

func TestSuggestDefaultsCount(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	_, err := f.svc.Suggest(context.Background(), " ", 3)
	require.True(t, apperrors.IsCode(err, "invalid_input"))

	got, err := f.svc.Suggest(context.Background(), "campus located", 0)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, int64(1), got[0].EntryID)
}

func TestReindexPicksUpOutOfBandWrites(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	ctx := context.Background()

	_, err := f.repo.CreateEntry(ctx, EntryInput{Question: "When does the library open?", Answer: "8am.", Category: "Library"})
	require.NoError(t, err)
	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, stats.Entries, "out-of-band writes stay invisible until reindex")

	idx, err := f.svc.Reindex(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, idx.Entries)
	require.Empty(t, f.notifier.reasons, "reindex rebuilds directly")
}

func TestCreateEntryIndexesIncrementallyWhenReindexFails(t *testing.T) {
	f := newServiceFixture(t, campusEntries()...)
	ctx := context.Background()
	f.notifier.err = errors.New("broker down")

	created, err := f.svc.CreateEntry(ctx, EntryInput{Question: "When does the library open?", Answer: "8am.", Category: "Library"})
	require.NoError(t, err)
	require.Equal(t, []string{"faq_created"}, f.notifier.reasons)

	stats, err := f.svc.Stats(ctx)
	require.NoError(t, err)
	require.Equal(t, 3, stats.Entries)

	resp, err := f.svc.Ask(ctx, AskRequest{Question: "When does the library open?"})
	require.NoError(t, err)
	require.True(t, resp.Matched)
	require.Equal(t, created.ID, resp.EntryID)
}
