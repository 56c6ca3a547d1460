package faq

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/campus-faq/pkg/errors"
	"github.com/yanqian/campus-faq/pkg/metrics"
	"github.com/yanqian/campus-faq/pkg/util"
)

const (
	directConfidence  = 0.8
	similarConfidence = 0.6
	clarifyConfidence = 0.4

	similarSuggestions = 2
	clarifySuggestions = 3

	defaultCategory  = "Uncategorized"
	defaultPageLimit = 20
)

const unknownAnswer = "I'm not sure about this yet, but I've saved your question for review. I'll update you soon!"

// Service exposes the chat and admin capabilities of the FAQ assistant.
type Service interface {
	Ask(ctx context.Context, req AskRequest) (AskResponse, error)
	Suggest(ctx context.Context, query string, n int) ([]Suggestion, error)
	Trending(ctx context.Context) ([]TrendingQuery, error)

	ListEntries(ctx context.Context, filter EntryFilter) (EntryPage, error)
	GetEntry(ctx context.Context, id int64) (KnowledgeEntry, error)
	CreateEntry(ctx context.Context, in EntryInput) (KnowledgeEntry, error)
	UpdateEntry(ctx context.Context, id int64, in EntryInput) (KnowledgeEntry, error)
	DeleteEntry(ctx context.Context, id int64) error
	ImportEntries(ctx context.Context, in []EntryInput) (ImportResult, error)

	UnknownQuestions(ctx context.Context, limit int) ([]UnknownQuestion, error)
	AnswerUnknown(ctx context.Context, id int64, req AnswerUnknownRequest) (KnowledgeEntry, error)

	Reindex(ctx context.Context) (IndexStats, error)
	Thresholds() Thresholds
	UpdateThresholds(ctx context.Context, patch ThresholdsPatch) (Thresholds, error)
	Stats(ctx context.Context) (Stats, error)
	Warmup(ctx context.Context, seeds []EntryInput) error
}

type service struct {
	cfg      Config
	engine   *Engine
	repo     EntryRepository
	store    Store
	notifier ReindexNotifier
	counters *metrics.MatchCounters
	logger   *slog.Logger
}

// NewService wires up the FAQ domain. A nil notifier rebuilds the engine
// in-process after every mutation.
func NewService(cfg Config, engine *Engine, repo EntryRepository, store Store, notifier ReindexNotifier, counters *metrics.MatchCounters, logger *slog.Logger) Service {
	if counters == nil {
		counters = metrics.NewMatchCounters()
	}
	return &service{
		cfg:      cfg.withDefaults(),
		engine:   engine,
		repo:     repo,
		store:    store,
		notifier: notifier,
		counters: counters,
		logger:   logger.With("component", "faq.service"),
	}
}

func (s *service) Ask(ctx context.Context, req AskRequest) (AskResponse, error) {
	question := strings.TrimSpace(req.Question)
	if question == "" {
		return AskResponse{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question cannot be empty", nil)
	}
	sessionID := strings.TrimSpace(req.SessionID)
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	resp, err := s.answer(ctx, question, sessionID)
	if err != nil {
		return AskResponse{}, err
	}
	resp.Question = question
	resp.SessionID = sessionID
	resp.Timestamp = util.NowUTC()
	s.counters.Inc(string(resp.MatchType))

	if err := s.store.IncrementQuery(ctx, canonicalQuery(question), question); err != nil {
		s.logger.Warn("faq trending increment failed", "error", err)
	}
	return resp, nil
}

func (s *service) answer(ctx context.Context, question, sessionID string) (AskResponse, error) {
	if resp, ok := replySmallTalk(s.engine.Normalizer(), s.cfg.InstitutionName, question); ok {
		s.logger.Debug("small talk answered", "match_type", resp.MatchType)
		return resp, nil
	}

	match, ok := s.engine.FindBestMatch(ctx, question)
	if !ok {
		return s.recordUnknown(ctx, question, sessionID, AskResponse{
			MatchType: MatchTypeNone,
			MatchedBy: MatchedByNone,
		})
	}

	switch {
	case match.MatchType == MatchTypeExact || match.Confidence >= directConfidence:
		return AskResponse{
			Answer:     match.Entry.Answer,
			Confidence: match.Confidence,
			Matched:    true,
			EntryID:    match.EntryID,
			MatchType:  MatchTypeExact,
			MatchedBy:  match.MatchedBy,
		}, nil
	case match.MatchType == MatchTypeSimilar || match.Confidence >= similarConfidence:
		suggestions := s.suggestionsFor(ctx, question, match.EntryID, similarSuggestions)
		answer := "I found a possible answer:\n\n" + match.Entry.Answer
		if len(suggestions) > 0 {
			answer += fmt.Sprintf("\n\nDid you mean: %s?", suggestions[0].Question)
		}
		return AskResponse{
			Answer:      answer,
			Confidence:  match.Confidence,
			Matched:     true,
			EntryID:     match.EntryID,
			MatchType:   MatchTypeSimilar,
			MatchedBy:   match.MatchedBy,
			Suggestions: suggestions,
		}, nil
	case match.MatchType == MatchTypeLow || match.Confidence >= clarifyConfidence:
		suggestions := s.suggestionsFor(ctx, question, 0, clarifySuggestions)
		return AskResponse{
			Answer:      clarification(suggestions),
			Confidence:  match.Confidence,
			Matched:     false,
			MatchType:   MatchTypeLow,
			MatchedBy:   match.MatchedBy,
			Suggestions: suggestions,
		}, nil
	default:
		return s.recordUnknown(ctx, question, sessionID, AskResponse{
			Confidence: match.Confidence,
			MatchType:  MatchTypeUnknown,
			MatchedBy:  match.MatchedBy,
		})
	}
}

func (s *service) recordUnknown(ctx context.Context, question, sessionID string, resp AskResponse) (AskResponse, error) {
	rec, err := s.store.RecordUnknown(ctx, UnknownQuestion{
		Question:  question,
		SessionID: sessionID,
		AskedAt:   util.NowUTC(),
	})
	if err != nil {
		s.logger.Warn("failed to record unknown question", "error", err)
	} else {
		resp.UnknownID = rec.ID
		s.logger.Info("unknown question recorded", "unknown_id", rec.ID, "match_type", resp.MatchType)
	}
	resp.Answer = unknownAnswer
	resp.Matched = false
	return resp, nil
}

// suggestionsFor returns up to n suggestions excluding the entry already
// given as the answer.
func (s *service) suggestionsFor(ctx context.Context, question string, exclude int64, n int) []Suggestion {
	raw := s.engine.Suggest(ctx, question, n+1)
	out := make([]Suggestion, 0, n)
	for _, sug := range raw {
		if sug.EntryID == exclude {
			continue
		}
		out = append(out, sug)
		if len(out) == n {
			break
		}
	}
	return out
}

func clarification(suggestions []Suggestion) string {
	var b strings.Builder
	b.WriteString("I'm not entirely sure what you're asking. Here are some related questions:\n\n")
	if len(suggestions) == 0 {
		b.WriteString("No related questions found.")
	}
	for i, sug := range suggestions {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString("• " + sug.Question)
	}
	b.WriteString("\n\nCould you rephrase your question?")
	return b.String()
}

func (s *service) Suggest(ctx context.Context, query string, n int) ([]Suggestion, error) {
	if strings.TrimSpace(query) == "" {
		return nil, apperrors.Wrap(apperrors.CodeInvalidInput, "query cannot be empty", nil)
	}
	if n <= 0 {
		n = s.cfg.SuggestionCount
	}
	return s.engine.Suggest(ctx, query, n), nil
}

func (s *service) Trending(ctx context.Context) ([]TrendingQuery, error) {
	recs, err := s.store.TopQueries(ctx, s.cfg.TopRecommendations)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeInternal, "failed to load trending queries", err)
	}
	return recs, nil
}

func (s *service) ListEntries(ctx context.Context, filter EntryFilter) (EntryPage, error) {
	entries, err := s.repo.ListEntries(ctx)
	if err != nil {
		return EntryPage{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to list entries", err)
	}
	if filter.Limit <= 0 {
		filter.Limit = defaultPageLimit
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}

	categories := make(map[string]struct{})
	search := strings.ToLower(strings.TrimSpace(filter.Search))
	matched := make([]KnowledgeEntry, 0, len(entries))
	for _, entry := range entries {
		categories[entry.Category] = struct{}{}
		if filter.Category != "" && entry.Category != filter.Category {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(entry.Question), search) &&
			!strings.Contains(strings.ToLower(entry.Answer), search) {
			continue
		}
		matched = append(matched, entry)
	}
	sort.SliceStable(matched, func(i, j int) bool { return matched[i].ID > matched[j].ID })

	page := EntryPage{
		Page:       filter.Page,
		Limit:      filter.Limit,
		Total:      len(matched),
		Pages:      (len(matched) + filter.Limit - 1) / filter.Limit,
		Categories: make([]string, 0, len(categories)),
	}
	for category := range categories {
		page.Categories = append(page.Categories, category)
	}
	sort.Strings(page.Categories)

	start := (filter.Page - 1) * filter.Limit
	if start < len(matched) {
		page.Entries = matched[start:min(start+filter.Limit, len(matched))]
	} else {
		page.Entries = []KnowledgeEntry{}
	}
	return page, nil
}

func (s *service) GetEntry(ctx context.Context, id int64) (KnowledgeEntry, error) {
	entry, found, err := s.repo.GetEntry(ctx, id)
	if err != nil {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to load entry", err)
	}
	if !found {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("faq %d not found", id), nil)
	}
	return entry, nil
}

func (s *service) CreateEntry(ctx context.Context, in EntryInput) (KnowledgeEntry, error) {
	in, err := sanitizeInput(in)
	if err != nil {
		return KnowledgeEntry{}, err
	}
	entry, err := s.repo.CreateEntry(ctx, in)
	if err != nil {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to create entry", err)
	}
	s.notifyCreated(ctx, "faq_created", entry)
	return entry, nil
}

func (s *service) UpdateEntry(ctx context.Context, id int64, in EntryInput) (KnowledgeEntry, error) {
	in, err := sanitizeInput(in)
	if err != nil {
		return KnowledgeEntry{}, err
	}
	entry, found, err := s.repo.UpdateEntry(ctx, id, in)
	if err != nil {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to update entry", err)
	}
	if !found {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("faq %d not found", id), nil)
	}
	s.notify(ctx, "faq_updated")
	return entry, nil
}

func (s *service) DeleteEntry(ctx context.Context, id int64) error {
	found, err := s.repo.DeleteEntry(ctx, id)
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to delete entry", err)
	}
	if !found {
		return apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("faq %d not found", id), nil)
	}
	s.notify(ctx, "faq_deleted")
	return nil
}

func (s *service) ImportEntries(ctx context.Context, in []EntryInput) (ImportResult, error) {
	if len(in) == 0 {
		return ImportResult{}, apperrors.Wrap(apperrors.CodeInvalidInput, "no faqs supplied", nil)
	}
	result := ImportResult{Results: make([]ImportOutcome, 0, len(in))}
	for _, raw := range in {
		outcome := ImportOutcome{Question: preview(raw.Question)}
		input, err := sanitizeInput(raw)
		if err == nil {
			var entry KnowledgeEntry
			entry, err = s.repo.CreateEntry(ctx, input)
			outcome.EntryID = entry.ID
		}
		if err != nil {
			outcome.Error = err.Error()
			result.Failed++
		} else {
			outcome.Success = true
			result.Imported++
		}
		result.Results = append(result.Results, outcome)
	}
	if result.Imported > 0 {
		s.notify(ctx, "faq_imported")
	}
	s.logger.Info("faq import finished", "imported", result.Imported, "failed", result.Failed)
	return result, nil
}

func (s *service) UnknownQuestions(ctx context.Context, limit int) ([]UnknownQuestion, error) {
	if limit <= 0 {
		limit = s.cfg.UnknownQueueLimit
	}
	items, err := s.store.ListUnknown(ctx, limit)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to list unknown questions", err)
	}
	return items, nil
}

func (s *service) AnswerUnknown(ctx context.Context, id int64, req AnswerUnknownRequest) (KnowledgeEntry, error) {
	unknown, found, err := s.store.GetUnknown(ctx, id)
	if err != nil {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to load unknown question", err)
	}
	if !found {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeNotFound, fmt.Sprintf("unknown question %d not found", id), nil)
	}
	question := strings.TrimSpace(req.Question)
	if question == "" {
		question = unknown.Question
	}
	in, err := sanitizeInput(EntryInput{Question: question, Answer: req.Answer, Category: req.Category})
	if err != nil {
		return KnowledgeEntry{}, err
	}
	entry, err := s.repo.CreateEntry(ctx, in)
	if err != nil {
		return KnowledgeEntry{}, apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to create entry", err)
	}
	if err := s.store.MarkAnswered(ctx, id); err != nil {
		s.logger.Warn("failed to mark unknown question answered", "unknown_id", id, "error", err)
	}
	s.notifyCreated(ctx, "unknown_answered", entry)
	return entry, nil
}

func (s *service) Reindex(ctx context.Context) (IndexStats, error) {
	return s.engine.Rebuild(ctx)
}

func (s *service) Thresholds() Thresholds {
	return s.engine.Thresholds()
}

func (s *service) UpdateThresholds(_ context.Context, patch ThresholdsPatch) (Thresholds, error) {
	next := s.engine.Thresholds()
	if patch.Exact != nil {
		next.Exact = *patch.Exact
	}
	if patch.Similar != nil {
		next.Similar = *patch.Similar
	}
	if patch.Low != nil {
		next.Low = *patch.Low
	}
	if err := s.engine.SetThresholds(next); err != nil {
		return Thresholds{}, err
	}
	return next, nil
}

func (s *service) Stats(ctx context.Context) (Stats, error) {
	pending, err := s.store.PendingUnknown(ctx)
	if err != nil {
		s.logger.Warn("faq pending count failed", "error", err)
	}
	index := s.engine.Stats()
	return Stats{
		Entries:        index.Entries,
		PendingUnknown: pending,
		Index:          index,
		Thresholds:     s.engine.Thresholds(),
		Matches:        s.counters.Snapshot(),
	}, nil
}

// Warmup seeds an empty record store and builds the first snapshot.
func (s *service) Warmup(ctx context.Context, seeds []EntryInput) error {
	if len(seeds) > 0 {
		existing, err := s.repo.ListEntries(ctx)
		if err != nil {
			return apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to inspect record store", err)
		}
		if len(existing) == 0 {
			imported := 0
			for _, raw := range seeds {
				in, err := sanitizeInput(raw)
				if err != nil {
					s.logger.Warn("skipping invalid seed entry", "question", preview(raw.Question), "error", err)
					continue
				}
				if _, err := s.repo.CreateEntry(ctx, in); err != nil {
					return apperrors.Wrap(apperrors.CodeStoreUnavailable, "failed to seed record store", err)
				}
				imported++
			}
			s.logger.Info("record store seeded", "entries", imported)
		}
	}
	_, err := s.engine.Rebuild(ctx)
	return err
}

// notify announces a record store change. Failures are logged; the engine
// keeps serving its previous snapshot.
func (s *service) notify(ctx context.Context, reason string) {
	if err := s.reindex(ctx, reason); err != nil {
		s.logger.Warn("reindex after mutation failed", "reason", reason, "error", err)
	}
}

// notifyCreated announces a new entry. When the reindex fails the entry is
// refit into the live snapshot directly so it is matchable right away.
func (s *service) notifyCreated(ctx context.Context, reason string, entry KnowledgeEntry) {
	err := s.reindex(ctx, reason)
	if err == nil {
		return
	}
	s.logger.Warn("reindex after mutation failed, indexing entry incrementally", "reason", reason, "entry_id", entry.ID, "error", err)
	if _, err := s.engine.AddIncremental(entry); err != nil {
		s.logger.Error("incremental index update failed", "entry_id", entry.ID, "error", err)
	}
}

func (s *service) reindex(ctx context.Context, reason string) error {
	if s.notifier == nil {
		_, err := s.engine.Rebuild(ctx)
		return err
	}
	return s.notifier.Notify(ctx, reason)
}

func sanitizeInput(in EntryInput) (EntryInput, error) {
	in.Question = strings.TrimSpace(in.Question)
	in.Answer = strings.TrimSpace(in.Answer)
	in.Category = strings.TrimSpace(in.Category)
	if in.Question == "" {
		return EntryInput{}, apperrors.Wrap(apperrors.CodeInvalidInput, "question cannot be empty", nil)
	}
	if in.Answer == "" {
		return EntryInput{}, apperrors.Wrap(apperrors.CodeInvalidInput, "answer cannot be empty", nil)
	}
	if in.Category == "" {
		in.Category = defaultCategory
	}
	return in, nil
}

func preview(q string) string {
	q = strings.TrimSpace(q)
	if r := []rune(q); len(r) > 50 {
		return string(r[:50])
	}
	return q
}
