package faq

import "time"

// MatchType is the confidence tier assigned to a match.
type MatchType string

const (
	MatchTypeExact            MatchType = "exact"
	MatchTypeSimilar          MatchType = "similar"
	MatchTypeLow              MatchType = "low"
	MatchTypeUnknown          MatchType = "unknown"
	MatchTypeKeyword          MatchType = "keyword"
	MatchTypeKeywordShort     MatchType = "keyword_short"
	MatchTypeSubstring        MatchType = "substring"
	MatchTypeOverrideExact    MatchType = "override_exact"
	MatchTypeOverrideCategory MatchType = "override_category"

	// Conversational replies produced by the service, never by the engine.
	MatchTypeGreeting MatchType = "greeting"
	MatchTypeCommon   MatchType = "common"
	MatchTypeNone     MatchType = "none"
)

// rank orders the vector tiers: unknown < low < similar < exact.
func (t MatchType) rank() int {
	switch t {
	case MatchTypeExact:
		return 3
	case MatchTypeSimilar:
		return 2
	case MatchTypeLow:
		return 1
	default:
		return 0
	}
}

// Stage tags reported in MatchResult.MatchedBy.
const (
	MatchedByOverride  = "override_table"
	MatchedByCategory  = "category_table"
	MatchedByShort     = "short_query"
	MatchedByVector    = "tfidf"
	MatchedByKeyword   = "keyword_fallback"
	MatchedBySubstring = "substring_fallback"
	MatchedByGreeting  = "greeting_handler"
	MatchedByCommon    = "common_handler"
	MatchedByNone      = "none"
)

// KnowledgeEntry is one question/answer record of the knowledge base.
type KnowledgeEntry struct {
	ID       int64  `json:"id"`
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// EntryInput carries the mutable fields of a knowledge entry.
type EntryInput struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Suggestion is an alternative entry offered when confidence is insufficient.
type Suggestion struct {
	EntryID    int64   `json:"id"`
	Question   string  `json:"question"`
	Confidence float64 `json:"confidence"`
}

// MatchResult is produced once per query by the engine.
type MatchResult struct {
	EntryID     int64          `json:"entryId"`
	Entry       KnowledgeEntry `json:"entry"`
	Confidence  float64        `json:"confidence"`
	MatchType   MatchType      `json:"matchType"`
	MatchedBy   string         `json:"matchedBy"`
	Suggestions []Suggestion   `json:"suggestions,omitempty"`
}

// Thresholds are the cut-points used to classify vector similarity.
type Thresholds struct {
	Exact   float64 `json:"exact"`
	Similar float64 `json:"similar"`
	Low     float64 `json:"low"`
}

// ThresholdsPatch updates a subset of the thresholds.
type ThresholdsPatch struct {
	Exact   *float64 `json:"exact"`
	Similar *float64 `json:"similar"`
	Low     *float64 `json:"low"`
}

// IndexStats describes the live snapshot.
type IndexStats struct {
	Entries   int       `json:"entries"`
	Terms     int       `json:"terms"`
	BuiltAt   time.Time `json:"builtAt"`
	Generated uint64    `json:"generation"`
}

// AskRequest encapsulates one chat message.
type AskRequest struct {
	Question  string `json:"question"`
	SessionID string `json:"sessionId"`
}

// AskResponse is returned to the HTTP transport.
type AskResponse struct {
	Question    string       `json:"question"`
	Answer      string       `json:"answer"`
	Confidence  float64      `json:"confidence"`
	Matched     bool         `json:"matched"`
	EntryID     int64        `json:"faqId,omitempty"`
	MatchType   MatchType    `json:"matchType"`
	MatchedBy   string       `json:"matchedBy"`
	Suggestions []Suggestion `json:"suggestions,omitempty"`
	UnknownID   int64        `json:"unknownId,omitempty"`
	SessionID   string       `json:"sessionId"`
	Timestamp   time.Time    `json:"timestamp"`
}

// TrendingQuery represents a frequently asked question.
type TrendingQuery struct {
	Query string `json:"query"`
	Count int64  `json:"count"`
}

// UnknownQuestion is a question the engine could not answer confidently.
type UnknownQuestion struct {
	ID        int64     `json:"id"`
	Question  string    `json:"question"`
	SessionID string    `json:"sessionId"`
	AskedAt   time.Time `json:"askedAt"`
	Answered  bool      `json:"answered"`
}

// AnswerUnknownRequest turns a logged unknown question into a knowledge entry.
type AnswerUnknownRequest struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
	Category string `json:"category"`
}

// Stats summarizes the service for the admin dashboard.
type Stats struct {
	Entries        int              `json:"entries"`
	PendingUnknown int              `json:"pendingUnknown"`
	Index          IndexStats       `json:"index"`
	Thresholds     Thresholds       `json:"thresholds"`
	Matches        map[string]int64 `json:"matches"`
}

// EntryFilter narrows the admin listing.
type EntryFilter struct {
	Category string
	Search   string
	Page     int
	Limit    int
}

// EntryPage is one page of the admin listing.
type EntryPage struct {
	Entries    []KnowledgeEntry `json:"faqs"`
	Categories []string         `json:"categories"`
	Page       int              `json:"page"`
	Limit      int              `json:"limit"`
	Total      int              `json:"total"`
	Pages      int              `json:"pages"`
}

// ImportOutcome reports one row of a bulk import.
type ImportOutcome struct {
	Question string `json:"question"`
	Success  bool   `json:"success"`
	EntryID  int64  `json:"faqId,omitempty"`
	Error    string `json:"error,omitempty"`
}

// ImportResult summarizes a bulk import.
type ImportResult struct {
	Imported int             `json:"imported"`
	Failed   int             `json:"failed"`
	Results  []ImportOutcome `json:"results"`
}
