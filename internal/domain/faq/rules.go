package faq

import (
	"sort"
	"strings"
)

const (
	overrideConfidence = 0.95
	categoryConfidence = 0.85
	shortConfidence    = 0.85

	// minCategoryHits is the keyword hit count a category needs to fire.
	minCategoryHits = 2
)

// OverrideRule short-circuits vector search when Pattern occurs in a query.
type OverrideRule struct {
	Pattern  string `yaml:"pattern" json:"pattern"`
	EntryID  int64  `yaml:"entryId" json:"entryId"`
	Priority int    `yaml:"priority" json:"priority"`
}

// CategoryRule maps a keyword family to one representative entry.
type CategoryRule struct {
	Category string   `yaml:"category" json:"category"`
	Keywords []string `yaml:"keywords" json:"keywords"`
	EntryID  int64    `yaml:"entryId" json:"entryId"`
}

// ShortQueryRule resolves single-word queries.
type ShortQueryRule struct {
	Keyword string `yaml:"keyword" json:"keyword"`
	EntryID int64  `yaml:"entryId" json:"entryId"`
}

// Rules bundles the hand-authored lookup tables.
type Rules struct {
	Overrides  []OverrideRule   `yaml:"overrides" json:"overrides"`
	Categories []CategoryRule   `yaml:"categories" json:"categories"`
	ShortQuery []ShortQueryRule `yaml:"shortQuery" json:"shortQuery"`
}

// ruleHit is a candidate produced by a rule table.
type ruleHit struct {
	entryID    int64
	confidence float64
	matchType  MatchType
	matchedBy  string
	pattern    string
}

type compiledOverride struct {
	parts   []string
	pattern string
	entryID int64
}

type compiledCategory struct {
	name     string
	keywords [][]string
	entryID  int64
}

type compiledShort struct {
	keyword string
	entryID int64
}

// ruleTable is the read-only, compiled form of Rules.
//
// Patterns match on word boundaries of the lowercased, punctuation-free raw
// query: "fee" fires on "school fee" but never inside "coffee".
type ruleTable struct {
	overrides  []compiledOverride
	categories []compiledCategory
	short      []compiledShort
}

func compileRules(rules Rules) *ruleTable {
	table := &ruleTable{}

	ordered := make([]OverrideRule, len(rules.Overrides))
	copy(ordered, rules.Overrides)
	// Higher priority first; list order breaks ties.
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})
	for _, rule := range ordered {
		parts := wordTokens(rule.Pattern)
		if len(parts) == 0 || rule.EntryID <= 0 {
			continue
		}
		table.overrides = append(table.overrides, compiledOverride{
			parts:   parts,
			pattern: strings.Join(parts, " "),
			entryID: rule.EntryID,
		})
	}

	for _, rule := range rules.Categories {
		if rule.EntryID <= 0 {
			continue
		}
		compiled := compiledCategory{name: rule.Category, entryID: rule.EntryID}
		for _, kw := range rule.Keywords {
			if parts := wordTokens(kw); len(parts) > 0 {
				compiled.keywords = append(compiled.keywords, parts)
			}
		}
		if len(compiled.keywords) > 0 {
			table.categories = append(table.categories, compiled)
		}
	}

	for _, rule := range rules.ShortQuery {
		kw := strings.Join(wordTokens(rule.Keyword), " ")
		if kw == "" || rule.EntryID <= 0 {
			continue
		}
		table.short = append(table.short, compiledShort{keyword: kw, entryID: rule.EntryID})
	}
	return table
}

// lookupOverride runs the phrase stage and then the category stage against
// the raw query. exists filters out targets missing from the live snapshot.
func (t *ruleTable) lookupOverride(raw string, exists func(int64) bool) (ruleHit, bool) {
	words := wordTokens(raw)
	if len(words) == 0 {
		return ruleHit{}, false
	}

	for _, rule := range t.overrides {
		if containsTokens(words, rule.parts) && exists(rule.entryID) {
			return ruleHit{
				entryID:    rule.entryID,
				confidence: overrideConfidence,
				matchType:  MatchTypeOverrideExact,
				matchedBy:  MatchedByOverride,
				pattern:    rule.pattern,
			}, true
		}
	}

	var (
		best     *compiledCategory
		bestHits int
	)
	for i := range t.categories {
		category := &t.categories[i]
		hits := 0
		for _, kw := range category.keywords {
			if containsTokens(words, kw) {
				hits++
			}
		}
		if hits > bestHits {
			best = category
			bestHits = hits
		}
	}
	if best == nil || bestHits < minCategoryHits || !exists(best.entryID) {
		return ruleHit{}, false
	}
	return ruleHit{
		entryID:    best.entryID,
		confidence: categoryConfidence,
		matchType:  MatchTypeOverrideCategory,
		matchedBy:  MatchedByCategory,
		pattern:    best.name,
	}, true
}

// lookupShort resolves a sparse query through the single-word table.
func (t *ruleTable) lookupShort(raw string, exists func(int64) bool) (ruleHit, bool) {
	words := wordTokens(raw)
	if len(words) == 0 {
		return ruleHit{}, false
	}
	for _, rule := range t.short {
		if !containsTokens(words, strings.Fields(rule.keyword)) || !exists(rule.entryID) {
			continue
		}
		return ruleHit{
			entryID:    rule.entryID,
			confidence: shortConfidence,
			matchType:  MatchTypeKeywordShort,
			matchedBy:  MatchedByShort,
			pattern:    rule.keyword,
		}, true
	}
	return ruleHit{}, false
}

// containsTokens reports whether needle occurs as a contiguous run in words.
func containsTokens(words, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(words) {
		return false
	}
	for i := 0; i+len(needle) <= len(words); i++ {
		if hasPrefixTokens(words[i:], needle) {
			return true
		}
	}
	return false
}
