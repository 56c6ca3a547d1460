package faq

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/kljensen/snowball"
)

var (
	urlPattern   = regexp.MustCompile(`http\S+|www\S+`)
	emailPattern = regexp.MustCompile(`\S+@\S+`)
)

// maxTokenPasses bounds the fixpoint iteration of the token stage.
const maxTokenPasses = 4

// NormalizerConfig selects the tables and reduction mode of a Normalizer.
type NormalizerConfig struct {
	// UseStemming switches the final reduction from lemmatization to
	// Snowball English stemming.
	UseStemming bool
	// DomainWords are removed before tokenization. Nil selects the defaults.
	DomainWords []string
	// ExtraStopwords extend the English and domain stopword lists.
	ExtraStopwords []string
	// Synonyms override the canonicalization table. Nil selects the defaults.
	Synonyms []SynonymRule
}

type phraseRule struct {
	parts     []string
	canonical string
}

// Normalizer turns raw text into a canonical token stream. It is safe for
// concurrent use; all tables are read-only after construction.
type Normalizer struct {
	useStemming bool
	domainWords map[string]struct{}
	stopwords   map[string]struct{}
	phrases     []phraseRule
	words       []SynonymRule
}

// NewNormalizer builds a Normalizer from cfg.
func NewNormalizer(cfg NormalizerConfig) *Normalizer {
	domain := cfg.DomainWords
	if domain == nil {
		domain = defaultDomainWords
	}
	synonyms := cfg.Synonyms
	if synonyms == nil {
		synonyms = defaultSynonyms
	}

	n := &Normalizer{
		useStemming: cfg.UseStemming,
		domainWords: make(map[string]struct{}, len(domain)),
		stopwords:   make(map[string]struct{}, len(englishStopwords)+len(domainStopwords)),
	}
	for _, w := range domain {
		n.domainWords[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}
	for _, list := range [][]string{englishStopwords, domainStopwords, cfg.ExtraStopwords, domain} {
		for _, w := range list {
			if w = cleanText(w); w != "" {
				n.stopwords[w] = struct{}{}
			}
		}
	}
	for _, rule := range synonyms {
		pattern := cleanText(rule.Pattern)
		canonical := strings.ToLower(strings.TrimSpace(rule.Canonical))
		if pattern == "" || canonical == "" {
			continue
		}
		parts := strings.Fields(pattern)
		if len(parts) > 1 {
			n.phrases = append(n.phrases, phraseRule{parts: parts, canonical: canonical})
			continue
		}
		n.words = append(n.words, SynonymRule{Pattern: pattern, Canonical: canonical})
	}
	return n
}

// Normalize returns the space-joined canonical tokens of text. Applying it to
// its own output returns the output unchanged.
func (n *Normalizer) Normalize(text string) string {
	return strings.Join(n.Tokens(text), " ")
}

// Tokens returns the canonical tokens of text in order of appearance.
func (n *Normalizer) Tokens(text string) []string {
	cleaned := cleanText(text)
	if cleaned == "" {
		return nil
	}
	tokens := strings.Fields(cleaned)
	for pass := 0; pass < maxTokenPasses; pass++ {
		next := n.tokenPass(tokens)
		if equalTokens(next, tokens) {
			break
		}
		tokens = next
	}
	if len(tokens) == 0 {
		return nil
	}
	return tokens
}

// ExtractKeywords returns the topN most frequent canonical tokens of text,
// breaking ties by first appearance.
func (n *Normalizer) ExtractKeywords(text string, topN int) []string {
	if topN <= 0 {
		return nil
	}
	tokens := n.Tokens(text)
	if len(tokens) == 0 {
		return nil
	}
	counts := make(map[string]int, len(tokens))
	order := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if counts[tok] == 0 {
			order = append(order, tok)
		}
		counts[tok]++
	}
	sort.SliceStable(order, func(i, j int) bool {
		return counts[order[i]] > counts[order[j]]
	})
	if len(order) > topN {
		order = order[:topN]
	}
	return order
}

func (n *Normalizer) tokenPass(tokens []string) []string {
	kept := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if _, ok := n.domainWords[tok]; !ok {
			kept = append(kept, tok)
		}
	}
	kept = n.filter(n.mergePhrases(kept))
	out := make([]string, 0, len(kept))
	for _, tok := range kept {
		out = append(out, n.canonicalize(tok))
	}
	return n.filter(out)
}

func (n *Normalizer) mergePhrases(tokens []string) []string {
	if len(n.phrases) == 0 {
		return tokens
	}
	out := make([]string, 0, len(tokens))
	for i := 0; i < len(tokens); {
		merged := false
		for _, rule := range n.phrases {
			if hasPrefixTokens(tokens[i:], rule.parts) {
				out = append(out, rule.canonical)
				i += len(rule.parts)
				merged = true
				break
			}
		}
		if !merged {
			out = append(out, tokens[i])
			i++
		}
	}
	return out
}

// canonicalize maps a token through the synonym table, falling back to
// lemmatization or stemming. Canonical synonym forms are never reduced
// further.
func (n *Normalizer) canonicalize(tok string) string {
	for _, rule := range n.words {
		if synonymMatches(tok, rule.Pattern) {
			return rule.Canonical
		}
	}
	if n.useStemming {
		stemmed, err := snowball.Stem(tok, "english", true)
		if err != nil || stemmed == "" {
			return tok
		}
		return stemmed
	}
	return lemmatize(tok)
}

func (n *Normalizer) filter(tokens []string) []string {
	out := make([]string, 0, len(tokens))
	for _, tok := range tokens {
		if utf8.RuneCountInString(tok) <= 2 {
			continue
		}
		if _, stop := n.stopwords[tok]; stop {
			continue
		}
		out = append(out, tok)
	}
	return out
}

// synonymMatches reports whether tok carries pattern. Patterns shorter than
// four characters must match the whole token so that "med" does not fire on
// "immediately".
func synonymMatches(tok, pattern string) bool {
	if tok == pattern {
		return true
	}
	return utf8.RuneCountInString(pattern) >= 4 && strings.Contains(tok, pattern)
}

// cleanText lowercases text and strips URLs, email addresses and punctuation,
// collapsing runs of whitespace.
func cleanText(text string) string {
	if strings.TrimSpace(text) == "" {
		return ""
	}
	lowered := strings.ToLower(text)
	lowered = urlPattern.ReplaceAllString(lowered, "")
	lowered = emailPattern.ReplaceAllString(lowered, "")
	var builder strings.Builder
	builder.Grow(len(lowered))
	for _, r := range lowered {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		builder.WriteRune(r)
	}
	return strings.Join(strings.Fields(builder.String()), " ")
}

// wordTokens splits text into lowercased whole words without removing
// stopwords. Rule tables match against this form of the raw query.
func wordTokens(text string) []string {
	return strings.Fields(cleanText(text))
}

func hasPrefixTokens(tokens, prefix []string) bool {
	if len(prefix) == 0 || len(tokens) < len(prefix) {
		return false
	}
	for i, p := range prefix {
		if tokens[i] != p {
			return false
		}
	}
	return true
}

func equalTokens(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// canonicalQuery folds a raw question into the key used for popularity
// counters. Unlike Normalize it keeps stopwords and never stems.
func canonicalQuery(q string) string {
	lowered := strings.ToLower(strings.TrimSpace(q))
	var builder strings.Builder
	builder.Grow(len(lowered))
	lastSpace := true
	for _, r := range lowered {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			builder.WriteRune(r)
			lastSpace = false
			continue
		}
		// punctuation and whitespace both separate words
		if !lastSpace {
			builder.WriteRune(' ')
			lastSpace = true
		}
	}
	return strings.TrimSpace(builder.String())
}
