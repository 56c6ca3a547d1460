package faq

import "strings"

var irregularNouns = map[string]string{
	"children": "child",
	"men":      "man",
	"women":    "woman",
	"people":   "person",
	"feet":     "foot",
	"teeth":    "tooth",
	"mice":     "mouse",
	"geese":    "goose",
	"indices":  "index",
	"criteria": "criterion",
}

// lemmatize reduces plural nouns to their singular form following the
// WordNet noun detachment rules. Without a dictionary to confirm the result,
// words ending in a sibilant or a Latin singular ending are left untouched.
func lemmatize(word string) string {
	if lemma, ok := irregularNouns[word]; ok {
		return lemma
	}
	if len(word) <= 3 {
		return word
	}
	for _, guard := range []string{"ss", "us", "is"} {
		if strings.HasSuffix(word, guard) {
			return word
		}
	}

	var lemma string
	switch {
	case strings.HasSuffix(word, "ches"), strings.HasSuffix(word, "shes"), strings.HasSuffix(word, "xes"):
		lemma = word[:len(word)-2]
	case strings.HasSuffix(word, "ses"):
		lemma = word[:len(word)-1]
		if base := word[:len(word)-2]; strings.HasSuffix(base, "ss") || strings.HasSuffix(base, "us") {
			lemma = base
		}
	case strings.HasSuffix(word, "ies"):
		lemma = word[:len(word)-3] + "y"
	case strings.HasSuffix(word, "men"):
		lemma = word[:len(word)-3] + "man"
	case strings.HasSuffix(word, "s"):
		lemma = word[:len(word)-1]
	default:
		return word
	}
	if len(lemma) < 3 {
		return word
	}
	return lemma
}
