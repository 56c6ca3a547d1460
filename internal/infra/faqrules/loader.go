package faqrules

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/yanqian/campus-faq/internal/domain/faq"
)

// Load reads the override, category and short-query tables from a YAML
// file. An empty path yields empty tables.
func Load(path string) (faq.Rules, error) {
	if path == "" {
		return faq.Rules{}, nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return faq.Rules{}, fmt.Errorf("read rules file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML rule tables and rejects entries without a target.
func Parse(data []byte) (faq.Rules, error) {
	var rules faq.Rules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return faq.Rules{}, fmt.Errorf("decode rules: %w", err)
	}
	for i, rule := range rules.Overrides {
		if rule.Pattern == "" || rule.EntryID <= 0 {
			return faq.Rules{}, fmt.Errorf("override %d: pattern and entryId are required", i)
		}
	}
	for i, rule := range rules.Categories {
		if len(rule.Keywords) == 0 || rule.EntryID <= 0 {
			return faq.Rules{}, fmt.Errorf("category %d (%s): keywords and entryId are required", i, rule.Category)
		}
	}
	for i, rule := range rules.ShortQuery {
		if rule.Keyword == "" || rule.EntryID <= 0 {
			return faq.Rules{}, fmt.Errorf("shortQuery %d: keyword and entryId are required", i)
		}
	}
	return rules, nil
}
