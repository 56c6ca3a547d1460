package faqrules

import (
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	rules, err := Parse([]byte(`
overrides:
  - {pattern: "cut off mark", entryId: 8, priority: 3}
categories:
  - category: fees
    entryId: 29
    keywords: [fee, pay]
shortQuery:
  - {keyword: hostel, entryId: 32}
`))
	require.NoError(t, err)
	require.Len(t, rules.Overrides, 1)
	require.Equal(t, 3, rules.Overrides[0].Priority)
	require.Equal(t, int64(29), rules.Categories[0].EntryID)
	require.Equal(t, "hostel", rules.ShortQuery[0].Keyword)
}

func TestParseRejectsMissingTarget(t *testing.T) {
	_, err := Parse([]byte("overrides:\n  - {pattern: hostel}\n"))
	require.Error(t, err)
	_, err = Parse([]byte("shortQuery: [{keyword: '', entryId: 3}]\n"))
	require.Error(t, err)
}

func TestLoadBundledRules(t *testing.T) {
	_, file, _, ok := runtime.Caller(0)
	require.True(t, ok)
	path := filepath.Join(filepath.Dir(file), "..", "..", "..", "configs", "rules.yaml")

	rules, err := Load(path)
	require.NoError(t, err)
	require.NotEmpty(t, rules.Overrides)
	require.NotEmpty(t, rules.Categories)
	require.NotEmpty(t, rules.ShortQuery)

	empty, err := Load("")
	require.NoError(t, err)
	require.Empty(t, empty.Overrides)
}
