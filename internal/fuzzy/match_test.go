package fuzzy_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/fuzzy"
	"jobmate/ingestion-service/internal/model"
)

func TestRatio(t *testing.T) {
	assert.Equal(t, 100, fuzzy.Ratio("abc", "abc"))
	assert.Equal(t, 75, fuzzy.Ratio("abcd", "abce"))
	assert.Equal(t, 0, fuzzy.Ratio("", "abc"))
	assert.Equal(t, 0, fuzzy.Ratio("", ""))
}

func TestTokenSetRatio_OrderInvariant(t *testing.T) {
	assert.Equal(t, 100, fuzzy.TokenSetRatio("acme corp", "corp acme"))
	assert.Equal(t, 100, fuzzy.TokenSetRatio("google", "google inc alphabet"))
	assert.Equal(t, 0, fuzzy.TokenSetRatio("", "google"))
}

func TestPartialRatio(t *testing.T) {
	assert.Equal(t, 100, fuzzy.PartialRatio("google", "xx google yy"))
	assert.Equal(t, 100, fuzzy.PartialRatio("xx google yy", "google"))
	assert.Equal(t, 0, fuzzy.PartialRatio("", "google"))
}

func TestCompareCompanies_Subsumption(t *testing.T) {
	assert.Equal(t, 100, fuzzy.CompareCompanies("Google", "Google Inc Alphabet"))
	assert.Equal(t, 100, fuzzy.CompareCompanies("The Acme Group", "Acme, Inc."))
	assert.Less(t, fuzzy.CompareCompanies("Acme", "Initech"), fuzzy.MinCompany)
}

func TestCompareLocations_Empties(t *testing.T) {
	assert.Equal(t, 100, fuzzy.CompareLocations("", ""))
	assert.Equal(t, 50, fuzzy.CompareLocations("", "NY"))
	assert.Equal(t, 50, fuzzy.CompareLocations("Berlin", "  "))
	assert.Equal(t, 100, fuzzy.CompareLocations("NY", "New York"))
}

// A strong title and location cannot carry a weak company match.
func TestEvaluate_RequiresEveryThreshold(t *testing.T) {
	res := fuzzy.Evaluate(95, 60, 90)
	assert.InDelta(t, 82.0, res.Composite, 0.001)
	assert.False(t, res.IsMatch, "company below threshold must veto the match")

	assert.True(t, fuzzy.Evaluate(100, 100, 0).IsMatch)
	assert.False(t, fuzzy.Evaluate(80, 70, 0).IsMatch, "composite 64.5 is below 75")
	assert.False(t, fuzzy.Evaluate(79, 100, 100).IsMatch)
}

func TestMatchJobs(t *testing.T) {
	a := model.Posting{Title: "Senior Software Engineer", Company: "Acme Inc", Location: "NY"}
	b := model.Posting{Title: "Sr Engineer", Company: "Acme", Location: "New York"}
	res := fuzzy.MatchJobs(a, b)
	assert.True(t, res.IsMatch)
	assert.Equal(t, 100, res.Title)

	c := model.Posting{Title: "Product Designer", Company: "Acme", Location: "NY"}
	assert.False(t, fuzzy.MatchJobs(a, c).IsMatch)
}

func TestFindMatches_SortedAndCapped(t *testing.T) {
	target := model.Posting{ID: "t", Title: "Backend Engineer", Company: "Acme", Location: "Berlin"}
	candidates := []model.Posting{
		{ID: "other-city", Title: "Backend Engineer", Company: "Acme", Location: "Munich"},
		{ID: "other-company", Title: "Backend Engineer", Company: "Initech", Location: "Berlin"},
		{ID: "same", Title: "Sr. Backend Engineer", Company: "Acme GmbH", Location: "Berlin"},
	}

	all := fuzzy.FindAllFuzzyMatches(target, candidates, 0)
	require.Len(t, all, 2)
	assert.Equal(t, "same", all[0].Posting.ID)
	assert.Equal(t, "other-city", all[1].Posting.ID)
	assert.GreaterOrEqual(t, all[0].Result.Composite, all[1].Result.Composite)

	capped := fuzzy.FindAllFuzzyMatches(target, candidates, 1)
	require.Len(t, capped, 1)
	assert.Equal(t, "same", capped[0].Posting.ID)

	best, ok := fuzzy.FindBestFuzzyMatch(target, candidates)
	require.True(t, ok)
	assert.Equal(t, "same", best.Posting.ID)

	_, ok = fuzzy.FindBestFuzzyMatch(target, nil)
	assert.False(t, ok)
}
