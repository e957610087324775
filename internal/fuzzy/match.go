// Package fuzzy decides whether two postings describe the same job when
// their content hashes differ.
package fuzzy

import (
	"sort"

	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/normalize"
)

// Field weights and thresholds. A match needs all three thresholds; the
// composite alone is not enough.
const (
	TitleWeight    = 0.5
	CompanyWeight  = 0.35
	LocationWeight = 0.15

	MinTitle     = 80
	MinCompany   = 70
	MinComposite = 75.0

	// oneSidedLocation is the credit given when only one posting has a
	// location.
	oneSidedLocation = 50
)

// MatchResult holds the per-field scores and the decision for one pair.
type MatchResult struct {
	Title     int
	Company   int
	Location  int
	Composite float64
	IsMatch   bool
}

// Match is a candidate that cleared every threshold.
type Match struct {
	Posting model.Posting
	Result  MatchResult
}

// CompareTitles scores two raw titles after normalization.
func CompareTitles(a, b string) int {
	return TokenSetRatio(normalize.NormalizeTitle(a), normalize.NormalizeTitle(b))
}

// CompareCompanies scores two raw company names, taking the better of the
// token-set and partial scores.
func CompareCompanies(a, b string) int {
	return compareNormalizedCompanies(normalize.NormalizeCompany(a), normalize.NormalizeCompany(b))
}

func compareNormalizedCompanies(a, b string) int {
	return max(TokenSetRatio(a, b), PartialRatio(a, b))
}

// CompareLocations scores two raw locations. Two unknown locations are a
// full match and one unknown location earns partial credit.
func CompareLocations(a, b string) int {
	return compareNormalizedLocations(normalize.NormalizeLocation(a), normalize.NormalizeLocation(b))
}

func compareNormalizedLocations(a, b string) int {
	switch {
	case a == "" && b == "":
		return 100
	case a == "" || b == "":
		return oneSidedLocation
	default:
		return TokenSetRatio(a, b)
	}
}

// Evaluate combines field scores into a MatchResult.
func Evaluate(title, company, location int) MatchResult {
	composite := float64(title)*TitleWeight + float64(company)*CompanyWeight + float64(location)*LocationWeight
	return MatchResult{
		Title:     title,
		Company:   company,
		Location:  location,
		Composite: composite,
		IsMatch:   title >= MinTitle && company >= MinCompany && composite >= MinComposite,
	}
}

// MatchJobs compares two postings on title, company and location.
func MatchJobs(a, b model.Posting) MatchResult {
	return keyOf(a).compare(keyOf(b))
}

// FindBestFuzzyMatch returns the highest-scoring candidate that matches
// target. Earlier candidates win ties.
func FindBestFuzzyMatch(target model.Posting, candidates []model.Posting) (Match, bool) {
	all := FindAllFuzzyMatches(target, candidates, 1)
	if len(all) == 0 {
		return Match{}, false
	}
	return all[0], true
}

// FindAllFuzzyMatches returns every matching candidate, best first, capped
// at limit. A limit of zero or less means no cap.
func FindAllFuzzyMatches(target model.Posting, candidates []model.Posting, limit int) []Match {
	tk := keyOf(target)

	var matches []Match
	for _, c := range candidates {
		res := tk.compare(keyOf(c))
		if res.IsMatch {
			matches = append(matches, Match{Posting: c, Result: res})
		}
	}

	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Result.Composite > matches[j].Result.Composite
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches
}

// key is a posting's normalized comparison fields.
type key struct {
	title, company, location string
}

func keyOf(p model.Posting) key {
	return key{
		title:    normalize.NormalizeTitle(p.Title),
		company:  normalize.NormalizeCompany(p.Company),
		location: normalize.NormalizeLocation(p.Location),
	}
}

func (k key) compare(o key) MatchResult {
	return Evaluate(
		TokenSetRatio(k.title, o.title),
		compareNormalizedCompanies(k.company, o.company),
		compareNormalizedLocations(k.location, o.location),
	)
}
