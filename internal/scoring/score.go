// Package scoring computes the 0–100 health score used by dedup tie-breaks
// and retrieval ordering.
//
// Composition when source context is available:
//
//	freshness    0..40  40 * 0.5^(ageDays/7), rounded
//	completeness 0..30  description(12) location(8) salary(6) tags(4)
//	reliability  0..20  round(sourceReliability/5)
//	engagement   5      flat
//
// The maximum reachable score is therefore 95, not 100.
//
// Without source context the legacy freshness-only tiers apply.
package scoring

import (
	"math"
	"time"
	"unicode/utf8"

	"jobmate/ingestion-service/internal/model"
)

const (
	freshnessMax      = 40.0
	freshnessHalfLife = 7.0 // days
	engagementBase    = 5

	descriptionPoints = 12
	locationPoints    = 8
	salaryPoints      = 6
	tagPoints         = 4

	minDescriptionLen = 50
)

// DefaultReliability is the trust assigned to each known source when the
// sources file does not override it.
var DefaultReliability = map[model.Source]int{
	model.SourceAdzuna:     85,
	model.SourceArbeitnow:  75,
	model.SourceRemoteOK:   75,
	model.SourceHackerNews: 70,
}

// UnknownSourceReliability applies to sources missing from the table.
const UnknownSourceReliability = 50

// Completeness flags which optional parts of a posting are populated.
type Completeness struct {
	DescriptionLen int
	HasLocation    bool
	HasSalary      bool
	HasTags        bool
}

// Context carries the inputs of the composite score.
type Context struct {
	SourceReliability int // 0..100
	Completeness      Completeness
}

// Score returns the health score of a posting published at postedAt.
//
// Called as Score(postedAt) it returns the legacy freshness-only score.
// Called as Score(postedAt, ctx) it returns the composite score.
func Score(postedAt time.Time, ctx ...Context) int {
	return ScoreAt(time.Now(), postedAt, ctx...)
}

// ScoreAt is Score evaluated at an explicit instant.
func ScoreAt(now, postedAt time.Time, ctx ...Context) int {
	age := ageDays(now, postedAt)
	if len(ctx) == 0 {
		return legacyFreshness(age)
	}
	c := ctx[0]

	total := freshness(age) + completeness(c.Completeness) + reliability(c.SourceReliability) + engagementBase
	return clamp(total, 0, 100)
}

// CompletenessOf inspects a posting's optional fields.
func CompletenessOf(p model.Posting) Completeness {
	return Completeness{
		DescriptionLen: utf8.RuneCountInString(p.Description),
		HasLocation:    p.Location != "",
		HasSalary:      p.Salary != nil && (p.Salary.Min > 0 || p.Salary.Max > 0),
		HasTags:        len(p.Tags) > 0 || len(p.Skills) > 0,
	}
}

// Rescore recomputes the composite score of a stored posting at now, using
// the reliability it was first scored with. Postings without one keep their
// score.
func Rescore(now time.Time, p model.Posting) int {
	if p.SourceReliability <= 0 {
		return p.HealthScore
	}
	return ScoreAt(now, p.PostedAt, Context{
		SourceReliability: p.SourceReliability,
		Completeness:      CompletenessOf(p),
	})
}

// ReliabilityFor looks up a source in table, falling back to
// DefaultReliability and then UnknownSourceReliability.
func ReliabilityFor(src model.Source, table map[model.Source]int) int {
	if v, ok := table[src]; ok {
		return v
	}
	if v, ok := DefaultReliability[src]; ok {
		return v
	}
	return UnknownSourceReliability
}

func ageDays(now, postedAt time.Time) float64 {
	if postedAt.IsZero() {
		return math.Inf(1)
	}
	d := now.Sub(postedAt).Hours() / 24
	if d < 0 {
		return 0
	}
	return d
}

func freshness(age float64) int {
	v := int(math.Round(freshnessMax * math.Pow(0.5, age/freshnessHalfLife)))
	if v < 0 {
		return 0
	}
	return v
}

func completeness(c Completeness) int {
	pts := 0
	if c.DescriptionLen > minDescriptionLen {
		pts += descriptionPoints
	}
	if c.HasLocation {
		pts += locationPoints
	}
	if c.HasSalary {
		pts += salaryPoints
	}
	if c.HasTags {
		pts += tagPoints
	}
	return pts
}

func reliability(r int) int {
	r = clamp(r, 0, 100)
	return int(math.Round(float64(r) / 5))
}

// legacyTiers maps a maximum age in days to the score for that band.
var legacyTiers = []struct {
	maxDays float64
	score   int
}{
	{1, 100},
	{3, 90},
	{7, 80},
	{14, 65},
	{30, 45},
	{60, 25},
	{90, 10},
}

func legacyFreshness(age float64) int {
	for _, t := range legacyTiers {
		if age <= t.maxDays {
			return t.score
		}
	}
	return 0
}

func clamp(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
