// Package normalize canonicalizes job titles, company names and locations
// so that formatting, word order and level annotations do not defeat
// duplicate detection.
//
// Every function is pure, case-insensitive, collapses whitespace, maps ""
// to "" and is idempotent: f(f(x)) == f(x).
package normalize

import (
	"regexp"
	"strings"
)

// maxPasses bounds the fixpoint loop. Real inputs settle in one or two.
const maxPasses = 4

var (
	nonAlnum         = regexp.MustCompile(`[^\p{L}\p{N}]+`)
	levelPhrase      = regexp.MustCompile(`\b(?:(?:mid|entry)\s+level|level\s+\d+)\b`)
	levelCode        = regexp.MustCompile(`^l\d$`)
	locationNoise    = regexp.MustCompile(`[^\p{L}\p{N}, ]+`)
	locationSplitter = regexp.MustCompile(`\s+[-–—]\s+|[()|;/•]`)
	remotePhrase     = regexp.MustCompile(`100% remote|fully remote|remote[- ]first|work from home|\bwfh\b|\banywhere\b|\bdistributed\b|\btelecommut\w*`)
)

// ── titles ────────────────────────────────────────────────────────────────

var titleSymbols = strings.NewReplacer(
	"c++", " cpp ",
	"c#", " csharp ",
	".net", " dotnet ",
	"node.js", " nodejs ",
)

// seniorityTokens are dropped from titles before comparison.
var seniorityTokens = map[string]bool{
	"sr": true, "senior": true, "jr": true, "junior": true,
	"mid": true, "midlevel": true, "entry": true,
	"lead": true, "principal": true, "staff": true,
	"i": true, "ii": true, "iii": true, "iv": true, "v": true, "vi": true, "vii": true,
}

var trailingLevelDigits = map[string]bool{"1": true, "2": true, "3": true, "4": true, "5": true}

type synonym struct {
	pattern *regexp.Regexp
	repl    string
}

// titleSynonyms run in order on the space-separated token string.
var titleSynonyms = []synonym{
	{regexp.MustCompile(`\bsoftware development engineer\b`), "engineer"},
	{regexp.MustCompile(`\bsoftware (?:engineering|engineer|developer)\b`), "engineer"},
	{regexp.MustCompile(`\b(?:swe|sde|eng|engr)\b`), "engineer"},
	{regexp.MustCompile(`\bfront end\b`), "frontend"},
	{regexp.MustCompile(`\bback end\b`), "backend"},
	{regexp.MustCompile(`\bfull stack\b`), "fullstack"},
	{regexp.MustCompile(`\bdev ops\b`), "devops"},
	{regexp.MustCompile(`\b(?:ui ux|ux ui|uxui)\b`), "uiux"},
	{regexp.MustCompile(`\b(?:product mgr|prod mgr|prod manager|product management)\b`), "product manager"},
}

// NormalizeTitle strips seniority and level annotations and unifies common
// role synonyms: "Sr. Software Engineer II" and "Engineer" normalize alike.
func NormalizeTitle(s string) string {
	return fixpoint(s, normalizeTitleOnce)
}

func normalizeTitleOnce(s string) string {
	s = strings.ToLower(s)
	s = titleSymbols.Replace(s)
	s = nonAlnum.ReplaceAllString(s, " ")
	s = levelPhrase.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	kept := tokens[:0]
	for _, tok := range tokens {
		if seniorityTokens[tok] || levelCode.MatchString(tok) {
			continue
		}
		kept = append(kept, tok)
	}
	for len(kept) > 1 && trailingLevelDigits[kept[len(kept)-1]] {
		kept = kept[:len(kept)-1]
	}

	s = strings.Join(kept, " ")
	for _, syn := range titleSynonyms {
		s = syn.pattern.ReplaceAllString(s, syn.repl)
	}
	return collapse(s)
}

// seniorityLevels maps title tokens to an experience level, strongest first.
var seniorityLevels = []struct {
	tokens []string
	level  string
}{
	{[]string{"principal"}, "principal"},
	{[]string{"staff"}, "staff"},
	{[]string{"lead"}, "lead"},
	{[]string{"senior", "sr", "iii", "iv", "v"}, "senior"},
	{[]string{"mid", "midlevel", "ii"}, "mid"},
	{[]string{"junior", "jr", "entry", "i"}, "junior"},
	{[]string{"intern", "internship"}, "intern"},
}

// ExperienceLevel reports the seniority a raw title announces, or "" when it
// carries no level annotation.
func ExperienceLevel(title string) string {
	fields := strings.Fields(nonAlnum.ReplaceAllString(strings.ToLower(title), " "))
	present := make(map[string]bool, len(fields))
	for _, f := range fields {
		present[f] = true
	}
	for _, lvl := range seniorityLevels {
		for _, tok := range lvl.tokens {
			if present[tok] {
				return lvl.level
			}
		}
	}
	return ""
}

// ── companies ─────────────────────────────────────────────────────────────

var companyPunct = strings.NewReplacer(".", "", "'", "", "’", "", "&", " and ")

// companySuffixes are legal-entity and filler words stripped from the end.
var companySuffixes = map[string]bool{
	"inc": true, "incorporated": true, "llc": true, "ltd": true, "limited": true,
	"corp": true, "corporation": true, "co": true, "company": true, "plc": true,
	"gmbh": true, "ag": true, "sa": true, "bv": true, "nv": true, "pty": true,
	"holdings": true, "holding": true, "group": true,
	"technologies": true, "technology": true, "tech": true,
	"solutions": true, "services": true, "systems": true, "software": true, "labs": true,
	"and": true,
}

// NormalizeCompany drops a leading "the" and trailing legal-entity suffixes:
// "The Acme Group, Inc." normalizes to "acme". A name made only of suffix
// words keeps its first word.
func NormalizeCompany(s string) string {
	return fixpoint(s, normalizeCompanyOnce)
}

func normalizeCompanyOnce(s string) string {
	s = strings.ToLower(s)
	s = companyPunct.Replace(s)
	s = nonAlnum.ReplaceAllString(s, " ")

	tokens := strings.Fields(s)
	for len(tokens) > 1 && tokens[0] == "the" {
		tokens = tokens[1:]
	}
	for len(tokens) > 1 && companySuffixes[tokens[len(tokens)-1]] {
		tokens = tokens[:len(tokens)-1]
	}
	return strings.Join(tokens, " ")
}

// ── locations ─────────────────────────────────────────────────────────────

var locativePrefixes = []string{
	"located in ", "located at ", "based in ", "based at ", "based out of ", "location ",
}

// NormalizeLocation folds remote synonyms into "remote", expands US state
// abbreviations, drops locative prefixes and joins parts with ", ".
func NormalizeLocation(s string) string {
	return fixpoint(s, normalizeLocationOnce)
}

func normalizeLocationOnce(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	s = remotePhrase.ReplaceAllString(s, " remote ")
	s = locationSplitter.ReplaceAllString(s, ",")
	s = locationNoise.ReplaceAllString(s, " ")

	var parts []string
	for _, raw := range strings.Split(s, ",") {
		part := normalizeLocationPart(raw)
		if part == "" {
			continue
		}
		if n := len(parts); n > 0 && parts[n-1] == part {
			continue
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, ", ")
}

func normalizeLocationPart(part string) string {
	part = collapse(part)
	for stripped := true; stripped; {
		stripped = false
		for _, p := range locativePrefixes {
			if strings.HasPrefix(part, p) {
				part = strings.TrimSpace(strings.TrimPrefix(part, p))
				stripped = true
			}
		}
	}

	tokens := strings.Fields(part)
	if n := len(tokens); n > 0 {
		if name, ok := usStates[tokens[n-1]]; ok {
			tokens[n-1] = name
		}
	}

	deduped := tokens[:0]
	for _, tok := range tokens {
		if n := len(deduped); n > 0 && deduped[n-1] == tok {
			continue
		}
		deduped = append(deduped, tok)
	}
	return strings.Join(deduped, " ")
}

// IsRemote reports whether free text announces a remote position.
func IsRemote(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)
	return remotePhrase.MatchString(lower) || strings.Contains(lower, "remote")
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func fixpoint(s string, once func(string) string) string {
	if s == "" {
		return ""
	}
	for i := 0; i < maxPasses; i++ {
		next := once(s)
		if next == s {
			return next
		}
		s = next
	}
	return s
}
