package normalize

import (
	"regexp"
	"sort"
)

// techPatterns detect technologies mentioned in a title or description.
// Patterns are matched against the raw text so case-sensitive ones like Go
// do not fire on the verb "go".
var techPatterns = []struct {
	tag     string
	pattern *regexp.Regexp
}{
	{"typescript", regexp.MustCompile(`(?i)\btypescript\b`)},
	{"javascript", regexp.MustCompile(`(?i)\bjavascript\b`)},
	{"nodejs", regexp.MustCompile(`(?i)\bnode(?:\.?js)?\b`)},
	{"python", regexp.MustCompile(`(?i)\bpython\b`)},
	{"go", regexp.MustCompile(`(?i:\bgolang\b)|\bGo\b`)},
	{"rust", regexp.MustCompile(`(?i)\brust\b`)},
	{"java", regexp.MustCompile(`(?i)\bjava\b`)},
	{"kotlin", regexp.MustCompile(`(?i)\bkotlin\b`)},
	{"swift", regexp.MustCompile(`(?i)\bswift\b`)},
	{"ruby", regexp.MustCompile(`(?i)\bruby\b|\brails\b`)},
	{"php", regexp.MustCompile(`(?i)\bphp\b|\blaravel\b`)},
	{"csharp", regexp.MustCompile(`(?i)c#|\.net\b`)},
	{"cpp", regexp.MustCompile(`(?i)c\+\+`)},
	{"react", regexp.MustCompile(`(?i)\breact(?:\.?js)?\b`)},
	{"nextjs", regexp.MustCompile(`(?i)\bnext\.?js\b`)},
	{"vue", regexp.MustCompile(`(?i)\bvue(?:\.?js)?\b`)},
	{"angular", regexp.MustCompile(`(?i)\bangular\b`)},
	{"django", regexp.MustCompile(`(?i)\bdjango\b`)},
	{"fastapi", regexp.MustCompile(`(?i)\bfastapi\b`)},
	{"postgresql", regexp.MustCompile(`(?i)\bpostgres(?:ql)?\b`)},
	{"mysql", regexp.MustCompile(`(?i)\bmysql\b`)},
	{"mongodb", regexp.MustCompile(`(?i)\bmongo(?:db)?\b`)},
	{"redis", regexp.MustCompile(`(?i)\bredis\b`)},
	{"kafka", regexp.MustCompile(`(?i)\bkafka\b`)},
	{"graphql", regexp.MustCompile(`(?i)\bgraphql\b`)},
	{"aws", regexp.MustCompile(`(?i)\baws\b|\bamazon web services\b`)},
	{"gcp", regexp.MustCompile(`(?i)\bgcp\b|\bgoogle cloud\b`)},
	{"azure", regexp.MustCompile(`(?i)\bazure\b`)},
	{"docker", regexp.MustCompile(`(?i)\bdocker\b`)},
	{"kubernetes", regexp.MustCompile(`(?i)\bkubernetes\b|\bk8s\b`)},
	{"terraform", regexp.MustCompile(`(?i)\bterraform\b`)},
	{"machine-learning", regexp.MustCompile(`(?i)\bmachine learning\b|\bml\b`)},
}

// ExtractTags returns the sorted set of technology tags found in the texts.
func ExtractTags(texts ...string) []string {
	seen := make(map[string]bool)
	for _, text := range texts {
		if text == "" {
			continue
		}
		for _, tp := range techPatterns {
			if !seen[tp.tag] && tp.pattern.MatchString(text) {
				seen[tp.tag] = true
			}
		}
	}

	tags := make([]string, 0, len(seen))
	for t := range seen {
		tags = append(tags, t)
	}
	sort.Strings(tags)
	return tags
}
