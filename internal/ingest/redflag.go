package ingest

import (
	"strings"

	"jobmate/ingestion-service/internal/model"
)

// ContainsRedFlag reports whether any red flag term appears
// (case-insensitive) anywhere in the posting's title, company or
// description. Flagged postings are dropped before dedup.
func ContainsRedFlag(p model.Posting, redFlags []string) bool {
	if len(redFlags) == 0 {
		return false
	}
	combined := strings.ToLower(p.Title + " " + p.Company + " " + p.Description)
	for _, flag := range redFlags {
		flag = strings.TrimSpace(flag)
		if flag == "" {
			continue
		}
		if strings.Contains(combined, strings.ToLower(flag)) {
			return true
		}
	}
	return false
}
