package ingest

import (
	"fmt"
	"strings"
	"time"

	"jobmate/ingestion-service/internal/dedup"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/normalize"
	"jobmate/ingestion-service/internal/scoring"
)

const (
	maxTitleLen       = 300
	maxCompanyLen     = 200
	maxLocationLen    = 200
	maxDescriptionLen = 20000
)

// Canonicalize turns a mapped source offer into a stored posting: cleaned
// text, derived remote flag, tags and levels, health score and content hash.
// fetchedAt doubles as the publication time when the source gives none.
func Canonicalize(src model.Source, job model.JobResult, fetchedAt time.Time, reliability int) model.Posting {
	title := normalize.Truncate(normalize.StripHTML(job.Title), maxTitleLen)
	company := normalize.Truncate(normalize.StripHTML(job.Company), maxCompanyLen)
	location := normalize.Truncate(normalize.StripHTML(job.Location), maxLocationLen)
	description := normalize.Truncate(normalize.StripHTML(job.Description), maxDescriptionLen)

	remote := normalize.IsRemote(location) || normalize.IsRemote(description)
	if job.Remote != nil && *job.Remote {
		remote = true
	}

	skills := normalize.ExtractTags(title, description)
	tags := cleanTags(job.Tags)
	if len(tags) == 0 {
		tags = skills
	}

	posted := job.PublishedAt.UTC()
	if job.PublishedAt.IsZero() {
		posted = fetchedAt.UTC()
	}

	p := model.Posting{
		ID:              fmt.Sprintf("%s_%s", src, job.ExternalID),
		Title:           title,
		Company:         company,
		Location:        location,
		Remote:          remote,
		URL:             strings.TrimSpace(job.SourceURL),
		Description:     description,
		Tags:            tags,
		Source:          src,
		PostedAt:        posted,
		FetchedAt:       fetchedAt.UTC(),
		LastSeenAt:      fetchedAt.UTC(),
		EmploymentType:  employmentType(job.ContractType),
		ExperienceLevel: normalize.ExperienceLevel(title),
		Skills:          skills,
		LocationParsed:  parseLocation(location, remote),

		SourceReliability: reliability,
	}
	if job.SalaryMin > 0 || job.SalaryMax > 0 {
		p.Salary = &model.Salary{Min: job.SalaryMin, Max: job.SalaryMax, Currency: job.Currency}
	}

	p.ContentHash = dedup.GenerateHash(p)
	p.HealthScore = scoring.ScoreAt(fetchedAt, p.PostedAt, scoring.Context{
		SourceReliability: reliability,
		Completeness:      scoring.CompletenessOf(p),
	})
	return p
}

func cleanTags(in []string) []string {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

// employmentType folds the sources' contract spellings onto one vocabulary.
func employmentType(raw string) string {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.NewReplacer("-", "_", " ", "_").Replace(s)
	switch s {
	case "":
		return ""
	case "full_time", "fulltime", "permanent", "berufserfahren":
		return "full_time"
	case "part_time", "parttime":
		return "part_time"
	case "contract", "contractor", "freelance":
		return "contract"
	case "internship", "intern", "praktikum":
		return "internship"
	default:
		return s
	}
}

// parseLocation splits "City, Region" display strings.
func parseLocation(location string, remote bool) *model.ParsedLocation {
	if location == "" && !remote {
		return nil
	}
	pl := &model.ParsedLocation{Remote: remote}
	parts := strings.Split(location, ",")
	if city := strings.TrimSpace(parts[0]); city != "" && !normalize.IsRemote(city) {
		pl.City = city
	}
	if len(parts) > 1 {
		pl.Region = strings.TrimSpace(parts[1])
	}
	return pl
}
