package ingest_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/dedup"
	"jobmate/ingestion-service/internal/ingest"
	"jobmate/ingestion-service/internal/model"
)

func TestCanonicalize(t *testing.T) {
	remote := false
	j := model.JobResult{
		ExternalID:   "42",
		Title:        "Senior Go Developer",
		Company:      "Acme SAS",
		Location:     "Paris, Ile-de-France (fully remote)",
		Description:  "<p>Build services with <b>Kubernetes</b> &amp; PostgreSQL.</p>",
		SalaryMin:    50000,
		Currency:     "EUR",
		SourceURL:    " https://jobs.example.com/42 ",
		ContractType: "Full-Time",
		PublishedAt:  T,
		Remote:       &remote,
	}

	p := ingest.Canonicalize(model.SourceAdzuna, j, now, 85)

	assert.Equal(t, "adzuna_42", p.ID)
	assert.Equal(t, "Build services with Kubernetes & PostgreSQL.", p.Description)
	assert.True(t, p.Remote, "location text overrides an explicit false")
	assert.Equal(t, "https://jobs.example.com/42", p.URL)
	assert.Equal(t, []string{"go", "kubernetes", "postgresql"}, p.Tags)
	assert.Equal(t, p.Tags, p.Skills)
	assert.Equal(t, "senior", p.ExperienceLevel)
	assert.Equal(t, "full_time", p.EmploymentType)
	require.NotNil(t, p.Salary)
	assert.Equal(t, 50000.0, p.Salary.Min)
	require.NotNil(t, p.LocationParsed)
	assert.Equal(t, "Paris", p.LocationParsed.City)
	assert.True(t, p.LocationParsed.Remote)
	assert.Equal(t, dedup.GenerateHash(p), p.ContentHash)
	assert.Equal(t, T, p.PostedAt)
	assert.Equal(t, now, p.FetchedAt)
	assert.Equal(t, 85, p.SourceReliability)
	assert.Greater(t, p.HealthScore, 0)
	assert.LessOrEqual(t, p.HealthScore, 95)
}

func TestCanonicalize_Defaults(t *testing.T) {
	j := model.JobResult{
		ExternalID: "7",
		Title:      "Designer",
		Company:    "Hooli",
		Tags:       []string{"Design", " design ", "Figma"},
	}
	p := ingest.Canonicalize(model.SourceArbeitnow, j, now, 75)

	assert.Equal(t, now, p.PostedAt, "missing publication time falls back to fetch time")
	assert.Equal(t, []string{"design", "figma"}, p.Tags)
	assert.Nil(t, p.Salary)
	assert.Nil(t, p.LocationParsed)
	assert.False(t, p.Remote)
	assert.Empty(t, p.EmploymentType)
}

func TestCanonicalize_DescriptionRemote(t *testing.T) {
	j := model.JobResult{ExternalID: "1", Title: "SRE", Company: "Initech", Location: "Berlin", Description: "Work from home anywhere in the EU."}
	assert.True(t, ingest.Canonicalize(model.SourceRemoteOK, j, now, 75).Remote)
}

func TestContainsRedFlag(t *testing.T) {
	p := model.Posting{Title: "Backend Engineer", Company: "MLM Ventures", Description: "Unpaid trial week"}
	tests := []struct {
		name  string
		flags []string
		want  bool
	}{
		{"no flags", nil, false},
		{"company match", []string{"mlm"}, true},
		{"description match", []string{"UNPAID"}, true},
		{"blank flags ignored", []string{"", "  "}, false},
		{"no match", []string{"crypto"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ingest.ContainsRedFlag(p, tt.flags))
		})
	}
}
