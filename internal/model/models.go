// Package model defines shared data structures for the ingestion service.
package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// Source identifies an external job feed.
type Source string

const (
	SourceAdzuna     Source = "adzuna"
	SourceHackerNews Source = "hackernews"
	SourceArbeitnow  Source = "arbeitnow"
	SourceRemoteOK   Source = "remoteok"
)

// KnownSources lists every source the service can fetch from.
var KnownSources = []Source{SourceAdzuna, SourceHackerNews, SourceArbeitnow, SourceRemoteOK}

// ParseSource converts a raw string to a Source, returning an error for
// unknown values.
func ParseSource(s string) (Source, error) {
	for _, known := range KnownSources {
		if string(known) == s {
			return known, nil
		}
	}
	return "", fmt.Errorf("unknown source %q", s)
}

// Salary is the structured pay range of a posting.
type Salary struct {
	Min      float64 `json:"min,omitempty"`
	Max      float64 `json:"max,omitempty"`
	Currency string  `json:"currency,omitempty"`
	Period   string  `json:"period,omitempty"` // hourly, monthly, yearly
}

// ParsedLocation is the normalized location split into parts.
type ParsedLocation struct {
	City   string `json:"city,omitempty"`
	Region string `json:"region,omitempty"`
	Remote bool   `json:"remote"`
}

// Posting is the canonical, normalized job record. It is stored as JSON in
// the state store under its ID.
type Posting struct {
	ID          string    `json:"id" validate:"required"`
	Title       string    `json:"title" validate:"required"`
	Company     string    `json:"company" validate:"required"`
	Location    string    `json:"location,omitempty"`
	Remote      bool      `json:"remote"`
	URL         string    `json:"url" validate:"required,url"`
	Description string    `json:"description"`
	Tags        []string  `json:"tags"`
	Source      Source    `json:"source" validate:"required"`
	PostedAt    time.Time `json:"postedAt"`
	FetchedAt   time.Time `json:"fetchedAt"`

	HealthScore int    `json:"healthScore" validate:"gte=0,lte=100"`
	ContentHash string `json:"contentHash"`
	// SourceReliability is the trust the score was computed with; zero on
	// records scored without source context.
	SourceReliability int `json:"sourceReliability,omitempty" validate:"gte=0,lte=100"`

	// LastSeenAt is bumped when a duplicate re-confirms an existing record.
	LastSeenAt time.Time `json:"lastSeenAt,omitempty"`

	Salary          *Salary         `json:"salary,omitempty"`
	EmploymentType  string          `json:"employmentType,omitempty"`
	ExperienceLevel string          `json:"experienceLevel,omitempty"`
	Skills          []string        `json:"skills,omitempty"`
	LocationParsed  *ParsedLocation `json:"locationParsed,omitempty"`
}

// RawRecord is one unparsed item returned by a source fetch.
type RawRecord struct {
	Source  Source          `json:"source"`
	LocalID string          `json:"localId"`
	Payload json.RawMessage `json:"payload"`
}

// JobResult is an offer mapped from a source payload onto common field
// names, before cleanup, scoring and hashing.
type JobResult struct {
	ExternalID   string
	Title        string
	Company      string
	Location     string
	Description  string // may contain HTML
	SalaryMin    float64
	SalaryMax    float64
	Currency     string
	SourceURL    string
	ContractType string
	PublishedAt  time.Time
	Remote       *bool // nil when the source has no explicit flag
	Tags         []string
}

// FetchParams narrows a source fetch.
type FetchParams struct {
	Queries   []string
	Locations []string
	ThreadIDs []int64
}

// FetchResult is the outcome of one fetch call. Success=false is treated
// exactly like a returned error.
type FetchResult struct {
	Success           bool
	Records           []RawRecord
	Error             string
	RetryAfterSeconds int
}

// SourceStatus is the state of the last fetch attempt for a source.
type SourceStatus string

const (
	SourceStatusSuccess SourceStatus = "success"
	SourceStatusError   SourceStatus = "error"
	SourceStatusPending SourceStatus = "pending"
)

// SourceMeta is upserted after every fetch attempt; latest write wins.
type SourceMeta struct {
	Source            Source       `json:"source"`
	LastFetchAt       time.Time    `json:"lastFetchAt"`
	JobCount          int          `json:"jobCount"`
	Status            SourceStatus `json:"status"`
	Error             string       `json:"error,omitempty"`
	RetryAfterSeconds int          `json:"retryAfterSeconds,omitempty"`
	BreakerState      string       `json:"breakerState,omitempty"`
}

// EventJobDiscovered is the channel and type of new-posting notifications.
const EventJobDiscovered = "EVENT_JOB_DISCOVERED"

// NewPostingEvent is published once per admitted posting.
type NewPostingEvent struct {
	Type        string    `json:"type"`
	EventID     string    `json:"eventId"`
	EmittedAt   time.Time `json:"emittedAt"`
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Company     string    `json:"company"`
	Description string    `json:"description"`
	Location    string    `json:"location,omitempty"`
	Remote      bool      `json:"remote"`
	Tags        []string  `json:"tags"`
}

// SearchConfig is an active user search read from the search_configs table.
// Its job titles and locations widen the Adzuna queries of a cycle.
type SearchConfig struct {
	ID           string   `json:"id"`
	UserID       string   `json:"userId"`
	JobTitles    []string `json:"jobTitles"`
	Locations    []string `json:"locations"`
	RemotePolicy string   `json:"remotePolicy"`
	Keywords     []string `json:"keywords"`
	RedFlags     []string `json:"redFlags"`
	SalaryMin    *int     `json:"salaryMin,omitempty"`
	SalaryMax    *int     `json:"salaryMax,omitempty"`
}
