package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"jobmate/ingestion-service/internal/model"
)

const remoteOKBaseURL = "https://remoteok.com/api"

// RemoteOK reads the RemoteOK JSON feed. The first array element is a legal
// notice, not a job.
type RemoteOK struct {
	BaseURL string

	client *http.Client
}

// NewRemoteOK constructs the RemoteOK source.
func NewRemoteOK() *RemoteOK {
	return &RemoteOK{BaseURL: remoteOKBaseURL, client: newHTTPClient()}
}

func (r *RemoteOK) Name() model.Source { return model.SourceRemoteOK }

// flexID accepts ids encoded as either JSON strings or numbers.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*f = flexID(s)
		return nil
	}
	if string(b) == "null" {
		*f = ""
		return nil
	}
	*f = flexID(b)
	return nil
}

type remoteOKJob struct {
	ID          flexID   `json:"id"`
	Slug        string   `json:"slug,omitempty"`
	Epoch       int64    `json:"epoch,omitempty"`
	Date        string   `json:"date,omitempty"`
	Company     string   `json:"company,omitempty"`
	Position    string   `json:"position,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	Description string   `json:"description,omitempty"`
	Location    string   `json:"location,omitempty"`
	SalaryMin   float64  `json:"salary_min,omitempty"`
	SalaryMax   float64  `json:"salary_max,omitempty"`
	URL         string   `json:"url,omitempty"`
	ApplyURL    string   `json:"apply_url,omitempty"`
	Legal       string   `json:"legal,omitempty"`
}

func (r *RemoteOK) Fetch(ctx context.Context, params model.FetchParams, limit int) (model.FetchResult, error) {
	var jobs []remoteOKJob
	if err := getJSON(ctx, r.client, model.SourceRemoteOK, r.BaseURL, &jobs); err != nil {
		return model.FetchResult{}, fmt.Errorf("remoteok: %w", err)
	}

	var records []model.RawRecord
	for _, j := range jobs {
		if j.Legal != "" || j.ID == "" || j.Position == "" {
			continue
		}
		if !matchesAnyQuery(j, params.Queries) {
			continue
		}
		rec, err := rawRecord(model.SourceRemoteOK, string(j.ID), j)
		if err != nil {
			return model.FetchResult{}, err
		}
		records = append(records, rec)
		if limit > 0 && len(records) >= limit {
			break
		}
	}
	return model.FetchResult{Success: true, Records: records}, nil
}

// matchesAnyQuery filters the feed locally since RemoteOK has no search.
func matchesAnyQuery(j remoteOKJob, queries []string) bool {
	if len(queries) == 0 {
		return true
	}
	hay := strings.ToLower(j.Position + " " + strings.Join(j.Tags, " "))
	for _, q := range queries {
		if q == "" || strings.Contains(hay, strings.ToLower(q)) {
			return true
		}
	}
	return false
}

func (r *RemoteOK) Map(raw model.RawRecord) (model.JobResult, error) {
	var j remoteOKJob
	if err := decodePayload(raw, &j); err != nil {
		return model.JobResult{}, err
	}
	if j.ID == "" || j.Position == "" {
		return model.JobResult{}, malformed(raw, "missing id or position")
	}

	var published time.Time
	switch {
	case j.Epoch > 0:
		published = time.Unix(j.Epoch, 0).UTC()
	case j.Date != "":
		t, err := time.Parse(time.RFC3339, j.Date)
		if err != nil {
			return model.JobResult{}, malformed(raw, "bad date "+j.Date)
		}
		published = t.UTC()
	}

	link := j.URL
	if link == "" {
		link = j.ApplyURL
	}

	return model.JobResult{
		ExternalID:  string(j.ID),
		Title:       j.Position,
		Company:     j.Company,
		Location:    j.Location,
		Description: j.Description,
		SalaryMin:   j.SalaryMin,
		SalaryMax:   j.SalaryMax,
		Currency:    "USD",
		SourceURL:   link,
		PublishedAt: published,
		Remote:      boolPtr(true),
		Tags:        j.Tags,
	}, nil
}
