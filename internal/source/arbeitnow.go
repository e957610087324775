package source

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"jobmate/ingestion-service/internal/model"
)

const (
	arbeitnowBaseURL  = "https://www.arbeitnow.com/api/job-board-api"
	arbeitnowMaxPages = 3
)

// Arbeitnow reads the public Arbeitnow job board API.
type Arbeitnow struct {
	BaseURL string

	client *http.Client
}

// NewArbeitnow constructs the Arbeitnow source.
func NewArbeitnow() *Arbeitnow {
	return &Arbeitnow{BaseURL: arbeitnowBaseURL, client: newHTTPClient()}
}

func (a *Arbeitnow) Name() model.Source { return model.SourceArbeitnow }

type arbeitnowResponse struct {
	Data  []arbeitnowJob `json:"data"`
	Links struct {
		Next *string `json:"next"`
	} `json:"links"`
}

type arbeitnowJob struct {
	Slug        string   `json:"slug"`
	CompanyName string   `json:"company_name"`
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Remote      bool     `json:"remote"`
	URL         string   `json:"url"`
	Tags        []string `json:"tags"`
	JobTypes    []string `json:"job_types"`
	Location    string   `json:"location"`
	CreatedAt   int64    `json:"created_at"`
}

// Fetch walks result pages until limit records or the last page.
func (a *Arbeitnow) Fetch(ctx context.Context, _ model.FetchParams, limit int) (model.FetchResult, error) {
	var records []model.RawRecord
	for page := 1; page <= arbeitnowMaxPages; page++ {
		var resp arbeitnowResponse
		if err := getJSON(ctx, a.client, model.SourceArbeitnow, fmt.Sprintf("%s?page=%d", a.BaseURL, page), &resp); err != nil {
			return model.FetchResult{}, fmt.Errorf("arbeitnow page %d: %w", page, err)
		}
		for _, j := range resp.Data {
			rec, err := rawRecord(model.SourceArbeitnow, j.Slug, j)
			if err != nil {
				return model.FetchResult{}, err
			}
			records = append(records, rec)
			if limit > 0 && len(records) >= limit {
				return model.FetchResult{Success: true, Records: records}, nil
			}
		}
		if len(resp.Data) == 0 || resp.Links.Next == nil || *resp.Links.Next == "" {
			break
		}
	}
	return model.FetchResult{Success: true, Records: records}, nil
}

func (a *Arbeitnow) Map(raw model.RawRecord) (model.JobResult, error) {
	var j arbeitnowJob
	if err := decodePayload(raw, &j); err != nil {
		return model.JobResult{}, err
	}
	if j.Slug == "" || j.Title == "" {
		return model.JobResult{}, malformed(raw, "missing slug or title")
	}

	var published time.Time
	if j.CreatedAt > 0 {
		published = time.Unix(j.CreatedAt, 0).UTC()
	}
	var contract string
	if len(j.JobTypes) > 0 {
		contract = j.JobTypes[0]
	}

	return model.JobResult{
		ExternalID:   j.Slug,
		Title:        j.Title,
		Company:      j.CompanyName,
		Location:     j.Location,
		Description:  j.Description,
		SourceURL:    j.URL,
		ContractType: contract,
		PublishedAt:  published,
		Remote:       boolPtr(j.Remote),
		Tags:         j.Tags,
	}, nil
}
