package source

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"jobmate/ingestion-service/internal/model"
)

const (
	adzunaBaseURL  = "https://api.adzuna.com/v1/api/jobs"
	adzunaPageSize = 50
	adzunaMaxPages = 3 // max 150 results per (query × location) pair
)

// Adzuna fetches offers from the Adzuna search API, one paged search per
// (query × location) pair.
type Adzuna struct {
	AppID   string
	AppKey  string
	Country string // "fr", "gb", "us", …
	BaseURL string

	client *http.Client
}

// NewAdzuna constructs an Adzuna source with a shared HTTP client.
func NewAdzuna(appID, appKey, country string) *Adzuna {
	if country == "" {
		country = "fr"
	}
	return &Adzuna{
		AppID:   appID,
		AppKey:  appKey,
		Country: country,
		BaseURL: adzunaBaseURL,
		client:  newHTTPClient(),
	}
}

func (a *Adzuna) Name() model.Source { return model.SourceAdzuna }

type adzunaResponse struct {
	Results []adzunaResult `json:"results"`
	Count   int            `json:"count"`
}

type adzunaResult struct {
	ID           string         `json:"id"`
	Title        string         `json:"title"`
	Description  string         `json:"description"`
	Company      adzunaCompany  `json:"company"`
	Location     adzunaLocation `json:"location"`
	SalaryMin    float64        `json:"salary_min"`
	SalaryMax    float64        `json:"salary_max"`
	RedirectURL  string         `json:"redirect_url"`
	Created      string         `json:"created"`
	ContractTime string         `json:"contract_time"`
	ContractType string         `json:"contract_type"`
}

type adzunaCompany struct {
	DisplayName string `json:"display_name"`
}

type adzunaLocation struct {
	DisplayName string `json:"display_name"`
}

// Fetch searches every (query × location) pair until limit records are
// collected. Without credentials it fails with ErrCredentialsMissing so the
// source metadata shows why nothing was fetched.
func (a *Adzuna) Fetch(ctx context.Context, params model.FetchParams, limit int) (model.FetchResult, error) {
	if a.AppID == "" || a.AppKey == "" {
		return model.FetchResult{}, fmt.Errorf("adzuna: %w (ADZUNA_APP_ID / ADZUNA_APP_KEY)", ErrCredentialsMissing)
	}

	queries := params.Queries
	if len(queries) == 0 {
		queries = []string{""}
	}
	locations := params.Locations
	if len(locations) == 0 {
		locations = []string{""}
	}

	seen := make(map[string]bool)
	var records []model.RawRecord

	for _, q := range queries {
		for _, loc := range locations {
			for page := 1; page <= adzunaMaxPages; page++ {
				batch, err := a.fetchPage(ctx, q, loc, page)
				if err != nil {
					return model.FetchResult{}, fmt.Errorf("adzuna (%q, %q) page %d: %w", q, loc, page, err)
				}
				for _, r := range batch {
					if seen[r.ID] {
						continue
					}
					seen[r.ID] = true
					rec, err := rawRecord(model.SourceAdzuna, r.ID, r)
					if err != nil {
						return model.FetchResult{}, err
					}
					records = append(records, rec)
					if limit > 0 && len(records) >= limit {
						return model.FetchResult{Success: true, Records: records}, nil
					}
				}
				if len(batch) < adzunaPageSize {
					break // last page
				}
			}
		}
	}

	return model.FetchResult{Success: true, Records: records}, nil
}

func (a *Adzuna) fetchPage(ctx context.Context, query, location string, page int) ([]adzunaResult, error) {
	endpoint := fmt.Sprintf("%s/%s/search/%d", a.BaseURL, a.Country, page)

	params := url.Values{}
	params.Set("app_id", a.AppID)
	params.Set("app_key", a.AppKey)
	params.Set("results_per_page", strconv.Itoa(adzunaPageSize))
	if query != "" {
		params.Set("what", query)
	}
	if location != "" {
		params.Set("where", location)
	}
	params.Set("content-type", "application/json")
	params.Set("sort_by", "date")

	var resp adzunaResponse
	if err := getJSON(ctx, a.client, model.SourceAdzuna, endpoint+"?"+params.Encode(), &resp); err != nil {
		return nil, err
	}
	return resp.Results, nil
}

func (a *Adzuna) Map(raw model.RawRecord) (model.JobResult, error) {
	var r adzunaResult
	if err := decodePayload(raw, &r); err != nil {
		return model.JobResult{}, err
	}
	if r.ID == "" || r.Title == "" {
		return model.JobResult{}, malformed(raw, "missing id or title")
	}

	var published time.Time
	if r.Created != "" {
		t, err := time.Parse(time.RFC3339, r.Created)
		if err != nil {
			return model.JobResult{}, malformed(raw, "bad created timestamp "+strconv.Quote(r.Created))
		}
		published = t
	}

	contract := r.ContractTime
	if contract == "" {
		contract = r.ContractType
	}

	return model.JobResult{
		ExternalID:   r.ID,
		Title:        r.Title,
		Company:      r.Company.DisplayName,
		Location:     r.Location.DisplayName,
		Description:  r.Description,
		SalaryMin:    r.SalaryMin,
		SalaryMax:    r.SalaryMax,
		Currency:     adzunaCurrency(a.Country),
		SourceURL:    r.RedirectURL,
		ContractType: contract,
		PublishedAt:  published,
	}, nil
}

func adzunaCurrency(country string) string {
	switch country {
	case "gb":
		return "GBP"
	case "us":
		return "USD"
	case "ca":
		return "CAD"
	case "au":
		return "AUD"
	case "in":
		return "INR"
	case "pl":
		return "PLN"
	case "br":
		return "BRL"
	default:
		return "EUR"
	}
}
