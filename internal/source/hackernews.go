package source

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/normalize"
)

const (
	hnBaseURL           = "https://hacker-news.firebaseio.com/v0"
	hnItemURL           = "https://news.ycombinator.com/item?id="
	hnHiringUser        = "whoishiring"
	hnDefaultLimit      = 30
	hnMaxSubmissions    = 12
	hnCommentWorkers    = 8
	hnMaxCompanyLen     = 100
	hnMaxTitleLen       = 200
	hnMaxLocationLen    = 100
	hnMaxDescription    = 500
	hnDefaultCompany    = "Unknown Company"
	hnDefaultTitle      = "Software Engineer"
	hnDefaultLocation   = "Remote"
	hnHiringTitlePhrase = "who is hiring"
)

// HackerNews reads top-level comments of the monthly "Who is hiring" thread.
// Each comment is one posting whose first line reads
// "Company | Role | Location | ...".
type HackerNews struct {
	BaseURL string

	client *http.Client
	log    *logging.Logger
}

// NewHackerNews constructs the HN source.
func NewHackerNews(log *logging.Logger) *HackerNews {
	if log == nil {
		log = logging.Nop()
	}
	return &HackerNews{
		BaseURL: hnBaseURL,
		client:  newHTTPClient(),
		log:     log.Component("hackernews"),
	}
}

func (h *HackerNews) Name() model.Source { return model.SourceHackerNews }

type hnItem struct {
	ID      int64   `json:"id"`
	By      string  `json:"by,omitempty"`
	Type    string  `json:"type,omitempty"`
	Title   string  `json:"title,omitempty"`
	Text    string  `json:"text,omitempty"`
	Time    int64   `json:"time,omitempty"`
	Kids    []int64 `json:"kids,omitempty"`
	Deleted bool    `json:"deleted,omitempty"`
	Dead    bool    `json:"dead,omitempty"`
}

type hnUser struct {
	ID        string  `json:"id"`
	Submitted []int64 `json:"submitted"`
}

// Fetch reads the first thread in params.ThreadIDs, or the latest hiring
// thread when none is configured. Comments that fail to load are skipped.
func (h *HackerNews) Fetch(ctx context.Context, params model.FetchParams, limit int) (model.FetchResult, error) {
	if limit <= 0 {
		limit = hnDefaultLimit
	}

	var threadID int64
	if len(params.ThreadIDs) > 0 {
		threadID = params.ThreadIDs[0]
	} else {
		id, err := h.latestThread(ctx)
		if err != nil {
			return model.FetchResult{}, err
		}
		threadID = id
	}

	var thread hnItem
	if err := getJSON(ctx, h.client, model.SourceHackerNews, h.itemURL(threadID), &thread); err != nil {
		return model.FetchResult{}, fmt.Errorf("hackernews thread %d: %w", threadID, err)
	}
	if len(thread.Kids) == 0 {
		h.log.Warn("thread has no comments", "thread", threadID)
		return model.FetchResult{Success: true}, nil
	}

	kids := thread.Kids
	if len(kids) > limit {
		kids = kids[:limit]
	}
	h.log.Info("processing thread", "thread", threadID, "comments", len(kids))

	comments := make([]*hnItem, len(kids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(hnCommentWorkers)
	var skipped sync.Map
	for i, id := range kids {
		g.Go(func() error {
			var c hnItem
			if err := getJSON(gctx, h.client, model.SourceHackerNews, h.itemURL(id), &c); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				skipped.Store(id, err)
				return nil
			}
			comments[i] = &c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return model.FetchResult{}, fmt.Errorf("hackernews comments: %w", err)
	}
	skipped.Range(func(k, v any) bool {
		h.log.Warn("failed to fetch comment", "comment", k, "error", v)
		return true
	})

	records := make([]model.RawRecord, 0, len(comments))
	for _, c := range comments {
		if c == nil || c.Deleted || c.Dead || c.Text == "" {
			continue
		}
		rec, err := rawRecord(model.SourceHackerNews, strconv.FormatInt(c.ID, 10), c)
		if err != nil {
			return model.FetchResult{}, err
		}
		records = append(records, rec)
	}
	return model.FetchResult{Success: true, Records: records}, nil
}

// latestThread finds the newest "Who is hiring" story among the hiring
// account's recent submissions.
func (h *HackerNews) latestThread(ctx context.Context) (int64, error) {
	var user hnUser
	if err := getJSON(ctx, h.client, model.SourceHackerNews, h.BaseURL+"/user/"+hnHiringUser+".json", &user); err != nil {
		return 0, fmt.Errorf("hackernews user %s: %w", hnHiringUser, err)
	}

	subs := user.Submitted
	if len(subs) > hnMaxSubmissions {
		subs = subs[:hnMaxSubmissions]
	}
	for _, id := range subs {
		var item hnItem
		if err := getJSON(ctx, h.client, model.SourceHackerNews, h.itemURL(id), &item); err != nil {
			return 0, fmt.Errorf("hackernews item %d: %w", id, err)
		}
		if item.Type == "story" && strings.Contains(strings.ToLower(item.Title), hnHiringTitlePhrase) {
			return item.ID, nil
		}
	}
	return 0, fmt.Errorf("hackernews: no hiring thread among the last %d submissions", len(subs))
}

func (h *HackerNews) itemURL(id int64) string {
	return fmt.Sprintf("%s/item/%d.json", h.BaseURL, id)
}

// Map parses the comment header. Comments without at least
// "Company | Role" are malformed.
func (h *HackerNews) Map(raw model.RawRecord) (model.JobResult, error) {
	var c hnItem
	if err := decodePayload(raw, &c); err != nil {
		return model.JobResult{}, err
	}
	if c.Text == "" {
		return model.JobResult{}, malformed(raw, "empty comment")
	}

	header, _, _ := strings.Cut(c.Text, "<p>")
	parts := strings.Split(normalize.StripHTML(header), "|")
	if len(parts) < 2 {
		return model.JobResult{}, malformed(raw, "no company | role header")
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}

	company := orDefault(parts[0], hnDefaultCompany)
	title := orDefault(parts[1], hnDefaultTitle)
	location := hnDefaultLocation
	if len(parts) > 2 && parts[2] != "" {
		location = parts[2]
	}

	published := time.Now().UTC()
	if c.Time > 0 {
		published = time.Unix(c.Time, 0).UTC()
	}

	var remote *bool
	if strings.EqualFold(location, "remote") {
		remote = boolPtr(true)
	}

	id := strconv.FormatInt(c.ID, 10)
	return model.JobResult{
		ExternalID:  id,
		Title:       normalize.Truncate(title, hnMaxTitleLen),
		Company:     normalize.Truncate(company, hnMaxCompanyLen),
		Location:    normalize.Truncate(location, hnMaxLocationLen),
		Description: normalize.Truncate(normalize.StripHTML(c.Text), hnMaxDescription),
		SourceURL:   hnItemURL + id,
		PublishedAt: published,
		Remote:      remote,
	}, nil
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
