// Package source fetches raw job records from external feeds and maps them
// onto common field names.
package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"jobmate/ingestion-service/internal/model"
)

const (
	httpTimeout  = 15 * time.Second
	maxBodyBytes = 8 << 20
	userAgent    = "jobmate-ingestion/1.0 (+https://jobmate.app)"
)

// Source is one external job feed.
type Source interface {
	Name() model.Source

	// Fetch returns at most limit raw records. A failed fetch returns an
	// error; partial results are never returned alongside one.
	Fetch(ctx context.Context, params model.FetchParams, limit int) (model.FetchResult, error)

	// Map converts one raw record into a JobResult.
	Map(raw model.RawRecord) (model.JobResult, error)
}

// ErrCredentialsMissing is returned by sources that need API keys.
var ErrCredentialsMissing = errors.New("credentials missing")

// ErrMalformedRecord wraps per-record mapping failures.
var ErrMalformedRecord = errors.New("malformed record")

// StatusError is a non-2xx HTTP response.
type StatusError struct {
	Source     model.Source
	StatusCode int
	Body       string
	RetryAfter int // seconds, from the Retry-After header
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s returned %d: %s", e.Source, e.StatusCode, e.Body)
}

// RetryAfterSeconds extracts the server's back-off hint from err, or 0.
func RetryAfterSeconds(err error) int {
	var se *StatusError
	if errors.As(err, &se) {
		return se.RetryAfter
	}
	return 0
}

func newHTTPClient() *http.Client {
	return &http.Client{Timeout: httpTimeout}
}

// getJSON performs a GET and decodes a JSON body into out.
func getJSON(ctx context.Context, client *http.Client, src model.Source, reqURL string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return err
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", userAgent)

	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("http GET: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return fmt.Errorf("read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet := string(body)
		if len(snippet) > 200 {
			snippet = snippet[:200]
		}
		return &StatusError{
			Source:     src,
			StatusCode: resp.StatusCode,
			Body:       snippet,
			RetryAfter: parseRetryAfter(resp.Header.Get("Retry-After")),
		}
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("json unmarshal: %w", err)
	}
	return nil
}

// parseRetryAfter accepts delta-seconds or an HTTP date.
func parseRetryAfter(v string) int {
	if v == "" {
		return 0
	}
	if n, err := strconv.Atoi(v); err == nil && n > 0 {
		return n
	}
	if t, err := http.ParseTime(v); err == nil {
		if d := time.Until(t); d > 0 {
			return int(d.Round(time.Second) / time.Second)
		}
	}
	return 0
}

func rawRecord(src model.Source, localID string, v any) (model.RawRecord, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return model.RawRecord{}, err
	}
	return model.RawRecord{Source: src, LocalID: localID, Payload: b}, nil
}

func decodePayload(raw model.RawRecord, out any) error {
	if err := json.Unmarshal(raw.Payload, out); err != nil {
		return fmt.Errorf("%w: %s %s: %v", ErrMalformedRecord, raw.Source, raw.LocalID, err)
	}
	return nil
}

func malformed(raw model.RawRecord, reason string) error {
	return fmt.Errorf("%w: %s %s: %s", ErrMalformedRecord, raw.Source, raw.LocalID, reason)
}

func boolPtr(b bool) *bool { return &b }
