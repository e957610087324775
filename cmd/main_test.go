package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/config"
	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
)

func TestHealthHandler(t *testing.T) {
	rec := httptest.NewRecorder()
	healthHandler(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, serviceName, body["service"])
}

func TestPipelineOptions(t *testing.T) {
	cfg := &config.Config{
		Sources: config.SourcesFile{
			RedFlags: []string{"crypto"},
			Sources: map[string]config.SourceConfig{
				"adzuna":     {Reliability: 90, Queries: []string{"golang"}},
				"hackernews": {ThreadIDs: []int64{42}},
			},
		},
	}
	opts := pipelineOptions(cfg, []model.Source{model.SourceAdzuna, model.SourceHackerNews, model.SourceRemoteOK})

	assert.Equal(t, []string{"crypto"}, opts.RedFlags)
	assert.Equal(t, 90, opts.Sources[model.SourceAdzuna].Reliability)
	assert.Equal(t, []string{"golang"}, opts.Sources[model.SourceAdzuna].Params.Queries)
	assert.Equal(t, []int64{42}, opts.Sources[model.SourceHackerNews].Params.ThreadIDs)
	assert.Contains(t, opts.Sources, model.SourceRemoteOK)
}

func TestBuildApp_Memory(t *testing.T) {
	no := false
	cfg := &config.Config{
		StateBackend: "memory",
		Sources: config.SourcesFile{Sources: map[string]config.SourceConfig{
			"remoteok": {Enabled: &no},
		}},
	}
	a, err := buildApp(context.Background(), cfg, logging.Nop())
	require.NoError(t, err)
	defer a.close()

	assert.Equal(t, []model.Source{model.SourceAdzuna, model.SourceArbeitnow, model.SourceHackerNews}, a.sources.Names())
	require.NoError(t, a.pipeline.SeedMeta(context.Background()))

	rec := httptest.NewRecorder()
	a.sourcesHandler(rec, httptest.NewRequest(http.MethodGet, "/sources", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var metas []model.SourceMeta
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &metas))
	assert.Len(t, metas, 3)
}
