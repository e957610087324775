// Package config loads and validates environment variables at startup.
// Fail-fast: if a variable is missing or malformed, the process exits.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/store"
)

// Config holds all runtime configuration for the ingestion service.
type Config struct {
	Port                string
	GRPCPort            string
	DatabaseURL         string
	RedisURL            string
	StateBackend        string // memory, redis, postgres, badger
	StatePrefix         string // redis key prefix
	BadgerPath          string
	AdzunaAppID         string
	AdzunaAppKey        string
	AdzunaCountry       string // e.g. "fr", "gb", "us"
	ScrapeIntervalHours int    // How often the cron job fires
	LogLevel            string
	FetchTimeout        time.Duration
	SourceStagger       time.Duration
	FuzzyWindow         int
	NotifyChannel       string
	SourcesFile         string

	Sources SourcesFile
}

// SourcesFile is the optional YAML file named by SOURCES_FILE.
//
//	red_flags: [crypto, "unpaid"]
//	sources:
//	  adzuna:
//	    reliability: 85
//	    queries: [golang, backend]
//	    locations: [Paris]
//	  hackernews:
//	    thread_ids: [43547611]
//	  remoteok:
//	    enabled: false
type SourcesFile struct {
	RedFlags []string                `yaml:"red_flags"`
	Sources  map[string]SourceConfig `yaml:"sources" validate:"dive"`
}

// SourceConfig tunes one source. Omitted fields keep their defaults.
type SourceConfig struct {
	Enabled     *bool    `yaml:"enabled"`
	Reliability int      `yaml:"reliability" validate:"gte=0,lte=100"`
	Limit       int      `yaml:"limit" validate:"gte=0,lte=1000"`
	Queries     []string `yaml:"queries" validate:"dive,max=200"`
	Locations   []string `yaml:"locations" validate:"dive,max=200"`
	ThreadIDs   []int64  `yaml:"thread_ids" validate:"dive,gt=0"`
	RedFlags    []string `yaml:"red_flags"`
}

// Load reads environment variables and returns a validated Config.
func Load() (*Config, error) {
	interval, err := intEnv("SCRAPE_INTERVAL_HOURS", 6, 1)
	if err != nil {
		return nil, err
	}
	timeout, err := intEnv("FETCH_TIMEOUT_SECONDS", 30, 1)
	if err != nil {
		return nil, err
	}
	stagger, err := intEnv("SOURCE_STAGGER_MS", 500, 0)
	if err != nil {
		return nil, err
	}
	window, err := intEnv("FUZZY_WINDOW", 500, 1)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Port:                envOr("DISCOVERY_PORT", "8081"),
		GRPCPort:            envOr("GRPC_PORT", "9091"),
		DatabaseURL:         os.Getenv("DATABASE_URL"),
		RedisURL:            os.Getenv("REDIS_URL"),
		StateBackend:        os.Getenv("STATE_BACKEND"),
		StatePrefix:         envOr("STATE_PREFIX", "ingest"),
		BadgerPath:          envOr("BADGER_PATH", "./data/badger"),
		AdzunaAppID:         os.Getenv("ADZUNA_APP_ID"),
		AdzunaAppKey:        os.Getenv("ADZUNA_APP_KEY"),
		AdzunaCountry:       envOr("ADZUNA_COUNTRY", "fr"),
		ScrapeIntervalHours: interval,
		LogLevel:            envOr("LOG_LEVEL", "info"),
		FetchTimeout:        time.Duration(timeout) * time.Second,
		SourceStagger:       time.Duration(stagger) * time.Millisecond,
		FuzzyWindow:         window,
		NotifyChannel:       envOr("NOTIFY_CHANNEL", model.EventJobDiscovered),
		SourcesFile:         os.Getenv("SOURCES_FILE"),
	}

	if cfg.StateBackend == "" {
		cfg.StateBackend = store.BackendMemory
		if cfg.RedisURL != "" {
			cfg.StateBackend = store.BackendRedis
		}
	}
	switch cfg.StateBackend {
	case store.BackendMemory, store.BackendBadger:
	case store.BackendRedis:
		if cfg.RedisURL == "" {
			return nil, fmt.Errorf("REDIS_URL is required for STATE_BACKEND=redis")
		}
	case store.BackendPostgres:
		if cfg.DatabaseURL == "" {
			return nil, fmt.Errorf("DATABASE_URL is required for STATE_BACKEND=postgres")
		}
	default:
		return nil, &store.UnknownBackendError{Name: cfg.StateBackend}
	}

	if cfg.SourcesFile != "" {
		sf, err := LoadSourcesFile(cfg.SourcesFile)
		if err != nil {
			return nil, err
		}
		cfg.Sources = sf
	}

	return cfg, nil
}

// LoadSourcesFile parses and validates a sources YAML file. Unknown keys and
// unknown source names are errors.
func LoadSourcesFile(path string) (SourcesFile, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return SourcesFile{}, fmt.Errorf("read %s: %w", path, err)
	}

	var sf SourcesFile
	dec := yaml.NewDecoder(bytes.NewReader(raw))
	dec.KnownFields(true)
	if err := dec.Decode(&sf); err != nil && !errors.Is(err, io.EOF) {
		return SourcesFile{}, fmt.Errorf("parse %s: %w", path, err)
	}

	for name := range sf.Sources {
		if _, err := model.ParseSource(name); err != nil {
			return SourcesFile{}, fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := validator.New().Struct(sf); err != nil {
		return SourcesFile{}, fmt.Errorf("%s: %w", path, err)
	}
	return sf, nil
}

// SourceEnabled reports whether src should be fetched. Sources are enabled
// unless the sources file says otherwise.
func (c *Config) SourceEnabled(src model.Source) bool {
	sc, ok := c.Sources.Sources[string(src)]
	if !ok || sc.Enabled == nil {
		return true
	}
	return *sc.Enabled
}

// Source returns the file settings for src, zero when absent.
func (c *Config) Source(src model.Source) SourceConfig {
	return c.Sources.Sources[string(src)]
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func intEnv(key string, def, min int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	v, err := strconv.Atoi(s)
	if err != nil || v < min {
		return 0, fmt.Errorf("%s must be an integer >= %d, got %q", key, min, s)
	}
	return v, nil
}
