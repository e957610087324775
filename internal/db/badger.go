package db

import (
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"

	"jobmate/ingestion-service/internal/logging"
)

// BadgerConfig configures the embedded state database.
type BadgerConfig struct {
	Path     string
	InMemory bool

	// GCInterval enables periodic value-log GC. Zero disables it.
	GCInterval     time.Duration
	GCDiscardRatio float64
}

// badgerLogger routes badger's internal logging to zap.
type badgerLogger struct {
	log *logging.Logger
}

func (l badgerLogger) Errorf(format string, args ...any) {
	l.log.Error(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Warningf(format string, args ...any) {
	l.log.Warn(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Infof(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

func (l badgerLogger) Debugf(format string, args ...any) {
	l.log.Debug(fmt.Sprintf(format, args...))
}

// Badger is an open database plus its optional GC loop.
type Badger struct {
	*badger.DB

	stop chan struct{}
	done chan struct{}
	once sync.Once
}

// OpenBadger opens (creating if needed) a badger database.
func OpenBadger(cfg BadgerConfig, log *logging.Logger) (*Badger, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("badger: path is required for a persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0o750); err != nil {
			return nil, fmt.Errorf("create badger dir %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path).WithSyncWrites(true)
	}
	opts = opts.WithNumVersionsToKeep(1)
	if log != nil {
		opts = opts.WithLogger(badgerLogger{log: log.Component("badger")})
	} else {
		opts = opts.WithLogger(nil)
	}

	bdb, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger: %w", err)
	}

	b := &Badger{DB: bdb}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		ratio := cfg.GCDiscardRatio
		if ratio <= 0 || ratio >= 1 {
			ratio = 0.5
		}
		b.stop = make(chan struct{})
		b.done = make(chan struct{})
		go b.gcLoop(cfg.GCInterval, ratio, log)
	}
	return b, nil
}

func (b *Badger) gcLoop(interval time.Duration, ratio float64, log *logging.Logger) {
	defer close(b.done)
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-b.stop:
			return
		case <-ticker.C:
			err := b.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) && log != nil {
				log.Warn("badger value log GC failed", "error", err)
			}
		}
	}
}

// Close stops GC and closes the database.
func (b *Badger) Close() error {
	b.once.Do(func() {
		if b.stop != nil {
			close(b.stop)
			<-b.done
		}
	})
	return b.DB.Close()
}
