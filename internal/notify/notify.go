// Package notify emits one event per newly admitted posting.
package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"jobmate/ingestion-service/internal/logging"
	"jobmate/ingestion-service/internal/model"
)

// Notifier receives admitted postings. Duplicates that were kept or
// replaced are never passed in.
type Notifier interface {
	NotifyNewPosting(ctx context.Context, p model.Posting) error
}

// NewEvent builds the event published for p.
func NewEvent(p model.Posting, now time.Time) model.NewPostingEvent {
	tags := p.Tags
	if tags == nil {
		tags = []string{}
	}
	return model.NewPostingEvent{
		Type:        model.EventJobDiscovered,
		EventID:     uuid.NewString(),
		EmittedAt:   now.UTC(),
		ID:          p.ID,
		Title:       p.Title,
		Company:     p.Company,
		Description: p.Description,
		Location:    p.Location,
		Remote:      p.Remote,
		Tags:        tags,
	}
}

// RedisPublisher publishes events as JSON on a Redis pub/sub channel.
type RedisPublisher struct {
	rdb     *redis.Client
	channel string
	log     *logging.Logger
}

// NewRedisPublisher publishes on channel, or EVENT_JOB_DISCOVERED when empty.
func NewRedisPublisher(rdb *redis.Client, channel string, log *logging.Logger) *RedisPublisher {
	if channel == "" {
		channel = model.EventJobDiscovered
	}
	if log == nil {
		log = logging.Nop()
	}
	return &RedisPublisher{rdb: rdb, channel: channel, log: log.Component("notify")}
}

func (r *RedisPublisher) NotifyNewPosting(ctx context.Context, p model.Posting) error {
	ev := NewEvent(p, time.Now())
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	receivers, err := r.rdb.Publish(ctx, r.channel, payload).Result()
	if err != nil {
		return fmt.Errorf("publish %s: %w", r.channel, err)
	}
	r.log.Debug("event published", "channel", r.channel, "job", p.ID, "event", ev.EventID, "receivers", receivers)
	return nil
}

// LogNotifier only logs. Used when no Redis is configured.
type LogNotifier struct {
	log *logging.Logger
}

func NewLogNotifier(log *logging.Logger) *LogNotifier {
	if log == nil {
		log = logging.Nop()
	}
	return &LogNotifier{log: log.Component("notify")}
}

func (l *LogNotifier) NotifyNewPosting(_ context.Context, p model.Posting) error {
	l.log.Info("new posting", "job", p.ID, "title", p.Title, "company", p.Company)
	return nil
}
