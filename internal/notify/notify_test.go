package notify_test

import (
	"context"
	"encoding/json"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobmate/ingestion-service/internal/db"
	"jobmate/ingestion-service/internal/model"
	"jobmate/ingestion-service/internal/notify"
)

func posting() model.Posting {
	return model.Posting{
		ID:          "remoteok_42",
		Title:       "Go Developer",
		Company:     "Acme",
		Description: "Build services",
		Location:    "Remote",
		Remote:      true,
		Source:      model.SourceRemoteOK,
	}
}

func TestNewEvent(t *testing.T) {
	now := time.Date(2026, 5, 1, 12, 0, 0, 0, time.FixedZone("CEST", 2*3600))
	ev := notify.NewEvent(posting(), now)

	assert.Equal(t, model.EventJobDiscovered, ev.Type)
	assert.NotEmpty(t, ev.EventID)
	assert.Equal(t, now.UTC(), ev.EmittedAt)
	assert.Equal(t, "remoteok_42", ev.ID)
	assert.True(t, ev.Remote)
	assert.NotNil(t, ev.Tags, "tags serialize as [] rather than null")

	other := notify.NewEvent(posting(), now)
	assert.NotEqual(t, ev.EventID, other.EventID)
}

func TestLogNotifier(t *testing.T) {
	assert.NoError(t, notify.NewLogNotifier(nil).NotifyNewPosting(context.Background(), posting()))
}

func TestRedisPublisher(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	ctx := context.Background()
	rdb, err := db.NewRedisClient(ctx, url)
	require.NoError(t, err)
	defer rdb.Close()

	channel := "test_" + model.EventJobDiscovered
	sub := rdb.Subscribe(ctx, channel)
	defer sub.Close()
	_, err = sub.Receive(ctx)
	require.NoError(t, err)

	require.NoError(t, notify.NewRedisPublisher(rdb, channel, nil).NotifyNewPosting(ctx, posting()))

	select {
	case msg := <-sub.Channel():
		var ev model.NewPostingEvent
		require.NoError(t, json.Unmarshal([]byte(msg.Payload), &ev))
		assert.Equal(t, "remoteok_42", ev.ID)
		assert.Equal(t, model.EventJobDiscovered, ev.Type)
	case <-time.After(5 * time.Second):
		t.Fatal("no event received")
	}
}
