package notify

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"propwatch/server/internal/models"
)

func testLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func testListings(n int) []models.Listing {
	out := make([]models.Listing, n)
	for i := range out {
		price := 100000 + i
		out[i] = models.Listing{
			Title:   "Listing " + string(rune('A'+i)),
			Address: "Adeje",
			Source:  "Test",
			Link:    "https://example.com/" + string(rune('a'+i)),
			Price:   &price,
		}
	}
	return out
}

func newTestDispatcher(endpoint string) *Dispatcher {
	d := NewDispatcher(Config{
		BotToken: "token",
		ChatID:   "chat",
		Pacing:   time.Millisecond,
	}, testLogger())
	d.endpoint = endpoint
	return d
}

func TestNotifyDeliversAllListings(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		var payload map[string]interface{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		assert.Equal(t, "chat", payload["chat_id"])
		assert.Equal(t, "HTML", payload["parse_mode"])
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := newTestDispatcher(server.URL)
	delivered := d.Notify(context.Background(), testListings(3))
	assert.Equal(t, 3, delivered)
	assert.EqualValues(t, 3, calls.Load())
}

func TestNotifySurvivesMidBatchFailure(t *testing.T) {
	var calls atomic.Int32
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// The third send fails; the rest succeed.
		if calls.Add(1) == 3 {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := newTestDispatcher(server.URL)
	delivered := d.Notify(context.Background(), testListings(5))
	assert.Equal(t, 4, delivered)
	assert.EqualValues(t, 5, calls.Load())
}

func TestNotifyFallsBackWhenUnconfigured(t *testing.T) {
	d := NewDispatcher(Config{}, testLogger())
	delivered := d.Notify(context.Background(), testListings(2))
	assert.Equal(t, 0, delivered)
	assert.False(t, d.Configured())
}

func TestNotifyBatchGrouping(t *testing.T) {
	var bodies []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]interface{}
		json.NewDecoder(r.Body).Decode(&payload)
		bodies = append(bodies, payload["text"].(string))
		w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	d := NewDispatcher(Config{
		BotToken:  "token",
		ChatID:    "chat",
		Pacing:    time.Millisecond,
		BatchSize: 2,
	}, testLogger())
	d.endpoint = server.URL

	delivered := d.Notify(context.Background(), testListings(5))
	assert.Equal(t, 5, delivered)
	require.Len(t, bodies, 3)
	assert.Equal(t, 2, strings.Count(bodies[0], "Source: Test"))
	assert.Equal(t, 1, strings.Count(bodies[2], "Source: Test"))
}

func TestRenderListing(t *testing.T) {
	price := 250000
	msg := RenderListing(models.Listing{
		Title:   "Villa in Adeje",
		Address: "Calle Mayor 1",
		Source:  "Kyero",
		Link:    "https://example.com/v",
		Price:   &price,
	})
	assert.Contains(t, msg, "<b>250000€</b>")
	assert.Contains(t, msg, "Villa in Adeje")
	assert.Contains(t, msg, "Source: Kyero")

	// Missing price renders as a question mark, not zero.
	msg = RenderListing(models.Listing{Title: "No price"})
	assert.Contains(t, msg, "<b>?€</b>")
}
