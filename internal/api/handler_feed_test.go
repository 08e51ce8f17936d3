package api

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/store"
)

func TestStreamFeed_RequiresRunID(t *testing.T) {
	r, _, _ := setupRouter(t)
	cookies := login(t, r)

	w := doJSON(r, http.MethodGet, "/api/feed", nil, cookies)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestStreamFeed_DeliversEvents(t *testing.T) {
	r, _, hub := setupRouter(t)
	cookies := login(t, r)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/feed?run_id=run-1", nil).WithContext(ctx)
	for _, c := range cookies {
		req.AddCookie(c)
	}
	w := httptest.NewRecorder()

	done := make(chan struct{})
	go func() {
		r.ServeHTTP(w, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 },
		2*time.Second, 10*time.Millisecond)

	hub.Broadcast(feed.LineEvent{
		Type:  feed.EventUpdate,
		RunID: "run-1",
		New:   &store.LineRecord{ID: "l1", RunID: "run-1"},
	})

	// Give the stream a moment to write the frame, then disconnect.
	time.Sleep(200 * time.Millisecond)
	cancel()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after the client disconnected")
	}

	assert.Equal(t, "text/event-stream", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.Contains(t, body, "event: "+feed.LineEventName)
	assert.Contains(t, body, `"l1"`)
	assert.Equal(t, 0, hub.ClientCount())
}
