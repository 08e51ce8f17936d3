package api

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picking-tracker-backend/internal/feed"
	"picking-tracker-backend/internal/model"
	"picking-tracker-backend/internal/store"
)

type linesResponse struct {
	Run   model.Run          `json:"run"`
	Title string             `json:"title"`
	Lines []store.LineRecord `json:"lines"`
}

func TestGetLines(t *testing.T) {
	r, st, _ := setupRouter(t)
	cookies := login(t, r)

	seedStore(t, st, 2, "S1")
	seedStore(t, st, 2, "S2")

	w := doJSON(r, http.MethodGet, "/api/lines?date=2024-06-04&weekday=2", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var resp linesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, "2024-06-04", resp.Run.RunDate)
	assert.Equal(t, "Picking – Dinsdag 2024-06-04", resp.Title)
	require.Len(t, resp.Lines, 4)
	for _, l := range resp.Lines {
		assert.Equal(t, model.StatusPending, l.Status)
		require.NotNil(t, l.Store)
	}

	// Same call again: same run, same four lines.
	w = doJSON(r, http.MethodGet, "/api/lines?date=2024-06-04&weekday=2", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var second linesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	assert.Equal(t, resp.Run.ID, second.Run.ID)
	assert.Len(t, second.Lines, 4)
}

func TestGetLines_BroadcastsCreatedLines(t *testing.T) {
	r, st, hub := setupRouter(t)
	cookies := login(t, r)
	seedStore(t, st, 2, "S1")

	w := doJSON(r, http.MethodGet, "/api/lines?date=2024-06-04&weekday=2", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var resp linesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Lines, 2)

	// A subscriber is already watching the run when the template grows by
	// one store; the reload's backfilled lines must reach it as inserts.
	feedCh := hub.Subscribe(resp.Run.ID)
	defer hub.Unsubscribe(feedCh)
	seedStore(t, st, 2, "S2")

	w = doJSON(r, http.MethodGet, "/api/lines?date=2024-06-04&weekday=2", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)
	var second linesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &second))
	require.Len(t, second.Lines, 4)

	got := make(map[string]feed.EventType, 2)
	for i := 0; i < 2; i++ {
		select {
		case msg := <-feedCh:
			require.Equal(t, feed.LineEventName, msg.Event)
			var evt feed.LineEvent
			require.NoError(t, json.Unmarshal([]byte(msg.Data), &evt))
			require.NotNil(t, evt.New)
			assert.Equal(t, resp.Run.ID, evt.RunID)
			assert.Nil(t, evt.New.Store)
			got[evt.New.ID] = evt.Type
		case <-time.After(2 * time.Second):
			t.Fatal("timed out waiting for insert events on the feed")
		}
	}
	require.Len(t, got, 2)
	for _, typ := range got {
		assert.Equal(t, feed.EventInsert, typ)
	}
}

func TestGetLines_EmptyTemplate(t *testing.T) {
	r, st, _ := setupRouter(t)
	cookies := login(t, r)

	seedStore(t, st, 2, "S1") // only Tuesday has stores

	w := doJSON(r, http.MethodGet, "/api/lines?date=2024-06-07&weekday=5", nil, cookies)
	require.Equal(t, http.StatusOK, w.Code)

	var resp linesResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Lines)

	var count int64
	require.NoError(t, st.DB().Model(&model.Line{}).Count(&count).Error)
	assert.Equal(t, int64(0), count)
}

func TestGetLines_Validation(t *testing.T) {
	r, _, _ := setupRouter(t)
	cookies := login(t, r)

	for _, path := range []string{
		"/api/lines?date=junk&weekday=2",
		"/api/lines?date=2024-06-04&weekday=1",
		"/api/lines?date=2024-06-04&weekday=6",
		"/api/lines?date=2024-06-04&weekday=abc",
	} {
		w := doJSON(r, http.MethodGet, path, nil, cookies)
		assert.Equal(t, http.StatusBadRequest, w.Code, path)
	}
}
