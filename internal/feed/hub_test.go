package feed

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"picking-tracker-backend/internal/model"
	"picking-tracker-backend/internal/store"
)

func recvMessage(t *testing.T, ch chan Message) Message {
	t.Helper()
	select {
	case msg := <-ch:
		return msg
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for feed message")
		return Message{}
	}
}

func TestHubFiltersByRun(t *testing.T) {
	h := NewHub()
	h.Start()
	defer h.Stop()

	runA := h.Subscribe("run-a")
	runB := h.Subscribe("run-b")
	defer h.Unsubscribe(runA)
	defer h.Unsubscribe(runB)

	assert.Equal(t, 2, h.ClientCount())

	h.Broadcast(LineEvent{
		Type:  EventUpdate,
		RunID: "run-a",
		New:   &store.LineRecord{ID: "l1", RunID: "run-a", Status: model.StatusDone},
	})

	msg := recvMessage(t, runA)
	assert.Equal(t, LineEventName, msg.Event)

	var evt LineEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Data), &evt))
	assert.Equal(t, EventUpdate, evt.Type)
	require.NotNil(t, evt.New)
	assert.Equal(t, "l1", evt.New.ID)

	// The other run's subscriber sees nothing.
	select {
	case msg := <-runB:
		t.Fatalf("unexpected message for run-b: %+v", msg)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestHubStripsStoreJoin(t *testing.T) {
	h := NewHub()
	h.Start()
	defer h.Stop()

	ch := h.Subscribe("run-a")
	defer h.Unsubscribe(ch)

	rec := store.LineRecord{
		ID:    "l1",
		RunID: "run-a",
		Store: &store.StoreRef{ID: "s1", Code: "S1", Name: "Store S1"},
	}
	h.Broadcast(LineEvent{Type: EventInsert, RunID: "run-a", New: &rec})

	msg := recvMessage(t, ch)
	var evt LineEvent
	require.NoError(t, json.Unmarshal([]byte(msg.Data), &evt))
	require.NotNil(t, evt.New)
	assert.Nil(t, evt.New.Store)

	// The caller's record is untouched.
	assert.NotNil(t, rec.Store)
}

func TestHubKeepalive(t *testing.T) {
	h := NewHub()
	h.keepalive = 20 * time.Millisecond
	h.Start()
	defer h.Stop()

	ch := h.Subscribe("run-a")
	defer h.Unsubscribe(ch)

	msg := recvMessage(t, ch)
	assert.Equal(t, KeepaliveName, msg.Event)
	assert.Equal(t, "ping", msg.Data)
}

func TestHubStopsWhileBusy(t *testing.T) {
	h := NewHub()
	h.keepalive = 20 * time.Millisecond
	h.Start()

	ch := h.Subscribe("run-a")
	defer h.Unsubscribe(ch)

	// Stop lands while the loop is churning through a broadcast burst. The
	// signal must not be lost, and a second Stop must be a no-op.
	for i := 0; i < 500; i++ {
		h.Broadcast(LineEvent{Type: EventUpdate, RunID: "run-a"})
	}
	h.Stop()
	h.Stop()

	// Drain whatever was delivered before the stop took effect; once the
	// loop is gone the keepalive goes silent.
	for draining := true; draining; {
		select {
		case <-ch:
		case <-time.After(100 * time.Millisecond):
			draining = false
		}
	}
	select {
	case msg := <-ch:
		t.Fatalf("hub still running after Stop, got %q", msg.Event)
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHubDropsWhenSubscriberFull(t *testing.T) {
	h := NewHub()
	h.Start()
	defer h.Stop()

	ch := h.Subscribe("run-a")
	defer h.Unsubscribe(ch)

	// More events than the subscriber buffer holds; Broadcast must not block.
	done := make(chan struct{})
	go func() {
		for i := 0; i < 500; i++ {
			h.Broadcast(LineEvent{Type: EventUpdate, RunID: "run-a"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast blocked on a full subscriber")
	}
}
