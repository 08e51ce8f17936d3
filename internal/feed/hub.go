package feed

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"picking-tracker-backend/internal/store"
)

// EventType mirrors the row-change kind delivered to subscribers.
type EventType string

const (
	EventInsert EventType = "INSERT"
	EventUpdate EventType = "UPDATE"
	EventDelete EventType = "DELETE"
)

// LineEvent is one row change on picking_lines. New carries the row after an
// insert/update, Old the row before an update/delete. Feed payloads never
// include the joined store display fields.
type LineEvent struct {
	Type  EventType         `json:"type"`
	RunID string            `json:"run_id"`
	New   *store.LineRecord `json:"new,omitempty"`
	Old   *store.LineRecord `json:"old,omitempty"`
}

// Message is one wire-level SSE frame handed to a subscriber.
type Message struct {
	Event string
	Data  string
}

// LineEventName is the SSE event name for row changes; KeepaliveName is sent
// periodically so proxies keep the stream open.
const (
	LineEventName = "line"
	KeepaliveName = "keepalive"
)

// Hub fans row-change events out to subscribers, each filtered to a single
// run. Broadcasting never blocks a writer; slow subscribers drop frames.
type Hub struct {
	mu        sync.RWMutex
	clients   map[chan Message]string // value is the run_id filter
	broadcast chan LineEvent
	stopChan  chan struct{}
	stopOnce  sync.Once

	keepalive time.Duration
}

// NewHub creates a hub. Call Start before broadcasting.
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[chan Message]string),
		broadcast: make(chan LineEvent, 256),
		stopChan:  make(chan struct{}),
		keepalive: 30 * time.Second,
	}
}

func (h *Hub) Start() {
	go h.run()
}

// Stop terminates the fan-out loop. Safe to call more than once; the signal
// is never lost even when the loop is busy broadcasting.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() { close(h.stopChan) })
}

func (h *Hub) run() {
	keepalive := time.NewTicker(h.keepalive)
	defer keepalive.Stop()

	for {
		select {
		case <-h.stopChan:
			return
		case evt := <-h.broadcast:
			data, err := json.Marshal(evt)
			if err != nil {
				log.Printf("feed: marshal event: %v", err)
				continue
			}
			msg := Message{Event: LineEventName, Data: string(data)}
			h.mu.RLock()
			for ch, runID := range h.clients {
				if runID != evt.RunID {
					continue
				}
				select {
				case ch <- msg:
				default:
					// drop if full
				}
			}
			h.mu.RUnlock()
		case <-keepalive.C:
			h.mu.RLock()
			for ch := range h.clients {
				select {
				case ch <- Message{Event: KeepaliveName, Data: "ping"}:
				default:
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Broadcast queues a row-change event for fan-out. The joined store display
// fields are stripped here so no query path leaks them onto the feed.
func (h *Hub) Broadcast(evt LineEvent) {
	if evt.New != nil {
		stripped := *evt.New
		stripped.Store = nil
		evt.New = &stripped
	}
	if evt.Old != nil {
		stripped := *evt.Old
		stripped.Store = nil
		evt.Old = &stripped
	}
	select {
	case h.broadcast <- evt:
	default:
	}
}

// Subscribe registers a client for one run's events.
func (h *Hub) Subscribe(runID string) chan Message {
	ch := make(chan Message, 64)
	h.mu.Lock()
	h.clients[ch] = runID
	h.mu.Unlock()
	return ch
}

// Unsubscribe removes a client and closes its channel.
func (h *Hub) Unsubscribe(ch chan Message) {
	h.mu.Lock()
	delete(h.clients, ch)
	h.mu.Unlock()
	close(ch)
}

// ClientCount reports the number of connected subscribers.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
