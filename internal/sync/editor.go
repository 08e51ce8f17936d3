package sync

import (
	"context"
	"log"
	"sync"
	"time"

	"picking-tracker-backend/internal/store"
)

// DefaultDebounce coalesces rapid keystrokes on one line into one write.
const DefaultDebounce = 250 * time.Millisecond

// Persister saves a line patch to the backend.
type Persister interface {
	UpdateLine(ctx context.Context, id string, patch store.LinePatch) (store.LineRecord, error)
}

// Editor is the optimistic edit queue. Edits hit the snapshot synchronously;
// persistence is debounced per line, each line on its own timer, so edits to
// one line never delay another line's write.
type Editor struct {
	snap      *Snapshot
	persister Persister
	debounce  time.Duration

	// onError is called (on the flush goroutine) when a write fails, with
	// the failing line id. Callers typically surface the message and do a
	// full reload; local state is not rolled back field by field.
	onError func(lineID string, err error)

	ctx    context.Context
	cancel context.CancelFunc

	mu      sync.Mutex
	pending map[string]*pendingEdit
	flushWG sync.WaitGroup
}

type pendingEdit struct {
	patch store.LinePatch
	timer *time.Timer
}

// EditorOption configures an Editor.
type EditorOption func(*Editor)

// WithDebounce overrides the debounce window.
func WithDebounce(d time.Duration) EditorOption {
	return func(e *Editor) { e.debounce = d }
}

// WithErrorHandler sets the write-failure callback.
func WithErrorHandler(fn func(lineID string, err error)) EditorOption {
	return func(e *Editor) { e.onError = fn }
}

// NewEditor creates an edit queue over the snapshot. ctx cancellation stops
// all future persistence.
func NewEditor(ctx context.Context, snap *Snapshot, persister Persister, opts ...EditorOption) *Editor {
	ctx, cancel := context.WithCancel(ctx)
	e := &Editor{
		snap:      snap,
		persister: persister,
		debounce:  DefaultDebounce,
		onError: func(lineID string, err error) {
			log.Printf("sync: failed to save line %s: %v", lineID, err)
		},
		ctx:     ctx,
		cancel:  cancel,
		pending: make(map[string]*pendingEdit),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Edit applies a patch optimistically and (re)arms the line's debounce
// timer. Within the window, later fields override earlier ones and only the
// coalesced patch is written.
func (e *Editor) Edit(lineID string, patch store.LinePatch) {
	if patch.Empty() {
		return
	}

	e.snap.ApplyPatch(lineID, patch)

	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ctx.Err() != nil {
		return
	}

	pe, ok := e.pending[lineID]
	if !ok {
		pe = &pendingEdit{}
		e.pending[lineID] = pe
	}
	if patch.PickerSet {
		pe.patch.Picker = patch.Picker
		pe.patch.PickerSet = true
	}
	if patch.Status != nil {
		pe.patch.Status = patch.Status
	}

	if pe.timer != nil {
		pe.timer.Stop()
	}
	pe.timer = time.AfterFunc(e.debounce, func() { e.flush(lineID) })
}

// PendingCount reports how many lines have an unsaved patch.
func (e *Editor) PendingCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// flush persists one line's coalesced patch.
func (e *Editor) flush(lineID string) {
	e.mu.Lock()
	pe, ok := e.pending[lineID]
	if !ok {
		e.mu.Unlock()
		return
	}
	delete(e.pending, lineID)
	patch := pe.patch
	e.flushWG.Add(1)
	e.mu.Unlock()
	defer e.flushWG.Done()

	if e.ctx.Err() != nil {
		return
	}

	rec, err := e.persister.UpdateLine(e.ctx, lineID, patch)
	if err != nil {
		if e.ctx.Err() == nil {
			e.onError(lineID, err)
		}
		return
	}
	// The server's row is the truth; keep the local store join it lacks.
	if e.ctx.Err() == nil {
		e.snap.ApplyServer(rec)
	}
}

// Flush persists every pending patch immediately and waits for in-flight
// writes. Call before discarding the editor so no edits are lost.
func (e *Editor) Flush() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.pending))
	for id, pe := range e.pending {
		if pe.timer != nil {
			pe.timer.Stop()
		}
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		e.flush(id)
	}
	e.flushWG.Wait()
}

// Close flushes pending edits and stops the editor.
func (e *Editor) Close() {
	e.Flush()
	e.cancel()
}
