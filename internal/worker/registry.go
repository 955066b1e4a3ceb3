package worker

import (
	"errors"
	"sync"

	"github.com/upmon/upmon/internal/alert"
	"github.com/upmon/upmon/internal/model"
)

// ErrDuplicateWorker is returned when a worker is already registered for
// a target ID
var ErrDuplicateWorker = errors.New("worker already registered for target")

// Handle is the registry's view of one live worker: its target snapshot,
// its alert state and its stop/done signalling
type Handle struct {
	Target *model.Target
	State  *alert.State

	stop     chan struct{}
	done     chan struct{}
	stopOnce sync.Once
}

// NewHandle creates a handle for a worker about to start
func NewHandle(target *model.Target, state *alert.State) *Handle {
	return &Handle{
		Target: target,
		State:  state,
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// SignalStop asks the worker to stop after any in-flight check finishes.
// Safe to call more than once.
func (h *Handle) SignalStop() {
	h.stopOnce.Do(func() { close(h.stop) })
}

// Stopping returns the channel closed by SignalStop
func (h *Handle) Stopping() <-chan struct{} { return h.stop }

// Done returns the channel closed when the worker has fully exited
func (h *Handle) Done() <-chan struct{} { return h.done }

// Registry tracks the live worker per target ID. Its mutex covers only map
// mutation: no I/O and no per-target business logic ever runs under it, so
// reconciliation stays O(changed targets).
type Registry struct {
	mu      sync.Mutex
	workers map[int64]*Handle
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{workers: make(map[int64]*Handle)}
}

// Register inserts the handle, failing if a worker is already live for the
// target. This is the invariant that makes rapid enable/disable toggling
// safe: at most one worker per target ID, ever.
func (r *Registry) Register(h *Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.workers[h.Target.ID]; exists {
		return ErrDuplicateWorker
	}
	r.workers[h.Target.ID] = h
	return nil
}

// Deregister removes the worker for the target ID, if it is the given
// handle. A stale worker exiting late cannot evict its replacement.
func (r *Registry) Deregister(h *Handle) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if current, ok := r.workers[h.Target.ID]; ok && current == h {
		delete(r.workers, h.Target.ID)
	}
}

// Get returns the live handle for a target ID
func (r *Registry) Get(targetID int64) (*Handle, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	h, ok := r.workers[targetID]
	return h, ok
}

// Snapshot returns a copy of the live worker map
func (r *Registry) Snapshot() map[int64]*Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	snapshot := make(map[int64]*Handle, len(r.workers))
	for id, h := range r.workers {
		snapshot[id] = h
	}
	return snapshot
}

// Len returns the number of live workers
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.workers)
}
