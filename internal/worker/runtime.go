package worker

import (
	"context"
	"sync"
	"time"
)

// Runtime abstracts the concurrency substrate workers run on. The worker
// loop itself is substrate-agnostic: only the spawn, the interruptible wait
// and the probe-slot acquisition differ between substrates.
type Runtime interface {
	// Spawn launches a worker body on the substrate
	Spawn(fn func())

	// Wait blocks for d and returns true, or returns false early when the
	// stop channel closes or the context ends
	Wait(ctx context.Context, d time.Duration, stop <-chan struct{}) bool

	// Acquire reserves a probe slot, returning its release func. Returns
	// ok=false when the context ended while waiting for a slot.
	Acquire(ctx context.Context) (release func(), ok bool)

	// Shutdown waits for all spawned workers to finish, bounded by the
	// timeout. Returns false when the timeout was hit with work in flight.
	Shutdown(timeout time.Duration) bool
}

// ThreadRuntime runs one goroutine per worker with blocking I/O throughout
// and no probe-slot limit.
type ThreadRuntime struct {
	wg sync.WaitGroup
}

// NewThreadRuntime creates the goroutine-per-worker substrate
func NewThreadRuntime() *ThreadRuntime {
	return &ThreadRuntime{}
}

func (r *ThreadRuntime) Spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

func (r *ThreadRuntime) Wait(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	return sleepOrCancel(ctx, d, stop)
}

func (r *ThreadRuntime) Acquire(ctx context.Context) (func(), bool) {
	return func() {}, true
}

func (r *ThreadRuntime) Shutdown(timeout time.Duration) bool {
	return waitGroupTimeout(&r.wg, timeout)
}

// PoolRuntime runs workers cooperatively: every worker still gets its own
// loop, but probes contend for a bounded slot pool so at most size checks
// run concurrently regardless of how many targets are live.
type PoolRuntime struct {
	wg  sync.WaitGroup
	sem chan struct{}
}

// NewPoolRuntime creates the cooperative substrate with the given probe
// slot count
func NewPoolRuntime(size int) *PoolRuntime {
	if size < 1 {
		size = 1
	}
	return &PoolRuntime{sem: make(chan struct{}, size)}
}

func (r *PoolRuntime) Spawn(fn func()) {
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		fn()
	}()
}

func (r *PoolRuntime) Wait(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	return sleepOrCancel(ctx, d, stop)
}

func (r *PoolRuntime) Acquire(ctx context.Context) (func(), bool) {
	select {
	case r.sem <- struct{}{}:
		return func() { <-r.sem }, true
	case <-ctx.Done():
		return nil, false
	}
}

func (r *PoolRuntime) Shutdown(timeout time.Duration) bool {
	return waitGroupTimeout(&r.wg, timeout)
}

// sleepOrCancel is the shared interruptible wait primitive: true means the
// full duration elapsed, false means stop or cancellation arrived first
func sleepOrCancel(ctx context.Context, d time.Duration, stop <-chan struct{}) bool {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return true
	case <-stop:
		return false
	case <-ctx.Done():
		return false
	}
}

func waitGroupTimeout(wg *sync.WaitGroup, timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
