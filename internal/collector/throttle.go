package collector

import (
	"context"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
)

// CallLedger holds the process-wide call counters shared by every sweep.
//
// It is an injected handle, not package state: the executor and throttle
// both increment it, the final summary reads it.
type CallLedger struct {
	totalCalls        atomic.Int64
	callsSinceBarrier atomic.Int64
	barriers          atomic.Int64
}

// NewCallLedger creates a zeroed ledger.
func NewCallLedger() *CallLedger {
	return &CallLedger{}
}

// TotalCalls returns the number of calls recorded since process start.
func (l *CallLedger) TotalCalls() int64 { return l.totalCalls.Load() }

// CallsSinceBarrier returns the calls recorded since the last barrier fired.
func (l *CallLedger) CallsSinceBarrier() int64 { return l.callsSinceBarrier.Load() }

// Barriers returns how many barriers have fired.
func (l *CallLedger) Barriers() int64 { return l.barriers.Load() }

// Throttle gates concurrent metric-source calls.
//
// It combines two independent mechanisms:
//
//   - a bounded-concurrency semaphore limiting in-flight calls to
//     maxParallel;
//   - a synchronization barrier: once the ledger's callsSinceBarrier
//     reaches the threshold, new Acquire calls block until every in-flight
//     permit is released, then the counter resets to zero.
//
// The barrier is a periodic drain of the queue, not a leaky-bucket rate
// limiter. Drain fires it unconditionally, giving sweeps a deterministic
// join point before consolidation.
//
// Callers record each call after releasing its permit. A released permit
// whose call is not yet recorded still holds the barrier open, so the
// counter always reads zero immediately after a barrier fires.
type Throttle struct {
	sem       *semaphore.Weighted
	ledger    *CallLedger
	threshold int64

	mu       sync.Mutex
	cond     *sync.Cond
	inFlight int
	owed     int // released permits whose RecordCall has not landed yet
	draining bool
}

// NewThrottle creates a throttle with maxParallel permits that drains after
// threshold recorded calls. The ledger is shared with the caller.
func NewThrottle(maxParallel int, threshold int64, ledger *CallLedger) *Throttle {
	if maxParallel <= 0 {
		maxParallel = 1
	}
	if threshold <= 0 {
		threshold = 1000
	}
	t := &Throttle{
		sem:       semaphore.NewWeighted(int64(maxParallel)),
		ledger:    ledger,
		threshold: threshold,
	}
	t.cond = sync.NewCond(&t.mu)
	return t
}

// Acquire blocks until a permit is free and no barrier is draining. A
// cancelled context unblocks the wait promptly.
func (t *Throttle) Acquire(ctx context.Context) error {
	t.mu.Lock()
	for t.draining {
		if err := ctx.Err(); err != nil {
			t.mu.Unlock()
			return err
		}
		wake := context.AfterFunc(ctx, func() {
			t.mu.Lock()
			t.cond.Broadcast()
			t.mu.Unlock()
		})
		t.cond.Wait()
		wake()
	}
	t.inFlight++
	t.mu.Unlock()

	if err := t.sem.Acquire(ctx, 1); err != nil {
		t.mu.Lock()
		t.inFlight--
		if t.draining && t.inFlight == 0 && t.owed == 0 {
			t.fireBarrierLocked()
		}
		t.mu.Unlock()
		return err
	}
	return nil
}

// Release returns a permit. The call it served is owed to the ledger until
// the caller's RecordCall lands; a draining barrier fires there, not here.
func (t *Throttle) Release() {
	t.sem.Release(1)

	t.mu.Lock()
	t.inFlight--
	t.owed++
	t.mu.Unlock()
}

// RecordCall counts one completed metric-source call. Reaching the threshold
// arms the barrier: dispatch pauses until in-flight work drains. The last
// owed call of a draining barrier fires it, after counting itself, so the
// reset never loses a pre-barrier call.
func (t *Throttle) RecordCall() {
	t.ledger.totalCalls.Add(1)
	n := t.ledger.callsSinceBarrier.Add(1)

	t.mu.Lock()
	if t.owed > 0 {
		t.owed--
	}
	if !t.draining && n >= t.threshold && t.ledger.callsSinceBarrier.Load() >= t.threshold {
		t.draining = true
	}
	if t.draining && t.inFlight == 0 && t.owed == 0 {
		t.fireBarrierLocked()
	}
	t.mu.Unlock()
}

// Drain fires the barrier unconditionally and blocks until every in-flight
// permit has been released and recorded. Called at the end of each horizon
// sweep so consolidation never observes an artifact write still in flight.
func (t *Throttle) Drain() {
	t.mu.Lock()
	if t.inFlight == 0 && t.owed == 0 {
		t.fireBarrierLocked()
		t.mu.Unlock()
		return
	}
	t.draining = true
	for t.draining {
		t.cond.Wait()
	}
	t.mu.Unlock()
}

// InFlight returns the number of currently held permits.
func (t *Throttle) InFlight() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.inFlight
}

// fireBarrierLocked resets the barrier counter and releases waiters.
// Caller holds t.mu.
func (t *Throttle) fireBarrierLocked() {
	t.ledger.callsSinceBarrier.Store(0)
	t.ledger.barriers.Add(1)
	t.draining = false
	t.cond.Broadcast()
}
