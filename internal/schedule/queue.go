// Package schedule provides the in-memory due-time queue that drives brew
// fire sequences. Entries live in a priority queue ordered by due time and a
// single goroutine dispatches callbacks as their deadlines pass.
//
// The queue is volatile: entries are not persisted and do not survive a
// process restart. Callers re-arm pending work at boot (see
// service.SchedulerService.Rearm).
package schedule

import (
	"container/heap"
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Callback runs when an entry's due time passes. It is invoked on its own
// goroutine so a slow callback never delays other entries.
type Callback func(ctx context.Context)

// entry is one armed timer: fire fn for id at the given time.
type entry struct {
	at time.Time
	id uuid.UUID
	fn Callback
}

// entryHeap is a min-heap of entries by due time.
type entryHeap []entry

func (h entryHeap) Len() int           { return len(h) }
func (h entryHeap) Less(i, j int) bool { return h[i].at.Before(h[j].at) }
func (h entryHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }
func (h *entryHeap) Push(x any)        { *h = append(*h, x.(entry)) }
func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	*h = old[:n-1]
	return e
}

// Queue owns the armed fire timers. Schedule is safe for concurrent use;
// Run must be started exactly once and owns all dispatching.
type Queue struct {
	clock  Clock
	logger *slog.Logger

	mu      sync.Mutex
	entries entryHeap
	armed   map[uuid.UUID]struct{}
	wake    chan struct{}
}

// NewQueue constructs a Queue driven by the given clock.
func NewQueue(clock Clock, logger *slog.Logger) *Queue {
	return &Queue{
		clock:  clock,
		logger: logger,
		armed:  make(map[uuid.UUID]struct{}),
		wake:   make(chan struct{}, 1),
	}
}

// Schedule arms fn to run once at the given time. Scheduling an id that is
// already armed is a no-op — an entry fires at most once, and re-arming at
// boot must not double-fire brews that were armed moments earlier.
func (q *Queue) Schedule(id uuid.UUID, at time.Time, fn Callback) {
	q.mu.Lock()
	if _, ok := q.armed[id]; ok {
		q.mu.Unlock()
		return
	}
	q.armed[id] = struct{}{}
	heap.Push(&q.entries, entry{at: at, id: id, fn: fn})
	q.mu.Unlock()

	// Nudge Run in case the new entry is now the earliest.
	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Len returns the number of armed entries.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.entries.Len()
}

// Run dispatches entries until ctx is cancelled. Start it once, typically
// as `go queue.Run(ctx)` from main.
func (q *Queue) Run(ctx context.Context) {
	for {
		q.mu.Lock()
		now := q.clock.Now()

		// Dispatch everything already due.
		for q.entries.Len() > 0 && !q.entries[0].at.After(now) {
			e := heap.Pop(&q.entries).(entry)
			delete(q.armed, e.id)
			q.mu.Unlock()
			go q.dispatch(ctx, e)
			q.mu.Lock()
		}

		// Sleep until the next deadline, a new entry, or shutdown.
		var wait <-chan time.Time
		if q.entries.Len() > 0 {
			wait = q.clock.After(q.entries[0].at.Sub(now))
		}
		q.mu.Unlock()

		select {
		case <-ctx.Done():
			return
		case <-q.wake:
		case <-wait:
		}
	}
}

// dispatch runs one callback, containing panics so a bad fire sequence
// cannot take down the queue and every other armed timer with it.
func (q *Queue) dispatch(ctx context.Context, e entry) {
	defer func() {
		if r := recover(); r != nil {
			q.logger.Error("fire callback panicked", "brew_id", e.id, "panic", r)
		}
	}()
	e.fn(ctx)
}
