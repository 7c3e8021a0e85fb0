package scheduler

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"notesd/internal/reminder"
)

// DeliverFunc receives a reminder whose timer has expired.
type DeliverFunc func(r *reminder.Reminder)

// Registry maps reminder ids to pending one-shot timers. It is the
// only authority on what will fire next. Entries carry a generation
// token so a cancel racing an expiry never acts on a stale handle, and
// an expiring entry removes itself before the delivery callback runs.
type Registry struct {
	clk   clock.Clock
	mu    sync.Mutex
	seq   uint64
	armed map[int64]*armedTimer
}

type armedTimer struct {
	timer *clock.Timer
	seq   uint64
}

func NewRegistry(clk clock.Clock) *Registry {
	return &Registry{
		clk:   clk,
		armed: make(map[int64]*armedTimer),
	}
}

// Schedule arms a one-shot timer for the reminder, replacing any prior
// entry for the same id. It reports false when the trigger time has
// already passed, in which case no timer is registered and the caller
// must route the reminder to the missed completion path.
func (g *Registry) Schedule(r *reminder.Reminder, deliver DeliverFunc) bool {
	g.mu.Lock()
	defer g.mu.Unlock()

	// Sub saturates instead of overflowing, so a far-future trigger
	// arms at the maximum delay rather than going negative.
	delay := time.UnixMilli(r.TriggerAt).Sub(g.clk.Now())
	if delay <= 0 {
		return false
	}

	if prior, ok := g.armed[r.ID]; ok {
		prior.timer.Stop()
	}

	g.seq++
	seq := g.seq
	id := r.ID
	fired := r.Clone()

	entry := &armedTimer{seq: seq}
	entry.timer = g.clk.AfterFunc(delay, func() {
		if !g.take(id, seq) {
			return
		}
		deliver(fired)
	})
	g.armed[id] = entry
	return true
}

// take removes the entry for id if it still belongs to generation seq.
// Run by the expiring timer before delivery; a cancelled or replaced
// entry yields false and the expiry becomes a no-op.
func (g *Registry) take(id int64, seq uint64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	entry, ok := g.armed[id]
	if !ok || entry.seq != seq {
		return false
	}
	delete(g.armed, id)
	return true
}

// Cancel stops and removes the entry for id; no-op when absent.
func (g *Registry) Cancel(id int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if entry, ok := g.armed[id]; ok {
		entry.timer.Stop()
		delete(g.armed, id)
	}
}

// Clear cancels every entry. Used before a wholesale rebuild.
func (g *Registry) Clear() {
	g.mu.Lock()
	defer g.mu.Unlock()
	for id, entry := range g.armed {
		entry.timer.Stop()
		delete(g.armed, id)
	}
}

// Armed reports whether a live timer exists for id.
func (g *Registry) Armed(id int64) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	_, ok := g.armed[id]
	return ok
}

// Len returns the number of live timers.
func (g *Registry) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.armed)
}
