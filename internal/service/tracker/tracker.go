// Package tracker provides lightweight counters for in-flight requests.
package tracker

import "sync/atomic"

// Tracker counts requests of one driver using atomics.
type Tracker struct {
	running   atomic.Int64
	peak      atomic.Int64
	succeeded atomic.Int64
	failed    atomic.Int64
}

// Snapshot is a point-in-time copy of a Tracker.
type Snapshot struct {
	Running   int64 `json:"running"`
	Peak      int64 `json:"peak"`
	Succeeded int64 `json:"succeeded"`
	Failed    int64 `json:"failed"`
}

// Inc marks a request as started and updates the high-water mark.
func (t *Tracker) Inc() {
	n := t.running.Add(1)
	for {
		p := t.peak.Load()
		if n <= p || t.peak.CompareAndSwap(p, n) {
			return
		}
	}
}

// Done marks a request as finished with the given outcome.
func (t *Tracker) Done(err error) {
	t.running.Add(-1)
	if err != nil {
		t.failed.Add(1)
		return
	}
	t.succeeded.Add(1)
}

// Running returns the current in-flight count.
func (t *Tracker) Running() int64 { return t.running.Load() }

// Snapshot returns all counters.
func (t *Tracker) Snapshot() Snapshot {
	return Snapshot{
		Running:   t.running.Load(),
		Peak:      t.peak.Load(),
		Succeeded: t.succeeded.Load(),
		Failed:    t.failed.Load(),
	}
}
