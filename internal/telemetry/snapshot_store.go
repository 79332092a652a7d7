package telemetry

import "sync"

// atomicSnapshot guards the collector's latest Snapshot with a mutex; a
// plain sync.Mutex is simpler and just as correct as atomic.Value here
// since Snapshot is a small value type copied on every read.
type atomicSnapshot struct {
	mu   sync.Mutex
	snap Snapshot
}

func (a *atomicSnapshot) store(s Snapshot) {
	a.mu.Lock()
	a.snap = s
	a.mu.Unlock()
}

func (a *atomicSnapshot) load() Snapshot {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.snap
}
