package room

import (
	"sync"
	"time"
)

// turnTimer is a single-shot countdown bound to the active seat. It
// only schedules the callback; validity is decided by the room
// handler, which compares the carried turn epoch against the match.
type turnTimer struct {
	mu    sync.Mutex
	timer *time.Timer
}

// start arms the timer, replacing any previous arming.
func (t *turnTimer) start(d time.Duration, fire func()) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
	}
	t.timer = time.AfterFunc(d, fire)
}

// cancel disarms the timer. A callback already in flight is harmless:
// its epoch no longer matches.
func (t *turnTimer) cancel() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.timer != nil {
		t.timer.Stop()
		t.timer = nil
	}
}
