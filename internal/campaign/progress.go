package campaign

import (
	"sync"
	"time"
)

// State is where a run currently is.
type State string

const (
	StateIdle       State = "idle"
	StateResuming   State = "resuming"
	StateSending    State = "sending"
	StatePausing    State = "pausing"
	StateFinalizing State = "finalizing"
	StateDone       State = "done"
)

// Progress is a point-in-time view of a run, safe to hand to other
// goroutines.
type Progress struct {
	RunID     string    `json:"run_id"`
	State     State     `json:"state"`
	Total     int       `json:"total"`
	Resumed   int       `json:"already_delivered"`
	Processed int       `json:"processed"`
	Sent      int       `json:"sent"`
	Invalid   int       `json:"invalid"`
	Skipped   int       `json:"skipped"`
	Current   string    `json:"current,omitempty"`
	StartedAt time.Time `json:"started_at"`
}

// Remaining is how many contacts are still to be tried in this run.
func (p Progress) Remaining() int {
	if r := p.Total - p.Processed; r > 0 {
		return r
	}
	return 0
}

type tracker struct {
	mu sync.RWMutex
	p  Progress
}

func (t *tracker) snapshot() Progress {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.p
}

func (t *tracker) update(fn func(*Progress)) {
	t.mu.Lock()
	fn(&t.p)
	t.mu.Unlock()
}

func (t *tracker) setState(s State) {
	t.update(func(p *Progress) { p.State = s })
}
