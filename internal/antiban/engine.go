package antiban

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"
)

// ============================================
// ANTI-BAN PACING
// Human-like waits around every send
// ============================================

// Range is a closed interval a random delay is drawn from.
type Range struct {
	Min time.Duration `mapstructure:"min"`
	Max time.Duration `mapstructure:"max"`
}

// Fixed returns a Range that always yields d.
func Fixed(d time.Duration) Range {
	return Range{Min: d, Max: d}
}

// Validate checks the interval is non-negative and ordered.
func (r Range) Validate() error {
	if r.Min < 0 || r.Max < 0 {
		return fmt.Errorf("negative delay range %v-%v", r.Min, r.Max)
	}
	if r.Max < r.Min {
		return fmt.Errorf("delay range max %v is below min %v", r.Max, r.Min)
	}
	return nil
}

func (r Range) String() string {
	if r.Min == r.Max {
		return r.Min.String()
	}
	return fmt.Sprintf("%v-%v", r.Min, r.Max)
}

// Policy holds every timing knob of a delivery run.
type Policy struct {
	PreSend        Range         // before opening each chat
	Settle         time.Duration // after the compose box shows up
	PreSubmit      Range         // before pressing Enter
	PostSubmit     Range         // after pressing Enter, before navigating away
	ComposeTimeout time.Duration // how long to wait for the compose box
	PollInterval   time.Duration // session recovery poll
	BatchSize      int           // sends between batch pauses
	BatchPause     time.Duration // pause length at each batch boundary
}

// DefaultPolicy returns the production pacing.
func DefaultPolicy() Policy {
	return Policy{
		PreSend:        Range{Min: 8 * time.Second, Max: 15 * time.Second},
		Settle:         1 * time.Second,
		PreSubmit:      Range{Min: 3 * time.Second, Max: 6 * time.Second},
		PostSubmit:     Range{Min: 5 * time.Second, Max: 8 * time.Second},
		ComposeTimeout: 15 * time.Second,
		PollInterval:   2 * time.Second,
		BatchSize:      50,
		BatchPause:     60 * time.Second,
	}
}

// Validate checks every range and the batch settings.
func (p Policy) Validate() error {
	for name, r := range map[string]Range{
		"pre-send":    p.PreSend,
		"pre-submit":  p.PreSubmit,
		"post-submit": p.PostSubmit,
	} {
		if err := r.Validate(); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	if p.BatchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", p.BatchSize)
	}
	if p.PollInterval <= 0 {
		return fmt.Errorf("poll interval must be positive, got %v", p.PollInterval)
	}
	return nil
}

// PauseBefore reports whether a batch pause is due before the next send,
// given how many contacts were already processed. The first pause happens
// once BatchSize contacts are done, then every BatchSize after that.
func (p Policy) PauseBefore(processed int) bool {
	return p.BatchSize > 0 && processed > 0 && processed%p.BatchSize == 0
}

// ============================================
// SLEEPING
// ============================================

// Sleeper blocks for d or until ctx is done.
type Sleeper interface {
	Sleep(ctx context.Context, d time.Duration) error
}

// ClockSleeper sleeps on the wall clock.
type ClockSleeper struct{}

// Sleep waits d, returning ctx.Err() if the context ends first.
func (ClockSleeper) Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Pacer draws delays from a Policy and sleeps them.
type Pacer struct {
	Policy  Policy
	sleeper Sleeper

	mu  sync.Mutex
	rng *rand.Rand
}

// NewPacer creates a pacer. A nil sleeper means wall-clock sleeping.
func NewPacer(policy Policy, sleeper Sleeper) *Pacer {
	if sleeper == nil {
		sleeper = ClockSleeper{}
	}
	return &Pacer{
		Policy:  policy,
		sleeper: sleeper,
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Pick draws a duration uniformly from r.
func (p *Pacer) Pick(r Range) time.Duration {
	if r.Max <= r.Min {
		return r.Min
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return r.Min + time.Duration(p.rng.Int63n(int64(r.Max-r.Min)+1))
}

// Wait sleeps a random duration from r.
func (p *Pacer) Wait(ctx context.Context, r Range) error {
	return p.sleeper.Sleep(ctx, p.Pick(r))
}

// Sleep sleeps exactly d.
func (p *Pacer) Sleep(ctx context.Context, d time.Duration) error {
	return p.sleeper.Sleep(ctx, d)
}

// Intn returns a random int in [0,n) from the pacer's source.
func (p *Pacer) Intn(n int) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.rng.Intn(n)
}
