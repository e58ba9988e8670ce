package antiban

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingSleeper struct {
	slept []time.Duration
}

func (s *recordingSleeper) Sleep(ctx context.Context, d time.Duration) error {
	s.slept = append(s.slept, d)
	return ctx.Err()
}

func TestPauseBefore(t *testing.T) {
	p := DefaultPolicy()
	p.BatchSize = 3

	var pauses []int
	for processed := 0; processed < 10; processed++ {
		if p.PauseBefore(processed) {
			pauses = append(pauses, processed)
		}
	}
	assert.Equal(t, []int{3, 6, 9}, pauses)
}

func TestPauseBeforeNeverOnFirstBatch(t *testing.T) {
	p := DefaultPolicy()
	for processed := 0; processed < p.BatchSize; processed++ {
		assert.False(t, p.PauseBefore(processed))
	}
	assert.True(t, p.PauseBefore(p.BatchSize))
}

func TestPickStaysInRange(t *testing.T) {
	pacer := NewPacer(DefaultPolicy(), &recordingSleeper{})
	r := Range{Min: 3 * time.Second, Max: 6 * time.Second}
	for i := 0; i < 500; i++ {
		d := pacer.Pick(r)
		assert.GreaterOrEqual(t, d, r.Min)
		assert.LessOrEqual(t, d, r.Max)
	}
	assert.Equal(t, time.Second, pacer.Pick(Fixed(time.Second)))
}

func TestWaitUsesSleeper(t *testing.T) {
	sleeper := &recordingSleeper{}
	pacer := NewPacer(DefaultPolicy(), sleeper)

	require.NoError(t, pacer.Wait(context.Background(), Fixed(2*time.Second)))
	require.NoError(t, pacer.Sleep(context.Background(), time.Second))
	assert.Equal(t, []time.Duration{2 * time.Second, time.Second}, sleeper.slept)
}

func TestClockSleeperHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := ClockSleeper{}.Sleep(ctx, time.Hour)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPolicyValidate(t *testing.T) {
	assert.NoError(t, DefaultPolicy().Validate())

	p := DefaultPolicy()
	p.PreSubmit = Range{Min: 5 * time.Second, Max: time.Second}
	assert.Error(t, p.Validate())

	p = DefaultPolicy()
	p.BatchSize = 0
	assert.Error(t, p.Validate())
}
