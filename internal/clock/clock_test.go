package clock

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRealSleep(t *testing.T) {
	require.NoError(t, Real{}.Sleep(context.Background(), time.Millisecond))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, Real{}.Sleep(ctx, time.Hour), context.Canceled)
	assert.ErrorIs(t, Real{}.Sleep(ctx, 0), context.Canceled)
}

func TestFake(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	f := NewFake(start)

	var seen []time.Time
	f.OnSleep(func(now time.Time) { seen = append(seen, now) })

	require.NoError(t, f.Sleep(context.Background(), 200*time.Millisecond))
	f.Advance(time.Second)
	require.NoError(t, f.Sleep(context.Background(), 300*time.Millisecond))

	assert.Equal(t, start.Add(1500*time.Millisecond), f.Now())
	assert.Equal(t, []time.Duration{200 * time.Millisecond, 300 * time.Millisecond}, f.Sleeps())
	assert.Equal(t, []time.Time{start.Add(200 * time.Millisecond), start.Add(1500 * time.Millisecond)}, seen)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, f.Sleep(ctx, time.Second), context.Canceled)
	assert.Len(t, f.Sleeps(), 2, "a cancelled sleep does not advance time")
}
