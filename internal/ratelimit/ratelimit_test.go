package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPacerSpacesChecks(t *testing.T) {
	p := NewPacer(50*time.Millisecond, 0)
	ctx := context.Background()

	start := time.Now()
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	require.NoError(t, p.Wait(ctx))
	assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
}

func TestPacerJitterBounds(t *testing.T) {
	p := NewPacer(0, 10*time.Millisecond)
	var gotN int64
	p.randn = func(n int64) int64 {
		gotN = n
		return n - 1
	}
	assert.Equal(t, 10*time.Millisecond-1, p.nextJitter())
	assert.Equal(t, int64(10*time.Millisecond), gotN)

	p.jitter = 0
	assert.Zero(t, p.nextJitter())
}

func TestPacerHonoursCancel(t *testing.T) {
	p := NewPacer(time.Hour, 0)
	ctx, cancel := context.WithCancel(context.Background())
	require.NoError(t, p.Wait(ctx))
	cancel()
	assert.Error(t, p.Wait(ctx))
}

func TestHostLimiterPerHost(t *testing.T) {
	l := NewHostLimiter(0.001, 1)
	assert.True(t, l.Allow("https://www.amazon.com/gp/aod/ajax?asin=B1"))
	assert.False(t, l.Allow("https://www.amazon.com/gp/aod/ajax?asin=B2"))
	// other hosts have their own bucket
	assert.True(t, l.Allow("https://www.amazon.co.uk/gp/aod/ajax?asin=B1"))
	// unparseable urls are never limited
	assert.True(t, l.Allow("://bad"))

	l.SetLimit("www.amazon.com", 1000, 1)
	require.NoError(t, l.Wait(context.Background(), "https://www.amazon.com/"))
}
