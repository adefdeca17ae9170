package browser

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// blockingRun returns a run func that only ends once abort has been called,
// the way chromedp.Run ends when its allocator is cancelled.
func blockingRun() (run func() error, abort func(), aborted *atomic.Int32) {
	stop := make(chan struct{})
	aborted = &atomic.Int32{}
	run = func() error {
		<-stop
		return context.Canceled
	}
	abort = func() {
		if aborted.Add(1) == 1 {
			close(stop)
		}
	}
	return run, abort, aborted
}

func TestWarmUpSuccessKeepsSession(t *testing.T) {
	var aborted atomic.Int32
	err := warmUp(context.Background(), func() error { return nil }, func() { aborted.Add(1) }, time.Second)
	require.NoError(t, err)

	// a finished warm-up must leave the session running
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, int32(0), aborted.Load())
}

func TestWarmUpFailureAborts(t *testing.T) {
	var aborted atomic.Int32
	boom := errors.New("no chrome")
	err := warmUp(context.Background(), func() error { return boom }, func() { aborted.Add(1) }, time.Second)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, int32(1), aborted.Load())
}

func TestWarmUpTimeout(t *testing.T) {
	run, abort, aborted := blockingRun()
	err := warmUp(context.Background(), run, abort, 20*time.Millisecond)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "did not start")
	assert.Equal(t, int32(1), aborted.Load())
}

func TestWarmUpCancelled(t *testing.T) {
	run, abort, aborted := blockingRun()
	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	err := warmUp(ctx, run, abort, time.Minute)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int32(1), aborted.Load())
}
