package ui

import (
	"context"
	"io"
	"time"

	"github.com/schollz/progressbar/v3"
)

// Countdown shows a one-second-per-step bar for d. It returns early with
// nil when stop reports true, or with the context error on cancellation.
// stop may be nil.
func Countdown(ctx context.Context, w io.Writer, d time.Duration, label string, stop func() bool) error {
	return countdown(ctx, w, d, time.Second, label, stop)
}

func countdown(ctx context.Context, w io.Writer, d, tick time.Duration, label string, stop func() bool) error {
	steps := int(d / tick)
	if steps < 1 {
		steps = 1
	}
	bar := progressbar.NewOptions(steps,
		progressbar.OptionSetWriter(w),
		progressbar.OptionSetDescription(label),
		progressbar.OptionSetPredictTime(false),
		progressbar.OptionShowCount(),
		progressbar.OptionClearOnFinish(),
	)
	defer bar.Finish()

	t := time.NewTicker(tick)
	defer t.Stop()
	for i := 0; i < steps; i++ {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.C:
		}
		_ = bar.Add(1)
		if stop != nil && stop() {
			return nil
		}
	}
	return nil
}
