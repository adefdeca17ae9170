package ratelimit

import (
	"context"
	"math/rand/v2"
	"time"

	"golang.org/x/time/rate"
)

// Pacer spaces out stock checks: at most one check per delay, plus a random
// jitter in [0, jitter) so polls do not land on a fixed cadence.
type Pacer struct {
	limiter *rate.Limiter
	delay   time.Duration
	jitter  time.Duration
	randn   func(n int64) int64
}

// NewPacer returns a pacer. A zero delay disables the token bucket.
func NewPacer(delay, jitter time.Duration) *Pacer {
	limit := rate.Inf
	if delay > 0 {
		limit = rate.Every(delay)
	}
	p := &Pacer{
		limiter: rate.NewLimiter(limit, 1),
		delay:   delay,
		jitter:  jitter,
		randn:   rand.Int64N,
	}
	return p
}

// Wait blocks until the next check may run or ctx is done.
func (p *Pacer) Wait(ctx context.Context) error {
	if err := p.limiter.Wait(ctx); err != nil {
		return err
	}
	extra := p.nextJitter()
	if extra <= 0 {
		return nil
	}
	t := time.NewTimer(extra)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Delay returns the configured base interval.
func (p *Pacer) Delay() time.Duration { return p.delay }

// Jitter returns the configured jitter bound.
func (p *Pacer) Jitter() time.Duration { return p.jitter }

func (p *Pacer) nextJitter() time.Duration {
	if p.jitter <= 0 {
		return 0
	}
	return time.Duration(p.randn(int64(p.jitter)))
}
