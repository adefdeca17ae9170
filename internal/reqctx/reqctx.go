// Package reqctx tags one checkout attempt with an id that follows it
// through logs and errors.
package reqctx

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

type key int

const attemptKey key = 0

// Attempt identifies one checkout.
type Attempt struct {
	ID        string
	ASIN      string
	StartTime time.Time
}

// WithAttempt starts a new attempt for asin. The returned context also
// carries a logger with the attempt fields attached.
func WithAttempt(ctx context.Context, asin string) context.Context {
	a := &Attempt{
		ID:        uuid.NewString()[:8],
		ASIN:      asin,
		StartTime: time.Now(),
	}
	ctx = context.WithValue(ctx, attemptKey, a)
	l := log.With().Str("attempt", a.ID).Str("asin", asin).Logger()
	return l.WithContext(ctx)
}

// From returns the attempt carried by ctx, or one with id "unknown".
func From(ctx context.Context) *Attempt {
	if a, ok := ctx.Value(attemptKey).(*Attempt); ok {
		return a
	}
	return &Attempt{ID: "unknown", StartTime: time.Now()}
}

// Logger returns the attempt logger, or the global one outside an attempt.
func Logger(ctx context.Context) *zerolog.Logger {
	if _, ok := ctx.Value(attemptKey).(*Attempt); ok {
		return zerolog.Ctx(ctx)
	}
	return &log.Logger
}

// Elapsed is the time since the attempt started.
func Elapsed(ctx context.Context) time.Duration {
	return time.Since(From(ctx).StartTime)
}

// AttemptError wraps an error with the attempt id
type AttemptError struct {
	AttemptID string
	Err       error
}

// Error implements the error interface
func (e *AttemptError) Error() string {
	return fmt.Sprintf("[attempt %s] %v", e.AttemptID, e.Err)
}

// Unwrap returns the underlying error
func (e *AttemptError) Unwrap() error {
	return e.Err
}

// Wrap tags err with the attempt id from ctx. A nil err stays nil.
func Wrap(ctx context.Context, err error) error {
	if err == nil {
		return nil
	}
	return &AttemptError{AttemptID: From(ctx).ID, Err: err}
}
