// Package browser owns the storefront browser session: the Driver used by
// the prober and the checkout navigator, and the Provider that starts,
// recycles and closes the underlying Chrome process.
package browser

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a selector matches no element.
	ErrNotFound = errors.New("element not found")
	// ErrWaitTimeout is returned when WaitAny sees none of its selectors in time.
	ErrWaitTimeout = errors.New("timed out waiting for element")
	// ErrNoSession is returned when the provider has no running browser.
	ErrNoSession = errors.New("browser session not started")
)

// Cookie is a browser cookie, used to share the signed-in session with
// plain HTTP clients.
type Cookie struct {
	Name     string
	Value    string
	Domain   string
	Path     string
	Expires  float64
	HTTPOnly bool
	Secure   bool
}

// Driver is the page-level browser API. Selectors are CSS selectors.
type Driver interface {
	Navigate(ctx context.Context, url string) error
	Refresh(ctx context.Context) error
	Title(ctx context.Context) (string, error)
	URL(ctx context.Context) (string, error)
	HTML(ctx context.Context) (string, error)

	Exists(ctx context.Context, sel string) bool
	Text(ctx context.Context, sel string) (string, error)
	Attr(ctx context.Context, sel, name string) (string, error)
	Click(ctx context.Context, sel string) error
	SendKeys(ctx context.Context, sel, text string) error

	// WaitAny blocks until one of sels matches and returns it.
	WaitAny(ctx context.Context, timeout time.Duration, sels ...string) (string, error)

	Screenshot(ctx context.Context) ([]byte, error)
	Cookies(ctx context.Context) ([]Cookie, error)
}

// FirstExisting returns the first of sels present on the page.
func FirstExisting(ctx context.Context, d Driver, sels []string) (string, bool) {
	for _, sel := range sels {
		if d.Exists(ctx, sel) {
			return sel, true
		}
	}
	return "", false
}

// ClickFirst clicks the first of sels that is present and clickable.
func ClickFirst(ctx context.Context, d Driver, sels []string) (string, error) {
	var lastErr error = ErrNotFound
	for _, sel := range sels {
		if !d.Exists(ctx, sel) {
			continue
		}
		if err := d.Click(ctx, sel); err != nil {
			lastErr = err
			continue
		}
		return sel, nil
	}
	return "", lastErr
}

// WaitTitle polls the page title until it is non-blank or timeout passes.
// The last title read is returned either way.
func WaitTitle(ctx context.Context, d Driver, timeout time.Duration) (string, error) {
	deadline := time.Now().Add(timeout)
	for {
		title, err := d.Title(ctx)
		if err == nil && title != "" {
			return title, nil
		}
		if time.Now().After(deadline) {
			return title, err
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

// WaitTitleChange polls until the title differs from old or timeout passes.
func WaitTitleChange(ctx context.Context, d Driver, old string, timeout time.Duration) (string, bool) {
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if title, err := d.Title(ctx); err == nil && title != old {
			return title, true
		}
		select {
		case <-ctx.Done():
			return "", false
		case <-time.After(500 * time.Millisecond):
		}
	}
	return old, false
}
