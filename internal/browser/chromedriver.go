package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
)

// ChromeDriver implements Driver on a chromedp browser tab.
type ChromeDriver struct {
	tab           context.Context
	actionTimeout time.Duration
	loadTimeout   time.Duration
}

// NewChromeDriver wraps a chromedp tab context.
func NewChromeDriver(tab context.Context, actionTimeout, loadTimeout time.Duration) *ChromeDriver {
	if actionTimeout <= 0 {
		actionTimeout = 5 * time.Second
	}
	if loadTimeout <= 0 {
		loadTimeout = 30 * time.Second
	}
	return &ChromeDriver{tab: tab, actionTimeout: actionTimeout, loadTimeout: loadTimeout}
}

// run executes actions on the tab, bounded by timeout and the caller's ctx.
func (d *ChromeDriver) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	tctx, cancel := context.WithTimeout(d.tab, timeout)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	err := chromedp.Run(tctx, actions...)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return err
}

func (d *ChromeDriver) Navigate(ctx context.Context, url string) error {
	if err := d.run(ctx, d.loadTimeout, chromedp.Navigate(url)); err != nil {
		return fmt.Errorf("navigate %s: %w", url, err)
	}
	return nil
}

func (d *ChromeDriver) Refresh(ctx context.Context) error {
	if err := d.run(ctx, d.loadTimeout, chromedp.Reload()); err != nil {
		return fmt.Errorf("refresh: %w", err)
	}
	return nil
}

func (d *ChromeDriver) Title(ctx context.Context) (string, error) {
	var title string
	err := d.run(ctx, d.actionTimeout, chromedp.Title(&title))
	return title, err
}

func (d *ChromeDriver) URL(ctx context.Context) (string, error) {
	var loc string
	err := d.run(ctx, d.actionTimeout, chromedp.Location(&loc))
	return loc, err
}

func (d *ChromeDriver) HTML(ctx context.Context) (string, error) {
	var html string
	err := d.run(ctx, d.actionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (d *ChromeDriver) Exists(ctx context.Context, sel string) bool {
	var ok bool
	js := fmt.Sprintf(`document.querySelector(%s) !== null`, quote(sel))
	if err := d.run(ctx, d.actionTimeout, chromedp.Evaluate(js, &ok)); err != nil {
		return false
	}
	return ok
}

// Text returns the element's trimmed innerText.
func (d *ChromeDriver) Text(ctx context.Context, sel string) (string, error) {
	var res *string
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.innerText.trim() : null })()`, quote(sel))
	if err := d.run(ctx, d.actionTimeout, chromedp.Evaluate(js, &res)); err != nil {
		return "", err
	}
	if res == nil {
		return "", fmt.Errorf("%w: %s", ErrNotFound, sel)
	}
	return *res, nil
}

func (d *ChromeDriver) Attr(ctx context.Context, sel, name string) (string, error) {
	var res *string
	js := fmt.Sprintf(`(() => { const el = document.querySelector(%s); return el ? el.getAttribute(%s) : null })()`, quote(sel), quote(name))
	if err := d.run(ctx, d.actionTimeout, chromedp.Evaluate(js, &res)); err != nil {
		return "", err
	}
	if res == nil {
		return "", fmt.Errorf("%w: %s[%s]", ErrNotFound, sel, name)
	}
	return *res, nil
}

func (d *ChromeDriver) Click(ctx context.Context, sel string) error {
	if err := d.run(ctx, d.actionTimeout, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("click %s: %w", sel, err)
	}
	return nil
}

func (d *ChromeDriver) SendKeys(ctx context.Context, sel, text string) error {
	if err := d.run(ctx, d.actionTimeout, chromedp.SendKeys(sel, text, chromedp.ByQuery, chromedp.NodeVisible)); err != nil {
		return fmt.Errorf("send keys to %s: %w", sel, err)
	}
	return nil
}

func (d *ChromeDriver) WaitAny(ctx context.Context, timeout time.Duration, sels ...string) (string, error) {
	if len(sels) == 0 {
		return "", ErrNotFound
	}
	list, err := json.Marshal(sels)
	if err != nil {
		return "", err
	}
	js := fmt.Sprintf(`%s.find(s => document.querySelector(s) !== null) || ""`, list)

	deadline := time.Now().Add(timeout)
	for {
		var found string
		if err := d.run(ctx, d.actionTimeout, chromedp.Evaluate(js, &found)); err == nil && found != "" {
			return found, nil
		}
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if time.Now().After(deadline) {
			return "", ErrWaitTimeout
		}
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-time.After(250 * time.Millisecond):
		}
	}
}

func (d *ChromeDriver) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := d.run(ctx, d.loadTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		buf, err = page.CaptureScreenshot().WithFormat(page.CaptureScreenshotFormatPng).Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("capture screenshot: %w", err)
	}
	return buf, nil
}

func (d *ChromeDriver) Cookies(ctx context.Context) ([]Cookie, error) {
	var raw []*network.Cookie
	err := d.run(ctx, d.actionTimeout, chromedp.ActionFunc(func(ctx context.Context) error {
		var err error
		raw, err = network.GetCookies().Do(ctx)
		return err
	}))
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	out := make([]Cookie, len(raw))
	for i, c := range raw {
		out[i] = Cookie{
			Name:     c.Name,
			Value:    c.Value,
			Domain:   c.Domain,
			Path:     c.Path,
			Expires:  c.Expires,
			HTTPOnly: c.HTTPOnly,
			Secure:   c.Secure,
		}
	}
	return out, nil
}

func quote(s string) string {
	b, _ := json.Marshal(s)
	return string(b)
}
