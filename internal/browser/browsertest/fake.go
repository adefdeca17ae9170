// Package browsertest provides a scriptable in-memory browser.Driver.
package browsertest

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/unapproachable/fairgame-fork/internal/browser"
)

// Page is the state the fake browser is showing.
type Page struct {
	Title string
	URL   string
	HTML  string
	// Elements maps a selector to the element's text.
	Elements map[string]string
	// Attrs maps a selector to its attributes.
	Attrs map[string]map[string]string
}

// Has reports whether the page contains sel.
func (p Page) Has(sel string) bool {
	if _, ok := p.Elements[sel]; ok {
		return true
	}
	_, ok := p.Attrs[sel]
	return ok
}

// Driver is a fake browser.Driver. Handlers let tests script page
// transitions; every call is recorded.
type Driver struct {
	mu   sync.Mutex
	page Page

	// Pages are shown on Navigate when the url has one of these prefixes.
	Pages map[string]Page
	// OnClick runs when the selector is clicked.
	OnClick map[string]func(d *Driver)
	// OnRefresh runs on Refresh.
	OnRefresh func(d *Driver)
	// NavigateErr fails every Navigate.
	NavigateErr error
	// NavigateErrs fails the next len(NavigateErrs) Navigate calls in order.
	NavigateErrs []error
	// ClickErr fails every click.
	ClickErr error
	CookieJar []browser.Cookie

	Clicks      []string
	Navigations []string
	Keys        map[string]string
	Refreshes   int
	Screenshots int
}

// New returns a driver showing page.
func New(page Page) *Driver {
	return &Driver{
		page:    page,
		Pages:   map[string]Page{},
		OnClick: map[string]func(d *Driver){},
		Keys:    map[string]string{},
	}
}

// SetPage replaces the current page.
func (d *Driver) SetPage(p Page) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.page = p
}

// Page returns the current page.
func (d *Driver) Page() Page {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.page
}

// ClickCount returns how often sel was clicked.
func (d *Driver) ClickCount(sel string) int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, c := range d.Clicks {
		if c == sel {
			n++
		}
	}
	return n
}

func (d *Driver) Navigate(_ context.Context, url string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Navigations = append(d.Navigations, url)
	if len(d.NavigateErrs) > 0 {
		err := d.NavigateErrs[0]
		d.NavigateErrs = d.NavigateErrs[1:]
		if err != nil {
			return err
		}
	}
	if d.NavigateErr != nil {
		return d.NavigateErr
	}
	best := ""
	for prefix := range d.Pages {
		if strings.HasPrefix(url, prefix) && len(prefix) > len(best) {
			best = prefix
		}
	}
	if best != "" {
		p := d.Pages[best]
		if p.URL == "" {
			p.URL = url
		}
		d.page = p
	}
	return nil
}

func (d *Driver) Refresh(context.Context) error {
	d.mu.Lock()
	d.Refreshes++
	fn := d.OnRefresh
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return nil
}

func (d *Driver) Title(context.Context) (string, error) { return d.Page().Title, nil }
func (d *Driver) URL(context.Context) (string, error)   { return d.Page().URL, nil }
func (d *Driver) HTML(context.Context) (string, error)  { return d.Page().HTML, nil }

func (d *Driver) Exists(_ context.Context, sel string) bool { return d.Page().Has(sel) }

func (d *Driver) Text(_ context.Context, sel string) (string, error) {
	p := d.Page()
	text, ok := p.Elements[sel]
	if !ok {
		return "", fmt.Errorf("%w: %s", browser.ErrNotFound, sel)
	}
	return text, nil
}

func (d *Driver) Attr(_ context.Context, sel, name string) (string, error) {
	p := d.Page()
	v, ok := p.Attrs[sel][name]
	if !ok {
		return "", fmt.Errorf("%w: %s[%s]", browser.ErrNotFound, sel, name)
	}
	return v, nil
}

func (d *Driver) Click(_ context.Context, sel string) error {
	d.mu.Lock()
	if d.ClickErr != nil {
		d.mu.Unlock()
		return d.ClickErr
	}
	if !d.page.Has(sel) {
		d.mu.Unlock()
		return fmt.Errorf("%w: %s", browser.ErrNotFound, sel)
	}
	d.Clicks = append(d.Clicks, sel)
	fn := d.OnClick[sel]
	d.mu.Unlock()
	if fn != nil {
		fn(d)
	}
	return nil
}

func (d *Driver) SendKeys(_ context.Context, sel, text string) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.page.Has(sel) {
		return fmt.Errorf("%w: %s", browser.ErrNotFound, sel)
	}
	d.Keys[sel] += text
	return nil
}

// WaitAny never sleeps: it checks the current page once.
func (d *Driver) WaitAny(ctx context.Context, _ time.Duration, sels ...string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	p := d.Page()
	for _, sel := range sels {
		if p.Has(sel) {
			return sel, nil
		}
	}
	return "", browser.ErrWaitTimeout
}

func (d *Driver) Screenshot(context.Context) ([]byte, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.Screenshots++
	return []byte("\x89PNG fake"), nil
}

func (d *Driver) Cookies(context.Context) ([]browser.Cookie, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]browser.Cookie(nil), d.CookieJar...), nil
}

var _ browser.Driver = (*Driver)(nil)
