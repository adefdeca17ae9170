package probe

import (
	"context"
	"errors"
	"slices"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/retry"
	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// SessionProvider hands out the current browser and replaces it when it
// stops responding.
type SessionProvider interface {
	Driver() browser.Driver
	Recycle(ctx context.Context) error
}

// CaptchaHandler clears a captcha on the current page.
type CaptchaHandler interface {
	Handle(ctx context.Context, d browser.Driver) error
}

// BrowserOptions tune the browser source.
type BrowserOptions struct {
	AltOffers    bool          // use the legacy offer-listing page
	Timeout      time.Duration // wait for any known page marker
	Retry        retry.Config  // page load attempts before recycling
	FlyoutPasses int           // offers-link clicks before giving up
}

// DefaultBrowserOptions returns the stock settings.
func DefaultBrowserOptions() BrowserOptions {
	return BrowserOptions{
		Timeout:      10 * time.Second,
		Retry:        retry.PageLoadConfig(),
		FlyoutPasses: 3,
	}
}

// BrowserSource loads offer listings in the signed-in browser.
type BrowserSource struct {
	provider SessionProvider
	captcha  CaptchaHandler
	site     config.SiteProfile
	urls     urlutil.Site
	opts     BrowserOptions
}

// NewBrowserSource builds a browser source. captcha may be nil.
func NewBrowserSource(provider SessionProvider, captcha CaptchaHandler, site config.SiteProfile, opts BrowserOptions) *BrowserSource {
	return &BrowserSource{
		provider: provider,
		captcha:  captcha,
		site:     site,
		urls:     urlutil.NewSite(site.Domain),
		opts:     opts,
	}
}

// OfferURL returns the listing URL used for item.
func (s *BrowserSource) OfferURL(id string) string {
	if s.opts.AltOffers {
		return s.urls.AltOffers(id)
	}
	return s.urls.Offers(id)
}

func (s *BrowserSource) Fetch(ctx context.Context, item models.TrackedItem) (*Page, error) {
	d := s.provider.Driver()
	if d == nil {
		return nil, engine.SessionFatal("no browser session", browser.ErrNoSession)
	}

	url := s.OfferURL(item.ID)
	err := retry.WithRetry(ctx, s.opts.Retry, func() error {
		return d.Navigate(ctx, url)
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error().Err(err).Str("asin", item.ID).Msg("Offer page failed to load, recycling browser")
		if rerr := s.provider.Recycle(ctx); rerr != nil {
			return nil, engine.SessionFatal("browser recycle failed", rerr)
		}
		return nil, nil
	}

	if title, _ := d.Title(ctx); slices.Contains(s.site.Titles[config.TitleCaptcha], title) && s.captcha != nil {
		if err := s.captcha.Handle(ctx, d); err != nil && ctx.Err() != nil {
			return nil, ctx.Err()
		}
	}

	sel := s.site.Selectors
	markers := slices.Concat(sel.Flyout, sel.OfferContainers, sel.OutOfStock, sel.OfferError, sel.OffersLink, []string{sel.BuyBox})
	matched, err := d.WaitAny(ctx, s.opts.Timeout, markers...)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Debug().Str("asin", item.ID).Msg("No offer markup before timeout")
		return nil, nil
	}

	if slices.Contains(sel.OffersLink, matched) {
		s.openFlyout(ctx, d, item.ID)
	}

	html, err := d.HTML(ctx)
	if err != nil {
		return nil, engine.NewEngineError(engine.ErrCodeTransient, "read offer page", err).WithRetry()
	}
	title, _ := d.Title(ctx)
	return &Page{HTML: html, Title: title, URL: url, Source: "browser"}, nil
}

// openFlyout clicks the all-offers link until the flyout renders.
func (s *BrowserSource) openFlyout(ctx context.Context, d browser.Driver, id string) {
	sel := s.site.Selectors
	flyout := slices.Concat(sel.OfferContainers, sel.Flyout)
	for pass := 1; pass <= s.opts.FlyoutPasses; pass++ {
		if _, err := browser.ClickFirst(ctx, d, sel.OffersLink); err != nil {
			log.Debug().Err(err).Str("asin", id).Msg("Offers link not clickable")
			return
		}
		if _, err := d.WaitAny(ctx, s.opts.Timeout, flyout...); err == nil {
			return
		} else if !errors.Is(err, browser.ErrWaitTimeout) {
			return
		}
		log.Debug().Str("asin", id).Int("pass", pass).Msg("Offer flyout did not open")
	}
}
