package navigator

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/notify"
	"github.com/unapproachable/fairgame-fork/internal/reqctx"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// Mode selects how checkout is started.
type Mode int

const (
	// ModeBuyNow jumps straight to the review page with the offer.
	ModeBuyNow Mode = iota
	// ModeAddToCart adds the offer to the cart and checks out from there.
	ModeAddToCart
)

func (m Mode) String() string {
	if m == ModeAddToCart {
		return "add-to-cart"
	}
	return "buy-now"
}

const (
	buyNowTitleWait = 5 * time.Second
	buyNowReloads   = 2
	addToCartTries  = 10
)

// Checkout starts checkout for a qualifying offer and runs the navigator
// to completion. It implements engine.Purchaser.
type Checkout struct {
	nav  *Navigator
	mode Mode
}

// NewCheckout returns a purchaser driving nav in mode.
func NewCheckout(nav *Navigator, mode Mode) *Checkout {
	return &Checkout{nav: nav, mode: mode}
}

func (c *Checkout) Purchase(ctx context.Context, item models.TrackedItem, offer models.Offer) (engine.Outcome, error) {
	d := c.nav.drivers.Driver()
	if d == nil {
		return engine.OutcomeAbandoned, engine.SessionFatal("no browser session", browser.ErrNoSession)
	}
	ctx = reqctx.WithAttempt(ctx, item.ID)
	reqctx.Logger(ctx).Info().Str("mode", c.mode.String()).Str("offer", offer.OfferID).Msg("Starting checkout")

	a := NewAttempt(item, offer)
	var err error
	switch c.mode {
	case ModeAddToCart:
		err = c.addToCart(ctx, d, offer)
	default:
		err = c.buyNow(ctx, d, offer)
	}
	if err != nil {
		if ctx.Err() != nil {
			return engine.OutcomeAbandoned, ctx.Err()
		}
		if engine.IsFatal(err) {
			return engine.OutcomeAbandoned, reqctx.Wrap(ctx, err)
		}
		reqctx.Logger(ctx).Warn().Err(err).Msg("Could not start checkout")
		return engine.OutcomeAbandoned, nil
	}
	outcome, err := c.nav.Run(ctx, a)
	reqctx.Logger(ctx).Info().
		Str("outcome", outcome.String()).
		Str("note", a.Note).
		Dur("took", reqctx.Elapsed(ctx)).
		Msg("Checkout finished")
	return outcome, reqctx.Wrap(ctx, err)
}

// buyNow loads the buy-now URL, reloading while the review page does not
// show. Whatever page it ends on is left to the navigator.
func (c *Checkout) buyNow(ctx context.Context, d browser.Driver, offer models.Offer) error {
	if offer.OfferID == "" {
		return fmt.Errorf("offer from %q has no offering id", offer.SellerName)
	}
	target := c.nav.urls.BuyNow(offer.OfferID)
	var lastErr error
	for load := 0; load <= buyNowReloads; load++ {
		if err := d.Navigate(ctx, target); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = err
			log.Debug().Err(err).Int("load", load+1).Msg("Buy now page failed to load")
			continue
		}
		lastErr = nil
		title, _ := c.nav.waitTitle(ctx, d, buyNowTitleWait)
		if c.nav.Classify(title) == StateCheckout {
			return nil
		}
		log.Debug().Str("title", title).Int("load", load+1).Msg("Buy now did not land on the review page")
	}
	if lastErr != nil {
		return engine.NewEngineError(engine.ErrCodeTransient, "load buy now page", lastErr).WithRetry()
	}
	return nil
}

// addToCart loads the add-to-cart URL and confirms it until the cart badge
// shows something, then opens the cart.
func (c *Checkout) addToCart(ctx context.Context, d browser.Driver, offer models.Offer) error {
	if offer.OfferID == "" {
		return fmt.Errorf("offer from %q has no offering id", offer.SellerName)
	}
	target := c.nav.urls.AddToCart(offer.OfferID)
	sel := c.nav.site.Selectors.AddToCartContinue
	added := false
	for try := 1; try <= addToCartTries && !added; try++ {
		if err := d.Navigate(ctx, target); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Err(err).Int("try", try).Msg("Failed to get page")
			continue
		}
		if _, err := d.WaitAny(ctx, c.nav.opts.Timeout, sel); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			log.Error().Int("try", try).Msg("No continue button found")
			continue
		}
		title, _ := d.Title(ctx)
		if err := c.nav.click(ctx, d, title, sel); err != nil {
			log.Error().Err(err).Msg("Could not click continue button")
			continue
		}
		if c.nav.cartCount(ctx, d) != 0 {
			added = true
		} else {
			log.Info().Int("try", try).Msg("Nothing added to cart, trying again")
		}
	}
	if !added {
		c.nav.reporter.Notify(ctx, d, notify.Message{Title: "Maxed out on ATC, moving on", Tag: "attempt-atc"}, false)
		return fmt.Errorf("%w: add to cart failed after %d tries", engine.ErrNavigationStall, addToCartTries)
	}

	if err := d.Navigate(ctx, c.nav.urls.Cart()); err != nil {
		return engine.NewEngineError(engine.ErrCodeTransient, "open cart", err).WithRetry()
	}
	return nil
}

var _ engine.Purchaser = (*Checkout)(nil)
