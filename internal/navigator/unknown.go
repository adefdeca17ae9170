package navigator

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/notify"
)

// handleUnknown tries element checks to work out where the browser is,
// then hands off to the user, then forces its way back to the cart.
func (n *Navigator) handleUnknown(ctx context.Context, d browser.Driver, a *Attempt, title string) error {
	if err := n.sleep(ctx, unknownSettle); err != nil {
		return err
	}
	log.Warn().Str("title", title).Msg("FairGame is not sure what page it is on - will attempt to resolve.")
	sel := n.site.Selectors

	if sel.SuccessBanner != "" && d.Exists(ctx, sel.SuccessBanner) {
		log.Info().Msg("FairGame thinks it completed the purchase, please verify ASAP")
		n.reporter.Notify(ctx, d, notify.Message{
			Title: "FairGame may have made a purchase, please confirm ASAP",
			Body:  "Notifications that follow assume purchase has been made, YOU MUST CONFIRM THIS ASAP",
			Tag:   "unknown-title-purchase",
		}, true)
		return n.handleOrderComplete(ctx, d, a)
	}

	if _, err := n.clickFirst(ctx, d, title, sel.PrimeNoThanks); err == nil {
		log.Debug().Msg("FairGame thinks it is seeing a Prime Offer, clicked No Thanks")
		return nil
	}

	if n.opts.ShippingBypass && n.shipToAddress(ctx, d, title) {
		return nil
	}

	if n.cartCount(ctx, d) == 0 {
		log.Info().Msg("It appears you have nothing in your cart. Returning to stock check.")
		a.abandon("cart is empty")
		return nil
	}

	ev := log.Error().Str("title", title)
	if tc, ok := n.classifier.(interface {
		Nearest(string) (string, float64)
	}); ok {
		near, score := tc.Nearest(title)
		ev = ev.Str("nearest", near).Float64("similarity", score)
	}
	ev.Msg("Not a known page title. Please create an issue with the title and a screenshot of the page")

	if err := n.handoff(ctx, d, a, title); err != nil {
		return err
	}
	if current, err := d.Title(ctx); err == nil && current != title {
		log.Info().Msg("FairGame thinks user intervened in time, will now continue running")
		return nil
	}
	log.Warn().Msg("FairGame does not think the user intervened in time, will attempt other methods to continue")

	log.Info().Msg("Going to try and redirect to cart page")
	if err := d.Navigate(ctx, n.urls.Cart()); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Err(err).Msg("Failed to load cart URL, refreshing and returning to handler")
		return n.refresh(ctx, d)
	}
	if err := n.sleep(ctx, cartSettle); err != nil {
		return err
	}
	if n.cartCount(ctx, d) == 0 {
		log.Info().Msg("It appears you have nothing in your cart. Returning to stock check.")
		a.abandon("cart is empty")
		return nil
	}

	log.Info().Msg("Trying to click proceed to checkout")
	cartTitle, _ := d.Title(ctx)
	if _, err := d.WaitAny(ctx, n.opts.Timeout, sel.ProceedToCheckout...); err == nil {
		if _, err := n.clickFirst(ctx, d, cartTitle, sel.ProceedToCheckout); err == nil {
			return nil
		}
	} else if ctx.Err() != nil {
		return ctx.Err()
	}

	log.Error().Msg("FairGame could not navigate current page, refreshing and returning to handler")
	n.reporter.SavePage(ctx, d, "unknown")
	n.reporter.Screenshot(ctx, d, "unknown")
	return n.refresh(ctx, d)
}
