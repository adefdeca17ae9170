// Package navigator drives the browser from a started checkout to a placed
// order. Each step reads the page title, classifies it and runs the handler
// for that kind of page until the attempt succeeds or is abandoned.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/auth"
	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/metrics"
	"github.com/unapproachable/fairgame-fork/internal/notify"
	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

const (
	homeCartTries = 10
	homeCartDelay = 500 * time.Millisecond
	primeSettle   = 2 * time.Second
	unknownSettle = 3 * time.Second
	cartSettle    = time.Second
)

// DriverSource hands out the current browser.
type DriverSource interface {
	Driver() browser.Driver
}

// Static is a DriverSource that always returns D.
type Static struct{ D browser.Driver }

func (s Static) Driver() browser.Driver { return s.D }

// SignIn completes the sign-in form on the current page.
type SignIn interface {
	Run(ctx context.Context, d browser.Driver) error
}

// CaptchaHandler clears a captcha on the current page.
type CaptchaHandler interface {
	Handle(ctx context.Context, d browser.Driver) error
}

// Reporter sends notifications and keeps page diagnostics.
type Reporter interface {
	Notify(ctx context.Context, d browser.Driver, msg notify.Message, screenshot bool)
	SavePage(ctx context.Context, d browser.Driver, name string)
	Screenshot(ctx context.Context, d browser.Driver, name string)
}

// Options bound and tune navigation.
type Options struct {
	MaxCheckoutRetry int
	MaxOrderRetry    int
	MaxIterations    int
	Timeout          time.Duration // wait for a button to appear or a click to land
	BlankTitleWait   time.Duration
	HandoffWait      time.Duration
	PrimeWait        time.Duration
	HomeWait         time.Duration
	ShippingBypass   bool
	TestMode         bool
	Detailed         bool     // notify on intermediate steps too
	Sellers          []string // accepted sellers on the review page
}

// DefaultOptions returns the stock bounds.
func DefaultOptions() Options {
	return Options{
		MaxCheckoutRetry: 3,
		MaxOrderRetry:    3,
		MaxIterations:    30,
		Timeout:          10 * time.Second,
		BlankTitleWait:   10 * time.Second,
		HandoffWait:      30 * time.Second,
		PrimeWait:        60 * time.Second,
		HomeWait:         300 * time.Second,
	}
}

// Attempt is the mutable state of one checkout.
type Attempt struct {
	Item          models.TrackedItem
	Offer         models.Offer
	CheckoutRetry int
	OrderRetry    int
	Iterations    int
	Note          string

	outcome  engine.Outcome
	done     bool
	notified bool
	started  time.Time

	// index of the place-order selector tried first on the next review page
	placeOrderStart int
}

// NewAttempt starts an attempt for offer.
func NewAttempt(item models.TrackedItem, offer models.Offer) *Attempt {
	return &Attempt{Item: item, Offer: offer, started: time.Now()}
}

// Done reports whether the attempt reached a terminal outcome.
func (a *Attempt) Done() bool { return a.done }

// Outcome is valid once Done is true.
func (a *Attempt) Outcome() engine.Outcome { return a.outcome }

func (a *Attempt) succeed(note string) {
	a.done, a.outcome, a.Note = true, engine.OutcomePurchased, note
}

func (a *Attempt) abandon(note string) {
	a.done, a.outcome, a.Note = true, engine.OutcomeAbandoned, note
}

// Navigator is the checkout state machine.
type Navigator struct {
	drivers    DriverSource
	classifier Classifier
	signin     SignIn
	captcha    CaptchaHandler
	reporter   Reporter
	metrics    *metrics.Metrics
	site       config.SiteProfile
	urls       urlutil.Site
	opts       Options

	sleep      func(ctx context.Context, d time.Duration) error
	countdown  func(ctx context.Context, d time.Duration, label string, stop func() bool) error
	waitTitle  func(ctx context.Context, d browser.Driver, timeout time.Duration) (string, error)
	waitChange func(ctx context.Context, d browser.Driver, old string, timeout time.Duration) (string, bool)
}

// New builds a navigator. signin, captcha, reporter and m may be nil.
func New(drivers DriverSource, site config.SiteProfile, signin SignIn, captcha CaptchaHandler, reporter Reporter, m *metrics.Metrics, opts Options) *Navigator {
	if reporter == nil {
		reporter = logReporter{}
	}
	if len(opts.Sellers) == 0 {
		opts.Sellers = site.FirstPartySellers
	}
	return &Navigator{
		drivers:    drivers,
		classifier: NewTitleClassifier(site),
		signin:     signin,
		captcha:    captcha,
		reporter:   reporter,
		metrics:    m,
		site:       site,
		urls:       urlutil.NewSite(site.Domain),
		opts:       opts,
		sleep:      sleepCtx,
		countdown:  logCountdown,
		waitTitle:  browser.WaitTitle,
		waitChange: browser.WaitTitleChange,
	}
}

// SetClassifier replaces the title classifier.
func (n *Navigator) SetClassifier(c Classifier) { n.classifier = c }

// SetCountdown replaces the handoff countdown, normally a progress bar.
func (n *Navigator) SetCountdown(fn func(ctx context.Context, d time.Duration, label string, stop func() bool) error) {
	n.countdown = fn
}

// Classify returns the state of title.
func (n *Navigator) Classify(title string) State { return n.classifier.Classify(title) }

// Run steps until the attempt is decided. Purchase failure is reported as
// OutcomeAbandoned; only cancellation and session-fatal errors are returned.
func (n *Navigator) Run(ctx context.Context, a *Attempt) (engine.Outcome, error) {
	for !a.done {
		switch {
		case a.CheckoutRetry > n.opts.MaxCheckoutRetry:
			a.abandon(fmt.Sprintf("proceed to checkout failed %d times", a.CheckoutRetry))
			continue
		case a.OrderRetry > n.opts.MaxOrderRetry:
			a.abandon(fmt.Sprintf("place order failed %d times", a.OrderRetry))
			continue
		case a.Iterations >= n.opts.MaxIterations:
			a.abandon(fmt.Sprintf("checkout did not finish within %d pages", a.Iterations))
			continue
		}

		if err := n.Step(ctx, a); err != nil {
			if ctx.Err() != nil {
				return engine.OutcomeAbandoned, ctx.Err()
			}
			if engine.IsFatal(err) {
				return engine.OutcomeAbandoned, err
			}
			log.Warn().Err(err).Str("asin", a.Item.ID).Msg("Checkout step failed")
		}
	}

	ev := log.Info()
	if a.outcome != engine.OutcomePurchased {
		ev = log.Warn()
	}
	ev.Str("asin", a.Item.ID).
		Str("outcome", a.outcome.String()).
		Str("note", a.Note).
		Int("pages", a.Iterations).
		Dur("elapsed", time.Since(a.started)).
		Msg("Checkout finished")
	return a.outcome, nil
}

// Step handles the page currently shown.
func (n *Navigator) Step(ctx context.Context, a *Attempt) error {
	a.Iterations++
	d := n.drivers.Driver()
	if d == nil {
		return engine.SessionFatal("no browser session", browser.ErrNoSession)
	}

	title, err := n.waitTitle(ctx, d, n.opts.BlankTitleWait)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug().Err(err).Msg("Could not read page title")
	}
	if title == "" {
		log.Debug().Msg("Time out reached, page title was still blank")
	}

	state := n.classifier.Classify(title)
	n.metrics.IncNavigatorStep(state.String())
	log.Debug().Str("title", title).Str("state", state.String()).Int("page", a.Iterations).Msg("Navigating page")

	switch state {
	case StateSignIn:
		return n.handleSignIn(ctx, d, a)
	case StateCaptcha:
		return n.handleCaptcha(ctx, d)
	case StateCart:
		return n.handleCart(ctx, d, a, title)
	case StateCheckout:
		return n.handleCheckout(ctx, d, a, title)
	case StateOrderComplete:
		return n.handleOrderComplete(ctx, d, a)
	case StatePrimeUpsell:
		return n.handlePrime(ctx, d, title)
	case StateHome:
		return n.handleHome(ctx, d, a, title)
	case StateDoggo:
		n.reporter.Notify(ctx, d, notify.Message{Title: "You got dogs, bot may not work correctly. Ending Checkout", Tag: "doggo"}, false)
		a.abandon("error page")
		return nil
	case StateOutOfStock:
		n.reporter.Notify(ctx, d, notify.Message{Title: "Carted it, but went out of stock, better luck next time.", Tag: "out-of-stock"}, false)
		a.abandon("went out of stock during checkout")
		return nil
	case StateBusinessPO:
		return n.handleBusinessPO(ctx, d, a, title)
	case StateShippingAddress:
		if n.opts.ShippingBypass && n.shipToAddress(ctx, d, title) {
			return nil
		}
		log.Warn().Msg("Landed on address selection screen. Select the options needed to reach the review page, or complete checkout manually.")
		return n.handoff(ctx, d, a, title)
	default:
		return n.handleUnknown(ctx, d, a, title)
	}
}

func (n *Navigator) handleSignIn(ctx context.Context, d browser.Driver, a *Attempt) error {
	if n.signin == nil {
		a.abandon("sign-in page reached with no credentials")
		return nil
	}
	if err := n.signin.Run(ctx, d); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if errors.Is(err, auth.ErrLoginFailed) {
			return engine.SessionFatal("sign-in failed", err)
		}
		log.Warn().Err(err).Msg("Sign-in did not complete")
	}
	return nil
}

func (n *Navigator) handleCaptcha(ctx context.Context, d browser.Driver) error {
	if n.captcha == nil {
		return n.refresh(ctx, d)
	}
	if err := n.captcha.Handle(ctx, d); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Debug().Err(err).Msg("Captcha not cleared")
	}
	return nil
}

func (n *Navigator) handleCart(ctx context.Context, d browser.Driver, a *Attempt, title string) error {
	log.Info().Msg("Looking for Proceed To Checkout button...")
	if n.cartEmpty(ctx, d) {
		log.Error().Msg("You have no items in cart. Going back to stock check.")
		a.abandon("cart is empty")
		return nil
	}

	sel := n.site.Selectors
	targets := sel.ProceedToCheckout
	if n.opts.ShippingBypass {
		targets = slices.Concat(targets, sel.ShipToAddress)
	}
	matched, err := d.WaitAny(ctx, n.opts.Timeout, targets...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Msg("Couldn't find buttons to proceed to checkout")
		n.reporter.SavePage(ctx, d, "ptc-error")
		n.reporter.Notify(ctx, d, notify.Message{Title: "Proceed to Checkout Error Occurred", Tag: "ptc-error"}, true)
		a.CheckoutRetry++
		log.Info().Int("retry", a.CheckoutRetry).Msg("Refreshing page to try again")
		return n.refresh(ctx, d)
	}

	log.Info().Msg("Found Checkout Button")
	if n.opts.Detailed {
		n.reporter.Notify(ctx, d, notify.Message{Title: "Attempting to Proceed to Checkout", Tag: "ptc"}, true)
	}
	if err := n.click(ctx, d, title, matched); err != nil {
		log.Error().Err(err).Msg("Problem clicking Proceed to Checkout button")
		a.CheckoutRetry++
		return n.refresh(ctx, d)
	}
	return nil
}

func (n *Navigator) handleCheckout(ctx context.Context, d browser.Driver, a *Attempt, title string) error {
	sel := n.site.Selectors
	targets := n.placeOrderTargets(a)
	if n.opts.ShippingBypass {
		targets = slices.Concat(targets, sel.ShipToAddress)
	}
	matched, err := d.WaitAny(ctx, n.opts.Timeout, targets...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Msg("Couldn't find button to place order")
		n.reporter.SavePage(ctx, d, "pyo-error")
		n.reporter.Notify(ctx, d, notify.Message{Title: "Error in placing order. Please check browser window.", Tag: "pyo-error"}, true)
		a.placeOrderStart++
		a.OrderRetry++
		log.Info().Int("retry", a.OrderRetry).Msg("Refreshing page to try again")
		return n.refresh(ctx, d)
	}

	if slices.Contains(sel.ShipToAddress, matched) && !slices.Contains(sel.PlaceOrder, matched) {
		log.Warn().Msg("Review page is asking for a shipping address")
		if err := n.click(ctx, d, title, matched); err != nil {
			a.OrderRetry++
			return n.refresh(ctx, d)
		}
		return nil
	}

	if seller, ok := n.checkoutSeller(ctx, d); ok && !n.firstParty(seller) {
		log.Warn().Str("seller", seller).Msg("Third party detected at checkout, bailing")
		n.reporter.Notify(ctx, d, notify.Message{
			Title: "Checkout abandoned",
			Body:  fmt.Sprintf("Review page shows seller %q for %s", seller, a.Item.ID),
			Tag:   "seller-mismatch",
		}, true)
		a.abandon("third-party seller at checkout: " + seller)
		return nil
	}

	if n.opts.TestMode {
		log.Info().Str("button", matched).Msg("Found place order button, but this is a test. Will not try to complete order")
		log.Info().Dur("elapsed", time.Since(a.started)).Msg("Time to reach the review page")
		n.reporter.Notify(ctx, d, notify.Message{
			Title: "Test Carted.",
			Body:  fmt.Sprintf("%s reached the review page", a.Item.ID),
			Tag:   "purchase",
		}, true)
		a.succeed("test mode: place order not clicked")
		return nil
	}

	log.Info().Str("button", matched).Msg("Clicking button to place order")
	if err := n.click(ctx, d, title, matched); err != nil {
		log.Error().Err(err).Msg("Could not click place order button")
		a.OrderRetry++
		return n.refresh(ctx, d)
	}
	return nil
}

func (n *Navigator) handleOrderComplete(ctx context.Context, d browser.Driver, a *Attempt) error {
	log.Info().Str("asin", a.Item.ID).Dur("elapsed", time.Since(a.started)).Msg("Order Placed.")
	total, _ := a.Offer.Total()
	n.reporter.Notify(ctx, d, notify.Message{
		Title: "Order placed.",
		Body:  fmt.Sprintf("%s from %s for %s", a.Item.ID, a.Offer.SellerName, total),
		Tag:   "purchase",
	}, true)
	a.succeed("order placed")
	return nil
}

func (n *Navigator) handlePrime(ctx context.Context, d browser.Driver, title string) error {
	log.Info().Msg("Prime offer page popped up, attempting to click No Thanks")
	if err := n.sleep(ctx, primeSettle); err != nil {
		return err
	}
	if _, err := n.clickFirst(ctx, d, title, n.site.Selectors.PrimeNoThanks); err == nil {
		return nil
	}

	log.Error().Msg("Prime offer page popped up, user intervention required")
	n.reporter.SavePage(ctx, d, "prime-signup-error")
	n.reporter.Notify(ctx, d, notify.Message{
		Title: "Prime offer page popped up, user intervention required",
		Tag:   "prime-signup-error",
		Alarm: true,
	}, true)
	if _, changed := n.waitChange(ctx, d, title, n.opts.PrimeWait); !changed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Info().Msg("User did not intervene in time, will try and refresh page")
		return n.refresh(ctx, d)
	}
	return nil
}

func (n *Navigator) handleHome(ctx context.Context, d browser.Driver, a *Attempt, title string) error {
	log.Warn().Msg("On home page, trying to get back to checkout")
	sel := n.site.Selectors.CartButton
	found := false
	for try := 0; try < homeCartTries; try++ {
		if d.Exists(ctx, sel) {
			found = true
			break
		}
		if err := n.sleep(ctx, homeCartDelay); err != nil {
			return err
		}
	}
	if found {
		if err := n.click(ctx, d, title, sel); err == nil {
			return nil
		}
		log.Error().Msg("Failed to click on cart button")
	} else {
		log.Error().Int("tries", homeCartTries).Msg("Could not find cart button")
	}

	n.reporter.Notify(ctx, d, notify.Message{
		Title: "Could not click cart button, user intervention required",
		Tag:   "home-page-error",
		Alarm: true,
	}, true)
	if _, changed := n.waitChange(ctx, d, title, n.opts.HomeWait); !changed {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Msg("User failed to intervene in time, returning to stock check")
		a.abandon("stuck on home page")
	}
	return nil
}

func (n *Navigator) handleBusinessPO(ctx context.Context, d browser.Driver, a *Attempt, title string) error {
	log.Info().Msg("On Business PO Page, trying to move on to checkout")
	sel := n.site.Selectors.BusinessPOContinue
	if _, err := d.WaitAny(ctx, n.opts.Timeout, sel); err == nil {
		if err := n.click(ctx, d, title, sel); err == nil {
			return nil
		}
	} else if ctx.Err() != nil {
		return ctx.Err()
	}
	log.Info().Msg("Could not find the continue button, user intervention required")
	return n.handoff(ctx, d, a, title)
}

// shipToAddress clicks whichever ship-to-this-address button is present.
func (n *Navigator) shipToAddress(ctx context.Context, d browser.Driver, title string) bool {
	if sel, ok := browser.FirstExisting(ctx, d, n.site.Selectors.ShipToAddress); ok {
		log.Warn().Msg("FairGame thinks it needs to pick a shipping address. VERIFY THE ADDRESS IT SHIPPED TO IMMEDIATELY!")
		n.reporter.Notify(ctx, d, notify.Message{
			Title: "Clicking ship to address, hopefully this works. VERIFY ASAP!",
			Tag:   "choose-shipping",
		}, true)
		if err := n.click(ctx, d, title, sel); err == nil {
			return true
		}
		log.Error().Msg("Could not click ship to address button")
	}
	log.Error().Msg("FairGame cannot find a button to click on the shipping page")
	n.reporter.Screenshot(ctx, d, "shipping-select-error")
	n.reporter.SavePage(ctx, d, "shipping-select-error")
	return false
}

// handoff asks the user to take over and waits HandoffWait, returning early
// if the page changes. The alarm is raised once per attempt.
func (n *Navigator) handoff(ctx context.Context, d browser.Driver, a *Attempt, title string) error {
	if !a.notified {
		n.reporter.Notify(ctx, d, notify.Message{
			Title: "User interaction required for checkout!",
			Body:  fmt.Sprintf("You have %s. Page: %s", n.opts.HandoffWait, title),
			Tag:   "handoff",
			Alarm: true,
		}, true)
		a.notified = true
	}
	return n.countdown(ctx, n.opts.HandoffWait, "Waiting for user", func() bool {
		current, err := d.Title(ctx)
		return err == nil && current != title
	})
}

// click clicks sel and waits for the title to move off title.
func (n *Navigator) click(ctx context.Context, d browser.Driver, title, sel string) error {
	if err := d.Click(ctx, sel); err != nil {
		return err
	}
	n.waitChange(ctx, d, title, n.opts.Timeout)
	return nil
}

func (n *Navigator) clickFirst(ctx context.Context, d browser.Driver, title string, sels []string) (string, error) {
	sel, err := browser.ClickFirst(ctx, d, sels)
	if err != nil {
		return "", err
	}
	n.waitChange(ctx, d, title, n.opts.Timeout)
	return sel, nil
}

func (n *Navigator) refresh(ctx context.Context, d browser.Driver) error {
	if err := d.Refresh(ctx); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return engine.NewEngineError(engine.ErrCodeTransient, "refresh failed", err).WithRetry()
	}
	return nil
}

// placeOrderTargets returns the place-order selectors starting at the one
// after the last miss in this attempt.
func (n *Navigator) placeOrderTargets(a *Attempt) []string {
	sels := n.site.Selectors.PlaceOrder
	if len(sels) == 0 {
		return nil
	}
	i := a.placeOrderStart % len(sels)
	return slices.Concat(sels[i:], sels[:i])
}

// cartCount reads the header cart badge, -1 when absent or unreadable.
func (n *Navigator) cartCount(ctx context.Context, d browser.Driver) int {
	text, err := d.Text(ctx, n.site.Selectors.CartCount)
	if err != nil {
		return -1
	}
	c, err := strconv.Atoi(strings.TrimSpace(text))
	if err != nil {
		log.Debug().Str("text", text).Msg("Error converting cart number to integer")
		return -1
	}
	return c
}

func (n *Navigator) cartEmpty(ctx context.Context, d browser.Driver) bool {
	if _, ok := browser.FirstExisting(ctx, d, n.site.Selectors.EmptyCart); ok {
		return true
	}
	return n.cartCount(ctx, d) == 0
}

// CartCount reports the cart badge of the current page, -1 when unknown.
func (n *Navigator) CartCount(ctx context.Context) int {
	d := n.drivers.Driver()
	if d == nil {
		return -1
	}
	return n.cartCount(ctx, d)
}

func (n *Navigator) checkoutSeller(ctx context.Context, d browser.Driver) (string, bool) {
	sel := n.site.Selectors.CheckoutSeller
	if sel == "" {
		return "", false
	}
	text, err := d.Text(ctx, sel)
	if err != nil {
		return "", false
	}
	text = strings.TrimSpace(text)
	if i := strings.Index(strings.ToLower(text), "sold by:"); i >= 0 {
		text = strings.TrimSpace(text[i+len("sold by:"):])
	}
	return text, text != ""
}

// firstParty matches seller against the allow-list exactly, case included.
func (n *Navigator) firstParty(seller string) bool {
	return slices.Contains(n.opts.Sellers, seller)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// logCountdown waits d, logging the remaining seconds.
func logCountdown(ctx context.Context, d time.Duration, label string, stop func() bool) error {
	for left := int(d / time.Second); left > 0; left-- {
		log.Warn().Int("seconds", left).Msg(label)
		if err := sleepCtx(ctx, time.Second); err != nil {
			return err
		}
		if stop != nil && stop() {
			return nil
		}
	}
	return nil
}

type logReporter struct{}

func (logReporter) Notify(_ context.Context, _ browser.Driver, msg notify.Message, _ bool) {
	log.Info().Str("tag", msg.Tag).Msg(msg.String())
}

func (logReporter) SavePage(context.Context, browser.Driver, string)   {}
func (logReporter) Screenshot(context.Context, browser.Driver, string) {}
