package navigator

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unapproachable/fairgame-fork/internal/auth"
	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/browser/browsertest"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/notify"
	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

const (
	selCartCount = "#nav-cart-count"
	selPTC       = "input[name='proceedToRetailCheckout']"
	selPYO       = "input[name='placeYourOrder1']"
	selSeller    = "#spc-orders span.a-size-small.a-color-secondary"
	selNoThanks  = "#prime-declineCTA"
	selCartBtn   = "#nav-cart"
	selShipTo    = "#shipToThisAddressButton"
	selBanner    = "div.a-box.a-alert.a-alert-success"
	selATC       = "form[action='/associates/addtocart'] input[type='submit']"
)

type recorder struct {
	mu          sync.Mutex
	messages    []notify.Message
	pages       []string
	screenshots []string
}

func (r *recorder) Notify(_ context.Context, _ browser.Driver, msg notify.Message, _ bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages = append(r.messages, msg)
}

func (r *recorder) SavePage(_ context.Context, _ browser.Driver, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pages = append(r.pages, name)
}

func (r *recorder) Screenshot(_ context.Context, _ browser.Driver, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.screenshots = append(r.screenshots, name)
}

func (r *recorder) tags() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, m := range r.messages {
		out = append(out, m.Tag)
	}
	return out
}

func (r *recorder) count(tag string) int {
	n := 0
	for _, t := range r.tags() {
		if t == tag {
			n++
		}
	}
	return n
}

type signInFunc func(ctx context.Context, d browser.Driver) error

func (f signInFunc) Run(ctx context.Context, d browser.Driver) error { return f(ctx, d) }

func newNavigator(t *testing.T, d *browsertest.Driver, tweak func(*Options)) (*Navigator, *recorder) {
	t.Helper()
	opts := DefaultOptions()
	opts.Timeout = time.Millisecond
	if tweak != nil {
		tweak(&opts)
	}
	rec := &recorder{}
	n := New(Static{D: d}, config.DefaultSiteProfile(), nil, nil, rec, nil, opts)
	n.sleep = func(ctx context.Context, _ time.Duration) error { return ctx.Err() }
	n.countdown = func(ctx context.Context, _ time.Duration, _ string, _ func() bool) error { return ctx.Err() }
	n.waitTitle = func(ctx context.Context, d browser.Driver, _ time.Duration) (string, error) { return d.Title(ctx) }
	n.waitChange = func(ctx context.Context, d browser.Driver, old string, _ time.Duration) (string, bool) {
		title, _ := d.Title(ctx)
		return title, title != old
	}
	return n, rec
}

func cartPage(count string, withPTC bool) browsertest.Page {
	p := browsertest.Page{Title: "Amazon.com Shopping Cart", Elements: map[string]string{selCartCount: count}}
	if withPTC {
		p.Elements[selPTC] = "Proceed to checkout"
	}
	return p
}

func checkoutPage(seller string, withPYO bool) browsertest.Page {
	p := browsertest.Page{Title: "Amazon.com Checkout", Elements: map[string]string{selCartCount: "1"}}
	if withPYO {
		p.Elements[selPYO] = "Place your order"
	}
	if seller != "" {
		p.Elements[selSeller] = seller
	}
	return p
}

var completePage = browsertest.Page{Title: "Amazon.com Thanks You", Elements: map[string]string{selCartCount: "0"}}

func newAttempt() *Attempt {
	price := models.Money{Amount: 499.99, Currency: "$"}
	return NewAttempt(
		models.TrackedItem{ID: "B08FC5L3RG", GroupID: "g1", MaxPrice: 500, Condition: models.New},
		models.Offer{SellerName: "Amazon.com", Price: &price, OfferID: "abc123"},
	)
}

func TestRunCartToOrderComplete(t *testing.T) {
	d := browsertest.New(cartPage("1", true))
	d.OnClick[selPTC] = func(d *browsertest.Driver) { d.SetPage(checkoutPage("Sold by: Amazon.com", true)) }
	d.OnClick[selPYO] = func(d *browsertest.Driver) { d.SetPage(completePage) }
	n, rec := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, 3, a.Iterations)
	assert.Equal(t, []string{selPTC, selPYO}, d.Clicks)
	assert.Equal(t, 1, rec.count("purchase"))
}

func TestTestModeDoesNotPlaceOrder(t *testing.T) {
	d := browsertest.New(checkoutPage("Sold by: Amazon.com", true))
	n, rec := newNavigator(t, d, func(o *Options) { o.TestMode = true })

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Zero(t, d.ClickCount(selPYO))
	assert.Contains(t, a.Note, "test mode")
	assert.Equal(t, 1, rec.count("purchase"))
}

func TestThirdPartySellerAtCheckoutAbandons(t *testing.T) {
	d := browsertest.New(checkoutPage("Sold by: BestDealz4U", true))
	n, rec := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Zero(t, d.ClickCount(selPYO))
	assert.Contains(t, a.Note, "BestDealz4U")
	assert.Equal(t, 1, rec.count("seller-mismatch"))
}

func TestAmazonWarehouseAtCheckoutAbandons(t *testing.T) {
	d := browsertest.New(checkoutPage("Sold by: Amazon Warehouse", true))
	n, _ := newNavigator(t, d, nil)

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Zero(t, d.ClickCount(selPYO))
}

func TestCheckoutRetryBound(t *testing.T) {
	d := browsertest.New(cartPage("1", false))
	n, rec := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, 4, a.CheckoutRetry)
	assert.Equal(t, 4, d.Refreshes)
	assert.Equal(t, 4, rec.count("ptc-error"))
	assert.Contains(t, rec.pages, "ptc-error")
}

func TestOrderRetryBound(t *testing.T) {
	d := browsertest.New(checkoutPage("", false))
	n, _ := newNavigator(t, d, func(o *Options) { o.MaxOrderRetry = 1 })

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, 2, a.OrderRetry)
	assert.Equal(t, 2, d.Refreshes)
	assert.Contains(t, a.Note, "place order")
}

func TestPlaceOrderSelectorsRotate(t *testing.T) {
	n, _ := newNavigator(t, browsertest.New(browsertest.Page{}), nil)
	a := newAttempt()
	first := n.placeOrderTargets(a)
	a.placeOrderStart++
	second := n.placeOrderTargets(a)

	require.Len(t, second, len(first))
	assert.Equal(t, first[1], second[0])
	assert.Equal(t, first[0], second[len(second)-1])

	// a new attempt starts from the first selector again
	assert.Equal(t, first, n.placeOrderTargets(newAttempt()))
}

func TestEmptyCartAbandons(t *testing.T) {
	d := browsertest.New(cartPage("0", true))
	n, _ := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, "cart is empty", a.Note)
	assert.Zero(t, d.Refreshes)
	assert.Empty(t, d.Clicks)
}

func TestIterationBound(t *testing.T) {
	// the no-thanks click never leaves the page
	d := browsertest.New(browsertest.Page{
		Title:    "Try Amazon Prime for free",
		Elements: map[string]string{selNoThanks: "No thanks"},
	})
	n, _ := newNavigator(t, d, func(o *Options) { o.MaxIterations = 5 })

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, 5, a.Iterations)
	assert.Equal(t, 5, d.ClickCount(selNoThanks))
}

func TestPrimeWithoutButtonRefreshes(t *testing.T) {
	d := browsertest.New(browsertest.Page{Title: "Try Amazon Prime for free"})
	d.OnRefresh = func(d *browsertest.Driver) { d.SetPage(completePage) }
	n, rec := newNavigator(t, d, nil)

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, 1, d.Refreshes)
	assert.Equal(t, 1, rec.count("prime-signup-error"))
	assert.Contains(t, rec.pages, "prime-signup-error")
}

func TestTerminalPagesAbandon(t *testing.T) {
	tests := []struct {
		name  string
		title string
		tag   string
	}{
		{"doggo", "Sorry! Something went wrong!", "doggo"},
		{"out of stock", "Sorry, this item is no longer available", "out-of-stock"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := browsertest.New(browsertest.Page{Title: tt.title})
			n, rec := newNavigator(t, d, nil)

			outcome, err := n.Run(context.Background(), newAttempt())

			require.NoError(t, err)
			assert.Equal(t, engine.OutcomeAbandoned, outcome)
			assert.Equal(t, 1, rec.count(tt.tag))
		})
	}
}

func TestHomeClicksCartButton(t *testing.T) {
	d := browsertest.New(browsertest.Page{
		Title:    "Amazon.com. Spend less. Smile more.",
		Elements: map[string]string{selCartBtn: "Cart"},
	})
	d.OnClick[selCartBtn] = func(d *browsertest.Driver) { d.SetPage(cartPage("0", false)) }
	n, _ := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, 1, d.ClickCount(selCartBtn))
	assert.Equal(t, "cart is empty", a.Note)
}

func TestHomeWithoutCartButtonAbandons(t *testing.T) {
	d := browsertest.New(browsertest.Page{Title: "Amazon.com. Spend less. Smile more."})
	n, rec := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, "stuck on home page", a.Note)
	assert.Equal(t, 1, rec.count("home-page-error"))
}

func TestShippingAddressBypass(t *testing.T) {
	d := browsertest.New(browsertest.Page{
		Title:    "Select a Shipping Address",
		Elements: map[string]string{selShipTo: "Use this address"},
	})
	d.OnClick[selShipTo] = func(d *browsertest.Driver) { d.SetPage(completePage) }
	n, rec := newNavigator(t, d, func(o *Options) { o.ShippingBypass = true })

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, 1, rec.count("choose-shipping"))
}

func TestHandoffNotifiesOncePerAttempt(t *testing.T) {
	d := browsertest.New(browsertest.Page{
		Title:    "Select a Shipping Address",
		Elements: map[string]string{selShipTo: "Use this address"},
	})
	n, rec := newNavigator(t, d, func(o *Options) { o.MaxIterations = 4 })

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Equal(t, 1, rec.count("handoff"))
	assert.Zero(t, d.ClickCount(selShipTo))
}

func TestSignInFailureIsFatal(t *testing.T) {
	d := browsertest.New(browsertest.Page{Title: "Amazon Sign-In"})
	n, _ := newNavigator(t, d, nil)
	n.signin = signInFunc(func(context.Context, browser.Driver) error { return auth.ErrLoginFailed })

	_, err := n.Run(context.Background(), newAttempt())

	require.Error(t, err)
	assert.True(t, engine.IsFatal(err))
	assert.ErrorIs(t, err, auth.ErrLoginFailed)
}

func TestSignInThenContinue(t *testing.T) {
	d := browsertest.New(browsertest.Page{Title: "Amazon Sign-In"})
	n, _ := newNavigator(t, d, nil)
	calls := 0
	n.signin = signInFunc(func(_ context.Context, bd browser.Driver) error {
		calls++
		bd.(*browsertest.Driver).SetPage(completePage)
		return nil
	})

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, 1, calls)
}

func TestUnknownWithSuccessBanner(t *testing.T) {
	d := browsertest.New(browsertest.Page{
		Title:    "Amazon.com - Order 114-0000000",
		Elements: map[string]string{selBanner: "Order placed, thanks!"},
	})
	n, rec := newNavigator(t, d, nil)

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, []string{"unknown-title-purchase", "purchase"}, rec.tags())
}

func TestUnknownForcesCart(t *testing.T) {
	site := urlutil.NewSite("www.amazon.com")
	d := browsertest.New(browsertest.Page{
		Title:    "Something new",
		Elements: map[string]string{selCartCount: "1"},
	})
	d.Pages[site.Cart()] = cartPage("1", true)
	d.OnClick[selPTC] = func(d *browsertest.Driver) { d.SetPage(completePage) }
	n, rec := newNavigator(t, d, nil)

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, []string{site.Cart()}, d.Navigations)
	assert.Equal(t, 1, rec.count("handoff"))
	assert.Equal(t, 1, d.ClickCount(selPTC))
}

func TestUnknownEmptyCartAbandons(t *testing.T) {
	d := browsertest.New(browsertest.Page{
		Title:    "Something new",
		Elements: map[string]string{selCartCount: "0"},
	})
	n, rec := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := n.Run(context.Background(), a)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Zero(t, rec.count("handoff"))
	assert.Empty(t, d.Navigations)
}

func TestUnknownUserIntervenes(t *testing.T) {
	d := browsertest.New(browsertest.Page{Title: "Something new", Elements: map[string]string{selCartCount: "2"}})
	n, _ := newNavigator(t, d, nil)
	n.countdown = func(context.Context, time.Duration, string, func() bool) error {
		d.SetPage(completePage)
		return nil
	}

	outcome, err := n.Run(context.Background(), newAttempt())

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Empty(t, d.Navigations)
}

func TestRunCancelled(t *testing.T) {
	d := browsertest.New(cartPage("1", false))
	n, _ := newNavigator(t, d, nil)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := n.Run(ctx, newAttempt())
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTitleClassifier(t *testing.T) {
	c := NewTitleClassifier(config.DefaultSiteProfile())

	tests := map[string]State{
		"Amazon Sign-In":                          StateSignIn,
		"Robot Check":                             StateCaptcha,
		"Amazon.com Shopping Cart":                StateCart,
		"Place Your Order - Amazon.com Checkout":  StateCheckout,
		"Amazon.com Thanks You":                   StateOrderComplete,
		"Complete your Amazon Prime sign up":      StatePrimeUpsell,
		"Amazon.com. Spend less. Smile more.":     StateHome,
		"Select a Shipping Address":               StateShippingAddress,
		"Business order information":              StateBusinessPO,
		"Sorry, this item is no longer available": StateOutOfStock,
		"Sorry! Something went wrong!":            StateDoggo,
		"":                                        StateUnknown,
		"amazon sign-in":                          StateUnknown,
	}
	for title, want := range tests {
		assert.Equal(t, want, c.Classify(title), title)
	}

	near, score := c.Nearest("Amazon.com Shoping Cart")
	assert.Equal(t, "Amazon.com Shopping Cart", near)
	assert.Greater(t, score, 0.9)
}

func TestFirstParty(t *testing.T) {
	n, _ := newNavigator(t, browsertest.New(browsertest.Page{}), nil)

	for _, seller := range []string{"Amazon", "Amazon.com", "Amazon Resale"} {
		assert.True(t, n.firstParty(seller), seller)
	}
	for _, seller := range []string{
		"Amazon Warehouse",
		"amazon",
		"AMAZON.COM",
		"Amazon Marketplace Seller XYZ",
		"amazon.com Services LLC",
		"AmazonBasicsFan",
		"Joe's Electronics",
		"",
	} {
		assert.False(t, n.firstParty(seller), seller)
	}
}

func TestCheckoutBuyNow(t *testing.T) {
	site := urlutil.NewSite("www.amazon.com")
	d := browsertest.New(browsertest.Page{})
	d.Pages[site.BuyNow("abc123")] = checkoutPage("Sold by: Amazon.com", true)
	n, _ := newNavigator(t, d, func(o *Options) { o.TestMode = true })

	outcome, err := NewCheckout(n, ModeBuyNow).Purchase(context.Background(), newAttempt().Item, newAttempt().Offer)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, []string{site.BuyNow("abc123")}, d.Navigations)
}

func TestCheckoutBuyNowReloads(t *testing.T) {
	site := urlutil.NewSite("www.amazon.com")
	d := browsertest.New(browsertest.Page{})
	d.Pages[site.BuyNow("abc123")] = cartPage("0", false)
	n, _ := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := NewCheckout(n, ModeBuyNow).Purchase(context.Background(), a.Item, a.Offer)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Len(t, d.Navigations, 1+buyNowReloads)
}

func TestCheckoutWithoutOfferID(t *testing.T) {
	d := browsertest.New(browsertest.Page{})
	n, _ := newNavigator(t, d, nil)

	outcome, err := NewCheckout(n, ModeBuyNow).Purchase(context.Background(), newAttempt().Item, models.Offer{SellerName: "Amazon.com"})

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Empty(t, d.Navigations)
}

func TestCheckoutAddToCart(t *testing.T) {
	site := urlutil.NewSite("www.amazon.com")
	d := browsertest.New(browsertest.Page{})
	d.Pages[site.AddToCart("abc123")] = browsertest.Page{
		Title:    "Amazon.com: Please Confirm Your Action",
		Elements: map[string]string{selATC: "Continue", selCartCount: "0"},
	}
	d.OnClick[selATC] = func(d *browsertest.Driver) {
		d.SetPage(browsertest.Page{Title: "Added to cart", Elements: map[string]string{selCartCount: "1"}})
	}
	d.Pages[site.Cart()] = cartPage("1", true)
	d.OnClick[selPTC] = func(d *browsertest.Driver) { d.SetPage(completePage) }
	n, _ := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := NewCheckout(n, ModeAddToCart).Purchase(context.Background(), a.Item, a.Offer)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomePurchased, outcome)
	assert.Equal(t, []string{site.AddToCart("abc123"), site.Cart()}, d.Navigations)
}

func TestCheckoutAddToCartGivesUp(t *testing.T) {
	site := urlutil.NewSite("www.amazon.com")
	d := browsertest.New(browsertest.Page{})
	d.Pages[site.AddToCart("abc123")] = browsertest.Page{
		Title:    "Amazon.com: Please Confirm Your Action",
		Elements: map[string]string{selATC: "Continue", selCartCount: "0"},
	}
	n, rec := newNavigator(t, d, nil)

	a := newAttempt()
	outcome, err := NewCheckout(n, ModeAddToCart).Purchase(context.Background(), a.Item, a.Offer)

	require.NoError(t, err)
	assert.Equal(t, engine.OutcomeAbandoned, outcome)
	assert.Len(t, d.Navigations, addToCartTries)
	assert.Equal(t, addToCartTries, d.ClickCount(selATC))
	assert.Equal(t, 1, rec.count("attempt-atc"))
}

func TestCheckoutNoSession(t *testing.T) {
	n, _ := newNavigator(t, browsertest.New(browsertest.Page{}), nil)
	n.drivers = Static{}

	_, err := NewCheckout(n, ModeBuyNow).Purchase(context.Background(), newAttempt().Item, newAttempt().Offer)
	assert.True(t, engine.IsFatal(err))
	assert.True(t, errors.Is(err, browser.ErrNoSession))
}
