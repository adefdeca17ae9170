package extract

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

const flyoutPage = `<html><head><title>Amazon.com</title></head><body>
<div id="aod-container">
  <h5 id="aod-asin-title-text">  Graphics Card   RTX 4090 </h5>
  <div id="aod-pinned-offer">
    <div id="aod-offer-heading"><h5>New</h5></div>
    <div id="aod-price-0"><span class="a-price"><span class="a-offscreen">$110.00</span></span></div>
    <div class="aod-unified-delivery"><div id="mir-layout-DELIVERY_BLOCK-slot-PRIMARY_DELIVERY_MESSAGE_LARGE"><span>FREE delivery <span class="a-text-bold">Tuesday</span></span></div></div>
    <div id="aod-offer-soldBy"><a target="_blank" href="/seller/1">ThirdPartyCo</a></div>
    <form method="post" action="/gp/aod/handle-buy-box/ref=aod_dpdsk_new_1">
      <input type="hidden" name="offeringID.1" value="OID-1">
      <input type="submit" name="submit.addToCart" aria-label="Add to Cart from seller ThirdPartyCo and price $110.00">
    </form>
  </div>
  <div id="aod-offer">
    <div id="aod-offer-heading"><h5>Used - Very Good</h5></div>
    <div id="aod-price-1"><span class="a-price"><span class="a-offscreen">$115.00</span></span></div>
    <div id="aod-bottlingDepositFee-1"></div><span><span>+ $5.00</span> shipping</span>
    <div id="aod-offer-soldBy"><span class="a-size-small a-color-base">Amazon Resale</span></div>
    <form method="post" action="/gp/aod/handle-buy-box/ref=aod_dpdsk_used_1">
      <span data-action="aod-atc-action" data-aod-atc-action='{"oid": "OID-2", "asin": "B0TEST"}'>
        <input type="submit" name="submit.addToCart" aria-label="Add to Cart from seller Amazon Resale and price $115.00">
      </span>
    </form>
  </div>
  <div id="aod-offer">
    <div id="aod-offer-heading"><h5>New</h5></div>
    <div id="aod-price-2"><span class="a-price"><span class="a-offscreen">$90.00</span></span></div>
    <form method="post" action="/gp/aod/handle-buy-box/ref=aod_dpdsk_new_2">
      <input type="submit" name="submit.addToCart" aria-label="Add to Cart from seller Broken and price $90.00">
    </form>
  </div>
  <div id="aod-offer">
    <div id="aod-offer-heading"><h5>Refurbished</h5></div>
    <div id="aod-price-3"><span class="a-price"><span class="a-offscreen">Currently unavailable</span></span></div>
    <form method="post" action="/gp/aod/handle-buy-box/ref=aod_dpdsk_new_3">
      <input type="hidden" name="offeringID.1" value="OID-4">
      <input type="submit" name="submit.addToCart" aria-label="Add to Cart from seller Amazon.com and price">
    </form>
  </div>
</div>
</body></html>`

const buyBoxPage = `<html><body>
<span id="productTitle">Console</span>
<form id="addToCart" method="post" action="/gp/product/handle-buy-box">
  <span id="price_inside_buybox">$499.99</span>
  <input type="hidden" name="offerListingID" value="BB-1">
  <div id="merchant-info">Ships from and sold by Amazon.com.</div>
  <input type="submit" name="submit.addToCart" id="add-to-cart-button">
</form>
</body></html>`

func newExtractor() *Extractor {
	return New(config.DefaultSiteProfile())
}

func TestIsFree(t *testing.T) {
	e := newExtractor()
	assert.True(t, e.isFree("FREE Shipping"))
	assert.True(t, e.isFree("  free   delivery "))
	assert.True(t, e.isFree("FREE"))
	assert.False(t, e.isFree("FREE Shipping on orders over $25"))
	assert.False(t, e.isFree("$6.99 delivery"))
	assert.False(t, e.isFree(""))

	e.freeShipping = []string{"", "   ", "FREE SHIPPING"}
	assert.False(t, e.isFree("$6.99 delivery"))
	assert.False(t, e.isFree("Ships in a while"))
	assert.True(t, e.isFree("free shipping"))
}

func TestShippingCostBlankFreePhrase(t *testing.T) {
	e := newExtractor()
	e.freeShipping = append(e.freeShipping, " ")

	doc, err := e.Parse(`<html><body><div class="aod-unified-delivery"><div id="mir-layout-DELIVERY_BLOCK-slot-PRIMARY_DELIVERY_MESSAGE_LARGE"><span>$6.99 delivery <b>Friday</b></span></div></div></body></html>`)
	require.NoError(t, err)
	got := e.ShippingCost(doc.Selection)
	assert.InDelta(t, 6.99, got.Amount, 1e-9)
	assert.Equal(t, "$", got.Currency)
}

func TestShippingCost(t *testing.T) {
	tests := []struct {
		name     string
		html     string
		expected float64
	}{
		{
			name:     "unified free phrase",
			html:     `<div class="aod-unified-delivery"><div id="mir-layout-DELIVERY_BLOCK-slot-PRIMARY_DELIVERY_MESSAGE_LARGE"><span>FREE Shipping</span></div></div>`,
			expected: 0,
		},
		{
			name:     "unified priced",
			html:     `<div class="aod-unified-delivery"><div id="mir-layout-DELIVERY_BLOCK-slot-PRIMARY_DELIVERY_MESSAGE_LARGE"><span>$6.99 delivery <b>Friday</b></span></div></div>`,
			expected: 6.99,
		},
		{
			name:     "unified without currency falls through",
			html:     `<div class="aod-unified-delivery"><div id="mir-layout-DELIVERY_BLOCK-slot-PRIMARY_DELIVERY_MESSAGE_LARGE"><span>90 days of music included</span></div></div>`,
			expected: 0,
		},
		{
			name:     "span with plus",
			html:     `<div id="aod-bottlingDepositFee-0"></div><span><span>+ $5.00</span> shipping</span>`,
			expected: 5.00,
		},
		{
			name:     "span with ampersand",
			html:     `<div id="aod-bottlingDepositFee-0"></div><span><span>&amp;</span> FREE Shipping</span>`,
			expected: 0,
		},
		{
			name:     "div with spans",
			html:     `<div id="aod-bottlingDepositFee-0"></div><div class="aod-ship-charge"><span>+</span><span>S$21.44</span><span>shipping</span></div>`,
			expected: 21.44,
		},
		{
			name:     "empty div",
			html:     `<div id="aod-bottlingDepositFee-0"></div><div></div>`,
			expected: 0,
		},
		{
			name:     "bold free message",
			html:     `<div id="aod-bottlingDepositFee-0"></div><span><b>FREE Shipping</b></span>`,
			expected: 0,
		},
		{
			name:     "prime icon",
			html:     `<div id="aod-bottlingDepositFee-0"></div><span><i class="a-icon-prime" aria-label="Amazon Prime FREE Delivery"></i></span>`,
			expected: 0,
		},
		{
			name:     "unparseable span",
			html:     `<div id="aod-bottlingDepositFee-0"></div><span>Ships in a while</span>`,
			expected: 0,
		},
		{
			name:     "no shipping nodes",
			html:     `<div>nothing here</div>`,
			expected: 0,
		},
	}

	e := newExtractor()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.Parse("<html><body>" + tt.html + "</body></html>")
			require.NoError(t, err)
			got := e.ShippingCost(doc.Selection)
			assert.InDelta(t, tt.expected, got.Amount, 1e-9)
		})
	}
}

func TestExtractFlyout(t *testing.T) {
	e := newExtractor()
	doc, err := e.Parse(flyoutPage)
	require.NoError(t, err)

	assert.Equal(t, LayoutFlyout, e.Classify(doc))
	assert.Equal(t, "Graphics Card RTX 4090", e.ItemName(doc))

	want := []models.Offer{
		{
			SellerName: "ThirdPartyCo",
			Price:      &models.Money{Amount: 110, Currency: "$"},
			Condition:  models.New,
			OfferID:    "OID-1",
			Layout:     "flyout",
		},
		{
			SellerName: "Amazon Resale",
			Price:      &models.Money{Amount: 115, Currency: "$"},
			Shipping:   models.Money{Amount: 5, Currency: "$"},
			Condition:  models.UsedVeryGood,
			OfferID:    "OID-2",
			Layout:     "flyout",
		},
		{
			SellerName: "Amazon.com",
			Condition:  models.Refurbished,
			OfferID:    "OID-4",
			Layout:     "flyout",
		},
	}
	got := e.Extract(doc)
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Extract() mismatch (-want +got):\n%s", diff)
	}
}

func TestExtractBuyBox(t *testing.T) {
	e := newExtractor()
	doc, err := e.Parse(buyBoxPage)
	require.NoError(t, err)

	assert.Equal(t, LayoutBuyBox, e.Classify(doc))
	offers := e.Extract(doc)
	require.Len(t, offers, 1)
	assert.Equal(t, "Amazon.com", offers[0].SellerName)
	assert.Equal(t, "BB-1", offers[0].OfferID)
	assert.Equal(t, models.New, offers[0].Condition)
	require.NotNil(t, offers[0].Price)
	assert.InDelta(t, 499.99, offers[0].Price.Amount, 1e-9)
}

func TestClassify(t *testing.T) {
	e := newExtractor()
	tests := []struct {
		name     string
		html     string
		expected Layout
	}{
		{"out of stock", `<div id="outOfStock">Currently unavailable.</div>`, LayoutOutOfStock},
		{"back in stock", `<div id="backInStock"></div>`, LayoutOutOfStock},
		{"no sellers", `<div id="olpOfferList"><div><p>Currently, there are no sellers that can deliver this item to your location.</p></div></div>`, LayoutNoSellers},
		{"other listing message", `<div id="olpOfferList"><div><p>Sort by price</p></div></div>`, LayoutUnknown},
		{"offers link", `<div id="buybox-see-all-buying-choices"><a href="#">See All Buying Options</a></div>`, LayoutOffersLink},
		{"unknown", `<p>hello</p>`, LayoutUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			doc, err := e.Parse("<html><body>" + tt.html + "</body></html>")
			require.NoError(t, err)
			assert.Equal(t, tt.expected, e.Classify(doc))
			assert.Empty(t, e.Extract(doc))
		})
	}
}

func TestExtractMalformedMarkup(t *testing.T) {
	e := newExtractor()
	doc, err := e.Parse(`<div id="aod-offer"><input name="submit.addToCart"><span data-action="aod-atc-action" data-aod-atc-action="{not valid js"></span>`)
	require.NoError(t, err)
	assert.NotPanics(t, func() {
		assert.Empty(t, e.Extract(doc))
	})
}

func TestCaptchaImageAndCartCount(t *testing.T) {
	e := newExtractor()
	doc, err := e.Parse(`<html><body>
<span id="nav-cart-count">2</span>
<form action="/errors/validateCaptcha"><img src="https://images.example/captcha/abc.jpg"><input id="captchacharacters"></form>
</body></html>`)
	require.NoError(t, err)

	src, ok := e.CaptchaImage(doc)
	require.True(t, ok)
	assert.Equal(t, "https://images.example/captcha/abc.jpg", src)

	count, ok := e.CartCount(doc)
	require.True(t, ok)
	assert.Equal(t, 2, count)
}

func TestDecodeAtcAction(t *testing.T) {
	id, err := decodeAtcAction(`{oid: 'JS-LITERAL', qty: 1}`)
	require.NoError(t, err)
	assert.Equal(t, "JS-LITERAL", id)

	_, err = decodeAtcAction(`[1, 2]`)
	assert.Error(t, err)
}
