package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// ValidateURL checks that urlStr is an absolute http(s) URL.
func ValidateURL(urlStr string) error {
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid URL scheme: must be http or https, got %s", parsed.Scheme)
	}
	if parsed.Host == "" {
		return fmt.Errorf("invalid URL: missing host")
	}
	return nil
}

// ResolveURL resolves a possibly-relative href against base.
func ResolveURL(base, href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if u.IsAbs() {
		return href
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(u).String()
}

// NormalizeDomain strips a scheme and trailing path from a configured
// storefront domain: "https://www.amazon.com/" becomes "www.amazon.com".
func NormalizeDomain(domain string) string {
	d := strings.TrimSpace(domain)
	d = strings.TrimPrefix(d, "https://")
	d = strings.TrimPrefix(d, "http://")
	if i := strings.IndexByte(d, '/'); i >= 0 {
		d = d[:i]
	}
	return strings.ToLower(d)
}

// Site builds storefront URLs for one domain.
type Site struct {
	Domain string
}

// NewSite returns URL builders for domain.
func NewSite(domain string) Site {
	return Site{Domain: NormalizeDomain(domain)}
}

func (s Site) build(path string, q url.Values) string {
	u := url.URL{Scheme: "https", Host: s.Domain, Path: path}
	if q != nil {
		u.RawQuery = q.Encode()
	}
	return u.String()
}

// Base is the storefront home page.
func (s Site) Base() string { return s.build("/", nil) }

// Offers is the product page with the all-offers flyout opened.
func (s Site) Offers(id string) string {
	return s.build("/dp/"+url.PathEscape(id), url.Values{
		"aod":       {"1"},
		"ie":        {"UTF8"},
		"condition": {"ALL"},
		"th":        {"1"},
	})
}

// AltOffers is the legacy offer-listing page.
func (s Site) AltOffers(id string) string {
	return s.build("/gp/offer-listing/"+url.PathEscape(id), url.Values{
		"ie":        {"UTF8"},
		"condition": {"ALL"},
	})
}

// Product is the plain product detail page.
func (s Site) Product(id string) string {
	return s.build("/dp/"+url.PathEscape(id), nil)
}

// OffersAjax is the flyout fragment endpoint.
func (s Site) OffersAjax(id string) string {
	return s.build("/gp/aod/ajax", url.Values{"asin": {id}})
}

// Cart is the shopping cart page.
func (s Site) Cart() string { return s.build("/gp/cart/view.html", nil) }

// AddToCart adds one unit of offerID to the cart.
func (s Site) AddToCart(offerID string) string {
	return s.build("/gp/aws/cart/add.html", url.Values{
		"OfferListingId.1": {offerID},
		"Quantity.1":       {"1"},
	})
}

// BuyNow enters checkout for offerID directly, skipping the cart.
func (s Site) BuyNow(offerID string) string {
	return s.build("/gp/checkoutportal/enter-checkout.html", url.Values{
		"buyNow":     {"1"},
		"skipCart":   {"1"},
		"quantity":   {"1"},
		"offeringID": {offerID},
	})
}

// SignIn is the account page, which redirects to sign-in when needed.
func (s Site) SignIn() string {
	return s.build("/gp/sign-in.html", nil)
}
