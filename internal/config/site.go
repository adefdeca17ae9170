package config

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed site_default.yaml
var defaultSiteProfile []byte

// Title set keys recognized in a site profile.
const (
	TitleSignIn          = "sign_in"
	TitleCaptcha         = "captcha"
	TitleCart            = "cart"
	TitleCheckout        = "checkout"
	TitleOrderComplete   = "order_complete"
	TitlePrimeUpsell     = "prime_upsell"
	TitleHome            = "home"
	TitleShippingAddress = "shipping_address"
	TitleBusinessPO      = "business_po"
	TitleOutOfStock      = "out_of_stock"
	TitleDoggo           = "doggo"
)

// Selectors are the CSS selectors the extractor and the navigator rely on.
type Selectors struct {
	OfferContainers    []string `yaml:"offer_containers"`
	BuyBox             string   `yaml:"buy_box"`
	AddToCart          string   `yaml:"add_to_cart"`
	Seller             []string `yaml:"seller"`
	Price              []string `yaml:"price"`
	ConditionHeading   string   `yaml:"condition_heading"`
	OfferID            []string `yaml:"offer_id"`
	AtcAction          string   `yaml:"atc_action"`
	UnifiedDelivery    string   `yaml:"unified_delivery"`
	ShippingFee        string   `yaml:"shipping_fee"`
	OutOfStock         []string `yaml:"out_of_stock"`
	OfferError         []string `yaml:"offer_error"`
	Flyout             []string `yaml:"flyout"`
	OffersLink         []string `yaml:"offers_link"`
	ItemTitle          []string `yaml:"item_title"`
	CaptchaForm        string   `yaml:"captcha_form"`
	CaptchaInput       string   `yaml:"captcha_input"`
	CartCount          string   `yaml:"cart_count"`
	CartButton         string   `yaml:"cart_button"`
	EmptyCart          []string `yaml:"empty_cart"`
	ProceedToCheckout  []string `yaml:"proceed_to_checkout"`
	PlaceOrder         []string `yaml:"place_order"`
	CheckoutSeller     string   `yaml:"checkout_seller"`
	ShipToAddress      []string `yaml:"ship_to_address"`
	PrimeNoThanks      []string `yaml:"prime_no_thanks"`
	SuccessBanner      string   `yaml:"success_banner"`
	BusinessPOContinue string   `yaml:"business_po_continue"`
	AddToCartContinue  string   `yaml:"add_to_cart_continue"`
	AccountLink        string   `yaml:"account_link"`
	Email              string   `yaml:"email"`
	Password           string   `yaml:"password"`
	RememberMe         string   `yaml:"remember_me"`
	AuthError          string   `yaml:"auth_error"`
	OTPPrompt          string   `yaml:"otp_prompt"`
	Submit             string   `yaml:"submit"`
}

// SiteProfile holds everything that ties the bot to one retailer's markup:
// known page titles, phrase sets and selectors. It is loaded once and passed
// by value to every component that needs it.
type SiteProfile struct {
	Domain            string              `yaml:"domain"`
	Titles            map[string][]string `yaml:"titles"`
	TwoFactorTitles   []string            `yaml:"two_factor_titles"`
	FreeShipping      []string            `yaml:"free_shipping"`
	NoSellers         []string            `yaml:"no_sellers"`
	FirstPartySellers []string            `yaml:"first_party_sellers"`
	SignInPhrases     []string            `yaml:"sign_in_phrases"`
	Selectors         Selectors           `yaml:"selectors"`
}

// DefaultSiteProfile returns the embedded profile.
func DefaultSiteProfile() SiteProfile {
	var p SiteProfile
	if err := yaml.Unmarshal(defaultSiteProfile, &p); err != nil {
		// the embedded file is part of the build
		panic(fmt.Sprintf("embedded site profile: %v", err))
	}
	return p
}

// LoadSiteProfile returns the default profile with the keys of the file at
// path layered on top. An empty path returns the default. domain, when
// non-empty, replaces the profile's domain.
func LoadSiteProfile(path, domain string) (SiteProfile, error) {
	p := DefaultSiteProfile()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return SiteProfile{}, fmt.Errorf("read site profile: %w", err)
		}
		if err := yaml.Unmarshal(data, &p); err != nil {
			return SiteProfile{}, fmt.Errorf("parse site profile %s: %w", path, err)
		}
	}
	if domain != "" {
		p.Domain = domain
	}
	if err := p.validate(); err != nil {
		return SiteProfile{}, err
	}
	return p, nil
}

func (p SiteProfile) validate() error {
	if p.Domain == "" {
		return fmt.Errorf("site profile: domain is required")
	}
	if len(p.Selectors.OfferContainers) == 0 {
		return fmt.Errorf("site profile: at least one offer container selector is required")
	}
	if len(p.FirstPartySellers) == 0 {
		return fmt.Errorf("site profile: first_party_sellers must not be empty")
	}
	for _, key := range []string{TitleCart, TitleCheckout, TitleOrderComplete} {
		if len(p.Titles[key]) == 0 {
			return fmt.Errorf("site profile: titles.%s must not be empty", key)
		}
	}
	return nil
}
