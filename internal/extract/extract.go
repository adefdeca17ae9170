// Package extract turns offer-listing markup into models.Offer values.
//
// Each offer container element is read once and every facet (seller, price,
// shipping, condition, offer id) is taken from that element's subtree, so a
// broken facet can only spoil its own offer.
package extract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/dop251/goja"
	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// Layout is the markup variant a page was recognized as.
type Layout int

const (
	LayoutUnknown Layout = iota
	LayoutOutOfStock
	LayoutNoSellers
	LayoutFlyout
	LayoutOffersLink
	LayoutBuyBox
)

func (l Layout) String() string {
	switch l {
	case LayoutOutOfStock:
		return "out-of-stock"
	case LayoutNoSellers:
		return "no-sellers"
	case LayoutFlyout:
		return "flyout"
	case LayoutOffersLink:
		return "offers-link"
	case LayoutBuyBox:
		return "buy-box"
	default:
		return "unknown"
	}
}

// ErrMissingOfferID is returned for an offer whose purchase token could not be found.
var ErrMissingOfferID = errors.New("offer id not found")

var sellerLabelRe = regexp.MustCompile(`(?i)from seller (.+?) and price`)
var soldByRe = regexp.MustCompile(`(?i)sold by\s+(.+?)\s*(?:\.\s|\.$|\n|$)`)

// Extractor parses offer markup using the selectors of one site profile.
type Extractor struct {
	sel          config.Selectors
	freeShipping []string
	noSellers    []string
}

// New creates an Extractor bound to the given profile.
func New(profile config.SiteProfile) *Extractor {
	return &Extractor{
		sel:          profile.Selectors,
		freeShipping: profile.FreeShipping,
		noSellers:    profile.NoSellers,
	}
}

// Parse reads HTML into a document.
func (e *Extractor) Parse(page string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse offer page: %w", err)
	}
	return doc, nil
}

// Classify recognizes which known layout the document uses.
func (e *Extractor) Classify(doc *goquery.Document) Layout {
	switch {
	case anyExists(doc.Selection, e.sel.OutOfStock):
		return LayoutOutOfStock
	case e.NoSellersMessage(doc) != "":
		return LayoutNoSellers
	case e.flyoutContainers(doc).Length() > 0:
		return LayoutFlyout
	case anyExists(doc.Selection, e.sel.OffersLink):
		return LayoutOffersLink
	case e.buyBoxContainers(doc).Length() > 0:
		return LayoutBuyBox
	default:
		return LayoutUnknown
	}
}

// NoSellersMessage returns the text of the first listing error container
// that carries one of the no-sellers phrases, or "".
func (e *Extractor) NoSellersMessage(doc *goquery.Document) string {
	var msg string
	for _, sel := range e.sel.OfferError {
		doc.Find(sel).EachWithBreak(func(_ int, s *goquery.Selection) bool {
			text := strings.Join(strings.Fields(s.Text()), " ")
			for _, phrase := range e.noSellers {
				phrase = strings.Join(strings.Fields(phrase), " ")
				if phrase != "" && strings.EqualFold(text, phrase) {
					msg = text
					return false
				}
			}
			return true
		})
		if msg != "" {
			return msg
		}
	}
	return ""
}

// Extract returns the offers in display order. Malformed containers are
// skipped; the result may be empty but never nil-panics.
func (e *Extractor) Extract(doc *goquery.Document) []models.Offer {
	layout := LayoutFlyout
	containers := e.flyoutContainers(doc)
	if containers.Length() == 0 {
		layout = LayoutBuyBox
		containers = e.buyBoxContainers(doc)
	}

	var offers []models.Offer
	seen := make(map[string]bool)
	containers.Each(func(i int, s *goquery.Selection) {
		offer, err := e.offerFrom(s, layout)
		if err != nil {
			log.Debug().Err(err).Int("index", i).Str("layout", layout.String()).Msg("Skipping offer")
			return
		}
		// pinned and sticky containers repeat the same offer
		if seen[offer.OfferID] {
			return
		}
		seen[offer.OfferID] = true
		offers = append(offers, offer)
	})
	return offers
}

func (e *Extractor) offerFrom(s *goquery.Selection, layout Layout) (offer models.Offer, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("malformed offer container: %v", r)
		}
	}()

	id := e.offerID(s)
	if id == "" {
		return models.Offer{}, ErrMissingOfferID
	}

	offer = models.Offer{
		OfferID:    id,
		SellerName: e.seller(s),
		Shipping:   e.ShippingCost(s),
		Layout:     layout.String(),
	}
	for _, sel := range e.sel.Price {
		if m, ok := models.ParseMoney(s.Find(sel).First().Text()); ok {
			offer.Price = &m
			break
		}
	}
	if offer.Price == nil {
		log.Debug().Str("offer_id", id).Msg("No parseable price in offer")
	}

	if layout == LayoutBuyBox {
		offer.Condition = models.New
	} else {
		offer.Condition = e.condition(s)
	}
	return offer, nil
}

func (e *Extractor) offerID(s *goquery.Selection) string {
	for _, sel := range e.sel.OfferID {
		if v := strings.TrimSpace(s.Find(sel).First().AttrOr("value", "")); v != "" {
			return v
		}
	}
	if e.sel.AtcAction == "" {
		return ""
	}
	blob := s.Find(e.sel.AtcAction).First().AttrOr("data-aod-atc-action", "")
	if blob == "" {
		return ""
	}
	id, err := decodeAtcAction(blob)
	if err != nil {
		log.Debug().Err(err).Msg("Could not decode add-to-cart action")
	}
	return id
}

func (e *Extractor) seller(s *goquery.Selection) string {
	for _, sel := range e.sel.Seller {
		if name := strings.TrimSpace(s.Find(sel).First().Text()); name != "" {
			return name
		}
	}
	label := s.Find(e.sel.AddToCart).First().AttrOr("aria-label", "")
	if m := sellerLabelRe.FindStringSubmatch(label); m != nil {
		return strings.TrimSpace(m[1])
	}
	if m := soldByRe.FindStringSubmatch(s.Text()); m != nil {
		return strings.TrimSpace(m[1])
	}
	return ""
}

func (e *Extractor) condition(s *goquery.Selection) models.Condition {
	if heading := strings.TrimSpace(s.Find(e.sel.ConditionHeading).First().Text()); heading != "" {
		if c, err := models.ParseCondition(heading); err == nil {
			return c
		}
		log.Debug().Str("heading", heading).Msg("Unrecognized condition heading")
	}
	form := s.Find(e.sel.AddToCart).First().Closest("form")
	if form.Length() == 0 {
		form = s.Find("form").First()
	}
	return models.ConditionFromFormAction(form.AttrOr("action", ""))
}

// ItemName returns the product title shown on the page, or "".
func (e *Extractor) ItemName(doc *goquery.Document) string {
	for _, sel := range e.sel.ItemTitle {
		if name := strings.TrimSpace(doc.Find(sel).First().Text()); name != "" {
			return strings.Join(strings.Fields(name), " ")
		}
	}
	return ""
}

// CaptchaImage returns the challenge image source of a captcha form.
func (e *Extractor) CaptchaImage(doc *goquery.Document) (string, bool) {
	form := doc.Find(e.sel.CaptchaForm).First()
	if form.Length() == 0 {
		return "", false
	}
	return form.Find("img").First().Attr("src")
}

// CartCount reads the navigation cart badge. ok is false when missing.
func (e *Extractor) CartCount(doc *goquery.Document) (int, bool) {
	text := strings.TrimSpace(doc.Find(e.sel.CartCount).First().Text())
	if text == "" {
		return 0, false
	}
	m, ok := models.ParseMoney(text)
	if !ok {
		return 0, false
	}
	return int(m.Amount), true
}

func (e *Extractor) flyoutContainers(doc *goquery.Document) *goquery.Selection {
	if len(e.sel.OfferContainers) == 0 {
		return doc.Selection.Slice(0, 0)
	}
	return doc.Find(strings.Join(e.sel.OfferContainers, ", ")).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(e.sel.AddToCart).Length() > 0
	})
}

func (e *Extractor) buyBoxContainers(doc *goquery.Document) *goquery.Selection {
	if e.sel.BuyBox == "" {
		return doc.Selection.Slice(0, 0)
	}
	return doc.Find(e.sel.BuyBox).FilterFunction(func(_ int, s *goquery.Selection) bool {
		return s.Find(e.sel.AddToCart).Length() > 0 || s.Find("#add-to-cart-button").Length() > 0
	})
}

func anyExists(s *goquery.Selection, selectors []string) bool {
	for _, sel := range selectors {
		if s.Find(sel).Length() > 0 {
			return true
		}
	}
	return false
}

// decodeAtcAction evaluates the data-aod-atc-action attribute, which holds a
// JavaScript object literal rather than strict JSON, and returns its "oid".
func decodeAtcAction(blob string) (string, error) {
	vm := goja.New()
	v, err := vm.RunString("(" + blob + ")")
	if err != nil {
		return "", fmt.Errorf("evaluate atc action: %w", err)
	}
	obj, ok := v.Export().(map[string]interface{})
	if !ok {
		return "", fmt.Errorf("atc action is not an object")
	}
	oid, _ := obj["oid"].(string)
	return strings.TrimSpace(oid), nil
}
