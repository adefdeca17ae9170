// Package qualify decides whether any offer on a page is worth buying.
package qualify

import (
	"fmt"
	"math"
	"slices"

	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// DefaultEpsilon absorbs floating rounding at the price range boundaries.
const DefaultEpsilon = 0.01

// DefaultSellers is the first-party allow-list.
var DefaultSellers = []string{"Amazon", "Amazon.com", "Amazon Resale"}

// Reason says why an offer was rejected.
type Reason string

const (
	Accepted        Reason = ""
	RejectNoPrice   Reason = "no-price"
	RejectShipping  Reason = "shipping"
	RejectPriceLow  Reason = "price-low"
	RejectPriceHigh Reason = "price-high"
	RejectCondition Reason = "condition"
	RejectSeller    Reason = "seller"
)

// Verdict records the decision for one offer.
type Verdict struct {
	Offer  models.Offer
	Reason Reason
}

func (v Verdict) String() string {
	if v.Reason == Accepted {
		return fmt.Sprintf("%s accepted", v.Offer.OfferID)
	}
	return fmt.Sprintf("%s rejected: %s", v.Offer.OfferID, v.Reason)
}

// Qualifier applies the shipping, price, condition and seller filters.
type Qualifier struct {
	Sellers []string
	Epsilon float64
}

// New returns a Qualifier with the given allow-list, or DefaultSellers when
// sellers is empty.
func New(sellers []string) *Qualifier {
	if len(sellers) == 0 {
		sellers = DefaultSellers
	}
	return &Qualifier{Sellers: slices.Clone(sellers), Epsilon: DefaultEpsilon}
}

// Qualify returns the first offer, in the given order, that passes every
// filter, plus the verdicts for the offers it looked at. Offers after the
// first match are not evaluated.
func (q *Qualifier) Qualify(offers []models.Offer, item models.TrackedItem, checkShipping bool) (*models.Offer, []Verdict) {
	verdicts := make([]Verdict, 0, len(offers))
	for _, o := range offers {
		reason := q.Check(o, item, checkShipping)
		verdicts = append(verdicts, Verdict{Offer: o, Reason: reason})
		if reason == Accepted {
			match := o
			return &match, verdicts
		}
	}
	return nil, verdicts
}

// Check evaluates one offer.
func (q *Qualifier) Check(o models.Offer, item models.TrackedItem, checkShipping bool) Reason {
	total, ok := o.Total()
	if !ok {
		return RejectNoPrice
	}
	if !checkShipping && o.Shipping.Amount != 0 {
		return RejectShipping
	}
	if !(total.Amount >= item.MinPrice || q.near(total.Amount, item.MinPrice)) {
		return RejectPriceLow
	}
	if !(total.Amount <= item.MaxPrice || q.near(total.Amount, item.MaxPrice)) {
		return RejectPriceHigh
	}
	if !item.Condition.Admits(o.Condition) {
		return RejectCondition
	}
	if !slices.Contains(q.Sellers, o.SellerName) {
		return RejectSeller
	}
	return Accepted
}

// near reports whether a and b differ by at most Epsilon. The extra 1e-9
// keeps a gap of exactly Epsilon inside the range after binary rounding.
func (q *Qualifier) near(a, b float64) bool {
	return math.Abs(a-b) <= q.Epsilon+1e-9
}
