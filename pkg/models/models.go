// Package models holds the value types shared between the extractor, the
// qualifier and the hunt engine.
package models

import "fmt"

// Money is an amount parsed from page text. Currency is the symbol or code
// found next to the number and may be empty.
type Money struct {
	Amount   float64 `json:"amount"`
	Currency string  `json:"currency,omitempty"`
}

// Add returns the sum of m and o, keeping the first non-empty currency.
func (m Money) Add(o Money) Money {
	cur := m.Currency
	if cur == "" {
		cur = o.Currency
	}
	return Money{Amount: m.Amount + o.Amount, Currency: cur}
}

func (m Money) String() string {
	if m.Currency == "" {
		return fmt.Sprintf("%.2f", m.Amount)
	}
	return fmt.Sprintf("%s%.2f", m.Currency, m.Amount)
}

// Offer is one seller's listing for a tracked item, built fresh on every
// stock check.
type Offer struct {
	SellerName string    `json:"seller_name"`
	Price      *Money    `json:"price,omitempty"` // nil when the price did not parse
	Shipping   Money     `json:"shipping"`
	Condition  Condition `json:"condition"`
	OfferID    string    `json:"offer_id"`
	Layout     string    `json:"layout,omitempty"`
}

// Total returns price plus shipping. ok is false when the price is missing.
func (o Offer) Total() (total Money, ok bool) {
	if o.Price == nil {
		return Money{}, false
	}
	return o.Price.Add(o.Shipping), true
}

// TrackedItem is a unit of hunting intent loaded from the item config.
type TrackedItem struct {
	ID        string    `json:"id"`
	GroupID   string    `json:"group_id"`
	MinPrice  float64   `json:"min_price"`
	MaxPrice  float64   `json:"max_price"`
	Condition Condition `json:"condition"`
}

func (t TrackedItem) String() string {
	return fmt.Sprintf("%s [%.2f-%.2f %s]", t.ID, t.MinPrice, t.MaxPrice, t.Condition)
}
