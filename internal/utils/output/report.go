// Package output exports probe reports in machine readable formats.
package output

import (
	"github.com/unapproachable/fairgame-fork/internal/probe"
	"github.com/unapproachable/fairgame-fork/internal/qualify"
)

// Formats accepted by Write.
const (
	FormatTable = "table"
	FormatJSON  = "json"
	FormatCSV   = "csv"
)

// OfferRow is one evaluated offer.
type OfferRow struct {
	Seller    string   `json:"seller"`
	Price     *float64 `json:"price"`
	Shipping  float64  `json:"shipping"`
	Total     *float64 `json:"total"`
	Currency  string   `json:"currency,omitempty"`
	Condition string   `json:"condition"`
	OfferID   string   `json:"offer_id,omitempty"`
	Verdict   string   `json:"verdict"`
}

// ReportView is the flattened form of a probe report.
type ReportView struct {
	ASIN   string     `json:"asin"`
	Name   string     `json:"name"`
	Layout string     `json:"layout"`
	Source string     `json:"source"`
	Min    float64    `json:"min_price"`
	Max    float64    `json:"max_price"`
	Offers []OfferRow `json:"offers"`
	Match  *OfferRow  `json:"match"`
	Note   string     `json:"note,omitempty"`
}

// View flattens r.
func View(r *probe.Report) ReportView {
	v := ReportView{
		ASIN:   r.Item.ID,
		Name:   r.Name,
		Layout: r.Layout.String(),
		Source: r.Source,
		Min:    r.Item.MinPrice,
		Max:    r.Item.MaxPrice,
		Offers: make([]OfferRow, 0, len(r.Verdicts)),
		Note:   r.Message,
	}
	for _, verdict := range r.Verdicts {
		row := offerRow(verdict)
		v.Offers = append(v.Offers, row)
		if verdict.Reason == qualify.Accepted && v.Match == nil {
			match := row
			v.Match = &match
		}
	}
	return v
}

func offerRow(v qualify.Verdict) OfferRow {
	o := v.Offer
	row := OfferRow{
		Seller:    o.SellerName,
		Shipping:  o.Shipping.Amount,
		Currency:  o.Shipping.Currency,
		Condition: o.Condition.String(),
		OfferID:   o.OfferID,
		Verdict:   "accept",
	}
	if v.Reason != qualify.Accepted {
		row.Verdict = string(v.Reason)
	}
	if o.Price != nil {
		price := o.Price.Amount
		row.Price = &price
		if o.Price.Currency != "" {
			row.Currency = o.Price.Currency
		}
	}
	if total, ok := o.Total(); ok {
		row.Total = &total.Amount
	}
	return row
}
