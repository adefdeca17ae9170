// Package probe checks one tracked item for a qualifying offer: fetch the
// offer listing, extract the offers and run them through the qualifier.
package probe

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/cache"
	"github.com/unapproachable/fairgame-fork/internal/extract"
	"github.com/unapproachable/fairgame-fork/internal/metrics"
	"github.com/unapproachable/fairgame-fork/internal/qualify"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// Page is a fetched offer listing.
type Page struct {
	HTML   string
	Title  string
	URL    string
	Source string // "browser" or "ajax"
}

// Source fetches the offer listing for an item. A nil page with a nil
// error means nothing could be read this cycle.
type Source interface {
	Fetch(ctx context.Context, item models.TrackedItem) (*Page, error)
}

// Options tune qualification.
type Options struct {
	CheckShipping bool // allow offers with paid shipping
	Metrics       *metrics.Metrics
}

// Report is the full result of one probe, used by the probe command.
type Report struct {
	Item     models.TrackedItem
	Name     string
	Layout   extract.Layout
	Offers   []models.Offer
	Verdicts []qualify.Verdict
	Match    *models.Offer
	Source   string
	Message  string // listing error text when the page says nobody sells the item
}

// Prober runs stock checks.
type Prober struct {
	source    Source
	extractor *extract.Extractor
	qualifier *qualify.Qualifier
	names     *cache.ItemNames
	opts      Options
}

// New builds a prober. names may be nil.
func New(source Source, extractor *extract.Extractor, qualifier *qualify.Qualifier, names *cache.ItemNames, opts Options) *Prober {
	return &Prober{
		source:    source,
		extractor: extractor,
		qualifier: qualifier,
		names:     names,
		opts:      opts,
	}
}

// Probe returns the first qualifying offer for item, or nil.
func (p *Prober) Probe(ctx context.Context, item models.TrackedItem) (*models.Offer, error) {
	r, err := p.Report(ctx, item)
	if err != nil || r == nil {
		return nil, err
	}
	for _, v := range r.Verdicts {
		if v.Reason != qualify.Accepted {
			log.Debug().Str("asin", item.ID).Str("verdict", v.String()).Msg("Offer rejected")
		}
	}
	return r.Match, nil
}

// Report fetches and evaluates item, keeping every intermediate result.
// It returns nil when the source produced no page.
func (p *Prober) Report(ctx context.Context, item models.TrackedItem) (*Report, error) {
	page, err := p.source.Fetch(ctx, item)
	if err != nil {
		return nil, err
	}
	if page == nil {
		return nil, nil
	}

	doc, err := p.extractor.Parse(page.HTML)
	if err != nil {
		return nil, fmt.Errorf("parse offers for %s: %w", item.ID, err)
	}

	r := &Report{Item: item, Source: page.Source, Layout: p.extractor.Classify(doc)}
	r.Name = p.cacheName(item.ID, p.extractor.ItemName(doc))
	p.opts.Metrics.IncListing(r.Layout.String())

	switch r.Layout {
	case extract.LayoutOutOfStock:
		log.Debug().Str("asin", item.ID).Msg("Item is out of stock")
		return r, nil
	case extract.LayoutNoSellers:
		r.Message = p.extractor.NoSellersMessage(doc)
		log.Debug().Str("asin", item.ID).Str("message", r.Message).Msg("No sellers for item")
		return r, nil
	}

	r.Offers = p.extractor.Extract(doc)
	r.Match, r.Verdicts = p.qualifier.Qualify(r.Offers, item, p.opts.CheckShipping)
	log.Debug().
		Str("asin", item.ID).
		Str("layout", r.Layout.String()).
		Int("offers", len(r.Offers)).
		Bool("match", r.Match != nil).
		Msg("Offers evaluated")
	return r, nil
}

func (p *Prober) cacheName(id, name string) string {
	if p.names == nil {
		return name
	}
	name = strings.TrimSpace(name)
	if name != "" && (!p.names.Has(id) || p.names.Name(id) == cache.NotFound) {
		p.names.Set(id, name)
	}
	if !p.names.Has(id) {
		p.names.Set(id, cache.NotFound)
	}
	return p.names.Name(id)
}
