package engine

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/metrics"
	"github.com/unapproachable/fairgame-fork/internal/notify"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// Outcome is the terminal result of one purchase attempt.
type Outcome int

const (
	OutcomeAbandoned Outcome = iota
	OutcomePurchased
)

func (o Outcome) String() string {
	if o == OutcomePurchased {
		return "purchased"
	}
	return "abandoned"
}

// Prober checks one item and returns a qualifying offer, or nil.
type Prober interface {
	Probe(ctx context.Context, item models.TrackedItem) (*models.Offer, error)
}

// Purchaser drives checkout for a qualifying offer.
type Purchaser interface {
	Purchase(ctx context.Context, item models.TrackedItem, offer models.Offer) (Outcome, error)
}

// Pacer blocks between stock checks.
type Pacer interface {
	Wait(ctx context.Context) error
}

// Namer resolves an item id to a display name.
type Namer interface {
	Name(id string) string
}

// HunterOptions tune the hunt loop.
type HunterOptions struct {
	SingleShot    bool
	Shuffle       bool
	LogStockCheck bool
}

// Summary is reported when the hunt ends.
type Summary struct {
	Purchases int
	Checks    int
	Passes    int
	Remaining int
	Runtime   time.Duration
}

// Hunter runs the synchronous stock-check loop over a HuntState.
type Hunter struct {
	state     *HuntState
	prober    Prober
	purchaser Purchaser
	pacer     Pacer
	notifier  notify.Sender
	metrics   *metrics.Metrics
	names     Namer
	opts      HunterOptions
	rand      *rand.Rand
}

// NewHunter wires a hunter. notifier, m and names may be nil.
func NewHunter(state *HuntState, prober Prober, purchaser Purchaser, pacer Pacer, notifier notify.Sender, m *metrics.Metrics, names Namer, opts HunterOptions) *Hunter {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Hunter{
		state:     state,
		prober:    prober,
		purchaser: purchaser,
		pacer:     pacer,
		notifier:  notifier,
		metrics:   m,
		names:     names,
		opts:      opts,
	}
}

// SetRand fixes the shuffle source.
func (h *Hunter) SetRand(r *rand.Rand) { h.rand = r }

// Run hunts until every group is purchased, single-shot mode completes, or
// a fatal error or cancellation occurs.
func (h *Hunter) Run(ctx context.Context) (Summary, error) {
	log.Info().Int("items", h.state.Len()).Int("groups", h.state.Groups()).Msg("Starting hunt")
	h.metrics.SetActiveItems(h.state.Len())

	for !h.state.Empty() {
		h.state.Passes++
		for _, item := range h.state.Active() {
			if err := ctx.Err(); err != nil {
				return h.summary(), err
			}
			// a purchase earlier in this pass may have withdrawn the group
			if !h.state.IsActive(item) {
				continue
			}
			done, err := h.check(ctx, item)
			if err != nil {
				return h.summary(), err
			}
			if done {
				return h.summary(), nil
			}
			if h.state.Empty() {
				break
			}
			if err := h.pacer.Wait(ctx); err != nil {
				return h.summary(), err
			}
		}
		if h.opts.Shuffle {
			h.state.Shuffle(h.rand)
		}
	}

	log.Info().Msg("Hunt list exhausted")
	return h.summary(), nil
}

func (h *Hunter) check(ctx context.Context, item models.TrackedItem) (bool, error) {
	name := h.name(item.ID)
	start := time.Now()
	offer, err := h.prober.Probe(ctx, item)
	h.state.Checks++
	h.metrics.ObserveCheck(time.Since(start), offer != nil, err)

	ev := log.Debug()
	if h.opts.LogStockCheck {
		ev = log.Info()
	}
	ev.Str("asin", item.ID).Str("name", name).Int("checks", h.state.Checks).Msg("Stock check")

	if err != nil {
		if IsFatal(err) || errors.Is(err, context.Canceled) || ctx.Err() != nil {
			return false, err
		}
		log.Warn().Err(err).Str("asin", item.ID).Msg("Stock check failed, continuing")
		return false, nil
	}
	if offer == nil {
		return false, nil
	}

	total, _ := offer.Total()
	log.Info().
		Str("asin", item.ID).
		Str("name", name).
		Str("seller", offer.SellerName).
		Str("total", total.String()).
		Str("condition", offer.Condition.String()).
		Msg("Found qualifying offer")
	notify.BestEffort(ctx, h.notifier, notify.Message{
		Title: "Item in stock",
		Body:  fmt.Sprintf("%s (%s) is available from %s for %s", name, item.ID, offer.SellerName, total),
		Tag:   "offer-found",
	})

	outcome, err := h.purchaser.Purchase(ctx, item, *offer)
	h.metrics.ObservePurchase(outcome == OutcomePurchased)
	if err != nil {
		if IsFatal(err) || ctx.Err() != nil {
			return false, err
		}
		log.Warn().Err(err).Str("asin", item.ID).Msg("Checkout failed, returning to stock check")
		return false, nil
	}

	if outcome != OutcomePurchased {
		log.Info().Str("asin", item.ID).Msg("Checkout abandoned, returning to stock check")
		return false, nil
	}

	h.state.Purchases++
	removed := h.state.RemoveGroup(item.GroupID)
	h.metrics.SetActiveItems(h.state.Len())
	log.Info().
		Str("asin", item.ID).
		Str("group", item.GroupID).
		Int("removed", len(removed)).
		Int("remaining", h.state.Len()).
		Msg("Purchase complete, group removed from hunt")

	return h.opts.SingleShot, nil
}

func (h *Hunter) name(id string) string {
	if h.names == nil {
		return id
	}
	return h.names.Name(id)
}

func (h *Hunter) summary() Summary {
	return Summary{
		Purchases: h.state.Purchases,
		Checks:    h.state.Checks,
		Passes:    h.state.Passes,
		Remaining: h.state.Len(),
		Runtime:   h.state.Runtime(),
	}
}
