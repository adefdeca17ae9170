package engine

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unapproachable/fairgame-fork/internal/notify"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

type scriptedProber struct {
	offers map[string]*models.Offer
	errs   map[string]error
	calls  []string
}

func (p *scriptedProber) Probe(_ context.Context, item models.TrackedItem) (*models.Offer, error) {
	p.calls = append(p.calls, item.ID)
	if err := p.errs[item.ID]; err != nil {
		return nil, err
	}
	return p.offers[item.ID], nil
}

type scriptedPurchaser struct {
	outcomes map[string]Outcome
	calls    []string
}

func (p *scriptedPurchaser) Purchase(_ context.Context, item models.TrackedItem, _ models.Offer) (Outcome, error) {
	p.calls = append(p.calls, item.ID)
	return p.outcomes[item.ID], nil
}

// passLimiter cancels the hunt after a fixed number of waits so loops that
// would otherwise poll forever terminate.
type passLimiter struct {
	remaining int
	cancel    context.CancelFunc
}

func (p *passLimiter) Wait(ctx context.Context) error {
	p.remaining--
	if p.remaining <= 0 {
		p.cancel()
	}
	return ctx.Err()
}

func amazonOffer(id string) *models.Offer {
	return &models.Offer{SellerName: "Amazon", Price: &models.Money{Amount: 10}, Condition: models.New, OfferID: id}
}

func TestHunterRemovesPurchasedGroup(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &scriptedProber{offers: map[string]*models.Offer{
		"A2": amazonOffer("offer-a2"),
		"B1": amazonOffer("offer-b1"),
		"C1": amazonOffer("offer-c1"),
	}}
	purchaser := &scriptedPurchaser{outcomes: map[string]Outcome{
		"A2": OutcomePurchased,
		"B1": OutcomePurchased,
		"C1": OutcomePurchased,
	}}
	state := NewHuntState(trackedItems())
	h := NewHunter(state, prober, purchaser, &passLimiter{remaining: 100, cancel: cancel}, nil, nil, nil, HunterOptions{})

	summary, err := h.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Purchases)
	assert.Equal(t, 0, summary.Remaining)
	assert.Equal(t, 1, summary.Passes)
	// A3 belongs to the purchased gpu group and is never probed
	assert.Equal(t, []string{"A1", "A2", "B1", "C1"}, prober.calls)
	assert.Equal(t, []string{"A2", "B1", "C1"}, purchaser.calls)
}

func TestHunterLogsFailedNotification(t *testing.T) {
	var buf bytes.Buffer
	prev, level := log.Logger, zerolog.GlobalLevel()
	log.Logger = zerolog.New(&buf)
	zerolog.SetGlobalLevel(zerolog.DebugLevel)
	defer func() {
		log.Logger = prev
		zerolog.SetGlobalLevel(level)
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	failing := notify.SenderFunc(func(context.Context, notify.Message) error {
		return errors.New("smtp refused")
	})
	prober := &scriptedProber{offers: map[string]*models.Offer{"A1": amazonOffer("x")}}
	purchaser := &scriptedPurchaser{outcomes: map[string]Outcome{"A1": OutcomePurchased}}
	h := NewHunter(NewHuntState(trackedItems()), prober, purchaser, &passLimiter{remaining: 100, cancel: cancel}, failing, nil, nil, HunterOptions{SingleShot: true})

	summary, err := h.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Purchases)
	assert.Contains(t, buf.String(), "Notification not delivered")
	assert.Contains(t, buf.String(), "smtp refused")
}

func TestHunterSingleShot(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &scriptedProber{offers: map[string]*models.Offer{"A1": amazonOffer("x"), "B1": amazonOffer("y")}}
	purchaser := &scriptedPurchaser{outcomes: map[string]Outcome{"A1": OutcomePurchased, "B1": OutcomePurchased}}
	h := NewHunter(NewHuntState(trackedItems()), prober, purchaser, &passLimiter{remaining: 100, cancel: cancel}, nil, nil, nil, HunterOptions{SingleShot: true})

	summary, err := h.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Purchases)
	assert.Equal(t, 2, summary.Remaining)
	assert.Equal(t, []string{"A1"}, purchaser.calls)
}

func TestHunterAbandonedCheckoutKeepsItem(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	items := []models.TrackedItem{{ID: "A1", GroupID: "g"}}
	prober := &scriptedProber{offers: map[string]*models.Offer{"A1": amazonOffer("x")}}
	purchaser := &scriptedPurchaser{outcomes: map[string]Outcome{"A1": OutcomeAbandoned}}
	pacer := &passLimiter{remaining: 3, cancel: cancel}
	h := NewHunter(NewHuntState(items), prober, purchaser, pacer, nil, nil, nil, HunterOptions{})

	summary, err := h.Run(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, summary.Purchases)
	assert.Equal(t, 1, summary.Remaining)
	assert.Len(t, purchaser.calls, 3)
}

func TestHunterStopsOnFatalError(t *testing.T) {
	ctx := context.Background()
	prober := &scriptedProber{errs: map[string]error{
		"B1": SessionFatal("recycle failed", errors.New("boom")),
	}}
	h := NewHunter(NewHuntState(trackedItems()), prober, &scriptedPurchaser{}, &passLimiter{remaining: 100, cancel: func() {}}, nil, nil, nil, HunterOptions{})

	_, err := h.Run(ctx)
	require.Error(t, err)
	assert.True(t, IsFatal(err))
	assert.Equal(t, []string{"A1", "A2", "B1"}, prober.calls)
}

func TestHunterContinuesAfterTransientError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	prober := &scriptedProber{
		errs:   map[string]error{"A1": NewEngineError(ErrCodeTransient, "page load", errors.New("net::ERR_TIMED_OUT"))},
		offers: map[string]*models.Offer{"A2": amazonOffer("x"), "B1": amazonOffer("y"), "C1": amazonOffer("z")},
	}
	purchaser := &scriptedPurchaser{outcomes: map[string]Outcome{"A2": OutcomePurchased, "B1": OutcomePurchased, "C1": OutcomePurchased}}
	h := NewHunter(NewHuntState(trackedItems()), prober, purchaser, &passLimiter{remaining: 100, cancel: cancel}, nil, nil, nil, HunterOptions{})

	summary, err := h.Run(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Purchases)
}
