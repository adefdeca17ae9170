package ui

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/unapproachable/fairgame-fork/internal/extract"
	"github.com/unapproachable/fairgame-fork/internal/probe"
	"github.com/unapproachable/fairgame-fork/internal/qualify"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

func TestRenderPlan(t *testing.T) {
	var buf bytes.Buffer
	items := []models.TrackedItem{
		{ID: "B08HR7SV3M", GroupID: "3f0c7a52-1111", MinPrice: 0, MaxPrice: 499.99, Condition: models.New},
	}
	RenderPlan(&buf, items, func(string) string { return "PlayStation 5 Console" }, []Option{{Name: "Test mode", Value: "on"}})

	out := buf.String()
	assert.Contains(t, out, "B08HR7SV3M")
	assert.Contains(t, out, "PlayStation 5 Console")
	assert.Contains(t, out, "499.99")
	assert.Contains(t, out, "3f0c7a52")
	assert.NotContains(t, out, "3f0c7a52-1111")
	assert.Contains(t, out, "Test mode")
}

func TestRenderReport(t *testing.T) {
	var buf bytes.Buffer
	price := models.Money{Amount: 519, Currency: "$"}
	r := &probe.Report{
		Item:   models.TrackedItem{ID: "B0TEST"},
		Name:   "Widget",
		Layout: extract.LayoutFlyout,
		Source: "browser",
		Verdicts: []qualify.Verdict{
			{Offer: models.Offer{SellerName: "Amazon.com", Price: &price}, Reason: qualify.RejectPriceHigh},
			{Offer: models.Offer{SellerName: "Amazon.com"}, Reason: qualify.RejectNoPrice},
		},
	}
	RenderReport(&buf, r)

	out := buf.String()
	assert.Contains(t, out, "Widget")
	assert.Contains(t, out, "price-high")
	assert.Contains(t, out, "no-price")
}

func TestCountdownStopsEarly(t *testing.T) {
	var buf bytes.Buffer
	calls := 0
	err := countdown(context.Background(), &buf, 50*time.Millisecond, time.Millisecond, "waiting", func() bool {
		calls++
		return calls == 3
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestCountdownCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := countdown(ctx, &bytes.Buffer{}, time.Second, 10*time.Millisecond, "waiting", nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 5))
	assert.Equal(t, "abcd…", truncate("abcdefgh", 5))
}
