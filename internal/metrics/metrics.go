// Package metrics exposes hunt counters through Prometheus. Every method is
// safe to call on a nil *Metrics, which is what callers get when metrics are
// disabled.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics bundles the collectors on a dedicated registry.
type Metrics struct {
	Registry         *prometheus.Registry
	StockChecks      *prometheus.CounterVec
	CheckDuration    prometheus.Histogram
	CheckoutOutcomes *prometheus.CounterVec
	ActiveItems      prometheus.Gauge
	SessionRecycles  prometheus.Counter
	Captchas         *prometheus.CounterVec
	NavigatorSteps   *prometheus.CounterVec
	Listings         *prometheus.CounterVec
}

// New constructs and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	checks := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairgame_stock_checks_total",
			Help: "Stock checks by result.",
		},
		[]string{"result"},
	)
	duration := prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "fairgame_stock_check_duration_seconds",
			Help:    "Time spent loading and parsing an offer listing.",
			Buckets: prometheus.DefBuckets,
		},
	)
	outcomes := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairgame_checkout_attempts_total",
			Help: "Checkout attempts by outcome.",
		},
		[]string{"outcome"},
	)
	active := prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "fairgame_active_items",
			Help: "Items still being hunted.",
		},
	)
	recycles := prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "fairgame_session_recycles_total",
			Help: "Browser sessions torn down and recreated.",
		},
	)
	captchas := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairgame_captchas_total",
			Help: "Captcha challenges by result.",
		},
		[]string{"result"},
	)
	steps := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairgame_navigator_steps_total",
			Help: "Checkout navigator steps by page state.",
		},
		[]string{"state"},
	)

	listings := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "fairgame_offer_listings_total",
			Help: "Offer listing pages read, by recognized layout.",
		},
		[]string{"layout"},
	)

	registry.MustRegister(checks, duration, outcomes, active, recycles, captchas, steps, listings)

	return &Metrics{
		Registry:         registry,
		StockChecks:      checks,
		CheckDuration:    duration,
		CheckoutOutcomes: outcomes,
		ActiveItems:      active,
		SessionRecycles:  recycles,
		Captchas:         captchas,
		NavigatorSteps:   steps,
		Listings:         listings,
	}
}

// ObserveCheck records one stock check.
func (m *Metrics) ObserveCheck(d time.Duration, found bool, err error) {
	if m == nil {
		return
	}
	result := "none"
	switch {
	case err != nil:
		result = "error"
	case found:
		result = "offer"
	}
	m.StockChecks.WithLabelValues(result).Inc()
	m.CheckDuration.Observe(d.Seconds())
}

// ObservePurchase records a checkout outcome.
func (m *Metrics) ObservePurchase(purchased bool) {
	if m == nil {
		return
	}
	outcome := "abandoned"
	if purchased {
		outcome = "purchased"
	}
	m.CheckoutOutcomes.WithLabelValues(outcome).Inc()
}

// SetActiveItems updates the working set gauge.
func (m *Metrics) SetActiveItems(n int) {
	if m == nil {
		return
	}
	m.ActiveItems.Set(float64(n))
}

// IncRecycle counts a session recycle.
func (m *Metrics) IncRecycle() {
	if m == nil {
		return
	}
	m.SessionRecycles.Inc()
}

// IncCaptcha counts a captcha by result ("solved", "failed").
func (m *Metrics) IncCaptcha(result string) {
	if m == nil {
		return
	}
	m.Captchas.WithLabelValues(result).Inc()
}

// IncNavigatorStep counts a navigator dispatch for state.
func (m *Metrics) IncNavigatorStep(state string) {
	if m == nil {
		return
	}
	m.NavigatorSteps.WithLabelValues(state).Inc()
}

// IncListing counts an offer listing read with the given layout.
func (m *Metrics) IncListing(layout string) {
	if m == nil {
		return
	}
	m.Listings.WithLabelValues(layout).Inc()
}
