package captcha

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/extract"
	"github.com/unapproachable/fairgame-fork/internal/metrics"
	"github.com/unapproachable/fairgame-fork/internal/notify"
)

// Options tune the captcha procedure.
type Options struct {
	LoadDelay  time.Duration // settle time before reading the form
	WaitOnFail bool          // hand a failed captcha to a human
	HumanWait  time.Duration
}

// DefaultOptions returns the stock timings.
func DefaultOptions() Options {
	return Options{LoadDelay: 5 * time.Second, HumanWait: 60 * time.Second}
}

// Handler runs the captcha procedure on the current page.
type Handler struct {
	site      config.SiteProfile
	extractor *extract.Extractor
	solver    Solver
	notifier  notify.Sender
	metrics   *metrics.Metrics
	opts      Options
	sleep     func(ctx context.Context, d time.Duration) error
}

// NewHandler builds a handler. A nil solver fails every solve, a nil
// notifier drops alerts.
func NewHandler(site config.SiteProfile, solver Solver, notifier notify.Sender, m *metrics.Metrics, opts Options) *Handler {
	if solver == nil {
		solver = NoSolver{}
	}
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &Handler{
		site:      site,
		extractor: extract.New(site),
		solver:    solver,
		notifier:  notifier,
		metrics:   m,
		opts:      opts,
		sleep:     sleepCtx,
	}
}

// Handle solves the captcha shown by d. It returns nil when the page had no
// captcha form or the solution was submitted, ErrNotSolved when the page
// was refreshed or handed off instead.
func (h *Handler) Handle(ctx context.Context, d browser.Driver) error {
	if err := h.sleep(ctx, h.opts.LoadDelay); err != nil {
		return err
	}

	sel := h.site.Selectors
	if !d.Exists(ctx, sel.CaptchaForm) {
		log.Debug().Msg("Captcha title without a captcha form")
		return nil
	}
	log.Warn().Msg("Captcha page detected")

	err := h.solve(ctx, d)
	if err == nil {
		h.metrics.IncCaptcha("solved")
		return nil
	}
	if ctx.Err() != nil {
		return ctx.Err()
	}
	h.metrics.IncCaptcha("failed")
	log.Warn().Err(err).Msg("Captcha solve failed")

	if h.opts.WaitOnFail {
		title, _ := d.Title(ctx)
		notify.BestEffort(ctx, h.notifier, notify.Message{
			Title: "Captcha needs attention",
			Body:  fmt.Sprintf("Solve the captcha in the browser within %s", h.opts.HumanWait),
			Tag:   "captcha",
			Alarm: true,
		})
		if _, changed := browser.WaitTitleChange(ctx, d, title, h.opts.HumanWait); changed {
			log.Info().Msg("Captcha cleared by operator")
			return nil
		}
	}
	if err := d.Refresh(ctx); err != nil {
		log.Debug().Err(err).Msg("Refresh after captcha failed")
	}
	return ErrNotSolved
}

func (h *Handler) solve(ctx context.Context, d browser.Driver) error {
	page, err := d.HTML(ctx)
	if err != nil {
		return fmt.Errorf("read captcha page: %w", err)
	}
	doc, err := h.extractor.Parse(page)
	if err != nil {
		return err
	}
	img, ok := h.extractor.CaptchaImage(doc)
	if !ok {
		return errors.New("captcha image not found")
	}

	solution, err := h.solver.Solve(ctx, img)
	if err != nil {
		return err
	}
	log.Info().Str("solution", solution).Msg("Submitting captcha solution")
	return d.SendKeys(ctx, h.site.Selectors.CaptchaInput, solution+kb.Enter)
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
