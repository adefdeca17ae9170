package diagnostics

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/notify"
)

// Reporter sends notifications with an optional screenshot of the current
// page and saves page sources for later inspection.
type Reporter struct {
	sink        *Sink
	notifier    notify.Sender
	screenshots bool
}

// NewReporter builds a reporter. sink and notifier may be nil.
func NewReporter(sink *Sink, notifier notify.Sender, screenshots bool) *Reporter {
	if notifier == nil {
		notifier = notify.Log{}
	}
	return &Reporter{sink: sink, notifier: notifier, screenshots: screenshots}
}

// Notify sends msg. With screenshot set and screenshots enabled, the page
// is captured, saved under msg.Tag and attached.
func (r *Reporter) Notify(ctx context.Context, d browser.Driver, msg notify.Message, screenshot bool) {
	if screenshot && r.screenshots && d != nil {
		if png, err := d.Screenshot(ctx); err != nil {
			log.Debug().Err(err).Msg("Screenshot failed")
		} else {
			msg.Screenshot = png
			if r.sink != nil {
				if _, err := r.sink.SaveScreenshot(tagOr(msg.Tag, "page"), png); err != nil {
					log.Warn().Err(err).Msg("Could not save screenshot")
				}
			}
		}
	}
	if err := r.notifier.Send(ctx, msg); err != nil {
		log.Warn().Err(err).Str("title", msg.Title).Msg("Notification failed")
	}
}

// SavePage dumps the current page source under name.
func (r *Reporter) SavePage(ctx context.Context, d browser.Driver, name string) {
	if r.sink == nil || d == nil {
		return
	}
	page, err := d.HTML(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Could not read page source")
		return
	}
	url, _ := d.URL(ctx)
	if _, err := r.sink.SavePage(name, page, url); err != nil {
		log.Warn().Err(err).Str("page", name).Msg("Could not save page source")
	}
}

// Screenshot captures and saves the current page without notifying.
func (r *Reporter) Screenshot(ctx context.Context, d browser.Driver, name string) {
	if !r.screenshots || r.sink == nil || d == nil {
		return
	}
	png, err := d.Screenshot(ctx)
	if err != nil {
		log.Debug().Err(err).Msg("Screenshot failed")
		return
	}
	if _, err := r.sink.SaveScreenshot(name, png); err != nil {
		log.Warn().Err(err).Msg("Could not save screenshot")
	}
}

func tagOr(tag, fallback string) string {
	if tag == "" {
		return fallback
	}
	return tag
}
