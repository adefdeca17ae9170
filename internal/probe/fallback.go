package probe

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// FallbackSource tries the fast source first and falls back to the slow
// one when the fast source hits a captcha or returns nothing usable.
type FallbackSource struct {
	Fast Source
	Slow Source
}

func (f FallbackSource) Fetch(ctx context.Context, item models.TrackedItem) (*Page, error) {
	page, err := f.Fast.Fetch(ctx, item)
	switch {
	case err == nil && page != nil:
		return page, nil
	case err == nil:
		log.Debug().Str("asin", item.ID).Msg("Fast source returned no page, falling back")
	case errors.Is(err, engine.ErrCaptcha), errors.Is(err, ErrEmptyPayload):
		log.Debug().Err(err).Str("asin", item.ID).Msg("Fast source blocked, falling back")
	default:
		return nil, err
	}
	return f.Slow.Fetch(ctx, item)
}
