package config

import (
	"fmt"
	"net/url"

	"github.com/unapproachable/fairgame-fork/internal/utils/headers"
)

func validate(c *Config) error {
	switch c.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", c.LogLevel)
	}
	if c.ItemsPath == "" {
		return fmt.Errorf("items path is required")
	}
	if c.Delay < MinDelay {
		return fmt.Errorf("delay must be at least %s", MinDelay)
	}
	if c.Jitter < 0 {
		return fmt.Errorf("jitter must be >= 0")
	}
	if c.PageTimeout <= 0 || c.ActionTimeout <= 0 {
		return fmt.Errorf("timeouts must be > 0")
	}
	switch c.OfferSource {
	case OfferSourceBrowser, OfferSourceAjax, OfferSourceAuto:
	default:
		return fmt.Errorf("offer source must be %s, %s or %s", OfferSourceBrowser, OfferSourceAjax, OfferSourceAuto)
	}
	if c.AjaxRPS <= 0 || c.AjaxBurst <= 0 {
		return fmt.Errorf("ajax rate limit must be > 0")
	}
	if _, err := headers.Parse(c.AjaxHeaders); err != nil {
		return err
	}
	if c.CaptchaSolverURL != "" {
		if u, err := url.Parse(c.CaptchaSolverURL); err != nil || u.Scheme == "" || u.Host == "" {
			return fmt.Errorf("captcha solver must be an absolute URL")
		}
	}
	if c.SMTP.Server != "" {
		if c.SMTP.To == "" || c.SMTP.From == "" {
			return fmt.Errorf("smtp needs both --smtp-from and --smtp-to")
		}
		if c.SMTP.Port <= 0 || c.SMTP.Port > 65535 {
			return fmt.Errorf("smtp port out of range")
		}
	}
	return nil
}
