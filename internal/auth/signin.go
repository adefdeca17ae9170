package auth

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/chromedp/chromedp/kb"
	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/notify"
)

// ErrLoginFailed means the storefront rejected the stored credentials.
var ErrLoginFailed = errors.New("login failed")

// CaptchaSolver clears a captcha on the current page.
type CaptchaSolver interface {
	Handle(ctx context.Context, d browser.Driver) error
}

// SignInOptions tune the sign-in waits.
type SignInOptions struct {
	FieldWait     time.Duration // how long to look for the email or password field
	PageWait      time.Duration // settle time after submitting the email
	OTPWait       time.Duration // operator time for a one-time password
	TwoFactorWait time.Duration // operator time for two-step verification
}

// DefaultSignInOptions returns the stock timings.
func DefaultSignInOptions() SignInOptions {
	return SignInOptions{
		FieldWait:     10 * time.Second,
		PageWait:      2 * time.Second,
		OTPWait:       5 * time.Minute,
		TwoFactorWait: 5 * time.Minute,
	}
}

// SignIn drives the storefront sign-in form.
type SignIn struct {
	site     config.SiteProfile
	creds    Credentials
	captcha  CaptchaSolver
	notifier notify.Sender
	opts     SignInOptions
}

// NewSignIn builds the sign-in procedure. captcha and notifier may be nil.
func NewSignIn(site config.SiteProfile, creds Credentials, captcha CaptchaSolver, notifier notify.Sender, opts SignInOptions) *SignIn {
	if notifier == nil {
		notifier = notify.Discard{}
	}
	return &SignIn{site: site, creds: creds, captcha: captcha, notifier: notifier, opts: opts}
}

// IsSignedIn reports whether the account link greets a signed-in user.
func IsSignedIn(ctx context.Context, d browser.Driver, site config.SiteProfile) bool {
	text, err := d.Text(ctx, site.Selectors.AccountLink)
	if err != nil {
		return false
	}
	for _, phrase := range site.SignInPhrases {
		if strings.Contains(text, phrase) {
			return false
		}
	}
	return true
}

// Run fills the sign-in form on the current page. It returns an error
// wrapping ErrLoginFailed when the storefront reports bad credentials.
func (s *SignIn) Run(ctx context.Context, d browser.Driver) error {
	sel := s.site.Selectors
	log.Info().Str("email", s.creds.Email).Msg("Signing in")

	field, err := d.WaitAny(ctx, s.opts.FieldWait, sel.Email, sel.Password)
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}

	if field == sel.Email {
		if err := d.SendKeys(ctx, sel.Email, s.creds.Email+kb.Enter); err != nil {
			log.Info().Err(err).Msg("Email not needed")
		}
	} else {
		log.Info().Msg("Email not needed")
	}

	if err := s.waitForOTP(ctx, d); err != nil {
		return err
	}
	if d.Exists(ctx, sel.AuthError) {
		return s.failed(ctx, d)
	}

	if err := sleepCtx(ctx, s.opts.PageWait); err != nil {
		return err
	}
	if d.Exists(ctx, sel.RememberMe) {
		if err := d.Click(ctx, sel.RememberMe); err != nil {
			log.Debug().Err(err).Msg("Remember me checkbox not clickable")
		}
	}

	if _, err := d.WaitAny(ctx, s.opts.FieldWait, sel.Password); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		log.Error().Msg("Password entry box did not exist")
	} else {
		title, _ := d.Title(ctx)
		if d.Exists(ctx, sel.CaptchaForm) {
			if err := d.SendKeys(ctx, sel.Password, s.creds.Password); err != nil {
				return fmt.Errorf("enter password: %w", err)
			}
			if s.captcha != nil {
				if err := s.captcha.Handle(ctx, d); err != nil && ctx.Err() != nil {
					return ctx.Err()
				}
			}
		} else {
			if err := d.SendKeys(ctx, sel.Password, s.creds.Password+kb.Enter); err != nil {
				return fmt.Errorf("enter password: %w", err)
			}
			browser.WaitTitleChange(ctx, d, title, s.opts.FieldWait)
		}
	}

	if d.Exists(ctx, sel.AuthError) {
		return s.failed(ctx, d)
	}
	if err := s.waitForTwoFactor(ctx, d); err != nil {
		return err
	}
	log.Info().Str("email", s.creds.Email).Msg("Signed in")
	return nil
}

// waitForOTP pauses while the storefront asks for a one-time password.
func (s *SignIn) waitForOTP(ctx context.Context, d browser.Driver) error {
	u, _ := d.URL(ctx)
	if !strings.Contains(u, "reverification") && !d.Exists(ctx, s.site.Selectors.OTPPrompt) {
		return nil
	}
	log.Error().Msg("One time password required, waiting for operator")
	notify.BestEffort(ctx, s.notifier, notify.Message{
		Title: "One time password required",
		Body:  "Enter the code in the browser to continue signing in",
		Tag:   "otp",
		Alarm: true,
	})
	deadline := time.Now().Add(s.opts.OTPWait)
	for time.Now().Before(deadline) {
		u, _ := d.URL(ctx)
		if !strings.Contains(u, "/ap/") {
			return nil
		}
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return err
		}
	}
	log.Error().Msg("One time password was not entered in time")
	return nil
}

func (s *SignIn) waitForTwoFactor(ctx context.Context, d browser.Driver) error {
	title, _ := d.Title(ctx)
	if !slices.Contains(s.site.TwoFactorTitles, title) {
		return nil
	}
	log.Info().Msg("Enter your two-step verification code in the browser")
	notify.BestEffort(ctx, s.notifier, notify.Message{
		Title: "Two-step verification",
		Body:  "Approve the sign-in or enter the code in the browser",
		Tag:   "2fa",
		Alarm: true,
	})
	deadline := time.Now().Add(s.opts.TwoFactorWait)
	for slices.Contains(s.site.TwoFactorTitles, title) {
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: two-step verification not completed", ErrLoginFailed)
		}
		if err := sleepCtx(ctx, 2*time.Second); err != nil {
			return err
		}
		title, _ = d.Title(ctx)
	}
	return nil
}

func (s *SignIn) failed(ctx context.Context, d browser.Driver) error {
	msg, _ := d.Text(ctx, s.site.Selectors.AuthError)
	log.Error().Str("message", msg).Msg("Login failed, check your stored credentials")
	return fmt.Errorf("%w: %s", ErrLoginFailed, strings.TrimSpace(msg))
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
