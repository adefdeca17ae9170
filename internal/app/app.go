// Package app provides the core application initialization and lifecycle management.
package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/auth"
	"github.com/unapproachable/fairgame-fork/internal/browser"
	"github.com/unapproachable/fairgame-fork/internal/cache"
	"github.com/unapproachable/fairgame-fork/internal/captcha"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/diagnostics"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/extract"
	"github.com/unapproachable/fairgame-fork/internal/metrics"
	"github.com/unapproachable/fairgame-fork/internal/navigator"
	"github.com/unapproachable/fairgame-fork/internal/notify"
	"github.com/unapproachable/fairgame-fork/internal/probe"
	"github.com/unapproachable/fairgame-fork/internal/proxy"
	"github.com/unapproachable/fairgame-fork/internal/qualify"
	"github.com/unapproachable/fairgame-fork/internal/ratelimit"
	"github.com/unapproachable/fairgame-fork/internal/ui"
	"github.com/unapproachable/fairgame-fork/internal/utils/headers"
	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

const notifyQueueSize = 64

// Application holds all application dependencies and manages their lifecycle.
//
// It is created once at startup and shared across all CLI commands.
// Use Close() to ensure proper resource cleanup on shutdown.
type Application struct {
	Config      *config.Config
	Logger      *zerolog.Logger
	Site        config.SiteProfile
	Names       *cache.ItemNames
	Metrics     *metrics.Metrics
	Notifier    notify.Sender
	Reporter    *diagnostics.Reporter
	Browser     *browser.Provider
	Credentials *auth.Store

	// Out receives tables and the handoff countdown.
	Out io.Writer

	dispatcher *notify.Dispatcher
	server     *metrics.Server
	browserMu  sync.Mutex
	started    bool
	closeOnce  sync.Once
	startTime  time.Time
}

// New creates and initializes a new Application with all dependencies.
//
// It configures logging, loads the site profile and the name cache, and
// builds the notifier chain and the browser provider. Chrome itself is
// started lazily by EnsureBrowser.
func New(ctx context.Context, cfg *config.Config) (*Application, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}

	logger := NewLogger(cfg.LogLevel, cfg.JSONLog, os.Stderr)
	log.Logger = logger
	logger.Debug().
		Str("level", cfg.LogLevel).
		Bool("json", cfg.JSONLog).
		Msg("Logger initialized")

	site, err := config.LoadSiteProfile(cfg.SiteProfilePath, urlutil.NormalizeDomain(cfg.Domain))
	if err != nil {
		return nil, engine.ConfigError("load site profile", err)
	}

	names := cache.NewItemNames(cache.DefaultSize)
	if err := names.Load(cfg.NamesPath); err != nil {
		logger.Warn().Err(err).Str("path", cfg.NamesPath).Msg("Could not load item names, starting empty")
	}

	m := metrics.New()
	var server *metrics.Server
	if cfg.MetricsAddr != "" {
		server = metrics.Serve(cfg.MetricsAddr, m)
	}

	senders, err := buildSenders(cfg)
	if err != nil {
		return nil, engine.ConfigError("configure notifications", err)
	}
	dispatcher := notify.NewDispatcher(senders, notifyQueueSize)

	store, err := auth.NewStore()
	if err != nil {
		logger.Warn().Err(err).Msg("No home directory, credentials kept next to the profile")
		store = auth.NewFileStore(cfg.ProfileDir + ".credentials")
	}

	app := &Application{
		Config:      cfg,
		Logger:      &logger,
		Site:        site,
		Names:       names,
		Metrics:     m,
		Notifier:    dispatcher,
		Reporter:    diagnostics.NewReporter(diagnostics.NewSink("."), dispatcher, cfg.Screenshots),
		Browser:     newProvider(cfg, m),
		Credentials: store,
		Out:         os.Stdout,
		dispatcher:  dispatcher,
		server:      server,
		startTime:   time.Now(),
	}

	logger.Debug().
		Str("domain", site.Domain).
		Int("names", names.Len()).
		Int("senders", len(senders)).
		Msg("Application initialized")
	return app, nil
}

// NewLogger builds the process logger. JSON goes to w untouched; otherwise a
// console writer renders it for humans.
func NewLogger(level string, jsonLog bool, w io.Writer) zerolog.Logger {
	lvl := zerolog.InfoLevel
	switch strings.ToLower(level) {
	case "debug":
		lvl = zerolog.DebugLevel
	case "warn":
		lvl = zerolog.WarnLevel
	case "error":
		lvl = zerolog.ErrorLevel
	}
	zerolog.SetGlobalLevel(lvl)

	if !jsonLog {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(w).With().Timestamp().Logger()
}

func buildSenders(cfg *config.Config) (notify.Multi, error) {
	senders := notify.Multi{notify.Log{}, notify.Bell{Out: os.Stdout}}
	if cfg.DiscordWebhook != "" {
		d, err := notify.NewDiscord(cfg.DiscordWebhook)
		if err != nil {
			return nil, err
		}
		senders = append(senders, d)
	}
	if cfg.SMTP.Server != "" {
		senders = append(senders, notify.NewEmail(notify.SMTPConfig{
			Server:   cfg.SMTP.Server,
			Port:     cfg.SMTP.Port,
			Username: cfg.SMTP.Username,
			Password: cfg.SMTP.Password,
			From:     cfg.SMTP.From,
			To:       splitList(cfg.SMTP.To),
		}))
	}
	return senders, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func browserOptions(cfg *config.Config) browser.Options {
	return browser.Options{
		Headless:      cfg.Headless,
		ProfileDir:    cfg.ProfileDir,
		UserAgent:     cfg.UserAgent,
		Proxy:         cfg.Proxy,
		NoImages:      cfg.NoImages,
		ChromePath:    cfg.ChromePath,
		ActionTimeout: cfg.ActionTimeout,
		LoadTimeout:   cfg.PageTimeout,
	}
}

// newProvider builds the browser provider. A comma separated --proxy list
// rotates on every recycle.
func newProvider(cfg *config.Config, m *metrics.Metrics) *browser.Provider {
	p := browser.NewProvider(browserOptions(cfg), m)
	if pool := proxy.Parse(cfg.Proxy); pool.Len() > 1 {
		p.SetProxies(pool)
	}
	return p
}

// EnsureBrowser starts Chrome if it is not already running.
func (a *Application) EnsureBrowser(ctx context.Context) error {
	if a == nil {
		return fmt.Errorf("application is nil")
	}

	a.browserMu.Lock()
	defer a.browserMu.Unlock()

	if a.started {
		return nil
	}
	a.Logger.Debug().Str("profile", a.Config.ProfileDir).Msg("Starting browser on demand")
	if err := a.Browser.Start(ctx); err != nil {
		return engine.SessionFatal("start browser", err)
	}
	a.started = true
	return nil
}

// LoadHunt reads the item list. When no domain was given on the command
// line, the one in the item file replaces the profile default.
func (a *Application) LoadHunt() ([]models.TrackedItem, error) {
	def := models.New
	if a.Config.Used {
		def = models.UsedAcceptable
	}
	ic, err := config.LoadItems(a.Config.ItemsPath, def)
	if err != nil {
		return nil, err
	}
	if a.Config.Domain == "" && ic.Domain != "" {
		a.Site.Domain = urlutil.NormalizeDomain(ic.Domain)
	}
	if ic.Skipped > 0 {
		a.Logger.Warn().Int("skipped", ic.Skipped).Msg("Some item entries were invalid and skipped")
	}
	a.Logger.Info().
		Int("items", len(ic.Items)).
		Str("domain", a.Site.Domain).
		Msg("Item list loaded")
	return ic.Items, nil
}

// Captcha builds the captcha procedure, backed by the HTTP solver when one
// is configured.
func (a *Application) Captcha() *captcha.Handler {
	var solver captcha.Solver = captcha.NoSolver{}
	if a.Config.CaptchaSolverURL != "" {
		solver = captcha.NewHTTPSolver(a.Config.CaptchaSolverURL, resty.New())
	}
	opts := captcha.DefaultOptions()
	opts.WaitOnFail = a.Config.WaitOnCaptchaFail
	return captcha.NewHandler(a.Site, solver, a.Notifier, a.Metrics, opts)
}

// SignIn builds the sign-in procedure from the stored credentials.
func (a *Application) SignIn(h *captcha.Handler) (*auth.SignIn, error) {
	creds, err := a.Credentials.Load()
	if errors.Is(err, auth.ErrNoCredentials) {
		return nil, engine.ConfigError("load credentials", err)
	}
	if err != nil {
		return nil, err
	}
	return auth.NewSignIn(a.Site, creds, h, a.Notifier, auth.DefaultSignInOptions()), nil
}

// Prober builds the stock prober for the configured offer source.
func (a *Application) Prober(h *captcha.Handler) (*probe.Prober, error) {
	source, err := a.offerSource(h)
	if err != nil {
		return nil, err
	}
	return probe.New(
		source,
		extract.New(a.Site),
		qualify.New(a.Site.FirstPartySellers),
		a.Names,
		probe.Options{CheckShipping: a.Config.CheckShipping, Metrics: a.Metrics},
	), nil
}

func (a *Application) offerSource(h *captcha.Handler) (probe.Source, error) {
	bopts := probe.DefaultBrowserOptions()
	bopts.AltOffers = a.Config.AltOffers
	slow := probe.NewBrowserSource(a.Browser, h, a.Site, bopts)
	if a.Config.OfferSource == config.OfferSourceBrowser {
		return slow, nil
	}

	hdr, err := headers.Parse(a.Config.AjaxHeaders)
	if err != nil {
		return nil, engine.ConfigError("parse --ajax-header", err)
	}
	aopts := probe.DefaultAjaxOptions()
	aopts.UserAgent = a.Config.UserAgent
	aopts.Headers = hdr
	limiter := ratelimit.NewHostLimiter(a.Config.AjaxRPS, a.Config.AjaxBurst)
	fast, err := probe.NewAjaxSource(a.Site, a.browserCookies, limiter, aopts)
	if err != nil {
		return nil, err
	}
	if a.Config.OfferSource == config.OfferSourceAjax {
		return fast, nil
	}
	return probe.FallbackSource{Fast: fast, Slow: slow}, nil
}

func (a *Application) browserCookies(ctx context.Context) ([]browser.Cookie, error) {
	d := a.Browser.Driver()
	if d == nil {
		return nil, browser.ErrNoSession
	}
	return d.Cookies(ctx)
}

// Navigator builds the checkout state machine. signin may be nil.
func (a *Application) Navigator(signin *auth.SignIn, h *captcha.Handler) *navigator.Navigator {
	opts := navigator.DefaultOptions()
	opts.ShippingBypass = a.Config.ShippingBypass
	opts.TestMode = a.Config.TestMode
	opts.Detailed = a.Config.Detailed

	var si navigator.SignIn
	if signin != nil {
		si = signin
	}
	nav := navigator.New(a.Browser, a.Site, si, h, a.Reporter, a.Metrics, opts)
	nav.SetCountdown(func(ctx context.Context, d time.Duration, label string, stop func() bool) error {
		return ui.Countdown(ctx, a.Out, d, label, stop)
	})
	return nav
}

// Checkout wraps nav in the configured checkout mode.
func (a *Application) Checkout(nav *navigator.Navigator) *navigator.Checkout {
	mode := navigator.ModeBuyNow
	if a.Config.AltCheckout {
		mode = navigator.ModeAddToCart
	}
	return navigator.NewCheckout(nav, mode)
}

// Pacer spaces stock checks by the configured delay and jitter.
func (a *Application) Pacer() *ratelimit.Pacer {
	return ratelimit.NewPacer(a.Config.Delay, a.Config.Jitter)
}

// Close gracefully shuts down the application and all its resources.
//
// It saves the name cache, closes the browser, drains queued notifications
// and stops the metrics server. It is safe to call more than once.
func (a *Application) Close(ctx context.Context) error {
	var errs []error
	a.closeOnce.Do(func() {
		a.Logger.Debug().Msg("Shutting down application")

		if a.Names != nil && a.Names.Dirty() {
			if err := a.Names.Save(a.Config.NamesPath); err != nil {
				a.Logger.Warn().Err(err).Msg("Error saving item names")
				errs = append(errs, err)
			}
		}

		if a.Browser != nil {
			if err := a.Browser.Close(); err != nil {
				a.Logger.Warn().Err(err).Msg("Error closing browser")
				errs = append(errs, err)
			}
		}

		drainCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), config.DefaultShutdownWindow)
		defer cancel()
		if a.dispatcher != nil {
			if err := a.dispatcher.Close(drainCtx); err != nil {
				a.Logger.Warn().Err(err).Msg("Notifications not fully delivered")
			}
		}
		if err := a.server.Shutdown(drainCtx); err != nil {
			a.Logger.Warn().Err(err).Msg("Error stopping metrics server")
		}

		a.Logger.Debug().Dur("uptime", a.Uptime()).Msg("Application shutdown complete")
	})
	return errors.Join(errs...)
}

// Uptime returns how long the application has been running.
func (a *Application) Uptime() time.Duration {
	return time.Since(a.startTime)
}
