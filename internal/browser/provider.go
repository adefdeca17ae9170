package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/rs/zerolog/log"

	"github.com/unapproachable/fairgame-fork/internal/metrics"
	"github.com/unapproachable/fairgame-fork/internal/proxy"
)

// Options configures the Chrome process.
type Options struct {
	Headless      bool
	ProfileDir    string // Chrome user-data-dir, keeps the signed-in session
	UserAgent     string
	Proxy         string
	NoImages      bool
	ChromePath    string // empty means FindChrome
	ActionTimeout time.Duration
	LoadTimeout   time.Duration
}

// Session is one running browser: its driver and the func that tears it down.
type Session struct {
	Driver Driver
	Close  func()
}

// Launcher starts a browser session.
type Launcher func(ctx context.Context, opts Options) (*Session, error)

// Provider owns the browser session used for a hunt.
type Provider struct {
	opts    Options
	launch  Launcher
	reap    func(ctx context.Context, profileDir string) int
	metrics *metrics.Metrics
	proxies *proxy.Pool

	mu      sync.Mutex
	session *Session
	starts  int
	proxy   string
}

// NewProvider returns a provider that launches Chrome with chromedp.
func NewProvider(opts Options, m *metrics.Metrics) *Provider {
	return &Provider{
		opts:    opts,
		launch:  LaunchChrome,
		reap:    ReapStray,
		metrics: m,
	}
}

// NewProviderWithLauncher is used to run the lifecycle against a fake browser.
func NewProviderWithLauncher(opts Options, launch Launcher) *Provider {
	return &Provider{
		opts:   opts,
		launch: launch,
		reap:   func(context.Context, string) int { return 0 },
	}
}

// SetProxies makes every session launch through the next proxy of pool.
// A recycle puts the proxy of the dead session on cooldown.
func (p *Provider) SetProxies(pool *proxy.Pool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.proxies = pool
}

// Proxy returns the proxy of the running session.
func (p *Provider) Proxy() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.proxy
}

// Start launches the browser if it is not running.
func (p *Provider) Start(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.startLocked(ctx)
}

func (p *Provider) startLocked(ctx context.Context) error {
	if p.session != nil {
		return nil
	}
	opts := p.opts
	if p.proxies.Len() > 0 {
		opts.Proxy = p.proxies.Next()
	}
	s, err := p.launch(ctx, opts)
	if err != nil {
		return fmt.Errorf("start browser: %w", err)
	}
	p.session = s
	p.proxy = opts.Proxy
	p.starts++
	log.Debug().Int("starts", p.starts).Bool("headless", opts.Headless).Str("proxy", opts.Proxy).Msg("Browser session started")
	return nil
}

// Driver returns the active driver, or nil before Start.
func (p *Provider) Driver() Driver {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.session == nil {
		return nil
	}
	return p.session.Driver
}

// Recycle closes the session, kills stray Chrome processes left on the
// profile and starts a fresh session.
func (p *Provider) Recycle(ctx context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	log.Warn().Msg("Recycling browser session")
	p.metrics.IncRecycle()
	p.proxies.MarkFailed(p.proxy)
	p.closeLocked()
	if n := p.reap(ctx, p.opts.ProfileDir); n > 0 {
		log.Info().Int("killed", n).Msg("Killed stray browser processes")
	}
	return p.startLocked(ctx)
}

// Close stops the browser. It is safe to call more than once.
func (p *Provider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeLocked()
	return nil
}

func (p *Provider) closeLocked() {
	if p.session == nil {
		return
	}
	if p.session.Close != nil {
		p.session.Close()
	}
	p.session = nil
	log.Debug().Msg("Browser session closed")
}

// Starts returns how many sessions have been launched.
func (p *Provider) Starts() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.starts
}

// launchTimeout bounds how long Chrome may take to come up.
const launchTimeout = 30 * time.Second

// LaunchChrome starts Chrome through chromedp.
func LaunchChrome(ctx context.Context, opts Options) (*Session, error) {
	allocCtx, allocCancel := chromedp.NewExecAllocator(context.Background(), allocatorOptions(opts)...)
	tab, tabCancel := chromedp.NewContext(allocCtx)

	closeAll := func() {
		tabCancel()
		allocCancel()
	}

	// The first Run starts the process under tab, so it carries no deadline
	// of its own; expiry tears the whole session down instead.
	run := func() error { return chromedp.Run(tab, chromedp.Navigate("about:blank")) }
	if err := warmUp(ctx, run, closeAll, launchTimeout); err != nil {
		return nil, fmt.Errorf("launch chrome: %w", err)
	}

	return &Session{
		Driver: NewChromeDriver(tab, opts.ActionTimeout, opts.LoadTimeout),
		Close:  closeAll,
	}, nil
}

// warmUp waits for run, calling abort when it fails, when ctx ends or when
// timeout passes first. After an abort it still waits for run to return.
func warmUp(ctx context.Context, run func() error, abort func(), timeout time.Duration) error {
	done := make(chan error, 1)
	go func() { done <- run() }()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		if err != nil {
			abort()
		}
		return err
	case <-timer.C:
		abort()
		<-done
		return fmt.Errorf("browser did not start within %s", timeout)
	case <-ctx.Done():
		abort()
		<-done
		return ctx.Err()
	}
}

func allocatorOptions(opts Options) []chromedp.ExecAllocatorOption {
	out := []chromedp.ExecAllocatorOption{
		chromedp.NoFirstRun,
		chromedp.NoDefaultBrowserCheck,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-background-networking", true),
		chromedp.Flag("disable-breakpad", true),
		chromedp.Flag("disable-client-side-phishing-detection", true),
		chromedp.Flag("disable-default-apps", true),
		chromedp.Flag("disable-hang-monitor", true),
		chromedp.Flag("disable-prompt-on-repost", true),
		chromedp.Flag("disable-sync", true),
		chromedp.Flag("disable-translate", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.Flag("disable-infobars", true),
		chromedp.Flag("log-level", "3"),
		chromedp.Flag("mute-audio", true),
		chromedp.WindowSize(1280, 900),
	}

	path := opts.ChromePath
	if path == "" {
		path = FindChrome()
	}
	if path != "" {
		out = append(out, chromedp.ExecPath(path))
	}
	if opts.UserAgent != "" {
		out = append(out, chromedp.UserAgent(opts.UserAgent))
	}
	if opts.Headless {
		out = append(out, chromedp.Flag("headless", "new"), chromedp.Flag("disable-gpu", true))
	} else {
		out = append(out, chromedp.Flag("headless", false))
	}
	if opts.ProfileDir != "" {
		out = append(out, chromedp.UserDataDir(opts.ProfileDir))
	}
	if opts.Proxy != "" {
		out = append(out, chromedp.ProxyServer(opts.Proxy))
	}
	if opts.NoImages {
		out = append(out, chromedp.Flag("blink-settings", "imagesEnabled=false"))
	}
	return out
}
