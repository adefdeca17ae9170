package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/unapproachable/fairgame-fork/internal/engine"
)

// SMTP holds the email notifier settings. An empty Server disables email.
type SMTP struct {
	Server   string
	Port     int
	Username string
	Password string
	From     string
	To       string
}

// Config holds application configuration values
type Config struct {
	// Logging
	LogLevel string
	JSONLog  bool

	// Hunt
	ItemsPath      string
	NamesPath      string
	Delay          time.Duration
	Jitter         time.Duration
	TestMode       bool
	SingleShot     bool
	Used           bool
	CheckShipping  bool
	ShippingBypass bool
	AltCheckout    bool
	AltOffers      bool
	OfferSource    string
	Shuffle        bool
	LogStockCheck  bool
	Detailed       bool
	Screenshots    bool

	// Browser
	Headless      bool
	NoImages      bool
	ProfileDir    string
	ChromePath    string
	UserAgent     string
	Proxy         string
	PageTimeout   time.Duration
	ActionTimeout time.Duration

	// Site
	SiteProfilePath string
	Domain          string

	// Captcha
	CaptchaSolverURL  string
	WaitOnCaptchaFail bool

	// Rate limiting for the ajax offer source
	AjaxRPS     float64
	AjaxBurst   int
	AjaxHeaders []string

	// Notifications
	DiscordWebhook string
	SMTP           SMTP

	MetricsAddr string
}

// Defaults returns a Config with every default applied.
func Defaults() *Config {
	return &Config{
		LogLevel:      DefaultLogLevel,
		JSONLog:       DefaultJSONLog,
		ItemsPath:     DefaultItemsPath,
		NamesPath:     DefaultNamesPath,
		Delay:         DefaultDelay,
		Jitter:        DefaultJitter,
		OfferSource:   DefaultOfferSource,
		Screenshots:   DefaultScreenshots,
		Headless:      DefaultHeadless,
		ProfileDir:    DefaultProfileDir,
		PageTimeout:   DefaultPageTimeout,
		ActionTimeout: DefaultActionTimeout,
		AjaxRPS:       DefaultAjaxRPS,
		AjaxBurst:     DefaultAjaxBurst,
		SMTP:          SMTP{Port: DefaultSMTPPort},
		MetricsAddr:   DefaultMetricsAddr,
	}
}

// Load builds a Config by combining defaults, FAIRGAME_* environment
// variables and CLI flags, in that order. Caller should pass the command
// being run so its flags can be read.
func Load(cmd *cobra.Command) (*Config, error) {
	cfg := Defaults()
	if err := applyEnv(cfg, os.Getenv); err != nil {
		return nil, engine.ConfigError("invalid config", err)
	}
	if cmd != nil {
		applyFlags(cfg, cmd.Flags())
	}
	if err := validate(cfg); err != nil {
		return nil, engine.ConfigError("invalid config", err)
	}
	return cfg, nil
}

func applyEnv(cfg *Config, getenv func(string) string) error {
	str := func(key string, dst *string) {
		if v := getenv(key); v != "" {
			*dst = v
		}
	}
	boolean := func(key string, dst *bool) error {
		if v := getenv(key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = b
		}
		return nil
	}
	duration := func(key string, dst *time.Duration) error {
		if v := getenv(key); v != "" {
			d, err := time.ParseDuration(v)
			if err != nil {
				return fmt.Errorf("%s: %w", key, err)
			}
			*dst = d
		}
		return nil
	}

	str("FAIRGAME_LOG_LEVEL", &cfg.LogLevel)
	str("FAIRGAME_ITEMS", &cfg.ItemsPath)
	str("FAIRGAME_NAMES", &cfg.NamesPath)
	str("FAIRGAME_PROFILE_DIR", &cfg.ProfileDir)
	str("FAIRGAME_CHROME_PATH", &cfg.ChromePath)
	str("FAIRGAME_USER_AGENT", &cfg.UserAgent)
	str("FAIRGAME_PROXY", &cfg.Proxy)
	str("FAIRGAME_SITE_PROFILE", &cfg.SiteProfilePath)
	str("FAIRGAME_DOMAIN", &cfg.Domain)
	str("FAIRGAME_OFFER_SOURCE", &cfg.OfferSource)
	str("FAIRGAME_CAPTCHA_SOLVER", &cfg.CaptchaSolverURL)
	str("FAIRGAME_DISCORD_WEBHOOK", &cfg.DiscordWebhook)
	str("FAIRGAME_SMTP_SERVER", &cfg.SMTP.Server)
	str("FAIRGAME_SMTP_USERNAME", &cfg.SMTP.Username)
	str("FAIRGAME_SMTP_PASSWORD", &cfg.SMTP.Password)
	str("FAIRGAME_SMTP_FROM", &cfg.SMTP.From)
	str("FAIRGAME_SMTP_TO", &cfg.SMTP.To)
	str("FAIRGAME_METRICS_ADDR", &cfg.MetricsAddr)

	if v := getenv("FAIRGAME_SMTP_PORT"); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("FAIRGAME_SMTP_PORT: %w", err)
		}
		cfg.SMTP.Port = p
	}
	if err := boolean("FAIRGAME_HEADLESS", &cfg.Headless); err != nil {
		return err
	}
	if err := boolean("FAIRGAME_JSON_LOG", &cfg.JSONLog); err != nil {
		return err
	}
	if err := duration("FAIRGAME_DELAY", &cfg.Delay); err != nil {
		return err
	}
	return duration("FAIRGAME_JITTER", &cfg.Jitter)
}

// applyFlags copies every flag the user actually set. Flags left at their
// default do not override the environment.
func applyFlags(cfg *Config, fs *pflag.FlagSet) {
	fs.Visit(func(f *pflag.Flag) {
		v := f.Value.String()
		switch f.Name {
		case "verbose":
			if v == "true" {
				cfg.LogLevel = "debug"
			}
		case "quiet":
			if v == "true" {
				cfg.LogLevel = "error"
			}
		case "json":
			cfg.JSONLog = v == "true"
		case "items":
			cfg.ItemsPath = v
		case "names":
			cfg.NamesPath = v
		case "site-profile":
			cfg.SiteProfilePath = v
		case "domain":
			cfg.Domain = v
		case "profile-dir":
			cfg.ProfileDir = v
		case "chrome-path":
			cfg.ChromePath = v
		case "user-agent":
			cfg.UserAgent = v
		case "proxy":
			cfg.Proxy = v
		case "headless":
			cfg.Headless = v == "true"
		case "no-image":
			cfg.NoImages = v == "true"
		case "page-timeout":
			cfg.PageTimeout = parseDuration(v, cfg.PageTimeout)
		case "delay":
			cfg.Delay = parseDuration(v, cfg.Delay)
		case "jitter":
			cfg.Jitter = parseDuration(v, cfg.Jitter)
		case "test":
			cfg.TestMode = v == "true"
		case "single-shot":
			cfg.SingleShot = v == "true"
		case "used":
			cfg.Used = v == "true"
		case "check-shipping":
			cfg.CheckShipping = v == "true"
		case "shipping-bypass":
			cfg.ShippingBypass = v == "true"
		case "alt-checkout":
			cfg.AltCheckout = v == "true"
		case "alt-offers":
			cfg.AltOffers = v == "true"
		case "offer-source":
			cfg.OfferSource = v
		case "shuffle":
			cfg.Shuffle = v == "true"
		case "log-stock-check":
			cfg.LogStockCheck = v == "true"
		case "detailed":
			cfg.Detailed = v == "true"
		case "no-screenshots":
			cfg.Screenshots = v != "true"
		case "captcha-solver":
			cfg.CaptchaSolverURL = v
		case "wait-on-captcha-fail":
			cfg.WaitOnCaptchaFail = v == "true"
		case "discord-webhook":
			cfg.DiscordWebhook = v
		case "smtp-server":
			cfg.SMTP.Server = v
		case "smtp-port":
			if p, err := strconv.Atoi(v); err == nil {
				cfg.SMTP.Port = p
			}
		case "smtp-username":
			cfg.SMTP.Username = v
		case "smtp-from":
			cfg.SMTP.From = v
		case "smtp-to":
			cfg.SMTP.To = v
		case "metrics-addr":
			cfg.MetricsAddr = v
		case "ajax-header":
			cfg.AjaxHeaders, _ = fs.GetStringArray(f.Name)
		}
	})
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	d, err := time.ParseDuration(s)
	if err != nil {
		return fallback
	}
	return d
}
