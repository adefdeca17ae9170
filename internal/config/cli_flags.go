package config

import (
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// FlagGroup is the flag annotation naming the help section a flag is
// listed under.
const FlagGroup = "fairgame_group"

func group(fs *pflag.FlagSet, name string, flags ...string) {
	for _, f := range flags {
		_ = fs.SetAnnotation(f, FlagGroup, []string{name})
	}
}

// RegisterFlags registers common CLI flags on the provided root command
func RegisterFlags(cmd *cobra.Command) {
	if cmd == nil {
		return
	}

	pf := cmd.PersistentFlags()
	pf.BoolP("verbose", "v", false, "Enable debug logging")
	pf.BoolP("quiet", "q", false, "Suppress all output except errors")
	pf.Bool("json", false, "Log JSON to stderr instead of the console format")
	pf.String("items", DefaultItemsPath, "Path to the item config (json5)")
	pf.String("names", DefaultNamesPath, "Path to the item name cache")
	pf.String("site-profile", "", "YAML file overriding the built-in site profile")
	pf.String("domain", "", "Storefront domain, overrides the item config")
	pf.String("profile-dir", DefaultProfileDir, "Browser profile directory")
	pf.String("chrome-path", "", "Chrome executable (default: auto-detect)")
	pf.String("user-agent", "", "Custom user agent string")
	pf.String("proxy", "", "HTTP/SOCKS5 proxy, or a comma separated list rotated on browser recycle")
	pf.Bool("headless", DefaultHeadless, "Run the browser without a window")
	pf.Bool("no-image", false, "Do not load images")
	pf.String("page-timeout", DefaultPageTimeout.String(), "Hard timeout for page loads")

	group(pf, "Logging", "verbose", "quiet", "json")
	group(pf, "Files", "items", "names", "site-profile")
	group(pf, "Browser", "domain", "profile-dir", "chrome-path", "user-agent", "proxy", "headless", "no-image", "page-timeout")
}

// RegisterProbeFlags registers the flags that affect how offers are read
// and qualified. They are shared by the hunt and probe commands.
func RegisterProbeFlags(cmd *cobra.Command) {
	f := cmd.Flags()
	f.Bool("used", false, "Accept any condition up to used-acceptable when an item has none")
	f.Bool("check-shipping", false, "Allow offers with paid shipping")
	f.Bool("alt-offers", false, "Use the legacy offer-listing page")
	f.String("offer-source", DefaultOfferSource, "Where offers are read from: browser, ajax or auto")
	f.StringArray("ajax-header", nil, "Extra \"Key: Value\" header for the ajax offer source (repeatable)")

	group(f, "Offers", "used", "check-shipping", "alt-offers", "offer-source", "ajax-header")
}

// RegisterHuntFlags registers the flags of the hunt command.
func RegisterHuntFlags(cmd *cobra.Command) {
	RegisterProbeFlags(cmd)
	f := cmd.Flags()
	f.String("delay", DefaultDelay.String(), "Time between stock checks")
	f.String("jitter", DefaultJitter.String(), "Random time added to each delay")
	f.Bool("test", false, "Run through checkout but do not place the order")
	f.Bool("single-shot", false, "Stop after the first purchase")
	f.Bool("shipping-bypass", false, "Click through the shipping address page")
	f.Bool("alt-checkout", false, "Check out through the cart instead of buy now")
	f.Bool("shuffle", false, "Shuffle the item order after every pass")
	f.Bool("log-stock-check", false, "Log every stock check at info level")
	f.Bool("detailed", false, "Notify on intermediate checkout steps")
	f.Bool("no-screenshots", false, "Do not take screenshots")
	f.String("captcha-solver", "", "URL of a captcha solving service")
	f.Bool("wait-on-captcha-fail", false, "Hand a failed captcha to a human before refreshing")
	f.String("discord-webhook", "", "Discord webhook URL for notifications")
	f.String("smtp-server", "", "SMTP server for email notifications")
	f.Int("smtp-port", DefaultSMTPPort, "SMTP port")
	f.String("smtp-username", "", "SMTP username (password from FAIRGAME_SMTP_PASSWORD)")
	f.String("smtp-from", "", "Sender address")
	f.String("smtp-to", "", "Recipient address")
	f.String("metrics-addr", DefaultMetricsAddr, "Serve Prometheus metrics on this address, e.g. :9090")

	group(f, "Pacing", "delay", "jitter", "shuffle", "log-stock-check")
	group(f, "Checkout", "test", "single-shot", "shipping-bypass", "alt-checkout", "no-screenshots", "captcha-solver", "wait-on-captcha-fail")
	group(f, "Notifications", "detailed", "discord-webhook", "smtp-server", "smtp-port", "smtp-username", "smtp-from", "smtp-to", "metrics-addr")
}
