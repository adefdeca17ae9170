package cli

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/unapproachable/fairgame-fork/internal/app"
	"github.com/unapproachable/fairgame-fork/internal/auth"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/navigator"
	"github.com/unapproachable/fairgame-fork/internal/notify"
	"github.com/unapproachable/fairgame-fork/internal/ui"
	urlutil "github.com/unapproachable/fairgame-fork/internal/utils/url"
)

var huntCmd = &cobra.Command{
	Use:   "amazon",
	Short: "Hunt the configured items and check out the first fair offer",
	Long: `Signs in, makes sure the cart is empty and then polls the offer listing of
every configured item. The first offer sold by the storefront itself within
the item's price range and condition is checked out, and the rest of that
item's group is dropped from the hunt.

The hunt ends when every group is bought, after one purchase with
--single-shot, or on Ctrl-C.`,
	Example: `  # Hunt the items in config/amazon_config.json
  fairgame amazon

  # Walk checkout without placing the order
  fairgame amazon --test --single-shot

  # Poll the offers endpoint over HTTP and fall back to the browser
  fairgame amazon --offer-source=auto --delay=3s`,
	Args: cobra.NoArgs,
	RunE: runHunt,
}

func init() {
	config.RegisterHuntFlags(huntCmd)
	rootCmd.AddCommand(huntCmd)
}

func runHunt(cmd *cobra.Command, _ []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	defer closeApp(cmd)
	ctx := cmd.Context()

	items, err := a.LoadHunt()
	if err != nil {
		return err
	}
	if err := a.EnsureBrowser(ctx); err != nil {
		return err
	}

	captcha := a.Captcha()
	signin, credErr := a.SignIn(captcha)
	if credErr != nil {
		log.Debug().Err(credErr).Msg("No sign-in procedure, relying on the browser profile")
	}
	nav := a.Navigator(signin, captcha)

	if err := prepareSession(ctx, a, nav, signin, credErr); err != nil {
		return err
	}

	prober, err := a.Prober(captcha)
	if err != nil {
		return err
	}

	ui.RenderPlan(a.Out, items, a.Names.Name, planOptions(a.Config, a.Site.Domain))
	notify.BestEffort(ctx, a.Notifier, notify.Message{
		Title: "Bot Logged in and Starting up",
		Body:  fmt.Sprintf("Hunting %d items on %s", len(items), a.Site.Domain),
		Tag:   "startup",
	})

	hunter := engine.NewHunter(
		engine.NewHuntState(items),
		prober,
		a.Checkout(nav),
		a.Pacer(),
		a.Notifier,
		a.Metrics,
		a.Names,
		engine.HunterOptions{
			SingleShot:    a.Config.SingleShot,
			Shuffle:       a.Config.Shuffle,
			LogStockCheck: a.Config.LogStockCheck,
		},
	)
	summary, err := hunter.Run(ctx)
	printSummary(a.Out, summary)
	return err
}

// prepareSession opens the storefront, signs in when the profile is not
// already signed in and refuses to start with items in the cart.
func prepareSession(ctx context.Context, a *app.Application, nav *navigator.Navigator, signin *auth.SignIn, credErr error) error {
	d := a.Browser.Driver()
	if d == nil {
		return engine.SessionFatal("no browser session", nil)
	}
	urls := urlutil.NewSite(a.Site.Domain)

	if err := d.Navigate(ctx, urls.Base()); err != nil {
		return engine.SessionFatal("open storefront", err)
	}
	if !auth.IsSignedIn(ctx, d, a.Site) {
		if signin == nil {
			return credErr
		}
		if err := d.Navigate(ctx, urls.SignIn()); err != nil {
			return engine.SessionFatal("open sign-in page", err)
		}
		if err := signin.Run(ctx, d); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return engine.SessionFatal("sign in", err)
		}
		log.Info().Msg("Signed in")
	} else {
		log.Info().Msg("Already signed in")
	}

	if err := d.Navigate(ctx, urls.Cart()); err != nil {
		return engine.SessionFatal("open cart", err)
	}
	if n := nav.CartCount(ctx); n > 0 {
		return fmt.Errorf("%w: %d item(s) in cart, empty it before starting", engine.ErrCartNotEmpty, n)
	}
	return nil
}

func planOptions(cfg *config.Config, domain string) []ui.Option {
	mode := "buy now"
	if cfg.AltCheckout {
		mode = "add to cart"
	}
	opts := []ui.Option{
		{Name: "Domain", Value: domain},
		{Name: "Offer source", Value: cfg.OfferSource},
		{Name: "Checkout", Value: mode},
		{Name: "Delay", Value: fmt.Sprintf("%s + up to %s", cfg.Delay, cfg.Jitter)},
	}
	flags := []struct {
		name string
		on   bool
	}{
		{"Test mode", cfg.TestMode},
		{"Single shot", cfg.SingleShot},
		{"Used", cfg.Used},
		{"Paid shipping", cfg.CheckShipping},
		{"Shipping bypass", cfg.ShippingBypass},
		{"Alternate offers", cfg.AltOffers},
		{"Shuffle", cfg.Shuffle},
		{"Headless", cfg.Headless},
		{"Detailed notifications", cfg.Detailed},
	}
	for _, f := range flags {
		if f.on {
			opts = append(opts, ui.Option{Name: f.name, Value: ui.Success("enabled")})
		}
	}
	if !cfg.Screenshots {
		opts = append(opts, ui.Option{Name: "Screenshots", Value: ui.Warn("disabled")})
	}
	return opts
}

func printSummary(w io.Writer, s engine.Summary) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold("Hunt finished"))
	fmt.Fprintf(w, "  %s\n", ui.Label("Purchases", strconv.Itoa(s.Purchases)))
	fmt.Fprintf(w, "  %s\n", ui.Label("Stock checks", strconv.Itoa(s.Checks)))
	fmt.Fprintf(w, "  %s\n", ui.Label("Passes", strconv.Itoa(s.Passes)))
	fmt.Fprintf(w, "  %s\n", ui.Label("Items left", strconv.Itoa(s.Remaining)))
	fmt.Fprintf(w, "  %s\n\n", ui.Label("Runtime", s.Runtime.Round(time.Second).String()))
}
