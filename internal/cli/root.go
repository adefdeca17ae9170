// Package cli provides the command-line interface for the fairgame bot.
package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/unapproachable/fairgame-fork/internal/app"
	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/ui"
)

// version is stamped at build time with -ldflags "-X".
var version = "0.6.0"

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "fairgame",
	Short: "Watch storefront listings and buy at a fair price",
	Long: `FairGame watches the offer listings of the items in your config and
checks out the first offer that is sold by the storefront itself, within
your price range and condition.

It drives a real Chrome profile so the storefront sees a normal signed-in
session. Run "fairgame login" once to store your account credentials.`,
	Version:       version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the command tree under ctx and returns the process exit code.
// It is called by main.main().
func Execute(ctx context.Context) int {
	err := rootCmd.ExecuteContext(ctx)
	if err != nil && ctx.Err() == nil {
		fmt.Fprintln(os.Stderr, ui.Error("Error: ")+err.Error())
	}
	if err == nil && ctx.Err() != nil {
		err = ctx.Err()
	}
	return ExitCode(err)
}

func init() {
	// Lazily initialize the application before running commands (avoid starting app for -h/help)
	rootCmd.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		if GetAppFromCmd(cmd) != nil {
			return nil
		}

		cfg, err := initConfig(cmd)
		if err != nil {
			return err
		}

		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		SetApp(cmd, a)
		return nil
	}

	// Ensure app is closed after command runs
	rootCmd.PersistentPostRun = func(cmd *cobra.Command, args []string) {
		closeApp(cmd)
	}
}

// closeApp shuts the application down and forgets it. It runs after every
// command, and again from a defer in the hunt so a failed run still cleans up.
func closeApp(cmd *cobra.Command) {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.WithoutCancel(cmd.Context()), 2*config.DefaultShutdownWindow)
	defer cancel()
	if err := a.Close(ctx); err != nil {
		log.Warn().Err(err).Msg("Shutdown finished with errors")
	}
	SetApp(cmd, nil)
}

func init() {
	// Register centralized flags
	config.RegisterFlags(rootCmd)

	// Customize help and version flag descriptions
	rootCmd.Flags().BoolP("help", "h", false, "Help for FairGame")
	rootCmd.Flags().Bool("version", false, "Version for FairGame")
}

// initConfig loads the configuration for cmd and points the global logger
// at stderr before the application exists, so load errors are readable.
func initConfig(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.Load(cmd)
	if err != nil {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).With().Timestamp().Logger()
		return nil, err
	}
	log.Logger = app.NewLogger(cfg.LogLevel, cfg.JSONLog, os.Stderr)
	log.Debug().
		Str("items", cfg.ItemsPath).
		Str("profile", cfg.ProfileDir).
		Str("offer_source", cfg.OfferSource).
		Msg("Configuration loaded")
	return cfg, nil
}

func init() {
	// Disable the default completion command
	rootCmd.CompletionOptions.DisableDefaultCmd = true

	rootCmd.SetHelpFunc(renderHelp)
	rootCmd.SetUsageFunc(renderUsage)
}
