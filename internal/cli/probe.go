package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/engine"
	"github.com/unapproachable/fairgame-fork/internal/probe"
	"github.com/unapproachable/fairgame-fork/internal/ui"
	"github.com/unapproachable/fairgame-fork/internal/utils/output"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

var probeCmd = &cobra.Command{
	Use:   "probe <asin>",
	Short: "Check one item once and show every offer",
	Long: `Loads the offer listing of one item, extracts every offer and shows what
the qualifier made of each. Nothing is bought.`,
	Example: `  # Show every offer for an item
  fairgame probe B08FC5L3RG --max=499.99

  # Read the offers endpoint over HTTP only
  fairgame probe B08FC5L3RG --offer-source=ajax

  # Export the evaluated offers
  fairgame probe B08FC5L3RG -o csv > offers.csv`,
	Args: cobra.ExactArgs(1),
	RunE: runProbe,
}

func init() {
	config.RegisterProbeFlags(probeCmd)
	registerItemFlags(probeCmd)
	probeCmd.Flags().StringP("output", "o", output.FormatTable, "Report format: table, json or csv")
	rootCmd.AddCommand(probeCmd)
}

func registerItemFlags(cmd *cobra.Command) {
	cmd.Flags().Float64("min", 0, "Lowest accepted price")
	cmd.Flags().Float64("max", 100000, "Highest accepted price")
	cmd.Flags().String("condition", "", "Worst accepted condition (new, renewed, used-like-new, ...)")
}

func runProbe(cmd *cobra.Command, args []string) error {
	a := GetAppFromCmd(cmd)
	if a == nil {
		return fmt.Errorf("application not initialized")
	}
	ctx := cmd.Context()

	item, err := probeItem(cmd, args[0], a.Config.Used)
	if err != nil {
		return err
	}
	format, _ := cmd.Flags().GetString("output")
	switch format {
	case output.FormatTable, output.FormatJSON, output.FormatCSV:
	default:
		return engine.ConfigError(fmt.Sprintf("unknown --output %q", format), nil)
	}

	if a.Config.OfferSource != config.OfferSourceAjax {
		if err := a.EnsureBrowser(ctx); err != nil {
			return err
		}
	}
	prober, err := a.Prober(a.Captcha())
	if err != nil {
		return err
	}
	r, err := prober.Report(ctx, item)
	if err != nil {
		return err
	}
	if r == nil {
		fmt.Fprintln(cmd.ErrOrStderr(), ui.Warn("No offer page could be read for "+item.ID))
		return nil
	}
	return writeReport(a.Out, format, r)
}

func writeReport(w io.Writer, format string, r *probe.Report) error {
	switch format {
	case output.FormatJSON:
		return output.WriteJSON(w, r)
	case output.FormatCSV:
		return output.WriteCSV(w, r)
	}
	ui.RenderReport(w, r)
	if r.Message != "" {
		fmt.Fprintln(w, ui.Warn(r.Message))
	}
	if r.Match == nil {
		fmt.Fprintln(w, ui.Info("No qualifying offer"))
	}
	return nil
}

func probeItem(cmd *cobra.Command, id string, used bool) (models.TrackedItem, error) {
	f := cmd.Flags()
	minPrice, _ := f.GetFloat64("min")
	maxPrice, _ := f.GetFloat64("max")
	label, _ := f.GetString("condition")

	cond := models.New
	if used {
		cond = models.UsedAcceptable
	}
	if label != "" {
		c, err := models.ParseCondition(label)
		if err != nil {
			return models.TrackedItem{}, engine.ConfigError("parse --condition", err)
		}
		cond = c
	}
	if minPrice > maxPrice {
		return models.TrackedItem{}, engine.ConfigError(fmt.Sprintf("--min %.2f is above --max %.2f", minPrice, maxPrice), nil)
	}

	id = strings.ToUpper(strings.TrimSpace(id))
	return models.TrackedItem{
		ID:        id,
		GroupID:   id,
		MinPrice:  minPrice,
		MaxPrice:  maxPrice,
		Condition: cond,
	}, nil
}
