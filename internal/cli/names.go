package cli

import (
	"fmt"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/unapproachable/fairgame-fork/internal/ui"
)

var namesCmd = &cobra.Command{
	Use:   "names",
	Short: "Inspect the cached item names",
}

var namesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List cached item names",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return fmt.Errorf("application not initialized")
		}
		ids := a.Names.IDs()
		if len(ids) == 0 {
			fmt.Fprintln(a.Out, ui.Info("No cached names in "+a.Config.NamesPath))
			return nil
		}
		t := ui.NewTable(a.Out)
		t.SetTitle(a.Config.NamesPath)
		t.AppendHeader(table.Row{"ASIN", "Name"})
		for _, id := range ids {
			t.AppendRow(table.Row{id, a.Names.Name(id)})
		}
		t.AppendFooter(table.Row{"", fmt.Sprintf("%d names", len(ids))})
		t.Render()
		return nil
	},
}

var namesClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget every cached item name",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		a := GetAppFromCmd(cmd)
		if a == nil {
			return fmt.Errorf("application not initialized")
		}
		n := a.Names.Len()
		a.Names.Clear()
		if err := a.Names.Save(a.Config.NamesPath); err != nil {
			return fmt.Errorf("save names: %w", err)
		}
		fmt.Fprintln(a.Out, ui.Success(fmt.Sprintf("Cleared %d names", n)))
		return nil
	},
}

func init() {
	namesCmd.AddCommand(namesListCmd, namesClearCmd)
	rootCmd.AddCommand(namesCmd)
}
