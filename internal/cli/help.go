package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/unapproachable/fairgame-fork/internal/config"
	"github.com/unapproachable/fairgame-fork/internal/ui"
)

// descriptionWidth is where flag and command descriptions wrap.
const descriptionWidth = 56

type flagGroup struct {
	name  string
	flags []*pflag.Flag
}

// renderHelp prints the help of cmd: description, usage, examples,
// subcommands and the flags under their group headings.
func renderHelp(cmd *cobra.Command, _ []string) {
	w := cmd.OutOrStdout()

	fmt.Fprintf(w, "\n%s\n", ui.Bold(ui.ColorCyan+cmd.CommandPath()))
	if cmd.Short != "" {
		fmt.Fprintln(w, cmd.Short)
	}
	if long := strings.TrimSpace(cmd.Long); long != "" && long != cmd.Short {
		fmt.Fprintf(w, "\n%s\n", long)
	}

	section(w, "Usage")
	if cmd.Runnable() {
		fmt.Fprintf(w, "  %s\n", cmd.UseLine())
	}
	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "  %s <command> [flags]\n", cmd.CommandPath())
	}

	if cmd.HasExample() {
		section(w, "Examples")
		writeExamples(w, cmd.Example)
	}

	if cmds := subcommands(cmd); len(cmds) > 0 {
		section(w, "Commands")
		t := ui.NewListTable(w)
		t.SetColumnConfigs([]table.ColumnConfig{
			{Number: 1, Colors: text.Colors{text.FgCyan}},
			{Number: 2, WidthMax: descriptionWidth},
		})
		for _, c := range cmds {
			t.AppendRow(table.Row{c.Name(), c.Short})
		}
		t.Render()
	}

	for _, g := range flagGroups(cmd) {
		section(w, g.name)
		renderFlags(w, g.flags)
	}

	if cmd.HasAvailableSubCommands() {
		fmt.Fprintf(w, "\n%s\n", ui.Info(fmt.Sprintf("Run \"%s <command> --help\" for the flags of a command.", cmd.CommandPath())))
	}
	fmt.Fprintln(w)
}

// renderUsage is printed on flag and argument errors.
func renderUsage(cmd *cobra.Command) error {
	w := cmd.ErrOrStderr()
	fmt.Fprintf(w, "\n%s\n  %s\n", ui.Bold("Usage"), cmd.UseLine())
	fmt.Fprintf(w, "\n%s\n", ui.Info(fmt.Sprintf("Run \"%s --help\" for every flag.", cmd.CommandPath())))
	return nil
}

func section(w io.Writer, title string) {
	fmt.Fprintf(w, "\n%s\n", ui.Bold(ui.ColorWhite+title))
}

// writeExamples prints comment lines dimmed and command lines as prompts.
func writeExamples(w io.Writer, example string) {
	first := true
	for _, line := range strings.Split(example, "\n") {
		line = strings.TrimSpace(line)
		switch {
		case line == "":
		case strings.HasPrefix(line, "#"):
			if !first {
				fmt.Fprintln(w)
			}
			fmt.Fprintf(w, "  %s%s%s\n", ui.ColorDim, line, ui.ColorReset)
		default:
			fmt.Fprintf(w, "  %s\n", ui.Success("$ "+line))
		}
		first = false
	}
}

func subcommands(cmd *cobra.Command) []*cobra.Command {
	var out []*cobra.Command
	for _, c := range cmd.Commands() {
		if c.IsAvailableCommand() && c.Name() != "help" {
			out = append(out, c)
		}
	}
	return out
}

// flagGroups splits the flags of cmd by their group annotation, keeping
// registration order. Local groups come before inherited ones; flags
// without a group land under "Flags" or "Global Flags".
func flagGroups(cmd *cobra.Command) []flagGroup {
	var groups []flagGroup
	index := map[string]int{}
	collect := func(fallback string) func(*pflag.Flag) {
		return func(f *pflag.Flag) {
			if f.Hidden {
				return
			}
			name := fallback
			if g := f.Annotations[config.FlagGroup]; len(g) > 0 {
				name = g[0]
			}
			i, ok := index[name]
			if !ok {
				i = len(groups)
				index[name] = i
				groups = append(groups, flagGroup{name: name})
			}
			groups[i].flags = append(groups[i].flags, f)
		}
	}

	local := cmd.LocalFlags()
	local.SortFlags = false
	local.VisitAll(collect("Flags"))
	inherited := cmd.InheritedFlags()
	inherited.SortFlags = false
	inherited.VisitAll(collect("Global Flags"))
	return groups
}

func renderFlags(w io.Writer, flags []*pflag.Flag) {
	t := ui.NewListTable(w)
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: text.Colors{text.FgGreen}},
		{Number: 2, WidthMax: descriptionWidth},
	})
	for _, f := range flags {
		t.AppendRow(table.Row{flagSpec(f), flagUsage(f)})
	}
	t.Render()
}

// flagSpec renders "-v, --verbose" or "    --items string".
func flagSpec(f *pflag.Flag) string {
	spec := "    --" + f.Name
	if f.Shorthand != "" {
		spec = "-" + f.Shorthand + ", --" + f.Name
	}
	if varname, _ := pflag.UnquoteUsage(f); varname != "" {
		spec += " " + varname
	}
	return spec
}

func flagUsage(f *pflag.Flag) string {
	_, usage := pflag.UnquoteUsage(f)
	switch f.DefValue {
	case "", "false", "0", "[]":
		return usage
	}
	return fmt.Sprintf("%s (default %s)", usage, f.DefValue)
}
