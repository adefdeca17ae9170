package ui

import (
	"fmt"
	"io"

	"github.com/jedib0t/go-pretty/v6/table"

	"github.com/unapproachable/fairgame-fork/internal/probe"
	"github.com/unapproachable/fairgame-fork/pkg/models"
)

// Option is a name/value row in the startup banner.
type Option struct {
	Name  string
	Value string
}

// NewTable returns a rounded table writer mirrored to w.
func NewTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleRounded)
	t.SetOutputMirror(w)
	return t
}

// NewListTable returns a borderless table for aligned lists such as the
// command and flag sections of the help output.
func NewListTable(w io.Writer) table.Writer {
	t := table.NewWriter()
	t.SetStyle(table.StyleLight)
	t.Style().Options = table.OptionsNoBordersAndSeparators
	t.Style().Box.PaddingLeft = "  "
	t.Style().Box.PaddingRight = ""
	t.SetOutputMirror(w)
	return t
}

// RenderPlan prints the items being hunted followed by the enabled options.
func RenderPlan(w io.Writer, items []models.TrackedItem, name func(id string) string, opts []Option) {
	t := NewTable(w)
	t.SetTitle("Hunt plan")
	t.AppendHeader(table.Row{"ASIN", "Name", "Min", "Max", "Condition", "Group"})
	for _, it := range items {
		n := it.ID
		if name != nil {
			n = name(it.ID)
		}
		t.AppendRow(table.Row{it.ID, truncate(n, 48), money(it.MinPrice), money(it.MaxPrice), it.Condition, shortGroup(it.GroupID)})
	}
	t.Render()

	if len(opts) == 0 {
		return
	}
	o := NewTable(w)
	o.SetTitle("Options")
	for _, opt := range opts {
		o.AppendRow(table.Row{opt.Name, opt.Value})
	}
	o.Render()
}

// RenderReport prints every offer a probe saw and what the qualifier made
// of it.
func RenderReport(w io.Writer, r *probe.Report) {
	t := NewTable(w)
	t.SetTitle(fmt.Sprintf("%s  %s  (%s, %s)", r.Item.ID, truncate(r.Name, 60), r.Layout, r.Source))
	t.AppendHeader(table.Row{"#", "Seller", "Price", "Shipping", "Condition", "Verdict"})
	for i, v := range r.Verdicts {
		price := "-"
		if v.Offer.Price != nil {
			price = v.Offer.Price.String()
		}
		verdict := Success("accept")
		if v.Reason != "" {
			verdict = Error(string(v.Reason))
		}
		t.AppendRow(table.Row{i + 1, v.Offer.SellerName, price, v.Offer.Shipping.String(), v.Offer.Condition, verdict})
	}
	if len(r.Verdicts) == 0 {
		t.AppendRow(table.Row{"", "no offers", "", "", "", ""})
	}
	t.Render()
}

func money(v float64) string { return fmt.Sprintf("%.2f", v) }

func shortGroup(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
