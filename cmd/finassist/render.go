package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/glamour"

	"github.com/mohammad-safakhou/finassist/internal/budgeting"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/models"
)

// render writes markdown to w through glamour, falling back to the raw text.
func render(w io.Writer, md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(100))
	if err == nil {
		if out, err := r.Render(md); err == nil {
			fmt.Fprint(w, out)
			return
		}
	}
	fmt.Fprint(w, md)
}

func quotesMarkdown(quotes []models.AssetQuote) string {
	if len(quotes) == 0 {
		return "_No asset data available._\n"
	}
	var b strings.Builder
	b.WriteString("## Assets\n\n| Ticker | Price | Change |\n|---|---:|---:|\n")
	for _, q := range quotes {
		fmt.Fprintf(&b, "| %s | %s | %s |\n", q.Ticker, q.CurrentPrice, q.PriceChangePct)
	}
	return b.String()
}

func indicatorsMarkdown(symbol string, samples []models.IndicatorSample) string {
	if len(samples) == 0 {
		return fmt.Sprintf("_No indicator data for %s._\n", symbol)
	}
	var b strings.Builder
	fmt.Fprintf(&b, "## Technical indicators for %s\n\n| Indicator | Value | As of |\n|---|---:|---|\n", symbol)
	for _, s := range samples {
		fmt.Fprintf(&b, "| %s | %.4f | %s |\n", s.Name, s.Value, s.AsOf)
	}
	return b.String()
}

func noticesMarkdown(notices []notice.Notice) string {
	if len(notices) == 0 {
		return ""
	}
	var b strings.Builder
	b.WriteString("\n")
	for _, n := range notices {
		fmt.Fprintf(&b, "> **%s**: %s\n>\n", strings.ToUpper(string(n.Level)), n.Message)
	}
	return b.String()
}

func budgetMarkdown(r budgeting.Report) string {
	var b strings.Builder
	fmt.Fprintf(&b, "## Budget\n\n**%s**\n\n", r.Status)
	if len(r.Breakdown) > 0 {
		b.WriteString("### Expenses breakdown\n\n| Category | Amount | % of income |\n|---|---:|---:|\n")
		for _, l := range r.Breakdown {
			fmt.Fprintf(&b, "| %s | $%s | %s |\n", l.Category, l.Amount.StringFixed(2), l.PercentIncome)
		}
		b.WriteString("\n")
	} else {
		b.WriteString("_Enter your income to see the expense breakdown._\n\n")
	}
	if r.Goal != nil {
		fmt.Fprintf(&b, "### Savings goal\n\n%s\n\n", r.Goal.Message)
	}
	if r.Recommended != nil && r.Actual != nil {
		b.WriteString("### 50/30/20 recommendation\n\n| | Recommended | Actual |\n|---|---:|---:|\n")
		fmt.Fprintf(&b, "| Needs (50%%) | $%s | $%s |\n", r.Recommended.Needs.StringFixed(2), r.Actual.Needs.StringFixed(2))
		fmt.Fprintf(&b, "| Wants (30%%) | $%s | $%s |\n", r.Recommended.Wants.StringFixed(2), r.Actual.Wants.StringFixed(2))
		fmt.Fprintf(&b, "| Savings (20%%) | $%s | $%s |\n\n", r.Recommended.Savings.StringFixed(2), r.Actual.Savings.StringFixed(2))
	}
	if r.Projection != nil {
		fmt.Fprintf(&b, "### Projection\n\n%s\n", r.Projection.Message)
	}
	return b.String()
}

func turnMarkdown(t models.ChatTurn) string {
	var b strings.Builder
	fmt.Fprintf(&b, "**%s:** %s\n", t.Role, t.Content)
	if n := len(t.Chart); n > 0 {
		first, last := t.Chart[0], t.Chart[n-1]
		fmt.Fprintf(&b, "\n_Chart: %d closes from %s (%.2f) to %s (%.2f)_\n", n, first.Date, first.Close, last.Date, last.Close)
	}
	return b.String()
}
