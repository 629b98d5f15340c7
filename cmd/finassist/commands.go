package main

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/mohammad-safakhou/finassist/internal/budgeting"
	"github.com/mohammad-safakhou/finassist/internal/notice"
	"github.com/mohammad-safakhou/finassist/market"
	"github.com/mohammad-safakhou/finassist/news"
	"github.com/mohammad-safakhou/finassist/session/inmemory"
)

// cliContext collects notices so they can be shown after the command output.
func cliContext() (context.Context, *notice.Collector) {
	col := notice.NewCollector(nil)
	return notice.NewContext(context.Background(), col), col
}

func assetsCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "assets",
		Short: "Fetch the configured watch-list",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, col := cliContext()
			quotes := a.aggregator.AggregateWatchlist(ctx)
			md := quotesMarkdown(quotes)
			md += fmt.Sprintf("\n_Data updated as of %s_\n", time.Now().Format("2006-01-02 15:04:05"))
			render(cmd.OutOrStdout(), md+noticesMarkdown(col.Drain()))
			return nil
		},
	}
}

func indicatorsCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "indicators <symbol>",
		Short: "Show the latest RSI and MACD for a symbol",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			symbol := strings.ToUpper(strings.TrimSpace(args[0]))
			ctx, col := cliContext()
			samples := market.ParseTechnicalIndicators(ctx, a.market, symbol)
			render(cmd.OutOrStdout(), indicatorsMarkdown(symbol, samples)+noticesMarkdown(col.Drain()))
			return nil
		},
	}
}

func commoditiesCMD(cfgPath *string) *cobra.Command {
	var interval string
	c := &cobra.Command{
		Use:   "commodities",
		Short: "Print the raw global commodities index",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, col := cliContext()
			payload, ok := a.market.Commodities(ctx, interval)
			if !ok {
				render(cmd.OutOrStdout(), "_No commodities data._\n"+noticesMarkdown(col.Drain()))
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(payload)
		},
	}
	c.Flags().StringVar(&interval, "interval", "monthly", "monthly, quarterly or annual")
	return c
}

func newsCMD(cfgPath *string) *cobra.Command {
	var n int
	c := &cobra.Command{
		Use:   "news",
		Short: "Show recent finance headlines",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			ctx, col := cliContext()
			articles := a.news.FinanceNews(ctx, n)
			render(cmd.OutOrStdout(), news.Markdown(articles)+noticesMarkdown(col.Drain()))
			return nil
		},
	}
	c.Flags().IntVarP(&n, "num", "n", 3, "number of headlines")
	return c
}

func indexCMD(cfgPath *string) *cobra.Command {
	var folder, query string
	var k int
	c := &cobra.Command{
		Use:   "index",
		Short: "Build the document index and optionally search it",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			if folder == "" {
				folder = a.cfg.Documents.Folder
			}
			ctx, col := cliContext()
			ix, err := a.builder.Build(ctx, folder)
			if err != nil {
				render(cmd.OutOrStdout(), "_No index built._\n"+noticesMarkdown(col.Drain()))
				return nil
			}
			var b strings.Builder
			fmt.Fprintf(&b, "Indexed **%d** chunks from `%s`.\n", ix.Len(), folder)
			if query != "" {
				fmt.Fprintf(&b, "\n## Results for %q\n\n", query)
				for _, h := range ix.Search(ctx, a.embedder, query, k) {
					fmt.Fprintf(&b, "%d. **%s** (%.4f): %s\n", h.Rank, h.Source, h.Score, snippet(h.Text, 200))
				}
			}
			render(cmd.OutOrStdout(), b.String()+noticesMarkdown(col.Drain()))
			return nil
		},
	}
	c.Flags().StringVar(&folder, "folder", "", "document folder (default documents.folder)")
	c.Flags().StringVarP(&query, "query", "q", "", "search the new index")
	c.Flags().IntVarP(&k, "top", "k", 3, "number of results")
	return c
}

func chatCMD(cfgPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "chat [message]",
		Short: "Chat with the assistant; reads lines from stdin when no message is given",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(*cfgPath)
			if err != nil {
				return err
			}
			sess, err := inmemory.NewInMemorySessionStore(nil).EnsureSession("", a.cfg.General.SessionTTL)
			if err != nil {
				return err
			}
			ctx := notice.NewContext(context.Background(), sess)
			sess.Index().Ensure(ctx, a.builder, a.cfg.Documents.Folder, false)

			turn := func(msg string) error {
				_, reply, err := a.responder.Respond(context.Background(), sess, msg)
				if err != nil {
					return err
				}
				notices, _ := sess.DrainNotices()
				render(cmd.OutOrStdout(), turnMarkdown(reply)+noticesMarkdown(notices))
				return nil
			}

			if len(args) > 0 {
				return turn(strings.Join(args, " "))
			}
			if notices, _ := sess.DrainNotices(); len(notices) > 0 {
				render(cmd.OutOrStdout(), noticesMarkdown(notices))
			}
			scanner := bufio.NewScanner(os.Stdin)
			fmt.Fprint(cmd.OutOrStdout(), "You: ")
			for scanner.Scan() {
				line := strings.TrimSpace(scanner.Text())
				if line == "" {
					fmt.Fprint(cmd.OutOrStdout(), "You: ")
					continue
				}
				if line == "/quit" || line == "/exit" {
					return nil
				}
				if err := turn(line); err != nil {
					return err
				}
				fmt.Fprint(cmd.OutOrStdout(), "You: ")
			}
			return scanner.Err()
		},
	}
}

func budgetCMD() *cobra.Command {
	var income, goal string
	var expenses []string
	var goalMonths, projection int
	c := &cobra.Command{
		Use:   "budget",
		Short: "Evaluate a monthly budget",
		Example: `  finassist budget --income 5000 -e "Housing (Rent/Mortgage)=1500" -e Food=400 \
      --goal 6000 --goal-months 12 --projection-months 6`,
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := parseBudgetInput(income, expenses, goal, goalMonths, projection)
			if err != nil {
				return err
			}
			render(cmd.OutOrStdout(), budgetMarkdown(budgeting.Evaluate(in)))
			return nil
		},
	}
	c.Flags().StringVar(&income, "income", "0", "monthly income after taxes")
	c.Flags().StringArrayVarP(&expenses, "expense", "e", nil, `expense as "Category=amount", repeatable`)
	c.Flags().StringVar(&goal, "goal", "0", "savings goal amount")
	c.Flags().IntVar(&goalMonths, "goal-months", 1, "goal timeframe in months")
	c.Flags().IntVar(&projection, "projection-months", 1, "months to project savings")
	return c
}

func parseBudgetInput(income string, expenses []string, goal string, goalMonths, projection int) (budgeting.Input, error) {
	in := budgeting.Input{
		Expenses:         map[budgeting.Category]decimal.Decimal{},
		GoalMonths:       goalMonths,
		ProjectionMonths: projection,
	}
	var err error
	if in.Income, err = decimal.NewFromString(income); err != nil {
		return in, fmt.Errorf("invalid income %q: %w", income, err)
	}
	if in.GoalAmount, err = decimal.NewFromString(goal); err != nil {
		return in, fmt.Errorf("invalid goal %q: %w", goal, err)
	}
	for _, e := range expenses {
		name, amount, ok := strings.Cut(e, "=")
		if !ok {
			return in, fmt.Errorf("invalid expense %q, want Category=amount", e)
		}
		v, err := decimal.NewFromString(strings.TrimSpace(amount))
		if err != nil {
			return in, fmt.Errorf("invalid amount in %q: %w", e, err)
		}
		cat := budgeting.Category(strings.TrimSpace(name))
		in.Expenses[cat] = in.Expenses[cat].Add(v)
	}
	return in, in.Validate()
}

func snippet(s string, n int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
