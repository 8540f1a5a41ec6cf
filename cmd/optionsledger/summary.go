package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/ledger"
	"github.com/alanyoungcy/optionsledger/internal/notify"
)

type summaryCmd struct {
	ticker string
	page   int
	size   int
	asJSON bool
}

func (*summaryCmd) Name() string     { return "summary" }
func (*summaryCmd) Synopsis() string { return "print portfolio totals and the per-ticker ROI ranking" }
func (*summaryCmd) Usage() string {
	return `optionsledger summary [-ticker <substr>] [-page n] [-size n] [-json]
`
}

func (c *summaryCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.ticker, "ticker", "", "only tickers containing this text")
	f.IntVar(&c.page, "page", 1, "ranking page")
	f.IntVar(&c.size, "size", 5, "tickers per page")
	f.BoolVar(&c.asJSON, "json", false, "print the full summary as JSON")
}

func (c *summaryCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, _, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	svc, err := a.Services(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	s, err := svc.Ledger.Summary(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	if c.asJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(s); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	stats := ledger.FilterTickers(s.Tickers, c.ticker)
	page, pages := ledger.Page(stats, c.page, c.size)
	if err := renderSummary(os.Stdout, s, page, c.page, pages); err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	return subcommands.ExitSuccess
}

func percent(d decimal.Decimal) string {
	return d.Shift(2).StringFixed(2) + "%"
}

// renderSummary writes the totals block followed by one ranking page.
func renderSummary(w io.Writer, s ledger.Summary, stats []ledger.TickerStat, page, pages int) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	t := s.Totals
	fmt.Fprintf(tw, "Premium\t%s\t\n", notify.FormatMoney(t.Premium))
	fmt.Fprintf(tw, "Commission\t%s\t\n", notify.FormatMoney(t.Commission))
	fmt.Fprintf(tw, "Closing cost\t%s\t\n", notify.FormatMoney(t.ClosingCost))
	fmt.Fprintf(tw, "Net\t%s\t\n", notify.FormatMoney(t.Net))
	fmt.Fprintf(tw, "Collateral\t%s\t\n", notify.FormatMoney(t.Collateral))
	fmt.Fprintf(tw, "ROI\t%s\t\n", percent(t.ROI))
	fmt.Fprintf(tw, "General ROI\t%s\t\n", percent(s.GeneralROI))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintln(tw, "Ticker\tPremium\tCosts\tNet\tCapital\tROI\tBreak-even\t")
	for _, st := range stats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\t\n",
			st.Ticker,
			notify.FormatMoney(st.Premium),
			notify.FormatMoney(st.Costs),
			notify.FormatMoney(st.Net),
			notify.FormatMoney(st.Capital),
			percent(st.ROI),
			st.BreakEven.StringFixed(2),
		)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "page %d of %d\n", page, pages)
	return err
}
