package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"

	"github.com/google/subcommands"

	"github.com/alanyoungcy/optionsledger/internal/notify"
	"github.com/alanyoungcy/optionsledger/internal/service"
)

type quotesCmd struct{}

func (*quotesCmd) Name() string     { return "quotes" }
func (*quotesCmd) Synopsis() string { return "print last prices for tickers" }
func (*quotesCmd) Usage() string {
	return `optionsledger quotes [TICKER...]

  Without arguments, quotes the tickers of the current positions.
`
}

func (*quotesCmd) SetFlags(*flag.FlagSet) {}

func (*quotesCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, cfg, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	if cfg.Quotes.FinnhubToken == "" {
		fail(fmt.Errorf("quotes: no finnhub token configured"))
		return subcommands.ExitFailure
	}
	svc, err := a.Services(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	tickers := f.Args()
	if len(tickers) == 0 {
		current, err := svc.Ledger.Current(ctx)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		tickers = service.Tickers(current)
	}

	quotes, err := svc.Quotes.Quotes(ctx, tickers)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	names := make([]string, 0, len(quotes))
	for t := range quotes {
		names = append(names, t)
	}
	sort.Strings(names)
	for _, t := range names {
		fmt.Printf("%-8s %s\n", t, notify.FormatMoney(quotes[t]))
	}
	if missing := len(tickers) - len(quotes); missing > 0 {
		fmt.Fprintf(os.Stderr, "%d ticker(s) without a price\n", missing)
	}
	return subcommands.ExitSuccess
}
