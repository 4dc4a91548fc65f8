package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/google/subcommands"
	"github.com/sirupsen/logrus"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/backfill"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
	"github.com/qiqiMagicCity/tradefolio/provider"
)

type fetchCmd struct {
	attempts int
	verbose  bool
	symbol   string
	date     string
}

func (*fetchCmd) Name() string     { return "fetch" }
func (*fetchCmd) Synopsis() string { return "drain the backfill queue through the price providers" }
func (*fetchCmd) Usage() string {
	return `tf fetch [-attempts <n>] [-v]
tf fetch -sym <symbol> -d <date>

  Claims queued backfill requests one by one and resolves them through the
  provider chain: EODHD, then Yahoo, then the ledger's own trade prices as a
  flagged last resort. Requests are paced to respect provider rate limits.
  Interrupt with Ctrl-C; the in-flight claim is released back to the queue.

  With -sym and -d, fetches that single pair immediately and writes the
  close, bypassing the queue.

  The EODHD API token is read from the EODHD_API_TOKEN environment variable
  (a .env file next to the binary is honored).
`
}

func (c *fetchCmd) SetFlags(f *flag.FlagSet) {
	f.IntVar(&c.attempts, "attempts", backfill.DefaultMaxAttempts, "Failed attempts before a request is parked in error state.")
	f.BoolVar(&c.verbose, "v", false, "Log every request outcome.")
	f.StringVar(&c.symbol, "sym", "", "Fetch one symbol directly instead of draining the queue.")
	f.StringVar(&c.date, "d", "", "Trading day for the direct fetch.")
}

func (c *fetchCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	var sources []provider.Source
	if token := os.Getenv("EODHD_API_TOKEN"); token != "" {
		sources = append(sources, provider.NewEODHD(token))
	} else {
		fmt.Fprintln(os.Stderr, "warning: EODHD_API_TOKEN is not set, primary provider disabled")
	}
	sources = append(sources, provider.NewYahoo())
	chain := provider.NewChain(sources, provider.WithLastResort(provider.NewViaTx(ledger)))

	log := logrus.New()
	if c.verbose {
		log.SetLevel(logrus.DebugLevel)
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt)
	defer stop()

	if c.symbol != "" {
		return c.fetchOne(ctx, store, chain)
	}

	sweeper := &backfill.Sweeper{Store: store, Fetcher: chain, Log: log, MaxAttempts: c.attempts}
	res, err := sweeper.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if errors.Is(err, context.Canceled) {
		fmt.Println("Interrupted; in-flight claim released.")
	}
	fmt.Printf("Sweep finished: %d done, %d failed attempts\n", res.Done, res.Failed)
	return subcommands.ExitSuccess
}

// fetchOne resolves a single (symbol, day) pair and writes the close
// directly, without going through the queue.
func (c *fetchCmd) fetchOne(ctx context.Context, store *eodstore.Store, chain *provider.Chain) subcommands.ExitStatus {
	if c.date == "" {
		fmt.Fprintln(os.Stderr, "Error: -d is required with -sym.")
		return subcommands.ExitUsageError
	}
	day, err := tradefolio.ParseDate(c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	sym := tradefolio.Canonicalize(c.symbol)
	if sym.Malformed {
		fmt.Fprintf(os.Stderr, "Error: symbol %q is malformed\n", c.symbol)
		return subcommands.ExitUsageError
	}

	quote, prov, err := chain.FetchClose(ctx, sym, day)
	rec := eodstore.CloseRecord{Symbol: sym.Canon, Day: day, Provider: prov}
	switch {
	case err == nil:
		rec.Close = quote.Close
		rec.Status = eodstore.StatusOK
		rec.Estimated = prov == tradefolio.ProviderViaTx
	case errors.Is(err, provider.ErrNoData):
		rec.Status = eodstore.StatusNoLiquidity
	default:
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}

	if err := store.UpsertClose(rec, false); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if rec.Status == eodstore.StatusOK {
		fmt.Printf("Wrote close %s = %s (%s)\n", rec.Key(), rec.Close, prov)
	} else {
		fmt.Printf("No data for %s: recorded no_liquidity\n", rec.Key())
	}
	return subcommands.ExitSuccess
}
