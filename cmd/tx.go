package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/qiqiMagicCity/tradefolio"
)

type txCmd struct {
	user  string
	start string
	date  string
}

func (*txCmd) Name() string     { return "tx" }
func (*txCmd) Synopsis() string { return "list transactions in the ledger" }
func (*txCmd) Usage() string {
	return `tf tx [-u <user>] [-s <start_date>] [-d <end_date>]

  Lists ledger transactions, optionally filtered by user and date range.
  Malformed records are listed separately with their reasons.
`
}

func (c *txCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "Restrict to one user.")
	f.StringVar(&c.start, "s", "", "The start date of the range.")
	f.StringVar(&c.date, "d", "", "The end date of the range. Defaults to today.")
}

func (c *txCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	if c.user != "" {
		ledger = ledger.ForUser(c.user)
	}

	filtered := c.start == "" && c.date == ""
	var rng tradefolio.Range
	if !filtered {
		rng, err = parseRange(c.start, c.date)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
	}

	n := 0
	for tx := range ledger.All() {
		if !filtered && !rng.Contains(tx.Day) {
			continue
		}
		n++
		fmt.Printf("%s %-5s %-22s %s x %s %s\n",
			tx.Day, tx.Side, tx.Symbol.Display, tx.Quantity, tx.Price, tx.ID)
	}
	fmt.Printf("%d transactions\n", n)

	if malformed := ledger.Malformed(); len(malformed) > 0 {
		fmt.Printf("\n%d malformed record(s) excluded:\n", len(malformed))
		for _, m := range malformed {
			fmt.Printf("  %s %q: %v\n", m.Tx.ID, m.Tx.RawSymbol, m.Err)
		}
	}
	return subcommands.ExitSuccess
}
