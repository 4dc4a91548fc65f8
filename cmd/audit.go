package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio/repair"
)

type auditCmd struct {
	start     string
	date      string
	threshold string
}

func (*auditCmd) Name() string     { return "audit" }
func (*auditCmd) Synopsis() string { return "audit the price store for gaps and suspicious jumps" }
func (*auditCmd) Usage() string {
	return `tf audit [-s <start_date>] [-d <end_date>] [-jump <threshold>]

  Reports trading days with no close for held symbols, day-over-day moves
  beyond the threshold on low-trust records, and requests marked done with
  no close behind them. The audit only reports; see "tf repair".
`
}

func (c *auditCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "s", "", "The start date of the range.")
	f.StringVar(&c.date, "d", "", "The end date of the range. Defaults to today.")
	f.StringVar(&c.threshold, "jump", "", "Relative jump threshold, e.g. 0.10 for 10%.")
}

func (c *auditCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	rng, err := parseRange(c.start, c.date)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
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

	auditor := &repair.Auditor{Ledger: ledger, Store: store}
	if c.threshold != "" {
		t, err := decimal.NewFromString(c.threshold)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid threshold %q: %v\n", c.threshold, err)
			return subcommands.ExitUsageError
		}
		auditor.JumpThreshold = t
	}

	report, err := auditor.AuditRange(rng)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(repair.Markdown(report))
	return subcommands.ExitSuccess
}
