package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/qiqiMagicCity/tradefolio/backfill"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
	"github.com/qiqiMagicCity/tradefolio/renderer"
)

type backfillCmd struct {
	start  string
	date   string
	window int
}

func (*backfillCmd) Name() string     { return "backfill" }
func (*backfillCmd) Synopsis() string { return "plan backfill requests for missing closes" }
func (*backfillCmd) Usage() string {
	return `tf backfill [-s <start_date>] [-d <end_date>] [-w <days>]

  Scans the ledger over the range and enqueues a request for every held or
  traded trading day the store has no close for. Option pairs outside the
  coverage window are marked skipped. Run "tf fetch" to drain the queue.
`
}

func (c *backfillCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.start, "s", "", "The start date of the range. Defaults to 30 days before the end.")
	f.StringVar(&c.date, "d", "", "The end date of the range. Defaults to today.")
	f.IntVar(&c.window, "w", 0, "Option coverage window in calendar days. Defaults to 730.")
}

func (c *backfillCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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

	planner := &backfill.Planner{Ledger: ledger, Store: store, OptionWindow: c.window}
	res, err := planner.Plan(rng)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Planned %s to %s: %d enqueued, %d skipped, %d already covered\n",
		rng.From, rng.To, res.Enqueued, res.Skipped, res.Covered)
	return subcommands.ExitSuccess
}

type queueCmd struct {
	status string
}

func (*queueCmd) Name() string     { return "queue" }
func (*queueCmd) Synopsis() string { return "show the backfill request status feed" }
func (*queueCmd) Usage() string {
	return `tf queue [-status <status>]

  Lists backfill requests, optionally filtered by status
  (queued, in_progress, done, error, skipped).
`
}

func (c *queueCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.status, "status", "", "Restrict to one request status.")
}

func (c *queueCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	var statuses []eodstore.RequestStatus
	if c.status != "" {
		statuses = append(statuses, eodstore.RequestStatus(c.status))
	}
	reqs, err := store.Requests(statuses...)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	printMarkdown(renderer.RequestsMarkdown(reqs))
	return subcommands.ExitSuccess
}
