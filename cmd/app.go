// Package cmd implements the CLI application around the ledger, the EOD
// store, and the valuation engine.
package cmd

import (
	"errors"
	"flag"
	"fmt"
	"io/fs"
	"log"
	"os"

	"github.com/charmbracelet/glamour"
	"github.com/google/subcommands"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

// Register registers every subcommand on the commander.
func Register(c *subcommands.Commander) {
	c.Register(&tradeCmd{side: tradefolio.SideBuy}, "transactions")
	c.Register(&tradeCmd{side: tradefolio.SideSell}, "transactions")
	c.Register(&tradeCmd{side: tradefolio.SideShort}, "transactions")
	c.Register(&tradeCmd{side: tradefolio.SideCover}, "transactions")
	c.Register(&txCmd{}, "transactions")
	c.Register(&splitCmd{}, "transactions")

	c.Register(&backfillCmd{}, "prices")
	c.Register(&fetchCmd{}, "prices")
	c.Register(&queueCmd{}, "prices")
	c.Register(&auditCmd{}, "prices")
	c.Register(&repairCmd{}, "prices")
	c.Register(&overrideCmd{}, "prices")
	c.Register(&revCmd{}, "prices")

	c.Register(&holdingCmd{}, "reports")
	c.Register(&realizedCmd{}, "reports")
}

// as a CLI application, it has a very short lived lifecycle, so it is ok to use global variables.

var ledgerFile = flag.String("ledger-file", "transactions.jsonl", "Path to the ledger file containing transactions (JSONL format)")
var storeFile = flag.String("store-file", "eod.db", "Path to the EOD price store (SQLite)")

// DecodeLedger loads the app ledger, tolerating a missing file.
func DecodeLedger() (*tradefolio.Ledger, error) {
	l, err := tradefolio.LoadLedger(*ledgerFile)
	if errors.Is(err, fs.ErrNotExist) {
		log.Println("warning, ledger does not exist, starting from an empty one")
		return tradefolio.NewLedger(), nil
	}
	return l, err
}

// OpenStore opens the app EOD store, creating it if needed.
func OpenStore() (*eodstore.Store, error) {
	return eodstore.Open(*storeFile)
}

// EncodeTransaction appends a single transaction to the app ledger file.
func EncodeTransaction(tx tradefolio.Transaction) subcommands.ExitStatus {
	f, err := os.OpenFile(*ledgerFile, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error opening ledger file %q: %v\n", *ledgerFile, err)
		return subcommands.ExitFailure
	}
	defer f.Close()

	if err := tradefolio.EncodeTransaction(f, tx); err != nil {
		fmt.Fprintf(os.Stderr, "Error writing to ledger file %q: %v\n", *ledgerFile, err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Successfully appended transaction to %s\n", *ledgerFile)
	return subcommands.ExitSuccess
}

// printMarkdown renders markdown for the terminal, falling back to the raw
// text when the terminal renderer cannot be built.
func printMarkdown(md string) {
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(110))
	if err != nil {
		fmt.Println(md)
		return
	}
	out, err := r.Render(md)
	if err != nil {
		fmt.Println(md)
		return
	}
	fmt.Print(out)
}

// parseRange reads -s/-d style range flags, defaulting the end to today and
// the start to 30 calendar days before the end.
func parseRange(start, end string) (tradefolio.Range, error) {
	to := tradefolio.Today()
	if end != "" {
		var err error
		to, err = tradefolio.ParseDate(end)
		if err != nil {
			return tradefolio.Range{}, fmt.Errorf("invalid end date: %w", err)
		}
	}
	from := to.Add(-30)
	if start != "" {
		var err error
		from, err = tradefolio.ParseDate(start)
		if err != nil {
			return tradefolio.Range{}, fmt.Errorf("invalid start date: %w", err)
		}
	}
	if from.After(to) {
		return tradefolio.Range{}, fmt.Errorf("start %s is after end %s", from, to)
	}
	return tradefolio.NewRange(from, to), nil
}
