package cmd

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
)

type overrideCmd struct {
	symbol string
	date   string
	close  string
	force  bool
	remove bool
}

func (*overrideCmd) Name() string     { return "override" }
func (*overrideCmd) Synopsis() string { return "manually correct or remove an official close" }
func (*overrideCmd) Usage() string {
	return `tf override -sym <symbol> -d <date> -p <close> [-force]
tf override -sym <symbol> -d <date> -rm

  Writes a human-approved close under the "manual" provider tag. Without
  -force the write still honors the trust order and is rejected when a
  higher-trust vendor record holds a materially different price. -rm
  removes the record instead. Both paths bump the symbol's revision.
`
}

func (c *overrideCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "sym", "", "Symbol, any spelling.")
	f.StringVar(&c.date, "d", "", "Trading day of the close.")
	f.StringVar(&c.close, "p", "", "Corrected close price.")
	f.BoolVar(&c.force, "force", false, "Override the provider-trust check.")
	f.BoolVar(&c.remove, "rm", false, "Remove the record instead of writing one.")
}

func (c *overrideCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || c.date == "" {
		fmt.Fprintln(os.Stderr, "Error: -sym and -d are required.")
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

	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	if c.remove {
		if err := store.DeleteClose(sym.Canon, day); err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		fmt.Printf("Removed close %s\n", sym.CloseKey(day))
		return subcommands.ExitSuccess
	}

	if c.close == "" {
		fmt.Fprintln(os.Stderr, "Error: -p is required unless -rm is given.")
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(c.close)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid close %q: %v\n", c.close, err)
		return subcommands.ExitUsageError
	}

	rec := eodstore.CloseRecord{
		Symbol:   sym.Canon,
		Day:      day,
		Close:    price,
		Status:   eodstore.StatusOK,
		Provider: tradefolio.ProviderManual,
	}
	err = store.UpsertClose(rec, c.force)
	var conflict *eodstore.TrustConflictError
	if errors.As(err, &conflict) {
		fmt.Fprintf(os.Stderr, "Rejected: %v\nRe-run with -force to override the trust order.\n", conflict)
		return subcommands.ExitFailure
	}
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Wrote close %s = %s (manual)\n", rec.Key(), price)
	return subcommands.ExitSuccess
}

type revCmd struct {
	symbol string
}

func (*revCmd) Name() string     { return "rev" }
func (*revCmd) Synopsis() string { return "show the revision counter of an underlying symbol" }
func (*revCmd) Usage() string {
	return `tf rev -sym <symbol>

  Prints the revision counter consumers poll to know when to re-mark.
  Options report the counter of their underlying.
`
}

func (c *revCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "sym", "", "Symbol, any spelling.")
}

func (c *revCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" {
		fmt.Fprintln(os.Stderr, "Error: -sym is required.")
		return subcommands.ExitUsageError
	}
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	underlying := tradefolio.Canonicalize(c.symbol).Underlying()
	rev, err := store.Revision(underlying)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("%s rev %d\n", underlying, rev)
	return subcommands.ExitSuccess
}
