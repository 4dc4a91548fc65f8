package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

type splitCmd struct {
	symbol    string
	effective string
	ratio     string
	list      bool
}

func (*splitCmd) Name() string     { return "split" }
func (*splitCmd) Synopsis() string { return "record or list corporate actions" }
func (*splitCmd) Usage() string {
	return `tf split -sym <symbol> -e <effective_date> -r <ratio>
tf split -list

  Records a stock split in the corporate-action table, keyed
  SPLIT_{SYMBOL}_{YYYY-MM-DD}. Recording the same split twice is a no-op.
  A 4-for-1 split has ratio 4; a 1-for-10 reverse split has ratio 0.1.
`
}

func (c *splitCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.symbol, "sym", "", "Symbol the split applies to.")
	f.StringVar(&c.effective, "e", "", "Effective date of the split.")
	f.StringVar(&c.ratio, "r", "", "Split ratio, new shares per old share.")
	f.BoolVar(&c.list, "list", false, "List recorded corporate actions instead.")
}

func (c *splitCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	defer store.Close()

	if c.list {
		splits, err := store.Actions("")
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitFailure
		}
		for _, s := range splits {
			fmt.Printf("%s ratio %s\n", s.Key(), s.Ratio)
		}
		fmt.Printf("%d corporate action(s)\n", len(splits))
		return subcommands.ExitSuccess
	}

	if c.symbol == "" || c.effective == "" || c.ratio == "" {
		fmt.Fprintln(os.Stderr, "Error: -sym, -e and -r are required.")
		return subcommands.ExitUsageError
	}
	day, err := tradefolio.ParseDate(c.effective)
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	ratio, err := decimal.NewFromString(c.ratio)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid ratio %q: %v\n", c.ratio, err)
		return subcommands.ExitUsageError
	}

	split := tradefolio.NewSplit(c.symbol, day, ratio)
	if err := store.PutAction(split); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitFailure
	}
	fmt.Printf("Recorded %s\n", split.Key())
	return subcommands.ExitSuccess
}
