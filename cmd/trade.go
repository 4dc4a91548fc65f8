package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/google/subcommands"
	"github.com/shopspring/decimal"

	"github.com/qiqiMagicCity/tradefolio"
)

// tradeCmd records one trade. The same type backs buy, sell, short and
// cover; only the side differs.
type tradeCmd struct {
	side tradefolio.Side

	id       string
	user     string
	symbol   string
	option   bool
	quantity string
	price    string
	currency string
	date     string
}

func (c *tradeCmd) Name() string { return string(c.side) }

func (c *tradeCmd) Synopsis() string {
	return fmt.Sprintf("record a %s transaction in the ledger", c.side)
}

func (c *tradeCmd) Usage() string {
	return fmt.Sprintf(`tf %s -u <user> -sym <symbol> -q <quantity> -p <price> [-option] [-d <date>]

  Appends a %s transaction to the ledger. The symbol may be any spelling;
  it is canonicalized on read. Options use a contract multiplier of 100.
`, c.side, c.side)
}

func (c *tradeCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.id, "id", "", "Transaction ID. Defaults to a timestamp-derived one.")
	f.StringVar(&c.user, "u", "", "User the transaction belongs to.")
	f.StringVar(&c.symbol, "sym", "", "Instrument symbol, stock or option, any spelling.")
	f.BoolVar(&c.option, "option", false, "Record an option contract trade.")
	f.StringVar(&c.quantity, "q", "", "Quantity of shares or contracts, positive.")
	f.StringVar(&c.price, "p", "", "Price per share or per contract unit.")
	f.StringVar(&c.currency, "c", "USD", "Price currency.")
	f.StringVar(&c.date, "d", "", "Trading day. Defaults to today.")
}

func (c *tradeCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if c.symbol == "" || c.quantity == "" || c.price == "" {
		fmt.Fprintln(os.Stderr, "Error: -sym, -q and -p are required.")
		return subcommands.ExitUsageError
	}
	qty, err := decimal.NewFromString(c.quantity)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid quantity %q: %v\n", c.quantity, err)
		return subcommands.ExitUsageError
	}
	price, err := decimal.NewFromString(c.price)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid price %q: %v\n", c.price, err)
		return subcommands.ExitUsageError
	}

	at := time.Now().UTC()
	if c.date != "" {
		day, err := tradefolio.ParseDate(c.date)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
		// mid-session UTC timestamp, resolving to the given New York day
		at = time.Date(day.Year(), day.Month(), day.Day(), 18, 0, 0, 0, time.UTC)
	}

	asset := tradefolio.AssetStock
	sym := tradefolio.Canonicalize(c.symbol)
	if c.option || sym.Option {
		asset = tradefolio.AssetOption
	}
	id := c.id
	if id == "" {
		id = fmt.Sprintf("%s-%s-%d", c.side, sym.Canon, at.UnixNano())
	}

	tx := tradefolio.NewTransaction(id, c.user, c.symbol, asset, c.side,
		tradefolio.Q(qty), tradefolio.M(price, c.currency), at)
	if err := tx.Validate(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return subcommands.ExitUsageError
	}
	return EncodeTransaction(tx)
}
