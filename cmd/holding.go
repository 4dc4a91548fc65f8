package cmd

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/qiqiMagicCity/tradefolio"
	"github.com/qiqiMagicCity/tradefolio/eodstore"
	"github.com/qiqiMagicCity/tradefolio/renderer"
)

type holdingCmd struct {
	user string
	date string
}

func (*holdingCmd) Name() string     { return "holding" }
func (*holdingCmd) Synopsis() string { return "show open positions marked to the latest close" }
func (*holdingCmd) Usage() string {
	return `tf holding [-u <user>] [-d <date>]

  Replays the ledger through the FIFO engine, applies recorded splits, and
  marks every open position against the latest close in the store.
  Positions with no usable close are listed as pending, never zero-valued.
`
}

func (c *holdingCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "User to report on. Defaults to the only user if one exists.")
	f.StringVar(&c.date, "d", "", "Valuation day. Defaults to today.")
}

func (c *holdingCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, store, status := replayPortfolio(c.user)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer store.Close()

	on := tradefolio.Today()
	if c.date != "" {
		var err error
		on, err = tradefolio.ParseDate(c.date)
		if err != nil {
			fmt.Fprintln(os.Stderr, "Error:", err)
			return subcommands.ExitUsageError
		}
	}

	v := p.Valuate(on, store)
	printMarkdown(renderer.HoldingMarkdown(p.UserID(), v))
	return subcommands.ExitSuccess
}

type realizedCmd struct {
	user string
}

func (*realizedCmd) Name() string     { return "realized" }
func (*realizedCmd) Synopsis() string { return "show the realized P&L log" }
func (*realizedCmd) Usage() string {
	return `tf realized [-u <user>]

  Replays the ledger and lists every matched lot close with its P&L.
`
}

func (c *realizedCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.user, "u", "", "User to report on. Defaults to the only user if one exists.")
}

func (c *realizedCmd) Execute(_ context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	p, store, status := replayPortfolio(c.user)
	if status != subcommands.ExitSuccess {
		return status
	}
	defer store.Close()

	printMarkdown(renderer.RealizedMarkdown(p))
	return subcommands.ExitSuccess
}

// replayPortfolio loads ledger, splits, and store, resolves the user, and
// folds the transactions through the engine. On success the caller owns the
// returned store.
func replayPortfolio(user string) (*tradefolio.Portfolio, *eodstore.Store, subcommands.ExitStatus) {
	ledger, err := DecodeLedger()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return nil, nil, subcommands.ExitFailure
	}
	store, err := OpenStore()
	if err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		return nil, nil, subcommands.ExitFailure
	}

	if user == "" {
		users := ledger.Users()
		switch len(users) {
		case 0:
			// an empty ledger still renders an empty report
		case 1:
			user = users[0]
		default:
			store.Close()
			fmt.Fprintf(os.Stderr, "Error: several users in the ledger %v, pick one with -u.\n", users)
			return nil, nil, subcommands.ExitUsageError
		}
	}

	splits, err := store.Actions("")
	if err != nil {
		store.Close()
		fmt.Fprintln(os.Stderr, "Error:", err)
		return nil, nil, subcommands.ExitFailure
	}

	p := tradefolio.Replay(user, ledger.ForUser(user), splits)
	return p, store, subcommands.ExitSuccess
}
