// Command tf manages a transaction ledger, its end-of-day price store, and
// FIFO portfolio reports.
package main

import (
	"context"
	"flag"
	"os"
	"path"

	"github.com/google/subcommands"
	"github.com/joho/godotenv"
	"github.com/posener/complete/v2"
	"github.com/posener/complete/v2/predict"

	"github.com/qiqiMagicCity/tradefolio/cmd"
)

func main() {
	// provider tokens live in the environment; a local .env is honored
	_ = godotenv.Load()

	completion()

	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")
	commander.Register(commander.CommandsCommand(), "")
	cmd.Register(commander)

	flag.Parse()
	os.Exit(int(commander.Execute(context.Background())))
}

// completion wires shell completion; it exits the process when invoked by
// the shell completion hook and is a no-op otherwise.
func completion() {
	dateFlags := map[string]complete.Predictor{
		"s": predict.Nothing,
		"d": predict.Nothing,
	}
	root := &complete.Command{
		Flags: map[string]complete.Predictor{
			"ledger-file": predict.Files("*.jsonl"),
			"store-file":  predict.Files("*.db"),
		},
		Sub: map[string]*complete.Command{
			"buy":      {},
			"sell":     {},
			"short":    {},
			"cover":    {},
			"tx":       {Flags: dateFlags},
			"split":    {},
			"backfill": {Flags: dateFlags},
			"fetch":    {},
			"queue":    {},
			"audit":    {Flags: dateFlags},
			"repair":   {Flags: dateFlags},
			"override": {},
			"rev":      {},
			"holding":  {},
			"realized": {},
		},
	}
	root.Complete("tf")
}
