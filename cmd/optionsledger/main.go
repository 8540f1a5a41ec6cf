// Command optionsledger tracks cash-secured puts and covered calls. "serve"
// runs the HTTP API in the configured mode; the other commands work on the
// ledger directly.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"path"
	"syscall"

	"github.com/google/subcommands"
)

var configPath = flag.String("config", "config.toml", "path to configuration file")

func main() {
	commander := subcommands.NewCommander(flag.CommandLine, path.Base(os.Args[0]))
	commander.Register(commander.HelpCommand(), "")
	commander.Register(commander.FlagsCommand(), "")

	commander.Register(&serveCmd{}, "")
	commander.Register(&migrateCmd{}, "")
	commander.Register(&importCmd{}, "ledger")
	commander.Register(&exportCmd{}, "ledger")
	commander.Register(&summaryCmd{}, "ledger")
	commander.Register(&quotesCmd{}, "ledger")
	commander.Register(&snapshotCmd{}, "ledger")

	flag.Parse()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	status := commander.Execute(ctx)
	stop()
	os.Exit(int(status))
}
