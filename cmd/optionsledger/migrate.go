package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	"github.com/google/subcommands"

	"github.com/alanyoungcy/optionsledger/internal/app"
)

type migrateCmd struct{}

func (*migrateCmd) Name() string     { return "migrate" }
func (*migrateCmd) Synopsis() string { return "create or upgrade the ledger schema" }
func (*migrateCmd) Usage() string {
	return `optionsledger [-config <file>] migrate
`
}

func (*migrateCmd) SetFlags(*flag.FlagSet) {}

func (*migrateCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	cfg, _, err := setup(os.Stderr)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	applied, err := app.Migrate(ctx, cfg)
	for _, name := range applied {
		fmt.Println("applied", name)
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	if len(applied) == 0 {
		fmt.Println("schema is up to date")
	}
	return subcommands.ExitSuccess
}
