package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/google/subcommands"

	"github.com/alanyoungcy/optionsledger/internal/csvcodec"
)

type importCmd struct{}

func (*importCmd) Name() string     { return "import" }
func (*importCmd) Synopsis() string { return "append the movements of a CSV export to the ledger" }
func (*importCmd) Usage() string {
	return `optionsledger import <file.csv | ->

  Rows are appended as new movements; existing rows are never matched or
  replaced. Use - to read from stdin.
`
}

func (*importCmd) SetFlags(*flag.FlagSet) {}

func (*importCmd) Execute(ctx context.Context, f *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	if f.NArg() != 1 {
		f.Usage()
		return subcommands.ExitUsageError
	}

	var in io.Reader = os.Stdin
	if name := f.Arg(0); name != "-" {
		file, err := os.Open(name)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		defer file.Close()
		in = file
	}

	a, _, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	svc, err := a.Services(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	rows, err := svc.Ledger.ImportCSV(ctx, in)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Printf("imported %d movements\n", len(rows))
	return subcommands.ExitSuccess
}

type exportCmd struct {
	out string
}

func (*exportCmd) Name() string     { return "export" }
func (*exportCmd) Synopsis() string { return "write the full movement history as CSV" }
func (*exportCmd) Usage() string {
	return `optionsledger export [-o <file | ->]

  Defaults to historial-bitacora-<today>.csv in the current directory.
`
}

func (c *exportCmd) SetFlags(f *flag.FlagSet) {
	f.StringVar(&c.out, "o", "", "output file, - for stdout")
}

func (c *exportCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
	a, _, err := openApp()
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	defer a.Close()
	svc, err := a.Services(ctx)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}

	name := c.out
	if name == "" {
		name = csvcodec.FileName(time.Now())
	}
	if name == "-" {
		if _, err := svc.Ledger.ExportCSV(ctx, os.Stdout); err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		return subcommands.ExitSuccess
	}

	file, err := os.Create(name)
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	n, err := svc.Ledger.ExportCSV(ctx, file)
	if cerr := file.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		fail(err)
		return subcommands.ExitFailure
	}
	fmt.Fprintf(os.Stderr, "wrote %d movements to %s\n", n, name)
	return subcommands.ExitSuccess
}
