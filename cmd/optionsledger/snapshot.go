package main

import (
	"context"
	"errors"
	"flag"
	"fmt"

	"github.com/google/subcommands"
)

type snapshotCmd struct {
	list    bool
	restore string
	prune   int
}

func (*snapshotCmd) Name() string     { return "snapshot" }
func (*snapshotCmd) Synopsis() string { return "take, list, prune or restore CSV snapshots in S3" }
func (*snapshotCmd) Usage() string {
	return `optionsledger snapshot [-list | -restore <key> | -prune <keep>]

  Without flags, exports the history to S3 now.
`
}

func (c *snapshotCmd) SetFlags(f *flag.FlagSet) {
	f.BoolVar(&c.list, "list", false, "list stored snapshots, newest first")
	f.StringVar(&c.restore, "restore", "", "append the movements of this snapshot to the ledger")
	f.IntVar(&c.prune, "prune", 0, "delete all but the newest n snapshots")
}

func (c *snapshotCmd) Execute(ctx context.Context, _ *flag.FlagSet, _ ...interface{}) subcommands.ExitStatus {
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
	s := svc.Snapshotter
	if s == nil {
		fail(errors.New("snapshot: s3 is not enabled"))
		return subcommands.ExitFailure
	}

	switch {
	case c.list:
		infos, err := s.List(ctx)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		for _, info := range infos {
			fmt.Printf("%s\t%d\t%s\n", info.LastModified.Format("2006-01-02 15:04"), info.Size, info.Path)
		}
	case c.restore != "":
		rows, err := s.Restore(ctx, c.restore)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("restored %d movements from %s\n", len(rows), c.restore)
	case c.prune > 0:
		n, err := s.Prune(ctx, c.prune)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("deleted %d snapshots\n", n)
	default:
		info, err := s.Snapshot(ctx)
		if err != nil {
			fail(err)
			return subcommands.ExitFailure
		}
		fmt.Printf("uploaded %s (%d bytes)\n", info.Path, info.Size)
	}
	return subcommands.ExitSuccess
}
