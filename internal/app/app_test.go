package app

import (
	"context"
	"io"
	"log/slog"
	"strings"
	"testing"

	"github.com/alanyoungcy/optionsledger/internal/config"
)

func TestRunRejectsUnknownModeBeforeWiring(t *testing.T) {
	cfg := config.Defaults()
	cfg.Mode = "trade"
	cfg.Store.Driver = "nosuchdb"

	a := New(&cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	err := a.Run(context.Background())
	if err == nil || !strings.Contains(err.Error(), `unsupported mode "trade"`) {
		t.Fatalf("err=%v", err)
	}
	a.Close()
	a.Close()
}

func TestModesCoverConfiguredValues(t *testing.T) {
	for _, m := range []string{"server", "snapshot", "full"} {
		if modes[m] == nil {
			t.Fatalf("mode %q has no runner", m)
		}
	}
}
