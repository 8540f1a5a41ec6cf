package main

import (
	"bytes"
	"log/slog"
	"strings"
	"testing"

	"github.com/shopspring/decimal"

	"github.com/alanyoungcy/optionsledger/internal/ledger"
)

func TestRenderSummary(t *testing.T) {
	d := decimal.RequireFromString
	s := ledger.Summary{
		Totals: ledger.Totals{
			Premium:    d("1250"),
			Net:        d("1190.5"),
			Collateral: d("15000"),
			ROI:        d("0.079366"),
		},
		GeneralROI: d("0.075"),
	}
	stats := []ledger.TickerStat{
		{Ticker: "BBB", Premium: d("500"), Net: d("500"), Capital: d("5000"), ROI: d("0.1"), BreakEven: d("45")},
	}

	var buf bytes.Buffer
	if err := renderSummary(&buf, s, stats, 1, 3); err != nil {
		t.Fatalf("render: %v", err)
	}
	out := buf.String()
	for _, want := range []string{"$1,250.00", "$1,190.50", "7.94%", "7.50%", "BBB", "10.00%", "45.00", "page 1 of 3"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
}

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"WARN":  slog.LevelWarn,
		"error": slog.LevelError,
		"":      slog.LevelInfo,
		"noisy": slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Fatalf("parseLevel(%q)=%s want=%s", in, got, want)
		}
	}
}
