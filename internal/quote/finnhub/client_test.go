package finnhub

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func quoteServer(t *testing.T, hits *int32) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(hits, 1)
		if r.URL.Path != "/quote" || r.URL.Query().Get("token") != "tok" {
			http.Error(w, "bad request", http.StatusBadRequest)
			return
		}
		switch r.URL.Query().Get("symbol") {
		case "AAPL":
			_, _ = io.WriteString(w, `{"c":189.84,"d":1.2,"dp":0.6,"h":190,"l":187,"o":188,"pc":188.6,"t":1717000000}`)
		case "MSFT":
			_, _ = io.WriteString(w, `{"current":"415.5"}`)
		case "ZERO":
			_, _ = io.WriteString(w, `{"c":0,"d":null}`)
		case "BROKEN":
			_, _ = io.WriteString(w, `not json`)
		default:
			http.Error(w, "unknown symbol", http.StatusNotFound)
		}
	}))
}

func TestQuotesKeepsOnlyPositivePrices(t *testing.T) {
	var hits int32
	srv := quoteServer(t, &hits)
	defer srv.Close()

	c := NewClient(srv.URL, "tok", 2, testLogger())
	got, err := c.Quotes(context.Background(), []string{"aapl", " MSFT ", "ZERO", "BROKEN", "NOPE", ""})
	if err != nil {
		t.Fatalf("quotes: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("quotes=%v want AAPL and MSFT only", got)
	}
	if !got["AAPL"].Equal(decimal.RequireFromString("189.84")) {
		t.Fatalf("AAPL=%s want=189.84", got["AAPL"])
	}
	if !got["MSFT"].Equal(decimal.RequireFromString("415.5")) {
		t.Fatalf("MSFT=%s want=415.5", got["MSFT"])
	}
	if n := atomic.LoadInt32(&hits); n != 5 {
		t.Fatalf("hits=%d want=5", n)
	}
}

func TestQuotesWithoutTokenSkipsNetwork(t *testing.T) {
	var hits int32
	srv := quoteServer(t, &hits)
	defer srv.Close()

	got, err := NewClient(srv.URL, "", 0, testLogger()).Quotes(context.Background(), []string{"AAPL"})
	if err != nil || len(got) != 0 || atomic.LoadInt32(&hits) != 0 {
		t.Fatalf("quotes=%v err=%v hits=%d want empty, nil, 0", got, err, atomic.LoadInt32(&hits))
	}
}

func TestQuotesCancelled(t *testing.T) {
	var hits int32
	srv := quoteServer(t, &hits)
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewClient(srv.URL, "tok", 1, testLogger()).Quotes(ctx, []string{"AAPL"}); err == nil {
		t.Fatal("expected context error")
	}
}
