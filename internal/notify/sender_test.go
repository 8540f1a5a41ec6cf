package notify

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func TestTelegramSendEscapesHTML(t *testing.T) {
	var got map[string]any
	var path string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		_ = json.NewDecoder(r.Body).Decode(&got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewTelegramSender("tok", "42").WithAPIURL(srv.URL + "/")
	if err := s.Send(context.Background(), "Position closed", "AT&T <note>"); err != nil {
		t.Fatalf("send: %v", err)
	}
	if path != "/bottok/sendMessage" {
		t.Fatalf("path=%s", path)
	}
	if got["parse_mode"] != "HTML" || got["chat_id"] != "42" {
		t.Fatalf("payload=%v", got)
	}
	if text := got["text"].(string); text != "<b>Position closed</b>\nAT&amp;T &lt;note&gt;" {
		t.Fatalf("text=%q", text)
	}
}

func TestDiscordSendEmbedAndStatus(t *testing.T) {
	var body []byte
	status := http.StatusNoContent
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ = io.ReadAll(r.Body)
		w.WriteHeader(status)
		_, _ = w.Write([]byte("rate limited"))
	}))
	defer srv.Close()

	d := NewDiscordSender(srv.URL)
	if err := d.Send(context.Background(), "Position rolled", strings.Repeat("x", 5000)); err != nil {
		t.Fatalf("send: %v", err)
	}
	var payload struct {
		Embeds []discordEmbed `json:"embeds"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(payload.Embeds) != 1 || payload.Embeds[0].Title != "Position rolled" {
		t.Fatalf("embeds=%+v", payload.Embeds)
	}
	if n := len([]rune(payload.Embeds[0].Description)); n != discordMaxDescription {
		t.Fatalf("description length=%d want=%d", n, discordMaxDescription)
	}

	status = http.StatusTooManyRequests
	err := d.Send(context.Background(), "t", "m")
	if err == nil || !strings.Contains(err.Error(), "429") || !strings.Contains(err.Error(), "rate limited") {
		t.Fatalf("err=%v", err)
	}
}

type recordSender struct {
	name  string
	sent  []string
	fails bool
}

func (r *recordSender) Send(_ context.Context, title, _ string) error {
	r.sent = append(r.sent, title)
	if r.fails {
		return io.ErrUnexpectedEOF
	}
	return nil
}

func (r *recordSender) Name() string { return r.name }

func TestNotifierFiltersEvents(t *testing.T) {
	ok := &recordSender{name: "ok"}
	bad := &recordSender{name: "bad", fails: true}
	n := NewNotifier([]Sender{bad, ok}, []string{"position_closed"}, slog.New(slog.NewTextHandler(io.Discard, nil)))

	if err := n.Notify(context.Background(), "position_opened", "opened", ""); err != nil {
		t.Fatalf("filtered event err=%v", err)
	}
	if len(ok.sent) != 0 {
		t.Fatalf("filtered event was sent: %v", ok.sent)
	}

	err := n.Notify(context.Background(), "position_closed", "closed", "")
	if err == nil || !strings.Contains(err.Error(), "bad") {
		t.Fatalf("err=%v want failure from bad sender", err)
	}
	if len(ok.sent) != 1 {
		t.Fatalf("healthy sender should still deliver, sent=%v", ok.sent)
	}
}

func TestNotifierWithoutEventListSendsEverything(t *testing.T) {
	n := NewNotifier(nil, []string{" ", ""}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if !n.Wants("close_reverted") {
		t.Fatal("blank event list should allow every event")
	}
	if err := n.Notify(context.Background(), "close_reverted", "t", "m"); err != nil {
		t.Fatalf("no senders err=%v", err)
	}
}
