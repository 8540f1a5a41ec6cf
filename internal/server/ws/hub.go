// Package ws pushes ledger events to browser dashboards over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/alanyoungcy/optionsledger/internal/domain"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10 // must be less than pongWait
	maxMessageSize = 4096
	sendBufferSize = 64
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Origins are checked by the CORS and auth middleware in front of /ws.
	CheckOrigin: func(r *http.Request) bool { return true },
}

// event is the part of a published ledger event the hub routes on.
type event struct {
	Event    string `json:"event"`
	Movement *struct {
		Ticker string `json:"ticker"`
	} `json:"movement"`
}

// ticker returns the uppercased ticker of the event, or "" for events that
// are not about a single movement (imports).
func (e event) ticker() string {
	if e.Movement == nil {
		return ""
	}
	return strings.ToUpper(strings.TrimSpace(e.Movement.Ticker))
}

// command is a client request to change what it receives.
//
//	{"action":"watch","tickers":["AAPL","KO"]}
//	{"action":"unwatch","tickers":["KO"]}
//	{"action":"ping"}
type command struct {
	Action  string   `json:"action"`
	Tickers []string `json:"tickers"`
}

type client struct {
	hub  *Hub
	conn *websocket.Conn
	send chan []byte

	mu      sync.RWMutex
	watched map[string]bool // empty means every ticker
	closed  bool
}

// Hub relays ledger events from the event bus to connected WebSocket
// clients. Each client may narrow the feed to a set of tickers.
type Hub struct {
	bus       domain.EventBus
	channel   string
	logger    *slog.Logger
	mode      string
	startedAt time.Time

	register   chan *client
	unregister chan *client

	mu      sync.RWMutex
	clients map[*client]bool
}

// Config names the bus channel to relay and the metadata sent to each
// client on connect.
type Config struct {
	Channel   string
	Mode      string
	StartedAt time.Time
}

// NewHub creates a Hub reading cfg.Channel from bus.
func NewHub(bus domain.EventBus, logger *slog.Logger, cfg Config) *Hub {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "unknown"
	}
	startedAt := cfg.StartedAt
	if startedAt.IsZero() {
		startedAt = time.Now().UTC()
	}
	return &Hub{
		bus:        bus,
		channel:    cfg.Channel,
		logger:     logger.With(slog.String("component", "ws_hub")),
		mode:       mode,
		startedAt:  startedAt,
		register:   make(chan *client),
		unregister: make(chan *client),
		clients:    make(map[*client]bool),
	}
}

// Run subscribes to the ledger channel and fans events out until ctx is
// cancelled, then disconnects every client.
func (h *Hub) Run(ctx context.Context) error {
	msgs, err := h.bus.Subscribe(ctx, h.channel)
	if err != nil {
		return err
	}
	h.logger.Info("ws: relaying ledger events", slog.String("channel", h.channel))

	for {
		select {
		case <-ctx.Done():
			h.mu.Lock()
			for c := range h.clients {
				c.close()
				delete(h.clients, c)
			}
			h.mu.Unlock()
			return ctx.Err()

		case c := <-h.register:
			h.mu.Lock()
			h.clients[c] = true
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client connected", slog.Int("clients", n))

		case c := <-h.unregister:
			h.mu.Lock()
			if h.clients[c] {
				delete(h.clients, c)
				c.close()
			}
			n := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("ws: client disconnected", slog.Int("clients", n))

		case data, ok := <-msgs:
			if !ok {
				h.logger.Warn("ws: ledger subscription closed", slog.String("channel", h.channel))
				msgs = nil
				continue
			}
			h.relay(data)
		}
	}
}

func (h *Hub) relay(data []byte) {
	var ev event
	if err := json.Unmarshal(data, &ev); err != nil {
		h.logger.Warn("ws: dropping malformed ledger event", slog.String("error", err.Error()))
		return
	}
	ticker := ev.ticker()

	h.mu.RLock()
	defer h.mu.RUnlock()
	for c := range h.clients {
		if !c.wants(ticker) {
			continue
		}
		select {
		case c.send <- data:
		default:
			h.logger.Warn("ws: client too slow, event dropped", slog.String("event", ev.Event))
		}
	}
}

// HandleWS upgrades the request and registers the client.
// GET /ws?tickers=AAPL,KO
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Error("ws: upgrade failed", slog.String("error", err.Error()))
		return
	}

	c := &client{
		hub:     h,
		conn:    conn,
		send:    make(chan []byte, sendBufferSize),
		watched: make(map[string]bool),
	}
	c.watch(strings.Split(r.URL.Query().Get("tickers"), ","))

	h.register <- c
	c.reply(map[string]any{
		"event":          "connected",
		"mode":           h.mode,
		"uptime_seconds": max(0, int64(time.Since(h.startedAt).Seconds())),
		"watching":       c.watching(),
	})

	go c.writePump()
	go c.readPump()
}

func (c *client) wants(ticker string) bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return ticker == "" || len(c.watched) == 0 || c.watched[ticker]
}

func (c *client) watch(tickers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tickers {
		if t = strings.ToUpper(strings.TrimSpace(t)); t != "" {
			c.watched[t] = true
		}
	}
}

func (c *client) unwatch(tickers []string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, t := range tickers {
		delete(c.watched, strings.ToUpper(strings.TrimSpace(t)))
	}
}

func (c *client) watching() []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]string, 0, len(c.watched))
	for t := range c.watched {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

// handle applies a client command. Unknown actions are ignored.
func (c *client) handle(cmd command) {
	switch cmd.Action {
	case "watch":
		c.watch(cmd.Tickers)
	case "unwatch":
		c.unwatch(cmd.Tickers)
	case "ping":
		c.reply(map[string]any{"event": "pong"})
		return
	default:
		return
	}
	c.reply(map[string]any{"event": "watching", "tickers": c.watching()})
}

// reply queues a message for this client only. It may race with the hub
// shutting the client down, hence the closed check.
func (c *client) reply(v any) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.closed {
		return
	}
	select {
	case c.send <- data:
	default:
	}
}

func (c *client) close() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				c.hub.logger.Warn("ws: unexpected close", slog.String("error", err.Error()))
			}
			return
		}
		var cmd command
		if err := json.Unmarshal(message, &cmd); err == nil {
			c.handle(cmd)
		}
	}
}

func (c *client) writePump() {
	ping := time.NewTicker(pingPeriod)
	defer func() {
		ping.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}
		case <-ping.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
