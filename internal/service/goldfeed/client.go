// Package goldfeed streams reference gold prices over a websocket and
// bootstraps them from a REST quote endpoint.
package goldfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"

	"CaesarEcon/internal/domain/models"
	drepo "CaesarEcon/internal/domain/repository"
	pkghttp "CaesarEcon/pkg/http"
	applogger "CaesarEcon/pkg/logger"

	"github.com/gorilla/websocket"
)

// Config holds the feed endpoints.
type Config struct {
	WebSocketURL   string
	RESTURL        string
	APIKey         string
	Symbols        []string
	ReconnectDelay time.Duration
	PingInterval   time.Duration
	RESTTimeout    time.Duration
}

// Client implements PriceStream backed by a websocket.
type Client struct {
	cfg  Config
	rest *pkghttp.Client
	l    *applogger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
}

// New creates a feed client.
func New(cfg Config, l *applogger.Logger) *Client {
	if cfg.ReconnectDelay <= 0 {
		cfg.ReconnectDelay = 5 * time.Second
	}
	if cfg.PingInterval <= 0 {
		cfg.PingInterval = 30 * time.Second
	}
	if cfg.RESTTimeout <= 0 {
		cfg.RESTTimeout = 10 * time.Second
	}
	return &Client{
		cfg:  cfg,
		rest: pkghttp.NewClient(pkghttp.WithTimeout(cfg.RESTTimeout)),
		l:    l.With(applogger.String("component", "goldfeed")),
	}
}

var _ drepo.PriceStream = (*Client)(nil)

// Symbols returns the configured symbols.
func (c *Client) Symbols() []string { return c.cfg.Symbols }

// Connect dials the websocket.
func (c *Client) Connect(ctx context.Context) error {
	u, err := url.Parse(c.cfg.WebSocketURL)
	if err != nil {
		return fmt.Errorf("goldfeed url: %w", err)
	}
	if c.cfg.APIKey != "" {
		q := u.Query()
		q.Set("token", c.cfg.APIKey)
		u.RawQuery = q.Encode()
	}

	conn, _, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		return fmt.Errorf("goldfeed connect: %w", err)
	}

	c.mu.Lock()
	c.conn = conn
	c.connected = true
	c.mu.Unlock()
	c.l.Info("goldfeed connected", applogger.String("url", c.cfg.WebSocketURL))
	return nil
}

type subscribeMsg struct {
	Type   string `json:"type"`
	Symbol string `json:"symbol"`
}

// Subscribe subscribes to the configured symbols.
func (c *Client) Subscribe(ctx context.Context) error {
	conn := c.current()
	if conn == nil {
		return errors.New("goldfeed not connected")
	}
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetWriteDeadline(dl)
		defer conn.SetWriteDeadline(time.Time{})
	}
	for _, s := range c.cfg.Symbols {
		if err := conn.WriteJSON(subscribeMsg{Type: "subscribe", Symbol: s}); err != nil {
			return fmt.Errorf("subscribe %s: %w", s, err)
		}
	}
	c.l.Info("goldfeed subscribed", applogger.Strings("symbols", c.cfg.Symbols))
	return nil
}

type wireTick struct {
	S string  `json:"s"`
	P float64 `json:"p"`
	T int64   `json:"t"` // unix ms
}

type wireMessage struct {
	Type string     `json:"type"`
	Data []wireTick `json:"data"`
}

// Read streams price ticks until the connection fails or ctx ends. The tick
// channel drops updates when the consumer falls behind; only the latest
// price matters.
func (c *Client) Read(ctx context.Context) (<-chan *models.PriceTick, <-chan error) {
	ticks := make(chan *models.PriceTick, 256)
	errs := make(chan error, 1)

	conn := c.current()
	if conn == nil {
		close(ticks)
		errs <- errors.New("goldfeed not connected")
		close(errs)
		return ticks, errs
	}

	wait := 2 * c.cfg.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(wait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(wait))
	})

	done := make(chan struct{})
	go func() {
		t := time.NewTicker(c.cfg.PingInterval)
		defer t.Stop()
		for {
			select {
			case <-done:
				return
			case <-ctx.Done():
				// unblocks ReadMessage
				_ = conn.Close()
				return
			case <-t.C:
				_ = conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second))
			}
		}
	}()

	go func() {
		defer close(errs)
		defer close(ticks)
		defer close(done)
		for {
			_, b, err := conn.ReadMessage()
			if err != nil {
				if ctx.Err() == nil {
					errs <- fmt.Errorf("goldfeed read: %w", err)
				}
				return
			}
			var m wireMessage
			if err := json.Unmarshal(b, &m); err != nil || m.Type != "price" {
				continue
			}
			for _, d := range m.Data {
				if d.S == "" || d.P <= 0 {
					continue
				}
				select {
				case ticks <- &models.PriceTick{Symbol: d.S, Price: d.P, Timestamp: time.UnixMilli(d.T).UTC()}:
				default:
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes, waits the reconnect delay and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	_ = c.Close()
	t := time.NewTimer(c.cfg.ReconnectDelay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
	}
	if err := c.Connect(ctx); err != nil {
		return err
	}
	return c.Subscribe(ctx)
}

// Close closes the connection.
func (c *Client) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.connected = false
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	return err
}

// IsConnected reports whether a connection is open.
func (c *Client) IsConnected() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.connected
}

func (c *Client) current() *websocket.Conn {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn
}

type quote struct {
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Timestamp int64   `json:"timestamp"` // unix ms
}

// FetchLatest reads one quote from the REST endpoint.
func (c *Client) FetchLatest(ctx context.Context, symbol string) (*models.PriceTick, error) {
	if c.cfg.RESTURL == "" {
		return nil, errors.New("goldfeed rest url not configured")
	}
	q := url.Values{"symbol": {symbol}}
	if c.cfg.APIKey != "" {
		q.Set("token", c.cfg.APIKey)
	}

	var out quote
	if err := c.rest.GetJSON(ctx, c.cfg.RESTURL, q, &out); err != nil {
		return nil, fmt.Errorf("goldfeed quote %s: %w", symbol, err)
	}
	if out.Price <= 0 {
		return nil, fmt.Errorf("goldfeed quote %s: non-positive price %v", symbol, out.Price)
	}
	if out.Symbol == "" {
		out.Symbol = symbol
	}
	ts := time.Now().UTC()
	if out.Timestamp > 0 {
		ts = time.UnixMilli(out.Timestamp).UTC()
	}
	return &models.PriceTick{Symbol: out.Symbol, Price: out.Price, Timestamp: ts}, nil
}
