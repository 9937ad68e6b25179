package binance

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

const (
	writeWait = 10 * time.Second

	// pongWait must outlast Binance's ~3 minute server ping interval.
	pongWait = 4 * time.Minute
)

// TickerHandler is called for each miniTicker close-price update.
type TickerHandler func(symbol string, price float64)

// WSClient streams miniTicker updates for a fixed set of coins over one
// combined-stream connection. Reconnection policy belongs to the caller.
type WSClient struct {
	wsURL    string
	symbols  []string
	onTicker TickerHandler

	conn *websocket.Conn

	mu     sync.Mutex
	closed bool

	errc chan error
	done chan struct{}
}

// NewWSClient creates a client for the given base endpoint, e.g.
// "wss://stream.binance.com:9443".
func NewWSClient(wsURL string, symbols []string, onTicker TickerHandler) *WSClient {
	return &WSClient{
		wsURL:    wsURL,
		symbols:  symbols,
		onTicker: onTicker,
		errc:     make(chan error, 1),
		done:     make(chan struct{}),
	}
}

// streamMessage is one combined-stream envelope.
type streamMessage struct {
	Stream string          `json:"stream"`
	Data   json.RawMessage `json:"data"`
}

// miniTicker is the subset of the miniTicker payload the scanner uses.
type miniTicker struct {
	Symbol string `json:"s"`
	Close  string `json:"c"`
}

// Connect dials the combined stream carrying one miniTicker stream per coin.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("binance/ws: %w", domain.ErrWSDisconnect)
	}
	if len(w.symbols) == 0 {
		return fmt.Errorf("binance/ws: no symbols to subscribe")
	}

	streams := make([]string, 0, len(w.symbols))
	for _, s := range w.symbols {
		streams = append(streams, strings.ToLower(PairFor(s))+"@miniTicker")
	}
	endpoint := w.wsURL + "/stream?streams=" + strings.Join(streams, "/")

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, endpoint, nil)
	if err != nil {
		return fmt.Errorf("binance/ws: connect: %w", err)
	}
	w.conn = conn

	// Binance pings from the server side; answering pong and refreshing
	// the read deadline is all the keep-alive this side needs.
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPingHandler(func(appData string) error {
		_ = conn.SetReadDeadline(time.Now().Add(pongWait))
		return conn.WriteControl(websocket.PongMessage, []byte(appData), time.Now().Add(writeWait))
	})

	go w.readLoop()
	return nil
}

// Wait blocks until the connection dies or ctx is cancelled.
func (w *WSClient) Wait(ctx context.Context) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	case err := <-w.errc:
		return err
	case <-w.done:
		return nil
	}
}

// Close shuts the connection down.
func (w *WSClient) Close() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	w.closed = true
	close(w.done)
	if w.conn != nil {
		_ = w.conn.Close()
	}
}

func (w *WSClient) fail(err error) {
	select {
	case w.errc <- err:
	default:
	}
}

func (w *WSClient) readLoop() {
	for {
		_ = w.conn.SetReadDeadline(time.Now().Add(pongWait))
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.fail(fmt.Errorf("binance/ws: read: %w", err))
			return
		}

		var msg streamMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			continue
		}

		var tick miniTicker
		if err := json.Unmarshal(msg.Data, &tick); err != nil {
			continue
		}

		symbol, ok := SymbolFor(tick.Symbol)
		if !ok {
			continue
		}
		price, err := strconv.ParseFloat(tick.Close, 64)
		if err != nil {
			continue
		}
		if w.onTicker != nil {
			w.onTicker(symbol, price)
		}
	}
}
