package hyperliquid

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/ppedziwiatr/nautilus/internal/domain"
)

const (
	// writeWait is the time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// readWait is the deadline for the next server message; the allMids
	// feed ticks sub-second, so a quiet minute means a dead connection.
	readWait = 60 * time.Second

	// pingPeriod sends application-level pings at this interval. The
	// server answers with a pong frame on the same channel.
	pingPeriod = 50 * time.Second
)

// MidsHandler is called with the full coin-to-mid map on every allMids tick.
type MidsHandler func(map[string]float64)

// WSClient streams the allMids subscription from the Hyperliquid WebSocket
// API. One connection, one subscription; reconnection policy belongs to the
// caller.
type WSClient struct {
	wsURL string
	conn  *websocket.Conn

	mu     sync.Mutex
	closed bool

	onMids MidsHandler

	// errc receives the first fatal read/write error.
	errc chan error
	done chan struct{}
}

// NewWSClient creates a client for the given endpoint, e.g.
// "wss://api.hyperliquid.xyz/ws".
func NewWSClient(wsURL string, onMids MidsHandler) *WSClient {
	return &WSClient{
		wsURL:  wsURL,
		onMids: onMids,
		errc:   make(chan error, 1),
		done:   make(chan struct{}),
	}
}

type wsRequest struct {
	Method       string          `json:"method"`
	Subscription *wsSubscription `json:"subscription,omitempty"`
}

type wsSubscription struct {
	Type string `json:"type"`
}

type wsMessage struct {
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

type allMidsData struct {
	Mids map[string]string `json:"mids"`
}

// Connect dials the endpoint and sends the allMids subscription.
func (w *WSClient) Connect(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("hyperliquid/ws: %w", domain.ErrWSDisconnect)
	}

	dialer := websocket.Dialer{HandshakeTimeout: 15 * time.Second}
	conn, _, err := dialer.DialContext(ctx, w.wsURL, nil)
	if err != nil {
		return fmt.Errorf("hyperliquid/ws: connect: %w", err)
	}
	w.conn = conn

	sub := wsRequest{
		Method:       "subscribe",
		Subscription: &wsSubscription{Type: "allMids"},
	}
	if err := w.write(sub); err != nil {
		_ = conn.Close()
		return fmt.Errorf("hyperliquid/ws: subscribe allMids: %w", err)
	}

	go w.readLoop()
	go w.pingLoop()
	return nil
}

// Wait blocks until the connection dies or ctx is cancelled, returning the
// cause.
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

func (w *WSClient) write(v any) error {
	_ = w.conn.SetWriteDeadline(time.Now().Add(writeWait))
	return w.conn.WriteJSON(v)
}

func (w *WSClient) fail(err error) {
	select {
	case w.errc <- err:
	default:
	}
}

func (w *WSClient) readLoop() {
	for {
		_ = w.conn.SetReadDeadline(time.Now().Add(readWait))
		_, data, err := w.conn.ReadMessage()
		if err != nil {
			w.fail(fmt.Errorf("hyperliquid/ws: read: %w", err))
			return
		}

		var msg wsMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			// Non-JSON frames (subscription acks vary) are skipped.
			continue
		}

		switch msg.Channel {
		case "allMids":
			var payload allMidsData
			if err := json.Unmarshal(msg.Data, &payload); err != nil {
				continue
			}
			mids := make(map[string]float64, len(payload.Mids))
			for coin, s := range payload.Mids {
				price, err := strconv.ParseFloat(s, 64)
				if err != nil {
					continue
				}
				mids[coin] = price
			}
			if w.onMids != nil {
				w.onMids(mids)
			}
		case "pong":
			// Keep-alive answer, nothing to do.
		}
	}
}

func (w *WSClient) pingLoop() {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-w.done:
			return
		case <-ticker.C:
			w.mu.Lock()
			closed := w.closed
			if !closed {
				if err := w.write(wsRequest{Method: "ping"}); err != nil {
					w.fail(fmt.Errorf("hyperliquid/ws: ping: %w", err))
					w.mu.Unlock()
					return
				}
			}
			w.mu.Unlock()
			if closed {
				return
			}
		}
	}
}
