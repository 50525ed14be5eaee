// Package server manages individual WebSocket clients: the read pump feeding
// frames into the hub and the write pump draining the connection's outbound
// queue to the socket.
package server

import (
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/Tyrowin/convohub/internal/relay"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
)

// Client pairs one WebSocket with its hub-side connection handle. A slow
// network peer only stalls its own write pump; the hub never writes to the
// socket directly.
type Client struct {
	ws      *websocket.Conn
	conn    *relay.Conn
	hub     *relay.Hub
	limiter *rateLimiter
	addr    string
	logger  *slog.Logger
}

func newClient(ws *websocket.Conn, hub *relay.Hub, cfg *Config, logger *slog.Logger) *Client {
	ws.SetReadLimit(cfg.MaxMessageSize)

	return &Client{
		ws:      ws,
		conn:    hub.OnOpen(),
		hub:     hub,
		limiter: newRateLimiter(cfg.RateLimit.Burst, cfg.RateLimit.RefillInterval()),
		addr:    ws.RemoteAddr().String(),
		logger:  logger,
	}
}

// start launches both pumps, registering them with wg so shutdown can wait
// for the write pump to flush its close frame before the process exits.
func (c *Client) start(wg *sync.WaitGroup) {
	wg.Add(2)
	go func() {
		defer wg.Done()
		c.writePump()
	}()
	go func() {
		defer wg.Done()
		c.readPump()
	}()
}

func (c *Client) readPump() {
	defer func() {
		c.hub.OnClose(c.conn)
		_ = c.ws.Close()
	}()

	if err := c.ws.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		c.logger.Warn("set read deadline", "addr", c.addr, "error", err)
	}
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.handleReadError(err)
			return
		}

		if !c.limiter.allow() {
			c.logger.Debug("rate limit exceeded, frame discarded",
				"addr", c.addr, "tokens", c.limiter.tokens())
			continue
		}

		c.hub.OnFrame(c.conn, raw)
	}
}

// handleReadError classifies the read failure. Expected closes end the
// connection quietly; anything else is reported as a transport error. Either
// way the teardown stays scoped to this one connection.
func (c *Client) handleReadError(err error) {
	switch {
	case errors.Is(err, websocket.ErrReadLimit):
		c.logger.Warn("frame exceeded maximum size", "addr", c.addr)
	case websocket.IsCloseError(err,
		websocket.CloseNormalClosure,
		websocket.CloseGoingAway,
		websocket.CloseAbnormalClosure):
		c.logger.Debug("client disconnected", "addr", c.addr)
	case errors.Is(err, io.EOF), isExpectedCloseError(err):
		c.logger.Debug("connection closed", "addr", c.addr)
	default:
		c.hub.OnTransportError(c.conn, err)
	}
}

func (c *Client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
	}()

	for {
		select {
		case <-c.conn.Ready():
			if !c.drain() {
				return
			}

		case <-c.conn.Done():
			msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")
			_ = c.ws.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
			return

		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// drain writes every currently queued frame to the socket.
func (c *Client) drain() bool {
	for {
		frame, ok := c.conn.Next()
		if !ok {
			return true
		}

		_ = c.ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.ws.WriteMessage(websocket.TextMessage, frame.Payload()); err != nil {
			if !isExpectedCloseError(err) {
				c.logger.Debug("write failed", "addr", c.addr, "error", err)
			}
			return false
		}
	}
}

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe")
}
