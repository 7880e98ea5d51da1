// Package websocket carries live connections over gorilla/websocket: one
// goroutine reads and feeds the gateway, one goroutine writes the queued frames.
package websocket

import (
	"chat-relay/contract"
	"chat-relay/errors"
	"context"
	stderrors "errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

var _ contract.Connection = (*Conn)(nil)

// Settings tunes every connection accepted by the handler.
type Settings struct {
	SendBufferSize  int
	MaxMessageSize  int64
	WriteWait       time.Duration
	PongWait        time.Duration
	RateLimitBurst  int
	RateLimitRefill time.Duration
	AllowedOrigins  []string
}

func (s Settings) pingPeriod() time.Duration {
	return s.PongWait * 9 / 10
}

// Conn is the registry view of a websocket client. Send only queues the frame,
// the write pump puts it on the wire.
type Conn struct {
	id        uuid.UUID
	ws        *websocket.Conn
	log       *slog.Logger
	settings  Settings
	send      chan []byte
	done      chan struct{}
	closeOnce sync.Once
}

func NewConn(ws *websocket.Conn, log *slog.Logger, settings Settings) *Conn {
	id := uuid.New()
	return &Conn{
		id:       id,
		ws:       ws,
		log:      log.With("conn_id", id),
		settings: settings,
		send:     make(chan []byte, max(settings.SendBufferSize, 1)),
		done:     make(chan struct{}),
	}
}

func (c *Conn) ID() uuid.UUID {
	return c.id
}

// Send queues the payload, waiting for room until ctx is done.
func (c *Conn) Send(ctx context.Context, payload []byte) error {
	select {
	case <-c.done:
		return errors.ErrConnectionClosed
	default:
	}
	select {
	case c.send <- payload:
		return nil
	case <-c.done:
		return errors.ErrConnectionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops both pumps. It is idempotent.
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.done)
	})
	return nil
}

// Done is closed once the connection is closed.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// handler is what the read pump feeds.
type handler interface {
	Handle(ctx context.Context, raw []byte) error
	Reject(ctx context.Context, err error) error
	Close()
}

// readPump owns the inbound side until the client leaves or the gateway gives up.
func (c *Conn) readPump(ctx context.Context, h handler) {
	defer h.Close()

	limiter := newRateLimiter(c.settings.RateLimitBurst, c.settings.RateLimitRefill)
	c.ws.SetReadLimit(c.settings.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	c.ws.SetPongHandler(func(string) error {
		return c.ws.SetReadDeadline(time.Now().Add(c.settings.PongWait))
	})

	for {
		_, raw, err := c.ws.ReadMessage()
		if err != nil {
			c.logReadError(err)
			return
		}
		if !limiter.allow() {
			err = h.Reject(ctx, errors.ErrRateLimited)
		} else {
			err = h.Handle(ctx, raw)
		}
		if err != nil {
			c.log.Debug("Stop reading", "error", err)
			return
		}
	}
}

func (c *Conn) logReadError(err error) {
	switch {
	case stderrors.Is(err, websocket.ErrReadLimit):
		c.log.Warn("Message exceeded maximum size", "max_bytes", c.settings.MaxMessageSize)
	case websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway):
		c.log.Debug("Client disconnected")
	case websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure):
		c.log.Warn("Unexpected close", "error", err)
	default:
		c.log.Debug("Read stopped", "error", err)
	}
}

// writePump owns the outbound side: queued frames and keepalive pings.
func (c *Conn) writePump() {
	ticker := time.NewTicker(c.settings.pingPeriod())
	defer func() {
		ticker.Stop()
		_ = c.Close()
		if err := c.ws.Close(); err != nil {
			c.log.Debug("Closing websocket", "error", err)
		}
	}()

	for {
		select {
		case payload := <-c.send:
			if err := c.write(websocket.TextMessage, payload); err != nil {
				c.log.Debug("Write failed", "error", err)
				return
			}
		case <-ticker.C:
			if err := c.write(websocket.PingMessage, nil); err != nil {
				c.log.Debug("Ping failed", "error", err)
				return
			}
		case <-c.done:
			_ = c.write(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
			return
		}
	}
}

func (c *Conn) write(messageType int, payload []byte) error {
	if err := c.ws.SetWriteDeadline(time.Now().Add(c.settings.WriteWait)); err != nil {
		return err
	}
	return c.ws.WriteMessage(messageType, payload)
}
