// SPDX-License-Identifier: LGPL-3.0-or-later

package chat

import (
	"context"
	"time"

	"github.com/gorilla/websocket"

	"github.com/verus-agent-platform/vap/internal/logger"
)

const (
	readDeadline  = 75 * time.Second
	pingInterval  = 30 * time.Second
	writeDeadline = 10 * time.Second
	sendBuffer    = 32

	perSocketMinGap = 200 * time.Millisecond
	perSocketLimit  = 30
	perSocketWindow = 60 * time.Second
)

// Conn is one websocket connection, bound to a single room and identity for
// its lifetime (spec.md §4.3 "a connection belongs to exactly one job
// room"). Reads and writes each run on their own goroutine, matching the
// teacher's read/write pump split.
type Conn struct {
	ws       *websocket.Conn
	room     *Room
	identity string
	binding  *Binding

	send chan []byte
	done chan struct{}

	lastMsgAt   time.Time
	msgWindowOK func(time.Time) bool
}

func newConn(ws *websocket.Conn, room *Room, identity string, binding *Binding, socketWindow func(time.Time) bool) *Conn {
	return &Conn{
		ws:          ws,
		room:        room,
		identity:    identity,
		binding:     binding,
		send:        make(chan []byte, sendBuffer),
		done:        make(chan struct{}),
		msgWindowOK: socketWindow,
	}
}

// enqueue drops the frame if the connection's outbound buffer is full
// rather than block the room's broadcast loop (a slow reader must not
// stall everyone else in the room).
func (c *Conn) enqueue(data []byte) {
	select {
	case c.send <- data:
	default:
	}
}

func (c *Conn) close() {
	select {
	case <-c.done:
	default:
		close(c.done)
	}
	_ = c.ws.Close()
}

// writePump drains c.send to the socket and sends periodic pings, exiting
// when done is closed.
func (c *Conn) writePump(log logger.Logger) {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-c.done:
			return
		case data, ok := <-c.send:
			if !ok {
				return
			}
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, data); err != nil {
				if log != nil {
					log.Debug("chat write failed", logger.String("identity", c.identity), logger.Error(err))
				}
				c.close()
				return
			}
		case <-ticker.C:
			_ = c.ws.SetWriteDeadline(time.Now().Add(writeDeadline))
			if err := c.ws.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.close()
				return
			}
		}
	}
}

// readPump reads frames off the socket, applies the per-socket rate limits
// (spec.md §4.2: a minimum 200ms gap plus a 30/60s sliding window), and
// hands each decoded ClientEvent to handle.
func (c *Conn) readPump(ctx context.Context, log logger.Logger, handle func(ctx context.Context, c *Conn, ev ClientEvent)) {
	defer c.close()
	c.ws.SetReadLimit(MaxFrameSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(readDeadline))
		return nil
	})

	for {
		_, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}

		now := time.Now()
		if now.Sub(c.lastMsgAt) < perSocketMinGap {
			c.enqueue(mustMarshal(errorEvent("rate limited: slow down")))
			continue
		}
		if c.msgWindowOK != nil && !c.msgWindowOK(now) {
			c.enqueue(mustMarshal(errorEvent("rate limited: too many messages")))
			continue
		}
		c.lastMsgAt = now

		var ev ClientEvent
		if err := decodeClientEvent(data, &ev); err != nil {
			c.enqueue(mustMarshal(errorEvent("malformed frame")))
			continue
		}
		handle(ctx, c, ev)
	}
}
