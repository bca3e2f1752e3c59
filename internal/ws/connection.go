package ws

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/hub"
	"github.com/gofiber/websocket/v2"
)

const (
	frameJoin   = "join"
	frameLeave  = "leave"
	framePing   = "ping"
	frameJoined = "joined"
	frameLeft   = "left"
	framePong   = "pong"
	frameError  = "error"
)

type inFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id"`
}

type outFrame struct {
	Type     string `json:"type"`
	ThreadID string `json:"thread_id,omitempty"`
	Error    string `json:"error,omitempty"`
}

// Connection is one websocket client. It implements hub.Subscriber.
type Connection struct {
	ws    *websocket.Conn
	send  chan []byte
	done  chan struct{}
	once  sync.Once
	id    string
	actor domain.Actor
	srv   *Server

	// closed once writePump has stopped touching ws
	written chan struct{}
}

func newConnection(conn *websocket.Conn, actor domain.Actor, s *Server) *Connection {
	return &Connection{
		ws:      conn,
		send:    make(chan []byte, 256),
		done:    make(chan struct{}),
		written: make(chan struct{}),
		id:      newSocketID(),
		actor:   actor,
		srv:     s,
	}
}

// Send queues b without blocking; a full buffer drops the frame.
func (c *Connection) Send(b []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- b:
		return true
	default:
		return false
	}
}

func (c *Connection) close() {
	c.once.Do(func() { close(c.done) })
}

func (c *Connection) reply(f outFrame) {
	b, err := json.Marshal(f)
	if err != nil {
		return
	}
	c.Send(b)
}

// handleFrame applies one client frame. Only thread topics can be joined
// or left; user and role feeds are fixed for the connection's lifetime.
func (c *Connection) handleFrame(ctx context.Context, data []byte) {
	var f inFrame
	if err := json.Unmarshal(data, &f); err != nil {
		c.reply(outFrame{Type: frameError, Error: "malformed frame"})
		return
	}

	switch f.Type {
	case frameJoin:
		if f.ThreadID == "" {
			c.reply(outFrame{Type: frameError, Error: "thread_id required"})
			return
		}
		if err := c.srv.threads.CanView(ctx, c.actor, f.ThreadID); err != nil {
			msg := "join failed"
			var e *apperr.Error
			if errors.As(err, &e) {
				msg = e.Message
			}
			c.reply(outFrame{Type: frameError, ThreadID: f.ThreadID, Error: msg})
			return
		}
		c.srv.hub.Subscribe(hub.ThreadTopic(f.ThreadID), c)
		c.reply(outFrame{Type: frameJoined, ThreadID: f.ThreadID})
	case frameLeave:
		c.srv.hub.Unsubscribe(hub.ThreadTopic(f.ThreadID), c)
		c.reply(outFrame{Type: frameLeft, ThreadID: f.ThreadID})
	case framePing:
		c.reply(outFrame{Type: framePong})
	default:
		c.reply(outFrame{Type: frameError, Error: "unknown frame type"})
	}
}

func (c *Connection) readPump() {
	defer c.close()

	opts := c.srv.opts
	readWait := opts.PingInterval * 2
	c.ws.SetReadLimit(opts.MaxMessageSize)
	_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
	c.ws.SetPongHandler(func(string) error {
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		return nil
	})

	for {
		mt, data, err := c.ws.ReadMessage()
		if err != nil {
			return
		}
		if mt != websocket.TextMessage {
			continue
		}
		_ = c.ws.SetReadDeadline(time.Now().Add(readWait))
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		c.handleFrame(ctx, data)
		cancel()
	}
}

func (c *Connection) writePump() {
	opts := c.srv.opts
	ticker := time.NewTicker(opts.PingInterval)
	defer func() {
		ticker.Stop()
		_ = c.ws.Close()
		close(c.written)
	}()

	for {
		select {
		case <-c.done:
			_ = c.ws.WriteControl(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(time.Second))
			return
		case b := <-c.send:
			_ = c.ws.SetWriteDeadline(time.Now().Add(opts.WriteDeadline))
			if err := c.ws.WriteMessage(websocket.TextMessage, b); err != nil {
				c.srv.log.Debugw("ws write failed", "socket_id", c.id, "error", err)
				c.close()
				return
			}
		case <-ticker.C:
			if err := c.ws.WriteControl(websocket.PingMessage, nil, time.Now().Add(opts.WriteDeadline)); err != nil {
				c.close()
				return
			}
		}
	}
}
