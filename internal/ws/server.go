package ws

import (
	"context"
	"strings"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/hub"
	"github.com/fathima-sithara/support-service/internal/metrics"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type Authenticator interface {
	Validate(token string) (domain.Actor, error)
}

// ThreadAccess decides whether an actor may follow a thread's live topic.
type ThreadAccess interface {
	CanView(ctx context.Context, actor domain.Actor, id string) error
}

type Presence interface {
	AddConnection(ctx context.Context, userID, socketID string) error
	RemoveConnection(ctx context.Context, userID, socketID string) error
}

type Options struct {
	PingInterval   time.Duration
	WriteDeadline  time.Duration
	MaxMessageSize int64
}

type Server struct {
	hub      *hub.Hub
	auth     Authenticator
	threads  ThreadAccess
	presence Presence
	opts     Options
	log      *zap.SugaredLogger
}

func NewServer(h *hub.Hub, auth Authenticator, threads ThreadAccess, presence Presence, opts Options, log *zap.SugaredLogger) *Server {
	if opts.PingInterval <= 0 {
		opts.PingInterval = 25 * time.Second
	}
	if opts.WriteDeadline <= 0 {
		opts.WriteDeadline = 10 * time.Second
	}
	if opts.MaxMessageSize <= 0 {
		opts.MaxMessageSize = 64 * 1024
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Server{hub: h, auth: auth, threads: threads, presence: presence, opts: opts, log: log}
}

// Upgrade authenticates the handshake and rejects plain HTTP requests.
// The token comes from the "token" query parameter or a bearer header.
func (s *Server) Upgrade(c *fiber.Ctx) error {
	if !websocket.IsWebSocketUpgrade(c) {
		return fiber.ErrUpgradeRequired
	}
	token := c.Query("token")
	if token == "" {
		token = strings.TrimPrefix(c.Get("Authorization"), "Bearer ")
	}
	if token == "" {
		return fiber.NewError(fiber.StatusUnauthorized, "missing token")
	}
	actor, err := s.auth.Validate(token)
	if err != nil {
		s.log.Debugw("ws token rejected", "error", err)
		return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
	}
	c.Locals("actor", actor)
	return c.Next()
}

// Handler is mounted after Upgrade.
func (s *Server) Handler() fiber.Handler {
	return websocket.New(s.handle)
}

func (s *Server) handle(conn *websocket.Conn) {
	actor, ok := conn.Locals("actor").(domain.Actor)
	if !ok {
		_ = conn.Close()
		return
	}

	c := newConnection(conn, actor, s)
	s.attach(c)

	go c.writePump()
	c.readPump()

	// conn goes back to gofiber's pool when handle returns
	c.close()
	<-c.written
	s.detach(c)
}

// attach subscribes c to its user topic, plus the role feed for staff.
func (s *Server) attach(c *Connection) {
	s.hub.Subscribe(hub.UserTopic(c.actor.ID), c)
	if c.actor.Role.IsStaff() {
		s.hub.Subscribe(hub.RoleTopic(c.actor.Role), c)
	}
	metrics.Connections.Inc()

	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.presence.AddConnection(ctx, c.actor.ID, c.id); err != nil {
			s.log.Warnw("presence add failed", "user_id", c.actor.ID, "error", err)
		}
	}
	s.log.Debugw("ws connected", "user_id", c.actor.ID, "socket_id", c.id)
}

func (s *Server) detach(c *Connection) {
	s.hub.Remove(c)
	c.close()
	metrics.Connections.Dec()

	if s.presence != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := s.presence.RemoveConnection(ctx, c.actor.ID, c.id); err != nil {
			s.log.Warnw("presence remove failed", "user_id", c.actor.ID, "error", err)
		}
	}
	s.log.Debugw("ws disconnected", "user_id", c.actor.ID, "socket_id", c.id)
}

func newSocketID() string { return uuid.New().String() }
