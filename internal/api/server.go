package api

import (
	"strings"

	"github.com/fathima-sithara/support-service/internal/config"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/metrics"
	"github.com/fathima-sithara/support-service/internal/service"
	"github.com/fathima-sithara/support-service/internal/ws"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"
)

type Authenticator interface {
	Validate(token string) (domain.Actor, error)
}

// NewServer wires the REST routes. wsrv may be nil when realtime is off.
func NewServer(cfg *config.Config, svc *service.ThreadService, jv Authenticator, wsrv *ws.Server, log *zap.SugaredLogger) *fiber.App {
	app := fiber.New(fiber.Config{
		ErrorHandler: errorHandler(log),
	})
	app.Use(recover.New())
	app.Use(logger.New())

	app.Get("/healthz", func(c *fiber.Ctx) error { return c.JSON(fiber.Map{"status": "ok"}) })
	app.Get("/metrics", adaptor.HTTPHandler(metrics.Handler()))

	if wsrv != nil {
		app.Get("/ws", wsrv.Upgrade, wsrv.Handler())
	}

	h := NewHandlers(svc)
	limiter := NewRateLimiter(cfg.App.RateLimitPerMin, cfg.App.RateLimitBurst, log)
	app.Hooks().OnShutdown(func() error {
		limiter.Stop()
		return nil
	})

	api := app.Group("/v1")
	api.Use(authMiddleware(jv, log))
	api.Use(limiter.Handler())

	api.Post("/threads", h.createThread)
	api.Get("/threads", h.listThreads)
	api.Get("/threads/unread-count", h.unreadCount)
	api.Get("/threads/:id", h.getThread)
	api.Post("/threads/:id/replies", h.addReply)
	api.Patch("/threads/:id/status", h.changeStatus)
	api.Patch("/threads/:id/accept", h.acceptThread)
	api.Patch("/threads/:id/read", h.markRead)
	api.Patch("/threads/:id/delivered", h.markDelivered)
	api.Patch("/threads/:id/edit", h.editThread)
	api.Delete("/threads/:id", h.deleteThread)

	return app
}

func authMiddleware(jv Authenticator, log *zap.SugaredLogger) fiber.Handler {
	return func(c *fiber.Ctx) error {
		hdr := c.Get("Authorization")
		if hdr == "" {
			return fiber.NewError(fiber.StatusUnauthorized, "missing authorization")
		}
		if !strings.HasPrefix(hdr, "Bearer ") {
			return fiber.NewError(fiber.StatusUnauthorized, "invalid authorization header")
		}
		actor, err := jv.Validate(strings.TrimPrefix(hdr, "Bearer "))
		if err != nil {
			log.Debugw("jwt invalid", "error", err)
			return fiber.NewError(fiber.StatusUnauthorized, "invalid or expired token")
		}
		c.Locals("actor", actor)
		return c.Next()
	}
}

func actorFrom(c *fiber.Ctx) domain.Actor {
	a, _ := c.Locals("actor").(domain.Actor)
	return a
}
