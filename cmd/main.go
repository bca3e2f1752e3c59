package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/fathima-sithara/support-service/internal/api"
	"github.com/fathima-sithara/support-service/internal/auth"
	"github.com/fathima-sithara/support-service/internal/config"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/events"
	"github.com/fathima-sithara/support-service/internal/hub"
	"github.com/fathima-sithara/support-service/internal/metrics"
	"github.com/fathima-sithara/support-service/internal/notifier"
	"github.com/fathima-sithara/support-service/internal/presence"
	"github.com/fathima-sithara/support-service/internal/repository"
	"github.com/fathima-sithara/support-service/internal/service"
	"github.com/fathima-sithara/support-service/internal/utils"
	"github.com/fathima-sithara/support-service/internal/ws"
	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_PATH"))
	if err != nil {
		log.Fatalf("config load: %v", err)
	}

	logger, err := utils.NewLogger(cfg.App.Development())
	if err != nil {
		log.Fatalf("logger init: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	metrics.Init()

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// store
	var repo repository.ThreadRepository
	var mc *mongo.Client
	switch cfg.Store.Driver {
	case "mongo":
		mc, err = repository.NewMongoClient(cfg.Mongo.URI)
		if err != nil {
			logger.Fatalw("mongo init failed", "error", err)
		}
		coll := mc.Database(cfg.Mongo.DB).Collection(cfg.Mongo.Collection)
		mr, err := repository.NewMongoRepository(coll, cfg.MongoOpTimeout)
		if err != nil {
			logger.Fatalw("mongo indexes failed", "error", err)
		}
		repo = mr
	default:
		logger.Warn("using in-memory thread store; data is lost on restart")
		repo = repository.NewMemoryRepository()
	}

	// realtime
	h := hub.New(logger)
	var rdb *redis.Client
	var pres *presence.Store
	if cfg.Redis.Addr != "" {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(ctx).Err(); err != nil {
			logger.Fatalw("redis ping failed", "error", err)
		}
		origin := cfg.App.InstanceID
		if origin == "" {
			origin = uuid.New().String()
		}
		relay := hub.NewRedisRelay(rdb, cfg.Redis.Channel, origin, h, logger)
		go relay.Run(ctx)
		pres = presence.NewStore(rdb, cfg.Redis.Prefix, 0)
	}

	// notifications
	catalog, err := notifier.DefaultCatalog()
	if err != nil {
		logger.Fatalw("email templates invalid", "error", err)
	}
	var emailer notifier.Emailer = notifier.NewLogEmailer(catalog, logger)
	if cfg.Notify.Emailer == "brevo" {
		emailer = notifier.NewBrevoEmailer(cfg.Notify.BrevoAPIKey, cfg.Notify.SenderEmail, cfg.Notify.SenderName, catalog, logger)
	}
	var notifPresence notifier.Presence
	if pres != nil {
		notifPresence = pres
	}
	dispatcher := notifier.NewDispatcher(emailer, notifPresence, notifier.Options{
		MaxRetries:     cfg.Notify.MaxRetries,
		InitialBackoff: cfg.NotifyBackoff,
		SkipOnline:     cfg.Notify.SkipOnline,
	}, logger)

	var notify service.Notifier
	var queue *notifier.KafkaQueue
	var kprod, kdlq *events.Producer
	var kcons *events.Consumer
	switch cfg.Notify.Mode {
	case "direct":
		notify = dispatcher
	case "kafka":
		kprod = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications)
		queue = notifier.NewKafkaQueue(kprod, logger)
		notify = queue
		if cfg.Kafka.TopicDLQ != "" {
			kdlq = events.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicDLQ)
		}
		kcons = events.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicNotifications, cfg.Kafka.GroupID, logger)
		go notifier.NewWorker(kcons, dispatcher, kdlq, logger).Run(ctx)
	default:
		notify = notifier.Nop{}
	}

	admins := make([]domain.Actor, 0, len(cfg.Notify.Admins))
	for _, a := range cfg.Notify.Admins {
		admins = append(admins, domain.Actor{ID: a.ID, Name: a.Name, Email: a.Email, Role: domain.RoleAdmin})
	}

	svc := service.NewThreadService(repo, h, notify, notifier.NewStaticDirectory(admins), logger, service.Options{
		MaxAttempts:         cfg.Mutation.MaxAttempts,
		BaseBackoff:         cfg.MutationBackoff,
		ReceiptDedupeWindow: dedupeWindow(cfg),
	})

	var jv *auth.JWTValidator
	if strings.ToUpper(cfg.JWT.Alg) == "RS256" {
		jv, err = auth.NewJWTValidatorRS256(cfg.JWT.PublicKeyPath)
	} else {
		jv, err = auth.NewJWTValidatorHS256(cfg.JWT.HSSecret)
	}
	if err != nil {
		logger.Fatalw("jwt validator init failed", "error", err)
	}

	var wsPresence ws.Presence
	if pres != nil {
		wsPresence = pres
	}
	wsrv := ws.NewServer(h, jv, svc, wsPresence, ws.Options{
		PingInterval:   cfg.PingInterval,
		WriteDeadline:  cfg.WriteDeadline,
		MaxMessageSize: cfg.WS.MaxMessageSizeBytes,
	}, logger)

	app := api.NewServer(cfg, svc, jv, wsrv, logger)

	go func() {
		if err := app.Listen(":" + cfg.App.PortString()); err != nil {
			logger.Fatalw("server listen failed", "error", err)
		}
	}()
	logger.Infow("support-service started", "port", cfg.App.Port, "store", cfg.Store.Driver, "notify", cfg.Notify.Mode)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	_ = app.ShutdownWithContext(shutdownCtx)
	svc.Wait()
	if queue != nil {
		_ = queue.Close(shutdownCtx)
	}
	stop()
	if err := dispatcher.Close(shutdownCtx); err != nil {
		logger.Warnw("pending notifications dropped", "error", err)
	}
	var closers []closer
	if kprod != nil {
		closers = append(closers, kprod)
	}
	if kdlq != nil {
		closers = append(closers, kdlq)
	}
	if kcons != nil {
		closers = append(closers, kcons)
	}
	closeAll(logger, closers...)
	if rdb != nil {
		_ = rdb.Close()
	}
	if mc != nil {
		_ = mc.Disconnect(context.Background())
	}
	logger.Info("support-service stopped")
}

// dedupeWindow maps a configured 0 to "disabled"; the service treats a zero
// option as "use the default".
func dedupeWindow(cfg *config.Config) time.Duration {
	if cfg.Mutation.ReceiptDedupeWindowMs == 0 {
		return -1
	}
	return cfg.ReceiptDedupeWindow
}

type closer interface{ Close() error }

func closeAll(logger *zap.SugaredLogger, cs ...closer) {
	for _, c := range cs {
		if err := c.Close(); err != nil {
			logger.Warnw("close failed", "error", err)
		}
	}
}
