package service

import (
	"context"
	"sync"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/hub"
	"github.com/fathima-sithara/support-service/internal/notifier"
	"github.com/fathima-sithara/support-service/internal/repository"
	"go.uber.org/zap"
)

// Publisher pushes realtime events to a topic. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, topic string, ev hub.Event)
}

// Notifier hands a notification off for background delivery. It must not
// block on delivery.
type Notifier interface {
	Dispatch(ctx context.Context, n notifier.Notification)
}

type Directory interface {
	Admins(ctx context.Context) ([]domain.Actor, error)
}

type Options struct {
	MaxAttempts int
	BaseBackoff time.Duration
	// ReceiptDedupeWindow skips re-stamping a receipt younger than this.
	// Zero means the default; negative disables the window.
	ReceiptDedupeWindow time.Duration
	BackgroundTimeout   time.Duration
}

func (o Options) withDefaults() Options {
	if o.MaxAttempts <= 0 {
		o.MaxAttempts = 3
	}
	if o.BaseBackoff <= 0 {
		o.BaseBackoff = 50 * time.Millisecond
	}
	switch {
	case o.ReceiptDedupeWindow == 0:
		o.ReceiptDedupeWindow = 5 * time.Second
	case o.ReceiptDedupeWindow < 0:
		o.ReceiptDedupeWindow = 0
	}
	if o.BackgroundTimeout <= 0 {
		o.BackgroundTimeout = 5 * time.Second
	}
	return o
}

type ThreadService struct {
	repo   repository.ThreadRepository
	pub    Publisher
	notify Notifier
	dir    Directory
	log    *zap.SugaredLogger
	opts   Options
	now    func() time.Time
	bg     sync.WaitGroup
}

type nopPublisher struct{}

func (nopPublisher) Publish(context.Context, string, hub.Event) {}

func NewThreadService(repo repository.ThreadRepository, pub Publisher, notify Notifier, dir Directory, log *zap.SugaredLogger, opts Options) *ThreadService {
	if pub == nil {
		pub = nopPublisher{}
	}
	if notify == nil {
		notify = notifier.Nop{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &ThreadService{
		repo:   repo,
		pub:    pub,
		notify: notify,
		dir:    dir,
		log:    log,
		opts:   opts.withDefaults(),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Wait blocks until background side effects started by requests finish.
func (s *ThreadService) Wait() {
	s.bg.Wait()
}
