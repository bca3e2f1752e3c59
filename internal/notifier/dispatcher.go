package notifier

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/fathima-sithara/support-service/internal/metrics"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"
)

type Options struct {
	MaxRetries     int
	InitialBackoff time.Duration
	SendTimeout    time.Duration
	// SkipOnline suppresses email to recipients with a live connection.
	SkipOnline bool
}

// Dispatcher delivers notifications in the background. Callers never wait
// on delivery and never see its errors.
type Dispatcher struct {
	emailer  Emailer
	presence Presence
	opts     Options
	logger   *zap.SugaredLogger
	wg       sync.WaitGroup
}

func NewDispatcher(e Emailer, presence Presence, opts Options, logger *zap.SugaredLogger) *Dispatcher {
	if opts.InitialBackoff <= 0 {
		opts.InitialBackoff = 200 * time.Millisecond
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 30 * time.Second
	}
	return &Dispatcher{emailer: e, presence: presence, opts: opts, logger: logger}
}

func (d *Dispatcher) Dispatch(_ context.Context, n Notification) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.opts.SendTimeout)
		defer cancel()
		if err := d.Deliver(ctx, n); err != nil {
			d.logger.Warnw("notification dropped", "kind", n.Kind, "thread_id", n.ThreadID, "to", n.RecipientEmail, "error", err)
		}
	}()
}

// Deliver sends n, retrying with exponential backoff.
func (d *Dispatcher) Deliver(ctx context.Context, n Notification) error {
	if n.RecipientEmail == "" {
		metrics.Notifications.WithLabelValues("skipped").Inc()
		return nil
	}
	if d.opts.SkipOnline && d.presence != nil && n.RecipientID != "" {
		if online, err := d.presence.IsOnline(ctx, n.RecipientID); err == nil && online {
			metrics.Notifications.WithLabelValues("skipped").Inc()
			return nil
		}
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = d.opts.InitialBackoff
	attempt := 0
	op := func() error {
		attempt++
		err := d.emailer.Send(ctx, n)
		if err == nil {
			return nil
		}
		if errors.Is(err, gobreaker.ErrOpenState) {
			return backoff.Permanent(err)
		}
		d.logger.Infow("notification attempt failed", "attempt", attempt, "thread_id", n.ThreadID, "error", err)
		return err
	}
	policy := backoff.WithContext(backoff.WithMaxRetries(b, uint64(max(d.opts.MaxRetries, 0))), ctx)
	if err := backoff.Retry(op, policy); err != nil {
		metrics.Notifications.WithLabelValues("failed").Inc()
		return err
	}
	metrics.Notifications.WithLabelValues("sent").Inc()
	return nil
}

// Close waits for in-flight deliveries or ctx expiry.
func (d *Dispatcher) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
