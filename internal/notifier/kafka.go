package notifier

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fathima-sithara/support-service/internal/events"
	"go.uber.org/zap"
)

// KafkaQueue hands notifications to the notifications topic; a Worker on any
// instance delivers them.
type KafkaQueue struct {
	producer *events.Producer
	logger   *zap.SugaredLogger
	wg       sync.WaitGroup
}

func NewKafkaQueue(p *events.Producer, logger *zap.SugaredLogger) *KafkaQueue {
	return &KafkaQueue{producer: p, logger: logger}
}

func (q *KafkaQueue) Dispatch(_ context.Context, n Notification) {
	q.wg.Add(1)
	go func() {
		defer q.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := q.producer.Publish(ctx, n.ThreadID, n); err != nil {
			q.logger.Warnw("notification enqueue failed", "kind", n.Kind, "thread_id", n.ThreadID, "error", err)
		}
	}()
}

func (q *KafkaQueue) Close(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		q.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Worker consumes queued notifications, delivers them with retries and
// parks failures on the dead-letter topic.
type Worker struct {
	consumer *events.Consumer
	delivery *Dispatcher
	dlq      *events.Producer
	logger   *zap.SugaredLogger
}

func NewWorker(c *events.Consumer, d *Dispatcher, dlq *events.Producer, logger *zap.SugaredLogger) *Worker {
	return &Worker{consumer: c, delivery: d, dlq: dlq, logger: logger}
}

func (w *Worker) Run(ctx context.Context) {
	w.consumer.Start(ctx, w.Handle)
}

func (w *Worker) Handle(ctx context.Context, key string, raw []byte) {
	var n Notification
	if err := json.Unmarshal(raw, &n); err != nil {
		w.logger.Errorw("invalid notification event", "error", err)
		return
	}
	sendCtx, cancel := context.WithTimeout(ctx, w.delivery.opts.SendTimeout)
	defer cancel()
	err := w.delivery.Deliver(sendCtx, n)
	if err == nil {
		return
	}
	w.logger.Errorw("pushing notification to DLQ", "thread_id", n.ThreadID, "error", err)
	if w.dlq == nil {
		return
	}
	dctx, dcancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer dcancel()
	if err := w.dlq.PublishRaw(dctx, key, raw); err != nil {
		w.logger.Errorw("dlq push failed", "error", err)
	}
}
