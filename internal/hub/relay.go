package hub

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

type relayFrame struct {
	Origin  string          `json:"origin"`
	Topic   string          `json:"topic"`
	Payload json.RawMessage `json:"payload"`
}

// relayBacklog bounds frames waiting for Redis. Publishing never waits on
// Redis; a full backlog drops the frame for remote instances only.
const relayBacklog = 1024

var ErrRelayBacklog = errors.New("relay backlog full")

// RedisRelay carries hub frames between instances over one pub/sub channel.
type RedisRelay struct {
	rdb     *redis.Client
	channel string
	origin  string
	hub     *Hub
	log     *zap.SugaredLogger

	out chan relayFrame
	// pub writes one encoded frame to the channel
	pub func(ctx context.Context, b []byte) error
}

func NewRedisRelay(rdb *redis.Client, channel, origin string, h *Hub, log *zap.SugaredLogger) *RedisRelay {
	r := &RedisRelay{
		rdb:     rdb,
		channel: channel,
		origin:  origin,
		hub:     h,
		log:     log,
		out:     make(chan relayFrame, relayBacklog),
	}
	r.pub = func(ctx context.Context, b []byte) error {
		return r.rdb.Publish(ctx, r.channel, b).Err()
	}
	h.PublishToOtherInstances = r.Publish
	return r
}

// Publish queues a frame for the forwarder started by Run.
func (r *RedisRelay) Publish(_ context.Context, topic string, payload []byte) error {
	select {
	case r.out <- relayFrame{Origin: r.origin, Topic: topic, Payload: payload}:
		return nil
	default:
		return ErrRelayBacklog
	}
}

// Run forwards local frames to Redis and delivers frames from other
// instances until ctx is cancelled.
func (r *RedisRelay) Run(ctx context.Context) {
	go r.forward(ctx)

	pubsub := r.rdb.Subscribe(ctx, r.channel)
	defer pubsub.Close()
	ch := pubsub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				r.log.Warnw("redis relay subscription closed", "channel", r.channel)
				return
			}
			r.handle([]byte(msg.Payload))
		}
	}
}

func (r *RedisRelay) forward(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case f := <-r.out:
			b, err := json.Marshal(f)
			if err != nil {
				r.log.Warnw("relay encode failed", "topic", f.Topic, "error", err)
				continue
			}
			pctx, cancel := context.WithTimeout(ctx, 2*time.Second)
			if err := r.pub(pctx, b); err != nil {
				r.log.Warnw("relay publish failed", "topic", f.Topic, "error", err)
			}
			cancel()
		}
	}
}

func (r *RedisRelay) handle(raw []byte) {
	var f relayFrame
	if err := json.Unmarshal(raw, &f); err != nil {
		r.log.Debugw("bad relay frame", "error", err)
		return
	}
	if f.Origin == r.origin || f.Topic == "" {
		return
	}
	r.hub.DeliverLocal(f.Topic, f.Payload)
}
