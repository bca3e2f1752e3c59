package hub

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/fathima-sithara/support-service/internal/metrics"
	"go.uber.org/zap"
)

// Subscriber receives encoded frames. Send must not block; it reports false
// when the frame was dropped.
type Subscriber interface {
	Send(b []byte) bool
}

type Hub struct {
	topics map[string]map[Subscriber]struct{}
	// subscriber -> topics it joined
	joined map[Subscriber]map[string]struct{}
	mu     sync.RWMutex
	log    *zap.SugaredLogger

	// cross-instance relay (optional); called on the publishing goroutine,
	// so it must not wait on the network
	PublishToOtherInstances func(ctx context.Context, topic string, payload []byte) error
}

func New(log *zap.SugaredLogger) *Hub {
	if log == nil {
		log = zap.NewNop().Sugar()
	}
	return &Hub{
		topics: make(map[string]map[Subscriber]struct{}),
		joined: make(map[Subscriber]map[string]struct{}),
		log:    log,
	}
}

func (h *Hub) Subscribe(topic string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.topics[topic]; !ok {
		h.topics[topic] = make(map[Subscriber]struct{})
	}
	h.topics[topic][s] = struct{}{}

	if _, ok := h.joined[s]; !ok {
		h.joined[s] = make(map[string]struct{})
	}
	h.joined[s][topic] = struct{}{}
}

func (h *Hub) Unsubscribe(topic string, s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.unsubscribeLocked(topic, s)
}

func (h *Hub) unsubscribeLocked(topic string, s Subscriber) {
	if set, ok := h.topics[topic]; ok {
		delete(set, s)
		if len(set) == 0 {
			delete(h.topics, topic)
		}
	}
	if set, ok := h.joined[s]; ok {
		delete(set, topic)
		if len(set) == 0 {
			delete(h.joined, s)
		}
	}
}

// Remove drops s from every topic it joined.
func (h *Hub) Remove(s Subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for topic := range h.joined[s] {
		h.unsubscribeLocked(topic, s)
	}
}

func (h *Hub) Subscribers(topic string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.topics[topic])
}

// Publish delivers ev to local subscribers of topic and relays it to other
// instances. Nobody listening is not an error.
func (h *Hub) Publish(ctx context.Context, topic string, ev Event) {
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	b, err := json.Marshal(ev)
	if err != nil {
		h.log.Warnw("fanout encode failed", "topic", topic, "type", ev.Type, "error", err)
		return
	}
	metrics.FanoutEvents.WithLabelValues(ev.Type).Inc()

	h.DeliverLocal(topic, b)
	if h.PublishToOtherInstances != nil {
		if err := h.PublishToOtherInstances(ctx, topic, b); err != nil {
			h.log.Warnw("fanout relay failed", "topic", topic, "error", err)
		}
	}
}

// DeliverLocal writes an encoded frame to this instance's subscribers and
// returns how many accepted it.
func (h *Hub) DeliverLocal(topic string, b []byte) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	n := 0
	for s := range h.topics[topic] {
		if s.Send(b) {
			n++
		} else {
			h.log.Debugw("slow subscriber, frame dropped", "topic", topic)
		}
	}
	return n
}
