package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeSub struct {
	mu     sync.Mutex
	frames [][]byte
	full   bool
}

func (f *fakeSub) Send(b []byte) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.full {
		return false
	}
	f.frames = append(f.frames, b)
	return true
}

func (f *fakeSub) events(t *testing.T) []Event {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]Event, 0, len(f.frames))
	for _, b := range f.frames {
		var ev Event
		require.NoError(t, json.Unmarshal(b, &ev))
		out = append(out, ev)
	}
	return out
}

func TestPublishReachesTopicSubscribers(t *testing.T) {
	h := New(nil)
	a, b, other := &fakeSub{}, &fakeSub{}, &fakeSub{}
	h.Subscribe(ThreadTopic("t1"), a)
	h.Subscribe(ThreadTopic("t1"), b)
	h.Subscribe(ThreadTopic("t2"), other)

	h.Publish(context.Background(), ThreadTopic("t1"), Event{Type: EventReplyAdded, ThreadID: "t1"})

	for _, s := range []*fakeSub{a, b} {
		evs := s.events(t)
		require.Len(t, evs, 1)
		assert.Equal(t, EventReplyAdded, evs[0].Type)
		assert.Equal(t, "t1", evs[0].ThreadID)
		assert.False(t, evs[0].At.IsZero())
	}
	assert.Empty(t, other.events(t))
}

func TestPublishWithoutSubscribers(t *testing.T) {
	h := New(nil)
	assert.NotPanics(t, func() {
		h.Publish(context.Background(), UserTopic("nobody"), Event{Type: EventUnreadRefresh})
	})
}

func TestSlowSubscriberDoesNotBlockOthers(t *testing.T) {
	h := New(nil)
	slow, fast := &fakeSub{full: true}, &fakeSub{}
	h.Subscribe(RoleTopic("agent"), slow)
	h.Subscribe(RoleTopic("agent"), fast)

	n := h.DeliverLocal(RoleTopic("agent"), []byte(`{"type":"x"}`))
	assert.Equal(t, 1, n)
	assert.Len(t, fast.frames, 1)
}

func TestUnsubscribeAndRemove(t *testing.T) {
	h := New(nil)
	s := &fakeSub{}
	h.Subscribe(ThreadTopic("t1"), s)
	h.Subscribe(UserTopic("u1"), s)
	h.Subscribe(StaffTopics()[0], s)
	assert.Equal(t, 1, h.Subscribers(ThreadTopic("t1")))

	h.Unsubscribe(ThreadTopic("t1"), s)
	assert.Equal(t, 0, h.Subscribers(ThreadTopic("t1")))
	assert.Equal(t, 1, h.Subscribers(UserTopic("u1")))

	h.Remove(s)
	assert.Equal(t, 0, h.Subscribers(UserTopic("u1")))
	assert.Equal(t, 0, h.Subscribers(StaffTopics()[0]))

	h.Publish(context.Background(), UserTopic("u1"), Event{Type: EventThreadsChanged})
	assert.Empty(t, s.events(t))
}

func TestPublishRelaysToOtherInstances(t *testing.T) {
	h := New(nil)
	var gotTopic string
	var gotPayload []byte
	h.PublishToOtherInstances = func(_ context.Context, topic string, payload []byte) error {
		gotTopic, gotPayload = topic, payload
		return errors.New("redis down")
	}

	local := &fakeSub{}
	h.Subscribe(ThreadTopic("t1"), local)
	h.Publish(context.Background(), ThreadTopic("t1"), Event{Type: EventStatusChanged})

	assert.Equal(t, ThreadTopic("t1"), gotTopic)
	assert.Contains(t, string(gotPayload), EventStatusChanged)
	assert.Len(t, local.events(t), 1, "relay failure does not affect local delivery")
}

func TestRelayHandleSkipsOwnFrames(t *testing.T) {
	h := New(nil)
	r := NewRedisRelay(nil, "support:fanout", "node-a", h, h.log)
	s := &fakeSub{}
	h.Subscribe(ThreadTopic("t1"), s)

	frame := func(origin string) []byte {
		b, err := json.Marshal(relayFrame{Origin: origin, Topic: ThreadTopic("t1"), Payload: []byte(`{"type":"reply.added"}`)})
		require.NoError(t, err)
		return b
	}

	r.handle(frame("node-a"))
	assert.Empty(t, s.events(t))

	r.handle(frame("node-b"))
	evs := s.events(t)
	require.Len(t, evs, 1)
	assert.Equal(t, EventReplyAdded, evs[0].Type)

	r.handle([]byte("not json"))
	assert.Len(t, s.events(t), 1)
}

func TestRelayPublishDoesNotWaitOnRedis(t *testing.T) {
	h := New(nil)
	r := NewRedisRelay(nil, "support:fanout", "node-a", h, h.log)
	release := make(chan struct{})
	defer close(release)
	r.pub = func(ctx context.Context, _ []byte) error {
		select {
		case <-release:
		case <-ctx.Done():
		}
		return ctx.Err()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.forward(ctx)

	local := &fakeSub{}
	h.Subscribe(ThreadTopic("t1"), local)

	start := time.Now()
	for i := 0; i < 10; i++ {
		h.Publish(context.Background(), ThreadTopic("t1"), Event{Type: EventReplyAdded})
	}
	assert.Less(t, time.Since(start), time.Second)
	assert.Len(t, local.events(t), 10)
}

func TestRelayForwardsQueuedFrames(t *testing.T) {
	h := New(nil)
	r := NewRedisRelay(nil, "support:fanout", "node-a", h, h.log)
	sent := make(chan []byte, 4)
	r.pub = func(_ context.Context, b []byte) error {
		sent <- b
		return nil
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go r.forward(ctx)

	h.Publish(context.Background(), UserTopic("alice"), Event{Type: EventUnreadRefresh})

	select {
	case b := <-sent:
		var f relayFrame
		require.NoError(t, json.Unmarshal(b, &f))
		assert.Equal(t, "node-a", f.Origin)
		assert.Equal(t, UserTopic("alice"), f.Topic)
		assert.Contains(t, string(f.Payload), EventUnreadRefresh)
	case <-time.After(2 * time.Second):
		t.Fatal("frame not forwarded")
	}
}

func TestRelayBacklogFullDropsRemoteOnly(t *testing.T) {
	h := New(nil)
	r := NewRedisRelay(nil, "support:fanout", "node-a", h, h.log)
	r.out = make(chan relayFrame, 1)

	require.NoError(t, r.Publish(context.Background(), ThreadTopic("t1"), []byte(`{}`)))
	assert.ErrorIs(t, r.Publish(context.Background(), ThreadTopic("t1"), []byte(`{}`)), ErrRelayBacklog)

	local := &fakeSub{}
	h.Subscribe(ThreadTopic("t1"), local)
	h.Publish(context.Background(), ThreadTopic("t1"), Event{Type: EventStatusChanged})
	assert.Len(t, local.events(t), 1)
}
