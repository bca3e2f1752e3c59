package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/hub"
	"github.com/fathima-sithara/support-service/internal/notifier"
	"github.com/fathima-sithara/support-service/internal/repository"
	"github.com/stretchr/testify/require"
)

var (
	alice = domain.Actor{ID: "alice", Name: "Alice", Email: "alice@example.com", Role: domain.RoleClient}
	dave  = domain.Actor{ID: "dave", Name: "Dave", Email: "dave@example.com", Role: domain.RoleClient}
	bob   = domain.Actor{ID: "bob", Name: "Bob", Email: "bob@example.com", Role: domain.RoleAgent}
	erin  = domain.Actor{ID: "erin", Name: "Erin", Email: "erin@example.com", Role: domain.RoleAgent}
	carol = domain.Actor{ID: "carol", Name: "Carol", Email: "carol@example.com", Role: domain.RoleAdmin}
)

type published struct {
	topic string
	ev    hub.Event
}

type recordingPublisher struct {
	mu     sync.Mutex
	events []published
}

func (p *recordingPublisher) Publish(_ context.Context, topic string, ev hub.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, published{topic: topic, ev: ev})
}

// topics lists the topics an event type went to, in publish order.
func (p *recordingPublisher) topics(typ string) []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for _, e := range p.events {
		if e.ev.Type == typ {
			out = append(out, e.topic)
		}
	}
	return out
}

func (p *recordingPublisher) reset() {
	p.mu.Lock()
	p.events = nil
	p.mu.Unlock()
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notifier.Notification
}

func (n *recordingNotifier) Dispatch(_ context.Context, msg notifier.Notification) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.sent = append(n.sent, msg)
}

func (n *recordingNotifier) recipients(kind notifier.Kind) []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	var out []string
	for _, m := range n.sent {
		if m.Kind == kind {
			out = append(out, m.RecipientID)
		}
	}
	return out
}

// conflictRepo fails the next `conflicts` saves with a version conflict.
// beforeConflict, when set, runs once just before the first injected
// failure so a test can land a competing write.
type conflictRepo struct {
	*repository.MemoryRepository
	mu             sync.Mutex
	conflicts      int
	saves          int
	beforeConflict func()
}

func (r *conflictRepo) Save(ctx context.Context, t *domain.Thread) error {
	r.mu.Lock()
	r.saves++
	if r.conflicts > 0 {
		r.conflicts--
		hook := r.beforeConflict
		r.beforeConflict = nil
		r.mu.Unlock()
		if hook != nil {
			hook()
		}
		return repository.ErrVersionConflict
	}
	r.mu.Unlock()
	return r.MemoryRepository.Save(ctx, t)
}

func (r *conflictRepo) saveCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.saves
}

type fixture struct {
	svc   *ThreadService
	repo  *conflictRepo
	pub   *recordingPublisher
	notes *recordingNotifier
	clock time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:  &conflictRepo{MemoryRepository: repository.NewMemoryRepository()},
		pub:   &recordingPublisher{},
		notes: &recordingNotifier{},
		clock: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC),
	}
	dir := notifier.NewStaticDirectory([]domain.Actor{carol})
	f.svc = NewThreadService(f.repo, f.pub, f.notes, dir, nil, Options{BaseBackoff: time.Millisecond})
	f.svc.now = func() time.Time { return f.clock }
	return f
}

func (f *fixture) advance(d time.Duration) { f.clock = f.clock.Add(d) }

func (f *fixture) create(t *testing.T, actor domain.Actor) *domain.Thread {
	t.Helper()
	th, err := f.svc.Create(context.Background(), actor, CreateInput{Subject: "Help", Content: "Need assistance"})
	require.NoError(t, err)
	return th
}

func (f *fixture) reply(t *testing.T, actor domain.Actor, id, content string) *domain.Reply {
	t.Helper()
	f.advance(time.Minute)
	r, _, err := f.svc.Reply(context.Background(), actor, id, ReplyInput{Content: content})
	require.NoError(t, err)
	return r
}

func (f *fixture) load(t *testing.T, id string) *domain.Thread {
	t.Helper()
	th, err := f.repo.FindByID(context.Background(), id)
	require.NoError(t, err)
	return th
}
