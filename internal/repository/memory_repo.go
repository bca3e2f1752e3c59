package repository

import (
	"context"
	"sort"
	"sync"

	"github.com/fathima-sithara/support-service/internal/domain"
)

// MemoryRepository keeps threads in process. It honours the same version and
// uniqueness rules as the Mongo store.
type MemoryRepository struct {
	mu       sync.RWMutex
	threads  map[string]*domain.Thread
	bySender map[string]string
}

func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{
		threads:  make(map[string]*domain.Thread),
		bySender: make(map[string]string),
	}
}

func (r *MemoryRepository) Create(_ context.Context, t *domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.bySender[t.SenderID]; ok {
		return ErrDuplicate
	}
	t.Normalize()
	if t.Version == 0 {
		t.Version = 1
	}
	r.threads[t.ID] = t.Clone()
	r.bySender[t.SenderID] = t.ID
	return nil
}

func (r *MemoryRepository) FindByID(_ context.Context, id string) (*domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	t, ok := r.threads[id]
	if !ok {
		return nil, ErrNotFound
	}
	return t.Clone(), nil
}

func (r *MemoryRepository) FindBySender(_ context.Context, senderID string) (*domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	id, ok := r.bySender[senderID]
	if !ok {
		return nil, ErrNotFound
	}
	return r.threads[id].Clone(), nil
}

func (r *MemoryRepository) Find(_ context.Context, f Filter) ([]*domain.Thread, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := []*domain.Thread{}
	for _, t := range r.threads {
		if f.matches(t) {
			c := t.Clone()
			if f.LastReplyOnly {
				trimToLastReply(c)
			}
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	if f.Limit > 0 && int64(len(out)) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (r *MemoryRepository) Save(_ context.Context, t *domain.Thread) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.threads[t.ID]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != t.Version {
		return ErrVersionConflict
	}
	next := t.Clone()
	next.Version = t.Version + 1
	r.threads[t.ID] = next
	t.Version = next.Version
	return nil
}

func (r *MemoryRepository) Delete(_ context.Context, id string, version int64) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	cur, ok := r.threads[id]
	if !ok {
		return ErrNotFound
	}
	if cur.Version != version {
		return ErrVersionConflict
	}
	delete(r.threads, id)
	delete(r.bySender, cur.SenderID)
	return nil
}
