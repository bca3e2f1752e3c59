package repository

import (
	"context"
	"errors"

	"github.com/fathima-sithara/support-service/internal/domain"
)

var (
	ErrNotFound = errors.New("not found")
	// ErrVersionConflict means the document changed since it was loaded.
	ErrVersionConflict = errors.New("version conflict")
	// ErrDuplicate means the sender already owns a thread.
	ErrDuplicate = errors.New("duplicate thread")
)

type Filter struct {
	SenderID   string
	Statuses   []domain.Status
	AssignedTo string
	Limit      int64
	// LastReplyOnly trims each result to its latest reply and drops receipt
	// lists. Enough for unread badges, not for rendering.
	LastReplyOnly bool
}

// ThreadRepository stores threads as single versioned documents. Save and
// Delete only succeed against the version the caller loaded.
type ThreadRepository interface {
	Create(ctx context.Context, t *domain.Thread) error
	FindByID(ctx context.Context, id string) (*domain.Thread, error)
	FindBySender(ctx context.Context, senderID string) (*domain.Thread, error)
	Find(ctx context.Context, f Filter) ([]*domain.Thread, error)
	Save(ctx context.Context, t *domain.Thread) error
	Delete(ctx context.Context, id string, version int64) error
}

func (f Filter) matches(t *domain.Thread) bool {
	if f.SenderID != "" && t.SenderID != f.SenderID {
		return false
	}
	if f.AssignedTo != "" && t.AssignedTo != f.AssignedTo {
		return false
	}
	if len(f.Statuses) == 0 {
		return true
	}
	for _, s := range f.Statuses {
		if t.Status == s {
			return true
		}
	}
	return false
}

func trimToLastReply(t *domain.Thread) {
	if n := len(t.Replies); n > 1 {
		t.Replies = t.Replies[n-1:]
	}
	t.Content = ""
	t.Attachments = []domain.Attachment{}
	t.ReadBy = domain.Receipts{}
	t.DeliveredTo = domain.Receipts{}
}
