package service

import (
	"context"
	"errors"
	"strings"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/lifecycle"
	"github.com/fathima-sithara/support-service/internal/policy"
	"github.com/fathima-sithara/support-service/internal/repository"
	"github.com/google/uuid"
)

func duplicateThread(id string) error {
	return apperr.Conflict("an active support thread already exists", map[string]string{"thread_id": id})
}

// Create opens the caller's support thread. A client owns at most one; a
// second attempt reports the existing thread id.
func (s *ThreadService) Create(ctx context.Context, actor domain.Actor, in CreateInput) (*domain.Thread, error) {
	if err := policy.Authorize(policy.ActionCreate, actor, nil); err != nil {
		return nil, err
	}
	if err := in.validate(); err != nil {
		return nil, err
	}

	existing, err := s.repo.FindBySender(ctx, actor.ID)
	switch {
	case err == nil:
		return nil, duplicateThread(existing.ID)
	case !errors.Is(err, repository.ErrNotFound):
		return nil, apperr.Internal(err)
	}

	now := s.now()
	t := &domain.Thread{
		ID:          uuid.NewString(),
		SenderID:    actor.ID,
		SenderName:  actor.Name,
		SenderEmail: actor.Email,
		SenderRole:  actor.Role,
		Subject:     strings.TrimSpace(in.Subject),
		Content:     in.Content,
		Attachments: attachmentsOrEmpty(in.Attachments),
		Status:      domain.StatusPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.Create(ctx, t); err != nil {
		if !errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Internal(err)
		}
		// lost a race with a concurrent create
		if other, ferr := s.repo.FindBySender(ctx, actor.ID); ferr == nil {
			return nil, duplicateThread(other.ID)
		}
		return nil, apperr.Conflict("an active support thread already exists", nil)
	}

	s.log.Infow("thread created", "thread_id", t.ID, "sender_id", t.SenderID)
	s.publishCreated(ctx, t)
	s.notifyCreated(ctx, t)
	return t, nil
}

// List returns the threads visible to actor, newest activity first.
func (s *ThreadService) List(ctx context.Context, actor domain.Actor, q ListQuery) ([]*domain.Thread, error) {
	f := repository.Filter{Limit: q.Limit}
	if q.Status != "" {
		st := domain.Status(q.Status)
		if !st.Valid() {
			return nil, apperr.Validation("invalid status filter", map[string]string{"status": q.Status})
		}
		f.Statuses = []domain.Status{st}
	}
	switch {
	case actor.Role == domain.RoleClient:
		f.SenderID = actor.ID
	case actor.Role.IsStaff():
		if q.AssignedToMe {
			f.AssignedTo = actor.ID
		}
	default:
		return nil, apperr.Forbidden("unknown role")
	}

	threads, err := s.repo.Find(ctx, f)
	if err != nil {
		return nil, apperr.Internal(err)
	}
	return threads, nil
}

// Get returns one thread. A viewer other than the originator also gets a
// delivery receipt stamped in the background.
func (s *ThreadService) Get(ctx context.Context, actor domain.Actor, id string) (*domain.Thread, error) {
	t, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := policy.Authorize(policy.ActionView, actor, t); err != nil {
		return nil, err
	}
	if actor.ID != t.SenderID {
		s.markDeliveredAsync(actor, id)
	}
	return t, nil
}

// CanView reports whether actor may follow the thread in realtime.
func (s *ThreadService) CanView(ctx context.Context, actor domain.Actor, id string) error {
	t, err := s.load(ctx, id)
	if err != nil {
		return err
	}
	return policy.Authorize(policy.ActionView, actor, t)
}

func (s *ThreadService) Reply(ctx context.Context, actor domain.Actor, id string, in ReplyInput) (*domain.Reply, *domain.Thread, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	var reply domain.Reply
	t, _, err := s.mutate(ctx, "reply", id, func(t *domain.Thread) (bool, error) {
		if err := policy.Authorize(policy.ActionReply, actor, t); err != nil {
			return false, err
		}
		now := s.now()
		reply = domain.Reply{
			ID:          uuid.NewString(),
			SenderID:    actor.ID,
			SenderName:  actor.Name,
			SenderRole:  actor.Role,
			Content:     in.Content,
			Attachments: attachmentsOrEmpty(in.Attachments),
			CreatedAt:   now,
			ReadBy:      domain.Receipts{},
			DeliveredTo: domain.Receipts{},
		}
		t.AppendReply(reply)
		t.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, nil, err
	}

	s.publishReply(ctx, t, reply)
	s.notifyReply(ctx, t, reply, actor)
	return &reply, t, nil
}

func (s *ThreadService) ChangeStatus(ctx context.Context, actor domain.Actor, id string, target domain.Status) (*domain.Thread, error) {
	var from domain.Status
	t, _, err := s.mutate(ctx, "status", id, func(t *domain.Thread) (bool, error) {
		if err := lifecycle.CheckTransition(actor, t, target); err != nil {
			return false, err
		}
		from = t.Status
		lifecycle.Transition(t, target)
		t.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("thread status changed", "thread_id", t.ID, "from", from, "to", target, "by", actor.ID)
	s.publishStatus(ctx, t, from, actor)
	s.notifyStatus(ctx, t, actor)
	return t, nil
}

// Accept claims a pending thread for the calling agent or admin.
func (s *ThreadService) Accept(ctx context.Context, actor domain.Actor, id string) (*domain.Thread, error) {
	t, _, err := s.mutate(ctx, "accept", id, func(t *domain.Thread) (bool, error) {
		if err := lifecycle.CheckAccept(actor, t); err != nil {
			return false, err
		}
		now := s.now()
		lifecycle.Accept(t, actor, now)
		t.UpdatedAt = now
		return true, nil
	})
	if err != nil {
		return nil, err
	}

	s.log.Infow("thread accepted", "thread_id", t.ID, "assigned_to", t.AssignedTo)
	s.publishAccepted(ctx, t)
	s.notifyStatus(ctx, t, actor)
	return t, nil
}

func (s *ThreadService) MarkRead(ctx context.Context, actor domain.Actor, id string) (*domain.Thread, error) {
	return s.markReceipts(ctx, actor, id, domain.ReceiptRead)
}

func (s *ThreadService) MarkDelivered(ctx context.Context, actor domain.Actor, id string) (*domain.Thread, error) {
	return s.markReceipts(ctx, actor, id, domain.ReceiptDelivered)
}

func (s *ThreadService) markReceipts(ctx context.Context, actor domain.Actor, id string, kind domain.ReceiptKind) (*domain.Thread, error) {
	now := s.now()
	t, changed, err := s.mutate(ctx, "mark_"+string(kind), id, func(t *domain.Thread) (bool, error) {
		if err := policy.Authorize(policy.ActionMarkReceipt, actor, t); err != nil {
			return false, err
		}
		return t.MarkReceipts(kind, actor, now, s.opts.ReceiptDedupeWindow), nil
	})
	if err != nil {
		return nil, err
	}
	if changed {
		s.publishReceipt(ctx, t, kind, actor, now)
	}
	return t, nil
}

func (s *ThreadService) markDeliveredAsync(actor domain.Actor, id string) {
	// id may alias a request buffer that is recycled after the caller returns
	id = strings.Clone(id)
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), s.opts.BackgroundTimeout)
		defer cancel()
		if _, err := s.MarkDelivered(ctx, actor, id); err != nil {
			s.log.Debugw("background delivery mark failed", "thread_id", id, "user_id", actor.ID, "error", err)
		}
	}()
}

// Edit changes the root message, or one reply when in.ReplyID is set. Only
// the author may edit. The returned reply is nil for root edits.
func (s *ThreadService) Edit(ctx context.Context, actor domain.Actor, id string, in EditInput) (*domain.Thread, *domain.Reply, error) {
	if err := in.validate(); err != nil {
		return nil, nil, err
	}
	var edited *domain.Reply
	t, changed, err := s.mutate(ctx, "edit", id, func(t *domain.Thread) (bool, error) {
		now := s.now()
		if in.ReplyID != "" {
			r, ok := t.FindReply(in.ReplyID)
			if !ok {
				return false, apperr.NotFound("reply not found")
			}
			if err := policy.AuthorizeReply(policy.ActionEdit, actor, t, r); err != nil {
				return false, err
			}
			edited = r
			if r.Content == in.Content {
				return false, nil
			}
			r.Content = in.Content
			r.IsEdited = true
			r.EditedAt = &now
			t.UpdatedAt = now
			return true, nil
		}

		if err := policy.Authorize(policy.ActionEdit, actor, t); err != nil {
			return false, err
		}
		ch := false
		if in.Subject != nil && strings.TrimSpace(*in.Subject) != t.Subject {
			t.Subject = strings.TrimSpace(*in.Subject)
			ch = true
		}
		if in.Content != t.Content {
			t.Content = in.Content
			ch = true
		}
		if ch {
			t.IsEdited = true
			t.UpdatedAt = now
		}
		return ch, nil
	})
	if err != nil {
		return nil, nil, err
	}
	if changed {
		s.publishEdited(ctx, t, edited)
	}
	if edited != nil {
		cp := *edited
		return t, &cp, nil
	}
	return t, nil, nil
}

// Delete removes one reply, or the whole thread when replyID is empty.
func (s *ThreadService) Delete(ctx context.Context, actor domain.Actor, id, replyID string) error {
	if replyID != "" {
		return s.deleteReply(ctx, actor, id, replyID)
	}

	var deleted *domain.Thread
	err := s.retry(ctx, "delete", id, func() error {
		t, err := s.load(ctx, id)
		if err != nil {
			return err
		}
		if err := policy.Authorize(policy.ActionDelete, actor, t); err != nil {
			if actor.ID == t.SenderID && t.HasStaffReply() {
				return apperr.Forbidden("thread can no longer be deleted once support has replied")
			}
			return err
		}
		err = s.repo.Delete(ctx, id, t.Version)
		switch {
		case err == nil:
			deleted = t
			return nil
		case errors.Is(err, repository.ErrVersionConflict):
			return err
		case errors.Is(err, repository.ErrNotFound):
			return apperr.NotFound("thread not found")
		default:
			return apperr.Internal(err)
		}
	})
	if err != nil {
		return err
	}

	s.log.Infow("thread deleted", "thread_id", id, "by", actor.ID)
	s.publishDeleted(ctx, deleted)
	return nil
}

func (s *ThreadService) deleteReply(ctx context.Context, actor domain.Actor, id, replyID string) error {
	t, _, err := s.mutate(ctx, "delete_reply", id, func(t *domain.Thread) (bool, error) {
		r, ok := t.FindReply(replyID)
		if !ok {
			return false, apperr.NotFound("reply not found")
		}
		if err := policy.AuthorizeReply(policy.ActionDelete, actor, t, r); err != nil {
			return false, err
		}
		t.RemoveReply(replyID)
		t.UpdatedAt = s.now()
		return true, nil
	})
	if err != nil {
		return err
	}
	s.publishReplyDeleted(ctx, t, replyID)
	return nil
}

// UnreadCount counts threads needing the caller's attention. For a client:
// support replied after the client last wrote. For staff: an open thread
// whose latest message came from the client.
func (s *ThreadService) UnreadCount(ctx context.Context, actor domain.Actor) (int, error) {
	var f repository.Filter
	switch {
	case actor.Role == domain.RoleClient:
		f.SenderID = actor.ID
	case actor.Role.IsStaff():
		f.Statuses = []domain.Status{domain.StatusPending, domain.StatusAccepted, domain.StatusResolved}
		f.LastReplyOnly = true
	default:
		return 0, apperr.Forbidden("unknown role")
	}

	threads, err := s.repo.Find(ctx, f)
	if err != nil {
		return 0, apperr.Internal(err)
	}
	n := 0
	for _, t := range threads {
		if actor.Role == domain.RoleClient && t.UnreadForClient(actor.ID) {
			n++
		}
		if actor.Role.IsStaff() && t.UnreadForStaff() {
			n++
		}
	}
	return n, nil
}
