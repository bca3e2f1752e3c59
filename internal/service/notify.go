package service

import (
	"context"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/notifier"
)

const excerptLen = 280

func excerpt(s string) string {
	r := []rune(s)
	if len(r) <= excerptLen {
		return s
	}
	return string(r[:excerptLen]) + "…"
}

func (s *ThreadService) admins(ctx context.Context) []domain.Actor {
	if s.dir == nil {
		return nil
	}
	admins, err := s.dir.Admins(ctx)
	if err != nil {
		s.log.Warnw("admin directory lookup failed", "error", err)
		return nil
	}
	return admins
}

func (s *ThreadService) notifyCreated(ctx context.Context, t *domain.Thread) {
	for _, a := range s.admins(ctx) {
		s.notify.Dispatch(ctx, notifier.Notification{
			Kind:           notifier.KindThreadCreated,
			RecipientID:    a.ID,
			RecipientEmail: a.Email,
			RecipientName:  a.Name,
			RecipientRole:  domain.RoleAdmin,
			SenderName:     t.SenderName,
			Subject:        t.Subject,
			Body:           excerpt(t.Content),
			ThreadID:       t.ID,
		})
	}
}

// notifyReply mails the other side: the client for staff replies, otherwise
// the assigned agent, or every admin while nobody has claimed the thread.
func (s *ThreadService) notifyReply(ctx context.Context, t *domain.Thread, r domain.Reply, actor domain.Actor) {
	base := notifier.Notification{
		Kind:       notifier.KindReply,
		SenderName: actor.Name,
		Subject:    t.Subject,
		Body:       excerpt(r.Content),
		ThreadID:   t.ID,
	}

	if actor.Role.IsStaff() {
		if t.SenderID == actor.ID {
			return
		}
		n := base
		n.RecipientID, n.RecipientEmail, n.RecipientName, n.RecipientRole = t.SenderID, t.SenderEmail, t.SenderName, domain.RoleClient
		s.notify.Dispatch(ctx, n)
		return
	}

	if t.AssignedTo != "" {
		n := base
		n.RecipientID, n.RecipientEmail, n.RecipientName, n.RecipientRole = t.AssignedTo, t.AssignedToEmail, t.AssignedToName, domain.RoleAgent
		s.notify.Dispatch(ctx, n)
		return
	}
	for _, a := range s.admins(ctx) {
		n := base
		n.RecipientID, n.RecipientEmail, n.RecipientName, n.RecipientRole = a.ID, a.Email, a.Name, domain.RoleAdmin
		s.notify.Dispatch(ctx, n)
	}
}

func (s *ThreadService) notifyStatus(ctx context.Context, t *domain.Thread, actor domain.Actor) {
	if t.SenderID == actor.ID {
		return
	}
	s.notify.Dispatch(ctx, notifier.Notification{
		Kind:           notifier.KindStatusChanged,
		RecipientID:    t.SenderID,
		RecipientEmail: t.SenderEmail,
		RecipientName:  t.SenderName,
		RecipientRole:  domain.RoleClient,
		SenderName:     actor.Name,
		Subject:        t.Subject,
		ThreadID:       t.ID,
		Status:         string(t.Status),
	})
}
