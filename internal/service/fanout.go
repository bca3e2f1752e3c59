package service

import (
	"context"
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/hub"
)

func (s *ThreadService) emit(ctx context.Context, ev hub.Event, topics ...string) {
	if ev.At.IsZero() {
		ev.At = s.now()
	}
	for _, topic := range topics {
		s.pub.Publish(ctx, topic, ev)
	}
}

// signal nudges list views and unread badges subscribed to topics.
func (s *ThreadService) signal(ctx context.Context, kind, threadID string, topics ...string) {
	s.emit(ctx, hub.Event{Type: kind, ThreadID: threadID}, topics...)
}

func (s *ThreadService) publishCreated(ctx context.Context, t *domain.Thread) {
	staff := hub.StaffTopics()
	s.emit(ctx, hub.Event{Type: hub.EventThreadCreated, ThreadID: t.ID, Data: t}, staff...)
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, staff...)
	s.signal(ctx, hub.EventThreadsChanged, t.ID, hub.UserTopic(t.SenderID))
}

func (s *ThreadService) publishReply(ctx context.Context, t *domain.Thread, r domain.Reply) {
	s.emit(ctx, hub.Event{Type: hub.EventReplyAdded, ThreadID: t.ID, Data: r}, hub.ThreadTopic(t.ID))

	owner := hub.UserTopic(t.SenderID)
	s.signal(ctx, hub.EventThreadsChanged, t.ID, owner)
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, owner)
	if t.AssignedTo != "" && t.AssignedTo != r.SenderID {
		s.signal(ctx, hub.EventThreadsChanged, t.ID, hub.UserTopic(t.AssignedTo))
	}
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, hub.StaffTopics()...)
}

func (s *ThreadService) publishStatus(ctx context.Context, t *domain.Thread, from domain.Status, actor domain.Actor) {
	s.emit(ctx, hub.Event{
		Type:     hub.EventStatusChanged,
		ThreadID: t.ID,
		Data: map[string]any{
			"from":        from,
			"to":          t.Status,
			"changed_by":  actor.ID,
			"assigned_to": t.AssignedTo,
		},
	}, hub.ThreadTopic(t.ID))
	s.publishListChange(ctx, t)
}

func (s *ThreadService) publishAccepted(ctx context.Context, t *domain.Thread) {
	s.emit(ctx, hub.Event{
		Type:     hub.EventThreadAccepted,
		ThreadID: t.ID,
		Data: map[string]any{
			"status":           t.Status,
			"assigned_to":      t.AssignedTo,
			"assigned_to_name": t.AssignedToName,
			"accepted_at":      t.AcceptedAt,
		},
	}, hub.ThreadTopic(t.ID))
	s.publishListChange(ctx, t)
}

func (s *ThreadService) publishListChange(ctx context.Context, t *domain.Thread) {
	staff := hub.StaffTopics()
	s.signal(ctx, hub.EventThreadsChanged, t.ID, hub.UserTopic(t.SenderID))
	s.signal(ctx, hub.EventThreadsChanged, t.ID, staff...)
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, staff...)
}

func (s *ThreadService) publishReceipt(ctx context.Context, t *domain.Thread, kind domain.ReceiptKind, actor domain.Actor, at time.Time) {
	typ := hub.EventReceiptRead
	if kind == domain.ReceiptDelivered {
		typ = hub.EventReceiptDelivery
	}
	s.emit(ctx, hub.Event{
		Type:     typ,
		ThreadID: t.ID,
		Data:     domain.Receipt{UserID: actor.ID, At: at},
	}, hub.ThreadTopic(t.ID))
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, hub.UserTopic(actor.ID))
}

// publishEdited announces a root edit, or a reply edit when r is set.
func (s *ThreadService) publishEdited(ctx context.Context, t *domain.Thread, r *domain.Reply) {
	if r != nil {
		s.emit(ctx, hub.Event{Type: hub.EventReplyEdited, ThreadID: t.ID, Data: *r}, hub.ThreadTopic(t.ID))
		return
	}
	s.emit(ctx, hub.Event{
		Type:     hub.EventThreadEdited,
		ThreadID: t.ID,
		Data:     map[string]any{"subject": t.Subject, "content": t.Content},
	}, hub.ThreadTopic(t.ID))
	s.signal(ctx, hub.EventThreadsChanged, t.ID, hub.UserTopic(t.SenderID))
	s.signal(ctx, hub.EventThreadsChanged, t.ID, hub.StaffTopics()...)
}

func (s *ThreadService) publishReplyDeleted(ctx context.Context, t *domain.Thread, replyID string) {
	s.emit(ctx, hub.Event{
		Type:     hub.EventReplyDeleted,
		ThreadID: t.ID,
		Data:     map[string]string{"reply_id": replyID},
	}, hub.ThreadTopic(t.ID))
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, hub.UserTopic(t.SenderID))
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, hub.StaffTopics()...)
}

func (s *ThreadService) publishDeleted(ctx context.Context, t *domain.Thread) {
	s.emit(ctx, hub.Event{Type: hub.EventThreadDeleted, ThreadID: t.ID}, hub.ThreadTopic(t.ID))
	staff := hub.StaffTopics()
	s.signal(ctx, hub.EventThreadsChanged, t.ID, hub.UserTopic(t.SenderID))
	s.signal(ctx, hub.EventThreadsChanged, t.ID, staff...)
	s.signal(ctx, hub.EventUnreadRefresh, t.ID, staff...)
}
