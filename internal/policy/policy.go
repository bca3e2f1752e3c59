package policy

import (
	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
)

type Action string

const (
	ActionCreate       Action = "create"
	ActionView         Action = "view"
	ActionReply        Action = "reply"
	ActionEdit         Action = "edit"
	ActionDelete       Action = "delete"
	ActionAccept       Action = "accept"
	ActionChangeStatus Action = "change_status"
	ActionMarkReceipt  Action = "mark_receipt"
)

// CanPerform decides thread-level actions. t may be nil only for ActionCreate.
// Reply-level edit and delete go through CanModifyReply.
func CanPerform(action Action, actor domain.Actor, t *domain.Thread) bool {
	if actor.ID == "" || !actor.Role.Valid() {
		return false
	}
	if action == ActionCreate {
		return actor.Role == domain.RoleClient
	}
	if t == nil {
		return false
	}

	owner := t.SenderID == actor.ID
	staff := actor.Role.IsStaff()

	switch action {
	case ActionView, ActionReply, ActionMarkReceipt:
		return owner || staff
	case ActionEdit:
		return owner
	case ActionDelete:
		return actor.Role == domain.RoleClient && owner && !t.HasStaffReply()
	case ActionAccept:
		return staff && t.Status == domain.StatusPending
	case ActionChangeStatus:
		switch actor.Role {
		case domain.RoleAdmin:
			return true
		case domain.RoleAgent:
			return t.AssignedTo == actor.ID
		}
		return false
	}
	return false
}

// CanModifyReply decides edit and delete on a single reply: only its author,
// who must still be able to see the thread.
func CanModifyReply(action Action, actor domain.Actor, t *domain.Thread, r *domain.Reply) bool {
	if action != ActionEdit && action != ActionDelete {
		return false
	}
	if r == nil || !CanPerform(ActionView, actor, t) {
		return false
	}
	return r.SenderID == actor.ID
}

func Authorize(action Action, actor domain.Actor, t *domain.Thread) error {
	if CanPerform(action, actor, t) {
		return nil
	}
	return apperr.Forbidden(deniedMessage(action))
}

func AuthorizeReply(action Action, actor domain.Actor, t *domain.Thread, r *domain.Reply) error {
	if CanModifyReply(action, actor, t, r) {
		return nil
	}
	return apperr.Forbidden(deniedMessage(action) + " on this reply")
}

func deniedMessage(a Action) string {
	switch a {
	case ActionCreate:
		return "only clients can open support threads"
	case ActionView:
		return "not allowed to view this thread"
	case ActionReply:
		return "not allowed to reply to this thread"
	case ActionEdit:
		return "only the author can edit this content"
	case ActionDelete:
		return "not allowed to delete"
	case ActionAccept:
		return "thread cannot be accepted"
	case ActionChangeStatus:
		return "not allowed to change the status of this thread"
	case ActionMarkReceipt:
		return "not allowed to mark this thread"
	}
	return "forbidden"
}
