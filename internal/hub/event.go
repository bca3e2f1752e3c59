package hub

import (
	"time"

	"github.com/fathima-sithara/support-service/internal/domain"
)

const (
	EventThreadCreated   = "thread.created"
	EventThreadEdited    = "thread.edited"
	EventThreadDeleted   = "thread.deleted"
	EventReplyAdded      = "reply.added"
	EventReplyEdited     = "reply.edited"
	EventReplyDeleted    = "reply.deleted"
	EventStatusChanged   = "status.changed"
	EventThreadAccepted  = "thread.accepted"
	EventReceiptRead     = "receipt.read"
	EventReceiptDelivery = "receipt.delivered"

	// Signals for list views and badges.
	EventThreadsChanged = "threads.changed"
	EventUnreadRefresh  = "unread.refresh"
)

// Event is the frame pushed to subscribers of a topic.
type Event struct {
	Type     string    `json:"type"`
	ThreadID string    `json:"thread_id,omitempty"`
	Data     any       `json:"data,omitempty"`
	At       time.Time `json:"at"`
}

func ThreadTopic(id string) string { return "thread:" + id }

func UserTopic(id string) string { return "user:" + id }

func RoleTopic(r domain.Role) string { return "role:" + string(r) }

// StaffTopics are the role topics every agent and admin connection joins.
func StaffTopics() []string {
	return []string{RoleTopic(domain.RoleAgent), RoleTopic(domain.RoleAdmin)}
}
