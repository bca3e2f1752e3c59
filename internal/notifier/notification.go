package notifier

import (
	"context"

	"github.com/fathima-sithara/support-service/internal/domain"
)

type Kind string

const (
	KindThreadCreated Kind = "thread_created"
	KindReply         Kind = "reply"
	KindStatusChanged Kind = "status_changed"
)

// Notification is one email to one recipient about one thread.
type Notification struct {
	Kind           Kind        `json:"kind"`
	RecipientID    string      `json:"recipient_id,omitempty"`
	RecipientEmail string      `json:"recipient_email"`
	RecipientName  string      `json:"recipient_name"`
	RecipientRole  domain.Role `json:"recipient_role"`
	SenderName     string      `json:"sender_name"`
	Subject        string      `json:"subject"`
	Body           string      `json:"body"`
	ThreadID       string      `json:"thread_id"`
	Status         string      `json:"status,omitempty"`
}

type Emailer interface {
	Send(ctx context.Context, n Notification) error
}

type Presence interface {
	IsOnline(ctx context.Context, userID string) (bool, error)
}

// Nop discards notifications.
type Nop struct{}

func (Nop) Dispatch(context.Context, Notification) {}

// StaticDirectory lists the admins configured for new-thread alerts.
type StaticDirectory struct {
	admins []domain.Actor
}

func NewStaticDirectory(admins []domain.Actor) *StaticDirectory {
	return &StaticDirectory{admins: admins}
}

func (d *StaticDirectory) Admins(context.Context) ([]domain.Actor, error) {
	return d.admins, nil
}
