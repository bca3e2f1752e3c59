package policy

import (
	"testing"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/stretchr/testify/assert"
)

var (
	alice = domain.Actor{ID: "alice", Role: domain.RoleClient}
	dave  = domain.Actor{ID: "dave", Role: domain.RoleClient}
	bob   = domain.Actor{ID: "bob", Role: domain.RoleAgent}
	erin  = domain.Actor{ID: "erin", Role: domain.RoleAgent}
	carol = domain.Actor{ID: "carol", Role: domain.RoleAdmin}
)

func thread(status domain.Status, assigned string, replies ...domain.Reply) *domain.Thread {
	return &domain.Thread{
		ID:         "t1",
		SenderID:   alice.ID,
		SenderRole: domain.RoleClient,
		Status:     status,
		AssignedTo: assigned,
		Replies:    replies,
	}
}

func TestCanPerform(t *testing.T) {
	pending := thread(domain.StatusPending, "")
	claimed := thread(domain.StatusAccepted, bob.ID)
	answered := thread(domain.StatusAccepted, bob.ID, domain.Reply{ID: "r1", SenderID: bob.ID, SenderRole: domain.RoleAgent})

	tests := []struct {
		name   string
		action Action
		actor  domain.Actor
		thread *domain.Thread
		want   bool
	}{
		{"client creates", ActionCreate, alice, nil, true},
		{"agent cannot create", ActionCreate, bob, nil, false},
		{"admin cannot create", ActionCreate, carol, nil, false},

		{"owner views", ActionView, alice, pending, true},
		{"other client cannot view", ActionView, dave, pending, false},
		{"any agent views", ActionView, erin, claimed, true},
		{"admin views", ActionView, carol, claimed, true},

		{"owner replies", ActionReply, alice, claimed, true},
		{"other client cannot reply", ActionReply, dave, claimed, false},
		{"unassigned agent replies", ActionReply, erin, claimed, true},

		{"owner edits", ActionEdit, alice, claimed, true},
		{"staff cannot edit root", ActionEdit, carol, claimed, false},

		{"owner deletes before staff reply", ActionDelete, alice, claimed, true},
		{"owner cannot delete after staff reply", ActionDelete, alice, answered, false},
		{"admin cannot delete root", ActionDelete, carol, pending, false},
		{"other client cannot delete", ActionDelete, dave, pending, false},

		{"agent accepts pending", ActionAccept, bob, pending, true},
		{"admin accepts pending", ActionAccept, carol, pending, true},
		{"client cannot accept", ActionAccept, alice, pending, false},
		{"accept needs pending", ActionAccept, erin, claimed, false},

		{"assignee changes status", ActionChangeStatus, bob, claimed, true},
		{"other agent cannot change status", ActionChangeStatus, erin, claimed, false},
		{"admin changes status", ActionChangeStatus, carol, claimed, true},
		{"client cannot change status", ActionChangeStatus, alice, claimed, false},

		{"owner marks receipts", ActionMarkReceipt, alice, claimed, true},
		{"staff marks receipts", ActionMarkReceipt, erin, claimed, true},
		{"other client cannot mark", ActionMarkReceipt, dave, claimed, false},

		{"missing thread", ActionView, alice, nil, false},
		{"anonymous actor", ActionView, domain.Actor{Role: domain.RoleClient}, pending, false},
		{"unknown role", ActionView, domain.Actor{ID: "x", Role: "guest"}, pending, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, CanPerform(tt.action, tt.actor, tt.thread))
		})
	}
}

func TestCanModifyReply(t *testing.T) {
	r := domain.Reply{ID: "r1", SenderID: bob.ID, SenderRole: domain.RoleAgent}
	th := thread(domain.StatusAccepted, bob.ID, r)

	assert.True(t, CanModifyReply(ActionEdit, bob, th, &th.Replies[0]))
	assert.True(t, CanModifyReply(ActionDelete, bob, th, &th.Replies[0]))
	assert.False(t, CanModifyReply(ActionEdit, erin, th, &th.Replies[0]))
	assert.False(t, CanModifyReply(ActionDelete, carol, th, &th.Replies[0]))
	assert.False(t, CanModifyReply(ActionEdit, alice, th, &th.Replies[0]))
	assert.False(t, CanModifyReply(ActionReply, bob, th, &th.Replies[0]))
	assert.False(t, CanModifyReply(ActionEdit, bob, th, nil))
}

func TestAuthorizeReturnsForbidden(t *testing.T) {
	err := Authorize(ActionView, dave, thread(domain.StatusPending, ""))
	assert.ErrorIs(t, err, apperr.ErrForbidden)
	assert.NoError(t, Authorize(ActionView, alice, thread(domain.StatusPending, "")))

	err = AuthorizeReply(ActionEdit, erin, thread(domain.StatusAccepted, ""), &domain.Reply{SenderID: bob.ID})
	assert.Equal(t, apperr.CodeForbidden, apperr.CodeOf(err))
}
