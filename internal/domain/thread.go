package domain

import (
	"time"
)

type Role string

const (
	RoleClient Role = "client"
	RoleAgent  Role = "agent"
	RoleAdmin  Role = "admin"
)

func (r Role) Valid() bool {
	switch r {
	case RoleClient, RoleAgent, RoleAdmin:
		return true
	}
	return false
}

// IsStaff reports whether the role works the support queue.
func (r Role) IsStaff() bool { return r == RoleAgent || r == RoleAdmin }

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusResolved Status = "resolved"
	StatusClosed   Status = "closed"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusResolved, StatusClosed:
		return true
	}
	return false
}

// Actor is the authenticated caller of an operation.
type Actor struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Email string `json:"email"`
	Role  Role   `json:"role"`
}

type Attachment struct {
	URL         string `bson:"url" json:"url" validate:"required,url"`
	Name        string `bson:"name,omitempty" json:"name,omitempty" validate:"max=255"`
	ContentType string `bson:"content_type,omitempty" json:"content_type,omitempty"`
	Size        int64  `bson:"size,omitempty" json:"size,omitempty" validate:"gte=0"`
}

type Reply struct {
	ID          string       `bson:"id" json:"id"`
	SenderID    string       `bson:"sender_id" json:"sender_id"`
	SenderName  string       `bson:"sender_name" json:"sender_name"`
	SenderRole  Role         `bson:"sender_role" json:"sender_role"`
	Content     string       `bson:"content" json:"content"`
	Attachments []Attachment `bson:"attachments" json:"attachments"`
	CreatedAt   time.Time    `bson:"created_at" json:"created_at"`
	EditedAt    *time.Time   `bson:"edited_at,omitempty" json:"edited_at,omitempty"`
	IsEdited    bool         `bson:"is_edited" json:"is_edited"`
	ReadBy      Receipts     `bson:"read_by" json:"read_by"`
	DeliveredTo Receipts     `bson:"delivered_to" json:"delivered_to"`
}

// Thread is a support conversation: the client's originating message plus
// its replies, stored as a single document.
type Thread struct {
	ID          string       `bson:"_id" json:"id"`
	SenderID    string       `bson:"sender_id" json:"sender_id"`
	SenderName  string       `bson:"sender_name" json:"sender_name"`
	SenderEmail string       `bson:"sender_email" json:"sender_email"`
	SenderRole  Role         `bson:"sender_role" json:"sender_role"`
	Subject     string       `bson:"subject" json:"subject"`
	Content     string       `bson:"content" json:"content"`
	Attachments []Attachment `bson:"attachments" json:"attachments"`
	Status      Status       `bson:"status" json:"status"`

	AssignedTo      string     `bson:"assigned_to,omitempty" json:"assigned_to,omitempty"`
	AssignedToName  string     `bson:"assigned_to_name,omitempty" json:"assigned_to_name,omitempty"`
	AssignedToEmail string     `bson:"assigned_to_email,omitempty" json:"-"`
	AcceptedAt      *time.Time `bson:"accepted_at,omitempty" json:"accepted_at,omitempty"`

	Replies     []Reply  `bson:"replies" json:"replies"`
	ReadBy      Receipts `bson:"read_by" json:"read_by"`
	DeliveredTo Receipts `bson:"delivered_to" json:"delivered_to"`

	LastReadByClient      *time.Time `bson:"last_read_by_client,omitempty" json:"last_read_by_client,omitempty"`
	LastReadByAgent       *time.Time `bson:"last_read_by_agent,omitempty" json:"last_read_by_agent,omitempty"`
	LastDeliveredToClient *time.Time `bson:"last_delivered_to_client,omitempty" json:"last_delivered_to_client,omitempty"`
	LastDeliveredToAgent  *time.Time `bson:"last_delivered_to_agent,omitempty" json:"last_delivered_to_agent,omitempty"`

	IsEdited  bool      `bson:"is_edited" json:"is_edited"`
	Version   int64     `bson:"version" json:"version"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"`
	UpdatedAt time.Time `bson:"updated_at" json:"updated_at"`
}

// Normalize replaces nil slices so documents round-trip as empty arrays.
func (t *Thread) Normalize() {
	if t.Attachments == nil {
		t.Attachments = []Attachment{}
	}
	if t.Replies == nil {
		t.Replies = []Reply{}
	}
	if t.ReadBy == nil {
		t.ReadBy = Receipts{}
	}
	if t.DeliveredTo == nil {
		t.DeliveredTo = Receipts{}
	}
	for i := range t.Replies {
		r := &t.Replies[i]
		if r.Attachments == nil {
			r.Attachments = []Attachment{}
		}
		if r.ReadBy == nil {
			r.ReadBy = Receipts{}
		}
		if r.DeliveredTo == nil {
			r.DeliveredTo = Receipts{}
		}
	}
}

// Clone returns a deep copy; stores hand out clones so callers never share
// slices with persisted state.
func (t *Thread) Clone() *Thread {
	if t == nil {
		return nil
	}
	c := *t
	c.Attachments = append([]Attachment(nil), t.Attachments...)
	c.ReadBy = append(Receipts(nil), t.ReadBy...)
	c.DeliveredTo = append(Receipts(nil), t.DeliveredTo...)
	c.AcceptedAt = cloneTime(t.AcceptedAt)
	c.LastReadByClient = cloneTime(t.LastReadByClient)
	c.LastReadByAgent = cloneTime(t.LastReadByAgent)
	c.LastDeliveredToClient = cloneTime(t.LastDeliveredToClient)
	c.LastDeliveredToAgent = cloneTime(t.LastDeliveredToAgent)
	c.Replies = make([]Reply, len(t.Replies))
	for i, r := range t.Replies {
		r.Attachments = append([]Attachment(nil), r.Attachments...)
		r.ReadBy = append(Receipts(nil), r.ReadBy...)
		r.DeliveredTo = append(Receipts(nil), r.DeliveredTo...)
		r.EditedAt = cloneTime(r.EditedAt)
		c.Replies[i] = r
	}
	c.Normalize()
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

func (t *Thread) FindReply(id string) (*Reply, bool) {
	for i := range t.Replies {
		if t.Replies[i].ID == id {
			return &t.Replies[i], true
		}
	}
	return nil, false
}

func (t *Thread) AppendReply(r Reply) {
	t.Replies = append(t.Replies, r)
}

func (t *Thread) RemoveReply(id string) bool {
	for i := range t.Replies {
		if t.Replies[i].ID == id {
			t.Replies = append(t.Replies[:i], t.Replies[i+1:]...)
			return true
		}
	}
	return false
}

// HasStaffReply reports whether an agent or admin has replied.
func (t *Thread) HasStaffReply() bool {
	for _, r := range t.Replies {
		if r.SenderRole.IsStaff() {
			return true
		}
	}
	return false
}

// LastAuthorRole is the role behind the most recent content item.
func (t *Thread) LastAuthorRole() Role {
	if n := len(t.Replies); n > 0 {
		return t.Replies[n-1].SenderRole
	}
	return t.SenderRole
}

// Assign claims the thread for a staff member.
func (t *Thread) Assign(a Actor, at time.Time) {
	t.AssignedTo = a.ID
	t.AssignedToName = a.Name
	t.AssignedToEmail = a.Email
	t.AcceptedAt = &at
	t.Status = StatusAccepted
}

func (t *Thread) ClearAssignment() {
	t.AssignedTo = ""
	t.AssignedToName = ""
	t.AssignedToEmail = ""
	t.AcceptedAt = nil
}

// UnreadForClient: some staff reply follows the client's own last reply, or
// the client never replied and staff did.
func (t *Thread) UnreadForClient(clientID string) bool {
	from := 0
	for i, r := range t.Replies {
		if r.SenderID == clientID {
			from = i + 1
		}
	}
	for _, r := range t.Replies[from:] {
		if r.SenderRole.IsStaff() {
			return true
		}
	}
	return false
}

// UnreadForStaff: the thread is still open and the client spoke last.
func (t *Thread) UnreadForStaff() bool {
	switch t.Status {
	case StatusPending, StatusAccepted, StatusResolved:
		return t.LastAuthorRole() == RoleClient
	}
	return false
}
