package domain

import "time"

// Receipt records that a user has read or received a piece of content.
type Receipt struct {
	UserID string    `bson:"user_id" json:"user_id"`
	At     time.Time `bson:"at" json:"at"`
}

// Receipts holds at most one entry per user.
type Receipts []Receipt

func (rs Receipts) Get(userID string) (Receipt, bool) {
	for _, r := range rs {
		if r.UserID == userID {
			return r, true
		}
	}
	return Receipt{}, false
}

// Upsert records at for userID, replacing an existing entry. An entry younger
// than window is left alone and Upsert reports false.
func (rs *Receipts) Upsert(userID string, at time.Time, window time.Duration) bool {
	for i := range *rs {
		if (*rs)[i].UserID != userID {
			continue
		}
		if window > 0 && at.Sub((*rs)[i].At) < window {
			return false
		}
		(*rs)[i].At = at
		return true
	}
	*rs = append(*rs, Receipt{UserID: userID, At: at})
	return true
}

type ReceiptKind string

const (
	ReceiptRead      ReceiptKind = "read"
	ReceiptDelivered ReceiptKind = "delivered"
)

func (t *Thread) receipts(kind ReceiptKind) *Receipts {
	if kind == ReceiptRead {
		return &t.ReadBy
	}
	return &t.DeliveredTo
}

func (r *Reply) receipts(kind ReceiptKind) *Receipts {
	if kind == ReceiptRead {
		return &r.ReadBy
	}
	return &r.DeliveredTo
}

// MarkReceipts stamps every item the actor did not author: the root message
// and each reply. Items with a receipt younger than window are skipped. It
// reports whether anything changed.
func (t *Thread) MarkReceipts(kind ReceiptKind, a Actor, at time.Time, window time.Duration) bool {
	changed := false
	if t.SenderID != a.ID && t.receipts(kind).Upsert(a.ID, at, window) {
		changed = true
	}
	for i := range t.Replies {
		r := &t.Replies[i]
		if r.SenderID == a.ID {
			continue
		}
		if r.receipts(kind).Upsert(a.ID, at, window) {
			changed = true
		}
	}
	if !changed {
		return false
	}

	stamp := at
	switch {
	case kind == ReceiptRead && a.Role == RoleClient:
		t.LastReadByClient = &stamp
	case kind == ReceiptRead:
		t.LastReadByAgent = &stamp
	case a.Role == RoleClient:
		t.LastDeliveredToClient = &stamp
	default:
		t.LastDeliveredToAgent = &stamp
	}
	return true
}
