package lifecycle

import (
	"fmt"
	"time"

	"github.com/fathima-sithara/support-service/internal/apperr"
	"github.com/fathima-sithara/support-service/internal/domain"
	"github.com/fathima-sithara/support-service/internal/policy"
)

// agentMoves lists the status changes an assigned agent may make. Leaving
// pending happens only through Accept.
var agentMoves = map[domain.Status]map[domain.Status]bool{
	domain.StatusAccepted: {domain.StatusResolved: true, domain.StatusClosed: true},
	domain.StatusResolved: {domain.StatusAccepted: true, domain.StatusClosed: true},
	domain.StatusClosed:   {domain.StatusAccepted: true, domain.StatusResolved: true},
}

// CheckTransition validates a status change of t to target by actor.
// Admins may move any thread to any other status.
func CheckTransition(actor domain.Actor, t *domain.Thread, target domain.Status) error {
	if !target.Valid() {
		return apperr.Validation(fmt.Sprintf("invalid status %q", target), nil)
	}
	if err := policy.Authorize(policy.ActionChangeStatus, actor, t); err != nil {
		return err
	}
	if t.Status == target {
		return apperr.Conflict(fmt.Sprintf("thread is already %s", target), nil)
	}
	if actor.Role == domain.RoleAdmin {
		return nil
	}
	if !agentMoves[t.Status][target] {
		return apperr.Forbidden(fmt.Sprintf("cannot move thread from %s to %s", t.Status, target))
	}
	return nil
}

// Transition applies a checked status change. Returning a thread to pending
// releases its assignment so it can be claimed again.
func Transition(t *domain.Thread, target domain.Status) {
	t.Status = target
	if target == domain.StatusPending {
		t.ClearAssignment()
	}
}

// CheckAccept validates a claim of t by actor.
func CheckAccept(actor domain.Actor, t *domain.Thread) error {
	if actor.Role.IsStaff() && t.Status == domain.StatusAccepted {
		return apperr.Conflict("thread already accepted", map[string]string{"assigned_to": t.AssignedTo})
	}
	return policy.Authorize(policy.ActionAccept, actor, t)
}

func Accept(t *domain.Thread, actor domain.Actor, at time.Time) {
	t.Assign(actor, at)
}
