package proposal

import (
	"fmt"

	"github.com/pricefleet/repricer/pkg/model"
)

// Action is a lifecycle operation on a proposal.
type Action string

const (
	ActionApprove  Action = "approve"
	ActionReject   Action = "reject"
	ActionComplete Action = "complete"
)

// ParseAction validates a review action value. Only approve and reject are
// reviewer actions; complete is reserved for the dispatcher.
func ParseAction(v string) (Action, error) {
	switch Action(v) {
	case ActionApprove:
		return ActionApprove, nil
	case ActionReject:
		return ActionReject, nil
	}
	return "", fmt.Errorf("%w: action must be 'approve' or 'reject', got %q", model.ErrInvalidTransition, v)
}

// TransitionPlan describes one legal lifecycle transition: the set of statuses
// it may start from and the status it lands on. AllowedFrom includes the target
// status itself where the transition is idempotent under retry.
type TransitionPlan struct {
	Action      Action
	AllowedFrom []model.Status
	To          model.Status
}

// transitions is the single source of truth for the lifecycle state machine.
// Terminal states (Rejected, Completed) appear in no AllowedFrom set other than
// their own idempotent re-entry, so nothing ever leaves them.
var transitions = map[Action]TransitionPlan{
	ActionApprove: {
		Action:      ActionApprove,
		AllowedFrom: []model.Status{model.StatusPending, model.StatusApproved},
		To:          model.StatusApproved,
	},
	ActionReject: {
		Action:      ActionReject,
		AllowedFrom: []model.Status{model.StatusPending, model.StatusRejected},
		To:          model.StatusRejected,
	},
	ActionComplete: {
		Action:      ActionComplete,
		AllowedFrom: []model.Status{model.StatusApproved},
		To:          model.StatusCompleted,
	},
}

// Plan returns the transition plan for an action.
func Plan(a Action) (TransitionPlan, error) {
	plan, ok := transitions[a]
	if !ok {
		return TransitionPlan{}, fmt.Errorf("%w: unknown action %q", model.ErrInvalidTransition, a)
	}
	return plan, nil
}

// Allows reports whether the plan permits starting from the given status.
func (p TransitionPlan) Allows(from model.Status) bool {
	for _, s := range p.AllowedFrom {
		if s == from {
			return true
		}
	}
	return false
}
