package proposal

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pricefleet/repricer/pkg/model"
)

func TestParseAction(t *testing.T) {
	for _, valid := range []string{"approve", "reject"} {
		a, err := ParseAction(valid)
		require.NoError(t, err)
		assert.Equal(t, Action(valid), a)
	}

	for _, invalid := range []string{"", "complete", "APPROVE", "delete"} {
		_, err := ParseAction(invalid)
		assert.ErrorIs(t, err, model.ErrInvalidTransition, "action %q", invalid)
	}
}

func TestPlan_TransitionTable(t *testing.T) {
	tests := []struct {
		action Action
		from   model.Status
		allows bool
	}{
		{ActionApprove, model.StatusPending, true},
		{ActionApprove, model.StatusApproved, true}, // idempotent re-approve
		{ActionApprove, model.StatusRejected, false},
		{ActionApprove, model.StatusCompleted, false},

		{ActionReject, model.StatusPending, true},
		{ActionReject, model.StatusRejected, true}, // idempotent re-reject
		{ActionReject, model.StatusApproved, false},
		{ActionReject, model.StatusCompleted, false},

		{ActionComplete, model.StatusApproved, true},
		{ActionComplete, model.StatusPending, false},
		{ActionComplete, model.StatusRejected, false},
		{ActionComplete, model.StatusCompleted, false},
	}

	for _, tt := range tests {
		plan, err := Plan(tt.action)
		require.NoError(t, err)
		assert.Equal(t, tt.allows, plan.Allows(tt.from),
			"%s from %s", tt.action, tt.from)
	}
}

func TestPlan_NoEscapeFromTerminalStates(t *testing.T) {
	// Nothing in the transition table may leave Rejected or Completed.
	for _, action := range []Action{ActionApprove, ActionReject, ActionComplete} {
		plan, err := Plan(action)
		require.NoError(t, err)
		for _, from := range plan.AllowedFrom {
			if from.Terminal() {
				assert.Equal(t, plan.To, from,
					"terminal state %s may only re-enter itself", from)
			}
		}
	}
}

func TestPlan_UnknownAction(t *testing.T) {
	_, err := Plan(Action("escalate"))
	assert.ErrorIs(t, err, model.ErrInvalidTransition)
}
