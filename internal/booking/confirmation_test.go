package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEvaluateConfirmation(t *testing.T) {
	existing := ExistingBooking{Date: "2030-05-10", Time: "10:00", Email: "mario@test.com"}

	tests := []struct {
		name      string
		action    Action
		confirmed int
		cleared   bool
	}{
		{"cancel without confirmation", CancelAction{}, 0, false},
		{"cancel after first confirmation", CancelAction{}, 1, false},
		{"cancel after second confirmation", CancelAction{}, 2, true},
		{"modify without confirmation", ModifyAction{NewDate: "2030-05-17", NewTime: "11:00"}, 0, false},
		{"modify confirmed", ModifyAction{NewDate: "2030-05-17", NewTime: "11:00"}, 1, true},
		{"modify confirmed twice", ModifyAction{NewTime: "11:00"}, 3, true},
		{"create without confirmation", CreateAction{Date: "2030-05-17", Time: "11:00"}, 0, false},
		{"create confirmed", CreateAction{Date: "2030-05-17", Time: "11:00"}, 1, true},
		{"attendees need no confirmation", AddAttendeesAction{Attendees: []string{"a@x.com"}}, 0, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := EvaluateConfirmation(tt.action, tt.confirmed, existing)
			assert.Equal(t, tt.cleared, d.Cleared)
			if tt.cleared {
				assert.Nil(t, d.Pending)
				return
			}
			require.NotNil(t, d.Pending)
			assert.Equal(t, tt.action.Intent(), d.Pending.Intent)
			assert.Equal(t, tt.confirmed, d.Pending.ConfirmedTimes)
			assert.Equal(t, RequiredConfirmations(tt.action.Intent()), d.Pending.RequiredConfirmations)
			assert.Equal(t, existing, d.Pending.Booking)
		})
	}
}

func TestPendingInstructions(t *testing.T) {
	existing := ExistingBooking{Date: "2030-05-10", Time: "10:00"}

	t.Run("modify restates both slots", func(t *testing.T) {
		d := EvaluateConfirmation(ModifyAction{NewDate: "2030-05-17", NewTime: "11:00"}, 0, existing)
		text := d.Pending.Instructions()
		assert.Contains(t, text, "venerdì 10 maggio 2030 alle 10:00")
		assert.Contains(t, text, "venerdì 17 maggio 2030 alle 11:00")
		assert.Contains(t, text, "Conferme ricevute: 0 su 1.")
		assert.Contains(t, text, notDoneYet)
	})

	t.Run("modify keeps current date when only time changes", func(t *testing.T) {
		d := EvaluateConfirmation(ModifyAction{NewTime: "15:00"}, 0, existing)
		assert.Contains(t, d.Pending.Instructions(), "venerdì 10 maggio 2030 alle 15:00")
	})

	t.Run("first cancel is empathetic", func(t *testing.T) {
		d := EvaluateConfirmation(CancelAction{}, 0, existing)
		text := d.Pending.Instructions()
		assert.Contains(t, text, "empatia")
		assert.Contains(t, text, "obiettivi")
		assert.Contains(t, text, "spostarlo")
		assert.Contains(t, text, "Conferme ricevute: 0 su 2.")
	})

	t.Run("second cancel asks final confirmation", func(t *testing.T) {
		d := EvaluateConfirmation(CancelAction{}, 1, existing)
		text := d.Pending.Instructions()
		assert.Contains(t, text, "conferma finale")
		assert.NotContains(t, text, "empatia")
		assert.Contains(t, text, "Conferme ricevute: 1 su 2.")
	})

	t.Run("nil context", func(t *testing.T) {
		var p *PendingModificationContext
		assert.Empty(t, p.Instructions())
	})
}
