package booking

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultdesk/bookingagent/internal/database"
)

func TestModificationExtractionAction(t *testing.T) {
	tests := []struct {
		name string
		ext  *ModificationExtraction
		want Action
	}{
		{"nil", nil, nil},
		{"none", &ModificationExtraction{Intent: IntentNone}, nil},
		{"modify", &ModificationExtraction{Intent: IntentModify, NewDate: "2030-05-17"}, ModifyAction{NewDate: "2030-05-17"}},
		{"modify without target", &ModificationExtraction{Intent: IntentModify}, nil},
		{"cancel", &ModificationExtraction{Intent: IntentCancel, ConfirmedTimes: 1}, CancelAction{}},
		{"attendees", &ModificationExtraction{Intent: IntentAddAttendees, Attendees: []string{"a@x.com"}}, AddAttendeesAction{Attendees: []string{"a@x.com"}}},
		{"attendees empty", &ModificationExtraction{Intent: IntentAddAttendees}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.ext.Action())
		})
	}
}

func TestMergeAccumulator(t *testing.T) {
	acc := MergeAccumulator(nil, "conv-1", &NewBookingExtraction{Date: "2030-05-17", Email: "mario@test.com"})
	require.NotNil(t, acc)
	assert.Equal(t, "conv-1", acc.ConversationID)
	assert.Equal(t, 1, acc.Turns)

	acc = MergeAccumulator(acc, "conv-1", &NewBookingExtraction{Time: "15:00", Email: "  "})
	assert.Equal(t, 2, acc.Turns)
	assert.Equal(t, "2030-05-17", acc.Date)
	assert.Equal(t, "15:00", acc.Time)
	assert.Equal(t, "mario@test.com", acc.Email, "empty fields never erase")

	acc = MergeAccumulator(acc, "conv-1", &NewBookingExtraction{Date: "2030-05-18"})
	assert.Equal(t, "2030-05-18", acc.Date)

	assert.Equal(t, CreateAction{Date: "2030-05-18", Time: "15:00", Email: "mario@test.com"}, CreateActionFrom(acc))
	assert.Equal(t, CreateAction{}, CreateActionFrom(nil))
}

func TestNewExistingBooking(t *testing.T) {
	b := &database.Booking{
		AppointmentDate: "2030-05-10",
		AppointmentTime: "10:00",
		ClientEmail:     "mario@test.com",
		GoogleEventID:   database.StringPtr("evt-1"),
	}
	assert.Equal(t, ExistingBooking{Date: "2030-05-10", Time: "10:00", Email: "mario@test.com", ExternalEventID: "evt-1"}, NewExistingBooking(b))

	b.GoogleEventID = nil
	assert.Empty(t, NewExistingBooking(b).ExternalEventID)
}

func TestSeedFromCancelled(t *testing.T) {
	cancelled := &database.Booking{
		AppointmentDate: "2030-05-10",
		AppointmentTime: "10:00",
		ClientName:      "Mario",
		ClientEmail:     "mario@test.com",
		ClientPhone:     "333123456",
	}

	t.Run("fills missing contact fields only", func(t *testing.T) {
		acc := &database.ExtractionAccumulator{ConversationID: "c1", Date: "2030-05-11", Email: "nuovo@test.com"}
		seeded := SeedFromCancelled(acc, "c1", cancelled)
		assert.Equal(t, "nuovo@test.com", seeded.Email)
		assert.Equal(t, "333123456", seeded.Phone)
		assert.Equal(t, "Mario", seeded.Name)
		assert.Equal(t, "2030-05-11", seeded.Date)
		assert.Empty(t, seeded.Time)
		assert.Empty(t, acc.Phone)
	})

	t.Run("nil accumulator", func(t *testing.T) {
		seeded := SeedFromCancelled(nil, "c1", cancelled)
		assert.Equal(t, "c1", seeded.ConversationID)
		assert.Equal(t, "mario@test.com", seeded.Email)
		assert.Empty(t, seeded.Date)
	})

	t.Run("no cancelled booking", func(t *testing.T) {
		seeded := SeedFromCancelled(nil, "c1", nil)
		assert.True(t, seeded.IsEmpty())
	})
}
