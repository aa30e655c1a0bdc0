package booking

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

func TestValidateCreate(t *testing.T) {
	now, err := timeutil.ParseSlot("2030-05-10", "12:00", "Europe/Rome")
	require.NoError(t, err)

	valid := CreateAction{Date: "2030-05-11", Time: "9.30", Email: " mario@test.com ", Phone: "333123456"}

	tests := []struct {
		name   string
		action func(CreateAction) CreateAction
		origin database.Origin
		field  string
	}{
		{"valid", func(a CreateAction) CreateAction { return a }, database.OriginWhatsApp, ""},
		{"missing date", func(a CreateAction) CreateAction { a.Date = ""; return a }, database.OriginWhatsApp, "date"},
		{"bad date", func(a CreateAction) CreateAction { a.Date = "11/05/2030"; return a }, database.OriginWhatsApp, "date"},
		{"missing time", func(a CreateAction) CreateAction { a.Time = ""; return a }, database.OriginWhatsApp, "time"},
		{"bad time", func(a CreateAction) CreateAction { a.Time = "25:00"; return a }, database.OriginWhatsApp, "time"},
		{"past slot", func(a CreateAction) CreateAction { a.Date = "2030-05-10"; a.Time = "11:00"; return a }, database.OriginWhatsApp, "date"},
		{"slot equal to now", func(a CreateAction) CreateAction { a.Date = "2030-05-10"; a.Time = "12:00"; return a }, database.OriginWhatsApp, "date"},
		{"missing email", func(a CreateAction) CreateAction { a.Email = ""; return a }, database.OriginWhatsApp, "email"},
		{"bad email", func(a CreateAction) CreateAction { a.Email = "mario at test"; return a }, database.OriginWhatsApp, "email"},
		{"missing phone on whatsapp", func(a CreateAction) CreateAction { a.Phone = ""; return a }, database.OriginWhatsApp, "phone"},
		{"missing phone on web", func(a CreateAction) CreateAction { a.Phone = ""; return a }, database.OriginWeb, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			start, got, err := validateCreate(tt.action(valid), tt.origin, "Europe/Rome", now)
			if tt.field == "" {
				require.NoError(t, err)
				assert.Equal(t, "09:30", got.Time)
				assert.Equal(t, "mario@test.com", got.Email)
				assert.True(t, start.After(now))
				return
			}
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Equal(t, tt.field, verr.Field)
			assert.ErrorIs(t, err, ErrValidation)
			assert.True(t, IsRecoverable(err))
		})
	}
}

func TestFillFromCancelled(t *testing.T) {
	cancelled := &database.Booking{ClientEmail: "old@test.com", ClientPhone: "333000000", ClientName: "Mario"}

	got := fillFromCancelled(CreateAction{Email: "new@test.com"}, cancelled)
	assert.Equal(t, CreateAction{Email: "new@test.com", Phone: "333000000", Name: "Mario"}, got)

	got = fillFromCancelled(CreateAction{Email: "new@test.com"}, nil)
	assert.Equal(t, CreateAction{Email: "new@test.com"}, got)
}

func TestIsRecoverable(t *testing.T) {
	assert.True(t, IsRecoverable(ErrSlotConflict))
	assert.True(t, IsRecoverable(ErrNoCalendarEvent))
	assert.True(t, IsRecoverable(fmt.Errorf("create: %w", database.ErrBookingExists)))
	assert.True(t, IsRecoverable(invalid("email", "missing")))
	assert.False(t, IsRecoverable(errors.New("disk full")))
	assert.False(t, IsRecoverable(nil))
}
