package mocks

import (
	"context"
	"time"

	"github.com/consultdesk/bookingagent/internal/gcal"
	"github.com/stretchr/testify/mock"
)

// MockCalendar is a mock implementation of the consultant calendar
type MockCalendar struct {
	mock.Mock
}

func (m *MockCalendar) CreateEvent(ctx context.Context, input gcal.EventInput) (*gcal.CreatedEvent, error) {
	args := m.Called(ctx, input)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gcal.CreatedEvent), args.Error(1)
}

func (m *MockCalendar) UpdateEvent(ctx context.Context, eventID string, start time.Time, duration time.Duration, tz string) error {
	args := m.Called(ctx, eventID, start, duration, tz)
	return args.Error(0)
}

func (m *MockCalendar) DeleteEvent(ctx context.Context, eventID string) error {
	args := m.Called(ctx, eventID)
	return args.Error(0)
}

func (m *MockCalendar) AddAttendees(ctx context.Context, eventID string, emails []string) (*gcal.AttendeesResult, error) {
	args := m.Called(ctx, eventID, emails)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*gcal.AttendeesResult), args.Error(1)
}

func (m *MockCalendar) IsSlotFree(ctx context.Context, start, end time.Time) (bool, error) {
	args := m.Called(ctx, start, end)
	return args.Bool(0), args.Error(1)
}

func (m *MockCalendar) ListAvailableSlots(ctx context.Context, q gcal.SlotQuery) ([]gcal.Slot, error) {
	args := m.Called(ctx, q)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]gcal.Slot), args.Error(1)
}
