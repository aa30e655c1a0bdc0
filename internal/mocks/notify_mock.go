package mocks

import (
	"context"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/notify"
	"github.com/stretchr/testify/mock"
)

// MockConfirmationSender is a mock implementation of the confirmation email sender
type MockConfirmationSender struct {
	mock.Mock
}

func (m *MockConfirmationSender) SendConfirmationEmail(ctx context.Context, consultant *database.Consultant, booking *database.Booking, meetLink string) notify.Result {
	args := m.Called(ctx, consultant, booking, meetLink)
	return args.Get(0).(notify.Result)
}

// MockNotifier is a mock implementation of the Notifier interface
type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Send(ctx context.Context, c notify.Confirmation) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockNotifier) Name() string {
	args := m.Called()
	return args.String(0)
}

func (m *MockNotifier) IsConfigured() bool {
	args := m.Called()
	return args.Bool(0)
}
