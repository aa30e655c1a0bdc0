package mocks

import (
	"context"

	"github.com/consultdesk/bookingagent/internal/booking"
	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/stretchr/testify/mock"
)

// MockExtractor is a mock implementation of the booking extractor
type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) ExtractModification(ctx context.Context, history []database.ConversationMessage, existing booking.ExistingBooking) (*booking.ModificationExtraction, error) {
	args := m.Called(ctx, history, existing)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.ModificationExtraction), args.Error(1)
}

func (m *MockExtractor) ExtractNewBooking(ctx context.Context, history []database.ConversationMessage, acc *database.ExtractionAccumulator, timezone string) (*booking.NewBookingExtraction, error) {
	args := m.Called(ctx, history, acc, timezone)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*booking.NewBookingExtraction), args.Error(1)
}

// MockClassifier is a mock implementation of the booking relevance classifier
type MockClassifier struct {
	mock.Mock
}

func (m *MockClassifier) IsBookingRelated(ctx context.Context, message string) (bool, error) {
	args := m.Called(ctx, message)
	return args.Bool(0), args.Error(1)
}

// MockCalendarProvider is a mock implementation of booking.CalendarProvider
type MockCalendarProvider struct {
	mock.Mock
}

func (m *MockCalendarProvider) ForConsultant(ctx context.Context, consultant *database.Consultant) (booking.Calendar, error) {
	args := m.Called(ctx, consultant)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(booking.Calendar), args.Error(1)
}
