package notify

import (
	"context"

	"github.com/consultdesk/bookingagent/internal/database"
)

// Confirmation carries what a booking confirmation email needs.
type Confirmation struct {
	Booking    *database.Booking
	Consultant *database.Consultant
	MeetLink   string
}

// Notifier delivers booking confirmations to the client
type Notifier interface {
	// Send delivers the confirmation to the booking's client address
	Send(ctx context.Context, c Confirmation) error
	// Name returns the notifier type name (for logging)
	Name() string
	// IsConfigured returns true if the notifier has server-side config
	IsConfigured() bool
}
