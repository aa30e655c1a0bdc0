package booking

import (
	"context"
	"strings"

	"github.com/consultdesk/bookingagent/internal/database"
)

// ExistingBooking is the booking context handed to the extractor.
type ExistingBooking struct {
	Date            string
	Time            string
	Email           string
	Phone           string
	ExternalEventID string

	// Timezone is the consultant's zone, used to resolve relative dates.
	Timezone string
}

// NewExistingBooking builds the extractor context from a stored booking.
func NewExistingBooking(b *database.Booking) ExistingBooking {
	eb := ExistingBooking{
		Date:  b.AppointmentDate,
		Time:  b.AppointmentTime,
		Email: b.ClientEmail,
		Phone: b.ClientPhone,
	}
	if b.HasCalendarEvent() {
		eb.ExternalEventID = *b.GoogleEventID
	}
	return eb
}

// ModificationExtraction is the extractor output when a confirmed booking exists.
type ModificationExtraction struct {
	Intent         Intent
	NewDate        string
	NewTime        string
	Attendees      []string
	ConfirmedTimes int
}

// Action converts the extraction into a typed action, or nil when no
// actionable intent was found.
func (m *ModificationExtraction) Action() Action {
	if m == nil {
		return nil
	}
	switch m.Intent {
	case IntentModify:
		if m.NewDate == "" && m.NewTime == "" {
			return nil
		}
		return ModifyAction{NewDate: m.NewDate, NewTime: m.NewTime}
	case IntentCancel:
		return CancelAction{}
	case IntentAddAttendees:
		if len(m.Attendees) == 0 {
			return nil
		}
		return AddAttendeesAction{Attendees: m.Attendees}
	default:
		return nil
	}
}

// NewBookingExtraction is the extractor output when no booking exists yet.
type NewBookingExtraction struct {
	HasAllData   bool
	IsConfirming bool
	Date         string
	Time         string
	Email        string
	Phone        string
	Name         string
}

// Extractor turns conversation history into structured booking intent.
// Relative dates are resolved in the consultant's timezone.
type Extractor interface {
	ExtractModification(ctx context.Context, history []database.ConversationMessage, existing ExistingBooking) (*ModificationExtraction, error)
	ExtractNewBooking(ctx context.Context, history []database.ConversationMessage, acc *database.ExtractionAccumulator, timezone string) (*NewBookingExtraction, error)
}

// Classifier answers whether a message concerns an existing booking.
type Classifier interface {
	IsBookingRelated(ctx context.Context, message string) (bool, error)
}

// MergeAccumulator folds a fresh extraction into the conversation's
// accumulator. Non-empty extracted fields overwrite; empty ones never erase.
func MergeAccumulator(acc *database.ExtractionAccumulator, conversationID string, ext *NewBookingExtraction) *database.ExtractionAccumulator {
	merged := database.ExtractionAccumulator{ConversationID: conversationID}
	if acc != nil {
		merged = *acc
	}
	if ext == nil {
		return &merged
	}

	merged.Turns++
	overwrite(&merged.Date, ext.Date)
	overwrite(&merged.Time, ext.Time)
	overwrite(&merged.Email, ext.Email)
	overwrite(&merged.Phone, ext.Phone)
	overwrite(&merged.Name, ext.Name)
	return &merged
}

func overwrite(dst *string, value string) {
	if v := strings.TrimSpace(value); v != "" {
		*dst = v
	}
}

// SeedFromCancelled fills the contact fields acc is missing from a booking
// the client cancelled recently, so the extractor sees them as collected.
// Date and time are never carried over.
func SeedFromCancelled(acc *database.ExtractionAccumulator, conversationID string, cancelled *database.Booking) *database.ExtractionAccumulator {
	seeded := database.ExtractionAccumulator{ConversationID: conversationID}
	if acc != nil {
		seeded = *acc
	}
	if cancelled == nil {
		return &seeded
	}
	keep(&seeded.Email, cancelled.ClientEmail)
	keep(&seeded.Phone, cancelled.ClientPhone)
	keep(&seeded.Name, cancelled.ClientName)
	return &seeded
}

func keep(dst *string, fallback string) {
	if strings.TrimSpace(*dst) == "" {
		*dst = strings.TrimSpace(fallback)
	}
}

// CreateActionFrom builds a CREATE action from the merged accumulator.
func CreateActionFrom(acc *database.ExtractionAccumulator) CreateAction {
	if acc == nil {
		return CreateAction{}
	}
	return CreateAction{
		Date:  acc.Date,
		Time:  acc.Time,
		Email: acc.Email,
		Phone: acc.Phone,
		Name:  acc.Name,
	}
}
