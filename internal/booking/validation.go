package booking

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/consultdesk/bookingagent/internal/database"
	"github.com/consultdesk/bookingagent/internal/timeutil"
)

var (
	// ErrValidation marks missing or malformed booking data.
	ErrValidation = errors.New("booking validation failed")
	// ErrSlotConflict means the requested slot is busy on the consultant calendar.
	ErrSlotConflict = errors.New("requested slot is not available")
	// ErrNoCalendarEvent means the booking has no calendar event to change.
	ErrNoCalendarEvent = errors.New("booking has no calendar event")
)

// ValidationError describes which field failed and why.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Unwrap() error {
	return ErrValidation
}

func invalid(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}

// IsRecoverable reports whether err leaves the booking untouched and the turn
// should continue with a normal reply.
func IsRecoverable(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrSlotConflict) ||
		errors.Is(err, ErrNoCalendarEvent) ||
		database.IsBookingExists(err)
}

// validSlot parses date and clock in tz and requires the result to be after now.
func validSlot(date, clock, tz string, now time.Time) (time.Time, string, error) {
	if strings.TrimSpace(date) == "" {
		return time.Time{}, "", invalid("date", "missing")
	}
	if _, err := time.Parse(timeutil.DateLayout, strings.TrimSpace(date)); err != nil {
		return time.Time{}, "", invalid("date", "expected YYYY-MM-DD")
	}
	if strings.TrimSpace(clock) == "" {
		return time.Time{}, "", invalid("time", "missing")
	}
	normalized, err := timeutil.NormalizeClock(clock)
	if err != nil {
		return time.Time{}, "", invalid("time", "expected HH:MM")
	}

	start, err := timeutil.ParseSlot(date, normalized, tz)
	if err != nil {
		return time.Time{}, "", invalid("date", err.Error())
	}
	if !start.After(now) {
		return time.Time{}, "", invalid("date", "must be in the future")
	}
	return start, normalized, nil
}

// validateCreate checks a CREATE action and returns the parsed start and the
// normalized action.
func validateCreate(a CreateAction, origin database.Origin, tz string, now time.Time) (time.Time, CreateAction, error) {
	start, clock, err := validSlot(a.Date, a.Time, tz, now)
	if err != nil {
		return time.Time{}, a, err
	}
	a.Date = strings.TrimSpace(a.Date)
	a.Time = clock

	a.Email = strings.TrimSpace(a.Email)
	if a.Email == "" {
		return time.Time{}, a, invalid("email", "missing")
	}
	if !emailPattern.MatchString(a.Email) || strings.ContainsAny(a.Email, " ,;") {
		return time.Time{}, a, invalid("email", "not an email address")
	}

	a.Phone = strings.TrimSpace(a.Phone)
	if a.Phone == "" && origin != database.OriginWeb {
		return time.Time{}, a, invalid("phone", "required for this channel")
	}

	a.Name = strings.TrimSpace(a.Name)
	return start, a, nil
}

// fillFromCancelled completes missing contact fields from a recently
// cancelled booking of the same conversation.
func fillFromCancelled(a CreateAction, cancelled *database.Booking) CreateAction {
	if cancelled == nil {
		return a
	}
	if strings.TrimSpace(a.Email) == "" {
		a.Email = cancelled.ClientEmail
	}
	if strings.TrimSpace(a.Phone) == "" {
		a.Phone = cancelled.ClientPhone
	}
	if strings.TrimSpace(a.Name) == "" {
		a.Name = cancelled.ClientName
	}
	return a
}
