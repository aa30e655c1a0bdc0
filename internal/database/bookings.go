package database

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"
)

// BookingStatus represents the lifecycle state of a booking
type BookingStatus string

const (
	BookingStatusConfirmed BookingStatus = "confirmed"
	BookingStatusCancelled BookingStatus = "cancelled"
)

// ActionType names a completed booking action.
type ActionType string

const (
	ActionCreate       ActionType = "CREATE"
	ActionModify       ActionType = "MODIFY"
	ActionCancel       ActionType = "CANCEL"
	ActionAddAttendees ActionType = "ADD_ATTENDEES"
)

// CompletedAction is the single most recent action executed on a booking.
// Each write replaces the previous value.
type CompletedAction struct {
	Type             ActionType       `json:"type"`
	CompletedAt      time.Time        `json:"completed_at"`
	ConversationID   string           `json:"conversation_id"`
	TriggerMessageID int64            `json:"trigger_message_id,omitempty"`
	Details          CompletedDetails `json:"details"`
}

// CompletedDetails carries the type-specific payload of a CompletedAction.
// AttendeesAdded keeps nil distinct from an empty list.
type CompletedDetails struct {
	OldDate        string   `json:"old_date,omitempty"`
	OldTime        string   `json:"old_time,omitempty"`
	NewDate        string   `json:"new_date,omitempty"`
	NewTime        string   `json:"new_time,omitempty"`
	AttendeesAdded []string `json:"attendees_added"`
}

// Booking represents one appointment tied to a conversation.
type Booking struct {
	ID                   int64            `json:"id"`
	ConsultantID         int64            `json:"consultant_id"`
	ConversationID       *string          `json:"conversation_id,omitempty"`
	PublicConversationID *string          `json:"public_conversation_id,omitempty"`
	AppointmentDate      string           `json:"appointment_date"`
	AppointmentTime      string           `json:"appointment_time"`
	AppointmentEndTime   string           `json:"appointment_end_time"`
	ClientName           string           `json:"client_name,omitempty"`
	ClientEmail          string           `json:"client_email"`
	ClientPhone          string           `json:"client_phone,omitempty"`
	GoogleEventID        *string          `json:"google_event_id,omitempty"`
	MeetLink             string           `json:"meet_link,omitempty"`
	Status               BookingStatus    `json:"status"`
	LastCompletedAction  *CompletedAction `json:"last_completed_action,omitempty"`
	ConfirmedAt          time.Time        `json:"confirmed_at"`
	CancelledAt          *time.Time       `json:"cancelled_at,omitempty"`
	CreatedAt            time.Time        `json:"created_at"`
	UpdatedAt            time.Time        `json:"updated_at"`
}

// HasCalendarEvent reports whether the booking is linked to a calendar event.
func (b *Booking) HasCalendarEvent() bool {
	return b.GoogleEventID != nil && *b.GoogleEventID != ""
}

// Ref returns the conversation the booking belongs to.
func (b *Booking) Ref() ConversationRef {
	if b.PublicConversationID != nil {
		return ConversationRef{ID: *b.PublicConversationID, Public: true}
	}
	if b.ConversationID != nil {
		return ConversationRef{ID: *b.ConversationID}
	}
	return ConversationRef{}
}

// SetRef points the booking at ref, clearing the other conversation column.
func (b *Booking) SetRef(ref ConversationRef) {
	id := ref.ID
	if ref.Public {
		b.PublicConversationID, b.ConversationID = &id, nil
	} else {
		b.ConversationID, b.PublicConversationID = &id, nil
	}
}

const bookingColumns = `
	id, consultant_id, conversation_id, public_conversation_id,
	appointment_date, appointment_time, appointment_end_time,
	client_name, client_email, client_phone, google_event_id, meet_link,
	status, last_completed_action, confirmed_at, cancelled_at, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanBooking(row rowScanner) (*Booking, error) {
	var b Booking
	var convID, publicConvID, googleEventID, lastAction sql.NullString
	var cancelledAt sql.NullTime

	err := row.Scan(
		&b.ID, &b.ConsultantID, &convID, &publicConvID,
		&b.AppointmentDate, &b.AppointmentTime, &b.AppointmentEndTime,
		&b.ClientName, &b.ClientEmail, &b.ClientPhone, &googleEventID, &b.MeetLink,
		&b.Status, &lastAction, &b.ConfirmedAt, &cancelledAt, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	b.ConversationID = stringPtr(convID)
	b.PublicConversationID = stringPtr(publicConvID)
	b.GoogleEventID = stringPtr(googleEventID)
	if cancelledAt.Valid {
		b.CancelledAt = &cancelledAt.Time
	}
	if lastAction.Valid && lastAction.String != "" {
		var action CompletedAction
		if err := json.Unmarshal([]byte(lastAction.String), &action); err != nil {
			return nil, fmt.Errorf("failed to decode last completed action: %w", err)
		}
		b.LastCompletedAction = &action
	}

	return &b, nil
}

func encodeAction(action *CompletedAction) (sql.NullString, error) {
	if action == nil {
		return sql.NullString{}, nil
	}
	data, err := json.Marshal(action)
	if err != nil {
		return sql.NullString{}, fmt.Errorf("failed to encode completed action: %w", err)
	}
	return sql.NullString{String: string(data), Valid: true}, nil
}

// CreateBooking inserts a confirmed booking. It returns ErrBookingExists when
// the conversation already holds a confirmed booking.
func (d *DB) CreateBooking(b *Booking) (*Booking, error) {
	if (b.ConversationID == nil) == (b.PublicConversationID == nil) {
		return nil, fmt.Errorf("booking must reference exactly one conversation")
	}

	now := time.Now().UTC()
	if b.ConfirmedAt.IsZero() {
		b.ConfirmedAt = now
	}
	lastAction, err := encodeAction(b.LastCompletedAction)
	if err != nil {
		return nil, err
	}

	result, err := d.Exec(`
		INSERT INTO bookings (
			consultant_id, conversation_id, public_conversation_id,
			appointment_date, appointment_time, appointment_end_time,
			client_name, client_email, client_phone, google_event_id, meet_link,
			status, last_completed_action, confirmed_at, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		b.ConsultantID, nullString(b.ConversationID), nullString(b.PublicConversationID),
		b.AppointmentDate, b.AppointmentTime, b.AppointmentEndTime,
		b.ClientName, b.ClientEmail, b.ClientPhone, nullString(b.GoogleEventID), b.MeetLink,
		BookingStatusConfirmed, lastAction, b.ConfirmedAt.UTC(), now, now,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrBookingExists
		}
		return nil, fmt.Errorf("failed to create booking: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get booking id: %w", err)
	}

	b.ID = id
	b.Status = BookingStatusConfirmed
	b.CreatedAt = now
	b.UpdatedAt = now
	return b, nil
}

// GetBookingByID retrieves a booking by its ID
func (d *DB) GetBookingByID(id int64) (*Booking, error) {
	b, err := scanBooking(d.QueryRow(`SELECT `+bookingColumns+` FROM bookings WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("booking %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get booking: %w", err)
	}
	return b, nil
}

// GetConfirmedBooking returns the confirmed booking of a conversation, or nil when there is none.
func (d *DB) GetConfirmedBooking(ref ConversationRef) (*Booking, error) {
	b, err := scanBooking(d.QueryRow(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE `+ref.column()+` = ? AND status = ?
	`, ref.ID, BookingStatusConfirmed))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get confirmed booking: %w", err)
	}
	return b, nil
}

// FindRecentlyCancelledBooking returns the latest booking of the conversation
// cancelled at or after since, or nil.
func (d *DB) FindRecentlyCancelledBooking(ref ConversationRef, since time.Time) (*Booking, error) {
	b, err := scanBooking(d.QueryRow(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE `+ref.column()+` = ? AND status = ? AND cancelled_at >= ?
		ORDER BY cancelled_at DESC
		LIMIT 1
	`, ref.ID, BookingStatusCancelled, since.UTC()))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find cancelled booking: %w", err)
	}
	return b, nil
}

// ListConsultantBookings lists every booking of a consultant on the given date.
func (d *DB) ListConsultantBookings(consultantID int64, date string) ([]Booking, error) {
	rows, err := d.Query(`
		SELECT `+bookingColumns+` FROM bookings
		WHERE consultant_id = ? AND appointment_date = ?
		ORDER BY appointment_time
	`, consultantID, date)
	if err != nil {
		return nil, fmt.Errorf("failed to list bookings: %w", err)
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan booking: %w", err)
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

// SetBookingCalendarEvent links a booking to its calendar event.
func (d *DB) SetBookingCalendarEvent(id int64, eventID, meetLink string) error {
	_, err := d.Exec(`
		UPDATE bookings SET google_event_id = ?, meet_link = ?, updated_at = ?
		WHERE id = ?
	`, eventID, meetLink, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set booking calendar event: %w", err)
	}
	return nil
}

// RescheduleBooking moves a booking and records the modification.
func (d *DB) RescheduleBooking(id int64, date, startTime, endTime string, action *CompletedAction) error {
	encoded, err := encodeAction(action)
	if err != nil {
		return err
	}
	_, err = d.Exec(`
		UPDATE bookings SET
			appointment_date = ?, appointment_time = ?, appointment_end_time = ?,
			last_completed_action = ?, updated_at = ?
		WHERE id = ?
	`, date, startTime, endTime, encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to reschedule booking: %w", err)
	}
	return nil
}

// CancelBooking flips a booking to cancelled and records the cancellation.
func (d *DB) CancelBooking(id int64, cancelledAt time.Time, action *CompletedAction) error {
	encoded, err := encodeAction(action)
	if err != nil {
		return err
	}
	_, err = d.Exec(`
		UPDATE bookings SET status = ?, cancelled_at = ?, last_completed_action = ?, updated_at = ?
		WHERE id = ?
	`, BookingStatusCancelled, cancelledAt.UTC(), encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to cancel booking: %w", err)
	}
	return nil
}

// SetLastCompletedAction overwrites the booking's most recent completed action.
func (d *DB) SetLastCompletedAction(id int64, action *CompletedAction) error {
	encoded, err := encodeAction(action)
	if err != nil {
		return err
	}
	_, err = d.Exec(`
		UPDATE bookings SET last_completed_action = ?, updated_at = ? WHERE id = ?
	`, encoded, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("failed to set last completed action: %w", err)
	}
	return nil
}
