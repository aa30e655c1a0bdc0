package database

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// BookingActionEntry is one row of the append-only booking audit trail.
type BookingActionEntry struct {
	ID               int64            `json:"id"`
	BookingID        int64            `json:"booking_id"`
	ActionType       ActionType       `json:"action_type"`
	Details          CompletedDetails `json:"details"`
	ConversationID   string           `json:"conversation_id"`
	TriggerMessageID int64            `json:"trigger_message_id,omitempty"`
	CreatedAt        time.Time        `json:"created_at"`
}

// AppendBookingAction records an executed action.
func (d *DB) AppendBookingAction(entry *BookingActionEntry) error {
	details, err := json.Marshal(entry.Details)
	if err != nil {
		return fmt.Errorf("failed to encode action details: %w", err)
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}

	var trigger sql.NullInt64
	if entry.TriggerMessageID > 0 {
		trigger = sql.NullInt64{Int64: entry.TriggerMessageID, Valid: true}
	}

	result, err := d.Exec(`
		INSERT INTO booking_actions (booking_id, action_type, details, conversation_id, trigger_message_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, entry.BookingID, entry.ActionType, string(details), entry.ConversationID, trigger, entry.CreatedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to append booking action: %w", err)
	}

	entry.ID, err = result.LastInsertId()
	return err
}

// ListBookingActions returns a booking's audit trail, oldest first.
func (d *DB) ListBookingActions(bookingID int64) ([]BookingActionEntry, error) {
	rows, err := d.Query(`
		SELECT id, booking_id, action_type, details, conversation_id, trigger_message_id, created_at
		FROM booking_actions WHERE booking_id = ? ORDER BY id
	`, bookingID)
	if err != nil {
		return nil, fmt.Errorf("failed to list booking actions: %w", err)
	}
	defer rows.Close()

	var entries []BookingActionEntry
	for rows.Next() {
		var e BookingActionEntry
		var details string
		var trigger sql.NullInt64
		if err := rows.Scan(&e.ID, &e.BookingID, &e.ActionType, &details, &e.ConversationID, &trigger, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan booking action: %w", err)
		}
		if err := json.Unmarshal([]byte(details), &e.Details); err != nil {
			return nil, fmt.Errorf("failed to decode action details: %w", err)
		}
		e.TriggerMessageID = trigger.Int64
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
