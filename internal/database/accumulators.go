package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// ExtractionAccumulator holds booking fields gathered across turns of a
// conversation before a booking exists.
type ExtractionAccumulator struct {
	ConversationID string    `json:"conversation_id"`
	Date           string    `json:"date,omitempty"`
	Time           string    `json:"time,omitempty"`
	Email          string    `json:"email,omitempty"`
	Phone          string    `json:"phone,omitempty"`
	Name           string    `json:"name,omitempty"`
	Turns          int       `json:"turns"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`
}

// IsEmpty reports whether no field has been collected yet.
func (a *ExtractionAccumulator) IsEmpty() bool {
	return a == nil || (a.Date == "" && a.Time == "" && a.Email == "" && a.Phone == "" && a.Name == "")
}

// GetAccumulator returns the conversation's accumulator, or nil when none exists.
func (d *DB) GetAccumulator(conversationID string) (*ExtractionAccumulator, error) {
	var a ExtractionAccumulator
	err := d.QueryRow(`
		SELECT conversation_id, appointment_date, appointment_time, client_email, client_phone,
			client_name, turns, created_at, updated_at
		FROM extraction_accumulators WHERE conversation_id = ?
	`, conversationID).Scan(&a.ConversationID, &a.Date, &a.Time, &a.Email, &a.Phone, &a.Name, &a.Turns, &a.CreatedAt, &a.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get accumulator: %w", err)
	}
	return &a, nil
}

// SaveAccumulator upserts the accumulator state.
func (d *DB) SaveAccumulator(a *ExtractionAccumulator) error {
	now := time.Now().UTC()
	if a.CreatedAt.IsZero() {
		a.CreatedAt = now
	}
	a.UpdatedAt = now

	_, err := d.Exec(`
		INSERT INTO extraction_accumulators (
			conversation_id, appointment_date, appointment_time, client_email, client_phone,
			client_name, turns, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(conversation_id) DO UPDATE SET
			appointment_date = excluded.appointment_date,
			appointment_time = excluded.appointment_time,
			client_email = excluded.client_email,
			client_phone = excluded.client_phone,
			client_name = excluded.client_name,
			turns = excluded.turns,
			updated_at = excluded.updated_at
	`, a.ConversationID, a.Date, a.Time, a.Email, a.Phone, a.Name, a.Turns, a.CreatedAt.UTC(), now)
	if err != nil {
		return fmt.Errorf("failed to save accumulator: %w", err)
	}
	return nil
}

// ClearAccumulator removes the conversation's accumulator.
func (d *DB) ClearAccumulator(conversationID string) error {
	if _, err := d.Exec(`DELETE FROM extraction_accumulators WHERE conversation_id = ?`, conversationID); err != nil {
		return fmt.Errorf("failed to clear accumulator: %w", err)
	}
	return nil
}

// PruneStaleAccumulators deletes accumulators not updated since before.
func (d *DB) PruneStaleAccumulators(before time.Time) (int64, error) {
	result, err := d.Exec(`DELETE FROM extraction_accumulators WHERE updated_at < ?`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to prune accumulators: %w", err)
	}
	return result.RowsAffected()
}
