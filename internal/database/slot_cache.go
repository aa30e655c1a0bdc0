package database

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// GetCachedSlots returns the raw slot payload cached on a conversation and
// when it was fetched. A nil time means nothing is cached.
func (d *DB) GetCachedSlots(conversationID string) (string, *time.Time, error) {
	var payload sql.NullString
	var fetchedAt sql.NullTime
	err := d.QueryRow(`
		SELECT available_slots, slots_fetched_at FROM conversations WHERE id = ?
	`, conversationID).Scan(&payload, &fetchedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil, fmt.Errorf("conversation %s: %w", conversationID, ErrNotFound)
	}
	if err != nil {
		return "", nil, fmt.Errorf("failed to get cached slots: %w", err)
	}
	if !payload.Valid || !fetchedAt.Valid {
		return "", nil, nil
	}
	return payload.String, &fetchedAt.Time, nil
}

// SaveCachedSlots stores the slot payload on a conversation.
func (d *DB) SaveCachedSlots(conversationID, payload string, fetchedAt time.Time) error {
	_, err := d.Exec(`
		UPDATE conversations SET available_slots = ?, slots_fetched_at = ? WHERE id = ?
	`, payload, fetchedAt.UTC(), conversationID)
	if err != nil {
		return fmt.Errorf("failed to save cached slots: %w", err)
	}
	return nil
}

// ClearExpiredSlotCaches drops slot payloads fetched before the cutoff.
func (d *DB) ClearExpiredSlotCaches(before time.Time) (int64, error) {
	result, err := d.Exec(`
		UPDATE conversations SET available_slots = NULL, slots_fetched_at = NULL
		WHERE slots_fetched_at IS NOT NULL AND slots_fetched_at < ?
	`, before.UTC())
	if err != nil {
		return 0, fmt.Errorf("failed to clear slot caches: %w", err)
	}
	return result.RowsAffected()
}

// ClearCachedSlots drops the slot payload of one conversation.
func (d *DB) ClearCachedSlots(conversationID string) error {
	_, err := d.Exec(`
		UPDATE conversations SET available_slots = NULL, slots_fetched_at = NULL WHERE id = ?
	`, conversationID)
	if err != nil {
		return fmt.Errorf("failed to clear cached slots: %w", err)
	}
	return nil
}
