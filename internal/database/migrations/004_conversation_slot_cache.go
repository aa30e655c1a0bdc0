package migrations

import "fmt"

func init() {
	Register(Migration{
		Version: 4,
		Name:    "conversation_slot_cache",
		Up:      addConversationSlotCache,
	})
}

func addConversationSlotCache(db Execer) error {
	if err := AddColumnIfNotExists(db, "conversations", "available_slots", "TEXT"); err != nil {
		return fmt.Errorf("failed to add available_slots: %w", err)
	}
	if err := AddColumnIfNotExists(db, "conversations", "slots_fetched_at", "DATETIME"); err != nil {
		return fmt.Errorf("failed to add slots_fetched_at: %w", err)
	}
	return nil
}
