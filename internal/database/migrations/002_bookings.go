package migrations

import "fmt"

func init() {
	Register(Migration{
		Version: 2,
		Name:    "bookings",
		Up:      createBookings,
	})
}

// createBookings adds the bookings table. Each booking belongs to exactly one
// internal or public conversation, and a conversation may hold at most one
// confirmed booking at a time.
func createBookings(db Execer) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS bookings (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			consultant_id INTEGER NOT NULL,
			conversation_id TEXT,
			public_conversation_id TEXT,
			appointment_date TEXT NOT NULL,
			appointment_time TEXT NOT NULL,
			appointment_end_time TEXT NOT NULL,
			client_name TEXT NOT NULL DEFAULT '',
			client_email TEXT NOT NULL,
			client_phone TEXT NOT NULL DEFAULT '',
			google_event_id TEXT,
			meet_link TEXT NOT NULL DEFAULT '',
			status TEXT NOT NULL DEFAULT 'confirmed' CHECK(status IN ('confirmed', 'cancelled')),
			last_completed_action TEXT,
			confirmed_at DATETIME NOT NULL,
			cancelled_at DATETIME,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			CHECK((conversation_id IS NULL) <> (public_conversation_id IS NULL)),
			FOREIGN KEY(consultant_id) REFERENCES consultants(id) ON DELETE CASCADE,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id),
			FOREIGN KEY(public_conversation_id) REFERENCES conversations(id)
		)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_confirmed_conversation
			ON bookings(conversation_id)
			WHERE status = 'confirmed' AND conversation_id IS NOT NULL`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_bookings_confirmed_public_conversation
			ON bookings(public_conversation_id)
			WHERE status = 'confirmed' AND public_conversation_id IS NOT NULL`,
		`CREATE INDEX IF NOT EXISTS idx_bookings_consultant_date ON bookings(consultant_id, appointment_date)`,

		// Append-only audit trail; the dedup guard reads last_completed_action instead
		`CREATE TABLE IF NOT EXISTS booking_actions (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			booking_id INTEGER NOT NULL,
			action_type TEXT NOT NULL CHECK(action_type IN ('CREATE', 'MODIFY', 'CANCEL', 'ADD_ATTENDEES')),
			details TEXT NOT NULL DEFAULT '{}',
			conversation_id TEXT NOT NULL,
			trigger_message_id INTEGER,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(booking_id) REFERENCES bookings(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_booking_actions_booking ON booking_actions(booking_id, id)`,
	}

	if err := execAll(db, statements); err != nil {
		return fmt.Errorf("failed to create bookings schema: %w", err)
	}
	return nil
}
