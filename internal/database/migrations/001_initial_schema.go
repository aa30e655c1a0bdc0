package migrations

func init() {
	Register(Migration{
		Version: 1,
		Name:    "initial_schema",
		Up:      initialSchema,
	})
}

func initialSchema(db Execer) error {
	statements := []string{
		// Consultants and their booking settings
		`CREATE TABLE IF NOT EXISTS consultants (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			name TEXT NOT NULL,
			email TEXT NOT NULL DEFAULT '',
			timezone TEXT NOT NULL DEFAULT 'Europe/Rome',
			appointment_duration_minutes INTEGER NOT NULL DEFAULT 60,
			booking_enabled BOOLEAN NOT NULL DEFAULT 1,
			calendar_id TEXT NOT NULL DEFAULT 'primary',
			working_hours_start INTEGER NOT NULL DEFAULT 9,
			working_hours_end INTEGER NOT NULL DEFAULT 18,
			agent_persona TEXT NOT NULL DEFAULT '',
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)`,

		// OAuth tokens for the consultant's Google Calendar
		`CREATE TABLE IF NOT EXISTS google_tokens (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			consultant_id INTEGER NOT NULL UNIQUE,
			access_token_encrypted BLOB NOT NULL,
			refresh_token_encrypted BLOB NOT NULL,
			token_type TEXT NOT NULL DEFAULT 'Bearer',
			expiry DATETIME,
			scopes TEXT,
			email TEXT NOT NULL DEFAULT '',
			updated_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			FOREIGN KEY(consultant_id) REFERENCES consultants(id) ON DELETE CASCADE
		)`,

		// Conversations: internal (managed channels such as WhatsApp) or public (web link)
		`CREATE TABLE IF NOT EXISTS conversations (
			id TEXT PRIMARY KEY,
			consultant_id INTEGER NOT NULL,
			kind TEXT NOT NULL CHECK(kind IN ('internal', 'public')),
			origin TEXT NOT NULL,
			client_identifier TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL DEFAULT '',
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(consultant_id) REFERENCES consultants(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversations_consultant ON conversations(consultant_id)`,
		`CREATE UNIQUE INDEX IF NOT EXISTS ux_conversations_client
			ON conversations(consultant_id, origin, client_identifier)
			WHERE client_identifier != ''`,

		// Conversation history
		`CREATE TABLE IF NOT EXISTS conversation_messages (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			conversation_id TEXT NOT NULL,
			sender TEXT NOT NULL CHECK(sender IN ('client', 'ai')),
			text TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)`,
		`CREATE INDEX IF NOT EXISTS idx_conversation_messages_conversation ON conversation_messages(conversation_id, id)`,
	}

	return execAll(db, statements)
}
