package migrations

func init() {
	Register(Migration{
		Version: 3,
		Name:    "extraction_accumulators",
		Up:      createExtractionAccumulators,
	})
}

func createExtractionAccumulators(db Execer) error {
	_, err := db.Exec(`
		CREATE TABLE IF NOT EXISTS extraction_accumulators (
			conversation_id TEXT PRIMARY KEY,
			appointment_date TEXT NOT NULL DEFAULT '',
			appointment_time TEXT NOT NULL DEFAULT '',
			client_email TEXT NOT NULL DEFAULT '',
			client_phone TEXT NOT NULL DEFAULT '',
			client_name TEXT NOT NULL DEFAULT '',
			turns INTEGER NOT NULL DEFAULT 0,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY(conversation_id) REFERENCES conversations(id) ON DELETE CASCADE
		)
	`)
	return err
}
