package database

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

// NewTestDB creates an in-memory SQLite database for testing.
// The database is automatically closed when the test completes.
func NewTestDB(t *testing.T) *DB {
	t.Helper()

	db, err := New(":memory:", nil)
	require.NoError(t, err, "failed to create test database")

	t.Cleanup(func() {
		db.Close()
	})

	return db
}

var testConsultantCounter int64 = 0

// CreateTestConsultant creates a consultant with booking enabled and default settings.
func CreateTestConsultant(t *testing.T, db *DB) *Consultant {
	t.Helper()
	testConsultantCounter++

	c, err := db.CreateConsultant(&Consultant{
		Name:           fmt.Sprintf("Test Consultant %d", testConsultantCounter),
		Email:          fmt.Sprintf("consultant%d@example.com", testConsultantCounter),
		BookingEnabled: true,
	})
	require.NoError(t, err, "failed to create test consultant")
	return c
}

// CreateTestConversation creates a conversation of the given kind for consultantID.
func CreateTestConversation(t *testing.T, db *DB, consultantID int64, kind ConversationKind) *Conversation {
	t.Helper()

	origin := OriginWhatsApp
	if kind == ConversationPublic {
		origin = OriginWeb
	}
	conv, err := db.CreateConversation(consultantID, kind, origin, "", "")
	require.NoError(t, err, "failed to create test conversation")
	return conv
}

// StringPtr returns a pointer to the given string
func StringPtr(s string) *string {
	return &s
}
