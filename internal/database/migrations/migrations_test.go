package migrations

import (
	"database/sql"
	"errors"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMemory(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", ":memory:?_foreign_keys=on")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestRunMigrations(t *testing.T) {
	db := openMemory(t)

	applied, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Len(t, applied, len(registry))

	again, err := RunMigrations(db)
	require.NoError(t, err)
	assert.Empty(t, again)

	exists, err := ColumnExists(db, "conversations", "available_slots")
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestFailedMigrationRollsBack(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })

	broken := errors.New("boom")
	registry = append(append([]Migration{}, saved...), Migration{
		Version: 999,
		Name:    "broken",
		Up: func(db Execer) error {
			if _, err := db.Exec(`CREATE TABLE half_done (id INTEGER)`); err != nil {
				return err
			}
			return broken
		},
	})

	db := openMemory(t)
	applied, err := RunMigrations(db)
	require.ErrorIs(t, err, broken)
	assert.Len(t, applied, len(saved))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE name = 'half_done'`).Scan(&n))
	assert.Zero(t, n)
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM schema_migrations WHERE version = 999`).Scan(&n))
	assert.Zero(t, n)
}

func TestDuplicateVersionRejected(t *testing.T) {
	saved := registry
	t.Cleanup(func() { registry = saved })
	registry = append(append([]Migration{}, saved...), Migration{Version: 1, Name: "again", Up: func(Execer) error { return nil }})

	_, err := RunMigrations(openMemory(t))
	assert.ErrorContains(t, err, "duplicate migration version 1")
}

func TestAddColumnIfNotExists(t *testing.T) {
	db := openMemory(t)
	_, err := db.Exec(`CREATE TABLE things (id INTEGER)`)
	require.NoError(t, err)

	require.NoError(t, AddColumnIfNotExists(db, "things", "label", "TEXT"))
	require.NoError(t, AddColumnIfNotExists(db, "things", "label", "TEXT"))

	exists, err := ColumnExists(db, "things", "label")
	require.NoError(t, err)
	assert.True(t, exists)
}
