package schema

import (
	"database/sql"
	"path/filepath"
	"testing"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/require"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := sql.Open("sqlite3", "file:"+filepath.Join(t.TempDir(), "schema.db"))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })
	return db
}

func TestMigrateUpFromScratch(t *testing.T) {
	db := newTestDB(t)

	require.NoError(t, MigrateUp(db, "sqlite3"))
	require.NoError(t, CheckStatus(db, "sqlite3"))

	// migrating an already migrated database is a no-op
	require.NoError(t, MigrateUp(db, "sqlite3"))

	for _, table := range []string{
		"contribution", "ehr", "status", "status_history",
		"folder", "folder_history", "folder_hierarchy", "folder_hierarchy_history",
		"folder_items", "folder_items_history", "object_ref", "object_ref_history",
		"party_identified", "db_state",
	} {
		var name string
		err := db.QueryRow(`select name from sqlite_master where type = 'table' and name = ?`, table).Scan(&name)
		require.NoError(t, err, "table %s should exist", table)
	}
}

func TestCheckStatusUnmigrated(t *testing.T) {
	db := newTestDB(t)

	require.Error(t, CheckStatus(db, "sqlite3"))
}

func TestUnsupportedDriver(t *testing.T) {
	db := newTestDB(t)

	require.Error(t, MigrateUp(db, "postgres"))
}

func TestSubjectUniquenessEnforced(t *testing.T) {
	db := newTestDB(t)
	require.NoError(t, MigrateUp(db, "sqlite3"))

	insert := `
    insert into status (id, ehr_id, party, in_contribution, sys_transaction)
    values (?, ?, ?, ?, '2026-01-01 00:00:00')`
	_, err := db.Exec(insert, "s1", "e1", "p1", "c1")
	require.NoError(t, err)

	// same party on a second ehr violates the unique index
	_, err = db.Exec(insert, "s2", "e2", "p1", "c2")
	require.Error(t, err)
	require.Contains(t, err.Error(), "UNIQUE constraint failed")
}
