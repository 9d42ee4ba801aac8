package store

import (
	"database/sql"
	"path/filepath"
	"testing"

	"github.com/colefenn/tally/internal/database"
)

// testDB opens a migrated database in a per-test temp dir. File-backed so
// every pooled connection sees the same database.
func testDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(filepath.Join(t.TempDir(), "store_test.db"))
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}
