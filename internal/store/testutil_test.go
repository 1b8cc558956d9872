package store

import (
	"context"
	"database/sql"
	"testing"

	"github.com/dukerupert/daybook/internal/database"
)

func openTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.Open(":memory:")
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return db
}

// createTestUser inserts a profile and returns its id.
func createTestUser(t *testing.T, db *sql.DB, id string) string {
	t.Helper()
	if err := NewProfileStore(db).Ensure(context.Background(), id, id+"@example.com"); err != nil {
		t.Fatalf("ensure profile: %v", err)
	}
	return id
}
