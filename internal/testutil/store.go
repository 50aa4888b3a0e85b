package testutil

import (
	"testing"

	"fieldsync/internal/database"
)

// NewTestStore opens a migrated in-memory store, closed when the test ends.
func NewTestStore(t *testing.T) *database.SQLiteStore {
	t.Helper()

	s, err := database.OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}
