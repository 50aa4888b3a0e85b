package database

import (
	"path/filepath"
	"testing"

	"fieldsync/internal/fieldsync"
	"fieldsync/internal/model"
)

// newTestStore opens a migrated in-memory store.
func newTestStore(t *testing.T) *SQLiteStore {
	t.Helper()

	s, err := OpenSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	t.Cleanup(func() {
		s.Close()
	})
	return s
}

func record(id, sheet string, createdAt int64) model.InspectionRecord {
	return model.NewInspectionRecord(id, sheet, "2024-01-01", model.EpochMillis(createdAt))
}

func ids(records []model.InspectionRecord) []string {
	out := make([]string, len(records))
	for i, r := range records {
		out[i] = r.ID
	}
	return out
}

func equalIDs(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestSQLiteStore_Records(t *testing.T) {
	t.Run("empty for unknown location", func(t *testing.T) {
		s := newTestStore(t)

		got, err := s.Records("SiteA")
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		if got == nil || len(got) != 0 {
			t.Errorf("Records() = %v, want empty slice", got)
		}
	})

	t.Run("round trip sorted with sheetName forced", func(t *testing.T) {
		s := newTestStore(t)

		in := []model.InspectionRecord{
			record("b", "Elsewhere", 20),
			record("a", "SiteA", 10),
		}
		in[0].Remarks = "second"
		if err := s.PutRecords("SiteA", in); err != nil {
			t.Fatalf("PutRecords() error = %v", err)
		}

		got, err := s.Records("SiteA")
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		if !equalIDs(ids(got), []string{"a", "b"}) {
			t.Fatalf("Records() ids = %v, want [a b]", ids(got))
		}
		for _, r := range got {
			if r.SheetName != "SiteA" {
				t.Errorf("record %s SheetName = %q, want SiteA", r.ID, r.SheetName)
			}
		}
		if got[1].Remarks != "second" {
			t.Errorf("Remarks = %q, want %q", got[1].Remarks, "second")
		}
		if in[0].SheetName != "Elsewhere" {
			t.Error("PutRecords() modified the caller's slice")
		}
	})

	t.Run("put replaces previous set", func(t *testing.T) {
		s := newTestStore(t)

		if err := s.PutRecords("SiteA", []model.InspectionRecord{record("a", "SiteA", 1)}); err != nil {
			t.Fatalf("PutRecords() error = %v", err)
		}
		if err := s.PutRecords("SiteA", []model.InspectionRecord{record("z", "SiteA", 1)}); err != nil {
			t.Fatalf("PutRecords() error = %v", err)
		}

		got, _ := s.Records("SiteA")
		if !equalIDs(ids(got), []string{"z"}) {
			t.Errorf("Records() ids = %v, want [z]", ids(got))
		}
	})

	t.Run("malformed stored JSON reads as empty", func(t *testing.T) {
		s := newTestStore(t)

		if _, err := s.db.Exec(`INSERT INTO location_records (location, payload) VALUES (?, ?)`, "SiteA", "{not json"); err != nil {
			t.Fatalf("seeding payload: %v", err)
		}

		got, err := s.Records("SiteA")
		if err != nil {
			t.Fatalf("Records() error = %v, want nil", err)
		}
		if len(got) != 0 {
			t.Errorf("Records() = %v, want []", got)
		}
	})

	t.Run("malformed elements are dropped", func(t *testing.T) {
		s := newTestStore(t)

		payload := `[{"id":"a","createdAt":2}, 7, {"remarks":"no id"}, null, {"id":"b","createdAt":1}]`
		if _, err := s.db.Exec(`INSERT INTO location_records (location, payload) VALUES (?, ?)`, "SiteA", payload); err != nil {
			t.Fatalf("seeding payload: %v", err)
		}

		got, err := s.Records("SiteA")
		if err != nil {
			t.Fatalf("Records() error = %v", err)
		}
		if !equalIDs(ids(got), []string{"b", "a"}) {
			t.Errorf("Records() ids = %v, want [b a]", ids(got))
		}
	})
}

func TestSQLiteStore_Pending(t *testing.T) {
	t.Run("keeps insertion order", func(t *testing.T) {
		s := newTestStore(t)

		// Later createdAt first: the queue must not be re-sorted.
		for _, r := range []model.InspectionRecord{record("x", "SiteA", 30), record("y", "SiteB", 10), record("z", "SiteA", 20)} {
			if err := s.AddPending(r); err != nil {
				t.Fatalf("AddPending(%s) error = %v", r.ID, err)
			}
		}

		got, err := s.Pending()
		if err != nil {
			t.Fatalf("Pending() error = %v", err)
		}
		if !equalIDs(ids(got), []string{"x", "y", "z"}) {
			t.Errorf("Pending() ids = %v, want [x y z]", ids(got))
		}
		if got[1].SheetName != "SiteB" {
			t.Errorf("Pending()[1].SheetName = %q, want SiteB", got[1].SheetName)
		}
	})

	t.Run("re-adding replaces and moves to tail", func(t *testing.T) {
		s := newTestStore(t)

		first := record("x", "SiteA", 1)
		s.AddPending(first)
		s.AddPending(record("y", "SiteA", 2))

		updated := first
		updated.Remarks = "edited"
		if err := s.AddPending(updated); err != nil {
			t.Fatalf("AddPending() error = %v", err)
		}

		got, _ := s.Pending()
		if !equalIDs(ids(got), []string{"y", "x"}) {
			t.Fatalf("Pending() ids = %v, want [y x]", ids(got))
		}
		if got[1].Remarks != "edited" {
			t.Errorf("Remarks = %q, want %q", got[1].Remarks, "edited")
		}
	})

	t.Run("queued copy equals the added record", func(t *testing.T) {
		s := newTestStore(t)

		r := record("x", "SiteA", 1)
		r.PressureMpa = "0.250"
		r, _ = r.AttachPhoto(model.PhotoData{Data: "abc", Lat: "35.5", Lon: "", Date: "2024:01:01 10:00:00"})
		if err := s.AddPending(r); err != nil {
			t.Fatalf("AddPending() error = %v", err)
		}

		got, _ := s.Pending()
		if len(got) != 1 || !got[0].Equal(r) {
			t.Errorf("Pending() = %+v, want %+v", got, r)
		}
	})

	t.Run("remove", func(t *testing.T) {
		s := newTestStore(t)

		s.AddPending(record("x", "SiteA", 1))
		s.AddPending(record("y", "SiteA", 2))

		if err := s.RemovePending("x"); err != nil {
			t.Fatalf("RemovePending() error = %v", err)
		}
		if err := s.RemovePending("missing"); err != nil {
			t.Fatalf("RemovePending(missing) error = %v", err)
		}

		got, _ := s.Pending()
		if !equalIDs(ids(got), []string{"y"}) {
			t.Errorf("Pending() ids = %v, want [y]", ids(got))
		}
	})

	t.Run("rejects record without id", func(t *testing.T) {
		s := newTestStore(t)

		err := s.AddPending(model.InspectionRecord{SheetName: "SiteA"})
		if !fieldsync.IsKind(err, fieldsync.ValidationError) {
			t.Errorf("AddPending() error = %v, want ValidationError", err)
		}
	})
}

func TestSQLiteStore_Locations(t *testing.T) {
	s := newTestStore(t)

	got, err := s.Locations()
	if err != nil {
		t.Fatalf("Locations() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Locations() = %v, want empty", got)
	}

	if err := s.PutLocations([]string{"Zeta", "Alpha", "Mid"}); err != nil {
		t.Fatalf("PutLocations() error = %v", err)
	}
	if err := s.PutLocations([]string{"Zeta", "Alpha"}); err != nil {
		t.Fatalf("PutLocations() error = %v", err)
	}

	got, _ = s.Locations()
	if !equalIDs(got, []string{"Zeta", "Alpha"}) {
		t.Errorf("Locations() = %v, want [Zeta Alpha]", got)
	}
}

func TestSQLiteStore_WriteFailureIsStorageError(t *testing.T) {
	s := newTestStore(t)
	s.Close()

	err := s.PutRecords("SiteA", nil)
	if !fieldsync.IsKind(err, fieldsync.StorageError) {
		t.Errorf("PutRecords() on closed store error = %v, want StorageError", err)
	}
	err = s.AddPending(record("x", "SiteA", 1))
	if !fieldsync.IsKind(err, fieldsync.StorageError) {
		t.Errorf("AddPending() on closed store error = %v, want StorageError", err)
	}
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "device.db")

	s, err := OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("OpenSQLiteStore() error = %v", err)
	}
	s.PutRecords("SiteA", []model.InspectionRecord{record("a", "SiteA", 1)})
	s.AddPending(record("a", "SiteA", 1))
	s.PutLocations([]string{"SiteA"})
	s.Close()

	s, err = OpenSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen error = %v", err)
	}
	defer s.Close()

	recs, _ := s.Records("SiteA")
	pending, _ := s.Pending()
	locs, _ := s.Locations()
	if len(recs) != 1 || len(pending) != 1 || len(locs) != 1 {
		t.Errorf("after reopen: records=%d pending=%d locations=%d, want 1 each", len(recs), len(pending), len(locs))
	}
}

func TestSQLiteStore_SyncOperations(t *testing.T) {
	s := newTestStore(t)

	first, err := s.StartSyncOperation("save", "SiteA")
	if err != nil {
		t.Fatalf("StartSyncOperation() error = %v", err)
	}
	if err := s.FinishSyncOperation(first, "saved-locally", 0, 0, "offline"); err != nil {
		t.Fatalf("FinishSyncOperation() error = %v", err)
	}
	second, _ := s.StartSyncOperation("sync", "SiteA")
	if err := s.FinishSyncOperation(second, "ok", 3, 5, ""); err != nil {
		t.Fatalf("FinishSyncOperation() error = %v", err)
	}

	ops, err := s.ListSyncOperations(10)
	if err != nil {
		t.Fatalf("ListSyncOperations() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(ops) = %d, want 2", len(ops))
	}
	if ops[0].ID != second || ops[0].Sent != 3 || ops[0].Received != 5 {
		t.Errorf("ops[0] = %+v, want newest sync with sent=3 received=5", ops[0])
	}
	if !ops[1].FinishedAt.Valid || ops[1].Message != "offline" {
		t.Errorf("ops[1] = %+v, want finished save with message", ops[1])
	}

	limited, _ := s.ListSyncOperations(1)
	if len(limited) != 1 {
		t.Errorf("ListSyncOperations(1) returned %d ops", len(limited))
	}
}
