package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"fieldsync/internal/database/migrations"
	"fieldsync/internal/fieldsync"
	"fieldsync/internal/model"

	_ "github.com/mattn/go-sqlite3" // SQLite driver
)

var _ fieldsync.Store = (*SQLiteStore)(nil)

// SQLiteStore is the device-local store. Each location's record set, each
// pending entry and the location list are kept as JSON payloads.
type SQLiteStore struct {
	db   *sql.DB
	path string
	now  func() time.Time
}

// OpenSQLiteStore opens path (or ":memory:") and applies pending migrations.
func OpenSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := OpenConnection(path)
	if err != nil {
		return nil, err
	}
	if err := migrations.Up(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrating %s: %w", path, err)
	}
	return &SQLiteStore{db: db, path: path, now: time.Now}, nil
}

// OpenConnection opens a SQLite database with the PRAGMAs the store needs.
// The pool is capped at one connection: ":memory:" databases are per
// connection, and a single writer avoids SQLITE_BUSY on device storage.
func OpenConnection(path string) (*sql.DB, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// Records implements fieldsync.Store.
func (s *SQLiteStore) Records(location string) ([]model.InspectionRecord, error) {
	var payload string
	err := s.db.QueryRow(`SELECT payload FROM location_records WHERE location = ?`, location).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return []model.InspectionRecord{}, nil
	}
	if err != nil {
		return nil, fieldsync.NewStorageError("read records", err)
	}

	records := model.DecodeRecords([]byte(payload))
	model.SortByCreatedAt(records)
	return records, nil
}

// PutRecords implements fieldsync.Store.
func (s *SQLiteStore) PutRecords(location string, records []model.InspectionRecord) error {
	filed := make([]model.InspectionRecord, len(records))
	for i, r := range records {
		filed[i] = r
		filed[i].SheetName = location
	}
	payload, err := model.EncodeRecords(filed)
	if err != nil {
		return fieldsync.NewStorageError("write records", err)
	}

	_, err = s.db.Exec(`
		INSERT INTO location_records (location, payload, updated_at) VALUES (?, ?, ?)
		ON CONFLICT (location) DO UPDATE SET payload = excluded.payload, updated_at = excluded.updated_at`,
		location, string(payload), s.now().UTC())
	if err != nil {
		return fieldsync.NewStorageError("write records", err)
	}
	return nil
}

// Pending implements fieldsync.Store.
func (s *SQLiteStore) Pending() ([]model.InspectionRecord, error) {
	rows, err := s.db.Query(`SELECT sheet_name, payload FROM pending_queue ORDER BY seq`)
	if err != nil {
		return nil, fieldsync.NewStorageError("read pending", err)
	}
	defer rows.Close()

	queue := []model.InspectionRecord{}
	for rows.Next() {
		var sheet, payload string
		if err := rows.Scan(&sheet, &payload); err != nil {
			return nil, fieldsync.NewStorageError("read pending", err)
		}
		r, ok := model.DecodeRecord([]byte(payload))
		if !ok {
			continue
		}
		r.SheetName = sheet
		queue = append(queue, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fieldsync.NewStorageError("read pending", err)
	}
	return queue, nil
}

// AddPending implements fieldsync.Store.
func (s *SQLiteStore) AddPending(record model.InspectionRecord) error {
	if record.ID == "" {
		return fieldsync.NewValidationError("queue record", "record has no id")
	}
	payload, err := json.Marshal(record)
	if err != nil {
		return fieldsync.NewStorageError("queue record", err)
	}

	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fieldsync.NewStorageError("queue record", err)
	}
	defer tx.Rollback()

	// Deleting first gives the entry a new seq, moving it to the tail.
	if _, err := tx.ExecContext(ctx, `DELETE FROM pending_queue WHERE id = ?`, record.ID); err != nil {
		return fieldsync.NewStorageError("queue record", err)
	}
	if _, err := tx.ExecContext(ctx,
		`INSERT INTO pending_queue (id, sheet_name, payload, queued_at) VALUES (?, ?, ?, ?)`,
		record.ID, record.SheetName, string(payload), s.now().UTC()); err != nil {
		return fieldsync.NewStorageError("queue record", err)
	}
	if err := tx.Commit(); err != nil {
		return fieldsync.NewStorageError("queue record", err)
	}
	return nil
}

// RemovePending implements fieldsync.Store.
func (s *SQLiteStore) RemovePending(id string) error {
	if _, err := s.db.Exec(`DELETE FROM pending_queue WHERE id = ?`, id); err != nil {
		return fieldsync.NewStorageError("dequeue record", err)
	}
	return nil
}

// Locations implements fieldsync.Store.
func (s *SQLiteStore) Locations() ([]string, error) {
	rows, err := s.db.Query(`SELECT name FROM location_cache ORDER BY position`)
	if err != nil {
		return nil, fieldsync.NewStorageError("read locations", err)
	}
	defer rows.Close()

	locations := []string{}
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fieldsync.NewStorageError("read locations", err)
		}
		locations = append(locations, name)
	}
	if err := rows.Err(); err != nil {
		return nil, fieldsync.NewStorageError("read locations", err)
	}
	return locations, nil
}

// PutLocations implements fieldsync.Store.
func (s *SQLiteStore) PutLocations(locations []string) error {
	ctx := context.Background()
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fieldsync.NewStorageError("write locations", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM location_cache`); err != nil {
		return fieldsync.NewStorageError("write locations", err)
	}
	for i, name := range locations {
		if _, err := tx.ExecContext(ctx, `INSERT INTO location_cache (position, name) VALUES (?, ?)`, i, name); err != nil {
			return fieldsync.NewStorageError("write locations", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fieldsync.NewStorageError("write locations", err)
	}
	return nil
}

// Path returns the path the store was opened with.
func (s *SQLiteStore) Path() string {
	return s.path
}

// CheckMigrations reports whether the schema matches this binary.
func (s *SQLiteStore) CheckMigrations() error {
	return migrations.Check(s.db)
}

// Close implements fieldsync.Store.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
