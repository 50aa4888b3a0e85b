package database

import (
	"database/sql"
	"fmt"
	"time"
)

// SyncOperation is one row of the device's sync history.
type SyncOperation struct {
	ID         int64
	Operation  string
	Location   string
	StartedAt  time.Time
	FinishedAt sql.NullTime
	Status     string
	Sent       int
	Received   int
	Message    string
}

// StartSyncOperation records the start of an operation and returns its id.
func (s *SQLiteStore) StartSyncOperation(operation, location string) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO sync_operations (operation, location, started_at) VALUES (?, ?, ?)`,
		operation, location, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("inserting sync operation: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading sync operation id: %w", err)
	}
	return id, nil
}

// FinishSyncOperation stores the final status and counts of an operation.
func (s *SQLiteStore) FinishSyncOperation(id int64, status string, sent, received int, message string) error {
	_, err := s.db.Exec(`
		UPDATE sync_operations
		SET finished_at = ?, status = ?, sent = ?, received = ?, message = ?
		WHERE id = ?`,
		s.now().UTC(), status, sent, received, message, id)
	if err != nil {
		return fmt.Errorf("finishing sync operation %d: %w", id, err)
	}
	return nil
}

// ListSyncOperations returns up to limit operations, newest first.
func (s *SQLiteStore) ListSyncOperations(limit int) ([]*SyncOperation, error) {
	rows, err := s.db.Query(`
		SELECT id, operation, location, started_at, finished_at, status, sent, received, message
		FROM sync_operations
		ORDER BY id DESC
		LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	defer rows.Close()

	var ops []*SyncOperation
	for rows.Next() {
		op := &SyncOperation{}
		if err := rows.Scan(&op.ID, &op.Operation, &op.Location, &op.StartedAt, &op.FinishedAt,
			&op.Status, &op.Sent, &op.Received, &op.Message); err != nil {
			return nil, fmt.Errorf("scanning sync operation: %w", err)
		}
		ops = append(ops, op)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sync operations: %w", err)
	}
	return ops, nil
}
