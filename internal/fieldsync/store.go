package fieldsync

import "fieldsync/internal/model"

// Store is the durable local state of a device: one record set per
// location, one global pending queue and the cached location list.
//
// Reads never fail because of stored content. Corrupt entries degrade to an
// empty default and malformed records are dropped. Write failures are
// returned as StorageError.
type Store interface {
	// Records returns the cached record set for a location, ascending by createdAt.
	Records(location string) ([]model.InspectionRecord, error)

	// PutRecords replaces the cached record set for a location.
	// Every stored record has its sheetName forced to location.
	PutRecords(location string, records []model.InspectionRecord) error

	// Pending returns the pending queue in insertion order.
	Pending() ([]model.InspectionRecord, error)

	// AddPending enqueues a record at the tail. An existing entry with the
	// same id is removed in the same transaction.
	AddPending(record model.InspectionRecord) error

	// RemovePending dequeues the entry with the given id. Missing ids are a no-op.
	RemovePending(id string) error

	// Locations returns the cached location list in its stored order.
	Locations() ([]string, error)

	// PutLocations replaces the cached location list.
	PutLocations(locations []string) error

	// Close releases the underlying database.
	Close() error
}
