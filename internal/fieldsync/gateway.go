package fieldsync

import (
	"context"
	"encoding/json"

	"fieldsync/internal/model"
)

// Gateway is the client for the authoritative remote store.
// Every call is independent and never retried here.
type Gateway interface {
	// ListLocations returns the names of all location sheets.
	ListLocations(ctx context.Context) ([]string, error)

	// FetchRecords returns every record of a location. Items without an id
	// are dropped.
	FetchRecords(ctx context.Context, location string) ([]model.InspectionRecord, error)

	// SaveRecord upserts a record by id into the given location. The sent
	// copy always carries sheetName = location.
	SaveRecord(ctx context.Context, record model.InspectionRecord, location string) (Ack, error)
}

// Ack is whatever the remote returned for a write. Empty when the remote
// sent no body.
type Ack struct {
	Raw json.RawMessage
}

// Connectivity is sampled once at the start of each controller operation.
type Connectivity interface {
	Online(ctx context.Context) bool
}
