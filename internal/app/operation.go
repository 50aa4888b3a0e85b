package app

import "fieldsync/internal/fieldsync"

// SyncOperation tracks a CLI command that touches the pending queue or the
// remote. It lives in memory with ID=0 until persisted to the history table.
type SyncOperation struct {
	ID       int64
	Name     string
	Location string
	Status   string
	Sent     int
	Received int
	Message  string
}

// NewSyncOperation creates a new in-memory operation.
func NewSyncOperation(name, location string) *SyncOperation {
	return &SyncOperation{
		Name:     name,
		Location: location,
		Status:   "running",
	}
}

// Persisted returns true if this operation has been saved to the database.
func (op *SyncOperation) Persisted() bool {
	return op.ID != 0
}

// Record copies an outcome into the operation.
func (op *SyncOperation) Record(o fieldsync.Outcome) {
	op.Status = o.Status.String()
	op.Sent = o.Sent
	op.Received = o.Received
	op.Message = o.Message()
}

// Fail marks the operation as failed with err.
func (op *SyncOperation) Fail(err error) {
	op.Status = fieldsync.OutcomeFailed.String()
	op.Message = err.Error()
}
