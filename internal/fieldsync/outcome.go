package fieldsync

import (
	"fmt"

	"fieldsync/internal/model"
)

// State is the controller's sync activity, shown as the sync indicator.
type State int

const (
	StateIdle State = iota
	StateLoadingLocal
	StateSyncingRemote
	StateManualSyncing
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateLoadingLocal:
		return "loading"
	case StateSyncingRemote:
		return "syncing"
	case StateManualSyncing:
		return "manual-sync"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// OutcomeStatus is the result class of a controller operation.
type OutcomeStatus int

const (
	// OutcomeOK: the operation completed, including any remote round trip.
	OutcomeOK OutcomeStatus = iota
	// OutcomeSavedLocally: the record is durable on the device and still queued.
	OutcomeSavedLocally
	// OutcomeOffline: no connectivity. Nothing remote was attempted.
	OutcomeOffline
	// OutcomeFailed: the operation could not complete. See Err.
	OutcomeFailed
	// OutcomeStale: a newer selection superseded this one. Its result was dropped.
	OutcomeStale
)

func (s OutcomeStatus) String() string {
	switch s {
	case OutcomeOK:
		return "ok"
	case OutcomeSavedLocally:
		return "saved-locally"
	case OutcomeOffline:
		return "offline"
	case OutcomeFailed:
		return "failed"
	case OutcomeStale:
		return "stale"
	default:
		return fmt.Sprintf("OutcomeStatus(%d)", int(s))
	}
}

// Outcome is what every controller operation reports instead of failing.
type Outcome struct {
	Status    OutcomeStatus
	Sent      int // records confirmed by the remote
	Received  int // records fetched from the remote
	Remaining int // pending queue length afterwards
	Err       error
	Warnings  []error // non-fatal storage problems
}

// Message renders the outcome as a one-line notification.
func (o Outcome) Message() string {
	var msg string
	switch o.Status {
	case OutcomeOK:
		msg = "done"
		if o.Sent > 0 || o.Received > 0 {
			msg = fmt.Sprintf("sent %d, received %d", o.Sent, o.Received)
		}
	case OutcomeSavedLocally:
		msg = "saved locally, not yet synced"
	case OutcomeOffline:
		msg = "offline"
	case OutcomeStale:
		msg = "superseded by a newer selection"
	case OutcomeFailed:
		msg = "failed"
		if o.Sent > 0 {
			msg = fmt.Sprintf("failed after sending %d", o.Sent)
		}
	}
	if o.Err != nil {
		msg += ": " + o.Err.Error()
	}
	if o.Remaining > 0 {
		msg += fmt.Sprintf(" (%d pending)", o.Remaining)
	}
	return msg
}

// View is the snapshot handed to the presentation layer.
type View struct {
	Location     string
	Locations    []string
	Records      []model.InspectionRecord
	Selection    Selection
	Current      model.InspectionRecord // viewed record or the new-record draft
	Previous     *model.InspectionRecord
	State        State
	PendingCount int
}

// Cursor is the integer cursor of the selection.
func (v View) Cursor() int {
	return v.Selection.Cursor(len(v.Records))
}
