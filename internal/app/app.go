package app

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"fieldsync/internal/config"
	"fieldsync/internal/database"
	"fieldsync/internal/fieldsync"
	"fieldsync/internal/gateway"
	"fieldsync/internal/handoff"
	"fieldsync/internal/model"
)

// FieldApp is the application layer between the CLI and the controller.
// It constructs all dependencies from config, exposes location-addressed
// operations, records them in the sync history and closes the store on Close.
type FieldApp struct {
	cfg        *config.Config
	store      *database.SQLiteStore
	controller *fieldsync.Controller
	logger     fieldsync.Logger
	logFile    io.Closer
	clock      fieldsync.Clock
	codec      handoff.Codec
}

// NewFieldApp creates a fully wired FieldApp from the given config. Log
// lines also go to logOut when it is non-nil. The caller must call Close.
func NewFieldApp(cfg *config.Config, logOut io.Writer) (*FieldApp, error) {
	clock := fieldsync.RealClock{}

	opID := clock.Now().UTC().Format("20060102T150405Z")
	slogger, logFile, err := newLogger(cfg.LogDir, cfg.Log, opID, logOut)
	if err != nil {
		return nil, fmt.Errorf("creating logger: %w", err)
	}
	logger := &slogAdapter{l: slogger}

	store, err := database.NewStoreFromConfig(cfg.Store, cfg.DeviceID)
	if err != nil {
		logFile.Close()
		return nil, fmt.Errorf("creating store: %w", err)
	}
	if err := store.CheckMigrations(); err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("store schema out of date: %w", err)
	}

	gw, err := gateway.NewGatewayFromConfig(cfg.Remote, logger, clock)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating gateway: %w", err)
	}

	conn, err := gateway.NewConnectivityFromConfig(cfg.Connectivity, cfg.Remote)
	if err != nil {
		store.Close()
		logFile.Close()
		return nil, fmt.Errorf("creating connectivity check: %w", err)
	}

	return &FieldApp{
		cfg:        cfg,
		store:      store,
		controller: fieldsync.NewController(store, gw, conn, logger, clock, fieldsync.RandomSuffix{}),
		logger:     logger,
		logFile:    logFile,
		clock:      clock,
	}, nil
}

// Controller exposes the underlying controller.
func (a *FieldApp) Controller() *fieldsync.Controller {
	return a.controller
}

// Start loads the location list and, when none is selected yet, opens the
// first one. The second outcome is the zero Outcome when nothing was opened.
func (a *FieldApp) Start(ctx context.Context) (fieldsync.Outcome, fieldsync.Outcome) {
	loaded := a.controller.LoadLocations(ctx)

	v := a.controller.View()
	if v.Location != "" || len(v.Locations) == 0 {
		return loaded, fieldsync.Outcome{}
	}
	return loaded, a.Open(ctx, v.Locations[0])
}

// Locations refreshes and returns the known locations.
func (a *FieldApp) Locations(ctx context.Context) ([]string, fieldsync.Outcome) {
	o := a.controller.LoadLocations(ctx)
	return a.controller.View().Locations, o
}

// Open selects location and waits for its background refresh.
func (a *FieldApp) Open(ctx context.Context, location string) fieldsync.Outcome {
	return <-a.controller.SelectLocation(ctx, location)
}

// Show opens location and moves the cursor. A negative cursor keeps the
// latest record.
func (a *FieldApp) Show(ctx context.Context, location string, cursor int) (fieldsync.View, fieldsync.Outcome) {
	o := a.Open(ctx, location)
	if cursor >= 0 {
		return a.controller.Jump(cursor), o
	}
	return a.controller.View(), o
}

// NewDraft opens location and returns the new-record draft.
func (a *FieldApp) NewDraft(ctx context.Context, location string) (model.InspectionRecord, fieldsync.Outcome) {
	o := a.Open(ctx, location)
	return a.controller.StartNew().Current, o
}

// SaveJSON saves a record read from JSON under location. When its id names
// a record already at location, data is an edit and missing fields keep
// their stored values. Otherwise missing fields, the id included, come from
// a fresh draft.
func (a *FieldApp) SaveJSON(ctx context.Context, location string, data []byte) fieldsync.Outcome {
	op := NewSyncOperation("save", location)
	a.persistOperation(op)

	rec := a.baseRecord(ctx, location, data)
	if err := json.Unmarshal(data, &rec); err != nil {
		err = fieldsync.NewValidationError("save", "decoding record: %v", err)
		op.Fail(err)
		a.finishOperation(op)
		return fieldsync.Outcome{Status: fieldsync.OutcomeFailed, Err: err}
	}
	if len(rec.Photos) > model.MaxPhotos {
		err := fieldsync.NewValidationError("save", "%v", model.ErrPhotoLimit)
		op.Fail(err)
		a.finishOperation(op)
		return fieldsync.Outcome{Status: fieldsync.OutcomeFailed, Err: err}
	}

	o := a.controller.Save(ctx, rec)
	op.Record(o)
	a.finishOperation(op)
	return o
}

// baseRecord opens location and returns the stored record whose id data
// carries, or a new draft.
func (a *FieldApp) baseRecord(ctx context.Context, location string, data []byte) model.InspectionRecord {
	a.Open(ctx, location)

	var ref struct {
		ID string `json:"id"`
	}
	if json.Unmarshal(data, &ref) == nil && ref.ID != "" {
		for _, r := range a.controller.View().Records {
			if r.ID == ref.ID {
				return r
			}
		}
	}
	return a.controller.StartNew().Current
}

// Sync opens location and runs a manual sync.
func (a *FieldApp) Sync(ctx context.Context, location string) fieldsync.Outcome {
	op := NewSyncOperation("sync", location)
	a.persistOperation(op)

	a.Open(ctx, location)
	o := a.controller.Sync(ctx)

	op.Record(o)
	a.finishOperation(op)
	return o
}

// Pending returns the pending queue in send order.
func (a *FieldApp) Pending() ([]model.InspectionRecord, error) {
	return a.store.Pending()
}

// ExportPending writes the pending queue to w as an encrypted handoff file.
func (a *FieldApp) ExportPending(w io.Writer, passphrase string) (int, error) {
	queue, err := a.store.Pending()
	if err != nil {
		return 0, fmt.Errorf("reading pending queue: %w", err)
	}
	bundle := handoff.NewBundle(a.cfg.DeviceID, a.clock.Now(), queue)
	if err := a.codec.Export(w, passphrase, bundle); err != nil {
		return 0, fmt.Errorf("exporting pending queue: %w", err)
	}
	a.logger.Info("pending queue exported", "count", len(queue))
	return len(queue), nil
}

// ImportPending reads a handoff file and queues its records on this device.
func (a *FieldApp) ImportPending(r io.Reader, passphrase string) (int, error) {
	op := NewSyncOperation("import", "")
	a.persistOperation(op)

	bundle, err := a.codec.Import(r, passphrase)
	if err != nil {
		op.Fail(err)
		a.finishOperation(op)
		return 0, fmt.Errorf("importing pending queue: %w", err)
	}

	n, err := a.controller.ImportPending(bundle.Records)
	if err != nil {
		op.Fail(err)
		a.finishOperation(op)
		return n, fmt.Errorf("importing pending queue: %w", err)
	}

	op.Status = fieldsync.OutcomeOK.String()
	op.Received = n
	op.Message = fmt.Sprintf("from %s", bundle.DeviceID)
	a.finishOperation(op)
	a.logger.Info("pending queue imported", "count", n, "from", bundle.DeviceID, "exported_at", bundle.ExportedAt.Time().Format(time.RFC3339))
	return n, nil
}

// History returns the most recent operations, newest first.
func (a *FieldApp) History(limit int) ([]*database.SyncOperation, error) {
	return a.store.ListSyncOperations(limit)
}

// StoreInfo returns the store location and its current schema.
func (a *FieldApp) StoreInfo() (path, schema string, err error) {
	schema, err = a.store.Schema()
	return a.store.Path(), schema, err
}

// persistOperation saves op to the history table. A failure is logged and
// leaves op unpersisted.
func (a *FieldApp) persistOperation(op *SyncOperation) {
	if op.Persisted() {
		return
	}
	id, err := a.store.StartSyncOperation(op.Name, op.Location)
	if err != nil {
		a.logger.Warn("recording operation", "operation", op.Name, "error", err)
		return
	}
	op.ID = id
}

func (a *FieldApp) finishOperation(op *SyncOperation) {
	if !op.Persisted() {
		return
	}
	if err := a.store.FinishSyncOperation(op.ID, op.Status, op.Sent, op.Received, op.Message); err != nil {
		a.logger.Warn("finishing operation", "operation", op.Name, "error", err)
	}
}

// Close closes the store and the log file.
func (a *FieldApp) Close() error {
	var firstErr error
	if err := a.store.Close(); err != nil {
		firstErr = fmt.Errorf("closing store: %w", err)
	}
	if a.logFile != nil {
		if err := a.logFile.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing log file: %w", err)
		}
	}
	return firstErr
}
