package fieldsync

import (
	"context"
	"errors"
	"sync"

	"fieldsync/internal/model"
)

var errOffline = errors.New("device is offline")

// Controller owns the selected location, its merged record set, the cursor
// and the pending queue lifecycle. All methods are safe for concurrent use.
//
// Local state changes happen under one mutex, store calls included, so
// pending read-modify-writes never interleave. Network calls run outside it.
type Controller struct {
	store    Store
	gateway  Gateway
	conn     Connectivity
	logger   Logger
	clock    Clock
	suffixes SuffixGenerator

	// sends serializes network writes per record id.
	sends *keyedMutex

	mu          sync.Mutex
	state       State
	location    string
	locations   []string
	records     []model.InspectionRecord
	selection   Selection
	draft       model.InspectionRecord
	pending     int
	generation  uint64
	cancelFetch context.CancelFunc
	// acked holds records of the selected location acknowledged while its
	// fetch was in flight. The fetched snapshot may predate them.
	acked  []model.InspectionRecord
	manual bool
	onChange    func(View)
}

// NewController creates a Controller. A nil logger, clock or suffix
// generator falls back to the no-op or real implementation.
func NewController(store Store, gateway Gateway, conn Connectivity, logger Logger, clock Clock, suffixes SuffixGenerator) *Controller {
	if logger == nil {
		logger = NewNopLogger()
	}
	if clock == nil {
		clock = RealClock{}
	}
	if suffixes == nil {
		suffixes = RandomSuffix{}
	}
	return &Controller{
		store:     store,
		gateway:   gateway,
		conn:      conn,
		logger:    logger,
		clock:     clock,
		suffixes:  suffixes,
		sends:     newKeyedMutex(),
		selection: CreatingNew(),
	}
}

// SetEventHandler registers fn to receive a View after every state change.
// fn runs on the goroutine that made the change and must not block for long.
func (c *Controller) SetEventHandler(fn func(View)) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.onChange = fn
}

// View returns the current snapshot.
func (c *Controller) View() View {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked()
}

// PendingCount is the pending queue length as last read from the store.
func (c *Controller) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending
}

// LoadLocations publishes the cached location list, then replaces it with
// the remote list when online. An empty remote list keeps the cache.
func (c *Controller) LoadLocations(ctx context.Context) Outcome {
	var warnings []error

	c.mu.Lock()
	cached, err := c.store.Locations()
	if err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("reading cached locations", "error", err)
	} else if len(cached) > 0 {
		c.locations = cached
	}
	if queue, err := c.store.Pending(); err == nil {
		c.pending = len(queue)
	}
	c.unlockAndPublish()

	if !c.conn.Online(ctx) {
		return Outcome{Status: OutcomeOffline, Remaining: c.PendingCount(), Warnings: warnings}
	}

	remote, err := c.gateway.ListLocations(ctx)
	if err != nil {
		c.logger.Warn("fetching locations", "error", err)
		return Outcome{Status: OutcomeFailed, Err: err, Remaining: c.PendingCount(), Warnings: warnings}
	}
	if len(remote) == 0 {
		return Outcome{Status: OutcomeOK, Remaining: c.PendingCount(), Warnings: warnings}
	}

	c.mu.Lock()
	c.locations = append([]string(nil), remote...)
	if err := c.store.PutLocations(remote); err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("caching locations", "error", err)
	}
	remaining := c.pending
	c.unlockAndPublish()

	c.logger.Debug("locations loaded", "count", len(remote))
	return Outcome{Status: OutcomeOK, Received: len(remote), Remaining: remaining, Warnings: warnings}
}

// SelectLocation switches to location. The cached records merged with the
// pending queue are published before it returns. When online, a background
// fetch then replaces them with the remote set merged with the pending
// queue. A later selection cancels the fetch and its result is dropped.
//
// The returned channel receives exactly one Outcome for the background
// part and is then closed.
func (c *Controller) SelectLocation(ctx context.Context, location string) <-chan Outcome {
	out := make(chan Outcome, 1)
	if location == "" {
		out <- Outcome{Status: OutcomeFailed, Err: NewValidationError("select location", "location is empty")}
		close(out)
		return out
	}

	var warnings []error

	c.mu.Lock()
	c.generation++
	gen := c.generation
	c.cancelBackgroundLocked()
	c.location = location
	c.acked = nil
	c.state = StateLoadingLocal

	local, err := c.store.Records(location)
	if err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("reading cached records", "location", location, "error", err)
	}
	queue, err := c.store.Pending()
	if err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("reading pending queue", "error", err)
	} else {
		c.pending = len(queue)
	}
	c.records = MergeLocalPending(location, local, queue)
	c.selectLocked(Latest(len(c.records)))
	c.idleLocked()

	fetchCtx, cancel := context.WithCancel(ctx)
	c.cancelFetch = cancel
	c.unlockAndPublish()

	c.logger.Debug("location selected", "location", location, "records", len(local))
	go c.refresh(fetchCtx, cancel, gen, location, warnings, out)
	return out
}

// refresh is the background half of SelectLocation.
func (c *Controller) refresh(ctx context.Context, cancel context.CancelFunc, gen uint64, location string, warnings []error, out chan<- Outcome) {
	defer close(out)
	defer cancel()

	if !c.conn.Online(ctx) {
		c.mu.Lock()
		stale := c.generation != gen
		c.mu.Unlock()
		if stale {
			out <- Outcome{Status: OutcomeStale}
			return
		}
		out <- Outcome{Status: OutcomeOffline, Remaining: c.PendingCount(), Warnings: warnings}
		return
	}

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		out <- Outcome{Status: OutcomeStale}
		return
	}
	c.state = StateSyncingRemote
	c.unlockAndPublish()

	remote, err := c.gateway.FetchRecords(ctx, location)

	c.mu.Lock()
	if c.generation != gen {
		c.mu.Unlock()
		c.logger.Debug("discarding stale fetch", "location", location)
		out <- Outcome{Status: OutcomeStale}
		return
	}
	c.cancelFetch = nil
	c.idleLocked()

	if err != nil {
		remaining := c.pending
		c.unlockAndPublish()
		c.logger.Warn("fetching records", "location", location, "error", err)
		out <- Outcome{Status: OutcomeFailed, Err: err, Remaining: remaining, Warnings: warnings}
		return
	}

	// Without the queue the merge could hide unsynced edits, so keep the
	// local view instead.
	queue, err := c.store.Pending()
	if err != nil {
		remaining := c.pending
		c.unlockAndPublish()
		c.logger.Warn("reading pending queue", "error", err)
		out <- Outcome{Status: OutcomeFailed, Err: err, Remaining: remaining, Warnings: warnings}
		return
	}

	overlay := make([]model.InspectionRecord, 0, len(c.acked)+len(queue))
	overlay = append(append(overlay, c.acked...), queue...)
	c.acked = nil
	c.records = MergeRemotePending(location, remote, overlay)
	c.pending = len(queue)
	if err := c.store.PutRecords(location, c.records); err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("caching records", "location", location, "error", err)
	}
	c.selectLocked(Latest(len(c.records)))
	c.unlockAndPublish()

	c.logger.Debug("location refreshed", "location", location, "received", len(remote))
	out <- Outcome{Status: OutcomeOK, Received: len(remote), Remaining: len(queue), Warnings: warnings}
}

// Save files record under the selected location, persists it, queues it and
// publishes the new view before any network attempt. When online it then
// sends the record. A failed send leaves it queued and reports
// OutcomeSavedLocally. Replacing a record keeps its createdAt.
func (c *Controller) Save(ctx context.Context, record model.InspectionRecord) Outcome {
	c.mu.Lock()
	location := c.location
	if location == "" {
		c.mu.Unlock()
		return Outcome{Status: OutcomeFailed, Err: NewValidationError("save", "no location selected")}
	}
	if record.ID == "" {
		c.mu.Unlock()
		return Outcome{Status: OutcomeFailed, Err: NewValidationError("save", "record has no id")}
	}

	record.SheetName = location
	record = model.Normalize(record)
	for _, existing := range c.records {
		if existing.ID == record.ID && existing.CreatedAt != 0 {
			record.CreatedAt = existing.CreatedAt
			break
		}
	}

	var warnings []error
	records, idx := upsert(c.records, record)
	c.records = records
	c.selectLocked(Viewing(idx))

	if err := c.store.PutRecords(location, records); err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("persisting records", "location", location, "error", err)
	}
	if err := c.store.AddPending(record); err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("queueing record", "id", record.ID, "error", err)
	}
	if err := c.refreshPendingLocked(); err != nil {
		warnings = append(warnings, err)
	}
	c.unlockAndPublish()

	c.logger.Info("record saved", "id", record.ID, "location", location)

	if !c.conn.Online(ctx) {
		return Outcome{Status: OutcomeSavedLocally, Remaining: c.PendingCount(), Warnings: warnings}
	}

	warn, err := c.send(ctx, record, location)
	if warn != nil {
		warnings = append(warnings, warn)
	}
	if err != nil {
		c.logger.Warn("record not synced", "id", record.ID, "error", err)
		return Outcome{Status: OutcomeSavedLocally, Err: err, Remaining: c.PendingCount(), Warnings: warnings}
	}
	return Outcome{Status: OutcomeOK, Sent: 1, Remaining: c.PendingCount(), Warnings: warnings}
}

// Sync drains the pending queue in order, then refreshes the location list
// and replaces the selected location's cache with the remote set. Entries
// still queued for the location stay visible on top of it. The first failed
// send stops the drain; entries already sent stay dequeued.
func (c *Controller) Sync(ctx context.Context) Outcome {
	c.mu.Lock()
	location := c.location
	busy := c.manual
	c.mu.Unlock()

	if location == "" {
		return Outcome{Status: OutcomeFailed, Err: NewValidationError("sync", "no location selected")}
	}
	if busy {
		return Outcome{Status: OutcomeFailed, Err: NewValidationError("sync", "sync already in progress")}
	}
	if !c.conn.Online(ctx) {
		return Outcome{Status: OutcomeOffline, Err: NewTransportError("sync", errOffline), Remaining: c.PendingCount()}
	}

	c.mu.Lock()
	if c.manual {
		c.mu.Unlock()
		return Outcome{Status: OutcomeFailed, Err: NewValidationError("sync", "sync already in progress")}
	}
	c.manual = true
	c.state = StateManualSyncing
	c.generation++
	gen := c.generation
	c.cancelBackgroundLocked()
	queue, err := c.store.Pending()
	c.unlockAndPublish()

	defer func() {
		c.mu.Lock()
		c.manual = false
		if c.state == StateManualSyncing {
			c.state = StateIdle
		}
		c.unlockAndPublish()
	}()

	if err != nil {
		c.logger.Error("reading pending queue", "error", err)
		return Outcome{Status: OutcomeFailed, Err: err, Remaining: c.PendingCount()}
	}

	c.logger.Info("sync started", "location", location, "pending", len(queue))

	var warnings []error
	sent := 0
	for _, r := range queue {
		target := r.SheetName
		if target == "" {
			target = location
		}
		warn, err := c.send(ctx, r, target)
		if warn != nil {
			warnings = append(warnings, warn)
		}
		if err != nil {
			c.logger.Warn("sync aborted", "id", r.ID, "sent", sent, "error", err)
			return Outcome{Status: OutcomeFailed, Sent: sent, Err: err, Remaining: c.PendingCount(), Warnings: warnings}
		}
		sent++
	}

	locations, err := c.gateway.ListLocations(ctx)
	if err != nil {
		c.logger.Warn("fetching locations", "error", err)
		return Outcome{Status: OutcomeFailed, Sent: sent, Err: err, Remaining: c.PendingCount(), Warnings: warnings}
	}
	if len(locations) > 0 {
		c.mu.Lock()
		c.locations = append([]string(nil), locations...)
		if err := c.store.PutLocations(locations); err != nil {
			warnings = append(warnings, err)
			c.logger.Warn("caching locations", "error", err)
		}
		c.unlockAndPublish()
	}

	remote, err := c.gateway.FetchRecords(ctx, location)
	if err != nil {
		c.logger.Warn("fetching records", "location", location, "error", err)
		return Outcome{Status: OutcomeFailed, Sent: sent, Err: err, Remaining: c.PendingCount(), Warnings: warnings}
	}

	c.mu.Lock()
	queue, err = c.store.Pending()
	if err != nil {
		remaining := c.pending
		c.mu.Unlock()
		c.logger.Error("reading pending queue", "error", err)
		return Outcome{Status: OutcomeFailed, Sent: sent, Received: len(remote), Err: err, Remaining: remaining, Warnings: warnings}
	}
	fresh := MergeRemotePending(location, remote, queue)
	if err := c.store.PutRecords(location, fresh); err != nil {
		warnings = append(warnings, err)
		c.logger.Warn("caching records", "location", location, "error", err)
	}
	c.pending = len(queue)
	if c.location == location && c.generation == gen {
		c.records = fresh
		c.selectLocked(Latest(len(fresh)))
	}
	c.unlockAndPublish()

	c.logger.Info("sync finished", "location", location, "sent", sent, "received", len(remote))
	return Outcome{Status: OutcomeOK, Sent: sent, Received: len(remote), Remaining: len(queue), Warnings: warnings}
}

// send writes one record to the remote and dequeues it when the queued copy
// is still the one that was sent. warn reports a local dequeue failure; err
// reports a failed send.
func (c *Controller) send(ctx context.Context, record model.InspectionRecord, location string) (warn, err error) {
	unlock := c.sends.Lock(record.ID)
	defer unlock()

	if _, err := c.gateway.SaveRecord(ctx, record, location); err != nil {
		return nil, err
	}

	c.mu.Lock()
	if err := c.dequeueLocked(record); err != nil {
		c.mu.Unlock()
		c.logger.Warn("dequeueing record", "id", record.ID, "error", err)
		return err, nil
	}
	if location == c.location && c.cancelFetch != nil {
		acked := record.Clone()
		acked.SheetName = location
		c.acked = append(c.acked, acked)
	}
	c.unlockAndPublish()

	c.logger.Debug("record sent", "id", record.ID, "location", location)
	return nil, nil
}

// dequeueLocked compares against the sent record as the store would read it
// back, so values JSON rewrites do not look like a newer copy.
func (c *Controller) dequeueLocked(sent model.InspectionRecord) error {
	queue, err := c.store.Pending()
	if err != nil {
		return err
	}
	sent = model.Normalize(sent)
	for _, q := range queue {
		if q.ID != sent.ID {
			continue
		}
		if !q.Equal(sent) {
			c.logger.Debug("newer copy queued, keeping it", "id", sent.ID)
			break
		}
		if err := c.store.RemovePending(sent.ID); err != nil {
			return err
		}
		break
	}
	return c.refreshPendingLocked()
}

// Move shifts the cursor by delta, clamping to [0, length].
func (c *Controller) Move(delta int) View {
	c.mu.Lock()
	cursor := c.selection.Cursor(len(c.records)) + delta
	c.selectLocked(SelectionAt(cursor, len(c.records)))
	v := c.viewLocked()
	c.unlockAndPublish()
	return v
}

// Jump sets the cursor, clamping to [0, length].
func (c *Controller) Jump(cursor int) View {
	c.mu.Lock()
	c.selectLocked(SelectionAt(cursor, len(c.records)))
	v := c.viewLocked()
	c.unlockAndPublish()
	return v
}

// StartNew moves to the new-record slot.
func (c *Controller) StartNew() View {
	c.mu.Lock()
	c.selectLocked(CreatingNew())
	v := c.viewLocked()
	c.unlockAndPublish()
	return v
}

// ImportPending files records received from another device into their
// location caches and the pending queue. Records without an id or a
// sheetName are skipped. Nothing is sent.
func (c *Controller) ImportPending(records []model.InspectionRecord) (int, error) {
	c.mu.Lock()
	defer c.unlockAndPublish()

	imported := 0
	for _, r := range records {
		if r.ID == "" || r.SheetName == "" {
			c.logger.Warn("skipping imported record", "id", r.ID, "location", r.SheetName)
			continue
		}
		local, err := c.store.Records(r.SheetName)
		if err != nil {
			return imported, err
		}
		updated, _ := upsert(local, r)
		if err := c.store.PutRecords(r.SheetName, updated); err != nil {
			return imported, err
		}
		if err := c.store.AddPending(r); err != nil {
			return imported, err
		}
		if r.SheetName == c.location {
			c.records, _ = upsert(c.records, r)
			c.selectLocked(Latest(len(c.records)))
		}
		imported++
	}

	if err := c.refreshPendingLocked(); err != nil {
		return imported, err
	}
	c.logger.Info("pending records imported", "count", imported)
	return imported, nil
}

// selectLocked sets the selection. Entering the new-record slot from
// elsewhere, or for another location, synthesizes a fresh draft.
func (c *Controller) selectLocked(s Selection) {
	if s.IsNew() && (!c.selection.IsNew() || c.draft.ID == "" || c.draft.SheetName != c.location) {
		c.draft = NewRecord(c.location, c.clock.Now(), c.suffixes.Suffix())
	}
	c.selection = s
}

func (c *Controller) idleLocked() {
	if c.manual {
		c.state = StateManualSyncing
		return
	}
	c.state = StateIdle
}

func (c *Controller) cancelBackgroundLocked() {
	if c.cancelFetch != nil {
		c.cancelFetch()
		c.cancelFetch = nil
	}
}

func (c *Controller) refreshPendingLocked() error {
	queue, err := c.store.Pending()
	if err != nil {
		return err
	}
	c.pending = len(queue)
	return nil
}

func (c *Controller) viewLocked() View {
	v := View{
		Location:     c.location,
		Locations:    append([]string(nil), c.locations...),
		Records:      make([]model.InspectionRecord, len(c.records)),
		Selection:    c.selection,
		State:        c.state,
		PendingCount: c.pending,
	}
	for i, r := range c.records {
		v.Records[i] = r.Clone()
	}
	if i, ok := c.selection.Index(); ok && i < len(v.Records) {
		v.Current = v.Records[i]
	} else {
		v.Current = c.draft.Clone()
	}
	if prev, ok := Previous(v.Records, c.selection); ok {
		v.Previous = &prev
	}
	return v
}

// unlockAndPublish releases c.mu and hands the new view to the event handler.
func (c *Controller) unlockAndPublish() {
	v := c.viewLocked()
	fn := c.onChange
	c.mu.Unlock()
	if fn != nil {
		fn(v)
	}
}
