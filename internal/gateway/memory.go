package gateway

import (
	"context"
	"encoding/json"
	"sync"

	"fieldsync/internal/fieldsync"
	"fieldsync/internal/model"
)

var _ fieldsync.Gateway = (*MemoryGateway)(nil)

// Op names a gateway operation for failure injection.
type Op string

const (
	OpListLocations Op = "list"
	OpFetchRecords  Op = "fetch"
	OpSaveRecord    Op = "save"
)

// MemoryGateway is an in-process remote. Saves upsert by id and keep the
// per-location order of first arrival. Failures can be injected per
// operation or per record id, and fetches can be held at a gate.
type MemoryGateway struct {
	mu        sync.Mutex
	locations []string
	sheets    map[string][]model.InspectionRecord
	failures  map[Op]error
	saveFails map[string]error
	gates     map[string]chan struct{}
	saved     []model.InspectionRecord
	fetches   int
}

// NewMemoryGateway creates a remote with the given (empty) locations.
func NewMemoryGateway(locations ...string) *MemoryGateway {
	g := &MemoryGateway{
		sheets:    make(map[string][]model.InspectionRecord),
		failures:  make(map[Op]error),
		saveFails: make(map[string]error),
		gates:     make(map[string]chan struct{}),
	}
	for _, loc := range locations {
		g.addLocationLocked(loc)
	}
	return g
}

// Seed upserts records into a location without counting as saves.
func (g *MemoryGateway) Seed(location string, records ...model.InspectionRecord) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, r := range records {
		r = r.Clone()
		r.SheetName = location
		g.upsertLocked(location, r)
	}
}

// SeedJSON loads a location from a raw JSON array the way the sheet
// service would return it. Items the decoder rejects are dropped.
func (g *MemoryGateway) SeedJSON(location string, data []byte) {
	g.Seed(location, model.DecodeRecords(data)...)
}

// SetFailure makes every call of op fail with err. A nil err clears it.
func (g *MemoryGateway) SetFailure(op Op, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.failures, op)
		return
	}
	g.failures[op] = err
}

// FailSave makes saves of one record id fail with err. A nil err clears it.
func (g *MemoryGateway) FailSave(id string, err error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err == nil {
		delete(g.saveFails, id)
		return
	}
	g.saveFails[id] = err
}

// Gate holds fetches of location until the returned func is called or the
// fetch's context ends.
func (g *MemoryGateway) Gate(location string) (release func()) {
	ch := make(chan struct{})
	g.mu.Lock()
	g.gates[location] = ch
	g.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			g.mu.Lock()
			if g.gates[location] == ch {
				delete(g.gates, location)
			}
			g.mu.Unlock()
			close(ch)
		})
	}
}

// Records returns the remote copy of a location.
func (g *MemoryGateway) Records(location string) []model.InspectionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneRecords(g.sheets[location])
}

// Saved returns every record received by SaveRecord, in call order.
func (g *MemoryGateway) Saved() []model.InspectionRecord {
	g.mu.Lock()
	defer g.mu.Unlock()
	return cloneRecords(g.saved)
}

// Fetches returns the number of FetchRecords calls.
func (g *MemoryGateway) Fetches() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.fetches
}

// ListLocations implements fieldsync.Gateway.
func (g *MemoryGateway) ListLocations(ctx context.Context) ([]string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failures[OpListLocations]; err != nil {
		return nil, err
	}
	return append([]string{}, g.locations...), nil
}

// FetchRecords implements fieldsync.Gateway.
func (g *MemoryGateway) FetchRecords(ctx context.Context, location string) ([]model.InspectionRecord, error) {
	g.mu.Lock()
	g.fetches++
	gate := g.gates[location]
	g.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return nil, fieldsync.NewTransportError("fetch records", ctx.Err())
		}
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failures[OpFetchRecords]; err != nil {
		return nil, err
	}
	return cloneRecords(g.sheets[location]), nil
}

// SaveRecord implements fieldsync.Gateway.
func (g *MemoryGateway) SaveRecord(ctx context.Context, record model.InspectionRecord, location string) (fieldsync.Ack, error) {
	if err := ctx.Err(); err != nil {
		return fieldsync.Ack{}, fieldsync.NewTransportError("save record", err)
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	if err := g.failures[OpSaveRecord]; err != nil {
		return fieldsync.Ack{}, err
	}
	if err := g.saveFails[record.ID]; err != nil {
		return fieldsync.Ack{}, err
	}

	r := record.Clone()
	r.SheetName = location
	g.saved = append(g.saved, r.Clone())
	g.addLocationLocked(location)
	g.upsertLocked(location, r)

	ack, _ := json.Marshal(map[string]string{"result": "success", "id": r.ID})
	return fieldsync.Ack{Raw: ack}, nil
}

func (g *MemoryGateway) addLocationLocked(location string) {
	if _, ok := g.sheets[location]; ok {
		return
	}
	g.sheets[location] = nil
	g.locations = append(g.locations, location)
}

func (g *MemoryGateway) upsertLocked(location string, r model.InspectionRecord) {
	g.addLocationLocked(location)
	sheet := g.sheets[location]
	for i := range sheet {
		if sheet[i].ID == r.ID {
			sheet[i] = r
			return
		}
	}
	g.sheets[location] = append(sheet, r)
}

func cloneRecords(records []model.InspectionRecord) []model.InspectionRecord {
	out := make([]model.InspectionRecord, len(records))
	for i, r := range records {
		out[i] = r.Clone()
	}
	return out
}
