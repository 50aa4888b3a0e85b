package app

import (
	"bytes"
	"context"
	"errors"
	"testing"

	"fieldsync/internal/config"
	"fieldsync/internal/fieldsync"
	"fieldsync/internal/handoff"
)

func newTestApp(t *testing.T, connectivity string) *FieldApp {
	t.Helper()

	cfg := config.NewConfig("tablet-1", t.TempDir())
	cfg.Store.Type = "memory"
	cfg.Remote = config.RemoteConfig{Type: "memory", Locations: []string{"SiteA", "SiteB"}}
	cfg.Connectivity.Mode = connectivity

	a, err := NewFieldApp(cfg, nil)
	if err != nil {
		t.Fatalf("NewFieldApp() error = %v", err)
	}
	a.codec = handoff.Codec{WorkFactor: 10}
	t.Cleanup(func() {
		a.Close()
	})
	return a
}

func TestNewFieldApp_InvalidConfig(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*config.Config)
	}{
		{name: "unknown store", mutate: func(c *config.Config) { c.Store.Type = "cloud" }},
		{name: "http remote without url", mutate: func(c *config.Config) { c.Store.Type = "memory"; c.Remote.URL = "" }},
		{name: "unknown connectivity", mutate: func(c *config.Config) {
			c.Store.Type = "memory"
			c.Remote.Type = "memory"
			c.Connectivity.Mode = "sometimes"
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.NewConfig("tablet-1", t.TempDir())
			tt.mutate(cfg)

			if a, err := NewFieldApp(cfg, nil); err == nil {
				a.Close()
				t.Error("NewFieldApp() error = nil, want error")
			}
		})
	}
}

func TestFieldApp_Start(t *testing.T) {
	a := newTestApp(t, "online")

	loaded, opened := a.Start(context.Background())
	if loaded.Status != fieldsync.OutcomeOK || loaded.Received != 2 {
		t.Errorf("load outcome = %+v, want ok with 2 locations", loaded)
	}
	if opened.Status != fieldsync.OutcomeOK {
		t.Errorf("open outcome = %+v, want ok", opened)
	}
	if v := a.Controller().View(); v.Location != "SiteA" {
		t.Errorf("Location = %q, want SiteA", v.Location)
	}
}

func TestFieldApp_SaveAndSync(t *testing.T) {
	a := newTestApp(t, "online")
	ctx := context.Background()

	o := a.SaveJSON(ctx, "SiteA", []byte(`{"remarks":"pump noisy","pressureMpa":"0.35"}`))
	if o.Status != fieldsync.OutcomeOK || o.Sent != 1 {
		t.Fatalf("SaveJSON() = %+v, want ok with 1 sent", o)
	}

	v, _ := a.Show(ctx, "SiteA", -1)
	if len(v.Records) != 1 {
		t.Fatalf("records = %d, want 1", len(v.Records))
	}
	saved := v.Records[0]
	if saved.Remarks != "pump noisy" || saved.PressureMpa != "0.35" || saved.SheetName != "SiteA" {
		t.Errorf("saved record = %+v", saved)
	}
	if saved.ID == "" || saved.CreatedAt == 0 {
		t.Errorf("saved record missing draft id or createdAt: %+v", saved)
	}

	if o := a.Sync(ctx, "SiteA"); o.Status != fieldsync.OutcomeOK || o.Received != 1 {
		t.Errorf("Sync() = %+v, want ok with 1 received", o)
	}

	ops, err := a.History(10)
	if err != nil {
		t.Fatalf("History() error = %v", err)
	}
	if len(ops) != 2 {
		t.Fatalf("len(History()) = %d, want 2", len(ops))
	}
	if ops[0].Operation != "sync" || ops[0].Status != "ok" || ops[0].Received != 1 {
		t.Errorf("ops[0] = %+v, want finished sync", ops[0])
	}
	if ops[1].Operation != "save" || ops[1].Status != "ok" || ops[1].Sent != 1 {
		t.Errorf("ops[1] = %+v, want finished save", ops[1])
	}
}

func TestFieldApp_SaveJSON_Rejects(t *testing.T) {
	tests := []struct {
		name string
		data string
	}{
		{name: "not json", data: `remarks: ok`},
		{name: "too many photos", data: `{"photos":[{"data":"a"},{"data":"b"},{"data":"c"},{"data":"d"}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newTestApp(t, "offline")

			o := a.SaveJSON(context.Background(), "SiteA", []byte(tt.data))
			if o.Status != fieldsync.OutcomeFailed || !fieldsync.IsKind(o.Err, fieldsync.ValidationError) {
				t.Errorf("SaveJSON() = %+v, want validation failure", o)
			}
			if pending, _ := a.Pending(); len(pending) != 0 {
				t.Errorf("pending = %d, want 0", len(pending))
			}
			if ops, _ := a.History(1); len(ops) != 1 || ops[0].Status != "failed" {
				t.Errorf("history = %+v, want one failed save", ops)
			}
		})
	}
}

func TestFieldApp_SaveJSONEditsExistingRecord(t *testing.T) {
	a := newTestApp(t, "offline")
	ctx := context.Background()

	a.SaveJSON(ctx, "SiteA", []byte(`{"id":"rec_x","createdAt":1000,"pressureMpa":"0.5","photos":[{"url":"u"}]}`))
	v, _ := a.Show(ctx, "SiteA", 0)
	original := v.Current

	edits := []string{
		`{"id":"rec_x","remarks":"edited"}`,
		`{"id":"rec_x","createdAt":5,"remarks":"edited"}`,
	}
	for _, edit := range edits {
		if o := a.SaveJSON(ctx, "SiteA", []byte(edit)); o.Status != fieldsync.OutcomeSavedLocally {
			t.Fatalf("SaveJSON(%s) = %+v, want saved-locally", edit, o)
		}

		v, _ = a.Show(ctx, "SiteA", 0)
		if len(v.Records) != 1 {
			t.Fatalf("records = %d, want 1", len(v.Records))
		}
		got := v.Current
		if got.CreatedAt != 1000 {
			t.Errorf("CreatedAt = %d, want 1000", got.CreatedAt)
		}
		if got.InspectionDate != original.InspectionDate || got.PressureMpa != "0.5" || len(got.Photos) != 1 {
			t.Errorf("edit dropped stored fields: %+v", got)
		}
		if got.Remarks != "edited" {
			t.Errorf("Remarks = %q, want edited", got.Remarks)
		}
	}

	if pending, _ := a.Pending(); len(pending) != 1 || pending[0].CreatedAt != 1000 {
		t.Errorf("Pending() = %+v, want one entry with createdAt 1000", pending)
	}
}

func TestFieldApp_OfflineSaveQueues(t *testing.T) {
	a := newTestApp(t, "offline")
	ctx := context.Background()

	o := a.SaveJSON(ctx, "SiteA", []byte(`{"id":"rec_SiteA_20240101_ab12c","remarks":"ok"}`))
	if o.Status != fieldsync.OutcomeSavedLocally {
		t.Fatalf("SaveJSON() = %+v, want saved-locally", o)
	}

	pending, err := a.Pending()
	if err != nil {
		t.Fatalf("Pending() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ID != "rec_SiteA_20240101_ab12c" {
		t.Errorf("Pending() = %+v", pending)
	}

	if o := a.Sync(ctx, "SiteA"); o.Status != fieldsync.OutcomeOffline {
		t.Errorf("Sync() status = %v, want offline", o.Status)
	}
}

func TestFieldApp_HandoffBetweenDevices(t *testing.T) {
	ctx := context.Background()
	from := newTestApp(t, "offline")
	to := newTestApp(t, "offline")

	from.SaveJSON(ctx, "SiteA", []byte(`{"id":"a","remarks":"first"}`))
	from.SaveJSON(ctx, "SiteB", []byte(`{"id":"b","remarks":"second"}`))

	var buf bytes.Buffer
	n, err := from.ExportPending(&buf, "shared secret")
	if err != nil {
		t.Fatalf("ExportPending() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ExportPending() = %d, want 2", n)
	}

	exported := buf.Bytes()
	if _, err := to.ImportPending(bytes.NewReader(exported), "guess"); !errors.Is(err, handoff.ErrWrongPassphrase) {
		t.Errorf("ImportPending(wrong) error = %v, want ErrWrongPassphrase", err)
	}

	n, err = to.ImportPending(bytes.NewReader(exported), "shared secret")
	if err != nil {
		t.Fatalf("ImportPending() error = %v", err)
	}
	if n != 2 {
		t.Errorf("ImportPending() = %d, want 2", n)
	}

	pending, _ := to.Pending()
	if len(pending) != 2 || pending[0].ID != "a" || pending[1].SheetName != "SiteB" {
		t.Errorf("Pending() = %+v, want a then b", pending)
	}

	ops, _ := to.History(10)
	if len(ops) != 2 || ops[0].Status != "ok" || ops[0].Received != 2 || ops[1].Status != "failed" {
		t.Errorf("history = %+v, want ok import over failed import", ops)
	}
}
