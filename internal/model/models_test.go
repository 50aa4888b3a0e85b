package model

import (
	"errors"
	"testing"
)

func TestNewInspectionRecord_Defaults(t *testing.T) {
	r := NewInspectionRecord("rec_1", "SiteA", "2024-01-01", 42)

	if r.FanStatus != SwitchOff || r.TapeHeaterStatus != SwitchOff ||
		r.PanelHeaterStatus != SwitchOff || r.RoadHeaterStatus != SwitchOff {
		t.Errorf("switches = %q/%q/%q/%q, want all OFF",
			r.FanStatus, r.TapeHeaterStatus, r.PanelHeaterStatus, r.RoadHeaterStatus)
	}
	if r.FacilityStatus != FacilityGood {
		t.Errorf("FacilityStatus = %q, want %q", r.FacilityStatus, FacilityGood)
	}
	if r.Photos == nil || len(r.Photos) != 0 {
		t.Errorf("Photos = %v, want empty non-nil slice", r.Photos)
	}
	if r.PressureMpa != "" || r.Remarks != "" {
		t.Error("measurements and remarks should start empty")
	}
}

func TestInspectionRecord_AttachPhoto(t *testing.T) {
	r := NewInspectionRecord("rec_1", "SiteA", "2024-01-01", 1)

	var err error
	for i := 0; i < MaxPhotos; i++ {
		r, err = r.AttachPhoto(PhotoData{URL: "https://example.com/p.jpg"})
		if err != nil {
			t.Fatalf("AttachPhoto() #%d error = %v", i+1, err)
		}
	}

	_, err = r.AttachPhoto(PhotoData{Data: "x"})
	if !errors.Is(err, ErrPhotoLimit) {
		t.Errorf("AttachPhoto() over limit error = %v, want ErrPhotoLimit", err)
	}
	if len(r.Photos) != MaxPhotos {
		t.Errorf("len(Photos) = %d, want %d", len(r.Photos), MaxPhotos)
	}
}

func TestInspectionRecord_RemovePhoto(t *testing.T) {
	r := NewInspectionRecord("rec_1", "SiteA", "2024-01-01", 1)
	r.Photos = []PhotoData{{Data: "a"}, {Data: "b"}, {Data: "c"}}

	got, err := r.RemovePhoto(1)
	if err != nil {
		t.Fatalf("RemovePhoto() error = %v", err)
	}
	if len(got.Photos) != 2 || got.Photos[0].Data != "a" || got.Photos[1].Data != "c" {
		t.Errorf("Photos after remove = %v, want [a c]", got.Photos)
	}
	if len(r.Photos) != 3 || r.Photos[1].Data != "b" {
		t.Error("RemovePhoto() modified the original record")
	}

	if _, err := r.RemovePhoto(3); !errors.Is(err, ErrNoSuchPhoto) {
		t.Errorf("RemovePhoto(3) error = %v, want ErrNoSuchPhoto", err)
	}
}

func TestInspectionRecord_Equal(t *testing.T) {
	a := NewInspectionRecord("rec_1", "SiteA", "2024-01-01", 1)
	b := a.Clone()
	b.Photos = nil

	if !a.Equal(b) {
		t.Error("Equal() = false for records differing only in nil vs empty photos")
	}

	b.Remarks = "changed"
	if a.Equal(b) {
		t.Error("Equal() = true for records with different remarks")
	}
}

func TestNumericText_Float(t *testing.T) {
	tests := []struct {
		in     NumericText
		want   float64
		wantOK bool
	}{
		{in: "0.25", want: 0.25, wantOK: true},
		{in: " 12 ", want: 12, wantOK: true},
		{in: "", wantOK: false},
		{in: "abc", wantOK: false},
	}

	for _, tt := range tests {
		got, ok := tt.in.Float()
		if ok != tt.wantOK || got != tt.want {
			t.Errorf("NumericText(%q).Float() = %v, %v, want %v, %v", tt.in, got, ok, tt.want, tt.wantOK)
		}
	}
}
