package model

import (
	"errors"
	"fmt"
	"reflect"
)

// MaxPhotos is the number of photos a single inspection may carry.
const MaxPhotos = 3

var (
	ErrPhotoLimit  = errors.New("photo limit reached")
	ErrNoSuchPhoto = errors.New("no photo at index")
)

// Switch is the two-valued state of a piece of equipment.
type Switch string

const (
	SwitchOn  Switch = "ON"
	SwitchOff Switch = "OFF"
)

// FacilityStatus is the inspector's overall verdict for the facility.
// The values are the literal strings stored in the remote sheet.
type FacilityStatus string

const (
	FacilityGood    FacilityStatus = "良"
	FacilityNotGood FacilityStatus = "不可"
)

// InspectionRecord is one inspection event at one location.
// The JSON names match the columns of the remote sheet.
type InspectionRecord struct {
	ID             string      `json:"id"`                  // merge key, immutable
	SheetName      string      `json:"sheetName,omitempty"` // location partition
	InspectionDate string      `json:"inspectionDate"`      // YYYY-MM-DD
	CreatedAt      EpochMillis `json:"createdAt"`           // ordering only

	// Measurements
	PressureMpa      NumericText `json:"pressureMpa"`
	WaterTemp        NumericText `json:"waterTemp"`
	ChlorineBefore   NumericText `json:"chlorineBefore"`
	ChlorineAfter    NumericText `json:"chlorineAfter"`
	ChlorineMeasured NumericText `json:"chlorineMeasured"`
	Conductivity     NumericText `json:"conductivity"`
	Turbidity        NumericText `json:"turbidity"`
	Color            NumericText `json:"color"`
	Power100V        NumericText `json:"power100V"`

	// Equipment status
	FanStatus         Switch         `json:"fanStatus"`
	TapeHeaterStatus  Switch         `json:"tapeHeaterStatus"`
	PanelHeaterStatus Switch         `json:"panelHeaterStatus"`
	RoadHeaterStatus  Switch         `json:"roadHeaterStatus"`
	FacilityStatus    FacilityStatus `json:"facilityStatus"`

	Photos  []PhotoData `json:"photos"`
	Remarks string      `json:"remarks"`
}

// PhotoData is a photo attached to a record: either embedded image data or a
// remote URL, with optional capture location and time.
type PhotoData struct {
	Data string     `json:"data,omitempty"`
	URL  string     `json:"url,omitempty"`
	Lat  Coordinate `json:"lat,omitempty"`
	Lon  Coordinate `json:"lon,omitempty"`
	Alt  Coordinate `json:"alt,omitempty"`
	Date string     `json:"date,omitempty"`
}

// NewInspectionRecord returns a record with every field at its declared default.
func NewInspectionRecord(id, sheetName, inspectionDate string, createdAt EpochMillis) InspectionRecord {
	return InspectionRecord{
		ID:                id,
		SheetName:         sheetName,
		InspectionDate:    inspectionDate,
		CreatedAt:         createdAt,
		FanStatus:         SwitchOff,
		TapeHeaterStatus:  SwitchOff,
		PanelHeaterStatus: SwitchOff,
		RoadHeaterStatus:  SwitchOff,
		FacilityStatus:    FacilityGood,
		Photos:            []PhotoData{},
	}
}

// Clone returns a copy that shares no slices with r.
func (r InspectionRecord) Clone() InspectionRecord {
	c := r
	if r.Photos != nil {
		c.Photos = make([]PhotoData, len(r.Photos))
		copy(c.Photos, r.Photos)
	}
	return c
}

// Equal reports whether two records hold the same values.
// A nil photo list equals an empty one.
func (r InspectionRecord) Equal(o InspectionRecord) bool {
	a, b := r.Clone(), o.Clone()
	if len(a.Photos) == 0 {
		a.Photos = nil
	}
	if len(b.Photos) == 0 {
		b.Photos = nil
	}
	return reflect.DeepEqual(a, b)
}

// AttachPhoto returns a copy of r with p appended.
// It fails once the record already holds MaxPhotos photos.
func (r InspectionRecord) AttachPhoto(p PhotoData) (InspectionRecord, error) {
	if len(r.Photos) >= MaxPhotos {
		return r, fmt.Errorf("record %s has %d photos: %w", r.ID, len(r.Photos), ErrPhotoLimit)
	}
	c := r.Clone()
	c.Photos = append(c.Photos, p)
	return c, nil
}

// RemovePhoto returns a copy of r without the photo at index i.
func (r InspectionRecord) RemovePhoto(i int) (InspectionRecord, error) {
	if i < 0 || i >= len(r.Photos) {
		return r, fmt.Errorf("%w %d (record has %d)", ErrNoSuchPhoto, i, len(r.Photos))
	}
	c := r.Clone()
	c.Photos = append(c.Photos[:i], c.Photos[i+1:]...)
	return c, nil
}
