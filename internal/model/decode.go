package model

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
)

// DecodeRecords parses a JSON array of records without ever failing.
// Input that is not an array yields an empty slice. Elements that are not
// objects, do not decode, or have no id are dropped, as are null photos.
func DecodeRecords(data []byte) []InspectionRecord {
	var raw []json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return []InspectionRecord{}
	}

	records := make([]InspectionRecord, 0, len(raw))
	for _, item := range raw {
		if r, ok := DecodeRecord(item); ok {
			records = append(records, r)
		}
	}
	return records
}

// DecodeRecord parses a single record object. ok is false when the value is
// not an object, does not decode, or has no id.
func DecodeRecord(data []byte) (InspectionRecord, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return InspectionRecord{}, false
	}

	var wire struct {
		InspectionRecord
		Photos []*PhotoData `json:"photos"`
	}
	// A field of the wrong type only loses that field.
	if err := json.Unmarshal(data, &wire); err != nil {
		var typeErr *json.UnmarshalTypeError
		if !errors.As(err, &typeErr) {
			return InspectionRecord{}, false
		}
	}
	if wire.ID == "" {
		return InspectionRecord{}, false
	}

	r := wire.InspectionRecord
	r.Photos = make([]PhotoData, 0, len(wire.Photos))
	for _, p := range wire.Photos {
		if p != nil {
			r.Photos = append(r.Photos, *p)
		}
	}
	return r, true
}

// EncodeRecords serializes records as a JSON array.
func EncodeRecords(records []InspectionRecord) ([]byte, error) {
	if records == nil {
		records = []InspectionRecord{}
	}
	return json.Marshal(records)
}

// Normalize returns r as it reads back once stored: encoded to JSON and
// decoded again. Values JSON cannot carry, such as invalid UTF-8, are
// replaced the same way the store replaces them.
func Normalize(r InspectionRecord) InspectionRecord {
	data, err := json.Marshal(r)
	if err != nil {
		return r.Clone()
	}
	n, ok := DecodeRecord(data)
	if !ok {
		return r.Clone()
	}
	return n
}

// SortByCreatedAt sorts records ascending by CreatedAt.
// Records with equal timestamps keep their relative order.
func SortByCreatedAt(records []InspectionRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].CreatedAt < records[j].CreatedAt
	})
}
