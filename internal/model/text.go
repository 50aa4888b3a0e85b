package model

import (
	"bytes"
	"encoding/json"
	"strconv"
	"strings"
	"time"
)

// NumericText is a measurement kept exactly as the user typed it.
// Parsing is left to whoever displays or validates it.
type NumericText string

// UnmarshalJSON accepts a JSON string or number and keeps the literal text.
func (n *NumericText) UnmarshalJSON(data []byte) error {
	s, ok := scalarText(data)
	if !ok {
		*n = ""
		return nil
	}
	*n = NumericText(s)
	return nil
}

// Float parses the text. ok is false for empty or non-numeric input.
func (n NumericText) Float() (v float64, ok bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(string(n)), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// EpochMillis is a timestamp in milliseconds since the Unix epoch.
type EpochMillis int64

// MillisFrom converts t to EpochMillis.
func MillisFrom(t time.Time) EpochMillis {
	return EpochMillis(t.UnixMilli())
}

// Time converts m back to a time.Time.
func (m EpochMillis) Time() time.Time {
	return time.UnixMilli(int64(m))
}

// UnmarshalJSON accepts numbers and numeric strings. Anything else decodes as 0
// so that a bad timestamp only affects ordering.
func (m *EpochMillis) UnmarshalJSON(data []byte) error {
	*m = 0
	s, ok := scalarText(data)
	if !ok || s == "" {
		return nil
	}
	if i, err := strconv.ParseInt(s, 10, 64); err == nil {
		*m = EpochMillis(i)
		return nil
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		*m = EpochMillis(f)
	}
	return nil
}

// Coordinate is an optional EXIF value (latitude, longitude or altitude).
// The capture pipeline emits either numbers or an empty string.
type Coordinate string

// UnmarshalJSON accepts a JSON string or number.
func (c *Coordinate) UnmarshalJSON(data []byte) error {
	s, _ := scalarText(data)
	*c = Coordinate(s)
	return nil
}

// MarshalJSON writes numeric values as JSON numbers and anything else as a string.
func (c Coordinate) MarshalJSON() ([]byte, error) {
	if _, err := strconv.ParseFloat(string(c), 64); err == nil && json.Valid([]byte(c)) {
		return []byte(c), nil
	}
	return json.Marshal(string(c))
}

// Float parses the coordinate.
func (c Coordinate) Float() (v float64, ok bool) {
	f, err := strconv.ParseFloat(string(c), 64)
	if err != nil {
		return 0, false
	}
	return f, true
}

// scalarText returns the text of a JSON string or number literal.
func scalarText(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		return "", false
	}
	if data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return "", false
		}
		return s, true
	}
	var num json.Number
	if err := json.Unmarshal(data, &num); err != nil {
		return "", false
	}
	return num.String(), true
}
