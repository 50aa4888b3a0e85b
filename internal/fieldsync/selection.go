package fieldsync

import (
	"fmt"
	"regexp"
	"time"

	"fieldsync/internal/model"
)

// Selection says what the user is looking at: an existing record by index,
// or the virtual slot for a record not yet saved.
type Selection struct {
	index    int
	creating bool
}

// Viewing selects the record at index i.
func Viewing(i int) Selection { return Selection{index: i} }

// CreatingNew selects the new-record slot.
func CreatingNew() Selection { return Selection{creating: true} }

// IsNew reports whether the new-record slot is selected.
func (s Selection) IsNew() bool { return s.creating }

// Index returns the viewed record index. ok is false in the new-record slot.
func (s Selection) Index() (i int, ok bool) {
	if s.creating {
		return 0, false
	}
	return s.index, true
}

// Cursor converts s back to the integer cursor over a set of the given
// length. The new-record slot is length.
func (s Selection) Cursor(length int) int {
	if s.creating {
		return length
	}
	return s.index
}

func (s Selection) String() string {
	if s.creating {
		return "new"
	}
	return fmt.Sprintf("record %d", s.index)
}

// SelectionAt maps a cursor onto a set of the given length. Valid cursors are
// [0, length]; length is the new-record slot, and so is 0 on an empty set.
// Out of range cursors clamp.
func SelectionAt(cursor, length int) Selection {
	if length <= 0 || cursor >= length {
		return CreatingNew()
	}
	if cursor < 0 {
		cursor = 0
	}
	return Viewing(cursor)
}

// Latest selects the most recent record, or the new-record slot when empty.
func Latest(length int) Selection {
	if length <= 0 {
		return CreatingNew()
	}
	return Viewing(length - 1)
}

// Previous returns the record preceding the selection, used for trend
// display. In the new-record slot that is the last record.
func Previous(records []model.InspectionRecord, s Selection) (model.InspectionRecord, bool) {
	i := s.Cursor(len(records)) - 1
	if i < 0 || i >= len(records) {
		return model.InspectionRecord{}, false
	}
	return records[i], true
}

var whitespaceRun = regexp.MustCompile(`\s+`)

// RecordID builds rec_<location>_<YYYYMMDD>_<suffix>. Whitespace runs in the
// location collapse to one underscore and an empty location becomes "temp".
func RecordID(location string, day time.Time, suffix string) string {
	loc := whitespaceRun.ReplaceAllString(location, "_")
	if loc == "" {
		loc = "temp"
	}
	return fmt.Sprintf("rec_%s_%s_%s", loc, day.Format("20060102"), suffix)
}

// NewRecord synthesizes the draft shown in the new-record slot.
func NewRecord(location string, now time.Time, suffix string) model.InspectionRecord {
	return model.NewInspectionRecord(
		RecordID(location, now, suffix),
		location,
		now.Format("2006-01-02"),
		model.MillisFrom(now),
	)
}
