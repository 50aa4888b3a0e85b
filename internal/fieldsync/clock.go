package fieldsync

import (
	"encoding/binary"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Clock abstracts time retrieval so record ids and timestamps are
// deterministic in tests.
type Clock interface {
	Now() time.Time
}

// RealClock returns the local wall-clock time.
type RealClock struct{}

func (RealClock) Now() time.Time { return time.Now() }

// SuffixGenerator produces the random tail of a record id.
type SuffixGenerator interface {
	Suffix() string
}

// SuffixLength is the number of base-36 characters in a record id suffix.
const SuffixLength = 5

// suffixSpace is 36^SuffixLength.
const suffixSpace = 36 * 36 * 36 * 36 * 36

// RandomSuffix draws suffixes from UUIDv4 entropy.
type RandomSuffix struct{}

func (RandomSuffix) Suffix() string {
	id := uuid.New()
	n := binary.BigEndian.Uint64(id[8:]) % suffixSpace
	s := strconv.FormatUint(n, 36)
	return strings.Repeat("0", SuffixLength-len(s)) + s
}
