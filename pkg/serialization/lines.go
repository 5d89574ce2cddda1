package serialization

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/store"
)

// State store keys
const (
	KeyTotalBuildTimes = "TotalBuildTimes"
	KeyAbandonedCount  = "CircuitBuildAbandonedCount"
	KeyBuildTimeBin    = "CircuitBuildTimeBin"
)

// FormatBinLine renders a bin as "<ms> <count>"
func FormatBinLine(b Bin) string {
	return fmt.Sprintf("%d %d", b.Ms, b.Count)
}

// ParseBinLine reads "<ms> <count>". Extra fields are ignored.
func ParseBinLine(line string) (Bin, error) {
	fields := strings.Fields(line)
	if len(fields) < 2 {
		return Bin{}, NewSerializationError(ErrMalformedRecord, "too few arguments to %s: %q", KeyBuildTimeBin, line)
	}

	ms, err := strconv.ParseUint(fields[0], 10, 32)
	if err != nil || ms == 0 || ms > data.BuildTimeMax {
		return Bin{}, NewSerializationError(ErrMalformedRecord, "unparsable bin number %q", fields[0])
	}

	count, err := strconv.ParseUint(fields[1], 10, 32)
	if err != nil {
		return Bin{}, NewSerializationError(ErrMalformedRecord, "unparsable bin count %q", fields[1])
	}

	return Bin{Ms: uint32(ms), Count: uint32(count)}, nil
}

// WriteRecord replaces the record's keys in the store
func WriteRecord(st store.StateStore, rec *StateRecord) {
	st.SetValues(KeyTotalBuildTimes, strconv.FormatUint(uint64(rec.TotalBuildTimes), 10))
	st.SetValues(KeyAbandonedCount, strconv.FormatUint(uint64(rec.AbandonedCount), 10))

	lines := make([]string, 0, len(rec.Bins))
	for _, b := range rec.Bins {
		lines = append(lines, FormatBinLine(b))
	}
	st.SetValues(KeyBuildTimeBin, lines...)
}

// ReadRecord parses the record's keys from the store. Missing counts read as
// zero, so an empty store is an empty record.
func ReadRecord(st store.StateStore) (*StateRecord, error) {
	total, err := readCount(st, KeyTotalBuildTimes)
	if err != nil {
		return nil, err
	}
	abandoned, err := readCount(st, KeyAbandonedCount)
	if err != nil {
		return nil, err
	}

	rec := &StateRecord{TotalBuildTimes: total, AbandonedCount: abandoned}
	for _, line := range st.Values(KeyBuildTimeBin) {
		b, err := ParseBinLine(line)
		if err != nil {
			return nil, err
		}
		rec.Bins = append(rec.Bins, b)
	}

	return rec, nil
}

func readCount(st store.StateStore, key string) (uint32, error) {
	values := st.Values(key)
	if len(values) == 0 {
		return 0, nil
	}

	v, err := strconv.ParseUint(strings.TrimSpace(values[len(values)-1]), 10, 32)
	if err != nil {
		return 0, NewSerializationError(ErrMalformedRecord, "unparsable %s %q", key, values[len(values)-1])
	}
	return uint32(v), nil
}
