package serialization

import (
	"github.com/satmihir/cbt/pkg/data"
)

// Largest history a record may claim. Records written by a bigger ring are
// still loaded and cut down by the reader; anything beyond this is garbage.
const MaxRecordBuildTimes = 1 << 20

// One populated histogram bin: its midpoint and the samples that fell in it
type Bin struct {
	Ms    uint32
	Count uint32
}

// The persisted form of the ring. Only the histogram is kept, not the raw
// samples, so the order of the samples is lost.
type StateRecord struct {
	TotalBuildTimes uint32
	AbandonedCount  uint32
	// Populated bins in increasing order
	Bins []Bin
}

// Metadata wrapped around a record for the binary and JSON exports
type Snapshot struct {
	TrackerID string
	SavedAtMs int64
	Record    *StateRecord
}

// NewStateRecord folds the ring into a record with bins of binWidth ms.
// Empty bins are left out.
func NewStateRecord(r *data.Ring, binWidth uint32) *StateRecord {
	rec := &StateRecord{
		TotalBuildTimes: uint32(r.Total()),
		AbandonedCount:  uint32(r.AbandonedCount()),
	}

	for i, count := range data.CreateHistogram(r, binWidth) {
		if count == 0 {
			continue
		}
		rec.Bins = append(rec.Bins, Bin{Ms: data.BinToMs(i, binWidth), Count: count})
	}

	return rec
}

// Expand turns the record back into samples, bins first in order followed by
// one abandoned sample per abandoned build. The counts must add up exactly to
// the total, which may not exceed limit.
func (rec *StateRecord) Expand(limit uint32) ([]data.Sample, error) {
	if rec.TotalBuildTimes > limit {
		return nil, NewSerializationError(ErrMalformedRecord, "record claims %d build times, more than the %d we keep", rec.TotalBuildTimes, limit)
	}

	samples := make([]data.Sample, 0, rec.TotalBuildTimes)
	var loaded uint64
	for _, b := range rec.Bins {
		if loaded+uint64(b.Count)+uint64(rec.AbandonedCount) > uint64(rec.TotalBuildTimes) {
			return nil, NewSerializationError(ErrMalformedRecord, "too many build times in record, stopping short before %d", loaded+uint64(b.Count))
		}
		s := data.Measured(b.Ms)
		if !s.Valid() || s.IsEmpty() {
			return nil, NewSerializationError(data.ErrInvalidSample, "bin at %dms", b.Ms)
		}
		for k := uint32(0); k < b.Count; k++ {
			samples = append(samples, s)
		}
		loaded += uint64(b.Count)
	}

	if loaded+uint64(rec.AbandonedCount) != uint64(rec.TotalBuildTimes) {
		return nil, NewSerializationError(ErrMalformedRecord, "build times count mismatch, read %d times but record says %d", loaded+uint64(rec.AbandonedCount), rec.TotalBuildTimes)
	}

	for i := uint32(0); i < rec.AbandonedCount; i++ {
		samples = append(samples, data.Abandoned)
	}

	return samples, nil
}

// SampleCount is the number of measured samples across every bin
func (rec *StateRecord) SampleCount() uint64 {
	var n uint64
	for _, b := range rec.Bins {
		n += uint64(b.Count)
	}
	return n
}
