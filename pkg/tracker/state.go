package tracker

import (
	"crypto/rand"
	"math/big"

	"github.com/satmihir/cbt/pkg/data"
	"github.com/satmihir/cbt/pkg/logger"
	"github.com/satmihir/cbt/pkg/serialization"
)

func (t *BuildTimeTracker) record() *serialization.StateRecord {
	return serialization.NewStateRecord(t.ring, t.binWidth)
}

// UpdateState writes the histogram of the history into the state store and
// marks it dirty
func (t *BuildTimeTracker) UpdateState() {
	t.mu.Lock()
	defer t.unlock()

	serialization.WriteRecord(t.store, t.record())
	if !t.cfg.AvoidDiskWrites {
		t.store.MarkDirty()
	}
}

// Snapshot captures the history for export
func (t *BuildTimeTracker) Snapshot() *serialization.Snapshot {
	t.mu.Lock()
	defer t.unlock()

	return &serialization.Snapshot{
		TrackerID: t.id.String(),
		SavedAtMs: t.clock.Now().UnixMilli(),
		Record:    t.record(),
	}
}

// LoadState rebuilds the history from the histogram in the state store and
// computes a timeout from it right away. The histogram loses the order of
// the build times, so they are shuffled before going into the ring; when
// the store holds more than the ring does, a random subset is kept.
//
// Anything that does not add up throws the whole history away, leaving the
// tracker at its initial timeout, and returns an ErrCorruptState error.
func (t *BuildTimeTracker) LoadState() error {
	t.mu.Lock()
	defer t.unlock()
	return t.loadState()
}

// Restore replaces the history in the state store with rec and loads it
// the way LoadState does
func (t *BuildTimeTracker) Restore(rec *serialization.StateRecord) error {
	t.mu.Lock()
	defer t.unlock()

	if rec == nil {
		return NewTrackerError(ErrCorruptState, "no build time record to restore")
	}

	serialization.WriteRecord(t.store, rec)
	if !t.cfg.AvoidDiskWrites {
		t.store.MarkDirty()
	}
	return t.loadState()
}

func (t *BuildTimeTracker) loadState() error {
	t.initialize()
	if t.disabled() {
		return nil
	}

	rec, err := serialization.ReadRecord(t.store)
	if err != nil {
		return t.corrupt("Unable to parse circuit build times: %v", err)
	}

	logger.Debugf("Adding %d timeouts.", rec.AbandonedCount)

	samples, err := rec.Expand(serialization.MaxRecordBuildTimes)
	if err != nil {
		return t.corrupt("Corrupt state file? %v", err)
	}

	if err := shuffle(samples); err != nil {
		t.reset()
		return NewTrackerError(err, "Failed to shuffle loaded build times")
	}

	if len(samples) > t.ring.Capacity() {
		logger.Printf("The state holds more circuit times than we use to calculate build times. Decreasing the circuit time history from %d to %d.",
			len(samples), t.ring.Capacity())
		samples = samples[:t.ring.Capacity()]
	}

	for _, s := range samples {
		if err := t.addSample(s); err != nil {
			return t.corrupt("Corrupt state file? %v", err)
		}
	}

	loaded := 0
	t.ring.Each(func(data.Sample) { loaded++ })
	logger.Printf("Loaded %d/%d values from %d lines in circuit time histogram",
		loaded, t.ring.Total(), len(rec.Bins))

	if loaded != len(samples) || t.ring.Total() != loaded {
		return t.corrupt("Corrupt state file? Shuffled build times mismatch. Read %d times, but file says %d",
			loaded, rec.TotalBuildTimes)
	}

	t.setTimeout()
	return nil
}

func (t *BuildTimeTracker) corrupt(format string, args ...any) error {
	logger.Warnf(format, args...)
	t.reset()
	return NewTrackerError(ErrCorruptState, format, args...)
}

// Fisher-Yates over a cryptographic index source
func shuffle(samples []data.Sample) error {
	for n := len(samples) - 1; n > 0; n-- {
		k, err := rand.Int(rand.Reader, big.NewInt(int64(n+1)))
		if err != nil {
			return err
		}
		j := int(k.Int64())
		samples[j], samples[n] = samples[n], samples[j]
	}
	return nil
}
