package serialization

import (
	"math"

	"github.com/spaolacci/murmur3"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/types/known/structpb"
)

// Wire field numbers of the binary encoding
const (
	fieldTotal     protowire.Number = 1
	fieldAbandoned protowire.Number = 2
	fieldBin       protowire.Number = 3
	fieldTrackerID protowire.Number = 4
	fieldSavedAt   protowire.Number = 5
	fieldChecksum  protowire.Number = 15

	binFieldMs    protowire.Number = 1
	binFieldCount protowire.Number = 2
)

// Seed of the record checksum
const defaultChecksumSeed = 0x63627473

// Serializer handles the binary and JSON encodings of a Snapshot. The binary
// form is protobuf wire format closed by a murmur3 checksum of everything
// before it.
type Serializer struct {
	seed uint32
}

// NewSerializer creates a new serializer instance
func NewSerializer() *Serializer {
	return &Serializer{seed: defaultChecksumSeed}
}

// Serialize converts a Snapshot to bytes
func (s *Serializer) Serialize(snap *Snapshot) ([]byte, error) {
	if snap == nil || snap.Record == nil {
		return nil, NewSerializationError(nil, "snapshot cannot be nil")
	}

	var b []byte
	b = protowire.AppendTag(b, fieldTotal, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(snap.Record.TotalBuildTimes))
	b = protowire.AppendTag(b, fieldAbandoned, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(snap.Record.AbandonedCount))

	for _, bin := range snap.Record.Bins {
		var m []byte
		m = protowire.AppendTag(m, binFieldMs, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(bin.Ms))
		m = protowire.AppendTag(m, binFieldCount, protowire.VarintType)
		m = protowire.AppendVarint(m, uint64(bin.Count))

		b = protowire.AppendTag(b, fieldBin, protowire.BytesType)
		b = protowire.AppendBytes(b, m)
	}

	if snap.TrackerID != "" {
		b = protowire.AppendTag(b, fieldTrackerID, protowire.BytesType)
		b = protowire.AppendString(b, snap.TrackerID)
	}
	b = protowire.AppendTag(b, fieldSavedAt, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(snap.SavedAtMs))

	sum := murmur3.Sum32WithSeed(b, s.seed)
	b = protowire.AppendTag(b, fieldChecksum, protowire.Fixed32Type)
	b = protowire.AppendFixed32(b, sum)

	return b, nil
}

// Deserialize converts bytes back to a Snapshot
func (s *Serializer) Deserialize(b []byte) (*Snapshot, error) {
	if len(b) == 0 {
		return nil, NewSerializationError(nil, "data cannot be empty")
	}

	snap := &Snapshot{Record: &StateRecord{}}
	checked := false

	for off := 0; off < len(b); {
		num, typ, n := protowire.ConsumeTag(b[off:])
		if n < 0 {
			return nil, NewSerializationError(protowire.ParseError(n), "bad tag at offset %d", off)
		}
		tagStart := off
		off += n

		switch {
		case num == fieldChecksum && typ == protowire.Fixed32Type:
			sum, n := protowire.ConsumeFixed32(b[off:])
			if n < 0 {
				return nil, NewSerializationError(protowire.ParseError(n), "bad checksum")
			}
			off += n
			if off != len(b) {
				return nil, NewSerializationError(ErrMalformedRecord, "trailing data after checksum")
			}
			if murmur3.Sum32WithSeed(b[:tagStart], s.seed) != sum {
				return nil, NewSerializationError(ErrChecksum, "record checksum %08x does not match", sum)
			}
			checked = true

		case (num == fieldTotal || num == fieldAbandoned || num == fieldSavedAt) && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(b[off:])
			if n < 0 {
				return nil, NewSerializationError(protowire.ParseError(n), "bad varint for field %d", num)
			}
			off += n
			switch num {
			case fieldTotal:
				if v > math.MaxUint32 {
					return nil, NewSerializationError(ErrMalformedRecord, "total %d out of range", v)
				}
				snap.Record.TotalBuildTimes = uint32(v)
			case fieldAbandoned:
				if v > math.MaxUint32 {
					return nil, NewSerializationError(ErrMalformedRecord, "abandoned count %d out of range", v)
				}
				snap.Record.AbandonedCount = uint32(v)
			default:
				snap.SavedAtMs = protowire.DecodeZigZag(v)
			}

		case num == fieldBin && typ == protowire.BytesType:
			m, n := protowire.ConsumeBytes(b[off:])
			if n < 0 {
				return nil, NewSerializationError(protowire.ParseError(n), "bad bin")
			}
			off += n
			bin, err := decodeBin(m)
			if err != nil {
				return nil, err
			}
			snap.Record.Bins = append(snap.Record.Bins, bin)

		case num == fieldTrackerID && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(b[off:])
			if n < 0 {
				return nil, NewSerializationError(protowire.ParseError(n), "bad tracker id")
			}
			off += n
			snap.TrackerID = v

		default:
			n := protowire.ConsumeFieldValue(num, typ, b[off:])
			if n < 0 {
				return nil, NewSerializationError(protowire.ParseError(n), "bad field %d", num)
			}
			off += n
		}
	}

	if !checked {
		return nil, NewSerializationError(ErrChecksum, "record has no checksum")
	}

	return snap, nil
}

func decodeBin(m []byte) (Bin, error) {
	var bin Bin
	for off := 0; off < len(m); {
		num, typ, n := protowire.ConsumeTag(m[off:])
		if n < 0 {
			return Bin{}, NewSerializationError(protowire.ParseError(n), "bad bin tag")
		}
		off += n

		if typ != protowire.VarintType || (num != binFieldMs && num != binFieldCount) {
			n = protowire.ConsumeFieldValue(num, typ, m[off:])
			if n < 0 {
				return Bin{}, NewSerializationError(protowire.ParseError(n), "bad bin field %d", num)
			}
			off += n
			continue
		}

		v, n := protowire.ConsumeVarint(m[off:])
		if n < 0 {
			return Bin{}, NewSerializationError(protowire.ParseError(n), "bad bin varint")
		}
		off += n
		if v > math.MaxUint32 {
			return Bin{}, NewSerializationError(ErrMalformedRecord, "bin value %d out of range", v)
		}
		if num == binFieldMs {
			bin.Ms = uint32(v)
		} else {
			bin.Count = uint32(v)
		}
	}
	return bin, nil
}

// SerializeToJSON converts a Snapshot to JSON bytes
func (s *Serializer) SerializeToJSON(snap *Snapshot) ([]byte, error) {
	if snap == nil || snap.Record == nil {
		return nil, NewSerializationError(nil, "snapshot cannot be nil")
	}

	bins := make([]any, 0, len(snap.Record.Bins))
	for _, b := range snap.Record.Bins {
		bins = append(bins, map[string]any{"ms": b.Ms, "count": b.Count})
	}

	st, err := structpb.NewStruct(map[string]any{
		"trackerId":       snap.TrackerID,
		"savedAtMs":       snap.SavedAtMs,
		"totalBuildTimes": snap.Record.TotalBuildTimes,
		"abandonedCount":  snap.Record.AbandonedCount,
		"bins":            bins,
	})
	if err != nil {
		return nil, NewSerializationError(err, "failed to build JSON value")
	}

	return protojson.MarshalOptions{Multiline: true}.Marshal(st)
}

// DeserializeFromJSON converts JSON bytes back to a Snapshot
func (s *Serializer) DeserializeFromJSON(b []byte) (*Snapshot, error) {
	if len(b) == 0 {
		return nil, NewSerializationError(nil, "data cannot be empty")
	}

	st := &structpb.Struct{}
	if err := protojson.Unmarshal(b, st); err != nil {
		return nil, NewSerializationError(err, "failed to unmarshal JSON")
	}
	fields := st.GetFields()

	snap := &Snapshot{
		TrackerID: fields["trackerId"].GetStringValue(),
		Record:    &StateRecord{},
	}

	savedAt, err := jsonInteger(fields, "savedAtMs", math.MinInt64, math.MaxInt64)
	if err != nil {
		return nil, err
	}
	snap.SavedAtMs = int64(savedAt)

	total, err := jsonInteger(fields, "totalBuildTimes", 0, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	snap.Record.TotalBuildTimes = uint32(total)

	abandoned, err := jsonInteger(fields, "abandonedCount", 0, math.MaxUint32)
	if err != nil {
		return nil, err
	}
	snap.Record.AbandonedCount = uint32(abandoned)

	for i, v := range fields["bins"].GetListValue().GetValues() {
		bf := v.GetStructValue().GetFields()
		if bf == nil {
			return nil, NewSerializationError(ErrMalformedRecord, "bin %d is not an object", i)
		}
		ms, err := jsonInteger(bf, "ms", 1, math.MaxInt32)
		if err != nil {
			return nil, err
		}
		count, err := jsonInteger(bf, "count", 0, math.MaxUint32)
		if err != nil {
			return nil, err
		}
		snap.Record.Bins = append(snap.Record.Bins, Bin{Ms: uint32(ms), Count: uint32(count)})
	}

	return snap, nil
}

// Missing fields read as zero when zero is in range
func jsonInteger(fields map[string]*structpb.Value, key string, min, max float64) (float64, error) {
	v, ok := fields[key]
	if !ok {
		if min > 0 {
			return 0, NewSerializationError(ErrMalformedRecord, "missing %s", key)
		}
		return 0, nil
	}

	n, ok := v.GetKind().(*structpb.Value_NumberValue)
	if !ok {
		return 0, NewSerializationError(ErrMalformedRecord, "%s is not a number", key)
	}
	f := n.NumberValue
	if f != math.Trunc(f) || f < min || f > max {
		return 0, NewSerializationError(ErrMalformedRecord, "%s %v out of range", key, f)
	}
	return f, nil
}
