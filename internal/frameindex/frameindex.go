// Package frameindex encodes pack frame indexes as FlatBuffers tables.
//
// The table has no generated schema code; fields are addressed by slot:
//
//	table FrameIndex {
//	  version:uint32;
//	  frame_count:uint32;
//	  max_frame_size:uint64;
//	  offsets:[uint64];
//	  sizes:[uint64];
//	}
//	file_identifier "ZUSI";
package frameindex

import (
	"errors"
	"fmt"

	flatbuffers "github.com/google/flatbuffers/go"
)

// FileIdentifier marks frame index buffers.
const FileIdentifier = "ZUSI"

const (
	slotVersion = iota
	slotFrameCount
	slotMaxFrameSize
	slotOffsets
	slotSizes
	slotCount
)

// ErrMalformed is returned when a buffer is not a frame index.
var ErrMalformed = errors.New("frameindex: malformed index")

// Index is the decoded form of a frame index.
type Index struct {
	Version      uint32
	FrameCount   uint32
	MaxFrameSize uint64
	Offsets      []uint64
	Sizes        []uint64
}

// Encode serializes idx.
func Encode(idx *Index) []byte {
	b := flatbuffers.NewBuilder(64 + 16*len(idx.Offsets))

	sizes := uint64Vector(b, idx.Sizes)
	offsets := uint64Vector(b, idx.Offsets)

	b.StartObject(slotCount)
	b.PrependUOffsetTSlot(slotSizes, sizes, 0)
	b.PrependUOffsetTSlot(slotOffsets, offsets, 0)
	b.PrependUint64Slot(slotMaxFrameSize, idx.MaxFrameSize, 0)
	b.PrependUint32Slot(slotFrameCount, idx.FrameCount, 0)
	b.PrependUint32Slot(slotVersion, idx.Version, 0)
	root := b.EndObject()

	b.FinishWithFileIdentifier(root, []byte(FileIdentifier))
	return b.FinishedBytes()
}

// Decode parses a buffer produced by Encode. The result does not alias data.
func Decode(data []byte) (idx *Index, err error) {
	defer func() {
		if r := recover(); r != nil {
			idx = nil
			err = fmt.Errorf("%w: %v", ErrMalformed, r)
		}
	}()

	if len(data) < 2*flatbuffers.SizeUOffsetT {
		return nil, fmt.Errorf("%w: %d bytes", ErrMalformed, len(data))
	}
	if string(data[flatbuffers.SizeUOffsetT:2*flatbuffers.SizeUOffsetT]) != FileIdentifier {
		return nil, fmt.Errorf("%w: missing %q identifier", ErrMalformed, FileIdentifier)
	}
	root := flatbuffers.GetUOffsetT(data)
	if int(root) >= len(data) {
		return nil, fmt.Errorf("%w: root offset out of range", ErrMalformed)
	}

	t := &flatbuffers.Table{Bytes: data, Pos: root}
	offsets, err := uint64Slice(t, slotOffsets)
	if err != nil {
		return nil, err
	}
	sizes, err := uint64Slice(t, slotSizes)
	if err != nil {
		return nil, err
	}
	return &Index{
		Version:      t.GetUint32Slot(vtableOffset(slotVersion), 0),
		FrameCount:   t.GetUint32Slot(vtableOffset(slotFrameCount), 0),
		MaxFrameSize: t.GetUint64Slot(vtableOffset(slotMaxFrameSize), 0),
		Offsets:      offsets,
		Sizes:        sizes,
	}, nil
}

func vtableOffset(slot int) flatbuffers.VOffsetT {
	return flatbuffers.VOffsetT(4 + 2*slot)
}

func uint64Vector(b *flatbuffers.Builder, v []uint64) flatbuffers.UOffsetT {
	b.StartVector(8, len(v), 8)
	for i := len(v) - 1; i >= 0; i-- {
		b.PrependUint64(v[i])
	}
	return b.EndVector(len(v))
}

func uint64Slice(t *flatbuffers.Table, slot int) ([]uint64, error) {
	o := flatbuffers.UOffsetT(t.Offset(vtableOffset(slot)))
	if o == 0 {
		return nil, nil
	}
	start := t.Vector(o)
	n := t.VectorLen(o)
	if n < 0 || int(start)+n*8 > len(t.Bytes) {
		return nil, fmt.Errorf("%w: vector out of range", ErrMalformed)
	}
	out := make([]uint64, n)
	for i := range out {
		out[i] = t.GetUint64(start + flatbuffers.UOffsetT(i*8))
	}
	return out, nil
}
