package zus

import (
	"fmt"
	"math"

	"github.com/meigma/zus/internal/frameindex"
)

// indexVersion is the frame index layout written by MarshalBinary.
const indexVersion = 1

// FrameIndex records where every frame of a pack starts and how large it is
// decompressed. Passing it to WithFrameIndex spares the Reader the walk over
// the frame region.
type FrameIndex struct {
	FrameCount   uint32
	MaxFrameSize uint64

	// Offsets are relative to the frame region.
	Offsets []int64

	// Sizes are decompressed frame sizes.
	Sizes []uint64
}

// BuildIndex walks the frame region and records every frame's offset and
// decompressed size.
func (r *Reader) BuildIndex() (*FrameIndex, error) {
	offsets, err := r.walk()
	if err != nil {
		return nil, err
	}
	idx := &FrameIndex{
		FrameCount:   r.header.FrameCount,
		MaxFrameSize: r.header.MaxFrameSize,
		Offsets:      append([]int64(nil), offsets...),
		Sizes:        make([]uint64, len(offsets)),
	}
	var scratch []byte
	for i, off := range offsets {
		n, err := r.frameSize(i, off)
		if err != nil {
			return nil, err
		}
		size, err := r.contentSize(i, off, r.data[off:off+n], &scratch)
		if err != nil {
			return nil, err
		}
		idx.Sizes[i] = size
	}
	r.log().Debug("frame index built", "frames", len(offsets))
	return idx, nil
}

// MarshalBinary encodes the index as a FlatBuffers table.
func (idx *FrameIndex) MarshalBinary() ([]byte, error) {
	if len(idx.Offsets) != int(idx.FrameCount) || len(idx.Sizes) != int(idx.FrameCount) {
		return nil, fmt.Errorf("%w: %d frames, %d offsets, %d sizes",
			ErrIndexMismatch, idx.FrameCount, len(idx.Offsets), len(idx.Sizes))
	}
	offsets := make([]uint64, len(idx.Offsets))
	for i, off := range idx.Offsets {
		if off < 0 {
			return nil, fmt.Errorf("%w: negative offset for frame %d", ErrIndexMismatch, i)
		}
		offsets[i] = uint64(off)
	}
	return frameindex.Encode(&frameindex.Index{
		Version:      indexVersion,
		FrameCount:   idx.FrameCount,
		MaxFrameSize: idx.MaxFrameSize,
		Offsets:      offsets,
		Sizes:        idx.Sizes,
	}), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (idx *FrameIndex) UnmarshalBinary(data []byte) error {
	loaded, err := LoadIndex(data)
	if err != nil {
		return err
	}
	*idx = *loaded
	return nil
}

// LoadIndex decodes an index produced by MarshalBinary.
func LoadIndex(data []byte) (*FrameIndex, error) {
	decoded, err := frameindex.Decode(data)
	if err != nil {
		return nil, fmt.Errorf("load frame index: %w", err)
	}
	if decoded.Version == 0 || decoded.Version > indexVersion {
		return nil, fmt.Errorf("load frame index: %w: index version %d", ErrUnsupportedVersion, decoded.Version)
	}
	if len(decoded.Offsets) != int(decoded.FrameCount) || len(decoded.Sizes) != int(decoded.FrameCount) {
		return nil, fmt.Errorf("load frame index: %w: %d frames, %d offsets, %d sizes",
			ErrIndexMismatch, decoded.FrameCount, len(decoded.Offsets), len(decoded.Sizes))
	}

	idx := &FrameIndex{
		FrameCount:   decoded.FrameCount,
		MaxFrameSize: decoded.MaxFrameSize,
		Offsets:      make([]int64, len(decoded.Offsets)),
		Sizes:        decoded.Sizes,
	}
	for i, off := range decoded.Offsets {
		if off > math.MaxInt64 {
			return nil, fmt.Errorf("load frame index: %w: frame %d", ErrSizeOverflow, i)
		}
		idx.Offsets[i] = int64(off)
	}
	return idx, nil
}

// validate checks that idx describes the pack with header h and a frame
// region of regionSize bytes.
func (idx *FrameIndex) validate(h Header, regionSize int64) error {
	switch {
	case idx.FrameCount != h.FrameCount:
		return fmt.Errorf("%w: index has %d frames, header has %d", ErrIndexMismatch, idx.FrameCount, h.FrameCount)
	case idx.MaxFrameSize != h.MaxFrameSize:
		return fmt.Errorf("%w: index max frame size %d, header has %d", ErrIndexMismatch, idx.MaxFrameSize, h.MaxFrameSize)
	case len(idx.Offsets) != int(h.FrameCount):
		return fmt.Errorf("%w: index has %d offsets for %d frames", ErrIndexMismatch, len(idx.Offsets), h.FrameCount)
	}

	prev := int64(-1)
	for i, off := range idx.Offsets {
		if off <= prev || off%Alignment != 0 || off >= regionSize {
			return fmt.Errorf("%w: bad offset %d for frame %d", ErrIndexMismatch, off, i)
		}
		prev = off
	}
	for i, size := range idx.Sizes {
		if size > h.MaxFrameSize {
			return fmt.Errorf("%w: frame %d larger than max frame size", ErrIndexMismatch, i)
		}
	}
	return nil
}
