package zstdframe

import (
	"encoding/binary"
	"errors"
	"fmt"

	"github.com/klauspost/compress/zstd"
)

const (
	frameMagic    = 0xFD2FB528
	blockHdrSize  = 3
	checksumSize  = 4
	minFrameBytes = 4 + 1 + blockHdrSize

	blockTypeRaw        = 0
	blockTypeRLE        = 1
	blockTypeCompressed = 2
)

var (
	// ErrNotFrame is returned when bytes do not start a zstd frame.
	ErrNotFrame = errors.New("zstdframe: not a zstd frame")

	// ErrTruncated is returned when a frame extends past the available bytes.
	ErrTruncated = errors.New("zstdframe: truncated frame")

	// ErrBufferTooSmall is returned when the destination cannot hold the
	// decompressed frame.
	ErrBufferTooSmall = errors.New("zstdframe: destination buffer too small")
)

var (
	dictIDSizes = [4]int{0, 1, 2, 4}
	fcsSizes    = [4]int{0, 2, 4, 8}
)

// FrameSize returns the exact compressed size of the zstd frame starting at
// src[0]: frame header, every block, and the optional content checksum.
func FrameSize(src []byte) (int, error) {
	if len(src) < minFrameBytes {
		return 0, ErrTruncated
	}
	if binary.LittleEndian.Uint32(src) != frameMagic {
		return 0, ErrNotFrame
	}
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return 0, fmt.Errorf("%w: %v", ErrNotFrame, err)
	}

	desc := src[4]
	if desc&0x08 != 0 {
		// reserved bit must be zero
		return 0, ErrNotFrame
	}
	singleSegment := desc&0x20 != 0
	pos := 5
	if !singleSegment {
		pos++ // window descriptor
	}
	pos += dictIDSizes[desc&0x03]
	fcsFlag := desc >> 6
	if fcsFlag == 0 && singleSegment {
		pos++
	} else {
		pos += fcsSizes[fcsFlag]
	}

	for {
		if pos+blockHdrSize > len(src) {
			return 0, ErrTruncated
		}
		bh := uint32(src[pos]) | uint32(src[pos+1])<<8 | uint32(src[pos+2])<<16
		pos += blockHdrSize
		last := bh&1 != 0
		size := int(bh >> 3)
		switch (bh >> 1) & 0x03 {
		case blockTypeRaw, blockTypeCompressed:
			pos += size
		case blockTypeRLE:
			pos++
		default:
			return 0, fmt.Errorf("%w: reserved block type", ErrNotFrame)
		}
		if pos > len(src) {
			return 0, ErrTruncated
		}
		if last {
			break
		}
	}

	if desc&0x04 != 0 {
		pos += checksumSize
		if pos > len(src) {
			return 0, ErrTruncated
		}
	}
	return pos, nil
}

// ContentSize returns the decompressed size recorded in the frame header.
// ok is false when the frame does not record its content size.
func ContentSize(src []byte) (size uint64, ok bool, err error) {
	var h zstd.Header
	if err := h.Decode(src); err != nil {
		return 0, false, fmt.Errorf("%w: %v", ErrNotFrame, err)
	}
	if h.Skippable {
		return 0, false, ErrNotFrame
	}
	return h.FrameContentSize, h.HasFCS, nil
}
