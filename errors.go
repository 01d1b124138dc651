package zus

import (
	"errors"
	"fmt"
)

// Sentinel errors for header decoding.
var (
	// ErrInvalidMagic is returned when the first four bytes are not the pack magic.
	ErrInvalidMagic = errors.New("zus: invalid magic")

	// ErrUnsupportedVersion is returned for versions this package cannot read.
	ErrUnsupportedVersion = errors.New("zus: unsupported version")

	// ErrTruncated is returned when data ends before a required region.
	ErrTruncated = errors.New("zus: truncated data")
)

// Sentinel errors for packing.
var (
	// ErrInvalidState is returned when a Packer method is called out of order.
	ErrInvalidState = errors.New("zus: invalid packer state")

	// ErrBufferFull is returned when the output buffer is full and no flush
	// function is configured.
	ErrBufferFull = errors.New("zus: output buffer full")

	// ErrFlush is returned when the flush function fails. It is terminal.
	ErrFlush = errors.New("zus: flush failed")

	// ErrCompression is returned when the encoder fails on a single frame.
	ErrCompression = errors.New("zus: compression failed")

	// ErrSizeOverflow is returned when a size exceeds what the format can record.
	ErrSizeOverflow = errors.New("zus: size overflow")
)

// Sentinel errors for unpacking.
var (
	// ErrInvalidFrame is returned when a frame index is out of range.
	ErrInvalidFrame = errors.New("zus: invalid frame index")

	// ErrInvalidData is returned when the bytes at a frame boundary are not a
	// valid compressed frame.
	ErrInvalidData = errors.New("zus: invalid frame data")

	// ErrBufferTooSmall is returned when a caller-provided buffer cannot hold
	// the result.
	ErrBufferTooSmall = errors.New("zus: buffer too small")

	// ErrIndexMismatch is returned when a frame index does not describe the pack.
	ErrIndexMismatch = errors.New("zus: frame index does not match pack")
)

// FrameError records the frame and region offset an operation failed at.
// Offset is -1 when the failure happened before an offset was known.
type FrameError struct {
	Op     string
	Index  int
	Offset int64
	Err    error
}

func (e *FrameError) Error() string {
	if e.Offset < 0 {
		return fmt.Sprintf("%s frame %d: %v", e.Op, e.Index, e.Err)
	}
	return fmt.Sprintf("%s frame %d at offset %d: %v", e.Op, e.Index, e.Offset, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

func frameErr(op string, idx int, off int64, err error) error {
	return &FrameError{Op: op, Index: idx, Offset: off, Err: err}
}
