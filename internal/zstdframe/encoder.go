package zstdframe

import (
	"io"

	"github.com/klauspost/compress/zstd"
)

// NewEncoder returns a streaming encoder suited to packing frames.
//
// The encoder runs synchronously (concurrency 1) so writes to the destination
// happen on the caller's goroutine, and empty inputs still produce a frame.
func NewEncoder(level zstd.EncoderLevel) (*zstd.Encoder, error) {
	return zstd.NewWriter(io.Discard,
		zstd.WithEncoderLevel(level),
		zstd.WithEncoderConcurrency(1),
		zstd.WithEncoderCRC(true),
		zstd.WithZeroFrames(true),
		zstd.WithLowerEncoderMem(true),
	)
}
