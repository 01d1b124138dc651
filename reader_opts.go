package zus

import "log/slog"

// ReaderOption configures a Reader.
type ReaderOption func(*Reader)

// WithMaxDecoderMemory limits the memory the zstd decoder may use per frame
// (default 256MB). Set limit to 0 to disable the limit.
func WithMaxDecoderMemory(limit uint64) ReaderOption {
	return func(r *Reader) {
		r.maxDecoderMemory = limit
	}
}

// WithDecoderConcurrency sets the zstd decoder concurrency (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithDecoderConcurrency(n int) ReaderOption {
	return func(r *Reader) {
		if n < 0 {
			n = 0
		}
		r.decoderConcurrency = n
	}
}

// WithFrameDecoder replaces the default zstd decoder.
func WithFrameDecoder(dec FrameDecoder) ReaderOption {
	return func(r *Reader) {
		r.dec = dec
	}
}

// WithFrameIndex seeds the offset cache from a previously built index so no
// walk of the frame region is needed. NewReader fails with ErrIndexMismatch
// if the index does not fit the pack.
func WithFrameIndex(idx *FrameIndex) ReaderOption {
	return func(r *Reader) {
		r.index = idx
	}
}

// WithReaderLogger sets the logger for read operations.
// If not set, logging is disabled.
func WithReaderLogger(logger *slog.Logger) ReaderOption {
	return func(r *Reader) {
		r.logger = logger
	}
}
