package zus

import (
	"bytes"
	"log/slog"
	"time"

	"github.com/klauspost/compress/zstd"
)

// PackerOption configures a Packer.
type PackerOption func(*Packer)

// WithFlush sets the function that drains the output buffer when it fills.
// Without one, PushFrame fails with ErrBufferFull once the buffer is full.
func WithFlush(fn FlushFunc) PackerOption {
	return func(p *Packer) {
		p.flush = fn
	}
}

// WithUserData stores data between the header and the first frame.
// The blob is copied and never interpreted. It cannot change once packing
// has started.
func WithUserData(tag uint32, data []byte) PackerOption {
	return func(p *Packer) {
		p.header.UserDataTag = tag
		p.userData = bytes.Clone(data)
	}
}

// WithArrayID sets the opaque transducer array identifier.
func WithArrayID(id uint32) PackerOption {
	return func(p *Packer) {
		p.header.ArrayID = id
	}
}

// WithSubjectID sets the opaque subject identifier.
func WithSubjectID(id uint32) PackerOption {
	return func(p *Packer) {
		p.header.SubjectID = id
	}
}

// WithImagingMethodID sets the opaque imaging method identifier.
func WithImagingMethodID(id uint32) PackerOption {
	return func(p *Packer) {
		p.header.ImagingMethodID = id
	}
}

// WithTimestamp sets the capture time recorded in the header.
// It defaults to the time NewPacker was called.
func WithTimestamp(t time.Time) PackerOption {
	return func(p *Packer) {
		p.header.Timestamp = unixSeconds(t)
	}
}

// WithCompressionLevel sets the zstd level used by the default encoder.
// It has no effect together with WithEncoder.
func WithCompressionLevel(level zstd.EncoderLevel) PackerOption {
	return func(p *Packer) {
		p.level = level
	}
}

// WithEncoder replaces the default zstd encoder. The encoder must produce
// zstd frames, since readers locate frames by parsing them.
func WithEncoder(enc Encoder) PackerOption {
	return func(p *Packer) {
		p.enc = enc
	}
}

// WithPackerLogger sets the logger for pack operations.
// If not set, logging is disabled.
func WithPackerLogger(logger *slog.Logger) PackerOption {
	return func(p *Packer) {
		p.logger = logger
	}
}

// WithPackerProgress sets a callback invoked after each frame, flush, and
// at finalization.
func WithPackerProgress(fn ProgressFunc) PackerOption {
	return func(p *Packer) {
		p.progress = fn
	}
}

func unixSeconds(t time.Time) uint64 {
	sec := t.Unix()
	if sec < 0 {
		return 0
	}
	return uint64(sec)
}
