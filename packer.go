package zus

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"time"

	"github.com/klauspost/compress/zstd"

	"github.com/meigma/zus/internal/sizing"
	"github.com/meigma/zus/internal/zstdframe"
)

// Encoder is the streaming compressor driven by a Packer.
// *zstd.Encoder satisfies it.
type Encoder interface {
	// ResetContentSize starts a new frame written to w. A size > 0 is
	// recorded as the frame content size.
	ResetContentSize(w io.Writer, size int64)

	// Write compresses p into the current frame.
	Write(p []byte) (int, error)

	// Close writes the end of the current frame.
	Close() error
}

// FlushFunc drains the packer's output buffer.
//
// p holds bytes that belong at absolute offset off of the pack and is only
// valid for the duration of the call. Offsets normally increase, except that
// Finish rewrites the header region at offset 0 once everything else has been
// flushed, and after a failed frame the next one is written over the failed
// frame's flushed bytes. Bytes flushed past the final Size can be left over
// from such a frame and are not part of the pack. A non-nil error aborts
// packing.
type FlushFunc func(p []byte, off int64) error

// WriterAtFlush returns a FlushFunc that writes to w at the given offsets.
// *os.File satisfies io.WriterAt.
func WriterAtFlush(w io.WriterAt) FlushFunc {
	return func(p []byte, off int64) error {
		_, err := w.WriteAt(p, off)
		return err
	}
}

type packerState uint8

const (
	stateIdle packerState = iota
	stateStreaming
	stateFinalized
	stateFailed
)

// Packer compresses raw frames into a caller-supplied buffer.
//
// The first PushFrame (or Finish) reserves the header and user data region.
// Each frame is compressed as one zstd frame starting on a 256-byte boundary.
// When the buffer fills, the configured FlushFunc receives the filled bytes
// and the buffer is reused; without one, PushFrame fails with ErrBufferFull
// and the frame is dropped. Finish writes the final header.
//
// A Packer must not be used from multiple goroutines at once.
type Packer struct {
	buf     []byte
	widx    int
	base    int64
	flushes int
	flush   FlushFunc

	header    Header
	userData  []byte
	dataStart int64

	enc     Encoder
	level   zstd.EncoderLevel
	state   packerState
	err     error
	sinkErr error

	logger   *slog.Logger
	progress ProgressFunc
}

// NewPacker creates a Packer that writes into buf.
// len(buf) is the buffer capacity.
func NewPacker(buf []byte, opts ...PackerOption) (*Packer, error) {
	p := &Packer{
		level:  zstd.SpeedDefault,
		header: Header{Version: CurrentVersion},
	}
	p.header.Timestamp = unixSeconds(time.Now())
	for _, opt := range opts {
		opt(p)
	}

	size, err := sizing.ToUint32(len(p.userData), ErrSizeOverflow)
	if err != nil {
		return nil, fmt.Errorf("user data: %w", err)
	}
	p.header.UserDataSize = size
	p.dataStart = dataStart(int64(size))

	if err := p.setBuffer(buf); err != nil {
		return nil, err
	}

	if p.enc == nil {
		enc, err := zstdframe.NewEncoder(p.level)
		if err != nil {
			return nil, fmt.Errorf("create zstd encoder: %w", err)
		}
		p.enc = enc
	}
	return p, nil
}

// Reset returns the packer to its initial state so it can produce another
// pack into buf, which may be the previous buffer. Frame counts are cleared;
// identifiers, user data, and the encoder are kept.
func (p *Packer) Reset(buf []byte) error {
	if err := p.setBuffer(buf); err != nil {
		return err
	}
	p.widx = 0
	p.base = 0
	p.flushes = 0
	p.header.FrameCount = 0
	p.header.MaxFrameSize = 0
	p.state = stateIdle
	p.err = nil
	p.sinkErr = nil
	return nil
}

func (p *Packer) setBuffer(buf []byte) error {
	if len(buf) == 0 {
		return fmt.Errorf("%w: empty output buffer", ErrBufferTooSmall)
	}
	p.buf = buf
	return nil
}

// PushFrame compresses raw as the next frame.
//
// raw is not retained after PushFrame returns. On ErrBufferFull or
// ErrCompression the frame is discarded and earlier frames are unaffected;
// ErrFlush is terminal.
func (p *Packer) PushFrame(raw []byte) error {
	if err := p.checkUsable("push frame"); err != nil {
		return err
	}
	if p.state == stateIdle {
		if err := p.begin(); err != nil {
			return err
		}
	}

	idx := int(p.header.FrameCount)
	if p.header.FrameCount == math.MaxUint32 {
		return frameErr("push", idx, -1, ErrSizeOverflow)
	}

	p.sinkErr = nil
	markIdx, markFlushes := p.widx, p.flushes
	start := AlignUp(p.offset())
	if err := p.writeZeros(start - p.offset()); err != nil {
		return p.abort(idx, start, markIdx, markFlushes, err)
	}

	p.enc.ResetContentSize((*streamWriter)(p), int64(len(raw)))
	_, err := p.enc.Write(raw)
	if err == nil {
		err = p.enc.Close()
	}
	if err != nil {
		return p.abort(idx, start, markIdx, markFlushes, err)
	}

	p.header.FrameCount++
	if size := uint64(len(raw)); size > p.header.MaxFrameSize {
		p.header.MaxFrameSize = size
	}

	p.log().Debug("packed frame",
		"frame", idx,
		"offset", start,
		"raw_size", len(raw),
		"compressed_size", p.offset()-start)
	p.reportProgress(StagePacking, idx)
	return nil
}

// Finish writes the final header and user data and ends the pack.
//
// Without a FlushFunc the complete pack is available from Bytes. With one,
// the remaining buffered bytes are flushed, followed by the header region at
// offset 0 if the buffer had been flushed earlier.
func (p *Packer) Finish() error {
	if err := p.checkUsable("finish"); err != nil {
		return err
	}
	if p.state == stateIdle {
		if err := p.begin(); err != nil {
			return err
		}
	}

	region := p.headerRegion()
	if p.flushes == 0 {
		copy(p.buf, region)
		if p.flush != nil && p.widx > 0 {
			if err := p.drain(); err != nil {
				return p.fail(err)
			}
		}
	} else {
		if p.widx > 0 {
			if err := p.drain(); err != nil {
				return p.fail(err)
			}
		}
		if err := p.flush(region, 0); err != nil {
			return p.fail(fmt.Errorf("%w: header: %w", ErrFlush, err))
		}
	}

	p.state = stateFinalized
	p.reportProgress(StageFinalizing, -1)
	p.log().Info("pack finished",
		"frames", p.header.FrameCount,
		"max_frame_size", p.header.MaxFrameSize,
		"size", p.Size(),
		"flushes", p.flushes)
	return nil
}

// Header returns the header as it stands. After Finish it is the header
// that was written.
func (p *Packer) Header() Header {
	return p.header
}

// FrameCount returns the number of frames pushed successfully.
func (p *Packer) FrameCount() int {
	return int(p.header.FrameCount)
}

// Size returns the number of pack bytes produced so far, including bytes
// already handed to the FlushFunc.
func (p *Packer) Size() int64 {
	return p.offset()
}

// Bytes returns the finalized pack held in the buffer. It returns nil before
// Finish and when a FlushFunc is configured, since the pack was delivered
// through it.
func (p *Packer) Bytes() []byte {
	if p.state != stateFinalized || p.flush != nil {
		return nil
	}
	return p.buf[:p.widx]
}

// begin reserves the header and user data region.
func (p *Packer) begin() error {
	if err := p.writeZeros(p.dataStart); err != nil {
		if errors.Is(err, ErrFlush) {
			return p.fail(err)
		}
		p.widx = 0
		return fmt.Errorf("reserve header: %w", err)
	}
	p.state = stateStreaming
	p.log().Debug("pack started",
		"capacity", len(p.buf),
		"user_data_size", p.header.UserDataSize,
		"data_start", p.dataStart)
	return nil
}

func (p *Packer) headerRegion() []byte {
	region := make([]byte, p.dataStart)
	p.header.EncodeTo(region)
	copy(region[HeaderSize:], p.userData)
	return region
}

func (p *Packer) checkUsable(op string) error {
	switch p.state {
	case stateFinalized:
		return fmt.Errorf("%w: %s after finish", ErrInvalidState, op)
	case stateFailed:
		return fmt.Errorf("%w: %s after failure: %w", ErrInvalidState, op, p.err)
	}
	return nil
}

// abort discards a partially written frame. Bytes of the frame that were
// already flushed are rewound over: the next frame starts at the same offset
// and later flushes overwrite them.
func (p *Packer) abort(idx int, start int64, markIdx, markFlushes int, err error) error {
	if p.sinkErr != nil {
		err = p.sinkErr
	}
	switch {
	case errors.Is(err, ErrFlush):
		_ = p.fail(err)
	case errors.Is(err, ErrBufferFull):
	default:
		err = fmt.Errorf("%w: %w", ErrCompression, err)
	}

	if p.state != stateFailed {
		switch {
		case p.flushes == markFlushes:
			p.widx = markIdx
		case p.base <= start:
			p.widx = int(min(int64(p.widx), start-p.base))
		default:
			p.log().Debug("rewinding flushed frame bytes", "frame", idx, "from", p.base, "to", start)
			p.base = start
			p.widx = 0
		}
	}
	p.log().Warn("frame aborted", "frame", idx, "offset", start, "error", err)
	return frameErr("push", idx, start, err)
}

func (p *Packer) fail(err error) error {
	p.state = stateFailed
	p.err = err
	p.log().Error("packing failed", "error", err, "flushed_bytes", p.base)
	return err
}

func (p *Packer) offset() int64 {
	return p.base + int64(p.widx)
}

// write copies b into the buffer, draining it whenever it fills.
func (p *Packer) write(b []byte) (int, error) {
	n := 0
	for len(b) > 0 {
		if p.widx == len(p.buf) {
			if err := p.drain(); err != nil {
				return n, err
			}
		}
		c := copy(p.buf[p.widx:], b)
		p.widx += c
		n += c
		b = b[c:]
	}
	return n, nil
}

// writeZeros writes n zero bytes. Buffers may be reused, so gaps are
// always cleared explicitly.
func (p *Packer) writeZeros(n int64) error {
	for n > 0 {
		if p.widx == len(p.buf) {
			if err := p.drain(); err != nil {
				return err
			}
		}
		c := min(int64(len(p.buf)-p.widx), n)
		clear(p.buf[p.widx : p.widx+int(c)])
		p.widx += int(c)
		n -= c
	}
	return nil
}

func (p *Packer) drain() error {
	if p.flush == nil {
		return ErrBufferFull
	}
	next, ok := sizing.AddInt64(p.base, int64(p.widx))
	if !ok {
		return ErrSizeOverflow
	}
	if err := p.flush(p.buf[:p.widx], p.base); err != nil {
		return fmt.Errorf("%w: %w", ErrFlush, err)
	}
	p.log().Debug("flushed buffer", "offset", p.base, "size", p.widx)
	p.base = next
	p.widx = 0
	p.flushes++
	p.reportProgress(StageFlushing, -1)
	return nil
}

// log returns the logger, falling back to a discard logger if nil.
func (p *Packer) log() *slog.Logger {
	if p.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return p.logger
}

func (p *Packer) reportProgress(stage ProgressStage, frame int) {
	if p.progress == nil {
		return
	}
	p.progress(ProgressEvent{
		Stage:      stage,
		Frame:      frame,
		BytesDone:  uint64(p.offset()), //nolint:gosec // offset is never negative
		FramesDone: int(p.header.FrameCount),
	})
}

// streamWriter is the io.Writer the encoder writes compressed output to.
// After a buffer or flush failure it keeps failing so the flush function is
// never called again for the aborted frame.
type streamWriter Packer

func (w *streamWriter) Write(b []byte) (int, error) {
	p := (*Packer)(w)
	if p.sinkErr != nil {
		return 0, p.sinkErr
	}
	n, err := p.write(b)
	if err != nil {
		p.sinkErr = err
	}
	return n, err
}
