package zus

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/meigma/zus/internal/sizing"
	"github.com/meigma/zus/internal/zstdframe"
)

// FrameDecoder is the decompression side of the codec used by a Reader.
type FrameDecoder interface {
	// FrameSize returns the exact compressed size of the frame at src[0].
	FrameSize(src []byte) (int, error)

	// Decompress decodes the single frame in src into dst and returns the
	// decompressed size. It must report a dst that is too small with an
	// error matching ErrBufferTooSmall or zstdframe.ErrBufferTooSmall.
	Decompress(dst, src []byte) (int, error)
}

// frameStreamer is implemented by decoders that can decode incrementally.
type frameStreamer interface {
	Stream(src []byte) (io.ReadCloser, error)
}

// contentSizer is implemented by decoders that can read the decompressed
// size from a frame header.
type contentSizer interface {
	ContentSize(src []byte) (uint64, bool, error)
}

// FrameInfo describes one frame of a pack.
type FrameInfo struct {
	// Index is the frame number.
	Index int

	// Offset is the frame start relative to the frame region.
	Offset int64

	// CompressedSize is the size of the zstd frame in bytes, without padding.
	CompressedSize int64

	// Size is the decompressed size in bytes.
	Size uint64
}

// Reader provides random access to the frames of a pack.
//
// Frame offsets are relative to the start of the frame region, which is
// what NewReader receives. The first full walk of the region (from
// ExtractFrameOffsets, BuildIndex, or a frame index passed with
// WithFrameIndex) is cached, after which lookups no longer walk.
//
// A Reader is safe for concurrent use.
type Reader struct {
	header Header
	data   []byte
	dec    FrameDecoder

	maxDecoderMemory   uint64
	decoderConcurrency int
	index              *FrameIndex

	mu      sync.RWMutex
	offsets []int64

	logger *slog.Logger
}

// NewReader creates a Reader for the frame region frames described by h.
// frames is typically a slice of a memory-mapped pack starting at
// h.FrameRegionOffset(); it is retained and must not be modified.
func NewReader(h Header, frames []byte, opts ...ReaderOption) (*Reader, error) {
	r := &Reader{
		header:             h,
		data:               frames,
		maxDecoderMemory:   zstdframe.DefaultMaxDecoderMemory,
		decoderConcurrency: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.dec == nil {
		r.dec = zstdframe.NewDecoder(
			zstdframe.WithMaxMemory(r.maxDecoderMemory),
			zstdframe.WithConcurrency(r.decoderConcurrency),
		)
	}
	if r.index != nil {
		if err := r.index.validate(h, int64(len(frames))); err != nil {
			return nil, err
		}
		r.offsets = r.index.Offsets
	}
	return r, nil
}

// Header returns the pack header.
func (r *Reader) Header() Header {
	return r.header
}

// FrameCount returns the number of frames in the pack.
func (r *Reader) FrameCount() int {
	return int(r.header.FrameCount)
}

// ReadFrame decompresses frame idx into dst and returns its size.
//
// Size dst with Header.MaxFrameSize to never see ErrBufferTooSmall.
func (r *Reader) ReadFrame(idx int, dst []byte) (int, error) {
	off, err := r.FrameOffset(idx)
	if err != nil {
		return 0, err
	}
	return r.readAt(idx, off, dst)
}

// ReadFrameAt decompresses the frame starting at off, as returned by
// ExtractFrameOffsets, into dst and returns its size.
func (r *Reader) ReadFrameAt(off int64, dst []byte) (int, error) {
	return r.readAt(-1, off, dst)
}

// Frame returns a newly allocated copy of frame idx.
func (r *Reader) Frame(idx int) ([]byte, error) {
	src, off, err := r.compressedFrame(idx)
	if err != nil {
		return nil, err
	}
	size, err := r.bufferSize()
	if err != nil {
		return nil, frameErr("read", idx, off, err)
	}
	if cs, ok := r.dec.(contentSizer); ok {
		if n, known, err := cs.ContentSize(src); err == nil && known && n < uint64(size) { //nolint:gosec // size is never negative
			size = int(n) //nolint:gosec // n < size
		}
	}
	buf := make([]byte, size)
	n, err := r.readAt(idx, off, buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

// OpenFrame returns a reader streaming the decompressed frame idx.
// The caller must Close it.
func (r *Reader) OpenFrame(idx int) (io.ReadCloser, error) {
	src, off, err := r.compressedFrame(idx)
	if err != nil {
		return nil, err
	}
	if s, ok := r.dec.(frameStreamer); ok {
		rc, err := s.Stream(src)
		if err != nil {
			return nil, frameErr("open", idx, off, fmt.Errorf("%w: %v", ErrInvalidData, err))
		}
		return rc, nil
	}
	data, err := r.Frame(idx)
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

// CompressedFrame returns the compressed bytes of frame idx without padding.
// The slice aliases the frame region.
func (r *Reader) CompressedFrame(idx int) ([]byte, error) {
	src, _, err := r.compressedFrame(idx)
	return src, err
}

// FrameInfo returns the location and sizes of frame idx.
func (r *Reader) FrameInfo(idx int) (FrameInfo, error) {
	src, off, err := r.compressedFrame(idx)
	if err != nil {
		return FrameInfo{}, err
	}
	var scratch []byte
	size, err := r.contentSize(idx, off, src, &scratch)
	if err != nil {
		return FrameInfo{}, err
	}
	return FrameInfo{
		Index:          idx,
		Offset:         off,
		CompressedSize: int64(len(src)),
		Size:           size,
	}, nil
}

// FrameOffset returns the start of frame idx relative to the frame region.
func (r *Reader) FrameOffset(idx int) (int64, error) {
	if idx < 0 || idx >= r.FrameCount() {
		return 0, frameErr("locate", idx, -1, ErrInvalidFrame)
	}

	r.mu.RLock()
	cached := r.offsets
	r.mu.RUnlock()
	if len(cached) == r.FrameCount() {
		return cached[idx], nil
	}

	var off int64
	for i := range idx {
		n, err := r.frameSize(i, off)
		if err != nil {
			return 0, err
		}
		off = AlignUp(off + n)
	}
	return off, nil
}

// ExtractFrameOffsets walks the frame region once and writes the start offset
// of every frame into dst. It returns the number of offsets written, which is
// the frame count. The offsets are cached for later ReadFrame calls.
func (r *Reader) ExtractFrameOffsets(dst []int64) (int, error) {
	n := r.FrameCount()
	if len(dst) < n {
		return 0, fmt.Errorf("%w: need %d offsets, have %d", ErrBufferTooSmall, n, len(dst))
	}
	offsets, err := r.walk()
	if err != nil {
		return 0, err
	}
	return copy(dst, offsets), nil
}

// walk computes every frame offset and caches the result.
func (r *Reader) walk() ([]int64, error) {
	r.mu.RLock()
	cached := r.offsets
	r.mu.RUnlock()
	if len(cached) == r.FrameCount() {
		return cached, nil
	}

	offsets := make([]int64, r.FrameCount())
	var off int64
	for i := range offsets {
		offsets[i] = off
		n, err := r.frameSize(i, off)
		if err != nil {
			return nil, err
		}
		off = AlignUp(off + n)
	}

	r.mu.Lock()
	r.offsets = offsets
	r.mu.Unlock()
	r.log().Debug("frame offsets cached", "frames", len(offsets))
	return offsets, nil
}

func (r *Reader) compressedFrame(idx int) ([]byte, int64, error) {
	off, err := r.FrameOffset(idx)
	if err != nil {
		return nil, 0, err
	}
	n, err := r.frameSize(idx, off)
	if err != nil {
		return nil, 0, err
	}
	return r.data[off : off+n], off, nil
}

// frameSize returns the compressed size of the frame at off.
func (r *Reader) frameSize(idx int, off int64) (int64, error) {
	if off < 0 || off >= int64(len(r.data)) {
		return 0, frameErr("locate", idx, off, fmt.Errorf("%w: offset outside frame region of %d bytes", ErrInvalidData, len(r.data)))
	}
	if off%Alignment != 0 {
		return 0, frameErr("locate", idx, off, fmt.Errorf("%w: unaligned offset", ErrInvalidData))
	}
	n, err := r.dec.FrameSize(r.data[off:])
	if err != nil {
		return 0, frameErr("locate", idx, off, fmt.Errorf("%w: %v", ErrInvalidData, err))
	}
	return int64(n), nil
}

func (r *Reader) readAt(idx int, off int64, dst []byte) (int, error) {
	n, err := r.frameSize(idx, off)
	if err != nil {
		return 0, err
	}
	size, err := r.dec.Decompress(dst, r.data[off:off+n])
	if err != nil {
		if errors.Is(err, zstdframe.ErrBufferTooSmall) || errors.Is(err, ErrBufferTooSmall) {
			return 0, frameErr("read", idx, off, ErrBufferTooSmall)
		}
		return 0, frameErr("read", idx, off, fmt.Errorf("%w: %v", ErrInvalidData, err))
	}
	return size, nil
}

// contentSize returns the decompressed size of the frame src, decoding it
// into *scratch when the frame header does not record the size. The scratch
// buffer is allocated on first use and may be shared across calls.
func (r *Reader) contentSize(idx int, off int64, src []byte, scratch *[]byte) (uint64, error) {
	if cs, ok := r.dec.(contentSizer); ok {
		size, known, err := cs.ContentSize(src)
		if err != nil {
			return 0, frameErr("size", idx, off, fmt.Errorf("%w: %v", ErrInvalidData, err))
		}
		if known {
			return size, nil
		}
	}
	if *scratch == nil {
		size, err := r.bufferSize()
		if err != nil {
			return 0, frameErr("size", idx, off, err)
		}
		*scratch = make([]byte, size)
	}
	n, err := r.readAt(idx, off, *scratch)
	if err != nil {
		return 0, err
	}
	return uint64(n), nil //nolint:gosec // n is never negative
}

// bufferSize returns the size of a buffer that holds any frame of the pack.
// The header is untrusted, so a max frame size above the decoder memory
// limit is rejected rather than allocated.
func (r *Reader) bufferSize() (int, error) {
	limit := r.maxDecoderMemory
	if limit > 0 && r.header.MaxFrameSize > limit {
		return 0, fmt.Errorf("%w: max frame size %d exceeds decoder memory limit %d",
			ErrSizeOverflow, r.header.MaxFrameSize, limit)
	}
	return sizing.ToInt(r.header.MaxFrameSize, ErrSizeOverflow)
}

// log returns the logger, falling back to a discard logger if nil.
func (r *Reader) log() *slog.Logger {
	if r.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return r.logger
}
