package zstdframe

import (
	"bytes"
	"fmt"
	"io"
	"sync"

	"github.com/klauspost/compress/zstd"
)

// DefaultMaxDecoderMemory is the default decoder memory limit (256MB).
const DefaultMaxDecoderMemory = 256 << 20

// Decoder decompresses single zstd frames.
// A Decoder is safe for concurrent use.
type Decoder struct {
	pool               *sync.Pool
	maxDecoderMemory   uint64
	decoderConcurrency int
}

// Option configures a Decoder.
type Option func(*Decoder)

// WithMaxMemory limits the memory a decoder may allocate for one frame.
// Set to 0 to disable the limit.
func WithMaxMemory(limit uint64) Option {
	return func(d *Decoder) {
		d.maxDecoderMemory = limit
	}
}

// WithConcurrency sets the concurrency of each pooled decoder (default: 1).
// Values < 0 are treated as 0 (use GOMAXPROCS).
func WithConcurrency(n int) Option {
	return func(d *Decoder) {
		if n < 0 {
			n = 0
		}
		d.decoderConcurrency = n
	}
}

// NewDecoder creates a Decoder backed by a pool of zstd decoders.
func NewDecoder(opts ...Option) *Decoder {
	d := &Decoder{
		maxDecoderMemory:   DefaultMaxDecoderMemory,
		decoderConcurrency: 1,
	}
	for _, opt := range opts {
		opt(d)
	}
	d.pool = &sync.Pool{
		New: func() any {
			dec, err := d.newDecoder(nil)
			if err != nil {
				return nil
			}
			return dec
		},
	}
	return d
}

// FrameSize implements the compressed size query for the frame at src[0].
func (d *Decoder) FrameSize(src []byte) (int, error) {
	return FrameSize(src)
}

// ContentSize returns the decompressed size recorded in the frame header.
func (d *Decoder) ContentSize(src []byte) (uint64, bool, error) {
	return ContentSize(src)
}

// Decompress decodes the single frame in src into dst and returns the number
// of bytes written. It returns ErrBufferTooSmall if len(dst) cannot hold the
// decompressed frame; dst may have been partially written in that case.
func (d *Decoder) Decompress(dst, src []byte) (int, error) {
	size, ok, err := ContentSize(src)
	if err != nil {
		return 0, err
	}
	if ok && size > uint64(len(dst)) {
		return 0, ErrBufferTooSmall
	}

	dec, release, err := d.get(nil)
	if err != nil {
		return 0, err
	}
	defer release()

	// Cap the slice so DecodeAll cannot grow past the caller's buffer
	// without reallocating.
	out, err := dec.DecodeAll(src, dst[:0:len(dst)])
	if err != nil {
		return 0, fmt.Errorf("decode frame: %w", err)
	}
	if len(out) > 0 && (len(out) > len(dst) || &out[0] != &dst[0]) {
		return 0, ErrBufferTooSmall
	}
	return len(out), nil
}

// Stream returns a reader producing the decompressed contents of the single
// frame in src. The caller must Close the reader to return the decoder to
// the pool.
func (d *Decoder) Stream(src []byte) (io.ReadCloser, error) {
	dec, release, err := d.get(bytes.NewReader(src))
	if err != nil {
		return nil, err
	}
	return &streamReader{dec: dec, release: release}, nil
}

type streamReader struct {
	dec     *zstd.Decoder
	release func()
	once    sync.Once
}

func (s *streamReader) Read(p []byte) (int, error) {
	if s.dec == nil {
		return 0, io.ErrClosedPipe
	}
	return s.dec.Read(p)
}

func (s *streamReader) Close() error {
	s.once.Do(func() {
		s.release()
		s.dec = nil
	})
	return nil
}

// get returns a decoder configured to read from r (nil for DecodeAll use).
// The caller must call the returned release function when done.
func (d *Decoder) get(r io.Reader) (*zstd.Decoder, func(), error) {
	value := d.pool.Get()
	dec, ok := value.(*zstd.Decoder)
	if !ok || dec == nil {
		// Pool's New function failed, try directly
		newDec, err := d.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	if err := dec.Reset(r); err != nil {
		dec.Close()
		newDec, err := d.newDecoder(r)
		if err != nil {
			return nil, nil, err
		}
		return newDec, newDec.Close, nil
	}

	return dec, func() {
		_ = dec.Reset(nil) //nolint:errcheck // clearing state before pool return
		d.pool.Put(dec)
	}, nil
}

func (d *Decoder) newDecoder(r io.Reader) (*zstd.Decoder, error) {
	opts := []zstd.DOption{zstd.WithDecoderConcurrency(d.decoderConcurrency)}
	if d.maxDecoderMemory != 0 {
		opts = append(opts, zstd.WithDecoderMaxMemory(d.maxDecoderMemory))
	}
	return zstd.NewReader(r, opts...)
}
