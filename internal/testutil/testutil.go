// Package testutil provides deterministic frame data and flush recorders
// for tests.
package testutil

import (
	"math/rand/v2"
	"sync"
)

// Frame returns n bytes of deterministic, compressible data derived from seed.
// It looks like a detector readout: slowly varying counts with noise.
func Frame(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)) //nolint:gosec // test data
	b := make([]byte, n)
	base := byte(seed)
	for i := range b {
		if i%64 == 0 {
			base += byte(rng.IntN(3))
		}
		b[i] = base + byte(rng.IntN(4))
	}
	return b
}

// RandomFrame returns n bytes of incompressible data derived from seed.
func RandomFrame(seed uint64, n int) []byte {
	rng := rand.New(rand.NewPCG(seed, ^seed)) //nolint:gosec // test data
	b := make([]byte, n)
	for i := range b {
		b[i] = byte(rng.Uint32())
	}
	return b
}

// Frames returns one Frame per size, seeded by position.
func Frames(sizes ...int) [][]byte {
	frames := make([][]byte, len(sizes))
	for i, n := range sizes {
		frames[i] = Frame(uint64(i)+1, n) //nolint:gosec // i is never negative
	}
	return frames
}

// Flush is a single recorded flush call.
type Flush struct {
	Offset int64
	Data   []byte
}

// FlushRecorder assembles flushed bytes at their offsets, like a file
// written with WriteAt.
type FlushRecorder struct {
	mu      sync.Mutex
	data    []byte
	flushes []Flush
}

// Func returns a flush callback that records into r.
func (r *FlushRecorder) Func() func(p []byte, off int64) error {
	return func(p []byte, off int64) error {
		r.mu.Lock()
		defer r.mu.Unlock()
		if end := int(off) + len(p); end > len(r.data) {
			r.data = append(r.data, make([]byte, end-len(r.data))...)
		}
		copy(r.data[off:], p)
		r.flushes = append(r.flushes, Flush{Offset: off, Data: append([]byte(nil), p...)})
		return nil
	}
}

// Bytes returns the assembled output.
func (r *FlushRecorder) Bytes() []byte {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]byte(nil), r.data...)
}

// Flushes returns every recorded call in order.
func (r *FlushRecorder) Flushes() []Flush {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Flush(nil), r.flushes...)
}
