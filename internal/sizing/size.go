// Package sizing provides overflow-checked size arithmetic for pack offsets.
package sizing

import "math"

// AlignUp rounds offset up to a multiple of align, which must be a power of two.
// Offsets that are already aligned are returned unchanged.
func AlignUp(offset, align int64) int64 {
	return (offset + align - 1) &^ (align - 1)
}

// AddInt64 adds two non-negative values, returning false on overflow.
func AddInt64(a, b int64) (int64, bool) {
	if a < 0 || b < 0 || a > math.MaxInt64-b {
		return 0, false
	}
	return a + b, true
}

// ToInt converts a uint64 to int, returning overflowErr if it doesn't fit.
func ToInt(size uint64, overflowErr error) (int, error) {
	if size > uint64(math.MaxInt) {
		return 0, overflowErr
	}
	return int(size), nil
}

// ToUint32 converts a length to uint32, returning overflowErr if it doesn't fit.
func ToUint32(n int, overflowErr error) (uint32, error) {
	if n < 0 || uint64(n) > math.MaxUint32 {
		return 0, overflowErr
	}
	return uint32(n), nil
}
