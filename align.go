package zus

import "github.com/meigma/zus/internal/sizing"

// Alignment is the boundary every region of a pack starts on.
const Alignment = 256

// AlignUp returns the smallest multiple of Alignment that is >= offset.
// An offset that is already aligned is returned unchanged.
func AlignUp(offset int64) int64 {
	return sizing.AlignUp(offset, Alignment)
}

// Padding returns the number of zero bytes needed to bring offset to the next
// boundary.
func Padding(offset int64) int64 {
	return AlignUp(offset) - offset
}
