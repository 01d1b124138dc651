package zus

import (
	"encoding/binary"
	"time"
)

const (
	// HeaderSize is the fixed size of the pack header.
	HeaderSize = 256

	// Magic identifies a pack: 'P'<<24 | 'S'<<16 | 'U'<<8 | 'Z', stored
	// little endian so the file begins with "ZUSP".
	Magic uint32 = 'P'<<24 | 'S'<<16 | 'U'<<8 | 'Z'

	// CurrentVersion is the highest format version this package reads and
	// the version it writes.
	CurrentVersion uint32 = 1
)

// Field offsets within the header. Bytes 48-255 are zero padding.
const (
	offMagic          = 0
	offVersion        = 4
	offMaxFrameSize   = 8
	offFrameCount     = 16
	offArrayID        = 20
	offSubjectID      = 24
	offImagingMethod  = 28
	offTimestamp      = 32
	offUserDataTag    = 40
	offUserDataSize   = 44
	headerFieldsBytes = 48
)

var le = binary.LittleEndian

// Header is the fixed metadata block at the start of every pack.
//
// The domain identifiers, timestamp, and user data tag are opaque to this
// package and are passed through unmodified.
type Header struct {
	Version         uint32
	MaxFrameSize    uint64
	FrameCount      uint32
	ArrayID         uint32
	SubjectID       uint32
	ImagingMethodID uint32
	Timestamp       uint64
	UserDataTag     uint32
	UserDataSize    uint32
}

// Time returns the header timestamp as a time.Time.
func (h Header) Time() time.Time {
	return time.Unix(int64(h.Timestamp), 0).UTC() //nolint:gosec // opaque unix seconds
}

// UserDataRange returns the byte range of the user data blob.
func (h Header) UserDataRange() (start, end int64) {
	return HeaderSize, HeaderSize + int64(h.UserDataSize)
}

// FrameRegionOffset returns the offset of the first compressed frame.
func (h Header) FrameRegionOffset() int64 {
	return dataStart(int64(h.UserDataSize))
}

func dataStart(userDataSize int64) int64 {
	return AlignUp(HeaderSize + userDataSize)
}

// Encode returns the 256-byte encoding of h.
func (h Header) Encode() []byte {
	b := make([]byte, HeaderSize)
	h.EncodeTo(b)
	return b
}

// EncodeTo writes the encoding of h into dst[:HeaderSize], zeroing the padding.
// It panics if dst is shorter than HeaderSize.
func (h Header) EncodeTo(dst []byte) {
	dst = dst[:HeaderSize]
	le.PutUint32(dst[offMagic:], Magic)
	le.PutUint32(dst[offVersion:], h.Version)
	le.PutUint64(dst[offMaxFrameSize:], h.MaxFrameSize)
	le.PutUint32(dst[offFrameCount:], h.FrameCount)
	le.PutUint32(dst[offArrayID:], h.ArrayID)
	le.PutUint32(dst[offSubjectID:], h.SubjectID)
	le.PutUint32(dst[offImagingMethod:], h.ImagingMethodID)
	le.PutUint64(dst[offTimestamp:], h.Timestamp)
	le.PutUint32(dst[offUserDataTag:], h.UserDataTag)
	le.PutUint32(dst[offUserDataSize:], h.UserDataSize)
	clear(dst[headerFieldsBytes:])
}

// MarshalBinary implements encoding.BinaryMarshaler.
func (h Header) MarshalBinary() ([]byte, error) {
	return h.Encode(), nil
}

// UnmarshalBinary implements encoding.BinaryUnmarshaler.
func (h *Header) UnmarshalBinary(data []byte) error {
	decoded, err := DecodeHeader(data)
	if err != nil {
		return err
	}
	*h = decoded
	return nil
}

// DecodeHeader decodes the header at the start of b.
//
// Only the fixed fields are read; the user data blob is located by the caller
// with UserDataRange.
func DecodeHeader(b []byte) (Header, error) {
	if len(b) < HeaderSize {
		return Header{}, ErrTruncated
	}
	if le.Uint32(b[offMagic:]) != Magic {
		return Header{}, ErrInvalidMagic
	}
	h := Header{
		Version:         le.Uint32(b[offVersion:]),
		MaxFrameSize:    le.Uint64(b[offMaxFrameSize:]),
		FrameCount:      le.Uint32(b[offFrameCount:]),
		ArrayID:         le.Uint32(b[offArrayID:]),
		SubjectID:       le.Uint32(b[offSubjectID:]),
		ImagingMethodID: le.Uint32(b[offImagingMethod:]),
		Timestamp:       le.Uint64(b[offTimestamp:]),
		UserDataTag:     le.Uint32(b[offUserDataTag:]),
		UserDataSize:    le.Uint32(b[offUserDataSize:]),
	}
	if h.Version == 0 || h.Version > CurrentVersion {
		return Header{}, ErrUnsupportedVersion
	}
	return h, nil
}
