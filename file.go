package zus

import (
	"errors"
	"fmt"
	"os"

	"github.com/edsrzf/mmap-go"
)

// File is a complete pack: header, user data, and a Reader over its frames.
type File struct {
	*Reader

	data     []byte
	userData []byte
	mapping  mmap.MMap
}

// Parse decodes a pack held in memory. data is retained and must not be
// modified while the File is in use.
func Parse(data []byte, opts ...ReaderOption) (*File, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return nil, err
	}
	start, end := h.UserDataRange()
	region := h.FrameRegionOffset()
	if int64(len(data)) < region {
		return nil, fmt.Errorf("%w: pack is %d bytes, frame region starts at %d", ErrTruncated, len(data), region)
	}
	r, err := NewReader(h, data[region:], opts...)
	if err != nil {
		return nil, err
	}
	return &File{
		Reader:   r,
		data:     data,
		userData: data[start:end:end],
	}, nil
}

// Open memory-maps the pack at path read-only. The File must be closed to
// release the mapping.
func Open(path string, opts ...ReaderOption) (*File, error) {
	f, err := os.Open(path) //nolint:gosec // caller chooses the path
	if err != nil {
		return nil, err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return nil, err
	}
	if st.Size() == 0 {
		return nil, fmt.Errorf("%s: %w: empty file", path, ErrTruncated)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return nil, fmt.Errorf("map %s: %w", path, err)
	}
	pf, err := Parse(m, opts...)
	if err != nil {
		return nil, errors.Join(fmt.Errorf("%s: %w", path, err), m.Unmap())
	}
	pf.mapping = m
	pf.log().Debug("pack mapped", "path", path, "size", len(m), "frames", pf.FrameCount())
	return pf, nil
}

// UserData returns the opaque user data blob. The slice aliases the pack.
func (f *File) UserData() []byte {
	return f.userData
}

// Bytes returns the whole pack.
func (f *File) Bytes() []byte {
	return f.data
}

// Close releases the memory mapping created by Open. It is a no-op for a
// File returned by Parse.
func (f *File) Close() error {
	if f.mapping == nil {
		return nil
	}
	err := f.mapping.Unmap()
	f.mapping = nil
	return err
}
