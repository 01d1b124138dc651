package zus

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHeaderRoundTrip(t *testing.T) {
	t.Parallel()

	h := Header{
		Version:         CurrentVersion,
		MaxFrameSize:    1 << 40,
		FrameCount:      3,
		ArrayID:         7,
		SubjectID:       11,
		ImagingMethodID: 13,
		Timestamp:       1700000000,
		UserDataTag:     0xfeed,
		UserDataSize:    300,
	}
	b := h.Encode()
	require.Len(t, b, HeaderSize)

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderLayout(t *testing.T) {
	t.Parallel()

	h := Header{
		Version:         1,
		MaxFrameSize:    0x0102030405060708,
		FrameCount:      3,
		ArrayID:         4,
		SubjectID:       5,
		ImagingMethodID: 6,
		Timestamp:       0x1112131415161718,
		UserDataTag:     9,
		UserDataSize:    10,
	}
	b := h.Encode()

	assert.Equal(t, "ZUSP", string(b[0:4]))
	assert.Equal(t, []byte{1, 0, 0, 0}, b[4:8])
	assert.Equal(t, []byte{8, 7, 6, 5, 4, 3, 2, 1}, b[8:16])
	assert.Equal(t, []byte{3, 0, 0, 0}, b[16:20])
	assert.Equal(t, []byte{4, 0, 0, 0}, b[20:24])
	assert.Equal(t, []byte{5, 0, 0, 0}, b[24:28])
	assert.Equal(t, []byte{6, 0, 0, 0}, b[28:32])
	assert.Equal(t, []byte{0x18, 0x17, 0x16, 0x15, 0x14, 0x13, 0x12, 0x11}, b[32:40])
	assert.Equal(t, []byte{9, 0, 0, 0}, b[40:44])
	assert.Equal(t, []byte{10, 0, 0, 0}, b[44:48])
	assert.Equal(t, make([]byte, HeaderSize-48), b[48:])
}

func TestHeaderEncodeToClearsPadding(t *testing.T) {
	t.Parallel()

	dst := make([]byte, HeaderSize+8)
	for i := range dst {
		dst[i] = 0xff
	}
	h := Header{Version: CurrentVersion}
	h.EncodeTo(dst)

	assert.Equal(t, make([]byte, HeaderSize-48), dst[48:HeaderSize])
	assert.Equal(t, byte(0xff), dst[HeaderSize], "bytes past the header are untouched")
}

func TestDecodeHeaderErrors(t *testing.T) {
	t.Parallel()

	valid := Header{Version: CurrentVersion}

	tests := []struct {
		name    string
		data    func() []byte
		wantErr error
	}{
		{
			name:    "empty",
			data:    func() []byte { return nil },
			wantErr: ErrTruncated,
		},
		{
			name:    "short",
			data:    func() []byte { return valid.Encode()[:HeaderSize-1] },
			wantErr: ErrTruncated,
		},
		{
			name: "bad magic",
			data: func() []byte {
				b := valid.Encode()
				b[0] = 'X'
				return b
			},
			wantErr: ErrInvalidMagic,
		},
		{
			name: "short with bad magic",
			data: func() []byte {
				return []byte("XXXX")
			},
			wantErr: ErrTruncated,
		},
		{
			name: "version zero",
			data: func() []byte {
				h := valid
				h.Version = 0
				return h.Encode()
			},
			wantErr: ErrUnsupportedVersion,
		},
		{
			name: "future version",
			data: func() []byte {
				h := valid
				h.Version = CurrentVersion + 1
				return h.Encode()
			},
			wantErr: ErrUnsupportedVersion,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			_, err := DecodeHeader(tt.data())
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestHeaderIgnoresPaddingOnDecode(t *testing.T) {
	t.Parallel()

	h := Header{Version: CurrentVersion, FrameCount: 2}
	b := h.Encode()
	b[100] = 0xaa

	got, err := DecodeHeader(b)
	require.NoError(t, err)
	assert.Equal(t, h, got)
}

func TestHeaderRegions(t *testing.T) {
	t.Parallel()

	tests := []struct {
		userData   uint32
		wantRegion int64
	}{
		{0, 256},
		{1, 512},
		{256, 512},
		{257, 768},
	}
	for _, tt := range tests {
		h := Header{Version: CurrentVersion, UserDataSize: tt.userData}
		start, end := h.UserDataRange()
		assert.Equal(t, int64(HeaderSize), start)
		assert.Equal(t, int64(HeaderSize)+int64(tt.userData), end)
		assert.Equal(t, tt.wantRegion, h.FrameRegionOffset(), "user data %d", tt.userData)
	}
}

func TestHeaderBinaryMarshaler(t *testing.T) {
	t.Parallel()

	h := Header{Version: CurrentVersion, Timestamp: uint64(time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC).Unix())}
	b, err := h.MarshalBinary()
	require.NoError(t, err)

	var got Header
	require.NoError(t, got.UnmarshalBinary(b))
	assert.Equal(t, h, got)
	assert.Equal(t, time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC), got.Time())
}
