package frameindex

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecode(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		idx  Index
	}{
		{
			name: "empty",
			idx:  Index{Version: 1},
		},
		{
			name: "three frames",
			idx: Index{
				Version:      1,
				FrameCount:   3,
				MaxFrameSize: 50000,
				Offsets:      []uint64{0, 512, 17152},
				Sizes:        []uint64{1000, 50000, 200},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			data := Encode(&tt.idx)
			assert.Equal(t, FileIdentifier, string(data[4:8]))

			got, err := Decode(data)
			require.NoError(t, err)
			assert.Equal(t, tt.idx.Version, got.Version)
			assert.Equal(t, tt.idx.FrameCount, got.FrameCount)
			assert.Equal(t, tt.idx.MaxFrameSize, got.MaxFrameSize)
			assert.Equal(t, len(tt.idx.Offsets), len(got.Offsets))
			assert.Equal(t, len(tt.idx.Sizes), len(got.Sizes))
			for i := range tt.idx.Offsets {
				assert.Equal(t, tt.idx.Offsets[i], got.Offsets[i])
				assert.Equal(t, tt.idx.Sizes[i], got.Sizes[i])
			}
		})
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	_, err := Decode(nil)
	require.ErrorIs(t, err, ErrMalformed)

	_, err = Decode([]byte("not an index at all"))
	require.ErrorIs(t, err, ErrMalformed)

	data := Encode(&Index{Version: 1, FrameCount: 2, Offsets: []uint64{0, 256}, Sizes: []uint64{1, 2}})
	_, err = Decode(data[:len(data)/2])
	require.ErrorIs(t, err, ErrMalformed)
}
