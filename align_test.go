package zus

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestAlignUp(t *testing.T) {
	t.Parallel()

	tests := []struct {
		in, want int64
	}{
		{0, 0},
		{1, 256},
		{255, 256},
		{256, 256},
		{257, 512},
		{1000, 1024},
		{1 << 30, 1 << 30},
	}
	for _, tt := range tests {
		got := AlignUp(tt.in)
		assert.Equal(t, tt.want, got, "AlignUp(%d)", tt.in)
		assert.Zero(t, got%Alignment)
		assert.GreaterOrEqual(t, got, tt.in)
		assert.Less(t, got-tt.in, int64(Alignment))
		assert.Equal(t, got-tt.in, Padding(tt.in))
	}
}
