package zus

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFrameError(t *testing.T) {
	t.Parallel()

	err := frameErr("read", 4, 1024, ErrInvalidData)
	assert.Equal(t, "read frame 4 at offset 1024: zus: invalid frame data", err.Error())
	assert.True(t, errors.Is(err, ErrInvalidData))

	err = frameErr("locate", 9, -1, ErrInvalidFrame)
	assert.Equal(t, "locate frame 9: zus: invalid frame index", err.Error())

	var fe *FrameError
	assert.True(t, errors.As(err, &fe))
	assert.Equal(t, 9, fe.Index)
}
