package zus

import (
	"bytes"
	"context"
	"encoding/binary"
	"io"
	"sync"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zus/internal/testutil"
)

func openTestPack(tb testing.TB, frames [][]byte, opts ...ReaderOption) (*File, []byte) {
	tb.Helper()

	data := packFrames(tb, frames)
	f, err := Parse(data, opts...)
	require.NoError(tb, err)
	return f, data
}

func TestReaderInvalidFrameIndex(t *testing.T) {
	t.Parallel()

	f, _ := openTestPack(t, testutil.Frames(1000, 50000, 200))
	dst := make([]byte, f.Header().MaxFrameSize)

	for _, idx := range []int{-1, 3, 5} {
		_, err := f.ReadFrame(idx, dst)
		require.ErrorIs(t, err, ErrInvalidFrame, "index %d", idx)

		var fe *FrameError
		require.ErrorAs(t, err, &fe)
		assert.Equal(t, idx, fe.Index)

		_, err = f.FrameOffset(idx)
		require.ErrorIs(t, err, ErrInvalidFrame)
		_, err = f.OpenFrame(idx)
		require.ErrorIs(t, err, ErrInvalidFrame)
	}
}

func TestReaderOffsetsMatchFrames(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(1000, 50000, 200, 0, 4096)
	f, _ := openTestPack(t, frames)

	offsets := make([]int64, len(frames)+2)
	n, err := f.ExtractFrameOffsets(offsets)
	require.NoError(t, err)
	require.Equal(t, len(frames), n)

	dst := make([]byte, f.Header().MaxFrameSize)
	for i, want := range frames {
		off, err := f.FrameOffset(i)
		require.NoError(t, err)
		assert.Equal(t, offsets[i], off)

		n, err := f.ReadFrameAt(offsets[i], dst)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, dst[:n]), "frame %d via offset", i)

		n, err = f.ReadFrame(i, dst)
		require.NoError(t, err)
		assert.True(t, bytes.Equal(want, dst[:n]), "frame %d via index", i)
	}
}

func TestReaderOffsetsWithoutCache(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(700, 800, 900)
	f, _ := openTestPack(t, frames)

	// FrameOffset walks when nothing is cached.
	off, err := f.FrameOffset(2)
	require.NoError(t, err)

	offsets := make([]int64, 3)
	_, err = f.ExtractFrameOffsets(offsets)
	require.NoError(t, err)
	assert.Equal(t, offsets[2], off)
}

func TestReaderExtractOffsetsBufferTooSmall(t *testing.T) {
	t.Parallel()

	f, _ := openTestPack(t, testutil.Frames(10, 20, 30))
	_, err := f.ExtractFrameOffsets(make([]int64, 2))
	require.ErrorIs(t, err, ErrBufferTooSmall)
}

func TestReaderBufferTooSmall(t *testing.T) {
	t.Parallel()

	f, _ := openTestPack(t, testutil.Frames(1000))
	_, err := f.ReadFrame(0, make([]byte, 999))
	require.ErrorIs(t, err, ErrBufferTooSmall)

	n, err := f.ReadFrame(0, make([]byte, 1000))
	require.NoError(t, err)
	assert.Equal(t, 1000, n)
}

func TestReaderCorruptFrame(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(1000, 2000, 3000)
	data := packFrames(t, frames)

	f, err := Parse(data)
	require.NoError(t, err)
	offsets := make([]int64, 3)
	_, err = f.ExtractFrameOffsets(offsets)
	require.NoError(t, err)

	corrupt := bytes.Clone(data)
	region := corrupt[HeaderSize:]
	region[offsets[1]] ^= 0xff

	cf, err := Parse(corrupt)
	require.NoError(t, err)
	dst := make([]byte, 3000)

	n, err := cf.ReadFrame(0, dst)
	require.NoError(t, err)
	assert.Equal(t, frames[0], dst[:n])

	_, err = cf.ReadFrame(1, dst)
	require.ErrorIs(t, err, ErrInvalidData)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, offsets[1], fe.Offset)

	// Later frames are unreachable without a walk past the corrupt frame.
	_, err = cf.ReadFrame(2, dst)
	require.ErrorIs(t, err, ErrInvalidData)
	_, err = cf.ExtractFrameOffsets(make([]int64, 3))
	require.ErrorIs(t, err, ErrInvalidData)

	// An offset pointing past the corrupt frame still works.
	n, err = cf.ReadFrameAt(offsets[2], dst)
	require.NoError(t, err)
	assert.Equal(t, frames[2], dst[:n])
}

func TestReaderCorruptBlock(t *testing.T) {
	t.Parallel()

	frame := testutil.RandomFrame(5, 2048)
	data := packFrames(t, [][]byte{frame})
	corrupt := bytes.Clone(data)
	// Flip bytes inside the compressed payload.
	for i := HeaderSize + 20; i < HeaderSize+40; i++ {
		corrupt[i] ^= 0x5a
	}

	f, err := Parse(corrupt)
	require.NoError(t, err)
	_, err = f.ReadFrame(0, make([]byte, 4096))
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestReaderBadOffsets(t *testing.T) {
	t.Parallel()

	f, _ := openTestPack(t, testutil.Frames(1000, 2000))
	dst := make([]byte, 2000)

	tests := []struct {
		name string
		off  int64
	}{
		{"negative", -256},
		{"unaligned", 1},
		{"past end", 1 << 20},
	}
	for _, tt := range tests {
		_, err := f.ReadFrameAt(tt.off, dst)
		require.ErrorIs(t, err, ErrInvalidData, tt.name)
	}
}

func TestReaderTruncatedRegion(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(1000, 5000)
	data := packFrames(t, frames)

	f, err := Parse(data[:len(data)-10])
	require.NoError(t, err)
	dst := make([]byte, 5000)

	_, err = f.ReadFrame(0, dst)
	require.NoError(t, err)
	_, err = f.ReadFrame(1, dst)
	require.ErrorIs(t, err, ErrInvalidData)
}

func TestReaderOpenFrame(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(100, 70000)
	f, _ := openTestPack(t, frames)

	for i, want := range frames {
		rc, err := f.OpenFrame(i)
		require.NoError(t, err)
		got, err := io.ReadAll(rc)
		require.NoError(t, err)
		require.NoError(t, rc.Close())
		assert.True(t, bytes.Equal(want, got), "frame %d", i)
	}
}

func TestReaderFrameInfo(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(1000, 0, 3000)
	f, _ := openTestPack(t, frames)
	dec, err := zstd.NewReader(nil)
	require.NoError(t, err)
	defer dec.Close()

	for i, want := range frames {
		info, err := f.FrameInfo(i)
		require.NoError(t, err)
		assert.Equal(t, i, info.Index)
		assert.Equal(t, uint64(len(want)), info.Size)
		assert.Zero(t, info.Offset%Alignment)

		src, err := f.CompressedFrame(i)
		require.NoError(t, err)
		assert.Len(t, src, int(info.CompressedSize))

		got, err := dec.DecodeAll(src, nil)
		require.NoError(t, err)
		assert.Equal(t, len(want), len(got))
	}
}

func TestReaderHugeMaxFrameSize(t *testing.T) {
	t.Parallel()

	data := packFrames(t, testutil.Frames(1000, 0))
	binary.LittleEndian.PutUint64(data[offMaxFrameSize:], 1<<50)
	f, err := Parse(data)
	require.NoError(t, err)

	_, err = f.Frame(0)
	require.ErrorIs(t, err, ErrSizeOverflow)
	var fe *FrameError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 0, fe.Index)

	_, err = f.FrameInfo(1)
	require.ErrorIs(t, err, ErrSizeOverflow)

	_, err = f.BuildIndex()
	require.ErrorIs(t, err, ErrSizeOverflow)

	err = Extract(context.Background(), f.Reader, newMemSink())
	require.ErrorIs(t, err, ErrSizeOverflow)

	// The recorded content size still answers for frames that carry one.
	info, err := f.FrameInfo(0)
	require.NoError(t, err)
	assert.Equal(t, uint64(1000), info.Size)
}

func TestReaderFrameWithinDecoderLimit(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(3000, 0)
	f, _ := openTestPack(t, frames, WithMaxDecoderMemory(4096))
	for i, want := range frames {
		got, err := f.Frame(i)
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	f, _ = openTestPack(t, frames, WithMaxDecoderMemory(2999))
	_, err := f.Frame(0)
	require.ErrorIs(t, err, ErrSizeOverflow)
}

func TestReaderConcurrentReads(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(4000, 5000, 6000, 7000)
	f, _ := openTestPack(t, frames, WithDecoderConcurrency(2))

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for g := range 8 {
		wg.Go(func() {
			dst := make([]byte, 7000)
			for j := range 20 {
				i := (g + j) % len(frames)
				n, err := f.ReadFrame(i, dst)
				if err != nil {
					errs <- err
					return
				}
				if !bytes.Equal(frames[i], dst[:n]) {
					errs <- assert.AnError
					return
				}
			}
		})
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
}

func TestReaderWithFrameIndex(t *testing.T) {
	t.Parallel()

	frames := testutil.Frames(1000, 50000, 200)
	f, data := openTestPack(t, frames)
	idx, err := f.BuildIndex()
	require.NoError(t, err)

	h := f.Header()
	region := data[h.FrameRegionOffset():]
	r, err := NewReader(h, region, WithFrameIndex(idx))
	require.NoError(t, err)

	n, err := r.ReadFrame(1, make([]byte, 50000))
	require.NoError(t, err)
	assert.Equal(t, 50000, n)

	bad := *idx
	bad.FrameCount = 2
	_, err = NewReader(h, region, WithFrameIndex(&bad))
	require.ErrorIs(t, err, ErrIndexMismatch)

	bad = *idx
	bad.Offsets = []int64{0, 100, 512}
	_, err = NewReader(h, region, WithFrameIndex(&bad))
	require.ErrorIs(t, err, ErrIndexMismatch)

	bad = *idx
	bad.Offsets = []int64{0, 256, int64(len(region)) + 256}
	_, err = NewReader(h, region, WithFrameIndex(&bad))
	require.ErrorIs(t, err, ErrIndexMismatch)
}
