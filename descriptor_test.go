package zus

import (
	"bytes"
	"testing"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/meigma/zus/internal/testutil"
)

func TestDescribe(t *testing.T) {
	t.Parallel()

	data := packFrames(t, testutil.Frames(1000, 2000), WithSubjectID(77))

	desc, err := Describe(data)
	require.NoError(t, err)
	assert.Equal(t, MediaTypePack, desc.MediaType)
	assert.Equal(t, int64(len(data)), desc.Size)
	assert.Equal(t, digest.FromBytes(data), desc.Digest)
	assert.Equal(t, "2", desc.Annotations[AnnotationFrameCount])
	assert.Equal(t, "2000", desc.Annotations[AnnotationMaxFrameSize])
	assert.Equal(t, "77", desc.Annotations[AnnotationSubjectID])
	assert.Equal(t, "2024-03-14T15:09:26Z", desc.Annotations[ocispec.AnnotationCreated])

	require.NoError(t, VerifyDescriptor(data, desc))

	tampered := bytes.Clone(data)
	tampered[len(tampered)-1] ^= 1
	require.ErrorIs(t, VerifyDescriptor(tampered, desc), ErrDescriptorMismatch)
	require.ErrorIs(t, VerifyDescriptor(data[:len(data)-1], desc), ErrDescriptorMismatch)

	bad := desc
	bad.Digest = "sha256:nothex"
	require.ErrorIs(t, VerifyDescriptor(data, bad), ErrDescriptorMismatch)
}

func TestDescribeRejectsNonPack(t *testing.T) {
	t.Parallel()

	_, err := Describe([]byte("not a pack"))
	require.ErrorIs(t, err, ErrTruncated)
}

func TestDescribeIndex(t *testing.T) {
	t.Parallel()

	f, _ := openTestPack(t, testutil.Frames(10))
	idx, err := f.BuildIndex()
	require.NoError(t, err)
	data, err := idx.MarshalBinary()
	require.NoError(t, err)

	desc := DescribeIndex(data)
	assert.Equal(t, MediaTypeFrameIndex, desc.MediaType)
	require.NoError(t, VerifyDescriptor(data, desc))
}
