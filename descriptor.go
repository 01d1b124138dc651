package zus

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/opencontainers/go-digest"
	ocispec "github.com/opencontainers/image-spec/specs-go/v1"
)

const (
	// MediaTypePack is the media type of a pack.
	MediaTypePack = "application/vnd.meigma.zus.pack.v1"

	// MediaTypeFrameIndex is the media type of a frame index sidecar.
	MediaTypeFrameIndex = "application/vnd.meigma.zus.index.v1+flatbuffers"
)

// Descriptor annotation keys.
const (
	AnnotationFrameCount    = "io.meigma.zus.frame-count"
	AnnotationMaxFrameSize  = "io.meigma.zus.max-frame-size"
	AnnotationArrayID       = "io.meigma.zus.array-id"
	AnnotationSubjectID     = "io.meigma.zus.subject-id"
	AnnotationImagingMethod = "io.meigma.zus.imaging-method-id"
	AnnotationUserDataTag   = "io.meigma.zus.user-data-tag"
)

// ErrDescriptorMismatch is returned when content does not match a descriptor.
var ErrDescriptorMismatch = errors.New("zus: content does not match descriptor")

// Describe returns an OCI content descriptor for the pack in data, carrying
// the header fields as annotations.
func Describe(data []byte) (ocispec.Descriptor, error) {
	h, err := DecodeHeader(data)
	if err != nil {
		return ocispec.Descriptor{}, err
	}
	return ocispec.Descriptor{
		MediaType: MediaTypePack,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
		Annotations: map[string]string{
			ocispec.AnnotationCreated: h.Time().Format(time.RFC3339),
			AnnotationFrameCount:      strconv.FormatUint(uint64(h.FrameCount), 10),
			AnnotationMaxFrameSize:    strconv.FormatUint(h.MaxFrameSize, 10),
			AnnotationArrayID:         strconv.FormatUint(uint64(h.ArrayID), 10),
			AnnotationSubjectID:       strconv.FormatUint(uint64(h.SubjectID), 10),
			AnnotationImagingMethod:   strconv.FormatUint(uint64(h.ImagingMethodID), 10),
			AnnotationUserDataTag:     strconv.FormatUint(uint64(h.UserDataTag), 10),
		},
	}, nil
}

// DescribeIndex returns an OCI content descriptor for an encoded frame index.
func DescribeIndex(data []byte) ocispec.Descriptor {
	return ocispec.Descriptor{
		MediaType: MediaTypeFrameIndex,
		Digest:    digest.FromBytes(data),
		Size:      int64(len(data)),
	}
}

// VerifyDescriptor checks that data has the size and digest recorded in desc.
func VerifyDescriptor(data []byte, desc ocispec.Descriptor) error {
	if desc.Size != int64(len(data)) {
		return fmt.Errorf("%w: size %d, want %d", ErrDescriptorMismatch, len(data), desc.Size)
	}
	if err := desc.Digest.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrDescriptorMismatch, err)
	}
	v := desc.Digest.Verifier()
	if _, err := v.Write(data); err != nil {
		return err
	}
	if !v.Verified() {
		return fmt.Errorf("%w: digest %s", ErrDescriptorMismatch, desc.Digest)
	}
	return nil
}
