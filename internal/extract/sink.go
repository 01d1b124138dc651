// Package extract writes decoded pack frames to their destination.
package extract

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// DefaultNamePattern names extracted frame files by frame index.
const DefaultNamePattern = "frame_%06d.raw"

// Sink receives decoded frames.
type Sink interface {
	// ShouldProcess reports whether frame idx should be extracted.
	ShouldProcess(idx int) bool

	// Writer returns a destination for frame idx.
	Writer(idx int) (Committer, error)
}

// Committer is a frame destination that is either committed or discarded.
type Committer interface {
	io.Writer
	Commit() error
	Discard() error
}

// FileSink writes each frame to its own file with atomic writes.
//
// Frames are written to a temporary file in the destination directory,
// then renamed to the final path on Commit, so partially written frames
// are never visible.
type FileSink struct {
	destDir   string
	overwrite bool
	pattern   string
}

// FileSinkOption configures a FileSink.
type FileSinkOption func(*FileSink)

// WithOverwrite allows overwriting existing files.
// By default, existing files are skipped.
func WithOverwrite(overwrite bool) FileSinkOption {
	return func(s *FileSink) {
		s.overwrite = overwrite
	}
}

// WithNamePattern sets the fmt pattern used to name frame files. It receives
// the frame index.
func WithNamePattern(pattern string) FileSinkOption {
	return func(s *FileSink) {
		if pattern != "" {
			s.pattern = pattern
		}
	}
}

// NewFileSink creates a FileSink that writes to destDir, which is created on
// first use.
func NewFileSink(destDir string, opts ...FileSinkOption) *FileSink {
	s := &FileSink{
		destDir: destDir,
		pattern: DefaultNamePattern,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Path returns the destination path of frame idx.
func (s *FileSink) Path(idx int) string {
	return filepath.Join(s.destDir, fmt.Sprintf(s.pattern, idx))
}

// ShouldProcess returns false if the frame file already exists and overwrite
// is disabled.
func (s *FileSink) ShouldProcess(idx int) bool {
	if s.overwrite {
		return true
	}
	_, err := os.Stat(s.Path(idx))
	return os.IsNotExist(err)
}

// Writer returns a Committer that writes to a temp file and renames on Commit.
func (s *FileSink) Writer(idx int) (Committer, error) {
	if err := os.MkdirAll(s.destDir, 0o750); err != nil {
		return nil, fmt.Errorf("create directory %s: %w", s.destDir, err)
	}
	tempFile, err := os.CreateTemp(s.destDir, ".zus-*")
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	return &fileCommitter{
		destPath: s.Path(idx),
		tempFile: tempFile,
	}, nil
}

type fileCommitter struct {
	destPath string
	tempFile *os.File
}

func (c *fileCommitter) Write(p []byte) (int, error) {
	return c.tempFile.Write(p)
}

// Commit closes the temp file and renames it to the final path.
func (c *fileCommitter) Commit() error {
	tempPath := c.tempFile.Name()
	if err := c.tempFile.Close(); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tempPath, c.destPath); err != nil {
		_ = os.Remove(tempPath) //nolint:errcheck // best-effort cleanup
		return fmt.Errorf("rename to %s: %w", c.destPath, err)
	}
	return nil
}

// Discard closes and removes the temp file.
func (c *fileCommitter) Discard() error {
	tempPath := c.tempFile.Name()
	_ = c.tempFile.Close() //nolint:errcheck // we're cleaning up
	return os.Remove(tempPath)
}
