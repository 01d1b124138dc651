package main

import (
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/edsrzf/mmap-go"
	"github.com/klauspost/compress/zstd"
	"github.com/spf13/cobra"

	"github.com/meigma/zus"
)

func (a *app) packCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "pack -o OUTPUT [FRAME...]",
		Short: "Compress raw frame files into a pack, one frame per file",
		RunE:  a.runPack,
	}
	f := cmd.Flags()
	f.StringP("output", "o", "", "Output pack file")
	f.Int("level", 3, "zstd compression level (1-22)")
	f.String("buffer-size", "64MiB", "Output buffer size")
	f.Uint32("array-id", 0, "Transducer array identifier")
	f.Uint32("subject-id", 0, "Subject identifier")
	f.Uint32("imaging-method", 0, "Imaging method identifier")
	f.String("timestamp", "", "Capture time in RFC 3339 (default now)")
	f.String("user-data", "", "File stored verbatim as user data")
	f.Uint32("user-data-tag", 0, "Tag describing the user data")
	return cmd
}

func (a *app) packOptions() ([]zus.PackerOption, error) {
	opts := []zus.PackerOption{
		zus.WithCompressionLevel(zstd.EncoderLevelFromZstd(a.v.GetInt("level"))),
		zus.WithArrayID(a.v.GetUint32("array-id")),
		zus.WithSubjectID(a.v.GetUint32("subject-id")),
		zus.WithImagingMethodID(a.v.GetUint32("imaging-method")),
		zus.WithPackerLogger(a.logger),
	}
	if ts := a.v.GetString("timestamp"); ts != "" {
		t, err := time.Parse(time.RFC3339, ts)
		if err != nil {
			return nil, fmt.Errorf("timestamp: %w", err)
		}
		opts = append(opts, zus.WithTimestamp(t))
	}
	if path := a.v.GetString("user-data"); path != "" {
		data, err := os.ReadFile(path) //nolint:gosec // user-supplied path
		if err != nil {
			return nil, fmt.Errorf("user data: %w", err)
		}
		opts = append(opts, zus.WithUserData(a.v.GetUint32("user-data-tag"), data))
	}
	return opts, nil
}

func (a *app) runPack(_ *cobra.Command, args []string) (err error) {
	output := a.v.GetString("output")
	if output == "" {
		return errors.New("pack: --output is required")
	}
	size, err := humanize.ParseBytes(a.v.GetString("buffer-size"))
	if err != nil {
		return fmt.Errorf("buffer size: %w", err)
	}
	if size == 0 || size > math.MaxInt32 {
		return fmt.Errorf("buffer size: %s out of range", a.v.GetString("buffer-size"))
	}
	opts, err := a.packOptions()
	if err != nil {
		return err
	}

	out, err := os.Create(output) //nolint:gosec // user-supplied path
	if err != nil {
		return err
	}
	defer func() {
		if cerr := out.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			_ = os.Remove(output) //nolint:errcheck // best-effort cleanup
		}
	}()

	opts = append(opts, zus.WithFlush(zus.WriterAtFlush(out)))
	p, err := zus.NewPacker(make([]byte, size), opts...)
	if err != nil {
		return err
	}
	for _, path := range args {
		if err := pushFile(p, path); err != nil {
			return fmt.Errorf("%s: %w", path, err)
		}
	}
	if err := p.Finish(); err != nil {
		return err
	}
	if err := out.Truncate(p.Size()); err != nil {
		return err
	}

	h := p.Header()
	fmt.Fprintf(a.out, "packed %d frames into %s (%s, largest frame %s)\n",
		h.FrameCount, output, humanize.IBytes(uint64(p.Size())), humanize.IBytes(h.MaxFrameSize)) //nolint:gosec // size is never negative
	return nil
}

// pushFile maps a raw frame file and pushes it as one frame.
func pushFile(p *zus.Packer, path string) error {
	f, err := os.Open(path) //nolint:gosec // user-supplied path
	if err != nil {
		return err
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return err
	}
	if st.Size() == 0 {
		return p.PushFrame(nil)
	}

	m, err := mmap.Map(f, mmap.RDONLY, 0)
	if err != nil {
		return err
	}
	defer m.Unmap() //nolint:errcheck // read-only mapping
	return p.PushFrame(m)
}
