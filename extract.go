package zus

import (
	"context"
	"fmt"
	"log/slog"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/meigma/zus/internal/extract"
)

// FrameSink receives the frames decoded by Extract. Writer may be called
// from several goroutines at once.
type FrameSink = extract.Sink

// Committer is a frame destination returned by a FrameSink.
type Committer = extract.Committer

// ExtractOption configures Extract and ExtractTo.
type ExtractOption func(*extractConfig)

type extractConfig struct {
	workers   int
	overwrite bool
	pattern   string
	progress  ProgressFunc
	logger    *slog.Logger
}

// WithWorkers sets the number of frames decoded concurrently.
// Zero uses GOMAXPROCS; values < 0 decode serially.
func WithWorkers(n int) ExtractOption {
	return func(c *extractConfig) {
		c.workers = n
	}
}

// WithOverwrite lets ExtractTo replace existing frame files.
func WithOverwrite(overwrite bool) ExtractOption {
	return func(c *extractConfig) {
		c.overwrite = overwrite
	}
}

// WithFileNamePattern sets the fmt pattern ExtractTo uses for frame file
// names. The default is "frame_%06d.raw".
func WithFileNamePattern(pattern string) ExtractOption {
	return func(c *extractConfig) {
		c.pattern = pattern
	}
}

// WithExtractProgress sets a callback invoked after each frame is written.
// Calls are serialized.
func WithExtractProgress(fn ProgressFunc) ExtractOption {
	return func(c *extractConfig) {
		c.progress = fn
	}
}

// WithExtractLogger sets the logger for extraction.
func WithExtractLogger(logger *slog.Logger) ExtractOption {
	return func(c *extractConfig) {
		c.logger = logger
	}
}

func (c *extractConfig) workerCount(frames int) int {
	if c.workers < 0 || frames < 2 {
		return 1
	}
	workers := c.workers
	if workers == 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return max(1, min(workers, frames))
}

func (c *extractConfig) log() *slog.Logger {
	if c.logger == nil {
		return slog.New(slog.DiscardHandler)
	}
	return c.logger
}

// ExtractTo decodes every frame of r into its own file under dir.
// Existing files are skipped unless WithOverwrite is set.
func ExtractTo(ctx context.Context, r *Reader, dir string, opts ...ExtractOption) error {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	sink := extract.NewFileSink(dir,
		extract.WithOverwrite(cfg.overwrite),
		extract.WithNamePattern(cfg.pattern),
	)
	return Extract(ctx, r, sink, opts...)
}

// Extract decodes every frame of r that sink accepts and writes it to sink.
//
// Frames are decoded concurrently into pooled buffers of Header.MaxFrameSize
// bytes. A max frame size above the reader's decoder memory limit fails with
// ErrSizeOverflow before anything is decoded. Extraction stops at the first error; frames already committed stay
// committed.
func Extract(ctx context.Context, r *Reader, sink FrameSink, opts ...ExtractOption) error {
	var cfg extractConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	todo := make([]int, 0, r.FrameCount())
	for i := range r.FrameCount() {
		if sink.ShouldProcess(i) {
			todo = append(todo, i)
		}
	}
	if len(todo) == 0 {
		return nil
	}

	// Walk once up front so workers find cached offsets.
	if _, err := r.walk(); err != nil {
		return err
	}
	size, err := r.bufferSize()
	if err != nil {
		return frameErr("extract", todo[0], -1, err)
	}
	bufs := sync.Pool{New: func() any {
		b := make([]byte, size)
		return &b
	}}

	workers := cfg.workerCount(len(todo))
	cfg.log().Debug("extracting frames", "frames", len(todo), "workers", workers)

	var (
		mu        sync.Mutex
		done      int
		bytesDone uint64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for _, idx := range todo {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			bp := bufs.Get().(*[]byte) //nolint:errcheck // pool only holds *[]byte
			defer bufs.Put(bp)

			n, err := r.ReadFrame(idx, *bp)
			if err != nil {
				return err
			}
			if err := writeFrame(sink, idx, (*bp)[:n]); err != nil {
				return fmt.Errorf("extract frame %d: %w", idx, err)
			}

			mu.Lock()
			defer mu.Unlock()
			done++
			bytesDone += uint64(n) //nolint:gosec // n is never negative
			if cfg.progress != nil {
				cfg.progress(ProgressEvent{
					Stage:       StageExtracting,
					Frame:       idx,
					BytesDone:   bytesDone,
					FramesDone:  done,
					FramesTotal: len(todo),
				})
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		cfg.log().Warn("extraction failed", "error", err)
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	cfg.log().Info("frames extracted", "frames", done, "bytes", bytesDone)
	return nil
}

func writeFrame(sink FrameSink, idx int, data []byte) error {
	w, err := sink.Writer(idx)
	if err != nil {
		return err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Discard() //nolint:errcheck // best-effort cleanup
		return err
	}
	return w.Commit()
}
