package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/meigma/zus"
)

func (a *app) unpackCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "unpack PACK",
		Short: "Decompress every frame of a pack into its own file",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runUnpack,
	}
	f := cmd.Flags()
	f.StringP("output", "o", ".", "Destination directory")
	f.Int("workers", 0, "Frames decoded concurrently (0 uses all CPUs)")
	f.Bool("overwrite", false, "Replace existing frame files")
	f.String("index", "", "Frame index sidecar written by 'zus index'")
	return cmd
}

func (a *app) runUnpack(cmd *cobra.Command, args []string) error {
	f, err := a.openPack(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	dir := a.v.GetString("output")
	var frames int
	err = zus.ExtractTo(cmd.Context(), f.Reader, dir,
		zus.WithWorkers(a.v.GetInt("workers")),
		zus.WithOverwrite(a.v.GetBool("overwrite")),
		zus.WithExtractLogger(a.logger),
		zus.WithExtractProgress(func(e zus.ProgressEvent) {
			frames = max(frames, e.FramesDone)
			a.logger.Debug("frame extracted", "frame", e.Frame, "done", e.FramesDone, "total", e.FramesTotal)
		}),
	)
	if err != nil {
		return err
	}
	fmt.Fprintf(a.out, "extracted %d of %d frames to %s\n", frames, f.FrameCount(), dir)
	return nil
}
