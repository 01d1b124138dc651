package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/meigma/zus"
)

func (a *app) indexCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "index PACK",
		Short: "Write a frame index sidecar for fast random access",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runIndex,
	}
	cmd.Flags().StringP("output", "o", "", "Index file (default PACK.idx)")
	return cmd
}

func (a *app) runIndex(_ *cobra.Command, args []string) error {
	f, err := zus.Open(args[0], zus.WithReaderLogger(a.logger))
	if err != nil {
		return err
	}
	defer f.Close()

	idx, err := f.BuildIndex()
	if err != nil {
		return err
	}
	data, err := idx.MarshalBinary()
	if err != nil {
		return err
	}

	output := a.v.GetString("output")
	if output == "" {
		output = args[0] + ".idx"
	}
	if err := os.WriteFile(output, data, 0o644); err != nil { //nolint:gosec // index files are not secret
		return err
	}
	desc := zus.DescribeIndex(data)
	fmt.Fprintf(a.out, "wrote index for %d frames to %s (%s)\n", idx.FrameCount, output, desc.Digest)
	return nil
}
