package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/olekukonko/tablewriter"
	"github.com/spf13/cobra"

	"github.com/meigma/zus"
)

func (a *app) inspectCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect PACK",
		Short: "Print the header and frame layout of a pack",
		Args:  cobra.ExactArgs(1),
		RunE:  a.runInspect,
	}
	f := cmd.Flags()
	f.Bool("frames", false, "List every frame")
	f.Bool("descriptor", false, "Print the OCI content descriptor as JSON")
	f.String("index", "", "Frame index sidecar written by 'zus index'")
	return cmd
}

func (a *app) runInspect(_ *cobra.Command, args []string) error {
	f, err := a.openPack(args[0])
	if err != nil {
		return err
	}
	defer f.Close()

	h := f.Header()
	w := a.out
	fmt.Fprintf(w, "version:         %d\n", h.Version)
	fmt.Fprintf(w, "frames:          %d\n", h.FrameCount)
	fmt.Fprintf(w, "max frame size:  %s (%d bytes)\n", humanize.IBytes(h.MaxFrameSize), h.MaxFrameSize)
	fmt.Fprintf(w, "array id:        %d\n", h.ArrayID)
	fmt.Fprintf(w, "subject id:      %d\n", h.SubjectID)
	fmt.Fprintf(w, "imaging method:  %d\n", h.ImagingMethodID)
	fmt.Fprintf(w, "timestamp:       %s\n", h.Time().Format(time.RFC3339))
	fmt.Fprintf(w, "user data:       %d bytes, tag %d\n", h.UserDataSize, h.UserDataTag)
	fmt.Fprintf(w, "frame region:    offset %d\n", h.FrameRegionOffset())
	fmt.Fprintf(w, "pack size:       %s\n", humanize.IBytes(uint64(len(f.Bytes()))))

	if a.v.GetBool("frames") {
		if err := a.printFrames(f); err != nil {
			return err
		}
	}
	if a.v.GetBool("descriptor") {
		desc, err := zus.Describe(f.Bytes())
		if err != nil {
			return err
		}
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		if err := enc.Encode(desc); err != nil {
			return err
		}
	}
	return nil
}

func (a *app) printFrames(f *zus.File) error {
	// One walk up front; FrameInfo then reads cached offsets.
	if _, err := f.ExtractFrameOffsets(make([]int64, f.FrameCount())); err != nil {
		return err
	}

	table := tablewriter.NewWriter(a.out)
	table.SetHeader([]string{"Frame", "Offset", "Compressed", "Size", "Ratio"})
	table.SetAlignment(tablewriter.ALIGN_RIGHT)
	for i := range f.FrameCount() {
		info, err := f.FrameInfo(i)
		if err != nil {
			return err
		}
		ratio := "-"
		if info.CompressedSize > 0 && info.Size > 0 {
			ratio = strconv.FormatFloat(float64(info.Size)/float64(info.CompressedSize), 'f', 2, 64)
		}
		table.Append([]string{
			strconv.Itoa(i),
			strconv.FormatInt(info.Offset, 10),
			humanize.IBytes(uint64(info.CompressedSize)), //nolint:gosec // size is never negative
			humanize.IBytes(info.Size),
			ratio,
		})
	}
	table.Render()
	return nil
}
