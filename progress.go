package zus

// ProgressEvent represents a progress update during packing or extraction.
type ProgressEvent struct {
	// Stage identifies the current phase of the operation.
	Stage ProgressStage

	// Frame is the index of the frame just processed, or -1 if not applicable.
	Frame int

	// BytesDone is the number of bytes completed in the current operation.
	// While packing this counts compressed bytes produced.
	BytesDone uint64

	// BytesTotal is the total bytes for the current operation.
	// Zero indicates the total is unknown.
	BytesTotal uint64

	// FramesDone is the number of frames completed.
	FramesDone int

	// FramesTotal is the total number of frames.
	// Zero indicates the total is unknown (e.g., while packing).
	FramesTotal int
}

// ProgressStage identifies the current phase of an operation.
type ProgressStage uint8

// Progress stages for packing and extraction.
const (
	// StagePacking indicates a frame was compressed into the output.
	StagePacking ProgressStage = iota

	// StageFlushing indicates the output buffer was handed to the flush function.
	StageFlushing

	// StageFinalizing indicates the final header was written.
	StageFinalizing

	// StageExtracting indicates frames are being decompressed to a sink.
	StageExtracting
)

// String returns the string representation of the stage.
func (s ProgressStage) String() string {
	switch s {
	case StagePacking:
		return "packing"
	case StageFlushing:
		return "flushing"
	case StageFinalizing:
		return "finalizing"
	case StageExtracting:
		return "extracting"
	default:
		return "unknown"
	}
}

// ProgressFunc receives progress updates during operations.
// Calls are never concurrent, including those made by Extract.
type ProgressFunc func(ProgressEvent)
