// Package zstdframe wraps github.com/klauspost/compress/zstd with the
// operations the pack format needs from its codec: a compressed frame size
// query, one-shot decompression into a caller buffer, streamed decompression,
// and encoder construction.
//
// Decoders are pooled so a single Decoder may be shared by concurrent readers.
package zstdframe
