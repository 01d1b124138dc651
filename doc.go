// Package zus reads and writes packs: sequences of compressed imaging frames
// laid out so that a memory-mapped file gives random access to any frame.
//
// A pack is a 256-byte little-endian header, an optional opaque user data
// blob, and a frame region. Each frame is one zstd frame starting on a
// 256-byte boundary, and the gaps between frames are zero:
//
//	0      256            AlignUp(256+userData)
//	| header | user data | pad | frame 0 | pad | frame 1 | ...
//
// # Packing
//
// A [Packer] compresses frames into a caller-supplied buffer. When the buffer
// fills it is handed to a [FlushFunc], typically one writing to a file:
//
//	out, err := os.Create("scan.zus")
//	if err != nil {
//	    return err
//	}
//	p, err := zus.NewPacker(make([]byte, 64<<20),
//	    zus.WithFlush(zus.WriterAtFlush(out)),
//	    zus.WithSubjectID(42),
//	)
//	if err != nil {
//	    return err
//	}
//	for _, frame := range frames {
//	    if err := p.PushFrame(frame); err != nil {
//	        return err
//	    }
//	}
//	if err := p.Finish(); err != nil {
//	    return err
//	}
//
// # Reading
//
// [Open] maps a pack and returns a [File], whose embedded [Reader]
// decompresses individual frames:
//
//	f, err := zus.Open("scan.zus")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	buf := make([]byte, f.Header().MaxFrameSize)
//	n, err := f.ReadFrame(3, buf)
//
// Frame offsets are found by walking the frame region. [Reader.BuildIndex]
// records them in a [FrameIndex] that can be stored next to the pack and
// passed back with [WithFrameIndex].
//
// [Extract] and [ExtractTo] decode every frame in parallel.
package zus
