package session

import "bytes"

// DefaultFrameThreshold is the number of media frames accumulated before a
// chunk is flushed for processing. At the provider's frame cadence this
// approximates a two second window.
const DefaultFrameThreshold = 20

// FrameBuffer accumulates inbound audio frames into processing chunks.
// It is owned by a single session and is not safe for concurrent use.
type FrameBuffer struct {
	threshold int
	frames    int
	buf       bytes.Buffer
}

// NewFrameBuffer creates a buffer that flushes every threshold frames.
func NewFrameBuffer(threshold int) *FrameBuffer {
	if threshold <= 0 {
		threshold = DefaultFrameThreshold
	}
	return &FrameBuffer{threshold: threshold}
}

// Push appends one frame. When the accumulated frame count reaches the
// threshold, Push returns the concatenated chunk bytes and true, and the
// buffer resets to empty. The remainder below the threshold is retained
// for the next flush.
func (b *FrameBuffer) Push(frame []byte) ([]byte, bool) {
	b.buf.Write(frame)
	b.frames++

	if b.frames < b.threshold {
		return nil, false
	}

	chunk := make([]byte, b.buf.Len())
	copy(chunk, b.buf.Bytes())
	b.buf.Reset()
	b.frames = 0
	return chunk, true
}

// Frames returns the number of frames currently buffered.
func (b *FrameBuffer) Frames() int {
	return b.frames
}
