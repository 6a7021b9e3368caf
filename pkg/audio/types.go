// Package audio provides PCM frame assembly and channel downmixing for the
// capture pipeline. Raw bytes from the capture subprocess are accumulated by
// an [Assembler] into fixed-duration frames, downmixed to mono, and handed to
// the streaming recognizer.
package audio

import "time"

// BytesPerSample is the width of a single PCM sample. All audio in the
// pipeline is signed 16-bit little-endian.
const BytesPerSample = 2

// AudioFrame is a fixed-duration slice of PCM audio produced by an
// [Assembler]. Frames are transient: ownership passes to the recognizer call
// that consumes them and they are never retained after emission.
type AudioFrame struct {
	// Data holds raw PCM bytes, signed 16-bit little-endian, interleaved
	// when Channels > 1. Always a fresh allocation; never aliases the
	// assembler's internal buffer.
	Data []byte

	// SampleRate in Hz (e.g. 24000).
	SampleRate int

	// Channels is the channel count of Data. Assembler output is always 1.
	Channels int

	// Timestamp marks the frame's position relative to stream start.
	Timestamp time.Duration
}
