package audio

import "time"

// Defaults for [NewAssembler]. They match the capture subprocess output:
// 100 ms frames of 24 kHz stereo PCM.
const (
	DefaultFrameDuration = 100 * time.Millisecond
	DefaultSampleRate    = 24000
	DefaultChannels      = 2
)

// maxResidualWindow bounds the unconsumed residual buffer. If the residual
// ever exceeds one second of audio, only the most recent window is retained.
const maxResidualWindow = time.Second

// AssemblerOption is a functional option for configuring an [Assembler].
type AssemblerOption func(*Assembler)

// WithFrameDuration sets the emitted frame duration. Default: 100 ms.
func WithFrameDuration(d time.Duration) AssemblerOption {
	return func(a *Assembler) {
		if d > 0 {
			a.frameDuration = d
		}
	}
}

// WithSampleRate sets the input sample rate in Hz. Default: 24000.
func WithSampleRate(hz int) AssemblerOption {
	return func(a *Assembler) {
		if hz > 0 {
			a.sampleRate = hz
		}
	}
}

// WithChannels sets the input channel count. Default: 2.
func WithChannels(n int) AssemblerOption {
	return func(a *Assembler) {
		if n > 0 {
			a.channels = n
		}
	}
}

// Assembler converts an unbounded byte stream of interleaved 16-bit PCM into
// fixed-size mono frames. Chunks are processed strictly in arrival order: each
// [Assembler.Write] appends to an internal buffer, slices off every complete
// frame, downmixes it via [DownmixMono], and returns the emitted frames.
//
// For any input stream the assembler emits exactly
// floor(totalBytes / FrameBytes) frames regardless of how the bytes were
// chunked. It performs no I/O and allocates only the emitted frame data
// beyond the retained residual.
//
// Assembler is not safe for concurrent use; the capture pump is its only
// caller.
type Assembler struct {
	frameDuration time.Duration
	sampleRate    int
	channels      int

	frameBytes  int // input bytes per frame across all channels
	maxResidual int // one maxResidualWindow of input bytes

	buf     []byte
	elapsed time.Duration
}

// NewAssembler returns an [Assembler] configured with the supplied options.
func NewAssembler(opts ...AssemblerOption) *Assembler {
	a := &Assembler{
		frameDuration: DefaultFrameDuration,
		sampleRate:    DefaultSampleRate,
		channels:      DefaultChannels,
	}
	for _, o := range opts {
		o(a)
	}
	samplesPerFrame := int(int64(a.sampleRate) * int64(a.frameDuration) / int64(time.Second))
	a.frameBytes = samplesPerFrame * a.channels * BytesPerSample
	a.maxResidual = int(int64(a.sampleRate)*int64(maxResidualWindow)/int64(time.Second)) * a.channels * BytesPerSample
	return a
}

// FrameBytes returns the input frame size in bytes, across all channels.
// Emitted mono frames carry FrameBytes / Channels bytes of data.
func (a *Assembler) FrameBytes() int { return a.frameBytes }

// SampleRate returns the configured input sample rate in Hz.
func (a *Assembler) SampleRate() int { return a.sampleRate }

// Channels returns the configured input channel count.
func (a *Assembler) Channels() int { return a.channels }

// Write appends chunk to the internal buffer and returns every complete frame
// now available, downmixed to mono, in input order. Returns nil when the
// buffered data is still shorter than one frame.
func (a *Assembler) Write(chunk []byte) []AudioFrame {
	a.buf = append(a.buf, chunk...)

	n := len(a.buf) / a.frameBytes
	var frames []AudioFrame
	if n > 0 {
		frames = make([]AudioFrame, 0, n)
		off := 0
		for range n {
			raw := a.buf[off : off+a.frameBytes]
			frames = append(frames, AudioFrame{
				Data:       DownmixMono(raw, a.channels),
				SampleRate: a.sampleRate,
				Channels:   1,
				Timestamp:  a.elapsed,
			})
			a.elapsed += a.frameDuration
			off += a.frameBytes
		}
		// Compact the residual to the front so the backing array is reused.
		rem := copy(a.buf, a.buf[off:])
		a.buf = a.buf[:rem]
	}

	// Residual guard: cap memory if the downstream never consumes a full
	// frame (only reachable when a frame spans more than one second).
	if len(a.buf) > a.maxResidual {
		rem := copy(a.buf, a.buf[len(a.buf)-a.maxResidual:])
		a.buf = a.buf[:rem]
	}

	return frames
}

// Residual returns the number of unconsumed bytes currently buffered.
func (a *Assembler) Residual() int { return len(a.buf) }

// Reset discards any buffered residual and rewinds the frame timestamp.
// Called when a new session starts.
func (a *Assembler) Reset() {
	a.buf = a.buf[:0]
	a.elapsed = 0
}
