// SPDX-License-Identifier: MIT
/*
Package analysis assembles analysis windows from a continuous audio stream
and hands finished spectra to a separately scheduled consumer.

Concurrency contract:
  - Push, PushFrame, WriteInterleaved and Prepare belong to the producer
    (the audio callback). They never lock, block or allocate.
  - Ready, Spectrum, Channels and Consume belong to a single consumer.
  - The only shared state is the per-channel spectrum buffers, handed over
    by one atomic flag: the producer writes spectra and then sets the flag;
    it never writes again until the consumer has cleared it. Blocks that
    complete while the flag is set are dropped, never queued.
*/
package analysis

import (
	"fmt"
	"math"
	"sync/atomic"

	"spectro/internal/fft"
	"spectro/pkg/bitint"
)

// ChannelMode decides how input channels map onto analysis channels.
type ChannelMode int

const (
	// Mono mixes every input channel into one analysis channel.
	Mono ChannelMode = iota
	// Stereo analyses two channels independently; mono input is duplicated.
	Stereo
)

// ParseChannelMode converts "mono" or "stereo" to a ChannelMode.
func ParseChannelMode(name string) (ChannelMode, error) {
	switch name {
	case "mono":
		return Mono, nil
	case "stereo":
		return Stereo, nil
	default:
		return Mono, fmt.Errorf("unknown channel mode %q", name)
	}
}

func (m ChannelMode) String() string {
	if m == Stereo {
		return "stereo"
	}
	return "mono"
}

// Options configures an Accumulator.
type Options struct {
	Size    int // Window length N, a power of two.
	Hop     int // Samples between windows, in [1, N]. N means no overlap.
	Mode    ChannelMode
	Window  fft.WindowFunc
	Backend fft.Backend
}

// Accumulator is the fixed-capacity ring that collects samples per channel
// and analyses a window every Hop samples once N have arrived.
type Accumulator struct {
	size     int
	mask     int
	hop      int
	mode     ChannelMode
	channels int

	ring      [][]float32 // Per-channel ring, producer owned.
	cursor    int         // Next write position in every ring.
	filled    int         // Samples written, saturating at size.
	sinceLast int         // Samples since the last completed window.
	block     fft.Block   // Unrolled window handed to the analyzers.
	analyzers []*fft.Analyzer

	ready      atomic.Bool
	completed  atomic.Uint64
	dropped    atomic.Uint64
	sampleRate atomic.Uint64 // math.Float64bits of the prepared rate.
}

// NewAccumulator validates opts and pre-allocates every buffer.
func NewAccumulator(opts Options) (*Accumulator, error) {
	if !bitint.IsPowerOfTwo(opts.Size) || opts.Size < 4 {
		return nil, fmt.Errorf("accumulator size must be a power of 2 and at least 4, got %d", opts.Size)
	}
	if opts.Hop < 1 || opts.Hop > opts.Size {
		return nil, fmt.Errorf("hop size must be in [1, %d], got %d", opts.Size, opts.Hop)
	}

	channels := 1
	if opts.Mode == Stereo {
		channels = 2
	}

	acc := &Accumulator{
		size:     opts.Size,
		mask:     opts.Size - 1,
		hop:      opts.Hop,
		mode:     opts.Mode,
		channels: channels,
		block:    fft.NewBlock(opts.Size),
	}
	for range channels {
		a, err := fft.NewAnalyzer(opts.Size, opts.Window, opts.Backend)
		if err != nil {
			return nil, err
		}
		acc.analyzers = append(acc.analyzers, a)
		acc.ring = append(acc.ring, make([]float32, opts.Size))
	}
	return acc, nil
}

// Prepare records the host sample rate before streaming starts. The
// transform itself does not depend on it.
func (a *Accumulator) Prepare(sampleRate float64) {
	a.sampleRate.Store(math.Float64bits(sampleRate))
}

// SampleRate returns the rate passed to Prepare, or 0.
func (a *Accumulator) SampleRate() float64 {
	return math.Float64frombits(a.sampleRate.Load())
}

// FrameRate returns analysed windows per second at the prepared rate.
func (a *Accumulator) FrameRate() float64 {
	return a.SampleRate() / float64(a.hop)
}

// Push appends one sample to every analysis channel.
func (a *Accumulator) Push(sample float32) {
	for ch := range a.ring {
		a.ring[ch][a.cursor] = sample
	}
	a.advance()
}

// PushFrame appends one sample per analysis channel. Missing channels
// repeat the last provided sample; extra samples are ignored.
func (a *Accumulator) PushFrame(frame []float32) {
	if len(frame) == 0 {
		return
	}
	last := frame[0]
	for ch := range a.ring {
		if ch < len(frame) {
			last = frame[ch]
		}
		a.ring[ch][a.cursor] = last
	}
	a.advance()
}

// WriteInterleaved consumes a host block of frame-interleaved samples with
// inChannels samples per frame, applying the channel mode.
func (a *Accumulator) WriteInterleaved(in []float32, inChannels int) {
	if inChannels < 1 {
		return
	}
	gain := 1 / float32(inChannels)
	for i := 0; i+inChannels <= len(in); i += inChannels {
		frame := in[i : i+inChannels]
		if a.mode == Mono {
			var sum float32
			for _, s := range frame {
				sum += s
			}
			a.Push(sum * gain)
			continue
		}
		a.PushFrame(frame)
	}
}

func (a *Accumulator) advance() {
	a.cursor = (a.cursor + 1) & a.mask
	if a.filled < a.size {
		a.filled++
	}
	a.sinceLast++
	if a.filled == a.size && a.sinceLast >= a.hop {
		a.sinceLast = 0
		a.complete()
	}
}

// complete runs at a window boundary on the producer.
func (a *Accumulator) complete() {
	a.completed.Add(1)
	if a.ready.Load() {
		a.dropped.Add(1)
		return
	}

	for ch, ring := range a.ring {
		// The cursor points at the oldest sample; unroll oldest first.
		copyRing(a.block[:a.size], ring, a.cursor)
		a.analyzers[ch].Analyze(a.block)
	}
	a.ready.Store(true)
}

func copyRing(dst []float64, ring []float32, start int) {
	tail := ring[start:]
	for i, s := range tail {
		dst[i] = float64(s)
	}
	for i, s := range ring[:start] {
		dst[len(tail)+i] = float64(s)
	}
}

// Ready reports whether a spectrum set is waiting to be consumed.
func (a *Accumulator) Ready() bool {
	return a.ready.Load()
}

// Spectrum returns the latest spectrum of an analysis channel. Only valid
// between a true Ready and Consume.
func (a *Accumulator) Spectrum(channel int) fft.Spectrum {
	return a.analyzers[channel].Spectrum()
}

// Consume releases the spectra back to the producer.
func (a *Accumulator) Consume() {
	a.ready.Store(false)
}

// Channels returns the number of analysis channels (1 or 2).
func (a *Accumulator) Channels() int {
	return a.channels
}

// Size returns the window length N.
func (a *Accumulator) Size() int {
	return a.size
}

// Hop returns the hop size.
func (a *Accumulator) Hop() int {
	return a.hop
}

// Mode returns the channel mode.
func (a *Accumulator) Mode() ChannelMode {
	return a.mode
}

// Completed returns the number of windows completed, analysed or not.
func (a *Accumulator) Completed() uint64 {
	return a.completed.Load()
}

// Dropped returns the number of windows discarded because the previous
// spectrum had not been consumed.
func (a *Accumulator) Dropped() uint64 {
	return a.dropped.Load()
}
