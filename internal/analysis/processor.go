// SPDX-License-Identifier: MIT
package analysis

import "spectro/internal/fft"

// AudioProcessor is implemented by components fed directly from the audio
// callback. Implementations must not block, lock or allocate.
type AudioProcessor interface {
	// WriteInterleaved consumes one host block of frame-interleaved samples.
	WriteInterleaved(in []float32, inChannels int)
}

// FrameSource is the consumer-side view of an analysis pipeline. A consumer
// checks Ready, reads Spectrum for every channel, then calls Consume; the
// spectra must not be touched after Consume returns.
type FrameSource interface {
	Ready() bool
	Channels() int
	Spectrum(channel int) fft.Spectrum
	Consume()
}

// Compile-time checks for interface implementations.
var _ AudioProcessor = (*Accumulator)(nil)
var _ FrameSource = (*Accumulator)(nil)
