// SPDX-License-Identifier: MIT
//
// Package fft turns a block of time-domain samples into a magnitude
// spectrum: window, real forward transform, and |X[k]| for the N/2+1
// non-negative frequency bins. Magnitudes are left unnormalised; the
// frequency mapper converts them to normalised decibels.
package fft

import (
	"fmt"
	"math/cmplx"

	"spectro/pkg/bitint"

	dspfft "github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/dsp/fourier"
)

// Block is one analysis window of 2N samples. The first N hold the signal,
// the second N stay zero.
type Block []float64

// NewBlock allocates a zeroed Block for transform size n.
func NewBlock(n int) Block {
	return make(Block, 2*n)
}

// Spectrum holds N/2+1 linear magnitudes indexed by FFT bin.
type Spectrum []float64

// Backend names a transform implementation.
type Backend string

const (
	// Gonum uses gonum's real FFT with pre-allocated output; it never
	// allocates after construction and is safe on the audio callback.
	Gonum Backend = "gonum"
	// GoDSP uses go-dsp's FFTReal, which allocates on every call. Offline only.
	GoDSP Backend = "go-dsp"
)

// transformer writes the magnitudes of the real transform of seq into dst.
type transformer interface {
	magnitudes(dst []float64, seq []float64)
}

type gonumTransformer struct {
	fft    *fourier.FFT
	coeffs []complex128
}

func (g *gonumTransformer) magnitudes(dst []float64, seq []float64) {
	g.coeffs = g.fft.Coefficients(g.coeffs, seq)
	for i, c := range g.coeffs {
		dst[i] = cmplx.Abs(c)
	}
}

type goDSPTransformer struct{}

func (goDSPTransformer) magnitudes(dst []float64, seq []float64) {
	coeffs := dspfft.FFTReal(seq)
	for i := range dst {
		dst[i] = cmplx.Abs(coeffs[i])
	}
}

// Analyzer holds the window table, transform plan and output buffer for one
// channel. It is not safe for concurrent use; each channel owns one.
type Analyzer struct {
	size       int
	windowType WindowFunc
	backend    Backend
	window     []float64
	magnitude  Spectrum
	transform  transformer
}

// NewAnalyzer creates an analyzer for transform size n (a power of two) and
// pre-allocates everything Analyze needs.
func NewAnalyzer(n int, windowType WindowFunc, backend Backend) (*Analyzer, error) {
	if !bitint.IsPowerOfTwo(n) || n < 4 {
		return nil, fmt.Errorf("fft size must be a power of 2 and at least 4, got %d", n)
	}

	var t transformer
	switch backend {
	case Gonum, "":
		backend = Gonum
		t = &gonumTransformer{
			fft:    fourier.NewFFT(n),
			coeffs: make([]complex128, n/2+1),
		}
	case GoDSP:
		t = goDSPTransformer{}
	default:
		return nil, fmt.Errorf("unknown fft backend %q", backend)
	}

	return &Analyzer{
		size:       n,
		windowType: windowType,
		backend:    backend,
		window:     windowTable(n, windowType),
		magnitude:  make(Spectrum, n/2+1),
		transform:  t,
	}, nil
}

// Analyze windows the first N samples of block in place and returns their
// magnitude spectrum. The returned slice is owned by the analyzer and is
// overwritten by the next call. Panics if block is shorter than N.
func (a *Analyzer) Analyze(block Block) Spectrum {
	if len(block) < a.size {
		panic(fmt.Sprintf("fft: block of %d samples is shorter than transform size %d", len(block), a.size))
	}

	seq := block[:a.size]
	for i, w := range a.window {
		seq[i] *= w
	}
	a.transform.magnitudes(a.magnitude, seq)
	return a.magnitude
}

// Spectrum returns the result of the last Analyze call.
func (a *Analyzer) Spectrum() Spectrum {
	return a.magnitude
}

// Size returns the transform size N.
func (a *Analyzer) Size() int {
	return a.size
}

// Bins returns the number of magnitude bins, N/2+1.
func (a *Analyzer) Bins() int {
	return len(a.magnitude)
}

// Window returns the window function in use.
func (a *Analyzer) Window() WindowFunc {
	return a.windowType
}

// Backend returns the transform backend in use.
func (a *Analyzer) Backend() Backend {
	return a.backend
}

// FrequencyForBin returns the centre frequency in Hz of bin for a transform
// of size n at sampleRate. Out-of-range bins return 0.
func FrequencyForBin(bin, n int, sampleRate float64) float64 {
	if bin < 0 || bin > n/2 {
		return 0
	}
	return float64(bin) * sampleRate / float64(n)
}

// BinForFrequency returns the bin closest to freq, clamped to [0, n/2].
func BinForFrequency(freq float64, n int, sampleRate float64) int {
	bin := int(freq*float64(n)/sampleRate + 0.5)
	return max(0, min(bin, n/2))
}
