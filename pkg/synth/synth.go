// SPDX-License-Identifier: MIT
//
// Package synth generates deterministic float32 test signals: fixed tones,
// harmonic mixes and a looping logarithmic sweep used by the --demo source.
package synth

import "math"

// GenerateSineWave returns size samples of a sine at frequency Hz with
// amplitude 0.9 of full scale.
func GenerateSineWave(size int, sampleRate, frequency float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		t := float64(i) / sampleRate
		buffer[i] = float32(math.Sin(2*math.Pi*frequency*t) * 0.9)
	}
	return buffer
}

// GenerateComplexWave returns a 440 Hz fundamental with two harmonics.
func GenerateComplexWave(size int, sampleRate float64) []float32 {
	buffer := make([]float32, size)
	for i := range buffer {
		tm := float64(i) / sampleRate
		signal := math.Sin(2*math.Pi*440*tm)*0.5 +
			math.Sin(2*math.Pi*880*tm)*0.3 +
			math.Sin(2*math.Pi*1320*tm)*0.2
		buffer[i] = float32(signal * 0.9)
	}
	return buffer
}

// Interleave merges per-channel buffers of equal length into one
// frame-interleaved buffer.
func Interleave(channels ...[]float32) []float32 {
	if len(channels) == 0 {
		return nil
	}
	frames := len(channels[0])
	out := make([]float32, frames*len(channels))
	for i := range frames {
		for c, ch := range channels {
			out[i*len(channels)+c] = ch[i]
		}
	}
	return out
}

// FindPeakBin returns the index of the largest magnitude in [startBin, endBin].
func FindPeakBin(magnitudes []float64, startBin, endBin int) int {
	if len(magnitudes) == 0 {
		return 0
	}
	if startBin < 0 {
		startBin = 0
	}
	if endBin >= len(magnitudes) {
		endBin = len(magnitudes) - 1
	}

	peakBin := startBin
	peakValue := magnitudes[startBin]
	for bin := startBin + 1; bin <= endBin; bin++ {
		if magnitudes[bin] > peakValue {
			peakValue = magnitudes[bin]
			peakBin = bin
		}
	}
	return peakBin
}

// Sweep is a phase-continuous oscillator gliding exponentially from Low to
// High Hz over Period seconds, then restarting. Fill does not allocate.
type Sweep struct {
	Low, High  float64
	Period     float64
	SampleRate float64
	Amplitude  float64

	phase float64
	pos   int
}

// NewSweep returns a sweep from low to high Hz lasting period seconds.
func NewSweep(sampleRate, low, high, period float64) *Sweep {
	return &Sweep{
		Low:        low,
		High:       high,
		Period:     period,
		SampleRate: sampleRate,
		Amplitude:  0.5,
	}
}

// Frequency returns the instantaneous frequency in Hz.
func (s *Sweep) Frequency() float64 {
	p := float64(s.pos) / s.length()
	return s.Low * math.Pow(s.High/s.Low, p)
}

func (s *Sweep) length() float64 {
	n := math.Round(s.Period * s.SampleRate)
	if n < 1 {
		return 1
	}
	return n
}

// Fill writes len(dst)/channels frames, duplicating the sweep onto every
// channel of the interleaved buffer.
func (s *Sweep) Fill(dst []float32, channels int) {
	if channels < 1 {
		channels = 1
	}
	dt := 1 / s.SampleRate
	n := int(s.length())
	for i := 0; i+channels <= len(dst); i += channels {
		v := float32(math.Sin(s.phase) * s.Amplitude)
		for c := range channels {
			dst[i+c] = v
		}
		s.phase += 2 * math.Pi * s.Frequency() * dt
		if s.phase > 2*math.Pi {
			s.phase -= 2 * math.Pi
		}
		s.pos++
		if s.pos >= n {
			s.pos = 0
		}
	}
}
