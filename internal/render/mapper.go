// SPDX-License-Identifier: MIT
//
// Package render turns magnitude spectra into pixels: the Mapper picks one
// FFT bin per display row on a log-skewed axis and normalises it to [0, 1]
// in decibels, a Palette colours the level, and Raster scrolls the result.
package render

import (
	"fmt"
	"math"

	"spectro/pkg/bitint"
)

// epsilon keeps log10 finite on silent bins.
const epsilon = 1e-12

// MapperOptions configures a Mapper.
type MapperOptions struct {
	Size  int     // FFT size N that produced the spectra.
	Skew  float64 // Axis skew in (0, 1]; 1 is linear, smaller widens the low end.
	MinDB float64 // Level mapped to 0.
	MaxDB float64 // Level mapped to 1.
}

// Mapper converts spectra to per-row intensities. It holds no buffers and is
// safe to share.
type Mapper struct {
	size  int
	half  int
	skew  float64
	floor float64
	ceil  float64
	gain  float64 // 20*log10(N), the unnormalised transform gain.
}

// NewMapper validates opts.
func NewMapper(opts MapperOptions) (*Mapper, error) {
	if !bitint.IsPowerOfTwo(opts.Size) || opts.Size < 4 {
		return nil, fmt.Errorf("mapper fft size must be a power of 2 and at least 4, got %d", opts.Size)
	}
	if opts.Skew <= 0 || opts.Skew > 1 || math.IsNaN(opts.Skew) {
		return nil, fmt.Errorf("skew must be in (0, 1], got %v", opts.Skew)
	}
	if opts.MaxDB < opts.MinDB {
		return nil, fmt.Errorf("max dB %v is below min dB %v", opts.MaxDB, opts.MinDB)
	}
	return &Mapper{
		size:  opts.Size,
		half:  opts.Size / 2,
		skew:  opts.Skew,
		floor: opts.MinDB,
		ceil:  opts.MaxDB,
		gain:  20 * math.Log10(float64(opts.Size)),
	}, nil
}

// BinForRow returns the FFT bin shown on row (0 = lowest) of a column of
// height rows.
func (m *Mapper) BinForRow(row, height int) int {
	if height <= 0 {
		return 0
	}
	p := float64(row) / float64(height)
	skewed := 1 - math.Exp(math.Log(1-p)*m.skew)
	bin := int(skewed * float64(m.half))
	return max(0, min(bin, m.half))
}

// RowForBin returns the row on which bin appears, the inverse of BinForRow
// rounded to the nearest row.
func (m *Mapper) RowForBin(bin, height int) int {
	if height <= 0 {
		return 0
	}
	skewed := float64(max(0, min(bin, m.half))) / float64(m.half)
	p := 1 - math.Pow(1-skewed, 1/m.skew)
	row := int(math.Round(p * float64(height)))
	return max(0, min(row, height-1))
}

// Intensity maps a linear magnitude to [0, 1].
func (m *Mapper) Intensity(magnitude float64) float64 {
	if m.ceil == m.floor {
		return 0
	}
	if !(magnitude > epsilon) {
		magnitude = epsilon // NaN, negative and silent bins read as the floor.
	}
	db := 20*math.Log10(magnitude) - m.gain
	db = math.Max(m.floor, math.Min(db, m.ceil))
	return (db - m.floor) / (m.ceil - m.floor)
}

// MapColumn fills dst with one intensity per row, row 0 lowest. Bins past
// the end of a short spectrum read as silence.
func (m *Mapper) MapColumn(dst []float64, spectrum []float64) {
	height := len(dst)
	for row := range dst {
		bin := m.BinForRow(row, height)
		mag := 0.0
		if bin < len(spectrum) {
			mag = spectrum[bin]
		}
		dst[row] = m.Intensity(mag)
	}
}

// Size returns the FFT size the mapper expects.
func (m *Mapper) Size() int {
	return m.size
}

// Skew returns the axis skew.
func (m *Mapper) Skew() float64 {
	return m.skew
}

// Range returns the dB floor and ceiling.
func (m *Mapper) Range() (floor, ceil float64) {
	return m.floor, m.ceil
}
