// SPDX-License-Identifier: MIT
package fft

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/dsp/window"
)

// WindowFunc selects the smoothing window applied before the transform.
type WindowFunc int

// Enum for available window functions.
const (
	Hann WindowFunc = iota
	Hamming
	Blackman
	BlackmanHarris
	BlackmanNuttall
	BartlettHann
	Nuttall
	FlatTop
	Rectangular
)

var windowNames = map[WindowFunc]string{
	Hann:            "Hann",
	Hamming:         "Hamming",
	Blackman:        "Blackman",
	BlackmanHarris:  "BlackmanHarris",
	BlackmanNuttall: "BlackmanNuttall",
	BartlettHann:    "BartlettHann",
	Nuttall:         "Nuttall",
	FlatTop:         "FlatTop",
	Rectangular:     "Rectangular",
}

func (w WindowFunc) String() string {
	if name, ok := windowNames[w]; ok {
		return name
	}
	return fmt.Sprintf("WindowFunc(%d)", int(w))
}

// ParseWindowFunc converts a string name (case-insensitive) to a WindowFunc
// enum, returns a known default (Hann) and an error if the name is unknown.
func ParseWindowFunc(name string) (WindowFunc, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hann", "hanning", "":
		return Hann, nil
	case "hamming":
		return Hamming, nil
	case "blackman":
		return Blackman, nil
	case "blackmanharris":
		return BlackmanHarris, nil
	case "blackmannuttall":
		return BlackmanNuttall, nil
	case "bartletthann":
		return BartlettHann, nil
	case "nuttall":
		return Nuttall, nil
	case "flattop":
		return FlatTop, nil
	case "rectangular", "none":
		return Rectangular, nil
	default:
		return Hann, fmt.Errorf("unknown FFT window function name: '%s'", name)
	}
}

// windowTable returns size coefficients for windowType scaled so that they
// sum to size. The scaling keeps a full-scale tone at the same level for
// every window once the mapper subtracts the 20*log10(N) transform gain.
func windowTable(size int, windowType WindowFunc) []float64 {
	coeffs := make([]float64, size)

	// gonum's window functions multiply in place, so start from ones.
	for i := range coeffs {
		coeffs[i] = 1.0
	}
	switch windowType {
	case Hamming:
		window.Hamming(coeffs)
	case Blackman:
		window.Blackman(coeffs)
	case BlackmanHarris:
		window.BlackmanHarris(coeffs)
	case BlackmanNuttall:
		window.BlackmanNuttall(coeffs)
	case BartlettHann:
		window.BartlettHann(coeffs)
	case Nuttall:
		window.Nuttall(coeffs)
	case FlatTop:
		window.FlatTop(coeffs)
	case Rectangular:
		window.Rectangular(coeffs)
	default:
		window.Hann(coeffs)
	}

	var sum float64
	for _, c := range coeffs {
		sum += c
	}
	if sum > 0 {
		scale := float64(size) / sum
		for i := range coeffs {
			coeffs[i] *= scale
		}
	}
	return coeffs
}
