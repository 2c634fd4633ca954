// SPDX-License-Identifier: MIT
package audio

import "math"

// Gate silences host blocks whose peak stays below a threshold. A closed
// gate still forwards the block, zeroed, so window timing is unchanged.
type Gate struct {
	enabled   bool
	threshold float32 // Absolute amplitude in [0, 1].
}

// NewGate returns a gate at threshold; 0 disables it.
func NewGate(threshold float64) *Gate {
	g := &Gate{}
	g.SetThreshold(threshold)
	g.enabled = threshold > 0
	return g
}

func (g *Gate) Enable()  { g.enabled = true }
func (g *Gate) Disable() { g.enabled = false }

// Enabled reports whether the gate is active.
func (g *Gate) Enabled() bool {
	return g.enabled
}

// SetThreshold adjusts the threshold, clamped to [0, 1].
func (g *Gate) SetThreshold(threshold float64) {
	g.threshold = float32(max(0, min(threshold, 1)))
}

// Threshold returns the current threshold.
func (g *Gate) Threshold() float64 {
	return float64(g.threshold)
}

// Apply zeroes buf in place when its peak is at or below the threshold and
// reports whether the gate was open. It does not allocate.
func (g *Gate) Apply(buf []float32) bool {
	if !g.enabled {
		return true
	}
	if peak(buf) > g.threshold {
		return true
	}
	clear(buf)
	return false
}

// peak returns the largest absolute sample, clearing the sign bit instead
// of branching.
func peak(buf []float32) float32 {
	var p float32
	for _, s := range buf {
		a := math.Float32frombits(math.Float32bits(s) &^ (1 << 31))
		p = max(p, a)
	}
	return p
}
