// SPDX-License-Identifier: MIT
package render

import (
	"image/color"
	"time"
)

// Frame is what a display receives after each appended column. Slices and
// the raster are reused by the next tick; displays copy what they keep.
type Frame struct {
	Seq    uint64
	Time   time.Time
	Levels [][]float64  // Per channel, row 0 lowest frequency.
	Column []color.RGBA // The appended column, top to bottom.
	Raster *Raster
}

// ChannelHeights splits height rows between channels. Channel 0 takes any
// remainder so the column is always filled.
func ChannelHeights(height, channels int) []int {
	if channels < 1 {
		channels = 1
	}
	heights := make([]int, channels)
	base := height / channels
	for i := range heights {
		heights[i] = base
	}
	heights[0] += height - base*channels
	return heights
}

// StackColumn colours levels into dst, a raster column ordered top to
// bottom. Channel 0 fills the bottom rows, later channels stack above it,
// and every channel has its lowest frequency at the bottom of its band.
func StackColumn(dst []color.RGBA, levels [][]float64, p Palette) {
	base := len(dst)
	for _, ch := range levels {
		for i, v := range ch {
			y := base - 1 - i
			if y < 0 {
				return
			}
			dst[y] = p.Color(v)
		}
		base -= len(ch)
	}
	for y := range max(base, 0) {
		dst[y] = color.RGBA{A: 0xff}
	}
}
