// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"image/color"
	"strings"

	"github.com/lucasb-eyer/go-colorful"
)

// Palette converts a level in [0, 1] to a colour. Implementations must not
// allocate; Color runs once per pixel on every tick.
type Palette interface {
	Color(level float64) color.RGBA
}

// HSV keeps the hue fixed and rises from black through the hue to white:
// saturation 1-level, value level.
type HSV struct {
	Hue float64 // In [0, 1].
}

func (p HSV) Color(level float64) color.RGBA {
	level = clamp01(level)
	r, g, b := colorful.Hsv(p.Hue*360, 1-level, level).RGB255()
	return color.RGBA{R: r, G: g, B: b, A: 0xff}
}

// Gray maps the level straight to luminance.
type Gray struct{}

func (Gray) Color(level float64) color.RGBA {
	v := uint8(clamp01(level)*255 + 0.5)
	return color.RGBA{R: v, G: v, B: v, A: 0xff}
}

// Gradient blends between evenly spaced stops in HCL space.
type Gradient struct {
	stops []colorful.Color
}

// NewGradient builds a gradient from hex colour stops, low level first.
func NewGradient(hexStops ...string) (*Gradient, error) {
	if len(hexStops) < 2 {
		return nil, fmt.Errorf("gradient needs at least 2 stops, got %d", len(hexStops))
	}
	g := &Gradient{stops: make([]colorful.Color, len(hexStops))}
	for i, h := range hexStops {
		c, err := colorful.Hex(h)
		if err != nil {
			return nil, fmt.Errorf("gradient stop %d: %w", i, err)
		}
		g.stops[i] = c
	}
	return g, nil
}

func (g *Gradient) Color(level float64) color.RGBA {
	pos := clamp01(level) * float64(len(g.stops)-1)
	i := int(pos)
	if i >= len(g.stops)-1 {
		i = len(g.stops) - 2
	}
	c := g.stops[i].BlendHcl(g.stops[i+1], pos-float64(i)).Clamped()
	r, gr, b := c.RGB255()
	return color.RGBA{R: r, G: gr, B: b, A: 0xff}
}

// heatStops is the "heat" palette.
var heatStops = []string{"#000000", "#1b0c41", "#a52c60", "#f98e09", "#fcffa4"}

// ParsePalette returns the palette called name. hue is used by "hsv".
func ParsePalette(name string, hue float64) (Palette, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "hsv", "":
		return HSV{Hue: hue}, nil
	case "gray", "grey":
		return Gray{}, nil
	case "heat":
		g, err := NewGradient(heatStops...)
		if err != nil {
			return nil, err
		}
		return g, nil
	default:
		return nil, fmt.Errorf("unknown palette %q", name)
	}
}

func clamp01(v float64) float64 {
	if v != v || v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
