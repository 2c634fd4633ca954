// SPDX-License-Identifier: MIT
package render

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"io"
)

// Raster is a fixed-size image that scrolls left by one column per append.
// It is owned by the consumer; displays read it on the consumer goroutine.
type Raster struct {
	img     *image.RGBA
	width   int
	height  int
	columns uint64
}

// NewRaster returns an opaque black width x height raster.
func NewRaster(width, height int) (*Raster, error) {
	if width < 1 || height < 1 {
		return nil, fmt.Errorf("raster size must be positive, got %dx%d", width, height)
	}
	r := &Raster{
		img:    image.NewRGBA(image.Rect(0, 0, width, height)),
		width:  width,
		height: height,
	}
	r.Reset()
	return r, nil
}

// AppendColumn shifts every row one pixel toward x = 0, discarding the
// oldest column, and writes col top to bottom at x = width-1. Panics if
// len(col) != height.
func (r *Raster) AppendColumn(col []color.RGBA) {
	if len(col) != r.height {
		panic(fmt.Sprintf("render: column of %d pixels for raster height %d", len(col), r.height))
	}
	rowBytes := 4 * r.width
	for y, c := range col {
		row := r.img.Pix[y*r.img.Stride : y*r.img.Stride+rowBytes]
		copy(row, row[4:])
		px := row[rowBytes-4:]
		px[0], px[1], px[2], px[3] = c.R, c.G, c.B, c.A
	}
	r.columns++
}

// Reset clears the raster to opaque black.
func (r *Raster) Reset() {
	pix := r.img.Pix
	for i := 0; i < len(pix); i += 4 {
		pix[i], pix[i+1], pix[i+2], pix[i+3] = 0, 0, 0, 0xff
	}
	r.columns = 0
}

// Image returns the backing image. It changes on every append.
func (r *Raster) Image() *image.RGBA {
	return r.img
}

// At returns the pixel at x, y.
func (r *Raster) At(x, y int) color.RGBA {
	return r.img.RGBAAt(x, y)
}

// Width returns the raster width in columns.
func (r *Raster) Width() int {
	return r.width
}

// Height returns the raster height in rows.
func (r *Raster) Height() int {
	return r.height
}

// Columns returns the number of columns appended since the last Reset.
func (r *Raster) Columns() uint64 {
	return r.columns
}

// WritePNG encodes the current image as PNG.
func (r *Raster) WritePNG(w io.Writer) error {
	if err := png.Encode(w, r.img); err != nil {
		return fmt.Errorf("encoding png: %w", err)
	}
	return nil
}
