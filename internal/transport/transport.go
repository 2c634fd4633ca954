// SPDX-License-Identifier: MIT
//
// Package transport holds the display sinks fed by the refresh scheduler:
// a websocket server for browsers, a logging sink, and (in udp) a packet
// publisher. Every sink runs Redisplay on the scheduler goroutine and must
// hand slow work off rather than block it.
package transport

import (
	"encoding/binary"
	"fmt"
	"image/color"
	"io"

	"spectro/internal/scheduler"
)

// Display is a scheduler display that owns resources.
type Display interface {
	scheduler.Display
	io.Closer
}

// ColumnHeaderSize is the length of a column message header:
// sequence (uint32) and height (uint16), big-endian.
const ColumnHeaderSize = 6

/*
Column message (BigEndian), one per appended raster column:

|<-- 4 Bytes -->|<-- 2 Bytes -->|<------- 3 * Height Bytes ------->|
+---------------+---------------+----------------------------------+
|   Sequence    |    Height     |  R G B per pixel, top to bottom  |
|   (uint32)    |   (uint16)    |                                  |
+---------------+---------------+----------------------------------+
*/

// AppendColumn appends the column message for col to dst.
func AppendColumn(dst []byte, seq uint32, col []color.RGBA) []byte {
	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint16(dst, uint16(len(col)))
	for _, c := range col {
		dst = append(dst, c.R, c.G, c.B)
	}
	return dst
}

// ParseColumn decodes a column message. The returned rgb aliases msg.
func ParseColumn(msg []byte) (seq uint32, rgb []byte, err error) {
	if len(msg) < ColumnHeaderSize {
		return 0, nil, fmt.Errorf("column message of %d bytes is shorter than its header", len(msg))
	}
	seq = binary.BigEndian.Uint32(msg)
	height := int(binary.BigEndian.Uint16(msg[4:]))
	rgb = msg[ColumnHeaderSize:]
	if len(rgb) != 3*height {
		return 0, nil, fmt.Errorf("column message declares height %d but carries %d bytes", height, len(rgb))
	}
	return seq, rgb, nil
}
