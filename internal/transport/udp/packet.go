// SPDX-License-Identifier: MIT
package udp

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderSize is the fixed length of a packet before its intensities.
const HeaderSize = 4 + 8 + 1 + 2

// MaxLevels is the largest intensity count one packet can carry.
const MaxLevels = math.MaxUint16

/*
UDP Packet Structure (BigEndian)

+-----------------------------------------------------------------------------+
| Field             | Data Type      | Size (Bytes) | Description             |
|-------------------|----------------|--------------|-------------------------|
| Sequence Number   | uint32         | 4            | Raster column number    |
| Timestamp         | int64          | 8            | Nanoseconds since epoch |
| Channels          | uint8          | 1            | Analysis channels (C)   |
| Level Count       | uint16         | 2            | Total floats (N)        |
| Levels            | []float32      | N * 4        | Intensities in [0, 1]   |
+-----------------------------------------------------------------------------+

Levels hold channel 0 first, lowest row first; each channel carries N/C
values.
*/

// Packet is a decoded column of intensities.
type Packet struct {
	Seq       uint32
	Timestamp int64
	Channels  uint8
	Levels    []float32
}

// Channel returns the intensities of channel ch.
func (p Packet) Channel(ch int) []float32 {
	if p.Channels == 0 || ch < 0 || ch >= int(p.Channels) {
		return nil
	}
	per := len(p.Levels) / int(p.Channels)
	return p.Levels[ch*per : (ch+1)*per]
}

// AppendPacket encodes one column of per-channel levels onto dst. Channels
// must all have the same length.
func AppendPacket(dst []byte, seq uint32, timestamp int64, levels [][]float64) ([]byte, error) {
	total := 0
	for _, ch := range levels {
		total += len(ch)
	}
	if len(levels) > math.MaxUint8 || total > MaxLevels {
		return dst, fmt.Errorf("column of %d channels and %d levels does not fit a packet", len(levels), total)
	}

	dst = binary.BigEndian.AppendUint32(dst, seq)
	dst = binary.BigEndian.AppendUint64(dst, uint64(timestamp))
	dst = append(dst, uint8(len(levels)))
	dst = binary.BigEndian.AppendUint16(dst, uint16(total))
	for _, ch := range levels {
		for _, v := range ch {
			dst = binary.BigEndian.AppendUint32(dst, math.Float32bits(float32(v)))
		}
	}
	return dst, nil
}

// ParsePacket decodes b. Levels is freshly allocated.
func ParsePacket(b []byte) (Packet, error) {
	if len(b) < HeaderSize {
		return Packet{}, errors.New("packet shorter than header")
	}
	p := Packet{
		Seq:       binary.BigEndian.Uint32(b),
		Timestamp: int64(binary.BigEndian.Uint64(b[4:])),
		Channels:  b[12],
	}
	count := int(binary.BigEndian.Uint16(b[13:]))
	payload := b[HeaderSize:]
	if len(payload) != 4*count {
		return Packet{}, fmt.Errorf("packet declares %d levels but carries %d bytes", count, len(payload))
	}
	p.Levels = make([]float32, count)
	for i := range p.Levels {
		p.Levels[i] = math.Float32frombits(binary.BigEndian.Uint32(payload[4*i:]))
	}
	return p, nil
}
