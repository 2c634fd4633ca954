// SPDX-License-Identifier: MIT
/*
Package bitint provides the power-of-two helpers used to size FFT blocks and
ring buffers. Every function is allocation free and constant time, so they are
safe to call from the audio callback.

Ring buffers sized with NextPowerOfTwo can wrap their cursor with a mask
instead of a modulo:

	size := bitint.NextPowerOfTwo(3000) // 4096
	mask := size - 1
	pos = (pos + 1) & mask

The (n-1) in NextPowerOfTwo keeps exact powers of two unchanged: for n = 8,
bits.Len(7) = 3 and 1<<3 = 8, whereas bits.Len(8) = 4 would double it.
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= n. Values <= 0 return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(n int) int {
	if n <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// IsPowerOfTwo reports whether n is a positive power of two. A power of two
// has exactly one bit set, so n&(n-1) clears it to zero.
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// Log2 returns the exponent of a power of two (the FFT order), or -1 when n
// is not a power of two.
func Log2(n int) int {
	if !IsPowerOfTwo(n) {
		return -1
	}
	return bits.TrailingZeros(uint(n))
}
