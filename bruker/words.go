// Package bruker decodes Bruker SER/FID binary acquisition data:
// big-endian integer words of width 3, 4 or 8 bytes, optionally followed
// by digital-filter (DMX) group delay removal.
package bruker

import (
	"encoding/binary"
	"math"
)

// word4 decodes one 4-byte word. swap selects big-endian disk order;
// i2f interprets the word as a signed integer instead of a float.
func word4(b []byte, swap, i2f bool) float32 {
	var u uint32
	if swap {
		u = binary.BigEndian.Uint32(b)
	} else {
		u = binary.LittleEndian.Uint32(b)
	}
	if i2f {
		return float32(int32(u))
	}
	return math.Float32frombits(u)
}

// word8 decodes one 8-byte word as int64 or double.
func word8(b []byte, swap, i2f bool) float32 {
	var u uint64
	if swap {
		u = binary.BigEndian.Uint64(b)
	} else {
		u = binary.LittleEndian.Uint64(b)
	}
	if i2f {
		return float32(int64(u))
	}
	return float32(math.Float64frombits(u))
}

// word3 decodes a 24-bit signed integer: the three bytes are packed into
// the upper bytes of an int32 and shifted back down so the sign extends.
func word3(b []byte, swap bool) float32 {
	var v int32
	if swap {
		v = int32(uint32(b[0])<<24|uint32(b[1])<<16|uint32(b[2])<<8) / 256
	} else {
		v = int32(uint32(b[2])<<24|uint32(b[1])<<16|uint32(b[0])<<8) / 256
	}
	return float32(v)
}

func wordAt(b []byte, wordSize int, swap, i2f bool) float32 {
	switch wordSize {
	case 3:
		return word3(b, swap)
	case 8:
		return word8(b, swap, i2f)
	default:
		return word4(b, swap, i2f)
	}
}

// serRow decodes one acquisition row. For complex rows the input
// alternates real and imaginary words; the output separates them into
// rdata followed by idata. Real rows leave idata nil.
func serRow(bdata []byte, rdata, idata []float32, xSize, wordSize int, swap, i2f bool) {
	if idata != nil {
		for i := 0; i < xSize; i++ {
			off := i * 2 * wordSize
			if off+2*wordSize > len(bdata) {
				break
			}
			rdata[i] = wordAt(bdata[off:], wordSize, swap, i2f)
			idata[i] = wordAt(bdata[off+wordSize:], wordSize, swap, i2f)
		}
		return
	}
	for i := 0; i < xSize; i++ {
		off := i * wordSize
		if off+wordSize > len(bdata) {
			break
		}
		rdata[i] = wordAt(bdata[off:], wordSize, swap, i2f)
	}
}

// badClip zeroes points whose magnitude exceeds thresh and returns the
// number of clipped points. Corrupt acquisition words otherwise dominate
// the dynamic range.
func badClip(data []float32, thresh float32) int {
	if thresh <= 0 {
		return 0
	}
	n := 0
	for i, v := range data {
		if v > thresh || v < -thresh {
			data[i] = 0
			n++
		}
	}
	return n
}

// extractValid compacts each row of the matrix from xSize to extSize
// points, dropping the filter ringdown tail.
func extractValid(data []float32, xSize, extSize, rows int) {
	if extSize >= xSize {
		return
	}
	dest := 0
	for row := 0; row < rows; row++ {
		src := row * xSize
		copy(data[dest:dest+extSize], data[src:src+extSize])
		dest += extSize
	}
}
