package bruker

import (
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestWord4(t *testing.T) {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], uint32(0xFFFFFFFE)) // -2
	assert.Equal(t, float32(-2), word4(b[:], true, true))

	binary.LittleEndian.PutUint32(b[:], 1000)
	assert.Equal(t, float32(1000), word4(b[:], false, true))

	binary.BigEndian.PutUint32(b[:], math.Float32bits(1.5))
	assert.Equal(t, float32(1.5), word4(b[:], true, false))
}

func TestWord3SignExtension(t *testing.T) {
	// 0xFFFFFF is -1 in 24-bit two's complement.
	assert.Equal(t, float32(-1), word3([]byte{0xFF, 0xFF, 0xFF}, true))
	assert.Equal(t, float32(5), word3([]byte{0x00, 0x00, 0x05}, true))
	assert.Equal(t, float32(-8388608), word3([]byte{0x80, 0x00, 0x00}, true))

	// Little-endian disk order.
	assert.Equal(t, float32(5), word3([]byte{0x05, 0x00, 0x00}, false))
	assert.Equal(t, float32(-1), word3([]byte{0xFF, 0xFF, 0xFF}, false))
}

func TestWord8(t *testing.T) {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], math.Float64bits(2.25))
	assert.Equal(t, float32(2.25), word8(b[:], true, false))

	binary.BigEndian.PutUint64(b[:], uint64(0xFFFFFFFFFFFFFFFF))
	assert.Equal(t, float32(-1), word8(b[:], true, true))
}

func TestSerRowComplexSplit(t *testing.T) {
	// Alternating real/imaginary words split into separate blocks.
	raw := make([]byte, 4*2*4)
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(raw[i*8:], uint32(i+1))    // real
		binary.BigEndian.PutUint32(raw[i*8+4:], uint32(10*i)) // imag
	}
	r := make([]float32, 4)
	q := make([]float32, 4)
	serRow(raw, r, q, 4, 4, true, true)
	assert.Equal(t, []float32{1, 2, 3, 4}, r)
	assert.Equal(t, []float32{0, 10, 20, 30}, q)
}

func TestBadClip(t *testing.T) {
	data := []float32{100, -9_000_000, 50, 8_000_001, -100}
	n := badClip(data, 8_000_000)
	assert.Equal(t, 2, n)
	assert.Equal(t, []float32{100, 0, 50, 0, -100}, data)

	// Threshold 0 disables clipping.
	data = []float32{1e9}
	assert.Equal(t, 0, badClip(data, 0))
	assert.Equal(t, float32(1e9), data[0])
}

func TestExtractValid(t *testing.T) {
	// Three rows of four points compact to three points each.
	data := []float32{
		1, 2, 3, 4,
		5, 6, 7, 8,
		9, 10, 11, 12,
	}
	extractValid(data, 4, 3, 3)
	assert.Equal(t, []float32{1, 2, 3, 5, 6, 7, 9, 10, 11}, data[:9])
}
