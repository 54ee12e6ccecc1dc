package binio

import (
	"encoding/binary"
	"fmt"
	"math"
)

// IntToFloat32 decodes big-endian signed integers of the given byte
// width (1, 2, 3, 4 or 8) into float32 values, multiplied by scale.
// Width 3 is the 24-bit case used by older spectrometer hardware and is
// sign-extended. Width 8 reads IEEE doubles rather than integers.
func IntToFloat32(raw []byte, width int, scale float64) ([]float32, error) {
	switch width {
	case 1, 2, 3, 4, 8:
	default:
		return nil, fmt.Errorf("binio: unsupported word width %d", width)
	}
	if len(raw)%width != 0 {
		return nil, fmt.Errorf("binio: %d bytes is not a multiple of width %d", len(raw), width)
	}
	out := make([]float32, len(raw)/width)
	for i := range out {
		w := raw[i*width : (i+1)*width]
		var v float64
		switch width {
		case 1:
			v = float64(int8(w[0]))
		case 2:
			v = float64(int16(binary.BigEndian.Uint16(w)))
		case 3:
			// Pack into the upper three bytes of an int32 and shift back
			// down so the sign extends.
			u := uint32(w[0])<<24 | uint32(w[1])<<16 | uint32(w[2])<<8
			v = float64(int32(u) / 256)
		case 4:
			v = float64(int32(binary.BigEndian.Uint32(w)))
		case 8:
			v = math.Float64frombits(binary.BigEndian.Uint64(w))
		}
		out[i] = float32(v * scale)
	}
	return out, nil
}
