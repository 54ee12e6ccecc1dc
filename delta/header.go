// Package delta decodes JEOL Delta (.jdf) spectrometer files: a
// 1360-byte header, a typed parameter section, and tiled submatrix data.
package delta

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"strings"
)

// ErrBadMagic marks input that does not start with the Delta file
// signature.
var ErrBadMagic = errors.New("delta: bad file signature")

// ErrUnsupportedAxisCount marks data sets with more dimensions than the
// canonical format carries.
var ErrUnsupportedAxisCount = errors.New("delta: unsupported axis count")

// ErrTruncatedData marks a data section shorter than the geometry the
// header declares.
var ErrTruncatedData = errors.New("delta: truncated data section")

// Magic is the 8-byte file signature.
const Magic = "JEOL.NMR"

// HeaderSize is the fixed header length in bytes.
const HeaderSize = 1360

// maxDim is the number of axis slots the header reserves.
const maxDim = 8

// Data type codes (top two bits of the type byte).
const (
	DataTypeDouble = 0
	DataTypeFloat  = 1
)

// Data format codes (bottom six bits of the type byte).
const (
	Format1D      = 1
	Format2D      = 2
	Format3D      = 3
	Format4D      = 4
	Format5D      = 5
	Format6D      = 6
	Format7D      = 7
	Format8D      = 8
	FormatSmall2D = 12
	FormatSmall3D = 13
	FormatSmall4D = 14
)

// Axis type codes.
const (
	AxisNone        = 0
	AxisReal        = 1
	AxisTPPI        = 2
	AxisComplex     = 3
	AxisRealComplex = 4
	AxisEnvelope    = 5
)

// Endian byte values.
const (
	endianBig    = 0
	endianLittle = 1
)

// SI unit codes.
const (
	unitNone    = 0
	unitCelsius = 4
	unitHz      = 13
	unitPPM     = 26
	unitSeconds = 28
)

// Unit is a decoded SI unit triplet: base unit, exponent and decimal
// scale prefix.
type Unit struct {
	Type  int
	Exp   int
	Scale int
}

// scaleFactor converts the packed decimal prefix to a multiplier.
// Negative codes are the large prefixes (kilo .. yotta), positive ones
// the small (milli .. zepto).
func (u Unit) scaleFactor() float64 {
	if u.Scale == 0 {
		return 1
	}
	return math.Pow(10, float64(-3*u.Scale))
}

// ApplyScale converts a raw header value to base units.
func (u Unit) ApplyScale(v float64) float64 {
	out := v * u.scaleFactor()
	if u.Exp != 0 && u.Exp != 1 {
		out = math.Pow(out, float64(u.Exp))
	}
	return out
}

// Header is a parsed Delta file header.
type Header struct {
	FileID      string
	EndianMode  int
	DimCount    int
	DataType    int
	DataFormat  int
	AxisType    [maxDim]int
	Units       [maxDim]Unit
	Title       string
	SizeList    [maxDim]int
	OffsetStart [maxDim]int
	OffsetStop  [maxDim]int
	AxisStart   [maxDim]float64
	AxisStop    [maxDim]float64
	AxisTitles  [maxDim]string
	BaseFreq    [maxDim]float64
	ZeroPoint   [maxDim]float64
	Reversed    [maxDim]bool
	ParamStart  int
	ParamLength int
	DataStart   int
	DataLength  int64
}

// byteOrder picks the integer decoder matching the header's endian byte.
func (h *Header) byteOrder() binary.ByteOrder {
	if h.EndianMode == endianLittle {
		return binary.LittleEndian
	}
	return binary.BigEndian
}

// NeedsDataSwap reports whether the data section bytes must be swapped
// on a little-endian host.
func (h *Header) NeedsDataSwap() bool {
	return h.EndianMode == endianBig
}

// ParseHeader decodes the fixed 1360-byte header. The signature and
// endian byte are position-independent; all multi-byte fields follow the
// declared byte order.
func ParseHeader(buf []byte) (*Header, error) {
	if len(buf) < HeaderSize {
		return nil, fmt.Errorf("%w: %d bytes, need %d", ErrBadMagic, len(buf), HeaderSize)
	}
	if string(buf[:8]) != Magic {
		return nil, fmt.Errorf("%w: %q", ErrBadMagic, string(buf[:8]))
	}

	h := &Header{
		FileID:     Magic,
		EndianMode: int(buf[8]),
		DimCount:   int(buf[12]),
		DataType:   int(buf[14] >> 6),
		DataFormat: int(buf[14] & 0x3F),
	}
	bo := h.byteOrder()

	for i := 0; i < maxDim; i++ {
		h.AxisType[i] = int(buf[24+i])
		h.Units[i] = parseUnit(buf[32+2*i : 34+2*i])
	}
	h.Title = readText(buf[48 : 48+124])

	for i := 0; i < maxDim; i++ {
		h.SizeList[i] = int(bo.Uint32(buf[176+4*i:]))
		h.OffsetStart[i] = int(bo.Uint32(buf[208+4*i:]))
		h.OffsetStop[i] = int(bo.Uint32(buf[240+4*i:]))
		h.AxisStart[i] = math.Float64frombits(bo.Uint64(buf[272+8*i:]))
		h.AxisStop[i] = math.Float64frombits(bo.Uint64(buf[336+8*i:]))
		h.AxisTitles[i] = readText(buf[808+32*i : 808+32*(i+1)])
		h.BaseFreq[i] = math.Float64frombits(bo.Uint64(buf[1064+8*i:]))
		h.ZeroPoint[i] = math.Float64frombits(bo.Uint64(buf[1128+8*i:]))
		h.Reversed[i] = (buf[1192]>>(7-i))&1 != 0
	}

	h.ParamStart = int(bo.Uint32(buf[1212:]))
	h.ParamLength = int(bo.Uint32(buf[1216:]))
	h.DataStart = int(bo.Uint32(buf[1284:]))
	h.DataLength = int64(bo.Uint64(buf[1288:]))
	return h, nil
}

// parseUnit decodes a 2-byte packed SI unit: nibble-packed exponent and
// scale prefix, then the base unit code.
func parseUnit(b []byte) Unit {
	exp := int(b[0] & 0x0F)
	if exp > 7 {
		exp -= 16
	}
	scale := int((b[0] >> 4) & 0x0F)
	if scale > 7 {
		scale -= 16
	}
	return Unit{Type: int(b[1]), Exp: exp, Scale: scale}
}

func readText(b []byte) string {
	if i := strings.IndexByte(string(b), 0); i >= 0 {
		b = b[:i]
	}
	return strings.TrimSpace(string(b))
}

// IsQuad reports whether the axis carries quadrature (complex) data.
// The direct axis is also complex in real-complex acquisition mode.
func (h *Header) IsQuad(dim int) bool {
	t := h.AxisType[dim]
	return t == AxisComplex || t == AxisEnvelope ||
		(dim == 0 && t == AxisRealComplex)
}

// IsTimeDomain reports whether the axis is calibrated in time units.
func (h *Header) IsTimeDomain(dim int) bool {
	u := h.Units[dim]
	if u.Type == unitSeconds {
		return u.Exp == 0 || u.Exp == 1
	}
	if (u.Type == unitHz || u.Type == unitPPM) && u.Exp == -1 {
		return true
	}
	return false
}

// IsPPM reports whether the axis is calibrated in chemical shift.
func (h *Header) IsPPM(dim int) bool {
	u := h.Units[dim]
	return u.Type == unitPPM && (u.Exp == 0 || u.Exp == 1)
}

// IsHz reports whether the axis is calibrated in frequency.
func (h *Header) IsHz(dim int) bool {
	u := h.Units[dim]
	if u.Type == unitHz && (u.Exp == 0 || u.Exp == 1) {
		return true
	}
	return u.Type == unitSeconds && u.Exp == -1
}

// TileEdges returns the submatrix tile edge length per dimension, fixed
// by the data format code.
func (h *Header) TileEdges() []int {
	edge := 1
	switch h.DataFormat {
	case Format1D:
		edge = 8
	case Format2D:
		edge = 32
	case Format3D, Format4D:
		edge = 8
	case Format5D, Format6D:
		edge = 4
	case Format7D, Format8D:
		edge = 2
	case FormatSmall2D, FormatSmall3D, FormatSmall4D:
		edge = 4
	}
	edges := make([]int, h.DimCount)
	for i := range edges {
		edges[i] = edge
	}
	return edges
}

// WordSize returns the byte width of one stored data value.
func (h *Header) WordSize() int {
	if h.DataType == DataTypeDouble {
		return 8
	}
	return 4
}

// Aq2DMode maps the axis types to the canonical 2D phase mode code.
func (h *Header) Aq2DMode() int {
	if h.DimCount < 2 {
		return 0
	}
	switch {
	case h.IsQuad(0) && h.IsQuad(1):
		return 3 // States
	case h.AxisType[1] == AxisTPPI:
		return 1 // TPPI
	case h.AxisType[0] == AxisRealComplex:
		return 0 // magnitude
	default:
		return 4 // real
	}
}
