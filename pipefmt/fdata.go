// Package pipefmt implements the canonical spectrometer-independent file
// format: a 512-word float32 header followed by float32 data planes.
package pipefmt

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
)

// HeaderWords is the number of float32 words in a header.
const HeaderWords = 512

// HeaderBytes is the encoded header size.
const HeaderBytes = HeaderWords * 4

// Direct header word offsets.
const (
	FDMagic       = 0
	FDFltFormat   = 1
	FDFltOrder    = 2
	FDDimCount    = 9
	FDDimOrder    = 24 // 4 words, 24..27
	FDDmxVal      = 40
	FDDmxFlag     = 41
	FDDeltaTR     = 42
	FDPipeFlag    = 57
	FDRealSize    = 97
	FDSize        = 99
	FDQuadFlag    = 106
	FDTemperature = 157
	FDSpecNum     = 219
	FDMax         = 247
	FDMin         = 248
	FDScaleFlag   = 250
	FD2DPhase     = 256
	FD2DVirgin    = 399
	FDFileCount   = 442
	FDSrcName     = 286 // 16 bytes
	FDUserName    = 290 // 16 bytes
	FDTitle       = 297 // 60 bytes
	FDComment     = 312 // 160 bytes
)

// Generalized per-dimension parameter codes. Resolve to a direct word
// offset through the dimension-order permutation.
const (
	NDParm     = 1000
	NDSize     = 1001
	NDApod     = 1002
	NDSw       = 1003
	NDOrig     = 1004
	NDObs      = 1005
	NDFtFlag   = 1006
	NDQuadFlag = 1007
	NDLabel    = 1009
	NDP0       = 1011
	NDP1       = 1012
	NDCar      = 1013
	NDCenter   = 1014
	NDTDSize   = 1026
)

// Quadrature flag values.
const (
	QuadComplex = 0
	QuadReal    = 1
)

// fltOrderValue marks the byte order of the producing host; a reader that
// sees a mangled value swaps the whole file.
const fltOrderValue = float32(2.345)

// fltFormatValue marks IEEE-754 float data.
var fltFormatValue = math.Float32frombits(0xEEEEEEEE)

// ByteOrder reports how an incoming header was stored relative to the
// decoder's own layout.
type ByteOrder int

const (
	OrderNative ByteOrder = iota
	OrderSwapped
)

var (
	// ErrInvalidHeader marks structurally unusable header bytes.
	ErrInvalidHeader = errors.New("pipefmt: invalid header")
	// ErrBadParameterType marks numeric access to a text slot or the
	// reverse.
	ErrBadParameterType = errors.New("pipefmt: bad parameter type")
)

// ndOffsets maps a generalized code to its direct word offset per
// physical dimension (index 0 = physical dim 1).
var ndOffsets = map[int][4]int{
	NDSize:     {219, 99, 15, 32},
	NDApod:     {428, 95, 50, 53},
	NDSw:       {229, 100, 11, 29},
	NDOrig:     {249, 101, 12, 30},
	NDObs:      {218, 119, 10, 28},
	NDFtFlag:   {222, 220, 13, 31},
	NDQuadFlag: {55, 56, 51, 54},
	NDLabel:    {18, 16, 20, 22},
	NDP0:       {245, 109, 60, 62},
	NDP1:       {246, 110, 61, 63},
	NDCar:      {67, 66, 68, 69},
	NDCenter:   {80, 79, 81, 82},
	NDTDSize:   {387, 386, 388, 389},
}

// textSlots maps word offsets that hold packed text to their byte
// capacity. Numeric access to these offsets is rejected.
var textSlots = map[int]int{
	16: 8, 18: 8, 20: 8, 22: 8, // axis labels
	FDSrcName:  16,
	FDUserName: 16,
	FDTitle:    60,
	FDComment:  160,
}

// Fdata is a parsed canonical-format header.
type Fdata struct {
	words [HeaderWords]float32
}

// NewFdata returns a header with the format markers and default
// dimension order already set.
func NewFdata() *Fdata {
	f := &Fdata{}
	f.words[FDFltFormat] = fltFormatValue
	f.words[FDFltOrder] = fltOrderValue
	f.words[FDDimCount] = 1
	f.words[FDDimOrder] = 2
	f.words[FDDimOrder+1] = 1
	f.words[FDDimOrder+2] = 3
	f.words[FDDimOrder+3] = 4
	return f
}

// ParseHeader decodes 2048 header bytes, detecting byte order from the
// order marker word.
func ParseHeader(b []byte) (*Fdata, ByteOrder, error) {
	if len(b) < HeaderBytes {
		return nil, OrderNative, fmt.Errorf("%w: %d bytes, need %d", ErrInvalidHeader, len(b), HeaderBytes)
	}
	f := &Fdata{}
	for i := range f.words {
		f.words[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[4*i:]))
	}
	if orderMatches(f.words[FDFltOrder]) {
		f.fixup()
		return f, OrderNative, nil
	}
	for i := range f.words {
		f.words[i] = math.Float32frombits(binary.BigEndian.Uint32(b[4*i:]))
	}
	if orderMatches(f.words[FDFltOrder]) {
		f.fixup()
		return f, OrderSwapped, nil
	}
	return nil, OrderNative, fmt.Errorf("%w: byte-order marker not found at word %d", ErrInvalidHeader, FDFltOrder)
}

func orderMatches(v float32) bool {
	return math.Abs(float64(v)-float64(fltOrderValue)) < 1e-4
}

// fixup repairs headers written by older tools: missing format markers
// and a zeroed dimension order.
func (f *Fdata) fixup() {
	f.words[FDFltFormat] = fltFormatValue
	f.words[FDFltOrder] = fltOrderValue
	if f.words[FDDimOrder] == 0 {
		f.words[FDDimOrder] = 2
		f.words[FDDimOrder+1] = 1
		f.words[FDDimOrder+2] = 3
		f.words[FDDimOrder+3] = 4
	}
	if f.words[FDDimCount] < 1 {
		f.words[FDDimCount] = 1
	}
}

// Bytes encodes the header in the producing host's little-endian layout.
func (f *Fdata) Bytes() []byte {
	b := make([]byte, HeaderBytes)
	for i, w := range f.words {
		binary.LittleEndian.PutUint32(b[4*i:], math.Float32bits(w))
	}
	return b
}

// DimCount returns the declared number of dimensions.
func (f *Fdata) DimCount() int {
	return int(f.words[FDDimCount])
}

// Get reads a header word by direct offset.
func (f *Fdata) Get(off int) float32 {
	return f.words[off]
}

// Set writes a header word by direct offset.
func (f *Fdata) Set(off int, v float32) {
	f.words[off] = v
}

// SetMinMax records the data extremes and marks them valid.
func (f *Fdata) SetMinMax(min, max float32) {
	f.words[FDMin] = min
	f.words[FDMax] = max
	f.words[FDScaleFlag] = 1
}

// loc resolves a parameter code and dimension (1-based) to a direct word
// offset. Codes below NDParm are direct offsets already.
func (f *Fdata) loc(code, dim int) (int, error) {
	if code < NDParm {
		if code < 0 || code >= HeaderWords {
			return 0, fmt.Errorf("%w: offset %d out of range", ErrInvalidHeader, code)
		}
		return code, nil
	}
	offs, ok := ndOffsets[code]
	if !ok {
		return 0, fmt.Errorf("%w: unknown parameter code %d", ErrInvalidHeader, code)
	}
	if dim < 1 || dim > 4 {
		return 0, fmt.Errorf("%w: dimension %d out of range", ErrInvalidHeader, dim)
	}
	phys := int(f.words[FDDimOrder+dim-1])
	if phys < 1 || phys > 4 {
		return 0, fmt.Errorf("%w: dimension order entry %d invalid", ErrInvalidHeader, phys)
	}
	return offs[phys-1], nil
}

// GetParm reads a numeric parameter. dim is 1-based and ignored for
// direct offsets.
func (f *Fdata) GetParm(code, dim int) (float32, error) {
	off, err := f.loc(code, dim)
	if err != nil {
		return 0, err
	}
	if _, isText := textSlots[off]; isText {
		return 0, fmt.Errorf("%w: word %d holds text", ErrBadParameterType, off)
	}
	return f.words[off], nil
}

// SetParm writes a numeric parameter.
func (f *Fdata) SetParm(code, dim int, v float32) error {
	off, err := f.loc(code, dim)
	if err != nil {
		return err
	}
	if _, isText := textSlots[off]; isText {
		return fmt.Errorf("%w: word %d holds text", ErrBadParameterType, off)
	}
	f.words[off] = v
	return nil
}

// GetInt reads a numeric parameter truncated to int.
func (f *Fdata) GetInt(code, dim int) (int, error) {
	v, err := f.GetParm(code, dim)
	if err != nil {
		return 0, err
	}
	return int(v), nil
}

// GetText reads a packed text parameter, stopping at the first NUL.
func (f *Fdata) GetText(code, dim int) (string, error) {
	off, err := f.loc(code, dim)
	if err != nil {
		return "", err
	}
	size, ok := textSlots[off]
	if !ok {
		return "", fmt.Errorf("%w: word %d is numeric", ErrBadParameterType, off)
	}
	return fltToTxt(f.words[off:off+(size+3)/4], size), nil
}

// SetText writes a packed text parameter, truncating to the slot's byte
// capacity.
func (f *Fdata) SetText(code, dim int, s string) error {
	off, err := f.loc(code, dim)
	if err != nil {
		return err
	}
	size, ok := textSlots[off]
	if !ok {
		return fmt.Errorf("%w: word %d is numeric", ErrBadParameterType, off)
	}
	txtToFlt(f.words[off:off+(size+3)/4], s, size)
	return nil
}

// fltToTxt unpacks NUL-terminated text stored four bytes per word.
func fltToTxt(words []float32, size int) string {
	buf := make([]byte, 0, size)
	for i := 0; i < size; i++ {
		w := math.Float32bits(words[i/4])
		c := byte(w >> (8 * (i % 4)))
		if c == 0 {
			break
		}
		buf = append(buf, c)
	}
	return string(buf)
}

// txtToFlt packs text four bytes per word, zero padded.
func txtToFlt(words []float32, s string, size int) {
	raw := make([]byte, len(words)*4)
	n := min(len(s), size-1)
	copy(raw, s[:n])
	for i := range words {
		words[i] = math.Float32frombits(binary.LittleEndian.Uint32(raw[4*i:]))
	}
}

// Validate checks the structural invariants of the header.
func (f *Fdata) Validate() error {
	if !orderMatches(f.words[FDFltOrder]) {
		return fmt.Errorf("%w: byte-order marker %v", ErrInvalidHeader, f.words[FDFltOrder])
	}
	dims := f.DimCount()
	if dims < 1 || dims > 4 {
		return fmt.Errorf("%w: dimension count %d", ErrInvalidHeader, dims)
	}
	seen := [5]bool{}
	for d := 1; d <= 4; d++ {
		phys := int(f.words[FDDimOrder+d-1])
		if phys < 1 || phys > 4 || seen[phys] {
			return fmt.Errorf("%w: dimension order is not a permutation", ErrInvalidHeader)
		}
		seen[phys] = true
	}
	for d := 1; d <= dims; d++ {
		size, err := f.GetInt(NDSize, d)
		if err != nil {
			return err
		}
		if size < 1 {
			return fmt.Errorf("%w: dimension %d size %d", ErrInvalidHeader, d, size)
		}
	}
	return nil
}

// PlanePoints returns the number of float32 values in one stored data
// plane (direct size x indirect size).
func (f *Fdata) PlanePoints() int {
	xn := int(f.words[FDSize])
	yn := int(f.words[FDSpecNum])
	if xn < 1 {
		xn = 1
	}
	if yn < 1 {
		yn = 1
	}
	if int(f.words[FDQuadFlag]) == QuadComplex {
		xn *= 2
	}
	return xn * yn
}

// NextPow2 returns the smallest power of two that is >= n.
func NextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
