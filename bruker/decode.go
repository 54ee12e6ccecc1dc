package bruker

import (
	"errors"
	"fmt"
	"io"

	"github.com/spinworks/nmrconv/binio"
	"github.com/spinworks/nmrconv/logging"
	"github.com/spinworks/nmrconv/pipefmt"
	"github.com/spinworks/nmrconv/spectrum"
)

// Instrument identifies the Bruker console family.
type Instrument int

const (
	// AMX is the standard 4-byte integer format.
	AMX Instrument = iota
	// DMX is 4-byte integer data with digital oversampling; decoding
	// removes the filter group delay.
	DMX
	// AM is the older 3-byte integer format.
	AM
)

// Acquisition mode codes (AQ_MOD).
const (
	AqModQF   = 0
	AqModQSIM = 1
	AqModQSEQ = 2
	AqModDQD  = 3
)

// ErrConfig marks an unusable option combination.
var ErrConfig = errors.New("bruker: invalid configuration")

// Options mirrors the conversion flags of the classic command-line
// tool. Axes must be populated by the caller from the acquisition
// parameter files; this package only consumes the binary data.
type Options struct {
	Instrument Instrument             `json:"instrument"`
	Axes       []spectrum.AxisParams  `json:"axes"`
	// Swap selects big-endian disk order, the native order of the
	// acquisition hardware.
	Swap bool `json:"swap"`
	// I2F interprets words as integers rather than floats.
	I2F bool `json:"i2f"`
	// WordSize is the input word width in bytes (4 for AMX/DMX, 3 for
	// AM, 8 for double data).
	WordSize int `json:"word_size"`
	// ByteOffset skips leading bytes of the input.
	ByteOffset int `json:"byte_offset"`
	// BadThresh clips points above this magnitude to zero (0 disables).
	BadThresh float32 `json:"bad_thresh"`
	// ValidSize is the number of valid direct-axis points before the
	// filter ringdown (0 = all points).
	ValidSize int `json:"valid_size"`
	// ExtFlag compacts each row to ValidSize points.
	ExtFlag bool `json:"ext_flag"`
	// Digital-filter parameters from the acquisition files.
	Decim    int     `json:"decim"`
	Dspfvs   int     `json:"dspfvs"`
	GrpDly   float64 `json:"grpdly"`
	AqMod    int     `json:"aq_mod"`
	SkipSize int     `json:"skip_size"`
}

// DefaultOptions returns the classic tool defaults.
func DefaultOptions() *Options {
	return &Options{
		Instrument: AMX,
		Swap:       true,
		I2F:        true,
		WordSize:   4,
		BadThresh:  8_000_000,
		Dspfvs:     10,
		AqMod:      AqModQSIM,
		SkipSize:   4,
	}
}

// Decode converts a SER/FID stream into a canonical header and
// spectrum. The direct axis of the returned spectrum stores complex
// points as interleaved real, imaginary pairs.
func Decode(r io.Reader, opts *Options) (*pipefmt.Fdata, *spectrum.SpectrumData, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	if len(opts.Axes) == 0 {
		return nil, nil, fmt.Errorf("%w: no axis parameters", ErrConfig)
	}
	if len(opts.Axes) > 4 {
		return nil, nil, fmt.Errorf("%w: %d axes, at most 4 supported", ErrConfig, len(opts.Axes))
	}
	logger := logging.WithFields(logging.Fields{
		"component": "bruker",
		"function":  "Decode",
	})

	wordSize := opts.WordSize
	if opts.Instrument == AM {
		wordSize = 3
	}
	switch wordSize {
	case 3, 4, 8:
	default:
		return nil, nil, fmt.Errorf("%w: word size %d", ErrConfig, wordSize)
	}

	direct := opts.Axes[0]
	xSize := direct.Points
	if xSize < 1 {
		return nil, nil, fmt.Errorf("%w: direct axis has %d points", ErrConfig, xSize)
	}
	rows := 1
	for _, ax := range opts.Axes[1:] {
		rows *= ax.StoredPoints()
	}

	extSize := opts.ValidSize
	if extSize <= 0 || extSize > xSize {
		extSize = xSize
	}

	// DMX data must be complex; the group delay lives in the quadrature
	// pair.
	var corr *binio.DFCorrector
	dmxVal := 0.0
	if opts.Instrument == DMX {
		if !direct.Complex {
			return nil, nil, fmt.Errorf("%w: digital-filter correction needs complex data", ErrConfig)
		}
		g, err := binio.GroupDelay(opts.Decim, opts.Dspfvs, opts.GrpDly)
		if err != nil {
			return nil, nil, err
		}
		maxOut := 0
		if extSize < xSize {
			maxOut = extSize
		}
		corr = binio.NewDFCorrector(xSize, g, opts.SkipSize, maxOut)
		extSize = corr.OutSize()
	} else if opts.Decim > 0 {
		// Delay known but not removed: record it for downstream tools.
		if g, err := binio.GroupDelay(opts.Decim, opts.Dspfvs, opts.GrpDly); err == nil {
			dmxVal = g
		}
	}

	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("bruker: read input: %w", err)
	}
	if opts.ByteOffset > 0 && opts.ByteOffset < len(raw) {
		raw = raw[opts.ByteOffset:]
	}

	quadState := 1
	if direct.Complex {
		quadState = 2
	}
	bytesPerRow := wordSize * xSize * quadState
	outX := xSize
	if (opts.ExtFlag || opts.Instrument == DMX) && extSize < xSize {
		outX = extSize
	}

	out := make([]float32, outX*quadState*rows)
	rowBuf := make([]float32, xSize*quadState)
	clipped := 0
	off := 0
	for row := 0; row < rows; row++ {
		for i := range rowBuf {
			rowBuf[i] = 0
		}
		if off+bytesPerRow <= len(raw) {
			chunk := raw[off : off+bytesPerRow]
			if quadState == 2 {
				serRow(chunk, rowBuf[:xSize], rowBuf[xSize:], xSize, wordSize, opts.Swap, opts.I2F)
			} else {
				serRow(chunk, rowBuf, nil, xSize, wordSize, opts.Swap, opts.I2F)
			}
			clipped += badClip(rowBuf, opts.BadThresh)
		}
		off += bytesPerRow

		if corr != nil {
			corr.Correct(rowBuf[:xSize], rowBuf[xSize:])
		}
		if outX < xSize {
			extractValid(rowBuf, xSize, outX, quadState)
		}
		copy(out[row*outX*quadState:], rowBuf[:outX*quadState])
	}
	if clipped > 0 {
		logger.Warn("clipped out-of-range points", logging.Fields{
			"count":  clipped,
			"thresh": opts.BadThresh,
		})
	}

	axes := append([]spectrum.AxisParams(nil), opts.Axes...)
	axes[0].Points = outX
	fd := buildHeader(opts, axes, xSize, extSize, dmxVal)

	spec := &spectrum.SpectrumData{
		Axes:       axes,
		FreqDomain: !axes[0].TimeDomain,
		Data:       blockToInterleaved(out, outX, axes[0].Complex),
	}
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}
	mn, mx := spec.MinMax()
	fd.SetMinMax(mn, mx)

	logger.Info("decoded serial data", logging.Fields{
		"points":     outX,
		"rows":       rows,
		"word_size":  wordSize,
		"instrument": opts.Instrument,
	})
	return fd, spec, nil
}

// buildHeader fills the canonical header from the caller-supplied axis
// parameters, deriving centers and origins the way the classic tool
// does.
func buildHeader(opts *Options, axes []spectrum.AxisParams, rawX, extSize int, dmxVal float64) *pipefmt.Fdata {
	fd := pipefmt.NewFdata()
	dims := len(axes)
	fd.Set(pipefmt.FDDimCount, float32(dims))

	if axes[0].Complex {
		fd.Set(pipefmt.FDQuadFlag, pipefmt.QuadComplex)
	} else {
		fd.Set(pipefmt.FDQuadFlag, pipefmt.QuadReal)
	}
	if dims > 2 {
		fd.Set(pipefmt.FDPipeFlag, 1)
		fd.Set(pipefmt.FDFileCount, 1)
	} else {
		fd.Set(pipefmt.FDPipeFlag, 0)
		fd.Set(pipefmt.FDFileCount, 1)
	}
	if dmxVal > 0 {
		fd.Set(pipefmt.FDDmxVal, float32(dmxVal))
		fd.Set(pipefmt.FDDmxFlag, 0)
	}

	for d := 1; d <= dims; d++ {
		ax := axes[d-1]
		freqSize := ax.Points
		if d > 1 {
			freqSize = ax.StoredPoints() / 2
			if freqSize == 0 {
				freqSize = 1
			}
		} else if !ax.Complex {
			freqSize = ax.Points / 2
			if freqSize == 0 {
				freqSize = 1
			}
		}
		mid := 1 + freqSize/2
		orig := ax.ObsFreq*ax.Carrier - ax.SweepWidth*float64(freqSize-mid)/float64(freqSize)
		axes[d-1].Origin = orig

		size := float32(ax.Points)
		if d > 1 {
			size = float32(ax.StoredPoints())
		}
		qf := float32(pipefmt.QuadReal)
		if ax.Complex {
			qf = pipefmt.QuadComplex
		}
		ft := float32(0)
		if !ax.TimeDomain {
			ft = 1
		}
		_ = fd.SetParm(pipefmt.NDSize, d, size)
		_ = fd.SetParm(pipefmt.NDQuadFlag, d, qf)
		_ = fd.SetParm(pipefmt.NDFtFlag, d, ft)
		_ = fd.SetParm(pipefmt.NDSw, d, float32(ax.SweepWidth))
		_ = fd.SetParm(pipefmt.NDObs, d, float32(ax.ObsFreq))
		_ = fd.SetParm(pipefmt.NDCar, d, float32(ax.Carrier))
		_ = fd.SetParm(pipefmt.NDCenter, d, float32(mid))
		_ = fd.SetParm(pipefmt.NDOrig, d, float32(orig))
		if ax.Label != "" {
			_ = fd.SetText(pipefmt.NDLabel, d, ax.Label)
		}
		if d == 1 {
			_ = fd.SetParm(pipefmt.NDApod, d, float32(extSize))
			_ = fd.SetParm(pipefmt.NDTDSize, d, float32(extSize))
			fd.Set(pipefmt.FDRealSize, float32(extSize))
		} else {
			_ = fd.SetParm(pipefmt.NDApod, d, float32(ax.Points))
			_ = fd.SetParm(pipefmt.NDTDSize, d, float32(ax.Points))
		}
	}
	for d := dims + 1; d <= 4; d++ {
		_ = fd.SetParm(pipefmt.NDSize, d, 1)
		_ = fd.SetParm(pipefmt.NDQuadFlag, d, pipefmt.QuadReal)
	}
	return fd
}

// blockToInterleaved converts [R0..Rn I0..In] rows to interleaved
// complex pairs. Real data passes through.
func blockToInterleaved(data []float32, xSize int, cplx bool) []float32 {
	if !cplx {
		return data
	}
	stride := 2 * xSize
	rows := len(data) / stride
	out := make([]float32, len(data))
	for row := 0; row < rows; row++ {
		base := row * stride
		for k := 0; k < xSize; k++ {
			out[base+2*k] = data[base+k]
			out[base+2*k+1] = data[base+xSize+k]
		}
	}
	return out
}
