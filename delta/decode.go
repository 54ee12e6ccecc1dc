package delta

import (
	"fmt"
	"io"
	"math"

	"github.com/spinworks/nmrconv/binio"
	"github.com/spinworks/nmrconv/logging"
	"github.com/spinworks/nmrconv/pipefmt"
	"github.com/spinworks/nmrconv/spectrum"
)

// Options controls the Delta conversion.
type Options struct {
	// RealOnly drops the imaginary channel from the output.
	RealOnly bool `json:"real_only"`
	// ApplyDF removes the digital-filter group delay from the data.
	ApplyDF bool `json:"apply_df"`
	// DFVal overrides the group delay computed from the decimation
	// parameters. Zero means auto.
	DFVal float64 `json:"df_val"`
	// TRVal overrides the transition ratio stored in the header.
	TRVal float64 `json:"tr_val"`
}

// DefaultOptions returns the conversion defaults.
func DefaultOptions() *Options {
	return &Options{}
}

// Decode reads a complete Delta file and produces a canonical header
// plus the reassembled spectrum. The direct axis of the returned
// spectrum stores complex points as interleaved real, imaginary pairs.
func Decode(r io.Reader, opts *Options) (*pipefmt.Fdata, *spectrum.SpectrumData, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	logger := logging.WithFields(logging.Fields{
		"component": "delta",
		"function":  "Decode",
	})

	all, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, fmt.Errorf("delta: read input: %w", err)
	}
	hdr, err := ParseHeader(all)
	if err != nil {
		return nil, nil, err
	}
	dims := hdr.DimCount
	if dims < 1 || dims > 4 {
		return nil, nil, fmt.Errorf("%w: %d dimensions", ErrUnsupportedAxisCount, dims)
	}

	// Stored extents are tile padded; the offset range selects the
	// acquired region.
	inSize := make([]int, dims)
	outSize := make([]int, dims)
	quadSize := make([]int, dims)
	channels := 1
	totalIn, totalOut := 1, 1
	for i := 0; i < dims; i++ {
		inSize[i] = hdr.SizeList[i]
		outSize[i] = 1 + hdr.OffsetStop[i] - hdr.OffsetStart[i]
		if outSize[i] < 1 {
			return nil, nil, fmt.Errorf("%w: dimension %d offset range [%d,%d]",
				ErrCorruptSubmatrix, i, hdr.OffsetStart[i], hdr.OffsetStop[i])
		}
		totalIn *= inSize[i]
		totalOut *= outSize[i]
		quadSize[i] = 1
		if hdr.IsQuad(i) {
			quadSize[i] = 2
			channels *= 2
		}
	}

	params := &acqParams{}
	if hdr.ParamLength > 0 && hdr.ParamStart > 0 && hdr.ParamStart < len(all) {
		for _, p := range parseParamSection(all[hdr.ParamStart:], hdr.byteOrder()) {
			params.store(p)
		}
	}

	storedDF := 0.0
	if params.dfFlag {
		storedDF = computeGroupDelay(params.dfOrders, params.dfFactors)
	}
	dfVal := 0.0
	if opts.ApplyDF {
		dfVal = storedDF
		if opts.DFVal > 0 {
			dfVal = opts.DFVal
		}
	}
	trVal := params.trVal
	if opts.TRVal != 0 {
		trVal = opts.TRVal
	}
	if !hdr.IsQuad(0) || !hdr.IsTimeDomain(0) || opts.RealOnly {
		dfVal = 0
	}

	floatData, err := readDataSection(all, hdr)
	if err != nil {
		return nil, nil, err
	}
	if len(floatData) < channels*totalIn {
		return nil, nil, fmt.Errorf("%w: %d words stored, geometry declares %d",
			ErrTruncatedData, len(floatData), channels*totalIn)
	}

	// Tile reassembly, one channel at a time.
	ones := make([]int, dims)
	matXn := make([]int, dims)
	smxX1 := make([]int, dims)
	smxXn := make([]int, dims)
	for i := 0; i < dims; i++ {
		ones[i] = 1
		matXn[i] = outSize[i]
		smxX1[i] = 1 + hdr.OffsetStart[i]
		smxXn[i] = 1 + hdr.OffsetStop[i]
	}
	edges := hdr.TileEdges()

	seq := make([]float32, totalOut*channels)
	for ch := 0; ch < channels; ch++ {
		src := floatData[ch*totalIn : (ch+1)*totalIn]
		dst := seq[ch*totalOut : (ch+1)*totalOut]
		if err := SmxToMatrix(src, dst, outSize, ones, matXn, inSize, smxX1, smxXn, edges); err != nil {
			return nil, nil, err
		}
	}

	if channels > 1 {
		if opts.RealOnly {
			// Channel 0 is the all-real channel.
			seq = seq[:totalOut]
		} else {
			seq = interleaveChannels(seq, outSize, quadSize, hdr, dims, channels, totalOut)
		}
	}

	// Group-delay removal runs on the interleaved rows so the sign
	// convention from reversed axes is preserved.
	if dfVal > 0 && quadSize[0] == 2 && !opts.RealOnly {
		oldX := outSize[0]
		corr := binio.NewDFCorrector(oldX, dfVal, 1, 0)
		newX := corr.OutSize()
		oldStride := 2 * oldX
		rows := len(seq) / oldStride
		corr.Correct2D(seq, rows)
		newStride := 2 * newX
		out := make([]float32, rows*newStride)
		for row := 0; row < rows; row++ {
			src := seq[row*oldStride : (row+1)*oldStride]
			copy(out[row*newStride:], src[:newX])
			copy(out[row*newStride+newX:], src[oldX:oldX+newX])
		}
		seq = out
		outSize[0] = newX
		logger.Debug("applied digital-filter correction", logging.Fields{
			"group_delay": dfVal,
			"out_points":  newX,
		})
	}

	fd, axes := buildHeader(hdr, params, opts, outSize, quadSize, dims, storedDF, dfVal, trVal)

	spec := &spectrum.SpectrumData{
		Axes:       axes,
		FreqDomain: !hdr.IsTimeDomain(0),
	}
	spec.Data = blockToInterleaved(seq, outSize[0], axes[0].Complex)
	if err := spec.Validate(); err != nil {
		return nil, nil, err
	}

	mn, mx := spec.MinMax()
	fd.SetMinMax(mn, mx)

	logger.Info("decoded file", logging.Fields{
		"dims":     dims,
		"points":   outSize[0],
		"channels": channels,
		"title":    hdr.Title,
	})
	return fd, spec, nil
}

// readDataSection extracts the data bytes, swaps them to native order
// when needed, and widens doubles to float32.
func readDataSection(all []byte, hdr *Header) ([]float32, error) {
	start := hdr.DataStart
	length := int(hdr.DataLength)
	if start < 0 || length < 0 || start+length > len(all) {
		return nil, fmt.Errorf("%w: start=%d len=%d file=%d",
			ErrTruncatedData, start, length, len(all))
	}
	raw := append([]byte(nil), all[start:start+length]...)
	ws := hdr.WordSize()
	if hdr.NeedsDataSwap() {
		if ws == 8 {
			binio.Swap8(raw)
		} else {
			binio.Swap4(raw)
		}
	}
	out := make([]float32, len(raw)/ws)
	for i := range out {
		if ws == 8 {
			bits := uint64(raw[8*i]) | uint64(raw[8*i+1])<<8 | uint64(raw[8*i+2])<<16 |
				uint64(raw[8*i+3])<<24 | uint64(raw[8*i+4])<<32 | uint64(raw[8*i+5])<<40 |
				uint64(raw[8*i+6])<<48 | uint64(raw[8*i+7])<<56
			out[i] = float32(math.Float64frombits(bits))
		} else {
			bits := uint32(raw[4*i]) | uint32(raw[4*i+1])<<8 |
				uint32(raw[4*i+2])<<16 | uint32(raw[4*i+3])<<24
			out[i] = math.Float32frombits(bits)
		}
	}
	return out, nil
}

// interleaveChannels merges the per-channel sequential buffers into the
// canonical row layout: each direct-axis vector becomes a real block
// followed by an imaginary block, with the imaginary channel negated on
// reversed axes.
func interleaveChannels(data []float32, outSize, quadSize []int, hdr *Header, dims, channels, totalOut int) []float32 {
	result := data
	pairCount := channels / 2

	reversed := make([]bool, dims)
	for i := 0; i < dims; i++ {
		reversed[i] = hdr.Reversed[i]
		if hdr.AxisType[0] != AxisEnvelope {
			reversed[i] = !reversed[i]
		}
	}

	if quadSize[0] == 2 {
		work := make([]float32, len(result))
		vSize := outSize[0]
		vCount := totalOut / vSize
		destOff := 0
		for p := 0; p < pairCount; p++ {
			srcR := destOff
			srcI := srcR + totalOut
			for j := 0; j < vCount; j++ {
				for k := 0; k < vSize; k++ {
					work[destOff+j*2*vSize+k] = at(result, srcR+j*vSize+k)
				}
				for k := 0; k < vSize; k++ {
					v := at(result, srcI+j*vSize+k)
					if reversed[0] {
						v = -v
					}
					work[destOff+j*2*vSize+vSize+k] = v
				}
			}
			destOff += totalOut * 2
		}
		result = work
		pairCount /= 2
	}

	for dim := 1; dim < dims; dim++ {
		if quadSize[dim] != 2 {
			continue
		}
		quadN, outN := 1, 1
		for i := 0; i < dim; i++ {
			quadN *= quadSize[i]
			outN *= outSize[i]
		}
		work := make([]float32, len(result))
		vSize := outN * quadN
		vCount := totalOut / outN
		destOff := 0
		for p := 0; p < pairCount; p++ {
			srcR := destOff
			srcI := srcR + totalOut*quadN
			for j := 0; j < vCount; j++ {
				for k := 0; k < vSize; k++ {
					if di := destOff + j*2*vSize + k; di < len(work) {
						work[di] = at(result, srcR+j*vSize+k)
					}
				}
				for k := 0; k < vSize; k++ {
					if di := destOff + j*2*vSize + vSize + k; di < len(work) {
						v := at(result, srcI+j*vSize+k)
						if reversed[dim] {
							v = -v
						}
						work[di] = v
					}
				}
			}
			destOff += totalOut * quadN * 2
		}
		result = work
		pairCount /= 2
	}
	return result
}

func at(s []float32, i int) float32 {
	if i < len(s) {
		return s[i]
	}
	return 0
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

// buildHeader populates the canonical header and axis records from the
// parsed Delta fields.
func buildHeader(hdr *Header, params *acqParams, opts *Options, outSize, quadSize []int, dims int, storedDF, appliedDF, trVal float64) (*pipefmt.Fdata, []spectrum.AxisParams) {
	fd := pipefmt.NewFdata()
	fd.Set(pipefmt.FDDimCount, float32(dims))
	fd.Set(pipefmt.FD2DPhase, float32(hdr.Aq2DMode()))
	fd.Set(pipefmt.FDTemperature, float32(params.temperature))

	quadX := !opts.RealOnly && quadSize[0] == 2
	if quadX {
		fd.Set(pipefmt.FDQuadFlag, pipefmt.QuadComplex)
	} else {
		fd.Set(pipefmt.FDQuadFlag, pipefmt.QuadReal)
	}

	// The correction is consumed when applied; otherwise the computed
	// delay travels in the header for downstream tools.
	if appliedDF <= 0 {
		fd.Set(pipefmt.FDDmxVal, float32(storedDF))
		fd.Set(pipefmt.FDDeltaTR, float32(trVal))
	}

	axes := make([]spectrum.AxisParams, dims)
	for i := 0; i < dims; i++ {
		quad := !opts.RealOnly && quadSize[i] == 2
		sizeT := outSize[i]
		sizeN := sizeT
		if quad && i > 0 {
			sizeN = 2 * sizeT
		}
		ftFlag := 1
		sizeF := sizeT
		if hdr.IsTimeDomain(i) {
			ftFlag = 0
			sizeF = pipefmt.NextPow2(2 * sizeT)
		}
		mid := sizeF/2 + 1

		sw := deltaSweepWidth(hdr, params, i)
		obs := deltaObsFreq(hdr, params, i)
		car := deltaCarrier(hdr, params, i, sw, obs)
		orig := deltaOrigin(hdr, i, sw, obs, car, outSize[i], sizeF, mid)
		label := formatLabel(hdr.AxisTitles, i, dims)

		d := i + 1
		if i == 0 {
			fd.Set(pipefmt.FDRealSize, float32(sizeT))
		}
		qf := float32(pipefmt.QuadReal)
		if quad {
			qf = pipefmt.QuadComplex
		}
		_ = fd.SetParm(pipefmt.NDSize, d, float32(sizeN))
		_ = fd.SetParm(pipefmt.NDApod, d, float32(sizeT))
		_ = fd.SetParm(pipefmt.NDTDSize, d, float32(sizeT))
		_ = fd.SetParm(pipefmt.NDFtFlag, d, float32(ftFlag))
		_ = fd.SetParm(pipefmt.NDQuadFlag, d, qf)
		_ = fd.SetParm(pipefmt.NDSw, d, float32(sw))
		_ = fd.SetParm(pipefmt.NDObs, d, float32(obs))
		_ = fd.SetParm(pipefmt.NDCenter, d, float32(mid))
		_ = fd.SetParm(pipefmt.NDCar, d, float32(car))
		_ = fd.SetParm(pipefmt.NDOrig, d, float32(orig))
		_ = fd.SetText(pipefmt.NDLabel, d, label)

		axes[i] = spectrum.AxisParams{
			Label:      label,
			Points:     sizeT,
			SweepWidth: sw,
			Origin:     orig,
			ObsFreq:    obs,
			Carrier:    car,
			Complex:    quad,
			TimeDomain: hdr.IsTimeDomain(i),
			Units:      axisUnits(hdr, i),
		}
	}

	defaultLabels := []string{"", "Y", "Z", "A"}
	for d := dims + 1; d <= 4; d++ {
		_ = fd.SetParm(pipefmt.NDSize, d, 1)
		_ = fd.SetParm(pipefmt.NDQuadFlag, d, pipefmt.QuadReal)
		if d == 2 {
			_ = fd.SetParm(pipefmt.NDObs, d, 1)
			_ = fd.SetParm(pipefmt.NDSw, d, 1)
		}
		_ = fd.SetText(pipefmt.NDLabel, d, defaultLabels[d-1])
	}

	planeCount := 1
	for i := 2; i < dims; i++ {
		planeCount *= outSize[i]
		if !opts.RealOnly {
			planeCount *= quadSize[i]
		}
	}
	if dims <= 2 {
		fd.Set(pipefmt.FDFileCount, float32(planeCount))
		fd.Set(pipefmt.FDPipeFlag, 0)
	} else {
		fd.Set(pipefmt.FDFileCount, 1)
		fd.Set(pipefmt.FDPipeFlag, 1)
	}
	return fd, axes
}

func axisUnits(hdr *Header, dim int) spectrum.AxisUnits {
	switch {
	case hdr.IsTimeDomain(dim):
		return spectrum.UnitsSeconds
	case hdr.IsPPM(dim):
		return spectrum.UnitsPPM
	case hdr.IsHz(dim):
		return spectrum.UnitsHz
	}
	return spectrum.UnitsNone
}

func deltaSweepWidth(hdr *Header, params *acqParams, dim int) float64 {
	n := float64(hdr.OffsetStop[dim] - hdr.OffsetStart[dim])
	s1 := hdr.Units[dim].ApplyScale(hdr.AxisStart[dim])
	s2 := hdr.Units[dim].ApplyScale(hdr.AxisStop[dim])
	t := math.Abs(s1 - s2)

	var sw float64
	switch {
	case hdr.IsTimeDomain(dim):
		switch {
		case params.sw[dim] != 0:
			sw = params.sw[dim]
		case t == 0:
			sw = n
		default:
			sw = n / t
		}
	case hdr.IsPPM(dim):
		sw = t * deltaObsFreq(hdr, params, dim)
	case hdr.IsHz(dim):
		sw = t
	}
	if sw == 0 {
		sw = params.sw[dim]
	}
	if sw == 0 {
		sw = n
	}
	if sw == 0 {
		sw = 1
	}
	return sw
}

func deltaObsFreq(hdr *Header, params *acqParams, dim int) float64 {
	obs := hdr.BaseFreq[dim]
	if obs == 0 {
		obs = params.obs[dim]
	}
	if obs == 0 {
		obs = 1
	}
	return obs
}

func deltaCarrier(hdr *Header, params *acqParams, dim int, sw, obs float64) float64 {
	if hdr.IsTimeDomain(dim) {
		return sw * hdr.ZeroPoint[dim] / obs
	}
	return params.car[dim]
}

func deltaOrigin(hdr *Header, dim int, sw, obs, car float64, outSize, sizeF, mid int) float64 {
	n := outSize
	if n == 0 {
		n = 1
	}
	switch {
	case hdr.IsTimeDomain(dim):
		return obs*car - sw*float64(sizeF-mid)/float64(sizeF)
	case hdr.IsPPM(dim):
		s := hdr.Units[dim].ApplyScale(hdr.AxisStop[dim])
		return s*obs + 0.5*sw/float64(n)
	case hdr.IsHz(dim):
		s := hdr.Units[dim].ApplyScale(hdr.AxisStop[dim])
		return s + 0.5*sw/float64(n)
	}
	return 0
}
