package pipefmt

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/spinworks/nmrconv/logging"
	"github.com/spinworks/nmrconv/spectrum"
)

// WriteSpectrum derives the size, quadrature and scale words from the
// spectrum and writes header plus data planes. The data is written in
// the same little-endian layout the header uses.
func WriteSpectrum(w io.Writer, f *Fdata, s *spectrum.SpectrumData) error {
	if err := s.Validate(); err != nil {
		return err
	}
	logger := logging.WithFields(logging.Fields{
		"component": "pipefmt",
		"function":  "WriteSpectrum",
	})

	direct := s.DirectAxis()
	f.words[FDRealSize] = float32(direct.Points)
	f.words[FDDimCount] = float32(len(s.Axes))
	if direct.Complex {
		f.words[FDQuadFlag] = QuadComplex
	} else {
		f.words[FDQuadFlag] = QuadReal
	}
	f.words[FDFileCount] = 1
	f.words[FDPipeFlag] = 0

	for d := 1; d <= len(s.Axes); d++ {
		ax := s.Axes[d-1]
		// The direct size counts complex pairs once; indirect sizes count
		// real and imaginary rows separately.
		size := float32(ax.Points)
		if d > 1 {
			size = float32(ax.StoredPoints())
		}
		if err := f.SetParm(NDSize, d, size); err != nil {
			return err
		}
		quad := float32(QuadReal)
		if ax.Complex {
			quad = QuadComplex
		}
		ft := float32(0)
		if !ax.TimeDomain {
			ft = 1
		}
		for _, p := range []struct {
			code int
			val  float32
		}{
			{NDSw, float32(ax.SweepWidth)},
			{NDObs, float32(ax.ObsFreq)},
			{NDOrig, float32(ax.Origin)},
			{NDCar, float32(ax.Carrier)},
			{NDQuadFlag, quad},
			{NDFtFlag, ft},
		} {
			if err := f.SetParm(p.code, d, p.val); err != nil {
				return err
			}
		}
		if ax.Label != "" {
			if err := f.SetText(NDLabel, d, ax.Label); err != nil {
				return err
			}
		}
	}

	mn, mx := s.MinMax()
	f.words[FDMin] = mn
	f.words[FDMax] = mx
	f.words[FDScaleFlag] = 1

	if _, err := w.Write(f.Bytes()); err != nil {
		return fmt.Errorf("pipefmt: write header: %w", err)
	}
	buf := make([]byte, len(s.Data)*4)
	for i, v := range s.Data {
		binary.LittleEndian.PutUint32(buf[4*i:], math.Float32bits(v))
	}
	if _, err := w.Write(buf); err != nil {
		return fmt.Errorf("pipefmt: write data: %w", err)
	}
	logger.Debug("wrote spectrum", logging.Fields{
		"points":  direct.Points,
		"vectors": s.Vectors(),
		"dims":    len(s.Axes),
	})
	return nil
}

// ReadSpectrum parses a canonical file: header with byte-order detection,
// then every float32 plane, swapped to the native layout when needed.
func ReadSpectrum(r io.Reader) (*Fdata, *spectrum.SpectrumData, error) {
	head := make([]byte, HeaderBytes)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, nil, fmt.Errorf("pipefmt: read header: %w", err)
	}
	f, order, err := ParseHeader(head)
	if err != nil {
		return nil, nil, err
	}
	if err := f.Validate(); err != nil {
		return nil, nil, err
	}

	axes := make([]spectrum.AxisParams, f.DimCount())
	for d := 1; d <= len(axes); d++ {
		ax := &axes[d-1]
		get := func(code int) float32 {
			v, gerr := f.GetParm(code, d)
			if gerr != nil && err == nil {
				err = gerr
			}
			return v
		}
		size := int(get(NDSize))
		ax.SweepWidth = float64(get(NDSw))
		ax.ObsFreq = float64(get(NDObs))
		ax.Origin = float64(get(NDOrig))
		ax.Carrier = float64(get(NDCar))
		ax.Complex = int(get(NDQuadFlag)) == QuadComplex
		ax.TimeDomain = get(NDFtFlag) == 0
		if label, lerr := f.GetText(NDLabel, d); lerr == nil {
			ax.Label = label
		}
		if err != nil {
			return nil, nil, err
		}
		// Indirect sizes count real and imaginary rows separately.
		if d > 1 && ax.Complex {
			if size%2 != 0 {
				return nil, nil, fmt.Errorf("%w: dimension %d has %d rows for complex data",
					ErrInvalidHeader, d, size)
			}
			size /= 2
		}
		ax.Points = size
	}

	plane := axes[0].StoredPoints()
	if len(axes) > 1 {
		plane *= axes[1].StoredPoints()
	}
	if pp := f.PlanePoints(); pp != plane {
		return nil, nil, fmt.Errorf("%w: plane holds %d points, axes imply %d",
			ErrInvalidHeader, pp, plane)
	}

	s := spectrum.New(axes...)
	s.FreqDomain = !axes[0].TimeDomain
	if err := s.Validate(); err != nil {
		return nil, nil, err
	}
	raw := make([]byte, len(s.Data)*4)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, nil, fmt.Errorf("pipefmt: read data: %w", err)
	}
	var bo binary.ByteOrder = binary.LittleEndian
	if order == OrderSwapped {
		bo = binary.BigEndian
	}
	for i := range s.Data {
		s.Data[i] = math.Float32frombits(bo.Uint32(raw[4*i:]))
	}
	logging.Debug("read spectrum", logging.Fields{
		"component": "pipefmt",
		"points":    axes[0].Points,
		"dims":      len(axes),
		"swapped":   order == OrderSwapped,
	})
	return f, s, nil
}
