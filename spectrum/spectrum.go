// Package spectrum defines the in-memory representation of NMR data that
// every decoder produces and every processing stage consumes.
package spectrum

import (
	"fmt"
	"math"
)

// AxisUnits identifies the calibration units of an axis.
type AxisUnits string

const (
	UnitsNone    AxisUnits = "none"
	UnitsSeconds AxisUnits = "sec"
	UnitsHz      AxisUnits = "hz"
	UnitsPPM     AxisUnits = "ppm"
)

// AxisParams holds the acquisition and calibration parameters of one
// spectral axis. SweepWidth is in Hz, ObsFreq in MHz, Carrier in ppm.
// Origin is the frequency (Hz) of the last point of the axis.
type AxisParams struct {
	Label      string    `json:"label"`
	Points     int       `json:"points"`
	SweepWidth float64   `json:"sweep_width"`
	Origin     float64   `json:"origin"`
	ObsFreq    float64   `json:"obs_freq"`
	Carrier    float64   `json:"carrier"`
	Units      AxisUnits `json:"units"`
	Complex    bool      `json:"complex"`
	TimeDomain bool      `json:"time_domain"`
}

// Dwell returns the sampling interval in seconds. Zero when SweepWidth
// is not set.
func (a AxisParams) Dwell() float64 {
	if a.SweepWidth <= 0 {
		return 0
	}
	return 1.0 / a.SweepWidth
}

// RefPPM returns the chemical shift of the first (downfield) point.
func (a AxisParams) RefPPM() float64 {
	if a.ObsFreq == 0 {
		return 0
	}
	return (a.Origin + a.SweepWidth) / a.ObsFreq
}

// IndexToPPM converts a point index on a frequency axis to a chemical
// shift in ppm.
func (a AxisParams) IndexToPPM(i int) float64 {
	if a.Points <= 1 || a.ObsFreq == 0 {
		return a.RefPPM()
	}
	frac := float64(i) / float64(a.Points-1)
	return a.RefPPM() - frac*a.SweepWidth/a.ObsFreq
}

// SpectrumData is an N-dimensional NMR data set. Data holds the directly
// observed axis fastest-varying; when the direct axis is complex the
// points are interleaved real, imaginary, real, imaginary.
type SpectrumData struct {
	Axes       []AxisParams `json:"axes"`
	Data       []float32    `json:"-"`
	FreqDomain bool         `json:"freq_domain"`
}

// New allocates a zeroed spectrum for the given axes.
func New(axes ...AxisParams) *SpectrumData {
	s := &SpectrumData{Axes: axes}
	n := 1
	for _, ax := range axes {
		n *= ax.StoredPoints()
	}
	s.Data = make([]float32, n)
	return s
}

// StoredPoints is the number of float32 values one trace along this axis
// occupies: 2x Points for complex axes.
func (a AxisParams) StoredPoints() int {
	if a.Complex {
		return 2 * a.Points
	}
	return a.Points
}

// DirectAxis returns the directly observed (fastest-varying) axis.
func (s *SpectrumData) DirectAxis() *AxisParams {
	return &s.Axes[0]
}

// Vectors returns how many direct-axis traces the data set holds.
func (s *SpectrumData) Vectors() int {
	n := 1
	for _, ax := range s.Axes[1:] {
		n *= ax.StoredPoints()
	}
	return n
}

// Vector returns the idx-th direct-axis trace as a subslice of Data.
func (s *SpectrumData) Vector(idx int) []float32 {
	w := s.Axes[0].StoredPoints()
	return s.Data[idx*w : (idx+1)*w]
}

// Validate checks the structural invariants of the data set.
func (s *SpectrumData) Validate() error {
	if len(s.Axes) == 0 {
		return fmt.Errorf("spectrum: no axes")
	}
	if len(s.Axes) > 4 {
		return fmt.Errorf("spectrum: %d axes, at most 4 supported", len(s.Axes))
	}
	want := 1
	for i, ax := range s.Axes {
		if ax.Points < 1 {
			return fmt.Errorf("spectrum: axis %d has %d points", i, ax.Points)
		}
		if ax.SweepWidth <= 0 {
			return fmt.Errorf("spectrum: axis %d sweep width %g", i, ax.SweepWidth)
		}
		want *= ax.StoredPoints()
	}
	if len(s.Data) != want {
		return fmt.Errorf("spectrum: data length %d, axes imply %d", len(s.Data), want)
	}
	return nil
}

// Clone returns a deep copy. Stages that rewrite data or axis metadata
// operate on a clone so the caller's value stays untouched.
func (s *SpectrumData) Clone() *SpectrumData {
	out := &SpectrumData{
		Axes:       append([]AxisParams(nil), s.Axes...),
		Data:       append([]float32(nil), s.Data...),
		FreqDomain: s.FreqDomain,
	}
	return out
}

// MinMax returns the extreme values of the data buffer. Returns zeros for
// an empty buffer.
func (s *SpectrumData) MinMax() (min, max float32) {
	if len(s.Data) == 0 {
		return 0, 0
	}
	min, max = s.Data[0], s.Data[0]
	for _, v := range s.Data[1:] {
		if v < min {
			min = v
		}
		if v > max {
			max = v
		}
	}
	return min, max
}

// IsFinite reports whether every value in the buffer is a finite number.
func (s *SpectrumData) IsFinite() bool {
	for _, v := range s.Data {
		f := float64(v)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return false
		}
	}
	return true
}
