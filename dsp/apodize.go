package dsp

import (
	"fmt"
	"math"

	"github.com/spinworks/nmrconv/spectrum"
)

// ApodizeKind selects the window function.
type ApodizeKind string

const (
	// ApodizeNone leaves the data untouched.
	ApodizeNone ApodizeKind = "none"
	// ApodizeExponential is exponential multiplication, exp(-pi*lb*t).
	ApodizeExponential ApodizeKind = "em"
	// ApodizeGaussian is Lorentz-to-Gauss multiplication.
	ApodizeGaussian ApodizeKind = "gm"
	// ApodizeSineBell is a sine bell of configurable power and phase.
	ApodizeSineBell ApodizeKind = "sp"
	// ApodizeCosineBell is the sine bell with offset 0.5, end 1, power 1.
	ApodizeCosineBell ApodizeKind = "cos"
)

// ApodizeParams configures the window. LB is line broadening in Hz,
// GB the Gaussian shape factor, Power/Offset/End the sine-bell shape
// (offset and end as fractions of pi).
type ApodizeParams struct {
	Kind   ApodizeKind `json:"kind"`
	LB     float64     `json:"lb"`
	GB     float64     `json:"gb"`
	Power  float64     `json:"power"`
	Offset float64     `json:"offset"`
	End    float64     `json:"end"`
}

// DefaultApodizeParams returns a 0.2 Hz exponential window.
func DefaultApodizeParams() *ApodizeParams {
	return &ApodizeParams{
		Kind:   ApodizeExponential,
		LB:     0.2,
		Power:  1.0,
		Offset: 0.5,
		End:    1.0,
	}
}

// Apodize multiplies every time-domain trace by the configured window.
// The window is evaluated against t = i/sw; when the direct axis has no
// sweep width the dwell falls back to 1/n so the window still spans the
// acquisition.
func Apodize(s *spectrum.SpectrumData, p *ApodizeParams) (*spectrum.SpectrumData, error) {
	if p == nil {
		p = DefaultApodizeParams()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := s.Clone()
	if p.Kind == ApodizeNone {
		return out, nil
	}

	ax := out.DirectAxis()
	n := ax.Points
	dwell := ax.Dwell()
	if dwell <= 0 {
		dwell = 1.0 / float64(n)
	}

	win := make([]float64, n)
	switch p.Kind {
	case ApodizeExponential:
		for i := range win {
			t := float64(i) * dwell
			win[i] = math.Exp(-math.Pi * p.LB * t)
		}
	case ApodizeGaussian:
		if p.GB == 0 {
			return nil, fmt.Errorf("dsp: gaussian apodization needs a non-zero gb")
		}
		tmax := float64(n) * dwell
		for i := range win {
			t := float64(i) * dwell
			g := t / (2.0 * p.GB * tmax)
			win[i] = math.Exp(-math.Pi*p.LB*t) * math.Exp(-g*g)
		}
	case ApodizeSineBell:
		for i := range win {
			frac := float64(i) / float64(n)
			angle := math.Pi * (p.Offset + frac*(p.End-p.Offset))
			win[i] = math.Pow(math.Sin(angle), p.Power)
		}
	case ApodizeCosineBell:
		for i := range win {
			frac := float64(i) / float64(n)
			win[i] = math.Cos(math.Pi * frac / 2.0)
		}
	default:
		return nil, fmt.Errorf("dsp: unknown apodization kind %q", p.Kind)
	}

	for v := 0; v < out.Vectors(); v++ {
		vec := out.Vector(v)
		if ax.Complex {
			for i := 0; i < n; i++ {
				vec[2*i] *= float32(win[i])
				vec[2*i+1] *= float32(win[i])
			}
		} else {
			for i := 0; i < n; i++ {
				vec[i] *= float32(win[i])
			}
		}
	}
	if err := checkFinite(out, "apodize"); err != nil {
		return nil, err
	}
	return out, nil
}
