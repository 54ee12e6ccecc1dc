package dsp

import (
	"fmt"
	"math"

	"github.com/spinworks/nmrconv/spectrum"
)

// SolventParams selects the region to suppress, in direct-axis point
// indices (inclusive). TaperWidth points just inside each edge of the
// region fade out with a cosine-squared ramp instead of a hard cut, so
// the suppression does not ring.
type SolventParams struct {
	Low        int `json:"low"`
	High       int `json:"high"`
	TaperWidth int `json:"taper_width"`
}

// DefaultSolventParams returns a 16-point taper with an empty region.
func DefaultSolventParams() *SolventParams {
	return &SolventParams{TaperWidth: 16}
}

// Solvent zeroes the configured region of the real and imaginary
// channels of every trace. Works in either domain; suppressing an
// on-resonance solvent is usually done on the frequency-domain
// spectrum, zeroing the first time-domain points is the crude
// equivalent.
func Solvent(s *spectrum.SpectrumData, p *SolventParams) (*spectrum.SpectrumData, error) {
	if p == nil {
		p = DefaultSolventParams()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	out := s.Clone()
	ax := out.DirectAxis()
	n := ax.Points
	if p.Low < 0 || p.High >= n || p.Low > p.High {
		return nil, fmt.Errorf("dsp: solvent region [%d, %d] outside 0..%d", p.Low, p.High, n-1)
	}
	if p.TaperWidth < 0 {
		return nil, fmt.Errorf("dsp: solvent taper width %d", p.TaperWidth)
	}

	width := p.High - p.Low + 1
	taper := p.TaperWidth
	if 2*taper > width {
		taper = width / 2
	}

	// factor is cos^2 ramping 1 -> 0 across the taper and 0 inside.
	factor := func(i int) float64 {
		dLow := i - p.Low
		dHigh := p.High - i
		d := dLow
		if dHigh < d {
			d = dHigh
		}
		if d >= taper {
			return 0
		}
		c := math.Cos(math.Pi / 2.0 * float64(d+1) / float64(taper+1))
		return c * c
	}

	for v := 0; v < out.Vectors(); v++ {
		vec := out.Vector(v)
		re, im := splitVector(vec, ax.Complex)
		for i := p.Low; i <= p.High; i++ {
			f := factor(i)
			re[i] *= f
			im[i] *= f
		}
		storeVector(vec, re, im, ax.Complex)
	}
	return out, nil
}
