package dsp

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/spinworks/nmrconv/spectrum"
)

// BaselineParams configures the polynomial baseline fit. Regions lists
// inclusive [low, high] index ranges of signal-free baseline; empty
// Regions switches to automatic flagging of low-intensity points.
type BaselineParams struct {
	Degree  int      `json:"degree"`
	Regions [][2]int `json:"regions,omitempty"`
}

// DefaultBaselineParams returns an automatic degree-2 fit.
func DefaultBaselineParams() *BaselineParams {
	return &BaselineParams{Degree: 2}
}

// Baseline fits a polynomial to the real channel over the baseline
// regions by least squares and subtracts the fit from the full real
// channel of every trace. With no regions given, points whose absolute
// value falls under twice the median absolute level are treated as
// baseline. A fit that yields non-finite coefficients returns
// ErrNumerical and leaves the input untouched.
func Baseline(s *spectrum.SpectrumData, p *BaselineParams) (*spectrum.SpectrumData, error) {
	if p == nil {
		p = DefaultBaselineParams()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if p.Degree < 0 {
		return nil, fmt.Errorf("dsp: baseline degree %d", p.Degree)
	}
	out := s.Clone()
	ax := out.DirectAxis()
	n := ax.Points

	for v := 0; v < out.Vectors(); v++ {
		vec := out.Vector(v)
		re, im := splitVector(vec, ax.Complex)

		idx, err := baselineIndices(re, p.Regions)
		if err != nil {
			return nil, err
		}
		if len(idx) < p.Degree+1 {
			return nil, fmt.Errorf("%w: %d baseline points for a degree-%d fit",
				ErrNumerical, len(idx), p.Degree)
		}

		coef, err := polyFit(idx, re, n, p.Degree)
		if err != nil {
			return nil, err
		}
		for i := 0; i < n; i++ {
			re[i] -= polyEval(coef, float64(i)/float64(n))
		}
		storeVector(vec, re, im, ax.Complex)
	}
	if err := checkFinite(out, "baseline"); err != nil {
		return nil, err
	}
	return out, nil
}

// baselineIndices resolves the fit support: explicit regions when
// given, otherwise every point under twice the median absolute level.
func baselineIndices(re []float64, regions [][2]int) ([]int, error) {
	n := len(re)
	if len(regions) > 0 {
		var idx []int
		for _, r := range regions {
			lo, hi := r[0], r[1]
			if lo < 0 || hi >= n || lo > hi {
				return nil, fmt.Errorf("dsp: baseline region [%d, %d] outside 0..%d", lo, hi, n-1)
			}
			for i := lo; i <= hi; i++ {
				idx = append(idx, i)
			}
		}
		return idx, nil
	}

	abs := make([]float64, n)
	for i, v := range re {
		abs[i] = math.Abs(v)
	}
	sorted := append([]float64(nil), abs...)
	sort.Float64s(sorted)
	thresh := 2.0 * sorted[n/2]

	var idx []int
	for i := range re {
		if abs[i] < thresh {
			idx = append(idx, i)
		}
	}
	return idx, nil
}

// polyFit solves the least-squares polynomial through (i/n, re[i]) for
// the chosen indices, the abscissa normalized to [0, 1) to keep the
// system well conditioned.
func polyFit(idx []int, re []float64, n, degree int) ([]float64, error) {
	m := len(idx)
	a := mat.NewDense(m, degree+1, nil)
	b := mat.NewVecDense(m, nil)
	for row, i := range idx {
		x := float64(i) / float64(n)
		pw := 1.0
		for col := 0; col <= degree; col++ {
			a.Set(row, col, pw)
			pw *= x
		}
		b.SetVec(row, re[i])
	}

	var qr mat.QR
	qr.Factorize(a)
	var sol mat.Dense
	if err := qr.SolveTo(&sol, false, b); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNumerical, err)
	}

	coef := make([]float64, degree+1)
	for i := range coef {
		c := sol.At(i, 0)
		if math.IsNaN(c) || math.IsInf(c, 0) {
			return nil, fmt.Errorf("%w: non-finite baseline coefficient", ErrNumerical)
		}
		coef[i] = c
	}
	return coef, nil
}

func polyEval(coef []float64, x float64) float64 {
	y := 0.0
	for i := len(coef) - 1; i >= 0; i-- {
		y = y*x + coef[i]
	}
	return y
}
