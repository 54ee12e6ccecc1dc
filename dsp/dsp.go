// Package dsp implements the processing stages that turn a time-domain
// FID into an analyzable spectrum: apodization, zero-filling, Fourier
// transform, phase correction, baseline correction and solvent
// suppression.
//
// Every stage is a pure function: it takes an input spectrum plus a
// parameter record and returns a newly allocated output spectrum,
// leaving the input untouched. Stage ordering is owned by the caller.
package dsp

import (
	"errors"
	"fmt"
	"math"

	"github.com/spinworks/nmrconv/spectrum"
)

// ErrNumerical is returned when a fit or transform produces non-finite
// results, typically from an ill-conditioned system.
var ErrNumerical = errors.New("dsp: numerical failure")

// splitVector unpacks one direct-axis trace into separate real and
// imaginary float64 channels. For a real axis the imaginary channel is
// all zeros.
func splitVector(v []float32, isComplex bool) (re, im []float64) {
	if isComplex {
		n := len(v) / 2
		re = make([]float64, n)
		im = make([]float64, n)
		for i := 0; i < n; i++ {
			re[i] = float64(v[2*i])
			im[i] = float64(v[2*i+1])
		}
		return re, im
	}
	re = make([]float64, len(v))
	im = make([]float64, len(v))
	for i, x := range v {
		re[i] = float64(x)
	}
	return re, im
}

// storeVector packs real and imaginary channels back into a direct-axis
// trace. The imaginary channel is dropped for a real axis.
func storeVector(v []float32, re, im []float64, isComplex bool) {
	if isComplex {
		for i := range re {
			v[2*i] = float32(re[i])
			v[2*i+1] = float32(im[i])
		}
		return
	}
	for i := range re {
		v[i] = float32(re[i])
	}
}

// resizeDirect returns a copy of s whose direct axis holds newPoints
// points, existing traces copied in and the remainder zero filled.
func resizeDirect(s *spectrum.SpectrumData, newPoints int) *spectrum.SpectrumData {
	axes := append([]spectrum.AxisParams(nil), s.Axes...)
	axes[0].Points = newPoints
	out := spectrum.New(axes...)
	out.FreqDomain = s.FreqDomain
	oldW := s.Axes[0].StoredPoints()
	newW := axes[0].StoredPoints()
	w := oldW
	if newW < w {
		w = newW
	}
	for i := 0; i < s.Vectors(); i++ {
		copy(out.Data[i*newW:i*newW+w], s.Data[i*oldW:i*oldW+w])
	}
	return out
}

// checkFinite guards a stage output against NaN/Inf escape.
func checkFinite(s *spectrum.SpectrumData, stage string) error {
	if !s.IsFinite() {
		return fmt.Errorf("%w: %s produced non-finite values", ErrNumerical, stage)
	}
	return nil
}

// degToRad converts degrees to radians.
func degToRad(d float64) float64 { return d * math.Pi / 180.0 }
