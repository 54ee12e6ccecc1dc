package dsp

import (
	"fmt"

	"github.com/spinworks/nmrconv/pipefmt"
	"github.com/spinworks/nmrconv/spectrum"
)

// ZeroFill extends the direct axis to target points by appending zero
// samples to every trace. Filling to the current length or less is a
// no-op copy. The sweep width and calibration metadata are untouched so
// downstream frequency scaling still sees the original dwell.
func ZeroFill(s *spectrum.SpectrumData, target int) (*spectrum.SpectrumData, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if target < 1 {
		return nil, fmt.Errorf("dsp: zero-fill target %d", target)
	}
	if target <= s.Axes[0].Points {
		return s.Clone(), nil
	}
	return resizeDirect(s, target), nil
}

// ZeroFillAuto extends the direct axis to twice its length rounded up
// to the next power of two, the conventional default before a Fourier
// transform.
func ZeroFillAuto(s *spectrum.SpectrumData) (*spectrum.SpectrumData, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return ZeroFill(s, pipefmt.NextPow2(2*s.Axes[0].Points))
}
