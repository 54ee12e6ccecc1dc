package dsp

import (
	"fmt"

	"github.com/mjibson/go-dsp/fft"

	"github.com/spinworks/nmrconv/spectrum"
)

// FourierParams configures the transform direction and channel use.
type FourierParams struct {
	// Inverse runs the frequency-to-time transform, exactly undoing a
	// forward call (up to the automatic sign flip).
	Inverse bool `json:"inverse"`
	// RealOnly ignores the stored imaginary channel on the forward
	// transform.
	RealOnly bool `json:"real_only"`
}

// DefaultFourierParams returns a forward complex transform.
func DefaultFourierParams() *FourierParams {
	return &FourierParams{}
}

// Fourier transforms every direct-axis trace between time and frequency
// domain. The forward transform halves the first point to suppress the
// DC-offset ridge, shifts zero frequency to the center and reverses the
// axis so index 0 sits downfield. When the transformed real channel is
// predominantly negative the whole trace is flipped 180 degrees so
// absorption peaks point up. Point count is preserved for any length,
// even or odd.
func Fourier(s *spectrum.SpectrumData, p *FourierParams) (*spectrum.SpectrumData, error) {
	if p == nil {
		p = DefaultFourierParams()
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	if !p.Inverse && s.FreqDomain {
		return nil, fmt.Errorf("dsp: data already in frequency domain")
	}
	if p.Inverse && !s.FreqDomain {
		return nil, fmt.Errorf("dsp: data already in time domain")
	}

	out := s.Clone()
	ax := out.DirectAxis()
	n := ax.Points
	half := n / 2

	for v := 0; v < out.Vectors(); v++ {
		vec := out.Vector(v)
		re, im := splitVector(vec, ax.Complex)
		buf := make([]complex128, n)

		if !p.Inverse {
			for i := 0; i < n; i++ {
				if p.RealOnly {
					buf[i] = complex(re[i], 0)
				} else {
					buf[i] = complex(re[i], im[i])
				}
			}
			buf[0] *= 0.5
			buf = fft.FFT(buf)

			// Shift zero frequency to the center, then reverse so
			// index 0 is the downfield edge.
			shifted := make([]complex128, n)
			for i := 0; i < n; i++ {
				shifted[i] = buf[(i+half)%n]
			}
			for i := 0; i < n; i++ {
				buf[i] = shifted[n-1-i]
			}

			var posSum, negSum float64
			for _, c := range buf {
				if real(c) > 0 {
					posSum += real(c)
				} else {
					negSum -= real(c)
				}
			}
			if negSum > posSum*1.5 {
				for i := range buf {
					buf[i] = -buf[i]
				}
			}
		} else {
			shifted := make([]complex128, n)
			for i := 0; i < n; i++ {
				shifted[i] = complex(re[n-1-i], im[n-1-i])
			}
			for i := 0; i < n; i++ {
				buf[(i+half)%n] = shifted[i]
			}
			buf = fft.IFFT(buf)
			buf[0] *= 2
		}

		for i := 0; i < n; i++ {
			re[i] = real(buf[i])
			im[i] = imag(buf[i])
		}
		storeVector(vec, re, im, ax.Complex)
	}

	out.FreqDomain = !p.Inverse
	ax.TimeDomain = p.Inverse
	if err := checkFinite(out, "fourier"); err != nil {
		return nil, err
	}
	return out, nil
}
