package binio

import (
	"math"

	"github.com/mjibson/go-dsp/fft"
)

// DFCorrector removes the group delay a digital receiver's decimation
// filter leaves at the head of a FID, including the fractional part.
//
// The correction works in the frequency domain: zero-pad to a power of
// two, inverse transform, apply a linear phase ramp matching the delay,
// transform back, then discard the contaminated head and tail points.
type DFCorrector struct {
	fftSize  int
	inSize   int
	outSize  int
	grpDelay float64
}

// NewDFCorrector builds a corrector for vectors of inSize complex
// points delayed by grpDelay sample periods. skipTail extra trailing
// points are discarded beyond the rounded-up delay; JEOL data uses 1.
// maxOut > 0 caps the output length.
func NewDFCorrector(inSize int, grpDelay float64, skipTail, maxOut int) *DFCorrector {
	fftSize := nextPow2(inSize)
	outSize := inSize - int(math.Ceil(grpDelay)) - skipTail
	if outSize < 0 {
		outSize = 0
	}
	if maxOut > 0 && maxOut < outSize {
		outSize = maxOut
	}
	return &DFCorrector{
		fftSize:  fftSize,
		inSize:   inSize,
		outSize:  outSize,
		grpDelay: grpDelay,
	}
}

// OutSize is the corrected vector length in complex points.
func (c *DFCorrector) OutSize() int {
	return c.outSize
}

// Correct rewrites one complex vector in place. rdata and idata must
// each hold at least inSize values; on return the first OutSize values
// of each hold the corrected signal.
func (c *DFCorrector) Correct(rdata, idata []float32) {
	n := c.fftSize
	buf := make([]complex128, n)
	for i := 0; i < c.inSize; i++ {
		buf[i] = complex(float64(rdata[i]), float64(idata[i]))
	}

	// The IFFT here is 1/N normalized, which stands in for the explicit
	// scale step of the classic formulation.
	buf = fft.IFFT(buf)
	halfSwap(buf)

	negTwoPiGrp := -2 * math.Pi * c.grpDelay
	for k := 0; k < n; k++ {
		angle := negTwoPiGrp * float64(k) / float64(n)
		s, co := math.Sincos(angle)
		buf[k] *= complex(co, s)
	}

	halfSwap(buf)
	buf = fft.FFT(buf)

	buf[0] *= 2

	for i := 0; i < c.outSize; i++ {
		rdata[i] = float32(real(buf[i]))
		idata[i] = float32(imag(buf[i]))
	}
	for i := c.outSize; i < c.inSize; i++ {
		rdata[i] = 0
		idata[i] = 0
	}
}

// Correct2D applies the correction to rows laid out [R0..Rn I0..In] per
// vector with stride 2 x inSize.
func (c *DFCorrector) Correct2D(data []float32, rows int) {
	stride := 2 * c.inSize
	for row := 0; row < rows; row++ {
		base := row * stride
		if base+stride > len(data) {
			break
		}
		c.Correct(data[base:base+c.inSize], data[base+c.inSize:base+stride])
	}
}

// halfSwap exchanges the two halves of an even-length buffer, moving the
// zero-frequency bin to the center.
func halfSwap(buf []complex128) {
	half := len(buf) / 2
	for i := 0; i < half; i++ {
		buf[i], buf[i+half] = buf[i+half], buf[i]
	}
}

func nextPow2(n int) int {
	p := 1
	for p < n {
		p *= 2
	}
	return p
}
