package dsp_test

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinworks/nmrconv/dsp"
	"github.com/spinworks/nmrconv/spectrum"
)

// decayingFID builds a complex exponentially decaying oscillation, the
// canonical single-line test signal.
func decayingFID(n int, freqFrac, decay float64) *spectrum.SpectrumData {
	s := spectrum.New(spectrum.AxisParams{
		Label:      "1H",
		Points:     n,
		SweepWidth: 8000,
		ObsFreq:    500,
		Units:      spectrum.UnitsSeconds,
		Complex:    true,
		TimeDomain: true,
	})
	for i := 0; i < n; i++ {
		t := float64(i) / float64(n)
		amp := math.Exp(-decay * t)
		phase := 2 * math.Pi * freqFrac * float64(i)
		s.Data[2*i] = float32(amp * math.Cos(phase))
		s.Data[2*i+1] = float32(amp * math.Sin(phase))
	}
	return s
}

func TestApodizeExponentialDecays(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{
		Points: 64, SweepWidth: 100, Complex: true, TimeDomain: true,
	})
	for i := range s.Data {
		s.Data[i] = 1
	}
	out, err := dsp.Apodize(s, &dsp.ApodizeParams{Kind: dsp.ApodizeExponential, LB: 5})
	require.NoError(t, err)

	// Window starts at 1 and decreases monotonically.
	assert.Equal(t, float32(1), out.Data[0])
	for i := 1; i < 64; i++ {
		assert.Less(t, out.Data[2*i], out.Data[2*(i-1)], "point %d", i)
		assert.Greater(t, out.Data[2*i], float32(0))
	}
	// Input untouched.
	assert.Equal(t, float32(1), s.Data[126])
}

func TestApodizeSineBellEndpoints(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{Points: 32, SweepWidth: 100, TimeDomain: true})
	for i := range s.Data {
		s.Data[i] = 1
	}
	out, err := dsp.Apodize(s, &dsp.ApodizeParams{
		Kind: dsp.ApodizeSineBell, Power: 2, Offset: 0, End: 1,
	})
	require.NoError(t, err)
	// sin^2 window is zero at the first point and peaks mid-record.
	assert.InDelta(t, 0, float64(out.Data[0]), 1e-7)
	assert.InDelta(t, 1, float64(out.Data[16]), 1e-6)
}

func TestApodizeGaussianNeedsGB(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{Points: 8, SweepWidth: 100, TimeDomain: true})
	_, err := dsp.Apodize(s, &dsp.ApodizeParams{Kind: dsp.ApodizeGaussian, LB: 1})
	require.Error(t, err)
}

func TestZeroFill(t *testing.T) {
	s := decayingFID(100, 0.1, 2)
	out, err := dsp.ZeroFill(s, 256)
	require.NoError(t, err)
	assert.Equal(t, 256, out.Axes[0].Points)
	assert.Equal(t, s.Data[:200], out.Data[:200])
	for _, v := range out.Data[200:] {
		assert.Equal(t, float32(0), v)
	}
	// Calibration metadata is preserved.
	assert.Equal(t, s.Axes[0].SweepWidth, out.Axes[0].SweepWidth)

	// Filling to the current length or less is a no-op.
	same, err := dsp.ZeroFill(s, 100)
	require.NoError(t, err)
	assert.Equal(t, s.Data, same.Data)
	same, err = dsp.ZeroFill(s, 10)
	require.NoError(t, err)
	assert.Equal(t, 100, same.Axes[0].Points)
}

func TestZeroFillAuto(t *testing.T) {
	s := decayingFID(100, 0.1, 2)
	out, err := dsp.ZeroFillAuto(s)
	require.NoError(t, err)
	assert.Equal(t, 256, out.Axes[0].Points)
}

func TestFourierRoundTrip(t *testing.T) {
	for _, n := range []int{128, 100, 63} {
		s := decayingFID(n, 0.2, 3)
		ft, err := dsp.Fourier(s, nil)
		require.NoError(t, err, "n=%d", n)
		assert.Equal(t, n, ft.Axes[0].Points)
		assert.True(t, ft.FreqDomain)

		back, err := dsp.Fourier(ft, &dsp.FourierParams{Inverse: true})
		require.NoError(t, err)
		assert.False(t, back.FreqDomain)
		for i := range s.Data {
			assert.InDelta(t, float64(s.Data[i]), float64(back.Data[i]), 1e-3,
				"n=%d point %d", n, i)
		}
	}
}

func TestFourierPeakPosition(t *testing.T) {
	// A zero-frequency signal lands at the shifted center index.
	n := 128
	s := decayingFID(n, 0, 5)
	ft, err := dsp.Fourier(s, nil)
	require.NoError(t, err)

	peak, peakVal := 0, float32(0)
	for i := 0; i < n; i++ {
		if v := ft.Data[2*i]; v > peakVal {
			peak, peakVal = i, v
		}
	}
	// fftshift puts DC at n/2, the axis reverse moves it to n/2-1.
	assert.Equal(t, n/2-1, peak)
	assert.Greater(t, peakVal, float32(0))
}

func TestFourierRejectsWrongDomain(t *testing.T) {
	s := decayingFID(32, 0.1, 1)
	ft, err := dsp.Fourier(s, nil)
	require.NoError(t, err)
	_, err = dsp.Fourier(ft, nil)
	require.Error(t, err)
	_, err = dsp.Fourier(s, &dsp.FourierParams{Inverse: true})
	require.Error(t, err)
}

func TestPhaseIdentity(t *testing.T) {
	s := decayingFID(64, 0.1, 2)
	s.FreqDomain = true
	out, err := dsp.Phase(s, &dsp.PhaseParams{})
	require.NoError(t, err)
	assert.Equal(t, s.Data, out.Data)
}

func TestPhaseRotation(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{Points: 4, SweepWidth: 8000, Complex: true})
	s.FreqDomain = true
	for i := 0; i < 4; i++ {
		s.Data[2*i] = 1
	}
	// A 90 degree zero-order correction turns pure real into pure
	// imaginary.
	out, err := dsp.Phase(s, &dsp.PhaseParams{Ph0: 90})
	require.NoError(t, err)
	for i := 0; i < 4; i++ {
		assert.InDelta(t, 0, float64(out.Data[2*i]), 1e-6)
		assert.InDelta(t, 1, float64(out.Data[2*i+1]), 1e-6)
	}

	// Two 180 degree corrections are the identity.
	once, err := dsp.Phase(s, &dsp.PhaseParams{Ph0: 180})
	require.NoError(t, err)
	twice, err := dsp.Phase(once, &dsp.PhaseParams{Ph0: 180})
	require.NoError(t, err)
	for i := range s.Data {
		assert.InDelta(t, float64(s.Data[i]), float64(twice.Data[i]), 1e-6)
	}
}

func TestPhasePivot(t *testing.T) {
	n := 8
	s := spectrum.New(spectrum.AxisParams{Points: n, SweepWidth: 8000, Complex: true})
	s.FreqDomain = true
	for i := 0; i < n; i++ {
		s.Data[2*i] = 1
	}
	pivot := 4
	out, err := dsp.Phase(s, &dsp.PhaseParams{Ph1: 90, Pivot: pivot})
	require.NoError(t, err)
	// The pivot point sees no first-order rotation.
	assert.InDelta(t, 1, float64(out.Data[2*pivot]), 1e-6)
	assert.InDelta(t, 0, float64(out.Data[2*pivot+1]), 1e-6)
}

func TestAutoPhaseRecoversKnownError(t *testing.T) {
	// Dephase a clean absorption spectrum by a known ph0 and let the
	// search undo it.
	n := 256
	s := spectrum.New(spectrum.AxisParams{Points: n, SweepWidth: 8000, Complex: true})
	s.FreqDomain = true
	for i := 0; i < n; i++ {
		d := float64(i - n/2)
		re := 100.0 / (1.0 + d*d/25.0) // Lorentzian
		im := -re * d / 5.0
		s.Data[2*i] = float32(re)
		s.Data[2*i+1] = float32(im)
	}
	skewed, err := dsp.Phase(s, &dsp.PhaseParams{Ph0: -60})
	require.NoError(t, err)

	fixed, ph0, _, err := dsp.AutoPhase(skewed)
	require.NoError(t, err)
	assert.InDelta(t, 60, ph0, 2.0)

	var sumOrig, sumFixed float64
	for i := 0; i < n; i++ {
		sumOrig += float64(s.Data[2*i])
		sumFixed += float64(fixed.Data[2*i])
	}
	assert.InDelta(t, sumOrig, sumFixed, 0.05*math.Abs(sumOrig))
}

func TestBaselinePolynomialRecovery(t *testing.T) {
	// A pure degree-2 baseline plus one narrow peak: after correction
	// the flat regions sit at zero.
	n := 512
	s := spectrum.New(spectrum.AxisParams{Points: n, SweepWidth: 8000})
	s.FreqDomain = true
	for i := 0; i < n; i++ {
		x := float64(i) / float64(n)
		s.Data[i] = float32(3.0 + 2.0*x - 4.0*x*x)
	}
	peakLo, peakHi := 240, 270
	for i := peakLo; i <= peakHi; i++ {
		s.Data[i] += 500
	}

	out, err := dsp.Baseline(s, &dsp.BaselineParams{
		Degree:  2,
		Regions: [][2]int{{0, 200}, {300, 511}},
	})
	require.NoError(t, err)
	for i := 0; i < 200; i++ {
		assert.InDelta(t, 0, float64(out.Data[i]), 1e-3, "point %d", i)
	}
	// The peak survives, minus the local baseline.
	assert.Greater(t, out.Data[250], float32(400))
}

func TestBaselineAutoRegions(t *testing.T) {
	n := 256
	s := spectrum.New(spectrum.AxisParams{Points: n, SweepWidth: 8000})
	s.FreqDomain = true
	for i := 0; i < n; i++ {
		s.Data[i] = 2.0
	}
	s.Data[100] = 1000
	out, err := dsp.Baseline(s, &dsp.BaselineParams{Degree: 0})
	require.NoError(t, err)
	assert.InDelta(t, 0, float64(out.Data[10]), 1e-3)
	assert.Greater(t, out.Data[100], float32(900))
}

func TestBaselineBadRegion(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{Points: 16, SweepWidth: 8000})
	_, err := dsp.Baseline(s, &dsp.BaselineParams{Degree: 1, Regions: [][2]int{{4, 99}}})
	require.Error(t, err)
}

func TestBaselineTooFewPoints(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{Points: 16, SweepWidth: 8000})
	_, err := dsp.Baseline(s, &dsp.BaselineParams{Degree: 5, Regions: [][2]int{{0, 2}}})
	require.ErrorIs(t, err, dsp.ErrNumerical)
}

func TestSolventSuppression(t *testing.T) {
	n := 128
	s := spectrum.New(spectrum.AxisParams{Points: n, SweepWidth: 8000, Complex: true})
	s.FreqDomain = true
	for i := range s.Data {
		s.Data[i] = 1
	}
	out, err := dsp.Solvent(s, &dsp.SolventParams{Low: 40, High: 87, TaperWidth: 8})
	require.NoError(t, err)

	// Deep interior fully zeroed.
	for i := 56; i <= 72; i++ {
		assert.Equal(t, float32(0), out.Data[2*i], "point %d", i)
		assert.Equal(t, float32(0), out.Data[2*i+1], "point %d", i)
	}
	// Outside untouched.
	assert.Equal(t, float32(1), out.Data[2*39])
	assert.Equal(t, float32(1), out.Data[2*88])
	// Taper decreases smoothly into the region.
	assert.Greater(t, out.Data[2*40], out.Data[2*42])
	assert.Greater(t, out.Data[2*42], out.Data[2*45])
	assert.Less(t, out.Data[2*40], float32(1))
}

func TestSolventBadRegion(t *testing.T) {
	s := spectrum.New(spectrum.AxisParams{Points: 16, SweepWidth: 8000, Complex: true})
	_, err := dsp.Solvent(s, &dsp.SolventParams{Low: 10, High: 3})
	require.Error(t, err)
	_, err = dsp.Solvent(s, &dsp.SolventParams{Low: 0, High: 16})
	require.Error(t, err)
}
