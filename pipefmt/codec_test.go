package pipefmt_test

import (
	"bytes"
	"encoding/binary"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinworks/nmrconv/pipefmt"
	"github.com/spinworks/nmrconv/spectrum"
)

func testSpectrum1D(n int) *spectrum.SpectrumData {
	s := spectrum.New(spectrum.AxisParams{
		Label:      "1H",
		Points:     n,
		SweepWidth: 8000,
		ObsFreq:    500,
		Carrier:    4.7,
		Origin:     -1200,
		Units:      spectrum.UnitsSeconds,
		Complex:    true,
		TimeDomain: true,
	})
	for i := range s.Data {
		s.Data[i] = float32(math.Sin(float64(i) / 7.0))
	}
	return s
}

func TestWriteReadRoundTrip1D(t *testing.T) {
	s := testSpectrum1D(128)
	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))
	assert.Equal(t, pipefmt.HeaderBytes+len(s.Data)*4, buf.Len())

	f, got, err := pipefmt.ReadSpectrum(&buf)
	require.NoError(t, err)
	assert.Equal(t, 1, f.DimCount())
	require.Len(t, got.Axes, 1)
	assert.Equal(t, 128, got.Axes[0].Points)
	assert.True(t, got.Axes[0].Complex)
	assert.True(t, got.Axes[0].TimeDomain)
	assert.Equal(t, "1H", got.Axes[0].Label)
	assert.InDelta(t, 8000, got.Axes[0].SweepWidth, 1e-2)
	assert.InDelta(t, 500, got.Axes[0].ObsFreq, 1e-4)
	assert.Equal(t, s.Data, got.Data)
}

func TestWriteReadRoundTrip2D(t *testing.T) {
	s := spectrum.New(
		spectrum.AxisParams{Label: "1H", Points: 64, SweepWidth: 8000, ObsFreq: 500,
			Complex: true, TimeDomain: true},
		spectrum.AxisParams{Label: "15N", Points: 16, SweepWidth: 2500, ObsFreq: 50.68,
			Complex: true, TimeDomain: true},
	)
	for i := range s.Data {
		s.Data[i] = float32(i)
	}

	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))

	f, got, err := pipefmt.ReadSpectrum(&buf)
	require.NoError(t, err)
	assert.Equal(t, 2, f.DimCount())
	require.Len(t, got.Axes, 2)
	assert.Equal(t, 64, got.Axes[0].Points)
	assert.Equal(t, 16, got.Axes[1].Points)
	assert.True(t, got.Axes[1].Complex)

	// Indirect rows are counted separately in the stored size.
	rows, err := f.GetInt(pipefmt.NDSize, 2)
	require.NoError(t, err)
	assert.Equal(t, 32, rows)
	assert.Equal(t, s.Data, got.Data)
}

func TestWriteRecordsExtremes(t *testing.T) {
	s := testSpectrum1D(32)
	s.Data[5] = 42
	s.Data[9] = -17

	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))
	f, _, err := pipefmt.ReadSpectrum(&buf)
	require.NoError(t, err)
	assert.Equal(t, float32(42), f.Get(pipefmt.FDMax))
	assert.Equal(t, float32(-17), f.Get(pipefmt.FDMin))
	assert.Equal(t, float32(1), f.Get(pipefmt.FDScaleFlag))
}

func TestReadSwappedByteOrder(t *testing.T) {
	s := testSpectrum1D(64)
	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))

	// Re-emit the whole file big endian, as a big-endian producer
	// would have written it.
	raw := buf.Bytes()
	swapped := make([]byte, len(raw))
	for i := 0; i < len(raw); i += 4 {
		binary.BigEndian.PutUint32(swapped[i:], binary.LittleEndian.Uint32(raw[i:]))
	}

	_, got, err := pipefmt.ReadSpectrum(bytes.NewReader(swapped))
	require.NoError(t, err)
	assert.Equal(t, s.Data, got.Data)
}

func TestReadRejectsPlaneSizeMismatch(t *testing.T) {
	s := testSpectrum1D(32)
	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))

	// Flip the global quad flag to real while the axis record stays
	// complex: the declared plane no longer matches the axis geometry.
	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[4*pipefmt.FDQuadFlag:],
		math.Float32bits(pipefmt.QuadReal))
	_, _, err := pipefmt.ReadSpectrum(bytes.NewReader(raw))
	require.ErrorIs(t, err, pipefmt.ErrInvalidHeader)
}

func TestReadRejectsZeroSweepWidth(t *testing.T) {
	s := testSpectrum1D(16)
	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))

	// Zero out the direct-axis sweep width slot (word 100).
	raw := buf.Bytes()
	binary.LittleEndian.PutUint32(raw[4*100:], 0)
	_, _, err := pipefmt.ReadSpectrum(bytes.NewReader(raw))
	require.Error(t, err)
}

func TestReadTruncatedData(t *testing.T) {
	s := testSpectrum1D(64)
	var buf bytes.Buffer
	require.NoError(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))

	short := buf.Bytes()[:buf.Len()-10]
	_, _, err := pipefmt.ReadSpectrum(bytes.NewReader(short))
	require.Error(t, err)
}

func TestWriteRejectsInvalidSpectrum(t *testing.T) {
	s := testSpectrum1D(16)
	s.Data = s.Data[:5]
	var buf bytes.Buffer
	require.Error(t, pipefmt.WriteSpectrum(&buf, pipefmt.NewFdata(), s))
}
