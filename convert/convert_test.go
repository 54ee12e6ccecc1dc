package convert_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spinworks/nmrconv/convert"
	"github.com/spinworks/nmrconv/delta"
	"github.com/spinworks/nmrconv/dsp"
	"github.com/spinworks/nmrconv/pipefmt"
	"github.com/spinworks/nmrconv/spectrum"
)

// writeDeltaFixture builds a minimal 1D complex little-endian Delta
// file with n acquired points of a decaying oscillation.
func writeDeltaFixture(t *testing.T, path string, n int) {
	t.Helper()
	hdr := make([]byte, delta.HeaderSize)
	copy(hdr, delta.Magic)
	hdr[8] = 1 // little endian
	hdr[12] = 1
	hdr[14] = 1<<6 | delta.Format1D
	hdr[24] = delta.AxisComplex
	hdr[33] = 28 // seconds
	binary.LittleEndian.PutUint32(hdr[176:], uint32(n))
	binary.LittleEndian.PutUint32(hdr[240:], uint32(n-1))
	binary.LittleEndian.PutUint64(hdr[336:], math.Float64bits(float64(n)/8000.0))
	copy(hdr[808:], "proton")
	binary.LittleEndian.PutUint64(hdr[1064:], math.Float64bits(500.0))
	binary.LittleEndian.PutUint32(hdr[1284:], uint32(delta.HeaderSize))
	binary.LittleEndian.PutUint64(hdr[1288:], uint64(2*n*4))

	var buf bytes.Buffer
	buf.Write(hdr)
	word := func(v float64) {
		var w [4]byte
		binary.LittleEndian.PutUint32(w[:], math.Float32bits(float32(v)))
		buf.Write(w[:])
	}
	for i := 0; i < n; i++ { // real channel
		t := float64(i) / float64(n)
		word(math.Exp(-3*t) * math.Cos(2*math.Pi*0.1*float64(i)))
	}
	for i := 0; i < n; i++ { // imaginary channel
		t := float64(i) / float64(n)
		word(-math.Exp(-3*t) * math.Sin(2*math.Pi*0.1*float64(i)))
	}
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))
}

func writePipeFixture(t *testing.T, path string) {
	t.Helper()
	s := spectrum.New(spectrum.AxisParams{
		Label: "1H", Points: 32, SweepWidth: 8000, ObsFreq: 500,
		Complex: true, TimeDomain: true,
	})
	for i := range s.Data {
		s.Data[i] = float32(i)
	}
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, pipefmt.WriteSpectrum(f, pipefmt.NewFdata(), s))
}

func TestDetectFormat(t *testing.T) {
	dir := t.TempDir()

	jdf := filepath.Join(dir, "sample.jdf")
	writeDeltaFixture(t, jdf, 16)
	assert.Equal(t, convert.FormatDelta, convert.DetectFormat(jdf))

	pipe := filepath.Join(dir, "spectrum.ft")
	writePipeFixture(t, pipe)
	assert.Equal(t, convert.FormatPipe, convert.DetectFormat(pipe))

	ser := filepath.Join(dir, "ser")
	require.NoError(t, os.WriteFile(ser, make([]byte, 64), 0o644))
	assert.Equal(t, convert.FormatBruker, convert.DetectFormat(ser))

	fid := filepath.Join(dir, "fid")
	require.NoError(t, os.WriteFile(fid, make([]byte, 64), 0o644))
	assert.Equal(t, convert.FormatBruker, convert.DetectFormat(fid))

	// Extension wins for an unreadable path.
	assert.Equal(t, convert.FormatDelta, convert.DetectFormat(filepath.Join(dir, "missing.jdf")))

	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("not a spectrum"), 0o644))
	assert.Equal(t, convert.FormatUnknown, convert.DetectFormat(junk))
}

func TestBuiltinConvertDelta(t *testing.T) {
	dir := t.TempDir()
	jdf := filepath.Join(dir, "sample.jdf")
	writeDeltaFixture(t, jdf, 64)

	res, err := convert.Builtin{}.Convert(jdf, nil)
	require.NoError(t, err)
	assert.Equal(t, convert.FormatDelta, res.Format)
	require.NotNil(t, res.DeltaHeader)
	assert.Equal(t, 1, res.DeltaHeader.DimCount)
	assert.Equal(t, 64, res.Spectrum.Axes[0].Points)

	out := filepath.Join(dir, "out.fid")
	require.NoError(t, convert.WriteResult(out, res))
	_, got, err := pipefmt.ReadSpectrum(mustOpen(t, out))
	require.NoError(t, err)
	assert.Equal(t, res.Spectrum.Data, got.Data)
}

func TestBuiltinConvertUnknown(t *testing.T) {
	dir := t.TempDir()
	junk := filepath.Join(dir, "junk.bin")
	require.NoError(t, os.WriteFile(junk, []byte("garbage"), 0o644))
	_, err := convert.Builtin{}.Convert(junk, nil)
	require.ErrorIs(t, err, convert.ErrUnknownFormat)
}

// stubRunner fakes an external tool.
type stubRunner struct {
	available bool
	fail      bool
	output    string
	calls     int
}

func (s *stubRunner) Available() bool { return s.available }

func (s *stubRunner) Run(path string, opts *convert.Options) (string, error) {
	s.calls++
	if s.fail {
		return "", errors.New("tool exploded")
	}
	return s.output, nil
}

func TestExternalFallsBackToBuiltin(t *testing.T) {
	dir := t.TempDir()
	jdf := filepath.Join(dir, "sample.jdf")
	writeDeltaFixture(t, jdf, 32)

	runner := &stubRunner{available: true, fail: true}
	c := convert.NewConverter(runner)
	res, err := c.Convert(jdf, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, convert.FormatDelta, res.Format)
	assert.Equal(t, 32, res.Spectrum.Axes[0].Points)
}

func TestExternalOutputIsUsed(t *testing.T) {
	dir := t.TempDir()
	pipe := filepath.Join(dir, "converted.fid")
	writePipeFixture(t, pipe)

	runner := &stubRunner{available: true, output: pipe}
	c := convert.NewConverter(runner)
	res, err := c.Convert(filepath.Join(dir, "whatever.jdf"), nil)
	require.NoError(t, err)
	assert.Equal(t, 1, runner.calls)
	assert.Equal(t, 32, res.Spectrum.Axes[0].Points)
}

func TestUnavailableRunnerSkipsExternal(t *testing.T) {
	dir := t.TempDir()
	jdf := filepath.Join(dir, "sample.jdf")
	writeDeltaFixture(t, jdf, 16)

	runner := &stubRunner{available: false}
	c := convert.NewConverter(runner)
	_, err := c.Convert(jdf, nil)
	require.NoError(t, err)
	assert.Equal(t, 0, runner.calls)
}

// TestProcessDecodedSpectrum runs the full chain the host application
// performs: decode, window, zero-fill, transform, phase.
func TestProcessDecodedSpectrum(t *testing.T) {
	dir := t.TempDir()
	jdf := filepath.Join(dir, "sample.jdf")
	writeDeltaFixture(t, jdf, 1024)

	res, err := convert.Builtin{}.Convert(jdf, nil)
	require.NoError(t, err)
	s := res.Spectrum
	require.Equal(t, 1024, s.Axes[0].Points)

	s, err = dsp.Apodize(s, &dsp.ApodizeParams{Kind: dsp.ApodizeExponential, LB: 1})
	require.NoError(t, err)
	s, err = dsp.ZeroFill(s, 2048)
	require.NoError(t, err)
	s, err = dsp.Fourier(s, nil)
	require.NoError(t, err)
	s, err = dsp.Phase(s, &dsp.PhaseParams{Ph0: 90})
	require.NoError(t, err)

	assert.Equal(t, 2048, s.Axes[0].Points)
	assert.True(t, s.FreqDomain)

	// The line sits somewhere on the axis with a positive absorption
	// maximum well above the baseline noise.
	var peak float32
	for i := 0; i < 2048; i++ {
		if v := s.Data[2*i]; v > peak {
			peak = v
		}
	}
	assert.Greater(t, peak, float32(10))
}

func mustOpen(t *testing.T, path string) *os.File {
	t.Helper()
	f, err := os.Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { f.Close() })
	return f
}
