// Package convert ties the vendor decoders together: it sniffs the
// input format, dispatches to the right decoder and writes the result
// in the canonical format. An optional external conversion tool can be
// plugged in as an alternate backend with deterministic fallback to the
// built-in decoders.
package convert

import (
	"encoding/binary"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/spinworks/nmrconv/bruker"
	"github.com/spinworks/nmrconv/delta"
	"github.com/spinworks/nmrconv/pipefmt"
	"github.com/spinworks/nmrconv/spectrum"
)

// Format identifies a recognized input file format.
type Format string

const (
	FormatUnknown Format = "unknown"
	FormatDelta   Format = "delta"
	FormatBruker  Format = "bruker"
	FormatPipe    Format = "pipe"
)

// ErrUnknownFormat is returned when a file matches no known signature.
var ErrUnknownFormat = errors.New("convert: unknown input format")

// Options is the option surface a host CLI feeds into a conversion.
// Format forces the input format; leave it FormatUnknown to sniff.
type Options struct {
	Format Format          `json:"format"`
	Delta  *delta.Options  `json:"delta,omitempty"`
	Bruker *bruker.Options `json:"bruker,omitempty"`
}

// DefaultOptions returns auto-detection with per-format defaults.
func DefaultOptions() *Options {
	return &Options{Format: FormatUnknown}
}

// Result is the shared decode result: the canonical header and the
// spectrum, tagged with the source format. DeltaHeader carries the
// vendor header when the source was a Delta file; other formats leave
// it nil.
type Result struct {
	Format      Format
	Header      *pipefmt.Fdata
	Spectrum    *spectrum.SpectrumData
	DeltaHeader *delta.Header
}

// Converter turns one vendor input file into a decode result.
type Converter interface {
	Convert(path string, opts *Options) (*Result, error)
}

// DetectFormat sniffs the file signature, falling back to name
// conventions. Best effort: an unreadable file is FormatUnknown.
func DetectFormat(path string) Format {
	f, err := os.Open(path)
	if err == nil {
		var head [12]byte
		n, _ := f.Read(head[:])
		f.Close()
		if n >= 8 && string(head[:8]) == "JEOL.NMR" {
			return FormatDelta
		}
		if n >= 12 && isPipeOrder(head[8:12]) {
			return FormatPipe
		}
	}

	if strings.EqualFold(filepath.Ext(path), ".jdf") {
		return FormatDelta
	}
	base := strings.ToLower(filepath.Base(path))
	if base == "ser" || base == "fid" {
		return FormatBruker
	}
	return FormatUnknown
}

// isPipeOrder checks word 2 for the 2.345 order marker in either byte
// order.
func isPipeOrder(b []byte) bool {
	le := math.Float32frombits(binary.LittleEndian.Uint32(b))
	be := math.Float32frombits(binary.BigEndian.Uint32(b))
	const want = 2.345
	return math.Abs(float64(le)-want) < 1e-4 || math.Abs(float64(be)-want) < 1e-4
}

// WriteResult writes the decoded spectrum to path in the canonical
// format. The file handle is released on every exit path.
func WriteResult(path string, res *Result) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("convert: create output: %w", err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("convert: close output: %w", cerr)
		}
	}()
	return pipefmt.WriteSpectrum(f, res.Header, res.Spectrum)
}

// ConvertFile is the one-call path: detect, decode and write.
func ConvertFile(c Converter, inPath, outPath string, opts *Options) (*Result, error) {
	if c == nil {
		c = NewConverter(nil)
	}
	res, err := c.Convert(inPath, opts)
	if err != nil {
		return nil, err
	}
	if err := WriteResult(outPath, res); err != nil {
		return nil, err
	}
	return res, nil
}
