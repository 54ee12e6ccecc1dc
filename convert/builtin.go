package convert

import (
	"bytes"
	"fmt"
	"os"

	"github.com/spinworks/nmrconv/bruker"
	"github.com/spinworks/nmrconv/delta"
	"github.com/spinworks/nmrconv/logging"
	"github.com/spinworks/nmrconv/pipefmt"
)

// Builtin dispatches to the in-process decoders.
type Builtin struct{}

// Convert decodes path with the decoder matching opts.Format, sniffing
// the format first when it is FormatUnknown.
func (Builtin) Convert(path string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	format := opts.Format
	if format == FormatUnknown || format == "" {
		format = DetectFormat(path)
	}
	logger := logging.WithFields(logging.Fields{
		"component": "convert",
		"function":  "Builtin.Convert",
	})
	logger.Debug("decoding input", logging.Fields{
		"path":   path,
		"format": string(format),
	})

	switch format {
	case FormatDelta:
		return convertDelta(path, opts)
	case FormatBruker:
		return convertBruker(path, opts)
	case FormatPipe:
		return convertPipe(path)
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownFormat, path)
	}
}

func convertDelta(path string, opts *Options) (*Result, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("convert: read %s: %w", path, err)
	}
	vendorHdr, err := delta.ParseHeader(raw)
	if err != nil {
		return nil, err
	}
	hdr, spec, err := delta.Decode(bytes.NewReader(raw), opts.Delta)
	if err != nil {
		return nil, err
	}
	return &Result{
		Format:      FormatDelta,
		Header:      hdr,
		Spectrum:    spec,
		DeltaHeader: vendorHdr,
	}, nil
}

func convertBruker(path string, opts *Options) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("convert: open %s: %w", path, err)
	}
	defer f.Close()
	hdr, spec, err := bruker.Decode(f, opts.Bruker)
	if err != nil {
		return nil, err
	}
	return &Result{Format: FormatBruker, Header: hdr, Spectrum: spec}, nil
}

func convertPipe(path string) (*Result, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("convert: open %s: %w", path, err)
	}
	defer f.Close()
	hdr, spec, err := pipefmt.ReadSpectrum(f)
	if err != nil {
		return nil, err
	}
	return &Result{Format: FormatPipe, Header: hdr, Spectrum: spec}, nil
}
