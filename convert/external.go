package convert

import (
	"errors"
	"fmt"
	"os"

	"github.com/spinworks/nmrconv/logging"
	"github.com/spinworks/nmrconv/pipefmt"
)

// ErrExternalTool wraps any failure of an external conversion backend.
var ErrExternalTool = errors.New("convert: external tool failed")

// ToolRunner abstracts a host-supplied native conversion toolchain. Run
// converts the input file to a canonical-format file and returns its
// path.
type ToolRunner interface {
	// Available reports whether the tool can be used at all. Probed
	// once, at converter construction.
	Available() bool
	// Run converts path and returns the produced canonical file.
	Run(path string, opts *Options) (string, error)
}

// External decodes by delegating to a ToolRunner and reading its
// canonical output back.
type External struct {
	runner ToolRunner
}

// Convert runs the external tool on path. Any tool failure is wrapped
// in ErrExternalTool so callers can distinguish it from decode errors.
func (e *External) Convert(path string, opts *Options) (*Result, error) {
	if opts == nil {
		opts = DefaultOptions()
	}
	outPath, err := e.runner.Run(path, opts)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrExternalTool, err)
	}
	f, err := os.Open(outPath)
	if err != nil {
		return nil, fmt.Errorf("%w: open tool output: %v", ErrExternalTool, err)
	}
	defer f.Close()
	hdr, spec, err := pipefmt.ReadSpectrum(f)
	if err != nil {
		return nil, fmt.Errorf("%w: read tool output: %v", ErrExternalTool, err)
	}
	format := opts.Format
	if format == FormatUnknown || format == "" {
		format = DetectFormat(path)
	}
	return &Result{Format: format, Header: hdr, Spectrum: spec}, nil
}

// fallback tries the external backend first and falls back to the
// builtin decoders when, and only when, the tool itself fails.
type fallback struct {
	external *External
	builtin  Builtin
}

func (f *fallback) Convert(path string, opts *Options) (*Result, error) {
	res, err := f.external.Convert(path, opts)
	if err == nil {
		return res, nil
	}
	if !errors.Is(err, ErrExternalTool) {
		return nil, err
	}
	logging.WithFields(logging.Fields{
		"component": "convert",
		"function":  "fallback.Convert",
	}).Warn("external tool failed, using builtin decoder", logging.Fields{
		"path":  path,
		"error": err.Error(),
	})
	return f.builtin.Convert(path, opts)
}

// NewConverter composes the conversion strategy. With a nil or
// unavailable runner the builtin decoders are used directly; otherwise
// the external tool runs first with deterministic fallback to builtin
// on tool failure.
func NewConverter(runner ToolRunner) Converter {
	if runner == nil || !runner.Available() {
		return Builtin{}
	}
	return &fallback{external: &External{runner: runner}}
}
