package transform

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tinygraph-ml/tinygraph/internal/quant"
)

// QuantizationMode selects the quantization stage.
type QuantizationMode string

// Quantization modes.
const (
	QuantNone        QuantizationMode = "none"
	QuantWeightsOnly QuantizationMode = "weights"
	QuantFull        QuantizationMode = "full"
)

// Options is the conversion configuration surface. The pipeline consumes it;
// flag parsing and file handling live with the caller.
type Options struct {
	Quantization  QuantizationMode `yaml:"quantization"`
	FuseOps       bool             `yaml:"fuse_ops"`
	FoldConstants bool             `yaml:"fold_constants"`
	TargetBackend string           `yaml:"target_backend"`
	// BestEffort makes the optimizer log and skip failing passes instead of
	// aborting. Off by default: fail safe for a graph that feeds a release
	// model.
	BestEffort bool `yaml:"best_effort"`

	// Calibration supplies input batches for full quantization. Not
	// representable in a config file; the caller wires it in.
	Calibration quant.Dataset `yaml:"-"`
}

// DefaultOptions returns the default conversion configuration.
func DefaultOptions() Options {
	return Options{
		Quantization:  QuantNone,
		FuseOps:       true,
		FoldConstants: true,
		TargetBackend: "generic",
	}
}

// ConfigurationError reports contradictory or missing options. Fatal at the
// stage boundary, surfaced before any graph mutation.
type ConfigurationError struct {
	Reason string
}

// Error implements the error interface.
func (e *ConfigurationError) Error() string {
	return "configuration: " + e.Reason
}

// Validate checks the options for internal consistency.
func (o *Options) Validate() error {
	switch o.Quantization {
	case QuantNone, QuantWeightsOnly, QuantFull:
	default:
		return &ConfigurationError{Reason: fmt.Sprintf("unknown quantization mode %q", o.Quantization)}
	}
	if o.Quantization == QuantFull && o.Calibration == nil {
		return &ConfigurationError{Reason: "full quantization requires a calibration dataset"}
	}
	return nil
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions()

	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("read options: %w", err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("parse options %s: %w", path, err)
	}
	return opts, nil
}
