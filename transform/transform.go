// Copyright 2026 Tinygraph ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package transform exposes the conversion pipeline entry point.
//
// Example:
//
//	opts := transform.DefaultOptions()
//	opts.Quantization = transform.QuantWeightsOnly
//	out, err := transform.Transform(g, opts)
package transform

import (
	"github.com/tinygraph-ml/tinygraph/internal/ir"
	"github.com/tinygraph-ml/tinygraph/internal/transform"
)

// Options is the conversion configuration surface.
type Options = transform.Options

// QuantizationMode selects the quantization stage.
type QuantizationMode = transform.QuantizationMode

// Quantization modes.
const (
	QuantNone        QuantizationMode = transform.QuantNone
	QuantWeightsOnly QuantizationMode = transform.QuantWeightsOnly
	QuantFull        QuantizationMode = transform.QuantFull
)

// ConfigurationError reports contradictory or missing options.
type ConfigurationError = transform.ConfigurationError

// DefaultOptions returns the default conversion configuration.
func DefaultOptions() Options {
	return transform.DefaultOptions()
}

// LoadOptions reads a YAML options file over the defaults.
func LoadOptions(path string) (Options, error) {
	return transform.LoadOptions(path)
}

// Transform runs optimization and, when configured, quantization on a loaded
// graph, returning the final graph or the first error.
func Transform(g *ir.Graph, opts Options) (*ir.Graph, error) {
	return transform.Transform(g, opts)
}
