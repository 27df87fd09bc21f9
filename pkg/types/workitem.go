// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package types defines the data structures shared across mdify stages.
package types

// WorkItem is one resolved input/output pair in a conversion batch.
// TargetPath is unique across the batch: structured mode mirrors the
// input tree, flat mode encodes the full relative directory chain into
// the filename.
type WorkItem struct {
	// SourcePath is the absolute path of the document to convert.
	SourcePath string `json:"source_path" yaml:"source_path"`

	// TargetPath is the absolute path the Markdown output is written to.
	TargetPath string `json:"target_path" yaml:"target_path"`

	// Skip marks items whose target already exists while overwrite is off.
	// Skipped items are reported separately from successes and failures.
	Skip bool `json:"skip,omitempty" yaml:"skip,omitempty"`
}

// ConversionStatus is the per-item outcome of a batch conversion.
type ConversionStatus string

const (
	StatusOK      ConversionStatus = "ok"
	StatusFailed  ConversionStatus = "failed"
	StatusSkipped ConversionStatus = "skipped"
)

// PullPolicy governs when a container image is fetched from a registry.
type PullPolicy string

const (
	PullAlways  PullPolicy = "always"
	PullMissing PullPolicy = "missing"
	PullNever   PullPolicy = "never"
)
