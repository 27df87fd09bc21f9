package types

import "time"

// OutputConfig holds settings for file discovery and output placement.
type OutputConfig struct {
	// OutDir is the directory converted files are written to (default "output").
	OutDir string `json:"out_dir" yaml:"out_dir"`

	// Glob filters directory entries by base name (default "*").
	Glob string `json:"glob" yaml:"glob"`

	// Recursive enables descending into subdirectories.
	Recursive bool `json:"recursive" yaml:"recursive"`

	// Flat places all outputs directly under OutDir, encoding the relative
	// directory chain into the filename.
	Flat bool `json:"flat" yaml:"flat"`

	// Overwrite replaces existing output files instead of skipping them.
	Overwrite bool `json:"overwrite" yaml:"overwrite"`

	// Quiet suppresses per-file progress output.
	Quiet bool `json:"quiet" yaml:"quiet"`
}

// ContainerConfig holds settings for the conversion service container.
type ContainerConfig struct {
	// Runtime selects the container engine ("docker" or "podman").
	// Empty means auto-detect.
	Runtime string `json:"runtime,omitempty" yaml:"runtime,omitempty"`

	// Image is the conversion service image. Empty means the default
	// CPU image, or the CUDA image when GPU is set.
	Image string `json:"image,omitempty" yaml:"image,omitempty"`

	// Port is the host port bound to the service (default 5001).
	Port int `json:"port" yaml:"port"`

	// GPU requests GPU device passthrough into the container.
	GPU bool `json:"gpu" yaml:"gpu"`

	// Pull is the image pull policy: always, missing, or never.
	Pull PullPolicy `json:"pull" yaml:"pull"`

	// ConvertTimeout bounds each per-file conversion request (default 20m).
	ConvertTimeout time.Duration `json:"convert_timeout" yaml:"convert_timeout"`

	// StartupTimeout bounds the wait for the service readiness probe
	// (default 2m; model loading is slow).
	StartupTimeout time.Duration `json:"startup_timeout" yaml:"startup_timeout"`
}

// Config is the full merged configuration for a conversion run.
type Config struct {
	Output    OutputConfig    `json:"output" yaml:"output"`
	Container ContainerConfig `json:"container" yaml:"container"`
}
