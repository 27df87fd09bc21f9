// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package container implements container runtime detection and the
// lifecycle of the conversion service session.
package container

import (
	"errors"
	"fmt"
	"io"
	"os/exec"
	"sort"
	"strings"

	"github.com/pdiddy/mdify/pkg/types"
)

const (
	binDocker = "docker"
	binPodman = "podman"
)

// Default images for the docling-serve conversion service.
const (
	DefaultImage = "ghcr.io/docling-project/docling-serve-cpu:main"
	GPUImage     = "ghcr.io/docling-project/docling-serve-cu126:main"
)

// ErrNoRuntime is returned when no container engine responds. Callers map
// it to a distinct exit code.
var ErrNoRuntime = errors.New("no container runtime available")

// ErrImageMissing is returned under pull policy "never" when the image is
// not present locally.
var ErrImageMissing = errors.New("image not found locally")

// RunOptions describe a detached service container start.
type RunOptions struct {
	Name          string
	Image         string
	HostPort      int
	ContainerPort int
	Env           map[string]string
	GPU           bool
}

// Runtime provides container operations: checking availability, verifying
// and pulling images, and starting/stopping service containers.
type Runtime interface {
	// Name returns the runtime name ("docker" or "podman").
	Name() string

	// Available reports whether the runtime binary exists on PATH and
	// responds to an info command.
	Available() bool

	// ImageExists checks whether the named image exists locally.
	// Returns nil when the image is found, or an error describing the failure.
	ImageExists(image string) error

	// Pull fetches the image from its registry, streaming progress to w.
	Pull(image string, w io.Writer) error

	// StartDetached starts a background container and returns its ID.
	StartDetached(opts RunOptions) (string, error)

	// Stop stops a container by name or ID.
	Stop(name string) error

	// ListNames returns the names of running containers whose name starts
	// with prefix.
	ListNames(prefix string) ([]string, error)
}

// executor abstracts command execution for testing.
type executor interface {
	LookPath(file string) (string, error)
	RunSilent(name string, args ...string) error
	RunOutput(name string, args ...string) (string, error)
	RunStream(name string, args []string, stdout, stderr io.Writer) error
}

// osExecutor is the production executor backed by os/exec.
type osExecutor struct{}

func (o *osExecutor) LookPath(file string) (string, error) {
	return exec.LookPath(file)
}

func (o *osExecutor) RunSilent(name string, args ...string) error {
	return exec.Command(name, args...).Run()
}

func (o *osExecutor) RunOutput(name string, args ...string) (string, error) {
	out, err := exec.Command(name, args...).Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && len(exitErr.Stderr) > 0 {
			return "", fmt.Errorf("%s: %s", err, strings.TrimSpace(string(exitErr.Stderr)))
		}
		return "", err
	}
	return string(out), nil
}

func (o *osExecutor) RunStream(name string, args []string, stdout, stderr io.Writer) error {
	cmd := exec.Command(name, args...)
	cmd.Stdout = stdout
	cmd.Stderr = stderr
	return cmd.Run()
}

// runtime implements Runtime for a specific container binary. Docker and
// Podman share the same logic; they differ in the subcommand used to
// check image existence and in the GPU passthrough arguments.
type runtime struct {
	bin           string
	imageCheckCmd []string // e.g. ["image", "inspect"] for docker
	gpuArgs       []string
	exec          executor
}

func (r *runtime) Name() string { return r.bin }

func (r *runtime) Available() bool {
	if _, err := r.exec.LookPath(r.bin); err != nil {
		return false
	}
	return r.exec.RunSilent(r.bin, "info") == nil
}

func (r *runtime) ImageExists(image string) error {
	args := make([]string, 0, len(r.imageCheckCmd)+1)
	args = append(args, r.imageCheckCmd...)
	args = append(args, image)

	if err := r.exec.RunSilent(r.bin, args...); err != nil {
		return fmt.Errorf("image %s not found in %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) Pull(image string, w io.Writer) error {
	if err := r.exec.RunStream(r.bin, []string{"pull", image}, w, w); err != nil {
		return fmt.Errorf("pulling image %s with %s: %w", image, r.bin, err)
	}
	return nil
}

func (r *runtime) StartDetached(opts RunOptions) (string, error) {
	args := []string{
		"run", "-d", "--rm",
		"--name", opts.Name,
		"-p", fmt.Sprintf("%d:%d", opts.HostPort, opts.ContainerPort),
	}
	for _, k := range sortedKeys(opts.Env) {
		args = append(args, "-e", k+"="+opts.Env[k])
	}
	if opts.GPU {
		args = append(args, r.gpuArgs...)
	}
	args = append(args, opts.Image)

	out, err := r.exec.RunOutput(r.bin, args...)
	if err != nil {
		return "", fmt.Errorf("starting %s container from %s: %w", r.bin, opts.Image, err)
	}
	return strings.TrimSpace(out), nil
}

func (r *runtime) Stop(name string) error {
	if err := r.exec.RunSilent(r.bin, "stop", name); err != nil {
		return fmt.Errorf("stopping container %s: %w", name, err)
	}
	return nil
}

func (r *runtime) ListNames(prefix string) ([]string, error) {
	out, err := r.exec.RunOutput(r.bin, "ps", "--filter", "name="+prefix, "--format", "{{.Names}}")
	if err != nil {
		return nil, fmt.Errorf("listing containers: %w", err)
	}
	var names []string
	for _, line := range strings.Split(out, "\n") {
		if line = strings.TrimSpace(line); line != "" {
			names = append(names, line)
		}
	}
	return names, nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func newDockerRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binDocker,
		imageCheckCmd: []string{"image", "inspect"},
		gpuArgs:       []string{"--gpus", "all"},
		exec:          exec,
	}
}

func newPodmanRuntime(exec executor) *runtime {
	return &runtime{
		bin:           binPodman,
		imageCheckCmd: []string{"image", "exists"},
		gpuArgs:       []string{"--device", "nvidia.com/gpu=all"},
		exec:          exec,
	}
}

var defaultExec = &osExecutor{}

// Detect finds a working container engine. When preferred is set
// ("docker" or "podman") only that engine is probed; otherwise docker is
// tried first with podman as fallback.
func Detect(preferred string) (Runtime, error) {
	return detect(preferred, defaultExec)
}

func detect(preferred string, exec executor) (Runtime, error) {
	switch preferred {
	case binDocker:
		if rt := newDockerRuntime(exec); rt.Available() {
			return rt, nil
		}
		return nil, fmt.Errorf("%w: %s not found or not operational", ErrNoRuntime, binDocker)
	case binPodman:
		if rt := newPodmanRuntime(exec); rt.Available() {
			return rt, nil
		}
		return nil, fmt.Errorf("%w: %s not found or not operational", ErrNoRuntime, binPodman)
	case "":
	default:
		return nil, fmt.Errorf("unsupported container runtime %q (expected %s or %s)", preferred, binDocker, binPodman)
	}

	if docker := newDockerRuntime(exec); docker.Available() {
		return docker, nil
	}
	if podman := newPodmanRuntime(exec); podman.Available() {
		return podman, nil
	}
	return nil, fmt.Errorf("%w: neither %s nor %s found or operational", ErrNoRuntime, binDocker, binPodman)
}

// EnsureImage applies the pull policy before a session starts. Pull
// failures are fatal for the batch: without the image no conversion can
// proceed.
func EnsureImage(rt Runtime, image string, policy types.PullPolicy, w io.Writer) error {
	switch policy {
	case types.PullAlways:
		return rt.Pull(image, w)
	case types.PullMissing, "":
		if rt.ImageExists(image) == nil {
			return nil
		}
		return rt.Pull(image, w)
	case types.PullNever:
		if err := rt.ImageExists(image); err != nil {
			return fmt.Errorf("%w: %s (pull manually: %s pull %s)", ErrImageMissing, image, rt.Name(), image)
		}
		return nil
	default:
		return fmt.Errorf("unknown pull policy %q (expected always, missing, or never)", policy)
	}
}
