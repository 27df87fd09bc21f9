// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package container

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/pdiddy/mdify/internal/httputil"
)

// namePrefix names service containers; the stale-container sweep matches
// on it too.
const namePrefix = "mdify-serve-"

// servicePort is the port docling-serve listens on inside the container.
const servicePort = 5001

// healthPath is the service readiness probe endpoint.
const healthPath = "/health"

// ErrStartupTimeout is returned when the service never reports ready
// within the startup timeout.
var ErrStartupTimeout = errors.New("conversion service failed to become ready")

// ErrGPUUnavailable is returned when GPU passthrough was requested but the
// engine could not start the container with it.
var ErrGPUUnavailable = errors.New("gpu passthrough unavailable")

// SessionOptions configure one conversion service session.
type SessionOptions struct {
	Image          string
	Port           int
	GPU            bool
	ConvertTimeout time.Duration
	StartupTimeout time.Duration
}

// Session owns one running conversion service container. A single session
// backs an entire batch: the service loads its models once and then
// serves every file.
type Session struct {
	rt      Runtime
	name    string
	id      string
	port    int
	stopped bool
}

// StartSession starts the service container and waits for its readiness
// probe. On any failure after the container started, the container is
// stopped before returning.
func StartSession(ctx context.Context, rt Runtime, opts SessionOptions, w io.Writer) (*Session, error) {
	sweepStale(rt, w)

	name := namePrefix + uuid.NewString()[:8]
	env := map[string]string{
		"DOCLING_SERVE_MAX_SYNC_WAIT": strconv.Itoa(int(opts.ConvertTimeout.Seconds())),
	}

	id, err := rt.StartDetached(RunOptions{
		Name:          name,
		Image:         opts.Image,
		HostPort:      opts.Port,
		ContainerPort: servicePort,
		Env:           env,
		GPU:           opts.GPU,
	})
	if err != nil {
		if opts.GPU && gpuStartFailure(err) {
			return nil, fmt.Errorf("%w: %v", ErrGPUUnavailable, err)
		}
		return nil, fmt.Errorf("starting conversion service: %w", err)
	}

	s := &Session{rt: rt, name: name, id: id, port: opts.Port}

	probeClient := &http.Client{Timeout: 3 * time.Second}
	if err := httputil.WaitReady(ctx, probeClient, s.BaseURL()+healthPath, opts.StartupTimeout); err != nil {
		s.Stop(w)
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return nil, err
		}
		return nil, fmt.Errorf("%w within %v", ErrStartupTimeout, opts.StartupTimeout)
	}
	return s, nil
}

// BaseURL returns the service endpoint for this session.
func (s *Session) BaseURL() string {
	return fmt.Sprintf("http://localhost:%d", s.port)
}

// ContainerID returns the engine-assigned container ID.
func (s *Session) ContainerID() string { return s.id }

// Stop stops and removes the container. Safe to call multiple times.
// Failures are logged to w and never abort the caller: a batch that
// converted its files should not fail on teardown.
func (s *Session) Stop(w io.Writer) {
	if s.stopped {
		return
	}
	s.stopped = true
	if err := s.rt.Stop(s.name); err != nil {
		fmt.Fprintf(w, "warning: %v\n", err)
	}
}

// gpuStartFailure reports whether an engine start error looks like a
// device passthrough problem. A GPU run can also fail for reasons that
// have nothing to do with the GPU (bound port, name conflict); those
// keep their engine error instead of being blamed on passthrough.
func gpuStartFailure(err error) bool {
	msg := strings.ToLower(err.Error())
	for _, sig := range []string{"gpu", "nvidia", "cdi", "device", "driver"} {
		if strings.Contains(msg, sig) {
			return true
		}
	}
	return false
}

// sweepStale stops leftover service containers from previous runs that
// crashed or were killed before teardown.
func sweepStale(rt Runtime, w io.Writer) {
	names, err := rt.ListNames(namePrefix)
	if err != nil {
		return
	}
	for _, name := range names {
		if err := rt.Stop(name); err != nil {
			fmt.Fprintf(w, "warning: stale container %s: %v\n", name, err)
		}
	}
}
