// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package httputil provides HTTP helpers shared across stages.
package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"
)

// ProbeBaseDelay controls the base duration for exponential backoff
// between readiness probes. Tests override this to avoid real sleeps.
var ProbeBaseDelay = 500 * time.Millisecond

// probeMaxDelay caps the wait between consecutive probes so a slow start
// is still noticed promptly.
const probeMaxDelay = 5 * time.Second

// ErrNotReady is returned when the endpoint never reported ready within
// the deadline.
var ErrNotReady = errors.New("endpoint did not become ready")

// WaitReady polls url with GET until it answers 200, backing off
// exponentially from ProbeBaseDelay up to probeMaxDelay. It returns nil
// once ready, ctx.Err() if the context is cancelled during a wait, and
// an error wrapping ErrNotReady when timeout elapses.
func WaitReady(ctx context.Context, client *http.Client, url string, timeout time.Duration) error {
	deadline := time.Now().Add(timeout)
	delay := ProbeBaseDelay

	for {
		if ready(ctx, client, url) {
			return nil
		}
		if time.Now().Add(delay).After(deadline) {
			return fmt.Errorf("%w after %v: %s", ErrNotReady, timeout, url)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}

		if delay *= 2; delay > probeMaxDelay {
			delay = probeMaxDelay
		}
	}
}

func ready(ctx context.Context, client *http.Client, url string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return false
	}
	resp, err := client.Do(req)
	if err != nil {
		return false
	}
	io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}
