// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package update

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func versionFeed(t *testing.T, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.Write([]byte(body))
	}))
	t.Cleanup(ts.Close)
	return ts, &calls
}

func newTestChecker(current string, feedURL, statePath string) *Checker {
	return &Checker{
		Current:   current,
		FeedURL:   feedURL,
		StatePath: statePath,
		HTTP:      &http.Client{Timeout: time.Second},
		Now:       time.Now,
	}
}

func TestStateRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "sub", "state.yaml")
	ts := time.Date(2026, 2, 14, 8, 0, 0, 0, time.UTC)

	require.NoError(t, SaveState(path, State{LastChecked: ts, LatestVersion: "1.2.3"}))

	got := LoadState(path)
	assert.True(t, got.LastChecked.Equal(ts))
	assert.Equal(t, "1.2.3", got.LatestVersion)
}

func TestLoadStateMissingOrCorrupt(t *testing.T) {
	assert.Equal(t, State{}, LoadState(filepath.Join(t.TempDir(), "nope.yaml")))

	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("{not yaml"), 0o644))
	assert.Equal(t, State{}, LoadState(path))
}

func TestMaybeCheckOncePerDay(t *testing.T) {
	ts, calls := versionFeed(t, `{"tag_name":"v9.9.9"}`)
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	c := newTestChecker("1.0.0", ts.URL, statePath)

	var buf bytes.Buffer
	c.MaybeCheck(&buf)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Contains(t, buf.String(), "9.9.9")

	// Second run within the window performs no remote check.
	buf.Reset()
	c.MaybeCheck(&buf)
	assert.Equal(t, int32(1), atomic.LoadInt32(calls))
	assert.Empty(t, buf.String())

	// Once the window has elapsed the check runs again.
	c.Now = func() time.Time { return time.Now().Add(25 * time.Hour) }
	c.MaybeCheck(&buf)
	assert.Equal(t, int32(2), atomic.LoadInt32(calls))
}

func TestMaybeCheckDisabled(t *testing.T) {
	ts, calls := versionFeed(t, `{"tag_name":"v9.9.9"}`)
	c := newTestChecker("1.0.0", ts.URL, filepath.Join(t.TempDir(), "state.yaml"))
	c.Disabled = true

	var buf bytes.Buffer
	c.MaybeCheck(&buf)
	assert.Equal(t, int32(0), atomic.LoadInt32(calls))
	assert.Empty(t, buf.String())
}

func TestMaybeCheckSwallowsNetworkFailure(t *testing.T) {
	statePath := filepath.Join(t.TempDir(), "state.yaml")
	c := newTestChecker("1.0.0", "http://127.0.0.1:1/latest", statePath)

	var buf bytes.Buffer
	c.MaybeCheck(&buf) // must not panic or print
	assert.Empty(t, buf.String())

	// State untouched: the next run is free to retry.
	assert.Equal(t, State{}, LoadState(statePath))
}

func TestMaybeCheckUpToDatePrintsNothing(t *testing.T) {
	ts, _ := versionFeed(t, `{"tag_name":"v1.0.0"}`)
	c := newTestChecker("1.0.0", ts.URL, filepath.Join(t.TempDir(), "state.yaml"))

	var buf bytes.Buffer
	c.MaybeCheck(&buf)
	assert.Empty(t, buf.String())
}

func TestForceCheck(t *testing.T) {
	t.Run("up to date", func(t *testing.T) {
		ts, _ := versionFeed(t, `{"tag_name":"v1.0.0"}`)
		c := newTestChecker("1.0.0", ts.URL, filepath.Join(t.TempDir(), "state.yaml"))

		var buf bytes.Buffer
		require.NoError(t, c.ForceCheck(&buf))
		assert.Contains(t, buf.String(), "up to date")
	})

	t.Run("newer available", func(t *testing.T) {
		ts, _ := versionFeed(t, `{"tag_name":"v2.0.0"}`)
		c := newTestChecker("1.0.0", ts.URL, filepath.Join(t.TempDir(), "state.yaml"))

		var buf bytes.Buffer
		require.NoError(t, c.ForceCheck(&buf))
		assert.Contains(t, buf.String(), "2.0.0")
	})

	t.Run("network failure surfaces", func(t *testing.T) {
		c := newTestChecker("1.0.0", "http://127.0.0.1:1/latest", filepath.Join(t.TempDir(), "state.yaml"))
		require.Error(t, c.ForceCheck(&bytes.Buffer{}))
	})
}

func TestFetchLatestPlainVersionFeed(t *testing.T) {
	ts, _ := versionFeed(t, `{"version":"3.1.4"}`)
	c := newTestChecker("1.0.0", ts.URL, filepath.Join(t.TempDir(), "state.yaml"))

	got, err := c.fetchLatest()
	require.NoError(t, err)
	assert.Equal(t, "3.1.4", got)
}

func TestNewer(t *testing.T) {
	tests := []struct {
		current, remote string
		want            bool
	}{
		{"1.0.0", "1.0.1", true},
		{"1.0.0", "2.0.0", true},
		{"1.2.0", "1.2.0", false},
		{"2.0.0", "1.9.9", false},
		{"1.0.0", "1.0", false}, // short forms normalize to equal
		{"dev", "9.9.9", false},
		{"1.0.0", "", false},
	}
	for _, tt := range tests {
		if got := newer(tt.current, tt.remote); got != tt.want {
			t.Errorf("newer(%q, %q) = %v, want %v", tt.current, tt.remote, got, tt.want)
		}
	}
}

func TestEnvTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "TRUE", "yes", " Yes "} {
		assert.True(t, envTruthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "no"} {
		assert.False(t, envTruthy(v), v)
	}
}
