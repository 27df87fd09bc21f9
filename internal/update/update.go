// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package update implements the daily update check against a remote
// version feed. The check is best-effort: it never affects conversion
// outcomes or the process exit code unless explicitly forced.
package update

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go.yaml.in/yaml/v3"
	"golang.org/x/mod/semver"
)

const (
	// DefaultFeedURL serves the latest release metadata.
	DefaultFeedURL = "https://api.github.com/repos/pdiddy/mdify/releases/latest"

	// EnvDisable turns the daily check off when set to a truthy value.
	EnvDisable = "MDIFY_NO_UPDATE_CHECK"

	checkInterval = 24 * time.Hour
	fetchTimeout  = 5 * time.Second
)

// State is the persisted update-check record.
type State struct {
	LastChecked   time.Time `json:"last_checked" yaml:"last_checked"`
	LatestVersion string    `json:"latest_version" yaml:"latest_version"`
}

// LoadState reads the state file at path. A missing or corrupt file
// yields a zero state so the next check proceeds.
func LoadState(path string) State {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}
	}
	var s State
	if err := yaml.Unmarshal(data, &s); err != nil {
		return State{}
	}
	return s
}

// SaveState writes the record to path, creating parent directories.
func SaveState(path string, s State) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating state directory: %w", err)
	}
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshaling update state: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// Checker compares the running version against the remote feed.
type Checker struct {
	Current   string
	FeedURL   string
	StatePath string
	HTTP      *http.Client
	Disabled  bool

	// Now is the clock source; tests override it.
	Now func() time.Time
}

// NewChecker builds a checker with defaults; the disable environment
// variable is honored here so every entry point gets the same behavior.
func NewChecker(current, statePath string) *Checker {
	return &Checker{
		Current:   current,
		FeedURL:   DefaultFeedURL,
		StatePath: statePath,
		HTTP:      &http.Client{Timeout: fetchTimeout},
		Disabled:  envTruthy(os.Getenv(EnvDisable)),
		Now:       time.Now,
	}
}

// MaybeCheck performs the daily check. All failures are swallowed: a
// broken network must never delay or fail a conversion run.
func (c *Checker) MaybeCheck(w io.Writer) {
	if c.Disabled {
		return
	}
	now := c.Now()
	st := LoadState(c.StatePath)
	if now.Sub(st.LastChecked) < checkInterval {
		return
	}

	remote, err := c.fetchLatest()
	if err != nil {
		return
	}

	st.LastChecked = now
	st.LatestVersion = remote
	_ = SaveState(c.StatePath, st)

	if newer(c.Current, remote) {
		c.notify(w, remote)
	}
}

// ForceCheck checks immediately, reporting errors to the caller.
func (c *Checker) ForceCheck(w io.Writer) error {
	remote, err := c.fetchLatest()
	if err != nil {
		return fmt.Errorf("checking for updates: %w", err)
	}

	_ = SaveState(c.StatePath, State{LastChecked: c.Now(), LatestVersion: remote})

	if !newer(c.Current, remote) {
		fmt.Fprintf(w, "mdify is up to date (version %s)\n", c.Current)
		return nil
	}
	c.notify(w, remote)
	return nil
}

func (c *Checker) notify(w io.Writer, remote string) {
	fmt.Fprintf(w, "\nA new version of mdify is available: %s (current: %s)\n", remote, c.Current)
	fmt.Fprintf(w, "Upgrade with: go install github.com/pdiddy/mdify/cmd/mdify@latest\n\n")
}

// feedResponse tolerates both a GitHub release document (tag_name) and a
// plain {"version": ...} feed.
type feedResponse struct {
	TagName string `json:"tag_name"`
	Version string `json:"version"`
}

func (c *Checker) fetchLatest() (string, error) {
	req, err := http.NewRequest(http.MethodGet, c.FeedURL, nil)
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("User-Agent", "mdify/"+c.Current)
	req.Header.Set("Accept", "application/json")

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return "", fmt.Errorf("version feed request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("version feed returned HTTP %d", resp.StatusCode)
	}

	var feed feedResponse
	if err := json.NewDecoder(resp.Body).Decode(&feed); err != nil {
		return "", fmt.Errorf("parsing version feed: %w", err)
	}

	version := feed.TagName
	if version == "" {
		version = feed.Version
	}
	version = strings.TrimPrefix(strings.TrimSpace(version), "v")
	if version == "" {
		return "", fmt.Errorf("version feed contained no version")
	}
	return version, nil
}

// newer reports whether remote is a later release than current. Dev
// builds and unparseable versions never count as outdated.
func newer(current, remote string) bool {
	cur, rem := canonical(current), canonical(remote)
	if !semver.IsValid(cur) || !semver.IsValid(rem) {
		return false
	}
	return semver.Compare(cur, rem) < 0
}

func canonical(v string) string {
	v = strings.TrimSpace(v)
	if v == "" {
		return v
	}
	if !strings.HasPrefix(v, "v") {
		v = "v" + v
	}
	return v
}

func envTruthy(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "true", "yes":
		return true
	}
	return false
}
