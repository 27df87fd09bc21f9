// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package batch drives sequential document conversion over a resolved
// work list. Items are processed strictly in order; one failure never
// halts the loop.
package batch

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/pdiddy/mdify/pkg/types"
)

// Converter transforms one source document into Markdown text. The
// docling HTTP client implements this; tests substitute fakes.
type Converter interface {
	Convert(ctx context.Context, sourcePath string) (string, error)
}

// ItemResult records the outcome for one work item.
type ItemResult struct {
	Item    types.WorkItem
	Status  types.ConversionStatus
	Err     string
	Elapsed time.Duration
}

// Summary holds the outcome of a batch run.
type Summary struct {
	OK          int
	Failed      int
	Skipped     int
	FailedPaths []string
	Elapsed     time.Duration
	Results     []ItemResult
}

// Total returns the number of items accounted for.
func (s Summary) Total() int {
	return s.OK + s.Failed + s.Skipped
}

// HasFailures reports whether any item failed.
func (s Summary) HasFailures() bool {
	return s.Failed > 0
}

// Options control batch output.
type Options struct {
	// Quiet suppresses per-item progress lines.
	Quiet bool
}

// Run converts items in order, writing each output file before the next
// item begins, and printing progress to w. A cancelled context stops the
// loop between items; the partial summary is still returned so the caller
// can report what was done.
func Run(ctx context.Context, conv Converter, items []types.WorkItem, opts Options, w io.Writer) Summary {
	start := time.Now()
	var sum Summary
	total := len(items)

	for i, item := range items {
		select {
		case <-ctx.Done():
			sum.Elapsed = time.Since(start)
			return sum
		default:
		}

		progress := fmt.Sprintf("[%d/%d]", i+1, total)
		name := filepath.Base(item.SourcePath)

		if item.Skip {
			sum.Skipped++
			sum.Results = append(sum.Results, ItemResult{Item: item, Status: types.StatusSkipped})
			if !opts.Quiet {
				fmt.Fprintf(w, "%s skipped (exists): %s\n", progress, name)
			}
			continue
		}

		itemStart := time.Now()
		err := convertOne(ctx, conv, item)
		elapsed := time.Since(itemStart)

		if err != nil {
			sum.Failed++
			sum.FailedPaths = append(sum.FailedPaths, item.SourcePath)
			sum.Results = append(sum.Results, ItemResult{
				Item: item, Status: types.StatusFailed, Err: err.Error(), Elapsed: elapsed,
			})
			if !opts.Quiet {
				fmt.Fprintf(w, "%s failed: %s (%s)\n    %v\n", progress, name, FormatDuration(elapsed), err)
			}
			continue
		}

		sum.OK++
		sum.Results = append(sum.Results, ItemResult{
			Item: item, Status: types.StatusOK, Elapsed: elapsed,
		})
		if !opts.Quiet {
			fmt.Fprintf(w, "%s converted: %s (%s)\n", progress, name, FormatDuration(elapsed))
		}
	}

	sum.Elapsed = time.Since(start)
	return sum
}

// convertOne runs the conversion and writes the target file. A write
// failure counts as a conversion failure even though the remote call
// succeeded.
func convertOne(ctx context.Context, conv Converter, item types.WorkItem) error {
	content, err := conv.Convert(ctx, item.SourcePath)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(item.TargetPath), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}
	if err := os.WriteFile(item.TargetPath, []byte(content), 0o644); err != nil {
		return fmt.Errorf("writing output: %w", err)
	}
	return nil
}

// PrintSummary writes the final tally block.
func PrintSummary(w io.Writer, s Summary) {
	fmt.Fprintf(w, "\nOK: %d, FAILED: %d, SKIPPED: %d (total: %d in %s)\n",
		s.OK, s.Failed, s.Skipped, s.Total(), FormatDuration(s.Elapsed))
	for _, p := range s.FailedPaths {
		fmt.Fprintf(w, "  failed: %s\n", p)
	}
}

// FormatDuration renders a duration the way a human reads progress lines.
func FormatDuration(d time.Duration) string {
	secs := d.Seconds()
	if secs < 60 {
		return fmt.Sprintf("%.1fs", secs)
	}
	mins := int(secs) / 60
	rem := secs - float64(mins*60)
	if mins < 60 {
		return fmt.Sprintf("%dm %.0fs", mins, rem)
	}
	return fmt.Sprintf("%dh %dm %.0fs", mins/60, mins%60, rem)
}

// FormatSize renders a byte count in human-readable units.
func FormatSize(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	value := float64(n)
	for _, suffix := range []string{"KB", "MB", "GB"} {
		value /= unit
		if value < unit {
			return fmt.Sprintf("%.1f %s", value, suffix)
		}
	}
	return fmt.Sprintf("%.1f TB", value/unit)
}
