package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdify/internal/batch"
	"github.com/pdiddy/mdify/internal/container"
	"github.com/pdiddy/mdify/internal/docling"
	"github.com/pdiddy/mdify/internal/history"
	"github.com/pdiddy/mdify/internal/resolve"
	"github.com/pdiddy/mdify/internal/update"
	"github.com/pdiddy/mdify/pkg/types"
)

const (
	defaultConvertTimeout = 1200 // seconds; model-heavy documents are slow
	defaultStartupTimeout = 120  // seconds
	defaultPort           = 5001
)

func init() {
	f := rootCmd.Flags()
	f.StringP("out-dir", "o", "output", "output directory for converted files")
	f.StringP("glob", "g", "*", "glob pattern for filtering files in a directory")
	f.BoolP("recursive", "r", false, "recursively scan directories")
	f.Bool("flat", false, "flatten directory structure into output filenames")
	f.Bool("overwrite", false, "overwrite existing output files")
	f.BoolP("quiet", "q", false, "suppress progress messages")
	f.Bool("gpu", false, "use the GPU-accelerated service image and request device passthrough")
	f.Int("port", defaultPort, "host port for the conversion service")
	f.String("runtime", "", "container runtime: docker or podman (default: auto-detect)")
	f.String("image", "", "container image override")
	f.String("pull", "missing", "image pull policy: always, missing, never")
	f.Int("timeout", 0, "per-file conversion timeout in seconds (default 1200, or MDIFY_TIMEOUT)")
	f.Int("startup-timeout", defaultStartupTimeout, "seconds to wait for the service to become ready")
	f.Bool("check-update", false, "check for a newer release and exit")
	f.Bool("no-history", false, "do not record this batch in the history database")
}

func runConvert(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()

	home, err := mdifyHome()
	if err != nil {
		return err
	}

	checker := update.NewChecker(version, filepath.Join(home, "state.yaml"))
	if force, _ := cmd.Flags().GetBool("check-update"); force {
		return checker.ForceCheck(out)
	}
	// Daily best-effort check; failures are invisible.
	checker.MaybeCheck(out)

	if len(args) == 0 {
		return fmt.Errorf("input file or directory is required (see mdify --help)")
	}
	input := args[0]

	cfg := loadConfig(cmd)

	items, err := resolve.Resolve(input, resolve.Options{
		Glob:      cfg.Output.Glob,
		Recursive: cfg.Output.Recursive,
		OutDir:    cfg.Output.OutDir,
		Flat:      cfg.Output.Flat,
		Overwrite: cfg.Output.Overwrite,
	})
	if err != nil {
		return err
	}

	rt, err := container.Detect(cfg.Container.Runtime)
	if err != nil {
		return err
	}

	image := cfg.Container.Image
	if image == "" {
		image = container.DefaultImage
		if cfg.Container.GPU {
			image = container.GPUImage
		}
	}

	quiet := cfg.Output.Quiet
	pullOut := io.Writer(out)
	if quiet {
		pullOut = io.Discard
	}
	if err := container.EnsureImage(rt, image, cfg.Container.Pull, pullOut); err != nil {
		return err
	}

	if !quiet {
		fmt.Fprintf(out, "Found %d file(s) to convert (%s)\n", len(items), batch.FormatSize(totalSize(items)))
		fmt.Fprintf(out, "Using runtime: %s\n", rt.Name())
		fmt.Fprintf(out, "Using image: %s\n\n", image)
		fmt.Fprintln(out, "Starting conversion service...")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	startedAt := time.Now()
	session, err := container.StartSession(ctx, rt, container.SessionOptions{
		Image:          image,
		Port:           cfg.Container.Port,
		GPU:            cfg.Container.GPU,
		ConvertTimeout: cfg.Container.ConvertTimeout,
		StartupTimeout: cfg.Container.StartupTimeout,
	}, os.Stderr)
	if err != nil {
		return err
	}
	// The session is released on every exit path, interrupt included.
	defer session.Stop(os.Stderr)

	client := docling.New(session.BaseURL(), cfg.Container.ConvertTimeout)
	summary := batch.Run(ctx, client, items, batch.Options{Quiet: quiet}, out)
	batch.PrintSummary(out, summary)

	if noHistory, _ := cmd.Flags().GetBool("no-history"); !noHistory {
		recordHistory(filepath.Join(home, "history.db"), startedAt, rt.Name(), image, summary)
	}

	if ctx.Err() != nil {
		return fmt.Errorf("interrupted after %d file(s): %w", summary.Total(), context.Canceled)
	}
	if summary.HasFailures() {
		return fmt.Errorf("%d file(s) failed conversion", summary.Failed)
	}
	return nil
}

// loadConfig merges flags over config-file/env values over defaults.
func loadConfig(cmd *cobra.Command) types.Config {
	var cfg types.Config

	cfg.Output.OutDir = stringSetting(cmd, "out-dir", "output")
	cfg.Output.Glob = stringSetting(cmd, "glob", "*")
	cfg.Output.Recursive = boolSetting(cmd, "recursive")
	cfg.Output.Flat = boolSetting(cmd, "flat")
	cfg.Output.Overwrite = boolSetting(cmd, "overwrite")
	cfg.Output.Quiet = boolSetting(cmd, "quiet")

	cfg.Container.Runtime = stringSetting(cmd, "runtime", "")
	cfg.Container.Image = stringSetting(cmd, "image", "")
	cfg.Container.Port = intSetting(cmd, "port", defaultPort)
	cfg.Container.GPU = boolSetting(cmd, "gpu")
	cfg.Container.Pull = types.PullPolicy(stringSetting(cmd, "pull", "missing"))
	cfg.Container.ConvertTimeout = time.Duration(intSetting(cmd, "timeout", defaultConvertTimeout)) * time.Second
	cfg.Container.StartupTimeout = time.Duration(intSetting(cmd, "startup-timeout", defaultStartupTimeout)) * time.Second

	return cfg
}

// stringSetting resolves flag > config/env > default.
func stringSetting(cmd *cobra.Command, name, def string) string {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetString(name)
		return v
	}
	if v := viper.GetString(name); v != "" {
		return v
	}
	return def
}

func intSetting(cmd *cobra.Command, name string, def int) int {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetInt(name)
		return v
	}
	if v := viper.GetInt(name); v > 0 {
		return v
	}
	return def
}

func boolSetting(cmd *cobra.Command, name string) bool {
	if cmd.Flags().Changed(name) {
		v, _ := cmd.Flags().GetBool(name)
		return v
	}
	return viper.GetBool(name)
}

func totalSize(items []types.WorkItem) int64 {
	var total int64
	for _, item := range items {
		if info, err := os.Stat(item.SourcePath); err == nil {
			total += info.Size()
		}
	}
	return total
}

// recordHistory persists the batch outcome. Best-effort: a history error
// is a warning, never a batch failure.
func recordHistory(dbPath string, startedAt time.Time, runtimeName, image string, sum batch.Summary) {
	store, err := history.Open(dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording history: %v\n", err)
		return
	}
	defer store.Close()

	files := make([]history.FileRecord, len(sum.Results))
	for i, r := range sum.Results {
		files[i] = history.FileRecord{
			Source:  r.Item.SourcePath,
			Target:  r.Item.TargetPath,
			Status:  string(r.Status),
			Error:   r.Err,
			Elapsed: r.Elapsed,
		}
	}

	if _, err := store.Record(history.BatchRecord{
		StartedAt: startedAt,
		Runtime:   runtimeName,
		Image:     image,
		OK:        sum.OK,
		Failed:    sum.Failed,
		Skipped:   sum.Skipped,
		Elapsed:   sum.Elapsed,
	}, files); err != nil {
		fmt.Fprintf(os.Stderr, "warning: recording history: %v\n", err)
	}
}
