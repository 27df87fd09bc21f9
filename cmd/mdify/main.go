// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package main is the entry point for the mdify CLI. The host process
// only orchestrates: file discovery, container lifecycle, and the
// per-file exchange with the conversion service. All document parsing
// happens inside the service container.
package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/mdify/internal/container"
)

// version is set at build time via ldflags.
var version = "dev"

// Exit codes. A missing container runtime gets its own code so wrapper
// scripts can tell "install docker" apart from "a file failed".
const (
	exitOK          = 0
	exitFailure     = 1
	exitNoRuntime   = 2
	exitInterrupted = 130
)

// rootCmd converts documents; mdify is a single-purpose tool so the root
// command does the work itself.
var rootCmd = &cobra.Command{
	Use:   "mdify [input]",
	Short: "Convert documents to Markdown using a containerized conversion service",
	Long: `mdify converts local documents to Markdown by driving a docling-serve
container. The CLI itself performs no parsing or OCR: it discovers input
files, starts the service once per batch, submits files sequentially, and
writes the results next to a summary of what succeeded and what failed.

Examples:
  mdify document.pdf                    Convert a single file
  mdify ./docs -g "*.pdf" -r            Convert PDFs recursively
  mdify ./docs -o out/ --flat           Flatten output into one directory
  mdify ./docs --runtime podman         Use Podman instead of Docker`,
	Args:          cobra.MaximumNArgs(1),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runConvert,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.Version = version
	rootCmd.PersistentFlags().String("config", "", "config file (default: ./mdify.yaml or ~/.config/mdify/config.yaml)")
}

func initConfig() {
	cfgFile, _ := rootCmd.PersistentFlags().GetString("config")
	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.SetConfigName("mdify")
		viper.SetConfigType("yaml")
		viper.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viper.AddConfigPath(filepath.Join(home, ".config", "mdify"))
		}
	}

	viper.SetEnvPrefix("MDIFY")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err == nil {
		fmt.Fprintln(os.Stderr, "Using config file:", viper.ConfigFileUsed())
	}
}

// mdifyHome is the per-installation state directory (update-check record,
// batch history).
func mdifyHome() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolving home directory: %w", err)
	}
	return filepath.Join(home, ".mdify"), nil
}

func main() {
	err := rootCmd.Execute()
	if err == nil {
		os.Exit(exitOK)
	}

	fmt.Fprintln(os.Stderr, "Error:", err)
	switch {
	case errors.Is(err, container.ErrNoRuntime):
		os.Exit(exitNoRuntime)
	case errors.Is(err, context.Canceled):
		os.Exit(exitInterrupted)
	}
	os.Exit(exitFailure)
}
