// Package cmd implements the qrscan command line.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/MeKo-Tech/qrscan/internal/config"
	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/version"
)

const originCLI = "cli"

// app holds the state shared by one command tree.
type app struct {
	cfgFile string
	v       *viper.Viper
	loader  *config.Loader
	cfg     *config.Config
}

// NewRootCommand builds the qrscan command tree. Every call returns an
// independent tree with its own flags and configuration.
func NewRootCommand() *cobra.Command {
	a := &app{v: viper.New()}
	defaults := config.DefaultConfig()

	rootCmd := &cobra.Command{
		Use:   "qrscan",
		Short: "Scan QR codes in images, PDFs and over HTTP",
		Long: `qrscan locates and decodes QR Code symbols (versions 1-40, all error
correction levels) in raster images and in the images embedded in PDF files.

This tool provides:
- Decoding of single images and whole directories
- PDF scanning with page ranges and password support
- text, json, yaml and csv output
- An HTTP and WebSocket server with Prometheus metrics

Examples:
  qrscan decode ticket.png
  qrscan batch ./scans --recursive --format json
  qrscan pdf invoice.pdf --pages 1-3
  qrscan serve --port 8080`,
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd, true)
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
	rootCmd.SetVersionTemplate("{{.Version}}\n")

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&a.cfgFile, "config", "",
		"config file (default is search in ., $HOME, /etc/qrscan, $XDG_CONFIG_HOME/qrscan)")
	pf.BoolP("verbose", "v", false, "verbose output (equivalent to --log-level=debug)")
	pf.String("log-level", defaults.LogLevel, "log level (debug, info, warn, error)")
	pf.Bool("history", defaults.History.Enabled, "record successful scans in the history database")
	pf.String("history-path", "", "history database path (default $XDG_DATA_HOME/qrscan/history.db)")

	_ = a.v.BindPFlag("verbose", pf.Lookup("verbose"))
	_ = a.v.BindPFlag("log_level", pf.Lookup("log-level"))
	_ = a.v.BindPFlag("history.enabled", pf.Lookup("history"))
	_ = a.v.BindPFlag("history.path", pf.Lookup("history-path"))

	rootCmd.AddCommand(
		newDecodeCmd(a),
		newBatchCmd(a),
		newPDFCmd(a),
		newServeCmd(a),
		newHistoryCmd(a),
		newConfigCmd(a),
		newVersionCmd(),
	)
	return rootCmd
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	return ExecuteArgs(context.Background(), os.Args[1:], os.Stdout, os.Stderr)
}

// ExecuteArgs runs one command line with the given streams.
func ExecuteArgs(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	rootCmd := NewRootCommand()
	rootCmd.SetArgs(args)
	rootCmd.SetOut(stdout)
	rootCmd.SetErr(stderr)
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}

// initConfig loads the configuration, applies command flags and installs
// the logger.
func (a *app) initConfig(cmd *cobra.Command, validate bool) error {
	a.loader = config.NewLoaderWithViper(a.v)

	var (
		cfg *config.Config
		err error
	)
	switch {
	case a.cfgFile != "" && validate:
		cfg, err = a.loader.LoadWithFile(a.cfgFile)
	case a.cfgFile != "":
		cfg, err = a.loader.LoadWithFileWithoutValidation(a.cfgFile)
	case validate:
		cfg, err = a.loader.Load()
	default:
		cfg, err = a.loader.LoadWithoutValidation()
	}
	if err != nil {
		return fmt.Errorf("error loading configuration: %w", err)
	}

	if err := applyFlagOverrides(cmd, cfg); err != nil {
		return err
	}
	if validate {
		if err := cfg.Validate(); err != nil {
			return fmt.Errorf("invalid flags: %w", err)
		}
	}
	a.cfg = cfg

	setupLogging(cmd.ErrOrStderr(), cfg)
	return nil
}

// setupLogging installs a JSON slog handler at the configured level.
func setupLogging(w io.Writer, cfg *config.Config) {
	var logLevel slog.Level
	if cfg.Verbose {
		logLevel = slog.LevelDebug
	} else {
		switch strings.ToLower(cfg.LogLevel) {
		case "debug":
			logLevel = slog.LevelDebug
		case "warn":
			logLevel = slog.LevelWarn
		case "error":
			logLevel = slog.LevelError
		default:
			logLevel = slog.LevelInfo
		}
	}

	logger := slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: logLevel,
	}))
	slog.SetDefault(logger)
}

// openHistory opens the history database when recording is enabled.
func (a *app) openHistory() (*history.History, error) {
	if a.cfg == nil || !a.cfg.History.Enabled {
		return nil, nil
	}
	h, err := history.New(a.cfg.HistoryPath())
	if err != nil {
		return nil, fmt.Errorf("failed to open history: %w", err)
	}
	return h, nil
}

func closeHistory(h *history.History) {
	if h == nil {
		return
	}
	if err := h.Close(); err != nil {
		slog.Warn("Error closing history", "error", err)
	}
}

// writeOutput writes to the output file when set, else to w.
func writeOutput(w io.Writer, output, outputFile string) error {
	if outputFile != "" {
		if err := os.WriteFile(outputFile, []byte(output), 0o600); err != nil {
			return fmt.Errorf("failed to write output file: %w", err)
		}
		return nil
	}
	if _, err := io.WriteString(w, output); err != nil {
		return fmt.Errorf("failed to write to stdout: %w", err)
	}
	if output != "" && !strings.HasSuffix(output, "\n") {
		_, _ = io.WriteString(w, "\n")
	}
	return nil
}

var errNoInput = errors.New("no input files provided")
