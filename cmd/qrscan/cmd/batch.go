package cmd

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/batch"
	"github.com/MeKo-Tech/qrscan/internal/config"
)

func newBatchCmd(a *app) *cobra.Command {
	d := config.DefaultConfig().Batch
	cmd := &cobra.Command{
		Use:   "batch [files or directories...]",
		Short: "Decode QR codes in many images in parallel",
		Long: `Decode the QR Code symbols in many image files using parallel workers.
Directories are searched for supported images; include and exclude glob
patterns filter the discovered files.

Examples:
  qrscan batch *.png
  qrscan batch scans/ --recursive --workers 8
  qrscan batch scans/ --include '*.png' --exclude '*_thumb*' --format csv -o codes.csv`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runBatch(cmd, args)
		},
	}
	addScanFlags(cmd)
	addOutputFlags(cmd)
	f := cmd.Flags()
	f.IntP("workers", "w", d.Workers, "number of parallel workers")
	f.BoolP("recursive", "r", d.Recursive, "search directories recursively")
	f.StringSlice("include", d.Include, "glob patterns of files to include")
	f.StringSlice("exclude", d.Exclude, "glob patterns of files to exclude")
	f.Bool("progress", false, "show a progress bar")
	f.BoolP("quiet", "q", false, "suppress statistics and progress output")
	return cmd
}

func (a *app) runBatch(cmd *cobra.Command, args []string) error {
	bc := a.cfg.ToBatchConfig()
	bc.Stdout = cmd.OutOrStdout()
	bc.ShowProgress, _ = cmd.Flags().GetBool("progress")
	bc.Quiet, _ = cmd.Flags().GetBool("quiet")

	hist, err := a.openHistory()
	if err != nil {
		return err
	}
	defer closeHistory(hist)

	ctx := cmd.Context()
	result, err := batch.Run(ctx, args, bc)
	if err != nil {
		return err
	}

	if hist != nil {
		for _, res := range result.Results {
			if res == nil {
				continue
			}
			if err := hist.Record(ctx, originCLI, res); err != nil {
				slog.Warn("Failed to record scan history", "file", res.Source, "error", err)
			}
		}
	}

	if failed := result.Failed(); failed == len(result.ImagePaths) {
		return fmt.Errorf("no symbol decoded in %d file(s)", failed)
	}
	return nil
}
