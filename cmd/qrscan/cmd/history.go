package cmd

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/history"
	"github.com/MeKo-Tech/qrscan/internal/pipeline"
)

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recently decoded QR codes",
		Long: `List the most recent entries of the scan history, newest first.
Scans are recorded when history is enabled (--history or history.enabled).

Examples:
  qrscan history
  qrscan history --limit 10 --format json`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runHistory(cmd)
		},
	}
	cmd.Flags().IntP("limit", "n", history.DefaultLimit, "number of entries to show")
	cmd.Flags().StringP("format", "f", "text", "output format: text or json")
	return cmd
}

func (a *app) runHistory(cmd *cobra.Command) error {
	limit, _ := cmd.Flags().GetInt("limit")
	if limit <= 0 {
		return errors.New("limit must be positive")
	}
	format, err := pipeline.ParseOutputFormat(a.cfg.Output.Format)
	if err != nil {
		return err
	}
	if format != pipeline.OutputText && format != pipeline.OutputJSON {
		return fmt.Errorf("unsupported history format: %s", format)
	}

	h, err := history.New(a.cfg.HistoryPath())
	if err != nil {
		return fmt.Errorf("failed to open history: %w", err)
	}
	defer closeHistory(h)

	entries, err := h.Recent(cmd.Context(), limit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if format == pipeline.OutputJSON {
		if entries == nil {
			entries = []history.Entry{}
		}
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(entries)
	}

	if len(entries) == 0 {
		_, _ = fmt.Fprintln(out, "No scans recorded")
		return nil
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	_, _ = fmt.Fprintln(tw, "TIME\tORIGIN\tSOURCE\tVALUE")
	for _, e := range entries {
		value := strings.ReplaceAll(e.Value, "\n", `\n`)
		_, _ = fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.Time.Local().Format(time.DateTime), e.Origin, e.Source, value)
	}
	return tw.Flush()
}
