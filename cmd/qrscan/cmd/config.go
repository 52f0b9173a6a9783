package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/MeKo-Tech/qrscan/internal/config"
)

func newConfigCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage the qrscan configuration",
		Long: `Create, inspect and locate qrscan configuration files.

Configuration is read from qrscan.yaml in ., $HOME, /etc/qrscan and
$XDG_CONFIG_HOME/qrscan, then from QRSCAN_* environment variables
(QRSCAN_SCAN_TRY_HARDER=true), then from command line flags.`,
		// Inspecting a broken configuration must still work.
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return a.initConfig(cmd, false)
		},
	}

	initCmd := &cobra.Command{
		Use:   "init [path]",
		Short: "Write a configuration file with the default settings",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := config.ConfigFileName + ".yaml"
			if len(args) == 1 {
				path = args[0]
			}
			force, _ := cmd.Flags().GetBool("force")
			if _, err := os.Stat(path); err == nil && !force {
				return fmt.Errorf("%s already exists (use --force to overwrite)", path)
			} else if err != nil && !errors.Is(err, os.ErrNotExist) {
				return err
			}
			if err := config.GenerateDefaultConfigFile(path); err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Configuration written to %s\n", path)
			return nil
		},
	}
	initCmd.Flags().Bool("force", false, "overwrite an existing file")

	showCmd := &cobra.Command{
		Use:   "show",
		Short: "Print the resolved configuration as YAML",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return config.WriteYAML(cmd.OutOrStdout(), a.cfg)
		},
	}

	pathCmd := &cobra.Command{
		Use:   "path",
		Short: "Show which configuration file is used and where files are searched",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a.loader.PrintConfigInfo(cmd.OutOrStdout())
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "History database: %s\n", a.cfg.HistoryPath())
			return nil
		},
	}

	cmd.AddCommand(initCmd, showCmd, pathCmd)
	return cmd
}
