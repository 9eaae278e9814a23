package main

import (
	"fmt"

	"github.com/banshee-data/calibweights/internal/config"
	"github.com/banshee-data/calibweights/internal/db"
	"github.com/banshee-data/calibweights/internal/monitoring"
	"github.com/banshee-data/calibweights/internal/version"
	"github.com/spf13/cobra"
)

type rootOptions struct {
	dbPath     string
	configPath string
	quiet      bool
}

func newRootCmd() *cobra.Command {
	ro := &rootOptions{}
	cmd := &cobra.Command{
		Use:   "calibweights",
		Short: "Calibration weight lookup, composition and efficiency estimation",
		Long: "calibweights stores binned calibration tables, composes per-event\n" +
			"correction weights from a configuration string such as PID-L0-HLT-BS,\n" +
			"and estimates Clopper-Pearson efficiencies from weighted samples.",
		SilenceUsage: true,
		CompletionOptions: cobra.CompletionOptions{
			HiddenDefaultCmd: true,
		},
		PersistentPreRun: func(cmd *cobra.Command, _ []string) {
			if ro.quiet {
				monitoring.SetLogger(nil)
			}
		},
	}
	cmd.Version = version.Version

	f := cmd.PersistentFlags()
	f.StringVar(&ro.dbPath, "db", "", "SQLite database path (overrides the config file)")
	f.StringVarP(&ro.configPath, "config", "c", "", "run configuration (.yaml, .yml or .json)")
	f.BoolVarP(&ro.quiet, "quiet", "q", false, "mute per-condition diagnostics")

	cmd.AddCommand(newTablesCmd(ro))
	cmd.AddCommand(newWeightsCmd(ro))
	cmd.AddCommand(newEfficiencyCmd(ro))
	cmd.AddCommand(newMigrateCmd(ro))
	cmd.AddCommand(newVersionCmd())
	return cmd
}

// loadConfig returns the configured RunConfig, or an empty one when no
// file was given.
func (ro *rootOptions) loadConfig() (*config.RunConfig, error) {
	if ro.configPath == "" {
		return config.EmptyRunConfig(), nil
	}
	return config.Load(ro.configPath)
}

func (ro *rootOptions) database(cfg *config.RunConfig) string {
	if ro.dbPath != "" {
		return ro.dbPath
	}
	return cfg.GetDatabase()
}

func (ro *rootOptions) openDB(cfg *config.RunConfig) (*db.DB, error) {
	d, err := db.Open(ro.database(cfg))
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return d, nil
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print build information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintln(cmd.OutOrStdout(), version.String())
		},
	}
}
