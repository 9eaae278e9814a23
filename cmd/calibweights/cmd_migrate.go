package main

import (
	"fmt"

	"github.com/banshee-data/calibweights/internal/db"
	"github.com/spf13/cobra"
)

func newMigrateCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Inspect or change the database schema version",
	}

	open := func() (*db.DB, error) {
		cfg, err := ro.loadConfig()
		if err != nil {
			return nil, err
		}
		return db.OpenNoMigrate(ro.database(cfg))
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "status",
		Short: "Show the current and latest schema versions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := open()
			if err != nil {
				return err
			}
			defer d.Close()
			v, dirty, err := d.MigrateVersion()
			if err != nil {
				return err
			}
			latest, err := db.LatestMigration()
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "current: %d\nlatest:  %d\ndirty:   %t\n", v, latest, dirty)
			if v < latest {
				fmt.Fprintln(out, "run 'calibweights migrate up' to apply pending migrations")
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply all pending migrations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := open()
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.MigrateUp(); err != nil {
				return err
			}
			v, _, err := d.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "down",
		Short: "Roll back the most recent migration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			d, err := open()
			if err != nil {
				return err
			}
			defer d.Close()
			if err := d.MigrateDown(); err != nil {
				return err
			}
			v, _, err := d.MigrateVersion()
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "schema at version %d\n", v)
			return nil
		},
	})
	return cmd
}
