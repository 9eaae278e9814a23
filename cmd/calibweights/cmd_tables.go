package main

import (
	"fmt"
	"strconv"
	"text/tabwriter"

	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/db"
	"github.com/spf13/cobra"
)

func newTablesCmd(ro *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tables",
		Short: "Import, list and query calibration tables",
	}
	cmd.AddCommand(newTablesImportCmd(ro), newTablesListCmd(ro), newTablesLookupCmd(ro))
	return cmd
}

func newTablesImportCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "import <file.json>...",
		Short: "Store the tables of one or more JSON files, replacing same-named tables",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			d, err := ro.openDB(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			store := db.NewTableStore(d.DB)
			n := 0
			for _, path := range args {
				tables, err := calib.ReadFile(path)
				if err != nil {
					return err
				}
				for _, t := range tables {
					if err := store.Save(t); err != nil {
						return err
					}
					n++
				}
			}
			fmt.Fprintf(cmd.OutOrStdout(), "imported %d tables\n", n)
			return nil
		},
	}
}

func newTablesListCmd(ro *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List stored tables",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			d, err := ro.openDB(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			list, err := db.NewTableStore(d.DB).List()
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tDIM\tBINS")
			for _, ti := range list {
				fmt.Fprintf(tw, "%s\t%d\t%d\n", ti.ID, ti.Dim, ti.Bins)
			}
			return tw.Flush()
		},
	}
}

func newTablesLookupCmd(ro *rootOptions) *cobra.Command {
	var (
		validity string
		interp   bool
	)
	cmd := &cobra.Command{
		Use:   "lookup <table> <x> [y] [z]",
		Short: "Evaluate a stored table at one point",
		Args:  cobra.RangeArgs(2, 1+calib.MaxDim),
		RunE: func(cmd *cobra.Command, args []string) error {
			v, err := calib.ParseValidity(validity)
			if err != nil {
				return err
			}
			coords := make([]float64, len(args)-1)
			for i, a := range args[1:] {
				if coords[i], err = strconv.ParseFloat(a, 64); err != nil {
					return fmt.Errorf("coordinate %d: %w", i, err)
				}
			}
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			d, err := ro.openDB(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			t, err := db.NewTableStore(d.DB).LoadTable(args[0])
			if err != nil {
				return err
			}
			r, err := t.Lookup(coords, calib.Policy{Interpolate: interp, Validity: v})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "value=%g raw=%g bin=%d", r.Value, r.Raw, r.Bin)
			if r.Clamped {
				fmt.Fprint(out, " clamped")
			}
			if r.Adjusted {
				fmt.Fprint(out, " adjusted")
			}
			if r.FellBack {
				fmt.Fprint(out, " fallback")
			}
			fmt.Fprintln(out)
			return nil
		},
	}
	cmd.Flags().StringVar(&validity, "validity", "none", "validity policy: none, fraction or nonnegative")
	cmd.Flags().BoolVar(&interp, "interp", false, "interpolate between bin centres")
	return cmd
}
