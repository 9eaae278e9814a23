package main

import (
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/banshee-data/calibweights/internal/efficiency"
	"github.com/banshee-data/calibweights/internal/pipeline"
	"github.com/banshee-data/calibweights/internal/report"
	"github.com/spf13/cobra"
)

func parseEdges(s string) ([]float64, error) {
	parts := strings.Split(s, ",")
	edges := make([]float64, 0, len(parts))
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return nil, fmt.Errorf("edge %q: %w", p, err)
		}
		edges = append(edges, v)
	}
	if len(edges) < 2 {
		return nil, fmt.Errorf("need at least two edges, got %d", len(edges))
	}
	for i := 1; i < len(edges); i++ {
		if edges[i] <= edges[i-1] {
			return nil, fmt.Errorf("edges must increase: %g after %g", edges[i], edges[i-1])
		}
	}
	return edges, nil
}

func newEfficiencyCmd(ro *rootOptions) *cobra.Command {
	var (
		cf       composerFlags
		events   string
		variable string
		passVar  string
		edgesArg string
		png      string
	)
	cmd := &cobra.Command{
		Use:   "efficiency",
		Short: "Estimate a selection efficiency from weighted CSV events",
		Long: "Fills passing and total histograms of --var, weighted by the composed\n" +
			"weight, and prints per-bin and integrated Clopper-Pearson efficiencies.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			edges, err := parseEdges(edgesArg)
			if err != nil {
				return err
			}
			cfg, err := ro.loadConfig()
			if err != nil {
				return err
			}
			if err := cf.apply(cfg); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			d, err := ro.openDB(cfg)
			if err != nil {
				return err
			}
			defer d.Close()

			composer, err := buildComposer(cfg, d)
			if err != nil {
				return err
			}
			src, closer, err := openEvents(events)
			if err != nil {
				return err
			}
			defer closer.Close()

			hs := pipeline.NewHistogramSink(variable, passVar, edges)
			if _, err := pipeline.Run(cmd.Context(), src, composer, hs, cfg.GetWorkers()); err != nil {
				return err
			}

			est := cfg.Estimator()
			pass, total := efficiency.FromH1D(hs.Pass), efficiency.FromH1D(hs.Total)
			bins, err := est.EstimateBins(pass, total)
			if err != nil {
				return err
			}
			integrated, err := est.Estimate(pass, total)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintf(tw, "%s\tPASS\tTOTAL\tEFF\t-ERR\t+ERR\n", strings.ToUpper(variable))
			for _, b := range bins {
				if !b.Defined {
					fmt.Fprintf(tw, "[%g,%g)\t%g\t%g\t-\t-\t-\n", b.XLow, b.XHigh, b.Passing, b.Total)
					continue
				}
				fmt.Fprintf(tw, "[%g,%g)\t%g\t%g\t%.4f\t%.4f\t%.4f\n", b.XLow, b.XHigh, b.Passing, b.Total, b.Value, b.ErrLow, b.ErrUp)
			}
			if err := tw.Flush(); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "integrated: %s", integrated)
			if integrated.Weighted {
				fmt.Fprint(cmd.OutOrStdout(), " (weighted, rounded)")
			}
			fmt.Fprintln(cmd.OutOrStdout())

			if png != "" {
				title := fmt.Sprintf("Efficiency vs %s (%s)", variable, cfg.GetWeights())
				if err := report.PlotEfficiency(bins, title, png); err != nil {
					return err
				}
			}
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVarP(&events, "events", "e", "", "CSV file with one event per row (required)")
	cmd.Flags().StringVar(&variable, "var", "pt", "variable to bin in")
	cmd.Flags().StringVar(&passVar, "pass", "pass", "event variable that is non-zero for passing events")
	cmd.Flags().StringVar(&edgesArg, "edges", "", "comma-separated bin edges (required)")
	cmd.Flags().StringVar(&png, "png", "", "write the efficiency curve as PNG")
	_ = cmd.MarkFlagRequired("events")
	_ = cmd.MarkFlagRequired("edges")
	return cmd
}
