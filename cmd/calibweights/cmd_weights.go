package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/banshee-data/calibweights/internal/config"
	"github.com/banshee-data/calibweights/internal/db"
	"github.com/banshee-data/calibweights/internal/monitoring"
	"github.com/banshee-data/calibweights/internal/pipeline"
	"github.com/banshee-data/calibweights/internal/report"
	"github.com/banshee-data/calibweights/internal/weights"
	"github.com/spf13/cobra"
)

// composerFlags override the config file for one invocation.
type composerFlags struct {
	spec    string
	workers int
}

func (cf *composerFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&cf.spec, "weights", "w", "", "weight configuration string, e.g. PID-L0-HLT (overrides the config file)")
	cmd.Flags().IntVar(&cf.workers, "workers", 0, "worker goroutines (overrides the config file)")
}

func (cf *composerFlags) apply(cfg *config.RunConfig) error {
	if cf.spec != "" {
		spec := cf.spec
		cfg.Weights = &spec
	}
	if cf.workers > 0 {
		w := cf.workers
		cfg.Workers = &w
	}
	return cfg.Validate()
}

// buildComposer wires the table store, behind an LRU, into a composer.
func buildComposer(cfg *config.RunConfig, d *db.DB) (*weights.Composer, error) {
	wc, err := cfg.Configuration()
	if err != nil {
		return nil, err
	}
	bindings, err := cfg.WeightBindings()
	if err != nil {
		return nil, err
	}
	loader, err := db.NewCachedLoader(db.NewTableStore(d.DB), cfg.GetTableCacheSize())
	if err != nil {
		return nil, err
	}
	return weights.NewComposer(wc, bindings, loader)
}

func openEvents(path string) (*pipeline.CSVSource, io.Closer, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, fmt.Errorf("open events: %w", err)
	}
	src, err := pipeline.NewCSVSource(f)
	if err != nil {
		f.Close()
		return nil, nil, fmt.Errorf("%s: %w", path, err)
	}
	return src, f, nil
}

func newWeightsCmd(ro *rootOptions) *cobra.Command {
	var (
		cf       composerFlags
		events   string
		output   string
		page     string
		noRecord bool
	)
	cmd := &cobra.Command{
		Use:   "weights",
		Short: "Compose per-event weights for a CSV event sample",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
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

			out := cmd.OutOrStdout()
			if output != "" && output != "-" {
				f, err := os.Create(output)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			csvSink := pipeline.NewCSVSink(out)
			collected := &pipeline.SliceSink{}
			sink := pipeline.MultiSink{csvSink}
			if page != "" {
				sink = append(sink, collected)
			}

			sum, err := pipeline.Run(cmd.Context(), src, composer, sink, cfg.GetWorkers())
			if err != nil {
				return err
			}
			if err := csvSink.Flush(); err != nil {
				return err
			}

			if page != "" {
				f, err := os.Create(page)
				if err != nil {
					return err
				}
				defer f.Close()
				title := cfg.GetWeights() + " weights"
				if err := report.WeightsPage(collected.Weights(), 0, title, f); err != nil {
					return err
				}
			}

			if !noRecord {
				params, _ := json.Marshal(map[string]interface{}{
					"bootstrap_index": cfg.GetBootstrapIndex(),
					"max_retries":     cfg.GetMaxRetries(),
					"on_exhaust":      cfg.GetOnExhaust(),
					"components":      composer.Keys(),
				})
				run := &db.Run{
					Config:        cfg.GetWeights(),
					Version:       cfg.GetVersion(),
					BootstrapSize: composer.Size(),
					Events:        sum.Events,
					MeanWeight:    sum.Mean,
					MinWeight:     sum.Min,
					MaxWeight:     sum.Max,
					Adjusted:      sum.Adjusted,
					ParamsJSON:    params,
				}
				if err := db.NewRunStore(d.DB).Insert(run); err != nil {
					return err
				}
				monitoring.Logf("recorded run %s", run.RunID)
			}
			fmt.Fprintln(cmd.ErrOrStderr(), sum)
			fmt.Fprintln(cmd.ErrOrStderr(), monitoring.Summary())
			return nil
		},
	}
	cf.register(cmd)
	cmd.Flags().StringVarP(&events, "events", "e", "", "CSV file with one event per row (required)")
	cmd.Flags().StringVarP(&output, "output", "o", "-", "CSV output for the weights, - for stdout")
	cmd.Flags().StringVar(&page, "page", "", "write an HTML weight distribution page")
	cmd.Flags().BoolVar(&noRecord, "no-record", false, "do not record the run in the database")
	_ = cmd.MarkFlagRequired("events")
	cmd.AddCommand(newRunsCmd(ro))
	return cmd
}

func newRunsCmd(ro *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "List recorded weight runs, newest first",
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

			runs, err := db.NewRunStore(d.DB).List(limit)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			for _, r := range runs {
				fmt.Fprintf(out, "%s %s events=%d mean=%.6g adjusted=%d\n", r.RunID, r.Config, r.Events, r.MeanWeight, r.Adjusted)
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to show, 0 for all")
	return cmd
}
