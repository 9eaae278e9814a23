package pipeline

import (
	"encoding/csv"
	"fmt"
	"io"
	"strconv"

	"github.com/banshee-data/calibweights/internal/weights"
	"go-hep.org/x/hep/hbook"
)

// Sink receives composed weights. Run calls Write from one goroutine, in
// event order.
type Sink interface {
	Write(i int, ev weights.Record, r weights.Result) error
}

// SliceSink keeps every result in memory.
type SliceSink struct {
	Results []weights.Result
}

// Write implements Sink.
func (s *SliceSink) Write(i int, _ weights.Record, r weights.Result) error {
	if i != len(s.Results) {
		return fmt.Errorf("slice sink: got event %d, want %d", i, len(s.Results))
	}
	s.Results = append(s.Results, r)
	return nil
}

// Weights returns the nominal weight of every result.
func (s *SliceSink) Weights() []float64 {
	out := make([]float64, len(s.Results))
	for i, r := range s.Results {
		out[i] = r.Value
	}
	return out
}

// CSVSink writes one row per event: index, weight, adjusted flag and, when
// present, the bootstrap variants.
type CSVSink struct {
	w      *csv.Writer
	header bool
}

// NewCSVSink writes to w. Call Flush when done.
func NewCSVSink(w io.Writer) *CSVSink {
	return &CSVSink{w: csv.NewWriter(w)}
}

// Write implements Sink.
func (s *CSVSink) Write(i int, _ weights.Record, r weights.Result) error {
	if !s.header {
		head := []string{"event", "weight", "adjusted"}
		for k := range r.Variants {
			head = append(head, "bs_"+strconv.Itoa(k))
		}
		if err := s.w.Write(head); err != nil {
			return err
		}
		s.header = true
	}
	row := make([]string, 0, 3+len(r.Variants))
	row = append(row, strconv.Itoa(i), formatFloat(r.Value), strconv.FormatBool(r.Adjusted))
	for _, v := range r.Variants {
		row = append(row, formatFloat(v))
	}
	return s.w.Write(row)
}

// Flush flushes buffered rows.
func (s *CSVSink) Flush() error {
	s.w.Flush()
	return s.w.Error()
}

func formatFloat(v float64) string { return strconv.FormatFloat(v, 'g', -1, 64) }

// HistogramSink fills a passing and a total histogram of one event
// variable, weighted by the composed weight. An event passes when PassVar
// is non-zero.
type HistogramSink struct {
	Var     string
	PassVar string
	Pass    *hbook.H1D
	Total   *hbook.H1D
}

// NewHistogramSink books two histograms with the given bin edges.
func NewHistogramSink(variable, passVar string, edges []float64) *HistogramSink {
	pass := hbook.NewH1DFromEdges(edges)
	pass.Annotation()["name"] = variable + "_pass"
	total := hbook.NewH1DFromEdges(edges)
	total.Annotation()["name"] = variable + "_total"
	return &HistogramSink{Var: variable, PassVar: passVar, Pass: pass, Total: total}
}

// Write implements Sink.
func (s *HistogramSink) Write(i int, ev weights.Record, r weights.Result) error {
	x, ok := ev.Value(s.Var)
	if !ok {
		return fmt.Errorf("%w: event %d has no %q", weights.ErrMissingVariable, i, s.Var)
	}
	flag, ok := ev.Value(s.PassVar)
	if !ok {
		return fmt.Errorf("%w: event %d has no %q", weights.ErrMissingVariable, i, s.PassVar)
	}
	s.Total.Fill(x, r.Value)
	if flag != 0 {
		s.Pass.Fill(x, r.Value)
	}
	return nil
}

// MultiSink fans each result out to several sinks.
type MultiSink []Sink

// Write implements Sink.
func (m MultiSink) Write(i int, ev weights.Record, r weights.Result) error {
	for _, s := range m {
		if err := s.Write(i, ev, r); err != nil {
			return err
		}
	}
	return nil
}
