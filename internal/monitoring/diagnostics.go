package monitoring

import (
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
)

// Logf is the package-level diagnostic logger. It defaults to log.Printf and
// is replaced with SetLogger. It must be safe for concurrent use.
var Logf func(format string, v ...interface{}) = log.Printf

// SetLogger replaces the package logger. Passing nil mutes diagnostics; the
// counters on Registry keep counting.
func SetLogger(f func(format string, v ...interface{})) {
	if f == nil {
		Logf = func(string, ...interface{}) {}
		return
	}
	Logf = f
}

// Kind classifies a recoverable condition.
type Kind string

const (
	KindCoordinateClamp  Kind = "coordinate_clamp"
	KindFractionClamp    Kind = "fraction_clamp"
	KindNegativeClamp    Kind = "negative_clamp"
	KindInterpFallback   Kind = "interp_fallback"
	KindRetryExhausted   Kind = "retry_exhausted"
	KindPassExceedsTotal Kind = "pass_exceeds_total"
	KindWeightedInput    Kind = "weighted_input"
)

// Diagnostic is one recoverable condition with enough context to find it
// again: the table (or histogram) name, the bin, the coordinate and the
// value before and after adjustment.
type Diagnostic struct {
	Kind   Kind
	Table  string
	Bin    int
	Coord  []float64
	Old    float64
	New    float64
	Detail string
}

func (d Diagnostic) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] table=%q bin=%d", d.Kind, d.Table, d.Bin)
	if len(d.Coord) > 0 {
		fmt.Fprintf(&b, " coord=%v", d.Coord)
	}
	fmt.Fprintf(&b, " old=%g new=%g", d.Old, d.New)
	if d.Detail != "" {
		b.WriteString(" ")
		b.WriteString(d.Detail)
	}
	return b.String()
}

var (
	// Registry holds the diagnostic counters. It is separate from the
	// default registry so library users do not get surprise metrics.
	Registry = prometheus.NewRegistry()

	diagnosticsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "calibweights_diagnostics_total",
		Help: "Recoverable conditions reported by the weight engine, by kind.",
	}, []string{"kind"})
)

func init() {
	Registry.MustRegister(diagnosticsTotal)
}

// Report logs d and counts it.
func Report(d Diagnostic) {
	diagnosticsTotal.WithLabelValues(string(d.Kind)).Inc()
	Logf("%s", d.String())
}

// Count returns how many diagnostics of kind k have been reported since
// process start.
func Count(k Kind) float64 {
	var m dto.Metric
	if err := diagnosticsTotal.WithLabelValues(string(k)).Write(&m); err != nil {
		return 0
	}
	return m.GetCounter().GetValue()
}

// Counts gathers every diagnostic counter that has fired at least once.
func Counts() (map[Kind]float64, error) {
	families, err := Registry.Gather()
	if err != nil {
		return nil, fmt.Errorf("gather diagnostics: %w", err)
	}
	out := make(map[Kind]float64)
	for _, mf := range families {
		if mf.GetName() != "calibweights_diagnostics_total" {
			continue
		}
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if lp.GetName() == "kind" {
					out[Kind(lp.GetValue())] = m.GetCounter().GetValue()
				}
			}
		}
	}
	return out, nil
}

// Summary formats Counts as "kind=n" pairs in stable order.
func Summary() string {
	counts, err := Counts()
	if err != nil || len(counts) == 0 {
		return "no diagnostics"
	}
	kinds := make([]string, 0, len(counts))
	for k := range counts {
		kinds = append(kinds, string(k))
	}
	sort.Strings(kinds)
	parts := make([]string, 0, len(kinds))
	for _, k := range kinds {
		parts = append(parts, fmt.Sprintf("%s=%.0f", k, counts[Kind(k)]))
	}
	return strings.Join(parts, " ")
}
