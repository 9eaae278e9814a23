package efficiency

import (
	"fmt"
	"math"
	"slices"

	"github.com/banshee-data/calibweights/internal/monitoring"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat/distuv"
)

// DefaultConfidenceLevel is the one-sigma Gaussian coverage.
const DefaultConfidenceLevel = 0.6826894921370859

// DefaultTolerance is the entries/integral mismatch above which a
// histogram is treated as weighted.
const DefaultTolerance = 1e-6

// Estimator computes Clopper-Pearson efficiencies. The zero value uses the
// defaults.
type Estimator struct {
	ConfidenceLevel float64
	Tolerance       float64
}

// Estimate is an efficiency with its asymmetric interval.
type Estimate struct {
	// Passing and Total are the counts actually used, after rounding and
	// clamping.
	Passing float64
	Total   float64

	Value  float64
	ErrLow float64
	ErrUp  float64
	Low    float64
	Up     float64

	// Weighted is set when either input histogram was detected as weighted
	// and rounded to integer counts.
	Weighted bool
	// Defined is false when Total is zero; Value and the interval are then
	// zero.
	Defined bool
	// ClampedBins lists bins whose passing content exceeded the total.
	ClampedBins []int
}

// Uncertainty is the midpoint of the asymmetric interval.
func (e Estimate) Uncertainty() float64 { return (e.ErrLow + e.ErrUp) / 2 }

func (e Estimate) String() string {
	if !e.Defined {
		return fmt.Sprintf("%g/%g undefined", e.Passing, e.Total)
	}
	return fmt.Sprintf("%g/%g = %.4f -%.4f +%.4f", e.Passing, e.Total, e.Value, e.ErrLow, e.ErrUp)
}

// BinEstimate is one bin of an efficiency curve.
type BinEstimate struct {
	XLow  float64
	XHigh float64
	Estimate
}

func (est *Estimator) cl() float64 {
	if est == nil || est.ConfidenceLevel <= 0 || est.ConfidenceLevel >= 1 {
		return DefaultConfidenceLevel
	}
	return est.ConfidenceLevel
}

func (est *Estimator) tol() float64 {
	if est == nil || est.Tolerance <= 0 {
		return DefaultTolerance
	}
	return est.Tolerance
}

// Estimate integrates a passing/total pair into one efficiency. Mismatched
// binning is an error; everything else is corrected and reported.
func (est *Estimator) Estimate(pass, total Histogram) (Estimate, error) {
	p, t, weighted, err := est.prepare(pass, total)
	if err != nil {
		return Estimate{}, err
	}
	clamped := clampBins(pass.Name, p, t)
	e := est.EstimateCounts(floats.Sum(p), floats.Sum(t))
	e.Weighted = weighted
	e.ClampedBins = clamped
	return e, nil
}

// EstimateBins computes one efficiency per bin.
func (est *Estimator) EstimateBins(pass, total Histogram) ([]BinEstimate, error) {
	p, t, weighted, err := est.prepare(pass, total)
	if err != nil {
		return nil, err
	}
	clamped := clampBins(pass.Name, p, t)
	out := make([]BinEstimate, len(p))
	for i := range p {
		e := est.EstimateCounts(p[i], t[i])
		e.Weighted = weighted
		if slices.Contains(clamped, i) {
			e.ClampedBins = []int{i}
		}
		out[i] = BinEstimate{XLow: pass.Edges[i], XHigh: pass.Edges[i+1], Estimate: e}
	}
	return out, nil
}

// EstimateCounts computes the efficiency of raw counts. Passing is clamped
// into [0, total]; a non-positive total gives an undefined estimate.
func (est *Estimator) EstimateCounts(passing, total float64) Estimate {
	if math.IsNaN(total) || total <= 0 {
		return Estimate{Passing: math.Max(0, passing), Total: math.Max(0, total)}
	}
	if math.IsNaN(passing) || passing < 0 {
		monitoring.Report(monitoring.Diagnostic{Kind: monitoring.KindNegativeClamp, Bin: -1, Old: passing, New: 0, Detail: "passing count"})
		passing = 0
	}
	if passing > total {
		monitoring.Report(monitoring.Diagnostic{Kind: monitoring.KindPassExceedsTotal, Bin: -1, Old: passing, New: total})
		passing = total
	}

	alpha := 1 - est.cl()
	low, up := 0.0, 1.0
	if passing > 0 {
		low = distuv.Beta{Alpha: passing, Beta: total - passing + 1}.Quantile(alpha / 2)
	}
	if passing < total {
		up = distuv.Beta{Alpha: passing + 1, Beta: total - passing}.Quantile(1 - alpha/2)
	}
	value := passing / total
	return Estimate{
		Passing: passing,
		Total:   total,
		Value:   value,
		Low:     low,
		Up:      up,
		ErrLow:  value - low,
		ErrUp:   up - value,
		Defined: true,
	}
}

// prepare checks the binning and returns working copies of the contents,
// rounded to integers when either histogram is weighted.
func (est *Estimator) prepare(pass, total Histogram) (p, t []float64, weighted bool, err error) {
	if err := sameBinning(pass, total); err != nil {
		return nil, nil, false, err
	}
	p = append([]float64(nil), pass.Contents...)
	t = append([]float64(nil), total.Contents...)

	weighted = pass.Weighted(est.tol()) || total.Weighted(est.tol())
	if weighted {
		monitoring.Report(monitoring.Diagnostic{
			Kind:   monitoring.KindWeightedInput,
			Table:  pass.Name,
			Bin:    -1,
			Old:    pass.Entries,
			New:    pass.Integral(),
			Detail: fmt.Sprintf("total entries %g integral %g, rounding bins", total.Entries, total.Integral()),
		})
		for i := range p {
			p[i] = roundHalfUp(p[i])
			t[i] = roundHalfUp(t[i])
		}
	}
	for i := range t {
		if t[i] < 0 {
			monitoring.Report(monitoring.Diagnostic{Kind: monitoring.KindNegativeClamp, Table: total.Name, Bin: i, Old: t[i], New: 0})
			t[i] = 0
		}
		if p[i] < 0 {
			monitoring.Report(monitoring.Diagnostic{Kind: monitoring.KindNegativeClamp, Table: pass.Name, Bin: i, Old: p[i], New: 0})
			p[i] = 0
		}
	}
	return p, t, weighted, nil
}

func clampBins(name string, p, t []float64) []int {
	var clamped []int
	for i := range p {
		if p[i] > t[i] {
			monitoring.Report(monitoring.Diagnostic{Kind: monitoring.KindPassExceedsTotal, Table: name, Bin: i, Old: p[i], New: t[i]})
			p[i] = t[i]
			clamped = append(clamped, i)
		}
	}
	return clamped
}
