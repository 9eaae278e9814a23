package calib

import (
	"fmt"

	"github.com/banshee-data/calibweights/internal/monitoring"
)

// Result is the outcome of one lookup.
type Result struct {
	Value float64
	// Raw is the content of the bin the (clamped) coordinate fell in.
	Raw float64
	Bin int

	Clamped      bool // a coordinate was moved into the domain
	Interpolated bool // Value came from interpolation
	FellBack     bool // interpolation gave 0 and Raw was used instead
	Adjusted     bool // the validity policy moved the value
	Guard        bool // the bin is a zero-content, zero-uncertainty guard bin
}

// Lookup evaluates the table at coords. The only error is an arity mismatch;
// every other condition is clamped, reported and folded into the Result.
func (t *Table) Lookup(coords []float64, p Policy) (Result, error) {
	d := len(t.axes)
	if len(coords) != d {
		return Result{}, fmt.Errorf("%w: table %q has %d axes, got %d coordinates", ErrDimension, t.name, d, len(coords))
	}

	var (
		res  Result
		x    [MaxDim]float64
		bins [MaxDim]int
	)
	res.Clamped = t.clampInto(coords, x[:d])
	for a, ax := range t.axes {
		bins[a] = ax.Find(x[a])
	}

	idx := t.Index(bins[:d]...)
	res.Bin = idx
	res.Raw = t.content[idx]
	if t.IsGuard(idx) {
		res.Guard = true
		return res, nil
	}

	v := res.Raw
	if p.Interpolate {
		iv := t.interpolate(x[:d])
		if iv == 0 {
			res.FellBack = true
			monitoring.Report(monitoring.Diagnostic{
				Kind:  monitoring.KindInterpFallback,
				Table: t.name,
				Bin:   idx,
				Coord: append([]float64(nil), x[:d]...),
				Old:   iv,
				New:   res.Raw,
			})
		} else {
			v = iv
			res.Interpolated = true
		}
	}

	nv, moved := p.Validity.Apply(v)
	if moved {
		res.Adjusted = true
		kind := monitoring.KindFractionClamp
		if p.Validity == ValidityNonNegative {
			kind = monitoring.KindNegativeClamp
		}
		monitoring.Report(monitoring.Diagnostic{
			Kind:  kind,
			Table: t.name,
			Bin:   idx,
			Coord: append([]float64(nil), x[:d]...),
			Old:   v,
			New:   nv,
		})
	}
	res.Value = nv
	return res, nil
}

// ClampCoords moves coords into the table domain, reporting every moved
// coordinate, and returns the clamped copy. Arity is not checked beyond the
// table dimension.
func (t *Table) ClampCoords(coords []float64) ([]float64, bool) {
	out := make([]float64, len(coords))
	copy(out, coords)
	return out, t.clampInto(coords, out)
}

func (t *Table) clampInto(coords, dst []float64) bool {
	clamped := false
	for a, ax := range t.axes {
		if a >= len(coords) {
			break
		}
		v, moved := ax.Clamp(coords[a])
		if moved {
			clamped = true
			monitoring.Report(monitoring.Diagnostic{
				Kind:   monitoring.KindCoordinateClamp,
				Table:  t.name,
				Bin:    -1,
				Coord:  append([]float64(nil), coords...),
				Old:    coords[a],
				New:    v,
				Detail: fmt.Sprintf("axis=%s", ax.Name),
			})
		}
		dst[a] = v
	}
	return clamped
}

// Value is Lookup without the bookkeeping. Arity mismatches panic, so it is
// meant for callers that validated the dimension up front.
func (t *Table) Value(p Policy, coords ...float64) float64 {
	r, err := t.Lookup(coords, p)
	if err != nil {
		panic(err)
	}
	return r.Value
}

// interpolate evaluates the multilinear interpolant through the bin centres
// at an in-domain point.
func (t *Table) interpolate(x []float64) float64 {
	if t.line != nil {
		return t.line.Predict(x[0])
	}
	d := len(t.axes)
	var (
		lo   [MaxDim]int
		frac [MaxDim]float64
	)
	for a, ax := range t.axes {
		lo[a], frac[a] = ax.bracket(x[a])
	}

	var sum float64
	var corner [MaxDim]int
	for c := 0; c < 1<<d; c++ {
		w := 1.0
		for a := 0; a < d; a++ {
			if c&(1<<a) != 0 {
				w *= frac[a]
				corner[a] = lo[a] + 1
			} else {
				w *= 1 - frac[a]
				corner[a] = lo[a]
			}
			if w == 0 {
				break
			}
		}
		if w == 0 {
			continue
		}
		sum += w * t.content[t.Index(corner[:d]...)]
	}
	return sum
}
