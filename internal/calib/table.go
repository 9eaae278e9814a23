package calib

import (
	"errors"
	"fmt"
	"math"

	"gonum.org/v1/gonum/interp"
)

var (
	ErrDimension = errors.New("coordinate arity does not match table dimension")
	ErrShape     = errors.New("bin array shape does not match binning")
	ErrEdges     = errors.New("invalid bin edges")
	ErrNotFinite = errors.New("non-finite value")
)

// MaxDim is the highest supported table dimensionality.
const MaxDim = 3

// Table is an immutable n-dimensional binned calibration table. Content and
// uncertainty are stored flat with the first axis varying fastest.
type Table struct {
	name        string
	axes        []Axis
	content     []float64
	uncertainty []float64

	// line is the fitted 1D interpolant over bin centres; nil for 2D/3D
	// tables and for single-bin 1D tables.
	line *interp.PiecewiseLinear
}

// New builds a table from its axes and flat bin arrays. A nil uncertainty
// means all zero. Inputs are copied.
func New(name string, axes []Axis, content, uncertainty []float64) (*Table, error) {
	if len(axes) < 1 || len(axes) > MaxDim {
		return nil, fmt.Errorf("%w: table %q has %d axes, want 1..%d", ErrDimension, name, len(axes), MaxDim)
	}
	n := 1
	ax := make([]Axis, len(axes))
	for i, a := range axes {
		if err := a.validate(); err != nil {
			return nil, fmt.Errorf("table %q: %w", name, err)
		}
		ax[i] = Axis{Name: a.Name, Edges: append([]float64(nil), a.Edges...)}
		n *= a.Bins()
	}
	if len(content) != n {
		return nil, fmt.Errorf("%w: table %q content has %d bins, binning needs %d", ErrShape, name, len(content), n)
	}
	if uncertainty == nil {
		uncertainty = make([]float64, n)
	}
	if len(uncertainty) != n {
		return nil, fmt.Errorf("%w: table %q uncertainty has %d bins, binning needs %d", ErrShape, name, len(uncertainty), n)
	}
	if err := checkFinite(name, "content", content); err != nil {
		return nil, err
	}
	if err := checkFinite(name, "uncertainty", uncertainty); err != nil {
		return nil, err
	}
	return build(name, ax, append([]float64(nil), content...), append([]float64(nil), uncertainty...))
}

// New1D builds a one-dimensional table.
func New1D(name string, x Axis, content, uncertainty []float64) (*Table, error) {
	return New(name, []Axis{x}, content, uncertainty)
}

// New2D builds a two-dimensional table.
func New2D(name string, x, y Axis, content, uncertainty []float64) (*Table, error) {
	return New(name, []Axis{x, y}, content, uncertainty)
}

// New3D builds a three-dimensional table.
func New3D(name string, x, y, z Axis, content, uncertainty []float64) (*Table, error) {
	return New(name, []Axis{x, y, z}, content, uncertainty)
}

// build takes ownership of its slices.
func build(name string, axes []Axis, content, uncertainty []float64) (*Table, error) {
	t := &Table{name: name, axes: axes, content: content, uncertainty: uncertainty}
	if len(axes) == 1 && axes[0].Bins() > 1 {
		xs := make([]float64, axes[0].Bins())
		for i := range xs {
			xs[i] = axes[0].Center(i)
		}
		var pl interp.PiecewiseLinear
		if err := pl.Fit(xs, content); err != nil {
			return nil, fmt.Errorf("table %q: fit interpolant: %w", name, err)
		}
		t.line = &pl
	}
	return t, nil
}

func checkFinite(name, what string, xs []float64) error {
	for i, v := range xs {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: table %q %s bin %d is %v", ErrNotFinite, name, what, i, v)
		}
	}
	return nil
}

// WithContent derives a table with the same binning and new content. The
// derived table carries no uncertainty.
func (t *Table) WithContent(name string, content []float64) (*Table, error) {
	if len(content) != len(t.content) {
		return nil, fmt.Errorf("%w: derived table %q has %d bins, binning needs %d", ErrShape, name, len(content), len(t.content))
	}
	if err := checkFinite(name, "content", content); err != nil {
		return nil, err
	}
	// Axes are never mutated, so the derived table shares them.
	return build(name, t.axes, append([]float64(nil), content...), make([]float64, len(content)))
}

// Name returns the table identifier.
func (t *Table) Name() string { return t.name }

// Dim returns the number of axes.
func (t *Table) Dim() int { return len(t.axes) }

// Axes returns a copy of the axes.
func (t *Table) Axes() []Axis {
	out := make([]Axis, len(t.axes))
	for i, a := range t.axes {
		out[i] = Axis{Name: a.Name, Edges: append([]float64(nil), a.Edges...)}
	}
	return out
}

// Axis returns axis i without copying its edges. Callers must not modify them.
func (t *Table) Axis(i int) Axis { return t.axes[i] }

// Shape returns the number of bins per axis.
func (t *Table) Shape() []int {
	s := make([]int, len(t.axes))
	for i, a := range t.axes {
		s[i] = a.Bins()
	}
	return s
}

// Len returns the total number of bins.
func (t *Table) Len() int { return len(t.content) }

// Content returns the content of flat bin idx.
func (t *Table) Content(idx int) float64 { return t.content[idx] }

// Uncertainty returns the uncertainty of flat bin idx.
func (t *Table) Uncertainty(idx int) float64 { return t.uncertainty[idx] }

// Contents returns a copy of the flat content array.
func (t *Table) Contents() []float64 { return append([]float64(nil), t.content...) }

// Uncertainties returns a copy of the flat uncertainty array.
func (t *Table) Uncertainties() []float64 { return append([]float64(nil), t.uncertainty...) }

// IsGuard reports whether bin idx is a guard bin (content and uncertainty
// both exactly zero).
func (t *Table) IsGuard(idx int) bool {
	return t.content[idx] == 0 && t.uncertainty[idx] == 0
}

// Index flattens per-axis bin indices.
func (t *Table) Index(bins ...int) int {
	idx, stride := 0, 1
	for a, b := range bins {
		idx += b * stride
		stride *= t.axes[a].Bins()
	}
	return idx
}

// Bins unflattens idx into per-axis bin indices.
func (t *Table) Bins(idx int) []int {
	out := make([]int, len(t.axes))
	for a, ax := range t.axes {
		out[a] = idx % ax.Bins()
		idx /= ax.Bins()
	}
	return out
}

// SameBinning reports whether o has identical axes edges.
func (t *Table) SameBinning(o *Table) bool {
	if o == nil || len(t.axes) != len(o.axes) {
		return false
	}
	for i := range t.axes {
		if !t.axes[i].equal(o.axes[i]) {
			return false
		}
	}
	return true
}

func (t *Table) String() string {
	return fmt.Sprintf("Table(%s, dim=%d, shape=%v)", t.name, t.Dim(), t.Shape())
}
