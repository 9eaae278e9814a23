package calib

import (
	"fmt"
	"math"
	"sort"
)

// Axis is one binned dimension of a Table. Edges has Bins()+1 entries.
type Axis struct {
	Name  string    `json:"name"`
	Edges []float64 `json:"edges"`
}

func (a Axis) validate() error {
	if len(a.Edges) < 2 {
		return fmt.Errorf("%w: axis %q needs at least two edges, got %d", ErrEdges, a.Name, len(a.Edges))
	}
	for i, e := range a.Edges {
		if math.IsNaN(e) || math.IsInf(e, 0) {
			return fmt.Errorf("%w: axis %q edge %d is %v", ErrNotFinite, a.Name, i, e)
		}
		if i > 0 && e <= a.Edges[i-1] {
			return fmt.Errorf("%w: axis %q edge %d (%g) <= edge %d (%g)", ErrEdges, a.Name, i, e, i-1, a.Edges[i-1])
		}
	}
	return nil
}

// Bins returns the number of in-range bins.
func (a Axis) Bins() int { return len(a.Edges) - 1 }

// Min returns the lower domain bound.
func (a Axis) Min() float64 { return a.Edges[0] }

// Max returns the upper domain bound.
func (a Axis) Max() float64 { return a.Edges[len(a.Edges)-1] }

// Width returns the width of bin i.
func (a Axis) Width(i int) float64 { return a.Edges[i+1] - a.Edges[i] }

// Center returns the centre of bin i.
func (a Axis) Center(i int) float64 { return 0.5 * (a.Edges[i] + a.Edges[i+1]) }

// Find returns the bin containing x. Bins are closed below and open above,
// so -1 means underflow and Bins() means overflow.
func (a Axis) Find(x float64) int {
	return sort.Search(len(a.Edges), func(i int) bool { return a.Edges[i] > x }) - 1
}

// Clamp moves x inside the domain. Underflow (and NaN) lands one hundredth
// of the first bin width above Min; overflow lands one hundredth of the last
// bin width below Max. The boolean reports whether x was moved.
func (a Axis) Clamp(x float64) (float64, bool) {
	n := a.Bins()
	switch {
	case math.IsNaN(x) || x < a.Min():
		return a.Min() + a.Width(0)/100, true
	case x >= a.Max():
		return a.Max() - a.Width(n-1)/100, true
	}
	return x, false
}

// bracket returns the lower neighbouring bin centre index for x and the
// fractional distance towards the next centre. Beyond the outermost centres
// the fraction is 0, which makes interpolation constant there.
func (a Axis) bracket(x float64) (int, float64) {
	n := a.Bins()
	if n == 1 || x <= a.Center(0) {
		return 0, 0
	}
	if x >= a.Center(n-1) {
		return n - 1, 0
	}
	i := a.Find(x)
	if x < a.Center(i) {
		i--
	}
	lo, hi := a.Center(i), a.Center(i+1)
	return i, (x - lo) / (hi - lo)
}

func (a Axis) equal(b Axis) bool {
	if len(a.Edges) != len(b.Edges) {
		return false
	}
	for i := range a.Edges {
		if a.Edges[i] != b.Edges[i] {
			return false
		}
	}
	return true
}
