package efficiency

import (
	"errors"
	"fmt"
	"math"

	"go-hep.org/x/hep/hbook"
	"gonum.org/v1/gonum/floats"
)

// ErrBinning is returned when a histogram is malformed or when a
// passing/total pair does not share its binning.
var ErrBinning = errors.New("inconsistent histogram binning")

// Histogram is a 1D binned count. Entries is the number of fills; for a
// histogram filled with unit weights it equals the sum of Contents.
type Histogram struct {
	Name     string
	Edges    []float64
	Contents []float64
	Entries  float64
}

// NewHistogram builds an unweighted histogram from integer-like counts.
func NewHistogram(name string, edges, counts []float64) Histogram {
	return Histogram{
		Name:     name,
		Edges:    append([]float64(nil), edges...),
		Contents: append([]float64(nil), counts...),
		Entries:  floats.Sum(counts),
	}
}

// FromH1D converts a go-hep histogram. Underflow and overflow are dropped.
func FromH1D(h *hbook.H1D) Histogram {
	n := h.Len()
	out := Histogram{
		Name:     h.Name(),
		Edges:    make([]float64, n+1),
		Contents: make([]float64, n),
	}
	for i, b := range h.Binning.Bins {
		out.Edges[i] = b.XMin()
		out.Edges[i+1] = b.XMax()
		out.Contents[i] = b.SumW()
		out.Entries += float64(b.Entries())
	}
	return out
}

// Bins returns the number of bins.
func (h Histogram) Bins() int { return len(h.Contents) }

// Integral is the weighted sum of the bin contents.
func (h Histogram) Integral() float64 { return floats.Sum(h.Contents) }

// Weighted reports whether the histogram was filled with non-unit weights,
// detected as a mismatch between entries and integral beyond tol.
func (h Histogram) Weighted(tol float64) bool {
	return math.Abs(h.Entries-h.Integral()) > tol
}

func (h Histogram) validate() error {
	if len(h.Edges) < 2 || len(h.Edges) != len(h.Contents)+1 {
		return fmt.Errorf("%w: histogram %q has %d edges for %d bins", ErrBinning, h.Name, len(h.Edges), len(h.Contents))
	}
	for i := 1; i < len(h.Edges); i++ {
		if !(h.Edges[i] > h.Edges[i-1]) {
			return fmt.Errorf("%w: histogram %q edges not increasing at %d", ErrBinning, h.Name, i)
		}
	}
	return nil
}

func sameBinning(a, b Histogram) error {
	if err := a.validate(); err != nil {
		return err
	}
	if err := b.validate(); err != nil {
		return err
	}
	if !floats.Equal(a.Edges, b.Edges) {
		return fmt.Errorf("%w: %q and %q", ErrBinning, a.Name, b.Name)
	}
	return nil
}

// roundHalfUp rounds to the nearest integer, halves away from zero for
// positive counts.
func roundHalfUp(x float64) float64 {
	return math.Floor(x + 0.5)
}
