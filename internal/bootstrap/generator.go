package bootstrap

import (
	"errors"
	"fmt"
	"math"
	"math/rand/v2"

	"github.com/cespare/xxhash/v2"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/monitoring"
)

var (
	ErrEnsembleSize = errors.New("ensemble size must be positive")
	ErrNilTable     = errors.New("nominal table is nil")
)

// DefaultMaxRetries bounds the redraws for one constrained sample.
const DefaultMaxRetries = 1000

// ExhaustPolicy picks the value used when every redraw violated the
// constraint.
type ExhaustPolicy int

const (
	// ExhaustBoundary clamps the last draw to the nearest valid boundary.
	ExhaustBoundary ExhaustPolicy = iota
	// ExhaustNominal falls back to the nominal content, itself clamped
	// into the valid range.
	ExhaustNominal
)

func (p ExhaustPolicy) String() string {
	if p == ExhaustNominal {
		return "nominal"
	}
	return "boundary"
}

// ParseExhaustPolicy accepts "boundary" (or "") and "nominal".
func ParseExhaustPolicy(s string) (ExhaustPolicy, error) {
	switch s {
	case "", "boundary":
		return ExhaustBoundary, nil
	case "nominal":
		return ExhaustNominal, nil
	}
	return ExhaustBoundary, fmt.Errorf("unknown exhaust policy %q", s)
}

// Generator produces ensembles. The zero value is not usable; Size must be
// positive.
type Generator struct {
	Size    int
	Version string
	// Constraint is the range every resampled value must land in. Use
	// ResampleConstraint to derive it from a lookup validity policy.
	Constraint calib.Validity
	// MaxRetries defaults to DefaultMaxRetries when zero.
	MaxRetries int
	OnExhaust  ExhaustPolicy
}

// ResampleConstraint maps a lookup validity policy to the constraint used
// while resampling. Both fraction and non-negative tables only need
// non-negative draws; the upper bound of a fraction is applied per event by
// the lookup, so draws above 1 stay in the ensemble untruncated.
func ResampleConstraint(v calib.Validity) calib.Validity {
	if v == calib.ValidityNone {
		return calib.ValidityNone
	}
	return calib.ValidityNonNegative
}

// Seed derives the seed of ensemble member k from a version tag.
func Seed(version string, k int) uint64 {
	return xxhash.Sum64String(version) + uint64(k) + 1
}

// Generate resamples nominal into g.Size members.
func (g *Generator) Generate(nominal *calib.Table) (*Ensemble, error) {
	if nominal == nil {
		return nil, ErrNilTable
	}
	if g.Size <= 0 {
		return nil, fmt.Errorf("%w: got %d", ErrEnsembleSize, g.Size)
	}
	retries := g.MaxRetries
	if retries <= 0 {
		retries = DefaultMaxRetries
	}

	groups := Groups(nominal)
	members := make([]*calib.Table, g.Size)
	for k := 0; k < g.Size; k++ {
		seed := Seed(g.Version, k)
		src := rand.NewPCG(seed, seed)
		content := make([]float64, nominal.Len())
		for _, grp := range groups {
			v := g.draw(src, nominal.Name(), grp, retries)
			for _, idx := range grp.Bins {
				content[idx] = v
			}
		}
		m, err := nominal.WithContent(fmt.Sprintf("%s_bs%d", nominal.Name(), k), content)
		if err != nil {
			return nil, fmt.Errorf("build member %d of %q: %w", k, nominal.Name(), err)
		}
		members[k] = m
	}
	return &Ensemble{Nominal: nominal, Members: members, Version: g.Version}, nil
}

// draw samples one value for grp, redrawing while it violates the
// constraint.
func (g *Generator) draw(src rand.Source, table string, grp Group, retries int) float64 {
	v := grp.Content
	if grp.Uncertainty != 0 {
		n := distuv.Normal{Mu: grp.Content, Sigma: math.Abs(grp.Uncertainty), Src: src}
		v = n.Rand()
		for i := 0; i < retries && !g.Constraint.Valid(v); i++ {
			v = n.Rand()
		}
	}
	if g.Constraint.Valid(v) {
		return v
	}

	clamped, _ := g.Constraint.Apply(v)
	if g.OnExhaust == ExhaustNominal {
		clamped, _ = g.Constraint.Apply(grp.Content)
	}
	monitoring.Report(monitoring.Diagnostic{
		Kind:   monitoring.KindRetryExhausted,
		Table:  table,
		Bin:    grp.Bins[0],
		Old:    v,
		New:    clamped,
		Detail: fmt.Sprintf("retries=%d policy=%s group_bins=%d", retries, g.OnExhaust, len(grp.Bins)),
	})
	return clamped
}
