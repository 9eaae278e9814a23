package weights

import (
	"errors"
	"fmt"
	"math"

	"github.com/banshee-data/calibweights/internal/bootstrap"
	"github.com/banshee-data/calibweights/internal/calib"
)

var (
	ErrMissingTable    = errors.New("calibration table missing")
	ErrShapeMismatch   = errors.New("calibration table shape mismatch")
	ErrVariables       = errors.New("input variables do not match table dimension")
	ErrMissingVariable = errors.New("event is missing an input variable")
	ErrNotEnsemble     = errors.New("component is not ensemble-backed")
	ErrSplitFlag       = errors.New("split flag is not a number")
)

// Source is the backing of one component branch: a nominal table and,
// optionally, its bootstrap members.
type Source struct {
	Nominal *calib.Table
	Members []*calib.Table
}

// Nominal backs a branch with a single table.
func Nominal(t *calib.Table) Source { return Source{Nominal: t} }

// FromEnsemble backs a branch with an ensemble.
func FromEnsemble(e *bootstrap.Ensemble) Source {
	if e == nil {
		return Source{}
	}
	return Source{Nominal: e.Nominal, Members: e.Members}
}

// Size returns the number of bootstrap members, 0 for a plain table.
func (s Source) Size() int { return len(s.Members) }

func (s Source) validate(key string, dim int) error {
	if s.Nominal == nil {
		return fmt.Errorf("%w: component %q", ErrMissingTable, key)
	}
	if s.Nominal.Dim() != dim {
		return fmt.Errorf("%w: component %q has %d variables, table %q is %dD", ErrVariables, key, dim, s.Nominal.Name(), s.Nominal.Dim())
	}
	for k, m := range s.Members {
		if m == nil || !s.Nominal.SameBinning(m) {
			return fmt.Errorf("%w: component %q member %d does not share the binning of %q", ErrShapeMismatch, key, k, s.Nominal.Name())
		}
	}
	return nil
}

// Component evaluates one named correction per event.
type Component struct {
	key      string
	output   string
	vars     []string
	splitVar string
	policy   calib.Policy
	// branches[0] is used when the split variable is zero (or there is no
	// split), branches[1] otherwise.
	branches []Source
}

// NewComponent binds src to the event variables vars.
func NewComponent(key string, vars []string, policy calib.Policy, src Source) (*Component, error) {
	if err := src.validate(key, len(vars)); err != nil {
		return nil, err
	}
	return &Component{
		key:      key,
		output:   key,
		vars:     append([]string(nil), vars...),
		policy:   policy,
		branches: []Source{src},
	}, nil
}

// NewSplitComponent binds two sources selected by the boolean event variable
// splitVar. Both branches must have the same dimension and ensemble size.
func NewSplitComponent(key string, vars []string, splitVar string, policy calib.Policy, whenFalse, whenTrue Source) (*Component, error) {
	if splitVar == "" {
		return nil, fmt.Errorf("%w: component %q split variable is empty", ErrVariables, key)
	}
	for _, s := range []Source{whenFalse, whenTrue} {
		if err := s.validate(key, len(vars)); err != nil {
			return nil, err
		}
	}
	if whenFalse.Size() != whenTrue.Size() {
		return nil, fmt.Errorf("%w: component %q branches have %d and %d members", ErrShapeMismatch, key, whenFalse.Size(), whenTrue.Size())
	}
	return &Component{
		key:      key,
		output:   key,
		vars:     append([]string(nil), vars...),
		splitVar: splitVar,
		policy:   policy,
		branches: []Source{whenFalse, whenTrue},
	}, nil
}

// WithOutput returns a copy of c reporting under a different output name.
// The tables are shared.
func (c *Component) WithOutput(name string) *Component {
	cp := *c
	cp.output = name
	return &cp
}

// Key returns the component key.
func (c *Component) Key() string { return c.key }

// Output returns the diagnostic output name.
func (c *Component) Output() string { return c.output }

// Vars returns the coordinate variable names.
func (c *Component) Vars() []string { return append([]string(nil), c.vars...) }

// Policy returns the lookup policy.
func (c *Component) Policy() calib.Policy { return c.policy }

// Size returns the number of bootstrap members, 0 for plain tables.
func (c *Component) Size() int { return c.branches[0].Size() }

func (c *Component) resolve(ev Event) (Source, []float64, error) {
	src := c.branches[0]
	if c.splitVar != "" {
		flag, ok := ev.Value(c.splitVar)
		if !ok {
			return Source{}, nil, fmt.Errorf("%w: component %q needs %q", ErrMissingVariable, c.key, c.splitVar)
		}
		if math.IsNaN(flag) {
			return Source{}, nil, fmt.Errorf("%w: component %q flag %q", ErrSplitFlag, c.key, c.splitVar)
		}
		if flag != 0 {
			src = c.branches[1]
		}
	}
	coords := make([]float64, len(c.vars))
	for i, name := range c.vars {
		v, ok := ev.Value(name)
		if !ok {
			return Source{}, nil, fmt.Errorf("%w: component %q needs %q", ErrMissingVariable, c.key, name)
		}
		coords[i] = v
	}
	return src, coords, nil
}

// Evaluate looks the event up in the nominal table.
func (c *Component) Evaluate(ev Event) (calib.Result, error) {
	src, coords, err := c.resolve(ev)
	if err != nil {
		return calib.Result{}, err
	}
	return src.Nominal.Lookup(coords, c.policy)
}

// EvaluateMembers looks the event up in every bootstrap member with the
// same coordinates. The boolean reports whether any member value was
// adjusted by the validity policy.
func (c *Component) EvaluateMembers(ev Event) ([]float64, bool, error) {
	vals, _, adjusted, err := c.members(ev, false)
	return vals, adjusted, err
}

// members clamps the coordinates once against the nominal binning so
// out-of-domain events are not reported once per member. With report set
// the coordinate clamps are reported; otherwise the caller already did so
// through a nominal lookup.
func (c *Component) members(ev Event, report bool) (vals []float64, clamped, adjusted bool, err error) {
	if c.Size() == 0 {
		return nil, false, false, fmt.Errorf("%w: %q", ErrNotEnsemble, c.key)
	}
	src, coords, err := c.resolve(ev)
	if err != nil {
		return nil, false, false, err
	}
	if report {
		coords, clamped = src.Nominal.ClampCoords(coords)
	} else {
		for a := range coords {
			coords[a], _ = src.Nominal.Axis(a).Clamp(coords[a])
		}
	}
	vals = make([]float64, len(src.Members))
	for k, m := range src.Members {
		r, err := m.Lookup(coords, c.policy)
		if err != nil {
			return nil, false, false, err
		}
		vals[k] = r.Value
		adjusted = adjusted || r.Adjusted || r.FellBack
	}
	return vals, clamped, adjusted, nil
}
