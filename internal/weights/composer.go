package weights

import (
	"errors"
	"fmt"
	"sort"

	"github.com/banshee-data/calibweights/internal/bootstrap"
	"github.com/banshee-data/calibweights/internal/calib"
)

var (
	ErrBinding        = errors.New("invalid weight binding")
	ErrDuplicateKey   = errors.New("duplicate component key")
	ErrBootstrapIndex = errors.New("bootstrap index out of range")
)

// DefaultBootstrapSize is the ensemble size used when a Configuration leaves
// it unset.
const DefaultBootstrapSize = 100

// Configuration captures everything a Composer needs at construction time.
// There is no process-wide state: two composers with different
// configurations can coexist.
type Configuration struct {
	Options Options
	// BootstrapIndex selects the ensemble member that feeds Result.Value.
	// -1 keeps the nominal value and only fills Result.Variants.
	BootstrapIndex int
	BootstrapSize  int
	// Version seeds the bootstrap ensembles.
	Version    string
	MaxRetries int
	OnExhaust  bootstrap.ExhaustPolicy
}

// NewConfiguration parses spec and fills defaults.
func NewConfiguration(spec string) (Configuration, error) {
	o, err := ParseOptions(spec)
	if err != nil {
		return Configuration{}, err
	}
	return Configuration{
		Options:        o,
		BootstrapIndex: -1,
		BootstrapSize:  DefaultBootstrapSize,
		Version:        "v0",
	}, nil
}

// Binding describes how one component is built when its token is enabled.
type Binding struct {
	Key   string
	Token Token
	// Table is the loader identifier of the nominal table. With a split,
	// Table backs SplitVar == 0 and AltTable backs SplitVar != 0.
	Table    string
	AltTable string
	SplitVar string
	Vars     []string
	Validity calib.Validity
	// Interpolable lets the interp token switch this component to
	// interpolation.
	Interpolable bool
	// Bootstrap lets the BS token back this component with an ensemble.
	Bootstrap bool
	// Output overrides the diagnostic output name; defaults to Key.
	Output string
}

func (b Binding) validate() error {
	switch {
	case b.Key == "":
		return fmt.Errorf("%w: empty key", ErrBinding)
	case !b.Token.IsComponent():
		return fmt.Errorf("%w: %q has token %q, want one of %v", ErrBinding, b.Key, b.Token, componentTokens)
	case b.Table == "":
		return fmt.Errorf("%w: %q has no table", ErrBinding, b.Key)
	case len(b.Vars) < 1 || len(b.Vars) > calib.MaxDim:
		return fmt.Errorf("%w: %q has %d variables, want 1..%d", ErrBinding, b.Key, len(b.Vars), calib.MaxDim)
	case (b.SplitVar == "") != (b.AltTable == ""):
		return fmt.Errorf("%w: %q needs both split_var and alt_table or neither", ErrBinding, b.Key)
	}
	return nil
}

// TableLoader resolves a table identifier. It is the persistence
// collaborator; a failure is fatal for the composer.
type TableLoader interface {
	LoadTable(id string) (*calib.Table, error)
}

// MapLoader is an in-memory TableLoader keyed by identifier.
type MapLoader map[string]*calib.Table

// LoadTable implements TableLoader.
func (m MapLoader) LoadTable(id string) (*calib.Table, error) {
	t, ok := m[id]
	if !ok || t == nil {
		return nil, fmt.Errorf("table %q not found", id)
	}
	return t, nil
}

// Factor is one component's contribution to a Result.
type Factor struct {
	Key      string
	Output   string
	Value    float64
	Adjusted bool
}

// Result is the composed weight of one event.
type Result struct {
	// Value is the product of the enabled components: nominal tables, or
	// the selected bootstrap member for ensemble-backed components.
	Value float64
	// Variants holds one product per bootstrap member when BS is on.
	// Components without an ensemble are broadcast across all members.
	Variants []float64
	// Identity is true when no component is enabled, so Value is 1 by
	// construction rather than by evaluation.
	Identity bool
	// Adjusted is true when any lookup was clamped or fell back.
	Adjusted bool
	Factors  []Factor
}

// Composer multiplies the components enabled by a Configuration.
type Composer struct {
	cfg        Configuration
	components []*Component
	size       int
}

// NewComposer resolves every enabled binding against loader, builds
// bootstrap ensembles when BS is on, and orders components by token
// (TRK, PID, L0, HLT) then key. All configuration problems surface here,
// never during evaluation.
func NewComposer(cfg Configuration, bindings []Binding, loader TableLoader) (*Composer, error) {
	if err := cfg.Options.Validate(); err != nil {
		return nil, err
	}
	if cfg.BootstrapIndex < -1 {
		return nil, fmt.Errorf("%w: %d", ErrBootstrapIndex, cfg.BootstrapIndex)
	}
	if !cfg.Options.BS && cfg.BootstrapIndex != -1 {
		return nil, fmt.Errorf("%w: bootstrap index %d set without BS", ErrContradiction, cfg.BootstrapIndex)
	}

	seen := make(map[string]bool)
	for _, b := range bindings {
		if err := b.validate(); err != nil {
			return nil, err
		}
		if seen[b.Key] {
			return nil, fmt.Errorf("%w: %q", ErrDuplicateKey, b.Key)
		}
		seen[b.Key] = true
	}

	enabled := make([]Binding, 0, len(bindings))
	for _, b := range bindings {
		if cfg.Options.Enabled(b.Token) {
			enabled = append(enabled, b)
		}
	}
	sort.SliceStable(enabled, func(i, j int) bool {
		ri, rj := enabled[i].Token.rank(), enabled[j].Token.rank()
		if ri != rj {
			return ri < rj
		}
		return enabled[i].Key < enabled[j].Key
	})

	r := &resolver{cfg: cfg, loader: loader, tables: map[string]*calib.Table{}, ensembles: map[string]*bootstrap.Ensemble{}}
	c := &Composer{cfg: cfg}
	for _, b := range enabled {
		comp, err := r.component(b)
		if err != nil {
			return nil, err
		}
		c.components = append(c.components, comp)
		if comp.Size() > 0 {
			c.size = comp.Size()
		}
	}

	if cfg.Options.BS {
		if c.size == 0 {
			return nil, fmt.Errorf("%w: BS requested but no enabled component is bootstrappable", ErrContradiction)
		}
		if cfg.BootstrapIndex >= c.size {
			return nil, fmt.Errorf("%w: %d with %d members", ErrBootstrapIndex, cfg.BootstrapIndex, c.size)
		}
	}
	return c, nil
}

type resolver struct {
	cfg       Configuration
	loader    TableLoader
	tables    map[string]*calib.Table
	ensembles map[string]*bootstrap.Ensemble
}

func (r *resolver) table(key, id string) (*calib.Table, error) {
	if t, ok := r.tables[id]; ok {
		return t, nil
	}
	if r.loader == nil {
		return nil, fmt.Errorf("%w: binding %q table %q: no loader", ErrMissingTable, key, id)
	}
	t, err := r.loader.LoadTable(id)
	if err != nil {
		return nil, fmt.Errorf("%w: binding %q table %q: %w", ErrMissingTable, key, id, err)
	}
	if t == nil {
		return nil, fmt.Errorf("%w: binding %q table %q", ErrMissingTable, key, id)
	}
	r.tables[id] = t
	return t, nil
}

func (r *resolver) source(b Binding, id string) (Source, error) {
	t, err := r.table(b.Key, id)
	if err != nil {
		return Source{}, err
	}
	if !r.cfg.Options.BS || !b.Bootstrap {
		return Nominal(t), nil
	}
	constraint := bootstrap.ResampleConstraint(b.Validity)
	ek := id + "|" + constraint.String()
	ens, ok := r.ensembles[ek]
	if !ok {
		size := r.cfg.BootstrapSize
		if size <= 0 {
			size = DefaultBootstrapSize
		}
		g := &bootstrap.Generator{
			Size:       size,
			Version:    r.cfg.Version,
			Constraint: constraint,
			MaxRetries: r.cfg.MaxRetries,
			OnExhaust:  r.cfg.OnExhaust,
		}
		ens, err = g.Generate(t)
		if err != nil {
			return Source{}, fmt.Errorf("bootstrap %q for %q: %w", id, b.Key, err)
		}
		r.ensembles[ek] = ens
	}
	return FromEnsemble(ens), nil
}

func (r *resolver) component(b Binding) (*Component, error) {
	policy := calib.Policy{
		Interpolate: r.cfg.Options.Interp && b.Interpolable,
		Validity:    b.Validity,
	}
	primary, err := r.source(b, b.Table)
	if err != nil {
		return nil, err
	}
	var comp *Component
	if b.SplitVar == "" {
		comp, err = NewComponent(b.Key, b.Vars, policy, primary)
	} else {
		alt, aerr := r.source(b, b.AltTable)
		if aerr != nil {
			return nil, aerr
		}
		comp, err = NewSplitComponent(b.Key, b.Vars, b.SplitVar, policy, primary, alt)
	}
	if err != nil {
		return nil, err
	}
	if b.Output != "" {
		comp = comp.WithOutput(b.Output)
	}
	return comp, nil
}

// Configuration returns the configuration the composer was built with.
func (c *Composer) Configuration() Configuration { return c.cfg }

// Keys returns the enabled component keys in evaluation order.
func (c *Composer) Keys() []string {
	out := make([]string, len(c.components))
	for i, comp := range c.components {
		out[i] = comp.Key()
	}
	return out
}

// Size returns the bootstrap ensemble size, 0 without BS.
func (c *Composer) Size() int { return c.size }

// Evaluate composes the weight of ev.
func (c *Composer) Evaluate(ev Event) (Result, error) {
	res := Result{Value: 1, Identity: len(c.components) == 0}
	if c.size > 0 {
		res.Variants = make([]float64, c.size)
		for k := range res.Variants {
			res.Variants[k] = 1
		}
	}
	if res.Identity {
		return res, nil
	}

	res.Factors = make([]Factor, 0, len(c.components))
	for _, comp := range c.components {
		f, err := c.factor(comp, ev, res.Variants)
		if err != nil {
			return Result{}, err
		}
		res.Value *= f.Value
		res.Adjusted = res.Adjusted || f.Adjusted
		res.Factors = append(res.Factors, f)
	}
	return res, nil
}

// factor evaluates one component and multiplies its member values into
// variants. With a member index selected, the nominal table of an
// ensemble-backed component is not looked up at all.
func (c *Composer) factor(comp *Component, ev Event, variants []float64) (Factor, error) {
	f := Factor{Key: comp.Key(), Output: comp.Output()}
	if comp.Size() > 0 && c.cfg.BootstrapIndex >= 0 {
		vals, clamped, adjusted, err := comp.members(ev, true)
		if err != nil {
			return Factor{}, err
		}
		for k := range variants {
			variants[k] *= vals[k]
		}
		f.Value = vals[c.cfg.BootstrapIndex]
		f.Adjusted = clamped || adjusted
		return f, nil
	}

	r, err := comp.Evaluate(ev)
	if err != nil {
		return Factor{}, err
	}
	f.Value = r.Value
	f.Adjusted = r.Clamped || r.Adjusted || r.FellBack
	if comp.Size() == 0 {
		for k := range variants {
			variants[k] *= r.Value
		}
		return f, nil
	}
	vals, _, adjusted, err := comp.members(ev, false)
	if err != nil {
		return Factor{}, err
	}
	for k := range variants {
		variants[k] *= vals[k]
	}
	f.Adjusted = f.Adjusted || adjusted
	return f, nil
}
