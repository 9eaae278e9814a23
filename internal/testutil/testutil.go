// Package testutil provides shared fixtures for packages that sit above the
// weight composer: a small table set, matching bindings and random events.
package testutil

import (
	"math/rand/v2"
	"testing"

	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/weights"
)

// AssertNoError fails the test if err is not nil.
func AssertNoError(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

// MustTable builds a table or fails the test.
func MustTable(t testing.TB, name string, axes []calib.Axis, content, unc []float64) *calib.Table {
	t.Helper()
	tab, err := calib.New(name, axes, content, unc)
	AssertNoError(t, err)
	return tab
}

// Tables returns a PID, L0, HLT and TRK table set over p/eta and pt.
func Tables(t testing.TB) weights.MapLoader {
	t.Helper()
	p := calib.Axis{Name: "p", Edges: []float64{0, 10, 20, 50}}
	eta := calib.Axis{Name: "eta", Edges: []float64{2, 3, 5}}
	pt := calib.Axis{Name: "pt", Edges: []float64{0, 2, 5, 20}}
	return weights.MapLoader{
		"pid_K": MustTable(t, "pid_K", []calib.Axis{p, eta},
			[]float64{0.90, 0.92, 0.95, 0.88, 0.91, 0.97},
			[]float64{0.01, 0.01, 0.02, 0.01, 0.01, 0.02}),
		"l0": MustTable(t, "l0", []calib.Axis{pt},
			[]float64{0.30, 0.60, 0.85},
			[]float64{0.02, 0.02, 0.01}),
		"hlt": MustTable(t, "hlt", []calib.Axis{pt},
			[]float64{0.70, 0.80, 0.95},
			[]float64{0.03, 0.02, 0.01}),
		"trk": MustTable(t, "trk", []calib.Axis{p, eta},
			[]float64{1.02, 0.99, 1.01, 0.97, 1.00, 1.03},
			[]float64{0.01, 0.01, 0.01, 0.02, 0.01, 0.01}),
	}
}

// Bindings binds Tables to the variables produced by Records.
func Bindings() []weights.Binding {
	return []weights.Binding{
		{Key: "pid_K", Token: weights.TokenPID, Table: "pid_K", Vars: []string{"p", "eta"}, Validity: calib.ValidityFraction, Interpolable: true, Bootstrap: true},
		{Key: "l0", Token: weights.TokenL0, Table: "l0", Vars: []string{"pt"}, Validity: calib.ValidityFraction, Interpolable: true, Bootstrap: true},
		{Key: "hlt", Token: weights.TokenHLT, Table: "hlt", Vars: []string{"pt"}, Validity: calib.ValidityFraction},
		{Key: "trk", Token: weights.TokenTRK, Table: "trk", Vars: []string{"p", "eta"}, Validity: calib.ValidityNonNegative},
	}
}

// Composer builds a composer over Tables and Bindings.
func Composer(t testing.TB, spec string) *weights.Composer {
	t.Helper()
	cfg, err := weights.NewConfiguration(spec)
	AssertNoError(t, err)
	c, err := weights.NewComposer(cfg, Bindings(), Tables(t))
	AssertNoError(t, err)
	return c
}

// Records draws n reproducible events with p, eta, pt and a pass flag.
func Records(n int, seed uint64) []weights.Record {
	rng := rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
	out := make([]weights.Record, n)
	for i := range out {
		pt := 20 * rng.Float64()
		pass := 0.0
		if rng.Float64() < 0.3+0.03*pt {
			pass = 1
		}
		out[i] = weights.Record{
			"p":    60 * rng.Float64(),
			"eta":  2 + 3*rng.Float64(),
			"pt":   pt,
			"pass": pass,
		}
	}
	return out
}
