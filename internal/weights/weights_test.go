package weights

import (
	"os"
	"testing"

	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/monitoring"
)

func TestMain(m *testing.M) {
	monitoring.SetLogger(nil)
	os.Exit(m.Run())
}

// fixtureTables returns a small set of tables keyed the way the composer
// tests bind them.
func fixtureTables(t *testing.T) MapLoader {
	t.Helper()
	p := calib.Axis{Name: "p", Edges: []float64{0, 10, 20, 50}}
	eta := calib.Axis{Name: "eta", Edges: []float64{2, 3, 5}}
	pt := calib.Axis{Name: "pt", Edges: []float64{0, 2, 5, 20}}

	mk := func(name string, axes []calib.Axis, content, unc []float64) *calib.Table {
		tab, err := calib.New(name, axes, content, unc)
		if err != nil {
			t.Fatalf("fixture %q: %v", name, err)
		}
		return tab
	}
	return MapLoader{
		"pid_K":        mk("pid_K", []calib.Axis{p, eta}, []float64{0.90, 0.92, 0.95, 0.88, 0.91, 0.97}, []float64{0.01, 0.01, 0.02, 0.01, 0.01, 0.02}),
		"pid_e":        mk("pid_e", []calib.Axis{p, eta}, []float64{0.80, 0.85, 1.05, 0.82, 0.86, 0.90}, []float64{0.02, 0.02, 0.05, 0.02, 0.02, 0.02}),
		"l0_nobrem":    mk("l0_nobrem", []calib.Axis{pt}, []float64{0.30, 0.60, 0.85}, []float64{0.02, 0.02, 0.01}),
		"l0_brem":      mk("l0_brem", []calib.Axis{pt}, []float64{0.35, 0.65, 0.90}, []float64{0.02, 0.02, 0.01}),
		"hlt":          mk("hlt", []calib.Axis{pt}, []float64{0.70, 0.80, 0.95}, []float64{0.03, 0.02, 0.01}),
		"trk":          mk("trk", []calib.Axis{p, eta}, []float64{1.02, 0.99, 1.01, 0.97, 1.00, -0.05}, []float64{0.01, 0.01, 0.01, 0.02, 0.01, 0.01}),
		"trk_wrong_1d": mk("trk_wrong_1d", []calib.Axis{p}, []float64{1, 1, 1}, nil),
	}
}

func fixtureBindings() []Binding {
	return []Binding{
		{Key: "hlt", Token: TokenHLT, Table: "hlt", Vars: []string{"pt"}, Validity: calib.ValidityFraction, Interpolable: true},
		{Key: "l0_e", Token: TokenL0, Table: "l0_nobrem", AltTable: "l0_brem", SplitVar: "brem", Vars: []string{"pt"}, Validity: calib.ValidityFraction, Interpolable: true, Bootstrap: true},
		{Key: "pid_K", Token: TokenPID, Table: "pid_K", Vars: []string{"K_p", "K_eta"}, Validity: calib.ValidityFraction, Interpolable: true, Bootstrap: true},
		{Key: "pid_e", Token: TokenPID, Table: "pid_e", Vars: []string{"e_p", "e_eta"}, Validity: calib.ValidityFraction, Bootstrap: true},
		{Key: "trk", Token: TokenTRK, Table: "trk", Vars: []string{"K_p", "K_eta"}, Validity: calib.ValidityNonNegative},
	}
}

func fixtureEvent() Record {
	return Record{
		"K_p": 15, "K_eta": 3.5,
		"e_p": 25, "e_eta": 2.5,
		"pt":   3.0,
		"brem": 1,
	}
}
