package calib

import (
	"errors"
	"math"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/banshee-data/calibweights/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLookup_ClampsBelowDomain(t *testing.T) {
	tab := mustTable(t, "eff", []Axis{{Name: "x", Edges: []float64{0, 1, 2, 3}}}, []float64{0.5, 0.7, 0.9}, filled(3, 0.01))

	for _, interp := range []bool{false, true} {
		p := Policy{Interpolate: interp}
		far, err := tab.Lookup([]float64{-5}, p)
		require.NoError(t, err)
		near, err := tab.Lookup([]float64{0.001}, p)
		require.NoError(t, err)

		assert.True(t, far.Clamped)
		assert.False(t, near.Clamped)
		assert.Equal(t, near.Value, far.Value, "interp=%v", interp)
		assert.Equal(t, 0.5, far.Value)
		assert.Equal(t, 0, far.Bin)
	}
}

func TestLookup_ClampsAboveDomain(t *testing.T) {
	tab := mustTable(t, "eff", []Axis{{Name: "x", Edges: []float64{0, 1, 2, 3}}}, []float64{0.5, 0.7, 0.9}, filled(3, 0.01))

	for _, x := range []float64{3, 3.5, 1e9, math.Inf(1)} {
		r, err := tab.Lookup([]float64{x}, Policy{})
		require.NoError(t, err)
		assert.True(t, r.Clamped, "x=%v", x)
		assert.Equal(t, 0.9, r.Value, "x=%v", x)
		assert.Equal(t, 2, r.Bin)
	}
}

func TestClampCoords(t *testing.T) {
	tab := mustTable(t, "eff2d", []Axis{{Name: "x", Edges: []float64{0, 1, 2}}, {Name: "y", Edges: []float64{0, 10}}}, []float64{0.5, 0.7}, nil)

	before := monitoring.Count(monitoring.KindCoordinateClamp)
	in := []float64{5, 3}
	got, clamped := tab.ClampCoords(in)
	assert.True(t, clamped)
	require.Len(t, got, 2)
	assert.InDelta(t, 1.99, got[0], 1e-12)
	assert.Equal(t, 3.0, got[1])
	assert.Equal(t, []float64{5, 3}, in, "input is not modified")
	assert.Equal(t, 1.0, monitoring.Count(monitoring.KindCoordinateClamp)-before)

	got, clamped = tab.ClampCoords([]float64{0.5, 9})
	assert.False(t, clamped)
	assert.Equal(t, []float64{0.5, 9}, got)
}

func TestLookup_ClampMatchesNearestInDomain(t *testing.T) {
	x := Axis{Name: "p", Edges: []float64{0, 2, 5, 10, 20}}
	y := Axis{Name: "eta", Edges: []float64{1.5, 2.5, 3.5, 5}}
	content := make([]float64, 12)
	for i := range content {
		content[i] = 0.1 + 0.07*float64(i)
	}
	tab := mustTable(t, "pid", []Axis{x, y}, content, filled(12, 0.01))

	rng := rand.New(rand.NewPCG(1, 2))
	for i := 0; i < 500; i++ {
		px := -50 + 100*rng.Float64()
		py := -10 + 20*rng.Float64()
		for _, interp := range []bool{false, true} {
			p := Policy{Interpolate: interp}
			got, err := tab.Lookup([]float64{px, py}, p)
			require.NoError(t, err)

			cx, _ := x.Clamp(px)
			cy, _ := y.Clamp(py)
			want, err := tab.Lookup([]float64{cx, cy}, p)
			require.NoError(t, err)
			assert.False(t, want.Clamped)
			assert.Equal(t, want.Value, got.Value, "(%v, %v) interp=%v", px, py, interp)
		}
	}
}

func TestLookup_FractionClamp(t *testing.T) {
	tab := mustTable(t, "over_one", []Axis{{Name: "x", Edges: []float64{0, 1}}}, []float64{1.2}, []float64{0.1})

	before := monitoring.Count(monitoring.KindFractionClamp)
	for _, x := range []float64{-3, 0.2, 0.5, 0.99, 7} {
		r, err := tab.Lookup([]float64{x}, Policy{Validity: ValidityFraction})
		require.NoError(t, err)
		assert.Equal(t, 1.0, r.Value)
		assert.Equal(t, 1.2, r.Raw)
		assert.True(t, r.Adjusted)
	}
	assert.Equal(t, 5.0, monitoring.Count(monitoring.KindFractionClamp)-before)

	r, err := tab.Lookup([]float64{0.5}, Policy{})
	require.NoError(t, err)
	assert.Equal(t, 1.2, r.Value, "no policy leaves the value alone")
	assert.False(t, r.Adjusted)
}

func TestLookup_FractionRangeHolds(t *testing.T) {
	x := Axis{Name: "x", Edges: []float64{0, 1, 2, 3, 4}}
	y := Axis{Name: "y", Edges: []float64{0, 1, 3}}
	content := []float64{-0.5, 0.2, 1.5, 0.9, 1.1, -0.1, 0.4, 2.0}
	tab := mustTable(t, "wild", []Axis{x, y}, content, filled(8, 0.05))

	rng := rand.New(rand.NewPCG(7, 7))
	for i := 0; i < 1000; i++ {
		c := []float64{-1 + 6*rng.Float64(), -1 + 5*rng.Float64()}
		for _, interp := range []bool{false, true} {
			r, err := tab.Lookup(c, Policy{Interpolate: interp, Validity: ValidityFraction})
			require.NoError(t, err)
			if r.Value < 0 || r.Value > 1 {
				t.Fatalf("Lookup(%v, interp=%v) = %v, outside [0,1]", c, interp, r.Value)
			}
		}
	}
}

func TestLookup_NonNegative(t *testing.T) {
	tab := mustTable(t, "ratio", []Axis{{Name: "x", Edges: []float64{0, 1, 2}}}, []float64{-0.2, 1.7}, []float64{0.1, 0.1})

	before := monitoring.Count(monitoring.KindNegativeClamp)
	r, err := tab.Lookup([]float64{0.5}, Policy{Validity: ValidityNonNegative})
	require.NoError(t, err)
	assert.Equal(t, 0.0, r.Value)
	assert.True(t, r.Adjusted)
	assert.Equal(t, 1.0, monitoring.Count(monitoring.KindNegativeClamp)-before)

	r, err = tab.Lookup([]float64{1.5}, Policy{Validity: ValidityNonNegative})
	require.NoError(t, err)
	assert.Equal(t, 1.7, r.Value, "ratios above one are legitimate")
	assert.False(t, r.Adjusted)
}

func TestLookup_GuardBinIsSilent(t *testing.T) {
	tab := mustTable(t, "guarded", []Axis{{Name: "x", Edges: []float64{0, 1, 2, 3}}}, []float64{0, 0.8, 0}, []float64{0, 0.1, 0})

	frac := monitoring.Count(monitoring.KindFractionClamp)
	fallback := monitoring.Count(monitoring.KindInterpFallback)
	for _, interp := range []bool{false, true} {
		r, err := tab.Lookup([]float64{0.5}, Policy{Interpolate: interp, Validity: ValidityFraction})
		require.NoError(t, err)
		assert.Equal(t, 0.0, r.Value)
		assert.True(t, r.Guard)
		assert.False(t, r.Adjusted)
		assert.False(t, r.FellBack)
	}
	assert.Equal(t, frac, monitoring.Count(monitoring.KindFractionClamp))
	assert.Equal(t, fallback, monitoring.Count(monitoring.KindInterpFallback))
}

func TestLookup_Interpolate1D(t *testing.T) {
	tab := mustTable(t, "line", []Axis{{Name: "x", Edges: []float64{0, 1, 2, 3}}}, []float64{0.5, 0.7, 0.9}, filled(3, 0.01))
	tests := []struct {
		x    float64
		want float64
	}{
		{0.2, 0.5},
		{0.5, 0.5},
		{1.0, 0.6},
		{1.5, 0.7},
		{2.25, 0.85},
		{2.9, 0.9},
	}
	for _, tt := range tests {
		r, err := tab.Lookup([]float64{tt.x}, Policy{Interpolate: true})
		require.NoError(t, err)
		assert.InDelta(t, tt.want, r.Value, 1e-12, "x=%v", tt.x)
		assert.True(t, r.Interpolated)
	}
}

func TestLookup_InterpolationZeroFallsBack(t *testing.T) {
	tab := mustTable(t, "cancel", []Axis{{Name: "x", Edges: []float64{0, 1, 2, 3}}}, []float64{1, -1, 0.5}, filled(3, 0.1))

	before := monitoring.Count(monitoring.KindInterpFallback)
	r, err := tab.Lookup([]float64{1.0}, Policy{Interpolate: true})
	require.NoError(t, err)
	assert.True(t, r.FellBack)
	assert.False(t, r.Interpolated)
	assert.Equal(t, -1.0, r.Value)
	assert.Equal(t, 1.0, monitoring.Count(monitoring.KindInterpFallback)-before)
}

func TestLookup_Interpolate2D(t *testing.T) {
	x := Axis{Name: "x", Edges: []float64{0, 1, 2}}
	y := Axis{Name: "y", Edges: []float64{0, 1, 2}}
	tab := mustTable(t, "plane", []Axis{x, y}, []float64{1, 2, 3, 4}, filled(4, 0.1))

	tests := []struct {
		x, y float64
		want float64
	}{
		{1, 1, 2.5},
		{0.25, 0.25, 1},
		{1, 0.25, 1.5},
		{1.75, 1.75, 4},
		{0.5, 1.5, 3},
		{1.25, 0.75, 2.25},
	}
	for _, tt := range tests {
		r, err := tab.Lookup([]float64{tt.x, tt.y}, Policy{Interpolate: true})
		require.NoError(t, err)
		assert.InDelta(t, tt.want, r.Value, 1e-12, "(%v, %v)", tt.x, tt.y)
	}
}

func TestLookup_Interpolate3DIsExactForLinearContent(t *testing.T) {
	ax := func(name string) Axis { return Axis{Name: name, Edges: []float64{0, 1, 2}} }
	content := make([]float64, 8)
	tab0 := mustTable(t, "tmp", []Axis{ax("x"), ax("y"), ax("z")}, content, nil)
	for idx := range content {
		b := tab0.Bins(idx)
		content[idx] = 1 + float64(b[0]) + 10*float64(b[1]) + 100*float64(b[2])
	}
	tab := mustTable(t, "cube", []Axis{ax("x"), ax("y"), ax("z")}, content, filled(8, 0.1))

	linear := func(x, y, z float64) float64 {
		return 1 + (x - 0.5) + 10*(y-0.5) + 100*(z-0.5)
	}
	points := [][3]float64{{1, 1, 1}, {1.2, 0.7, 1.4}, {0.6, 1.45, 0.55}}
	for _, p := range points {
		r, err := tab.Lookup(p[:], Policy{Interpolate: true})
		require.NoError(t, err)
		assert.InDelta(t, linear(p[0], p[1], p[2]), r.Value, 1e-9, "%v", p)
	}
}

func TestLookup_DimensionMismatch(t *testing.T) {
	tab := mustTable(t, "one", []Axis{{Name: "x", Edges: []float64{0, 1}}}, []float64{1}, nil)
	_, err := tab.Lookup([]float64{0.5, 0.5}, Policy{})
	if !errors.Is(err, ErrDimension) {
		t.Fatalf("Lookup error = %v, want ErrDimension", err)
	}
	assert.Panics(t, func() { tab.Value(Policy{}) })
	assert.Equal(t, 1.0, tab.Value(Policy{}, 0.5))
}

func TestLookup_ConcurrentIsDeterministic(t *testing.T) {
	x := Axis{Name: "x", Edges: []float64{0, 1, 2, 4, 8}}
	y := Axis{Name: "y", Edges: []float64{0, 0.5, 1}}
	tab := mustTable(t, "shared", []Axis{x, y}, []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8}, filled(8, 0.01))

	coords := make([][]float64, 200)
	want := make([]float64, len(coords))
	rng := rand.New(rand.NewPCG(3, 4))
	for i := range coords {
		coords[i] = []float64{-1 + 10*rng.Float64(), -0.2 + 1.4*rng.Float64()}
		want[i] = tab.Value(Policy{Interpolate: true}, coords[i]...)
	}

	var wg sync.WaitGroup
	errs := make(chan int, len(coords))
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i, c := range coords {
				if got := tab.Value(Policy{Interpolate: true}, c...); got != want[i] {
					errs <- i
				}
			}
		}()
	}
	wg.Wait()
	close(errs)
	for i := range errs {
		t.Errorf("concurrent lookup %d differs from sequential", i)
	}
}

func TestParseValidity(t *testing.T) {
	tests := []struct {
		in      string
		want    Validity
		wantErr bool
	}{
		{"", ValidityNone, false},
		{"none", ValidityNone, false},
		{"fraction", ValidityFraction, false},
		{"Efficiency", ValidityFraction, false},
		{"nonnegative", ValidityNonNegative, false},
		{"ratio", ValidityNonNegative, false},
		{"sometimes", ValidityNone, true},
	}
	for _, tt := range tests {
		got, err := ParseValidity(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseValidity(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseValidity(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}

	var v Validity
	require.NoError(t, v.UnmarshalText([]byte("fraction")))
	assert.Equal(t, ValidityFraction, v)
	b, _ := v.MarshalText()
	assert.Equal(t, "fraction", string(b))
}
