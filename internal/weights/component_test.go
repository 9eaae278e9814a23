package weights

import (
	"math"
	"testing"

	"github.com/banshee-data/calibweights/internal/bootstrap"
	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/monitoring"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComponent_Evaluate(t *testing.T) {
	tables := fixtureTables(t)
	c, err := NewComponent("pid_K", []string{"K_p", "K_eta"}, calib.Policy{Validity: calib.ValidityFraction}, Nominal(tables["pid_K"]))
	require.NoError(t, err)

	r, err := c.Evaluate(fixtureEvent())
	require.NoError(t, err)
	assert.Equal(t, 0.91, r.Value)
	assert.Equal(t, 0, c.Size())
	assert.Equal(t, []string{"K_p", "K_eta"}, c.Vars())

	r, err = c.Evaluate(Record{"K_p": -100, "K_eta": 99})
	require.NoError(t, err)
	assert.True(t, r.Clamped)
	assert.Equal(t, tables["pid_K"].Content(tables["pid_K"].Index(0, 1)), r.Value)
}

func TestComponent_Construction(t *testing.T) {
	tables := fixtureTables(t)

	_, err := NewComponent("trk", []string{"K_p", "K_eta"}, calib.Policy{}, Nominal(tables["trk_wrong_1d"]))
	assert.ErrorIs(t, err, ErrVariables)

	_, err = NewComponent("none", []string{"x"}, calib.Policy{}, Nominal(nil))
	assert.ErrorIs(t, err, ErrMissingTable)

	bad := Source{Nominal: tables["pid_K"], Members: []*calib.Table{tables["trk"], tables["pid_e"], tables["l0_brem"]}}
	_, err = NewComponent("pid_K", []string{"K_p", "K_eta"}, calib.Policy{}, bad)
	assert.ErrorIs(t, err, ErrShapeMismatch)

	_, err = NewSplitComponent("l0", []string{"pt"}, "", calib.Policy{}, Nominal(tables["l0_nobrem"]), Nominal(tables["l0_brem"]))
	assert.ErrorIs(t, err, ErrVariables)

	ens, err := (&bootstrap.Generator{Size: 4, Version: "t"}).Generate(tables["l0_brem"])
	require.NoError(t, err)
	_, err = NewSplitComponent("l0", []string{"pt"}, "brem", calib.Policy{}, Nominal(tables["l0_nobrem"]), FromEnsemble(ens))
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestComponent_Split(t *testing.T) {
	tables := fixtureTables(t)
	c, err := NewSplitComponent("l0", []string{"pt"}, "brem", calib.Policy{}, Nominal(tables["l0_nobrem"]), Nominal(tables["l0_brem"]))
	require.NoError(t, err)

	r, err := c.Evaluate(Record{"pt": 3, "brem": 0})
	require.NoError(t, err)
	assert.Equal(t, 0.60, r.Value)

	r, err = c.Evaluate(Record{"pt": 3, "brem": 1})
	require.NoError(t, err)
	assert.Equal(t, 0.65, r.Value)

	_, err = c.Evaluate(Record{"pt": 3})
	assert.ErrorIs(t, err, ErrMissingVariable)
}

func TestComponent_SplitFlagNaNIsAnError(t *testing.T) {
	tables := fixtureTables(t)
	ens, err := (&bootstrap.Generator{Size: 3, Version: "nan"}).Generate(tables["l0_brem"])
	require.NoError(t, err)
	nom, err := (&bootstrap.Generator{Size: 3, Version: "nan"}).Generate(tables["l0_nobrem"])
	require.NoError(t, err)
	c, err := NewSplitComponent("l0", []string{"pt"}, "brem", calib.Policy{}, FromEnsemble(nom), FromEnsemble(ens))
	require.NoError(t, err)

	ev := Record{"pt": 3, "brem": math.NaN()}
	_, err = c.Evaluate(ev)
	assert.ErrorIs(t, err, ErrSplitFlag)
	_, _, err = c.EvaluateMembers(ev)
	assert.ErrorIs(t, err, ErrSplitFlag)
}

func TestComponent_MissingVariable(t *testing.T) {
	tables := fixtureTables(t)
	c, err := NewComponent("hlt", []string{"pt"}, calib.Policy{}, Nominal(tables["hlt"]))
	require.NoError(t, err)
	_, err = c.Evaluate(Record{"p": 3})
	assert.ErrorIs(t, err, ErrMissingVariable)
}

func TestComponent_WithOutputSharesTables(t *testing.T) {
	tables := fixtureTables(t)
	c, err := NewComponent("hlt", []string{"pt"}, calib.Policy{}, Nominal(tables["hlt"]))
	require.NoError(t, err)

	d := c.WithOutput("hlt_copy")
	assert.Equal(t, "hlt", c.Output())
	assert.Equal(t, "hlt_copy", d.Output())
	assert.Equal(t, c.Key(), d.Key())

	ev := Record{"pt": 7}
	rc, err := c.Evaluate(ev)
	require.NoError(t, err)
	rd, err := d.Evaluate(ev)
	require.NoError(t, err)
	assert.Equal(t, rc.Value, rd.Value)
}

func TestComponent_EvaluateMembers(t *testing.T) {
	tables := fixtureTables(t)
	ens, err := (&bootstrap.Generator{Size: 6, Version: "members", Constraint: calib.ValidityFraction}).Generate(tables["hlt"])
	require.NoError(t, err)

	c, err := NewComponent("hlt", []string{"pt"}, calib.Policy{Validity: calib.ValidityFraction}, FromEnsemble(ens))
	require.NoError(t, err)
	require.Equal(t, 6, c.Size())

	vals, _, err := c.EvaluateMembers(Record{"pt": 3})
	require.NoError(t, err)
	require.Len(t, vals, 6)
	for k, v := range vals {
		assert.Equal(t, ens.Member(k).Content(1), v)
	}

	before := monitoring.Count(monitoring.KindCoordinateClamp)
	vals, _, err = c.EvaluateMembers(Record{"pt": 1000})
	require.NoError(t, err)
	for k, v := range vals {
		assert.Equal(t, ens.Member(k).Content(2), v)
	}
	assert.Equal(t, before, monitoring.Count(monitoring.KindCoordinateClamp), "members see pre-clamped coordinates")

	plain, err := NewComponent("hlt", []string{"pt"}, calib.Policy{}, Nominal(tables["hlt"]))
	require.NoError(t, err)
	_, _, err = plain.EvaluateMembers(Record{"pt": 3})
	assert.ErrorIs(t, err, ErrNotEnsemble)
}
