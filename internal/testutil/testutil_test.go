package testutil

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestComposerOverFixtures(t *testing.T) {
	c := Composer(t, "TRK-PID-L0-HLT")
	assert.Equal(t, []string{"trk", "pid_K", "l0", "hlt"}, c.Keys())

	for _, ev := range Records(50, 1) {
		r, err := c.Evaluate(ev)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, r.Value, 0.0)
	}
}

func TestRecordsAreReproducible(t *testing.T) {
	assert.Equal(t, Records(20, 7), Records(20, 7))
	assert.NotEqual(t, Records(20, 7), Records(20, 8))
	for _, ev := range Records(200, 3) {
		assert.Contains(t, []float64{0, 1}, ev["pass"])
		assert.True(t, ev["pt"] >= 0 && ev["pt"] < 20)
	}
}
