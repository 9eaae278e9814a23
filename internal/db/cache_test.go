package db

import (
	"testing"

	"github.com/banshee-data/calibweights/internal/calib"
	"github.com/banshee-data/calibweights/internal/weights"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type countingLoader struct {
	next  weights.TableLoader
	calls map[string]int
}

func (c *countingLoader) LoadTable(id string) (*calib.Table, error) {
	c.calls[id]++
	return c.next.LoadTable(id)
}

func TestCachedLoader(t *testing.T) {
	base := &countingLoader{
		next: weights.MapLoader{
			"a": testTable(t, "a", 1),
			"b": testTable(t, "b", 1),
			"c": testTable(t, "c", 1),
		},
		calls: map[string]int{},
	}
	c, err := NewCachedLoader(base, 2)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		tab, err := c.LoadTable("a")
		require.NoError(t, err)
		assert.Equal(t, "a", tab.Name())
	}
	assert.Equal(t, 1, base.calls["a"])

	_, err = c.LoadTable("b")
	require.NoError(t, err)
	_, err = c.LoadTable("c")
	require.NoError(t, err)
	assert.Equal(t, 2, c.Len())

	// "a" was the least recently used and has been evicted.
	_, err = c.LoadTable("a")
	require.NoError(t, err)
	assert.Equal(t, 2, base.calls["a"])

	c.Invalidate("a")
	_, err = c.LoadTable("a")
	require.NoError(t, err)
	assert.Equal(t, 3, base.calls["a"])
}

func TestCachedLoader_ErrorsAreNotCached(t *testing.T) {
	d := setupTestDB(t)
	store := NewTableStore(d.DB)
	c, err := NewCachedLoader(store, 0)
	require.NoError(t, err)

	_, err = c.LoadTable("late")
	assert.ErrorIs(t, err, ErrTableNotFound)

	require.NoError(t, store.Save(testTable(t, "late", 1)))
	tab, err := c.LoadTable("late")
	require.NoError(t, err)
	assert.Equal(t, "late", tab.Name())
}
