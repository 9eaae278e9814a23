package bootstrap

import (
	"github.com/banshee-data/calibweights/internal/calib"
)

// Group is a set of bins with identical nominal content and uncertainty.
type Group struct {
	Content     float64
	Uncertainty float64
	// Bins are flat bin indices in increasing order.
	Bins []int
}

type groupKey struct {
	content, uncertainty float64
}

// Groups builds the degeneracy map of t. Guard bins are left out and groups
// are ordered by their first bin.
func Groups(t *calib.Table) []Group {
	index := make(map[groupKey]int)
	var groups []Group
	for idx := 0; idx < t.Len(); idx++ {
		if t.IsGuard(idx) {
			continue
		}
		k := groupKey{t.Content(idx), t.Uncertainty(idx)}
		g, ok := index[k]
		if !ok {
			g = len(groups)
			index[k] = g
			groups = append(groups, Group{Content: k.content, Uncertainty: k.uncertainty})
		}
		groups[g].Bins = append(groups[g].Bins, idx)
	}
	return groups
}
