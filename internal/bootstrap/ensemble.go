package bootstrap

import (
	"gonum.org/v1/gonum/stat"

	"github.com/banshee-data/calibweights/internal/calib"
)

// Ensemble is a nominal table plus its resampled members. Members share the
// nominal binning and carry no uncertainty.
type Ensemble struct {
	Nominal *calib.Table
	Members []*calib.Table
	Version string
}

// Size returns the number of members.
func (e *Ensemble) Size() int { return len(e.Members) }

// Member returns member k.
func (e *Ensemble) Member(k int) *calib.Table { return e.Members[k] }

// BinValues returns the value of flat bin idx in every member.
func (e *Ensemble) BinValues(idx int) []float64 {
	out := make([]float64, len(e.Members))
	for k, m := range e.Members {
		out[k] = m.Content(idx)
	}
	return out
}

// Spread returns the mean and sample standard deviation of flat bin idx
// across members.
func (e *Ensemble) Spread(idx int) (mean, std float64) {
	vals := e.BinValues(idx)
	if len(vals) < 2 {
		if len(vals) == 1 {
			return vals[0], 0
		}
		return 0, 0
	}
	return stat.MeanStdDev(vals, nil)
}
