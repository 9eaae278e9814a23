// Package calib owns the binned calibration tables and the lookup primitive.
//
// A Table is an immutable 1D, 2D or 3D grid of bin contents and bin
// uncertainties over strictly increasing (possibly irregular) edges. Lookup
// maps a coordinate tuple onto a finite scalar: coordinates outside the
// domain are clamped to just inside the first or last bin, never rejected;
// interpolation between bin centres is optional; and a validity policy keeps
// efficiency-type values inside [0,1] and ratio-type values non-negative.
//
// Every recoverable adjustment is reported through internal/monitoring.
// Tables are safe to share between goroutines.
package calib
