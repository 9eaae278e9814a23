// Package weights turns calibration tables into per-event correction weights.
//
// A Component binds one table (or two, split by a boolean event variable, or
// a bootstrap ensemble) to the event variables that form its coordinates.
// A Composer selects components from a configuration string made of a closed
// token vocabulary (PID, L0, HLT, TRK, BS, interp), resolves every table up
// front and multiplies the enabled components in a fixed order. Evaluation
// is pure: a Composer may be shared by any number of goroutines.
package weights
