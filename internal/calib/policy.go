package calib

import (
	"fmt"
	"strings"
)

// Validity is the range a looked-up value must fall in.
type Validity int

const (
	// ValidityNone passes values through unchanged.
	ValidityNone Validity = iota
	// ValidityFraction clamps efficiency-type values into [0,1].
	ValidityFraction
	// ValidityNonNegative floors ratio-type values at 0. Ratios above 1
	// are legitimate and left alone.
	ValidityNonNegative
)

func (v Validity) String() string {
	switch v {
	case ValidityFraction:
		return "fraction"
	case ValidityNonNegative:
		return "nonnegative"
	default:
		return "none"
	}
}

// ParseValidity accepts "none", "fraction" or "nonnegative" (case-insensitive;
// "" means none).
func ParseValidity(s string) (Validity, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return ValidityNone, nil
	case "fraction", "efficiency":
		return ValidityFraction, nil
	case "nonnegative", "non-negative", "ratio":
		return ValidityNonNegative, nil
	}
	return ValidityNone, fmt.Errorf("unknown validity policy %q", s)
}

// MarshalText implements encoding.TextMarshaler.
func (v Validity) MarshalText() ([]byte, error) { return []byte(v.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (v *Validity) UnmarshalText(b []byte) error {
	p, err := ParseValidity(string(b))
	if err != nil {
		return err
	}
	*v = p
	return nil
}

// Apply returns x moved into the valid range and whether it was moved.
func (v Validity) Apply(x float64) (float64, bool) {
	switch v {
	case ValidityFraction:
		if x < 0 {
			return 0, true
		}
		if x > 1 {
			return 1, true
		}
	case ValidityNonNegative:
		if x < 0 {
			return 0, true
		}
	}
	return x, false
}

// Valid reports whether x already satisfies v.
func (v Validity) Valid(x float64) bool {
	_, moved := v.Apply(x)
	return !moved
}

// Policy controls how a lookup turns bin contents into a value.
type Policy struct {
	Interpolate bool
	Validity    Validity
}
