package weights

// Event exposes the named numeric fields of one input record.
type Event interface {
	Value(name string) (float64, bool)
}

// Record is a map-backed Event.
type Record map[string]float64

// Value implements Event.
func (r Record) Value(name string) (float64, bool) {
	v, ok := r[name]
	return v, ok
}
