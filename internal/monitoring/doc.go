// Package monitoring carries the diagnostic side channel of the weight engine.
//
// Recoverable conditions (coordinate clamps, validity clamps, interpolation
// fallbacks, bootstrap retry exhaustion, efficiency bin clamps) are never
// returned as errors. They are reported here instead: logged through Logf and
// counted per kind on Registry so a run summary can show how often each one
// fired.
package monitoring
