// calibweights looks up calibration tables, composes per-event correction
// weights and estimates selection efficiencies.
//
// Usage:
//
//	calibweights tables import tables.json [--db calibweights.db]
//	calibweights tables list
//	calibweights tables lookup <table> <x> [y] [z] [--validity fraction] [--interp]
//	calibweights weights --config run.yaml --events events.csv [-o weights.csv] [--page weights.html]
//	calibweights efficiency --config run.yaml --events events.csv --var pt --pass pass --edges 0,2,5,20 [--png eff.png]
//	calibweights migrate status|up|down
//	calibweights version
package main

import (
	"fmt"
	"os"
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
