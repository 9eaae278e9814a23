// Package efficiency turns passing/total histogram pairs into binomial
// efficiencies with Clopper-Pearson intervals.
package efficiency
