// Package report renders efficiency curves as PNG plots and weight
// distributions as HTML pages.
package report
