// Package pipeline streams events through a weight composer with a bounded
// worker pool and hands the results to a sink in event order.
package pipeline
