// Package bootstrap resamples a nominal calibration table into a fixed-size
// ensemble of statistically varied copies.
//
// Bins that share the exact same (content, uncertainty) pair in the nominal
// table are assumed to come from one calibration source, so every ensemble
// member assigns them one common draw. Guard bins (0, 0) are never resampled.
// Member k is seeded from the version tag and k alone, which makes an
// ensemble reproducible across runs.
//
// Generation is single threaded and must finish before the ensemble is
// shared with concurrent evaluators; the finished Ensemble is read-only.
package bootstrap
