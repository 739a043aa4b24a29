// Package analysis post-processes run output: gauge time series, their
// power spectra and two-component phase portraits.
//
//	tr, err := analysis.ReadGauge("_output/gauge0001.txt")
//	spec, err := analysis.PowerSpectrum(tr.T, tr.Component(0))
//	peak := spec.Peak()
package analysis
