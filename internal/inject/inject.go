// Package inject superimposes synthetic emission lines onto spectra.
package inject

import (
	"gonum.org/v1/gonum/floats"

	"goalias/domain/lsf"
	"goalias/domain/spectrum"
)

// Line returns a new flux array with a synthetic line of the given
// amplitude superimposed at the (possibly fractional) pixel center.
// The source spectrum is never mutated, so callers can run many trials
// against the same dataset without accumulated contamination.
//
// The injection is noiseless: inverse-variance is unaffected, matching
// the noiseless-line model the sensitivity figures assume.
func Line(spec spectrum.Spectrum, kernel lsf.Kernel, center, amp float64) []float64 {
	flux := spec.CloneFlux()
	floats.AddScaled(flux, amp, kernel.Profile(spec.Len(), center))
	return flux
}

// Into adds the line in place into a caller-owned flux buffer of the
// same length, for hot loops that recycle allocations.
func Into(flux []float64, kernel lsf.Kernel, center, amp float64) {
	floats.AddScaled(flux, amp, kernel.Profile(len(flux), center))
}
