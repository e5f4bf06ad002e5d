// Package continuum estimates and removes the stellar continuum so that
// narrow emission features stand out against a flat baseline.
package continuum

import (
	"fmt"
	"math"
	"sort"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/mat"

	"goalias/domain/spectrum"
)

// Config controls continuum extraction. The defaults reproduce the
// APOGEE reduction: 100-pixel segments, the 70th-80th percentile band as
// continuum pixels, and an independent degree-6 polynomial per detector
// chip with breakpoints at pixels 3400 and 6250.
type Config struct {
	SegmentLen   int
	PercentileLo float64
	PercentileHi float64
	Degree       int
	Breakpoints  []int
}

// DefaultConfig returns the APOGEE-tuned settings
func DefaultConfig() Config {
	return Config{
		SegmentLen:   100,
		PercentileLo: 70,
		PercentileHi: 80,
		Degree:       6,
		Breakpoints:  []int{3400, 6250},
	}
}

func (c Config) validate() error {
	if c.SegmentLen <= 0 {
		return fmt.Errorf("segment length must be positive, got %d", c.SegmentLen)
	}
	if c.PercentileLo >= c.PercentileHi {
		return fmt.Errorf("percentile band inverted: %g >= %g", c.PercentileLo, c.PercentileHi)
	}
	if c.Degree < 1 {
		return fmt.Errorf("polynomial degree must be at least 1, got %d", c.Degree)
	}
	if !sort.IntsAreSorted(c.Breakpoints) {
		return fmt.Errorf("breakpoints must be sorted")
	}
	return nil
}

// Normalize divides every spectrum by its fitted continuum and rescales
// inverse-variance by the continuum squared, returning a new dataset.
func Normalize(ds *spectrum.Dataset, cfg Config) (*spectrum.Dataset, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}

	normalized := make([]spectrum.Spectrum, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		spec := ds.At(i)
		cont, err := Extract(spec.Flux, cfg)
		if err != nil {
			return nil, fmt.Errorf("continuum fit failed for spectrum %d: %w", i, err)
		}

		flux := make([]float64, spec.Len())
		ivar := make([]float64, spec.Len())
		for p := range flux {
			flux[p] = spec.Flux[p] / cont[p]
			ivar[p] = spec.Ivar[p] * cont[p] * cont[p]
		}
		normalized[i] = spectrum.Spectrum{Wave: spec.Wave, Flux: flux, Ivar: ivar}
	}
	return spectrum.NewDataset(normalized...)
}

// Extract fits the continuum of a single flux array: per-segment
// percentile selection of continuum pixels, then one polynomial per
// breakpoint region evaluated over the full pixel range.
func Extract(flux []float64, cfg Config) ([]float64, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	n := len(flux)
	if n == 0 {
		return nil, fmt.Errorf("empty flux array")
	}

	contPixels := selectContinuumPixels(flux, cfg)
	if len(contPixels) == 0 {
		return nil, fmt.Errorf("no continuum pixels selected")
	}

	regions := regionBounds(n, cfg.Breakpoints)
	continuum := make([]float64, n)

	for _, reg := range regions {
		xs := make([]float64, 0, len(contPixels))
		ys := make([]float64, 0, len(contPixels))
		for _, p := range contPixels {
			if p >= reg.lo && p < reg.hi {
				xs = append(xs, float64(p))
				ys = append(ys, flux[p])
			}
		}
		if len(xs) < cfg.Degree+1 {
			return nil, fmt.Errorf("region [%d,%d) has %d continuum pixels, need %d for degree-%d fit",
				reg.lo, reg.hi, len(xs), cfg.Degree+1, cfg.Degree)
		}
		coeffs, err := polyfit(xs, ys, cfg.Degree)
		if err != nil {
			return nil, err
		}
		for p := reg.lo; p < reg.hi; p++ {
			continuum[p] = polyval(coeffs, float64(p))
		}
	}
	return continuum, nil
}

// Residuals subtracts the per-pixel median across spectra, masking flux
// below the floor (default 0.05) as NaN first. All spectra must share
// one wavelength grid length.
func Residuals(ds *spectrum.Dataset, floor float64) (*spectrum.Dataset, error) {
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	n := ds.At(0).Len()
	for i := 1; i < ds.Len(); i++ {
		if ds.At(i).Len() != n {
			return nil, fmt.Errorf("residuals need a shared grid: spectrum %d has %d pixels, expected %d",
				i, ds.At(i).Len(), n)
		}
	}

	median := make([]float64, n)
	column := make([]float64, 0, ds.Len())
	for p := 0; p < n; p++ {
		column = column[:0]
		for i := 0; i < ds.Len(); i++ {
			f := ds.At(i).Flux[p]
			if !math.IsNaN(f) && f >= floor {
				column = append(column, f)
			}
		}
		if len(column) == 0 {
			median[p] = math.NaN()
			continue
		}
		m, err := stats.Median(column)
		if err != nil {
			return nil, err
		}
		median[p] = m
	}

	out := make([]spectrum.Spectrum, ds.Len())
	for i := 0; i < ds.Len(); i++ {
		spec := ds.At(i)
		flux := make([]float64, n)
		for p := range flux {
			flux[p] = spec.Flux[p] - median[p]
		}
		out[i] = spectrum.Spectrum{Wave: spec.Wave, Flux: flux, Ivar: spec.Ivar}
	}
	return spectrum.NewDataset(out...)
}

// selectContinuumPixels keeps pixels whose flux sits strictly inside the
// percentile band of their segment.
func selectContinuumPixels(flux []float64, cfg Config) []int {
	var selected []int
	for start := 0; start < len(flux); start += cfg.SegmentLen {
		end := start + cfg.SegmentLen
		if end > len(flux) {
			end = len(flux)
		}

		finite := make([]float64, 0, end-start)
		for p := start; p < end; p++ {
			if !math.IsNaN(flux[p]) && !math.IsInf(flux[p], 0) {
				finite = append(finite, flux[p])
			}
		}
		if len(finite) == 0 {
			continue
		}

		lo, errLo := stats.Percentile(finite, cfg.PercentileLo)
		hi, errHi := stats.Percentile(finite, cfg.PercentileHi)
		if errLo != nil || errHi != nil {
			continue
		}

		for p := start; p < end; p++ {
			if flux[p] > lo && flux[p] < hi {
				selected = append(selected, p)
			}
		}
	}
	return selected
}

type region struct{ lo, hi int }

func regionBounds(n int, breakpoints []int) []region {
	var regions []region
	lo := 0
	for _, bp := range breakpoints {
		if bp <= lo || bp >= n {
			continue
		}
		regions = append(regions, region{lo, bp})
		lo = bp
	}
	regions = append(regions, region{lo, n})
	return regions
}

// polyfit solves the least-squares polynomial fit via QR decomposition
// of the Vandermonde matrix. Coefficients are returned lowest order first.
func polyfit(xs, ys []float64, degree int) ([]float64, error) {
	a := mat.NewDense(len(xs), degree+1, nil)
	for i, x := range xs {
		v := 1.0
		for j := 0; j <= degree; j++ {
			a.Set(i, j, v)
			v *= x
		}
	}
	b := mat.NewVecDense(len(ys), ys)

	var qr mat.QR
	qr.Factorize(a)

	var c mat.VecDense
	if err := qr.SolveVecTo(&c, false, b); err != nil {
		return nil, fmt.Errorf("polynomial fit is singular: %w", err)
	}

	coeffs := make([]float64, degree+1)
	for j := range coeffs {
		coeffs[j] = c.AtVec(j)
	}
	return coeffs, nil
}

func polyval(coeffs []float64, x float64) float64 {
	y := 0.0
	for j := len(coeffs) - 1; j >= 0; j-- {
		y = y*x + coeffs[j]
	}
	return y
}
