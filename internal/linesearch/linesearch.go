// Package linesearch provides the baseline line retrieval tools: simple
// peak finding over residual spectra and chi-square characterization of
// candidate lines against the instrumental LSF.
package linesearch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"goalias/domain/lsf"
	"goalias/domain/spectrum"
	"goalias/ports"
)

// Peak locates a candidate line in a dataset
type Peak struct {
	Spectrum int `json:"spectrum"`
	Pixel    int `json:"pixel"`
}

// Line is a characterized emission feature
type Line struct {
	Wave      float64 `json:"wave"`      // refined center wavelength
	Amplitude float64 `json:"amplitude"` // refined peak amplitude
	FWHM      float64 `json:"fwhm"`      // full width at half maximum, wavelength units
}

// FindPeaks returns the pixels of local flux maxima above the height
// threshold. Masked pixels never qualify.
func FindPeaks(flux []float64, height float64) []int {
	var peaks []int
	for i := 1; i < len(flux)-1; i++ {
		f := flux[i]
		if math.IsNaN(f) || f <= height {
			continue
		}
		if f > flux[i-1] && f > flux[i+1] {
			peaks = append(peaks, i)
		}
	}
	return peaks
}

// FindAll runs the peak search over every spectrum in the dataset
func FindAll(ds *spectrum.Dataset, height float64) []Peak {
	var all []Peak
	for i := 0; i < ds.Len(); i++ {
		for _, p := range FindPeaks(ds.At(i).Flux, height) {
			all = append(all, Peak{Spectrum: i, Pixel: p})
		}
	}
	return all
}

// AsDetector adapts the peak search to the harness detector contract:
// peak pixels score flux/height (above 1 exactly when the peak clears
// the threshold), all other pixels score zero.
func AsDetector(height float64) ports.Detector {
	return func(wave, flux, ivar []float64) []float64 {
		weirdness := make([]float64, len(flux))
		for _, p := range FindPeaks(flux, 0) {
			weirdness[p] = flux[p] / height
		}
		return weirdness
	}
}

const characterizeHalfWidth = 10

// Characterize refines a detected peak: a chi-square grid search of the
// LSF center, then of the amplitude around the raw peak flux, then a
// half-maximum width measurement by linear interpolation.
func Characterize(spec spectrum.Spectrum, kernel lsf.Kernel, pixel int) (Line, error) {
	lo := pixel - characterizeHalfWidth
	hi := pixel + characterizeHalfWidth + 1
	if lo < 0 || hi > spec.Len() {
		return Line{}, fmt.Errorf("peak at pixel %d too close to spectrum edge to characterize", pixel)
	}

	// drop masked pixels from the window
	var wave, flux, sigma []float64
	for p := lo; p < hi; p++ {
		w, f, iv := spec.Wave[p], spec.Flux[p], spec.Ivar[p]
		if math.IsNaN(f) || math.IsNaN(w) || math.IsNaN(iv) || iv <= 0 {
			continue
		}
		wave = append(wave, w)
		flux = append(flux, f)
		sigma = append(sigma, 1/math.Sqrt(iv))
	}
	if len(flux) < 5 {
		return Line{}, fmt.Errorf("peak at pixel %d has only %d usable pixels", pixel, len(flux))
	}

	n := len(flux)
	rawAmp := spec.Flux[pixel]

	// center search on a fine grid around the window midpoint
	const gridN = 64
	centers := make([]float64, gridN)
	chi2 := make([]float64, gridN)
	for i := range centers {
		centers[i] = float64(n)/2 - 1 + float64(i)/float64(gridN-1)
		chi2[i] = chiSquareLSF(flux, sigma, kernel, 0.3, centers[i])
	}
	bestCenter := centers[floats.MinIdx(chi2)]
	bestWave := interpIndex(wave, bestCenter)

	// amplitude search bracketed by the raw peak flux
	amps := make([]float64, gridN)
	for i := range amps {
		amps[i] = rawAmp * (0.7 + 0.7*float64(i)/float64(gridN-1))
		chi2[i] = chiSquareLSF(flux, sigma, kernel, amps[i], bestCenter)
	}
	bestAmp := amps[floats.MinIdx(chi2)]

	width := halfMaxWidth(wave, flux, n/2, bestAmp)

	return Line{Wave: bestWave, Amplitude: bestAmp, FWHM: width}, nil
}

// chiSquareLSF scores an LSF model of the given amplitude and fractional
// pixel center against the windowed flux.
func chiSquareLSF(flux, sigma []float64, kernel lsf.Kernel, amp, center float64) float64 {
	sum := 0.0
	for i := range flux {
		model := amp * kernel.Eval(float64(i)-center)
		resid := (flux[i] - model) / sigma[i]
		sum += resid * resid
	}
	return sum
}

// halfMaxWidth walks outward from the center pixel to the half-maximum
// crossings and interpolates the crossing wavelengths.
func halfMaxWidth(wave, flux []float64, center int, amp float64) float64 {
	half := amp / 2

	left := center - 1
	for left > 0 && flux[left] > half {
		left--
	}
	var wlLo float64
	if left <= 0 {
		wlLo = wave[0]
	} else {
		wlLo = crossing(wave[left], wave[left+1], flux[left], flux[left+1], half)
	}

	right := center + 1
	for right < len(flux)-1 && flux[right] > half {
		right++
	}
	var wlHi float64
	if right >= len(flux)-1 {
		wlHi = wave[len(wave)-1]
	} else {
		wlHi = crossing(wave[right-1], wave[right], flux[right-1], flux[right], half)
	}

	return wlHi - wlLo
}

// crossing interpolates the wavelength where flux passes through target
// between two adjacent samples.
func crossing(w0, w1, f0, f1, target float64) float64 {
	if f1 == f0 {
		return 0.5 * (w0 + w1)
	}
	t := (target - f0) / (f1 - f0)
	return w0 + t*(w1-w0)
}

// interpIndex linearly interpolates an array at a fractional index
func interpIndex(vals []float64, idx float64) float64 {
	if idx <= 0 {
		return vals[0]
	}
	if idx >= float64(len(vals)-1) {
		return vals[len(vals)-1]
	}
	lo := int(idx)
	frac := idx - float64(lo)
	return vals[lo] + frac*(vals[lo+1]-vals[lo])
}
