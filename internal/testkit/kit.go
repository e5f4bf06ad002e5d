// Package testkit provides synthetic spectra and canned detectors for tests.
package testkit

import (
	"math"
	"math/rand"

	"goalias/domain/spectrum"
)

// FlatSpectrum builds an n-pixel spectrum with constant flux and ivar on
// a uniform wavelength grid from waveLo to waveHi.
func FlatSpectrum(n int, waveLo, waveHi, flux, ivar float64) spectrum.Spectrum {
	wave := make([]float64, n)
	fl := make([]float64, n)
	iv := make([]float64, n)
	for i := range wave {
		wave[i] = waveLo + (waveHi-waveLo)*float64(i)/float64(n-1)
		fl[i] = flux
		iv[i] = ivar
	}
	return spectrum.Spectrum{Wave: wave, Flux: fl, Ivar: iv}
}

// FlatDataset builds count identical flat spectra
func FlatDataset(count, n int, flux, ivar float64) *spectrum.Dataset {
	spectra := make([]spectrum.Spectrum, count)
	for i := range spectra {
		spectra[i] = FlatSpectrum(n, 15100, 17000, flux, ivar)
	}
	ds, err := spectrum.NewDataset(spectra...)
	if err != nil {
		panic(err)
	}
	return ds
}

// NoisyDataset builds spectra of unit continuum with Gaussian noise of
// the given sigma, seeded for reproducibility.
func NoisyDataset(count, n int, sigma float64, seed int64) *spectrum.Dataset {
	rng := rand.New(rand.NewSource(seed))
	spectra := make([]spectrum.Spectrum, count)
	for i := range spectra {
		s := FlatSpectrum(n, 15100, 17000, 1.0, 1/(sigma*sigma))
		for p := range s.Flux {
			s.Flux[p] += rng.NormFloat64() * sigma
		}
		spectra[i] = s
	}
	ds, err := spectrum.NewDataset(spectra...)
	if err != nil {
		panic(err)
	}
	return ds
}

// MaskPixels marks the given pixels of a spectrum as unusable
func MaskPixels(s spectrum.Spectrum, pixels ...int) spectrum.Spectrum {
	flux := make([]float64, s.Len())
	copy(flux, s.Flux)
	for _, p := range pixels {
		flux[p] = math.NaN()
	}
	return spectrum.Spectrum{Wave: s.Wave, Flux: flux, Ivar: s.Ivar}
}

// ZeroDetector never fires
func ZeroDetector(wave, flux, ivar []float64) []float64 {
	return make([]float64, len(flux))
}

// FiringDetector fires on every pixel with the given score
func FiringDetector(score float64) func(wave, flux, ivar []float64) []float64 {
	return func(wave, flux, ivar []float64) []float64 {
		out := make([]float64, len(flux))
		for i := range out {
			out[i] = score
		}
		return out
	}
}

// OffsetDetector scores each pixel as flux minus the offset, so on a
// unit continuum any line of amplitude above the offset crosses the
// detection threshold.
func OffsetDetector(offset float64) func(wave, flux, ivar []float64) []float64 {
	return func(wave, flux, ivar []float64) []float64 {
		out := make([]float64, len(flux))
		for i := range out {
			out[i] = flux[i] - offset
		}
		return out
	}
}
