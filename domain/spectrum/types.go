package spectrum

import (
	"fmt"
	"math"
)

// Spectrum holds one continuum-normalized spectrum as parallel arrays.
// INVARIANTS:
// - Wave, Flux and Ivar always share the same length
// - Wave is strictly increasing
// - masked pixels carry NaN flux
type Spectrum struct {
	Wave []float64 `json:"wave"`
	Flux []float64 `json:"flux"`
	Ivar []float64 `json:"ivar"`
}

// New creates a spectrum and checks its invariants
func New(wave, flux, ivar []float64) (Spectrum, error) {
	s := Spectrum{Wave: wave, Flux: flux, Ivar: ivar}
	if err := s.Validate(); err != nil {
		return Spectrum{}, err
	}
	return s, nil
}

// Len returns the number of pixels
func (s Spectrum) Len() int {
	return len(s.Wave)
}

// Validate checks the per-spectrum invariants
func (s Spectrum) Validate() error {
	if len(s.Wave) == 0 {
		return fmt.Errorf("spectrum has no pixels")
	}
	if len(s.Flux) != len(s.Wave) || len(s.Ivar) != len(s.Wave) {
		return fmt.Errorf("array length mismatch: wave=%d flux=%d ivar=%d",
			len(s.Wave), len(s.Flux), len(s.Ivar))
	}
	for i := 1; i < len(s.Wave); i++ {
		if !(s.Wave[i] > s.Wave[i-1]) {
			return fmt.Errorf("wavelength grid not strictly increasing at pixel %d (%.6f -> %.6f)",
				i, s.Wave[i-1], s.Wave[i])
		}
	}
	return nil
}

// Masked reports whether pixel i carries no usable flux
func (s Spectrum) Masked(i int) bool {
	return math.IsNaN(s.Flux[i]) || math.IsInf(s.Flux[i], 0)
}

// ValidPixels returns the indices of unmasked pixels at least margin
// pixels away from either boundary. Used by the injection harness to
// avoid truncated lines near spectrum edges.
func (s Spectrum) ValidPixels(margin int) []int {
	if margin < 0 {
		margin = 0
	}
	valid := make([]int, 0, s.Len())
	for i := margin; i < s.Len()-margin; i++ {
		if !s.Masked(i) {
			valid = append(valid, i)
		}
	}
	return valid
}

// WaveAt linearly interpolates the wavelength at a fractional pixel index
func (s Spectrum) WaveAt(idx float64) float64 {
	if idx <= 0 {
		return s.Wave[0]
	}
	last := float64(s.Len() - 1)
	if idx >= last {
		return s.Wave[s.Len()-1]
	}
	lo := int(math.Floor(idx))
	frac := idx - float64(lo)
	return s.Wave[lo] + frac*(s.Wave[lo+1]-s.Wave[lo])
}

// CloneFlux returns an independent copy of the flux array.
// Injection works on copies so repeated trials never contaminate the dataset.
func (s Spectrum) CloneFlux() []float64 {
	flux := make([]float64, len(s.Flux))
	copy(flux, s.Flux)
	return flux
}

// Dataset is an indexable collection of spectra. Wavelength grids may
// differ between spectra; each spectrum carries its own.
type Dataset struct {
	Spectra []Spectrum `json:"spectra"`
}

// NewDataset validates every spectrum and assembles the collection
func NewDataset(spectra ...Spectrum) (*Dataset, error) {
	for i, s := range spectra {
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("spectrum %d invalid: %w", i, err)
		}
	}
	return &Dataset{Spectra: spectra}, nil
}

// Len returns the number of spectra
func (d *Dataset) Len() int {
	return len(d.Spectra)
}

// At returns the spectrum at position i
func (d *Dataset) At(i int) Spectrum {
	return d.Spectra[i]
}

// Validate re-checks every spectrum's invariants
func (d *Dataset) Validate() error {
	if d.Len() == 0 {
		return fmt.Errorf("dataset is empty")
	}
	for i, s := range d.Spectra {
		if err := s.Validate(); err != nil {
			return fmt.Errorf("spectrum %d invalid: %w", i, err)
		}
	}
	return nil
}

// WaveRange returns the minimum and maximum wavelength across all spectra
func (d *Dataset) WaveRange() (lo, hi float64) {
	lo, hi = math.Inf(1), math.Inf(-1)
	for _, s := range d.Spectra {
		if s.Wave[0] < lo {
			lo = s.Wave[0]
		}
		if s.Wave[s.Len()-1] > hi {
			hi = s.Wave[s.Len()-1]
		}
	}
	return lo, hi
}
