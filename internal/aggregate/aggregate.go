// Package aggregate reduces raw trial tables into sensitivity and
// false-positive summaries. All reductions are pure and deterministic.
package aggregate

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"
	"gonum.org/v1/gonum/stat/distuv"

	"goalias/domain/trial"
)

// Summary condenses a whole run into its headline numbers
type Summary struct {
	Trials        int     `json:"trials"`
	Successes     int     `json:"successes"`
	Sensitivity   float64 `json:"sensitivity"`     // successes / trials
	SensitivityLo float64 `json:"sensitivity_lo"`  // Wilson 95% interval
	SensitivityHi float64 `json:"sensitivity_hi"`
	MeanFalsePos  float64 `json:"mean_false_pos"` // mean false-positive count per trial
	MaxFalsePos   int     `json:"max_false_pos"`
	AmpMean       float64 `json:"amp_mean"`
	AmpMedian     float64 `json:"amp_median"`
}

// Bin is one stratum of a binned reduction (by wavelength or amplitude)
type Bin struct {
	Lo           float64 `json:"lo"`
	Hi           float64 `json:"hi"`
	Trials       int     `json:"trials"`
	Successes    int     `json:"successes"`
	Sensitivity  float64 `json:"sensitivity"`
	MeanFalsePos float64 `json:"mean_false_pos"`
}

// Summarize computes the headline sensitivity and false-positive rate
func Summarize(table *trial.Table) (Summary, error) {
	if table == nil || table.Len() == 0 {
		return Summary{}, fmt.Errorf("cannot summarize an empty results table")
	}

	n := table.Len()
	successes := table.Successes()

	fp := make([]float64, n)
	amps := make([]float64, n)
	for i, r := range table.Results {
		fp[i] = float64(r.FalsePos)
		amps[i] = r.Amplitude
	}

	meanFP, _ := stats.Mean(fp)
	maxFP, _ := stats.Max(fp)
	ampMean, _ := stats.Mean(amps)
	ampMedian, _ := stats.Median(amps)

	lo, hi := wilsonInterval(successes, n, 0.95)

	return Summary{
		Trials:        n,
		Successes:     successes,
		Sensitivity:   float64(successes) / float64(n),
		SensitivityLo: lo,
		SensitivityHi: hi,
		MeanFalsePos:  meanFP,
		MaxFalsePos:   int(maxFP),
		AmpMean:       ampMean,
		AmpMedian:     ampMedian,
	}, nil
}

// ByWavelength stratifies the table into fixed-width wavelength bins
// spanning the table's wavelength range, revealing wavelength-dependent
// detector performance.
func ByWavelength(table *trial.Table, bins int) ([]Bin, error) {
	return binned(table, bins, func(r trial.Result) float64 { return r.Wave })
}

// ByAmplitude stratifies the table into fixed-width amplitude bins,
// giving the detector's sensitivity curve.
func ByAmplitude(table *trial.Table, bins int) ([]Bin, error) {
	return binned(table, bins, func(r trial.Result) float64 { return r.Amplitude })
}

func binned(table *trial.Table, bins int, key func(trial.Result) float64) ([]Bin, error) {
	if table == nil || table.Len() == 0 {
		return nil, fmt.Errorf("cannot bin an empty results table")
	}
	if bins <= 0 {
		return nil, fmt.Errorf("bin count must be positive, got %d", bins)
	}

	lo, hi := math.Inf(1), math.Inf(-1)
	for _, r := range table.Results {
		v := key(r)
		if v < lo {
			lo = v
		}
		if v > hi {
			hi = v
		}
	}

	width := (hi - lo) / float64(bins)
	out := make([]Bin, bins)
	for b := range out {
		out[b].Lo = lo + float64(b)*width
		out[b].Hi = lo + float64(b+1)*width
	}

	for _, r := range table.Results {
		b := 0
		if width > 0 {
			b = int((key(r) - lo) / width)
			if b >= bins {
				b = bins - 1 // the range maximum belongs to the last bin
			}
		}
		out[b].Trials++
		if r.Detected {
			out[b].Successes++
		}
		out[b].MeanFalsePos += float64(r.FalsePos)
	}

	for b := range out {
		if out[b].Trials > 0 {
			out[b].Sensitivity = float64(out[b].Successes) / float64(out[b].Trials)
			out[b].MeanFalsePos /= float64(out[b].Trials)
		}
	}
	return out, nil
}

// wilsonInterval computes the Wilson score interval for a binomial
// proportion at the given confidence level.
func wilsonInterval(successes, n int, confidence float64) (lo, hi float64) {
	if n == 0 {
		return 0, 0
	}
	z := distuv.Normal{Mu: 0, Sigma: 1}.Quantile(0.5 + confidence/2)
	p := float64(successes) / float64(n)
	nf := float64(n)

	denom := 1 + z*z/nf
	center := (p + z*z/(2*nf)) / denom
	margin := z * math.Sqrt(p*(1-p)/nf+z*z/(4*nf*nf)) / denom

	lo = math.Max(0, center-margin)
	hi = math.Min(1, center+margin)
	return lo, hi
}
