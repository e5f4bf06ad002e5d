package trial

import (
	"fmt"

	"goalias/domain/core"
)

// Detection window and threshold are fixed properties of the scoring
// procedure, not tunables: a pixel counts as a detection when its
// weirdness score exceeds Threshold, and a trial succeeds when at least
// one detection pixel lies within WindowRadius pixels (inclusive) of the
// injected center.
const (
	Threshold    = 1.0
	WindowRadius = 3
)

// AmplitudeScale selects how injection amplitudes are drawn
type AmplitudeScale string

const (
	// ScaleUniform draws amplitudes uniformly from [AmpMin, AmpMax].
	// This is the default and the scale the reference sensitivity
	// figures are quoted for.
	ScaleUniform AmplitudeScale = "uniform"
	// ScaleLogUniform draws log-uniformly, for wide dynamic ranges.
	ScaleLogUniform AmplitudeScale = "log-uniform"
)

// Config holds the immutable per-run parameters of an injection test
type Config struct {
	Trials     int            `json:"trials"`
	AmpMin     float64        `json:"amp_min"`
	AmpMax     float64        `json:"amp_max"`
	Scale      AmplitudeScale `json:"scale"`
	Seed       int64          `json:"seed"`
	MaxRedraws int            `json:"max_redraws"` // retry budget for edge/masked injection draws
	Workers    int            `json:"workers"`     // 1 = strictly sequential
}

// DefaultConfig returns a config with the documented defaults
func DefaultConfig() Config {
	return Config{
		Trials:     1000,
		AmpMin:     0.01,
		AmpMax:     0.1,
		Scale:      ScaleUniform,
		Seed:       42,
		MaxRedraws: 100,
		Workers:    1,
	}
}

// Validate rejects malformed configurations before any trial runs
func (c Config) Validate() error {
	if c.Trials <= 0 {
		return fmt.Errorf("trial count must be positive, got %d", c.Trials)
	}
	if c.AmpMin > c.AmpMax {
		return fmt.Errorf("amplitude range inverted: min=%g > max=%g", c.AmpMin, c.AmpMax)
	}
	switch c.Scale {
	case ScaleUniform:
	case ScaleLogUniform:
		if c.AmpMin <= 0 {
			return fmt.Errorf("log-uniform amplitude draw requires min > 0, got %g", c.AmpMin)
		}
	default:
		return fmt.Errorf("unknown amplitude scale %q", c.Scale)
	}
	if c.MaxRedraws < 0 {
		return fmt.Errorf("redraw budget must be non-negative, got %d", c.MaxRedraws)
	}
	if c.Workers < 0 {
		return fmt.Errorf("worker count must be non-negative, got %d", c.Workers)
	}
	return nil
}

// Result is one immutable row of the results table: created by the
// harness, appended once, consumed by the aggregator.
type Result struct {
	Trial      int     `json:"trial"`
	Spectrum   int     `json:"spectrum"`
	Wave       float64 `json:"wave"`
	Amplitude  float64 `json:"amplitude"`
	Detected   bool    `json:"detected"`
	FalsePos   int     `json:"false_pos"`
	CenterPix  int     `json:"center_pix"`  // integer pixel the window is scored around
	CenterFrac float64 `json:"center_frac"` // fractional injection center
}

// Table is the full per-trial results table of a run
type Table struct {
	RunID   core.RunID `json:"run_id"`
	Config  Config     `json:"config"`
	Results []Result   `json:"results"`
}

// NewTable allocates a results table for the given configuration
func NewTable(runID core.RunID, cfg Config) *Table {
	return &Table{
		RunID:   runID,
		Config:  cfg,
		Results: make([]Result, 0, cfg.Trials),
	}
}

// Append adds one trial row
func (t *Table) Append(r Result) {
	t.Results = append(t.Results, r)
}

// Len returns the number of recorded trials
func (t *Table) Len() int {
	return len(t.Results)
}

// Successes counts the detected trials
func (t *Table) Successes() int {
	n := 0
	for _, r := range t.Results {
		if r.Detected {
			n++
		}
	}
	return n
}

// Manifest captures the audit metadata of a completed run
type Manifest struct {
	RunID       core.RunID     `json:"run_id"`
	Config      Config         `json:"config"`
	Spectra     int            `json:"spectra"`
	Successes   int            `json:"successes"`
	FalsePosSum int            `json:"false_pos_sum"`
	Redraws     int            `json:"redraws"`
	RuntimeMs   int64          `json:"runtime_ms"`
	Fingerprint core.Hash      `json:"fingerprint"`
	CreatedAt   core.Timestamp `json:"created_at"`
}
