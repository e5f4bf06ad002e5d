package harness

import (
	"context"
	"math"
	"testing"

	"goalias/adapters/rng"
	"goalias/domain/lsf"
	"goalias/domain/spectrum"
	"goalias/domain/trial"
	"goalias/internal/errors"
	"goalias/internal/testkit"
)

func testConfig(trials int) trial.Config {
	cfg := trial.DefaultConfig()
	cfg.Trials = trials
	return cfg
}

func TestRun_ZeroDetectorNeverSucceeds(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(2, 500, 1.0, 10000)

	outcome, err := h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, testConfig(200))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	if outcome.Table.Len() != 200 {
		t.Errorf("Expected 200 result rows, got %d", outcome.Table.Len())
	}
	if got := outcome.Table.Successes(); got != 0 {
		t.Errorf("Zero detector recorded %d successes, expected 0", got)
	}
	for _, r := range outcome.Table.Results {
		if r.FalsePos != 0 {
			t.Errorf("Trial %d has %d false positives from a silent detector", r.Trial, r.FalsePos)
		}
	}
}

func TestRun_FiringDetectorAlwaysSucceeds(t *testing.T) {
	h := New(rng.NewStreamFactory())
	const pixels = 300
	ds := testkit.FlatDataset(1, pixels, 1.0, 10000)

	outcome, err := h.Run(context.Background(), ds, lsf.Default(), testkit.FiringDetector(2.0), testConfig(50))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	// the window holds 2*WindowRadius+1 pixels, everything else is a false positive
	wantFP := pixels - (2*trial.WindowRadius + 1)
	for _, r := range outcome.Table.Results {
		if !r.Detected {
			t.Errorf("Trial %d not detected despite an always-firing detector", r.Trial)
		}
		if r.FalsePos != wantFP {
			t.Errorf("Trial %d: %d false positives, expected %d", r.Trial, r.FalsePos, wantFP)
		}
	}
}

func TestRun_SameSeedSameTable(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(3, 400, 1.0, 10000)
	cfg := testConfig(100)

	first, err := h.Run(context.Background(), ds, lsf.Default(), testkit.OffsetDetector(0.01), cfg)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	second, err := h.Run(context.Background(), ds, lsf.Default(), testkit.OffsetDetector(0.01), cfg)
	if err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	if first.Table.Len() != second.Table.Len() {
		t.Fatalf("Table lengths differ: %d vs %d", first.Table.Len(), second.Table.Len())
	}
	for i := range first.Table.Results {
		if first.Table.Results[i] != second.Table.Results[i] {
			t.Errorf("Row %d differs between identically seeded runs:\n%+v\n%+v",
				i, first.Table.Results[i], second.Table.Results[i])
		}
	}
}

func TestRun_DifferentSeedDifferentDraws(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 400, 1.0, 10000)

	cfgA := testConfig(50)
	cfgB := testConfig(50)
	cfgB.Seed = cfgA.Seed + 1

	a, err := h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, cfgA)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	b, err := h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, cfgB)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	same := true
	for i := range a.Table.Results {
		if a.Table.Results[i].CenterFrac != b.Table.Results[i].CenterFrac {
			same = false
			break
		}
	}
	if same {
		t.Error("Different seeds produced identical draw sequences")
	}
}

func TestRun_ParallelMatchesSequential(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(2, 600, 1.0, 10000)

	seq := testConfig(200)
	par := testConfig(200)
	par.Workers = 8

	a, err := h.Run(context.Background(), ds, lsf.Default(), testkit.OffsetDetector(0.01), seq)
	if err != nil {
		t.Fatalf("Sequential run failed: %v", err)
	}
	b, err := h.Run(context.Background(), ds, lsf.Default(), testkit.OffsetDetector(0.01), par)
	if err != nil {
		t.Fatalf("Parallel run failed: %v", err)
	}

	for i := range a.Table.Results {
		ra, rb := a.Table.Results[i], b.Table.Results[i]
		// the config differs only in worker count, so every scored field must match
		if ra.Spectrum != rb.Spectrum || ra.CenterFrac != rb.CenterFrac ||
			ra.Amplitude != rb.Amplitude || ra.Detected != rb.Detected || ra.FalsePos != rb.FalsePos {
			t.Errorf("Row %d differs between sequential and parallel scoring:\n%+v\n%+v", i, ra, rb)
		}
	}
}

func TestRun_FlatContinuumSensitivity(t *testing.T) {
	// one flat unit-continuum spectrum and a detector scoring flux-0.01:
	// any line with peak above 0.01 crosses the threshold, so nearly every
	// amplitude in [0.01, 0.1] is recovered and nothing fires off-line.
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 8000, 1.0, 10000)

	cfg := testConfig(500)
	outcome, err := h.Run(context.Background(), ds, lsf.Default(), testkit.OffsetDetector(0.01), cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	sens := float64(outcome.Table.Successes()) / float64(outcome.Table.Len())
	if sens < 0.95 {
		t.Errorf("Sensitivity %.3f, expected near 1 on a noiseless flat continuum", sens)
	}
	for _, r := range outcome.Table.Results {
		if r.FalsePos != 0 {
			t.Errorf("Trial %d has %d false positives on a noiseless flat continuum", r.Trial, r.FalsePos)
		}
	}
}

func TestRun_DrawsRespectBounds(t *testing.T) {
	h := New(rng.NewStreamFactory())
	const pixels = 64
	ds := testkit.FlatDataset(2, pixels, 1.0, 10000)

	cfg := testConfig(300)
	cfg.AmpMin, cfg.AmpMax = 0.02, 0.05

	outcome, err := h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	for _, r := range outcome.Table.Results {
		if r.Amplitude < cfg.AmpMin || r.Amplitude > cfg.AmpMax {
			t.Errorf("Trial %d amplitude %g outside [%g, %g]", r.Trial, r.Amplitude, cfg.AmpMin, cfg.AmpMax)
		}
		if r.CenterPix < trial.WindowRadius || r.CenterPix >= pixels-trial.WindowRadius {
			t.Errorf("Trial %d injected at pixel %d, inside the edge margin", r.Trial, r.CenterPix)
		}
		if math.Abs(r.CenterFrac-float64(r.CenterPix)) > 0.5 {
			t.Errorf("Trial %d fractional center %g too far from pixel %d", r.Trial, r.CenterFrac, r.CenterPix)
		}
	}
}

func TestRun_LogUniformAmplitudes(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 200, 1.0, 10000)

	cfg := testConfig(300)
	cfg.Scale = trial.ScaleLogUniform
	cfg.AmpMin, cfg.AmpMax = 1e-4, 1.0

	outcome, err := h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, cfg)
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	below := 0
	for _, r := range outcome.Table.Results {
		if r.Amplitude < cfg.AmpMin || r.Amplitude > cfg.AmpMax {
			t.Fatalf("Trial %d amplitude %g outside [%g, %g]", r.Trial, r.Amplitude, cfg.AmpMin, cfg.AmpMax)
		}
		if r.Amplitude < 0.01 {
			below++
		}
	}
	// log-uniform puts half the draws below the geometric mean (0.01);
	// a uniform draw would put almost none there
	if below < 100 {
		t.Errorf("Only %d/300 log-uniform draws below 0.01, distribution looks uniform", below)
	}
}

func TestRun_MaskedPixelsNeverChosen(t *testing.T) {
	h := New(rng.NewStreamFactory())
	base := testkit.FlatSpectrum(100, 15100, 17000, 1.0, 10000)
	masked := testkit.MaskPixels(base, 20, 21, 22, 50, 51, 80)
	ds, err := spectrum.NewDataset(masked)
	if err != nil {
		t.Fatalf("Dataset invalid: %v", err)
	}

	outcome, err := h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, testConfig(500))
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	bad := map[int]bool{20: true, 21: true, 22: true, 50: true, 51: true, 80: true}
	for _, r := range outcome.Table.Results {
		if bad[r.CenterPix] {
			t.Errorf("Trial %d injected at masked pixel %d", r.Trial, r.CenterPix)
		}
	}
	if outcome.Redraws == 0 {
		t.Error("Expected some redraws with 6 masked pixels in a 100-pixel spectrum")
	}
}

func TestRun_RedrawBudgetExhausted(t *testing.T) {
	// every pixel outside the edge margin is masked, so no draw can land
	h := New(rng.NewStreamFactory())
	base := testkit.FlatSpectrum(10, 15100, 15200, 1.0, 10000)
	masked := testkit.MaskPixels(base, 3, 4, 5, 6)
	ds, err := spectrum.NewDataset(masked)
	if err != nil {
		t.Fatalf("Dataset invalid: %v", err)
	}

	cfg := testConfig(10)
	cfg.MaxRedraws = 50

	_, err = h.Run(context.Background(), ds, lsf.Default(), testkit.ZeroDetector, cfg)
	if err == nil {
		t.Fatal("Expected an error when no injection pixel is available")
	}
	if code := errors.GetCode(err); code != errors.CodeInjectionBounds {
		t.Errorf("Expected code %s, got %s (%v)", errors.CodeInjectionBounds, code, err)
	}
}

func TestRun_RejectsBadInputs(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)
	kernel := lsf.Default()

	t.Run("nil detector", func(t *testing.T) {
		_, err := h.Run(context.Background(), ds, kernel, nil, testConfig(10))
		if errors.GetCode(err) != errors.CodeConfigInvalid {
			t.Errorf("Expected CONFIG_INVALID, got %v", err)
		}
	})

	t.Run("nil dataset", func(t *testing.T) {
		_, err := h.Run(context.Background(), nil, kernel, testkit.ZeroDetector, testConfig(10))
		if errors.GetCode(err) != errors.CodeDatasetInvalid {
			t.Errorf("Expected DATASET_INVALID, got %v", err)
		}
	})

	badConfigs := []struct {
		name   string
		mutate func(*trial.Config)
	}{
		{"zero trials", func(c *trial.Config) { c.Trials = 0 }},
		{"negative trials", func(c *trial.Config) { c.Trials = -5 }},
		{"inverted amplitude range", func(c *trial.Config) { c.AmpMin, c.AmpMax = 0.1, 0.01 }},
		{"unknown scale", func(c *trial.Config) { c.Scale = "gaussian" }},
		{"log-uniform with zero min", func(c *trial.Config) { c.Scale = trial.ScaleLogUniform; c.AmpMin = 0 }},
		{"negative redraw budget", func(c *trial.Config) { c.MaxRedraws = -1 }},
		{"negative workers", func(c *trial.Config) { c.Workers = -2 }},
	}
	for _, tt := range badConfigs {
		t.Run(tt.name, func(t *testing.T) {
			cfg := testConfig(10)
			tt.mutate(&cfg)
			if _, err := h.Run(context.Background(), ds, kernel, testkit.ZeroDetector, cfg); err == nil {
				t.Error("Expected config rejection, run succeeded")
			}
		})
	}
}

func TestRun_CanceledContext(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := h.Run(ctx, ds, lsf.Default(), testkit.ZeroDetector, testConfig(10)); err == nil {
		t.Error("Expected an error from a canceled context")
	}
}

func TestScoreTrial_WindowBoundary(t *testing.T) {
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)
	kernel := lsf.Default()
	const center = 50

	fireAt := func(pixel int) func(wave, flux, ivar []float64) []float64 {
		return func(wave, flux, ivar []float64) []float64 {
			out := make([]float64, len(flux))
			out[pixel] = 2.0
			return out
		}
	}

	tests := []struct {
		name         string
		firePixel    int
		wantDetected bool
		wantFP       int
	}{
		{"at center", center, true, 0},
		{"window edge left", center - trial.WindowRadius, true, 0},
		{"window edge right", center + trial.WindowRadius, true, 0},
		{"just outside left", center - trial.WindowRadius - 1, false, 1},
		{"just outside right", center + trial.WindowRadius + 1, false, 1},
		{"far away", 5, false, 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := draw{spec: 0, pixel: center, center: center, amp: 0.05, wave: ds.At(0).WaveAt(center)}
			r, err := scoreTrial(ds, kernel, fireAt(tt.firePixel), 0, d)
			if err != nil {
				t.Fatalf("scoreTrial failed: %v", err)
			}
			if r.Detected != tt.wantDetected {
				t.Errorf("Detected = %v, want %v", r.Detected, tt.wantDetected)
			}
			if r.FalsePos != tt.wantFP {
				t.Errorf("FalsePos = %d, want %d", r.FalsePos, tt.wantFP)
			}
		})
	}
}

func TestScoreTrial_MultipleWindowPixelsCountOnce(t *testing.T) {
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)
	const center = 40

	detector := func(wave, flux, ivar []float64) []float64 {
		out := make([]float64, len(flux))
		for p := center - trial.WindowRadius; p <= center+trial.WindowRadius; p++ {
			out[p] = 1.5
		}
		out[10] = 1.5 // one genuine false positive
		return out
	}

	d := draw{spec: 0, pixel: center, center: center, amp: 0.05, wave: ds.At(0).WaveAt(center)}
	r, err := scoreTrial(ds, lsf.Default(), detector, 0, d)
	if err != nil {
		t.Fatalf("scoreTrial failed: %v", err)
	}
	if !r.Detected {
		t.Error("Expected detection with the whole window firing")
	}
	if r.FalsePos != 1 {
		t.Errorf("FalsePos = %d, want 1: window pixels must never count as false positives", r.FalsePos)
	}
}

func TestScoreTrial_ThresholdIsExclusive(t *testing.T) {
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)
	const center = 30

	d := draw{spec: 0, pixel: center, center: center, amp: 0.05, wave: ds.At(0).WaveAt(center)}
	r, err := scoreTrial(ds, lsf.Default(), testkit.FiringDetector(trial.Threshold), 0, d)
	if err != nil {
		t.Fatalf("scoreTrial failed: %v", err)
	}
	if r.Detected || r.FalsePos != 0 {
		t.Errorf("Scores exactly at the threshold must not fire: detected=%v fp=%d", r.Detected, r.FalsePos)
	}
}

func TestScoreTrial_DetectorContractViolations(t *testing.T) {
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)
	d := draw{spec: 0, pixel: 50, center: 50, amp: 0.05, wave: ds.At(0).WaveAt(50)}

	t.Run("wrong length", func(t *testing.T) {
		short := func(wave, flux, ivar []float64) []float64 {
			return make([]float64, len(flux)-1)
		}
		_, err := scoreTrial(ds, lsf.Default(), short, 3, d)
		if errors.GetCode(err) != errors.CodeDetectorContract {
			t.Errorf("Expected DETECTOR_CONTRACT, got %v", err)
		}
	})

	t.Run("NaN score", func(t *testing.T) {
		nan := func(wave, flux, ivar []float64) []float64 {
			out := make([]float64, len(flux))
			out[7] = math.NaN()
			return out
		}
		_, err := scoreTrial(ds, lsf.Default(), nan, 3, d)
		if errors.GetCode(err) != errors.CodeDetectorContract {
			t.Errorf("Expected DETECTOR_CONTRACT, got %v", err)
		}
	})

	t.Run("infinite score", func(t *testing.T) {
		inf := func(wave, flux, ivar []float64) []float64 {
			out := make([]float64, len(flux))
			out[0] = math.Inf(1)
			return out
		}
		_, err := scoreTrial(ds, lsf.Default(), inf, 3, d)
		if errors.GetCode(err) != errors.CodeDetectorContract {
			t.Errorf("Expected DETECTOR_CONTRACT, got %v", err)
		}
	})
}

func TestRun_DetectorContractAbortsWholeRun(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 100, 1.0, 10000)

	calls := 0
	flaky := func(wave, flux, ivar []float64) []float64 {
		calls++
		if calls == 5 {
			return nil
		}
		return make([]float64, len(flux))
	}

	outcome, err := h.Run(context.Background(), ds, lsf.Default(), flaky, testConfig(20))
	if err == nil {
		t.Fatal("Expected the run to abort on a contract violation")
	}
	if outcome != nil {
		t.Error("A failed run must not return partial results")
	}
	if code := errors.GetCode(err); code != errors.CodeDetectorContract {
		t.Errorf("Expected DETECTOR_CONTRACT, got %s (%v)", code, err)
	}
}

func TestRun_InjectionDoesNotMutateDataset(t *testing.T) {
	h := New(rng.NewStreamFactory())
	ds := testkit.FlatDataset(1, 200, 1.0, 10000)

	before := ds.At(0).CloneFlux()
	if _, err := h.Run(context.Background(), ds, lsf.Default(), testkit.OffsetDetector(0.01), testConfig(100)); err != nil {
		t.Fatalf("Run failed: %v", err)
	}

	after := ds.At(0).Flux
	for i := range before {
		if before[i] != after[i] {
			t.Fatalf("Dataset flux mutated at pixel %d: %g -> %g", i, before[i], after[i])
		}
	}
}
