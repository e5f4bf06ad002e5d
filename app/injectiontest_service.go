package app

import (
	"context"
	"fmt"
	"strings"
	"time"

	"goalias/domain/core"
	"goalias/domain/lsf"
	"goalias/domain/spectrum"
	"goalias/domain/trial"
	"goalias/internal"
	"goalias/internal/aggregate"
	"goalias/internal/harness"
	"goalias/ports"
)

// InjectionTestService runs auditable injection tests: execute the
// harness, stamp a manifest, persist when a ledger is configured.
// The pipeline is stateless: construct inputs, run, consume outputs.
type InjectionTestService struct {
	harness *harness.Harness
	ledger  ports.TrialLedger // nil disables persistence
	logger  *internal.Logger
}

// InjectionTestRequest defines the inputs of one deterministic run
type InjectionTestRequest struct {
	Dataset  *spectrum.Dataset
	Kernel   lsf.Kernel
	Detector ports.Detector
	Config   trial.Config
	WaveBins int // 0 disables the wavelength stratification
}

// InjectionTestResult is the complete output of a run
type InjectionTestResult struct {
	Table    *trial.Table
	Manifest trial.Manifest
	Summary  aggregate.Summary
	WaveBins []aggregate.Bin
}

// NewInjectionTestService wires the service
func NewInjectionTestService(rng ports.RNGPort, ledger ports.TrialLedger, logger *internal.Logger) *InjectionTestService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &InjectionTestService{
		harness: harness.New(rng),
		ledger:  ledger,
		logger:  logger,
	}
}

// Run executes the injection test end to end
func (s *InjectionTestService) Run(ctx context.Context, req InjectionTestRequest) (*InjectionTestResult, error) {
	start := time.Now()
	s.logger.Info("injection test starting: %d trials, seed %d", req.Config.Trials, req.Config.Seed)

	outcome, err := s.harness.Run(ctx, req.Dataset, req.Kernel, req.Detector, req.Config)
	if err != nil {
		return nil, err
	}
	table := outcome.Table

	summary, err := aggregate.Summarize(table)
	if err != nil {
		return nil, err
	}

	var waveBins []aggregate.Bin
	if req.WaveBins > 0 {
		waveBins, err = aggregate.ByWavelength(table, req.WaveBins)
		if err != nil {
			return nil, err
		}
	}

	manifest := trial.Manifest{
		RunID:       table.RunID,
		Config:      req.Config,
		Spectra:     req.Dataset.Len(),
		Successes:   summary.Successes,
		FalsePosSum: int(summary.MeanFalsePos * float64(summary.Trials)),
		Redraws:     outcome.Redraws,
		RuntimeMs:   time.Since(start).Milliseconds(),
		Fingerprint: fingerprint(table),
		CreatedAt:   core.Now(),
	}

	if s.ledger != nil {
		if err := s.ledger.SaveRun(ctx, table, manifest); err != nil {
			return nil, err
		}
		s.logger.Debug("run %s persisted to ledger", table.RunID.String())
	}

	s.logger.Info("injection test done: sensitivity %.2f%%, mean FP %.3f, %d ms",
		100*summary.Sensitivity, summary.MeanFalsePos, manifest.RuntimeMs)

	return &InjectionTestResult{
		Table:    table,
		Manifest: manifest,
		Summary:  summary,
		WaveBins: waveBins,
	}, nil
}

// fingerprint hashes the full results table so replays can be verified
// against the original run.
func fingerprint(table *trial.Table) core.Hash {
	var b strings.Builder
	fmt.Fprintf(&b, "%d|%g|%g|%s|%d", table.Config.Trials, table.Config.AmpMin,
		table.Config.AmpMax, table.Config.Scale, table.Config.Seed)
	for _, r := range table.Results {
		fmt.Fprintf(&b, "|%d:%d:%.9g:%.9g:%t:%d", r.Trial, r.Spectrum, r.Wave, r.Amplitude, r.Detected, r.FalsePos)
	}
	return core.NewHash([]byte(b.String()))
}
