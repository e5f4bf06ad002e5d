package ports

import (
	"context"

	"goalias/domain/core"
	"goalias/domain/trial"
)

// TrialLedger persists injection-test runs for later aggregation.
// No partial state: a run is stored as a whole or not at all.
type TrialLedger interface {
	// SaveRun stores the full results table and its manifest
	SaveRun(ctx context.Context, table *trial.Table, manifest trial.Manifest) error

	// LoadRun retrieves a stored results table by run ID
	LoadRun(ctx context.Context, runID core.RunID) (*trial.Table, error)

	// LoadManifest retrieves the audit manifest of a stored run
	LoadManifest(ctx context.Context, runID core.RunID) (trial.Manifest, error)
}
