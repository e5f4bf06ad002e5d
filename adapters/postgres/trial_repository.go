package postgres

import (
	"context"
	"database/sql"
	"encoding/json"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"goalias/domain/core"
	"goalias/domain/trial"
	"goalias/internal/errors"
)

// TrialRepository persists injection-test runs to postgres. It is the
// optional ledger behind the TrialLedger port; runs are stored whole,
// inside one transaction.
type TrialRepository struct {
	db *sqlx.DB
}

// Connect opens the database and prepares the schema
func Connect(url string) (*TrialRepository, error) {
	db, err := sqlx.Connect("postgres", url)
	if err != nil {
		return nil, errors.StorageError("failed to connect to ledger database", err)
	}
	repo := &TrialRepository{db: db}
	if err := repo.ensureSchema(); err != nil {
		return nil, err
	}
	return repo, nil
}

// NewTrialRepository wraps an existing connection
func NewTrialRepository(db *sqlx.DB) *TrialRepository {
	return &TrialRepository{db: db}
}

// Close releases the underlying connection pool
func (r *TrialRepository) Close() error {
	return r.db.Close()
}

func (r *TrialRepository) ensureSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS injection_runs (
		run_id        TEXT PRIMARY KEY,
		config        JSONB NOT NULL,
		spectra       INTEGER NOT NULL,
		successes     INTEGER NOT NULL,
		false_pos_sum INTEGER NOT NULL,
		redraws       INTEGER NOT NULL,
		runtime_ms    BIGINT NOT NULL,
		fingerprint   TEXT NOT NULL,
		created_at    TIMESTAMPTZ NOT NULL
	);
	CREATE TABLE IF NOT EXISTS injection_trials (
		run_id      TEXT NOT NULL REFERENCES injection_runs(run_id) ON DELETE CASCADE,
		trial       INTEGER NOT NULL,
		spectrum    INTEGER NOT NULL,
		wave        DOUBLE PRECISION NOT NULL,
		amplitude   DOUBLE PRECISION NOT NULL,
		detected    BOOLEAN NOT NULL,
		false_pos   INTEGER NOT NULL,
		center_pix  INTEGER NOT NULL,
		center_frac DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, trial)
	);`
	if _, err := r.db.Exec(schema); err != nil {
		return errors.StorageError("failed to prepare ledger schema", err)
	}
	return nil
}

// SaveRun stores the results table and its manifest atomically
func (r *TrialRepository) SaveRun(ctx context.Context, table *trial.Table, manifest trial.Manifest) error {
	configJSON, err := json.Marshal(table.Config)
	if err != nil {
		return errors.StorageError("failed to encode run config", err)
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return errors.StorageError("failed to begin ledger transaction", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO injection_runs (
			run_id, config, spectra, successes, false_pos_sum,
			redraws, runtime_ms, fingerprint, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		table.RunID.String(),
		configJSON,
		manifest.Spectra,
		manifest.Successes,
		manifest.FalsePosSum,
		manifest.Redraws,
		manifest.RuntimeMs,
		manifest.Fingerprint.String(),
		manifest.CreatedAt.Time(),
	)
	if err != nil {
		return errors.StorageError("failed to insert run manifest", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO injection_trials (
			run_id, trial, spectrum, wave, amplitude,
			detected, false_pos, center_pix, center_frac
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`)
	if err != nil {
		return errors.StorageError("failed to prepare trial insert", err)
	}
	defer stmt.Close()

	for _, row := range table.Results {
		if _, err := stmt.ExecContext(ctx,
			table.RunID.String(), row.Trial, row.Spectrum, row.Wave, row.Amplitude,
			row.Detected, row.FalsePos, row.CenterPix, row.CenterFrac,
		); err != nil {
			return errors.StorageError("failed to insert trial row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return errors.StorageError("failed to commit run", err)
	}
	return nil
}

// LoadRun retrieves a stored results table by run ID
func (r *TrialRepository) LoadRun(ctx context.Context, runID core.RunID) (*trial.Table, error) {
	var configJSON []byte
	err := r.db.QueryRowContext(ctx,
		`SELECT config FROM injection_runs WHERE run_id = $1`, runID.String(),
	).Scan(&configJSON)
	if err == sql.ErrNoRows {
		return nil, errors.NotFound("run " + runID.String())
	}
	if err != nil {
		return nil, errors.StorageError("failed to load run config", err)
	}

	var cfg trial.Config
	if err := json.Unmarshal(configJSON, &cfg); err != nil {
		return nil, errors.StorageError("failed to decode run config", err)
	}

	rows, err := r.db.QueryxContext(ctx, `
		SELECT trial, spectrum, wave, amplitude, detected, false_pos, center_pix, center_frac
		FROM injection_trials WHERE run_id = $1 ORDER BY trial`, runID.String())
	if err != nil {
		return nil, errors.StorageError("failed to load trial rows", err)
	}
	defer rows.Close()

	table := trial.NewTable(runID, cfg)
	for rows.Next() {
		var row trial.Result
		if err := rows.Scan(&row.Trial, &row.Spectrum, &row.Wave, &row.Amplitude,
			&row.Detected, &row.FalsePos, &row.CenterPix, &row.CenterFrac); err != nil {
			return nil, errors.StorageError("failed to scan trial row", err)
		}
		table.Append(row)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.StorageError("failed to iterate trial rows", err)
	}
	return table, nil
}

// LoadManifest retrieves the audit manifest of a stored run
func (r *TrialRepository) LoadManifest(ctx context.Context, runID core.RunID) (trial.Manifest, error) {
	var (
		configJSON []byte
		m          trial.Manifest
		created    sql.NullTime
		print      string
	)
	err := r.db.QueryRowContext(ctx, `
		SELECT config, spectra, successes, false_pos_sum, redraws, runtime_ms, fingerprint, created_at
		FROM injection_runs WHERE run_id = $1`, runID.String(),
	).Scan(&configJSON, &m.Spectra, &m.Successes, &m.FalsePosSum, &m.Redraws, &m.RuntimeMs, &print, &created)
	if err == sql.ErrNoRows {
		return trial.Manifest{}, errors.NotFound("run " + runID.String())
	}
	if err != nil {
		return trial.Manifest{}, errors.StorageError("failed to load manifest", err)
	}

	if err := json.Unmarshal(configJSON, &m.Config); err != nil {
		return trial.Manifest{}, errors.StorageError("failed to decode run config", err)
	}
	m.RunID = runID
	m.Fingerprint = core.Hash(print)
	if created.Valid {
		m.CreatedAt = core.NewTimestamp(created.Time)
	}
	return m, nil
}
